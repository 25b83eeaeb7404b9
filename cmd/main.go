package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cartridge_conditioner/internal/actuator"
	"cartridge_conditioner/internal/calibration"
	"cartridge_conditioner/internal/device"
	"cartridge_conditioner/internal/handlers"
	"cartridge_conditioner/internal/logger"
	"cartridge_conditioner/internal/repository"
	"cartridge_conditioner/internal/repository/db"
	"cartridge_conditioner/internal/server"
	"cartridge_conditioner/internal/service"

	"github.com/spf13/viper"
)

func main() {
	// load config.yml first so the logger level comes from it
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(viper.GetString("log.level"))

	// open event log / accounts DB
	sqlDB, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// control primitives: one guard, one state record, one command queue
	guard := device.NewGuard()
	state := device.NewState(guard)
	queue := device.NewQueue(viper.GetInt("device.queue_capacity"))

	driver, err := buildDriver(log)
	if err != nil {
		log.Fatalw("failed to build actuator driver", "err", err)
	}

	repos := repository.NewRepository(sqlDB)
	services := service.NewService(service.Deps{
		Repos:  repos,
		State:  state,
		Queue:  queue,
		Driver: driver,
		Log:    log,
		Opts: service.Options{
			GuardWait:      viper.GetDuration("device.guard_wait"),
			Grace:          viper.GetDuration("watchdog.grace"),
			MaxDuration:    viper.GetDuration("device.max_duration"),
			MatrixRevision: viper.GetString("device.matrix_revision"),
		},
	})
	apiHandler := handlers.NewHandler(services, log)

	// context for the worker and watchdog goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go services.Worker.Run(ctx)
	go services.Watchdog.Run(ctx, viper.GetDuration("watchdog.period"))

	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	waitForShutdown(cancel, srv, driver, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "conditioner.db")
		dbPath = "conditioner.db"
	}
	return db.InitDB(dbPath)
}

// buildDriver assembles the calibration table and output peripheral from
// configuration. Without configured calibration points the table measured on
// the reference unit is used.
func buildDriver(log *logger.Logger) (*actuator.Driver, error) {
	table := calibration.Default()
	var points []calibration.Point
	if err := viper.UnmarshalKey("calibration.points", &points); err == nil && len(points) > 0 {
		t, err := calibration.New(points)
		if err != nil {
			return nil, err
		}
		table = t
		log.Infow("calibration table loaded from config", "points", len(points))
	}

	out := actuator.NewSimOutput(log, viper.GetUint32("actuator.max_duty"))
	return actuator.NewDriver(table, out, actuator.Config{
		HeaterActiveLow: viper.GetBool("actuator.heater_active_low"),
	})
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals, stops the background
// goroutines, de-energizes the outputs, and drains in-flight requests.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, driver *actuator.Driver, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop worker and watchdog
	cancel()

	// safe outputs before exit
	if err := driver.Deenergize(); err != nil {
		log.Errorw("failed to de-energize outputs on shutdown", "err", err)
	}

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
