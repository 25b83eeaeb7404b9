package handlers

import (
	"errors"
	"net/http"

	"cartridge_conditioner/internal/service"

	"github.com/gin-gonic/gin"
)

// Device contract response statuses.
const (
	statusOK    = "OK"
	statusError = "ERROR"
)

// AutoCommandRequest is an automatic-phase command. Pointer fields let the
// ingress distinguish missing fields from zero values.
type AutoCommandRequest struct {
	// Phase to enter. Allowed: idle, scrub, regen, cooldown
	Phase *string `json:"phase" example:"scrub"`
	// Fan voltage, 0.0-10.0 V
	FanVolt *float64 `json:"fan_volt" example:"9.0"`
	// Heater on/off
	Heater *bool `json:"heater" example:"false"`
	// Phase duration in minutes; 0 means indefinite
	Duration *int `json:"duration" example:"5"`
}

// ManualCommandRequest is an operator override: no phase, no duration.
type ManualCommandRequest struct {
	FanVolt *float64 `json:"fan_volt" example:"6.5"`
	Heater  *bool    `json:"heater" example:"true"`
}

// commandError writes the device-contract error shape, mapping contention to
// 503 so callers can tell "try again" from "this request is invalid".
func (h *Handler) commandError(c *gin.Context, err error) {
	code := http.StatusBadRequest
	if errors.Is(err, service.ErrGuardBusy) || errors.Is(err, service.ErrQueueFull) {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": statusError, "message": err.Error()})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary      Automatic-phase command
// @Description  Validates and enqueues a phase change. Duration is minutes; 0 means indefinite.
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body  AutoCommandRequest  true  "Command payload"
// @Success      200  {object}  map[string]string  "status, state"
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string  "lock busy or queue full"
// @Router       /auto [post]
func (h *Handler) autoCommand(c *gin.Context) {
	var req AutoCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": statusError, "message": "invalid body: " + err.Error()})
		return
	}

	target, err := h.services.Commands.SubmitAuto(c.Request.Context(), service.AutoRequest{
		Phase:       req.Phase,
		FanVolt:     req.FanVolt,
		Heater:      req.Heater,
		DurationMin: req.Duration,
	})
	if err != nil {
		if h.log != nil {
			h.log.Infow("auto_command_rejected", "err", err)
		}
		h.commandError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "state": target.String()})
}

// @Summary      Manual override command
// @Description  Enters manual mode with the given outputs, indefinitely.
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body  ManualCommandRequest  true  "Override payload"
// @Success      200  {object}  map[string]string  "status, state"
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /manual [post]
func (h *Handler) manualCommand(c *gin.Context) {
	var req ManualCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": statusError, "message": "invalid body: " + err.Error()})
		return
	}

	target, err := h.services.Commands.SubmitManual(c.Request.Context(), service.ManualRequest{
		FanVolt: req.FanVolt,
		Heater:  req.Heater,
	})
	if err != nil {
		if h.log != nil {
			h.log.Infow("manual_command_rejected", "err", err)
		}
		h.commandError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "state": target.String()})
}

// @Summary      Emergency stop
// @Description  Immediately forces Idle with outputs de-energized, bypassing the command queue.
// @Tags         device
// @Produce      json
// @Success      200  {object}  map[string]string  "status, state"
// @Failure      500  {object}  map[string]string
// @Router       /stop [post]
func (h *Handler) stopCommand(c *gin.Context) {
	if err := h.services.Commands.EmergencyStop(c.Request.Context()); err != nil {
		if h.log != nil {
			h.log.Errorw("emergency_stop_failed", "err", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": statusError, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "state": "idle"})
}
