package actuator

import (
	"fmt"
	"math"

	"cartridge_conditioner/internal/calibration"
)

// Observer receives the values actually driven, for state observability.
// Calls are best-effort: a failed hardware write still reports what was
// attempted.
type Observer func(voltage, percent float64)

// Config carries the deployment-specific wiring of the driver.
type Config struct {
	// HeaterActiveLow is true on hardware revisions where the relay board
	// energizes on a low level. It has been wired both ways in the field,
	// so it is configuration, never an assumption.
	HeaterActiveLow bool
}

// Driver converts a target fan voltage and heater request into hardware
// output levels using the calibration table.
type Driver struct {
	table    calibration.Table
	out      Output
	cfg      Config
	observer Observer
}

// NewDriver builds a driver over the given output peripheral.
func NewDriver(table calibration.Table, out Output, cfg Config) (*Driver, error) {
	if out == nil {
		return nil, fmt.Errorf("actuator: output peripheral is required")
	}
	return &Driver{table: table, out: out, cfg: cfg}, nil
}

// SetObserver registers the state observability callback. Call before the
// worker starts; the driver itself does no locking.
func (d *Driver) SetObserver(obs Observer) { d.observer = obs }

// Apply drives the fan at the requested voltage and switches the heater.
// The voltage is inverted through the calibration table to the percent that
// produces it, then discretized to the peripheral's duty resolution.
func (d *Driver) Apply(voltage float64, heaterOn bool) error {
	percent := d.table.PercentForVoltage(voltage)
	duty := uint32(math.Round(percent / 100 * float64(d.out.MaxDuty())))

	if d.observer != nil {
		d.observer(voltage, percent)
	}

	if err := d.out.WriteDuty(duty); err != nil {
		return fmt.Errorf("write fan duty %d: %w", duty, err)
	}
	if err := d.out.WriteHeater(heaterOn != d.cfg.HeaterActiveLow); err != nil {
		return fmt.Errorf("write heater line: %w", err)
	}
	return nil
}

// Deenergize forces all outputs to their safe levels: fan off, heater off.
func (d *Driver) Deenergize() error {
	return d.Apply(0, false)
}
