package actuator

import "cartridge_conditioner/internal/logger"

// Output is the hardware boundary for the airflow assembly: an analog-
// equivalent duty output driving the fan amplifier and a binary heater-enable
// line. Implementations must tolerate being called from a single goroutine
// only; serialization is the worker's job.
type Output interface {
	// WriteDuty sets the fan drive level, 0..MaxDuty().
	WriteDuty(duty uint32) error
	// WriteHeater sets the electrical level of the heater-enable line.
	// The level is raw; relay polarity is the Driver's concern.
	WriteHeater(level bool) error
	// MaxDuty is the full-scale value of the duty peripheral
	// (255 for the 8-bit DAC on the reference hardware).
	MaxDuty() uint32
}

// simOutput stands in for real hardware on the bench: it logs what would be
// driven and remembers the last values.
type simOutput struct {
	log        *logger.Logger
	maxDuty    uint32
	lastDuty   uint32
	lastHeater bool
}

// NewSimOutput returns an Output that only logs. maxDuty of 0 defaults to the
// reference hardware's 8-bit resolution.
func NewSimOutput(log *logger.Logger, maxDuty uint32) Output {
	if maxDuty == 0 {
		maxDuty = 255
	}
	return &simOutput{log: log, maxDuty: maxDuty}
}

func (o *simOutput) WriteDuty(duty uint32) error {
	o.lastDuty = duty
	if o.log != nil {
		o.log.Debugw("sim_fan_duty", "duty", duty, "max", o.maxDuty)
	}
	return nil
}

func (o *simOutput) WriteHeater(level bool) error {
	o.lastHeater = level
	if o.log != nil {
		o.log.Debugw("sim_heater_line", "level", level)
	}
	return nil
}

func (o *simOutput) MaxDuty() uint32 { return o.maxDuty }
