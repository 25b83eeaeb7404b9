package actuator

import "sync"

// MockOutput records every write for assertions in tests.
type MockOutput struct {
	mu      sync.Mutex
	maxDuty uint32

	Duties       []uint32
	HeaterLevels []bool
	DutyErr      error
	HeaterErr    error
}

var _ Output = (*MockOutput)(nil)

// NewMockOutput returns a recording output with the given resolution
// (0 defaults to 255).
func NewMockOutput(maxDuty uint32) *MockOutput {
	if maxDuty == 0 {
		maxDuty = 255
	}
	return &MockOutput{maxDuty: maxDuty}
}

func (m *MockOutput) WriteDuty(duty uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Duties = append(m.Duties, duty)
	return m.DutyErr
}

func (m *MockOutput) WriteHeater(level bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HeaterLevels = append(m.HeaterLevels, level)
	return m.HeaterErr
}

func (m *MockOutput) MaxDuty() uint32 { return m.maxDuty }

// LastDuty returns the most recent duty write, or false if none happened.
func (m *MockOutput) LastDuty() (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Duties) == 0 {
		return 0, false
	}
	return m.Duties[len(m.Duties)-1], true
}

// LastHeater returns the most recent heater-line write, or false if none
// happened.
func (m *MockOutput) LastHeater() (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.HeaterLevels) == 0 {
		return false, false
	}
	return m.HeaterLevels[len(m.HeaterLevels)-1], true
}
