package calibration

import "fmt"

// Point is one bench-measured sample: commanded output percent against the
// voltage actually observed at the fan terminal.
type Point struct {
	Percent float64 `mapstructure:"percent" yaml:"percent"`
	Voltage float64 `mapstructure:"voltage" yaml:"voltage"`
}

// Table is a piecewise-linear map between commanded output percent and
// physical fan voltage. It is built once at startup and never mutated, so it
// is safe for unsynchronized concurrent reads.
//
// Percent values are strictly increasing. Voltages are non-decreasing: the
// amplifier saturates near the top of its range, so the last segment of a
// measured table is typically flat. That plateau makes PercentForVoltage
// lossy near full scale, which reflects the hardware and is kept as-is.
type Table struct {
	points []Point
}

// Default is the table measured on the reference unit. The top two samples
// share a voltage because the output stage saturates at 9.4 V.
func Default() Table {
	t, err := New([]Point{
		{Percent: 0, Voltage: 0},
		{Percent: 10, Voltage: 1.1},
		{Percent: 25, Voltage: 2.7},
		{Percent: 50, Voltage: 5.2},
		{Percent: 75, Voltage: 7.6},
		{Percent: 90, Voltage: 9.4},
		{Percent: 100, Voltage: 9.4},
	})
	if err != nil {
		panic(err) // built-in table is static; cannot fail
	}
	return t
}

// New validates the sample points and builds a table. At least two points are
// required; percent must be strictly increasing and voltage non-decreasing.
func New(points []Point) (Table, error) {
	if len(points) < 2 {
		return Table{}, fmt.Errorf("calibration table needs at least 2 points, got %d", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].Percent <= points[i-1].Percent {
			return Table{}, fmt.Errorf("calibration percent not strictly increasing at index %d (%.2f after %.2f)",
				i, points[i].Percent, points[i-1].Percent)
		}
		if points[i].Voltage < points[i-1].Voltage {
			return Table{}, fmt.Errorf("calibration voltage decreasing at index %d (%.2f after %.2f)",
				i, points[i].Voltage, points[i-1].Voltage)
		}
	}
	cp := make([]Point, len(points))
	copy(cp, points)
	return Table{points: cp}, nil
}

// Points returns a copy of the sample points, for config reporting.
func (t Table) Points() []Point {
	cp := make([]Point, len(t.points))
	copy(cp, t.points)
	return cp
}

// MinVoltage returns the voltage of the first sample.
func (t Table) MinVoltage() float64 { return t.points[0].Voltage }

// MaxVoltage returns the voltage of the last sample.
func (t Table) MaxVoltage() float64 { return t.points[len(t.points)-1].Voltage }

// VoltageForPercent maps a commanded percent to the voltage the hardware will
// produce. Inputs outside the table domain clamp to the first/last sample.
func (t Table) VoltageForPercent(p float64) float64 {
	return interpolate(t.points, p, func(pt Point) float64 { return pt.Percent }, func(pt Point) float64 { return pt.Voltage })
}

// PercentForVoltage maps a target voltage back to the percent to command.
// Every percent across the saturation plateau produces the same voltage, so
// the inverse collapses the whole plateau onto its upper edge. That loss is a
// property of the hardware and is deliberately not corrected here.
func (t Table) PercentForVoltage(v float64) float64 {
	return interpolate(t.points, v, func(pt Point) float64 { return pt.Voltage }, func(pt Point) float64 { return pt.Percent })
}

// interpolate clamps x to the domain spanned by xOf and linearly interpolates
// the corresponding yOf value between the bracketing samples.
func interpolate(points []Point, x float64, xOf, yOf func(Point) float64) float64 {
	first, last := points[0], points[len(points)-1]
	if x <= xOf(first) {
		return yOf(first)
	}
	if x >= xOf(last) {
		return yOf(last)
	}
	for i := 1; i < len(points); i++ {
		x0, x1 := xOf(points[i-1]), xOf(points[i])
		if x > x1 {
			continue
		}
		if x1 == x0 {
			// flat segment on the x axis (saturated); take the lower end
			return yOf(points[i-1])
		}
		y0, y1 := yOf(points[i-1]), yOf(points[i])
		return y0 + (x-x0)/(x1-x0)*(y1-y0)
	}
	return yOf(last)
}
