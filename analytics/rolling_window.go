package analytics

import "math"

// RollingWindow keeps the last windowSize samples of a node's vibration.
type RollingWindow struct {
	windowSize int
	values     []float64
	index      int
	count      int
	sum        float64
	sumSquares float64
}

func NewRollingWindow(size int) *RollingWindow {
	if size < 1 {
		size = 1
	}
	return &RollingWindow{
		windowSize: size,
		values:     make([]float64, size),
	}
}

func (rw *RollingWindow) Add(value float64) {
	if rw.count < rw.windowSize {
		rw.count++
	} else {
		old := rw.values[rw.index]
		rw.sum -= old
		rw.sumSquares -= old * old
	}

	rw.values[rw.index] = value
	rw.sum += value
	rw.sumSquares += value * value
	rw.index = (rw.index + 1) % rw.windowSize
}

func (rw *RollingWindow) Average() float64 {
	if rw.count == 0 {
		return 0.0
	}
	return rw.sum / float64(rw.count)
}

// RMS is the root mean square of the window.
func (rw *RollingWindow) RMS() float64 {
	if rw.count == 0 {
		return 0.0
	}
	ms := rw.sumSquares / float64(rw.count)
	// Running subtraction can leave a tiny negative residue.
	if ms < 0 {
		return 0.0
	}
	return math.Sqrt(ms)
}
