package analysis

import "fmt"

// Statistics summarizes one channel grid.
type Statistics struct {
	Mean   float64 `json:"mean" cbor:"mean"`
	Median float64 `json:"median" cbor:"median"`
	Min    uint8   `json:"min" cbor:"min"`
	Max    uint8   `json:"max" cbor:"max"`
}

// MeanInt is the mean truncated toward zero, used for reporting.
func (s Statistics) MeanInt() int {
	return int(s.Mean)
}

// MedianInt is the median truncated toward zero, used for reporting.
func (s Statistics) MedianInt() int {
	return int(s.Median)
}

// Extract computes mean, median, min and max of a grid.
//
// Values are 8-bit, so a 256-bin histogram gives all four in a single pass
// over the grid plus a walk over the bins. For an even count the median is
// the average of the two middle values.
func Extract(g Grid) (Statistics, error) {
	n := len(g.Values)
	if n == 0 {
		return Statistics{}, fmt.Errorf("%w: grid %dx%d", ErrEmptyInput, g.Width, g.Height)
	}

	var hist [256]int
	var sum uint64
	for _, v := range g.Values {
		hist[v]++
		sum += uint64(v)
	}

	s := Statistics{Mean: float64(sum) / float64(n)}

	for v := 0; v < 256; v++ {
		if hist[v] > 0 {
			s.Min = uint8(v)
			break
		}
	}
	for v := 255; v >= 0; v-- {
		if hist[v] > 0 {
			s.Max = uint8(v)
			break
		}
	}

	if n%2 == 1 {
		s.Median = float64(nthValue(&hist, n/2))
	} else {
		lo := nthValue(&hist, n/2-1)
		hi := nthValue(&hist, n/2)
		s.Median = (float64(lo) + float64(hi)) / 2
	}
	return s, nil
}

// ExtractAll computes statistics for each grid of a split frame.
func ExtractAll(grids [3]Grid) ([3]Statistics, error) {
	var out [3]Statistics
	for i, g := range grids {
		s, err := Extract(g)
		if err != nil {
			return out, fmt.Errorf("channel %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

// nthValue returns the k-th smallest value (0-based) described by hist.
func nthValue(hist *[256]int, k int) uint8 {
	seen := 0
	for v, count := range hist {
		seen += count
		if seen > k {
			return uint8(v)
		}
	}
	return 255
}
