package coord

import (
	"math"
	"strconv"
	"strings"
)

// decimalsLen returns the maximum number of decimal digits
// across all provided values.
func decimalsLen(vals ...float64) int {
	var max int
	for _, v := range vals {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		i := strings.IndexByte(s, '.')
		if i < 0 {
			continue
		}
		if d := len(s) - i - 1; d > max {
			max = d
		}
	}
	return max
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// rangeRounded returns the inclusive progression from start to stop.
//
// Values are rounded to the max decimal precision of the inputs so that
// accumulated float error never produces an extra sample.
func rangeRounded(start, stop, step float64) []float64 {
	fp := decimalsLen(start, stop, step)
	var vals []float64
	if start < stop {
		for v := start; v < stop; v += step {
			vals = append(vals, roundTo(v, fp))
		}
	} else {
		for v := start; v > stop; v -= step {
			vals = append(vals, roundTo(v, fp))
		}
	}
	return append(vals, roundTo(stop, fp))
}

func reverse(vals []float64) {
	for i, j := 0, len(vals)-1; i < j; i, j = i+1, j-1 {
		vals[i], vals[j] = vals[j], vals[i]
	}
}

// SweepPositions returns the grid of points between start and end at the
// given step size, ordered as a serpentine sweep: Y reverses after every
// X column and X reverses after every Z layer, so consecutive points are
// always one step apart and total travel is minimal.
func SweepPositions(start, end Point, step float64) []Point {
	xs := rangeRounded(start.X, end.X, step)
	ys := rangeRounded(start.Y, end.Y, step)
	zs := rangeRounded(start.Z, end.Z, step)

	out := make([]Point, 0, len(xs)*len(ys)*len(zs))
	for _, z := range zs {
		for _, x := range xs {
			for _, y := range ys {
				out = append(out, Point{X: x, Y: y, Z: z})
			}
			reverse(ys)
		}
		reverse(xs)
	}
	return out
}
