package stage

import (
	"strconv"
	"strings"
)

// word is a single G-code word in the Marlin dialect the controller
// board speaks. A flag word renders as its letter only (e.g. the axis
// selectors of G28).
type word struct {
	w    byte
	arg  float64
	flag bool
}

func argW(w byte, arg float64) word { return word{w: w, arg: arg} }
func flagW(w byte) word             { return word{w: w, flag: true} }

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (w word) String() string {
	if w.flag {
		return string(w.w)
	}
	return string(w.w) + formatFloat(w.arg)
}

type block []word

func (b block) String() string {
	parts := make([]string, len(b))
	for i, w := range b {
		parts[i] = w.String()
	}
	return strings.Join(parts, " ")
}
