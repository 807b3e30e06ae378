package stage

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/mastercactapus/emfi/coord"
)

// parsePosition extracts the coordinates from an M114 reply, e.g.
//
//	X:1.00 Y:2.50 Z:10.00 E:0.00 Count X:80 Y:200 Z:4000
//
// Only the first X/Y/Z fields count; the step counters after "Count"
// are ignored.
func parsePosition(msg []byte) (p coord.Point, ok bool) {
	for _, line := range bytes.Split(msg, []byte{'\n'}) {
		if !bytes.HasPrefix(line, []byte("X:")) {
			continue
		}
		var have int
		for _, field := range strings.Fields(string(line)) {
			if field == "Count" {
				break
			}
			parts := strings.SplitN(field, ":", 2)
			if len(parts) != 2 {
				continue
			}
			val, err := strconv.ParseFloat(parts[1], 64)
			if err != nil {
				return coord.Point{}, false
			}
			switch parts[0] {
			case "X":
				p.X = val
				have++
			case "Y":
				p.Y = val
				have++
			case "Z":
				p.Z = val
				have++
			}
		}
		if have == 3 {
			return p, true
		}
		return coord.Point{}, false
	}
	return coord.Point{}, false
}
