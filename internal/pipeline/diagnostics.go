package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"github.com/bryanchriswhite/cameramidi/internal/control"
)

// PrintDiagnostics writes the frame's truncated statistics and the values
// sent for it, one color space at a time:
//
//	BGR MEANS : 12 40 200
//	BGR MEDIANS : 10 38 201
//	B MAX MIN : 30 0
//	...
//	BGR MEANS MIDI : 5 19 99
func PrintDiagnostics(w io.Writer, r FrameResult) error {
	bw := bufio.NewWriter(w)

	sent := make(map[control.Identifier]uint8, len(r.Values))
	for _, v := range r.Values {
		sent[v.Identifier] = v.Value
	}

	spaces := []struct {
		label    string
		stats    [3]analysis.Statistics
		channels []control.Channel
	}{
		{"BGR", r.BGR, control.Channels[:3]},
		{"HSV", r.HSV, control.Channels[3:]},
	}

	for _, sp := range spaces {
		fmt.Fprintf(bw, "%s MEANS : %d %d %d\n", sp.label,
			sp.stats[0].MeanInt(), sp.stats[1].MeanInt(), sp.stats[2].MeanInt())
		fmt.Fprintf(bw, "%s MEDIANS : %d %d %d\n", sp.label,
			sp.stats[0].MedianInt(), sp.stats[1].MedianInt(), sp.stats[2].MedianInt())
		for i, ch := range sp.channels {
			fmt.Fprintf(bw, "%s MAX MIN : %d %d\n", initial(ch), sp.stats[i].Max, sp.stats[i].Min)
		}

		for _, k := range []control.Kind{control.Mean, control.Median} {
			vals, ok := lookup(sent, sp.channels, k)
			if !ok {
				continue
			}
			fmt.Fprintf(bw, "%s %sS MIDI : %d %d %d\n", sp.label, strings.ToUpper(k.String()), vals[0], vals[1], vals[2])
		}
		for _, ch := range sp.channels {
			hi, okHi := sent[control.Identifier{Channel: ch, Kind: control.Max}]
			lo, okLo := sent[control.Identifier{Channel: ch, Kind: control.Min}]
			if okHi && okLo {
				fmt.Fprintf(bw, "%s MAX MIN MIDI : %d %d\n", initial(ch), hi, lo)
			}
		}
	}

	return bw.Flush()
}

func lookup(sent map[control.Identifier]uint8, channels []control.Channel, k control.Kind) ([3]uint8, bool) {
	var out [3]uint8
	for i, ch := range channels {
		v, ok := sent[control.Identifier{Channel: ch, Kind: k}]
		if !ok {
			return out, false
		}
		out[i] = v
	}
	return out, true
}

func initial(ch control.Channel) string {
	return strings.ToUpper(ch.String()[:1])
}
