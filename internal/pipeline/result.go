package pipeline

import (
	"time"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"github.com/bryanchriswhite/cameramidi/internal/control"
)

// ControlValue is one normalized statistic and the control number it was
// sent on.
type ControlValue struct {
	Identifier control.Identifier `json:"-" cbor:"-"`
	Name       string             `json:"id" cbor:"id"`
	Number     uint8              `json:"cc" cbor:"cc"`
	Value      uint8              `json:"value" cbor:"value"`
}

// FrameResult describes one processed frame.
type FrameResult struct {
	Seq    uint64                 `json:"seq" cbor:"seq"`
	Time   time.Time              `json:"time" cbor:"time"`
	Frame  *analysis.Frame        `json:"-" cbor:"-"`
	Width  int                    `json:"width" cbor:"width"`
	Height int                    `json:"height" cbor:"height"`
	BGR    [3]analysis.Statistics `json:"bgr" cbor:"bgr"`
	HSV    [3]analysis.Statistics `json:"hsv" cbor:"hsv"`
	Values []ControlValue         `json:"values" cbor:"values"`
}

// Stats returns the statistics of a channel from the matching color space
func (r FrameResult) Stats(ch control.Channel) analysis.Statistics {
	if ch.Space() == control.SpaceHSV {
		return r.HSV[ch.Index()]
	}
	return r.BGR[ch.Index()]
}

// Observer is notified after a frame's messages were sent. Observe runs on
// the pipeline goroutine and must not block.
type Observer interface {
	Observe(result FrameResult)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(result FrameResult)

// Observe calls f
func (f ObserverFunc) Observe(result FrameResult) {
	f(result)
}

// Display receives each frame before it is analysed. Failures are logged
// and otherwise ignored.
type Display interface {
	Show(frame *analysis.Frame) error
}

// value picks the statistic a kind refers to
func value(s analysis.Statistics, k control.Kind) float64 {
	switch k {
	case control.Median:
		return s.Median
	case control.Min:
		return float64(s.Min)
	case control.Max:
		return float64(s.Max)
	default:
		return s.Mean
	}
}
