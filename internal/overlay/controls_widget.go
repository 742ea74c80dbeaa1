package overlay

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/bryanchriswhite/cameramidi/internal/control"
	"github.com/bryanchriswhite/cameramidi/internal/pipeline"
)

// channelColors tints each bar by the channel it reports
var channelColors = map[control.Channel]color.RGBA{
	control.Blue:       {60, 120, 255, 255},
	control.Green:      {60, 220, 90, 255},
	control.Red:        {255, 70, 60, 255},
	control.Hue:        {230, 200, 40, 255},
	control.Saturation: {220, 90, 220, 255},
	control.Value:      {220, 220, 220, 255},
}

// ControlsWidget draws one labelled bar per control value sent for the
// latest frame.
type ControlsWidget struct {
	*BaseWidget
	mu       sync.RWMutex
	values   []pipeline.ControlValue
	barWidth int
	rowGap   int
	bgColor  color.RGBA
	padding  int
}

// NewControlsWidget creates a new control bar widget
func NewControlsWidget(id string, config map[string]interface{}) (*ControlsWidget, error) {
	w := &ControlsWidget{
		BaseWidget: NewBaseWidget(id, 8, 8, 0.85),
		barWidth:   control.MaxValue,
		rowGap:     2,
		bgColor:    color.RGBA{20, 20, 28, 255},
		padding:    6,
	}

	if err := w.UpdateConfig(config); err != nil {
		return nil, err
	}
	if w.barWidth <= 0 {
		return nil, fmt.Errorf("controls widget needs a positive bar_width")
	}

	return w, nil
}

// Type returns the widget type
func (w *ControlsWidget) Type() string {
	return "controls"
}

// Update stores the frame's control values
func (w *ControlsWidget) Update(result pipeline.FrameResult) {
	values := append([]pipeline.ControlValue(nil), result.Values...)

	w.mu.Lock()
	w.values = values
	w.mu.Unlock()
}

// Render draws the bars
func (w *ControlsWidget) Render(img *image.RGBA) error {
	if !w.IsEnabled() {
		return nil
	}

	w.mu.RLock()
	values := w.values
	w.mu.RUnlock()
	if len(values) == 0 {
		return nil
	}

	labelWidth := 0
	for _, v := range values {
		if n := TextMask(label(v)).Bounds().Dx(); n > labelWidth {
			labelWidth = n
		}
	}

	row := lineHeight + w.rowGap
	width := labelWidth + 6 + w.barWidth + w.padding*2
	height := len(values)*row - w.rowGap + w.padding*2
	FillRect(img, image.Rect(w.x, w.y, w.x+width, w.y+height), w.bgColor, w.opacity)

	for i, v := range values {
		top := w.y + w.padding + i*row
		left := w.x + w.padding

		BlendMask(img, TextMask(label(v)), left, top, color.RGBA{230, 230, 230, 255}, 1)

		barLeft := left + labelWidth + 6
		FillRect(img, image.Rect(barLeft, top+2, barLeft+w.barWidth, top+lineHeight-2), color.RGBA{60, 60, 70, 255}, 1)
		filled := BarLength(v.Value, w.barWidth)
		FillRect(img, image.Rect(barLeft, top+2, barLeft+filled, top+lineHeight-2), channelColors[v.Identifier.Channel], 1)
	}

	return nil
}

// BarLength scales a control value to a bar of at most width pixels
func BarLength(value uint8, width int) int {
	if value > control.MaxValue {
		value = control.MaxValue
	}
	return int(value) * width / control.MaxValue
}

func label(v pipeline.ControlValue) string {
	return fmt.Sprintf("%-17s cc%-3d %3d", v.Name, v.Number, v.Value)
}

// GetConfig returns the widget configuration
func (w *ControlsWidget) GetConfig() map[string]interface{} {
	config := w.exportBase(w.Type())
	config["bar_width"] = w.barWidth
	config["padding"] = w.padding
	config["background"] = exportColor(w.bgColor)
	return config
}

// UpdateConfig updates the widget configuration
func (w *ControlsWidget) UpdateConfig(config map[string]interface{}) error {
	w.baseConfig(config)

	if _, ok := config["bar_width"]; ok {
		w.barWidth = getInt(config["bar_width"])
	}
	if _, ok := config["padding"]; ok {
		w.padding = getInt(config["padding"])
	}
	if c, ok := getColor(config["background"]); ok {
		w.bgColor = c
	}
	return nil
}
