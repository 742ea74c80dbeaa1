package overlay

import (
	"image"
	"image/color"

	"github.com/bryanchriswhite/cameramidi/internal/pipeline"
)

// Widget represents a renderable overlay widget
type Widget interface {
	// ID returns the unique identifier for this widget instance
	ID() string

	// Type returns the widget type name
	Type() string

	// Update feeds the widget the latest processed frame
	Update(result pipeline.FrameResult)

	// Render draws the widget onto the provided image at the configured position
	Render(img *image.RGBA) error

	// GetConfig returns the widget's configuration as a map
	GetConfig() map[string]interface{}

	// UpdateConfig updates the widget's configuration
	UpdateConfig(config map[string]interface{}) error

	// IsEnabled returns whether the widget should be rendered
	IsEnabled() bool

	// SetEnabled sets whether the widget should be rendered
	SetEnabled(enabled bool)
}

// BaseWidget provides common functionality for all widgets
type BaseWidget struct {
	id      string
	enabled bool
	x       int
	y       int
	opacity float64 // 0.0 to 1.0
}

// NewBaseWidget creates a new base widget
func NewBaseWidget(id string, x, y int, opacity float64) *BaseWidget {
	return &BaseWidget{
		id:      id,
		enabled: true,
		x:       x,
		y:       y,
		opacity: clampUnit(opacity),
	}
}

// ID returns the widget's unique identifier
func (w *BaseWidget) ID() string {
	return w.id
}

// IsEnabled returns whether the widget should be rendered
func (w *BaseWidget) IsEnabled() bool {
	return w.enabled
}

// SetEnabled sets whether the widget should be rendered
func (w *BaseWidget) SetEnabled(enabled bool) {
	w.enabled = enabled
}

// Position returns the widget's position
func (w *BaseWidget) Position() (int, int) {
	return w.x, w.y
}

// SetOpacity sets the widget's opacity, clamped to 0.0-1.0
func (w *BaseWidget) SetOpacity(opacity float64) {
	w.opacity = clampUnit(opacity)
}

// baseConfig applies the keys every widget shares
func (w *BaseWidget) baseConfig(config map[string]interface{}) {
	if _, ok := config["x"]; ok {
		w.x = getInt(config["x"])
	}
	if _, ok := config["y"]; ok {
		w.y = getInt(config["y"])
	}
	if opacity, ok := config["opacity"].(float64); ok {
		w.SetOpacity(opacity)
	}
	if enabled, ok := config["enabled"].(bool); ok {
		w.SetEnabled(enabled)
	}
}

// exportBase returns the keys every widget shares
func (w *BaseWidget) exportBase(widgetType string) map[string]interface{} {
	return map[string]interface{}{
		"id":      w.id,
		"type":    widgetType,
		"enabled": w.enabled,
		"x":       w.x,
		"y":       w.y,
		"opacity": w.opacity,
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FillRect blends a solid rectangle onto dst with the given opacity,
// clipped to dst's bounds. The destination stays opaque.
func FillRect(dst *image.RGBA, r image.Rectangle, c color.RGBA, opacity float64) {
	r = r.Intersect(dst.Bounds())
	alpha := clampUnit(opacity) * float64(c.A) / 255
	if r.Empty() || alpha == 0 {
		return
	}

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			d := dst.RGBAAt(x, y)
			dst.SetRGBA(x, y, color.RGBA{
				R: mix(d.R, c.R, alpha),
				G: mix(d.G, c.G, alpha),
				B: mix(d.B, c.B, alpha),
				A: 255,
			})
		}
	}
}

// BlendMask draws c through the alpha channel of mask, whose origin is
// placed at (x, y) on dst.
func BlendMask(dst *image.RGBA, mask *image.Alpha, x, y int, c color.RGBA, opacity float64) {
	b := mask.Bounds()
	for my := b.Min.Y; my < b.Max.Y; my++ {
		for mx := b.Min.X; mx < b.Max.X; mx++ {
			a := mask.AlphaAt(mx, my).A
			if a == 0 {
				continue
			}
			dx, dy := x+mx-b.Min.X, y+my-b.Min.Y
			if !image.Pt(dx, dy).In(dst.Bounds()) {
				continue
			}
			alpha := clampUnit(opacity) * float64(a) / 255
			d := dst.RGBAAt(dx, dy)
			dst.SetRGBA(dx, dy, color.RGBA{
				R: mix(d.R, c.R, alpha),
				G: mix(d.G, c.G, alpha),
				B: mix(d.B, c.B, alpha),
				A: 255,
			})
		}
	}
}

func mix(dst, src uint8, alpha float64) uint8 {
	return uint8(float64(src)*alpha + float64(dst)*(1-alpha) + 0.5)
}

// getInt extracts an integer value from an interface{} that might be int or float64
func getInt(v interface{}) int {
	switch val := v.(type) {
	case int:
		return val
	case float64:
		return int(val)
	case int64:
		return int(val)
	default:
		return 0
	}
}

// getColor reads an {r, g, b, a} map
func getColor(v interface{}) (color.RGBA, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return color.RGBA{}, false
	}
	c := color.RGBA{
		R: uint8(getInt(m["r"])),
		G: uint8(getInt(m["g"])),
		B: uint8(getInt(m["b"])),
		A: 255,
	}
	if _, ok := m["a"]; ok {
		c.A = uint8(getInt(m["a"]))
	}
	return c, true
}

func exportColor(c color.RGBA) map[string]interface{} {
	return map[string]interface{}{"r": c.R, "g": c.G, "b": c.B, "a": c.A}
}
