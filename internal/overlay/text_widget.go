package overlay

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"github.com/bryanchriswhite/cameramidi/internal/pipeline"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// lineHeight is the advance of basicfont.Face7x13
const lineHeight = 13

// TextWidget displays a line of text. The placeholders {seq}, {width} and
// {height} are replaced from the latest frame.
type TextWidget struct {
	*BaseWidget
	mu        sync.RWMutex
	template  string
	text      string
	textColor color.RGBA
	bgColor   *color.RGBA // Optional background color
	padding   int
}

// NewTextWidget creates a new text widget
func NewTextWidget(id string, config map[string]interface{}) (*TextWidget, error) {
	w := &TextWidget{
		BaseWidget: NewBaseWidget(id, 0, 0, 1.0),
		template:   "frame {seq}",
		textColor:  color.RGBA{255, 255, 255, 255},
		padding:    5,
	}

	if err := w.UpdateConfig(config); err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	return w, nil
}

// Type returns the widget type
func (w *TextWidget) Type() string {
	return "text"
}

// Update expands the template from result
func (w *TextWidget) Update(result pipeline.FrameResult) {
	text := strings.NewReplacer(
		"{seq}", strconv.FormatUint(result.Seq, 10),
		"{width}", strconv.Itoa(result.Width),
		"{height}", strconv.Itoa(result.Height),
	).Replace(w.Template())

	w.mu.Lock()
	w.text = text
	w.mu.Unlock()
}

// Render draws the text widget
func (w *TextWidget) Render(img *image.RGBA) error {
	w.mu.RLock()
	text := w.text
	if text == "" {
		text = w.template
	}
	w.mu.RUnlock()

	if !w.IsEnabled() || text == "" {
		return nil
	}

	mask := TextMask(text)
	size := mask.Bounds().Size()

	if w.bgColor != nil {
		bg := image.Rect(w.x, w.y, w.x+size.X+w.padding*2, w.y+size.Y+w.padding*2)
		FillRect(img, bg, *w.bgColor, w.opacity)
	}
	BlendMask(img, mask, w.x+w.padding, w.y+w.padding, w.textColor, w.opacity)

	return nil
}

// TextMask renders text in basicfont into an alpha mask sized to fit it
func TextMask(text string) *image.Alpha {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	mask := image.NewAlpha(image.Rect(0, 0, width, lineHeight))

	d := &font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: fixed.I(face.Ascent)},
	}
	d.DrawString(text)
	return mask
}

// GetConfig returns the widget configuration
func (w *TextWidget) GetConfig() map[string]interface{} {
	config := w.exportBase(w.Type())
	config["text"] = w.Template()
	config["padding"] = w.padding
	config["color"] = exportColor(w.textColor)
	if w.bgColor != nil {
		config["background"] = exportColor(*w.bgColor)
	}
	return config
}

// UpdateConfig updates the widget configuration
func (w *TextWidget) UpdateConfig(config map[string]interface{}) error {
	w.baseConfig(config)

	if text, ok := config["text"].(string); ok {
		w.mu.Lock()
		w.template = text
		w.text = ""
		w.mu.Unlock()
	}
	if _, ok := config["padding"]; ok {
		w.padding = getInt(config["padding"])
	}
	if c, ok := getColor(config["color"]); ok {
		w.textColor = c
	}
	if c, ok := getColor(config["background"]); ok {
		w.bgColor = &c
	}

	return nil
}

// Template returns the unexpanded text
func (w *TextWidget) Template() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.template
}

// Validate ensures the widget configuration is valid
func (w *TextWidget) Validate() error {
	if w.Template() == "" {
		return fmt.Errorf("text widget requires non-empty text")
	}
	return nil
}
