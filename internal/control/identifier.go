package control

import (
	"fmt"
	"strings"
)

// Space is a colour representation the pipeline analyses.
type Space int

const (
	SpaceBGR Space = iota
	SpaceHSV
)

func (s Space) String() string {
	switch s {
	case SpaceBGR:
		return "bgr"
	case SpaceHSV:
		return "hsv"
	default:
		return fmt.Sprintf("space(%d)", int(s))
	}
}

// Channel is one component of a colour space, numbered across both spaces
// in emission order.
type Channel int

const (
	Blue Channel = iota
	Green
	Red
	Hue
	Saturation
	Value
)

// Channels lists every channel in emission order.
var Channels = [...]Channel{Blue, Green, Red, Hue, Saturation, Value}

var channelNames = [...]string{"blue", "green", "red", "hue", "saturation", "value"}

func (c Channel) String() string {
	if c < Blue || c > Value {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

// Space returns the colour space the channel belongs to.
func (c Channel) Space() Space {
	if c >= Hue {
		return SpaceHSV
	}
	return SpaceBGR
}

// Index is the component position of the channel inside its frame.
func (c Channel) Index() int {
	return int(c) % 3
}

// Bounds returns the channel's domain. 8-bit hue is halved by OpenCV, so it
// spans 0-179; every other component spans 0-255.
func (c Channel) Bounds() (min, max float64) {
	if c == Hue {
		return 0, 179
	}
	return 0, 255
}

// Kind is a statistic extracted from a channel grid.
type Kind int

const (
	Mean Kind = iota
	Median
	Min
	Max
)

// Kinds lists every statistic kind in emission order.
var Kinds = [...]Kind{Mean, Median, Min, Max}

var kindNames = [...]string{"mean", "median", "min", "max"}

func (k Kind) String() string {
	if k < Mean || k > Max {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Identifier names one output value, e.g. "hue-max".
type Identifier struct {
	Channel Channel
	Kind    Kind
}

func (id Identifier) String() string {
	return id.Channel.String() + "-" + id.Kind.String()
}

// ParseIdentifier is the inverse of Identifier.String.
func ParseIdentifier(s string) (Identifier, error) {
	name, kind, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "-")
	if !ok {
		return Identifier{}, fmt.Errorf("malformed identifier %q", s)
	}
	id := Identifier{Channel: -1, Kind: -1}
	for i, n := range channelNames {
		if n == name {
			id.Channel = Channel(i)
		}
	}
	for i, n := range kindNames {
		if n == kind {
			id.Kind = Kind(i)
		}
	}
	if id.Channel < 0 || id.Kind < 0 {
		return Identifier{}, fmt.Errorf("unknown identifier %q", s)
	}
	return id, nil
}

// Variant selects which statistic kinds feed the output.
type Variant int

const (
	// Full emits mean, median, min and max for every channel (24 values).
	Full Variant = iota
	// Minimal emits only the mean of every channel (6 values).
	Minimal
)

func (v Variant) String() string {
	switch v {
	case Full:
		return "full"
	case Minimal:
		return "minimal"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// ParseVariant accepts "full" or "minimal".
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "":
		return Full, nil
	case "minimal", "min", "mean":
		return Minimal, nil
	default:
		return Full, fmt.Errorf("unknown variant %q (use full or minimal)", s)
	}
}

// Kinds returns the statistic kinds tracked by the variant, in emission order.
func (v Variant) Kinds() []Kind {
	if v == Minimal {
		return []Kind{Mean}
	}
	return Kinds[:]
}

// Identifiers returns the variant's outputs in emission order: colour space,
// then channel, then statistic kind.
func (v Variant) Identifiers() []Identifier {
	kinds := v.Kinds()
	ids := make([]Identifier, 0, len(Channels)*len(kinds))
	for _, ch := range Channels {
		for _, k := range kinds {
			ids = append(ids, Identifier{Channel: ch, Kind: k})
		}
	}
	return ids
}
