// Package embedding maps locators to numeric vectors and back.
// The codec is the swappable part of the predictor: models only ever see
// vectors, and callers only ever see locator strings.
package embedding

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// ErrLocatorTooLong is returned when a locator does not fit the codec width.
var ErrLocatorTooLong = errors.New("locator exceeds codec width")

// Codec converts a locator into a fixed-width vector and back.
type Codec interface {
	// Encode writes the embedding of locator into dst (len(dst) == Width()).
	Encode(locator string, dst []float32) error

	// Decode reads a locator back out of a vector produced by a model.
	Decode(src []float32) string

	// Width returns the vector length this codec produces.
	Width() int

	// Name returns the codec name recorded in model artifacts.
	Name() string
}

// DefaultWidth fits typical CSS and XPath selectors.
const DefaultWidth = 128

// RuneCodec stores one Unicode code point per slot, zero padded.
// Round-trips any locator of up to Width() runes.
type RuneCodec struct {
	width int
}

// NewRuneCodec creates a rune codec; width <= 0 selects DefaultWidth.
func NewRuneCodec(width int) *RuneCodec {
	if width <= 0 {
		width = DefaultWidth
	}
	return &RuneCodec{width: width}
}

func (c *RuneCodec) Encode(locator string, dst []float32) error {
	if len(dst) != c.width {
		return fmt.Errorf("destination has %d slots, codec width is %d", len(dst), c.width)
	}
	if n := utf8.RuneCountInString(locator); n > c.width {
		return fmt.Errorf("%w: %d runes > %d", ErrLocatorTooLong, n, c.width)
	}
	i := 0
	for _, r := range locator {
		dst[i] = float32(r)
		i++
	}
	for ; i < len(dst); i++ {
		dst[i] = 0
	}
	return nil
}

// Decode rounds each slot to the nearest code point and stops at the first
// empty slot. Slots outside the valid rune range terminate decoding too, so a
// noisy model output degrades to a shorter locator rather than garbage.
func (c *RuneCodec) Decode(src []float32) string {
	var sb strings.Builder
	for _, v := range src {
		code := math.Round(float64(v))
		if code <= 0 || code > utf8.MaxRune {
			break
		}
		r := rune(code)
		if !utf8.ValidRune(r) {
			break
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (c *RuneCodec) Width() int { return c.width }

func (c *RuneCodec) Name() string { return "rune" }

// NewCodec returns the codec registered under name.
func NewCodec(name string, width int) (Codec, error) {
	switch name {
	case "rune", "":
		return NewRuneCodec(width), nil
	default:
		return nil, fmt.Errorf("unsupported codec: %s (use 'rune')", name)
	}
}
