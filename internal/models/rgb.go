package models

import "fmt"

// RGB is a 24-bit color
type RGB struct {
	R, G, B uint8
}

// NewRGB creates a new RGB
func NewRGB(r, g, b uint8) RGB {
	return RGB{R: r, G: g, B: b}
}

// Hex renders the color as #rrggbb
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// String renders the color as rgb(r,g,b), the format config files use
func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}
