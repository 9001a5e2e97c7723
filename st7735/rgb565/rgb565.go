// Package rgb565 provides the 16-bit RGB565 pixel format used by the ST7735
// display controller and emitted natively by the OV7670 sensor.
//
// Pixels are stored one uint16 per pixel: 5 bits red, 6 bits green, 5 bits
// blue. On the wire both devices transmit the high byte first.
package rgb565

import (
	"image"
	"image/color"
)

// RGB565 represents a 16-bit RGB565 color (5 bits red, 6 bits green, 5 bits blue).
type RGB565 struct {
	V uint16
}

// RGBA converts the RGB565 color to standard RGBA.
// Each channel is scaled from its native width to 16 bits.
func (c RGB565) RGBA() (r, g, b, a uint32) {
	r = uint32(c.V>>11) & 0x1F
	g = uint32(c.V>>5) & 0x3F
	b = uint32(c.V) & 0x1F
	r = r*0xFFFF + 15
	r /= 31
	g = g*0xFFFF + 31
	g /= 63
	b = b*0xFFFF + 15
	b /= 31
	return r, g, b, 0xFFFF
}

// toRGB565 converts any color.Color to RGB565.
func toRGB565(c color.Color) color.Color {
	if v, ok := c.(RGB565); ok {
		return v
	}
	r, g, b, _ := c.RGBA()
	// RGBA returns 16-bit channels; keep the top 5/6/5 bits.
	return RGB565{V: uint16(r>>11)<<11 | uint16(g>>10)<<5 | uint16(b>>11)}
}

// Model converts colors to RGB565.
var Model = color.ModelFunc(toRGB565)

// From packs 8-bit channel values into an RGB565 color.
func From(r, g, b uint8) RGB565 {
	return RGB565{V: uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)}
}

// Image is an in-memory RGB565 image with one uint16 per pixel.
// Pix is laid out row-major, which is also the order both the sensor fills
// it in and the display consumes it.
type Image struct {
	Pix    []uint16        // Pixel data (1 pixel per uint16)
	Stride int             // Pixels per row
	Rect   image.Rectangle // Image bounds
}

// New creates a new RGB565 image with the specified bounds.
func New(r image.Rectangle) *Image {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 {
		return &Image{Rect: r}
	}
	return &Image{
		Pix:    make([]uint16, w*h),
		Stride: w,
		Rect:   r,
	}
}

// ColorModel returns the color model of the image.
func (p *Image) ColorModel() color.Model {
	return Model
}

// Bounds returns the image bounds.
func (p *Image) Bounds() image.Rectangle {
	return p.Rect
}

// At returns the color of the pixel at (x, y).
// It implements the image.Image interface.
func (p *Image) At(x, y int) color.Color {
	return p.RGB565At(x, y)
}

// RGB565At returns the RGB565 color of the pixel at (x, y).
func (p *Image) RGB565At(x, y int) RGB565 {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return RGB565{}
	}
	return RGB565{V: p.Pix[p.PixOffset(x, y)]}
}

// Set sets the color of the pixel at (x, y).
func (p *Image) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	p.Pix[p.PixOffset(x, y)] = Model.Convert(c).(RGB565).V
}

// SetRGB565 sets the RGB565 color of the pixel at (x, y).
// This is faster than Set() as it doesn't require color conversion.
func (p *Image) SetRGB565(x, y int, c RGB565) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	p.Pix[p.PixOffset(x, y)] = c.V
}

// PixOffset returns the index in Pix of the pixel at (x, y).
func (p *Image) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x - p.Rect.Min.X)
}
