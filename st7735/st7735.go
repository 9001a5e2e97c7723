// Package st7735 controls an ST7735 TFT LCD over a bit-banged 4-wire serial
// bus.
//
// The controller is written through four GPIO lines (clock, data,
// data/command select, chip select) plus an optional reset line; every byte
// is shifted out MSB-first in software, one clock pulse per bit, so no SPI
// peripheral is assumed. The bus is write-only: there is no acknowledgment
// path, and a wiring fault shows up only as wrong pixels on the panel.
//
// See the examples for how to use this package.
package st7735

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/camview/camview/st7735/rgb565"
	"periph.io/x/conn/v3/gpio"
)

// Controller commands used by this driver.
const (
	cmdNOP     = 0x00 // No operation
	cmdSWRESET = 0x01 // Software reset
	cmdSLPOUT  = 0x11 // Sleep out
	cmdINVOFF  = 0x20 // Display inversion off
	cmdINVON   = 0x21 // Display inversion on
	cmdDISPOFF = 0x28 // Display off
	cmdDISPON  = 0x29 // Display on
	cmdCASET   = 0x2A // Column address set
	cmdRASET   = 0x2B // Row address set
	cmdRAMWR   = 0x2C // Memory write
	cmdMADCTL  = 0x36 // Memory data access control
	cmdCOLMOD  = 0x3A // Interface pixel format
)

// MADCTL bits.
const (
	madctlMY  = 0x80 // Row address order
	madctlMX  = 0x40 // Column address order
	madctlBGR = 0x08 // Blue-green-red panel wiring
)

// Opts is the configuration for the ST7735 display.
type Opts struct {
	// Display dimensions in pixels
	W int // Width (default: 128, must be ≤132)
	H int // Height (default: 160, must be ≤162)

	// Panel variant adjustments
	Rotated bool // 180° rotation
	BGR     bool // Panel with blue and red swapped

	// Sleep is the delay provider for the controller's documented settle
	// times. Defaults to time.Sleep. Tests inject a no-op.
	Sleep func(time.Duration)
}

// Pins is the set of display control lines the driver drives.
// All of them must already be configured as digital outputs.
type Pins struct {
	SCK gpio.PinOut // Serial clock
	SDA gpio.PinOut // Serial data
	DC  gpio.PinOut // Data/Command select (low = command)
	CS  gpio.PinOut // Chip select (active low)
	RST gpio.PinIO  // Reset pin (optional, nil if not used)
}

// Dev is the device handle for the ST7735 display.
type Dev struct {
	// Control lines
	sck gpio.PinOut
	sda gpio.PinOut
	dc  gpio.PinOut
	cs  gpio.PinOut
	rst gpio.PinIO

	// Display geometry
	rect image.Rectangle

	// For lazy buffering in Draw
	next *rgb565.Image

	sleep func(time.Duration)

	// State
	halted bool
}

// Settle times from the controller datasheet. SWRESET and SLPOUT need the
// full 120ms before the next command is valid.
const (
	resetHold    = 120 * time.Millisecond
	cmdSettle    = 120 * time.Millisecond
	colmodSettle = 10 * time.Millisecond
)

// New creates an ST7735 device on the given lines and runs the
// initialization sequence: hardware reset pulse (if a reset line is wired),
// software reset, sleep-out, 16-bit color mode, orientation, display-on and
// a GRAM clear.
//
// opts can be nil to use defaults (128x160 panel).
func New(p Pins, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{W: 128, H: 160}
	}
	w, h := opts.W, opts.H
	if w == 0 && h == 0 {
		w, h = 128, 160
	}
	if w <= 0 || w > 132 {
		return nil, errors.New("st7735: width must be between 1 and 132")
	}
	if h <= 0 || h > 162 {
		return nil, errors.New("st7735: height must be between 1 and 162")
	}
	if p.SCK == nil || p.SDA == nil || p.DC == nil || p.CS == nil {
		return nil, errors.New("st7735: SCK, SDA, DC and CS lines are required")
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	d := &Dev{
		sck:   p.SCK,
		sda:   p.SDA,
		dc:    p.DC,
		cs:    p.CS,
		rst:   p.RST,
		rect:  image.Rect(0, 0, w, h),
		sleep: sleep,
	}

	if err := d.init(opts); err != nil {
		return nil, err
	}
	return d, nil
}

// init sends the initialization sequence to the display.
func (d *Dev) init(opts *Opts) error {
	// Idle bus: chip deselected, clock low.
	if err := d.cs.Out(gpio.High); err != nil {
		return fmt.Errorf("st7735: releasing CS: %w", err)
	}
	if err := d.sck.Out(gpio.Low); err != nil {
		return fmt.Errorf("st7735: driving SCK: %w", err)
	}

	// Hardware reset pulse (if the RST line is wired).
	if d.rst != nil {
		if err := d.rst.Out(gpio.Low); err != nil {
			return fmt.Errorf("st7735: failed to pull RST low: %w", err)
		}
		d.sleep(resetHold)
		if err := d.rst.Out(gpio.High); err != nil {
			return fmt.Errorf("st7735: failed to pull RST high: %w", err)
		}
		d.sleep(resetHold)
	}

	if err := d.WriteCommand(cmdSWRESET); err != nil {
		return err
	}
	d.sleep(cmdSettle)

	if err := d.WriteCommand(cmdSLPOUT); err != nil {
		return err
	}
	d.sleep(cmdSettle)

	// 16-bit RGB565 over the serial interface.
	if err := d.WriteCommand(cmdCOLMOD); err != nil {
		return err
	}
	if err := d.WriteData(0x05); err != nil {
		return err
	}
	d.sleep(colmodSettle)

	madctl := byte(0)
	if opts.Rotated {
		madctl |= madctlMY | madctlMX
	}
	if opts.BGR {
		madctl |= madctlBGR
	}
	if err := d.WriteCommand(cmdMADCTL); err != nil {
		return err
	}
	if err := d.WriteData(madctl); err != nil {
		return err
	}

	if err := d.WriteCommand(cmdDISPON); err != nil {
		return err
	}
	d.sleep(cmdSettle)

	// Clear GRAM so the panel does not show power-on noise.
	return d.fill(rgb565.RGB565{})
}

// WriteCommand transmits a single command byte as one framed transfer:
// chip select asserted, DC low, 8 bits MSB-first, chip select released.
func (d *Dev) WriteCommand(b byte) error {
	return d.writeByte(gpio.Low, b)
}

// WriteData transmits a single data byte as one framed transfer:
// chip select asserted, DC high, 8 bits MSB-first, chip select released.
func (d *Dev) WriteData(b byte) error {
	return d.writeByte(gpio.High, b)
}

// writeByte shifts out one byte with the given DC level. Chip select is
// asserted and released around every byte, so command and data transfers are
// never interleaved within a frame.
//
// GPIO toggling from software is far below the controller's serial clock
// limit, so no explicit bit delay is needed.
func (d *Dev) writeByte(mode gpio.Level, b byte) error {
	if err := d.cs.Out(gpio.Low); err != nil {
		return fmt.Errorf("st7735: asserting CS: %w", err)
	}
	if err := d.dc.Out(mode); err != nil {
		return fmt.Errorf("st7735: driving DC: %w", err)
	}
	for i := 7; i >= 0; i-- {
		if err := d.sda.Out(gpio.Level(b>>uint(i)&1 == 1)); err != nil {
			return fmt.Errorf("st7735: driving SDA: %w", err)
		}
		if err := d.sck.Out(gpio.High); err != nil {
			return fmt.Errorf("st7735: driving SCK: %w", err)
		}
		if err := d.sck.Out(gpio.Low); err != nil {
			return fmt.Errorf("st7735: driving SCK: %w", err)
		}
	}
	return d.cs.Out(gpio.High)
}

// setWindow sets the drawing window and leaves the controller ready for a
// RAMWR burst.
func (d *Dev) setWindow(r image.Rectangle) error {
	// The draw sequence is not accepted without a preceding NOP.
	if err := d.WriteCommand(cmdNOP); err != nil {
		return err
	}

	if err := d.WriteCommand(cmdCASET); err != nil {
		return err
	}
	for _, b := range []byte{
		byte(r.Min.X >> 8), byte(r.Min.X),
		byte((r.Max.X - 1) >> 8), byte(r.Max.X - 1),
	} {
		if err := d.WriteData(b); err != nil {
			return err
		}
	}

	if err := d.WriteCommand(cmdRASET); err != nil {
		return err
	}
	for _, b := range []byte{
		byte(r.Min.Y >> 8), byte(r.Min.Y),
		byte((r.Max.Y - 1) >> 8), byte(r.Max.Y - 1),
	} {
		if err := d.WriteData(b); err != nil {
			return err
		}
	}

	return d.WriteCommand(cmdRAMWR)
}

// PushFrame streams a full frame of RGB565 pixels to the display in
// row-major order, high byte first. The controller's address counter
// auto-increments, so no per-pixel addressing is needed.
//
// pix must hold exactly W*H pixels.
func (d *Dev) PushFrame(pix []uint16) error {
	if d.halted {
		return errors.New("st7735: halted")
	}
	if len(pix) != d.rect.Dx()*d.rect.Dy() {
		return errors.New("st7735: invalid buffer size")
	}
	if err := d.setWindow(d.rect); err != nil {
		return err
	}
	for _, v := range pix {
		if err := d.WriteData(byte(v >> 8)); err != nil {
			return err
		}
		if err := d.WriteData(byte(v)); err != nil {
			return err
		}
	}
	return nil
}

// Fill paints the whole display with a solid color.
func (d *Dev) Fill(c color.Color) error {
	if d.halted {
		return errors.New("st7735: halted")
	}
	return d.fill(rgb565.Model.Convert(c).(rgb565.RGB565))
}

func (d *Dev) fill(c rgb565.RGB565) error {
	if err := d.setWindow(d.rect); err != nil {
		return err
	}
	hi, lo := byte(c.V>>8), byte(c.V)
	for i := 0; i < d.rect.Dx()*d.rect.Dy(); i++ {
		if err := d.WriteData(hi); err != nil {
			return err
		}
		if err := d.WriteData(lo); err != nil {
			return err
		}
	}
	return nil
}

// ColorModel returns the color model of the display.
func (d *Dev) ColorModel() color.Model {
	return rgb565.Model
}

// Bounds returns the image bounds of the display.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Draw draws an image onto the display. It implements display.Drawer.
//
// A full-frame *rgb565.Image is streamed directly; anything else is
// converted into an internal buffer and only the dst window is transmitted.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	if d.halted {
		return errors.New("st7735: halted")
	}

	dst = dst.Intersect(d.rect)
	if dst.Empty() {
		return nil
	}

	// Fast path: full-frame RGB565 source.
	if srcImg, ok := src.(*rgb565.Image); ok {
		if dst == d.rect && sp == (image.Point{}) && srcImg.Rect == d.rect {
			return d.PushFrame(srcImg.Pix)
		}
	}

	if d.next == nil {
		d.next = rgb565.New(d.rect)
	}
	draw.Draw(d.next, dst, src, sp, draw.Src)

	if err := d.setWindow(dst); err != nil {
		return err
	}
	for y := dst.Min.Y; y < dst.Max.Y; y++ {
		for x := dst.Min.X; x < dst.Max.X; x++ {
			v := d.next.Pix[d.next.PixOffset(x, y)]
			if err := d.WriteData(byte(v >> 8)); err != nil {
				return err
			}
			if err := d.WriteData(byte(v)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Invert inverts the display colors.
func (d *Dev) Invert(invert bool) error {
	if d.halted {
		return errors.New("st7735: halted")
	}
	if invert {
		return d.WriteCommand(cmdINVON)
	}
	return d.WriteCommand(cmdINVOFF)
}

// Halt turns the display off. After calling Halt, the device must be
// re-initialized before it responds to further drawing calls.
func (d *Dev) Halt() error {
	if d.halted {
		return nil
	}
	d.halted = true
	return d.WriteCommand(cmdDISPOFF)
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("st7735.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}
