// Package ov7670 captures frames from an OV7670 CMOS image sensor wired to
// plain GPIO lines.
//
// The sensor pushes pixels out on an 8-bit parallel bus paced by its own
// pixel clock, with VSYNC delimiting frames and HREF delimiting rows. There
// is no capture peripheral or DMA involved: CaptureFrame polls the sync and
// clock lines and reassembles pixel bytes in software. The polling loop
// between clock edges is the system's tightest real-time constraint — a
// missed edge desyncs the rest of the frame — so the sensor's pixel clock
// must be prescaled (see the CLKRC entry in the register table) to a rate
// the polling loop can sustain.
//
// Sensor configuration goes over the separate SCCB control bus; see
// Configure.
package ov7670

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// RowTermination selects which signal is authoritative for the end of a row.
type RowTermination int

const (
	// RowByPixelCount ends a row once Opts.W pixels have been latched.
	// Remaining clock edges before HREF deasserts are not sampled.
	RowByPixelCount RowTermination = iota
	// RowByHRef keeps consuming clock edges until HREF deasserts and
	// discards any pixels past Opts.W.
	RowByHRef
)

// Pins is the set of sensor output lines the capture driver samples.
// All of them must already be configured as digital inputs.
type Pins struct {
	VSYNC gpio.PinIn
	HREF  gpio.PinIn
	PCLK  gpio.PinIn
	D     [8]gpio.PinIn // D[0] is the least significant bus line
}

// Opts is the configuration for the capture driver.
//
// The polarity fields default to the OV7670's reset behavior: VSYNC pulses
// high between frames, HREF is high while a row is valid, and data is
// latched on the rising clock edge. Other sensors (or a reprogrammed COM10
// register) may need them flipped.
type Opts struct {
	W int // Frame width in pixels
	H int // Frame height in pixels

	VSyncActiveLow bool // VSYNC sync pulse is low instead of high
	HRefActiveLow  bool // HREF is low while a row is valid
	LatchOnFalling bool // latch data on the falling clock edge

	RowTerm RowTermination
}

// Dev is the capture handle for one sensor.
type Dev struct {
	vsync gpio.PinIn
	href  gpio.PinIn
	pclk  gpio.PinIn
	data  [8]gpio.PinIn

	w, h      int
	vsActive  gpio.Level
	hrActive  gpio.Level
	clkActive gpio.Level
	rowTerm   RowTermination
}

// New creates a capture driver for a sensor wired to the given lines.
func New(p Pins, opts *Opts) (*Dev, error) {
	if opts == nil {
		return nil, errors.New("ov7670: options with frame dimensions are required")
	}
	if opts.W <= 0 || opts.H <= 0 {
		return nil, errors.New("ov7670: width and height must be positive")
	}
	if p.VSYNC == nil || p.HREF == nil || p.PCLK == nil {
		return nil, errors.New("ov7670: VSYNC, HREF and PCLK lines are required")
	}
	for i, d := range p.D {
		if d == nil {
			return nil, fmt.Errorf("ov7670: data line D%d is required", i)
		}
	}

	d := &Dev{
		vsync:     p.VSYNC,
		href:      p.HREF,
		pclk:      p.PCLK,
		data:      p.D,
		w:         opts.W,
		h:         opts.H,
		vsActive:  gpio.High,
		hrActive:  gpio.High,
		clkActive: gpio.High,
		rowTerm:   opts.RowTerm,
	}
	if opts.VSyncActiveLow {
		d.vsActive = gpio.Low
	}
	if opts.HRefActiveLow {
		d.hrActive = gpio.Low
	}
	if opts.LatchOnFalling {
		d.clkActive = gpio.Low
	}
	return d, nil
}

// CaptureFrame blocks until one complete frame has been sampled into pix in
// row-major order, two bytes per pixel, high byte first.
//
// pix must hold exactly W*H pixels; any other length is a configuration
// error. There is no timeout: if the sensor never produces a sync edge,
// CaptureFrame blocks forever. The surrounding system deliberately has no
// supervisory recovery layer.
func (d *Dev) CaptureFrame(pix []uint16) error {
	if len(pix) != d.w*d.h {
		return errors.New("ov7670: invalid buffer size")
	}

	// Wait for the frame sync pulse, then for its trailing edge. Pixel
	// data is only valid outside the pulse.
	for d.vsync.Read() != d.vsActive {
	}
	for d.vsync.Read() == d.vsActive {
	}

	i := 0
	for row := 0; row < d.h; row++ {
		for d.href.Read() != d.hrActive {
		}
		if d.rowTerm == RowByHRef {
			i = d.captureRowByHRef(pix, i)
		} else {
			i = d.captureRowByCount(pix, i)
		}
	}
	return nil
}

// Width returns the configured frame width in pixels.
func (d *Dev) Width() int { return d.w }

// Height returns the configured frame height in pixels.
func (d *Dev) Height() int { return d.h }

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("ov7670.Dev{%dx%d}", d.w, d.h)
}

// captureRowByCount latches exactly w pixels, then drains the rest of the
// row so the next HREF wait does not retrigger on the current row.
func (d *Dev) captureRowByCount(pix []uint16, i int) int {
	for col := 0; col < d.w; col++ {
		hi := d.latchByte()
		lo := d.latchByte()
		pix[i] = uint16(hi)<<8 | uint16(lo)
		i++
	}
	for d.href.Read() == d.hrActive {
	}
	return i
}

// captureRowByHRef latches pixels until HREF deasserts. Clock edges past the
// configured row length are still consumed, but their pixels are discarded.
func (d *Dev) captureRowByHRef(pix []uint16, i int) int {
	rowEnd := i + d.w
	for {
		hi, ok := d.latchByteInRow()
		if !ok {
			break
		}
		lo, ok := d.latchByteInRow()
		if !ok {
			break
		}
		if i < rowEnd {
			pix[i] = uint16(hi)<<8 | uint16(lo)
			i++
		}
	}
	return rowEnd
}

// latchByte waits out the remainder of the current clock cycle, then samples
// the data bus on the next latching edge.
func (d *Dev) latchByte() byte {
	for d.pclk.Read() == d.clkActive {
	}
	for d.pclk.Read() != d.clkActive {
	}
	return d.sampleBus()
}

// latchByteInRow is latchByte with a row-end guard: it gives up as soon as
// HREF deasserts, so a row with no further edges cannot block.
func (d *Dev) latchByteInRow() (byte, bool) {
	for d.pclk.Read() == d.clkActive {
		if d.href.Read() != d.hrActive {
			return 0, false
		}
	}
	for d.pclk.Read() != d.clkActive {
		if d.href.Read() != d.hrActive {
			return 0, false
		}
	}
	return d.sampleBus(), true
}

// sampleBus reads the 8 data lines into one byte.
func (d *Dev) sampleBus() byte {
	var b byte
	for i := range d.data {
		if d.data[i].Read() == gpio.High {
			b |= 1 << uint(i)
		}
	}
	return b
}
