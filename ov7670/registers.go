package ov7670

import (
	"fmt"
	"time"
)

// Address is the sensor's 7-bit SCCB address (0x42 write / 0x43 read on the
// wire).
const Address byte = 0x21

// ControlBus writes sensor configuration registers. *sccb.Bus satisfies it.
type ControlBus interface {
	WriteRegister(addr, reg, value byte) error
}

const (
	regCOM7   = 0x12 // Common control 7: reset, resolution, output format
	com7Reset = 0x80

	// The sensor needs time after a software reset before it accepts
	// further register writes.
	resetSettle = 10 * time.Millisecond
)

// initSequence programs QVGA (320x240) RGB565 output with the pixel clock
// prescaled far enough down that a software polling loop can keep up with
// every edge.
var initSequence = []struct {
	reg   byte
	value byte
}{
	{0x11, 0x1F}, // CLKRC: internal clock prescale, keeps PCLK pollable
	{0x12, 0x14}, // COM7: QVGA, RGB output
	{0x40, 0xD0}, // COM15: RGB565, full 00-FF output range
	{0x0C, 0x04}, // COM3: enable downsample/crop/window
	{0x3E, 0x19}, // COM14: DCW and PCLK scaling, divide by 2
	{0x70, 0x3A}, // SCALING_XSC
	{0x71, 0x35}, // SCALING_YSC
	{0x72, 0x11}, // SCALING_DCWCTR: downsample by 2 in both directions
	{0x73, 0xF1}, // SCALING_PCLK_DIV: divide DSP clock by 2
	{0xA2, 0x02}, // SCALING_PCLK_DELAY
	{0x15, 0x00}, // COM10: default VSYNC/HREF/PCLK polarity
	{0x3A, 0x04}, // TSLB: output bit-wise reverse off, UV ordering
	{0x8C, 0x00}, // RGB444: disabled, plain RGB565
	{0x17, 0x13}, // HSTART: output window
	{0x18, 0x01}, // HSTOP
	{0x32, 0xB6}, // HREF: edge offset and window low bits
	{0x19, 0x02}, // VSTRT
	{0x1A, 0x7A}, // VSTOP
	{0x03, 0x0A}, // VREF: window low bits
	{0x13, 0xE7}, // COM8: enable AGC, AWB, AEC
	{0x00, 0x00}, // GAIN
	{0x10, 0x00}, // AECH
	{0x01, 0x40}, // BLUE: AWB blue gain
	{0x02, 0x60}, // RED: AWB red gain
	{0x4F, 0x80}, // MTX1: color matrix
	{0x50, 0x80}, // MTX2
	{0x51, 0x00}, // MTX3
	{0x52, 0x22}, // MTX4
	{0x53, 0x5E}, // MTX5
	{0x54, 0x80}, // MTX6
	{0x58, 0x9E}, // MTXS: matrix sign and auto contrast
	{0x3D, 0xC0}, // COM13: gamma enable, UV saturation auto adjust
}

// Configure resets the sensor and programs the fixed QVGA RGB565 register
// table over the control bus.
//
// The first failed write aborts configuration: a partially configured sensor
// produces meaningless video, so the caller must treat the error as fatal to
// startup rather than retry.
//
// sleep provides the post-reset settle delay; nil uses time.Sleep.
func Configure(bus ControlBus, sleep func(time.Duration)) error {
	if sleep == nil {
		sleep = time.Sleep
	}
	if err := bus.WriteRegister(Address, regCOM7, com7Reset); err != nil {
		return fmt.Errorf("ov7670: resetting sensor: %w", err)
	}
	sleep(resetSettle)
	for _, rv := range initSequence {
		if err := bus.WriteRegister(Address, rv.reg, rv.value); err != nil {
			return fmt.Errorf("ov7670: writing register 0x%02X: %w", rv.reg, err)
		}
	}
	return nil
}
