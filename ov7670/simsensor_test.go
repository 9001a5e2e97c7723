package ov7670

import (
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// The simulated sensor replays a prerecorded trace of its output lines.
// Every sample of a control line (VSYNC, HREF, PCLK) consumes one step of
// the trace, mirroring the fact that each poll of a real line costs time.
// Samples of the data bus observe the step of the most recent control
// sample and consume nothing, since the bus holds its value around the
// latching edge.

// sensorStep is one instant of the sensor's output lines.
type sensorStep struct {
	vsync gpio.Level
	href  gpio.Level
	pclk  gpio.Level
	data  byte
}

// stepHold is how many trace steps each signal phase is held for. The
// capture loop samples at most two control lines per poll iteration, so a
// hold of four guarantees it cannot step past a phase unseen.
const stepHold = 4

type sensorScript struct {
	steps   []sensorStep
	pos     int
	latched int
	overrun int
}

// control consumes one step and returns it.
func (s *sensorScript) control() sensorStep {
	if s.pos >= len(s.steps) {
		// The trace ends in an idle state; a correct capture loop
		// returns after a bounded number of further polls. Anything
		// else is a driver bug, so fail loudly instead of hanging.
		s.overrun++
		if s.overrun > 10*len(s.steps) {
			panic("ov7670: sensor script exhausted")
		}
		return s.steps[len(s.steps)-1]
	}
	s.latched = s.pos
	st := s.steps[s.pos]
	s.pos++
	return st
}

func (s *sensorScript) latchedStep() sensorStep {
	return s.steps[s.latched]
}

type ctrlPin struct {
	gpiotest.Pin
	s   *sensorScript
	sel func(sensorStep) gpio.Level
}

func (p *ctrlPin) Read() gpio.Level {
	return p.sel(p.s.control())
}

type dataPin struct {
	gpiotest.Pin
	s   *sensorScript
	bit uint
}

func (p *dataPin) Read() gpio.Level {
	return gpio.Level(p.s.latchedStep().data>>p.bit&1 == 1)
}

// simTiming describes the polarity the simulated sensor drives.
type simTiming struct {
	vsActive  gpio.Level
	hrActive  gpio.Level
	clkActive gpio.Level
}

// ov7670 reset behavior: sync pulses and latch edge all active-high.
func defaultTiming() simTiming {
	return simTiming{vsActive: gpio.High, hrActive: gpio.High, clkActive: gpio.High}
}

// buildFrameScript produces the line trace for one frame whose rows carry
// the given raw bytes (two per pixel, high byte first).
func buildFrameScript(rows [][]byte, tm simTiming) *sensorScript {
	var steps []sensorStep
	vsIdle, hrIdle, clkIdle := !tm.vsActive, !tm.hrActive, !tm.clkActive

	emit := func(n int, vs, hr, clk gpio.Level, data byte) {
		for i := 0; i < n; i++ {
			steps = append(steps, sensorStep{vsync: vs, href: hr, pclk: clk, data: data})
		}
	}

	// Inter-frame idle, then the frame sync pulse and its trailing edge.
	emit(stepHold, vsIdle, hrIdle, clkIdle, 0)
	emit(stepHold, tm.vsActive, hrIdle, clkIdle, 0)
	emit(stepHold, vsIdle, hrIdle, clkIdle, 0)

	for _, row := range rows {
		// Row gap.
		emit(stepHold, vsIdle, hrIdle, clkIdle, 0)
		// Active row: one clock cycle per byte, data valid on the
		// latching phase.
		for _, b := range row {
			emit(stepHold, vsIdle, tm.hrActive, clkIdle, b)
			emit(stepHold, vsIdle, tm.hrActive, tm.clkActive, b)
		}
		// Trailing clock-idle slice so the last latched cycle completes
		// before HREF deasserts.
		emit(stepHold, vsIdle, tm.hrActive, clkIdle, 0)
		emit(stepHold, vsIdle, hrIdle, clkIdle, 0)
	}

	// Trailing idle for the driver's final polls.
	emit(4*stepHold, vsIdle, hrIdle, clkIdle, 0)
	return &sensorScript{steps: steps}
}

// simPins binds a script to a full set of capture pins.
func simPins(s *sensorScript) Pins {
	p := Pins{
		VSYNC: &ctrlPin{Pin: gpiotest.Pin{N: "VSYNC"}, s: s, sel: func(st sensorStep) gpio.Level { return st.vsync }},
		HREF:  &ctrlPin{Pin: gpiotest.Pin{N: "HREF"}, s: s, sel: func(st sensorStep) gpio.Level { return st.href }},
		PCLK:  &ctrlPin{Pin: gpiotest.Pin{N: "PCLK"}, s: s, sel: func(st sensorStep) gpio.Level { return st.pclk }},
	}
	for i := range p.D {
		p.D[i] = &dataPin{Pin: gpiotest.Pin{N: "D"}, s: s, bit: uint(i)}
	}
	return p
}

// frameBytes expands a pixel frame into per-row raw byte streams, high byte
// first, optionally appending extra pixels past the nominal row length.
func frameBytes(pix []uint16, w int, extra []uint16) [][]byte {
	var rows [][]byte
	for i := 0; i < len(pix); i += w {
		var row []byte
		for _, v := range pix[i : i+w] {
			row = append(row, byte(v>>8), byte(v))
		}
		for _, v := range extra {
			row = append(row, byte(v>>8), byte(v))
		}
		rows = append(rows, row)
	}
	return rows
}
