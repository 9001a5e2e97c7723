// Package sccb implements the Serial Camera Control Bus, the two-wire
// register-configuration protocol spoken by OmniVision image sensors.
//
// The bus is software-clocked: both lines are plain GPIOs toggled with
// calibrated delays, no controller peripheral is used. SCCB is close enough
// to I²C that the same start/stop/ack framing applies, but the timing
// requirements are relaxed, which is what makes bit-banging it practical.
//
// The driver owns both lines exclusively for the duration of a transaction.
package sccb

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// ErrNoAck is returned when the device does not acknowledge a transmitted
// byte. A transaction that fails this way is aborted with a stop condition so
// the bus is left idle.
var ErrNoAck = errors.New("sccb: no ack from device")

// Opts is the configuration for the bus.
type Opts struct {
	// Freq is the bus clock rate. Defaults to 100kHz, the rate OmniVision
	// sensors are specified for.
	Freq physic.Frequency

	// Sleep is the delay provider used for bit timing. Defaults to
	// time.Sleep. Tests inject a no-op to avoid wall-clock waits.
	Sleep func(time.Duration)
}

// Bus is a software-clocked two-wire register bus on a pair of GPIO lines.
type Bus struct {
	scl   gpio.PinIO
	sda   gpio.PinIO
	half  time.Duration
	sleep func(time.Duration)
}

// New creates a bus on the given clock and data lines.
//
// Both pins must already be configured (open-drain with pull-ups on real
// hardware). The bus is driven to its idle state (both lines high) before
// New returns.
//
// opts can be nil to use defaults (100kHz, time.Sleep).
func New(scl, sda gpio.PinIO, opts *Opts) (*Bus, error) {
	if scl == nil || sda == nil {
		return nil, errors.New("sccb: both clock and data lines are required")
	}
	if opts == nil {
		opts = &Opts{}
	}
	freq := opts.Freq
	if freq == 0 {
		freq = 100 * physic.KiloHertz
	}
	if freq < 0 {
		return nil, errors.New("sccb: frequency must be positive")
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	b := &Bus{
		scl:   scl,
		sda:   sda,
		half:  freq.Period() / 2,
		sleep: sleep,
	}

	// Idle state: both lines released high.
	if err := b.sda.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("sccb: driving SDA: %w", err)
	}
	if err := b.scl.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("sccb: driving SCL: %w", err)
	}
	return b, nil
}

// WriteRegister writes value to the 8-bit register reg of the device at the
// 7-bit address addr.
//
// The wire sequence is: start, addr<<1 (write), reg, value, stop, with an
// acknowledgment bit sampled after each byte. If any acknowledgment is
// missing the transaction is aborted with a stop condition and ErrNoAck is
// returned; the bus never hangs mid-transaction.
func (b *Bus) WriteRegister(addr, reg, value byte) error {
	if err := b.start(); err != nil {
		return err
	}
	for _, tx := range []struct {
		name string
		b    byte
	}{
		{"address", addr << 1},
		{"register", reg},
		{"value", value},
	} {
		if err := b.writeByte(tx.b); err != nil {
			// Leave the bus idle even on a failed transaction.
			if serr := b.stop(); serr != nil {
				return serr
			}
			return fmt.Errorf("sccb: %s byte 0x%02X: %w", tx.name, tx.b, err)
		}
	}
	return b.stop()
}

// ReadRegister reads the 8-bit register reg of the device at the 7-bit
// address addr.
//
// SCCB reads are two-phase: a write transaction selects the register, then a
// read transaction clocks the value out. The single read byte is answered
// with a NACK, per protocol.
func (b *Bus) ReadRegister(addr, reg byte) (byte, error) {
	// Phase 1: register select.
	if err := b.start(); err != nil {
		return 0, err
	}
	if err := b.writeByte(addr << 1); err != nil {
		if serr := b.stop(); serr != nil {
			return 0, serr
		}
		return 0, fmt.Errorf("sccb: address byte 0x%02X: %w", addr<<1, err)
	}
	if err := b.writeByte(reg); err != nil {
		if serr := b.stop(); serr != nil {
			return 0, serr
		}
		return 0, fmt.Errorf("sccb: register byte 0x%02X: %w", reg, err)
	}
	if err := b.stop(); err != nil {
		return 0, err
	}

	// Phase 2: read.
	if err := b.start(); err != nil {
		return 0, err
	}
	if err := b.writeByte(addr<<1 | 1); err != nil {
		if serr := b.stop(); serr != nil {
			return 0, serr
		}
		return 0, fmt.Errorf("sccb: read address byte 0x%02X: %w", addr<<1|1, err)
	}
	value, err := b.readByte()
	if err != nil {
		return 0, err
	}
	if err := b.stop(); err != nil {
		return 0, err
	}
	return value, nil
}

// String returns a string representation of the bus.
func (b *Bus) String() string {
	return fmt.Sprintf("sccb.Bus{%s, %s}", b.scl, b.sda)
}

// start drives a start condition: SDA falls while SCL is high.
func (b *Bus) start() error {
	if err := b.sda.Out(gpio.High); err != nil {
		return fmt.Errorf("sccb: driving SDA: %w", err)
	}
	if err := b.scl.Out(gpio.High); err != nil {
		return fmt.Errorf("sccb: driving SCL: %w", err)
	}
	b.sleep(b.half)
	if err := b.sda.Out(gpio.Low); err != nil {
		return fmt.Errorf("sccb: driving SDA: %w", err)
	}
	b.sleep(b.half)
	if err := b.scl.Out(gpio.Low); err != nil {
		return fmt.Errorf("sccb: driving SCL: %w", err)
	}
	return nil
}

// stop drives a stop condition: SDA rises while SCL is high. This is also
// the abort path, so it must work from any mid-transaction line state.
func (b *Bus) stop() error {
	if err := b.sda.Out(gpio.Low); err != nil {
		return fmt.Errorf("sccb: driving SDA: %w", err)
	}
	b.sleep(b.half)
	if err := b.scl.Out(gpio.High); err != nil {
		return fmt.Errorf("sccb: driving SCL: %w", err)
	}
	b.sleep(b.half)
	if err := b.sda.Out(gpio.High); err != nil {
		return fmt.Errorf("sccb: driving SDA: %w", err)
	}
	b.sleep(b.half)
	return nil
}

// writeByte shifts out one byte MSB-first and samples the acknowledgment
// bit. Returns ErrNoAck if the device leaves the data line high during the
// acknowledgment clock.
func (b *Bus) writeByte(v byte) error {
	for i := 7; i >= 0; i-- {
		if err := b.writeBit(gpio.Level(v>>uint(i)&1 == 1)); err != nil {
			return err
		}
	}
	// Release the data line so the device can pull it low.
	if err := b.sda.Out(gpio.High); err != nil {
		return fmt.Errorf("sccb: releasing SDA: %w", err)
	}
	ack, err := b.readBit()
	if err != nil {
		return err
	}
	if ack != gpio.Low {
		return ErrNoAck
	}
	return nil
}

// readByte shifts in one byte MSB-first and answers with a NACK, which is
// how a single-byte SCCB read is terminated.
func (b *Bus) readByte() (byte, error) {
	// Release the data line so the device can drive it.
	if err := b.sda.Out(gpio.High); err != nil {
		return 0, fmt.Errorf("sccb: releasing SDA: %w", err)
	}
	var v byte
	for i := 7; i >= 0; i-- {
		bit, err := b.readBit()
		if err != nil {
			return 0, err
		}
		if bit == gpio.High {
			v |= 1 << uint(i)
		}
	}
	// NACK: data line left high during the acknowledgment clock.
	if err := b.writeBit(gpio.High); err != nil {
		return 0, err
	}
	return v, nil
}

// writeBit sets the data line while the clock is low, then pulses the clock
// high for half a bit period.
func (b *Bus) writeBit(l gpio.Level) error {
	if err := b.sda.Out(l); err != nil {
		return fmt.Errorf("sccb: driving SDA: %w", err)
	}
	b.sleep(b.half)
	if err := b.scl.Out(gpio.High); err != nil {
		return fmt.Errorf("sccb: driving SCL: %w", err)
	}
	b.sleep(b.half)
	if err := b.scl.Out(gpio.Low); err != nil {
		return fmt.Errorf("sccb: driving SCL: %w", err)
	}
	return nil
}

// readBit pulses the clock high and samples the data line while it is high.
func (b *Bus) readBit() (gpio.Level, error) {
	b.sleep(b.half)
	if err := b.scl.Out(gpio.High); err != nil {
		return gpio.Low, fmt.Errorf("sccb: driving SCL: %w", err)
	}
	b.sleep(b.half)
	l := b.sda.Read()
	if err := b.scl.Out(gpio.Low); err != nil {
		return gpio.Low, fmt.Errorf("sccb: driving SCL: %w", err)
	}
	return l, nil
}
