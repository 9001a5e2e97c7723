package camview

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/camview/camview/ov7670"
	"github.com/camview/camview/st7735/rgb565"
)

// Camera is the pipeline's frame source. *ov7670.Dev satisfies it.
type Camera interface {
	// CaptureFrame blocks until one complete frame has been written to pix.
	CaptureFrame(pix []uint16) error
	Width() int
	Height() int
}

// Display is the sink captured frames are pushed to. *st7735.Dev satisfies it.
type Display interface {
	// PushFrame streams a full frame of RGB565 pixels to the panel.
	PushFrame(pix []uint16) error
	Bounds() image.Rectangle
}

// Stats counts pipeline activity.
type Stats struct {
	Frames int // frames captured and pushed
}

// Opts is the configuration for the pipeline.
type Opts struct {
	// Bus is the sensor's control bus. If non-nil, the sensor is
	// programmed with its fixed register table before the first capture.
	// A failed write is fatal: a partially configured sensor produces
	// meaningless video, so New returns the error instead of retrying.
	Bus ov7670.ControlBus

	// Sleep is the delay provider for configuration settle times.
	// Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Pipeline sequences sensor configuration, frame capture and display output.
type Pipeline struct {
	cam   Camera
	lcd   Display
	frame *rgb565.Image
	stats Stats
}

// New creates the pipeline and, if a control bus is provided, configures the
// sensor over it.
//
// The sensor and display resolutions must match exactly: the frame buffer is
// sized once from them and reused for every frame.
func New(cam Camera, lcd Display, opts *Opts) (*Pipeline, error) {
	if cam == nil || lcd == nil {
		return nil, errors.New("camview: both a camera and a display are required")
	}
	if opts == nil {
		opts = &Opts{}
	}
	b := lcd.Bounds()
	if cam.Width() != b.Dx() || cam.Height() != b.Dy() {
		return nil, fmt.Errorf("camview: sensor %dx%d does not match display %dx%d",
			cam.Width(), cam.Height(), b.Dx(), b.Dy())
	}

	if opts.Bus != nil {
		if err := ov7670.Configure(opts.Bus, opts.Sleep); err != nil {
			return nil, fmt.Errorf("camview: configuring sensor: %w", err)
		}
	}

	return &Pipeline{
		cam:   cam,
		lcd:   lcd,
		frame: rgb565.New(image.Rect(0, 0, cam.Width(), cam.Height())),
	}, nil
}

// Step captures one frame into the pipeline's buffer and pushes it to the
// display. It blocks for as long as the capture does.
func (p *Pipeline) Step() error {
	if err := p.cam.CaptureFrame(p.frame.Pix); err != nil {
		return fmt.Errorf("camview: capturing frame: %w", err)
	}
	if err := p.lcd.PushFrame(p.frame.Pix); err != nil {
		return fmt.Errorf("camview: pushing frame: %w", err)
	}
	p.stats.Frames++
	return nil
}

// Run loops Step forever. It returns only if a step fails; with correctly
// sized buffers that does not happen, so the loop is the program's lifetime.
func (p *Pipeline) Run() error {
	for {
		if err := p.Step(); err != nil {
			return err
		}
	}
}

// Stats returns a copy of the pipeline's frame counters.
func (p *Pipeline) Stats() Stats {
	return p.stats
}

// String returns a string representation of the pipeline.
func (p *Pipeline) String() string {
	b := p.frame.Bounds()
	return fmt.Sprintf("camview.Pipeline{%dx%d}", b.Dx(), b.Dy())
}
