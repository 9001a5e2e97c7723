// Package camview streams live video from an OV7670 CMOS camera to an ST7735
// TFT LCD, one full RGB565 frame at a time, using nothing but GPIO lines.
//
// No SPI or I²C peripheral is assumed: the camera's control bus is bit-banged
// SCCB, its pixel bus is polled in software, and the display's 4-wire serial
// bus is clocked out bit by bit. The whole pipeline runs on a single
// goroutine with no timeouts; a stalled sensor blocks the loop instead of
// failing.
//
// # Hardware Connection
//
// The OV7670 camera module:
//
//	Camera Pin → System Pin
//	GND        → GND
//	3.3V       → 3.3V
//	SIOC       → GPIO (SCCB clock)
//	SIOD       → GPIO (SCCB data)
//	VSYNC      → GPIO input
//	HREF       → GPIO input
//	PCLK       → GPIO input
//	D0..D7     → GPIO inputs (pixel bus)
//	XCLK       → externally supplied clock (the driver does not generate it)
//
// The ST7735 display:
//
//	Display Pin → System Pin
//	GND         → GND
//	VCC         → 3.3V
//	SCK         → GPIO output (serial clock)
//	SDA         → GPIO output (serial data)
//	DC          → GPIO output (data/command select)
//	CS          → GPIO output (chip select)
//	RST         → Optional: GPIO for hardware reset
//
// # Basic Usage
//
//	package main
//
//	import (
//		"log"
//		"time"
//
//		"github.com/camview/camview"
//		"github.com/camview/camview/ov7670"
//		"github.com/camview/camview/sccb"
//		"github.com/camview/camview/st7735"
//		"periph.io/x/conn/v3/gpio/gpioreg"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		host.Init()
//
//		cam, _ := ov7670.New(ov7670.Pins{
//			VSYNC: gpioreg.ByName("GPIO17"),
//			HREF:  gpioreg.ByName("GPIO27"),
//			PCLK:  gpioreg.ByName("GPIO22"),
//			// D0..D7 omitted for brevity.
//		}, &ov7670.Opts{W: 160, H: 120})
//
//		lcd, _ := st7735.New(st7735.Pins{
//			SCK: gpioreg.ByName("GPIO11"),
//			SDA: gpioreg.ByName("GPIO10"),
//			DC:  gpioreg.ByName("GPIO24"),
//			CS:  gpioreg.ByName("GPIO8"),
//			RST: gpioreg.ByName("GPIO25"),
//		}, &st7735.Opts{W: 160, H: 120})
//
//		bus, _ := sccb.New(gpioreg.ByName("GPIO3"), gpioreg.ByName("GPIO2"), nil)
//
//		p, err := camview.New(cam, lcd, &camview.Opts{Bus: bus})
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Fatal(p.Run())
//	}
//
// # Timing
//
// Polling the pixel bus from software is the pipeline's bottleneck: the
// sensor must be configured with a heavily prescaled pixel clock (the
// register table in package ov7670 does this via CLKRC) or the capture loop
// misses edges and produces torn frames. GPIO toggling on the display side
// is far below the ST7735's serial clock limit, so frame pushes need no
// pacing.
//
// # Compatibility with periph.io
//
// All drivers take periph.io/x/conn/v3 gpio pin interfaces, and the st7735
// device implements the display.Drawer interface, so it can be used with any
// periph.io tool expecting one.
package camview
