//go:build rp2040 || rp2350

package main

import (
	"image/color"
	"machine"
	"time"

	"tinygo.org/x/drivers/ws2812"

	"vmcbridge/core"
)

// Status colours, kept dim: the LED sits next to the keypad
var (
	colorOff      = color.RGBA{}
	colorIdle     = color.RGBA{G: 8}
	colorArmed    = color.RGBA{B: 24}
	colorPulse    = color.RGBA{R: 24, G: 24, B: 24}
	colorHostGone = color.RGBA{R: 24, G: 10}
	colorError    = color.RGBA{R: 32}
)

// statusLED shows the bridge state on a single WS2812
type statusLED struct {
	dev  ws2812.Device
	buf  [1]color.RGBA
	last color.RGBA
}

// InitStatusLED configures pin for a WS2812 and turns it off
func InitStatusLED(pin machine.Pin) *statusLED {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	s := &statusLED{dev: ws2812.NewWS2812(pin)}
	s.last = colorError // force the first write
	s.Set(colorOff)
	return s
}

// Set shows c, skipping the write if it is already shown
func (s *statusLED) Set(c color.RGBA) {
	if s == nil || c == s.last {
		return
	}
	s.buf[0] = c
	if err := s.dev.WriteColors(s.buf[:]); err != nil {
		return
	}
	s.last = c
}

// Run mirrors the bridge state until the program ends. A pulse flashes
// white for one period.
func (s *statusLED) Run(b *core.Bridge) {
	var pulses uint32
	for {
		st := b.Stats()
		switch {
		case st.Pulse.Pulses != pulses:
			pulses = st.Pulse.Pulses
			s.Set(colorPulse)
		case b.HostGone():
			s.Set(colorHostGone)
		case !b.Pulser().Idle():
			s.Set(colorArmed)
		default:
			s.Set(colorIdle)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Blink flashes c forever; used when setup fails
func (s *statusLED) Blink(c color.RGBA) {
	for {
		s.Set(c)
		time.Sleep(100 * time.Millisecond)
		s.Set(colorOff)
		time.Sleep(100 * time.Millisecond)
	}
}
