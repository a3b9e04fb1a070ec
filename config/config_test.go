package config

import (
	"errors"
	"testing"
	"time"

	"vmcbridge/core"
	"vmcbridge/protocol"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load([]byte(`{}`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.QueueCapacity != 128 {
		t.Errorf("Expected queue capacity 128, got %d", cfg.QueueCapacity)
	}
	if cfg.DebounceMs != 100 || cfg.ServiceMs != 100 {
		t.Errorf("Expected 100ms debounce and service, got %d and %d", cfg.DebounceMs, cfg.ServiceMs)
	}
	if cfg.MaxBurst != 15 {
		t.Errorf("Expected max burst 15, got %d", cfg.MaxBurst)
	}
	if cfg.BusLayout != LayoutKeypad || cfg.PulseBackend != BackendGPIO || cfg.Transport != TransportUSB {
		t.Errorf("Unexpected string defaults: %q %q %q", cfg.BusLayout, cfg.PulseBackend, cfg.Transport)
	}
	if !cfg.LEDEnabled() {
		t.Error("Status LED should default on")
	}
	if cfg.PulseShape() != core.DefaultPulseShape {
		t.Errorf("Default pulse shape mismatch: %+v", cfg.PulseShape())
	}
	if cfg.ServiceWidth() != 100*time.Millisecond {
		t.Errorf("Expected 100ms service width, got %v", cfg.ServiceWidth())
	}
}

func TestDefaultPinout(t *testing.T) {
	pins, err := Default().Pinout()
	if err != nil {
		t.Fatalf("Pinout failed: %v", err)
	}
	for i, pin := range pins.BusRows {
		if pin != core.GPIOPin(i) {
			t.Errorf("Bus row %d should be gpio%d, got %d", i, i, pin)
		}
	}
	if pins.Service != 7 {
		t.Errorf("Expected service on gpio7, got %d", pins.Service)
	}
	if err := pins.Validate(); err != nil {
		t.Errorf("Default pinout has a conflict: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load([]byte(`{
		"bus_layout": "rotated",
		"debounce_ms": 50,
		"status_led": false,
		"pulse": {"settle_a_us": 1000, "strobe_us": 12.5, "hold_us": 2500},
		"pins": {"service": "GPIO27"}
	}`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DebounceMs != 50 {
		t.Errorf("Expected debounce 50, got %d", cfg.DebounceMs)
	}
	if cfg.LEDEnabled() {
		t.Error("Status LED should be off")
	}

	bus := cfg.BusKeymap()
	if col, row, _ := bus.Locate('5'); col != 1 || row != 4 {
		t.Errorf("Rotated layout should put '5' at (1,4), got (%d,%d)", col, row)
	}

	shape := cfg.PulseShape()
	if shape.SettleA != time.Millisecond || shape.SettleB != 0 {
		t.Errorf("Unexpected settle %v/%v", shape.SettleA, shape.SettleB)
	}
	if shape.Strobe != 12500*time.Nanosecond {
		t.Errorf("Fractional microseconds lost: %v", shape.Strobe)
	}

	pins, err := cfg.Pinout()
	if err != nil {
		t.Fatalf("Pinout failed: %v", err)
	}
	if pins.Service != 27 {
		t.Errorf("Expected service on gpio27, got %d", pins.Service)
	}
}

func TestKeypadBusKeymap(t *testing.T) {
	if Default().BusKeymap() != protocol.KeypadLayout {
		t.Error("Default bus keymap should be the keypad layout")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{"layout", `{"bus_layout": "mirrored"}`, ErrInvalidLayout},
		{"backend", `{"pulse_backend": "dma"}`, ErrInvalidBackend},
		{"transport", `{"transport": "ble"}`, ErrInvalidTransport},
		{"burst", `{"max_burst": 16}`, ErrInvalidBurst},
		{"pulse", `{"pulse": {"strobe_us": 0, "hold_us": 10, "gap_us": 5}}`, ErrInvalidPulse},
		{"pin name", `{"pins": {"service": "pd7"}}`, ErrInvalidPin},
		{"pin range", `{"pins": {"service": "gpio99"}}`, ErrInvalidPin},
		{"pin count", `{"pins": {"key_cols": ["gpio13", "gpio14"]}}`, ErrPinCount},
		{"pin conflict", `{"pins": {"service": "gpio0"}}`, core.ErrPinConflict},
		{"led conflict", `{"pins": {"status_led": "gpio7"}}`, core.ErrPinConflict},
		{"led name", `{"pins": {"status_led": "led"}}`, ErrInvalidPin},
		{"uart conflict", `{"transport": "uart", "pins": {"uart_tx": "gpio10"}}`, core.ErrPinConflict},
		{"debug uart conflict", `{"debug": true, "pins": {"uart_rx": "gpio0"}}`, core.ErrPinConflict},
	}
	for _, tt := range tests {
		_, err := Load([]byte(tt.json))
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestValidateUnusedBoardPins(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"led disabled", `{"status_led": false, "pins": {"status_led": "gpio7"}}`},
		{"uart unused", `{"pins": {"uart_tx": "gpio10"}}`},
	}
	for _, tt := range tests {
		if _, err := Load([]byte(tt.json)); err != nil {
			t.Errorf("%s: unused pin should not conflict, got %v", tt.name, err)
		}
	}
}

func TestLoadBadJSON(t *testing.T) {
	if _, err := Load([]byte(`{"debounce_ms": "fast"}`)); err == nil {
		t.Error("Expected a decode error")
	}
}

func TestParsePin(t *testing.T) {
	pin, err := ParsePin("gpio15")
	if err != nil || pin != 15 {
		t.Errorf("ParsePin(gpio15) = %d, %v", pin, err)
	}
	var nameErr *PinNameError
	if _, err := ParsePin("gpio"); !errors.As(err, &nameErr) {
		t.Errorf("Expected PinNameError, got %v", err)
	}
}
