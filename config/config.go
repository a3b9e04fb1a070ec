// Package config loads the bridge configuration from JSON.
package config

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"vmcbridge/core"
	"vmcbridge/protocol"
)

// Accepted values for the string options
const (
	LayoutKeypad  = "keypad"
	LayoutRotated = "rotated"

	BackendGPIO = "gpio"
	BackendPIO  = "pio"

	TransportUSB  = "usb"
	TransportUART = "uart"
)

var (
	ErrInvalidLayout    = errors.New("config: bus_layout must be keypad or rotated")
	ErrInvalidBackend   = errors.New("config: pulse_backend must be gpio or pio")
	ErrInvalidTransport = errors.New("config: transport must be usb or uart")
	ErrInvalidPin       = errors.New("config: bad pin name")
	ErrPinCount         = errors.New("config: wrong number of pins")
	ErrInvalidPulse     = errors.New("config: pulse strobe and hold must be positive")
	ErrInvalidBurst     = errors.New("config: max_burst must be below the endpoint size")
)

// PulseConfig holds the pulse phase widths in microseconds
type PulseConfig struct {
	SettleAUs   float64 `json:"settle_a_us"`
	SettleBUs   float64 `json:"settle_b_us"`
	StrobeUs    float64 `json:"strobe_us"`
	GapUs       float64 `json:"gap_us"`
	Col0ExtraUs float64 `json:"col0_extra_us"`
	HoldUs      float64 `json:"hold_us"`
}

// PinConfig names every GPIO the bridge uses, e.g. "gpio4"
type PinConfig struct {
	KeyCols   []string `json:"key_cols"`
	KeyRows   []string `json:"key_rows"`
	BusSense  []string `json:"bus_sense"`
	BusRows   []string `json:"bus_rows"`
	Service   string   `json:"service"`
	StatusLED string   `json:"status_led"`
	UARTTX    string   `json:"uart_tx"`
	UARTRX    string   `json:"uart_rx"`
}

// Config is the complete bridge configuration
type Config struct {
	QueueCapacity int         `json:"queue_capacity"`
	DebounceMs    uint32      `json:"debounce_ms"`
	ServiceMs     uint32      `json:"service_ms"`
	MaxBurst      int         `json:"max_burst"`
	BusLayout     string      `json:"bus_layout"`
	Pulse         PulseConfig `json:"pulse"`
	PulseBackend  string      `json:"pulse_backend"`
	Transport     string      `json:"transport"`
	UARTBaud      uint32      `json:"uart_baud"`
	StatusLED     *bool       `json:"status_led,omitempty"`
	Debug         bool        `json:"debug"`
	Pins          PinConfig   `json:"pins"`
}

// Load parses a JSON configuration, applies defaults and validates it
func Load(jsonData []byte) (*Config, error) {
	var config Config

	if err := json.Unmarshal(jsonData, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns the configuration used when no JSON is supplied
func Default() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

// applyDefaults fills in missing configuration values
func applyDefaults(config *Config) {
	if config.QueueCapacity == 0 {
		config.QueueCapacity = protocol.QueueCapacity
	}
	if config.DebounceMs == 0 {
		config.DebounceMs = core.DefaultDebounceMs
	}
	if config.ServiceMs == 0 {
		config.ServiceMs = uint32(core.DefaultServiceWidth / time.Millisecond)
	}
	if config.MaxBurst == 0 {
		config.MaxBurst = protocol.MaxBurst
	}
	if config.BusLayout == "" {
		config.BusLayout = LayoutKeypad
	}
	if config.PulseBackend == "" {
		config.PulseBackend = BackendGPIO
	}
	if config.Transport == "" {
		config.Transport = TransportUSB
	}
	if config.UARTBaud == 0 {
		config.UARTBaud = 115200
	}
	if config.StatusLED == nil {
		on := true
		config.StatusLED = &on
	}

	// An all-zero pulse section means the stock timing
	if config.Pulse == (PulseConfig{}) {
		config.Pulse = pulseFromShape(core.DefaultPulseShape)
	}

	pins := &config.Pins
	if len(pins.BusRows) == 0 {
		pins.BusRows = pinRange(0, protocol.Rows)
	}
	if pins.Service == "" {
		pins.Service = "gpio7"
	}
	if pins.UARTTX == "" {
		pins.UARTTX = "gpio8"
	}
	if pins.UARTRX == "" {
		pins.UARTRX = "gpio9"
	}
	if len(pins.BusSense) == 0 {
		pins.BusSense = pinRange(10, protocol.Columns)
	}
	if len(pins.KeyCols) == 0 {
		pins.KeyCols = pinRange(13, protocol.Columns)
	}
	if len(pins.KeyRows) == 0 {
		pins.KeyRows = pinRange(16, protocol.Rows)
	}
	if pins.StatusLED == "" {
		pins.StatusLED = "gpio26"
	}
}

func pinRange(first, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "gpio" + strconv.Itoa(first+i)
	}
	return out
}

func usToDuration(us float64) time.Duration {
	return time.Duration(us * float64(time.Microsecond))
}

func durationToUs(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}

func pulseFromShape(s core.PulseShape) PulseConfig {
	return PulseConfig{
		SettleAUs:   durationToUs(s.SettleA),
		SettleBUs:   durationToUs(s.SettleB),
		StrobeUs:    durationToUs(s.Strobe),
		GapUs:       durationToUs(s.Gap),
		Col0ExtraUs: durationToUs(s.Col0Extra),
		HoldUs:      durationToUs(s.Hold),
	}
}

// Validate checks option values and pin assignments
func (c *Config) Validate() error {
	switch c.BusLayout {
	case LayoutKeypad, LayoutRotated:
	default:
		return ErrInvalidLayout
	}
	switch c.PulseBackend {
	case BackendGPIO, BackendPIO:
	default:
		return ErrInvalidBackend
	}
	switch c.Transport {
	case TransportUSB, TransportUART:
	default:
		return ErrInvalidTransport
	}
	if c.MaxBurst < 1 || c.MaxBurst >= protocol.EndpointSize {
		return ErrInvalidBurst
	}
	p := c.Pulse
	if p.StrobeUs <= 0 || p.HoldUs <= 0 || p.SettleAUs < 0 || p.SettleBUs < 0 || p.GapUs < 0 || p.Col0ExtraUs < 0 {
		return ErrInvalidPulse
	}

	pinout, err := c.Pinout()
	if err != nil {
		return err
	}
	extra, err := c.boardPins()
	if err != nil {
		return err
	}
	return pinout.Validate(extra...)
}

// UARTUsed reports whether the UART pins are claimed, either by the
// protocol or by debug output
func (c *Config) UARTUsed() bool {
	return c.Transport == TransportUART || c.Debug
}

// boardPins resolves the non-bridge pins that are in use
func (c *Config) boardPins() ([]core.GPIOPin, error) {
	var names []string
	if c.LEDEnabled() {
		names = append(names, c.Pins.StatusLED)
	}
	if c.UARTUsed() {
		names = append(names, c.Pins.UARTTX, c.Pins.UARTRX)
	}
	pins := make([]core.GPIOPin, 0, len(names))
	for _, name := range names {
		pin, err := ParsePin(name)
		if err != nil {
			return nil, err
		}
		pins = append(pins, pin)
	}
	return pins, nil
}

// PulseShape converts the pulse section to a core.PulseShape
func (c *Config) PulseShape() core.PulseShape {
	return core.PulseShape{
		SettleA:   usToDuration(c.Pulse.SettleAUs),
		SettleB:   usToDuration(c.Pulse.SettleBUs),
		Strobe:    usToDuration(c.Pulse.StrobeUs),
		Gap:       usToDuration(c.Pulse.GapUs),
		Col0Extra: usToDuration(c.Pulse.Col0ExtraUs),
		Hold:      usToDuration(c.Pulse.HoldUs),
	}
}

// ServiceWidth returns the service pulse width
func (c *Config) ServiceWidth() time.Duration {
	return time.Duration(c.ServiceMs) * time.Millisecond
}

// BusKeymap returns the table the decoder addresses the bus with
func (c *Config) BusKeymap() protocol.Keymap {
	if c.BusLayout == LayoutRotated {
		return protocol.KeypadLayout.Rotated()
	}
	return protocol.KeypadLayout
}

// LEDEnabled reports whether the status LED should be driven
func (c *Config) LEDEnabled() bool {
	return c.StatusLED == nil || *c.StatusLED
}

// Pinout resolves the pin names
func (c *Config) Pinout() (core.Pinout, error) {
	var out core.Pinout
	if err := parsePins(c.Pins.KeyCols, out.KeyCols[:]); err != nil {
		return out, err
	}
	if err := parsePins(c.Pins.KeyRows, out.KeyRows[:]); err != nil {
		return out, err
	}
	if err := parsePins(c.Pins.BusSense, out.BusSense[:]); err != nil {
		return out, err
	}
	if err := parsePins(c.Pins.BusRows, out.BusRows[:]); err != nil {
		return out, err
	}
	service, err := ParsePin(c.Pins.Service)
	if err != nil {
		return out, err
	}
	out.Service = service
	return out, nil
}

func parsePins(names []string, dst []core.GPIOPin) error {
	if len(names) != len(dst) {
		return ErrPinCount
	}
	for i, name := range names {
		pin, err := ParsePin(name)
		if err != nil {
			return err
		}
		dst[i] = pin
	}
	return nil
}

// MaxGPIO is the highest GPIO number accepted
const MaxGPIO = 47

// ParsePin converts a name like "gpio12" to a pin number
func ParsePin(name string) (core.GPIOPin, error) {
	num, ok := strings.CutPrefix(strings.ToLower(name), "gpio")
	if !ok {
		return 0, &PinNameError{Name: name}
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 || n > MaxGPIO {
		return 0, &PinNameError{Name: name}
	}
	return core.GPIOPin(n), nil
}

// PinNameError reports a pin name ParsePin could not resolve
type PinNameError struct {
	Name string
}

func (e *PinNameError) Error() string {
	return ErrInvalidPin.Error() + " " + strconv.Quote(e.Name)
}

func (e *PinNameError) Unwrap() error { return ErrInvalidPin }
