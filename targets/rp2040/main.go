//go:build rp2040 || rp2350

package main

import (
	"context"
	_ "embed"
	"machine"

	"tinygo.org/x/drivers"

	"vmcbridge/config"
	"vmcbridge/core"
	"vmcbridge/protocol"
	"vmcbridge/targets/pio"
)

//go:embed bridge.json
var bridgeJSON []byte

func main() {
	// CRITICAL: Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	cfg, err := config.Load(bridgeJSON)
	if err != nil {
		// The embedded file is broken; run on defaults rather than not at all
		cfg = config.Default()
	}

	// Initialize USB CDC immediately
	usb := InitUSB()

	InitDebug(cfg)

	var status *statusLED
	if cfg.LEDEnabled() {
		if pin, err := config.ParsePin(cfg.Pins.StatusLED); err == nil {
			status = InitStatusLED(machine.Pin(pin))
		}
	}

	gpioDriver := NewRPGPIODriver()
	core.SetGPIODriver(gpioDriver)

	var port drivers.UART = usb
	if cfg.Transport == config.TransportUART {
		uart, err := InitUART(cfg)
		if err != nil {
			fail(status, err)
		}
		port = uart
	}

	pins, err := cfg.Pinout()
	if err != nil {
		fail(status, err)
	}

	var output core.PulseOutput
	if cfg.PulseBackend == config.BackendPIO {
		// PIO0 state machine 0
		output, err = pio.NewPulsePIO(0, 0, pins.BusRows)
		if err != nil {
			fail(status, err)
		}
	}

	busMap := cfg.BusKeymap()
	shape := cfg.PulseShape()
	bridge, err := core.NewBridge(core.BridgeConfig{
		GPIO:          gpioDriver,
		Pins:          pins,
		Port:          port,
		Clock:         hwClock{},
		Delayer:       spinDelayer{},
		Output:        output,
		BusLayout:     &busMap,
		QueueCapacity: cfg.QueueCapacity,
		DebounceMs:    cfg.DebounceMs,
		ServiceWidth:  cfg.ServiceWidth(),
		MaxBurst:      cfg.MaxBurst,
		Shape:         &shape,
	})
	if err != nil {
		fail(status, err)
	}
	if err := bridge.Start(); err != nil {
		fail(status, err)
	}

	core.DebugPrintln("vmcbridge " + protocol.Version + " transport=" + cfg.Transport +
		" backend=" + cfg.PulseBackend + " layout=" + cfg.BusLayout)

	if status != nil {
		go status.Run(bridge)
	}

	// Main loop; recovers from panics per iteration
	bridge.Run(context.Background())
}

// fail reports a setup error and never returns
func fail(status *statusLED, err error) {
	core.DebugPrintln("setup failed: " + err.Error())
	core.DumpEventRing()
	status.Blink(colorError)
}
