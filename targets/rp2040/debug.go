//go:build rp2040 || rp2350

package main

import (
	"io"
	"machine"

	"vmcbridge/config"
	"vmcbridge/core"
)

// serialWriter sends debug text to the USB serial when the bridge
// protocol runs on the UART
type serialWriter struct{}

func (serialWriter) Write(p []byte) (int, error) {
	return machine.Serial.Write(p)
}

// InitDebug routes core debug output to whichever link is not carrying the
// keypad protocol, so debug text never mixes with key bytes
func InitDebug(cfg *config.Config) {
	core.SetDebugEnabled(cfg.Debug)
	if !cfg.Debug {
		return
	}

	var w io.Writer
	if cfg.Transport == config.TransportUART {
		w = serialWriter{}
	} else {
		uart, err := InitUART(cfg)
		if err != nil {
			core.SetDebugEnabled(false)
			return
		}
		w = uart
	}

	core.SetDebugWriter(func(s string) {
		w.Write([]byte(s))
		w.Write([]byte("\r\n"))
	})
	core.InitAsyncDebug()
	core.DebugPrintln("=== VMC bridge debug ===")
}
