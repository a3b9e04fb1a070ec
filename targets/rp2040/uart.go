//go:build rp2040 || rp2350

package main

import (
	"machine"

	"github.com/jangala-dev/tinygo-uartx/uartx"

	"vmcbridge/config"
)

// InitUART configures UART1 with the pins and baud rate from cfg. The
// interrupt-driven uartx driver buffers RX and TX, so polling it from the
// main loop never blocks on the wire.
func InitUART(cfg *config.Config) (*uartx.UART, error) {
	tx, err := config.ParsePin(cfg.Pins.UARTTX)
	if err != nil {
		return nil, err
	}
	rx, err := config.ParsePin(cfg.Pins.UARTRX)
	if err != nil {
		return nil, err
	}

	uart := uartx.UART1
	if err := uart.Configure(uartx.UARTConfig{
		BaudRate: cfg.UARTBaud,
		TX:       machine.Pin(tx),
		RX:       machine.Pin(rx),
	}); err != nil {
		return nil, err
	}
	return uart, nil
}
