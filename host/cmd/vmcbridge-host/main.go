package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"vmcbridge/host/keypad"
	"vmcbridge/host/serial"
	"vmcbridge/protocol"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	timeout = flag.Duration("timeout", keypad.DefaultAckTimeout, "How long to wait for each key ack")
	verbose = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()

	fmt.Println("VMC Bridge Host - keypad bridge console")
	fmt.Println("=======================================")
	fmt.Println()

	kp := keypad.New()
	kp.SetAckTimeout(*timeout)

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud

	fmt.Printf("Connecting to bridge on %s...\n", *device)
	if err := kp.ConnectWithConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer kp.Close()

	fmt.Println("Connected successfully!")

	go printEvents(kp)

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]

		switch cmd {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "keys":
			printKeymap()

		case "press", "p":
			if len(parts) < 2 {
				fmt.Println("Usage: press <keys>")
				continue
			}
			if err := press(kp, parts[1]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "service", "s":
			if err := kp.Service(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Println("Service pulse sent")

		case "stats":
			fmt.Printf("Unrecognised bytes from bridge: %d\n", kp.Unknown())

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", cmd)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  help           - Show this help message")
	fmt.Println("  keys           - Show the keypad layout")
	fmt.Println("  press <keys>   - Press keys on the VMC, e.g. 'press a12'")
	fmt.Println("  service        - Pulse the service line")
	fmt.Println("  stats          - Show client counters")
	fmt.Println("  quit/exit/q    - Exit the program")
	fmt.Println()
}

func printKeymap() {
	fmt.Println("\ncol\\row  0 1 2 3 4 5 6")
	for c := uint8(0); c < protocol.Columns; c++ {
		fmt.Printf("   %d    ", c)
		for r := uint8(0); r < protocol.Rows; r++ {
			fmt.Printf(" %c", protocol.KeypadLayout.Lookup(c, r))
		}
		fmt.Println()
	}
	fmt.Println()
}

func press(kp *keypad.Keypad, keys string) error {
	start := time.Now()
	if err := kp.PressSequence(keys); err != nil {
		return err
	}
	if *verbose {
		fmt.Printf("Pressed %q in %v\n", keys, time.Since(start))
	} else {
		fmt.Printf("Pressed %q\n", keys)
	}
	return nil
}

// printEvents reports presses of the physical keypad as they arrive
func printEvents(kp *keypad.Keypad) {
	for ev := range kp.Events() {
		if *verbose {
			fmt.Printf("\n[keypad] %c (col %d, row %d) at %s\n> ", ev.Key, ev.Col, ev.Row, ev.Time.Format("15:04:05.000"))
		} else {
			fmt.Printf("\n[keypad] %c\n> ", ev.Key)
		}
	}
}
