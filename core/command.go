package core

import (
	"errors"
	"sync"
)

// ErrUnknownCommand is returned by Dispatch for bytes with no handler
var ErrUnknownCommand = errors.New("unknown command byte")

// CommandHandler handles one command byte received from the host
type CommandHandler func(code byte) error

// Command is a single-byte host command
type Command struct {
	Code    byte
	Name    string
	Handler CommandHandler
}

// CommandRegistry maps command bytes to handlers
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[byte]*Command
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[byte]*Command),
	}
}

// Register adds a command. The first registration of a byte wins; later
// ones return false.
func (r *CommandRegistry) Register(code byte, name string, handler CommandHandler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[code]; exists {
		return false
	}

	r.commands[code] = &Command{
		Code:    code,
		Name:    name,
		Handler: handler,
	}
	return true
}

// GetCommand retrieves a command by byte
func (r *CommandRegistry) GetCommand(code byte) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[code]
	return cmd, ok
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler registered for code
func (r *CommandRegistry) Dispatch(code byte) error {
	cmd, ok := r.GetCommand(code)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler(code)
}
