// Package simulated provides an in-memory instrument for tests and
// examples. It implements the message transport contract: commands
// written to it are answered from a programmable handler table, and
// errors or timeouts can be injected to exercise retry paths.
package simulated

import (
	"context"
	"strings"
	"sync"

	"github.com/LabPy/lantz-core/errors"
)

// Handler answers one command. Returning ok=false passes the command to
// the next handler.
type Handler func(cmd string) (response string, ok bool)

// Instrument is a fake message-based instrument.
type Instrument struct {
	mu sync.Mutex

	termination string
	open        bool
	opens       int

	responses map[string]string
	handlers  []Handler
	state     map[string]string

	commands []string
	inbox    []byte
	outbox   []byte

	nextErr      error
	timeoutsLeft int
}

// Option configures an Instrument.
type Option func(*Instrument)

// WithTermination sets the command termination (default "\n").
func WithTermination(term string) Option {
	return func(i *Instrument) { i.termination = term }
}

// NewInstrument builds a fake instrument.
func NewInstrument(opts ...Option) *Instrument {
	i := &Instrument{
		termination: "\n",
		responses:   make(map[string]string),
		state:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Respond declares a fixed answer for an exact command.
func (i *Instrument) Respond(cmd, response string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.responses[cmd] = response
}

// Handle appends a handler tried for commands without a fixed answer.
func (i *Instrument) Handle(h Handler) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.handlers = append(i.handlers, h)
}

// Variable wires a settable value: "NAME val" stores val, "NAME?"
// answers it.
func (i *Instrument) Variable(name, initial string) {
	i.mu.Lock()
	i.state[name] = initial
	i.mu.Unlock()

	i.Handle(func(cmd string) (string, bool) {
		i.mu.Lock()
		defer i.mu.Unlock()
		if cmd == name+"?" {
			return i.state[name], true
		}
		if v, ok := strings.CutPrefix(cmd, name+" "); ok {
			i.state[name] = v
			return "", true
		}
		return "", false
	})
}

// State returns the current value of a variable.
func (i *Instrument) State(name string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state[name]
}

// InjectError makes the next operation fail with err.
func (i *Instrument) InjectError(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.nextErr = err
}

// InjectTimeouts makes the next n reads time out, so retry and reopen
// paths can be exercised.
func (i *Instrument) InjectTimeouts(n int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.timeoutsLeft = n
}

// Commands returns every command received so far.
func (i *Instrument) Commands() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, len(i.commands))
	copy(out, i.commands)
	return out
}

// Opens returns how many times the connection was opened. Reopen paths
// bump it.
func (i *Instrument) Opens() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.opens
}

// Open implements the transport contract.
func (i *Instrument) Open(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.open {
		return nil
	}
	i.open = true
	i.opens++
	return nil
}

// Close implements the transport contract.
func (i *Instrument) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.open = false
	i.inbox = nil
	i.outbox = nil
	return nil
}

// Write receives command bytes, answering each complete command into
// the outbox.
func (i *Instrument) Write(ctx context.Context, p []byte) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.open {
		return errors.ErrNotConnected
	}
	if err := i.takeErr(); err != nil {
		return err
	}

	i.inbox = append(i.inbox, p...)
	for {
		idx := strings.Index(string(i.inbox), i.termination)
		if idx < 0 {
			break
		}
		cmd := string(i.inbox[:idx])
		i.inbox = i.inbox[idx+len(i.termination):]
		i.commands = append(i.commands, cmd)
		if response, ok := i.answer(cmd); ok {
			i.outbox = append(i.outbox, response+i.termination...)
		}
	}
	return nil
}

// Read hands out buffered answers, or times out when there are none.
func (i *Instrument) Read(ctx context.Context, p []byte) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.open {
		return 0, errors.ErrNotConnected
	}
	if err := i.takeErr(); err != nil {
		return 0, err
	}
	if i.timeoutsLeft > 0 {
		i.timeoutsLeft--
		return 0, errors.Wrap(errors.ErrTimeout, "no answer")
	}
	if len(i.outbox) == 0 {
		return 0, errors.Wrap(errors.ErrTimeout, "no answer")
	}
	n := copy(p, i.outbox)
	i.outbox = i.outbox[n:]
	return n, nil
}

// takeErr pops the injected error. Callers hold the lock.
func (i *Instrument) takeErr() error {
	err := i.nextErr
	i.nextErr = nil
	return err
}

// answer resolves one command. Callers hold the lock; handlers that
// need it re-take it, so the lookup runs unlocked for them.
func (i *Instrument) answer(cmd string) (string, bool) {
	if response, ok := i.responses[cmd]; ok {
		return response, true
	}
	handlers := i.handlers
	i.mu.Unlock()
	defer i.mu.Lock()
	for _, h := range handlers {
		if response, ok := h(cmd); ok {
			return response, true
		}
	}
	return "", false
}
