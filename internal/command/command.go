// Package command is the transport-agnostic command core: a command has a
// name, a description and Run(ctx, invocation). Adapters decide how it is
// registered and dispatched.
package command

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Invocation carries arguments and an adapter-specific payload. The Discord
// adapter puts a *SlashContext in Data.
type Invocation struct {
	Args []string
	Data any
}

type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// Middleware wraps a command; the first in the list passed to Apply is the
// innermost.
type Middleware func(Command) Command

func Apply(c Command, mws ...Middleware) Command {
	for _, mw := range mws {
		c = mw(c)
	}
	return c
}

// Unwrappable lets adapters reach the command under a middleware chain.
type Unwrappable interface {
	Command
	Unwrap() Command
}

type wrapped struct {
	inner Command
	run   func(ctx context.Context, inv *Invocation) error
}

func (w *wrapped) Name() string        { return w.inner.Name() }
func (w *wrapped) Description() string { return w.inner.Description() }
func (w *wrapped) Unwrap() Command     { return w.inner }

func (w *wrapped) Run(ctx context.Context, inv *Invocation) error {
	if w.run != nil {
		return w.run(ctx, inv)
	}
	return w.inner.Run(ctx, inv)
}

// Wrap returns c with run in place of c.Run.
func Wrap(c Command, run func(ctx context.Context, inv *Invocation) error) Command {
	return &wrapped{inner: c, run: run}
}

// Root unwraps c down to the command that was registered.
func Root(c Command) Command {
	for {
		u, ok := c.(Unwrappable)
		if !ok {
			return c
		}
		c = u.Unwrap()
	}
}

// Registry stores commands by name. It does not dispatch.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds c, refusing a second command with the same name.
func (r *Registry) Register(c Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[c.Name()]; ok {
		return fmt.Errorf("command %q already registered", c.Name())
	}
	r.commands[c.Name()] = c
	return nil
}

func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[name]
	return c, ok
}

// All returns every command sorted by name.
func (r *Registry) All() []Command {
	r.mu.RLock()
	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}
