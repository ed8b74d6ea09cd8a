// Package command maps slash command names to word lists and turns decoded
// interactions into replies.
package command

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"

	"github.com/mattjoyce/wordbot/internal/interaction"
)

// ErrUnknownCommand matches any *UnknownCommandError.
var ErrUnknownCommand = errors.New("command: unknown command")

// UnknownCommandError reports an application command that is not registered.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("command: unknown command %q", e.Name)
}

func (e *UnknownCommandError) Is(target error) bool {
	return target == ErrUnknownCommand
}

// namePattern is the platform's rule for chat command names.
var namePattern = regexp.MustCompile(`^[-_\p{Ll}\p{Lo}\p{N}]{1,32}$`)

// ValidName reports whether name is acceptable as a slash command name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Command is a slash command answered with a random entry of Words.
type Command struct {
	Name        string
	Description string
	Words       []string
}

// Registry is an immutable set of commands. It is safe for concurrent use.
type Registry struct {
	commands map[string]Command
	order    []string
	pick     func(n int) int
}

// Option configures a Registry.
type Option func(*Registry)

// WithPicker replaces the random index source. pick must return a value in [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(r *Registry) { r.pick = pick }
}

// NewRegistry validates cmds and copies them into a Registry.
func NewRegistry(cmds []Command, opts ...Option) (*Registry, error) {
	r := &Registry{
		commands: make(map[string]Command, len(cmds)),
		order:    make([]string, 0, len(cmds)),
		pick:     rand.IntN,
	}
	for _, opt := range opts {
		opt(r)
	}

	for i, c := range cmds {
		if !ValidName(c.Name) {
			return nil, fmt.Errorf("commands[%d]: invalid name %q", i, c.Name)
		}
		if _, dup := r.commands[c.Name]; dup {
			return nil, fmt.Errorf("commands[%d]: duplicate name %q", i, c.Name)
		}
		if len(c.Words) == 0 {
			return nil, fmt.Errorf("commands[%d] (%s): %w", i, c.Name, ErrEmptyWordList)
		}
		c.Words = append([]string(nil), c.Words...)
		r.commands[c.Name] = c
		r.order = append(r.order, c.Name)
	}
	return r, nil
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (Command, bool) {
	c, ok := r.commands[name]
	return c, ok
}

// Commands returns the registered commands in registration order.
func (r *Registry) Commands() []Command {
	out := make([]Command, 0, len(r.order))
	for _, name := range r.order {
		c := r.commands[name]
		c.Words = append([]string(nil), c.Words...)
		out = append(out, c)
	}
	return out
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	return len(r.order)
}

// Dispatch produces the reply for in. A Ping always yields a Pong; an
// ApplicationCommand yields one uniformly drawn entry of its word list, or
// an *UnknownCommandError.
func (r *Registry) Dispatch(in interaction.Interaction) (interaction.Response, error) {
	switch in := in.(type) {
	case interaction.Ping:
		return interaction.Pong{}, nil
	case interaction.ApplicationCommand:
		c, ok := r.commands[in.Name]
		if !ok {
			return nil, &UnknownCommandError{Name: in.Name}
		}
		return interaction.ChannelMessageWithSource{Content: c.Words[r.pick(len(c.Words))]}, nil
	default:
		return nil, fmt.Errorf("command: unsupported interaction %T", in)
	}
}
