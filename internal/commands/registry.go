package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/coopco/schedbot/internal/bus"
)

// UsageError reports a command invoked with missing or malformed arguments.
type UsageError struct {
	Command string
	Reason  string
	Usage   string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("❌ %s\nUsage: %s", e.Reason, e.Usage)
}

type Registry struct {
	commands map[string]Command
	order    []string
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds c, replacing any command with the same name.
func (r *Registry) Register(c Command) {
	name := c.Definition().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; !exists {
		r.order = append(r.order, name)
	}
	r.commands[name] = c
}

func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[strings.ToLower(name)]
	return c, ok
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.commands))
	for n := range r.commands {
		names = append(names, n)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Definitions returns command definitions in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.commands[name].Definition())
	}
	return defs
}

// Execute runs the command named by msg. Free-text arguments are parsed
// against the command's options when the platform did not supply them.
func (r *Registry) Execute(ctx context.Context, msg bus.InboundMessage) (string, error) {
	c, ok := r.Get(msg.Command)
	if !ok {
		return "", fmt.Errorf("❓ Unknown command: /%s. Available commands: /%s",
			msg.Command, strings.Join(r.Names(), ", /"))
	}
	def := c.Definition()

	if msg.Args == nil {
		args, err := ParseArgs(def, msg.Content)
		if err != nil {
			return "", &UsageError{Command: def.Name, Reason: fmt.Sprintf("Invalid arguments: %v.", err), Usage: Usage(def)}
		}
		msg.Args = args
	}
	for _, o := range def.Options {
		if o.Required && strings.TrimSpace(msg.Args[o.Name]) == "" {
			return "", &UsageError{
				Command: def.Name,
				Reason:  fmt.Sprintf("Missing required option `%s`.", o.Name),
				Usage:   Usage(def),
			}
		}
	}
	return c.Execute(ctx, msg)
}

// Usage renders a one-line usage string for text platforms.
func Usage(def Definition) string {
	var sb strings.Builder
	sb.WriteString("/" + def.Name)
	for _, o := range def.Options {
		sb.WriteByte(' ')
		switch {
		case o.Required:
			fmt.Fprintf(&sb, "<%s>", o.Name)
		default:
			fmt.Fprintf(&sb, "[%s:...]", o.Name)
		}
	}
	return sb.String()
}
