package commands

import (
	"context"

	"github.com/coopco/schedbot/internal/bus"
)

// OptionKind is the value type of a command option.
type OptionKind int

const (
	OptionString OptionKind = iota
	// OptionChannel holds a channel ID. Platforms with a native channel
	// picker present it as one.
	OptionChannel
)

// Option describes one named command argument.
type Option struct {
	Name         string
	Description  string
	Kind         OptionKind
	Required     bool
	Autocomplete bool
	// Rest marks the option that takes all remaining words when arguments
	// are given as free text.
	Rest bool
}

// Definition describes a command to the platforms that register it.
type Definition struct {
	Name        string
	Description string
	Options     []Option
}

// Option returns the named option definition.
func (d Definition) Option(name string) (Option, bool) {
	for _, o := range d.Options {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}

// Command is a chat command. Execute returns the reply text; a returned
// error's text is shown to the requester as is.
type Command interface {
	Definition() Definition
	Execute(ctx context.Context, msg bus.InboundMessage) (string, error)
}
