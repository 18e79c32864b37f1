package channels

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/coopco/schedbot/internal/autocomplete"
	"github.com/coopco/schedbot/internal/bus"
	"github.com/coopco/schedbot/internal/commands"
)

// Channel is the interface all chat platform channels must implement.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(msg bus.OutboundMessage) error
	IsAllowed(senderID string) bool
}

// Resolver is implemented by channels that can look up a chat by ID. It
// reports the chat's display name, or an error when the chat does not exist
// or the bot cannot post to it.
type Resolver interface {
	ResolveChat(ctx context.Context, chatID string) (string, error)
}

// Suggester answers option autocomplete requests.
type Suggester interface {
	Suggest(command, option, typed string) []autocomplete.Choice
}

// Deps are the shared collaborators handed to every channel factory.
type Deps struct {
	Bus       *bus.MessageBus
	Commands  []commands.Definition
	Suggester Suggester
}

// ChannelFactory creates a Channel from JSON config.
type ChannelFactory func(cfg json.RawMessage, deps Deps) (Channel, error)

var registry = map[string]ChannelFactory{}

// Register adds a channel factory to the registry.
func Register(name string, factory ChannelFactory) {
	registry[name] = factory
}

// GetFactory returns the factory for a channel name.
func GetFactory(name string) (ChannelFactory, bool) {
	f, ok := registry[name]
	return f, ok
}

// RegisteredNames returns all registered channel names, sorted.
func RegisteredNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func allowList(users []string) map[string]bool {
	allowed := make(map[string]bool, len(users))
	for _, u := range users {
		allowed[u] = true
	}
	return allowed
}

// splitMessage breaks text into chunks of at most limit bytes, preferring
// line boundaries.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
