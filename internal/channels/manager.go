package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coopco/schedbot/internal/bus"
	"github.com/coopco/schedbot/internal/commands"
)

var ErrUnknownPlatform = errors.New("no channel configured for platform")

// Manager owns the running channels. It routes outbound replies from the bus
// and delivers scheduled messages directly.
type Manager struct {
	channels []Channel
	bus      *bus.MessageBus
	deps     Deps
	mu       sync.Mutex
}

func NewManager(deps Deps) *Manager {
	m := &Manager{bus: deps.Bus, deps: deps}
	m.setupOutboundDispatch()
	return m
}

// Use sets the command definitions and suggester handed to channels created
// by later AddChannel calls.
func (m *Manager) Use(defs []commands.Definition, s Suggester) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deps.Commands = defs
	m.deps.Suggester = s
}

// AddChannel creates and adds a channel from config.
func (m *Manager) AddChannel(name string, cfgJSON json.RawMessage) error {
	factory, ok := GetFactory(name)
	if !ok {
		return fmt.Errorf("no factory registered for channel %q", name)
	}
	m.mu.Lock()
	deps := m.deps
	m.mu.Unlock()
	ch, err := factory(cfgJSON, deps)
	if err != nil {
		return fmt.Errorf("failed to create channel %q: %w", name, err)
	}
	m.Add(ch)
	return nil
}

// Add registers an already constructed channel.
func (m *Manager) Add(ch Channel) {
	m.mu.Lock()
	m.channels = append(m.channels, ch)
	m.mu.Unlock()
}

// Get returns the channel serving platform.
func (m *Manager) Get(platform string) (Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.channels {
		if ch.Name() == platform {
			return ch, true
		}
	}
	return nil, false
}

// Names returns the names of the added channels.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}

// StartAll starts all registered channels.
func (m *Manager) StartAll(ctx context.Context) error {
	for _, ch := range m.snapshot() {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("failed to start channel %q: %w", ch.Name(), err)
		}
		slog.Info("channel started", "channel", ch.Name())
	}
	return nil
}

// StopAll stops all channels.
func (m *Manager) StopAll() error {
	var firstErr error
	for _, ch := range m.snapshot() {
		if err := ch.Stop(); err != nil {
			slog.Error("failed to stop channel", "channel", ch.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ResolveChannel looks up chatID on platform and returns its display name.
// Channels that cannot look chats up accept any ID with an empty name.
func (m *Manager) ResolveChannel(ctx context.Context, platform, chatID string) (string, error) {
	ch, ok := m.Get(platform)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	r, ok := ch.(Resolver)
	if !ok {
		return "", nil
	}
	return r.ResolveChat(ctx, chatID)
}

// Deliver sends a scheduled message to chatID on platform.
func (m *Manager) Deliver(_ context.Context, platform, chatID, text string) error {
	ch, ok := m.Get(platform)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	return ch.Send(bus.OutboundMessage{
		Channel: platform,
		ChatID:  chatID,
		Content: text,
		Type:    bus.TypeText,
	})
}

func (m *Manager) snapshot() []Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	chs := make([]Channel, len(m.channels))
	copy(chs, m.channels)
	return chs
}

// setupOutboundDispatch subscribes to outbound replies and routes them to channels.
func (m *Manager) setupOutboundDispatch() {
	m.bus.Subscribe("", func(msg bus.OutboundMessage) {
		ch, ok := m.Get(msg.Channel)
		if !ok {
			slog.Warn("reply for unknown channel dropped", "channel", msg.Channel, "chat", msg.ChatID)
			return
		}
		if err := ch.Send(msg); err != nil {
			slog.Error("failed to send message", "channel", ch.Name(), "chat", msg.ChatID, "error", err)
		}
	})
}
