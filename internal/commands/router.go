package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coopco/schedbot/internal/bus"
)

const defaultCommandTimeout = 30 * time.Second

// Router consumes inbound commands, executes each on its own goroutine and
// publishes the reply.
type Router struct {
	bus      *bus.MessageBus
	registry *Registry
	timeout  time.Duration
	wg       sync.WaitGroup
}

// RouterConfig holds the dependencies and settings for a Router.
type RouterConfig struct {
	Bus      *bus.MessageBus
	Registry *Registry
	Timeout  time.Duration
}

func NewRouter(cfg RouterConfig) *Router {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &Router{
		bus:      cfg.Bus,
		registry: cfg.Registry,
		timeout:  timeout,
	}
}

// Run processes inbound messages until ctx is cancelled.
func (r *Router) Run(ctx context.Context) error {
	for {
		msg, err := r.bus.ConsumeInbound(ctx)
		if err != nil {
			return err
		}
		r.wg.Add(1)
		go r.process(ctx, msg)
	}
}

// Wait blocks until every command started by Run has replied.
func (r *Router) Wait() {
	r.wg.Wait()
}

func (r *Router) process(ctx context.Context, msg bus.InboundMessage) {
	defer r.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			slog.Error("command panicked", "command", msg.Command, "chat", msg.ReplyKey(), "panic", p)
			r.bus.PublishOutbound(msg.Reply(fmt.Sprintf("❌ /%s failed unexpectedly.", msg.Command), bus.TypeError))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	reply, err := r.registry.Execute(ctx, msg)
	if err != nil {
		slog.Warn("command failed", "command", msg.Command, "chat", msg.ReplyKey(), "sender", msg.SenderID, "err", err)
		r.bus.PublishOutbound(msg.Reply(err.Error(), bus.TypeError))
		return
	}
	slog.Debug("command handled", "command", msg.Command, "chat", msg.ReplyKey(), "duration", time.Since(start))
	r.bus.PublishOutbound(msg.Reply(reply, bus.TypeText))
}
