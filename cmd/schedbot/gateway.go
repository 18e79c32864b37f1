package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/coopco/schedbot/internal/autocomplete"
	"github.com/coopco/schedbot/internal/bus"
	"github.com/coopco/schedbot/internal/channels"
	"github.com/coopco/schedbot/internal/commands"
	"github.com/coopco/schedbot/internal/config"
	"github.com/coopco/schedbot/internal/cron"
	"github.com/coopco/schedbot/internal/forms"
	"github.com/coopco/schedbot/internal/gateway"
)

const (
	busSize         = 100
	shutdownTimeout = 10 * time.Second
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Connect to the configured chat platforms and serve commands",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setupLogging(os.Stderr, cfg.Log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runGateway(ctx, cfg)
	},
}

// liveScheduler drops cached job suggestions whenever the job set changes.
type liveScheduler struct {
	*cron.Service
	suggestions *autocomplete.Suggester
}

func (l liveScheduler) ScheduleMessage(ctx context.Context, req cron.ScheduleRequest) (string, error) {
	defer l.suggestions.Invalidate()
	return l.Service.ScheduleMessage(ctx, req)
}

func (l liveScheduler) CancelScheduledMessage(match string) (string, error) {
	defer l.suggestions.Invalidate()
	return l.Service.CancelScheduledMessage(match)
}

type scheduler interface {
	Stop(ctx context.Context)
}

type channelSet interface {
	StopAll() error
}

// shutdown stops the scheduler, waiting for in-flight deliveries, and only
// then closes the channels those deliveries go out on.
func shutdown(sched scheduler, chans channelSet) {
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	sched.Stop(stopCtx)
	if err := chans.StopAll(); err != nil {
		slog.Warn("channels did not stop cleanly", "error", err)
	}
}

func buildRegistry(s commands.Scheduler, fc commands.FormClient, defaultTimezone string) *commands.Registry {
	registry := commands.NewRegistry()
	registry.Register(commands.NewScheduleCommand(s, defaultTimezone))
	registry.Register(commands.NewCancelCommand(s))
	registry.Register(commands.NewListCommand(s))
	registry.Register(commands.NewFormCommand(fc))
	registry.Register(commands.NewFormResultCommand(fc))
	return registry
}

func runGateway(ctx context.Context, cfg *config.Config) error {
	enabled, err := cfg.Channels.Enabled()
	if err != nil {
		return err
	}
	if len(enabled) == 0 {
		return errors.New("no chat platform configured; set channels.discord.token, channels.slack or channels.telegram.token")
	}

	msgBus := bus.NewMessageBus(busSize)
	manager := channels.NewManager(channels.Deps{Bus: msgBus})

	svc := cron.NewService(cfg.Scheduler.StorePath, manager)
	suggestions := autocomplete.NewSuggester(svc)
	formClient := forms.NewClient(cfg.Forms.WebAppURL, time.Duration(cfg.Forms.TimeoutSeconds)*time.Second)
	registry := buildRegistry(liveScheduler{Service: svc, suggestions: suggestions}, formClient, cfg.Scheduler.DefaultTimezone)

	manager.Use(registry.Definitions(), suggestions)
	for _, name := range channels.RegisteredNames() {
		raw, ok := enabled[name]
		if !ok {
			continue
		}
		if err := manager.AddChannel(name, raw); err != nil {
			return err
		}
	}

	// Jobs are recovered before any platform can deliver a command.
	svc.Start()
	if err := manager.StartAll(ctx); err != nil {
		shutdown(svc, manager)
		return err
	}
	defer shutdown(svc, manager)

	router := commands.NewRouter(commands.RouterConfig{Bus: msgBus, Registry: registry})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		msgBus.DispatchOutbound(gctx)
		return nil
	})
	g.Go(func() error {
		if err := router.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("command router: %w", err)
		}
		return nil
	})
	if cfg.Gateway.Port > 0 {
		srv := gateway.New(cfg.Gateway.Addr(), svc)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	slog.Info("schedbot running", "channels", manager.Names(), "commands", registry.Names())
	err = g.Wait()
	router.Wait()
	slog.Info("schedbot shutting down")
	return err
}
