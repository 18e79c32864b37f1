package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/coopco/schedbot/internal/config"
	"github.com/coopco/schedbot/internal/cron"
	"github.com/coopco/schedbot/internal/forms"
)

type nopScheduler struct{}

func (nopScheduler) ScheduleMessage(context.Context, cron.ScheduleRequest) (string, error) {
	return "", nil
}
func (nopScheduler) CancelScheduledMessage(string) (string, error) { return "", nil }
func (nopScheduler) GetScheduledMessages() []cron.Summary { return nil }
func (nopScheduler) NextRun(string) (time.Time, bool) { return time.Time{}, false }

type nopForms struct{}

func (nopForms) Count(context.Context, string) ([]forms.Form, error) { return nil, nil }
func (nopForms) Result(context.Context, string, string) ([]forms.AnswerCount, error) {
	return nil, nil
}

func TestBuildRegistry(t *testing.T) {
	registry := buildRegistry(nopScheduler{}, nopForms{}, "")

	var names []string
	for _, def := range registry.Definitions() {
		names = append(names, def.Name)
	}
	if got := strings.Join(names, ","); got != "schedule,cancel,scheduled,form,formresult" {
		t.Fatalf("unexpected command order %s", got)
	}
}

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	tests := []struct {
		name   string
		cfg    config.LogConfig
		want   string
		hidden bool
	}{
		{"text info", config.LogConfig{Level: "info", Format: "text"}, "msg=hello", false},
		{"json", config.LogConfig{Level: "info", Format: "json"}, `"msg":"hello"`, false},
		{"warn hides info", config.LogConfig{Level: "warn", Format: "text"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			setupLogging(&buf, tt.cfg)
			slog.Info("hello")
			if tt.hidden {
				if buf.Len() != 0 {
					t.Fatalf("expected no output, got %q", buf.String())
				}
				return
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, buf.String())
			}
		})
	}
}

func TestPrintJobs(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	if err := printJobs(cmd, nil); err != nil {
		t.Fatalf("printJobs: %v", err)
	}
	if !strings.Contains(buf.String(), "No scheduled jobs.") {
		t.Fatalf("unexpected empty output %q", buf.String())
	}

	buf.Reset()
	records := []cron.JobRecord{
		{ID: "a1", Message: "Stand-up", ChannelID: "123", Hour: 9, Minute: 5, Timezone: "America/New_York"},
		{ID: "b2", Message: "Lunch", Platform: "slack", ChannelID: "C9", Hour: 12, Minute: 0, Timezone: "UTC"},
	}
	if err := printJobs(cmd, records); err != nil {
		t.Fatalf("printJobs: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ID", "a1", "discord", "09:05", "Stand-up", "slack", "12:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRunGatewayRequiresChannel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scheduler.StorePath = t.TempDir() + "/jobs.json"
	if err := runGateway(context.Background(), cfg); err == nil {
		t.Fatal("expected error without any configured platform")
	}
}

type shutdownRecorder struct {
	order *[]string
}

func (r shutdownRecorder) Stop(context.Context) { *r.order = append(*r.order, "scheduler") }
func (r shutdownRecorder) StopAll() error {
	*r.order = append(*r.order, "channels")
	return nil
}

func TestShutdownStopsSchedulerFirst(t *testing.T) {
	var order []string
	rec := shutdownRecorder{order: &order}
	shutdown(rec, rec)

	if got := strings.Join(order, ","); got != "scheduler,channels" {
		t.Fatalf("unexpected shutdown order %s", got)
	}
}
