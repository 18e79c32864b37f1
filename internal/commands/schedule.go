package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coopco/schedbot/internal/bus"
	"github.com/coopco/schedbot/internal/cron"
)

// Scheduler is the job registry the scheduling commands drive.
type Scheduler interface {
	ScheduleMessage(ctx context.Context, req cron.ScheduleRequest) (string, error)
	CancelScheduledMessage(match string) (string, error)
	GetScheduledMessages() []cron.Summary
	NextRun(id string) (time.Time, bool)
}

// ScheduleCommand schedules a one-shot message for later today.
type ScheduleCommand struct {
	scheduler       Scheduler
	defaultTimezone string
}

// NewScheduleCommand creates the schedule command. When defaultTimezone is
// set the timezone option may be omitted.
func NewScheduleCommand(s Scheduler, defaultTimezone string) *ScheduleCommand {
	return &ScheduleCommand{scheduler: s, defaultTimezone: defaultTimezone}
}

func (c *ScheduleCommand) Definition() Definition {
	return Definition{
		Name:        "schedule",
		Description: "Schedule a message to be sent later today",
		Options: []Option{
			{Name: "time", Description: "Time of day, HH:mm (24-hour)", Required: true},
			{Name: "timezone", Description: "IANA timezone, e.g. America/New_York", Required: c.defaultTimezone == "", Autocomplete: true},
			{Name: "message", Description: "The message to send", Required: true, Rest: true},
			{Name: "channel", Description: "Channel to send to (defaults to this one)", Kind: OptionChannel},
		},
	}
}

func (c *ScheduleCommand) Execute(ctx context.Context, msg bus.InboundMessage) (string, error) {
	tz := strings.TrimSpace(msg.Arg("timezone"))
	if tz == "" {
		tz = c.defaultTimezone
	}
	return c.scheduler.ScheduleMessage(ctx, cron.ScheduleRequest{
		Message:   msg.Arg("message"),
		Platform:  msg.Channel,
		ChannelID: channelRef(msg.Arg("channel"), msg.ChatID),
		Time:      strings.TrimSpace(msg.Arg("time")),
		Timezone:  tz,
	})
}

// channelRef normalises a channel argument. Mentions such as <#C123|general>
// or <#123> become the bare ID; empty and "here" mean the current chat.
func channelRef(arg, current string) string {
	ref := strings.TrimSpace(arg)
	if ref == "" || strings.EqualFold(ref, "here") {
		return current
	}
	if strings.HasPrefix(ref, "<#") && strings.HasSuffix(ref, ">") {
		ref = strings.TrimSuffix(strings.TrimPrefix(ref, "<#"), ">")
		if i := strings.IndexByte(ref, '|'); i >= 0 {
			ref = ref[:i]
		}
	}
	return ref
}

// CancelCommand cancels the first pending job matching its argument.
type CancelCommand struct {
	scheduler Scheduler
}

func NewCancelCommand(s Scheduler) *CancelCommand {
	return &CancelCommand{scheduler: s}
}

func (c *CancelCommand) Definition() Definition {
	return Definition{
		Name:        "cancel",
		Description: "Cancel a scheduled message",
		Options: []Option{
			{Name: "message", Description: "Job ID or part of the message text", Required: true, Autocomplete: true, Rest: true},
		},
	}
}

func (c *CancelCommand) Execute(_ context.Context, msg bus.InboundMessage) (string, error) {
	return c.scheduler.CancelScheduledMessage(strings.TrimSpace(msg.Arg("message")))
}

// ListCommand lists pending jobs.
type ListCommand struct {
	scheduler Scheduler
}

func NewListCommand(s Scheduler) *ListCommand {
	return &ListCommand{scheduler: s}
}

func (c *ListCommand) Definition() Definition {
	return Definition{Name: "scheduled", Description: "List scheduled messages"}
}

func (c *ListCommand) Execute(_ context.Context, _ bus.InboundMessage) (string, error) {
	jobs := c.scheduler.GetScheduledMessages()
	if len(jobs) == 0 {
		return "📭 No messages are scheduled.", nil
	}

	var sb strings.Builder
	sb.WriteString("📅 Scheduled messages:\n")
	for i, j := range jobs {
		channel := j.ChannelID
		if j.ChannelName != "" {
			channel = fmt.Sprintf("#%s (%s)", j.ChannelName, j.ChannelID)
		}
		fmt.Fprintf(&sb, "%d. %q in %s at `%s` %s", i+1, j.Message, channel, j.CronExpression, j.Timezone)
		if next, ok := c.scheduler.NextRun(j.ID); ok {
			fmt.Fprintf(&sb, ", next %s", formatIn(next, j.Timezone))
		}
		fmt.Fprintf(&sb, " (id `%s`)\n", j.ID)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func formatIn(t time.Time, tz string) string {
	if loc, err := time.LoadLocation(tz); err == nil {
		t = t.In(loc)
	}
	return t.Format("2006-01-02 15:04 MST")
}
