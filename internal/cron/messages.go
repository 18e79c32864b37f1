package cron

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ReplyError carries requester-facing text for a failed request.
type ReplyError struct {
	Reply string
	Err   error
}

func (e *ReplyError) Error() string { return e.Reply }
func (e *ReplyError) Unwrap() error { return e.Err }

// ScheduleMessage schedules req and returns a confirmation for the requester.
func (s *Service) ScheduleMessage(ctx context.Context, req ScheduleRequest) (string, error) {
	rec, err := s.Schedule(ctx, req)
	if err != nil {
		return "", &ReplyError{Reply: UserMessage(err, req.ChannelID), Err: err}
	}

	loc, _ := loadLocation(rec.Timezone)
	target := rec.Target(s.now(), loc)
	return fmt.Sprintf("Message scheduled for %s in channel %s. (id `%s`)",
		target.Format("2006-01-02 15:04 MST"), channelLabel(rec), rec.ID), nil
}

// CancelScheduledMessage cancels the first job matching match.
func (s *Service) CancelScheduledMessage(match string) (string, error) {
	rec, err := s.Cancel(match)
	if err != nil {
		if errors.Is(err, ErrStoreWrite) {
			return "", &ReplyError{
				Reply: "⚠️ Scheduled message canceled, but the change could not be saved; it may come back after a restart.",
				Err:   err,
			}
		}
		return "", &ReplyError{Reply: UserMessage(err, ""), Err: err}
	}
	return fmt.Sprintf("✅ Scheduled message canceled: %q (id `%s`)", rec.Message, rec.ID), nil
}

// GetScheduledMessages lists pending jobs for display and autocomplete.
func (s *Service) GetScheduledMessages() []Summary {
	records := s.List()
	out := make([]Summary, 0, len(records))
	for _, rec := range records {
		out = append(out, Summary{
			ID:             rec.ID,
			Message:        rec.Message,
			Platform:       rec.platform(),
			ChannelID:      rec.ChannelID,
			ChannelName:    rec.ChannelName,
			CronExpression: rec.CronExpression(),
			Timezone:       rec.Timezone,
		})
	}
	return out
}

// UserMessage maps a scheduler error to the text shown to the requester.
func UserMessage(err error, channelID string) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidTimezone):
		return "❌ Unknown timezone. Use an IANA name such as `America/New_York`."
	case errors.Is(err, ErrInvalidTime):
		return "❌ Time must be given as HH:mm (00:00 to 23:59)."
	case errors.Is(err, ErrPastTime):
		return "The scheduled time must be in the future."
	case errors.Is(err, ErrEmptyMessage):
		return "❌ The message must not be empty."
	case errors.Is(err, ErrChannelUnavailable):
		return fmt.Sprintf("Channel not found or bot lacks access: %s", channelID)
	case errors.Is(err, ErrJobNotFound):
		return "❌ Failed to cancel. Message not found."
	case errors.Is(err, ErrNotStarted):
		return "❌ The scheduler is still starting up, please try again shortly."
	case errors.Is(err, ErrStoreWrite):
		return "❌ Could not save the scheduled message, please try again."
	default:
		return fmt.Sprintf("Error scheduling message: %v", err)
	}
}

func channelLabel(rec JobRecord) string {
	if rec.ChannelName != "" {
		return fmt.Sprintf("#%s (%s)", rec.ChannelName, rec.ChannelID)
	}
	return rec.ChannelID
}

// FormatNext renders a next-run time in the job's own timezone.
func FormatNext(rec JobRecord, next time.Time) string {
	loc, err := loadLocation(rec.Timezone)
	if err != nil {
		return next.Format("2006-01-02 15:04 MST")
	}
	return next.In(loc).Format("2006-01-02 15:04 MST")
}
