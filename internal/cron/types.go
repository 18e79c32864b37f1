package cron

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a scheduled job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFired     Status = "fired"
	StatusCancelled Status = "cancelled"
)

// DefaultPlatform is assumed for records persisted without a platform.
const DefaultPlatform = "discord"

// JobRecord is the persisted description of one pending scheduled delivery.
// It carries declarative fields only; live trigger handles are kept by Service.
type JobRecord struct {
	ID          string    `json:"id,omitempty"`
	Message     string    `json:"message"`
	Platform    string    `json:"platform,omitempty"`
	ChannelID   string    `json:"channelId"`
	ChannelName string    `json:"channelName,omitempty"`
	Hour        int       `json:"hour"`
	Minute      int       `json:"minute"`
	Timezone    string    `json:"timezone"`
	Status      Status    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

// CronExpression returns the daily cron expression the record is armed with.
func (r JobRecord) CronExpression() string {
	return fmt.Sprintf("%d %d * * *", r.Minute, r.Hour)
}

// Target returns the record's trigger instant on the day of now, in the record's timezone.
func (r JobRecord) Target(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), r.Hour, r.Minute, 0, 0, loc)
}

func (r JobRecord) platform() string {
	if r.Platform == "" {
		return DefaultPlatform
	}
	return r.Platform
}

// ScheduleRequest is a user request to deliver Message to a channel at Time ("HH:mm") in Timezone.
type ScheduleRequest struct {
	Message   string
	Platform  string
	ChannelID string
	Time      string
	Timezone  string
}

// Summary is the listing view of a scheduled job.
type Summary struct {
	ID             string `json:"id"`
	Message        string `json:"message"`
	Platform       string `json:"platform"`
	ChannelID      string `json:"channelId"`
	ChannelName    string `json:"channelName,omitempty"`
	CronExpression string `json:"cronExpression"`
	Timezone       string `json:"timezone"`
}

// cronStore is the envelope format written by earlier releases.
type cronStore struct {
	Version int         `json:"version"`
	Jobs    []JobRecord `json:"jobs"`
}
