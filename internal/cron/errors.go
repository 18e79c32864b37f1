package cron

import "errors"

var (
	ErrInvalidTimezone    = errors.New("invalid timezone")
	ErrInvalidTime        = errors.New("invalid time")
	ErrPastTime           = errors.New("scheduled time is not in the future")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrChannelUnavailable = errors.New("channel unavailable")
	ErrJobNotFound        = errors.New("scheduled job not found")
	ErrStoreCorrupt       = errors.New("job store is corrupt")
	ErrStoreWrite         = errors.New("failed to write job store")
	ErrNotStarted         = errors.New("scheduler not started")
)
