package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"
)

// Handle identifies an armed trigger. Handles are process-local and never persisted.
type Handle uint64

// Trigger turns a daily wall-clock time in a timezone into a fire event.
// Implementations fire each armed handle at most once.
type Trigger interface {
	Arm(hour, minute int, loc *time.Location, fire func()) (Handle, error)
	// Disarm stops a handle from firing. Disarming an unknown, fired or
	// already disarmed handle is a no-op.
	Disarm(h Handle)
	// Next reports the next fire time of an armed handle.
	Next(h Handle) (time.Time, bool)
	Start()
	Stop() context.Context
}

// CronTrigger arms daily cron entries on a robfig/cron scheduler and removes
// each entry after its first fire.
type CronTrigger struct {
	scheduler *robfigcron.Cron
	spec      func(hour, minute int, loc *time.Location) string
	entries   map[Handle]robfigcron.EntryID
	next      Handle
	mu        sync.Mutex
}

func NewCronTrigger() *CronTrigger {
	return newCronTrigger(dailySpec)
}

// newCronTrigger builds a trigger whose entries use the schedules produced by spec.
func newCronTrigger(spec func(hour, minute int, loc *time.Location) string, opts ...robfigcron.Option) *CronTrigger {
	return &CronTrigger{
		scheduler: robfigcron.New(opts...),
		spec:      spec,
		entries:   make(map[Handle]robfigcron.EntryID),
	}
}

// dailySpec matches hour:minute every day in loc.
func dailySpec(hour, minute int, loc *time.Location) string {
	return fmt.Sprintf("CRON_TZ=%s %d %d * * *", loc.String(), minute, hour)
}

// Start begins the underlying cron scheduler.
func (t *CronTrigger) Start() {
	t.scheduler.Start()
}

// Stop stops the scheduler. The returned context is done once running fires return.
func (t *CronTrigger) Stop() context.Context {
	return t.scheduler.Stop()
}

func (t *CronTrigger) Arm(hour, minute int, loc *time.Location, fire func()) (Handle, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time %02d:%02d out of range", hour, minute)
	}
	if loc == nil {
		loc = time.UTC
	}
	spec := t.spec(hour, minute, loc)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	h := t.next

	var once sync.Once
	entryID, err := t.scheduler.AddFunc(spec, func() {
		once.Do(func() {
			t.Disarm(h)
			fire()
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to register cron entry %q: %w", spec, err)
	}
	t.entries[h] = entryID
	return h, nil
}

func (t *CronTrigger) Disarm(h Handle) {
	t.mu.Lock()
	entryID, ok := t.entries[h]
	delete(t.entries, h)
	t.mu.Unlock()

	if ok {
		t.scheduler.Remove(entryID)
	}
}

func (t *CronTrigger) Next(h Handle) (time.Time, bool) {
	t.mu.Lock()
	entryID, ok := t.entries[h]
	t.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	entry := t.scheduler.Entry(entryID)
	if !entry.Valid() {
		return time.Time{}, false
	}
	if entry.Next.IsZero() {
		// Not started yet: compute from the schedule itself.
		return entry.Schedule.Next(time.Now()), true
	}
	return entry.Next, true
}

// Armed reports how many handles are currently armed.
func (t *CronTrigger) Armed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
