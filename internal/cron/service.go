package cron

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
)

// Sink is the delivery capability of the host chat platforms.
type Sink interface {
	// ResolveChannel checks that channelID is reachable and returns its display name.
	ResolveChannel(ctx context.Context, platform, channelID string) (string, error)
	Deliver(ctx context.Context, platform, channelID, text string) error
}

// Service is the registry of scheduled messages. It owns the in-memory job set,
// the live trigger handles, and keeps the store in step with both.
type Service struct {
	store   *Store
	trigger Trigger
	sink    Sink
	now     func() time.Time
	newID   func() string

	mu      sync.Mutex
	records []JobRecord
	handles map[string]Handle
	due     map[string]time.Time // target instant each armed job was accepted for
	started bool
}

// Option configures a Service.
type Option func(*Service)

// WithTrigger replaces the default robfig/cron based trigger.
func WithTrigger(t Trigger) Option {
	return func(s *Service) { s.trigger = t }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the default short uuid job ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(storePath string, sink Sink, opts ...Option) *Service {
	s := &Service{
		store:   NewStore(storePath),
		sink:    sink,
		now:     time.Now,
		newID:   func() string { return uuid.New().String()[:8] },
		handles: make(map[string]Handle),
		due:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.trigger == nil {
		s.trigger = NewCronTrigger()
	}
	return s
}

// Start restores persisted jobs and then starts the trigger engine. Schedule
// requests are rejected until Start has run.
func (s *Service) Start() {
	if err := s.Recover(); err != nil {
		slog.Error("job recovery failed, continuing with no scheduled jobs", "error", err)
	}
	s.trigger.Start()

	s.mu.Lock()
	s.started = true
	n := len(s.records)
	s.mu.Unlock()

	slog.Info("scheduler started", "jobs", n, "store", s.store.Path())
}

// Stop stops the trigger engine and waits for running fires, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	select {
	case <-s.trigger.Stop().Done():
	case <-ctx.Done():
		slog.Warn("scheduler stop timed out waiting for deliveries")
	}
}

// Schedule validates req, persists a new pending job and arms its trigger.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (JobRecord, error) {
	if !s.isStarted() {
		return JobRecord{}, ErrNotStarted
	}
	if strings.TrimSpace(req.Message) == "" {
		return JobRecord{}, ErrEmptyMessage
	}
	hour, minute, err := parseClock(req.Time)
	if err != nil {
		return JobRecord{}, err
	}
	loc, err := loadLocation(req.Timezone)
	if err != nil {
		return JobRecord{}, err
	}

	now := s.now().In(loc)
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
	if !target.After(now) {
		return JobRecord{}, fmt.Errorf("%w: %s is not after %s", ErrPastTime,
			target.Format("15:04"), now.Format("15:04 MST"))
	}

	platform := req.Platform
	if platform == "" {
		platform = DefaultPlatform
	}
	if strings.TrimSpace(req.ChannelID) == "" {
		return JobRecord{}, fmt.Errorf("%w: no channel given", ErrChannelUnavailable)
	}
	name, err := s.sink.ResolveChannel(ctx, platform, req.ChannelID)
	if err != nil {
		return JobRecord{}, fmt.Errorf("%w: %s: %v", ErrChannelUnavailable, req.ChannelID, err)
	}

	rec := JobRecord{
		ID:          s.newID(),
		Message:     req.Message,
		Platform:    platform,
		ChannelID:   req.ChannelID,
		ChannelName: name,
		Hour:        hour,
		Minute:      minute,
		Timezone:    loc.String(),
		Status:      StatusPending,
		CreatedAt:   s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	if err := s.store.Save(s.records); err != nil {
		s.records = s.records[:len(s.records)-1]
		slog.Error("failed to persist scheduled job", "id", rec.ID, "error", err)
		return JobRecord{}, err
	}

	h, err := s.trigger.Arm(hour, minute, loc, s.fireFunc(rec.ID))
	if err != nil {
		s.records = s.records[:len(s.records)-1]
		if serr := s.store.Save(s.records); serr != nil {
			slog.Error("failed to persist rollback of unarmed job", "id", rec.ID, "error", serr)
		}
		return JobRecord{}, fmt.Errorf("failed to arm trigger: %w", err)
	}
	s.handles[rec.ID] = h
	s.due[rec.ID] = target

	slog.Info("scheduled message", "id", rec.ID, "platform", platform, "channel", rec.ChannelID,
		"at", target.Format(time.RFC3339))
	return rec, nil
}

// Cancel removes the first job matching match. An exact id match wins;
// otherwise the first job (in insertion order) whose message contains match,
// case-insensitively, is cancelled.
func (s *Service) Cancel(match string) (JobRecord, error) {
	match = strings.TrimSpace(match)
	if match == "" {
		return JobRecord{}, fmt.Errorf("%w: empty match", ErrJobNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.matchLocked(match)
	if idx < 0 {
		return JobRecord{}, fmt.Errorf("%w: %q", ErrJobNotFound, match)
	}
	rec := s.removeLocked(idx)
	rec.Status = StatusCancelled

	if err := s.store.Save(s.records); err != nil {
		slog.Error("failed to persist cancelled job", "id", rec.ID, "error", err)
		return rec, err
	}
	slog.Info("cancelled scheduled message", "id", rec.ID)
	return rec, nil
}

// List returns a snapshot of pending jobs in insertion order.
func (s *Service) List() []JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]JobRecord, len(s.records))
	copy(result, s.records)
	return result
}

// NextRun reports when the job with the given id will fire.
func (s *Service) NextRun(id string) (time.Time, bool) {
	s.mu.Lock()
	h, ok := s.handles[id]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.trigger.Next(h)
}

func (s *Service) fireFunc(id string) func() {
	return func() { s.fire(id) }
}

// fire claims the job, removes it from registry and store, then delivers it.
// The job is gone before the send is attempted, so it is delivered at most once.
// A fire that lands on a different local day than the one the job was accepted
// for is dropped without sending.
func (s *Service) fire(id string) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		slog.Debug("trigger fired for a job that is no longer scheduled", "id", id)
		return
	}
	due, hasDue := s.due[id]
	rec := s.removeLocked(idx)
	rec.Status = StatusFired
	err := s.store.Save(s.records)
	now := s.now()
	s.mu.Unlock()

	if err != nil {
		slog.Error("failed to persist fired job removal", "id", id, "error", err)
	}
	if hasDue && !sameDay(now, due) {
		slog.Warn("dropping scheduled message, trigger fired on another day",
			"id", id, "due", due.Format(time.RFC3339), "fired", now.In(due.Location()).Format(time.RFC3339))
		return
	}
	s.deliver(rec)
}

// sameDay reports whether t falls on due's calendar date in due's timezone.
func sameDay(t, due time.Time) bool {
	ty, tm, td := t.In(due.Location()).Date()
	dy, dm, dd := due.Date()
	return ty == dy && tm == dm && td == dd
}

func (s *Service) deliver(rec JobRecord) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic delivering scheduled message", "id", rec.ID, "panic", r)
		}
	}()

	ctx := context.Background()
	platform := rec.platform()
	if _, err := s.sink.ResolveChannel(ctx, platform, rec.ChannelID); err != nil {
		slog.Warn("dropping scheduled message, channel unavailable",
			"id", rec.ID, "platform", platform, "channel", rec.ChannelID, "error", err)
		return
	}
	if err := s.sink.Deliver(ctx, platform, rec.ChannelID, rec.Message); err != nil {
		slog.Error("failed to deliver scheduled message",
			"id", rec.ID, "platform", platform, "channel", rec.ChannelID, "error", err)
		return
	}
	slog.Info("delivered scheduled message", "id", rec.ID, "platform", platform, "channel", rec.ChannelID)
}

func (s *Service) isStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Caller must hold s.mu.
func (s *Service) indexLocked(id string) int {
	for i, rec := range s.records {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

// Caller must hold s.mu.
func (s *Service) matchLocked(match string) int {
	if idx := s.indexLocked(match); idx >= 0 {
		return idx
	}
	needle := strings.ToLower(match)
	for i, rec := range s.records {
		if strings.Contains(strings.ToLower(rec.Message), needle) {
			return i
		}
	}
	return -1
}

// removeLocked disarms and removes the record at idx. Caller must hold s.mu.
func (s *Service) removeLocked(idx int) JobRecord {
	rec := s.records[idx]
	if h, ok := s.handles[rec.ID]; ok {
		s.trigger.Disarm(h)
		delete(s.handles, rec.ID)
	}
	delete(s.due, rec.ID)
	s.records = append(s.records[:idx:idx], s.records[idx+1:]...)
	return rec
}

// Caller must hold s.mu.
func (s *Service) disarmAllLocked() {
	for id, h := range s.handles {
		s.trigger.Disarm(h)
		delete(s.handles, id)
	}
	clear(s.due)
}

// parseClock parses "HH:mm" (24h).
func parseClock(value string) (int, int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return 0, 0, fmt.Errorf("%w %q, expected HH:mm", ErrInvalidTime, value)
	}
	h, herr := strconv.Atoi(hh)
	m, merr := strconv.Atoi(mm)
	if herr != nil || merr != nil {
		return 0, 0, fmt.Errorf("%w %q, expected HH:mm", ErrInvalidTime, value)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w %q out of range", ErrInvalidTime, value)
	}
	return h, m, nil
}

// loadLocation resolves an IANA timezone name. Empty and "Local" are rejected
// so a job never silently depends on the host timezone.
func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return nil, fmt.Errorf("%w %q", ErrInvalidTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}
