package cron

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// manualTrigger fires armed jobs only when advance is called.
type manualTrigger struct {
	mu    sync.Mutex
	next  Handle
	armed map[Handle]armedJob
}

type armedJob struct {
	hour, minute int
	loc          *time.Location
	fire         func()
}

func newManualTrigger() *manualTrigger {
	return &manualTrigger{armed: make(map[Handle]armedJob)}
}

func (m *manualTrigger) Arm(hour, minute int, loc *time.Location, fire func()) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.armed[m.next] = armedJob{hour: hour, minute: minute, loc: loc, fire: fire}
	return m.next, nil
}

func (m *manualTrigger) Disarm(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.armed, h)
}

func (m *manualTrigger) Next(h Handle) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.armed[h]
	if !ok {
		return time.Time{}, false
	}
	return time.Date(2000, 1, 1, j.hour, j.minute, 0, 0, j.loc), true
}

func (m *manualTrigger) Start() {}

func (m *manualTrigger) Stop() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func (m *manualTrigger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.armed)
}

// advance fires every armed job whose wall clock matches now, once each.
func (m *manualTrigger) advance(now time.Time) int {
	m.mu.Lock()
	var due []func()
	for h, j := range m.armed {
		local := now.In(j.loc)
		if local.Hour() == j.hour && local.Minute() == j.minute {
			due = append(due, j.fire)
			delete(m.armed, h)
		}
	}
	m.mu.Unlock()

	for _, fire := range due {
		fire()
	}
	return len(due)
}

type sentMessage struct {
	platform, channelID, text string
}

type fakeSink struct {
	mu        sync.Mutex
	channels  map[string]string
	sent      []sentMessage
	sendErr   error
	onDeliver func()
}

func newFakeSink(channels ...string) *fakeSink {
	s := &fakeSink{channels: make(map[string]string)}
	for _, id := range channels {
		s.channels[id] = "name-" + id
	}
	return s
}

func (f *fakeSink) ResolveChannel(_ context.Context, _ string, channelID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.channels[channelID]
	if !ok {
		return "", fmt.Errorf("unknown channel %s", channelID)
	}
	return name, nil
}

func (f *fakeSink) Deliver(_ context.Context, platform, channelID, text string) error {
	if f.onDeliver != nil {
		f.onDeliver()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{platform: platform, channelID: channelID, text: text})
	return f.sendErr
}

func (f *fakeSink) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%q): %v", name, err)
	}
	return loc
}

type testEnv struct {
	svc     *Service
	trigger *manualTrigger
	sink    *fakeSink
	clock   *fakeClock
	path    string
}

// newTestEnv returns a started service whose clock reads 08:00 in New York.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ny := mustLoc(t, "America/New_York")
	env := &testEnv{
		trigger: newManualTrigger(),
		sink:    newFakeSink("C1", "C2"),
		clock:   &fakeClock{t: time.Date(2026, 10, 17, 8, 0, 0, 0, ny)},
		path:    filepath.Join(t.TempDir(), "jobs.json"),
	}
	env.svc = env.newService()
	env.svc.Start()
	return env
}

func (e *testEnv) newService() *Service {
	ids := 0
	return NewService(e.path, e.sink,
		WithTrigger(e.trigger),
		WithClock(e.clock.now),
		WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("job%d", ids)
		}),
	)
}

func (e *testEnv) schedule(t *testing.T, message, channel, at string) JobRecord {
	t.Helper()
	rec, err := e.svc.Schedule(context.Background(), ScheduleRequest{
		Message:   message,
		ChannelID: channel,
		Time:      at,
		Timezone:  "America/New_York",
	})
	if err != nil {
		t.Fatalf("Schedule(%q, %s): %v", message, at, err)
	}
	return rec
}

func (e *testEnv) stored(t *testing.T) []JobRecord {
	t.Helper()
	records, err := NewStore(e.path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return records
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected error %v, got %v", target, err)
	}
}
