package cron

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestConcurrentMutationsStayConsistent(t *testing.T) {
	const n = 40
	env := newTestEnv(t)

	var next atomic.Int64
	svc := NewService(env.path, env.sink,
		WithTrigger(env.trigger),
		WithClock(env.clock.now),
		WithIDGenerator(func() string { return fmt.Sprintf("c%d", next.Add(1)) }),
	)
	svc.Start()

	var (
		mu        sync.Mutex
		cancelled = make(map[string]bool)
	)
	cancel := func() {
		rec, err := svc.Cancel("reminder")
		if err != nil {
			return
		}
		mu.Lock()
		cancelled[rec.Message] = true
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		at := "09:00"
		if i%2 == 1 {
			at = "09:30"
		}
		wg.Add(1)
		go func(i int, at string) {
			defer wg.Done()
			_, err := svc.Schedule(t.Context(), ScheduleRequest{
				Message:   fmt.Sprintf("reminder %d", i),
				ChannelID: "C1",
				Time:      at,
				Timezone:  "America/New_York",
			})
			if err != nil {
				t.Errorf("Schedule %d: %v", i, err)
			}
		}(i, at)
		if i%4 == 0 {
			wg.Add(2)
			go func() { defer wg.Done(); cancel() }()
			go func() { defer wg.Done(); _ = svc.List() }()
		}
	}
	wg.Wait()

	ny := mustLoc(t, "America/New_York")
	for _, at := range []time.Time{
		time.Date(2026, 10, 17, 9, 0, 0, 0, ny),
		time.Date(2026, 10, 17, 9, 30, 0, 0, ny),
	} {
		env.clock.set(at)
		for i := 0; i < 4; i++ {
			wg.Add(2)
			go func() { defer wg.Done(); env.trigger.advance(env.clock.now()) }()
			go func() { defer wg.Done(); cancel() }()
		}
		wg.Wait()
	}

	if got, want := ids(svc.List()), ids(env.stored(t)); got != want {
		t.Fatalf("registry %q and store %q diverged", got, want)
	}
	if n := len(svc.List()); n != 0 {
		t.Errorf("expected every job fired or cancelled, %d left", n)
	}

	delivered := make(map[string]int)
	for _, m := range env.sink.messages() {
		delivered[m.text]++
	}
	for text, count := range delivered {
		if count != 1 {
			t.Errorf("%q delivered %d times", text, count)
		}
		if cancelled[text] {
			t.Errorf("%q was both cancelled and delivered", text)
		}
	}
	if total := len(delivered) + len(cancelled); total != n {
		t.Errorf("expected %d jobs accounted for, got %d delivered + %d cancelled",
			n, len(delivered), len(cancelled))
	}
}
