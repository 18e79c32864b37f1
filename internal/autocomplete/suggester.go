package autocomplete

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/coopco/schedbot/internal/cron"
)

// MaxChoices is the most suggestions a platform will display.
const MaxChoices = 25

// maxLabelLen caps choice names and values to what Discord accepts.
const maxLabelLen = 100

const refreshInterval = 2 * time.Second

//go:embed zones.txt
var zoneData string

var zones = strings.Fields(zoneData)

// Choice is one suggestion: Name is displayed, Value is submitted.
type Choice struct {
	Name  string
	Value string
}

// JobLister supplies the pending jobs offered when cancelling.
type JobLister interface {
	GetScheduledMessages() []cron.Summary
}

// Suggester answers autocomplete requests for command options. Job
// suggestions are cached and refreshed at most once per refresh interval.
type Suggester struct {
	jobs    JobLister
	limiter *rate.Limiter

	mu     sync.Mutex
	cached []Choice
	loaded bool
}

func NewSuggester(jobs JobLister) *Suggester {
	return &Suggester{
		jobs:    jobs,
		limiter: rate.NewLimiter(rate.Every(refreshInterval), 1),
	}
}

// Suggest returns choices for option of command given what the user has typed.
func (s *Suggester) Suggest(command, option, typed string) []Choice {
	switch {
	case option == "timezone":
		return Timezones(typed)
	case command == "cancel" && option == "message":
		return s.jobChoices(typed)
	}
	return nil
}

// Invalidate forces the next job suggestion to reload.
func (s *Suggester) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
}

func (s *Suggester) jobChoices(typed string) []Choice {
	s.mu.Lock()
	if allowed := s.limiter.Allow(); allowed || !s.loaded {
		s.cached = s.load()
		s.loaded = true
	}
	all := s.cached
	s.mu.Unlock()

	needle := strings.ToLower(strings.TrimSpace(typed))
	out := make([]Choice, 0, min(len(all), MaxChoices))
	for _, c := range all {
		if needle != "" && !strings.Contains(strings.ToLower(c.Name), needle) {
			continue
		}
		out = append(out, c)
		if len(out) == MaxChoices {
			break
		}
	}
	return out
}

func (s *Suggester) load() []Choice {
	if s.jobs == nil {
		return nil
	}
	jobs := s.jobs.GetScheduledMessages()
	out := make([]Choice, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, Choice{
			Name:  truncate(fmt.Sprintf("%s (%s)", j.Message, j.ID), maxLabelLen),
			Value: truncate(j.ID, maxLabelLen),
		})
	}
	return out
}

// Timezones returns IANA zone names containing typed, case-insensitively.
// Names starting with typed sort first.
func Timezones(typed string) []Choice {
	needle := strings.ToLower(strings.TrimSpace(typed))
	needle = strings.ReplaceAll(needle, " ", "_")

	var prefix, contains []string
	for _, z := range zones {
		lz := strings.ToLower(z)
		switch {
		case needle == "" || strings.HasPrefix(lz, needle):
			prefix = append(prefix, z)
		case strings.Contains(lz, needle):
			contains = append(contains, z)
		}
	}
	sort.Strings(prefix)
	sort.Strings(contains)

	names := append(prefix, contains...)
	if len(names) > MaxChoices {
		names = names[:MaxChoices]
	}
	out := make([]Choice, len(names))
	for i, n := range names {
		out[i] = Choice{Name: n, Value: n}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
