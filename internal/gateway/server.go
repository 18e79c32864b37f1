package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coopco/schedbot/internal/cron"
)

const shutdownTimeout = 5 * time.Second

// JobSource exposes the pending jobs.
type JobSource interface {
	GetScheduledMessages() []cron.Summary
	NextRun(id string) (time.Time, bool)
}

// Job is a pending job as served by /api/jobs.
type Job struct {
	cron.Summary
	NextRun *time.Time `json:"nextRun,omitempty"`
}

// Server serves the health check and a read-only job listing.
type Server struct {
	server *http.Server
	jobs   JobSource
}

func New(addr string, jobs JobSource) *Server {
	s := &Server{jobs: jobs}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ping", getOnly(s.handlePing))
	mux.HandleFunc("/api/jobs", getOnly(s.handleJobs))
	return mux
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("gateway: listen on %s: %w", s.server.Addr, err)
	}
	slog.Info("gateway listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("gateway: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway: shutdown: %w", err)
	}
	return nil
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	slog.Debug("ping received", "remote", r.RemoteAddr, "agent", r.UserAgent())
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Bot is running smoothly!",
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, _ *http.Request) {
	summaries := s.jobs.GetScheduledMessages()
	jobs := make([]Job, 0, len(summaries))
	for _, sum := range summaries {
		j := Job{Summary: sum}
		if next, ok := s.jobs.NextRun(sum.ID); ok {
			j.NextRun = &next
		}
		jobs = append(jobs, j)
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", http.MethodGet)
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
				"message": fmt.Sprintf("Method %s not allowed", r.Method),
			})
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("gateway: failed to encode response", "err", err)
	}
}
