package cron

import (
	"errors"
	"log/slog"
)

// Recover replaces the in-memory job set with the persisted one. Records that
// are malformed, not pending, or whose trigger time today has already passed
// are dropped; the rest are re-armed. The filtered set is written back
// immediately. A corrupt store is quarantined and treated as empty.
//
// Stale jobs are not rolled over to the next day: a scheduled message is a
// single delivery for the day it was requested.
func (s *Service) Recover() error {
	records, loadErr := s.store.Load()
	if loadErr != nil {
		if !errors.Is(loadErr, ErrStoreCorrupt) {
			s.mu.Lock()
			s.disarmAllLocked()
			s.records = nil
			s.mu.Unlock()
			return loadErr
		}
		slog.Error("job store is corrupt, starting with no scheduled jobs",
			"path", s.store.Path(), "error", loadErr)
		if dst, err := s.store.Quarantine(); err != nil {
			slog.Warn("could not move corrupt job store aside", "error", err)
		} else {
			slog.Warn("corrupt job store moved aside", "path", dst)
		}
		records = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.disarmAllLocked()
	now := s.now()
	kept := make([]JobRecord, 0, len(records))
	seen := make(map[string]bool, len(records))

	for _, rec := range records {
		if rec.Status != "" && rec.Status != StatusPending {
			slog.Info("dropping finished job", "id", rec.ID, "status", rec.Status)
			continue
		}
		if rec.Hour < 0 || rec.Hour > 23 || rec.Minute < 0 || rec.Minute > 59 {
			slog.Warn("dropping malformed job", "id", rec.ID, "hour", rec.Hour, "minute", rec.Minute)
			continue
		}
		if rec.ChannelID == "" {
			slog.Warn("dropping job without channel", "id", rec.ID)
			continue
		}
		loc, err := loadLocation(rec.Timezone)
		if err != nil {
			slog.Warn("dropping job with invalid timezone", "id", rec.ID, "timezone", rec.Timezone)
			continue
		}
		target := rec.Target(now, loc)
		if !target.After(now) {
			slog.Info("dropping stale job", "id", rec.ID, "target", target, "message", rec.Message)
			continue
		}

		if rec.ID == "" || seen[rec.ID] {
			rec.ID = s.newID()
		}
		seen[rec.ID] = true
		rec.Status = StatusPending

		h, err := s.trigger.Arm(rec.Hour, rec.Minute, loc, s.fireFunc(rec.ID))
		if err != nil {
			slog.Warn("dropping job that could not be re-armed", "id", rec.ID, "error", err)
			continue
		}
		s.handles[rec.ID] = h
		s.due[rec.ID] = target
		kept = append(kept, rec)
	}

	s.records = kept
	if err := s.store.Save(kept); err != nil {
		slog.Error("failed to persist recovered jobs", "error", err)
	}

	slog.Info("recovered scheduled jobs", "kept", len(kept), "dropped", len(records)-len(kept))
	return nil
}
