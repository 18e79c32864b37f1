package cron

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store persists the full set of job records to a single JSON file.
type Store struct {
	path string
}

// NewStore returns a Store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads all persisted records. A missing file yields an empty set.
// Both the bare array format and the {"version","jobs"} envelope are accepted.
func (s *Store) Load() ([]JobRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []JobRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job store: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []JobRecord{}, nil
	}

	var records []JobRecord
	if data[0] == '{' {
		var env cronStore
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
		}
		records = env.Jobs
	} else if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}

	if records == nil {
		records = []JobRecord{}
	}
	return records, nil
}

// Save overwrites the store with records. The file is written next to the
// target and renamed into place.
func (s *Store) Save(records []JobRecord) error {
	if records == nil {
		records = []JobRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrStoreWrite, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create store directory: %v", ErrStoreWrite, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	return nil
}

// Quarantine moves the current store file aside so a corrupt file is kept for
// inspection instead of being overwritten. It returns the new path.
func (s *Store) Quarantine() (string, error) {
	dst := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
	if err := os.Rename(s.path, dst); err != nil {
		return "", fmt.Errorf("failed to quarantine job store: %w", err)
	}
	return dst, nil
}
