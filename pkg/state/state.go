// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package state keeps the run journal: what happened to each item and a short
// history of runs. The drive stays the source of truth for where an item is;
// the journal only explains how it got there.
package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/driveingest/pkg/ingest"
	"gitlab.com/tozd/go/errors"
)

const (
	SchemaVersion = "1.0.0"
	// MaxRuns is how many run summaries are kept
	MaxRuns = 50
	// DefaultFileName is used when only a directory is known
	DefaultFileName = ".driveingest-state.json"
)

// File is the on-disk layout
type File struct {
	SchemaVersion string                 `json:"schema_version"`
	LastUpdated   time.Time              `json:"last_updated"`
	Items         map[string]*ItemRecord `json:"items"`
	// Runs is ordered oldest first
	Runs []RunRecord `json:"runs"`
}

// ItemRecord is the latest known state of one drive item
type ItemRecord struct {
	ItemID      string         `json:"item_id"`
	Name        string         `json:"name"`
	LocalPath   string         `json:"local_path,omitempty"`
	Size        int64          `json:"size"`
	Checksum    string         `json:"sha256,omitempty"`
	Outcome     string         `json:"outcome"`
	Target      string         `json:"target_folder_id,omitempty"`
	Moved       bool           `json:"moved"`
	Attempts    int            `json:"attempts"`
	LastAttempt time.Time      `json:"last_attempt"`
	LastRunID   string         `json:"last_run_id"`
	LastFailure *FailureRecord `json:"last_failure,omitempty"`
}

// FailureRecord is a serializable ingest.ItemFailure
type FailureRecord struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RunRecord summarizes one finished run
type RunRecord struct {
	RunID        string    `json:"run_id"`
	DriveID      string    `json:"drive_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Seen         int       `json:"seen"`
	Downloaded   int       `json:"downloaded"`
	Processed    int       `json:"processed"`
	NotProcessed int       `json:"not_processed"`
	Failed       int       `json:"failed"`
	Skipped      int       `json:"skipped"`
	Aborted      bool      `json:"aborted"`
}

// 📒 Store is a JSON backed ingest.Journal
type Store struct {
	path string

	mu   sync.Mutex
	file File
}

var _ ingest.Journal = (*Store)(nil)

// New creates an empty store that will persist to path
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.Errorf("state path is required")
	}
	return &Store{path: path, file: cleanFile()}, nil
}

// 📂 Open creates a store and loads whatever is already at path
func Open(ctx context.Context, path string) (*Store, error) {
	s, err := New(path)
	if err != nil {
		return nil, err
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func cleanFile() File {
	return File{SchemaVersion: SchemaVersion, Items: make(map[string]*ItemRecord)}
}

// Path of the state file
func (s *Store) Path() string {
	return s.path
}

// Load replaces the in-memory state with the file contents. A missing file
// yields a clean state.
func (s *Store) Load(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", s.path).Msg("loading state")

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.mu.Lock()
		s.file = cleanFile()
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return errors.Errorf("reading state file: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return errors.Errorf("parsing state file %s: %w", s.path, err)
	}
	if f.SchemaVersion != SchemaVersion {
		return errors.Errorf("unsupported state schema version %q, want %q", f.SchemaVersion, SchemaVersion)
	}
	if f.Items == nil {
		f.Items = make(map[string]*ItemRecord)
	}

	s.mu.Lock()
	s.file = f
	s.mu.Unlock()
	return nil
}

// 💾 Save writes the state atomically
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	s.file.LastUpdated = time.Now().UTC()
	data, err := json.MarshalIndent(s.file, "", "\t")
	s.mu.Unlock()
	if err != nil {
		return errors.Errorf("encoding state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Errorf("creating state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Errorf("creating temp state file: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Errorf("writing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return errors.Errorf("replacing state file: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Str("path", s.path).Msg("saved state")
	return nil
}

// Previous implements ingest.Journal
func (s *Store) Previous(itemID string) (ingest.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.file.Items[itemID]
	if !ok {
		return ingest.OutcomePending, false
	}
	o := ingest.ParseOutcome(rec.Outcome)
	return o, o != ingest.OutcomePending
}

// Record implements ingest.Journal
func (s *Store) Record(ctx context.Context, task ingest.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.file.Items[task.Item.ID]
	if !ok {
		rec = &ItemRecord{ItemID: task.Item.ID}
		s.file.Items[task.Item.ID] = rec
	}
	rec.Name = task.Item.Name
	rec.Attempts++
	rec.LastAttempt = time.Now().UTC()
	rec.LastRunID = task.RunID
	if task.Downloaded {
		rec.LocalPath = task.LocalPath
		rec.Size = task.Size
		rec.Checksum = task.Checksum
	}
	if task.Outcome != ingest.OutcomePending {
		rec.Outcome = task.Outcome.String()
		rec.Target = task.TargetFolderID
	}
	rec.Moved = task.Moved
	rec.LastFailure = nil
	if task.Failure != nil {
		rec.LastFailure = &FailureRecord{
			Stage:   string(task.Failure.Stage),
			Kind:    string(task.Failure.Kind),
			Message: task.Failure.Err.Error(),
		}
	}
}

// Flush implements ingest.Journal
func (s *Store) Flush(ctx context.Context, report *ingest.RunReport) error {
	s.mu.Lock()
	s.file.Runs = append(s.file.Runs, RunRecord{
		RunID:        report.RunID,
		DriveID:      report.DriveID,
		StartedAt:    report.StartedAt.UTC(),
		FinishedAt:   report.FinishedAt.UTC(),
		Seen:         report.Seen,
		Downloaded:   report.Downloaded,
		Processed:    report.Processed,
		NotProcessed: report.NotProcessed,
		Failed:       report.Failed,
		Skipped:      report.Skipped,
		Aborted:      report.Aborted,
	})
	if len(s.file.Runs) > MaxRuns {
		s.file.Runs = append([]RunRecord(nil), s.file.Runs[len(s.file.Runs)-MaxRuns:]...)
	}
	s.mu.Unlock()

	return s.Save(ctx)
}

// Snapshot returns a deep copy of the current state
func (s *Store) Snapshot() File {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := File{
		SchemaVersion: s.file.SchemaVersion,
		LastUpdated:   s.file.LastUpdated,
		Items:         make(map[string]*ItemRecord, len(s.file.Items)),
		Runs:          append([]RunRecord(nil), s.file.Runs...),
	}
	for id, rec := range s.file.Items {
		cp := *rec
		if rec.LastFailure != nil {
			lf := *rec.LastFailure
			cp.LastFailure = &lf
		}
		f.Items[id] = &cp
	}
	return f
}

// Unsettled returns items whose last attempt did not move them, sorted by ID
func (f File) Unsettled() []*ItemRecord {
	var out []*ItemRecord
	for _, rec := range f.Items {
		if !rec.Moved {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

// LastRun returns the most recent run, if any
func (f File) LastRun() (RunRecord, bool) {
	if len(f.Runs) == 0 {
		return RunRecord{}, false
	}
	return f.Runs[len(f.Runs)-1], true
}
