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

package ingest

import (
	"fmt"
	"sync"
	"time"
)

// 📋 RunReport is the outcome of one RunOnce call
type RunReport struct {
	RunID           string
	DriveID         string
	PendingFolderID string
	StartedAt       time.Time
	FinishedAt      time.Time

	Seen           int // file items in the pending listing
	Downloaded     int
	Processed      int // moved to the processed folder
	NotProcessed   int // moved to the not-processed folder
	Failed         int
	Skipped        int // already gone from pending when re-read
	FoldersIgnored int

	Failures []ItemFailure
	// Aborted is true when the run stopped before attempting every item
	Aborted bool
}

// Duration of the run, zero while running
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *RunReport) String() string {
	return fmt.Sprintf("seen=%d downloaded=%d processed=%d not_processed=%d failed=%d skipped=%d",
		r.Seen, r.Downloaded, r.Processed, r.NotProcessed, r.Failed, r.Skipped)
}

// tally serializes report updates from concurrent items
type tally struct {
	mu     sync.Mutex
	report *RunReport
}

func (t *tally) downloaded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Downloaded++
}

func (t *tally) finished(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case task.Failure != nil:
		t.report.Failed++
		t.report.Failures = append(t.report.Failures, *task.Failure)
	case task.Skipped:
		t.report.Skipped++
	case task.Moved && task.Outcome == OutcomeProcessed:
		t.report.Processed++
	case task.Moved && task.Outcome == OutcomeNotProcessed:
		t.report.NotProcessed++
	}
}

func (t *tally) abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Aborted = true
}
