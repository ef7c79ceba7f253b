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
	"context"
	"fmt"

	"github.com/walteh/driveingest/pkg/remote"
	"github.com/walteh/driveingest/pkg/sink"
	"gitlab.com/tozd/go/errors"
)

// 📊 Outcome is the evaluator's verdict for an item
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeProcessed
	OutcomeNotProcessed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeNotProcessed:
		return "not_processed"
	default:
		return "pending"
	}
}

// ParseOutcome is the inverse of Outcome.String
func ParseOutcome(s string) Outcome {
	switch s {
	case "processed":
		return OutcomeProcessed
	case "not_processed":
		return OutcomeNotProcessed
	default:
		return OutcomePending
	}
}

// Stage names a step of the per-item sequence
type Stage string

const (
	StageMetadata Stage = "metadata"
	StageDownload Stage = "download"
	StageEvaluate Stage = "evaluate"
	StageMove     Stage = "move"
)

// FailureKind classifies why an item failed
type FailureKind string

const (
	KindNotFound     FailureKind = "not_found"
	KindUnauthorized FailureKind = "unauthorized"
	KindConflict     FailureKind = "conflict"
	KindTransient    FailureKind = "transient"
	KindIO           FailureKind = "io"
	KindEvaluator    FailureKind = "evaluator"
	KindCanceled     FailureKind = "canceled"
	KindUnknown      FailureKind = "unknown"
)

var errUnsafeName = errors.Base("unsafe item name")

// ItemFailure records a failed item in a RunReport
type ItemFailure struct {
	ItemID string
	Name   string
	Stage  Stage
	Kind   FailureKind
	Err    error
}

func (f ItemFailure) Error() string {
	return fmt.Sprintf("%s %s (%s): %s: %v", f.Stage, f.ItemID, f.Name, f.Kind, f.Err)
}

func (f ItemFailure) Unwrap() error {
	return f.Err
}

func classify(stage Stage, err error) FailureKind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	if stage == StageEvaluate {
		return KindEvaluator
	}
	switch remote.KindOf(err) {
	case remote.KindNotFound:
		return KindNotFound
	case remote.KindUnauthorized:
		return KindUnauthorized
	case remote.KindConflict:
		return KindConflict
	case remote.KindTransient:
		return KindTransient
	}
	if errors.Is(err, sink.ErrIO) || errors.Is(err, errUnsafeName) {
		return KindIO
	}
	return KindUnknown
}

// 📦 Task is the state of one item inside one run. It is owned by the run
// that created it and handed to journals and observers by value.
type Task struct {
	RunID      string
	Item       remote.Item
	LocalPath  string
	Downloaded bool
	Size       int64
	Checksum   string
	// Outcome is set once the evaluator has answered
	Outcome Outcome
	// Moved is true once the item left the pending folder
	Moved bool
	// TargetFolderID is where the item was (or was going to be) moved
	TargetFolderID string
	// Skipped is true when the item had already left pending
	Skipped bool
	Failure *ItemFailure
}
