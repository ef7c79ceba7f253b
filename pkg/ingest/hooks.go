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

import "context"

// 📒 Journal keeps a durable record of item attempts across runs.
// Implementations must be safe for concurrent use.
type Journal interface {
	// Previous returns the last evaluated outcome recorded for an item
	Previous(itemID string) (Outcome, bool)
	// Record stores a finished task
	Record(ctx context.Context, task Task)
	// Flush persists the run
	Flush(ctx context.Context, report *RunReport) error
}

// 👀 Observer receives progress notifications, e.g. for console output.
// Implementations must be safe for concurrent use.
type Observer interface {
	RunStarted(ctx context.Context, report *RunReport, files int)
	ItemFinished(ctx context.Context, task Task)
	RunFinished(ctx context.Context, report *RunReport, err error)
}

type nopObserver struct{}

func (nopObserver) RunStarted(context.Context, *RunReport, int)    {}
func (nopObserver) ItemFinished(context.Context, Task)             {}
func (nopObserver) RunFinished(context.Context, *RunReport, error) {}
