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
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/walteh/driveingest/pkg/evaluate"
	"github.com/walteh/driveingest/pkg/remote"
	"github.com/walteh/driveingest/pkg/sink"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 🔧 Options contains everything a pipeline needs for one drive
type Options struct {
	DriveID              string
	PendingFolderID      string
	ProcessedFolderID    string
	NotProcessedFolderID string
	// DownloadDirectory receives downloaded files, flat, by item name
	DownloadDirectory string
	// Concurrency bounds how many items are in flight, defaults to 1
	Concurrency int

	Client    remote.Client
	Sink      sink.Sink
	Evaluator evaluate.Evaluator

	// Journal and Observer are optional
	Journal  Journal
	Observer Observer
}

// 🚚 Pipeline moves files out of a pending folder
type Pipeline struct {
	driveID        string
	pendingID      string
	processedID    string
	notProcessedID string
	downloadDir    string
	concurrency    int

	client    remote.Client
	sink      sink.Sink
	evaluator evaluate.Evaluator
	journal   Journal
	observer  Observer
	metrics   *instruments
}

// 🏭 New validates opts and creates a pipeline
func New(opts Options) (*Pipeline, error) {
	if opts.DriveID == "" {
		return nil, errors.Errorf("drive id is required")
	}
	if opts.PendingFolderID == "" || opts.ProcessedFolderID == "" || opts.NotProcessedFolderID == "" {
		return nil, errors.Errorf("pending, processed and not-processed folder ids are required")
	}
	if opts.PendingFolderID == opts.ProcessedFolderID ||
		opts.PendingFolderID == opts.NotProcessedFolderID ||
		opts.ProcessedFolderID == opts.NotProcessedFolderID {
		return nil, errors.Errorf("pending, processed and not-processed folders must be distinct")
	}
	if opts.DownloadDirectory == "" {
		return nil, errors.Errorf("download directory is required")
	}
	if opts.Client == nil {
		return nil, errors.Errorf("client is required")
	}
	if opts.Sink == nil {
		return nil, errors.Errorf("sink is required")
	}
	if opts.Evaluator == nil {
		return nil, errors.Errorf("evaluator is required")
	}
	if opts.Concurrency < 0 {
		return nil, errors.Errorf("concurrency must not be negative, got %d", opts.Concurrency)
	}

	p := &Pipeline{
		driveID:        opts.DriveID,
		pendingID:      opts.PendingFolderID,
		processedID:    opts.ProcessedFolderID,
		notProcessedID: opts.NotProcessedFolderID,
		downloadDir:    opts.DownloadDirectory,
		concurrency:    opts.Concurrency,
		client:         opts.Client,
		sink:           opts.Sink,
		evaluator:      opts.Evaluator,
		journal:        opts.Journal,
		observer:       opts.Observer,
		metrics:        newInstruments(),
	}
	if p.concurrency == 0 {
		p.concurrency = 1
	}
	if p.observer == nil {
		p.observer = nopObserver{}
	}
	return p, nil
}

// 🏃 RunOnce builds a pipeline from opts and runs it a single time
func RunOnce(ctx context.Context, opts Options) (*RunReport, error) {
	p, err := New(opts)
	if err != nil {
		return nil, errors.Errorf("creating pipeline: %w", err)
	}
	return p.RunOnce(ctx)
}

// 🏃 RunOnce lists the pending folder and handles every file in it. Per-item
// failures are recorded in the report and leave the item in pending. The
// returned error is non-nil only when the run itself could not proceed: the
// download directory or listing failed, credentials were rejected, or ctx was
// canceled. The report is returned in every case.
func (p *Pipeline) RunOnce(ctx context.Context) (report *RunReport, err error) {
	report = &RunReport{
		RunID:           uuid.NewString(),
		DriveID:         p.driveID,
		PendingFolderID: p.pendingID,
		StartedAt:       time.Now(),
	}
	logger := zerolog.Ctx(ctx).With().Str("run_id", report.RunID).Str("drive_id", p.driveID).Logger()
	ctx = logger.WithContext(ctx)

	defer func() {
		report.FinishedAt = time.Now()
		if p.journal != nil {
			if ferr := p.journal.Flush(ctx, report); ferr != nil {
				logger.Warn().Err(ferr).Msg("failed to flush journal")
				if err == nil {
					err = errors.Errorf("flushing journal: %w", ferr)
				}
			}
		}
		p.metrics.recordRun(ctx, report)
		p.observer.RunFinished(ctx, report, err)
	}()

	if err := p.sink.EnsureDirectory(ctx, p.downloadDir); err != nil {
		return report, errors.Errorf("preparing download directory: %w", err)
	}

	children, err := p.client.ListChildren(ctx, p.driveID, p.pendingID)
	if err != nil {
		return report, errors.Errorf("listing pending folder: %w", err)
	}

	files := make([]remote.Item, 0, len(children))
	for _, child := range children {
		if child.IsFolder {
			report.FoldersIgnored++
			continue
		}
		files = append(files, child)
	}
	report.Seen = len(files)
	logger.Debug().Int("files", len(files)).Int("folders", report.FoldersIgnored).Msg("listed pending folder")
	p.observer.RunStarted(ctx, report, len(files))

	t := &tally{report: report}
	pending := &pendingFolder{configured: p.pendingID}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, item := range files {
		if gctx.Err() != nil {
			t.abort()
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				t.abort()
				return nil
			}
			return p.processItem(gctx, item, pending, t)
		})
	}

	if err := g.Wait(); err != nil {
		t.abort()
		return report, err
	}
	if err := ctx.Err(); err != nil {
		t.abort()
		return report, errors.Errorf("run canceled: %w", err)
	}
	return report, nil
}

// processItem runs one item through metadata, download, evaluate and move.
// It returns an error only when the whole run must stop.
func (p *Pipeline) processItem(ctx context.Context, listed remote.Item, pending *pendingFolder, t *tally) error {
	task := Task{RunID: t.report.RunID, Item: listed, Outcome: OutcomePending}
	logger := zerolog.Ctx(ctx).With().Str("item_id", listed.ID).Str("name", listed.Name).Logger()
	ctx = logger.WithContext(ctx)

	fail := func(stage Stage, err error) error {
		failure := ItemFailure{
			ItemID: task.Item.ID,
			Name:   task.Item.Name,
			Stage:  stage,
			Kind:   classify(stage, err),
			Err:    err,
		}
		task.Failure = &failure
		logger.Warn().Err(err).Str("stage", string(stage)).Str("kind", string(failure.Kind)).Msg("item failed")
		p.finish(ctx, task, t)
		if failure.Kind == KindUnauthorized {
			return errors.Errorf("%s %s: %w", stage, task.Item.ID, err)
		}
		return nil
	}

	item, err := p.client.GetItem(ctx, p.driveID, listed.ID)
	if err != nil {
		return fail(StageMetadata, errors.Errorf("getting item metadata: %w", err))
	}
	task.Item = item

	// another worker or a person may have moved it since the listing
	if item.IsFolder || !pending.contains(ctx, p, item.ParentID) {
		logger.Warn().Str("parent_id", item.ParentID).Str("pending_id", p.pendingID).Msg("item no longer pending, skipping")
		task.Skipped = true
		p.finish(ctx, task, t)
		return nil
	}

	localPath, err := p.localPath(item.Name)
	if err != nil {
		return fail(StageDownload, err)
	}
	task.LocalPath = localPath

	written, err := p.download(ctx, item.ID, localPath)
	if err != nil {
		return fail(StageDownload, err)
	}
	task.Downloaded = true
	task.Size = written.Size
	task.Checksum = written.Checksum
	t.downloaded()
	logger.Debug().Str("path", localPath).Int64("size", written.Size).Msg("downloaded item")

	processed, err := p.evaluator.Evaluate(ctx, localPath)
	if err != nil {
		return fail(StageEvaluate, errors.Errorf("evaluating %s: %w", localPath, err))
	}
	task.Outcome = OutcomeNotProcessed
	task.TargetFolderID = p.notProcessedID
	if processed {
		task.Outcome = OutcomeProcessed
		task.TargetFolderID = p.processedID
	}

	if p.journal != nil {
		if prev, ok := p.journal.Previous(item.ID); ok && prev != OutcomePending && prev != task.Outcome {
			logger.Warn().Stringer("previous", prev).Stringer("current", task.Outcome).Msg("evaluation changed since last attempt")
		}
	}

	if err := p.client.MoveItem(ctx, p.driveID, item.ID, task.TargetFolderID); err != nil {
		return fail(StageMove, errors.Errorf("moving item: %w", err))
	}
	task.Moved = true
	logger.Info().Stringer("outcome", task.Outcome).Msg("item moved")

	p.finish(ctx, task, t)
	return nil
}

// pendingFolder answers whether a parent ID reported by item metadata is the
// pending folder. The configured ID may be an alias the drive accepts for
// listing, so on a mismatch the folder's canonical ID is looked up once per run.
type pendingFolder struct {
	configured string
	once       sync.Once
	canonical  string
}

func (f *pendingFolder) contains(ctx context.Context, p *Pipeline, parentID string) bool {
	if parentID == "" || parentID == f.configured {
		return true
	}
	f.once.Do(func() {
		folder, err := p.client.GetItem(ctx, p.driveID, f.configured)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("pending_id", f.configured).Msg("could not resolve pending folder id")
			return
		}
		f.canonical = folder.ID
		if folder.ID != f.configured {
			zerolog.Ctx(ctx).Debug().Str("pending_id", f.configured).Str("canonical_id", folder.ID).Msg("resolved pending folder alias")
		}
	})
	return f.canonical != "" && parentID == f.canonical
}

func (p *Pipeline) finish(ctx context.Context, task Task, t *tally) {
	t.finished(task)
	if p.journal != nil {
		p.journal.Record(ctx, task)
	}
	p.metrics.recordItem(ctx, task)
	p.observer.ItemFinished(ctx, task)
}

func (p *Pipeline) download(ctx context.Context, itemID, localPath string) (sink.Written, error) {
	stream, err := p.client.GetContentStream(ctx, p.driveID, itemID)
	if err != nil {
		return sink.Written{}, errors.Errorf("opening content stream: %w", err)
	}
	defer stream.Close()

	written, err := p.sink.WriteAll(ctx, localPath, stream)
	if err != nil {
		return sink.Written{}, errors.Errorf("writing %s: %w", localPath, err)
	}
	return written, nil
}

// localPath maps an item name into the download directory, rejecting names
// that would escape it
func (p *Pipeline) localPath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", errors.Errorf("%w %q", errUnsafeName, name)
	}
	return filepath.Join(p.downloadDir, name), nil
}
