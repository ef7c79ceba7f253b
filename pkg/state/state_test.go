package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/driveingest/pkg/evaluate"
	"github.com/walteh/driveingest/pkg/ingest"
	"github.com/walteh/driveingest/pkg/remote"
	"github.com/walteh/driveingest/pkg/remote/memdrive"
	"github.com/walteh/driveingest/pkg/sink"
	"gitlab.com/tozd/go/errors"
)

func setupTestLogger(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.TestWriter{T: t}).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

func statePath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "nested", DefaultFileName)
}

func TestNew(t *testing.T) {
	t.Run("requires_path", func(t *testing.T) {
		_, err := New("")
		assert.Error(t, err)
	})

	t.Run("starts_clean", func(t *testing.T) {
		s, err := New(statePath(t))
		require.NoError(t, err)
		snap := s.Snapshot()
		assert.Equal(t, SchemaVersion, snap.SchemaVersion)
		assert.Empty(t, snap.Items)
		assert.Empty(t, snap.Runs)
	})
}

func TestLoad(t *testing.T) {
	ctx := setupTestLogger(t)

	t.Run("missing_file_is_clean", func(t *testing.T) {
		s, err := Open(ctx, statePath(t))
		require.NoError(t, err)
		assert.Empty(t, s.Snapshot().Items)
	})

	t.Run("corrupt_file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
		_, err := Open(ctx, path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing state file")
	})

	t.Run("schema_mismatch", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"schema_version":"0.1.0"}`), 0644))
		_, err := Open(ctx, path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported state schema version")
	})
}

func TestRecordAndFlush(t *testing.T) {
	ctx := setupTestLogger(t)
	path := statePath(t)

	s, err := Open(ctx, path)
	require.NoError(t, err)

	s.Record(ctx, ingest.Task{
		RunID:          "run-1",
		Item:           remote.Item{ID: "F1", Name: "a.txt"},
		LocalPath:      "/in/a.txt",
		Downloaded:     true,
		Size:           5,
		Checksum:       "abc",
		Outcome:        ingest.OutcomeProcessed,
		TargetFolderID: "OK",
		Moved:          true,
	})
	s.Record(ctx, ingest.Task{
		RunID:   "run-1",
		Item:    remote.Item{ID: "F2", Name: "b.txt"},
		Outcome: ingest.OutcomeNotProcessed,
		Failure: &ingest.ItemFailure{
			ItemID: "F2",
			Stage:  ingest.StageMove,
			Kind:   ingest.KindConflict,
			Err:    errors.New("move conflict"),
		},
	})

	report := &ingest.RunReport{
		RunID:      "run-1",
		DriveID:    "D1",
		StartedAt:  time.Now().Add(-time.Second),
		FinishedAt: time.Now(),
		Seen:       2,
		Downloaded: 2,
		Processed:  1,
		Failed:     1,
	}
	require.NoError(t, s.Flush(ctx, report))

	reloaded, err := Open(ctx, path)
	require.NoError(t, err, "state should reload")
	snap := reloaded.Snapshot()

	require.Len(t, snap.Items, 2)
	f1 := snap.Items["F1"]
	assert.Equal(t, "processed", f1.Outcome)
	assert.True(t, f1.Moved)
	assert.Equal(t, "abc", f1.Checksum)
	assert.Equal(t, "OK", f1.Target)
	assert.Equal(t, "run-1", f1.LastRunID)
	assert.Nil(t, f1.LastFailure)

	f2 := snap.Items["F2"]
	require.NotNil(t, f2.LastFailure)
	assert.Equal(t, "conflict", f2.LastFailure.Kind)
	assert.Equal(t, "move", f2.LastFailure.Stage)
	assert.Equal(t, "move conflict", f2.LastFailure.Message)

	unsettled := snap.Unsettled()
	require.Len(t, unsettled, 1)
	assert.Equal(t, "F2", unsettled[0].ItemID)

	last, ok := snap.LastRun()
	require.True(t, ok)
	assert.Equal(t, "run-1", last.RunID)
	assert.Equal(t, 1, last.Failed)

	prev, ok := reloaded.Previous("F2")
	assert.True(t, ok)
	assert.Equal(t, ingest.OutcomeNotProcessed, prev)

	_, ok = reloaded.Previous("unknown")
	assert.False(t, ok)
}

func TestRecordCountsAttempts(t *testing.T) {
	ctx := setupTestLogger(t)
	s, err := New(statePath(t))
	require.NoError(t, err)

	fail := &ingest.ItemFailure{Stage: ingest.StageDownload, Kind: ingest.KindTransient, Err: errors.New("timeout")}
	s.Record(ctx, ingest.Task{Item: remote.Item{ID: "F1"}, Failure: fail})

	_, ok := s.Previous("F1")
	assert.False(t, ok, "a download failure has no verdict")

	s.Record(ctx, ingest.Task{Item: remote.Item{ID: "F1"}, Outcome: ingest.OutcomeProcessed, Moved: true, Downloaded: true})

	rec := s.Snapshot().Items["F1"]
	assert.Equal(t, 2, rec.Attempts)
	assert.Nil(t, rec.LastFailure, "success clears the last failure")
}

func TestFlushKeepsRecentRuns(t *testing.T) {
	ctx := setupTestLogger(t)
	s, err := New(statePath(t))
	require.NoError(t, err)

	for i := 0; i < MaxRuns+5; i++ {
		require.NoError(t, s.Flush(ctx, &ingest.RunReport{RunID: fmt.Sprintf("run-%d", i)}))
	}

	runs := s.Snapshot().Runs
	require.Len(t, runs, MaxRuns)
	assert.Equal(t, "run-5", runs[0].RunID)
	assert.Equal(t, fmt.Sprintf("run-%d", MaxRuns+4), runs[len(runs)-1].RunID)
}

func TestConcurrentRecord(t *testing.T) {
	ctx := setupTestLogger(t)
	s, err := New(statePath(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Record(ctx, ingest.Task{Item: remote.Item{ID: fmt.Sprintf("F%d", i%8)}})
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	require.Len(t, snap.Items, 8)
	for _, rec := range snap.Items {
		assert.Equal(t, 4, rec.Attempts)
	}
}

func TestJournalWithPipeline(t *testing.T) {
	ctx := setupTestLogger(t)

	d := memdrive.New("D1")
	d.AddFolder("", "P", "Pending")
	d.AddFolder("", "OK", "Processed")
	d.AddFolder("", "NOK", "Not Processed")
	d.AddFile("P", "F1", "a.txt", []byte("alpha"))
	d.AddFile("P", "F2", "b.txt", []byte("beta"))
	d.Fail(memdrive.OpMoveItem, "F2", remote.KindTransient, 1)

	dir := t.TempDir()
	store, err := Open(ctx, filepath.Join(dir, DefaultFileName))
	require.NoError(t, err)

	opts := ingest.Options{
		DriveID:              "D1",
		PendingFolderID:      "P",
		ProcessedFolderID:    "OK",
		NotProcessedFolderID: "NOK",
		DownloadDirectory:    filepath.Join(dir, "in"),
		Client:               d,
		Sink:                 sink.NewFileSink(),
		Evaluator:            evaluate.Constant(true),
		Journal:              store,
	}

	_, err = ingest.RunOnce(ctx, opts)
	require.NoError(t, err)
	_, err = ingest.RunOnce(ctx, opts)
	require.NoError(t, err)

	reloaded, err := Open(ctx, store.Path())
	require.NoError(t, err)
	snap := reloaded.Snapshot()

	assert.Len(t, snap.Runs, 2)
	assert.Empty(t, snap.Unsettled(), "second run should settle everything")
	assert.Equal(t, 1, snap.Items["F1"].Attempts)
	assert.Equal(t, 2, snap.Items["F2"].Attempts)
	assert.Equal(t, snap.Runs[1].RunID, snap.Items["F2"].LastRunID)
}
