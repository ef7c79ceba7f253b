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

// Package sink materializes downloaded content on local storage.
package sink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ErrIO marks failures of the local file system
var ErrIO = errors.Base("local storage")

// Written describes a completed write
type Written struct {
	Path     string
	Size     int64
	Checksum string // hex sha256 of the written bytes
}

// 💾 Sink writes byte streams to local paths
type Sink interface {
	// EnsureDirectory creates path if absent and is a no-op otherwise
	EnsureDirectory(ctx context.Context, path string) error
	// WriteAll replaces path with the full content of r
	WriteAll(ctx context.Context, path string, r io.Reader) (Written, error)
}

// FileSink is a Sink backed by the local file system
type FileSink struct {
	dirMode  os.FileMode
	fileMode os.FileMode
}

var _ Sink = (*FileSink)(nil)

// 🏭 NewFileSink creates a FileSink with 0755 directories and 0644 files
func NewFileSink() *FileSink {
	return &FileSink{dirMode: 0755, fileMode: 0644}
}

type ioError struct {
	err error
}

func (e *ioError) Error() string        { return "local storage: " + e.err.Error() }
func (e *ioError) Unwrap() error        { return e.err }
func (e *ioError) Is(target error) bool { return target == ErrIO }

func ioErr(err error) error {
	return &ioError{err: err}
}

// EnsureDirectory implements Sink
func (s *FileSink) EnsureDirectory(ctx context.Context, path string) error {
	if err := os.MkdirAll(path, s.dirMode); err != nil {
		return errors.Errorf("creating directory %s: %w", path, ioErr(err))
	}
	return nil
}

// WriteAll implements Sink. Content is streamed into a temporary file next to
// path and renamed over it once complete, so path only ever holds a whole file.
// Errors from r are returned as-is, errors from the file system wrap ErrIO.
func (s *FileSink) WriteAll(ctx context.Context, path string, r io.Reader) (Written, error) {
	logger := zerolog.Ctx(ctx)

	dir := filepath.Dir(path)
	if err := s.EnsureDirectory(ctx, dir); err != nil {
		return Written{}, err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return Written{}, errors.Errorf("creating temp file: %w", ioErr(err))
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	h := sha256.New()
	n, err := io.Copy(&fileWriter{f: tmp, h: h}, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		cleanup()
		return Written{}, errors.Errorf("copying content: %w", err)
	}

	if err := tmp.Chmod(s.fileMode); err != nil {
		cleanup()
		return Written{}, errors.Errorf("setting file mode: %w", ioErr(err))
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return Written{}, errors.Errorf("syncing temp file: %w", ioErr(err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return Written{}, errors.Errorf("closing temp file: %w", ioErr(err))
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return Written{}, errors.Errorf("renaming temp file: %w", ioErr(err))
	}

	w := Written{Path: path, Size: n, Checksum: hex.EncodeToString(h.Sum(nil))}
	logger.Debug().Str("path", path).Int64("size", n).Str("sha256", w.Checksum).Msg("wrote file")
	return w, nil
}

// fileWriter tags write failures with ErrIO so they can be told apart from read failures
type fileWriter struct {
	f *os.File
	h hash.Hash
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.h.Write(p[:n])
	if err != nil {
		return n, ioErr(err)
	}
	return n, nil
}

// ctxReader stops a copy once the context is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
