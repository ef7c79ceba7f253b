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

// Package evaluate decides whether a downloaded file counts as processed.
//
// Evaluators may be called more than once for the same file (a run that fails
// to move an item re-evaluates it next time), so they must not depend on call
// count.
package evaluate

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Evaluator reports whether the file at localPath was processed
type Evaluator interface {
	Evaluate(ctx context.Context, localPath string) (bool, error)
}

// Func adapts a function to Evaluator
type Func func(ctx context.Context, localPath string) (bool, error)

func (f Func) Evaluate(ctx context.Context, localPath string) (bool, error) {
	return f(ctx, localPath)
}

// Constant returns the same verdict for every file
type Constant bool

func (c Constant) Evaluate(ctx context.Context, localPath string) (bool, error) {
	if _, err := os.Stat(localPath); err != nil {
		return false, errors.Errorf("checking file: %w", err)
	}
	return bool(c), nil
}

// Pattern marks files whose base name matches any doublestar pattern as processed
type Pattern struct {
	patterns []string
}

// 🏭 NewPattern validates the patterns up front
func NewPattern(patterns ...string) (*Pattern, error) {
	if len(patterns) == 0 {
		return nil, errors.Errorf("at least one pattern is required")
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf("invalid pattern %q", p)
		}
	}
	return &Pattern{patterns: patterns}, nil
}

func (p *Pattern) Evaluate(ctx context.Context, localPath string) (bool, error) {
	if _, err := os.Stat(localPath); err != nil {
		return false, errors.Errorf("checking file: %w", err)
	}

	name := filepath.Base(localPath)
	for _, pattern := range p.patterns {
		matched, err := doublestar.Match(pattern, name)
		if err != nil {
			return false, errors.Errorf("matching %q: %w", pattern, err)
		}
		if matched {
			zerolog.Ctx(ctx).Debug().Str("file", name).Str("pattern", pattern).Msg("file matched pattern")
			return true, nil
		}
	}
	return false, nil
}

// NonEmpty marks files with at least one byte as processed
type NonEmpty struct{}

func (NonEmpty) Evaluate(ctx context.Context, localPath string) (bool, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return false, errors.Errorf("checking file: %w", err)
	}
	if info.IsDir() {
		return false, errors.Errorf("%s is a directory", localPath)
	}
	return info.Size() > 0, nil
}

// Kinds accepted by FromSpec
const (
	KindConstant = "constant"
	KindPattern  = "pattern"
	KindNonEmpty = "nonempty"
)

// Spec selects and parameterizes an evaluator
type Spec struct {
	Kind      string
	Processed bool     // constant
	Patterns  []string // pattern
}

// 🎯 FromSpec builds the evaluator described by spec
func FromSpec(spec Spec) (Evaluator, error) {
	switch spec.Kind {
	case KindConstant:
		return Constant(spec.Processed), nil
	case KindPattern:
		return NewPattern(spec.Patterns...)
	case KindNonEmpty:
		return NonEmpty{}, nil
	default:
		return nil, errors.Errorf("unknown evaluator kind %q", spec.Kind)
	}
}
