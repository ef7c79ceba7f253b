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

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/walteh/driveingest/pkg/evaluate"
	"github.com/walteh/driveingest/pkg/state"
	"gitlab.com/tozd/go/errors"
)

// Defaults applied by Validate
const (
	DefaultClientSecretEnv   = "DRIVEINGEST_CLIENT_SECRET"
	DefaultConcurrency       = 1
	DefaultRequestsPerSecond = 10
	DefaultEvaluatorKind     = evaluate.KindNonEmpty
	DefaultConflictBehavior  = "rename"
)

// 📚 Config is the complete driveingest configuration
type Config struct {
	Drive             DriveConfig       `json:"drive" yaml:"drive" hcl:"drive,block"`
	Credentials       CredentialsConfig `json:"credentials" yaml:"credentials" hcl:"credentials,block"`
	DownloadDirectory string            `json:"download_directory" yaml:"download_directory" hcl:"download_directory"`
	Concurrency       int               `json:"concurrency,omitempty" yaml:"concurrency,omitempty" hcl:"concurrency,optional"`
	RequestsPerSecond float64           `json:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty" hcl:"requests_per_second,optional"`
	StateFile         string            `json:"state_file,omitempty" yaml:"state_file,omitempty" hcl:"state_file,optional"`
	GraphBaseURL      string            `json:"graph_base_url,omitempty" yaml:"graph_base_url,omitempty" hcl:"graph_base_url,optional"`
	ConflictBehavior  string            `json:"conflict_behavior,omitempty" yaml:"conflict_behavior,omitempty" hcl:"conflict_behavior,optional"`
	Evaluator         *EvaluatorConfig  `json:"evaluator,omitempty" yaml:"evaluator,omitempty" hcl:"evaluator,block"`

	location string
}

// 📁 DriveConfig names the drive and its folders
type DriveConfig struct {
	ID                   string `json:"id" yaml:"id" hcl:"id"`
	RootFolderID         string `json:"root_folder_id,omitempty" yaml:"root_folder_id,omitempty" hcl:"root_folder_id,optional"`
	PendingFolderID      string `json:"pending_folder_id" yaml:"pending_folder_id" hcl:"pending_folder_id"`
	ProcessedFolderID    string `json:"processed_folder_id" yaml:"processed_folder_id" hcl:"processed_folder_id"`
	NotProcessedFolderID string `json:"not_processed_folder_id" yaml:"not_processed_folder_id" hcl:"not_processed_folder_id"`
	UserID               string `json:"user_id,omitempty" yaml:"user_id,omitempty" hcl:"user_id,optional"`
}

// 🔑 CredentialsConfig holds the app registration. The secret itself is read
// from the environment unless given inline.
type CredentialsConfig struct {
	TenantID        string `json:"tenant_id" yaml:"tenant_id" hcl:"tenant_id"`
	ClientID        string `json:"client_id" yaml:"client_id" hcl:"client_id"`
	ClientSecretEnv string `json:"client_secret_env,omitempty" yaml:"client_secret_env,omitempty" hcl:"client_secret_env,optional"`
	ClientSecret    string `json:"client_secret,omitempty" yaml:"client_secret,omitempty" hcl:"client_secret,optional"`
}

// 🎯 EvaluatorConfig selects the evaluator, see evaluate.FromSpec
type EvaluatorConfig struct {
	Kind      string   `json:"kind" yaml:"kind" hcl:"kind"`
	Processed bool     `json:"processed,omitempty" yaml:"processed,omitempty" hcl:"processed,optional"`
	Patterns  []string `json:"patterns,omitempty" yaml:"patterns,omitempty" hcl:"patterns,optional"`
}

// ❌ ValidationError points at the offending field
type ValidationError struct {
	Field   string
	Problem string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Problem)
}

func invalid(field, problem string) error {
	return errors.WithStack(&ValidationError{Field: field, Problem: problem})
}

// Location is the file the config was loaded from, if any
func (cfg *Config) Location() string {
	return cfg.location
}

// 🔍 Validate checks required fields and fills in defaults. Relative paths
// are resolved against the directory of the config file.
func (cfg *Config) Validate(ctx context.Context) error {
	d := cfg.Drive
	if d.ID == "" {
		return invalid("drive.id", "is required")
	}
	if d.PendingFolderID == "" {
		return invalid("drive.pending_folder_id", "is required")
	}
	if d.ProcessedFolderID == "" {
		return invalid("drive.processed_folder_id", "is required")
	}
	if d.NotProcessedFolderID == "" {
		return invalid("drive.not_processed_folder_id", "is required")
	}
	if d.PendingFolderID == d.ProcessedFolderID || d.PendingFolderID == d.NotProcessedFolderID {
		return invalid("drive.pending_folder_id", "must differ from both destination folders")
	}
	if d.ProcessedFolderID == d.NotProcessedFolderID {
		return invalid("drive.not_processed_folder_id", "must differ from drive.processed_folder_id")
	}

	if cfg.Credentials.TenantID == "" {
		return invalid("credentials.tenant_id", "is required")
	}
	if cfg.Credentials.ClientID == "" {
		return invalid("credentials.client_id", "is required")
	}
	if cfg.Credentials.ClientSecretEnv == "" {
		cfg.Credentials.ClientSecretEnv = DefaultClientSecretEnv
	}

	if cfg.DownloadDirectory == "" {
		return invalid("download_directory", "is required")
	}
	cfg.DownloadDirectory = cfg.resolve(cfg.DownloadDirectory)

	switch {
	case cfg.Concurrency < 0:
		return invalid("concurrency", "must not be negative")
	case cfg.Concurrency == 0:
		cfg.Concurrency = DefaultConcurrency
	}

	switch {
	case cfg.RequestsPerSecond < 0:
		return invalid("requests_per_second", "must not be negative")
	case cfg.RequestsPerSecond == 0:
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}

	switch cfg.ConflictBehavior {
	case "":
		cfg.ConflictBehavior = DefaultConflictBehavior
	case "fail", "replace", "rename":
	default:
		return invalid("conflict_behavior", fmt.Sprintf("must be fail, replace or rename, got %q", cfg.ConflictBehavior))
	}

	if cfg.StateFile == "" {
		cfg.StateFile = filepath.Join(cfg.DownloadDirectory, state.DefaultFileName)
	} else {
		cfg.StateFile = cfg.resolve(cfg.StateFile)
	}

	if cfg.Evaluator == nil {
		zerolog.Ctx(ctx).Debug().Str("kind", DefaultEvaluatorKind).Msg("no evaluator configured, using default")
		cfg.Evaluator = &EvaluatorConfig{Kind: DefaultEvaluatorKind}
	}
	if _, err := evaluate.FromSpec(cfg.EvaluatorSpec()); err != nil {
		return invalid("evaluator", err.Error())
	}

	return nil
}

func (cfg *Config) resolve(path string) string {
	if !filepath.IsAbs(path) && cfg.location != "" {
		path = filepath.Join(filepath.Dir(cfg.location), path)
	}
	return filepath.Clean(path)
}

// EvaluatorSpec converts the evaluator block for evaluate.FromSpec
func (cfg *Config) EvaluatorSpec() evaluate.Spec {
	if cfg.Evaluator == nil {
		return evaluate.Spec{Kind: DefaultEvaluatorKind}
	}
	return evaluate.Spec{
		Kind:      cfg.Evaluator.Kind,
		Processed: cfg.Evaluator.Processed,
		Patterns:  cfg.Evaluator.Patterns,
	}
}

// 🔑 ClientSecret returns the inline secret or reads it from the environment
func (cfg *Config) ClientSecret() (string, error) {
	if cfg.Credentials.ClientSecret != "" {
		return cfg.Credentials.ClientSecret, nil
	}
	env := cfg.Credentials.ClientSecretEnv
	if env == "" {
		env = DefaultClientSecretEnv
	}
	secret := os.Getenv(env)
	if secret == "" {
		return "", errors.Errorf("client secret not set: export %s", env)
	}
	return secret, nil
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	return fmt.Sprintf("%s:%s -> %s | %s (into %s)",
		cfg.Drive.ID,
		cfg.Drive.PendingFolderID,
		cfg.Drive.ProcessedFolderID,
		cfg.Drive.NotProcessedFolderID,
		cfg.DownloadDirectory)
}
