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
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/driveingest/pkg/evaluate"
	"gitlab.com/tozd/go/errors"
)

const validYAML = `
drive:
  id: b!drive
  root_folder_id: 01ROOT
  pending_folder_id: 01PENDING
  processed_folder_id: 01DONE
  not_processed_folder_id: 01REJECT
  user_id: ops@example.com
credentials:
  tenant_id: tenant
  client_id: client
  client_secret_env: GRAPH_SECRET
download_directory: downloads
concurrency: 4
requests_per_second: 2.5
evaluator:
  kind: pattern
  patterns: ["*.pdf", "*.csv"]
`

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		config      string
		wantErr     bool
		errContains string
		wantField   string
		check       func(t *testing.T, dir string, cfg *Config)
	}{
		{
			name:   "valid_config",
			config: validYAML,
			check: func(t *testing.T, dir string, cfg *Config) {
				assert.Equal(t, "b!drive", cfg.Drive.ID, "drive id should match")
				assert.Equal(t, "01ROOT", cfg.Drive.RootFolderID)
				assert.Equal(t, "01PENDING", cfg.Drive.PendingFolderID)
				assert.Equal(t, "01DONE", cfg.Drive.ProcessedFolderID)
				assert.Equal(t, "01REJECT", cfg.Drive.NotProcessedFolderID)
				assert.Equal(t, "ops@example.com", cfg.Drive.UserID)
				assert.Equal(t, "GRAPH_SECRET", cfg.Credentials.ClientSecretEnv)
				assert.Equal(t, filepath.Join(dir, "downloads"), cfg.DownloadDirectory, "relative paths resolve against the config file")
				assert.Equal(t, 4, cfg.Concurrency)
				assert.InDelta(t, 2.5, cfg.RequestsPerSecond, 0.001)
				assert.Equal(t, filepath.Join(dir, "downloads", ".driveingest-state.json"), cfg.StateFile, "state file defaults into the download directory")
				assert.Equal(t, evaluate.Spec{Kind: evaluate.KindPattern, Patterns: []string{"*.pdf", "*.csv"}}, cfg.EvaluatorSpec())
			},
		},
		{
			name: "minimal_config",
			config: `
drive:
  id: b!drive
  pending_folder_id: P
  processed_folder_id: OK
  not_processed_folder_id: NOK
credentials:
  tenant_id: tenant
  client_id: client
download_directory: /var/lib/driveingest
`,
			check: func(t *testing.T, dir string, cfg *Config) {
				assert.Equal(t, "/var/lib/driveingest", cfg.DownloadDirectory)
				assert.Equal(t, DefaultConcurrency, cfg.Concurrency, "concurrency should default")
				assert.InDelta(t, DefaultRequestsPerSecond, cfg.RequestsPerSecond, 0.001)
				assert.Equal(t, DefaultClientSecretEnv, cfg.Credentials.ClientSecretEnv)
				assert.Equal(t, DefaultConflictBehavior, cfg.ConflictBehavior)
				require.NotNil(t, cfg.Evaluator)
				assert.Equal(t, DefaultEvaluatorKind, cfg.Evaluator.Kind)
			},
		},
		{
			name: "missing_drive_id",
			config: `
drive:
  pending_folder_id: P
  processed_folder_id: OK
  not_processed_folder_id: NOK
credentials: {tenant_id: t, client_id: c}
download_directory: /tmp/in
`,
			wantErr:   true,
			wantField: "drive.id",
		},
		{
			name: "pending_equals_processed",
			config: `
drive:
  id: d
  pending_folder_id: SAME
  processed_folder_id: SAME
  not_processed_folder_id: NOK
credentials: {tenant_id: t, client_id: c}
download_directory: /tmp/in
`,
			wantErr:     true,
			wantField:   "drive.pending_folder_id",
			errContains: "must differ",
		},
		{
			name: "destinations_equal",
			config: `
drive:
  id: d
  pending_folder_id: P
  processed_folder_id: SAME
  not_processed_folder_id: SAME
credentials: {tenant_id: t, client_id: c}
download_directory: /tmp/in
`,
			wantErr:   true,
			wantField: "drive.not_processed_folder_id",
		},
		{
			name: "missing_credentials",
			config: `
drive: {id: d, pending_folder_id: P, processed_folder_id: OK, not_processed_folder_id: NOK}
download_directory: /tmp/in
`,
			wantErr:   true,
			wantField: "credentials.tenant_id",
		},
		{
			name: "missing_download_directory",
			config: `
drive: {id: d, pending_folder_id: P, processed_folder_id: OK, not_processed_folder_id: NOK}
credentials: {tenant_id: t, client_id: c}
`,
			wantErr:   true,
			wantField: "download_directory",
		},
		{
			name: "negative_concurrency",
			config: `
drive: {id: d, pending_folder_id: P, processed_folder_id: OK, not_processed_folder_id: NOK}
credentials: {tenant_id: t, client_id: c}
download_directory: /tmp/in
concurrency: -1
`,
			wantErr:   true,
			wantField: "concurrency",
		},
		{
			name: "bad_conflict_behavior",
			config: `
drive: {id: d, pending_folder_id: P, processed_folder_id: OK, not_processed_folder_id: NOK}
credentials: {tenant_id: t, client_id: c}
download_directory: /tmp/in
conflict_behavior: overwrite
`,
			wantErr:   true,
			wantField: "conflict_behavior",
		},
		{
			name: "bad_evaluator",
			config: `
drive: {id: d, pending_folder_id: P, processed_folder_id: OK, not_processed_folder_id: NOK}
credentials: {tenant_id: t, client_id: c}
download_directory: /tmp/in
evaluator:
  kind: pattern
`,
			wantErr:     true,
			wantField:   "evaluator",
			errContains: "at least one pattern",
		},
		{
			name: "unknown_field",
			config: `
drive: {id: d, pending_folder_id: P, processed_folder_id: OK, not_processed_folder_id: NOK}
credentials: {tenant_id: t, client_id: c}
download_directory: /tmp/in
delete_after_move: true
`,
			wantErr:     true,
			errContains: "parsing YAML",
		},
	}

	ctx := zerolog.New(os.Stderr).WithContext(context.Background())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")
			err := os.WriteFile(configPath, []byte(tt.config), 0644)
			require.NoError(t, err, "writing config file should succeed")

			cfg, err := LoadConfig(ctx, configPath)
			if tt.wantErr {
				require.Error(t, err, "LoadConfig should return error")
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains, "error should contain expected message")
				}
				if tt.wantField != "" {
					var verr *ValidationError
					require.True(t, errors.As(err, &verr), "should be a validation error")
					assert.Equal(t, tt.wantField, verr.Field)
				}
				return
			}

			require.NoError(t, err, "LoadConfig should succeed")
			assert.Equal(t, configPath, cfg.Location())
			if tt.check != nil {
				tt.check(t, tmpDir, cfg)
			}
		})
	}
}

func TestClientSecret(t *testing.T) {
	t.Run("inline_wins", func(t *testing.T) {
		cfg := &Config{Credentials: CredentialsConfig{ClientSecret: "inline", ClientSecretEnv: "DRIVEINGEST_TEST_UNSET"}}
		secret, err := cfg.ClientSecret()
		require.NoError(t, err)
		assert.Equal(t, "inline", secret)
	})

	t.Run("from_env", func(t *testing.T) {
		t.Setenv("DRIVEINGEST_TEST_SECRET", "s3cret")
		cfg := &Config{Credentials: CredentialsConfig{ClientSecretEnv: "DRIVEINGEST_TEST_SECRET"}}
		secret, err := cfg.ClientSecret()
		require.NoError(t, err)
		assert.Equal(t, "s3cret", secret)
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv(DefaultClientSecretEnv, "")
		cfg := &Config{}
		_, err := cfg.ClientSecret()
		require.Error(t, err)
		assert.Contains(t, err.Error(), DefaultClientSecretEnv)
	})
}

func TestConfigString(t *testing.T) {
	cfg := &Config{
		Drive: DriveConfig{
			ID:                   "b!drive",
			PendingFolderID:      "P",
			ProcessedFolderID:    "OK",
			NotProcessedFolderID: "NOK",
		},
		DownloadDirectory: "/tmp/in",
	}
	assert.Equal(t, "b!drive:P -> OK | NOK (into /tmp/in)", cfg.String())
}
