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
)

func TestLoadConfigFormats(t *testing.T) {
	t.Setenv("DRIVEINGEST_TEST_TENANT", "tenant-from-env")

	tests := []struct {
		name        string
		file        string
		content     string
		wantErr     bool
		errContains string
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "json",
			file: "config.json",
			content: `{
	"drive": {"id": "d", "pending_folder_id": "P", "processed_folder_id": "OK", "not_processed_folder_id": "NOK"},
	"credentials": {"tenant_id": "t", "client_id": "c"},
	"download_directory": "/tmp/in",
	"evaluator": {"kind": "constant", "processed": true}
}`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "d", cfg.Drive.ID)
				assert.True(t, cfg.Evaluator.Processed)
			},
		},
		{
			name: "json_unknown_field",
			file: "config.json",
			content: `{
	"drive": {"id": "d", "pending_folder_id": "P", "processed_folder_id": "OK", "not_processed_folder_id": "NOK"},
	"credentials": {"tenant_id": "t", "client_id": "c"},
	"download_directory": "/tmp/in",
	"extra": 1
}`,
			wantErr:     true,
			errContains: "parsing JSON",
		},
		{
			name: "hcl_with_env",
			file: "config.hcl",
			content: `
drive {
  id                      = "d"
  pending_folder_id       = "P"
  processed_folder_id     = "OK"
  not_processed_folder_id = "NOK"
}

credentials {
  tenant_id = env.DRIVEINGEST_TEST_TENANT
  client_id = "c"
}

download_directory = "/tmp/in"
concurrency        = 3

evaluator {
  kind     = "pattern"
  patterns = ["*.pdf"]
}
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "tenant-from-env", cfg.Credentials.TenantID, "env should be interpolated")
				assert.Equal(t, 3, cfg.Concurrency)
				assert.Equal(t, []string{"*.pdf"}, cfg.Evaluator.Patterns)
			},
		},
		{
			name:        "hcl_syntax_error",
			file:        "config.hcl",
			content:     `drive {`,
			wantErr:     true,
			errContains: "parsing HCL",
		},
		{
			name: "hcl_missing_block",
			file: "config.hcl",
			content: `
download_directory = "/tmp/in"
`,
			wantErr:     true,
			errContains: "decoding HCL",
		},
		{
			name: "dotfile_yaml",
			file: ".driveingest",
			content: `
drive: {id: d, pending_folder_id: P, processed_folder_id: OK, not_processed_folder_id: NOK}
credentials: {tenant_id: t, client_id: c}
download_directory: /tmp/in
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "P", cfg.Drive.PendingFolderID)
			},
		},
		{
			name: "dotfile_hcl",
			file: ".driveingest",
			content: `
drive {
  id                      = "d"
  pending_folder_id       = "P"
  processed_folder_id     = "OK"
  not_processed_folder_id = "NOK"
}
credentials {
  tenant_id = "t"
  client_id = "c"
}
download_directory = "/tmp/in"
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "OK", cfg.Drive.ProcessedFolderID)
			},
		},
		{
			name:        "dotfile_neither_format",
			file:        ".driveingest",
			content:     "drive {\n  id: [\n",
			wantErr:     true,
			errContains: "as YAML",
		},
		{
			name:        "unsupported_extension",
			file:        "config.toml",
			content:     `x = 1`,
			wantErr:     true,
			errContains: "unsupported file extension",
		},
	}

	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			cfg, err := LoadConfig(ctx, path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()

	_, err := Discover(dir)
	require.Error(t, err, "empty directory has no config")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".driveingest.hcl"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".driveingest.json"), []byte("{}"), 0644))

	path, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".driveingest.hcl"), path, "earlier names win")
}
