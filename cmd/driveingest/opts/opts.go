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

package opts

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/walteh/driveingest/pkg/config"
	"github.com/walteh/driveingest/pkg/log"
	"github.com/walteh/driveingest/pkg/remote"
	"github.com/walteh/driveingest/pkg/remote/graph"
	"gitlab.com/tozd/go/errors"
)

// Client is what the commands need from a drive
type Client interface {
	remote.Client
	ListDrives(ctx context.Context, userID string) ([]remote.Drive, error)
}

// ClientFactory builds a Client for a loaded config
type ClientFactory func(ctx context.Context, cfg *config.Config) (Client, error)

// RootOpts contains shared options used by all commands
type RootOpts struct {
	ConfigFile string
	Debug      bool
	Console    io.Writer
	NewClient  ClientFactory

	config *config.Config
}

// 🏭 New creates options that talk to Microsoft Graph
func New(console io.Writer) *RootOpts {
	return &RootOpts{Console: console, NewClient: GraphClient}
}

// 📚 Config loads the config once. Without --config the working directory is searched.
func (o *RootOpts) Config(ctx context.Context) (*config.Config, error) {
	if o.config != nil {
		return o.config, nil
	}

	path := o.ConfigFile
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Errorf("getting working directory: %w", err)
		}
		path, err = config.Discover(wd)
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.LoadConfig(ctx, path)
	if err != nil {
		return nil, errors.Errorf("loading config: %w", err)
	}
	o.config = cfg
	return cfg, nil
}

// 🎯 Logger builds the console logger. Structured output stays at warn unless --debug is set.
func (o *RootOpts) Logger() *log.Logger {
	level := zerolog.WarnLevel
	if o.Debug {
		level = zerolog.DebugLevel
	}
	return log.New(o.Console, level)
}

// 🔌 GraphClient is the default ClientFactory
func GraphClient(ctx context.Context, cfg *config.Config) (Client, error) {
	secret, err := cfg.ClientSecret()
	if err != nil {
		return nil, err
	}

	cred, err := graph.NewClientSecretCredential(cfg.Credentials.TenantID, cfg.Credentials.ClientID, secret)
	if err != nil {
		return nil, errors.Errorf("creating credential: %w", err)
	}

	client, err := graph.New(cred, &graph.Options{
		BaseURL:           cfg.GraphBaseURL,
		RequestsPerSecond: cfg.RequestsPerSecond,
		ConflictBehavior:  cfg.ConflictBehavior,
	})
	if err != nil {
		return nil, errors.Errorf("creating graph client: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Str("tenant_id", cfg.Credentials.TenantID).Msg("created graph client")
	return client, nil
}
