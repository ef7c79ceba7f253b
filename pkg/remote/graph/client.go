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

// Package graph implements remote.Client on top of the Microsoft Graph drive API.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/rs/zerolog"
	"github.com/walteh/driveingest/pkg/remote"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Graph v1.0 endpoint
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	moduleName    = "driveingest/graph"
	moduleVersion = "v0.1.0"
)

// Options configures a Client. The zero value talks to the public Graph endpoint without throttling.
type Options struct {
	// BaseURL overrides DefaultBaseURL
	BaseURL string
	// Transport overrides the HTTP transport, an *http.Client works
	Transport policy.Transporter
	// RequestsPerSecond limits outgoing requests, zero disables the limit
	RequestsPerSecond float64
	// Burst is the limiter burst, defaults to 1
	Burst int
	// ConflictBehavior is sent with moves: "fail", "replace" or "rename" (default)
	ConflictBehavior string
	// Scopes overrides the token scopes
	Scopes []string
}

// Client implements remote.Client for Microsoft Graph drives
type Client struct {
	pipeline         runtime.Pipeline
	baseURL          string
	conflictBehavior string
}

var _ remote.Client = (*Client)(nil)

// 🏭 New creates a Graph client. Retries are disabled in the pipeline: a
// failed call is reported, never replayed.
func New(cred azcore.TokenCredential, opts *Options) (*Client, error) {
	if cred == nil {
		return nil, errors.Errorf("credential is required")
	}
	if opts == nil {
		opts = &Options{}
	}

	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	conflict := opts.ConflictBehavior
	switch conflict {
	case "":
		conflict = "rename"
	case "fail", "replace", "rename":
	default:
		return nil, errors.Errorf("unsupported conflict behavior %q", conflict)
	}

	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}

	perCall := []policy.Policy{&bearerPolicy{cred: cred, scopes: scopes}}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		perCall = append(perCall, &throttlePolicy{limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)})
	}

	clientOpts := &policy.ClientOptions{
		Retry: policy.RetryOptions{MaxRetries: -1},
	}
	if opts.Transport != nil {
		clientOpts.Transport = opts.Transport
	}

	pl := runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{PerCall: perCall}, clientOpts)

	return &Client{
		pipeline:         pl,
		baseURL:          baseURL,
		conflictBehavior: conflict,
	}, nil
}

// driveItem is the subset of the Graph driveItem resource we read
type driveItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	WebURL string `json:"webUrl"`
	Size   int64  `json:"size"`
	File   *struct {
		MimeType string `json:"mimeType"`
	} `json:"file,omitempty"`
	Folder *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder,omitempty"`
	ParentReference *struct {
		ID      string `json:"id"`
		DriveID string `json:"driveId"`
	} `json:"parentReference,omitempty"`
}

func (d driveItem) toItem() remote.Item {
	item := remote.Item{
		ID:     d.ID,
		Name:   d.Name,
		WebURL: d.WebURL,
		Size:   d.Size,
		// anything without a file facet (folders, packages) is never downloaded
		IsFolder: d.File == nil,
	}
	if d.ParentReference != nil {
		item.ParentID = d.ParentReference.ID
	}
	return item
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) itemURL(driveID, itemID string) string {
	return fmt.Sprintf("%s/drives/%s/items/%s", c.baseURL, url.PathEscape(driveID), url.PathEscape(itemID))
}

// do sends a request and maps transport and status failures to *remote.Error
func (c *Client) do(req *policy.Request, op, driveID, itemID string, okStatus ...int) (*http.Response, error) {
	ctx := req.Raw().Context()

	resp, err := c.pipeline.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Errorf("%s: %w", op, ctx.Err())
		}
		var re *remote.Error
		if errors.As(err, &re) {
			re.Op, re.DriveID, re.ItemID = op, driveID, itemID
			return nil, re
		}
		return nil, remote.NewError(remote.KindTransient, op, driveID, itemID, err)
	}

	if runtime.HasStatusCode(resp, okStatus...) {
		return resp, nil
	}
	defer resp.Body.Close()

	return nil, statusError(resp, op, driveID, itemID)
}

func statusError(resp *http.Response, op, driveID, itemID string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	detail := fmt.Sprintf("status %d", resp.StatusCode)
	var ge graphError
	if json.Unmarshal(body, &ge) == nil && ge.Error.Code != "" {
		detail = fmt.Sprintf("status %d: %s: %s", resp.StatusCode, ge.Error.Code, ge.Error.Message)
	}

	var kind remote.Kind
	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		kind = remote.KindNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		kind = remote.KindUnauthorized
	case resp.StatusCode == http.StatusConflict, resp.StatusCode == http.StatusPreconditionFailed:
		kind = remote.KindConflict
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode >= 500:
		kind = remote.KindTransient
	default:
		kind = remote.KindUnknown
	}

	return remote.NewError(kind, op, driveID, itemID, errors.New(detail))
}

// ListChildren implements remote.Client, following @odata.nextLink pages
func (c *Client) ListChildren(ctx context.Context, driveID, folderID string) ([]remote.Item, error) {
	const op = "list children"
	zerolog.Ctx(ctx).Debug().Str("drive_id", driveID).Str("folder_id", folderID).Msg("listing folder children")

	var items []remote.Item
	next := c.itemURL(driveID, folderID) + "/children"
	for next != "" {
		req, err := runtime.NewRequest(ctx, http.MethodGet, next)
		if err != nil {
			return nil, errors.Errorf("creating request: %w", err)
		}

		resp, err := c.do(req, op, driveID, folderID, http.StatusOK)
		if err != nil {
			return nil, err
		}

		var page struct {
			Value    []driveItem `json:"value"`
			NextLink string      `json:"@odata.nextLink"`
		}
		if err := runtime.UnmarshalAsJSON(resp, &page); err != nil {
			return nil, remote.NewError(remote.KindTransient, op, driveID, folderID, errors.Errorf("decoding page: %w", err))
		}

		for _, di := range page.Value {
			items = append(items, di.toItem())
		}
		next = page.NextLink
	}

	return items, nil
}

// GetItem implements remote.Client
func (c *Client) GetItem(ctx context.Context, driveID, itemID string) (remote.Item, error) {
	const op = "get item"

	req, err := runtime.NewRequest(ctx, http.MethodGet, c.itemURL(driveID, itemID))
	if err != nil {
		return remote.Item{}, errors.Errorf("creating request: %w", err)
	}

	resp, err := c.do(req, op, driveID, itemID, http.StatusOK)
	if err != nil {
		return remote.Item{}, err
	}

	var di driveItem
	if err := runtime.UnmarshalAsJSON(resp, &di); err != nil {
		return remote.Item{}, remote.NewError(remote.KindTransient, op, driveID, itemID, errors.Errorf("decoding item: %w", err))
	}
	return di.toItem(), nil
}

// GetContentStream implements remote.Client. Graph answers with a redirect to a
// pre-authenticated download URL which the transport follows.
func (c *Client) GetContentStream(ctx context.Context, driveID, itemID string) (io.ReadCloser, error) {
	const op = "get content"

	req, err := runtime.NewRequest(ctx, http.MethodGet, c.itemURL(driveID, itemID)+"/content")
	if err != nil {
		return nil, errors.Errorf("creating request: %w", err)
	}
	runtime.SkipBodyDownload(req)

	resp, err := c.do(req, op, driveID, itemID, http.StatusOK)
	if err != nil {
		return nil, err
	}

	return &contentReader{rc: resp.Body, driveID: driveID, itemID: itemID}, nil
}

// MoveItem implements remote.Client by patching the parent reference
func (c *Client) MoveItem(ctx context.Context, driveID, itemID, newParentID string) error {
	const op = "move item"

	endpoint := c.itemURL(driveID, itemID) + "?@microsoft.graph.conflictBehavior=" + c.conflictBehavior
	req, err := runtime.NewRequest(ctx, http.MethodPatch, endpoint)
	if err != nil {
		return errors.Errorf("creating request: %w", err)
	}

	body := map[string]any{
		"parentReference": map[string]string{"id": newParentID},
	}
	if err := runtime.MarshalAsJSON(req, body); err != nil {
		return errors.Errorf("encoding move body: %w", err)
	}

	resp, err := c.do(req, op, driveID, itemID, http.StatusOK)
	if err != nil {
		return err
	}
	resp.Body.Close()

	zerolog.Ctx(ctx).Debug().Str("item_id", itemID).Str("parent_id", newParentID).Msg("moved item")
	return nil
}

// contentReader reports mid-stream read failures as transient remote errors
type contentReader struct {
	rc      io.ReadCloser
	driveID string
	itemID  string
}

func (r *contentReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if err != nil && err != io.EOF {
		return n, remote.NewError(remote.KindTransient, "read content", r.driveID, r.itemID, err)
	}
	return n, err
}

func (r *contentReader) Close() error {
	return r.rc.Close()
}
