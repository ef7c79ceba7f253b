package graph

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/driveingest/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

// 🔧 fakeCredential hands out a fixed token
type fakeCredential struct {
	token string
	err   error
}

func (f *fakeCredential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	if f.err != nil {
		return azcore.AccessToken{}, f.err
	}
	return azcore.AccessToken{Token: f.token, ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(&fakeCredential{token: "tok"}, &Options{BaseURL: srv.URL, Transport: srv.Client()})
	require.NoError(t, err, "creating client should succeed")
	return c, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func graphErr(code string) map[string]any {
	return map[string]any{"error": map[string]string{"code": code, "message": "boom"}}
}

func TestListChildrenPaginates(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/drives/d1/items/P/children", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"), "bearer token should be sent")
		if r.URL.Query().Get("page") == "2" {
			writeJSON(w, http.StatusOK, map[string]any{
				"value": []map[string]any{
					{"id": "F2", "name": "b.pdf", "file": map[string]any{"mimeType": "application/pdf"}},
				},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"value": []map[string]any{
				{"id": "F1", "name": "a.pdf", "size": 12, "webUrl": "https://x/a.pdf", "file": map[string]any{}, "parentReference": map[string]any{"id": "P"}},
				{"id": "D1", "name": "nested", "folder": map[string]any{"childCount": 3}},
			},
			"@odata.nextLink": srvURL + "/drives/d1/items/P/children?page=2",
		})
	})

	c, srv := newTestClient(t, mux)
	srvURL = srv.URL

	items, err := c.ListChildren(context.Background(), "d1", "P")
	require.NoError(t, err, "listing should succeed")
	require.Len(t, items, 3, "both pages should be returned")

	assert.Equal(t, remote.Item{ID: "F1", Name: "a.pdf", Size: 12, WebURL: "https://x/a.pdf", ParentID: "P"}, items[0])
	assert.True(t, items[1].IsFolder, "folder facet should mark a folder")
	assert.Equal(t, "F2", items[2].ID)
	assert.False(t, items[2].IsFolder)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
		kind     remote.Kind
	}{
		{name: "not_found", status: http.StatusNotFound, sentinel: remote.ErrNotFound, kind: remote.KindNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, sentinel: remote.ErrUnauthorized, kind: remote.KindUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, sentinel: remote.ErrUnauthorized, kind: remote.KindUnauthorized},
		{name: "throttled", status: http.StatusTooManyRequests, sentinel: remote.ErrTransient, kind: remote.KindTransient},
		{name: "unavailable", status: http.StatusServiceUnavailable, sentinel: remote.ErrTransient, kind: remote.KindTransient},
		{name: "conflict", status: http.StatusConflict, sentinel: remote.ErrConflict, kind: remote.KindConflict},
		{name: "bad_request", status: http.StatusBadRequest, kind: remote.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, graphErr("someCode"))
			}))

			_, err := c.GetItem(context.Background(), "d1", "F1")
			require.Error(t, err, "GetItem should fail")
			assert.Equal(t, tt.kind, remote.KindOf(err), "kind should match status")
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
			assert.Contains(t, err.Error(), "someCode", "graph error code should be kept")
		})
	}
}

func TestGetItem(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drives/d1/items/F1", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"id": "F1", "name": "invoice.pdf", "size": 3,
			"file":            map[string]any{"mimeType": "application/pdf"},
			"parentReference": map[string]any{"id": "P", "driveId": "d1"},
		})
	}))

	item, err := c.GetItem(context.Background(), "d1", "F1")
	require.NoError(t, err)
	assert.Equal(t, "invoice.pdf", item.Name)
	assert.Equal(t, "P", item.ParentID)
	assert.False(t, item.IsFolder)
}

func TestGetContentStreamFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/drives/d1/items/F1/content", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/download/F1", http.StatusFound)
	})
	mux.HandleFunc("/download/F1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "%PDF-1.7 content")
	})

	c, _ := newTestClient(t, mux)

	rc, err := c.GetContentStream(context.Background(), "d1", "F1")
	require.NoError(t, err, "opening content should succeed")
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 content", string(data))
}

func TestMoveItem(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method, "move should be a PATCH")
		assert.Equal(t, "/drives/d1/items/F1", r.URL.Path)
		assert.Equal(t, "rename", r.URL.Query().Get("@microsoft.graph.conflictBehavior"))

		var body struct {
			ParentReference struct {
				ID string `json:"id"`
			} `json:"parentReference"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "DONE", body.ParentReference.ID, "new parent should be sent")

		writeJSON(w, http.StatusOK, map[string]any{"id": "F1", "name": "invoice.pdf", "file": map[string]any{}})
	}))

	require.NoError(t, c.MoveItem(context.Background(), "d1", "F1", "DONE"))
}

func TestTokenFailureIsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	c, err := New(&fakeCredential{err: errors.New("AADSTS7000215: invalid client secret")}, &Options{BaseURL: srv.URL, Transport: srv.Client()})
	require.NoError(t, err)

	_, err = c.ListChildren(context.Background(), "d1", "P")
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrUnauthorized, "token errors should be unauthorized")
	assert.Contains(t, err.Error(), "AADSTS7000215")
}

func TestConnectionFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(&fakeCredential{token: "tok"}, &Options{BaseURL: base})
	require.NoError(t, err)

	_, err = c.GetItem(context.Background(), "d1", "F1")
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrTransient)
}

func TestListDrives(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/someone@example.com/drives", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"value": []map[string]any{{"id": "b!1", "name": "Documents", "driveType": "business"}},
		})
	}))

	drives, err := c.ListDrives(context.Background(), "someone@example.com")
	require.NoError(t, err)
	require.Len(t, drives, 1)
	assert.Equal(t, remote.Drive{ID: "b!1", Name: "Documents", DriveType: "business"}, drives[0])
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err, "credential is required")

	_, err = New(&fakeCredential{}, &Options{ConflictBehavior: "merge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported conflict behavior")

	c, err := New(&fakeCredential{}, &Options{RequestsPerSecond: 5})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, "rename", c.conflictBehavior)
}
