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

package graph

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/walteh/driveingest/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

// 📂 ListDrives lists the drives of a user. App-only credentials have no
// "me", so userID should be set for them.
func (c *Client) ListDrives(ctx context.Context, userID string) ([]remote.Drive, error) {
	const op = "list drives"

	endpoint := c.baseURL + "/me/drives"
	if userID != "" {
		endpoint = c.baseURL + "/users/" + url.PathEscape(userID) + "/drives"
	}

	req, err := runtime.NewRequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, errors.Errorf("creating request: %w", err)
	}

	resp, err := c.do(req, op, "", userID, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var page struct {
		Value []struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			DriveType string `json:"driveType"`
			WebURL    string `json:"webUrl"`
		} `json:"value"`
	}
	if err := runtime.UnmarshalAsJSON(resp, &page); err != nil {
		return nil, remote.NewError(remote.KindTransient, op, "", userID, errors.Errorf("decoding drives: %w", err))
	}

	drives := make([]remote.Drive, 0, len(page.Value))
	for _, d := range page.Value {
		drives = append(drives, remote.Drive{ID: d.ID, Name: d.Name, DriveType: d.DriveType, WebURL: d.WebURL})
	}
	return drives, nil
}

// RootID is the well-known alias of a drive's root folder
const RootID = "root"
