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

package remote

import (
	"context"
	"io"
)

// Client is the primary interface for interacting with a remote drive (e.g. a OneDrive document library)
type Client interface {
	// ListChildren returns the direct children of a folder
	ListChildren(ctx context.Context, driveID, folderID string) ([]Item, error)
	// GetItem returns the full metadata of a single item
	GetItem(ctx context.Context, driveID, itemID string) (Item, error)
	// GetContentStream opens the content of a file item, the caller closes it
	GetContentStream(ctx context.Context, driveID, itemID string) (io.ReadCloser, error)
	// MoveItem changes the parent folder of an item
	MoveItem(ctx context.Context, driveID, itemID, newParentID string) error
}

// Folder identifies a folder within a drive
type Folder struct {
	DriveID  string
	FolderID string
}

// Item is a single entry returned by a folder listing
type Item struct {
	ID       string // stable across moves
	Name     string // display name
	IsFolder bool
	WebURL   string // informational only
	ParentID string // empty when the provider did not report it
	Size     int64
}

// Drive describes a drive visible to the credential
type Drive struct {
	ID        string
	Name      string
	DriveType string
	WebURL    string
}
