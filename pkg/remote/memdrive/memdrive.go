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

// Package memdrive is an in-memory remote.Client with failure injection, used
// to exercise the ingestion pipeline without a real drive.
package memdrive

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/walteh/driveingest/pkg/remote"
)

// Op names a client operation for failure injection and call recording
type Op string

const (
	OpListChildren     Op = "list_children"
	OpGetItem          Op = "get_item"
	OpGetContentStream Op = "get_content_stream"
	OpMoveItem         Op = "move_item"
)

// Call records one invocation against the drive
type Call struct {
	Op       Op
	ItemID   string // folder ID for OpListChildren
	TargetID string // new parent for OpMoveItem
}

type entry struct {
	item    remote.Item
	content []byte
	order   int
}

type failure struct {
	kind remote.Kind
	// remaining == 0 means fail forever
	remaining int
}

type failureKey struct {
	op Op
	id string
}

// Drive is a single in-memory drive. The zero value is not usable, use New.
type Drive struct {
	id string

	mu       sync.Mutex
	items    map[string]*entry
	failures map[failureKey]*failure
	calls    []Call
	seq      int
}

// New creates an empty drive with the given ID
func New(driveID string) *Drive {
	return &Drive{
		id:       driveID,
		items:    make(map[string]*entry),
		failures: make(map[failureKey]*failure),
	}
}

var _ remote.Client = (*Drive)(nil)

// ID returns the drive ID
func (d *Drive) ID() string {
	return d.id
}

// AddFolder creates a folder item under parentID (empty for a top-level folder)
func (d *Drive) AddFolder(parentID, id, name string) {
	d.put(remote.Item{ID: id, Name: name, IsFolder: true, ParentID: parentID}, nil)
}

// AddFile creates a file item under parentID
func (d *Drive) AddFile(parentID, id, name string, content []byte) {
	d.put(remote.Item{
		ID:       id,
		Name:     name,
		ParentID: parentID,
		Size:     int64(len(content)),
		WebURL:   "https://drive.invalid/" + id,
	}, content)
}

func (d *Drive) put(item remote.Item, content []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	d.items[item.ID] = &entry{item: item, content: append([]byte(nil), content...), order: d.seq}
}

// Fail makes op on id fail with kind. times == 0 fails every call, otherwise
// only the next times calls fail.
func (d *Drive) Fail(op Op, id string, kind remote.Kind, times int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[failureKey{op: op, id: id}] = &failure{kind: kind, remaining: times}
}

// ClearFailures removes every injected failure
func (d *Drive) ClearFailures() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = make(map[failureKey]*failure)
}

// Calls returns a copy of the recorded calls
func (d *Drive) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// CallsFor returns the recorded calls of a single operation
func (d *Drive) CallsFor(op Op) []Call {
	var out []Call
	for _, c := range d.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ParentOf reports the current parent of an item
func (d *Drive) ParentOf(itemID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.items[itemID]
	if !ok {
		return "", false
	}
	return e.item.ParentID, true
}

// must be called with mu held
func (d *Drive) injected(op Op, id string) error {
	f, ok := d.failures[failureKey{op: op, id: id}]
	if !ok {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
		if f.remaining == 0 {
			delete(d.failures, failureKey{op: op, id: id})
		}
	}
	return remote.NewError(f.kind, string(op), d.id, id, nil)
}

func (d *Drive) checkDrive(op Op, driveID, id string) error {
	if driveID != d.id {
		return remote.NewError(remote.KindNotFound, string(op), driveID, id, nil)
	}
	return nil
}

// ListChildren implements remote.Client
func (d *Drive) ListChildren(ctx context.Context, driveID, folderID string) ([]remote.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: OpListChildren, ItemID: folderID})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.checkDrive(OpListChildren, driveID, folderID); err != nil {
		return nil, err
	}
	if err := d.injected(OpListChildren, folderID); err != nil {
		return nil, err
	}
	folder, ok := d.items[folderID]
	if !ok || !folder.item.IsFolder {
		return nil, remote.NewError(remote.KindNotFound, string(OpListChildren), driveID, folderID, nil)
	}

	var children []*entry
	for _, e := range d.items {
		if e.item.ParentID == folderID {
			children = append(children, e)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].order < children[j].order })

	out := make([]remote.Item, 0, len(children))
	for _, e := range children {
		// listings are partial, like the real drive: no parent or size
		out = append(out, remote.Item{ID: e.item.ID, Name: e.item.Name, IsFolder: e.item.IsFolder, WebURL: e.item.WebURL})
	}
	return out, nil
}

// GetItem implements remote.Client
func (d *Drive) GetItem(ctx context.Context, driveID, itemID string) (remote.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: OpGetItem, ItemID: itemID})

	if err := ctx.Err(); err != nil {
		return remote.Item{}, err
	}
	if err := d.checkDrive(OpGetItem, driveID, itemID); err != nil {
		return remote.Item{}, err
	}
	if err := d.injected(OpGetItem, itemID); err != nil {
		return remote.Item{}, err
	}
	e, ok := d.items[itemID]
	if !ok {
		return remote.Item{}, remote.NewError(remote.KindNotFound, string(OpGetItem), driveID, itemID, nil)
	}
	return e.item, nil
}

// GetContentStream implements remote.Client
func (d *Drive) GetContentStream(ctx context.Context, driveID, itemID string) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: OpGetContentStream, ItemID: itemID})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.checkDrive(OpGetContentStream, driveID, itemID); err != nil {
		return nil, err
	}
	if err := d.injected(OpGetContentStream, itemID); err != nil {
		return nil, err
	}
	e, ok := d.items[itemID]
	if !ok || e.item.IsFolder {
		return nil, remote.NewError(remote.KindNotFound, string(OpGetContentStream), driveID, itemID, nil)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), e.content...))), nil
}

// MoveItem implements remote.Client
func (d *Drive) MoveItem(ctx context.Context, driveID, itemID, newParentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: OpMoveItem, ItemID: itemID, TargetID: newParentID})

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.checkDrive(OpMoveItem, driveID, itemID); err != nil {
		return err
	}
	if err := d.injected(OpMoveItem, itemID); err != nil {
		return err
	}
	e, ok := d.items[itemID]
	if !ok {
		return remote.NewError(remote.KindNotFound, string(OpMoveItem), driveID, itemID, nil)
	}
	target, ok := d.items[newParentID]
	if !ok || !target.item.IsFolder {
		return remote.NewError(remote.KindNotFound, string(OpMoveItem), driveID, newParentID, nil)
	}
	e.item.ParentID = newParentID
	return nil
}

// ListDrives returns the single drive, whatever the user
func (d *Drive) ListDrives(ctx context.Context, userID string) ([]remote.Drive, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []remote.Drive{{ID: d.id, Name: d.id, DriveType: "memory"}}, nil
}
