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
	"fmt"

	"gitlab.com/tozd/go/errors"
)

// Kind classifies a remote failure
type Kind int

const (
	KindUnknown      Kind = iota
	KindNotFound          // entity missing or already moved
	KindUnauthorized      // credential or permission failure
	KindConflict          // the drive refused the change
	KindTransient         // network or service hiccup
)

var (
	ErrNotFound     = errors.Base("not found")
	ErrUnauthorized = errors.Base("unauthorized")
	ErrConflict     = errors.Base("conflict")
	ErrTransient    = errors.Base("transient")
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindUnauthorized:
		return ErrUnauthorized
	case KindConflict:
		return ErrConflict
	case KindTransient:
		return ErrTransient
	default:
		return nil
	}
}

// Error is returned by Client implementations. It matches the Err* sentinels with errors.Is.
type Error struct {
	Kind    Kind
	Op      string // operation being performed, e.g. "list children"
	DriveID string
	ItemID  string
	Err     error
}

// NewError builds an *Error, err may be nil
func NewError(kind Kind, op, driveID, itemID string, err error) *Error {
	return &Error{Kind: kind, Op: op, DriveID: driveID, ItemID: itemID, Err: err}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s", e.Op, e.Kind)
	if e.ItemID != "" {
		msg = fmt.Sprintf("%s %s: %s", e.Op, e.ItemID, e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf extracts the Kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}
