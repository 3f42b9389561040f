// Copyright (C) 2019  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidMailbox is returned for mailbox names, that would not stay inside of the
	// mailbox folder.
	ErrInvalidMailbox = errors.New("storage: invalid mailbox name")

	// ErrInvalidEntry is returned for entry ids, that cannot be a file inside a mailbox.
	ErrInvalidEntry = errors.New("storage: invalid entry id")
)

// Error is an I/O failure of a single storage operation.
type Error struct {
	Op      string
	Mailbox string
	ID      string
	Err     error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s/%s: %v", e.Op, e.Mailbox, e.ID, e.Err)
	}

	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Mailbox, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// DeleteError reports the entries of a DeleteMany call, that could not be removed. Entries not
// listed in Failed were removed.
type DeleteError struct {
	Mailbox string
	Failed  map[string]error
}

func (e *DeleteError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	causes := make([]string, len(ids))
	for i, id := range ids {
		causes[i] = fmt.Sprintf("%s: %v", id, e.Failed[id])
	}

	return fmt.Sprintf("storage: could not delete %d entries from %s: %s",
		len(ids), e.Mailbox, strings.Join(causes, "; "))
}

// Unwrap returns the causes of all failed entries.
func (e *DeleteError) Unwrap() []error {
	causes := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		causes = append(causes, err)
	}

	return causes
}

// IsStorageError checks if an error is caused by a failing storage operation.
func IsStorageError(err error) bool {
	var (
		storageErr *Error
		deleteErr  *DeleteError
	)

	return errors.As(err, &storageErr) || errors.As(err, &deleteErr)
}
