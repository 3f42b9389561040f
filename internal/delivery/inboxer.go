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

package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/lukasdietrich/tinymail/internal/log"
	"github.com/lukasdietrich/tinymail/internal/metrics"
	"github.com/lukasdietrich/tinymail/internal/storage"
)

// ErrNoSuchMessage is returned for positions, that are not part of an inbox or are marked for
// deletion.
var ErrNoSuchMessage = errors.New("delivery: no such message")

// MailboxStore is the part of the mailbox storage used by retrieval sessions.
type MailboxStore interface {
	List(ctx context.Context, mailbox string) ([]string, error)
	Read(mailbox, id string) ([]byte, error)
	DeleteMany(ctx context.Context, mailbox string, ids []string) ([]string, error)
}

// Inboxer creates inboxes and applies their deletions.
type Inboxer struct {
	mailboxes MailboxStore
}

// NewInboxer creates a new Inboxer.
func NewInboxer(mailboxes MailboxStore) *Inboxer {
	return &Inboxer{
		mailboxes: mailboxes,
	}
}

// Inbox captures the current content of a mailbox. The inbox does not change, when mails are
// delivered to the mailbox afterwards.
func (i *Inboxer) Inbox(ctx context.Context, mailbox string) (*Inbox, error) {
	ids, err := i.mailboxes.List(ctx, mailbox)
	if err != nil {
		return nil, err
	}

	// ids start with their delivery time
	sort.Strings(ids)

	inbox := Inbox{
		Mailbox: mailbox,
		Entries: make([]InboxEntry, 0, len(ids)),
		marks:   make(map[int]bool),
	}

	for _, id := range ids {
		content, err := i.mailboxes.Read(mailbox, id)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.DebugContext(ctx).
					Str("entry", id).
					Msg("entry vanished while loading inbox")

				continue
			}

			return nil, err
		}

		inbox.Entries = append(inbox.Entries, InboxEntry{
			Position: len(inbox.Entries) + 1,
			ID:       id,
			Size:     int64(len(content)),
			Content:  content,
		})
	}

	log.DebugContext(ctx).
		Int("count", inbox.Count()).
		Int64("size", inbox.Size()).
		Msg("inbox loaded")

	return &inbox, nil
}

// Commit deletes all entries marked in the inbox from the mailbox. Entries, that are already
// gone from the mailbox, count as deleted. If any other entry could not be deleted, an error
// is returned.
func (i *Inboxer) Commit(ctx context.Context, inbox *Inbox) error {
	marked := inbox.Marked()
	if len(marked) == 0 {
		return nil
	}

	ids := make([]string, len(marked))
	for n, entry := range marked {
		ids[n] = entry.ID
	}

	removed, err := i.mailboxes.DeleteMany(ctx, inbox.Mailbox, ids)
	metrics.DeletionsTotal.WithLabelValues(metrics.ResultSuccess).Add(float64(len(removed)))

	if err == nil {
		return nil
	}

	var deleteErr *storage.DeleteError
	if !errors.As(err, &deleteErr) {
		return fmt.Errorf("delivery: could not commit inbox: %w", err)
	}

	failed := make(map[string]error)

	for id, cause := range deleteErr.Failed {
		if errors.Is(cause, os.ErrNotExist) {
			log.DebugContext(ctx).
				Str("entry", id).
				Msg("entry was already deleted")

			metrics.DeletionsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
			continue
		}

		failed[id] = cause
	}

	if len(failed) == 0 {
		return nil
	}

	metrics.DeletionsTotal.WithLabelValues(metrics.ResultFailure).Add(float64(len(failed)))

	return fmt.Errorf("delivery: could not commit inbox: %w",
		&storage.DeleteError{Mailbox: deleteErr.Mailbox, Failed: failed})
}

// InboxEntry is a mail of an inbox.
type InboxEntry struct {
	// Position is the 1-based index of the entry. It never changes for the lifetime of the inbox.
	Position int
	ID       string
	Size     int64
	Content  []byte
}

// Inbox is a snapshot of a mailbox together with marks for deletion. Marks only take effect,
// when the inbox is committed.
type Inbox struct {
	Mailbox string
	Entries []InboxEntry

	marks map[int]bool
}

// Entry returns the entry at a position, unless it is marked for deletion.
func (i *Inbox) Entry(position int) (*InboxEntry, error) {
	if position < 1 || position > len(i.Entries) || i.marks[position] {
		return nil, ErrNoSuchMessage
	}

	return &i.Entries[position-1], nil
}

// Mark marks the entry at a position for deletion.
func (i *Inbox) Mark(position int) error {
	if _, err := i.Entry(position); err != nil {
		return err
	}

	i.marks[position] = true
	return nil
}

// IsMarked reports whether the entry at a position is marked for deletion.
func (i *Inbox) IsMarked(position int) bool {
	return i.marks[position]
}

// Reset removes all marks.
func (i *Inbox) Reset() {
	i.marks = make(map[int]bool)
}

// Visible returns all entries, that are not marked.
func (i *Inbox) Visible() []InboxEntry {
	entries := make([]InboxEntry, 0, len(i.Entries))

	for _, entry := range i.Entries {
		if !i.marks[entry.Position] {
			entries = append(entries, entry)
		}
	}

	return entries
}

// Marked returns all entries, that are marked for deletion.
func (i *Inbox) Marked() []InboxEntry {
	entries := make([]InboxEntry, 0, len(i.marks))

	for _, entry := range i.Entries {
		if i.marks[entry.Position] {
			entries = append(entries, entry)
		}
	}

	return entries
}

// Count returns the number of entries, that are not marked.
func (i *Inbox) Count() int {
	return len(i.Entries) - len(i.marks)
}

// Size returns the total size of all entries, that are not marked.
func (i *Inbox) Size() int64 {
	var size int64

	for _, entry := range i.Entries {
		if !i.marks[entry.Position] {
			size += entry.Size
		}
	}

	return size
}
