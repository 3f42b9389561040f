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
	"context"
	"errors"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/tinymail/internal/crypto"
	"github.com/lukasdietrich/tinymail/internal/log"
)

const (
	tmpFolder = "tmp"
	newFolder = "new"
)

func init() {
	viper.SetDefault("storage.mailboxes.foldername", "data/mailboxes")
}

// MailboxesOptions is the configuration of the mailbox store.
type MailboxesOptions struct {
	// Foldername is the root folder containing one directory per mailbox.
	Foldername string
}

// MailboxesOptionsFromViper returns options read from viper.
//
// `storage.mailboxes.foldername` is the root folder of all mailboxes.
func MailboxesOptionsFromViper() MailboxesOptions {
	return MailboxesOptions{
		Foldername: viper.GetString("storage.mailboxes.foldername"),
	}
}

// Mailboxes is the permanent storage of delivered mails. Every mailbox is a directory with a
// staging area "tmp" and a visible area "new". Entries are written to "tmp" and moved to "new"
// once they are complete, so that readers never observe partial files.
type Mailboxes struct {
	fs    afero.Fs
	idGen crypto.IDGenerator
}

// NewMailboxes creates a mailbox store rooted at the configured folder of fs.
func NewMailboxes(fs afero.Fs, idGen crypto.IDGenerator, opts MailboxesOptions) (*Mailboxes, error) {
	if err := fs.MkdirAll(opts.Foldername, 0700); err != nil {
		return nil, err
	}

	return &Mailboxes{
		fs:    afero.NewBasePathFs(fs, opts.Foldername),
		idGen: idGen,
	}, nil
}

// Deliver copies all data from r into a new entry of the mailbox. The entry becomes visible at
// once with its final content, or not at all.
func (m *Mailboxes) Deliver(ctx context.Context, mailbox string, r io.Reader) (string, int64, error) {
	if err := ValidateMailbox(mailbox); err != nil {
		return "", -1, err
	}

	if err := m.ensureMailbox(mailbox); err != nil {
		return "", -1, &Error{Op: "deliver", Mailbox: mailbox, Err: err}
	}

	id, err := m.idGen.GenerateID()
	if err != nil {
		return "", -1, &Error{Op: "deliver", Mailbox: mailbox, Err: err}
	}

	var (
		staged  = filepath.Join(mailbox, tmpFolder, id)
		visible = filepath.Join(mailbox, newFolder, id)
	)

	size, err := m.writeStaged(staged, r)
	if err == nil {
		err = m.fs.Rename(staged, visible)
	}

	if err != nil {
		m.discard(ctx, mailbox, staged)
		return "", -1, &Error{Op: "deliver", Mailbox: mailbox, ID: id, Err: err}
	}

	log.DebugContext(ctx).
		Str("mailbox", mailbox).
		Str("entry", id).
		Int64("size", size).
		Msg("entry delivered")

	return id, size, nil
}

func (m *Mailboxes) ensureMailbox(mailbox string) error {
	for _, folder := range []string{tmpFolder, newFolder} {
		if err := m.fs.MkdirAll(filepath.Join(mailbox, folder), 0700); err != nil {
			return err
		}
	}

	return nil
}

func (m *Mailboxes) writeStaged(filename string, r io.Reader) (int64, error) {
	f, err := m.fs.OpenFile(filename, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return -1, err
	}

	size, err := io.Copy(f, r)
	if err == nil {
		err = f.Sync()
	}

	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	return size, err
}

func (m *Mailboxes) discard(ctx context.Context, mailbox, filename string) {
	if err := m.fs.Remove(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WarnContext(ctx).
			Str("mailbox", mailbox).
			Str("filename", filename).
			Err(err).
			Msg("could not remove staged entry")
	}
}

// List enumerates the visible entries of a mailbox. A mailbox without any deliveries is empty.
// The order of entries is unspecified.
func (m *Mailboxes) List(ctx context.Context, mailbox string) ([]string, error) {
	if err := ValidateMailbox(mailbox); err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(m.fs, filepath.Join(mailbox, newFolder))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, &Error{Op: "list", Mailbox: mailbox, Err: err}
	}

	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		if !info.IsDir() {
			ids = append(ids, info.Name())
		}
	}

	return ids, nil
}

// Size returns the size in bytes of an entry.
func (m *Mailboxes) Size(mailbox, id string) (int64, error) {
	filename, err := entryFilename(mailbox, id)
	if err != nil {
		return -1, err
	}

	info, err := m.fs.Stat(filename)
	if err != nil {
		return -1, &Error{Op: "size", Mailbox: mailbox, ID: id, Err: err}
	}

	return info.Size(), nil
}

// Reader opens an entry for reading. The responsibility to close the reader is on the caller.
func (m *Mailboxes) Reader(mailbox, id string) (io.ReadCloser, error) {
	filename, err := entryFilename(mailbox, id)
	if err != nil {
		return nil, err
	}

	f, err := m.fs.Open(filename)
	if err != nil {
		return nil, &Error{Op: "read", Mailbox: mailbox, ID: id, Err: err}
	}

	return f, nil
}

// Read returns the full content of an entry.
func (m *Mailboxes) Read(mailbox, id string) ([]byte, error) {
	r, err := m.Reader(mailbox, id)
	if err != nil {
		return nil, err
	}

	defer r.Close()

	content, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, &Error{Op: "read", Mailbox: mailbox, ID: id, Err: err}
	}

	return content, nil
}

// DeleteMany removes entries from a mailbox. Every entry is removed independently. The ids that
// were removed are always returned. If any entry could not be removed, a *DeleteError
// describes the failures.
func (m *Mailboxes) DeleteMany(ctx context.Context, mailbox string, ids []string) ([]string, error) {
	if err := ValidateMailbox(mailbox); err != nil {
		return nil, err
	}

	var (
		removed = make([]string, 0, len(ids))
		failed  = make(map[string]error)
	)

	for _, id := range ids {
		filename, err := entryFilename(mailbox, id)
		if err == nil {
			err = m.fs.Remove(filename)
		}

		if err != nil {
			failed[id] = err
			continue
		}

		removed = append(removed, id)
	}

	log.DebugContext(ctx).
		Str("mailbox", mailbox).
		Int("removed", len(removed)).
		Int("failed", len(failed)).
		Msg("entries deleted")

	if len(failed) > 0 {
		return removed, &DeleteError{Mailbox: mailbox, Failed: failed}
	}

	return removed, nil
}

func entryFilename(mailbox, id string) (string, error) {
	if err := ValidateMailbox(mailbox); err != nil {
		return "", err
	}

	if err := validateName(id, ErrInvalidEntry); err != nil {
		return "", err
	}

	return filepath.Join(mailbox, newFolder, id), nil
}

// ValidateMailbox returns ErrInvalidMailbox, if name cannot be used as a mailbox name.
func ValidateMailbox(name string) error {
	return validateName(name, ErrInvalidMailbox)
}

// validateName makes sure a name is a single path element, that stays inside of its parent.
func validateName(name string, invalid error) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return invalid
	}

	return nil
}
