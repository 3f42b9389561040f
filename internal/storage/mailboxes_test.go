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
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/tinymail/internal/crypto"
)

func TestMailboxesOptionsFromViper(t *testing.T) {
	viper.Set("storage.mailboxes.foldername", "/very-secret/location")

	expected := MailboxesOptions{
		Foldername: "/very-secret/location",
	}
	actual := MailboxesOptionsFromViper()
	assert.Equal(t, expected, actual)
}

func TestMailboxesTestSuite(t *testing.T) {
	suite.Run(t, new(MailboxesTestSuite))
}

type MailboxesTestSuite struct {
	baseFileystemTestSuite

	mailboxes *Mailboxes
}

func (s *MailboxesTestSuite) SetupTest() {
	s.baseFileystemTestSuite.SetupTest()

	mailboxes, err := NewMailboxes(s.fs, s.idGen, MailboxesOptions{Foldername: "/test/mailboxes"})
	s.Require().NoError(err)
	s.Require().NotNil(mailboxes)

	s.mailboxes = mailboxes
}

func (s *MailboxesTestSuite) TestDeliver() {
	const data = "Subject: TestDeliver\r\n\r\nHello\r\n"

	s.idGen.On("GenerateID").Return("entry-1", nil).Once()

	id, size, err := s.mailboxes.Deliver(context.TODO(), "alice", strings.NewReader(data))
	s.Require().NoError(err)
	s.Assert().Equal("entry-1", id)
	s.Assert().EqualValues(len(data), size)

	s.assertFileContent("/test/mailboxes/alice/new/entry-1", data)
	s.assertEmptyDir("/test/mailboxes/alice/tmp")
}

func (s *MailboxesTestSuite) TestDeliverInvalidMailbox() {
	for _, mailbox := range []string{"", ".", "..", "a/b", "../alice", `a\b`} {
		_, _, err := s.mailboxes.Deliver(context.TODO(), mailbox, strings.NewReader("data"))
		s.Assert().Equal(ErrInvalidMailbox, err, "mailbox %q", mailbox)
	}
}

func TestValidateMailbox(t *testing.T) {
	for _, mailbox := range []string{"", ".", "..", "a/b", `a\b`, "a\x00b"} {
		assert.Equal(t, ErrInvalidMailbox, ValidateMailbox(mailbox), "mailbox %q", mailbox)
	}

	for _, mailbox := range []string{"alice", "a.b", "...", "first+tag"} {
		assert.NoError(t, ValidateMailbox(mailbox), "mailbox %q", mailbox)
	}
}

func (s *MailboxesTestSuite) TestDeliverIDGeneratorFails() {
	cause := errors.New("no entropy")
	s.idGen.On("GenerateID").Return("", cause).Once()

	_, _, err := s.mailboxes.Deliver(context.TODO(), "alice", strings.NewReader("data"))
	s.Require().Error(err)
	s.Assert().True(IsStorageError(err))
	s.Assert().True(errors.Is(err, cause))
}

func (s *MailboxesTestSuite) TestDeliverReaderFails() {
	cause := errors.New("connection reset")
	s.idGen.On("GenerateID").Return("entry-1", nil).Once()

	r := io.MultiReader(strings.NewReader("partial content"), iotest.ErrReader(cause))

	_, _, err := s.mailboxes.Deliver(context.TODO(), "alice", r)
	s.Require().Error(err)
	s.Assert().True(IsStorageError(err))
	s.Assert().True(errors.Is(err, cause))

	s.assertEmptyDir("/test/mailboxes/alice/tmp")
	s.assertEmptyDir("/test/mailboxes/alice/new")
}

func (s *MailboxesTestSuite) TestDeliverRenameFails() {
	cause := errors.New("rename denied")
	mailboxes, err := NewMailboxes(
		renameFailingFs{Fs: s.fs, err: cause},
		s.idGen,
		MailboxesOptions{Foldername: "/test/mailboxes"})
	s.Require().NoError(err)

	s.idGen.On("GenerateID").Return("entry-1", nil).Once()

	_, _, err = mailboxes.Deliver(context.TODO(), "alice", strings.NewReader("data"))
	s.Require().Error(err)
	s.Assert().True(errors.Is(err, cause))

	s.assertEmptyDir("/test/mailboxes/alice/tmp")
	s.assertEmptyDir("/test/mailboxes/alice/new")
}

func (s *MailboxesTestSuite) TestListUnknownMailbox() {
	ids, err := s.mailboxes.List(context.TODO(), "nobody")
	s.Assert().NoError(err)
	s.Assert().Empty(ids)
}

func (s *MailboxesTestSuite) TestListOnlyVisible() {
	s.Require().NoError(s.fs.MkdirAll("/test/mailboxes/alice/new/subfolder", 0700))
	s.Require().NoError(s.fs.MkdirAll("/test/mailboxes/alice/tmp", 0700))
	s.requireWrite("/test/mailboxes/alice/new/a", "A")
	s.requireWrite("/test/mailboxes/alice/new/b", "BB")
	s.requireWrite("/test/mailboxes/alice/tmp/c", "staged")

	ids, err := s.mailboxes.List(context.TODO(), "alice")
	s.Require().NoError(err)
	s.Assert().ElementsMatch([]string{"a", "b"}, ids)
}

func (s *MailboxesTestSuite) TestListInvalidMailbox() {
	_, err := s.mailboxes.List(context.TODO(), "..")
	s.Assert().Equal(ErrInvalidMailbox, err)
}

func (s *MailboxesTestSuite) TestSizeAndRead() {
	s.requireWrite("/test/mailboxes/alice/new/a", "content of a")

	size, err := s.mailboxes.Size("alice", "a")
	s.Require().NoError(err)
	s.Assert().EqualValues(len("content of a"), size)

	content, err := s.mailboxes.Read("alice", "a")
	s.Require().NoError(err)
	s.Assert().EqualValues("content of a", content)

	r, err := s.mailboxes.Reader("alice", "a")
	s.Require().NoError(err)

	actual, err := ioutil.ReadAll(r)
	s.Assert().NoError(err)
	s.Assert().EqualValues("content of a", actual)
	s.Assert().NoError(r.Close())
}

func (s *MailboxesTestSuite) TestReadNotFound() {
	_, err := s.mailboxes.Read("alice", "not-existing")
	s.Require().Error(err)
	s.Assert().True(IsStorageError(err))
	s.Assert().True(errors.Is(err, os.ErrNotExist))

	_, err = s.mailboxes.Size("alice", "not-existing")
	s.Assert().True(IsStorageError(err))
}

func (s *MailboxesTestSuite) TestReadInvalidEntry() {
	_, err := s.mailboxes.Read("alice", "../../bob/new/a")
	s.Assert().Equal(ErrInvalidEntry, err)
}

func (s *MailboxesTestSuite) TestDeleteMany() {
	s.requireWrite("/test/mailboxes/alice/new/a", "A")
	s.requireWrite("/test/mailboxes/alice/new/b", "B")
	s.requireWrite("/test/mailboxes/alice/new/c", "C")

	removed, err := s.mailboxes.DeleteMany(context.TODO(), "alice", []string{"a", "c"})
	s.Require().NoError(err)
	s.Assert().Equal([]string{"a", "c"}, removed)

	s.assertNoFile("/test/mailboxes/alice/new/a")
	s.assertFileContent("/test/mailboxes/alice/new/b", "B")
	s.assertNoFile("/test/mailboxes/alice/new/c")
}

func (s *MailboxesTestSuite) TestDeleteManyPartialFailure() {
	s.requireWrite("/test/mailboxes/alice/new/a", "A")
	s.requireWrite("/test/mailboxes/alice/new/b", "B")

	removed, err := s.mailboxes.DeleteMany(context.TODO(), "alice", []string{"a", "gone", "../b"})
	s.Assert().Equal([]string{"a"}, removed)
	s.Require().Error(err)
	s.Assert().True(IsStorageError(err))

	var deleteErr *DeleteError
	s.Require().True(errors.As(err, &deleteErr))
	s.Assert().Equal("alice", deleteErr.Mailbox)
	s.Assert().Len(deleteErr.Failed, 2)
	s.Assert().True(errors.Is(deleteErr.Failed["gone"], os.ErrNotExist))
	s.Assert().Equal(ErrInvalidEntry, deleteErr.Failed["../b"])
	s.Assert().ErrorIs(err, os.ErrNotExist)
	s.Assert().ErrorIs(err, ErrInvalidEntry)

	s.assertFileContent("/test/mailboxes/alice/new/b", "B")
}

func TestDeleteErrorMessage(t *testing.T) {
	err := &DeleteError{
		Mailbox: "alice",
		Failed: map[string]error{
			"b": errors.New("busy"),
			"a": errors.New("denied"),
		},
	}

	assert.Equal(t,
		"storage: could not delete 2 entries from alice: a: denied; b: busy",
		err.Error())
}

func TestDeleteErrorUnwrap(t *testing.T) {
	cause := errors.New("denied")
	err := fmt.Errorf("commit: %w", &DeleteError{
		Mailbox: "alice",
		Failed:  map[string]error{"a": cause},
	})

	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, os.ErrNotExist)
	assert.True(t, IsStorageError(err))
}

func TestStorageErrorMessage(t *testing.T) {
	cause := errors.New("disk full")

	assert.Equal(t, "storage: deliver alice/x: disk full",
		(&Error{Op: "deliver", Mailbox: "alice", ID: "x", Err: cause}).Error())
	assert.Equal(t, "storage: list alice: disk full",
		(&Error{Op: "list", Mailbox: "alice", Err: cause}).Error())
	assert.False(t, IsStorageError(cause))
	assert.True(t, IsStorageError(fmt.Errorf("wrapped: %w", &Error{Err: cause})))
}

func TestConcurrentDeliveryMemMapFs(t *testing.T) {
	testConcurrentDelivery(t, afero.NewMemMapFs(), "/mailboxes")
}

func TestConcurrentDeliveryOsFs(t *testing.T) {
	testConcurrentDelivery(t, afero.NewOsFs(), t.TempDir())
}

func testConcurrentDelivery(t *testing.T, fs afero.Fs, foldername string) {
	const (
		writers    = 8
		deliveries = 25
	)

	mailboxes, err := NewMailboxes(fs, crypto.NewIDGenerator(), MailboxesOptions{Foldername: foldername})
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		contents = make(map[string]string)
		errs     = make(chan error, writers*deliveries)
	)

	for w := 0; w < writers; w++ {
		wg.Add(1)

		go func(w int) {
			defer wg.Done()

			for d := 0; d < deliveries; d++ {
				content := fmt.Sprintf("writer %d delivery %d\r\n", w, d)

				id, _, err := mailboxes.Deliver(context.TODO(), "shared", strings.NewReader(content))
				if err != nil {
					errs <- err
					continue
				}

				mu.Lock()
				contents[id] = content
				mu.Unlock()
			}
		}(w)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	ids, err := mailboxes.List(context.TODO(), "shared")
	require.NoError(t, err)
	require.Len(t, ids, writers*deliveries)
	require.Len(t, contents, writers*deliveries)

	for _, id := range ids {
		content, err := mailboxes.Read("shared", id)
		require.NoError(t, err)
		assert.Equal(t, contents[id], string(content))
	}
}

type renameFailingFs struct {
	afero.Fs
	err error
}

func (fs renameFailingFs) Rename(string, string) error {
	return fs.err
}
