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

package pop3

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/tinymail/internal/accounts"
	"github.com/lukasdietrich/tinymail/internal/crypto"
	"github.com/lukasdietrich/tinymail/internal/delivery"
	"github.com/lukasdietrich/tinymail/internal/metrics"
	"github.com/lukasdietrich/tinymail/internal/storage"
	"github.com/lukasdietrich/tinymail/internal/textproto"
)

type mockAuthenticator struct {
	accounts map[string]accounts.Account
	err      error
}

func (m *mockAuthenticator) Auth(_ context.Context, name, pass []byte) (*accounts.Account, error) {
	if m.err != nil {
		return nil, m.err
	}

	account, ok := m.accounts[string(name)]
	if !ok || account.Password != string(pass) {
		return nil, delivery.ErrWrongNamePassword
	}

	return &account, nil
}

type removeFailingFs struct {
	afero.Fs
}

func (fs removeFailingFs) Remove(name string) error {
	return &os.PathError{Op: "remove", Path: name, Err: errors.New("device busy")}
}

func TestOptionsFromViper(t *testing.T) {
	viper.Set("general.hostname", "example.com")
	viper.Set("pop3.timeout", "1m")

	expected := Options{
		Hostname: "example.com",
		Timeout:  time.Minute,
	}

	assert.Equal(t, expected, OptionsFromViper())
}

func TestQuitState(t *testing.T) {
	mailboxes, err := storage.NewMailboxes(afero.NewMemMapFs(), crypto.NewIDGenerator(),
		storage.MailboxesOptions{Foldername: "/mailboxes"})
	require.NoError(t, err)

	inboxer := delivery.NewInboxer(mailboxes)
	proto := New(&mockAuthenticator{}, inboxer, Options{Hostname: "example.com"})

	tests := []struct {
		state    sessionState
		expected sessionState
	}{
		{state: sInit, expected: sInit},
		{state: sUser, expected: sUser},
		{state: sTransaction, expected: sUpdate},
	}

	for _, test := range tests {
		inbox, err := inboxer.Inbox(context.Background(), "alice")
		require.NoError(t, err)

		server, client := net.Pipe()
		s := &session{
			Conn:    textproto.WrapConn(context.Background(), server),
			timeout: time.Second,
			state:   test.state,
			inbox:   inbox,
		}

		go client.Write([]byte("QUIT\r\n")) // nolint:errcheck

		err = proto.loop(context.Background(), s)
		assert.ErrorIs(t, err, errCloseSession, "state %s", test.state)
		assert.Equal(t, test.expected, s.state, "state %s", test.state)

		client.Close()
		server.Close()
	}
}

func TestProtoTestSuite(t *testing.T) {
	suite.Run(t, new(ProtoTestSuite))
}

type ProtoTestSuite struct {
	suite.Suite

	ctx           context.Context
	fs            afero.Fs
	mailboxes     *storage.Mailboxes
	authenticator *mockAuthenticator
	opts          Options

	client net.Conn
	reader *bufio.Reader
	done   chan struct{}
}

func (s *ProtoTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.fs = afero.NewMemMapFs()
	s.mailboxes = s.newMailboxes(s.fs)

	s.authenticator = &mockAuthenticator{
		accounts: map[string]accounts.Account{
			"alice": {Name: "alice", Password: "hunter2", Mailbox: "alice"},
			"bob":   {Name: "bob", Password: "correct horse", Mailbox: "robert"},
		},
	}

	s.opts = Options{
		Hostname: "example.com",
		Timeout:  5 * time.Second,
	}
}

func (s *ProtoTestSuite) TearDownTest() {
	if s.client != nil {
		s.client.Close()
		<-s.done
	}

	s.client = nil
}

func (s *ProtoTestSuite) newMailboxes(fs afero.Fs) *storage.Mailboxes {
	mailboxes, err := storage.NewMailboxes(fs, crypto.NewIDGenerator(),
		storage.MailboxesOptions{Foldername: "/mailboxes"})
	s.Require().NoError(err)

	return mailboxes
}

func (s *ProtoTestSuite) deliver(mailbox string, contents ...string) {
	for _, content := range contents {
		_, _, err := s.mailboxes.Deliver(s.ctx, mailbox, strings.NewReader(content))
		s.Require().NoError(err)
	}
}

func (s *ProtoTestSuite) contents(mailbox string) []string {
	ids, err := s.mailboxes.List(s.ctx, mailbox)
	s.Require().NoError(err)

	sort.Strings(ids)
	contents := make([]string, len(ids))

	for i, id := range ids {
		content, err := s.mailboxes.Read(mailbox, id)
		s.Require().NoError(err)
		contents[i] = string(content)
	}

	return contents
}

func (s *ProtoTestSuite) connect() {
	s.connectTo(s.mailboxes)
}

func (s *ProtoTestSuite) connectTo(mailboxes *storage.Mailboxes) {
	server, client := net.Pipe()

	s.client = client
	s.reader = bufio.NewReader(client)
	s.done = make(chan struct{})

	proto := New(s.authenticator, delivery.NewInboxer(mailboxes), s.opts)

	go func() {
		defer close(s.done)
		defer server.Close()

		proto.Handle(textproto.WrapConn(context.Background(), server))
	}()

	s.expect("+OK example.com tinypop3 ready")
}

func (s *ProtoTestSuite) readLine() string {
	s.Require().NoError(s.client.SetReadDeadline(time.Now().Add(5 * time.Second)))

	line, err := s.reader.ReadString('\n')
	s.Require().NoError(err)
	s.Require().True(strings.HasSuffix(line, "\r\n"), line)

	return strings.TrimSuffix(line, "\r\n")
}

func (s *ProtoTestSuite) expect(expected ...string) {
	for _, line := range expected {
		s.Assert().Equal(line, s.readLine())
	}
}

func (s *ProtoTestSuite) send(line string, expected ...string) {
	s.Require().NoError(s.client.SetWriteDeadline(time.Now().Add(5 * time.Second)))

	_, err := s.client.Write([]byte(line + "\r\n"))
	s.Require().NoError(err)

	s.expect(expected...)
}

func (s *ProtoTestSuite) login(name, pass string) {
	s.send("USER "+name, "+OK welcome "+name)
	s.Require().True(strings.HasPrefix(s.sendRead("PASS "+pass), "+OK maildrop has "))
}

func (s *ProtoTestSuite) sendRead(line string) string {
	s.send(line)
	return s.readLine()
}

func (s *ProtoTestSuite) quit(expected string) {
	s.send("QUIT", expected)
	<-s.done
}

func (s *ProtoTestSuite) TestLogin() {
	s.deliver("alice", "one\r\n", "three\r\n")
	s.connect()

	s.send("USER alice", "+OK welcome alice")
	s.send("PASS hunter2", "+OK maildrop has 2 messages (12 octets)")
	s.send("STAT", "+OK 2 12")
	s.quit("+OK goodbye")
}

func (s *ProtoTestSuite) TestLoginSeparateMailbox() {
	s.deliver("robert", "hello bob\r\n")
	s.deliver("bob", "wrong mailbox\r\n", "wrong mailbox\r\n")
	s.connect()

	s.send("USER bob", "+OK welcome bob")
	s.send("PASS correct horse", "+OK maildrop has 1 messages (11 octets)")
	s.quit("+OK goodbye")
}

func (s *ProtoTestSuite) TestAuthenticationFailure() {
	s.connect()

	s.send("PASS hunter2", "-ERR command not valid in this state")
	s.send("USER", "-ERR invalid syntax")

	s.send("USER alice", "+OK welcome alice")
	s.send("PASS wrong", "-ERR authentication failed")

	// the pending identity is cleared after a failed attempt
	s.send("PASS hunter2", "-ERR command not valid in this state")

	s.send("USER mallory", "+OK welcome mallory")
	s.send("PASS hunter2", "-ERR authentication failed")

	s.send("STAT", "-ERR command not valid in this state")
	s.send("USER alice", "+OK welcome alice")
	s.send("PASS hunter2", "+OK maildrop has 0 messages (0 octets)")
	s.send("USER alice", "-ERR command not valid in this state")
	s.quit("+OK goodbye")
}

func (s *ProtoTestSuite) TestFailedLoginCounted() {
	failed := metrics.CommandsTotal.WithLabelValues(protocolName, "pass", metrics.ResultFailure)
	succeeded := metrics.CommandsTotal.WithLabelValues(protocolName, "pass", metrics.ResultSuccess)
	failedBefore, succeededBefore := testutil.ToFloat64(failed), testutil.ToFloat64(succeeded)

	s.connect()
	s.send("USER alice", "+OK welcome alice")
	s.send("PASS wrong", "-ERR authentication failed")
	s.login("alice", "hunter2")
	s.quit("+OK goodbye")

	s.Assert().Equal(failedBefore+1, testutil.ToFloat64(failed))
	s.Assert().Equal(succeededBefore+1, testutil.ToFloat64(succeeded))
}

func (s *ProtoTestSuite) TestAuthenticationError() {
	s.authenticator.err = errors.New("directory unavailable")
	s.connect()

	s.send("USER alice", "+OK welcome alice")
	s.send("PASS hunter2", "-ERR authentication failed")
	s.send("STAT", "-ERR command not valid in this state")
	s.quit("+OK goodbye")
}

func (s *ProtoTestSuite) TestSnapshotFailure() {
	s.authenticator.accounts["eve"] = accounts.Account{Name: "eve", Password: "x", Mailbox: ".."}
	s.connect()

	s.send("USER eve", "+OK welcome eve")
	s.send("PASS x", "-ERR unable to load maildrop")
	s.send("STAT", "-ERR command not valid in this state")
	s.quit("+OK goodbye")
}

func (s *ProtoTestSuite) TestSnapshotIsolation() {
	s.deliver("alice", "one\r\n", "two\r\n")
	s.connect()
	s.login("alice", "hunter2")

	s.send("STAT", "+OK 2 10")
	s.deliver("alice", "a late message\r\n")
	s.send("STAT", "+OK 2 10")
	s.send("LIST", "+OK 2 messages (10 octets)", "1 5", "2 5", ".")
	s.send("RETR 3", "-ERR no such message")
	s.quit("+OK goodbye")

	s.Assert().Len(s.contents("alice"), 3)
}

func (s *ProtoTestSuite) TestDeleteReset() {
	s.deliver("alice", "one\r\n", "two\r\n", "three\r\n")
	s.connect()
	s.login("alice", "hunter2")

	s.send("DELE 2", "+OK message 2 deleted")
	s.send("STAT", "+OK 2 12")
	s.send("RSET", "+OK maildrop has 3 messages (17 octets)")
	s.send("STAT", "+OK 3 17")
	s.quit("+OK goodbye")

	s.Assert().Equal([]string{"one\r\n", "two\r\n", "three\r\n"}, s.contents("alice"))
}

func (s *ProtoTestSuite) TestDeleteCommit() {
	s.deliver("alice", "one\r\n", "two\r\n", "three\r\n")
	s.connect()
	s.login("alice", "hunter2")

	s.send("DELE 1", "+OK message 1 deleted")
	s.send("DELE 3", "+OK message 3 deleted")

	// positions are never renumbered
	s.send("DELE 1", "-ERR no such message")
	s.send("LIST", "+OK 1 messages (5 octets)", "2 5", ".")
	s.send("LIST 2", "+OK 2 5")
	s.send("RETR 2", "+OK 5 octets", "two", ".")
	s.quit("+OK goodbye")

	s.Assert().Equal([]string{"two\r\n"}, s.contents("alice"))
}

func (s *ProtoTestSuite) TestDeleteCommitFailure() {
	s.deliver("alice", "one\r\n", "two\r\n")
	s.connectTo(s.newMailboxes(removeFailingFs{s.fs}))
	s.login("alice", "hunter2")

	s.send("DELE 1", "+OK message 1 deleted")
	s.quit("-ERR some deleted messages not removed")

	s.Assert().Equal([]string{"one\r\n", "two\r\n"}, s.contents("alice"))
}

func (s *ProtoTestSuite) TestRetrDotStuffing() {
	s.deliver("alice", "Subject: dots\r\n\r\n.leading dot\r\n.\r\nend\r\n")
	s.connect()
	s.login("alice", "hunter2")

	s.send("RETR 1",
		"+OK 39 octets",
		"Subject: dots",
		"",
		"..leading dot",
		"..",
		"end",
		".")

	s.quit("+OK goodbye")
}

func (s *ProtoTestSuite) TestListErrors() {
	s.deliver("alice", "one\r\n", "two\r\n")
	s.connect()
	s.login("alice", "hunter2")

	s.send("LIST 0", "-ERR no such message")
	s.send("LIST 3", "-ERR no such message")
	s.send("LIST -1", "-ERR no such message")
	s.send("LIST two", "-ERR invalid syntax")
	s.send("DELE 2", "+OK message 2 deleted")
	s.send("LIST 2", "-ERR no such message")
	s.send("RETR 2", "-ERR no such message")
	s.send("RETR", "-ERR invalid syntax")
	s.send("DELE", "-ERR invalid syntax")
	s.send("UIDL 2", "-ERR no such message")
	s.send("STAT", "+OK 1 5")
	s.quit("+OK goodbye")
}

func (s *ProtoTestSuite) TestUidl() {
	s.deliver("alice", "one\r\n", "two\r\n")

	ids, err := s.mailboxes.List(s.ctx, "alice")
	s.Require().NoError(err)
	sort.Strings(ids)

	s.connect()
	s.login("alice", "hunter2")

	s.send("UIDL", "+OK 2 messages (10 octets)", "1 "+ids[0], "2 "+ids[1], ".")
	s.send("UIDL 2", "+OK 2 "+ids[1])
	s.quit("+OK goodbye")
}

func (s *ProtoTestSuite) TestCapaNoopAndUnknown() {
	s.connect()

	s.send("CAPA", "+OK capability list follows", "USER", "UIDL", ".")
	s.send("NOOP", "+OK")
	s.send("APOP alice 0123", "-ERR command not recognized")
	s.send("RSET", "-ERR command not valid in this state")
	s.quit("+OK goodbye")
}

func (s *ProtoTestSuite) TestTimeoutLeavesMailboxUnchanged() {
	s.deliver("alice", "one\r\n", "two\r\n")
	s.opts.Timeout = 100 * time.Millisecond
	s.connect()
	s.login("alice", "hunter2")

	s.send("DELE 1", "+OK message 1 deleted")
	s.send("DELE 2", "+OK message 2 deleted")

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		s.FailNow("session did not time out")
	}

	s.Assert().Equal([]string{"one\r\n", "two\r\n"}, s.contents("alice"))
}

func (s *ProtoTestSuite) TestDisconnectLeavesMailboxUnchanged() {
	s.deliver("alice", "one\r\n")
	s.connect()
	s.login("alice", "hunter2")

	s.send("DELE 1", "+OK message 1 deleted")
	s.Require().NoError(s.client.Close())
	<-s.done

	s.Assert().Equal([]string{"one\r\n"}, s.contents("alice"))
}
