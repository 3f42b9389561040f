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
	"context"
	"errors"
	"fmt"

	"github.com/lukasdietrich/tinymail/internal/accounts"
	"github.com/lukasdietrich/tinymail/internal/delivery"
	"github.com/lukasdietrich/tinymail/internal/log"
)

var (
	errCloseSession  = errors.New("pop3: session closed")
	errAbortSession  = errors.New("pop3: session aborted")
	errBadSequence   = errors.New("pop3: bad sequence of commands")
	errInvalidSyntax = errors.New("pop3: invalid syntax")

	errAuthFailed          = errors.New("pop3: authentication failed")
	errMaildropUnavailable = errors.New("pop3: maildrop unavailable")
)

// handler processes a command and returns the next state of the session. The state is applied
// even if an error is returned as well.
type handler func(context.Context, *session, *command) (sessionState, error)

// Authenticator verifies the credentials of an account.
type Authenticator interface {
	Auth(ctx context.Context, name, pass []byte) (*accounts.Account, error)
}

// `USER` command as specified in RFC#1939
//
//     "USER" <name> CRLF
func user() handler {
	return func(ctx context.Context, s *session, c *command) (sessionState, error) {
		if !s.state.in(sInit, sUser) {
			return s.state, errBadSequence
		}

		if !c.hasArg() {
			return s.state, errInvalidSyntax
		}

		s.name = string(c.arg)

		log.DebugContext(ctx).
			Str("name", s.name).
			Msg("pending identity")

		return sUser, s.ok("welcome " + s.name)
	}
}

// `PASS` command as specified in RFC#1939
//
//     "PASS" <secret> CRLF
func pass(authenticator Authenticator, inboxer *delivery.Inboxer) handler {
	return func(ctx context.Context, s *session, c *command) (sessionState, error) {
		if !s.state.in(sUser) {
			return s.state, errBadSequence
		}

		if !c.hasArg() {
			return s.state, errInvalidSyntax
		}

		name := s.name
		s.name = ""

		account, err := authenticator.Auth(ctx, []byte(name), c.arg)
		if err != nil {
			if !errors.Is(err, delivery.ErrWrongNamePassword) {
				log.ErrorContext(ctx).
					Err(err).
					Str("name", name).
					Msg("could not look up account")
			}

			return sInit, errAuthFailed
		}

		ctx = log.WithMailbox(ctx, account.Mailbox)

		inbox, err := inboxer.Inbox(ctx, account.Mailbox)
		if err != nil {
			log.ErrorContext(ctx).
				Err(err).
				Msg("could not load maildrop")

			return sInit, errMaildropUnavailable
		}

		s.inbox = inbox

		log.InfoContext(ctx).
			Str("name", name).
			Int("count", inbox.Count()).
			Msg("logged in")

		return sTransaction, s.ok(summary(inbox, "maildrop has %d messages (%d octets)"))
	}
}

func summary(inbox *delivery.Inbox, format string) string {
	return fmt.Sprintf(format, inbox.Count(), inbox.Size())
}

// `QUIT` command as specified in RFC#1939
//
//     "QUIT" CRLF
func quit(inboxer *delivery.Inboxer) handler {
	return func(ctx context.Context, s *session, _ *command) (sessionState, error) {
		// without a maildrop there is nothing to update
		if !s.state.in(sTransaction) {
			return s.state, errCloseSession
		}

		ctx = log.WithMailbox(ctx, s.inbox.Mailbox)

		if err := inboxer.Commit(ctx, s.inbox); err != nil {
			log.ErrorContext(ctx).
				Err(err).
				Msg("could not remove marked messages")

			// nothing is reported as deleted, so the session ends without entering UPDATE
			s.err("some deleted messages not removed") // nolint:errcheck
			return s.state, errAbortSession
		}

		log.InfoContext(ctx).
			Int("deleted", len(s.inbox.Marked())).
			Msg("maildrop updated")

		return sUpdate, errCloseSession
	}
}

// `STAT` command as specified in RFC#1939
//
//     "STAT" CRLF
func stat() handler {
	return func(_ context.Context, s *session, _ *command) (sessionState, error) {
		if !s.state.in(sTransaction) {
			return s.state, errBadSequence
		}

		return s.state, s.ok(summary(s.inbox, "%d %d"))
	}
}

// `LIST` command as specified in RFC#1939
//
//     "LIST" [ msg ] CRLF
func list() handler {
	return listing(
		"%d messages (%d octets)",
		func(entry *delivery.InboxEntry) string {
			return fmt.Sprintf("%d %d", entry.Position, entry.Size)
		})
}

// `UIDL` command as specified in RFC#1939
//
//     "UIDL" [ msg ] CRLF
func uidl() handler {
	return listing(
		"%d messages (%d octets)",
		func(entry *delivery.InboxEntry) string {
			return fmt.Sprintf("%d %s", entry.Position, entry.ID)
		})
}

// listing answers with a multi-line listing of every visible entry or a single line for the
// entry given as argument.
func listing(header string, line func(*delivery.InboxEntry) string) handler {
	return func(_ context.Context, s *session, c *command) (sessionState, error) {
		if !s.state.in(sTransaction) {
			return s.state, errBadSequence
		}

		if c.hasArg() {
			position, err := c.position()
			if err != nil {
				return s.state, err
			}

			entry, err := s.inbox.Entry(position)
			if err != nil {
				return s.state, err
			}

			return s.state, s.ok(line(entry))
		}

		if err := s.ok(summary(s.inbox, header)); err != nil {
			return s.state, err
		}

		visible := s.inbox.Visible()
		lines := make([]string, len(visible))
		for i := range visible {
			lines[i] = line(&visible[i])
		}

		if err := s.WriteMultiLine(lines...); err != nil {
			return s.state, err
		}

		return s.state, s.Flush()
	}
}

// `RETR` command as specified in RFC#1939
//
//     "RETR" msg CRLF
func retr() handler {
	return func(ctx context.Context, s *session, c *command) (sessionState, error) {
		if !s.state.in(sTransaction) {
			return s.state, errBadSequence
		}

		position, err := c.position()
		if err != nil {
			return s.state, err
		}

		entry, err := s.inbox.Entry(position)
		if err != nil {
			return s.state, err
		}

		if err := s.ok(fmt.Sprintf("%d octets", entry.Size)); err != nil {
			return s.state, err
		}

		log.DebugContext(ctx).
			Str("entry", entry.ID).
			Msg("sending message")

		w := s.DotWriter()

		if _, err := w.Write(entry.Content); err != nil {
			return s.state, err
		}

		if err := w.Close(); err != nil {
			return s.state, err
		}

		return s.state, s.Flush()
	}
}

// `DELE` command as specified in RFC#1939
//
//     "DELE" msg CRLF
func dele() handler {
	return func(ctx context.Context, s *session, c *command) (sessionState, error) {
		if !s.state.in(sTransaction) {
			return s.state, errBadSequence
		}

		position, err := c.position()
		if err != nil {
			return s.state, err
		}

		if err := s.inbox.Mark(position); err != nil {
			return s.state, err
		}

		log.DebugContext(ctx).
			Int("position", position).
			Msg("message marked for deletion")

		return s.state, s.ok(fmt.Sprintf("message %d deleted", position))
	}
}

// `NOOP` command as specified in RFC#1939
//
//     "NOOP" CRLF
func noop() handler {
	return func(_ context.Context, s *session, _ *command) (sessionState, error) {
		return s.state, s.ok("")
	}
}

// `RSET` command as specified in RFC#1939
//
//     "RSET" CRLF
func rset() handler {
	return func(_ context.Context, s *session, _ *command) (sessionState, error) {
		if !s.state.in(sTransaction) {
			return s.state, errBadSequence
		}

		s.inbox.Reset()
		return s.state, s.ok(summary(s.inbox, "maildrop has %d messages (%d octets)"))
	}
}

// `CAPA` command as specified in RFC#2449
//
//     "CAPA" CRLF
func capa(capabilities ...string) handler {
	return func(_ context.Context, s *session, _ *command) (sessionState, error) {
		if err := s.ok("capability list follows"); err != nil {
			return s.state, err
		}

		if err := s.WriteMultiLine(capabilities...); err != nil {
			return s.state, err
		}

		return s.state, s.Flush()
	}
}
