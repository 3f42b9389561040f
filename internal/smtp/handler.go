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

package smtp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/lukasdietrich/tinymail/internal/log"
	"github.com/lukasdietrich/tinymail/internal/mails"
	"github.com/lukasdietrich/tinymail/internal/metrics"
	"github.com/lukasdietrich/tinymail/internal/storage"
)

var (
	errCloseSession = errors.New("smtp: session closed")
	errBadSequence  = errors.New("smtp: bad sequence of commands")
)

// handler processes a command and returns the next state of the session. The state is only
// changed, if no error is returned.
type handler func(context.Context, *session, *command) (sessionState, error)

// `HELO` command as specified in RFC#5321 4.1.1.1
//
//     "HELO" SP <Domain> CRLF
func helo() handler {
	return func(ctx context.Context, s *session, c *command) (sessionState, error) {
		s.reset()

		log.DebugContext(ctx).
			Bytes("hostname", c.tail).
			Msg("resetting transaction state")

		text := fmt.Sprintf("<%s>, I am glad to meet you.", remoteHost(s))
		return sMail, s.reply(250, text)
	}
}

func remoteHost(s *session) string {
	addr := s.RemoteAddr()
	if addr == nil {
		return "unknown"
	}

	if host, _, err := net.SplitHostPort(addr.String()); err == nil {
		return host
	}

	return addr.String()
}

// `NOOP` command as specified in RFC#5321 4.1.1.9
//
//     "NOOP" CRLF
func noop() handler {
	return func(_ context.Context, s *session, _ *command) (sessionState, error) {
		return s.state, s.reply(250, "Ok")
	}
}

// `RSET` command as specified in RFC#5321 4.1.1.5
//
//     "RSET" CRLF
func rset() handler {
	return func(ctx context.Context, s *session, _ *command) (sessionState, error) {
		if !s.state.in(sRcpt, sData) {
			return s.state, errBadSequence
		}

		s.reset()

		log.DebugContext(ctx).Msg("resetting transaction state")

		return sMail, s.reply(250, "Ok")
	}
}

// `QUIT` command as specified in RFC#5321 4.1.1.10
//
//     "QUIT" CRLF
func quit() handler {
	return func(ctx context.Context, s *session, _ *command) (sessionState, error) {
		log.DebugContext(ctx).Msg("closing session")
		return s.state, errCloseSession
	}
}

// `MAIL` command as specified in RFC#5321 4.1.1.2
//
//     "MAIL FROM:<" <Reverse-path> ">" [ SP Parameters ] CRLF
func mail() handler {
	return func(ctx context.Context, s *session, c *command) (sessionState, error) {
		if !s.state.in(sMail) {
			return s.state, errBadSequence
		}

		from, err := c.path("FROM")
		if err != nil {
			return s.state, err
		}

		// the null reverse-path "<>" is allowed
		if from != "" {
			if _, err := mails.ParseAddress(from); err != nil {
				return s.state, err
			}
		}

		s.reset()
		s.from = from

		log.DebugContext(ctx).
			Str("from", from).
			Msg("beginning mail transaction")

		return sRcpt, s.reply(250, "Ok")
	}
}

// `RCPT` command as specified in RFC#5321 4.1.1.3
//
//     "RCPT TO:<" <Forward-path> ">" [ SP Parameters ] CRLF
func rcpt(hostname string) handler {
	return func(ctx context.Context, s *session, c *command) (sessionState, error) {
		if !s.state.in(sRcpt, sData) {
			return s.state, errBadSequence
		}

		arg, err := c.path("TO")
		if err != nil {
			return s.state, err
		}

		to, err := mails.ParseAddress(arg)
		if err != nil {
			return s.state, err
		}

		if !mails.SameDomain(to.Domain(), hostname) {
			log.InfoContext(ctx).
				Stringer("to", to).
				Msg("rejecting recipient of foreign domain")

			return s.state, smtpError{
				code: 504,
				text: fmt.Sprintf("5.5.2 <%s>: Recipient address rejected", to),
			}
		}

		if err := storage.ValidateMailbox(to.LocalPart()); err != nil {
			log.InfoContext(ctx).
				Stringer("to", to).
				Msg("rejecting recipient without valid mailbox name")

			return s.state, smtpError{
				code: 550,
				text: fmt.Sprintf("5.1.1 <%s>: Recipient address rejected: invalid mailbox", to),
			}
		}

		s.to = append(s.to, to)

		log.DebugContext(ctx).
			Stringer("to", to).
			Msg("recipient added")

		return sData, s.reply(250, "Ok")
	}
}

// `DATA` command as specified in RFC#5321 4.1.1.4
//
//     "DATA" CRLF
func data(queue Enqueuer, maxSize int64, unstuff bool) handler {
	return func(ctx context.Context, s *session, _ *command) (sessionState, error) {
		if !s.state.in(sData) {
			return s.state, errBadSequence
		}

		log.DebugContext(ctx).Msg("receiving mail content")

		if err := s.reply(354, "End data with <CR><LF>.<CR><LF>"); err != nil {
			return s.state, err
		}

		if err := s.SetReadTimeout(s.timeout); err != nil {
			return s.state, err
		}

		r := s.VerbatimDotReader()
		if unstuff {
			r = s.DotReader()
		}

		body, err := readMessage(r, maxSize)
		if errors.Is(err, errMessageTooLarge) {
			log.InfoContext(ctx).
				Int64("maxSize", maxSize).
				Msg("message exceeds size limit")

			s.reset()
			return sMail, s.reply(552, "5.3.4 Message size exceeds fixed maximum message size")
		}

		if err != nil {
			return s.state, err
		}

		msg := mails.Message{
			Addr: s.RemoteAddr(),
			Date: time.Now(),
			From: s.from,
			To:   s.to,
			Body: body,
		}

		queue.Enqueue(msg)
		metrics.MessagesAccepted.Inc()
		s.reset()

		log.InfoContext(ctx).
			Str("from", msg.From).
			Int("recipients", len(msg.To)).
			Int64("size", msg.Size()).
			Msg("mail queued for delivery")

		return sMail, s.reply(250, "Ok delivered message.")
	}
}
