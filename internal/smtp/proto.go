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
	"io"
	"net"
	"time"

	"github.com/spf13/viper"

	"github.com/lukasdietrich/tinymail/internal/log"
	"github.com/lukasdietrich/tinymail/internal/mails"
	"github.com/lukasdietrich/tinymail/internal/metrics"
	"github.com/lukasdietrich/tinymail/internal/textproto"
)

const protocolName = "smtp"

func init() {
	viper.SetDefault("general.hostname", "localhost")
	viper.SetDefault("mail.sizelimit", "10mb")
	viper.SetDefault("mail.unstuff", false)
	viper.SetDefault("smtp.timeout", "5m")
}

// Enqueuer accepts messages for delivery.
type Enqueuer interface {
	Enqueue(mails.Message)
}

// Options configures the smtp protocol.
type Options struct {
	// Hostname is the domain of the server. Only recipients of this domain are accepted.
	Hostname string
	// SizeLimit is the maximum size of a message body in bytes. Zero means no limit.
	SizeLimit int64
	// Unstuff removes a leading dot from received lines.
	Unstuff bool
	// Timeout is the maximum time to wait for the next line of the client.
	Timeout time.Duration
}

// OptionsFromViper returns options read from viper.
//
// `general.hostname` is the domain of the server.
// `mail.sizelimit` is the maximum size of a message (e.g. "10mb").
// `mail.unstuff` enables removal of leading dots.
// `smtp.timeout` is the idle timeout of a session.
func OptionsFromViper() Options {
	return Options{
		Hostname:  viper.GetString("general.hostname"),
		SizeLimit: int64(viper.GetSizeInBytes("mail.sizelimit")),
		Unstuff:   viper.GetBool("mail.unstuff"),
		Timeout:   viper.GetDuration("smtp.timeout"),
	}
}

// Proto is a smtp server protocol implementation.
type Proto struct {
	hostname   string
	timeout    time.Duration
	handlerMap map[string]handler
}

// New creates a new Protocol instance to be used with a textproto Server
func New(queue Enqueuer, opts Options) *Proto {
	return &Proto{
		hostname: opts.Hostname,
		timeout:  opts.Timeout,
		handlerMap: map[string]handler{
			"helo": helo(),
			"mail": mail(),
			"rcpt": rcpt(opts.Hostname),
			"data": data(queue, opts.SizeLimit, opts.Unstuff),

			"noop": noop(),
			"rset": rset(),
			"quit": quit(),
		},
	}
}

// Handle accepts an smtp connection and handles all incoming commands in a loop until the
// transmission is closed.
func (p *Proto) Handle(c textproto.Conn) {
	s := &session{
		Conn:    c,
		timeout: p.timeout,
		state:   sGreeted,
	}

	ctx := log.WithOrigin(c.Context(), protocolName)

	if err := s.reply(220, p.hostname+" SMTP tinysmtp"); err != nil {
		return
	}

	log.InfoContext(ctx).
		Stringer("remote", c.RemoteAddr()).
		Msg("starting session")

	err := p.loop(ctx, s)

	switch {
	case err == nil, errors.Is(err, errCloseSession):
		log.InfoContext(ctx).Msg("session closed")
		s.reply(221, "Bye") // nolint:errcheck

	case errors.Is(err, io.EOF):
		log.InfoContext(ctx).Msg("connection closed by client")

	case isTimeout(err):
		log.InfoContext(ctx).Msg("session timed out")
		s.reply(421, p.hostname+" Timeout, closing transmission channel") // nolint:errcheck

	default:
		log.ErrorContext(ctx).
			Err(err).
			Msg("session closed with an error")

		s.reply(451, "Requested action aborted: local error in processing") // nolint:errcheck
	}
}

func (p *Proto) loop(ctx context.Context, s *session) error {
	var cmd command

	for {
		if err := s.read(&cmd); err != nil {
			return err
		}

		commandName := cmd.name()
		ctx := log.WithCommand(ctx, commandName)
		h, ok := p.handlerMap[commandName]

		if !ok {
			log.DebugContext(ctx).Msg("command not recognized")
			metrics.CommandsTotal.WithLabelValues(protocolName, "unknown", metrics.ResultFailure).Inc()

			if err := s.reply(502, "5.5.2 Error: command not recognized"); err != nil {
				return err
			}

			continue
		}

		next, err := h(ctx, s, &cmd)
		countCommand(commandName, err)

		if err != nil {
			if errors.Is(err, errCloseSession) {
				return err
			}

			log.DebugContext(ctx).
				Err(err).
				Stringer("state", s.state).
				Msg("error during command")

			if err := handleError(s, err); err != nil {
				return err
			}

			continue
		}

		if next != s.state {
			log.TraceContext(ctx).
				Stringer("from", s.state).
				Stringer("to", next).
				Msg("state transition")
		}

		s.state = next
	}
}

func handleError(s *session, err error) error {
	var smtpErr smtpError
	if errors.As(err, &smtpErr) {
		return s.reply(smtpErr.code, smtpErr.text)
	}

	switch {
	case errors.Is(err, errBadSequence):
		return s.reply(503, "Bad sequence of commands")

	case errors.Is(err, errCommandSyntax):
		return s.reply(501, "Syntax error in parameters or arguments")

	case errors.Is(err, mails.ErrInvalidAddressFormat):
		return s.reply(501, "5.1.3 Bad address syntax")

	case errors.Is(err, mails.ErrPathTooLong):
		return s.reply(501, "5.1.3 Path too long")
	}

	return err
}

func countCommand(name string, err error) {
	result := metrics.Result(err)
	if errors.Is(err, errCloseSession) {
		result = metrics.ResultSuccess
	}

	metrics.CommandsTotal.WithLabelValues(protocolName, name, result).Inc()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
