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
	"io"
	"net"
	"time"

	"github.com/spf13/viper"

	"github.com/lukasdietrich/tinymail/internal/delivery"
	"github.com/lukasdietrich/tinymail/internal/log"
	"github.com/lukasdietrich/tinymail/internal/metrics"
	"github.com/lukasdietrich/tinymail/internal/storage"
	"github.com/lukasdietrich/tinymail/internal/textproto"
)

const protocolName = "pop3"

func init() {
	viper.SetDefault("general.hostname", "localhost")
	viper.SetDefault("pop3.timeout", "10m")
}

// Options configures the pop3 protocol.
type Options struct {
	// Hostname is the domain of the server, as announced in the greeting.
	Hostname string
	// Timeout is the maximum time to wait for the next command of the client.
	Timeout time.Duration
}

// OptionsFromViper returns options read from viper.
//
// `general.hostname` is the domain of the server.
// `pop3.timeout` is the idle timeout of a session.
func OptionsFromViper() Options {
	return Options{
		Hostname: viper.GetString("general.hostname"),
		Timeout:  viper.GetDuration("pop3.timeout"),
	}
}

// Proto is a pop3 protocol implementation.
type Proto struct {
	hostname   string
	timeout    time.Duration
	handlerMap map[string]handler
}

// New creates a new Protocol instance to be used with a textproto Server
func New(authenticator Authenticator, inboxer *delivery.Inboxer, opts Options) *Proto {
	return &Proto{
		hostname: opts.Hostname,
		timeout:  opts.Timeout,
		handlerMap: map[string]handler{
			"capa": capa(
				"USER",
				"UIDL"),

			"user": user(),
			"pass": pass(authenticator, inboxer),

			"stat": stat(),
			"list": list(),
			"uidl": uidl(),
			"retr": retr(),
			"dele": dele(),

			"noop": noop(),
			"rset": rset(),
			"quit": quit(inboxer),
		},
	}
}

var (
	rBye            = reply{true, "goodbye"}
	rError          = reply{false, "action aborted: local error in processing"}
	rNotImplemented = reply{false, "command not recognized"}
	rBadSequence    = reply{false, "command not valid in this state"}
	rInvalidSyntax  = reply{false, "invalid syntax"}
	rNoSuchMessage  = reply{false, "no such message"}
	rAuthFailed     = reply{false, "authentication failed"}
	rNoMaildrop     = reply{false, "unable to load maildrop"}
)

// Handle accepts a pop3 connection and handles all incoming commands in a loop until the
// transmission is closed. Marked messages are only removed, when the client ends the session
// with QUIT.
func (p *Proto) Handle(c textproto.Conn) {
	s := &session{
		Conn:    c,
		timeout: p.timeout,
		state:   sInit,
	}

	ctx := log.WithOrigin(c.Context(), protocolName)

	if err := s.ok(p.hostname + " tinypop3 ready"); err != nil {
		return
	}

	log.InfoContext(ctx).
		Stringer("remote", c.RemoteAddr()).
		Msg("starting session")

	err := p.loop(ctx, s)

	switch {
	case err == nil, errors.Is(err, errCloseSession):
		log.InfoContext(ctx).Msg("session closed")
		s.send(&rBye) // nolint:errcheck

	case errors.Is(err, errAbortSession):
		log.WarnContext(ctx).Msg("session closed without update")

	case errors.Is(err, io.EOF):
		log.InfoContext(ctx).Msg("connection closed by client")

	case isTimeout(err):
		log.InfoContext(ctx).
			Stringer("state", s.state).
			Msg("session timed out")

	default:
		log.ErrorContext(ctx).
			Err(err).
			Msg("session closed with an error")

		s.send(&rError) // nolint:errcheck
	}
}

func (p *Proto) loop(ctx context.Context, s *session) error {
	var cmd command

	for {
		if err := s.read(&cmd); err != nil {
			return err
		}

		ctx := log.WithCommand(ctx, cmd.name)
		h, ok := p.handlerMap[cmd.name]

		if !ok {
			log.DebugContext(ctx).Msg("command not recognized")
			metrics.CommandsTotal.WithLabelValues(protocolName, "unknown", metrics.ResultFailure).Inc()

			if err := s.send(&rNotImplemented); err != nil {
				return err
			}

			continue
		}

		next, err := h(ctx, s, &cmd)
		countCommand(cmd.name, err)

		// handlers return the state to continue in, even along with an error
		if next != s.state {
			log.TraceContext(ctx).
				Stringer("from", s.state).
				Stringer("to", next).
				Msg("state transition")
		}

		s.state = next

		if err != nil {
			if errors.Is(err, errCloseSession) || errors.Is(err, errAbortSession) {
				return err
			}

			log.DebugContext(ctx).
				Err(err).
				Stringer("state", s.state).
				Msg("error during command")

			if err := handleError(s, err); err != nil {
				return err
			}
		}
	}
}

func handleError(s *session, err error) error {
	switch {
	case errors.Is(err, errBadSequence):
		return s.send(&rBadSequence)

	case errors.Is(err, errInvalidSyntax):
		return s.send(&rInvalidSyntax)

	case errors.Is(err, errAuthFailed):
		return s.send(&rAuthFailed)

	case errors.Is(err, errMaildropUnavailable):
		return s.send(&rNoMaildrop)

	case errors.Is(err, delivery.ErrNoSuchMessage):
		return s.send(&rNoSuchMessage)

	case storage.IsStorageError(err):
		log.Error().Err(err).Msg("storage failure during session")
		return s.send(&rError)
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
