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
	"time"

	"github.com/lukasdietrich/tinymail/internal/mails"
	"github.com/lukasdietrich/tinymail/internal/textproto"
)

type sessionState uint

const (
	sGreeted sessionState = iota
	sMail
	sRcpt
	sData
)

func (s sessionState) String() string {
	return [...]string{
		"greeted",
		"mail",
		"rcpt",
		"data",
	}[s]
}

func (s sessionState) in(any ...sessionState) bool {
	for _, other := range any {
		if other == s {
			return true
		}
	}

	return false
}

type session struct {
	textproto.Conn

	timeout time.Duration
	state   sessionState

	from string
	to   []mails.Address
}

// reset discards the message in progress.
func (s *session) reset() {
	s.from = ""
	s.to = nil
}

func (s *session) send(r *reply) error {
	if err := s.SetWriteTimeout(s.timeout); err != nil {
		return err
	}

	return r.writeTo(s)
}

func (s *session) reply(code int, text string) error {
	return s.send(&reply{code: code, text: text})
}

func (s *session) read(c *command) error {
	if err := s.SetReadTimeout(s.timeout); err != nil {
		return err
	}

	return c.readFrom(s)
}
