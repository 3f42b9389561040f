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
	"bytes"
	"errors"
	"strings"

	"github.com/lukasdietrich/tinymail/internal/textproto"
)

var (
	errCommandSyntax = errors.New("command: invalid syntax")
)

// command represents a command-line of the form:
//
//     <head> <SP> <tail> <CR> <LF>
type command struct {
	head []byte
	tail []byte
}

func (c *command) readFrom(r textproto.Reader) error {
	line, err := r.ReadLine()
	if err != nil {
		return err
	}

	c.parse(line)
	return nil
}

// parse a line into head and tail of a command.
// tail will be nil if no space is found.
func (c *command) parse(line []byte) {
	line = bytes.TrimSpace(line)
	space := bytes.IndexRune(line, ' ')

	if space < 0 {
		c.head = line
		c.tail = nil
	} else {
		c.head = line[:space]
		c.tail = bytes.TrimSpace(line[space+1:])
	}
}

func (c *command) name() string {
	return strings.ToLower(string(c.head))
}

// path parses the argument of a command of the form:
//
//     <name> ":" [ <SP> ] ( "<" <path> ">" | <path> ) [ <SP> <params> ]
func (c *command) path(name string) (string, error) {
	tail := c.tail

	if len(tail) < len(name)+1 || !bytes.EqualFold(tail[:len(name)], []byte(name)) {
		return "", errCommandSyntax
	}

	tail = tail[len(name):]

	if tail[0] != ':' {
		return "", errCommandSyntax
	}

	tail = bytes.TrimLeft(tail[1:], " ")

	if len(tail) > 0 && tail[0] == '<' {
		end := bytes.IndexByte(tail, '>')
		if end < 0 {
			return "", errCommandSyntax
		}

		return string(tail[1:end]), nil
	}

	if end := bytes.IndexByte(tail, ' '); end >= 0 {
		tail = tail[:end]
	}

	if len(tail) == 0 {
		return "", errCommandSyntax
	}

	return string(tail), nil
}
