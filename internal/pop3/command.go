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
	"bytes"
	"strconv"
	"strings"

	"github.com/lukasdietrich/tinymail/internal/textproto"
)

// command represents a command-line of the form:
//
//     <name> [<SP> <arg>] <CR> <LF>
//
// Everything after the name is a single argument, so secrets may contain spaces.
type command struct {
	name string
	arg  []byte
}

func (c *command) readFrom(r textproto.Reader) error {
	line, err := r.ReadLine()
	if err != nil {
		return err
	}

	c.parse(line)
	return nil
}

func (c *command) parse(line []byte) {
	line = bytes.TrimSpace(line)
	space := bytes.IndexAny(line, " \t")

	if space < 0 {
		c.name = string(line)
		c.arg = nil
	} else {
		c.name = string(line[:space])
		c.arg = bytes.TrimSpace(line[space+1:])
	}

	c.name = strings.ToLower(c.name)
}

func (c *command) hasArg() bool {
	return len(c.arg) > 0
}

// position parses the argument as a 1-based message number.
func (c *command) position() (int, error) {
	if !c.hasArg() {
		return -1, errInvalidSyntax
	}

	n, err := strconv.Atoi(string(c.arg))
	if err != nil {
		return -1, errInvalidSyntax
	}

	return n, nil
}
