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

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lukasdietrich/tinymail/internal/crypto"
)

type hashCommand struct {
	in  io.Reader
	out io.Writer
}

func (h *hashCommand) run() error {
	pass, err := bufio.NewReader(h.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	pass = strings.TrimRight(pass, "\r\n")
	if pass == "" {
		return errors.New("empty password")
	}

	hash, err := crypto.Hash([]byte(pass))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(h.out, hash)
	return err
}
