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
	"fmt"
	"strconv"

	"github.com/lukasdietrich/tinymail/internal/textproto"
)

type reply struct {
	code int
	text string
}

func (r *reply) writeTo(w textproto.Writer) error {
	w.WriteLine(strconv.Itoa(r.code) + " " + r.text) // nolint:errcheck

	return w.Flush()
}

// smtpError is an error, that is reported to the client with a specific reply.
type smtpError struct {
	code int
	text string
}

func (e smtpError) Error() string {
	return fmt.Sprintf("%d %s", e.code, e.text)
}
