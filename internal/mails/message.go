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

package mails

import (
	"net"
	"time"
)

// Message is a mail accepted by an smtp session. Once it is handed to the delivery queue it
// must not be modified anymore.
type Message struct {
	// Addr is the remote address of the submitting client.
	Addr net.Addr
	// Date is the time when the data transmission ended.
	Date time.Time
	// From is the reverse-path as sent by the client, without angle brackets.
	From string
	// To is the list of recipients in the order they were accepted. Duplicates are kept.
	To []Address
	// Body is the raw content. Every line is terminated by <CR> <LF>. The final "." line is
	// not included.
	Body []byte
}

// Size returns the length of the body in bytes.
func (m *Message) Size() int64 {
	return int64(len(m.Body))
}
