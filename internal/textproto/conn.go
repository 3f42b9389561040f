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

package textproto

import (
	"context"
	"net"
	"time"
)

// Conn is a wrapper around a network connection to enable line based reading
// and buffered writing.
type Conn interface {
	Reader
	Writer

	// Context returns the context of the connection. It is cancelled when the server is closed.
	Context() context.Context

	// RemoteAddr returns the address of the client.
	RemoteAddr() net.Addr

	// SetReadTimeout sets the deadline for read calls to a time now + x. A timeout of zero
	// disables the deadline.
	SetReadTimeout(time.Duration) error

	// SetWriteTimeout sets the deadline for write calls to a time now + x. A timeout of zero
	// disables the deadline.
	SetWriteTimeout(time.Duration) error
}

type conn struct {
	raw net.Conn
	ctx context.Context

	Reader
	Writer
}

// WrapConn wraps a network connection. The context is passed on to the protocol.
func WrapConn(ctx context.Context, netConn net.Conn) Conn {
	return &conn{
		raw: netConn,
		ctx: ctx,

		Reader: newReader(netConn),
		Writer: newWriter(netConn),
	}
}

func (c *conn) Context() context.Context {
	return c.ctx
}

func (c *conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

func (c *conn) SetReadTimeout(d time.Duration) error {
	return c.raw.SetReadDeadline(deadline(d))
}

func (c *conn) SetWriteTimeout(d time.Duration) error {
	return c.raw.SetWriteDeadline(deadline(d))
}

func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}

	return time.Now().Add(d)
}
