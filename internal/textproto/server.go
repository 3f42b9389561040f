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
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/lukasdietrich/tinymail/internal/log"
	"github.com/lukasdietrich/tinymail/internal/metrics"
)

// ErrServerClosed is returned by Serve after Close has been called.
var ErrServerClosed = errors.New("textproto: server closed")

// Protocol is an interface for text based protocol implementations.
type Protocol interface {
	// Handle is supposed to consume a connection and manage all traffic
	// over it. Once Handle returns, the underlying network connection is
	// automatically closed by the server.
	Handle(Conn)
}

// ServerOptions configures a Server.
type ServerOptions struct {
	// Name is used in logs and metrics.
	Name string
	// Workers limits the number of connections handled at the same time. Further connections
	// wait for a free worker. Zero means no limit.
	Workers int
}

// Server is a general purpose tcp server for text based protocols like SMTP
// or POP3.
type Server struct {
	proto   Protocol
	name    string
	workers chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     map[net.Conn]struct{}
	closed    bool
	wg        sync.WaitGroup
}

var connectionCounter int32

// NewServer returns a Server using a specified protocol implementation.
// The Server has to be started explicitly afterwards.
func NewServer(proto Protocol, opts ServerOptions) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		proto:     proto,
		name:      opts.Name,
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[net.Conn]struct{}),
	}

	if opts.Workers > 0 {
		s.workers = make(chan struct{}, opts.Workers)
	}

	return s
}

// ListenAndServe opens a new tcp listener and serves connections until an error occurs or the
// server is closed.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	log.Info().
		Str("protocol", s.name).
		Stringer("address", l.Addr()).
		Msg("listening for connections")

	return s.Serve(l)
}

// Serve accepts connections from a listener until an error occurs or the server is closed.
// The listener is closed, when Serve returns.
func (s *Server) Serve(l net.Listener) error {
	if !s.trackListener(l) {
		l.Close()
		return ErrServerClosed
	}

	defer s.untrackListener(l)

	for {
		netConn, err := l.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}

			return err
		}

		if !s.trackConn(netConn) {
			netConn.Close()
			return ErrServerClosed
		}

		go s.handle(netConn)
	}
}

func (s *Server) handle(netConn net.Conn) {
	defer s.wg.Done()
	defer s.untrackConn(netConn)

	if !s.acquireWorker() {
		return
	}

	defer s.releaseWorker()

	metrics.ConnectionsTotal.WithLabelValues(s.name).Inc()
	metrics.ConnectionsCurrent.WithLabelValues(s.name).Inc()
	defer metrics.ConnectionsCurrent.WithLabelValues(s.name).Dec()

	ctx := log.WithConnection(s.ctx, atomic.AddInt32(&connectionCounter, 1))

	log.DebugContext(ctx).
		Str("protocol", s.name).
		Stringer("remote", netConn.RemoteAddr()).
		Msg("connection accepted")

	s.proto.Handle(WrapConn(ctx, netConn))
}

func (s *Server) acquireWorker() bool {
	if s.workers == nil {
		return true
	}

	select {
	case s.workers <- struct{}{}:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Server) releaseWorker() {
	if s.workers != nil {
		<-s.workers
	}
}

// Close stops all listeners and closes every open connection, which unblocks pending reads.
// It waits until all protocol handlers have returned.
func (s *Server) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	s.cancel()

	var err error

	for l := range s.listeners {
		if closeErr := l.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	for c := range s.conns {
		c.Close() // nolint:errcheck
	}

	s.mu.Unlock()
	s.wg.Wait()

	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

func (s *Server) trackListener(l net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	s.listeners[l] = struct{}{}
	return true
}

func (s *Server) untrackListener(l net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listeners[l]; ok {
		delete(s.listeners, l)
		l.Close() // nolint:errcheck
	}
}

func (s *Server) trackConn(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	s.conns[c] = struct{}{}
	s.wg.Add(1)

	return true
}

func (s *Server) untrackConn(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()

	c.Close() // nolint:errcheck
}
