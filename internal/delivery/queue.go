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

package delivery

import (
	"context"
	"sync"

	"github.com/lukasdietrich/tinymail/internal/mails"
	"github.com/lukasdietrich/tinymail/internal/metrics"
)

// Queue is an unbounded first-in-first-out queue of messages waiting for delivery. Any number of
// goroutines may enqueue, while a single consumer dequeues.
type Queue struct {
	mu      sync.Mutex
	pending []mails.Message
	notify  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
	}
}

// Enqueue appends a message to the queue. It never blocks.
func (q *Queue) Enqueue(msg mails.Message) {
	q.mu.Lock()
	q.pending = append(q.pending, msg)
	metrics.QueueLength.Set(float64(len(q.pending)))
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Dequeue removes the oldest message from the queue. If the queue is empty, it blocks until a
// message is enqueued or the context is done.
func (q *Queue) Dequeue(ctx context.Context) (mails.Message, error) {
	for {
		if msg, ok := q.pop(); ok {
			return msg, nil
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return mails.Message{}, ctx.Err()
		}
	}
}

func (q *Queue) pop() (mails.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return mails.Message{}, false
	}

	msg := q.pending[0]
	q.pending[0] = mails.Message{}
	q.pending = q.pending[1:]

	metrics.QueueLength.Set(float64(len(q.pending)))

	return msg, true
}

// Len returns the number of messages waiting for delivery.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}
