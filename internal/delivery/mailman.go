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
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/lukasdietrich/tinymail/internal/log"
	"github.com/lukasdietrich/tinymail/internal/mails"
	"github.com/lukasdietrich/tinymail/internal/metrics"
)

// MailboxWriter stores mails in mailboxes.
type MailboxWriter interface {
	Deliver(ctx context.Context, mailbox string, r io.Reader) (string, int64, error)
}

// Resolver maps a recipient address to the name of a local mailbox.
type Resolver interface {
	Resolve(addr mails.Address) string
}

type localPartResolver struct{}

// NewResolver creates a resolver, that uses the local part of an address as mailbox name.
func NewResolver() Resolver {
	return localPartResolver{}
}

func (localPartResolver) Resolve(addr mails.Address) string {
	return addr.LocalPart()
}

// Mailman consumes the delivery queue and puts mails into the mailboxes of their recipients.
type Mailman struct {
	queue     *Queue
	mailboxes MailboxWriter
	resolver  Resolver
}

// NewMailman creates a new mailman for delivery.
func NewMailman(queue *Queue, mailboxes MailboxWriter, resolver Resolver) *Mailman {
	return &Mailman{
		queue:     queue,
		mailboxes: mailboxes,
		resolver:  resolver,
	}
}

// Run delivers queued messages until the context is done.
func (m *Mailman) Run(ctx context.Context) error {
	ctx = log.WithOrigin(ctx, "mailman")
	log.InfoContext(ctx).Msg("waiting for mails")

	for {
		msg, err := m.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.InfoContext(ctx).
					Int("pending", m.queue.Len()).
					Msg("stopped delivery")

				return nil
			}

			return err
		}

		m.Deliver(ctx, msg)
	}
}

// Deliver puts a message into the mailbox of each recipient. Every recipient is handled on its
// own. Failures are logged and the message is dropped for that recipient.
func (m *Mailman) Deliver(ctx context.Context, msg mails.Message) {
	log.InfoContext(ctx).
		Str("from", msg.From).
		Int("recipients", len(msg.To)).
		Int64("size", msg.Size()).
		Msg("delivering mail")

	for _, to := range msg.To {
		mailbox := m.resolver.Resolve(to)
		ctx := log.WithMailbox(ctx, mailbox)

		id, _, err := m.mailboxes.Deliver(ctx, mailbox, bytes.NewReader(msg.Body))
		metrics.DeliveriesTotal.WithLabelValues(metrics.Result(err)).Inc()

		if err != nil {
			log.ErrorContext(ctx).
				Err(err).
				Stringer("to", to).
				Msg("could not deliver mail")

			continue
		}

		log.DebugContext(ctx).
			Stringer("to", to).
			Str("entry", id).
			Msg("mail delivered")
	}
}
