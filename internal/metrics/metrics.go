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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection metrics
var (
	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinymail_connections_total",
			Help: "Total number of accepted connections",
		},
		[]string{"protocol"},
	)

	ConnectionsCurrent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tinymail_connections_current",
			Help: "Current number of open connections",
		},
		[]string{"protocol"},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinymail_commands_total",
			Help: "Total number of processed commands",
		},
		[]string{"protocol", "command", "result"},
	)

	AuthenticationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinymail_authentication_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)
)

// Delivery metrics
var (
	MessagesAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tinymail_messages_accepted_total",
			Help: "Total number of messages accepted for delivery",
		},
	)

	QueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tinymail_queue_length",
			Help: "Current number of messages waiting for delivery",
		},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinymail_deliveries_total",
			Help: "Total number of deliveries to recipients",
		},
		[]string{"result"},
	)

	DeletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinymail_deletions_total",
			Help: "Total number of entries deleted at the end of retrieval sessions",
		},
		[]string{"result"},
	)
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Result returns the result label for an error.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}

	return ResultSuccess
}
