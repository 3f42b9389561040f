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
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/lukasdietrich/tinymail/internal/delivery"
	"github.com/lukasdietrich/tinymail/internal/log"
	"github.com/lukasdietrich/tinymail/internal/metrics"
	"github.com/lukasdietrich/tinymail/internal/pop3"
	"github.com/lukasdietrich/tinymail/internal/smtp"
	"github.com/lukasdietrich/tinymail/internal/textproto"
)

func init() {
	viper.SetDefault("smtp.address", ":25")
	viper.SetDefault("smtp.workers", 10)
	viper.SetDefault("pop3.address", ":110")
}

type startCommand struct {
	SMTP    *smtp.Proto
	POP3    *pop3.Proto
	Mailman *delivery.Mailman
	Metrics metrics.Options
}

func (s *startCommand) run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		smtpServer = textproto.NewServer(s.SMTP, textproto.ServerOptions{
			Name:    "smtp",
			Workers: viper.GetInt("smtp.workers"),
		})

		pop3Server = textproto.NewServer(s.POP3, textproto.ServerOptions{
			Name: "pop3",
		})

		errs = make(chan error, 4)
	)

	go func() { errs <- s.Mailman.Run(ctx) }()
	go func() { errs <- smtpServer.ListenAndServe(viper.GetString("smtp.address")) }()
	go func() { errs <- pop3Server.ListenAndServe(viper.GetString("pop3.address")) }()

	var metricsServer *http.Server

	if s.Metrics.Enabled() {
		metricsServer = metrics.NewServer(s.Metrics)

		log.Info().
			Str("address", s.Metrics.Address).
			Str("path", s.Metrics.Path).
			Msg("serving metrics")

		go func() { errs <- metricsServer.ListenAndServe() }()
	}

	var err error

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err = <-errs:
	}

	stop()

	smtpServer.Close()
	pop3Server.Close()

	if metricsServer != nil {
		metricsServer.Close()
	}

	if errors.Is(err, textproto.ErrServerClosed) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
