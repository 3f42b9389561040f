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
	"errors"
	"time"

	"github.com/spf13/viper"

	"github.com/lukasdietrich/tinymail/internal/accounts"
	"github.com/lukasdietrich/tinymail/internal/crypto"
	"github.com/lukasdietrich/tinymail/internal/log"
	"github.com/lukasdietrich/tinymail/internal/metrics"
)

var (
	// ErrWrongNamePassword is returned when an account either does not exist or the password
	// does not match.
	ErrWrongNamePassword = errors.New("wrong name or password combination")
)

func init() {
	viper.SetDefault("security.auth.minDuration", "1s")
}

// Authenticator is for authentication of users based on their account names.
type Authenticator struct {
	directory accounts.Directory

	minDuration time.Duration
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(directory accounts.Directory) *Authenticator {
	return &Authenticator{
		directory: directory,

		minDuration: viper.GetDuration("security.auth.minDuration"),
	}
}

// Auth searches for an account by name. If the account does not exist or the password does not
// match, ErrWrongNamePassword is returned. Lookup errors may occur.
func (a *Authenticator) Auth(ctx context.Context, name, pass []byte) (*accounts.Account, error) {
	startTime := time.Now()
	defer a.ensureMinDuration(startTime)

	account, err := a.auth(ctx, name, pass)

	switch {
	case err == nil:
		metrics.AuthenticationAttempts.WithLabelValues(metrics.ResultSuccess).Inc()
	case errors.Is(err, ErrWrongNamePassword):
		metrics.AuthenticationAttempts.WithLabelValues(metrics.ResultFailure).Inc()
	default:
		metrics.AuthenticationAttempts.WithLabelValues("error").Inc()
	}

	return account, err
}

func (a *Authenticator) auth(ctx context.Context, name, pass []byte) (*accounts.Account, error) {
	account, err := a.directory.FindAccount(ctx, string(name))
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			log.WarnContext(ctx).
				Bytes("name", name).
				Msg("failed auth attempt: unknown account")

			return nil, ErrWrongNamePassword
		}

		return nil, err
	}

	if err := crypto.Verify(account.Password, pass); err != nil {
		if errors.Is(err, crypto.ErrPasswordMismatch) {
			log.WarnContext(ctx).
				Bytes("name", name).
				Msg("failed auth attempt: wrong password")

			return nil, ErrWrongNamePassword
		}

		return nil, err
	}

	return account, nil
}

func (a *Authenticator) ensureMinDuration(start time.Time) {
	elapsed := time.Since(start)
	remaining := a.minDuration - elapsed

	if remaining > 0 {
		time.Sleep(remaining)
	}
}
