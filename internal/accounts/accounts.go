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

package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/wire"
	"github.com/spf13/viper"
)

const (
	// DriverFile reads accounts from a toml file.
	DriverFile = "file"
	// DriverSqlite reads accounts from a sqlite database.
	DriverSqlite = "sqlite"
)

// ErrNotFound is returned when there is no account with the requested name.
var ErrNotFound = errors.New("accounts: account not found")

// WireSet contains providers for the accounts package.
var WireSet = wire.NewSet(
	OptionsFromViper,
	NewDirectory,
	DatabaseOptionsFromViper,
	NewDatabase,
)

func init() {
	viper.SetDefault("accounts.driver", DriverFile)
	viper.SetDefault("accounts.filename", "accounts.toml")
}

// Account is a user, that may retrieve the mails of a mailbox.
type Account struct {
	Name string `db:"name"`
	// Password is either an argon2 hash or plain text.
	Password string `db:"password"`
	Mailbox  string `db:"mailbox"`
}

// Directory looks up accounts by name.
type Directory interface {
	// FindAccount returns the account with the name or ErrNotFound.
	FindAccount(ctx context.Context, name string) (*Account, error)
}

// Options selects and configures the account directory.
type Options struct {
	Driver   string
	Filename string
	Database DatabaseOptions
}

// OptionsFromViper returns options read from viper.
//
// `accounts.driver` is either "file" or "sqlite".
// `accounts.filename` is the toml file used by the "file" driver.
func OptionsFromViper() Options {
	return Options{
		Driver:   viper.GetString("accounts.driver"),
		Filename: viper.GetString("accounts.filename"),
		Database: DatabaseOptionsFromViper(),
	}
}

// NewDirectory opens the account directory selected by the driver option. The returned cleanup
// function releases resources held by the directory.
func NewDirectory(opts Options) (Directory, func(), error) {
	switch opts.Driver {
	case DriverFile:
		directory, err := OpenFile(opts.Filename)
		return directory, func() {}, err

	case DriverSqlite:
		database, cleanup, err := NewDatabase(opts.Database)
		if err != nil {
			return nil, nil, err
		}

		return database, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("accounts: unknown driver %q", opts.Driver)
	}
}

func defaultMailbox(account *Account) *Account {
	if account.Mailbox == "" {
		account.Mailbox = account.Name
	}

	return account
}
