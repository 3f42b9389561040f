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
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/lukasdietrich/tinymail/internal/log"
)

// [accounts.alice]
//   password = "$argon2id$v=19$..."
//   mailbox = "alice"

type fileFormat struct {
	Accounts map[string]fileAccount `toml:"accounts"`
}

type fileAccount struct {
	Password string `toml:"password"`
	Mailbox  string `toml:"mailbox"`
}

// File is a read-only account directory parsed from toml.
type File struct {
	accounts map[string]Account
}

// OpenFile parses the accounts of a toml file.
func OpenFile(filename string) (*File, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	file, err := ParseFile(f)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("filename", filename).
		Int("accounts", len(file.accounts)).
		Msg("accounts loaded")

	return file, nil
}

// ParseFile parses accounts in toml format.
func ParseFile(r io.Reader) (*File, error) {
	var data fileFormat

	if _, err := toml.NewDecoder(r).Decode(&data); err != nil {
		return nil, err
	}

	accounts := make(map[string]Account, len(data.Accounts))

	for name, entry := range data.Accounts {
		account := Account{
			Name:     name,
			Password: entry.Password,
			Mailbox:  entry.Mailbox,
		}

		accounts[name] = *defaultMailbox(&account)
	}

	return &File{accounts: accounts}, nil
}

// FindAccount implements Directory.
func (f *File) FindAccount(ctx context.Context, name string) (*Account, error) {
	account, ok := f.accounts[name]
	if !ok {
		return nil, ErrNotFound
	}

	return &account, nil
}
