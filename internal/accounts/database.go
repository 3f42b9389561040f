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
	"database/sql"
	"errors"
	"net/url"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/tinymail/internal/log"
)

const driverName = "sqlite3"

var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "0001_create_accounts",
			Up: []string{
				`
					create table "accounts" (
						"name"     text primary key ,
						"password" text not null ,
						"mailbox"  text not null
					) ;
				`,
			},
			Down: []string{
				`drop table "accounts" ;`,
			},
		},
	},
}

func init() {
	migrate.SetTable("migrations")

	viper.SetDefault("storage.database.filename", "data/tinymail.sqlite")
	viper.SetDefault("storage.database.journalmode", "wal")
}

// DatabaseOptions configures the sqlite account directory.
type DatabaseOptions struct {
	Filename    string
	JournalMode string
}

// DatabaseOptionsFromViper returns options read from viper.
//
// `storage.database.filename` is the filename for the sqlite database.
// `storage.database.journalmode` will be used for the journalmode pragma.
func DatabaseOptionsFromViper() DatabaseOptions {
	return DatabaseOptions{
		Filename:    viper.GetString("storage.database.filename"),
		JournalMode: viper.GetString("storage.database.journalmode"),
	}
}

// Database is a writable account directory stored in sqlite.
type Database struct {
	db *sqlx.DB
}

// OpenDatabase opens a sqlite3 database and applies pending migrations.
func OpenDatabase(opts DatabaseOptions) (*Database, error) {
	sqliteVersion, _, _ := sqlite3.Version()

	dsn := createDataSourceName(opts)
	log.Info().
		Str("driver", driverName).
		Str("version", sqliteVersion).
		Str("dataSourceName", dsn).
		Msg("connecting to database")

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	// Every connection to ":memory:" would see its own database.
	db.SetMaxOpenConns(1)

	n, err := migrate.Exec(db.DB, driverName, migrations, migrate.Up)
	if err != nil {
		db.Close()
		return nil, err
	}

	if n > 0 {
		log.Info().
			Int("migrations", n).
			Msg("database migrations applied")
	}

	return &Database{db: db}, nil
}

// NewDatabase opens the database like OpenDatabase. The returned cleanup function closes it.
func NewDatabase(opts DatabaseOptions) (*Database, func(), error) {
	database, err := OpenDatabase(opts)
	if err != nil {
		return nil, nil, err
	}

	return database, func() { database.Close() }, nil
}

func createDataSourceName(opts DatabaseOptions) string {
	query := make(url.Values)
	query.Add("_foreign_keys", "true")
	query.Add("_journal_mode", opts.JournalMode)

	dsn := url.URL{
		Scheme:   "file",
		Opaque:   opts.Filename,
		RawQuery: query.Encode(),
	}

	return dsn.String()
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// FindAccount implements Directory.
func (d *Database) FindAccount(ctx context.Context, name string) (*Account, error) {
	const query = `
		select "name", "password", "mailbox"
		from "accounts"
		where "name" = $1 ;
	`

	var account Account

	if err := sqlx.GetContext(ctx, d.db, &account, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return &account, nil
}

// Upsert inserts an account. When there already is an account with the same name, it will be
// replaced instead.
func (d *Database) Upsert(ctx context.Context, account *Account) error {
	const query = `
		insert or replace into "accounts" (
			"name" ,
			"password" ,
			"mailbox"
		) values (
			:name ,
			:password ,
			:mailbox
		) ;
	`

	_, err := sqlx.NamedExecContext(ctx, d.db, query, defaultMailbox(account))
	return err
}

// Delete removes an account by name.
func (d *Database) Delete(ctx context.Context, name string) error {
	const query = `
		delete from "accounts"
		where "name" = $1 ;
	`

	result, err := d.db.ExecContext(ctx, query, name)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// List returns all accounts ordered by name.
func (d *Database) List(ctx context.Context) ([]Account, error) {
	const query = `
		select "name", "password", "mailbox"
		from "accounts"
		order by "name" asc ;
	`

	var accounts []Account
	err := sqlx.SelectContext(ctx, d.db, &accounts, query)
	return accounts, err
}
