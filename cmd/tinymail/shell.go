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
	"fmt"
	"sort"

	"github.com/abiosoft/ishell"

	"github.com/lukasdietrich/tinymail/internal/accounts"
	"github.com/lukasdietrich/tinymail/internal/crypto"
	"github.com/lukasdietrich/tinymail/internal/storage"
)

type shellCommand struct {
	Database  *accounts.Database
	Mailboxes *storage.Mailboxes
}

func (s *shellCommand) run() error {
	shell := ishell.New()
	s.setupShell(shell)
	shell.Run()

	return nil
}

func (s *shellCommand) setupShell(shell *ishell.Shell) {
	shell.AddCmd(composeShellCmd(
		ishell.Cmd{
			Name: "accounts",
			Help: "manage accounts",
		},
		[]*ishell.Cmd{
			{
				Name: "list",
				Help: "list all accounts",
				Func: wrapShellFunc(s.accountsList),
			},
			{
				Name: "add",
				Help: "add a new account, optionally with a shared mailbox",
				Func: wrapShellFunc(s.accountsAdd),
			},
			{
				Name: "passwd",
				Help: "change the password of an account",
				Func: wrapShellFunc(s.accountsPasswd),
			},
			{
				Name: "remove",
				Help: "remove an account. the mailbox is kept",
				Func: wrapShellFunc(s.accountsRemove),
			},
		},
	))

	shell.AddCmd(composeShellCmd(
		ishell.Cmd{
			Name: "mailbox",
			Help: "inspect mailboxes",
		},
		[]*ishell.Cmd{
			{
				Name: "list",
				Help: "list the entries of a mailbox",
				Func: wrapShellFunc(s.mailboxList),
			},
		},
	))
}

func (s *shellCommand) accountsList(ctx shellContext) error {
	if !ctx.checkArgs(0) {
		return errors.New("Usage: accounts list")
	}

	accountList, err := s.Database.List(ctx)
	if err != nil {
		return err
	}

	ctx.printf("\n(%d) Accounts:\n", len(accountList))
	for _, account := range accountList {
		ctx.printf("\t%s -> %s\n", account.Name, account.Mailbox)
	}
	ctx.printf("\n")

	return nil
}

func (s *shellCommand) accountsAdd(ctx shellContext) error {
	if !ctx.checkArgs(1) && !ctx.checkArgs(2) {
		return errors.New("Usage: accounts add [NAME] [MAILBOX]")
	}

	name := ctx.arg(0)

	if _, err := s.Database.FindAccount(ctx, name); !errors.Is(err, accounts.ErrNotFound) {
		if err != nil {
			return err
		}

		return fmt.Errorf("account %q already exists", name)
	}

	account := accounts.Account{Name: name}
	if ctx.checkArgs(2) {
		account.Mailbox = ctx.arg(1)
	}

	if err := s.setPassword(ctx, &account); err != nil {
		return err
	}

	ctx.printf("\n\tAccount %q added.\n\n", name)
	return nil
}

func (s *shellCommand) accountsPasswd(ctx shellContext) error {
	if !ctx.checkArgs(1) {
		return errors.New("Usage: accounts passwd [NAME]")
	}

	account, err := s.Database.FindAccount(ctx, ctx.arg(0))
	if err != nil {
		return err
	}

	if err := s.setPassword(ctx, account); err != nil {
		return err
	}

	ctx.printf("\n\tPassword of %q changed.\n\n", account.Name)
	return nil
}

func (s *shellCommand) setPassword(ctx shellContext, account *accounts.Account) error {
	pass, err := ctx.ask("Password", true)
	if err != nil {
		return err
	}

	if pass == "" {
		return errors.New("empty password")
	}

	hash, err := crypto.Hash([]byte(pass))
	if err != nil {
		return err
	}

	account.Password = hash
	return s.Database.Upsert(ctx, account)
}

func (s *shellCommand) accountsRemove(ctx shellContext) error {
	if !ctx.checkArgs(1) {
		return errors.New("Usage: accounts remove [NAME]")
	}

	name := ctx.arg(0)

	if err := s.Database.Delete(ctx, name); err != nil {
		return err
	}

	ctx.printf("\n\tAccount %q removed.\n\n", name)
	return nil
}

func (s *shellCommand) mailboxList(ctx shellContext) error {
	if !ctx.checkArgs(1) {
		return errors.New("Usage: mailbox list [MAILBOX]")
	}

	mailbox := ctx.arg(0)

	ids, err := s.Mailboxes.List(ctx, mailbox)
	if err != nil {
		return err
	}

	sort.Strings(ids)

	ctx.printf("\n(%d) Entries:\n", len(ids))
	for _, id := range ids {
		size, err := s.Mailboxes.Size(mailbox, id)
		if err != nil {
			return err
		}

		ctx.printf("\t%s\t%d\n", id, size)
	}
	ctx.printf("\n")

	return nil
}

type shellContext struct {
	context.Context

	args   []string
	printf func(format string, v ...interface{})
	ask    func(prompt string, hide bool) (string, error)
}

func (c *shellContext) checkArgs(n int) bool {
	return len(c.args) == n
}

func (c *shellContext) arg(i int) string {
	return c.args[i]
}

func composeShellCmd(cmd ishell.Cmd, children []*ishell.Cmd) *ishell.Cmd {
	for _, child := range children {
		cmd.AddCmd(child)
	}

	return &cmd
}

func wrapShellFunc(fn func(shellContext) error) func(*ishell.Context) {
	return func(shell *ishell.Context) {
		ctx := shellContext{
			Context: context.Background(),
			args:    shell.Args,
			printf:  shell.Printf,
			ask: func(prompt string, hide bool) (string, error) {
				shell.Printf("%s: ", prompt)

				if hide {
					return shell.ReadPasswordErr()
				}

				return shell.ReadLineErr()
			},
		}

		if err := fn(ctx); err != nil {
			shell.Err(err)
		}
	}
}
