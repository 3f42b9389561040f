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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/tinymail/internal/log"
)

const usageText = `
Usage:
  tinymail [OPTIONS] COMMAND

  A tiny smtp and pop3 server for local mailboxes.

Version:
  %s

Commands:
  start     Start the smtp and pop3 servers
  shell     Start an interactive administration shell
  hash      Read a password from stdin and print its argon2 hash

Options:
%s
`

var (
	// Version is set at compile-time.
	Version string
)

func main() {
	var configFilename string

	flags := pflag.NewFlagSet("tinymail", pflag.ContinueOnError)
	flags.StringVarP(&configFilename, "config", "c", "", "Path to a configuration file")
	flags.Usage = printUsage(flags)

	if err := flags.Parse(os.Args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}

		log.Fatal().Err(err).Msg("could not parse flags")
	}

	switch commandName := flags.Arg(1); commandName {
	case "start", "shell", "hash":
		setupConfig(configFilename)
		sink := setupLogger()
		defer sink.Close()

		printConfig()
		runCommand(commandName)
	default:
		flags.Usage()
	}
}

type command interface {
	run() error
}

func runCommand(commandName string) {
	var (
		cmd     command
		cleanup = func() {}
		err     error
	)

	switch commandName {
	case "start":
		cmd, cleanup, err = newStartCommand()
	case "shell":
		cmd, cleanup, err = newShellCommand()
	case "hash":
		cmd = &hashCommand{in: os.Stdin, out: os.Stdout}
	}

	if err != nil {
		log.Fatal().Err(err).Msg("could not initialize the application")
	}

	defer cleanup()

	if err := cmd.run(); err != nil {
		log.Error().Err(err).Msgf("%s failed", commandName)
	}
}

func printUsage(flags *pflag.FlagSet) func() {
	return func() {
		fmt.Fprintf(os.Stderr, usageText,
			Version,
			flags.FlagUsages())
	}
}

func setupLogger() io.Closer {
	opts := log.OptionsFromViper()

	sink, err := log.Setup(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("could not setup logging")
	}

	log.Info().
		Str("level", opts.Level).
		Msg("logger configured")

	return sink
}

func setupConfig(filename string) {
	viper.SetTypeByDefaultValue(true)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("TINYMAIL")

	if filename != "" {
		readConfig(filename)
	} else {
		log.Info().Msg("no config file provided. using environment only")
	}
}

func readConfig(filename string) {
	log.Info().
		Str("filename", filename).
		Msg("loading configuration")

	viper.SetConfigFile(filename)

	if err := viper.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			log.Warn().Err(err).Msg("configuration file missing")
		} else {
			log.Fatal().Err(err).Msg("could not load configuration")
		}
	}
}

func printConfig() {
	keys := viper.AllKeys()
	sort.Strings(keys)

	for _, key := range keys {
		v, _ := json.Marshal(viper.Get(key))
		log.Debug().RawJSON(key, v).Msg("config")
	}
}
