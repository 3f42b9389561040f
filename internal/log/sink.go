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

package log

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

func init() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.filename", "")
}

// Options configure the global logger.
type Options struct {
	// Level is a zerolog level name like "debug" or "info".
	Level string
	// Filename is the log sink. Lines are appended to the file. Empty means stderr.
	Filename string
}

// OptionsFromViper reads the logging options from viper.
//
// `log.level` is the minimum level of events written.
// `log.filename` is the file events are appended to.
func OptionsFromViper() Options {
	return Options{
		Level:    viper.GetString("log.level"),
		Filename: viper.GetString("log.filename"),
	}
}

// Setup replaces the global Logger according to opts. All events share a single sink, which
// is serialized using a mutex, so that concurrent sessions never interleave partial lines.
// The returned closer releases the sink and must be called on shutdown.
func Setup(opts Options) (io.Closer, error) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("unknown log level %q: %w", opts.Level, err)
	}

	sink, err := openSink(opts.Filename)
	if err != nil {
		return nil, err
	}

	Logger = zerolog.New(zerolog.SyncWriter(sink)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return sink, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}

func openSink(filename string) (io.WriteCloser, error) {
	if filename == "" {
		return nopCloser{os.Stderr}, nil
	}

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("could not open log file: %w", err)
	}

	return f, nil
}
