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

package textproto

import (
	"bufio"
	"io"
)

const maxLineLength = 64 * 1024

// Reader is a line based reader.
type Reader interface {
	// ReadLine reads the next line without the trailing <CR> <LF>.
	ReadLine() ([]byte, error)

	// DotReader returns an io.Reader, which decodes a dot-encoded sequence of lines. Leading
	// dots are removed and every line is terminated with <CR> <LF>. EOF is returned after the
	// final dot line.
	DotReader() io.Reader

	// VerbatimDotReader is like DotReader, but keeps leading dots.
	VerbatimDotReader() io.Reader
}

type reader struct {
	buffer *bufio.Scanner
}

func newReader(r io.Reader) *reader {
	buffer := bufio.NewScanner(r)
	buffer.Buffer(make([]byte, 4096), maxLineLength)

	return &reader{
		buffer: buffer,
	}
}

func (r *reader) ReadLine() ([]byte, error) {
	if !r.buffer.Scan() {
		if err := r.buffer.Err(); err != nil {
			return nil, err
		}

		return nil, io.EOF
	}

	return r.buffer.Bytes(), nil
}

func (r *reader) DotReader() io.Reader {
	return &dotReader{r: r, unstuff: true}
}

func (r *reader) VerbatimDotReader() io.Reader {
	return &dotReader{r: r}
}
