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


package smtp

import (
	"errors"
	"io"
	"io/ioutil"
)

var (
	// errMessageTooLarge is returned by readMessage, after an oversized body has been drained.
	errMessageTooLarge = errors.New("smtp: message exceeds size limit")
	// errDrainLimitReached is returned, if an oversized body does not end within another maxSize
	// bytes. The session cannot recover from that.
	errDrainLimitReached = errors.New("smtp: oversized message could not be drained")

	errBudgetExhausted = errors.New("smtp: byte budget exhausted")
)

// budgetReader reads from r until the budget is used up. Afterwards every read fails with
// errBudgetExhausted, even if r would have reported io.EOF.
type budgetReader struct {
	r      io.Reader
	budget int64
}

func (b *budgetReader) Read(p []byte) (int, error) {
	if b.budget <= 0 {
		return 0, errBudgetExhausted
	}

	if int64(len(p)) > b.budget {
		p = p[:b.budget]
	}

	n, err := b.r.Read(p)
	b.budget -= int64(n)
	return n, err
}

// readMessage reads a message body of at most maxSize bytes. A maxSize of zero or less disables
// the limit. If the body is larger, the rest of it is discarded so that the next command can be
// read from r, and errMessageTooLarge is returned.
func readMessage(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		return ioutil.ReadAll(r)
	}

	// one more byte than allowed to detect oversized bodies
	body, err := ioutil.ReadAll(&budgetReader{r: r, budget: maxSize + 1})
	if !errors.Is(err, errBudgetExhausted) {
		return body, err
	}

	if err := discardRemaining(r, maxSize); err != nil {
		return nil, err
	}

	return nil, errMessageTooLarge
}

// discardRemaining drops the rest of r, but not more than maxSize bytes.
func discardRemaining(r io.Reader, maxSize int64) error {
	_, err := io.Copy(ioutil.Discard, &budgetReader{r: r, budget: maxSize + 1})
	if errors.Is(err, errBudgetExhausted) {
		return errDrainLimitReached
	}

	return err
}
