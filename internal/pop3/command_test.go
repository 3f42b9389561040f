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

package pop3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	var cmd command

	cmd.parse([]byte("STAT"))

	assert.Equal(t, "stat", cmd.name)
	assert.Nil(t, cmd.arg)
	assert.False(t, cmd.hasArg())

	cmd.parse([]byte("Pass  correct horse battery staple "))

	assert.Equal(t, "pass", cmd.name)
	assert.EqualValues(t, "correct horse battery staple", cmd.arg)
	assert.True(t, cmd.hasArg())
}

func TestPosition(t *testing.T) {
	tests := []struct {
		line     string
		expected int
		err      error
	}{
		{"RETR 1", 1, nil},
		{"RETR 42", 42, nil},
		{"RETR -3", -3, nil},
		{"RETR", -1, errInvalidSyntax},
		{"RETR one", -1, errInvalidSyntax},
		{"RETR 1 2", -1, errInvalidSyntax},
	}

	for _, test := range tests {
		var cmd command
		cmd.parse([]byte(test.line))

		actual, err := cmd.position()
		assert.Equal(t, test.err, err, test.line)
		assert.Equal(t, test.expected, actual, test.line)
	}
}

func TestSessionStateIn(t *testing.T) {
	assert.True(t, sUser.in(sInit, sUser))
	assert.False(t, sTransaction.in(sInit, sUser))
	assert.Equal(t, "transaction", sTransaction.String())
}
