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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	var cmd command

	cmd.parse([]byte("NOOP"))

	assert.EqualValues(t, "NOOP", cmd.head)
	assert.Nil(t, cmd.tail)
	assert.Equal(t, "noop", cmd.name())

	cmd.parse([]byte("  rcpt   TO:<foo@bar.com>  "))

	assert.EqualValues(t, "rcpt", cmd.head)
	assert.EqualValues(t, "TO:<foo@bar.com>", cmd.tail)
	assert.Equal(t, "rcpt", cmd.name())
}

func TestPath(t *testing.T) {
	tests := []struct {
		line     string
		name     string
		expected string
		err      error
	}{
		{"MAIL FROM:<foo@bar.com>", "FROM", "foo@bar.com", nil},
		{"MAIL from: <foo@bar.com> SIZE=100", "FROM", "foo@bar.com", nil},
		{"MAIL FROM:<>", "FROM", "", nil},
		{"MAIL FROM:foo@bar.com BODY=8BITMIME", "FROM", "foo@bar.com", nil},
		{"RCPT TO:<foo@bar.com>", "TO", "foo@bar.com", nil},
		{"MAIL", "FROM", "", errCommandSyntax},
		{"MAIL TO:<foo@bar.com>", "FROM", "", errCommandSyntax},
		{"MAIL FROM <foo@bar.com>", "FROM", "", errCommandSyntax},
		{"MAIL FROM:<foo@bar.com", "FROM", "", errCommandSyntax},
		{"MAIL FROM:", "FROM", "", errCommandSyntax},
	}

	for _, test := range tests {
		var cmd command
		cmd.parse([]byte(test.line))

		actual, err := cmd.path(test.name)
		assert.Equal(t, test.err, err, test.line)
		assert.Equal(t, test.expected, actual, test.line)
	}
}

func TestSessionStateIn(t *testing.T) {
	assert.True(t, sRcpt.in(sRcpt, sData))
	assert.False(t, sMail.in(sRcpt, sData))
	assert.False(t, sGreeted.in())
	assert.Equal(t, "data", sData.String())
}
