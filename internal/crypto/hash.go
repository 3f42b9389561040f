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

package crypto

import (
	"crypto/subtle"
	"strings"

	"github.com/lukasdietrich/argon2go"
	"github.com/spf13/viper"
)

// ErrPasswordMismatch is returned when a password does not match the hash.
var ErrPasswordMismatch = argon2go.ErrMismatch

const argon2Prefix = "$argon2"

func init() {
	viper.SetDefault("crypto.argon2.hashlength", 32)
	viper.SetDefault("crypto.argon2.saltlength", 16)
	viper.SetDefault("crypto.argon2.time", 2)
	viper.SetDefault("crypto.argon2.memory", 64*1024)
	viper.SetDefault("crypto.argon2.threads", 4)
}

// Hash applies the argon2id hashing algorithm to a password. The options used for hashing are
// determined using viper.
func Hash(pass []byte) (string, error) {
	opts := argon2go.Options{
		Time:       viper.GetUint32("crypto.argon2.time"),
		Memory:     viper.GetUint32("crypto.argon2.memory"),
		Threads:    uint8(viper.GetUint32("crypto.argon2.threads")),
		HashLength: viper.GetUint32("crypto.argon2.hashlength"),
		SaltLength: viper.GetUint32("crypto.argon2.saltlength"),
	}

	return argon2go.Hash(pass, &opts)
}

// IsHashed reports whether a stored password is an argon2 hash rather than plain text.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, argon2Prefix)
}

// Verify checks if a password matches the stored one. Stored passwords are either argon2 hashes
// or plain text, which is compared in constant time. If the password does not match
// ErrPasswordMismatch is returned. There may occur other, technical errors.
func Verify(stored string, pass []byte) error {
	if IsHashed(stored) {
		return argon2go.Verify(pass, stored)
	}

	if subtle.ConstantTimeCompare([]byte(stored), pass) != 1 {
		return ErrPasswordMismatch
	}

	return nil
}
