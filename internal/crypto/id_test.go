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
	"bytes"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Unix(1700000000, 42)
}

func TestGenerateIDFormat(t *testing.T) {
	idGen := randomIDGenerator{
		random: bytes.NewReader([]byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03, 0x04}),
		now:    fixedClock,
	}

	id, err := idGen.GenerateID()
	require.NoError(t, err)
	assert.Equal(t, "1700000000000000042.00000000000000000001.deadbeef01020304", id)
}

func TestGenerateIDSameInstant(t *testing.T) {
	// the clock never advances, which is what coarse clocks look like to callers.
	idGen := randomIDGenerator{
		random: bytes.NewReader(make([]byte, 16)),
		now:    fixedClock,
	}

	id1, err := idGen.GenerateID()
	require.NoError(t, err)

	id2, err := idGen.GenerateID()
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
}

func TestGenerateIDLexicalOrder(t *testing.T) {
	idGen := randomIDGenerator{
		random: bytes.NewReader(make([]byte, 8*25)),
		now:    fixedClock,
	}

	ids := make([]string, 25)
	for i := range ids {
		id, err := idGen.GenerateID()
		require.NoError(t, err)
		ids[i] = id
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	assert.Equal(t, ids, sorted)
	assert.True(t, ids[9] < ids[10], "%q < %q", ids[9], ids[10])
}

func TestGenerateIDUniqueConcurrent(t *testing.T) {
	const (
		workers = 8
		perWork = 200
	)

	var (
		idGen = NewIDGenerator()
		mu    sync.Mutex
		set   = make(map[string]bool)
		wg    sync.WaitGroup
	)

	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()

			for j := 0; j < perWork; j++ {
				id, err := idGen.GenerateID()
				assert.NoError(t, err)

				mu.Lock()
				assert.False(t, set[id])
				set[id] = true
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Len(t, set, workers*perWork)
}

func TestGenerateIDError(t *testing.T) {
	idGen := randomIDGenerator{random: strings.NewReader("short"), now: time.Now}

	id, err := idGen.GenerateID()
	assert.Error(t, err)
	assert.Zero(t, id)
}
