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
	"github.com/google/wire"

	"github.com/lukasdietrich/tinymail/internal/delivery"
)

// WireSet contains providers for the smtp package.
var WireSet = wire.NewSet(
	OptionsFromViper,
	New,

	wire.Bind(new(Enqueuer), new(*delivery.Queue)),
)
