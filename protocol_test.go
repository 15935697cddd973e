//----------------------------------------------------------------------
// This file is part of ledsrv.
// Copyright (C) 2024-present Bernd Fix   >Y<
//
// ledsrv is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// ledsrv is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

package ledsrv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelEncoding(t *testing.T) {
	require.Equal(t, byte(0x01), byte(LevelOf(true)))
	require.Equal(t, byte(0x00), byte(LevelOf(false)))
	require.Equal(t, LevelOff, ParseLevel(0x00))
	for _, b := range []byte{0x01, 0x02, 0xff} {
		require.Equal(t, LevelOn, ParseLevel(b))
	}
	require.Equal(t, "on", LevelOn.String())
	require.Equal(t, "off", LevelOff.String())
}

func TestOpcodeString(t *testing.T) {
	require.Equal(t, "toggle", Opcode(OpToggle).String())
	require.Equal(t, "0x06", Opcode(Ack).String())
}
