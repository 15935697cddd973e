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

import "fmt"

// Wire protocol: single command bytes from the client, ACK plus level
// byte from the device. Unknown command bytes are ignored.
const (
	OpToggle byte = 0xAA // toggle LED
	Ack      byte = 0x06 // acknowledge (followed by level)
)

// Level of the LED as reported on the wire
type Level byte

// LED levels
const (
	LevelOff Level = 0x00
	LevelOn  Level = 0x01
)

// LevelOf returns the wire level for a logical state.
func LevelOf(on bool) Level {
	if on {
		return LevelOn
	}
	return LevelOff
}

// ParseLevel decodes a level byte: zero is off, anything else on.
func ParseLevel(b byte) Level {
	return LevelOf(b != 0)
}

// On returns true if the level is "on".
func (l Level) On() bool {
	return l != LevelOff
}

// String returns "on" or "off".
func (l Level) String() string {
	if l.On() {
		return "on"
	}
	return "off"
}

// Opcode is a command byte (for logging).
type Opcode byte

// String returns the command name or its hex value.
func (op Opcode) String() string {
	if byte(op) == OpToggle {
		return "toggle"
	}
	return fmt.Sprintf("0x%02X", byte(op))
}
