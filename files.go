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
	"fmt"
	"strings"
)

// File interface for the content of namespace entries: Read is called by
// the 9p protocol handler on every read request. The namespace is
// read-only; writes are rejected by the protocol handler.
type File interface {
	Read() ([]byte, error)
}

//----------------------------------------------------------------------

// StateFile renders a line of node state on every read. An empty string
// gives an empty file.
type StateFile func() string

// Read implementation: return current state (newline terminated).
func (f StateFile) Read() ([]byte, error) {
	s := f()
	if len(s) == 0 {
		return nil, nil
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return []byte(s), nil
}

//----------------------------------------------------------------------

// Counter is a named value in a CounterFile.
type Counter struct {
	Name  string
	Value int64
}

// CounterFile renders "<name> <value>" lines on every read.
type CounterFile func() []Counter

// Read implementation: return formatted counters.
func (f CounterFile) Read() ([]byte, error) {
	var buf strings.Builder
	for _, c := range f() {
		fmt.Fprintf(&buf, "%s %d\n", c.Name, c.Value)
	}
	return []byte(buf.String()), nil
}
