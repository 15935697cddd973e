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
	"net/netip"
)

// LinkKind of a wireless event
type LinkKind int

// Wireless event kinds
const (
	LinkStart        LinkKind = iota + 1 // station up, ready to join
	LinkConnected                        // associated with the AP
	LinkDisconnected                     // association failed or lost
	AddressAcquired                      // station has an IP address
)

// String returns the name of an event kind.
func (k LinkKind) String() string {
	switch k {
	case LinkStart:
		return "start"
	case LinkConnected:
		return "connected"
	case LinkDisconnected:
		return "disconnected"
	case AddressAcquired:
		return "got-ip"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// TypeLink identifies LinkEvent on the bus (kelindar/event keys
// subscriptions by type).
const TypeLink uint32 = 1

// LinkEvent is a state change of the station. All kinds share one bus
// type: a subscriber receives them in publish order.
type LinkEvent struct {
	Kind   LinkKind
	SSID   string
	Reason string     // LinkDisconnected
	Addr   netip.Addr // AddressAcquired
}

// Type returns the event type identifier for LinkEvent.
func (LinkEvent) Type() uint32 { return TypeLink }
