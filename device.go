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
	"net"

	"github.com/kelindar/event"
)

// Device is a hardware abstraction
type Device interface {
	GPIO
	Station

	// Listen returns a TCP listener bound to the given port on all
	// interfaces with the given accept backlog.
	Listen(port uint16, backlog int) (net.Listener, error)
}

// GPIO drives the output pin of the LED.
type GPIO interface {
	// SetOutput configures pin as a digital output
	SetOutput(pin int) error

	// SetLevel sets pin high (on) or low
	SetLevel(pin int, on bool) error
}

// Station is the wireless side of a device. Neither call waits for the
// network: progress is published as LinkEvents on bus.
type Station interface {
	// Start brings up the radio and publishes LinkStart once it is ready.
	Start(bus *event.Dispatcher, cfg WiFiConfig) error

	// Connect runs the join attempt (called after LinkStart). It may block
	// until the attempt is over; the outcome is published on the bus.
	Connect() error
}

// Binder creates the listening socket of the command server.
type Binder interface {
	Listen(port uint16, backlog int) (net.Listener, error)
}
