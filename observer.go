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
	"net/netip"
	"sync/atomic"
)

// Observer receives notifications about node activity (metrics, 9P stats).
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	SessionOpened(peer string)
	SessionClosed(peer string)
	CommandReceived(op byte)
	ToggleApplied(on bool)
	JoinResolved(out Outcome)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) SessionOpened(string) {}
func (NopObserver) SessionClosed(string) {}
func (NopObserver) CommandReceived(byte) {}
func (NopObserver) ToggleApplied(bool)   {}
func (NopObserver) JoinResolved(Outcome) {}

// Observers fans notifications out to a list of observers.
type Observers []Observer

func (o Observers) SessionOpened(peer string) {
	for _, x := range o {
		x.SessionOpened(peer)
	}
}

func (o Observers) SessionClosed(peer string) {
	for _, x := range o {
		x.SessionClosed(peer)
	}
}

func (o Observers) CommandReceived(op byte) {
	for _, x := range o {
		x.CommandReceived(op)
	}
}

func (o Observers) ToggleApplied(on bool) {
	for _, x := range o {
		x.ToggleApplied(on)
	}
}

func (o Observers) JoinResolved(out Outcome) {
	for _, x := range o {
		x.JoinResolved(out)
	}
}

//----------------------------------------------------------------------

// Stats is a lock-free Observer keeping counters (usable on the device).
type Stats struct {
	Sessions atomic.Uint64 // accepted sessions
	Active   atomic.Int64  // open sessions
	Commands atomic.Uint64 // command bytes received
	Ignored  atomic.Uint64 // unknown command bytes
	Toggles  atomic.Uint64 // pin flips applied (incl. status blinks)

	addr atomic.Value // netip.Addr of last successful join
}

func (s *Stats) SessionOpened(string) {
	s.Sessions.Add(1)
	s.Active.Add(1)
}

func (s *Stats) SessionClosed(string) {
	s.Active.Add(-1)
}

func (s *Stats) CommandReceived(op byte) {
	s.Commands.Add(1)
	if op != OpToggle {
		s.Ignored.Add(1)
	}
}

func (s *Stats) ToggleApplied(bool) {
	s.Toggles.Add(1)
}

func (s *Stats) JoinResolved(out Outcome) {
	if out.State == Joined {
		s.addr.Store(out.Addr)
	}
}

// Addr returns the address of the last successful join (if any).
func (s *Stats) Addr() netip.Addr {
	if a, ok := s.addr.Load().(netip.Addr); ok {
		return a
	}
	return netip.Addr{}
}
