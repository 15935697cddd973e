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
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/kelindar/event"
)

// fakeGPIO records pin writes.
type fakeGPIO struct {
	mtx      sync.Mutex
	output   bool
	levels   []bool
	flipped  chan bool
	failInit error
}

func newFakeGPIO() *fakeGPIO {
	return &fakeGPIO{flipped: make(chan bool, 64)}
}

func (g *fakeGPIO) SetOutput(int) error {
	if g.failInit != nil {
		return g.failInit
	}
	g.mtx.Lock()
	defer g.mtx.Unlock()
	g.output = true
	return nil
}

func (g *fakeGPIO) SetLevel(_ int, on bool) error {
	g.mtx.Lock()
	g.levels = append(g.levels, on)
	n := len(g.levels)
	g.mtx.Unlock()
	if n > 1 { // first write is the initial low level
		g.flipped <- on
	}
	return nil
}

func (g *fakeGPIO) writes() []bool {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	return append([]bool(nil), g.levels...)
}

// fakeStation publishes a scripted sequence of events on Connect.
type fakeStation struct {
	bus        *event.Dispatcher
	noStart    bool          // never publish LinkStart
	startErr   error         // Start fails
	connectErr error         // Connect fails
	hold       chan struct{} // Connect blocks until closed (if set)
	events     []LinkEvent   // published on Connect

	mtx      sync.Mutex
	starts   int
	connects int
	active   int // running Connect calls
	overlap  int // max. concurrent Connect calls
}

func (s *fakeStation) Start(bus *event.Dispatcher, _ WiFiConfig) error {
	s.mtx.Lock()
	s.starts++
	s.mtx.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.bus = bus
	if !s.noStart {
		event.Publish(bus, LinkEvent{Kind: LinkStart})
	}
	return nil
}

func (s *fakeStation) Connect() error {
	s.mtx.Lock()
	s.connects++
	s.active++
	s.overlap = max(s.overlap, s.active)
	events := s.events
	s.mtx.Unlock()
	defer func() {
		s.mtx.Lock()
		s.active--
		s.mtx.Unlock()
	}()

	if s.hold != nil {
		<-s.hold
	}
	if s.connectErr != nil {
		return s.connectErr
	}
	for _, ev := range events {
		event.Publish(s.bus, ev)
	}
	return nil
}

func (s *fakeStation) startCount() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.starts
}

func (s *fakeStation) connectCount() (calls, overlap int) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.connects, s.overlap
}

func (s *fakeStation) setEvents(events []LinkEvent) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.events = events
}

func joinedStation(ip string) *fakeStation {
	return &fakeStation{events: []LinkEvent{
		{Kind: LinkConnected, SSID: "test"},
		{Kind: AddressAcquired, Addr: netip.MustParseAddr(ip)},
	}}
}

func failingStation(reason string) *fakeStation {
	return &fakeStation{events: []LinkEvent{
		{Kind: LinkDisconnected, SSID: "test", Reason: reason},
	}}
}

// loopback listens on 127.0.0.1 (ephemeral port for port 0).
type loopback struct{}

func (loopback) Listen(port uint16, _ int) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
}

// failBinder can't listen.
type failBinder struct{}

func (failBinder) Listen(uint16, int) (net.Listener, error) {
	return nil, errors.New("address in use")
}

// fakeDevice combines the fakes.
type fakeDevice struct {
	*fakeGPIO
	*fakeStation
	loopback
}
