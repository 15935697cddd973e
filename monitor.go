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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/kelindar/event"
)

var (
	ErrJoinFailed  = errors.New("failed to join network")
	ErrJoinTimeout = errors.New("timeout joining network")
)

// JoinState of a join attempt
type JoinState int

// Join states
const (
	JoinPending JoinState = iota
	Joined
	JoinFailed
)

// String returns the name of a join state.
func (s JoinState) String() string {
	switch s {
	case JoinPending:
		return "pending"
	case Joined:
		return "joined"
	case JoinFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Outcome of a join attempt: Joined with an address or JoinFailed with
// the reason.
type Outcome struct {
	State JoinState
	Addr  netip.Addr
	Err   error
}

// Monitor translates the wireless events of a station into the outcome
// of a join attempt.
type Monitor struct {
	sta Station
	bus *event.Dispatcher
	log *slog.Logger
	obs Observer

	mtx     sync.Mutex
	connect chan struct{} // closed when the last Connect call returned
}

// NewMonitor creates a connection monitor for a station publishing its
// events on bus.
func NewMonitor(sta Station, bus *event.Dispatcher, log *slog.Logger, obs Observer) *Monitor {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Monitor{
		sta: sta,
		bus: bus,
		log: orDiscard(log).With("module", "wifi"),
		obs: obs,
	}
}

// Join starts the station and blocks until the station acquired an
// address (Joined) or lost the link (JoinFailed). The wait is bounded by
// cfg.JoinTimeout (if set) and ctx. Exactly one outcome is returned per
// call: the first terminal event in publish order wins, later events are
// ignored. A Connect still running from a previous attempt is waited for
// before the station is started again.
func (m *Monitor) Join(ctx context.Context, cfg WiFiConfig) (out Outcome) {
	defer func() {
		if out.State == Joined {
			m.log.Info("connected to AP", "ssid", cfg.SSID, "ip", out.Addr.String())
		} else {
			m.log.Error("failed to connect to AP", "ssid", cfg.SSID, "err", out.Err)
		}
		m.obs.JoinResolved(out)
	}()

	var timeout <-chan time.Time
	if d := cfg.Timeout(); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}
	if prev := m.inflight(); prev != nil {
		m.log.Warn("waiting for previous join attempt")
		select {
		case <-prev:
		case <-timeout:
			return Outcome{State: JoinFailed, Err: ErrJoinTimeout}
		case <-ctx.Done():
			return Outcome{State: JoinFailed, Err: ctx.Err()}
		}
	}

	done := make(chan Outcome, 1)
	started := make(chan struct{}, 1)
	var once sync.Once
	resolve := func(out Outcome) {
		once.Do(func() { done <- out })
	}
	fail := func(err error) {
		resolve(Outcome{State: JoinFailed, Err: err})
	}

	unsub := event.Subscribe(m.bus, func(ev LinkEvent) {
		switch ev.Kind {
		case LinkStart:
			select {
			case started <- struct{}{}:
			default:
			}
		case LinkConnected:
			m.log.Info("connected to WiFi", "ssid", ev.SSID)
		case LinkDisconnected:
			m.log.Error("lost connection to AP", "ssid", ev.SSID, "reason", ev.Reason)
			fail(fmt.Errorf("%w: %s", ErrJoinFailed, ev.Reason))
		case AddressAcquired:
			m.log.Info("got IP", "ip", ev.Addr.String())
			resolve(Outcome{State: Joined, Addr: ev.Addr})
		}
	})
	defer unsub()

	m.log.Info("starting WiFi", "ssid", cfg.SSID, "auth", cfg.AuthThreshold.String())
	if err := m.sta.Start(m.bus, cfg); err != nil {
		fail(fmt.Errorf("%w: %w", ErrJoinFailed, err))
	}

	connecting := false
	for {
		select {
		case <-started:
			if connecting {
				continue
			}
			connecting = true
			m.log.Info("connecting to WiFi...", "ssid", cfg.SSID)
			m.startConnect(fail)
		case out = <-done:
			return
		case <-timeout:
			return Outcome{State: JoinFailed, Err: ErrJoinTimeout}
		case <-ctx.Done():
			return Outcome{State: JoinFailed, Err: ctx.Err()}
		}
	}
}

// startConnect runs the station's Connect outside the event dispatcher
// (it blocks for the whole join on some devices).
func (m *Monitor) startConnect(fail func(error)) {
	ch := make(chan struct{})
	m.mtx.Lock()
	m.connect = ch
	m.mtx.Unlock()
	go func() {
		defer close(ch)
		if err := m.sta.Connect(); err != nil {
			fail(fmt.Errorf("%w: %w", ErrJoinFailed, err))
		}
	}()
}

// inflight returns the done channel of a running Connect (or nil).
func (m *Monitor) inflight() <-chan struct{} {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.connect == nil {
		return nil
	}
	select {
	case <-m.connect:
		m.connect = nil
		return nil
	default:
		return m.connect
	}
}
