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
	"log/slog"
	"sync/atomic"
)

var (
	ErrNotReady = errors.New("LED owner not running")
	errRunning  = errors.New("LED owner already running")
)

// Toggler accepts toggle requests; it returns the LED level after the
// requested toggle.
type Toggler interface {
	RequestToggle() (bool, error)
}

// LED is the sole writer of the LED pin. Other goroutines only request
// toggles; each request is one wake-up of the owner loop and exactly one
// pin flip. Requests are counted, so wake-ups that arrive while the owner
// is busy are never lost.
type LED struct {
	gpio GPIO
	pin  int
	log  *slog.Logger
	obs  Observer

	running atomic.Bool
	ready   atomic.Bool
	started chan struct{}
	wake    chan struct{}

	requested atomic.Uint64 // toggles requested
	applied   atomic.Uint64 // toggles written to the pin (owner only)
	level     atomic.Bool   // pin level (owner only)
}

// NewLED creates the owner of the LED on pin.
func NewLED(gpio GPIO, pin int, log *slog.Logger, obs Observer) *LED {
	if obs == nil {
		obs = NopObserver{}
	}
	return &LED{
		gpio:    gpio,
		pin:     pin,
		log:     orDiscard(log).With("module", "led"),
		obs:     obs,
		started: make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Start configures the pin as output (initially low) and serves toggle
// requests until ctx is cancelled. It fails if the pin can't be
// initialized; an owner can only be started once.
func (l *LED) Start(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errRunning
	}
	l.log.Info("initializing LED pin", "pin", l.pin)
	if err := l.gpio.SetOutput(l.pin); err != nil {
		return err
	}
	if err := l.gpio.SetLevel(l.pin, false); err != nil {
		return err
	}
	l.ready.Store(true)
	defer l.ready.Store(false)
	close(l.started)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
			target := l.requested.Load()
			for n := l.applied.Load(); n < target; n++ {
				on := !l.level.Load()
				l.level.Store(on)
				l.applied.Store(n + 1)
				l.log.Debug("setting new LED level", "on", on)
				if err := l.gpio.SetLevel(l.pin, on); err != nil {
					l.log.Error("failed to set LED level", "err", err)
				}
				l.obs.ToggleApplied(on)
			}
		}
	}
}

// Ready is closed once the owner serves toggle requests.
func (l *LED) Ready() <-chan struct{} {
	return l.started
}

// RequestToggle asks the owner to flip the LED and returns the new level
// without waiting for the pin write. Before the owner runs the request is
// dropped and ErrNotReady returned.
func (l *LED) RequestToggle() (bool, error) {
	if !l.ready.Load() {
		l.log.Error("received command to toggle LED while owner not running")
		return false, ErrNotReady
	}
	n := l.requested.Add(1)
	select {
	case l.wake <- struct{}{}:
	default:
		// owner has a pending wake-up and will read the new count
	}
	return n%2 == 1, nil
}

// Level returns the level last applied by the owner.
func (l *LED) Level() bool {
	return l.level.Load()
}

// Toggles returns the number of requested and applied toggles.
func (l *LED) Toggles() (requested, applied uint64) {
	return l.requested.Load(), l.applied.Load()
}

func orDiscard(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return log
}
