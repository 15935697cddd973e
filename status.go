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
	"sync/atomic"
	"time"
)

// Node status codes (shown as blink count on the LED)
const (
	StatUNK     = iota // unknown status (init)
	StatOK             // processing active
	StatCONF           // invalid configuration
	StatLED            // LED pin initialization failed
	StatSRV            // command server stopped
	StatJOIN           // can't join network
	StatTIMEOUT        // timeout joining network
	StatLISTEN         // failed to create listener
	StatACCEPT         // failed to accept connection
	StatEXCP           // exception (panic) occured
)

// StatusOf maps a boot/serve error to a status code.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return StatOK
	case errors.Is(err, ErrJoinTimeout):
		return StatTIMEOUT
	case errors.Is(err, ErrJoinFailed):
		return StatJOIN
	case errors.Is(err, ErrListen):
		return StatLISTEN
	case errors.Is(err, ErrAccept):
		return StatACCEPT
	case errors.Is(err, errLEDInit):
		return StatLED
	case errors.Is(err, ErrConfig):
		return StatCONF
	}
	return StatSRV
}

// blink timing
type timing struct {
	pause, long, short, gap time.Duration
}

var defaultTiming = timing{
	pause: 5 * time.Second,
	long:  1000 * time.Millisecond,
	short: 150 * time.Millisecond,
	gap:   300 * time.Millisecond,
}

// Status blinks the current status code on the LED. Blinks are pairs of
// toggle requests to the LED owner, so the user-visible level is left as
// it was. Nothing is shown while the status is StatOK.
type Status struct {
	led    Toggler       // LED owner
	t      timing        // blink timing
	curr   atomic.Int32  // current state
	repeat atomic.Int32  // current repeat counter (0: forever)
	blinks atomic.Uint64 // toggle requests issued by the blinker
}

// NewStatus creates a status indicator on the LED.
func NewStatus(led Toggler) *Status {
	return newStatus(led, defaultTiming)
}

func newStatus(led Toggler, t timing) (state *Status) {
	state = new(Status)
	state.led = led
	state.t = t
	state.curr.Store(StatOK)
	return
}

// Show starts blinking the status until ctx is cancelled.
func (state *Status) Show(ctx context.Context) {
	t := state.t
	sleep := func(d time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}
	go func() {
		// blink LED <state>; <repeat> times
		for sleep(t.pause) {
			num := state.curr.Load()
			if num == StatOK {
				continue
			}
			for num > 5 {
				if !state.flash(t.long, sleep) || !sleep(t.gap) {
					return
				}
				num -= 5
			}
			for range num {
				if !state.flash(t.short, sleep) || !sleep(t.short) {
					return
				}
			}
			if state.repeat.Add(-1) == 0 {
				state.curr.Store(StatOK)
			}
		}
	}()
}

// flash toggles the LED twice with d in between.
func (state *Status) flash(d time.Duration, sleep func(time.Duration) bool) bool {
	state.toggle()
	ok := sleep(d)
	state.toggle()
	return ok
}

func (state *Status) toggle() {
	if _, err := state.led.RequestToggle(); err == nil {
		state.blinks.Add(1)
	}
}

// Blinks returns the number of LED toggles caused by the blinker. They
// are part of the LED owner's toggle counters.
func (state *Status) Blinks() uint64 {
	if state == nil {
		return 0
	}
	return state.blinks.Load()
}

// Set status code and number of repeats (0: forever).
func (state *Status) Set(flag, num int) {
	if state != nil {
		state.curr.Store(int32(flag))
		state.repeat.Store(int32(num))
	}
}

// Get status code and remaining repeats.
func (state *Status) Get() (int, int) {
	return int(state.curr.Load()), int(state.repeat.Load())
}

// Trap recovers a panic into StatEXCP; deferred by the firmware main.
func (state *Status) Trap(t time.Duration) {
	s, _ := state.Get()
	if r := recover(); r != nil {
		fmt.Printf("EXCP: %v\n", r)
		if s == StatOK {
			state.Set(StatEXCP, 0)
		}
	} else if s == StatOK {
		state.Set(StatUNK, 0)
	}
	time.Sleep(t)
}
