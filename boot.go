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
	"time"

	"github.com/kelindar/event"
)

var errLEDInit = errors.New("LED initialization failed")

// Node wires the LED owner, the connection monitor and the command
// server of a device.
type Node struct {
	cfg Config
	dev Device
	log *slog.Logger

	Stats   *Stats
	LED     *LED
	Monitor *Monitor
	Server  *Server
	Status  *Status

	bus *event.Dispatcher
}

// NewNode creates a node for a device. Extra observers (e.g. metrics)
// receive all notifications in addition to the node's Stats.
func NewNode(dev Device, cfg Config, log *slog.Logger, obs ...Observer) *Node {
	log = orDiscard(log)
	stats := new(Stats)
	all := append(Observers{stats}, obs...)
	bus := event.NewDispatcher()
	led := NewLED(dev, cfg.LED.Pin, log, all)
	return &Node{
		cfg:     cfg,
		dev:     dev,
		log:     log,
		Stats:   stats,
		LED:     led,
		Monitor: NewMonitor(dev, bus, log, all),
		Server:  NewServer(cfg.Server, led, dev, log, all),
		Status:  NewStatus(led),
		bus:     bus,
	}
}

// Run boots the node: the LED owner is started, the configuration
// checked, the network joined and the command server started. Run
// returns when the command server stops, the LED owner fails or ctx is
// cancelled. The LED owner and the status blinker live until ctx is
// done, so boot failures keep being shown on the LED after Run returned.
func (n *Node) Run(ctx context.Context) (err error) {
	ledErr := n.startLED(ctx)
	defer func() {
		n.Status.Set(StatusOf(err), 0)
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	select {
	case <-n.LED.Ready():
	case err = <-ledErr:
		n.log.Error("failed to start LED owner", "err", err)
		return fmt.Errorf("%w: %w", errLEDInit, err)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err = n.cfg.Validate(); err != nil {
		n.log.Error("invalid configuration", "err", err)
		return
	}

	// join network (retried as configured)
	var out Outcome
	for i := range n.cfg.WiFi.Attempts() {
		if i > 0 {
			n.log.Warn("retrying join", "attempt", i+1, "delay", n.cfg.WiFi.Delay())
			select {
			case <-time.After(n.cfg.WiFi.Delay()):
			case <-runCtx.Done():
				return runCtx.Err()
			}
		}
		if out = n.Monitor.Join(runCtx, n.cfg.WiFi); out.State == Joined || runCtx.Err() != nil {
			break
		}
	}
	if out.State != Joined {
		return out.Err
	}

	// command server (and optional 9P state export)
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- n.Server.Serve(runCtx)
	}()
	if port := n.cfg.NineP.Port; port != 0 {
		go n.serveNineP(runCtx, port)
	}

	select {
	case err = <-srvErr:
	case err = <-ledErr:
	}
	if err == nil {
		err = runCtx.Err()
	}
	return
}

// Halt shows the status code of err on the LED until ctx is done. It is
// used instead of Run for failures detected before the node can boot
// (e.g. unusable build-time settings) and returns err.
func (n *Node) Halt(ctx context.Context, err error) error {
	ledErr := n.startLED(ctx)
	n.Status.Set(StatusOf(err), 0)
	select {
	case <-n.LED.Ready():
	case lerr := <-ledErr:
		n.log.Error("failed to start LED owner", "err", lerr)
	case <-ctx.Done():
	}
	return err
}

// startLED runs the LED owner and the status blinker on ctx.
func (n *Node) startLED(ctx context.Context) <-chan error {
	ledErr := make(chan error, 1)
	go func() {
		ledErr <- n.LED.Start(ctx)
	}()
	n.Status.Show(ctx)
	return ledErr
}

// Serving is closed once the command server listens.
func (n *Node) Serving() <-chan struct{} {
	return n.Server.Bound()
}

func (n *Node) serveNineP(ctx context.Context, port uint16) {
	ns, err := NewStateNamespace(n.LED, n.Stats, n.Status)
	if err != nil {
		n.log.Error("failed to build namespace", "err", err)
		return
	}
	lst, err := n.dev.Listen(port, backlog)
	if err != nil {
		n.log.Error("failed to listen for 9P", "port", port, "err", err)
		return
	}
	if err = ns.Serve(ctx, lst, n.log); err != nil {
		n.log.Error("9P server stopped", "err", err)
	}
}
