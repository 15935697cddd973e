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

// Package metrics exports node activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bfix/ledsrv"
)

// Collector is a ledsrv.Observer feeding Prometheus metrics.
type Collector struct {
	sessions *prometheus.CounterVec
	active   prometheus.Gauge
	commands *prometheus.CounterVec
	toggles  prometheus.Counter
	level    prometheus.Gauge
	joins    *prometheus.CounterVec
}

var _ ledsrv.Observer = (*Collector)(nil)

// New registers the node metrics with reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledsrv_sessions_total",
			Help: "Client sessions by state (opened, closed)",
		}, []string{"state"}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Name: "ledsrv_sessions_active",
			Help: "Currently open client sessions",
		}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledsrv_commands_total",
			Help: "Command bytes received by command",
		}, []string{"command"}),
		toggles: f.NewCounter(prometheus.CounterOpts{
			Name: "ledsrv_toggles_total",
			Help: "LED pin flips applied (client toggles and status blinks)",
		}),
		level: f.NewGauge(prometheus.GaugeOpts{
			Name: "ledsrv_led_level",
			Help: "Current LED level (0 off, 1 on)",
		}),
		joins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledsrv_joins_total",
			Help: "Network join attempts by outcome",
		}, []string{"outcome"}),
	}
}

func (c *Collector) SessionOpened(string) {
	c.sessions.WithLabelValues("opened").Inc()
	c.active.Inc()
}

func (c *Collector) SessionClosed(string) {
	c.sessions.WithLabelValues("closed").Inc()
	c.active.Dec()
}

func (c *Collector) CommandReceived(op byte) {
	name := "unknown"
	if op == ledsrv.OpToggle {
		name = "toggle"
	}
	c.commands.WithLabelValues(name).Inc()
}

func (c *Collector) ToggleApplied(on bool) {
	c.toggles.Inc()
	if on {
		c.level.Set(1)
	} else {
		c.level.Set(0)
	}
}

func (c *Collector) JoinResolved(out ledsrv.Outcome) {
	c.joins.WithLabelValues(out.State.String()).Inc()
}
