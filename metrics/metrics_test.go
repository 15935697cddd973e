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

package metrics

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/bfix/ledsrv"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.JoinResolved(ledsrv.Outcome{State: ledsrv.JoinFailed, Err: errors.New("no AP")})
	c.JoinResolved(ledsrv.Outcome{State: ledsrv.Joined, Addr: netip.MustParseAddr("10.0.0.2")})
	c.SessionOpened("peer")
	c.CommandReceived(ledsrv.OpToggle)
	c.CommandReceived(0x01)
	c.CommandReceived(ledsrv.OpToggle)
	c.ToggleApplied(true)
	c.ToggleApplied(false)
	c.ToggleApplied(true)

	require.Equal(t, 1.0, testutil.ToFloat64(c.joins.WithLabelValues("failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.joins.WithLabelValues("joined")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.active))
	require.Equal(t, 2.0, testutil.ToFloat64(c.commands.WithLabelValues("toggle")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.commands.WithLabelValues("unknown")))
	require.Equal(t, 3.0, testutil.ToFloat64(c.toggles))
	require.Equal(t, 1.0, testutil.ToFloat64(c.level))

	c.SessionClosed("peer")
	require.Equal(t, 0.0, testutil.ToFloat64(c.active))
	require.Equal(t, 1.0, testutil.ToFloat64(c.sessions.WithLabelValues("closed")))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Equal(t, 9, n)
}
