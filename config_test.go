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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.EqualValues(t, DefaultPort, cfg.Server.Port)
	require.Equal(t, net.KeepAliveConfig{
		Enable:   true,
		Idle:     5 * time.Second,
		Interval: 5 * time.Second,
		Count:    3,
	}, cfg.Server.KeepAlive())
	require.Equal(t, time.Duration(0), cfg.WiFi.Timeout())
	require.Equal(t, 1, cfg.WiFi.Attempts())
}

func TestKeepAliveZeroMeansDefault(t *testing.T) {
	ka := ServerConfig{KeepAliveIdle: 30}.KeepAlive()
	require.Equal(t, 30*time.Second, ka.Idle)
	require.Equal(t, DefaultKeepAliveInterval, ka.Interval)
	require.Equal(t, DefaultKeepAliveCount, ka.Count)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
		ok   bool
	}{
		{"defaults", func(*Config) {}, true},
		{"negative pin", func(c *Config) { c.LED.Pin = -1 }, false},
		{"negative timeout", func(c *Config) { c.WiFi.JoinTimeout = -3 }, false},
		{"port clash", func(c *Config) { c.NineP.Port = c.Server.Port }, false},
		{"wpa2 short password", func(c *Config) {
			c.WiFi.AuthThreshold = AuthWPA2PSK
			c.WiFi.Password = "short"
		}, false},
		{"wpa2 password", func(c *Config) {
			c.WiFi.AuthThreshold = AuthWPA2PSK
			c.WiFi.Password = "long enough"
		}, true},
		{"wep empty", func(c *Config) { c.WiFi.AuthThreshold = AuthWEP }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			err := cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrConfig)
			}
		})
	}
}

func TestAuthModeText(t *testing.T) {
	for m := AuthOpen; m <= AuthWAPIPSK; m++ {
		text, err := m.MarshalText()
		require.NoError(t, err)
		var got AuthMode
		require.NoError(t, got.UnmarshalText(text))
		require.Equal(t, m, got)
	}
	_, err := ParseAuthMode("wpa4")
	require.Error(t, err)
	m, err := ParseAuthMode(" WPA2-PSK ")
	require.NoError(t, err)
	require.Equal(t, AuthWPA2PSK, m)
}
