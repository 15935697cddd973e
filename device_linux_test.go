//go:build !rp2350

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
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/kelindar/event"
	"github.com/stretchr/testify/require"
)

func testDevice(t *testing.T, cfg LEDConfig) (*LinuxDevice, string) {
	t.Helper()
	dev, err := InitDevice(cfg, nil)
	require.NoError(t, err)
	dev.Root = t.TempDir()
	return dev, dev.Root
}

func readSysfs(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestLinuxDeviceSysfsLED(t *testing.T) {
	dev, root := testDevice(t, LEDConfig{Name: "ACT"})
	ledPath := filepath.Join(root, "leds", "ACT")
	require.NoError(t, os.MkdirAll(ledPath, 0755))

	require.NoError(t, dev.SetOutput(0))
	require.Equal(t, "none", readSysfs(t, filepath.Join(ledPath, "trigger")))
	require.NoError(t, dev.SetLevel(0, true))
	require.Equal(t, "1", readSysfs(t, filepath.Join(ledPath, "brightness")))
	require.NoError(t, dev.SetLevel(0, false))
	require.Equal(t, "0", readSysfs(t, filepath.Join(ledPath, "brightness")))
}

func TestLinuxDeviceSysfsGPIO(t *testing.T) {
	dev, root := testDevice(t, LEDConfig{Pin: 17})
	pinPath := filepath.Join(root, "gpio", "gpio17")
	// the kernel creates the pin directory on export
	require.NoError(t, os.MkdirAll(pinPath, 0755))

	require.NoError(t, dev.SetOutput(17))
	require.Equal(t, "out", readSysfs(t, filepath.Join(pinPath, "direction")))
	require.NoError(t, dev.SetLevel(17, true))
	require.Equal(t, "1", readSysfs(t, filepath.Join(pinPath, "value")))
}

func TestLinuxDeviceNoopFallback(t *testing.T) {
	dev, root := testDevice(t, LEDConfig{Pin: 5})
	require.NoError(t, dev.SetOutput(5))
	require.NoError(t, dev.SetLevel(5, true))
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestLinuxDeviceStation(t *testing.T) {
	tests := []struct {
		name  string
		addrs []net.Addr
		err   error
		want  JoinState
	}{
		{"ipv4", []net.Addr{
			&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
			&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
			&net.IPNet{IP: net.ParseIP("192.168.1.50"), Mask: net.CIDRMask(24, 32)},
		}, nil, Joined},
		{"loopback only", []net.Addr{
			&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
		}, nil, JoinFailed},
		{"no interface", nil, errors.New("no such network interface"), JoinFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, _ := testDevice(t, LEDConfig{})
			dev.addrs = func(string) ([]net.Addr, error) { return tt.addrs, tt.err }
			m := NewMonitor(dev, event.NewDispatcher(), nil, nil)
			out := m.Join(context.Background(), WiFiConfig{SSID: "host", JoinTimeout: 5})
			require.Equal(t, tt.want, out.State)
			if tt.want == Joined {
				require.Equal(t, "192.168.1.50", out.Addr.String())
			}
		})
	}
}

func TestLinuxDeviceListen(t *testing.T) {
	dev, _ := testDevice(t, LEDConfig{})
	lst, err := dev.Listen(0, 1)
	require.NoError(t, err)
	defer lst.Close()

	addr := lst.Addr().(*net.TCPAddr)
	require.NotZero(t, addr.Port)

	// SO_REUSEADDR: the port can be bound again while the closed
	// session is in TIME_WAIT
	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(addr.Port)))
	require.NoError(t, err)
	srv, err := lst.Accept()
	require.NoError(t, err)
	srv.Close()
	conn.Close()
	require.NoError(t, lst.Close())

	again, err := dev.Listen(uint16(addr.Port), 1)
	require.NoError(t, err)
	again.Close()
}
