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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bfix/ledsrv"
)

const sampleConfig = `
[led]
pin = 17

[wifi]
ssid = "lab"
password = "secret-password"
auth_threshold = "wpa2-psk"
join_timeout = 30

[server]
port = 4444
keepalive_idle = 10
continue_on_accept_error = true

[logging]
level = "debug"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledd.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, sampleConfig), nil)
	require.NoError(t, err)
	require.Equal(t, 17, cfg.LED.Pin)
	require.Equal(t, "lab", cfg.WiFi.SSID)
	require.Equal(t, ledsrv.AuthWPA2PSK, cfg.WiFi.AuthThreshold)
	require.Equal(t, 30, cfg.WiFi.JoinTimeout)
	require.EqualValues(t, 4444, cfg.Server.Port)
	require.True(t, cfg.Server.ContinueOnAcceptError)
	require.Equal(t, ledsrv.DefaultKeepAliveCount, cfg.Server.KeepAliveCount)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "none.toml"), nil)
	require.NoError(t, err)
	require.Equal(t, ledsrv.DefaultConfig(), cfg)
}

func TestLoadConfigInvalid(t *testing.T) {
	_, err := loadConfig(writeConfig(t, "[wifi]\nauth_threshold = \"wpa9\"\n"), nil)
	require.Error(t, err)
	_, err = loadConfig(writeConfig(t, "[server\n"), nil)
	require.ErrorContains(t, err, "TOML")
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	t.Setenv("LEDSRV_SERVER_PORT", "5555")
	t.Setenv("LEDSRV_LED_NAME", "ACT")

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--port", "6666", "--log-format", "json"}))
	cfg, err := loadConfig(path, cmd.Flags())
	require.NoError(t, err)
	require.EqualValues(t, 6666, cfg.Server.Port) // flag beats env
	require.Equal(t, "ACT", cfg.LED.Name)         // env beats file
	require.Equal(t, 17, cfg.LED.Pin)             // file beats default
	require.Equal(t, "json", cfg.Logging.Format)

	t.Setenv("LEDSRV_SERVER_PORT", "port")
	_, err = loadConfig(path, nil)
	require.ErrorContains(t, err, "LEDSRV_SERVER_PORT")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(ledsrv.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("shown", "port", 3333)
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"port":3333`)

	_, err = newLogger(ledsrv.LoggingConfig{Level: "loud"}, &buf)
	require.Error(t, err)
	_, err = newLogger(ledsrv.LoggingConfig{Level: "info", Format: "xml"}, &buf)
	require.Error(t, err)
}
