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
	"strings"
	"time"
)

// Defaults (used when a config value is zero)
const (
	DefaultPort              = 3333
	DefaultKeepAliveIdle     = 5 * time.Second
	DefaultKeepAliveInterval = 5 * time.Second
	DefaultKeepAliveCount    = 3
	DefaultJoinAttempts      = 1
	DefaultRetryDelay        = 5 * time.Second
	DefaultNinePPort         = 564
)

// ErrConfig is wrapped by all configuration errors.
var ErrConfig = errors.New("invalid configuration")

// Config of a LED server node. Durations are given in seconds.
type Config struct {
	LED     LEDConfig     `toml:"led"`
	WiFi    WiFiConfig    `toml:"wifi"`
	Server  ServerConfig  `toml:"server"`
	NineP   NinePConfig   `toml:"ninep"`
	Metrics MetricsConfig `toml:"metrics"`
	Logging LoggingConfig `toml:"logging"`
}

// LEDConfig selects the output pin.
type LEDConfig struct {
	Pin  int    `toml:"pin"`
	Name string `toml:"name"` // sysfs LED name (Linux only, overrides Pin)
}

// WiFiConfig holds the join parameters.
type WiFiConfig struct {
	SSID          string   `toml:"ssid"`
	Password      string   `toml:"password"`
	AuthThreshold AuthMode `toml:"auth_threshold"`
	Hostname      string   `toml:"hostname"`
	RequestedIP   string   `toml:"requested_ip"` // static fallback if DHCP fails
	Interface     string   `toml:"interface"`    // host interface (Linux only)
	JoinTimeout   int      `toml:"join_timeout"` // 0: wait indefinitely
	JoinAttempts  int      `toml:"join_attempts"`
	RetryDelay    int      `toml:"retry_delay"`
}

// Timeout of a single join attempt (0 if unbounded)
func (c WiFiConfig) Timeout() time.Duration {
	return time.Duration(c.JoinTimeout) * time.Second
}

// Attempts returns the number of join attempts.
func (c WiFiConfig) Attempts() int {
	if c.JoinAttempts <= 0 {
		return DefaultJoinAttempts
	}
	return c.JoinAttempts
}

// Delay between join attempts.
func (c WiFiConfig) Delay() time.Duration {
	if c.RetryDelay <= 0 {
		return DefaultRetryDelay
	}
	return time.Duration(c.RetryDelay) * time.Second
}

// ServerConfig of the command server.
type ServerConfig struct {
	Port                  uint16 `toml:"port"`
	KeepAliveIdle         int    `toml:"keepalive_idle"`
	KeepAliveInterval     int    `toml:"keepalive_interval"`
	KeepAliveCount        int    `toml:"keepalive_count"`
	ContinueOnAcceptError bool   `toml:"continue_on_accept_error"`
}

// KeepAlive returns the keep-alive parameters applied to accepted sockets.
func (c ServerConfig) KeepAlive() net.KeepAliveConfig {
	ka := net.KeepAliveConfig{
		Enable:   true,
		Idle:     DefaultKeepAliveIdle,
		Interval: DefaultKeepAliveInterval,
		Count:    DefaultKeepAliveCount,
	}
	if c.KeepAliveIdle > 0 {
		ka.Idle = time.Duration(c.KeepAliveIdle) * time.Second
	}
	if c.KeepAliveInterval > 0 {
		ka.Interval = time.Duration(c.KeepAliveInterval) * time.Second
	}
	if c.KeepAliveCount > 0 {
		ka.Count = c.KeepAliveCount
	}
	return ka
}

// NinePConfig of the read-only 9P state export (port 0 disables it).
type NinePConfig struct {
	Port uint16 `toml:"port"`
}

// MetricsConfig of the Prometheus endpoint (host only, empty disables it).
type MetricsConfig struct {
	Listen string `toml:"listen"`
}

// LoggingConfig selects level and handler ("text", "json" or "journal").
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns a configuration with all defaults filled in.
func DefaultConfig() Config {
	return Config{
		WiFi: WiFiConfig{
			AuthThreshold: AuthOpen,
			Hostname:      "ledsrv",
			JoinAttempts:  DefaultJoinAttempts,
			RetryDelay:    int(DefaultRetryDelay / time.Second),
		},
		Server: ServerConfig{
			Port:              DefaultPort,
			KeepAliveIdle:     int(DefaultKeepAliveIdle / time.Second),
			KeepAliveInterval: int(DefaultKeepAliveInterval / time.Second),
			KeepAliveCount:    DefaultKeepAliveCount,
		},
		NineP: NinePConfig{
			Port: DefaultNinePPort,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.LED.Pin < 0 {
		return fmt.Errorf("%w: negative LED pin %d", ErrConfig, c.LED.Pin)
	}
	if c.WiFi.JoinTimeout < 0 {
		return fmt.Errorf("%w: negative join timeout", ErrConfig)
	}
	if c.NineP.Port != 0 && c.NineP.Port == c.Server.Port {
		return fmt.Errorf("%w: 9P and command server share port %d", ErrConfig, c.Server.Port)
	}
	return c.WiFi.AuthThreshold.Check(c.WiFi.Password)
}

//----------------------------------------------------------------------

// AuthMode is the weakest authentication accepted when joining.
type AuthMode int

// Authentication thresholds
const (
	AuthOpen AuthMode = iota
	AuthWEP
	AuthWPAPSK
	AuthWPA2PSK
	AuthWPAWPA2PSK
	AuthWPA3PSK
	AuthWPA2WPA3PSK
	AuthWAPIPSK
)

var authNames = []string{
	"open", "wep", "wpa-psk", "wpa2-psk", "wpa-wpa2-psk",
	"wpa3-psk", "wpa2-wpa3-psk", "wapi-psk",
}

// String returns the human-readable name of an auth mode.
func (m AuthMode) String() string {
	if m < 0 || int(m) >= len(authNames) {
		return fmt.Sprintf("auth(%d)", int(m))
	}
	return authNames[m]
}

// ParseAuthMode converts a name to an auth mode.
func ParseAuthMode(s string) (AuthMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range authNames {
		if name == s {
			return AuthMode(i), nil
		}
	}
	return AuthOpen, fmt.Errorf("%w: unknown auth mode %q", ErrConfig, s)
}

// UnmarshalText decodes an auth mode name (TOML, flags).
func (m *AuthMode) UnmarshalText(text []byte) (err error) {
	*m, err = ParseAuthMode(string(text))
	return
}

// MarshalText encodes an auth mode name.
func (m AuthMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Check if a password is usable for the auth mode.
func (m AuthMode) Check(passwd string) error {
	switch {
	case m == AuthOpen:
		return nil
	case m == AuthWEP:
		if len(passwd) == 0 {
			return fmt.Errorf("%w: %s requires a password", ErrConfig, m)
		}
	case len(passwd) < 8 || len(passwd) > 64:
		return fmt.Errorf("%w: %s requires a password of 8..64 characters", ErrConfig, m)
	}
	return nil
}
