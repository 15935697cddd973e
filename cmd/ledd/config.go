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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"

	"github.com/bfix/ledsrv"
)

const envPrefix = "LEDSRV_"

// loadConfig builds the configuration with precedence: flags > env vars >
// config file > defaults. A missing config file is not an error.
func loadConfig(path string, flags *pflag.FlagSet) (cfg ledsrv.Config, err error) {
	cfg = ledsrv.DefaultConfig()
	if path != "" {
		var data []byte
		if data, err = os.ReadFile(path); err == nil {
			if err = toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse TOML config: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return
		}
		err = nil
	}
	if err = applyEnv(&cfg); err != nil {
		return
	}
	if flags != nil {
		if err = applyFlags(&cfg, flags); err != nil {
			return
		}
	}
	err = cfg.Validate()
	return
}

// applyEnv overrides config values from LEDSRV_* variables.
func applyEnv(cfg *ledsrv.Config) (err error) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, bits int, set func(uint64)) {
		if err != nil {
			return
		}
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			var n uint64
			if n, err = strconv.ParseUint(v, 10, bits); err != nil {
				err = fmt.Errorf("%s%s: %w", envPrefix, key, err)
				return
			}
			set(n)
		}
	}
	str("WIFI_SSID", &cfg.WiFi.SSID)
	str("WIFI_PASSWORD", &cfg.WiFi.Password)
	str("WIFI_INTERFACE", &cfg.WiFi.Interface)
	str("LED_NAME", &cfg.LED.Name)
	str("METRICS_LISTEN", &cfg.Metrics.Listen)
	str("LOGGING_LEVEL", &cfg.Logging.Level)
	str("LOGGING_FORMAT", &cfg.Logging.Format)
	num("LED_PIN", 31, func(n uint64) { cfg.LED.Pin = int(n) })
	num("SERVER_PORT", 16, func(n uint64) { cfg.Server.Port = uint16(n) })
	num("NINEP_PORT", 16, func(n uint64) { cfg.NineP.Port = uint16(n) })
	return
}

// applyFlags overrides config values with explicitly set flags.
func applyFlags(cfg *ledsrv.Config, flags *pflag.FlagSet) (err error) {
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "port":
			cfg.Server.Port, err = flags.GetUint16("port")
		case "ninep-port":
			cfg.NineP.Port, err = flags.GetUint16("ninep-port")
		case "pin":
			cfg.LED.Pin, err = flags.GetInt("pin")
		case "led-name":
			cfg.LED.Name, err = flags.GetString("led-name")
		case "interface":
			cfg.WiFi.Interface, err = flags.GetString("interface")
		case "metrics":
			cfg.Metrics.Listen, err = flags.GetString("metrics")
		case "log-level":
			cfg.Logging.Level, err = flags.GetString("log-level")
		case "log-format":
			cfg.Logging.Format, err = flags.GetString("log-format")
		case "continue-on-accept-error":
			cfg.Server.ContinueOnAcceptError, err = flags.GetBool("continue-on-accept-error")
		}
	})
	return
}
