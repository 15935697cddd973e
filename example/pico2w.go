//go:build rp2350

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
	"context"
	"fmt"
	"log/slog"
	"machine"
	"strconv"
	"time"

	"github.com/bfix/ledsrv"
)

// build-time configuration (-ldflags "-X main.SSID=...")
var (
	SSID   string
	Passwd string
	Auth   string = "wpa2-psk"
	Host   string = "ledsrv"
	IP     string
	Port   string = "3333"
)

func main() {
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: slog.LevelDebug}))
	time.Sleep(2 * time.Second)

	// assemble configuration
	cfg := ledsrv.DefaultConfig()
	cfg.WiFi.SSID = SSID
	cfg.WiFi.Password = Passwd
	cfg.WiFi.Hostname = Host
	cfg.WiFi.RequestedIP = IP
	cfg.WiFi.JoinAttempts = 5
	cfg.NineP.Port = 0 // no 9P export on the device
	cfgErr := buildConfig(&cfg)

	// access device (the LED is on the WiFi chip: no status without it)
	dev, err := ledsrv.InitDevice(cfg.LED, logger)
	if err != nil {
		logger.Error("device initialization failed", "err", err)
		return
	}
	node := ledsrv.NewNode(dev, cfg, logger)
	defer node.Status.Trap(30 * time.Second)

	// join WiFi and serve LED commands; on failure the LED keeps
	// blinking the status code.
	ctx := context.Background()
	if cfgErr != nil {
		logger.Error("invalid configuration", "err", cfgErr)
		err = node.Halt(ctx, cfgErr)
	} else {
		err = node.Run(ctx)
	}
	if err != nil {
		logger.Error("node stopped", "err", err)
	}
	select {}

	// echo -ne '\xaa' | nc -q1 <host> 3333 | xxd
}

// buildConfig applies the build-time auth and port settings.
func buildConfig(cfg *ledsrv.Config) (err error) {
	if cfg.WiFi.AuthThreshold, err = ledsrv.ParseAuthMode(Auth); err != nil {
		return
	}
	port, err := strconv.ParseUint(Port, 10, 16)
	if err != nil {
		return fmt.Errorf("%w: port %q", ledsrv.ErrConfig, Port)
	}
	cfg.Server.Port = uint16(port)
	return cfg.Validate()
}
