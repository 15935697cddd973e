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

// ledd runs a LED server node on a Linux host.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/bfix/ledsrv"
	"github.com/bfix/ledsrv/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ledd",
		Short:         "Toggle a LED over TCP",
		Long:          `ledd joins the network, then accepts one client at a time on the command port. The byte 0xAA toggles the LED and is answered with 0x06 and the new level.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(path, cmd.Flags())
			if err != nil {
				fmt.Fprintln(os.Stderr, "ledd:", err)
				return err
			}
			log, err := newLogger(cfg.Logging, os.Stderr)
			if err != nil {
				fmt.Fprintln(os.Stderr, "ledd:", err)
				return err
			}
			if err = run(cmd.Context(), cfg, log); err != nil {
				log.Error("ledd stopped", "err", err)
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringP("config", "c", "ledd.toml", "Path to configuration file")
	f.Uint16P("port", "p", ledsrv.DefaultPort, "Command server port")
	f.Uint16("ninep-port", ledsrv.DefaultNinePPort, "9P state export port (0 disables)")
	f.Int("pin", 0, "GPIO pin number of the LED")
	f.String("led-name", "", "sysfs LED name (overrides --pin)")
	f.String("interface", "", "Network interface to take the address from")
	f.String("metrics", "", "Prometheus listen address (e.g. :9100)")
	f.String("log-level", "info", "Logging level (debug, info, warn, error)")
	f.String("log-format", "text", "Logging format (text, json, journal)")
	f.Bool("continue-on-accept-error", false, "Keep accepting after an accept error")
	return cmd
}

func run(ctx context.Context, cfg ledsrv.Config, log *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev, err := ledsrv.InitDevice(cfg.LED, log)
	if err != nil {
		return err
	}
	var obs []ledsrv.Observer
	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		obs = append(obs, metrics.New(reg))
		go serveMetrics(ctx, cfg.Metrics.Listen, reg, log)
	}
	node := ledsrv.NewNode(dev, cfg, log, obs...)

	go func() {
		select {
		case <-node.Serving():
			if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
				log.Warn("sd_notify failed", "err", err)
			}
		case <-ctx.Done():
		}
	}()

	err = node.Run(ctx)
	if errors.Is(err, context.Canceled) {
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
		return nil
	}
	return err
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server failed", "err", err)
	}
}
