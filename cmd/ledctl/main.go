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

// ledctl toggles the LED of a ledsrv node.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bfix/ledsrv"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ledctl:", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "ledctl",
		Short:         "Control a LED server node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("addr", "a", "localhost:"+strconv.Itoa(ledsrv.DefaultPort), "Node address (host:port)")
	root.PersistentFlags().Duration("timeout", 5*time.Second, "Timeout per request")

	toggle := &cobra.Command{
		Use:   "toggle",
		Short: "Toggle the LED and print the new level",
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, _ := cmd.Flags().GetInt("count")
			return withClient(cmd, func(ctx func() (context.Context, context.CancelFunc), c *ledsrv.Client) error {
				for range count {
					rctx, cancel := ctx()
					level, err := c.Toggle(rctx)
					cancel()
					if err != nil {
						return err
					}
					fmt.Fprintln(out, level)
				}
				return nil
			})
		},
	}
	toggle.Flags().IntP("count", "n", 1, "Number of toggles")

	send := &cobra.Command{
		Use:   "send <byte>...",
		Short: "Send raw command bytes (e.g. 0xaa) without reading a response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf := make([]byte, 0, len(args))
			for _, arg := range args {
				b, err := strconv.ParseUint(arg, 0, 8)
				if err != nil {
					return fmt.Errorf("invalid byte %q: %w", arg, err)
				}
				buf = append(buf, byte(b))
			}
			return withClient(cmd, func(ctx func() (context.Context, context.CancelFunc), c *ledsrv.Client) error {
				rctx, cancel := ctx()
				defer cancel()
				return c.Send(rctx, buf...)
			})
		},
	}

	root.AddCommand(toggle, send)
	return root
}

// withClient connects to the node and runs fn; ctx returns a context
// bounded by the request timeout.
func withClient(cmd *cobra.Command, fn func(ctx func() (context.Context, context.CancelFunc), c *ledsrv.Client) error) error {
	addr, _ := cmd.Flags().GetString("addr")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(cmd.Context(), timeout)
	}
	dctx, cancel := ctx()
	c, err := ledsrv.Dial(dctx, addr)
	cancel()
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}
