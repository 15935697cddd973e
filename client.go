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
	"fmt"
	"io"
	"net"
	"time"
)

// ErrNoAck is returned if the device answered without acknowledge.
var ErrNoAck = errors.New("got no ACK from peer")

// Client of a LED server
type Client struct {
	conn net.Conn
}

// Dial connects to a LED server at addr ("host:port").
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

// Toggle the LED and return the new level reported by the device.
func (c *Client) Toggle(ctx context.Context) (Level, error) {
	c.deadline(ctx)
	defer c.conn.SetDeadline(time.Time{})

	if _, err := c.conn.Write([]byte{OpToggle}); err != nil {
		return LevelOff, fmt.Errorf("send toggle: %w", err)
	}
	var resp [2]byte
	if _, err := io.ReadFull(c.conn, resp[:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return LevelOff, fmt.Errorf("read response: %w", err)
	}
	if resp[0] != Ack {
		return LevelOff, ErrNoAck
	}
	return ParseLevel(resp[1]), nil
}

// Send raw command bytes without waiting for a response.
func (c *Client) Send(ctx context.Context, cmd ...byte) error {
	c.deadline(ctx)
	defer c.conn.SetDeadline(time.Time{})
	_, err := c.conn.Write(cmd)
	return err
}

// Close the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) deadline(ctx context.Context) {
	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(dl)
	}
}
