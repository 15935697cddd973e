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
	"log/slog"
	"net"
	"sync"
	"time"
)

var (
	ErrListen = errors.New("failed to listen")
	ErrAccept = errors.New("failed to accept incoming connection")
)

// single client: no queued second connection
const backlog = 1

// pause after a failed accept (if accept errors are not fatal)
const acceptBackoff = 100 * time.Millisecond

// Server accepts one client connection at a time and executes its
// command bytes.
type Server struct {
	cfg  ServerConfig
	led  Toggler
	bind Binder
	log  *slog.Logger
	obs  Observer

	mtx   sync.Mutex
	addr  net.Addr
	bound chan struct{}
}

// NewServer creates a command server on the listener returned by bind.
func NewServer(cfg ServerConfig, led Toggler, bind Binder, log *slog.Logger, obs Observer) *Server {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Server{
		cfg:   cfg,
		led:   led,
		bind:  bind,
		log:   orDiscard(log).With("module", "tcp"),
		obs:   obs,
		bound: make(chan struct{}),
	}
}

// Bound is closed once the server is listening.
func (s *Server) Bound() <-chan struct{} {
	return s.bound
}

// Addr returns the listening address (nil before Bound).
func (s *Server) Addr() net.Addr {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.addr
}

// Serve listens on the configured port and serves sessions serially until
// ctx is cancelled (returns nil), the listener can't be set up (ErrListen)
// or accept fails (ErrAccept, unless ContinueOnAcceptError is set).
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("starting TCP server...")
	lst, err := s.bind.Listen(s.cfg.Port, backlog)
	if err != nil {
		s.log.Error("failed to listen", "port", s.cfg.Port, "err", err)
		return fmt.Errorf("%w on port %d: %w", ErrListen, s.cfg.Port, err)
	}
	defer lst.Close()
	stop := context.AfterFunc(ctx, func() { lst.Close() })
	defer stop()

	s.mtx.Lock()
	s.addr = lst.Addr()
	s.mtx.Unlock()
	close(s.bound)
	s.log.Info("socket bound", "addr", lst.Addr().String())

	for {
		s.log.Debug("waiting for incoming connection")
		conn, err := lst.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error("failed to accept incoming connection", "err", err)
			if !s.cfg.ContinueOnAcceptError {
				return fmt.Errorf("%w: %w", ErrAccept, err)
			}
			time.Sleep(acceptBackoff)
			continue
		}
		s.session(ctx, conn)
	}
}

type keepAliver interface {
	SetKeepAliveConfig(net.KeepAliveConfig) error
}

type readCloser interface {
	CloseRead() error
}

// session runs the read-decode-dispatch loop of a connection. The
// connection is shut down and closed on every exit path.
func (s *Server) session(ctx context.Context, conn net.Conn) {
	peer := conn.RemoteAddr().String()
	log := s.log.With("peer", peer)
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		if rc, ok := conn.(readCloser); ok {
			_ = rc.CloseRead()
		}
		if err := conn.Close(); err != nil && ctx.Err() == nil {
			log.Debug("close", "err", err)
		}
		s.obs.SessionClosed(peer)
		log.Info("session closed")
	}()
	s.obs.SessionOpened(peer)

	if ka, ok := conn.(keepAliver); ok {
		if err := ka.SetKeepAliveConfig(s.cfg.KeepAlive()); err != nil {
			log.Warn("failed to set keep-alive", "err", err)
		}
	} else {
		log.Debug("keep-alive not supported")
	}
	log.Info("accepted incoming connection")

	var cmd [1]byte
	for {
		n, err := conn.Read(cmd[:])
		if n == 1 {
			s.dispatch(conn, cmd[0], log)
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			log.Warn("connection closed")
			return
		case ctx.Err() != nil:
			return
		default:
			log.Error("failed to receive data from client", "err", err)
			return
		}
	}
}

// dispatch executes a command byte. Only toggle is answered; other bytes
// are ignored.
func (s *Server) dispatch(w io.Writer, op byte, log *slog.Logger) {
	log.Debug("received command", "op", Opcode(op).String())
	s.obs.CommandReceived(op)
	switch op {
	case OpToggle:
		on, err := s.led.RequestToggle()
		if err != nil {
			log.Warn("toggle dropped", "err", err)
			return
		}
		s.send(w, Ack, log)
		s.send(w, byte(LevelOf(on)), log)
	}
}

// send writes a single byte; failures are logged only.
func (s *Server) send(w io.Writer, b byte, log *slog.Logger) {
	n, err := w.Write([]byte{b})
	if n != 1 {
		log.Error("failed to send byte to client", "byte", b, "n", n, "err", err)
	}
}
