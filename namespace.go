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
	"log/slog"
	"net"
	"strings"

	"git.sr.ht/~moody/ninep"
)

var (
	errNoRoot = errors.New("no root directory")
	errNoFile = errors.New("no such file or directory")
	errNoDir  = errors.New("not a directory")
	errNoAbs  = errors.New("no absolute path")
	errExists = errors.New("file exists")
)

//----------------------------------------------------------------------

// Entry in the namespace (file or directory)
type Entry struct {
	ref      *ninep.Dir        // 9p reference
	children map[string]*Entry // list of children (for folders) or nil
	file     File              // file implementation or nil (for folders)
}

// IsDir returns true for folders
func (e *Entry) IsDir() bool {
	return e.children != nil
}

// Read the content of a file entry.
func (e *Entry) Read() ([]byte, error) {
	if e.file == nil {
		return nil, errNoFile
	}
	return e.file.Read()
}

//----------------------------------------------------------------------

// Namespace is a read-only 9P filesystem exporting node state.
type Namespace struct {
	ninep.NopFS                   // use default handlers where needed
	dict        map[uint64]*Entry // map Qid.Path to filesystem entry
	user, group string            // owner of all entries
	nextID      uint64            // next Qid.Path
}

// NewNamespace creates an empty namespace owned by user/group.
func NewNamespace(user, group string, perm uint32) *Namespace {
	ns := new(Namespace)
	ns.dict = make(map[uint64]*Entry)
	ns.user, ns.group = user, group
	e := ns.newEntry("/", perm, nil)
	ns.dict[e.ref.Path] = e
	return ns
}

// NewStateNamespace exports the LED level, the activity counters and the
// network address of a node. The LED counters (requested, applied)
// include status blinks; "blinks" lists them separately (status may be
// nil).
func NewStateNamespace(led *LED, stats *Stats, status *Status) (ns *Namespace, err error) {
	ns = NewNamespace("sys", "sys", 0555)
	if err = ns.NewFile("/led", 0444, StateFile(func() string {
		return LevelOf(led.Level()).String()
	})); err != nil {
		return
	}
	if err = ns.NewFile("/stats", 0444, CounterFile(func() []Counter {
		req, applied := led.Toggles()
		return []Counter{
			{"sessions", int64(stats.Sessions.Load())},
			{"active", stats.Active.Load()},
			{"commands", int64(stats.Commands.Load())},
			{"ignored", int64(stats.Ignored.Load())},
			{"requested", int64(req)},
			{"applied", int64(applied)},
			{"blinks", int64(status.Blinks())},
		}
	})); err != nil {
		return
	}
	if err = ns.NewDir("/net", 0555); err != nil {
		return
	}
	err = ns.NewFile("/net/addr", 0444, StateFile(func() string {
		if addr := stats.Addr(); addr.IsValid() {
			return addr.String()
		}
		return ""
	}))
	return
}

func (ns *Namespace) newEntry(name string, perm uint32, impl File) *Entry {
	e := new(Entry)
	kind := ninep.QTFile
	if impl == nil {
		kind = ninep.QTDir
		e.children = make(map[string]*Entry)
		perm |= ninep.DMDir
	} else {
		e.file = impl
	}
	e.ref = &ninep.Dir{
		Qid: ninep.Qid{
			Path: ns.nextID,
			Vers: 0,
			Type: byte(kind),
		},
		Name: name,
		Mode: perm,
		Uid:  ns.user,
		Gid:  ns.group,
		Muid: ns.user,
	}
	ns.nextID++
	return e
}

// Root directory of the namespace
func (ns *Namespace) Root() *Entry {
	return ns.dict[0]
}

// Get entry for an absolute path.
func (ns *Namespace) Get(path string) (*Entry, error) {
	if len(path) == 0 || path[0] != '/' {
		return nil, errNoAbs
	}
	curr := ns.Root()
	for _, label := range strings.Split(path[1:], "/") {
		if len(label) == 0 {
			continue
		}
		if curr.children == nil {
			return nil, errNoDir
		}
		next, ok := curr.children[label]
		if !ok {
			return nil, errNoFile
		}
		curr = next
	}
	return curr, nil
}

// NewFile adds a file at path.
func (ns *Namespace) NewFile(path string, perm uint32, impl File) error {
	return ns.add(path, perm, impl)
}

// NewDir adds a directory at path.
func (ns *Namespace) NewDir(path string, perm uint32) error {
	return ns.add(path, perm, nil)
}

func (ns *Namespace) add(path string, perm uint32, impl File) error {
	pos := strings.LastIndex(path, "/")
	if pos < 0 {
		return errNoAbs
	}
	parent, err := ns.Get(path[:pos+1])
	if err != nil {
		return err
	}
	name := path[pos+1:]
	if len(name) == 0 {
		return errNoFile
	}
	if parent.children == nil {
		return errNoDir
	}
	if _, ok := parent.children[name]; ok {
		return errExists
	}
	child := ns.newEntry(name, perm, impl)
	parent.children[name] = child
	ns.dict[child.ref.Path] = child
	return nil
}

// Serve 9P sessions on lst until ctx is cancelled.
func (ns *Namespace) Serve(ctx context.Context, lst net.Listener, log *slog.Logger) error {
	log = orDiscard(log).With("module", "9p")
	stop := context.AfterFunc(ctx, func() { lst.Close() })
	defer stop()
	log.Info("serving state namespace", "addr", lst.Addr().String())
	for {
		c, err := lst.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		log.Debug("9P session", "peer", c.RemoteAddr().String())
		srv := ninep.NewSrv(func() ninep.FS { return ns })
		go func() {
			defer c.Close()
			srv.ServeIO(c, c)
		}()
	}
}

//----------------------------------------------------------------------
// 9P handlers (Twrite, Tcreate, Tremove fall back to NopFS)
//----------------------------------------------------------------------

// Attach to the root directory
func (ns *Namespace) Attach(t *ninep.Tattach) {
	if e, ok := ns.dict[0]; ok {
		t.Respond(&e.ref.Qid)
	} else {
		t.Err(errNoRoot)
	}
}

// Walk to a child of cur
func (ns *Namespace) Walk(cur *ninep.Qid, next string) *ninep.Qid {
	e, ok := ns.dict[cur.Path]
	if !ok || e.children == nil {
		return nil
	}
	if c, ok := e.children[next]; ok {
		return &c.ref.Qid
	}
	return nil
}

// Open an entry
func (ns *Namespace) Open(t *ninep.Topen, q *ninep.Qid) {
	t.Respond(q, 8192)
}

// Read a file or directory
func (ns *Namespace) Read(t *ninep.Tread, q *ninep.Qid) {
	e, ok := ns.dict[q.Path]
	if !ok {
		t.Err(errNoFile)
		return
	}
	if e.children != nil {
		var kids []ninep.Dir
		for _, c := range e.children {
			kids = append(kids, *c.ref)
		}
		ninep.ReadDir(t, kids)
		return
	}
	data, err := e.Read()
	if err != nil {
		t.Err(err)
	} else {
		ninep.ReadBuf(t, data)
	}
}

// Stat an entry
func (ns *Namespace) Stat(t *ninep.Tstat, q *ninep.Qid) {
	e, ok := ns.dict[q.Path]
	if !ok {
		t.Err(errNoFile)
	} else {
		t.Respond(e.ref)
	}
}
