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
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kelindar/event"
	"golang.org/x/sys/unix"
)

const sysfsClassPath = "/sys/class"

// LinuxDevice runs a node on a Linux host (SBC or test machine). The LED
// is driven through sysfs (/sys/class/leds/<name> if a name is set, the
// legacy /sys/class/gpio interface otherwise); without sysfs support pin
// writes are only logged. The host network stands in for the wireless
// station: joining succeeds once an interface has an IPv4 address.
type LinuxDevice struct {
	LEDName string // sysfs LED name (empty: GPIO by pin number)
	Root    string // sysfs class directory

	log   *slog.Logger
	noop  bool
	addrs func(iface string) ([]net.Addr, error)

	bus *event.Dispatcher
	cfg WiFiConfig
}

// InitDevice returns the host device.
func InitDevice(cfg LEDConfig, log *slog.Logger) (dev *LinuxDevice, err error) {
	dev = &LinuxDevice{
		LEDName: cfg.Name,
		Root:    sysfsClassPath,
		log:     orDiscard(log).With("module", "device"),
		addrs:   interfaceAddrs,
	}
	return
}

//----------------------------------------------------------------------
// GPIO
//----------------------------------------------------------------------

// SetOutput prepares the LED (manual trigger) or exports the GPIO pin as
// output. Missing sysfs support switches the device to no-op mode.
func (dev *LinuxDevice) SetOutput(pin int) error {
	if dev.LEDName != "" {
		ledPath := filepath.Join(dev.Root, "leds", dev.LEDName)
		if _, err := os.Stat(ledPath); errors.Is(err, fs.ErrNotExist) {
			return dev.fallback(fmt.Errorf("LED %q not found at %s", dev.LEDName, ledPath))
		}
		return writeSysfs(filepath.Join(ledPath, "trigger"), "none")
	}
	gpioPath := filepath.Join(dev.Root, "gpio")
	if _, err := os.Stat(gpioPath); errors.Is(err, fs.ErrNotExist) {
		return dev.fallback(fmt.Errorf("no GPIO support at %s", gpioPath))
	}
	pinPath := filepath.Join(gpioPath, "gpio"+strconv.Itoa(pin))
	if _, err := os.Stat(pinPath); errors.Is(err, fs.ErrNotExist) {
		if err = writeSysfs(filepath.Join(gpioPath, "export"), strconv.Itoa(pin)); err != nil {
			return err
		}
	}
	return writeSysfs(filepath.Join(pinPath, "direction"), "out")
}

// SetLevel writes the pin level.
func (dev *LinuxDevice) SetLevel(pin int, on bool) error {
	if dev.noop {
		dev.log.Debug("LED control not available (no-op)", "pin", pin, "on", on)
		return nil
	}
	value := "0"
	if on {
		value = "1"
	}
	if dev.LEDName != "" {
		return writeSysfs(filepath.Join(dev.Root, "leds", dev.LEDName, "brightness"), value)
	}
	return writeSysfs(filepath.Join(dev.Root, "gpio", "gpio"+strconv.Itoa(pin), "value"), value)
}

func (dev *LinuxDevice) fallback(reason error) error {
	dev.log.Warn("no LED support, using no-op pin", "reason", reason)
	dev.noop = true
	return nil
}

func writeSysfs(path, value string) error {
	if err := os.WriteFile(path, []byte(value), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

//----------------------------------------------------------------------
// Station
//----------------------------------------------------------------------

// Start publishes LinkStart: the host network is always up.
func (dev *LinuxDevice) Start(bus *event.Dispatcher, cfg WiFiConfig) error {
	dev.bus, dev.cfg = bus, cfg
	event.Publish(bus, LinkEvent{Kind: LinkStart})
	return nil
}

// Connect looks up the IPv4 address of the configured (or first usable)
// interface and publishes the join result.
func (dev *LinuxDevice) Connect() error {
	if dev.bus == nil {
		return errors.New("station not started")
	}
	addrs, err := dev.addrs(dev.cfg.Interface)
	if err != nil {
		event.Publish(dev.bus, LinkEvent{Kind: LinkDisconnected, SSID: dev.cfg.SSID, Reason: err.Error()})
		return nil
	}
	for _, a := range addrs {
		pfx, err := netip.ParsePrefix(a.String())
		if err != nil {
			continue
		}
		if ip := pfx.Addr(); ip.Is4() && !ip.IsLoopback() {
			event.Publish(dev.bus, LinkEvent{Kind: LinkConnected, SSID: dev.cfg.SSID})
			event.Publish(dev.bus, LinkEvent{Kind: AddressAcquired, Addr: ip})
			return nil
		}
	}
	event.Publish(dev.bus, LinkEvent{Kind: LinkDisconnected, SSID: dev.cfg.SSID, Reason: "no IPv4 address"})
	return nil
}

func interfaceAddrs(name string) ([]net.Addr, error) {
	if name == "" {
		return net.InterfaceAddrs()
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return iface.Addrs()
}

//----------------------------------------------------------------------
// Listener
//----------------------------------------------------------------------

// Listen returns a TCP listener on all interfaces with SO_REUSEADDR set
// and the given accept backlog.
func (dev *LinuxDevice) Listen(port uint16, backlog int) (net.Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	fail := func(op string, err error) (net.Listener, error) {
		unix.Close(fd)
		return nil, os.NewSyscallError(op, err)
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt", err)
	}
	if err = unix.Bind(fd, &unix.SockaddrInet4{Port: int(port)}); err != nil {
		return fail("bind", err)
	}
	if err = unix.Listen(fd, backlog); err != nil {
		return fail("listen", err)
	}
	f := os.NewFile(uintptr(fd), fmt.Sprintf("tcp:%d", port))
	defer f.Close()
	return net.FileListener(f)
}
