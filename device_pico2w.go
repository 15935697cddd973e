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

package ledsrv

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/kelindar/event"
	"github.com/soypat/cyw43439"
	"github.com/soypat/seqs/eth/dhcp"
	"github.com/soypat/seqs/stacks"
)

const mtu = cyw43439.MTU

// Raspberry Pico2 W  [RP2350]
// The on-board LED is wired to GPIO 0 of the CYW43439 WiFi chip.
type Pico2WDevice struct {
	ref   *cyw43439.Device  // reference to device
	stack *stacks.PortStack // TCP/IP stack (after join)
	log   *slog.Logger

	bus *event.Dispatcher
	cfg WiFiConfig
}

// InitDevice initializes the WiFi chip (needed for LED access).
func InitDevice(_ LEDConfig, log *slog.Logger) (*Pico2WDevice, error) {
	dev := new(Pico2WDevice)
	dev.log = orDiscard(log).With("module", "device")
	dev.ref = cyw43439.NewPicoWDevice()

	wificfg := cyw43439.DefaultWifiConfig()
	wificfg.Logger = dev.log
	dev.log.Info("initializing pico W device...")
	devInitTime := time.Now()
	if err := dev.ref.Init(wificfg); err != nil {
		return nil, err
	}
	dev.log.Info("cyw43439:Init", slog.Duration("duration", time.Since(devInitTime)))
	return dev, nil
}

//----------------------------------------------------------------------
// GPIO
//----------------------------------------------------------------------

// SetOutput checks the pin: CYW43439 GPIOs 0..2 are outputs.
func (dev *Pico2WDevice) SetOutput(pin int) error {
	if pin < 0 || pin > 2 {
		return fmt.Errorf("invalid CYW43439 GPIO %d", pin)
	}
	return nil
}

// SetLevel of the LED pin.
func (dev *Pico2WDevice) SetLevel(pin int, on bool) error {
	return dev.ref.GPIOSet(uint8(pin), on)
}

//----------------------------------------------------------------------
// Station
//----------------------------------------------------------------------

// Start publishes LinkStart: the chip is initialized by InitDevice.
func (dev *Pico2WDevice) Start(bus *event.Dispatcher, cfg WiFiConfig) error {
	if cfg.AuthThreshold > AuthWPA2PSK {
		return fmt.Errorf("auth threshold %s not supported", cfg.AuthThreshold)
	}
	dev.bus, dev.cfg = bus, cfg
	event.Publish(bus, LinkEvent{Kind: LinkStart})
	return nil
}

// Connect joins the network and runs DHCP. If DHCP fails, the requested
// IP is used as static address.
func (dev *Pico2WDevice) Connect() error {
	cfg := dev.cfg
	if len(cfg.Password) == 0 {
		dev.log.Info("joining open network:", slog.String("ssid", cfg.SSID))
	} else {
		dev.log.Info("joining WPA secure network", slog.String("ssid", cfg.SSID), slog.Int("passlen", len(cfg.Password)))
	}
	if err := dev.ref.JoinWPA2(cfg.SSID, cfg.Password); err != nil {
		event.Publish(dev.bus, LinkEvent{Kind: LinkDisconnected, SSID: cfg.SSID, Reason: err.Error()})
		return nil
	}
	mac, _ := dev.ref.HardwareAddr6()
	dev.log.Info("wifi join success!", slog.String("mac", net.HardwareAddr(mac[:]).String()))
	event.Publish(dev.bus, LinkEvent{Kind: LinkConnected, SSID: cfg.SSID})

	addr, err := dev.setupStack(mac)
	if err != nil {
		event.Publish(dev.bus, LinkEvent{Kind: LinkDisconnected, SSID: cfg.SSID, Reason: err.Error()})
		return nil
	}
	event.Publish(dev.bus, LinkEvent{Kind: AddressAcquired, Addr: addr})
	return nil
}

// setupStack creates the TCP/IP stack and acquires an address via DHCP
// (command server and 9P export share the TCP ports).
func (dev *Pico2WDevice) setupStack(mac [6]byte) (netip.Addr, error) {
	var reqAddr netip.Addr
	if dev.cfg.RequestedIP != "" {
		var err error
		if reqAddr, err = netip.ParseAddr(dev.cfg.RequestedIP); err != nil {
			return reqAddr, err
		}
	}
	if dev.stack == nil {
		dev.stack = stacks.NewPortStack(stacks.PortStackConfig{
			MAC:             mac,
			MaxOpenPortsUDP: 1, // DHCP client
			MaxOpenPortsTCP: 2,
			MTU:             mtu,
			Logger:          dev.log,
		})
		dev.ref.RecvEthHandle(dev.stack.RecvEth)

		// Begin asynchronous packet handling.
		go nicLoop(dev.ref, dev.stack)
	}

	// Perform DHCP request.
	dhcpClient := stacks.NewDHCPClient(dev.stack, dhcp.DefaultClientPort)
	err := dhcpClient.BeginRequest(stacks.DHCPRequestConfig{
		RequestedAddr: reqAddr,
		Xid:           uint32(time.Now().Nanosecond()),
		Hostname:      dev.cfg.Hostname,
	})
	if err != nil {
		return reqAddr, fmt.Errorf("DHCP request failed: %w", err)
	}
	for i := 0; dhcpClient.State() != dhcp.StateBound; i++ {
		dev.log.Info("DHCP ongoing...")
		time.Sleep(time.Second / 2)
		if i > 15 {
			if !reqAddr.IsValid() {
				return reqAddr, errors.New("no DHCP reply")
			}
			dev.log.Info("DHCP did not complete, assigning static IP", slog.String("ip", dev.cfg.RequestedIP))
			dev.stack.SetAddr(reqAddr)
			return reqAddr, nil
		}
	}
	ip := dhcpClient.Offer()
	dev.log.Info("DHCP complete",
		slog.Uint64("cidrbits", uint64(dhcpClient.CIDRBits())),
		slog.String("ourIP", ip.String()),
		slog.String("gateway", dhcpClient.Gateway().String()),
		slog.String("router", dhcpClient.Router().String()),
		slog.Duration("lease", dhcpClient.IPLeaseTime()),
	)
	dev.stack.SetAddr(ip) // It's important to set the IP address after DHCP completes.
	return ip, nil
}

//----------------------------------------------------------------------
// Listener
//----------------------------------------------------------------------

// Listen returns a TCP listener on the given port. The backlog limits
// the number of connections the stack keeps for the port.
func (dev *Pico2WDevice) Listen(port uint16, backlog int) (net.Listener, error) {
	if dev.stack == nil {
		return nil, errors.New("network not joined")
	}
	listener, err := stacks.NewTCPListener(dev.stack, stacks.TCPListenerConfig{
		MaxConnections: uint16(backlog),
		ConnTxBufSize:  512,
		ConnRxBufSize:  512,
	})
	if err != nil {
		return nil, err
	}
	if err = listener.StartListening(port); err != nil {
		return nil, err
	}
	return listener, nil
}

// nicLoop shuttles packets between the WiFi chip and the stack.
func nicLoop(dev *cyw43439.Device, stack *stacks.PortStack) {
	// Maximum number of packets to queue before sending them.
	const (
		queueSize                = 3
		maxRetriesBeforeDropping = 3
	)
	var queue [queueSize][mtu]byte
	var lenBuf [queueSize]int
	var retries [queueSize]int
	markSent := func(i int) {
		lenBuf[i] = 0
		retries[i] = 0
	}
	for {
		stallRx := true
		// Poll for incoming packets.
		gotPacket, err := dev.PollOne()
		if err != nil {
			println("poll error:", err.Error())
		}
		if gotPacket {
			stallRx = false
		}

		// Queue packets to be sent.
		for i := range queue {
			if retries[i] != 0 {
				continue // Packet currently queued for retransmission.
			}
			var err error
			lenBuf[i], err = stack.HandleEth(queue[i][:])
			if err != nil {
				println("stack error n(should be 0)=", lenBuf[i], "err=", err.Error())
				lenBuf[i] = 0
				continue
			}
			if lenBuf[i] == 0 {
				break
			}
		}
		if lenBuf == [queueSize]int{} {
			if stallRx {
				// Avoid busy waiting when both Rx and Tx stall.
				time.Sleep(51 * time.Millisecond)
			}
			continue
		}

		// Send queued packets.
		for i := range queue {
			n := lenBuf[i]
			if n <= 0 {
				continue
			}
			if err := dev.SendEth(queue[i][:n]); err != nil {
				// Queue packet for retransmission.
				retries[i]++
				if retries[i] > maxRetriesBeforeDropping {
					markSent(i)
					println("dropped outgoing packet:", err.Error())
				}
			} else {
				markSent(i)
			}
		}
	}
}
