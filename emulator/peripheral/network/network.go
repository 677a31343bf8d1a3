//go:build network
// +build network

/*
Copyright (C) 2019-2020 Andreas T Jonsson

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package network

import (
	"log"
	"math"

	"github.com/andreas-jonsson/virtualmac/emulator/memory"
	"github.com/andreas-jonsson/virtualmac/emulator/processor"
	"github.com/google/gopacket/pcap"
)

// Register file, one register per 16-byte stride.
const (
	regTxData   = 0 // w: next transmit byte
	regTxCtrl   = 1 // w: nonzero sends the queued frame
	regRxStatus = 2 // r: pending frame length, 0 if none
	regRxData   = 3 // r: next receive byte
	regIntClr   = 4 // w: drop the receive interrupt line
)

// Device bridges the guest's Ethernet cell to a host interface through
// libpcap. Frames cross unmodified; the guest runs its own stack.
type Device struct {
	Base  memory.Pointer
	SrcID int

	netInterface *pcap.Interface
	handle       *pcap.Handle

	irq processor.IrqID
	pic processor.InterruptController

	txBuf []byte
	rxBuf []byte
	rxPos int
}

func (m *Device) Install(p processor.Processor) error {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return err
	}

	log.Print("Detected network devices:")
	for i := range devices {
		dev := &devices[i]
		log.Printf(" |- %s (%s)", dev.Description, dev.Name)

		var candidate *pcap.Interface
		for _, addr := range dev.Addresses {
			if addr.IP.IsUnspecified() || addr.IP.IsLoopback() {
				candidate = nil
				break
			} else {
				log.Printf(" |  |- %v", addr.IP)
				candidate = dev
			}
		}

		if candidate != nil && m.netInterface == nil {
			m.netInterface = candidate
		}
	}

	if m.netInterface == nil {
		log.Print("No network device selected!")
		return nil
	}

	log.Print("Selected network device: ", m.netInterface.Description)
	m.handle, err = pcap.OpenLive(m.netInterface.Name, int32(math.MaxUint16), true, pcap.BlockForever)
	if err != nil {
		return err
	}

	if pic := p.GetInterruptController(); pic != nil {
		if m.irq, err = pic.RegisterDeviceInterrupt(m.SrcID); err != nil {
			return err
		}
		m.pic = pic
	}

	if m.Base == 0 {
		m.Base = 0xF3100000
	}
	return p.RegisterMMIO(m.Base, 0x1000, m)
}

func (m *Device) Name() string {
	return "Ethernet Adapter"
}

func (m *Device) Reset() {
	m.txBuf = m.txBuf[:0]
	m.rxBuf = nil
	m.rxPos = 0
}

func (m *Device) Close() error {
	if m.handle != nil {
		m.handle.Close()
	}
	return nil
}

func (m *Device) Step(int) error {
	if m.handle == nil || m.rxBuf != nil {
		return nil
	}
	data, _, err := m.handle.ReadPacketData()
	if err != nil || len(data) == 0 {
		return nil
	}
	m.rxBuf = data
	m.rxPos = 0
	if m.pic != nil {
		m.pic.SetLine(m.irq, true)
	}
	return nil
}

func (m *Device) Read(offset memory.Pointer, width int) uint32 {
	switch int(offset >> 4 & 15) {
	case regRxStatus:
		return uint32(len(m.rxBuf) - m.rxPos)
	case regRxData:
		if m.rxPos < len(m.rxBuf) {
			v := m.rxBuf[m.rxPos]
			m.rxPos++
			if m.rxPos == len(m.rxBuf) {
				m.rxBuf = nil
				m.rxPos = 0
			}
			return uint32(v)
		}
		return 0
	default:
		return 0
	}
}

func (m *Device) Write(offset memory.Pointer, width int, value uint32) {
	switch int(offset >> 4 & 15) {
	case regTxData:
		m.txBuf = append(m.txBuf, byte(value))
	case regTxCtrl:
		if m.handle != nil && len(m.txBuf) > 0 {
			if err := m.handle.WritePacketData(m.txBuf); err != nil {
				log.Print("Failed to send packet: ", err)
			}
		}
		m.txBuf = m.txBuf[:0]
	case regIntClr:
		if m.pic != nil {
			m.pic.SetLine(m.irq, false)
		}
	}
}
