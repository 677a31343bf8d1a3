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

/*
References:
	"Macintosh Technology in the Common Hardware Reference Platform", ch. 2
*/

package heathrow

import (
	"log"

	"github.com/andreas-jonsson/virtualmac/emulator/memory"
	"github.com/andreas-jonsson/virtualmac/emulator/processor"
)

// Interrupt and control registers, relative to the ASIC base.
const (
	regEvents2  = 0x10
	regMask2    = 0x14
	regLevels2  = 0x18
	regEvents1  = 0x20
	regMask1    = 0x24
	regLevels1  = 0x2C
	regID       = 0x34
	regFeatCtrl = 0x38
	regAuxCtrl  = 0x3C
)

// A write to an events register with the mode bit set ORs the payload into
// the latch instead of clearing it.
const intModeSet = 0x80000000

const RegionSize = 0x80000 // 512KiB of PCI memory space

// Cell sub-device register spaces within the ASIC.
const (
	ScsiOffset  = 0x10000
	Swim3Offset = 0x15000
	NVRAMOffset = 0x60000
)

type cell struct {
	offset, length memory.Pointer
	dev            memory.Device
}

// Device is the Heathrow MacIO ASIC: the machine's interrupt controller and
// the aggregation point for the legacy I/O cells.
type Device struct {
	Base memory.Pointer

	cpu processor.Processor

	events1, mask1, levels1 uint32
	events2, mask2, levels2 uint32
	featCtrl, auxCtrl       uint32

	registered uint64
	cells      []cell
}

func (m *Device) Install(p processor.Processor) error {
	m.cpu = p
	if m.Base == 0 {
		m.Base = 0xF3000000
	}
	return p.RegisterMMIO(m.Base, RegionSize, m)
}

func (m *Device) Name() string {
	return "Heathrow I/O Controller"
}

func (m *Device) Reset() {
	m.events1, m.mask1, m.levels1 = 0, 0, 0
	m.events2, m.mask2, m.levels2 = 0, 0, 0
	m.featCtrl, m.auxCtrl = 0, 0
}

func (m *Device) Step(int) error {
	return nil
}

// Attach maps a cell's register space at the given offset inside the ASIC.
func (m *Device) Attach(offset, length memory.Pointer, dev memory.Device) {
	m.cells = append(m.cells, cell{offset, length, dev})
}

func (m *Device) register(src int) (processor.IrqID, error) {
	if src < 0 || src > 63 {
		return 0, processor.ErrInterruptNotWired
	}
	bit := uint64(1) << uint(src)
	if m.registered&bit != 0 {
		return 0, processor.ErrInterruptRegistered
	}
	m.registered |= bit
	return processor.IrqID(bit), nil
}

func (m *Device) RegisterDeviceInterrupt(src int) (processor.IrqID, error) {
	return m.register(src)
}

func (m *Device) RegisterDMAInterrupt(src int) (processor.IrqID, error) {
	return m.register(src)
}

// SetLine drives one interrupt input. A rising edge latches the matching
// event bit; the level word always tracks the line.
func (m *Device) SetLine(id processor.IrqID, asserted bool) {
	lo := uint32(id)
	hi := uint32(uint64(id) >> 32)

	if asserted {
		if m.levels1&lo == 0 {
			m.events1 |= lo
		}
		if m.levels2&hi == 0 {
			m.events2 |= hi
		}
		m.levels1 |= lo
		m.levels2 |= hi
	} else {
		m.levels1 &^= lo
		m.levels2 &^= hi
	}
}

// Asserted is the aggregated CPU external-interrupt input.
func (m *Device) Asserted() bool {
	return ((m.levels1|m.events1)&m.mask1)|((m.levels2|m.events2)&m.mask2) != 0
}

func (m *Device) Read(offset memory.Pointer, width int) uint32 {
	switch offset {
	case regEvents2:
		return m.events2
	case regMask2:
		return m.mask2
	case regLevels2:
		return m.levels2
	case regEvents1:
		return m.events1
	case regMask1:
		return m.mask1
	case regLevels1:
		return m.levels1
	case regID:
		return 0x701070E0 // flat panel, monitor, media bay and CPU IDs
	case regFeatCtrl:
		return m.featCtrl
	case regAuxCtrl:
		return m.auxCtrl
	}

	for i := range m.cells {
		c := &m.cells[i]
		if offset >= c.offset && offset-c.offset < c.length {
			return c.dev.Read(offset-c.offset, width)
		}
	}

	log.Printf("heathrow: read of unmapped offset 0x%X", uint32(offset))
	return 0
}

func (m *Device) Write(offset memory.Pointer, width int, value uint32) {
	switch offset {
	case regEvents2:
		if value&intModeSet != 0 {
			m.events2 |= value &^ intModeSet
		} else {
			m.events2 &^= value
		}
		return
	case regMask2:
		m.mask2 = value
		return
	case regLevels2:
		return // read only
	case regEvents1:
		if value&intModeSet != 0 {
			m.events1 |= value &^ intModeSet
		} else {
			m.events1 &^= value
		}
		return
	case regMask1:
		m.mask1 = value
		return
	case regLevels1:
		return
	case regFeatCtrl:
		m.featCtrl = value
		return
	case regAuxCtrl:
		m.auxCtrl = value
		return
	}

	for i := range m.cells {
		c := &m.cells[i]
		if offset >= c.offset && offset-c.offset < c.length {
			c.dev.Write(offset-c.offset, width, value)
			return
		}
	}

	log.Printf("heathrow: write of unmapped offset 0x%X: 0x%X", uint32(offset), value)
}
