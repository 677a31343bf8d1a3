/*
Copyright (c) 2019-2021 Andreas T Jonsson

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

package scsi

import (
	"log"

	"github.com/andreas-jonsson/virtualmac/emulator/memory"
	"github.com/andreas-jonsson/virtualmac/emulator/processor"
)

// SCSI status codes.
const (
	StatusGood           = 0
	StatusCheckCondition = 2
)

// Target is one device on the SCSI bus. Command interprets a CDB against
// dataOut (for writes) and returns the data-in phase bytes and a status.
type Target interface {
	Command(cdb []byte, dataOut []byte) ([]byte, byte)
}

// Controller registers, one per 16-byte stride.
const (
	regSelect = 0 // w: target id
	regCDB    = 1 // w: next CDB byte
	regStart  = 2 // w: execute the queued CDB
	regStatus = 3 // r: completion status, 0xFF while idle
	regData   = 4 // r/w: data FIFO
	regIntClr = 5 // w: drop the completion interrupt line
)

// Device is a simplified bus controller cell: CDBs and data move through a
// register FIFO, completion raises the controller's interrupt source.
type Device struct {
	SrcID int

	targets [8]Target
	irq     processor.IrqID
	pic     processor.InterruptController

	selected int
	cdb      []byte
	buffer   []byte
	dataPos  int
	status   byte
	done     bool
}

func (m *Device) Install(p processor.Processor) error {
	if pic := p.GetInterruptController(); pic != nil {
		id, err := pic.RegisterDeviceInterrupt(m.SrcID)
		if err != nil {
			return err
		}
		m.irq = id
		m.pic = pic
	}
	return nil
}

func (m *Device) Name() string {
	return "SCSI Controller"
}

func (m *Device) Reset() {
	m.selected = 0
	m.cdb = m.cdb[:0]
	m.buffer = nil
	m.dataPos = 0
	m.status = 0
	m.done = false
}

func (m *Device) Step(int) error {
	return nil
}

// AttachTarget puts a device on the bus at the given id.
func (m *Device) AttachTarget(id int, t Target) {
	if id < 0 || id >= len(m.targets) {
		log.Panic("invalid SCSI id: ", id)
	}
	m.targets[id] = t
}

func (m *Device) Read(offset memory.Pointer, width int) uint32 {
	switch int(offset >> 4 & 15) {
	case regStatus:
		if !m.done {
			return 0xFF
		}
		return uint32(m.status)
	case regData:
		if m.dataPos < len(m.buffer) {
			v := m.buffer[m.dataPos]
			m.dataPos++
			return uint32(v)
		}
		return 0
	default:
		return 0
	}
}

func (m *Device) Write(offset memory.Pointer, width int, value uint32) {
	switch int(offset >> 4 & 15) {
	case regSelect:
		m.selected = int(value & 7)
		m.cdb = m.cdb[:0]
		m.buffer = nil
		m.dataPos = 0
		m.done = false
	case regCDB:
		m.cdb = append(m.cdb, byte(value))
	case regData:
		m.buffer = append(m.buffer, byte(value))
	case regStart:
		m.execute()
	case regIntClr:
		if m.pic != nil {
			m.pic.SetLine(m.irq, false)
		}
	}
}

func (m *Device) execute() {
	t := m.targets[m.selected]
	if t == nil {
		m.status = StatusCheckCondition
	} else {
		m.buffer, m.status = t.Command(m.cdb, m.buffer)
	}
	m.dataPos = 0
	m.cdb = m.cdb[:0]
	m.done = true

	if m.pic != nil {
		m.pic.SetLine(m.irq, true)
	}
}
