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

package ppc

import (
	"log"

	"github.com/andreas-jonsson/virtualmac/emulator/memory"
	"github.com/andreas-jonsson/virtualmac/emulator/peripheral"
	"github.com/andreas-jonsson/virtualmac/emulator/processor"
)

// Exception vector offsets.
const (
	vecReset        = 0x0100
	vecMachineCheck = 0x0200
	vecDSI          = 0x0300
	vecISI          = 0x0400
	vecExternal     = 0x0500
	vecAlignment    = 0x0600
	vecProgram      = 0x0700
	vecFPUnavail    = 0x0800
	vecDecrementer  = 0x0900
	vecSyscall      = 0x0C00
	vecTrace        = 0x0D00
)

// SRR1 cause bits for program and storage exceptions.
const (
	srr1FPEnabled  = 0x00100000
	srr1Illegal    = 0x00080000
	srr1Privileged = 0x00040000
	srr1Trap       = 0x00020000

	srr1NoPTE     = 0x40000000 // ISI page fault
	srr1Guarded   = 0x10000000
	srr1ProtFault = 0x08000000 // ISI protection/no-execute

	dsisrNoPTE     = 0x40000000
	dsisrProtFault = 0x08000000
	dsisrStore     = 0x02000000
)

// fault is the non-local exit used by instruction handlers to reach the
// exception-delivery path. Handlers never return errors.
type fault struct {
	vector uint32
	srr1   uint32
	// srr0 overrides the default of the faulting instruction's address.
	srr0    uint32
	useSRR0 bool
}

type CPU struct {
	processor.Registers

	bus *memory.Bus
	pic processor.InterruptController

	peripherals []peripheral.Peripheral
	stats       processor.Stats

	itlb tlbArray
	dtlb tlbArray // read intent
	wtlb tlbArray // write intent

	// lwarx/stwcx. reservation
	resValid bool
	resAddr  uint32

	decPending bool
	branched   bool
	cycleCount int
}

func NewCPU(bus *memory.Bus, peripherals []peripheral.Peripheral) *CPU {
	p := &CPU{bus: bus, peripherals: peripherals}
	p.installPeripherals()
	return p
}

func (p *CPU) installPeripherals() {
	for _, d := range p.peripherals {
		if err := d.Install(p); err != nil {
			log.Print("Failed to install peripheral: ", err)
		}
		if pic, ok := d.(processor.InterruptController); ok {
			p.pic = pic
		}
	}
	if p.pic == nil {
		log.Print("No interrupt controller detected!")
	}
}

func (p *CPU) Close() {
	for _, d := range p.peripherals {
		if cd, b := d.(peripheral.PeripheralCloser); b {
			if err := cd.Close(); err != nil {
				log.Print("Failed to close peripheral: ", err)
			}
		}
	}
}

func (p *CPU) Break() {
	p.Registers.Debug = true
}

func (p *CPU) GetStats() processor.Stats {
	s := p.stats
	p.stats = processor.Stats{}
	return s
}

func (p *CPU) GetInterruptController() processor.InterruptController {
	return p.pic
}

func (p *CPU) GetRegisters() *processor.Registers {
	return &p.Registers
}

func (p *CPU) GetBus() *memory.Bus {
	return p.bus
}

func (p *CPU) RegisterMMIO(start, length memory.Pointer, dev memory.Device) error {
	return p.bus.Register(start, length, dev)
}

func (p *CPU) ReadPhys(addr memory.Pointer, width int) (uint64, error) {
	p.stats.RX++
	return p.bus.Read(addr, width)
}

func (p *CPU) WritePhys(addr memory.Pointer, width int, value uint64) error {
	p.stats.TX++
	return p.bus.Write(addr, width, value)
}

func (p *CPU) Reset() {
	log.Print("CPU reset!")

	p.Registers.Reset()
	p.flushTLB()
	p.resValid = false
	p.decPending = false

	for _, d := range p.peripherals {
		d.Reset()
	}
}

// raise aborts the current instruction and transfers control to the
// exception-delivery path.
func (p *CPU) raise(vector, srr1 uint32) {
	panic(fault{vector: vector, srr1: srr1})
}

func (p *CPU) raiseAt(vector, srr1, srr0 uint32) {
	panic(fault{vector: vector, srr1: srr1, srr0: srr0, useSRR0: true})
}

// deliver performs the architectural exception entry sequence.
func (p *CPU) deliver(f fault) {
	p.stats.NumExceptions++

	srr0 := p.PC
	if f.useSRR0 {
		srr0 = f.srr0
	}
	p.SRR0 = srr0
	p.SRR1 = (p.MSR & 0x0000FF73) | f.srr1

	base := uint32(0x00000000)
	if p.MSR&processor.MSRIP != 0 {
		base = 0xFFF00000
	}

	p.MSR &^= processor.MSREE | processor.MSRPR | processor.MSRIR |
		processor.MSRDR | processor.MSRSE | processor.MSRBE | processor.MSRRI
	p.PC = base | f.vector
	p.branched = true
}

// rfi restores MSR from SRR1 and PC from SRR0.
func (p *CPU) returnFromInterrupt() {
	const mask = 0x87C0FF73
	p.MSR = (p.MSR &^ mask) | (p.SRR1 & mask)
	p.flushTLB() // IR/DR may have changed
	p.PC = p.SRR0 &^ 3
	p.branched = true
}

// Step executes one instruction and gives every peripheral a slice of time.
// External interrupts and the decrementer are sampled at the instruction
// boundary before dispatch; a pending external interrupt is taken before a
// pending decrementer.
func (p *CPU) Step() (int, error) {
	p.cycleCount = 1

	if p.MSR&processor.MSREE != 0 {
		if p.pic != nil && p.pic.Asserted() {
			p.stats.NumInterrupts++
			p.deliver(fault{vector: vecExternal})
		} else if p.decPending {
			p.decPending = false
			p.stats.NumInterrupts++
			p.deliver(fault{vector: vecDecrementer})
		}
	}

	p.execOne()

	for _, d := range p.peripherals {
		if err := d.Step(p.cycleCount); err != nil {
			return p.cycleCount, err
		}
	}
	return p.cycleCount, nil
}

func (p *CPU) execOne() {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(fault)
			if !ok {
				panic(r)
			}
			p.deliver(f)
		}
	}()

	p.Instr = p.fetch(p.PC)
	p.branched = false

	p.execute(p.Instr)

	p.stats.NumInstructions++
	if !p.branched {
		if p.MSR&processor.MSRSE != 0 {
			// Single-step trace traps after completion, before the next fetch.
			p.PC += 4
			p.deliver(fault{vector: vecTrace})
		} else {
			p.PC += 4
		}
	}
	p.tickTimebase()
}

func (p *CPU) tickTimebase() {
	if p.TBL++; p.TBL == 0 {
		p.TBU++
	}
	old := p.DEC
	p.DEC--
	if old&0x80000000 == 0 && p.DEC&0x80000000 != 0 {
		p.decPending = true
	}
}
