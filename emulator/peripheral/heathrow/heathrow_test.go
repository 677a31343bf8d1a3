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

package heathrow

import (
	"testing"

	"github.com/andreas-jonsson/virtualmac/emulator/memory"
	"github.com/andreas-jonsson/virtualmac/emulator/peripheral"
	"github.com/andreas-jonsson/virtualmac/emulator/processor"
	"github.com/andreas-jonsson/virtualmac/emulator/processor/ppc"
)

// Raising a line 0->1 latches the event bit exactly once; W1C clears it;
// lowering the line without W1C leaves the event latched.
func TestInterruptEdge(t *testing.T) {
	m := &Device{}
	id, err := m.RegisterDeviceInterrupt(5)
	if err != nil {
		t.Fatal(err)
	}

	m.SetLine(id, true)
	if m.Read(regEvents1, 4) != 1<<5 {
		t.Fatalf("events1: got 0x%X", m.Read(regEvents1, 4))
	}
	if m.Read(regLevels1, 4) != 1<<5 {
		t.Fatalf("levels1: got 0x%X", m.Read(regLevels1, 4))
	}

	// A second assert must not change anything.
	m.SetLine(id, true)
	if m.Read(regEvents1, 4) != 1<<5 {
		t.Fatal("event bit set more than once")
	}

	// Lowering the line keeps the sticky event.
	m.SetLine(id, false)
	if m.Read(regLevels1, 4) != 0 {
		t.Fatal("level should follow the line")
	}
	if m.Read(regEvents1, 4) != 1<<5 {
		t.Fatal("event latch must survive the falling edge")
	}

	// W1C.
	m.Write(regEvents1, 4, 1<<5)
	if m.Read(regEvents1, 4) != 0 {
		t.Fatal("W1C did not clear")
	}

	// Mode bit set: OR into the latch instead.
	m.Write(regEvents1, 4, 0x80000000|1<<7)
	if m.Read(regEvents1, 4) != 1<<7 {
		t.Fatalf("set mode: got 0x%X", m.Read(regEvents1, 4))
	}
}

func TestAssertedFollowsMask(t *testing.T) {
	m := &Device{}
	id, _ := m.RegisterDeviceInterrupt(3)

	m.SetLine(id, true)
	if m.Asserted() {
		t.Fatal("masked interrupt must not assert")
	}

	m.Write(regMask1, 4, 1<<3)
	if !m.Asserted() {
		t.Fatal("unmasked pending interrupt should assert")
	}

	m.SetLine(id, false)
	m.Write(regEvents1, 4, 1<<3)
	if m.Asserted() {
		t.Fatal("cleared interrupt should deassert")
	}
}

func TestSecondBank(t *testing.T) {
	m := &Device{}
	id, err := m.RegisterDeviceInterrupt(42)
	if err != nil {
		t.Fatal(err)
	}

	m.SetLine(id, true)
	if m.Read(regEvents2, 4) != 1<<10 {
		t.Fatalf("events2: got 0x%X", m.Read(regEvents2, 4))
	}
	m.Write(regMask2, 4, 1<<10)
	if !m.Asserted() {
		t.Fatal("bank 2 interrupt should assert")
	}
}

func TestDoubleRegistration(t *testing.T) {
	m := &Device{}
	if _, err := m.RegisterDeviceInterrupt(7); err != nil {
		t.Fatal(err)
	}
	if _, err := m.RegisterDMAInterrupt(7); err != processor.ErrInterruptRegistered {
		t.Fatalf("expected registration error, got %v", err)
	}
}

func TestCellRouting(t *testing.T) {
	m := &Device{}
	nv := &stubCell{}
	m.Attach(NVRAMOffset, 0x20000, nv)

	m.Write(NVRAMOffset+0x30, 1, 0xAB)
	if nv.offset != 0x30 || nv.value != 0xAB {
		t.Fatalf("cell saw offset=0x%X value=0x%X", uint32(nv.offset), nv.value)
	}
}

type stubCell struct {
	offset memory.Pointer
	value  uint32
}

func (c *stubCell) Read(offset memory.Pointer, width int) uint32 {
	c.offset = offset
	return 0x42
}

func (c *stubCell) Write(offset memory.Pointer, width int, value uint32) {
	c.offset = offset
	c.value = value
}

// End to end: a device raises its line and the CPU vectors to the external
// interrupt handler before the next instruction retires.
func TestExternalInterruptDelivery(t *testing.T) {
	bus := memory.NewBus(1 << 20)
	mio := &Device{}
	p := ppc.NewCPU(bus, []peripheral.Peripheral{mio})
	p.Registers.Reset()
	p.MSR = processor.MSREE

	id, err := mio.RegisterDeviceInterrupt(5)
	if err != nil {
		t.Fatal(err)
	}
	mio.Write(regMask1, 4, 1<<5)

	// Program: two addi. Handler at 0x500: ori r0,r0,0.
	bus.Write(0x1000, 4, uint64(uint32(14)<<26|uint32(3)<<21|1))
	bus.Write(0x1004, 4, uint64(uint32(14)<<26|uint32(4)<<21|2))
	bus.Write(0x500, 4, uint64(uint32(24)<<26))
	p.PC = 0x1000

	if _, err := p.Step(); err != nil {
		t.Fatal(err)
	}

	mio.SetLine(id, true)
	if _, err := p.Step(); err != nil {
		t.Fatal(err)
	}

	if p.GPR[4] == 2 {
		t.Fatal("instruction retired past the interrupt")
	}
	if p.SRR0 != 0x1004 {
		t.Fatalf("SRR0: got 0x%X", p.SRR0)
	}
	if p.MSR&processor.MSREE != 0 {
		t.Fatal("EE must be masked on entry")
	}
}
