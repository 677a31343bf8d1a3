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

package processor

import (
	"errors"

	"github.com/andreas-jonsson/virtualmac/emulator/memory"
)

type Stats struct {
	NumInterrupts   uint32
	NumExceptions   uint32
	NumInstructions uint64
	RX, TX          uint64
	TLBHits         uint64
	TLBMisses       uint64
}

var (
	ErrCPUHalt             = errors.New("CPU HALT")
	ErrInterruptNotWired   = errors.New("interrupt source not wired")
	ErrInterruptRegistered = errors.New("interrupt source already registered")
)

type Debug interface {
	Break()
	GetStats() Stats
}

// IrqID is the opaque cookie handed out when an interrupt source registers.
type IrqID uint64

// InterruptController aggregates device interrupt lines into the CPU's
// external-interrupt input.
type InterruptController interface {
	RegisterDeviceInterrupt(src int) (IrqID, error)
	RegisterDMAInterrupt(src int) (IrqID, error)
	SetLine(id IrqID, asserted bool)

	// Asserted is the CPU external-interrupt input.
	Asserted() bool
}

type Processor interface {
	Debug

	// Physical bus access for DMA-style peripherals.
	ReadPhys(addr memory.Pointer, width int) (uint64, error)
	WritePhys(addr memory.Pointer, width int, value uint64) error

	GetRegisters() *Registers
	GetBus() *memory.Bus

	RegisterMMIO(start, length memory.Pointer, dev memory.Device) error

	GetInterruptController() InterruptController
}
