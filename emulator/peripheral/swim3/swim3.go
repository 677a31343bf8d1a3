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

package swim3

import (
	"github.com/andreas-jonsson/virtualmac/emulator/memory"
	"github.com/andreas-jonsson/virtualmac/emulator/processor"
)

// SWIM3 register file, one register per 16-byte stride.
const (
	regData    = 0
	regTimer   = 1
	regError   = 2
	regMode    = 3
	regSelect  = 4
	regPhase   = 5
	regSetup   = 6
	regStatus  = 8
	regHandshK = 9
	regInt     = 10
	regStep    = 11
	regCurTrk  = 12
	regIntMask = 14
)

// Device is a register-surface stub of the SWIM3 floppy controller. Enough
// for firmware probing: no drive is ever reported present.
type Device struct {
	regs [16]byte
}

func (m *Device) Install(processor.Processor) error {
	return nil
}

func (m *Device) Name() string {
	return "SWIM3 Floppy Controller"
}

func (m *Device) Reset() {
	m.regs = [16]byte{}
}

func (m *Device) Step(int) error {
	return nil
}

func (m *Device) Read(offset memory.Pointer, width int) uint32 {
	switch reg := int(offset >> 4 & 15); reg {
	case regStatus:
		return 0 // no drive attached
	case regError:
		return 0
	default:
		return uint32(m.regs[reg])
	}
}

func (m *Device) Write(offset memory.Pointer, width int, value uint32) {
	reg := int(offset >> 4 & 15)
	switch reg {
	case regInt:
		m.regs[reg] &^= byte(value) // write one to clear
	default:
		m.regs[reg] = byte(value)
	}
}
