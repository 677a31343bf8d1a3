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

package rom

import (
	"io"
	"io/ioutil"

	"github.com/andreas-jonsson/virtualmac/emulator/memory"
	"github.com/andreas-jonsson/virtualmac/emulator/processor"
)

// Device maps a boot ROM image as a read-only MMIO region. Classic world
// ROMs live at the top of the physical space so the reset vector at
// 0xFFF00100 lands inside the image.
type Device struct {
	mem []byte

	Base    memory.Pointer
	Size    memory.Pointer
	RomName string
	Reader  io.Reader
}

func (m *Device) Install(p processor.Processor) error {
	var err error
	if m.mem, err = ioutil.ReadAll(m.Reader); err != nil {
		return err
	}
	if m.RomName == "" {
		m.RomName = "ROM"
	}
	if m.Base == 0 {
		m.Base = 0xFFC00000
	}
	if m.Size == 0 {
		m.Size = 0x400000
	}
	return p.RegisterMMIO(m.Base, m.Size, m)
}

func (m *Device) Name() string {
	return m.RomName
}

func (m *Device) Reset() {
}

func (m *Device) Step(int) error {
	return nil
}

// Read mirrors the image across the whole window, the way small ROMs alias
// on the real bus.
func (m *Device) Read(offset memory.Pointer, width int) uint32 {
	var v uint32
	for i := 0; i < width; i++ {
		v = v<<8 | uint32(m.mem[(int(offset)+i)%len(m.mem)])
	}
	return v
}

func (m *Device) Write(offset memory.Pointer, width int, value uint32) {
	// ROM ignores writes.
}

func (m *Device) ReadQuad(offset memory.Pointer) uint64 {
	return uint64(m.Read(offset, 4))<<32 | uint64(m.Read(offset+4, 4))
}

func (m *Device) WriteQuad(offset memory.Pointer, value uint64) {
}
