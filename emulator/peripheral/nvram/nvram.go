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

package nvram

import (
	"io"
	"log"
	"os"

	"github.com/andreas-jonsson/virtualmac/emulator/memory"
	"github.com/andreas-jonsson/virtualmac/emulator/processor"
	"github.com/spf13/afero"
)

const Size = 0x2000

// Device is the byte-wide MacIO NVRAM cell. The guest sees one byte per
// 16-byte stride; the backing file holds the packed array.
type Device struct {
	Fs   afero.Fs
	Path string

	data  [Size]byte
	dirty bool
}

func (m *Device) Install(processor.Processor) error {
	if m.Fs == nil {
		m.Fs = afero.NewOsFs()
	}
	if m.Path == "" {
		return nil
	}

	fp, err := m.Fs.Open(m.Path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	defer fp.Close()

	if _, err := io.ReadFull(fp, m.data[:]); err != nil && err != io.ErrUnexpectedEOF {
		return err
	}
	return nil
}

func (m *Device) Name() string {
	return "NVRAM"
}

func (m *Device) Reset() {
}

func (m *Device) Step(int) error {
	return nil
}

func (m *Device) Close() error {
	if !m.dirty || m.Path == "" {
		return nil
	}
	if err := afero.WriteFile(m.Fs, m.Path, m.data[:], 0644); err != nil {
		log.Print("Failed to flush NVRAM: ", err)
		return err
	}
	return nil
}

func (m *Device) Read(offset memory.Pointer, width int) uint32 {
	return uint32(m.data[(offset>>4)&(Size-1)])
}

func (m *Device) Write(offset memory.Pointer, width int, value uint32) {
	m.data[(offset>>4)&(Size-1)] = byte(value)
	m.dirty = true
}
