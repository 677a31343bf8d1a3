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

package memory

import (
	"errors"
	"fmt"
	"log"
	"sort"
)

// Pointer is a guest-physical address.
type Pointer uint32

func (p Pointer) String() string {
	return fmt.Sprintf("0x%08X", uint32(p))
}

var (
	ErrUnmapped    = errors.New("unmapped physical address")
	ErrOverlap     = errors.New("region overlaps existing registration")
	ErrAccessWidth = errors.New("unsupported access width")
)

// Device is the endpoint of a registered MMIO region. Offsets are region
// relative. Width is 1, 2 or 4; 8 only reaches devices that also implement
// QuadDevice.
type Device interface {
	Read(offset Pointer, width int) uint32
	Write(offset Pointer, width int, value uint32)
}

// QuadDevice is implemented by endpoints that accept 8-byte accesses.
type QuadDevice interface {
	ReadQuad(offset Pointer) uint64
	WriteQuad(offset Pointer, value uint64)
}

type region struct {
	start, length Pointer
	dev           Device
}

func (r *region) contains(addr Pointer) bool {
	return addr >= r.start && addr-r.start < r.length
}

// Bus is the guest-physical address space: a flat RAM array at address zero
// plus an ordered table of MMIO regions. All multi-byte values cross the bus
// in big-endian order.
type Bus struct {
	ram     []byte
	regions []region
}

func NewBus(ramSize uint32) *Bus {
	return &Bus{ram: make([]byte, ramSize)}
}

func (b *Bus) RAMSize() uint32 {
	return uint32(len(b.ram))
}

// RAM exposes the backing store for DMA-style peripheral access.
func (b *Bus) RAM() []byte {
	return b.ram
}

// Register adds an MMIO region. Regions may not overlap each other or RAM.
func (b *Bus) Register(start, length Pointer, dev Device) error {
	if length == 0 {
		return errors.New("zero length region")
	}
	if uint64(start) < uint64(len(b.ram)) {
		return ErrOverlap
	}
	for i := range b.regions {
		r := &b.regions[i]
		if start < r.start+r.length && r.start < start+length {
			return ErrOverlap
		}
	}
	b.regions = append(b.regions, region{start, length, dev})
	sort.Slice(b.regions, func(i, j int) bool {
		return b.regions[i].start < b.regions[j].start
	})
	return nil
}

// Unregister removes the region registered at start.
func (b *Bus) Unregister(start Pointer) {
	for i := range b.regions {
		if b.regions[i].start == start {
			b.regions = append(b.regions[:i], b.regions[i+1:]...)
			return
		}
	}
}

func (b *Bus) lookup(addr Pointer) *region {
	for i := range b.regions {
		r := &b.regions[i]
		if r.contains(addr) {
			return r
		}
	}
	return nil
}

// IsMMIO reports whether addr resolves to a registered region rather than RAM.
func (b *Bus) IsMMIO(addr Pointer) bool {
	return uint64(addr) >= uint64(len(b.ram)) && b.lookup(addr) != nil
}

// Read performs a width-sized big-endian read at the physical address.
func (b *Bus) Read(addr Pointer, width int) (uint64, error) {
	if int64(addr)+int64(width) <= int64(len(b.ram)) {
		var v uint64
		for i := 0; i < width; i++ {
			v = v<<8 | uint64(b.ram[addr+Pointer(i)])
		}
		return v, nil
	}

	r := b.lookup(addr)
	if r == nil {
		log.Printf("reading unmapped memory: %v", addr)
		return 0, ErrUnmapped
	}
	offset := addr - r.start
	if width == 8 {
		qd, ok := r.dev.(QuadDevice)
		if !ok {
			return 0, ErrAccessWidth
		}
		return qd.ReadQuad(offset), nil
	}
	return uint64(r.dev.Read(offset, width)), nil
}

// Write performs a width-sized big-endian write at the physical address.
func (b *Bus) Write(addr Pointer, width int, value uint64) error {
	if int64(addr)+int64(width) <= int64(len(b.ram)) {
		for i := width - 1; i >= 0; i-- {
			b.ram[addr+Pointer(i)] = byte(value)
			value >>= 8
		}
		return nil
	}

	r := b.lookup(addr)
	if r == nil {
		log.Printf("writing unmapped memory: %v", addr)
		return ErrUnmapped
	}
	offset := addr - r.start
	if width == 8 {
		qd, ok := r.dev.(QuadDevice)
		if !ok {
			return ErrAccessWidth
		}
		qd.WriteQuad(offset, value)
		return nil
	}
	r.dev.Write(offset, width, uint32(value))
	return nil
}
