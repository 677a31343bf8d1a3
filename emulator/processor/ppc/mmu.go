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
	"github.com/andreas-jonsson/virtualmac/emulator/memory"
	"github.com/andreas-jonsson/virtualmac/emulator/processor"
)

// Access intents for address translation.
const (
	intentFetch = iota
	intentLoad
	intentStore
)

const (
	pageShift = 12
	pageMask  = 0xFFF
	tlbBits   = 10
	tlbSize   = 1 << tlbBits
)

const (
	tlbValid   = 1 << 0
	tlbInhibit = 1 << 1 // WIMG[I]: route to MMIO, no unaligned access
)

type tlbEntry struct {
	tag   uint32 // virtual page number + 1 (0 means invalid slot)
	phys  uint32 // physical page base
	flags uint8
}

type tlbArray [tlbSize]tlbEntry

func (t *tlbArray) flush() {
	*t = tlbArray{}
}

func (p *CPU) flushTLB() {
	p.itlb.flush()
	p.dtlb.flush()
	p.wtlb.flush()
}

// flushTLBEntry drops the cached translation of one effective address.
func (p *CPU) flushTLBEntry(ea uint32) {
	idx := (ea >> pageShift) & (tlbSize - 1)
	p.itlb[idx] = tlbEntry{}
	p.dtlb[idx] = tlbEntry{}
	p.wtlb[idx] = tlbEntry{}
}

func (p *CPU) tlbFor(intent int) *tlbArray {
	switch intent {
	case intentFetch:
		return &p.itlb
	case intentStore:
		return &p.wtlb
	default:
		return &p.dtlb
	}
}

// translate maps an effective address to a physical address for the given
// intent, or raises ISI/DSI. The result of a full walk is memoised per page.
func (p *CPU) translate(ea uint32, intent int) (uint32, uint8) {
	relocate := p.MSR&processor.MSRDR != 0
	if intent == intentFetch {
		relocate = p.MSR&processor.MSRIR != 0
	}
	if !relocate {
		flags := uint8(0)
		if p.bus.IsMMIO(memory.Pointer(ea)) {
			flags = tlbInhibit
		}
		return ea, flags
	}

	tlb := p.tlbFor(intent)
	idx := (ea >> pageShift) & (tlbSize - 1)
	vpn := ea >> pageShift
	if e := &tlb[idx]; e.tag == vpn+1 {
		p.stats.TLBHits++
		return e.phys | (ea & pageMask), e.flags
	}
	p.stats.TLBMisses++

	physPage, flags := p.walk(ea, intent)
	tlb[idx] = tlbEntry{tag: vpn + 1, phys: physPage, flags: flags}
	return physPage | (ea & pageMask), flags
}

// walk performs the architectural translation: BATs first, then segment
// lookup and the hashed page table.
func (p *CPU) walk(ea uint32, intent int) (uint32, uint8) {
	if phys, ok := p.batLookup(ea, intent); ok {
		flags := uint8(tlbValid)
		if p.bus.IsMMIO(memory.Pointer(phys)) {
			flags |= tlbInhibit
		}
		return phys &^ pageMask, flags
	}
	return p.pageWalk(ea, intent)
}

// batLookup probes the BAT array for the access intent. A hit returns the
// translated address; protection violations raise immediately.
func (p *CPU) batLookup(ea uint32, intent int) (uint32, bool) {
	bats := &p.DBAT
	if intent == intentFetch {
		bats = &p.IBAT
	}

	super := p.MSR&processor.MSRPR == 0
	for i := range bats {
		upper, lower := bats[i].Upper, bats[i].Lower

		valid := false
		if super {
			valid = upper&2 != 0 // Vs
		} else {
			valid = upper&1 != 0 // Vp
		}
		if !valid {
			continue
		}

		bl := (upper >> 2) & 0x7FF
		mask := ^(bl << 17) & 0xFFFE0000
		if ea&mask != upper&mask {
			continue
		}

		pp := lower & 3
		if pp == 0 || (intent == intentStore && pp != 2) {
			p.storageFault(ea, intent, false)
		}
		brpn := lower & 0xFFFE0000
		return (brpn & mask) | (ea &^ mask), true
	}
	return 0, false
}

// storageFault raises DSI or ISI. pageFault selects the no-PTE cause over the
// protection-violation cause.
func (p *CPU) storageFault(ea uint32, intent int, pageFault bool) {
	if intent == intentFetch {
		cause := uint32(srr1ProtFault)
		if pageFault {
			cause = srr1NoPTE
		}
		p.raise(vecISI, cause)
	}
	p.DAR = ea
	if pageFault {
		p.DSISR = dsisrNoPTE
	} else {
		p.DSISR = dsisrProtFault
	}
	if intent == intentStore {
		p.DSISR |= dsisrStore
	}
	p.raise(vecDSI, 0)
}

// pageWalk resolves ea through the segment registers and the hashed page
// table, setting the PTE's R (and C on store) bits on a hit.
func (p *CPU) pageWalk(ea uint32, intent int) (uint32, uint8) {
	sr := p.SR[ea>>28]

	if sr&0x80000000 != 0 {
		// Direct-store segments are not implemented by 7xx-class parts.
		p.storageFault(ea, intent, false)
	}
	if intent == intentFetch && sr&0x10000000 != 0 { // N: no-execute
		p.storageFault(ea, intent, false)
	}

	vsid := sr & 0x00FFFFFF
	key := (sr >> 30) & 1 // Ks
	if p.MSR&processor.MSRPR != 0 {
		key = (sr >> 29) & 1 // Kp
	}

	pageIndex := (ea >> pageShift) & 0xFFFF
	api := (ea >> 22) & 0x3F
	hash := (vsid & 0x7FFFF) ^ pageIndex

	for pass := 0; pass < 2; pass++ {
		h := hash
		if pass == 1 {
			h = ^hash & 0x7FFFF
		}
		pteg := p.ptegAddr(h)

		for i := uint32(0); i < 8; i++ {
			addr := memory.Pointer(pteg + i*8)
			w0, err := p.bus.Read(addr, 4)
			if err != nil {
				p.raise(vecMachineCheck, 0)
			}
			pte0 := uint32(w0)

			if pte0&0x80000000 == 0 {
				continue
			}
			if (pte0>>7)&0xFFFFFF != vsid {
				continue
			}
			if (pte0>>6)&1 != uint32(pass) {
				continue
			}
			if pte0&0x3F != api {
				continue
			}

			w1, err := p.bus.Read(addr+4, 4)
			if err != nil {
				p.raise(vecMachineCheck, 0)
			}
			pte1 := uint32(w1)

			pp := pte1 & 3
			if !protOK(key, pp, intent == intentStore) {
				p.storageFault(ea, intent, false)
			}

			// Referenced and changed bits.
			upd := pte1 | 0x100
			if intent == intentStore {
				upd |= 0x80
			}
			if upd != pte1 {
				if err := p.bus.Write(addr+4, 4, uint64(upd)); err != nil {
					p.raise(vecMachineCheck, 0)
				}
			}

			flags := uint8(tlbValid)
			if (pte1>>3)&0x4 != 0 { // WIMG[I]
				flags |= tlbInhibit
			} else if p.bus.IsMMIO(memory.Pointer(pte1 &^ pageMask)) {
				flags |= tlbInhibit
			}
			return pte1 &^ pageMask, flags
		}
	}

	p.storageFault(ea, intent, true)
	return 0, 0 // unreachable
}

// ptegAddr forms the physical address of a PTE group from a 19-bit hash and
// SDR1.
func (p *CPU) ptegAddr(hash uint32) uint32 {
	htaborg := p.SDR1 & 0xFFFF0000
	htabmask := p.SDR1 & 0x1FF
	return (htaborg & 0xFE000000) |
		(htaborg & 0x01FF0000) | (((hash >> 10) & htabmask) << 16) |
		((hash & 0x3FF) << 6)
}

// protOK applies the PP/key protection table.
func protOK(key, pp uint32, store bool) bool {
	if key == 0 {
		if store {
			return pp != 3
		}
		return true
	}
	switch pp {
	case 0:
		return false
	case 2:
		return true
	default: // 1, 3: read only
		return !store
	}
}

// fetch translates and reads one instruction word.
func (p *CPU) fetch(pc uint32) uint32 {
	phys, _ := p.translate(pc&^3, intentFetch)
	v, err := p.bus.Read(memory.Pointer(phys), 4)
	if err != nil {
		p.raise(vecMachineCheck, 0)
	}
	p.stats.RX++
	return uint32(v)
}

// alignmentFault records the failing address and raises the alignment
// exception.
func (p *CPU) alignmentFault(ea uint32) {
	p.DAR = ea
	p.raise(vecAlignment, 0)
}

// readData performs a data load of the given width, handling page-crossing
// splits and MMIO alignment rules.
func (p *CPU) readData(ea uint32, width int) uint64 {
	p.stats.RX++

	first := ea >> pageShift
	last := (ea + uint32(width) - 1) >> pageShift
	if first != last {
		return p.readSplit(ea, width)
	}

	phys, flags := p.translate(ea, intentLoad)
	if flags&tlbInhibit != 0 && ea&uint32(width-1) != 0 {
		p.alignmentFault(ea)
	}
	if p.straddlesRAM(phys, width) {
		return p.readBytes(phys, width)
	}
	v, err := p.bus.Read(memory.Pointer(phys), width)
	if err != nil {
		p.busFault(ea, err)
	}
	return v
}

// writeData performs a data store of the given width.
func (p *CPU) writeData(ea uint32, width int, value uint64) {
	p.stats.TX++

	first := ea >> pageShift
	last := (ea + uint32(width) - 1) >> pageShift
	if first != last {
		p.writeSplit(ea, width, value)
		return
	}

	phys, flags := p.translate(ea, intentStore)
	if flags&tlbInhibit != 0 && ea&uint32(width-1) != 0 {
		p.alignmentFault(ea)
	}
	if p.straddlesRAM(phys, width) {
		p.writeBytes(phys, width, value)
		return
	}
	if err := p.bus.Write(memory.Pointer(phys), width, value); err != nil {
		p.busFault(ea, err)
	}

	if p.resValid && phys&^0x1F == p.resAddr&^0x1F {
		p.resValid = false
	}
}

func (p *CPU) busFault(ea uint32, err error) {
	if err == memory.ErrAccessWidth {
		p.alignmentFault(ea)
	}
	p.raise(vecMachineCheck, 0)
}

// straddlesRAM reports whether a physical access spans the RAM/MMIO boundary.
func (p *CPU) straddlesRAM(phys uint32, width int) bool {
	size := uint64(p.bus.RAMSize())
	return uint64(phys) < size && uint64(phys)+uint64(width) > size
}

func (p *CPU) readBytes(phys uint32, width int) uint64 {
	var v uint64
	for i := 0; i < width; i++ {
		b, err := p.bus.Read(memory.Pointer(phys+uint32(i)), 1)
		if err != nil {
			p.raise(vecMachineCheck, 0)
		}
		v = v<<8 | b
	}
	return v
}

func (p *CPU) writeBytes(phys uint32, width int, value uint64) {
	for i := width - 1; i >= 0; i-- {
		if err := p.bus.Write(memory.Pointer(phys+uint32(i)), 1, value&0xFF); err != nil {
			p.raise(vecMachineCheck, 0)
		}
		value >>= 8
	}
}

// readSplit handles a load crossing a page boundary. Both halves are
// translated before any byte is read so a fault on the second page leaves no
// visible side effects.
func (p *CPU) readSplit(ea uint32, width int) uint64 {
	firstLen := int(0x1000 - (ea & pageMask))

	physLo, flagsLo := p.translate(ea, intentLoad)
	physHi, flagsHi := p.translate(ea+uint32(firstLen), intentLoad)
	if (flagsLo|flagsHi)&tlbInhibit != 0 {
		p.alignmentFault(ea)
	}

	v := p.readBytes(physLo, firstLen)
	return v<<(uint(width-firstLen)*8) | p.readBytes(physHi, width-firstLen)
}

// writeSplit handles a store crossing a page boundary with the same
// translate-both-first rule.
func (p *CPU) writeSplit(ea uint32, width int, value uint64) {
	firstLen := int(0x1000 - (ea & pageMask))

	physLo, flagsLo := p.translate(ea, intentStore)
	physHi, flagsHi := p.translate(ea+uint32(firstLen), intentStore)
	if (flagsLo|flagsHi)&tlbInhibit != 0 {
		p.alignmentFault(ea)
	}

	p.writeBytes(physLo, firstLen, value>>(uint(width-firstLen)*8))
	p.writeBytes(physHi, width-firstLen, value&((1<<(uint(width-firstLen)*8))-1))
	p.resValid = false
}
