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
	"math/bits"

	"github.com/andreas-jonsson/virtualmac/emulator/processor"
)

// Instruction field accessors. PowerPC numbers bits from the big end; these
// all work on the plain uint32 word.

func regD(i uint32) int { return int(i>>21) & 31 } // also rS, BO, TO
func regA(i uint32) int { return int(i>>16) & 31 } // also BI
func regB(i uint32) int { return int(i>>11) & 31 }
func regC(i uint32) int { return int(i>>6) & 31 }

func simm(i uint32) uint32 { return uint32(int32(int16(i))) }
func uimm(i uint32) uint32 { return i & 0xFFFF }

func rcBit(i uint32) bool { return i&1 != 0 }
func oeBit(i uint32) bool { return i&0x400 != 0 }

func (p *CPU) illegal() {
	p.raise(vecProgram, srr1Illegal)
}

func (p *CPU) privileged() {
	if p.MSR&processor.MSRPR != 0 {
		p.raise(vecProgram, srr1Privileged)
	}
}

func (p *CPU) crBit(n int) bool {
	return (p.CR>>(31-uint(n)))&1 != 0
}

func (p *CPU) setCRBit(n int, v bool) {
	m := uint32(1) << (31 - uint(n))
	if v {
		p.CR |= m
	} else {
		p.CR &^= m
	}
}

// effectiveAddr computes (rA|0) + displacement for D-forms.
func (p *CPU) effectiveAddr(instr uint32) uint32 {
	ea := simm(instr)
	if a := regA(instr); a != 0 {
		ea += p.GPR[a]
	}
	return ea
}

// effectiveAddrX computes (rA|0) + rB for X-forms.
func (p *CPU) effectiveAddrX(instr uint32) uint32 {
	ea := p.GPR[regB(instr)]
	if a := regA(instr); a != 0 {
		ea += p.GPR[a]
	}
	return ea
}

// updateAddr is the EA of an update form; rA=0 is an illegal encoding.
func (p *CPU) updateAddr(instr uint32) uint32 {
	if regA(instr) == 0 {
		p.illegal()
	}
	return p.GPR[regA(instr)] + simm(instr)
}

func (p *CPU) updateAddrX(instr uint32) uint32 {
	if regA(instr) == 0 {
		p.illegal()
	}
	return p.GPR[regA(instr)] + p.GPR[regB(instr)]
}

func addOverflow(a, b, res uint32) bool {
	return (^(a ^ b) & (a ^ res) & 0x80000000) != 0
}

func (p *CPU) execute(instr uint32) {
	switch instr >> 26 {
	case 3: // twi
		p.trapCheck(regD(instr), p.GPR[regA(instr)], simm(instr))
	case 7: // mulli
		p.GPR[regD(instr)] = uint32(int32(p.GPR[regA(instr)]) * int32(simm(instr)))
	case 8: // subfic
		a, imm := p.GPR[regA(instr)], simm(instr)
		p.GPR[regD(instr)] = imm - a
		p.SetCarry(imm >= a)
	case 10: // cmpli
		p.cmpUnsigned(regD(instr)>>2, p.GPR[regA(instr)], uimm(instr))
	case 11: // cmpi
		p.cmpSigned(regD(instr)>>2, p.GPR[regA(instr)], simm(instr))
	case 12: // addic
		a := p.GPR[regA(instr)]
		res := a + simm(instr)
		p.GPR[regD(instr)] = res
		p.SetCarry(res < a)
	case 13: // addic.
		a := p.GPR[regA(instr)]
		res := a + simm(instr)
		p.GPR[regD(instr)] = res
		p.SetCarry(res < a)
		p.SetCR0(res)
	case 14: // addi
		p.GPR[regD(instr)] = p.effectiveAddr(instr)
	case 15: // addis
		v := uimm(instr) << 16
		if a := regA(instr); a != 0 {
			v += p.GPR[a]
		}
		p.GPR[regD(instr)] = v
	case 16: // bcx
		p.branchConditional(instr)
	case 17: // sc
		p.raiseAt(vecSyscall, 0, p.PC+4)
	case 18: // bx
		target := instr & 0x03FFFFFC
		if target&0x02000000 != 0 {
			target |= 0xFC000000 // sign extend LI
		}
		if instr&2 == 0 {
			target += p.PC
		}
		if instr&1 != 0 {
			p.LR = p.PC + 4
		}
		p.PC = target
		p.branched = true
	case 19:
		p.executeOp19(instr)
	case 20: // rlwimi
		sh, mb, me := uint(regB(instr)), regC(instr), int(instr>>1)&31
		m := maskBE(mb, me)
		r := bits.RotateLeft32(p.GPR[regD(instr)], int(sh))
		res := (r & m) | (p.GPR[regA(instr)] &^ m)
		p.GPR[regA(instr)] = res
		if rcBit(instr) {
			p.SetCR0(res)
		}
	case 21: // rlwinm
		sh, mb, me := uint(regB(instr)), regC(instr), int(instr>>1)&31
		res := bits.RotateLeft32(p.GPR[regD(instr)], int(sh)) & maskBE(mb, me)
		p.GPR[regA(instr)] = res
		if rcBit(instr) {
			p.SetCR0(res)
		}
	case 23: // rlwnm
		sh := int(p.GPR[regB(instr)] & 31)
		mb, me := regC(instr), int(instr>>1)&31
		res := bits.RotateLeft32(p.GPR[regD(instr)], sh) & maskBE(mb, me)
		p.GPR[regA(instr)] = res
		if rcBit(instr) {
			p.SetCR0(res)
		}
	case 24: // ori
		p.GPR[regA(instr)] = p.GPR[regD(instr)] | uimm(instr)
	case 25: // oris
		p.GPR[regA(instr)] = p.GPR[regD(instr)] | uimm(instr)<<16
	case 26: // xori
		p.GPR[regA(instr)] = p.GPR[regD(instr)] ^ uimm(instr)
	case 27: // xoris
		p.GPR[regA(instr)] = p.GPR[regD(instr)] ^ uimm(instr)<<16
	case 28: // andi.
		res := p.GPR[regD(instr)] & uimm(instr)
		p.GPR[regA(instr)] = res
		p.SetCR0(res)
	case 29: // andis.
		res := p.GPR[regD(instr)] & (uimm(instr) << 16)
		p.GPR[regA(instr)] = res
		p.SetCR0(res)
	case 31:
		p.executeOp31(instr)
	case 32, 33, 34, 35, 36, 37, 38, 39,
		40, 41, 42, 43, 44, 45, 46, 47:
		p.executeLoadStore(instr)
	case 48, 49, 50, 51, 52, 53, 54, 55:
		p.executeFPLoadStore(instr)
	case 59:
		p.checkFPAvailable()
		p.executeOp59(instr)
	case 63:
		p.checkFPAvailable()
		p.executeOp63(instr)
	default:
		p.illegal()
	}
}

// maskBE builds the rotate mask from big-endian bit positions mb..me. A
// wrapped mask (mb > me) selects everything outside me+1..mb-1.
func maskBE(mb, me int) uint32 {
	m1 := uint32(0xFFFFFFFF) >> uint(mb)
	m2 := ^(uint32(0x7FFFFFFF) >> uint(me))
	if mb <= me {
		return m1 & m2
	}
	return m1 | m2
}

func (p *CPU) cmpSigned(crf int, a, b uint32) {
	var f uint32
	switch {
	case int32(a) < int32(b):
		f = 8
	case int32(a) > int32(b):
		f = 4
	default:
		f = 2
	}
	if p.XER&processor.XERSO != 0 {
		f |= 1
	}
	p.SetCRField(crf, f)
}

func (p *CPU) cmpUnsigned(crf int, a, b uint32) {
	var f uint32
	switch {
	case a < b:
		f = 8
	case a > b:
		f = 4
	default:
		f = 2
	}
	if p.XER&processor.XERSO != 0 {
		f |= 1
	}
	p.SetCRField(crf, f)
}

func (p *CPU) trapCheck(to int, a, b uint32) {
	sa, sb := int32(a), int32(b)
	if (to&0x10 != 0 && sa < sb) ||
		(to&0x08 != 0 && sa > sb) ||
		(to&0x04 != 0 && a == b) ||
		(to&0x02 != 0 && a < b) ||
		(to&0x01 != 0 && a > b) {
		p.raise(vecProgram, srr1Trap)
	}
}

func (p *CPU) branchConditional(instr uint32) {
	bo, bi := regD(instr), regA(instr)

	ctrOK := true
	if bo&4 == 0 {
		p.CTR--
		ctrOK = (p.CTR != 0) != (bo&2 != 0)
	}
	condOK := bo&0x10 != 0 || p.crBit(bi) == (bo&8 != 0)

	if instr&1 != 0 {
		p.LR = p.PC + 4
	}
	if ctrOK && condOK {
		target := simm(instr) &^ 3
		if instr&2 == 0 {
			target += p.PC
		}
		p.PC = target
		p.branched = true
	}
}

func (p *CPU) executeOp19(instr uint32) {
	switch (instr >> 1) & 0x3FF {
	case 0: // mcrf
		p.SetCRField(regD(instr)>>2, p.CRField(regA(instr)>>2))
	case 16: // bclrx
		bo, bi := regD(instr), regA(instr)
		ctrOK := true
		if bo&4 == 0 {
			p.CTR--
			ctrOK = (p.CTR != 0) != (bo&2 != 0)
		}
		condOK := bo&0x10 != 0 || p.crBit(bi) == (bo&8 != 0)
		target := p.LR &^ 3
		if instr&1 != 0 {
			p.LR = p.PC + 4
		}
		if ctrOK && condOK {
			p.PC = target
			p.branched = true
		}
	case 33: // crnor
		p.setCRBit(regD(instr), !(p.crBit(regA(instr)) || p.crBit(regB(instr))))
	case 50: // rfi
		p.privileged()
		p.returnFromInterrupt()
	case 129: // crandc
		p.setCRBit(regD(instr), p.crBit(regA(instr)) && !p.crBit(regB(instr)))
	case 150: // isync
	case 193: // crxor
		p.setCRBit(regD(instr), p.crBit(regA(instr)) != p.crBit(regB(instr)))
	case 225: // crnand
		p.setCRBit(regD(instr), !(p.crBit(regA(instr)) && p.crBit(regB(instr))))
	case 257: // crand
		p.setCRBit(regD(instr), p.crBit(regA(instr)) && p.crBit(regB(instr)))
	case 289: // creqv
		p.setCRBit(regD(instr), p.crBit(regA(instr)) == p.crBit(regB(instr)))
	case 417: // crorc
		p.setCRBit(regD(instr), p.crBit(regA(instr)) || !p.crBit(regB(instr)))
	case 449: // cror
		p.setCRBit(regD(instr), p.crBit(regA(instr)) || p.crBit(regB(instr)))
	case 528: // bcctrx
		bo, bi := regD(instr), regA(instr)
		condOK := bo&0x10 != 0 || p.crBit(bi) == (bo&8 != 0)
		if instr&1 != 0 {
			p.LR = p.PC + 4
		}
		if condOK {
			p.PC = p.CTR &^ 3
			p.branched = true
		}
	default:
		p.illegal()
	}
}

func (p *CPU) executeOp31(instr uint32) {
	d, a, b := regD(instr), regA(instr), regB(instr)

	switch (instr >> 1) & 0x3FF {
	case 0: // cmp
		p.cmpSigned(d>>2, p.GPR[a], p.GPR[b])
	case 4: // tw
		p.trapCheck(d, p.GPR[a], p.GPR[b])
	case 8, 520: // subfcx
		va, vb := p.GPR[a], p.GPR[b]
		res := vb - va
		p.GPR[d] = res
		p.SetCarry(vb >= va)
		p.finishArith(instr, res, addOverflow(^va, vb, res))
	case 10, 522: // addcx
		va, vb := p.GPR[a], p.GPR[b]
		res := va + vb
		p.GPR[d] = res
		p.SetCarry(res < va)
		p.finishArith(instr, res, addOverflow(va, vb, res))
	case 11: // mulhwu
		p.GPR[d] = uint32(uint64(p.GPR[a]) * uint64(p.GPR[b]) >> 32)
		if rcBit(instr) {
			p.SetCR0(p.GPR[d])
		}
	case 19: // mfcr
		p.GPR[d] = p.CR
	case 20: // lwarx
		ea := p.effectiveAddrX(instr)
		if ea&3 != 0 {
			p.alignmentFault(ea)
		}
		p.GPR[d] = uint32(p.readData(ea, 4))
		p.resValid = true
		p.resAddr = ea
	case 23: // lwzx
		p.GPR[d] = uint32(p.readData(p.effectiveAddrX(instr), 4))
	case 24: // slw
		sh := p.GPR[b] & 0x3F
		if sh > 31 {
			p.GPR[a] = 0
		} else {
			p.GPR[a] = p.GPR[d] << sh
		}
		if rcBit(instr) {
			p.SetCR0(p.GPR[a])
		}
	case 26: // cntlzw
		p.GPR[a] = uint32(bits.LeadingZeros32(p.GPR[d]))
		if rcBit(instr) {
			p.SetCR0(p.GPR[a])
		}
	case 28: // and
		p.logical(instr, p.GPR[d]&p.GPR[b])
	case 32: // cmpl
		p.cmpUnsigned(d>>2, p.GPR[a], p.GPR[b])
	case 40, 552: // subfx
		va, vb := p.GPR[a], p.GPR[b]
		res := vb - va
		p.GPR[d] = res
		p.finishArith(instr, res, addOverflow(^va, vb, res))
	case 54: // dcbst
	case 55: // lwzux
		ea := p.updateAddrX(instr)
		p.GPR[d] = uint32(p.readData(ea, 4))
		p.GPR[a] = ea
	case 60: // andc
		p.logical(instr, p.GPR[d]&^p.GPR[b])
	case 75: // mulhw
		p.GPR[d] = uint32(uint64(int64(int32(p.GPR[a]))*int64(int32(p.GPR[b]))) >> 32)
		if rcBit(instr) {
			p.SetCR0(p.GPR[d])
		}
	case 83: // mfmsr
		p.privileged()
		p.GPR[d] = p.MSR
	case 86: // dcbf
	case 87: // lbzx
		p.GPR[d] = uint32(p.readData(p.effectiveAddrX(instr), 1))
	case 104, 616: // negx
		va := p.GPR[a]
		res := -va
		p.GPR[d] = res
		p.finishArith(instr, res, va == 0x80000000)
	case 119: // lbzux
		ea := p.updateAddrX(instr)
		p.GPR[d] = uint32(p.readData(ea, 1))
		p.GPR[a] = ea
	case 124: // nor
		p.logical(instr, ^(p.GPR[d] | p.GPR[b]))
	case 136, 648: // subfex
		va, vb := p.GPR[a], p.GPR[b]
		t := uint64(^va) + uint64(vb) + b2u64(p.Carry())
		res := uint32(t)
		p.GPR[d] = res
		p.SetCarry(t>>32 != 0)
		p.finishArith(instr, res, addOverflow(^va, vb, res))
	case 138, 650: // addex
		va, vb := p.GPR[a], p.GPR[b]
		t := uint64(va) + uint64(vb) + b2u64(p.Carry())
		res := uint32(t)
		p.GPR[d] = res
		p.SetCarry(t>>32 != 0)
		p.finishArith(instr, res, addOverflow(va, vb, res))
	case 144: // mtcrf
		crm := (instr >> 12) & 0xFF
		var mask uint32
		for i := 0; i < 8; i++ {
			if crm&(0x80>>uint(i)) != 0 {
				mask |= 0xF0000000 >> uint(i*4)
			}
		}
		p.CR = (p.CR &^ mask) | (p.GPR[d] & mask)
	case 146: // mtmsr
		p.privileged()
		p.MSR = p.GPR[d]
		p.flushTLB()
	case 150: // stwcx.
		ea := p.effectiveAddrX(instr)
		if ea&3 != 0 {
			p.alignmentFault(ea)
		}
		f := uint32(0)
		if p.XER&processor.XERSO != 0 {
			f = 1
		}
		if p.resValid && p.resAddr&^0x1F == ea&^0x1F {
			p.writeData(ea, 4, uint64(p.GPR[d]))
			f |= 2
		}
		p.resValid = false
		p.SetCRField(0, f)
	case 151: // stwx
		p.writeData(p.effectiveAddrX(instr), 4, uint64(p.GPR[d]))
	case 183: // stwux
		ea := p.updateAddrX(instr)
		p.writeData(ea, 4, uint64(p.GPR[d]))
		p.GPR[a] = ea
	case 200, 712: // subfzex
		va := p.GPR[a]
		t := uint64(^va) + b2u64(p.Carry())
		res := uint32(t)
		p.GPR[d] = res
		p.SetCarry(t>>32 != 0)
		p.finishArith(instr, res, addOverflow(^va, 0, res))
	case 202, 714: // addzex
		va := p.GPR[a]
		t := uint64(va) + b2u64(p.Carry())
		res := uint32(t)
		p.GPR[d] = res
		p.SetCarry(t>>32 != 0)
		p.finishArith(instr, res, addOverflow(va, 0, res))
	case 210: // mtsr
		p.privileged()
		p.SR[(instr>>16)&0xF] = p.GPR[d]
		p.flushTLB()
	case 215: // stbx
		p.writeData(p.effectiveAddrX(instr), 1, uint64(p.GPR[d]&0xFF))
	case 232, 744: // subfmex
		va := p.GPR[a]
		t := uint64(^va) + 0xFFFFFFFF + b2u64(p.Carry())
		res := uint32(t)
		p.GPR[d] = res
		p.SetCarry(t>>32 != 0)
		p.finishArith(instr, res, addOverflow(^va, 0xFFFFFFFF, res))
	case 234, 746: // addmex
		va := p.GPR[a]
		t := uint64(va) + 0xFFFFFFFF + b2u64(p.Carry())
		res := uint32(t)
		p.GPR[d] = res
		p.SetCarry(t>>32 != 0)
		p.finishArith(instr, res, addOverflow(va, 0xFFFFFFFF, res))
	case 235, 747: // mullwx
		prod := int64(int32(p.GPR[a])) * int64(int32(p.GPR[b]))
		res := uint32(prod)
		p.GPR[d] = res
		p.finishArith(instr, res, prod != int64(int32(res)))
	case 242: // mtsrin
		p.privileged()
		p.SR[p.GPR[b]>>28] = p.GPR[d]
		p.flushTLB()
	case 246: // dcbtst
	case 247: // stbux
		ea := p.updateAddrX(instr)
		p.writeData(ea, 1, uint64(p.GPR[d]&0xFF))
		p.GPR[a] = ea
	case 266, 778: // addx
		va, vb := p.GPR[a], p.GPR[b]
		res := va + vb
		p.GPR[d] = res
		p.finishArith(instr, res, addOverflow(va, vb, res))
	case 278: // dcbt
	case 279: // lhzx
		p.GPR[d] = uint32(p.readData(p.effectiveAddrX(instr), 2))
	case 284: // eqv
		p.logical(instr, ^(p.GPR[d] ^ p.GPR[b]))
	case 306: // tlbie
		p.privileged()
		p.flushTLBEntry(p.GPR[b])
	case 311: // lhzux
		ea := p.updateAddrX(instr)
		p.GPR[d] = uint32(p.readData(ea, 2))
		p.GPR[a] = ea
	case 316: // xor
		p.logical(instr, p.GPR[d]^p.GPR[b])
	case 339: // mfspr
		p.GPR[d] = p.readSPR(sprNum(instr))
	case 343: // lhax
		p.GPR[d] = uint32(int32(int16(p.readData(p.effectiveAddrX(instr), 2))))
	case 370: // tlbia
		p.privileged()
		p.flushTLB()
	case 371: // mftb
		switch sprNum(instr) {
		case 268:
			p.GPR[d] = p.TBL
		case 269:
			p.GPR[d] = p.TBU
		default:
			p.illegal()
		}
	case 375: // lhaux
		ea := p.updateAddrX(instr)
		p.GPR[d] = uint32(int32(int16(p.readData(ea, 2))))
		p.GPR[a] = ea
	case 407: // sthx
		p.writeData(p.effectiveAddrX(instr), 2, uint64(p.GPR[d]&0xFFFF))
	case 412: // orc
		p.logical(instr, p.GPR[d]|^p.GPR[b])
	case 439: // sthux
		ea := p.updateAddrX(instr)
		p.writeData(ea, 2, uint64(p.GPR[d]&0xFFFF))
		p.GPR[a] = ea
	case 444: // or
		p.logical(instr, p.GPR[d]|p.GPR[b])
	case 459, 971: // divwux
		vb := p.GPR[b]
		var res uint32
		ov := vb == 0
		if !ov {
			res = p.GPR[a] / vb
		}
		p.GPR[d] = res
		p.finishArith(instr, res, ov)
	case 467: // mtspr
		p.writeSPR(sprNum(instr), p.GPR[d])
	case 470: // dcbi
		p.privileged()
	case 476: // nand
		p.logical(instr, ^(p.GPR[d] & p.GPR[b]))
	case 491, 1003: // divwx
		va, vb := int32(p.GPR[a]), int32(p.GPR[b])
		var res uint32
		ov := vb == 0 || (va == -0x80000000 && vb == -1)
		if !ov {
			res = uint32(va / vb)
		}
		p.GPR[d] = res
		p.finishArith(instr, res, ov)
	case 512: // mcrxr
		p.SetCRField(d>>2, p.XER>>28)
		p.XER &^= 0xF0000000
	case 533: // lswx
		p.loadString(instr, p.effectiveAddrX(instr), int(p.XER&0x7F))
	case 534: // lwbrx
		v := uint32(p.readData(p.effectiveAddrX(instr), 4))
		p.GPR[d] = bits.ReverseBytes32(v)
	case 536: // srw
		sh := p.GPR[b] & 0x3F
		if sh > 31 {
			p.GPR[a] = 0
		} else {
			p.GPR[a] = p.GPR[d] >> sh
		}
		if rcBit(instr) {
			p.SetCR0(p.GPR[a])
		}
	case 566: // tlbsync
	case 595: // mfsr
		p.privileged()
		p.GPR[d] = p.SR[(instr>>16)&0xF]
	case 597: // lswi
		n := b
		if n == 0 {
			n = 32
		}
		ea := uint32(0)
		if a != 0 {
			ea = p.GPR[a]
		}
		p.loadString(instr, ea, n)
	case 598: // sync
	case 659: // mfsrin
		p.privileged()
		p.GPR[d] = p.SR[p.GPR[b]>>28]
	case 661: // stswx
		p.storeString(instr, p.effectiveAddrX(instr), int(p.XER&0x7F))
	case 662: // stwbrx
		p.writeData(p.effectiveAddrX(instr), 4, uint64(bits.ReverseBytes32(p.GPR[d])))
	case 725: // stswi
		n := b
		if n == 0 {
			n = 32
		}
		ea := uint32(0)
		if a != 0 {
			ea = p.GPR[a]
		}
		p.storeString(instr, ea, n)
	case 790: // lhbrx
		v := uint16(p.readData(p.effectiveAddrX(instr), 2))
		p.GPR[d] = uint32(bits.ReverseBytes16(v))
	case 792: // sraw
		sh := p.GPR[b] & 0x3F
		rs := p.GPR[d]
		if sh > 31 {
			p.GPR[a] = uint32(int32(rs) >> 31)
			p.SetCarry(int32(rs) < 0 && rs != 0)
		} else {
			p.GPR[a] = uint32(int32(rs) >> sh)
			p.SetCarry(int32(rs) < 0 && sh != 0 && rs&((1<<sh)-1) != 0)
		}
		if rcBit(instr) {
			p.SetCR0(p.GPR[a])
		}
	case 824: // srawi
		sh := uint32(b)
		rs := p.GPR[d]
		res := uint32(int32(rs) >> sh)
		p.GPR[a] = res
		p.SetCarry(int32(rs) < 0 && sh != 0 && rs&((1<<sh)-1) != 0)
		if rcBit(instr) {
			p.SetCR0(res)
		}
	case 854: // eieio
	case 918: // sthbrx
		p.writeData(p.effectiveAddrX(instr), 2, uint64(bits.ReverseBytes16(uint16(p.GPR[d]))))
	case 922: // extsh
		p.logical(instr, uint32(int32(int16(p.GPR[d]))))
	case 954: // extsb
		p.logical(instr, uint32(int32(int8(p.GPR[d]))))
	case 982: // icbi
	case 535, 567, 599, 631, 663, 695, 727, 759, 983: // FP indexed load/store
		p.executeFPIndexed(instr)
	case 1014: // dcbz
		p.cacheBlockZero(p.effectiveAddrX(instr))
	default:
		p.illegal()
	}
}

// logical stores the result of a logical op into rA and optionally CR0.
func (p *CPU) logical(instr uint32, res uint32) {
	p.GPR[regA(instr)] = res
	if rcBit(instr) {
		p.SetCR0(res)
	}
}

// finishArith applies the common Rc and OE tail of XO-form arithmetic.
func (p *CPU) finishArith(instr uint32, res uint32, ov bool) {
	if oeBit(instr) {
		p.SetOverflow(ov)
	}
	if rcBit(instr) {
		p.SetCR0(res)
	}
}

func b2u64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func sprNum(instr uint32) int {
	return int((instr>>16)&0x1F | (instr>>6)&0x3E0)
}

func (p *CPU) readSPR(n int) uint32 {
	switch n {
	case 1:
		return p.XER
	case 8:
		return p.LR
	case 9:
		return p.CTR
	}

	p.privileged()
	switch n {
	case 18:
		return p.DSISR
	case 19:
		return p.DAR
	case 22:
		return p.DEC
	case 25:
		return p.SDR1
	case 26:
		return p.SRR0
	case 27:
		return p.SRR1
	case 272, 273, 274, 275:
		return p.SPRG[n-272]
	case 282:
		return 0 // EAR
	case 287:
		return p.PVR
	case 528, 530, 532, 534:
		return p.IBAT[(n-528)/2].Upper
	case 529, 531, 533, 535:
		return p.IBAT[(n-529)/2].Lower
	case 536, 538, 540, 542:
		return p.DBAT[(n-536)/2].Upper
	case 537, 539, 541, 543:
		return p.DBAT[(n-537)/2].Lower
	case 1008:
		return p.HID0
	case 1009:
		return p.HID1
	default:
		log.Printf("reading unimplemented SPR %d", n)
		return 0
	}
}

func (p *CPU) writeSPR(n int, v uint32) {
	switch n {
	case 1:
		p.XER = v
		return
	case 8:
		p.LR = v
		return
	case 9:
		p.CTR = v
		return
	}

	p.privileged()
	switch n {
	case 18:
		p.DSISR = v
	case 19:
		p.DAR = v
	case 22:
		p.DEC = v
		if v&0x80000000 != 0 {
			p.decPending = true
		}
	case 25:
		p.SDR1 = v
		p.flushTLB()
	case 26:
		p.SRR0 = v
	case 27:
		p.SRR1 = v
	case 272, 273, 274, 275:
		p.SPRG[n-272] = v
	case 282: // EAR
	case 284:
		p.TBL = v
	case 285:
		p.TBU = v
	case 528, 530, 532, 534:
		p.IBAT[(n-528)/2].Upper = v
		p.flushTLB()
	case 529, 531, 533, 535:
		p.IBAT[(n-529)/2].Lower = v
		p.flushTLB()
	case 536, 538, 540, 542:
		p.DBAT[(n-536)/2].Upper = v
		p.flushTLB()
	case 537, 539, 541, 543:
		p.DBAT[(n-537)/2].Lower = v
		p.flushTLB()
	case 1008:
		p.HID0 = v
	case 1009:
		p.HID1 = v
	default:
		log.Printf("writing unimplemented SPR %d: 0x%X", n, v)
	}
}

// cacheBlockZero clears one 32-byte block through the data path.
func (p *CPU) cacheBlockZero(ea uint32) {
	ea &^= 0x1F
	_, flags := p.translate(ea, intentStore)
	if flags&tlbInhibit != 0 {
		p.alignmentFault(ea)
	}
	for i := uint32(0); i < 32; i += 4 {
		p.writeData(ea+i, 4, 0)
	}
}
