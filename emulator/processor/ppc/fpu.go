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
	"math"

	"github.com/andreas-jonsson/virtualmac/emulator/processor"
)

// FPSCR bits.
const (
	fpscrFX     = 1 << 31
	fpscrFEX    = 1 << 30
	fpscrVX     = 1 << 29
	fpscrOX     = 1 << 28
	fpscrUX     = 1 << 27
	fpscrZX     = 1 << 26
	fpscrXX     = 1 << 25
	fpscrVXSNAN = 1 << 24
	fpscrVXISI  = 1 << 23
	fpscrVXIDI  = 1 << 22
	fpscrVXZDZ  = 1 << 21
	fpscrVXIMZ  = 1 << 20
	fpscrVXVC   = 1 << 19
	fpscrFR     = 1 << 18
	fpscrFI     = 1 << 17
	fpscrC      = 1 << 16
	fpscrFL     = 1 << 15
	fpscrFG     = 1 << 14
	fpscrFE     = 1 << 13
	fpscrFU     = 1 << 12
	fpscrVXSOFT = 1 << 10
	fpscrVXSQRT = 1 << 9
	fpscrVXCVI  = 1 << 8
	fpscrVE     = 1 << 7
	fpscrOE     = 1 << 6
	fpscrUE     = 1 << 5
	fpscrZE     = 1 << 4
	fpscrXE     = 1 << 3
	fpscrNI     = 1 << 2

	fpscrRNMask   = 0x3
	fpscrFPRFMask = 0x0001F000
	fpscrFPCCMask = 0x0000F000

	fpscrVXAll = fpscrVXSNAN | fpscrVXISI | fpscrVXIDI | fpscrVXZDZ |
		fpscrVXIMZ | fpscrVXVC | fpscrVXSOFT | fpscrVXSQRT | fpscrVXCVI
)

const defaultQNaN = 0x7FF8000000000000

func (p *CPU) checkFPAvailable() {
	if p.MSR&processor.MSRFP == 0 {
		p.raise(vecFPUnavail, 0)
	}
}

// syncFPSCR recomputes the VX and FEX summaries. FEX is the OR of the
// enabled exception summaries.
func (p *CPU) syncFPSCR() {
	if p.FPSCR&fpscrVXAll != 0 {
		p.FPSCR |= fpscrVX
	} else {
		p.FPSCR &^= fpscrVX
	}
	if p.FPSCR&(p.FPSCR<<22)&0x3E000000 != 0 {
		p.FPSCR |= fpscrFEX
	} else {
		p.FPSCR &^= fpscrFEX
	}
}

// fpException records an exception cause. FX is sticky; an enabled cause
// escalates to the program-exception vector.
func (p *CPU) fpException(cause uint32) {
	p.FPSCR |= cause | fpscrFX
	p.syncFPSCR()
	if p.FPSCR&fpscrFEX != 0 {
		p.raise(vecProgram, srr1FPEnabled)
	}
}

// setFPRF derives the result-class field from v.
func (p *CPU) setFPRF(v float64) {
	var f uint32
	switch {
	case math.IsNaN(v):
		f = fpscrC | fpscrFU
	case math.IsInf(v, 1):
		f = fpscrFG | fpscrFU
	case math.IsInf(v, -1):
		f = fpscrFL | fpscrFU
	case v > 0:
		f = fpscrFG
		if v < 0x1p-1022 {
			f |= fpscrC
		}
	case v < 0:
		f = fpscrFL
		if v > -0x1p-1022 {
			f |= fpscrC
		}
	default: // ±0
		f = fpscrFE
		if math.Signbit(v) {
			f |= fpscrC
		}
	}
	p.FPSCR = (p.FPSCR &^ fpscrFPRFMask) | f
}

// clearFPResult clears the fields the current instruction computes fresh.
func (p *CPU) clearFPResult() {
	p.FPSCR &^= fpscrFPRFMask | fpscrFR | fpscrFI
}

func (p *CPU) updateCR1() {
	p.SetCRField(1, (p.FPSCR>>28)&0xF)
}

func (p *CPU) finishFP(instr uint32, v float64) {
	p.FPR[regD(instr)].SetDouble(v)
	p.setFPRF(v)
	if rcBit(instr) {
		p.updateCR1()
	}
}

func isSNaNBits(b uint64) bool {
	return b&0x7FF0000000000000 == 0x7FF0000000000000 &&
		b&0x000FFFFFFFFFFFFF != 0 &&
		b&0x0008000000000000 == 0
}

func quietNaNBits(b uint64) uint64 {
	return b | 0x0008000000000000
}

// propagateNaN returns the result for an operation with at least one NaN
// operand and records VXSNAN for signalling inputs. Operands are raw FPR
// bits in architectural preference order.
func (p *CPU) propagateNaN(ops ...uint64) float64 {
	p.FPSCR |= fpscrFX
	snan := false
	for _, b := range ops {
		if isSNaNBits(b) {
			snan = true
		}
	}
	if snan {
		p.fpException(fpscrVXSNAN)
	}
	for _, b := range ops {
		if math.IsNaN(math.Float64frombits(b)) {
			return math.Float64frombits(quietNaNBits(b))
		}
	}
	return math.Float64frombits(defaultQNaN)
}

// invalidOp records cause and produces the default QNaN when the exception
// is disabled.
func (p *CPU) invalidOp(cause uint32) float64 {
	p.fpException(cause)
	return math.Float64frombits(defaultQNaN)
}

// roundToSingle rounds a double result to single precision under FPSCR[RN].
// The host only rounds to nearest; directional modes adjust by one ulp.
func (p *CPU) roundToSingle(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return float64(float32(v))
	}
	f32 := float32(v)
	f := float64(f32)
	if f == v {
		return f
	}
	switch p.FPSCR & fpscrRNMask {
	case 1: // toward zero
		if math.Abs(f) > math.Abs(v) {
			f = float64(math.Nextafter32(f32, 0))
		}
	case 2: // toward +inf
		if f < v {
			f = float64(math.Nextafter32(f32, float32(math.Inf(1))))
		}
	case 3: // toward -inf
		if f > v {
			f = float64(math.Nextafter32(f32, float32(math.Inf(-1))))
		}
	}
	return f
}

func (p *CPU) fpOperand(reg int) (float64, uint64) {
	b := p.FPR[reg].Uint64()
	return math.Float64frombits(b), b
}

func (p *CPU) fpAdd(instr uint32, single, negate bool) {
	va, ba := p.fpOperand(regA(instr))
	vb, bb := p.fpOperand(regB(instr))
	p.clearFPResult()

	opb := vb
	if negate {
		opb = -vb
	}

	var res float64
	switch {
	case math.IsNaN(va) || math.IsNaN(vb):
		if math.IsNaN(va) && math.IsNaN(vb) {
			p.fpException(fpscrVXISI)
		}
		res = p.propagateNaN(ba, bb)
	case math.IsInf(va, 0) && math.IsInf(opb, 0) && math.Signbit(va) != math.Signbit(opb):
		res = p.invalidOp(fpscrVXISI)
	default:
		res = va + opb
		if single {
			res = p.roundToSingle(res)
		}
		if math.IsInf(res, 0) && !math.IsInf(va, 0) && !math.IsInf(vb, 0) {
			p.fpException(fpscrOX | fpscrXX)
		}
	}
	p.finishFP(instr, res)
}

func (p *CPU) fpMul(instr uint32, single bool) {
	va, ba := p.fpOperand(regA(instr))
	vc, bc := p.fpOperand(regC(instr))
	p.clearFPResult()

	var res float64
	if math.IsNaN(va) || math.IsNaN(vc) {
		res = p.propagateNaN(ba, bc)
	} else if (va == 0 && math.IsInf(vc, 0)) || (math.IsInf(va, 0) && vc == 0) {
		res = p.invalidOp(fpscrVXIMZ)
	} else {
		res = va * vc
		if single {
			res = p.roundToSingle(res)
		}
		if math.IsInf(res, 0) && !math.IsInf(va, 0) && !math.IsInf(vc, 0) {
			p.fpException(fpscrOX | fpscrXX)
		}
	}
	p.finishFP(instr, res)
}

func (p *CPU) fpDiv(instr uint32, single bool) {
	va, ba := p.fpOperand(regA(instr))
	vb, bb := p.fpOperand(regB(instr))
	p.clearFPResult()

	var res float64
	switch {
	case math.IsNaN(va) || math.IsNaN(vb):
		res = p.propagateNaN(ba, bb)
	case math.IsInf(va, 0) && math.IsInf(vb, 0):
		res = p.invalidOp(fpscrVXIDI)
	case va == 0 && vb == 0:
		res = p.invalidOp(fpscrVXZDZ)
	case vb == 0:
		p.fpException(fpscrZX)
		res = va / vb
	default:
		res = va / vb
		if single {
			res = p.roundToSingle(res)
		}
	}
	p.finishFP(instr, res)
}

// fpFMA implements the fused multiply-add family: frD = ±((frA*frC) ± frB)
// with a single rounding at the end.
func (p *CPU) fpFMA(instr uint32, single, negMul, negAdd bool) {
	va, ba := p.fpOperand(regA(instr))
	vb, bb := p.fpOperand(regB(instr))
	vc, bc := p.fpOperand(regC(instr))
	p.clearFPResult()

	addend := vb
	if negAdd {
		addend = -vb
	}

	var res float64
	switch {
	case math.IsNaN(va) || math.IsNaN(vb) || math.IsNaN(vc):
		res = p.propagateNaN(ba, bc, bb)
	case (va == 0 && math.IsInf(vc, 0)) || (math.IsInf(va, 0) && vc == 0):
		res = p.invalidOp(fpscrVXIMZ)
	case (math.IsInf(va, 0) || math.IsInf(vc, 0)) && math.IsInf(addend, 0) &&
		(math.Signbit(va) != math.Signbit(vc)) != math.Signbit(addend):
		res = p.invalidOp(fpscrVXISI)
	default:
		res = math.FMA(va, vc, addend)
		if single {
			res = p.roundToSingle(res)
		}
		if negMul {
			res = -res
		}
	}
	p.finishFP(instr, res)
}

func (p *CPU) fpSqrt(instr uint32, single bool) {
	vb, bb := p.fpOperand(regB(instr))
	p.clearFPResult()

	var res float64
	switch {
	case math.IsNaN(vb):
		p.propagateNaN(bb)
		res = p.invalidOp(fpscrVXSQRT)
	case vb < 0:
		res = p.invalidOp(fpscrVXSQRT)
	default:
		res = math.Sqrt(vb)
		if single {
			res = p.roundToSingle(res)
		}
	}
	p.finishFP(instr, res)
}

// fpRes is the fres reciprocal estimate: at least 12 fraction bits from the
// single-precision reciprocal.
func (p *CPU) fpRes(instr uint32) {
	vb, bb := p.fpOperand(regB(instr))
	p.clearFPResult()

	var res float64
	switch {
	case math.IsNaN(vb):
		res = p.propagateNaN(bb)
	case vb == 0:
		p.fpException(fpscrZX)
		res = math.Inf(1)
		if math.Signbit(vb) {
			res = math.Inf(-1)
		}
	default:
		res = float64(float32(1.0 / vb))
	}
	p.finishFP(instr, res)
}

// fpRsqrte is the frsqrte reciprocal square-root estimate.
func (p *CPU) fpRsqrte(instr uint32) {
	vb, bb := p.fpOperand(regB(instr))
	p.clearFPResult()

	var res float64
	switch {
	case math.IsNaN(vb):
		res = p.propagateNaN(bb)
	case vb < 0:
		res = p.invalidOp(fpscrVXSQRT)
	case vb == 0:
		p.fpException(fpscrZX)
		res = math.Inf(1)
		if math.Signbit(vb) {
			res = math.Inf(-1)
		}
	default:
		res = 1.0 / math.Sqrt(vb)
	}
	p.finishFP(instr, res)
}

func (p *CPU) fpRound(instr uint32) { // frsp
	vb, bb := p.fpOperand(regB(instr))
	p.clearFPResult()

	var res float64
	if math.IsNaN(vb) {
		res = p.propagateNaN(bb)
	} else {
		res = p.roundToSingle(vb)
	}
	p.finishFP(instr, res)
}

// fpToInt implements fctiw/fctiwz. The result carries the 0xFFF80000
// integer-payload mark in the high word.
func (p *CPU) fpToInt(instr uint32, mode uint32) {
	vb, bb := p.fpOperand(regB(instr))
	p.FPSCR &^= fpscrFR | fpscrFI

	d := regD(instr)
	if math.IsNaN(vb) {
		cause := uint32(fpscrVXCVI)
		if isSNaNBits(bb) {
			cause |= fpscrVXSNAN
		}
		p.fpException(cause)
		p.FPR[d].SetUint64(0xFFF8000080000000)
		if rcBit(instr) {
			p.updateCR1()
		}
		return
	}

	var r float64
	switch mode {
	case 0:
		r = math.RoundToEven(vb)
	case 1:
		r = math.Trunc(vb)
	case 2:
		r = math.Ceil(vb)
	case 3:
		r = math.Floor(vb)
	}

	if r > 2147483647.0 || r < -2147483648.0 {
		p.fpException(fpscrVXCVI)
		if r >= 0 {
			p.FPR[d].SetUint64(0xFFF800007FFFFFFF)
		} else {
			p.FPR[d].SetUint64(0xFFF8000080000000)
		}
	} else {
		if r != vb {
			p.FPSCR |= fpscrFI
		}
		p.FPR[d].SetUint64(0xFFF8000000000000 | uint64(uint32(int32(r))))
	}
	if rcBit(instr) {
		p.updateCR1()
	}
}

// fpCompare implements fcmpu/fcmpo.
func (p *CPU) fpCompare(instr uint32, ordered bool) {
	va, ba := p.fpOperand(regA(instr))
	vb, bb := p.fpOperand(regB(instr))
	crf := regD(instr) >> 2

	var c uint32
	switch {
	case math.IsNaN(va) || math.IsNaN(vb):
		c = 1 // FU
		snan := isSNaNBits(ba) || isSNaNBits(bb)
		if snan {
			p.fpException(fpscrVXSNAN)
		}
		if ordered {
			p.fpException(fpscrVXVC)
		}
	case va < vb:
		c = 8
	case va > vb:
		c = 4
	default:
		c = 2
	}

	p.FPSCR = (p.FPSCR &^ fpscrFPCCMask) | (c << 12)
	p.SetCRField(crf, c)
}

func (p *CPU) executeOp59(instr uint32) {
	switch (instr >> 1) & 0x1F {
	case 18: // fdivs
		p.fpDiv(instr, true)
	case 20: // fsubs
		p.fpAdd(instr, true, true)
	case 21: // fadds
		p.fpAdd(instr, true, false)
	case 22: // fsqrts
		p.fpSqrt(instr, true)
	case 24: // fres
		p.fpRes(instr)
	case 25: // fmuls
		p.fpMul(instr, true)
	case 28: // fmsubs
		p.fpFMA(instr, true, false, true)
	case 29: // fmadds
		p.fpFMA(instr, true, false, false)
	case 30: // fnmsubs
		p.fpFMA(instr, true, true, true)
	case 31: // fnmadds
		p.fpFMA(instr, true, true, false)
	default:
		p.illegal()
	}
}

func (p *CPU) executeOp63(instr uint32) {
	// A-form opcodes live in the 5-bit field; everything else uses the
	// full 10-bit extended opcode.
	switch (instr >> 1) & 0x1F {
	case 18: // fdiv
		p.fpDiv(instr, false)
		return
	case 20: // fsub
		p.fpAdd(instr, false, true)
		return
	case 21: // fadd
		p.fpAdd(instr, false, false)
		return
	case 22: // fsqrt
		p.fpSqrt(instr, false)
		return
	case 23: // fsel
		va := p.FPR[regA(instr)].Double()
		res := p.FPR[regB(instr)].Uint64()
		if va >= -0.0 {
			res = p.FPR[regC(instr)].Uint64()
		}
		p.FPR[regD(instr)].SetUint64(res)
		if rcBit(instr) {
			p.updateCR1()
		}
		return
	case 25: // fmul
		p.fpMul(instr, false)
		return
	case 26: // frsqrte
		p.fpRsqrte(instr)
		return
	case 28: // fmsub
		p.fpFMA(instr, false, false, true)
		return
	case 29: // fmadd
		p.fpFMA(instr, false, false, false)
		return
	case 30: // fnmsub
		p.fpFMA(instr, false, true, true)
		return
	case 31: // fnmadd
		p.fpFMA(instr, false, true, false)
		return
	}

	switch (instr >> 1) & 0x3FF {
	case 0: // fcmpu
		p.fpCompare(instr, false)
	case 12: // frsp
		p.fpRound(instr)
	case 14: // fctiw
		p.fpToInt(instr, p.FPSCR&fpscrRNMask)
	case 15: // fctiwz
		p.fpToInt(instr, 1)
	case 32: // fcmpo
		p.fpCompare(instr, true)
	case 38: // mtfsb1
		b := regD(instr)
		if b == 0 || b > 2 { // FEX and VX cannot be set directly
			p.FPSCR |= 0x80000000 >> uint(b)
		}
		p.syncFPSCR()
		if rcBit(instr) {
			p.updateCR1()
		}
	case 40: // fneg
		p.FPR[regD(instr)].SetUint64(p.FPR[regB(instr)].Uint64() ^ 0x8000000000000000)
		if rcBit(instr) {
			p.updateCR1()
		}
	case 64: // mcrfs
		crfD := regD(instr) >> 2
		crfS := regA(instr) >> 2
		p.SetCRField(crfD, (p.FPSCR>>uint(28-crfS*4))&0xF)
		// Reading clears the exception bits of the source field.
		p.FPSCR &^= (0xF0000000 >> uint(crfS*4)) & (fpscrFX | fpscrOX |
			fpscrUX | fpscrZX | fpscrXX | fpscrVXAll)
		p.syncFPSCR()
	case 70: // mtfsb0
		b := regD(instr)
		if b == 0 || b > 2 {
			p.FPSCR &^= 0x80000000 >> uint(b)
		}
		p.syncFPSCR()
		if rcBit(instr) {
			p.updateCR1()
		}
	case 72: // fmr
		p.FPR[regD(instr)].SetUint64(p.FPR[regB(instr)].Uint64())
		if rcBit(instr) {
			p.updateCR1()
		}
	case 134: // mtfsfi
		crfD := regD(instr) >> 2
		imm := (instr << 16) & 0xF0000000
		mask := (uint32(0xF0000000) >> uint(crfD*4)) &^ (fpscrFEX | fpscrVX)
		p.FPSCR = (p.FPSCR &^ mask) | ((imm >> uint(crfD*4)) & mask)
		p.syncFPSCR()
		if rcBit(instr) {
			p.updateCR1()
		}
	case 136: // fnabs
		p.FPR[regD(instr)].SetUint64(p.FPR[regB(instr)].Uint64() | 0x8000000000000000)
		if rcBit(instr) {
			p.updateCR1()
		}
	case 264: // fabs
		p.FPR[regD(instr)].SetUint64(p.FPR[regB(instr)].Uint64() &^ 0x8000000000000000)
		if rcBit(instr) {
			p.updateCR1()
		}
	case 583: // mffs
		p.FPR[regD(instr)].SetUint64(0xFFF8000000000000 | uint64(p.FPSCR))
		if rcBit(instr) {
			p.updateCR1()
		}
	case 711: // mtfsf
		fm := (instr >> 17) & 0xFF
		var mask uint32
		for i := 0; i < 8; i++ {
			if fm&(0x80>>uint(i)) != 0 {
				mask |= 0xF0000000 >> uint(i*4)
			}
		}
		mask &^= fpscrFEX | fpscrVX
		p.FPSCR = (p.FPSCR &^ mask) | (uint32(p.FPR[regB(instr)].Uint64()) & mask)
		p.syncFPSCR()
		if rcBit(instr) {
			p.updateCR1()
		}
	default:
		p.illegal()
	}
}

// executeFPLoadStore handles the D-form FP loads and stores, primary
// opcodes 48-55.
func (p *CPU) executeFPLoadStore(instr uint32) {
	p.checkFPAvailable()
	d, a := regD(instr), regA(instr)

	switch instr >> 26 {
	case 48: // lfs
		v := uint32(p.readData(p.effectiveAddr(instr), 4))
		p.FPR[d].SetDouble(float64(math.Float32frombits(v)))
	case 49: // lfsu
		ea := p.updateAddr(instr)
		v := uint32(p.readData(ea, 4))
		p.FPR[d].SetDouble(float64(math.Float32frombits(v)))
		p.GPR[a] = ea
	case 50: // lfd
		p.FPR[d].SetUint64(p.readData(p.effectiveAddr(instr), 8))
	case 51: // lfdu
		ea := p.updateAddr(instr)
		p.FPR[d].SetUint64(p.readData(ea, 8))
		p.GPR[a] = ea
	case 52: // stfs
		v := math.Float32bits(float32(p.FPR[d].Double()))
		p.writeData(p.effectiveAddr(instr), 4, uint64(v))
	case 53: // stfsu
		ea := p.updateAddr(instr)
		v := math.Float32bits(float32(p.FPR[d].Double()))
		p.writeData(ea, 4, uint64(v))
		p.GPR[a] = ea
	case 54: // stfd
		p.writeData(p.effectiveAddr(instr), 8, p.FPR[d].Uint64())
	case 55: // stfdu
		ea := p.updateAddr(instr)
		p.writeData(ea, 8, p.FPR[d].Uint64())
		p.GPR[a] = ea
	}
}

// executeFPIndexed handles the X-form FP loads and stores under primary
// opcode 31.
func (p *CPU) executeFPIndexed(instr uint32) {
	p.checkFPAvailable()
	d, a := regD(instr), regA(instr)

	switch (instr >> 1) & 0x3FF {
	case 535: // lfsx
		v := uint32(p.readData(p.effectiveAddrX(instr), 4))
		p.FPR[d].SetDouble(float64(math.Float32frombits(v)))
	case 567: // lfsux
		ea := p.updateAddrX(instr)
		v := uint32(p.readData(ea, 4))
		p.FPR[d].SetDouble(float64(math.Float32frombits(v)))
		p.GPR[a] = ea
	case 599: // lfdx
		p.FPR[d].SetUint64(p.readData(p.effectiveAddrX(instr), 8))
	case 631: // lfdux
		ea := p.updateAddrX(instr)
		p.FPR[d].SetUint64(p.readData(ea, 8))
		p.GPR[a] = ea
	case 663: // stfsx
		v := math.Float32bits(float32(p.FPR[d].Double()))
		p.writeData(p.effectiveAddrX(instr), 4, uint64(v))
	case 695: // stfsux
		ea := p.updateAddrX(instr)
		v := math.Float32bits(float32(p.FPR[d].Double()))
		p.writeData(ea, 4, uint64(v))
		p.GPR[a] = ea
	case 727: // stfdx
		p.writeData(p.effectiveAddrX(instr), 8, p.FPR[d].Uint64())
	case 759: // stfdux
		ea := p.updateAddrX(instr)
		p.writeData(ea, 8, p.FPR[d].Uint64())
		p.GPR[a] = ea
	case 983: // stfiwx
		// The raw low word of the register, no conversion.
		p.writeData(p.effectiveAddrX(instr), 4, p.FPR[d].Uint64()&0xFFFFFFFF)
	}
}
