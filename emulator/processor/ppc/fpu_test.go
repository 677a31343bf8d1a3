/*
Copyright (c) 2019-2020 Andreas T Jonsson

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

package ppc

import (
	"math"
	"testing"

	"github.com/andreas-jonsson/virtualmac/emulator/processor"
)

func opA(op, d, a, b, c, xo int, rc bool) uint32 {
	v := uint32(op)<<26 | uint32(d)<<21 | uint32(a)<<16 | uint32(b)<<11 |
		uint32(c)<<6 | uint32(xo)<<1
	if rc {
		v |= 1
	}
	return v
}

const qnanBits = 0x7FF8000000000000

func TestFaddNaNPropagation(t *testing.T) {
	p := testCPU(t)
	p.FPR[4].SetUint64(qnanBits)
	p.FPR[5].SetDouble(1.0)
	load(t, p, opA(63, 3, 4, 5, 0, 21, true)) // fadd. f3,f4,f5
	step(t, p, 1)

	if got := p.FPR[3].Uint64(); got != qnanBits {
		t.Fatalf("frD: got 0x%X", got)
	}
	if p.FPSCR&fpscrFX == 0 {
		t.Fatal("FX not set")
	}
	if p.FPSCR&fpscrFU == 0 {
		t.Fatal("FPCC[FU] not set")
	}
	if got := p.CRField(1); got != (p.FPSCR>>28)&0xF {
		t.Fatalf("CR1: got %d", got)
	}
}

func TestFctiwzOverflow(t *testing.T) {
	p := testCPU(t)
	p.FPR[4].SetDouble(3.0e10)
	load(t, p, opX(63, 3, 0, 4, 15, false)) // fctiwz f3,f4
	step(t, p, 1)

	if got := p.FPR[3].Uint64(); got != 0xFFF800007FFFFFFF {
		t.Fatalf("frD: got 0x%X", got)
	}
	want := uint32(fpscrFX | fpscrVX | fpscrVXCVI)
	if p.FPSCR&want != want {
		t.Fatalf("FPSCR: got 0x%X", p.FPSCR)
	}
}

func TestFctiwRoundingModes(t *testing.T) {
	p := testCPU(t)

	cases := []struct {
		rn   uint32
		in   float64
		want uint32
	}{
		{0, 2.5, 2}, {0, 3.5, 4}, {0, -2.5, 0xFFFFFFFE},
		{1, 2.9, 2}, {1, -2.9, 0xFFFFFFFE},
		{2, 2.1, 3}, {2, -2.9, 0xFFFFFFFE},
		{3, 2.9, 2}, {3, -2.1, 0xFFFFFFFD},
	}
	for _, c := range cases {
		p.FPSCR = c.rn
		p.FPR[4].SetDouble(c.in)
		load(t, p, opX(63, 3, 0, 4, 14, false)) // fctiw f3,f4
		step(t, p, 1)

		if got := uint32(p.FPR[3].Uint64()); got != c.want {
			t.Fatalf("RN=%d in=%g: got 0x%X, want 0x%X", c.rn, c.in, got, c.want)
		}
		if hi := uint32(p.FPR[3].Uint64() >> 32); hi != 0xFFF80000 {
			t.Fatalf("integer payload mark: got 0x%X", hi)
		}
	}
}

func TestFctiwNaN(t *testing.T) {
	p := testCPU(t)
	p.FPR[4].SetUint64(qnanBits)
	load(t, p, opX(63, 3, 0, 4, 14, false))
	step(t, p, 1)

	if got := p.FPR[3].Uint64(); got != 0xFFF8000080000000 {
		t.Fatalf("frD: got 0x%X", got)
	}
	if p.FPSCR&fpscrVXCVI == 0 {
		t.Fatal("VXCVI not set")
	}
}

// fsel must not raise for any operand, NaN included.
func TestFselNeverFaults(t *testing.T) {
	p := testCPU(t)

	operands := []uint64{
		qnanBits,
		0x7FF0000000000001, // SNaN
		math.Float64bits(math.Inf(1)),
		math.Float64bits(math.Inf(-1)),
		math.Float64bits(0.0),
		math.Float64bits(-1.5),
	}
	for _, a := range operands {
		for _, b := range operands {
			p.FPSCR = 0
			p.FPR[4].SetUint64(a)
			p.FPR[5].SetUint64(b)
			p.FPR[6].SetDouble(2.0)
			load(t, p, opA(63, 3, 4, 5, 6, 23, false)) // fsel f3,f4,f5,f6
			step(t, p, 1)

			if p.FPSCR&(fpscrVX|fpscrVXAll) != 0 {
				t.Fatalf("fsel set VX bits: 0x%X", p.FPSCR)
			}
			if p.PC != codeBase+4 {
				t.Fatalf("fsel faulted, PC=0x%X", p.PC)
			}

			want := b
			if va := math.Float64frombits(a); va >= -0.0 {
				want = p.FPR[6].Uint64()
			}
			if got := p.FPR[3].Uint64(); got != want {
				t.Fatalf("fsel result: got 0x%X, want 0x%X", got, want)
			}
		}
	}
}

func TestInvalidOperationCauses(t *testing.T) {
	inf := math.Inf(1)

	cases := []struct {
		name  string
		instr uint32
		a, b  float64
		cause uint32
	}{
		{"inf-inf", opA(63, 3, 4, 5, 0, 20, false), inf, inf, fpscrVXISI},   // fsub
		{"inf+(-inf)", opA(63, 3, 4, 5, 0, 21, false), inf, -inf, fpscrVXISI}, // fadd
		{"inf/inf", opA(63, 3, 4, 5, 0, 18, false), inf, inf, fpscrVXIDI},   // fdiv
		{"0/0", opA(63, 3, 4, 5, 0, 18, false), 0, 0, fpscrVXZDZ},           // fdiv
	}
	for _, c := range cases {
		p := testCPU(t)
		p.FPR[4].SetDouble(c.a)
		p.FPR[5].SetDouble(c.b)
		load(t, p, c.instr)
		step(t, p, 1)

		if p.FPSCR&c.cause == 0 {
			t.Fatalf("%s: cause bit missing, FPSCR=0x%X", c.name, p.FPSCR)
		}
		if p.FPSCR&(fpscrFX|fpscrVX) != fpscrFX|fpscrVX {
			t.Fatalf("%s: FX|VX missing, FPSCR=0x%X", c.name, p.FPSCR)
		}
		if got := p.FPR[3].Uint64(); got != defaultQNaN {
			t.Fatalf("%s: expected default QNaN, got 0x%X", c.name, got)
		}
	}
}

func TestMulZeroByInf(t *testing.T) {
	p := testCPU(t)
	p.FPR[4].SetDouble(0)
	p.FPR[6].SetDouble(math.Inf(1))
	load(t, p, opA(63, 3, 4, 0, 6, 25, false)) // fmul f3,f4,f6
	step(t, p, 1)

	if p.FPSCR&fpscrVXIMZ == 0 {
		t.Fatalf("VXIMZ missing, FPSCR=0x%X", p.FPSCR)
	}
}

func TestSqrtNegative(t *testing.T) {
	p := testCPU(t)
	p.FPR[4].SetDouble(-1.0)
	load(t, p, opX(63, 3, 0, 4, 22, false)) // fsqrt
	step(t, p, 1)

	if p.FPSCR&fpscrVXSQRT == 0 {
		t.Fatalf("VXSQRT missing, FPSCR=0x%X", p.FPSCR)
	}

	// sqrt(-0) is -0, not invalid.
	p.FPSCR = 0
	p.FPR[4].SetDouble(math.Copysign(0, -1))
	load(t, p, opX(63, 3, 0, 4, 22, false))
	step(t, p, 1)
	if p.FPSCR&fpscrVXSQRT != 0 {
		t.Fatal("sqrt(-0) must not be invalid")
	}
	if !math.Signbit(p.FPR[3].Double()) || p.FPR[3].Double() != 0 {
		t.Fatalf("sqrt(-0): got %g", p.FPR[3].Double())
	}
}

func TestCompareOrdered(t *testing.T) {
	p := testCPU(t)
	p.FPR[4].SetUint64(qnanBits)
	p.FPR[5].SetDouble(1.0)
	load(t, p, opX(63, 0, 4, 5, 32, false)) // fcmpo cr0,f4,f5
	step(t, p, 1)

	if p.FPSCR&fpscrVXVC == 0 {
		t.Fatalf("VXVC missing, FPSCR=0x%X", p.FPSCR)
	}
	if p.CRField(0) != 1 { // FU
		t.Fatalf("CR0: got %d", p.CRField(0))
	}

	// Unordered compare takes no VXVC for quiet NaN.
	p.FPSCR = 0
	load(t, p, opX(63, 0, 4, 5, 0, false)) // fcmpu
	step(t, p, 1)
	if p.FPSCR&fpscrVXVC != 0 {
		t.Fatal("fcmpu must not set VXVC for QNaN")
	}

	p.FPSCR = 0
	p.FPR[4].SetDouble(-2.0)
	load(t, p, opX(63, 0, 4, 5, 0, false))
	step(t, p, 1)
	if p.CRField(0) != 8 { // LT
		t.Fatalf("fcmpu LT: got %d", p.CRField(0))
	}
	if p.FPSCR&fpscrFPCCMask != fpscrFL {
		t.Fatalf("FPCC: got 0x%X", p.FPSCR&fpscrFPCCMask)
	}
}

func TestZeroDivide(t *testing.T) {
	p := testCPU(t)
	p.FPR[4].SetDouble(1.0)
	p.FPR[5].SetDouble(0.0)
	load(t, p, opA(63, 3, 4, 5, 0, 18, false)) // fdiv
	step(t, p, 1)

	if p.FPSCR&fpscrZX == 0 {
		t.Fatalf("ZX missing, FPSCR=0x%X", p.FPSCR)
	}
	if !math.IsInf(p.FPR[3].Double(), 1) {
		t.Fatalf("1/0: got %g", p.FPR[3].Double())
	}
}

func TestResultClasses(t *testing.T) {
	cases := []struct {
		a, b float64
		want uint32
	}{
		{1, 2, fpscrFG},
		{-1, -2, fpscrFL},
		{1, -1, fpscrFE},
		{math.Inf(1), 1, fpscrFG | fpscrFU},
		{math.Inf(-1), -1, fpscrFL | fpscrFU},
	}
	for _, c := range cases {
		p := testCPU(t)
		p.FPR[4].SetDouble(c.a)
		p.FPR[5].SetDouble(c.b)
		load(t, p, opA(63, 3, 4, 5, 0, 21, false)) // fadd
		step(t, p, 1)

		if got := p.FPSCR & fpscrFPCCMask; got != c.want {
			t.Fatalf("%g+%g: FPCC got 0x%X, want 0x%X", c.a, c.b, got, c.want)
		}
	}
}

func TestRoundToSingleDirectional(t *testing.T) {
	p := testCPU(t)

	v := 1.0 + 0x1p-40 // between single-precision neighbours
	up := float64(math.Nextafter32(1.0, 2))

	cases := []struct {
		rn   uint32
		want float64
	}{
		{0, 1.0}, // nearest
		{1, 1.0}, // toward zero
		{2, up},  // toward +inf
		{3, 1.0}, // toward -inf
	}
	for _, c := range cases {
		p.FPSCR = c.rn
		p.FPR[4].SetDouble(v)
		load(t, p, opX(63, 3, 0, 4, 12, false)) // frsp f3,f4
		step(t, p, 1)

		if got := p.FPR[3].Double(); got != c.want {
			t.Fatalf("RN=%d: got %g, want %g", c.rn, got, c.want)
		}
	}
}

func TestFMASingleRounding(t *testing.T) {
	p := testCPU(t)

	a := 1.0 + 0x1p-30
	p.FPR[4].SetDouble(a)
	p.FPR[5].SetDouble(-1.0)
	p.FPR[6].SetDouble(a)
	load(t, p, opA(63, 3, 4, 5, 6, 29, false)) // fmadd f3 = f4*f6 + f5
	step(t, p, 1)

	want := 0x1p-29 + 0x1p-60 // exact with a fused multiply-add
	if got := p.FPR[3].Double(); got != want {
		t.Fatalf("fmadd: got %g, want %g", got, want)
	}
}

func TestFPUnavailable(t *testing.T) {
	p := testCPU(t)
	p.MSR &^= processor.MSRFP
	load(t, p, opA(63, 3, 4, 5, 0, 21, false))
	step(t, p, 1)

	if p.PC != vecFPUnavail {
		t.Fatalf("expected FP-unavailable exception, PC=0x%X", p.PC)
	}
}

func TestMoveAndSignOps(t *testing.T) {
	p := testCPU(t)
	p.FPR[4].SetDouble(-2.5)
	load(t, p,
		opX(63, 3, 0, 4, 264, false), // fabs
		opX(63, 5, 0, 4, 40, false),  // fneg
		opX(63, 6, 0, 4, 136, false), // fnabs
		opX(63, 7, 0, 4, 72, false))  // fmr
	step(t, p, 4)

	if p.FPR[3].Double() != 2.5 || p.FPR[5].Double() != 2.5 ||
		p.FPR[6].Double() != -2.5 || p.FPR[7].Double() != -2.5 {
		t.Fatal("sign ops wrong")
	}

	// fneg on NaN flips only the sign bit.
	p.FPR[4].SetUint64(qnanBits)
	load(t, p, opX(63, 5, 0, 4, 40, false))
	step(t, p, 1)
	if p.FPR[5].Uint64() != qnanBits|0x8000000000000000 {
		t.Fatalf("fneg NaN: got 0x%X", p.FPR[5].Uint64())
	}
}

func TestStfiwxRawBits(t *testing.T) {
	p := testCPU(t)
	p.FPR[3].SetUint64(0xFFF8000012345678)
	p.GPR[4] = 0x3000
	load(t, p, opX(31, 3, 0, 4, 983, false)) // stfiwx f3,0,r4
	step(t, p, 1)

	v, _ := p.bus.Read(0x3000, 4)
	if v != 0x12345678 {
		t.Fatalf("stfiwx: got 0x%X", v)
	}
}

func TestMffsAliasing(t *testing.T) {
	p := testCPU(t)
	p.FPSCR = 0x00000003 // RN = toward -inf
	load(t, p, opX(63, 3, 0, 0, 583, false)) // mffs f3
	step(t, p, 1)

	if got := p.FPR[3].Uint64(); got != 0xFFF8000000000003 {
		t.Fatalf("mffs: got 0x%X", got)
	}
}

func TestMtfsf(t *testing.T) {
	p := testCPU(t)
	p.FPR[4].SetUint64(0xFFF8000000000002) // RN = toward +inf
	// mtfsf 0xFF,f4
	load(t, p, uint32(63)<<26|uint32(0xFF)<<17|uint32(4)<<11|uint32(711)<<1)
	step(t, p, 1)

	if p.FPSCR&fpscrRNMask != 2 {
		t.Fatalf("mtfsf: FPSCR=0x%X", p.FPSCR)
	}
}

func TestMtfsb(t *testing.T) {
	p := testCPU(t)
	// mtfsb1 bit 3 (OX)
	load(t, p, opX(63, 3, 0, 0, 38, false))
	step(t, p, 1)
	if p.FPSCR&fpscrOX == 0 {
		t.Fatalf("mtfsb1: FPSCR=0x%X", p.FPSCR)
	}

	load(t, p, opX(63, 3, 0, 0, 70, false)) // mtfsb0 bit 3
	step(t, p, 1)
	if p.FPSCR&fpscrOX != 0 {
		t.Fatalf("mtfsb0: FPSCR=0x%X", p.FPSCR)
	}
}

func TestSingleLoadStore(t *testing.T) {
	p := testCPU(t)
	p.GPR[4] = 0x3000
	if err := p.bus.Write(0x3000, 4, uint64(math.Float32bits(1.5))); err != nil {
		t.Fatal(err)
	}
	load(t, p,
		opD(48, 3, 4, 0), // lfs f3,0(r4)
		opD(52, 3, 4, 8)) // stfs f3,8(r4)
	step(t, p, 2)

	if p.FPR[3].Double() != 1.5 {
		t.Fatalf("lfs: got %g", p.FPR[3].Double())
	}
	v, _ := p.bus.Read(0x3008, 4)
	if uint32(v) != math.Float32bits(1.5) {
		t.Fatalf("stfs: got 0x%X", v)
	}
}

func TestDoubleLoadStore(t *testing.T) {
	p := testCPU(t)
	p.GPR[4] = 0x3000
	p.FPR[3].SetDouble(-1234.5678)
	load(t, p,
		opD(54, 3, 4, 0), // stfd f3,0(r4)
		opD(50, 5, 4, 0)) // lfd f5,0(r4)
	step(t, p, 2)

	if p.FPR[5].Uint64() != p.FPR[3].Uint64() {
		t.Fatalf("lfd: got 0x%X", p.FPR[5].Uint64())
	}
}

func TestFPUpdateFormIllegal(t *testing.T) {
	p := testCPU(t)
	p.FPR[3].SetDouble(1)
	load(t, p, opD(49, 3, 0, 4)) // lfsu f3,4(r0)
	step(t, p, 1)

	if p.PC != vecProgram || p.SRR1&srr1Illegal == 0 {
		t.Fatalf("expected illegal form, PC=0x%X SRR1=0x%X", p.PC, p.SRR1)
	}
}

func TestReciprocalEstimates(t *testing.T) {
	p := testCPU(t)
	p.FPR[4].SetDouble(4.0)
	load(t, p,
		opA(59, 3, 0, 4, 0, 24, false), // fres f3,f4
		opX(63, 5, 0, 4, 26, false))    // frsqrte f5,f4
	step(t, p, 2)

	if r := p.FPR[3].Double(); math.Abs(r-0.25) > 0.25/256 {
		t.Fatalf("fres: got %g", r)
	}
	if r := p.FPR[5].Double(); math.Abs(r-0.5) > 0.5/16 {
		t.Fatalf("frsqrte: got %g", r)
	}

	// Zero input raises ZX and returns infinity.
	p.FPSCR = 0
	p.FPR[4].SetDouble(0)
	load(t, p, opA(59, 3, 0, 4, 0, 24, false))
	step(t, p, 1)
	if p.FPSCR&fpscrZX == 0 || !math.IsInf(p.FPR[3].Double(), 1) {
		t.Fatalf("fres(0): FPSCR=0x%X result=%g", p.FPSCR, p.FPR[3].Double())
	}
}
