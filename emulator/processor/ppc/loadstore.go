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

// executeLoadStore handles the D-form integer loads and stores, primary
// opcodes 32-47.
func (p *CPU) executeLoadStore(instr uint32) {
	d, a := regD(instr), regA(instr)

	switch instr >> 26 {
	case 32: // lwz
		p.GPR[d] = uint32(p.readData(p.effectiveAddr(instr), 4))
	case 33: // lwzu
		ea := p.updateAddr(instr)
		p.GPR[d] = uint32(p.readData(ea, 4))
		p.GPR[a] = ea
	case 34: // lbz
		p.GPR[d] = uint32(p.readData(p.effectiveAddr(instr), 1))
	case 35: // lbzu
		ea := p.updateAddr(instr)
		p.GPR[d] = uint32(p.readData(ea, 1))
		p.GPR[a] = ea
	case 36: // stw
		p.writeData(p.effectiveAddr(instr), 4, uint64(p.GPR[d]))
	case 37: // stwu
		ea := p.updateAddr(instr)
		p.writeData(ea, 4, uint64(p.GPR[d]))
		p.GPR[a] = ea
	case 38: // stb
		p.writeData(p.effectiveAddr(instr), 1, uint64(p.GPR[d]&0xFF))
	case 39: // stbu
		ea := p.updateAddr(instr)
		p.writeData(ea, 1, uint64(p.GPR[d]&0xFF))
		p.GPR[a] = ea
	case 40: // lhz
		p.GPR[d] = uint32(p.readData(p.effectiveAddr(instr), 2))
	case 41: // lhzu
		ea := p.updateAddr(instr)
		p.GPR[d] = uint32(p.readData(ea, 2))
		p.GPR[a] = ea
	case 42: // lha
		p.GPR[d] = uint32(int32(int16(p.readData(p.effectiveAddr(instr), 2))))
	case 43: // lhau
		ea := p.updateAddr(instr)
		p.GPR[d] = uint32(int32(int16(p.readData(ea, 2))))
		p.GPR[a] = ea
	case 44: // sth
		p.writeData(p.effectiveAddr(instr), 2, uint64(p.GPR[d]&0xFFFF))
	case 45: // sthu
		ea := p.updateAddr(instr)
		p.writeData(ea, 2, uint64(p.GPR[d]&0xFFFF))
		p.GPR[a] = ea
	case 46: // lmw
		ea := p.effectiveAddr(instr)
		for r := d; r < 32; r++ {
			p.GPR[r] = uint32(p.readData(ea, 4))
			ea += 4
		}
	case 47: // stmw
		ea := p.effectiveAddr(instr)
		for r := d; r < 32; r++ {
			p.writeData(ea, 4, uint64(p.GPR[r]))
			ea += 4
		}
	}
}

// loadString implements lswi/lswx: n bytes into successive registers, four
// per register, left-aligned in the last one.
func (p *CPU) loadString(instr uint32, ea uint32, n int) {
	r := regD(instr)
	shift := 24
	reg := uint32(0)

	for i := 0; i < n; i++ {
		b := uint32(p.readData(ea, 1))
		reg |= b << uint(shift)
		ea++

		if shift == 0 {
			p.GPR[r] = reg
			r = (r + 1) & 31
			reg = 0
			shift = 24
		} else {
			shift -= 8
		}
	}
	if shift != 24 {
		p.GPR[r] = reg
	}
}

// storeString implements stswi/stswx.
func (p *CPU) storeString(instr uint32, ea uint32, n int) {
	r := regD(instr)
	shift := 24

	for i := 0; i < n; i++ {
		p.writeData(ea, 1, uint64(p.GPR[r]>>uint(shift))&0xFF)
		ea++

		if shift == 0 {
			r = (r + 1) & 31
			shift = 24
		} else {
			shift -= 8
		}
	}
}
