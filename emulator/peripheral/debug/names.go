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

package debug

var primaryNames = map[uint32]string{
	3:  "twi",
	7:  "mulli",
	8:  "subfic",
	10: "cmpli",
	11: "cmpi",
	12: "addic",
	13: "addic.",
	14: "addi",
	15: "addis",
	16: "bc",
	17: "sc",
	18: "b",
	20: "rlwimi",
	21: "rlwinm",
	23: "rlwnm",
	24: "ori",
	25: "oris",
	26: "xori",
	27: "xoris",
	28: "andi.",
	29: "andis.",
	32: "lwz",
	33: "lwzu",
	34: "lbz",
	35: "lbzu",
	36: "stw",
	37: "stwu",
	38: "stb",
	39: "stbu",
	40: "lhz",
	41: "lhzu",
	42: "lha",
	43: "lhau",
	44: "sth",
	45: "sthu",
	46: "lmw",
	47: "stmw",
	48: "lfs",
	49: "lfsu",
	50: "lfd",
	51: "lfdu",
	52: "stfs",
	53: "stfsu",
	54: "stfd",
	55: "stfdu",
}

var op19Names = map[uint32]string{
	0:   "mcrf",
	16:  "bclr",
	33:  "crnor",
	50:  "rfi",
	129: "crandc",
	150: "isync",
	193: "crxor",
	225: "crnand",
	257: "crand",
	289: "creqv",
	417: "crorc",
	449: "cror",
	528: "bcctr",
}

var op31Names = map[uint32]string{
	0:    "cmp",
	4:    "tw",
	8:    "subfc",
	10:   "addc",
	11:   "mulhwu",
	19:   "mfcr",
	20:   "lwarx",
	23:   "lwzx",
	24:   "slw",
	26:   "cntlzw",
	28:   "and",
	32:   "cmpl",
	40:   "subf",
	54:   "dcbst",
	55:   "lwzux",
	60:   "andc",
	75:   "mulhw",
	83:   "mfmsr",
	86:   "dcbf",
	87:   "lbzx",
	104:  "neg",
	119:  "lbzux",
	124:  "nor",
	136:  "subfe",
	138:  "adde",
	144:  "mtcrf",
	146:  "mtmsr",
	150:  "stwcx.",
	151:  "stwx",
	183:  "stwux",
	200:  "subfze",
	202:  "addze",
	210:  "mtsr",
	215:  "stbx",
	232:  "subfme",
	234:  "addme",
	235:  "mullw",
	242:  "mtsrin",
	246:  "dcbtst",
	247:  "stbux",
	266:  "add",
	278:  "dcbt",
	279:  "lhzx",
	284:  "eqv",
	306:  "tlbie",
	311:  "lhzux",
	316:  "xor",
	339:  "mfspr",
	343:  "lhax",
	370:  "tlbia",
	371:  "mftb",
	375:  "lhaux",
	407:  "sthx",
	412:  "orc",
	439:  "sthux",
	444:  "or",
	459:  "divwu",
	467:  "mtspr",
	470:  "dcbi",
	476:  "nand",
	491:  "divw",
	512:  "mcrxr",
	533:  "lswx",
	534:  "lwbrx",
	535:  "lfsx",
	536:  "srw",
	566:  "tlbsync",
	567:  "lfsux",
	595:  "mfsr",
	597:  "lswi",
	598:  "sync",
	599:  "lfdx",
	631:  "lfdux",
	659:  "mfsrin",
	661:  "stswx",
	662:  "stwbrx",
	663:  "stfsx",
	695:  "stfsux",
	725:  "stswi",
	727:  "stfdx",
	759:  "stfdux",
	790:  "lhbrx",
	792:  "sraw",
	824:  "srawi",
	854:  "eieio",
	918:  "sthbrx",
	922:  "extsh",
	954:  "extsb",
	982:  "icbi",
	983:  "stfiwx",
	1014: "dcbz",
}

var op59Names = map[uint32]string{
	18: "fdivs",
	20: "fsubs",
	21: "fadds",
	22: "fsqrts",
	24: "fres",
	25: "fmuls",
	28: "fmsubs",
	29: "fmadds",
	30: "fnmsubs",
	31: "fnmadds",
}

var op63ANames = map[uint32]string{
	18: "fdiv",
	20: "fsub",
	21: "fadd",
	22: "fsqrt",
	23: "fsel",
	25: "fmul",
	26: "frsqrte",
	28: "fmsub",
	29: "fmadd",
	30: "fnmsub",
	31: "fnmadd",
}

var op63XNames = map[uint32]string{
	0:   "fcmpu",
	12:  "frsp",
	14:  "fctiw",
	15:  "fctiwz",
	32:  "fcmpo",
	38:  "mtfsb1",
	40:  "fneg",
	64:  "mcrfs",
	70:  "mtfsb0",
	72:  "fmr",
	134: "mtfsfi",
	136: "fnabs",
	264: "fabs",
	583: "mffs",
	711: "mtfsf",
}

// OpcodeName resolves a raw instruction word to its mnemonic.
func OpcodeName(instr uint32) string {
	op := instr >> 26
	switch op {
	case 19:
		if s, ok := op19Names[(instr>>1)&0x3FF]; ok {
			return s
		}
	case 31:
		if s, ok := op31Names[(instr>>1)&0x3FF]; ok {
			return s
		}
	case 59:
		if s, ok := op59Names[(instr>>1)&0x1F]; ok {
			return s
		}
	case 63:
		if s, ok := op63ANames[(instr>>1)&0x1F]; ok {
			return s
		}
		if s, ok := op63XNames[(instr>>1)&0x3FF]; ok {
			return s
		}
	default:
		if s, ok := primaryNames[op]; ok {
			return s
		}
	}
	return "?"
}
