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

package debug

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/andreas-jonsson/virtualmac/emulator/memory"
	"github.com/andreas-jonsson/virtualmac/emulator/processor"
)

var (
	EnableDebug, noHistory, debugBreak bool
	tcpDebug                           net.Conn
)

var ErrQuit = errors.New("QUIT!")

var internalLogger = &Logger{}

type Logger struct {
	sync.RWMutex
	mute bool
}

func (l *Logger) Write(p []byte) (n int, err error) {
	l.Lock()
	defer l.Unlock()

	if tcpDebug != nil {
		p = bytes.ReplaceAll(p, []byte{0xA}, []byte{0xA, 0xD})
		n, err = tcpDebug.Write(p)
		if err != nil {
			tcpDebug = nil
		}
		return
	}
	if l.mute {
		return len(p), nil
	}
	return os.Stderr.Write(p)
}

// MuteLogging drops host log output when no debugger is attached, so a
// terminal front end owns the screen.
func MuteLogging(b bool) {
	internalLogger.Lock()
	internalLogger.mute = b
	internalLogger.Unlock()

	if b {
		log.SetOutput(internalLogger)
	}
}

func init() {
	flag.BoolVar(&noHistory, "nohistory", false, "do not build instruction history")
	flag.BoolVar(&EnableDebug, "debug", false, "enable telnet debugger")
	flag.BoolVar(&debugBreak, "break", false, "break on startup")
}

func readLine() string {
	internalLogger.RLock()
	defer internalLogger.RUnlock()

	for tcpDebug == nil {
		internalLogger.RUnlock()
		runtime.Gosched()
		internalLogger.RLock()
	}

	scanner := bufio.NewScanner(tcpDebug)
	for scanner.Scan() {
		return scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		tcpDebug = nil
	}
	return ""
}

type Device struct {
	signChan            chan os.Signal
	historyChan         chan string
	numInstructionsLost uint64
	stepping            bool

	mips        float64
	stats       processor.Stats
	updateStats time.Time
	breakpoints []uint32

	r *processor.Registers
	p processor.Processor
}

func (m *Device) Install(p processor.Processor) error {
	m.historyChan = make(chan string, 128)
	m.signChan = make(chan os.Signal, 1)
	signal.Notify(m.signChan, os.Interrupt)

	log.SetOutput(internalLogger)

	go func() {
		ln, err := net.Listen("tcp", ":23")
		if err != nil {
			log.Print("Could not start debug listener: ", err)
			return
		}
		for {
			conn, _ := ln.Accept()
			internalLogger.Lock()
			tcpDebug = conn
			internalLogger.Unlock()

			name, _ := os.Hostname()
			log.Print("Connected to: ", name)
		}
	}()

	m.p = p
	m.r = p.GetRegisters()
	m.updateStats = time.Now()
	return nil
}

func (m *Device) printRegisters() {
	var sb strings.Builder
	for i := 0; i < 32; i += 4 {
		fmt.Fprintf(&sb, "r%-2d 0x%08X  r%-2d 0x%08X  r%-2d 0x%08X  r%-2d 0x%08X\n",
			i, m.r.GPR[i], i+1, m.r.GPR[i+1], i+2, m.r.GPR[i+2], i+3, m.r.GPR[i+3])
	}
	fmt.Fprintf(&sb, "\nPC  0x%08X  LR  0x%08X  CTR 0x%08X\n", m.r.PC, m.r.LR, m.r.CTR)
	fmt.Fprintf(&sb, "CR  0x%08X  XER 0x%08X  MSR 0x%08X\n", m.r.CR, m.r.XER, m.r.MSR)
	fmt.Fprintf(&sb, "SRR0 0x%08X SRR1 0x%08X FPSCR 0x%08X", m.r.SRR0, m.r.SRR1, m.r.FPSCR)
	log.Println(sb.String())
}

func (m *Device) printFPRegisters() {
	var sb strings.Builder
	for i := 0; i < 32; i += 2 {
		fmt.Fprintf(&sb, "f%-2d 0x%016X (%g)\tf%-2d 0x%016X (%g)\n",
			i, m.r.FPR[i].Uint64(), m.r.FPR[i].Double(),
			i+1, m.r.FPR[i+1].Uint64(), m.r.FPR[i+1].Double())
	}
	log.Println(sb.String())
}

func (m *Device) showMemory(rng string) {
	var from, to int
	switch n, _ := fmt.Sscanf(rng, "%x,%x", &from, &to); n {
	case 1:
		if d, err := m.p.ReadPhys(memory.Pointer(from), 1); err == nil {
			log.Printf("0x%X: 0x%X (%d)\n", from, d, d)
		}
	case 2:
		if num := (to + 1) - from; num > 0 {
			buffer := make([]byte, num)
			for i := range buffer {
				if d, err := m.p.ReadPhys(memory.Pointer(from+i), 1); err == nil {
					buffer[i] = byte(d)
				}
			}
			log.Print(hex.Dump(buffer))
		}
	default:
		log.Println("invalid memory range")
	}
}

func (m *Device) showBreakpoints() {
	for i, br := range m.breakpoints {
		log.Printf("%d:\t0x%X\n", i, br)
	}
}

func (m *Device) setBreakpoint(br string) {
	var b uint32
	if n, _ := fmt.Sscanf(br, "%x", &b); n == 1 {
		log.Printf("Breakpoint set at: 0x%X\n", b)
		m.breakpoints = append(m.breakpoints, b)
	}
}

func (m *Device) removeBreakpoint(br string) {
	var i int
	if n, _ := fmt.Sscanf(br, "%d", &i); n == 1 && i < len(m.breakpoints) {
		log.Printf("Removed breakpoint %d at: 0x%X\n", i, m.breakpoints[i])
		m.breakpoints = append(m.breakpoints[:i], m.breakpoints[i+1:]...)
	}
}

func (m *Device) showHistory(num int) {
	log.Println("| Lost instructions:", m.numInstructionsLost)
	for i := 0; i < len(m.historyChan) && i < num; i++ {
		select {
		case inst := <-m.historyChan:
			log.Println(inst)
			m.historyChan <- inst
		default:
		}
	}
}

func (m *Device) pushHistory(inst string) {
	select {
	case m.historyChan <- inst:
	default:
		<-m.historyChan
		m.numInstructionsLost++
		m.historyChan <- inst
	}
}

func (m *Device) Break() {
	debugBreak = true
	m.r.Debug = true
}

func (m *Device) Continue() {
	debugBreak = false
	m.r.Debug = false
}

func (m *Device) Step(cycles int) error {
	if time.Since(m.updateStats) >= time.Second {
		m.stats = m.p.GetStats()
		m.mips = float64(m.stats.NumInstructions) / 1000000.0
		m.updateStats = time.Now()
	}

	if m.r.Debug {
		debugBreak = true
	}

	select {
	case <-m.signChan:
		log.Println("BREAK!")
		m.Break()
	default:
	}

	if m.stepping {
		m.stepping = false
		m.Break()
	}

	for _, br := range m.breakpoints {
		if m.r.PC == br {
			log.Printf("BREAK: 0x%X", br)
			m.Break()
		}
	}

	inst := m.currentInstruction()

	for debugBreak {
		log.Printf("[0x%08X] DEBUG>", m.r.PC)

		ln := readLine()
		switch {
		case ln == "q":
			return ErrQuit
		case ln == "c":
			m.Continue()
		case ln == "" || ln == "s":
			m.Continue()
			m.stepping = true
		case ln == "r":
			m.printRegisters()
		case ln == "f":
			m.printFPRegisters()
		case ln == "h":
			m.showHistory(16)
		case ln == "t":
			log.Printf("MIPS: %.2f\n", m.mips)
			log.Printf("%+v", m.stats)
		case ln == "@":
			log.Print(inst)
		case ln == "cb":
			log.Print("Clear breakpoints!")
			m.breakpoints = m.breakpoints[:0]
		case ln == "b":
			m.showBreakpoints()
		case strings.HasPrefix(ln, "b "):
			m.setBreakpoint(ln[2:])
		case strings.HasPrefix(ln, "rb "):
			m.removeBreakpoint(ln[3:])
		case strings.HasPrefix(ln, "m "):
			m.showMemory(ln[2:])
		default:
			log.Print("unknown command: ", ln)
		}
	}

	if !noHistory {
		m.pushHistory(inst)
	}
	return nil
}

func (m *Device) currentInstruction() string {
	// The PC is virtual; peek through the untranslated view only when
	// translation is off, otherwise show the raw word from guest state.
	word := m.r.Instr
	if m.r.MSR&processor.MSRIR == 0 {
		if v, err := m.p.ReadPhys(memory.Pointer(m.r.PC), 4); err == nil {
			word = uint32(v)
		}
	}
	return fmt.Sprintf("| [0x%08X] %s (0x%08X)", m.r.PC, OpcodeName(word), word)
}

func (m *Device) Name() string {
	return "Debug Device"
}

func (m *Device) Reset() {
}

func (m *Device) Close() error {
	if tcpDebug != nil {
		tcpDebug.Close()
		tcpDebug = nil
	}
	return nil
}
