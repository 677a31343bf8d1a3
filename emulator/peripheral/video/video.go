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

package video

import (
	"os"
	"sync"
	"time"

	"github.com/andreas-jonsson/virtualmac/emulator/memory"
	"github.com/andreas-jonsson/virtualmac/emulator/processor"
	"github.com/gdamore/tcell"
)

const (
	Width  = 512
	Height = 342

	rowBytes   = Width / 8
	bufferSize = rowBytes * Height

	// One terminal cell covers an 8x16 pixel block.
	cellW = 8
	cellH = 16
)

type (
	redrawEvent struct{}
	quitEvent   struct{}
)

// Device is a 1-bit monochrome framebuffer rendered into a terminal. The
// guest writes pixels through the MMIO region; a host goroutine repaints at
// a fixed rate.
type Device struct {
	Base memory.Pointer

	lock     sync.RWMutex
	quitChan chan struct{}

	dirty  bool
	mem    [bufferSize]byte
	screen tcell.Screen
}

func (m *Device) Install(p processor.Processor) error {
	if m.Base == 0 {
		m.Base = 0x81000000
	}
	if err := p.RegisterMMIO(m.Base, bufferSize, m); err != nil {
		return err
	}
	return m.startRenderLoop()
}

func (m *Device) Name() string {
	return "Monochrome Framebuffer"
}

func (m *Device) Reset() {
	m.lock.Lock()
	m.mem = [bufferSize]byte{}
	m.dirty = true
	m.lock.Unlock()
}

func (m *Device) Step(int) error {
	return nil
}

func (m *Device) Close() error {
	m.screen.PostEventWait(tcell.NewEventInterrupt(quitEvent{}))
	<-m.quitChan
	return nil
}

func (m *Device) Read(offset memory.Pointer, width int) uint32 {
	m.lock.RLock()
	defer m.lock.RUnlock()

	var v uint32
	for i := 0; i < width; i++ {
		v = v<<8 | uint32(m.mem[(offset+memory.Pointer(i))%bufferSize])
	}
	return v
}

func (m *Device) Write(offset memory.Pointer, width int, value uint32) {
	m.lock.Lock()
	for i := width - 1; i >= 0; i-- {
		m.mem[(offset+memory.Pointer(i))%bufferSize] = byte(value)
		value >>= 8
	}
	m.dirty = true
	m.lock.Unlock()
}

// blockRunes maps the lit-pixel density of an 8x16 block to a shade.
var blockRunes = [5]rune{' ', '░', '▒', '▓', '█'}

func (m *Device) blockAt(cx, cy int) rune {
	lit := 0
	for y := 0; y < cellH; y++ {
		row := cy*cellH + y
		for x := 0; x < cellW; x++ {
			col := cx*cellW + x
			if m.mem[row*rowBytes+col/8]&(0x80>>uint(col&7)) != 0 {
				lit++
			}
		}
	}
	return blockRunes[lit*4/(cellW*cellH)]
}

func (m *Device) startRenderLoop() error {
	tcell.SetEncodingFallback(tcell.EncodingFallbackASCII)
	s, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err = s.Init(); err != nil {
		return err
	}

	s.DisableMouse()
	s.HideCursor()
	s.Clear()

	m.screen = s
	m.dirty = true
	m.quitChan = make(chan struct{})

	redrawTicker := time.NewTicker(time.Second / 30)
	go func() {
		for range redrawTicker.C {
			m.lock.RLock()
			dirty := m.dirty
			m.lock.RUnlock()
			if dirty {
				s.PostEvent(tcell.NewEventInterrupt(redrawEvent{}))
			}
		}
	}()

	go func() {
		// Classic Mac video is black-on-white at the hardware level; a set
		// bit is a dark pixel.
		style := tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite)

		for {
			ev := s.PollEvent()
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyF12 {
					go func() {
						m.Close()
						os.Exit(0)
					}()
				}
			case *tcell.EventResize:
				s.Sync()
				m.lock.Lock()
				m.dirty = true
				m.lock.Unlock()
			case *tcell.EventInterrupt:
				switch ev.Data().(type) {
				case quitEvent:
					s.Fini()
					redrawTicker.Stop()
					close(m.quitChan)
					return
				case redrawEvent:
					m.lock.Lock()
					for cy := 0; cy < Height/cellH; cy++ {
						for cx := 0; cx < Width/cellW; cx++ {
							s.SetCell(cx, cy, style, m.blockAt(cx, cy))
						}
					}
					m.dirty = false
					m.lock.Unlock()
					s.Show()
				}
			}
		}
	}()
	return nil
}
