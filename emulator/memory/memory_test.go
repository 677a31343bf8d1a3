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

package memory

import (
	"testing"
)

type nullDevice struct{}

func (nullDevice) Read(Pointer, int) uint32    { return 0 }
func (nullDevice) Write(Pointer, int, uint32) {}

func TestBigEndianRAM(t *testing.T) {
	b := NewBus(0x1000)

	if err := b.Write(0x10, 4, 0x11223344); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Read(0x10, 1); v != 0x11 {
		t.Fatalf("byte 0: got 0x%X", v)
	}
	if v, _ := b.Read(0x13, 1); v != 0x44 {
		t.Fatalf("byte 3: got 0x%X", v)
	}
	if v, _ := b.Read(0x10, 2); v != 0x1122 {
		t.Fatalf("half: got 0x%X", v)
	}
	if err := b.Write(0x20, 8, 0x0102030405060708); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Read(0x20, 8); v != 0x0102030405060708 {
		t.Fatalf("quad: got 0x%X", v)
	}
}

func TestOverlapRejected(t *testing.T) {
	b := NewBus(0x1000)
	dev := nullDevice{}

	if err := b.Register(0x10000, 0x1000, dev); err != nil {
		t.Fatal(err)
	}
	if err := b.Register(0x10800, 0x1000, dev); err != ErrOverlap {
		t.Fatalf("expected overlap error, got %v", err)
	}
	if err := b.Register(0x0F800, 0x1000, dev); err != ErrOverlap {
		t.Fatalf("expected overlap error, got %v", err)
	}
	if err := b.Register(0x800, 0x100, dev); err != ErrOverlap {
		t.Fatalf("RAM overlap should fail, got %v", err)
	}
	if err := b.Register(0x11000, 0x1000, dev); err != nil {
		t.Fatalf("adjacent region should register: %v", err)
	}
}

func TestUnregister(t *testing.T) {
	b := NewBus(0x1000)
	if err := b.Register(0x10000, 0x1000, nullDevice{}); err != nil {
		t.Fatal(err)
	}
	b.Unregister(0x10000)

	if _, err := b.Read(0x10000, 4); err != ErrUnmapped {
		t.Fatalf("expected unmapped, got %v", err)
	}
}

func TestUnsupportedQuad(t *testing.T) {
	b := NewBus(0x1000)
	if err := b.Register(0x10000, 0x1000, nullDevice{}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Read(0x10000, 8); err != ErrAccessWidth {
		t.Fatalf("expected width error, got %v", err)
	}
	if err := b.Write(0x10000, 8, 0); err != ErrAccessWidth {
		t.Fatalf("expected width error, got %v", err)
	}
}
