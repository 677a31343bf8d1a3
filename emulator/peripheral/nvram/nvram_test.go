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

package nvram

import (
	"testing"

	"github.com/spf13/afero"
)

func TestStridedAccess(t *testing.T) {
	m := &Device{Fs: afero.NewMemMapFs()}

	m.Write(0x30, 1, 0xAB) // byte 3
	if v := m.Read(0x30, 1); v != 0xAB {
		t.Fatalf("got 0x%X", v)
	}
	if v := m.Read(0x20, 1); v != 0 {
		t.Fatalf("neighbour: got 0x%X", v)
	}
}

func TestPersistence(t *testing.T) {
	fs := afero.NewMemMapFs()

	m := &Device{Fs: fs, Path: "test.nvram"}
	if err := m.Install(nil); err != nil {
		t.Fatal(err)
	}
	m.Write(0x10, 1, 0x42)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}

	m2 := &Device{Fs: fs, Path: "test.nvram"}
	if err := m2.Install(nil); err != nil {
		t.Fatal(err)
	}
	if v := m2.Read(0x10, 1); v != 0x42 {
		t.Fatalf("persisted byte: got 0x%X", v)
	}
}

func TestCloseWithoutChanges(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := &Device{Fs: fs, Path: "test.nvram"}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if ok, _ := afero.Exists(fs, "test.nvram"); ok {
		t.Fatal("clean device must not write a file")
	}
}
