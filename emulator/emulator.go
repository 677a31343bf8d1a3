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

package emulator

import (
	"flag"
	"log"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/andreas-jonsson/virtualmac/emulator/memory"
	"github.com/andreas-jonsson/virtualmac/emulator/peripheral"
	"github.com/andreas-jonsson/virtualmac/emulator/peripheral/debug"
	"github.com/andreas-jonsson/virtualmac/emulator/peripheral/heathrow"
	"github.com/andreas-jonsson/virtualmac/emulator/peripheral/nvram"
	"github.com/andreas-jonsson/virtualmac/emulator/peripheral/rom"
	"github.com/andreas-jonsson/virtualmac/emulator/peripheral/scsi"
	"github.com/andreas-jonsson/virtualmac/emulator/peripheral/swim3"
	"github.com/andreas-jonsson/virtualmac/emulator/peripheral/video"
	"github.com/andreas-jonsson/virtualmac/emulator/processor/ppc"
	"github.com/spf13/afero"
)

var romImage = "rom/gossamer.rom"

var (
	hdImage, nvramPath string
	ramSizeMB          int
	limitMIPS          float64
	consoleVideo       bool
)

var shutdown int32

func init() {
	if p, ok := os.LookupEnv("VMAC_DEFAULT_ROM_PATH"); ok {
		romImage = p
	}

	flag.StringVar(&romImage, "rom", romImage, "Path to boot ROM image")
	flag.StringVar(&hdImage, "hd", "", "Path to SCSI hard disk image")
	flag.StringVar(&nvramPath, "nvram", "virtualmac.nvram", "Path to NVRAM file")
	flag.IntVar(&ramSizeMB, "ram", 64, "RAM size in megabytes")
	flag.Float64Var(&limitMIPS, "mips", 0, "Limit CPU speed")
	flag.BoolVar(&consoleVideo, "console", false, "Render framebuffer in terminal")
}

// Shutdown requests a cooperative stop; the dispatch loop completes the
// current instruction and returns.
func Shutdown() {
	atomic.StoreInt32(&shutdown, 1)
}

func shutdownRequested() bool {
	return atomic.LoadInt32(&shutdown) != 0
}

// Run assembles the machine and drives the dispatch loop until shutdown.
func Run() {
	fs := afero.NewOsFs()

	bios, err := fs.Open(romImage)
	if err != nil {
		log.Print("Could not open ROM image: ", err)
		return
	}
	defer bios.Close()

	mio := &heathrow.Device{}
	nv := &nvram.Device{Fs: fs, Path: nvramPath}
	fdc := &swim3.Device{}
	sc := &scsi.Device{SrcID: 12}

	mio.Attach(heathrow.NVRAMOffset, 0x20000, nv)
	mio.Attach(heathrow.ScsiOffset, 0x1000, sc)
	mio.Attach(heathrow.Swim3Offset, 0x1000, fdc)

	if hdImage != "" {
		fp, err := fs.OpenFile(hdImage, os.O_RDWR, 0644)
		if err != nil {
			log.Print("Could not open disk image: ", err)
			return
		}
		defer fp.Close()

		hd, err := scsi.NewHardDisk(fp)
		if err != nil {
			log.Print("Bad disk image: ", err)
			return
		}
		sc.AttachTarget(0, hd)
	}

	peripherals := []peripheral.Peripheral{
		mio, // interrupt controller; must install first
		nv,
		fdc,
		sc,
		&rom.Device{
			RomName: "Boot ROM",
			Reader:  bios,
		},
	}
	if consoleVideo {
		peripherals = append(peripherals, &video.Device{})
		debug.MuteLogging(true)
	}
	if debug.EnableDebug {
		peripherals = append(peripherals, &debug.Device{})
	}
	peripherals = append(peripherals, networkPeripherals()...)

	bus := memory.NewBus(uint32(ramSizeMB) << 20)
	p := ppc.NewCPU(bus, peripherals)
	defer p.Close()

	p.Reset()

	var limitSpeed int64
	if limitMIPS > 0 {
		limitSpeed = 1000000000 / int64(1000000*limitMIPS)
	}

	for !shutdownRequested() {
		var cycles int64
		t := time.Now().UnixNano()

	step:
		c, err := p.Step()
		if err != nil {
			log.Print(err)
			return
		}
		if limitSpeed == 0 {
			continue
		}
		cycles += int64(c)

	wait:
		if n := time.Now().UnixNano() - t; n <= 0 {
			runtime.Gosched()
			goto step
		} else if n < limitSpeed*cycles {
			goto wait
		}
	}
}
