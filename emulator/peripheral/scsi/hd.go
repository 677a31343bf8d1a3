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

package scsi

import (
	"io"
	"log"
)

const sectorSize = 512

// SCSI operation codes handled by the disk.
const (
	opTestUnitReady = 0x00
	opRewind        = 0x01
	opRequestSense  = 0x03
	opFormat        = 0x04
	opRead6         = 0x08
	opWrite6        = 0x0A
	opSeek6         = 0x0B
	opInquiry       = 0x12
	opModeSelect    = 0x15
	opModeSense     = 0x1A
	opReadCapacity  = 0x25
	opRead10        = 0x28
	opWrite10       = 0x2A
)

// Sense keys.
const (
	senseNone           = 0x0
	senseMediumError    = 0x3
	senseIllegalRequest = 0x5
)

// HardDisk is a generic image-backed SCSI hard disk.
type HardDisk struct {
	rws      io.ReadWriteSeeker
	size     int64
	sense    byte
	readOnly bool
}

// NewHardDisk wraps an open disk image. The image size is probed once.
func NewHardDisk(image io.ReadWriteSeeker) (*HardDisk, error) {
	sz, err := image.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err := image.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return &HardDisk{rws: image, size: sz}, nil
}

func (d *HardDisk) SetReadOnly(b bool) {
	d.readOnly = b
}

func (d *HardDisk) check(key byte) ([]byte, byte) {
	d.sense = key
	return nil, StatusCheckCondition
}

func (d *HardDisk) good(data []byte) ([]byte, byte) {
	d.sense = senseNone
	return data, StatusGood
}

// Command executes one CDB.
func (d *HardDisk) Command(cdb []byte, dataOut []byte) ([]byte, byte) {
	if len(cdb) == 0 {
		return d.check(senseIllegalRequest)
	}

	switch cdb[0] {
	case opTestUnitReady, opFormat:
		return d.good(nil)

	case opRewind:
		if _, err := d.rws.Seek(0, io.SeekStart); err != nil {
			return d.check(senseMediumError)
		}
		return d.good(nil)

	case opRequestSense:
		sense := make([]byte, 18)
		sense[0] = 0x70
		sense[2] = d.sense
		sense[7] = 10
		return d.good(sense)

	case opInquiry:
		inq := make([]byte, 36)
		inq[0] = 0x00 // direct access device
		inq[2] = 0x02 // SCSI-2
		inq[4] = 31
		copy(inq[8:], "VIRTMAC ")
		copy(inq[16:], "HARDDISK        ")
		copy(inq[32:], "1.0 ")
		return d.good(inq)

	case opModeSelect:
		return d.good(nil)

	case opModeSense:
		page := make([]byte, 12)
		page[0] = 11
		return d.good(page)

	case opReadCapacity:
		if len(cdb) < 10 {
			return d.check(senseIllegalRequest)
		}
		blocks := uint32(d.size / sectorSize)
		buf := make([]byte, 8)
		be32(buf[0:], blocks-1)
		be32(buf[4:], sectorSize)
		return d.good(buf)

	case opSeek6:
		if len(cdb) < 6 {
			return d.check(senseIllegalRequest)
		}
		lba := int64(cdb[1]&0x1F)<<16 | int64(cdb[2])<<8 | int64(cdb[3])
		if _, err := d.rws.Seek(lba*sectorSize, io.SeekStart); err != nil {
			return d.check(senseMediumError)
		}
		return d.good(nil)

	case opRead6:
		if len(cdb) < 6 {
			return d.check(senseIllegalRequest)
		}
		lba := int64(cdb[1]&0x1F)<<16 | int64(cdb[2])<<8 | int64(cdb[3])
		count := int64(cdb[4])
		if count == 0 {
			count = 256
		}
		return d.read(lba, count)

	case opRead10:
		if len(cdb) < 10 {
			return d.check(senseIllegalRequest)
		}
		lba := int64(cdb[2])<<24 | int64(cdb[3])<<16 | int64(cdb[4])<<8 | int64(cdb[5])
		count := int64(cdb[7])<<8 | int64(cdb[8])
		return d.read(lba, count)

	case opWrite6:
		if len(cdb) < 6 {
			return d.check(senseIllegalRequest)
		}
		lba := int64(cdb[1]&0x1F)<<16 | int64(cdb[2])<<8 | int64(cdb[3])
		count := int64(cdb[4])
		if count == 0 {
			count = 256
		}
		return d.write(lba, count, dataOut)

	case opWrite10:
		if len(cdb) < 10 {
			return d.check(senseIllegalRequest)
		}
		lba := int64(cdb[2])<<24 | int64(cdb[3])<<16 | int64(cdb[4])<<8 | int64(cdb[5])
		count := int64(cdb[7])<<8 | int64(cdb[8])
		return d.write(lba, count, dataOut)

	default:
		log.Printf("scsi: unhandled operation 0x%X", cdb[0])
		return d.check(senseIllegalRequest)
	}
}

func (d *HardDisk) read(lba, count int64) ([]byte, byte) {
	if (lba+count)*sectorSize > d.size {
		return d.check(senseIllegalRequest)
	}
	if _, err := d.rws.Seek(lba*sectorSize, io.SeekStart); err != nil {
		return d.check(senseMediumError)
	}
	buf := make([]byte, count*sectorSize)
	if _, err := io.ReadFull(d.rws, buf); err != nil {
		return d.check(senseMediumError)
	}
	return d.good(buf)
}

func (d *HardDisk) write(lba, count int64, data []byte) ([]byte, byte) {
	if d.readOnly {
		return d.check(senseIllegalRequest)
	}
	if int64(len(data)) != count*sectorSize || (lba+count)*sectorSize > d.size {
		return d.check(senseIllegalRequest)
	}
	if _, err := d.rws.Seek(lba*sectorSize, io.SeekStart); err != nil {
		return d.check(senseMediumError)
	}
	if n, err := d.rws.Write(data); n != len(data) || err != nil {
		return d.check(senseMediumError)
	}
	return d.good(nil)
}

func be32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
