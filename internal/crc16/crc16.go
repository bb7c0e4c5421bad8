// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package crc16 implements the CRC-16/CCITT-FALSE checksum used to
// validate DIF frames, and reused here to fingerprint recorded byte
// segments.
package crc16 // import "github.com/mstrader/MkidDigitalReadout/internal/crc16"

import (
	"encoding/binary"
	"hash"
)

const (
	poly    = 0x1021
	initVal = 0xFFFF
)

// Table is a precomputed CRC-16 lookup table.
type Table [256]uint16

var defaultTable = makeTable(poly)

func makeTable(poly uint16) *Table {
	var t Table
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return &t
}

// Hash16 is the 16-bit analogue of hash.Hash32/hash.Hash64 from the
// standard library.
type Hash16 interface {
	hash.Hash
	Sum16() uint16
}

type digest struct {
	tab *Table
	crc uint16
}

// New creates a new Hash16 computing CRC-16/CCITT-FALSE. A nil table
// selects the standard 0x1021 polynomial.
func New(tab *Table) Hash16 {
	if tab == nil {
		tab = defaultTable
	}
	d := &digest{tab: tab}
	d.Reset()
	return d
}

func (d *digest) Reset() { d.crc = initVal }

func (d *digest) Size() int      { return 2 }
func (d *digest) BlockSize() int { return 1 }

func (d *digest) Write(p []byte) (int, error) {
	crc := d.crc
	for _, b := range p {
		crc = (crc << 8) ^ d.tab[byte(crc>>8)^b]
	}
	d.crc = crc
	return len(p), nil
}

func (d *digest) Sum16() uint16 { return d.crc }

func (d *digest) Sum(in []byte) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, d.crc)
	return append(in, buf...)
}
