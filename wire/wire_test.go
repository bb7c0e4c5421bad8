// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"testing"
)

// encodeHeader packs a header word the way a board would emit it on
// the wire: MSB->LSB start(8) roach(8) frame(12) timestamp(36),
// big-endian.
func encodeHeader(start, roach uint8, frame uint16, ts uint64) []byte {
	w := uint64(start)<<56 | uint64(roach)<<48 | uint64(frame&0xFFF)<<36 | (ts & 0xFFFFFFFFF)
	buf := make([]byte, WordLen)
	binary.BigEndian.PutUint64(buf, w)
	return buf
}

func encodeData(x, y, ts uint16, wvl, baseline uint32) []byte {
	w := uint64(x&0x3FF)<<54 | uint64(y&0x3FF)<<44 | uint64(ts&0x1FF)<<35 |
		uint64(wvl&0x3FFFF)<<17 | uint64(baseline&0x1FFFF)
	buf := make([]byte, WordLen)
	binary.BigEndian.PutUint64(buf, w)
	return buf
}

func TestDecodeHeader(t *testing.T) {
	for _, tc := range []struct {
		name  string
		start uint8
		roach uint8
		frame uint16
		ts    uint64
		want  Header
	}{
		{
			name:  "fresh-header",
			start: StartHeader,
			roach: 3,
			frame: 42,
			ts:    123456789,
			want:  Header{Start: 0xFF, Roach: 3, Frame: 42, Timestamp: 123456789},
		},
		{
			name:  "eof-terminator",
			start: StartEOF,
			roach: RoachEOF,
			frame: 0xFFF,
			ts:    0xFFFFFFFFF,
			want:  Header{Start: 0x7F, Roach: 0xFF, Frame: 0xFFF, Timestamp: 0xFFFFFFFFF},
		},
		{
			name:  "frame-max-4095",
			start: StartHeader,
			roach: 9,
			frame: 4095,
			ts:    1,
			want:  Header{Start: 0xFF, Roach: 9, Frame: 4095, Timestamp: 1},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			buf := encodeHeader(tc.start, tc.roach, tc.frame, tc.ts)
			got := DecodeHeader(buf)
			if got != tc.want {
				t.Fatalf("invalid header: got=%+v, want=%+v", got, tc.want)
			}
		})
	}
}

func TestHeaderClassification(t *testing.T) {
	for _, tc := range []struct {
		name    string
		hdr     Header
		isHdr   bool
		isEOF   bool
	}{
		{name: "header", hdr: Header{Start: 0xFF, Roach: 3}, isHdr: true},
		{name: "eof", hdr: Header{Start: 0x7F, Roach: 0xFF}, isEOF: true},
		{name: "neither", hdr: Header{Start: 0x00, Roach: 0x00}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got, want := tc.hdr.IsHeader(), tc.isHdr; got != want {
				t.Fatalf("IsHeader: got=%v, want=%v", got, want)
			}
			if got, want := tc.hdr.IsEOF(), tc.isEOF; got != want {
				t.Fatalf("IsEOF: got=%v, want=%v", got, want)
			}
		})
	}
}

func TestDecodeData(t *testing.T) {
	for _, tc := range []struct {
		name string
		x, y uint16
		ts   uint16
		wvl  uint32
		bl   uint32
	}{
		{name: "zero", x: 0, y: 0, ts: 0, wvl: 0, bl: 0},
		{name: "mid-field", x: 25, y: 39, ts: 100, wvl: 8192, bl: 8192},
		{name: "coord-at-xpix-boundary", x: XPix, y: YPix, ts: 511, wvl: 0x3FFFF, bl: 0x1FFFF},
		{name: "max-fields", x: 0x3FF, y: 0x3FF, ts: 0x1FF, wvl: 0x3FFFF, bl: 0x1FFFF},
	} {
		t.Run(tc.name, func(t *testing.T) {
			buf := encodeData(tc.x, tc.y, tc.ts, tc.wvl, tc.bl)
			got := DecodeData(buf)
			want := Data{XCoord: tc.x, YCoord: tc.y, Timestamp: tc.ts, Wvl: tc.wvl, Baseline: tc.bl}
			if got != want {
				t.Fatalf("invalid data word: got=%+v, want=%+v", got, want)
			}
		})
	}
}

func TestPeekMarker(t *testing.T) {
	buf := encodeHeader(StartHeader, 7, 1, 2)
	start, roach := PeekMarker(buf)
	if got, want := start, uint8(StartHeader); got != want {
		t.Fatalf("start: got=0x%x, want=0x%x", got, want)
	}
	if got, want := roach, uint8(7); got != want {
		t.Fatalf("roach: got=%d, want=%d", got, want)
	}
}
