// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package framer

import (
	"encoding/binary"
	"testing"

	"github.com/mstrader/MkidDigitalReadout/wire"
)

func header(roach uint8, frame uint16, ts uint64) []byte {
	w := uint64(wire.StartHeader)<<56 | uint64(roach)<<48 | uint64(frame&0xFFF)<<36 | (ts & 0xFFFFFFFFF)
	buf := make([]byte, wire.WordLen)
	binary.BigEndian.PutUint64(buf, w)
	return buf
}

func eofWord() []byte {
	w := uint64(wire.StartEOF)<<56 | uint64(wire.RoachEOF)<<48
	buf := make([]byte, wire.WordLen)
	binary.BigEndian.PutUint64(buf, w)
	return buf
}

func dataWord(x, y uint16) []byte {
	w := uint64(x&0x3FF)<<54 | uint64(y&0x3FF)<<44
	buf := make([]byte, wire.WordLen)
	binary.BigEndian.PutUint64(buf, w)
	return buf
}

func concat(words ...[]byte) []byte {
	var out []byte
	for _, w := range words {
		out = append(out, w...)
	}
	return out
}

func TestPassIncompletePacket(t *testing.T) {
	var f Framer
	f.Feed(header(3, 0, 100))
	f.Feed(dataWord(25, 39))
	packets, oversize := f.Pass()
	if got, want := len(packets), 0; got != want {
		t.Fatalf("packets: got=%d, want=%d", got, want)
	}
	if oversize != 0 {
		t.Fatalf("unexpected oversize count: %d", oversize)
	}
	if got, want := f.Len(), 2*wire.WordLen; got != want {
		t.Fatalf("buffered bytes: got=%d, want=%d", got, want)
	}
}

func TestPassSingleFullPacket(t *testing.T) {
	var f Framer
	f.Feed(header(3, 0, 100))
	for i := 0; i < 100; i++ {
		f.Feed(dataWord(25, 39))
	}
	// second packet's header arrives, closing the first.
	f.Feed(header(3, 1, 101))

	packets, oversize := f.Pass()
	if got, want := len(packets), 1; got != want {
		t.Fatalf("packets: got=%d, want=%d", got, want)
	}
	if oversize != 0 {
		t.Fatalf("unexpected oversize count: %d", oversize)
	}
	if got, want := len(packets[0]), (1+100)*wire.WordLen; got != want {
		t.Fatalf("packet length: got=%d, want=%d", got, want)
	}
	// the second header remains buffered, preserving the framing invariant.
	if got, want := f.Len(), wire.WordLen; got != want {
		t.Fatalf("remaining buffer: got=%d, want=%d", got, want)
	}
	start, _ := wire.PeekMarker(f.buf[:wire.WordLen])
	if got, want := start, wire.StartHeader; got != want {
		t.Fatalf("framing invariant violated: got=0x%x, want=0x%x", got, want)
	}
}

func TestPassPacketSplitAcrossDatagrams(t *testing.T) {
	var f Framer

	// datagram A: header + 5 data words.
	a := header(2, 0, 1)
	for i := 0; i < 5; i++ {
		a = append(a, dataWord(1, 1)...)
	}
	f.Feed(a)

	packets, _ := f.Pass()
	if got, want := len(packets), 0; got != want {
		t.Fatalf("packets after datagram A: got=%d, want=%d", got, want)
	}

	// datagram B: remaining 94 data words + the next header.
	var b []byte
	for i := 0; i < 94; i++ {
		b = append(b, dataWord(1, 1)...)
	}
	b = append(b, header(2, 1, 2)...)
	f.Feed(b)

	packets, oversize := f.Pass()
	if got, want := len(packets), 1; got != want {
		t.Fatalf("packets after datagram B: got=%d, want=%d", got, want)
	}
	if oversize != 0 {
		t.Fatalf("unexpected oversize count: %d", oversize)
	}
	if got, want := len(packets[0]), (1+99)*wire.WordLen; got != want {
		t.Fatalf("packet length: got=%d, want=%d", got, want)
	}
}

func TestPassShortPacketWithEOF(t *testing.T) {
	var f Framer
	f.Feed(header(5, 0, 1))
	for i := 0; i < 40; i++ {
		f.Feed(dataWord(2, 2))
	}
	f.Feed(eofWord())
	f.Feed(header(5, 1, 2)) // next packet header, just to exercise the invariant

	packets, oversize := f.Pass()
	if got, want := len(packets), 1; got != want {
		t.Fatalf("packets: got=%d, want=%d", got, want)
	}
	if oversize != 0 {
		t.Fatalf("unexpected oversize count: %d", oversize)
	}
	if got, want := len(packets[0]), (1+40)*wire.WordLen; got != want {
		t.Fatalf("packet length: got=%d, want=%d", got, want)
	}
	if got, want := f.Len(), wire.WordLen; got != want {
		t.Fatalf("remaining buffer after EOF consumed: got=%d, want=%d", got, want)
	}
}

func TestPassOversizePacketStillAccepted(t *testing.T) {
	var f Framer
	f.Feed(header(1, 0, 1))
	for i := 0; i < 110; i++ { // well past the nominal 103 data-word maximum
		f.Feed(dataWord(1, 1))
	}
	f.Feed(header(1, 1, 2))

	packets, oversize := f.Pass()
	if got, want := len(packets), 1; got != want {
		t.Fatalf("packets: got=%d, want=%d", got, want)
	}
	if got, want := oversize, 1; got != want {
		t.Fatalf("oversize count: got=%d, want=%d", got, want)
	}
	if got, want := len(packets[0]), (1+110)*wire.WordLen; got != want {
		t.Fatalf("packet length: got=%d, want=%d", got, want)
	}
}

func TestPassMultiplePacketsInOneCall(t *testing.T) {
	var f Framer
	for p := 0; p < 3; p++ {
		f.Feed(header(uint8(p), uint16(p), uint64(p)))
		for i := 0; i < 10; i++ {
			f.Feed(dataWord(uint16(i), uint16(i)))
		}
	}
	f.Feed(header(9, 99, 99)) // closes the third packet

	packets, _ := f.Pass()
	if got, want := len(packets), 3; got != want {
		t.Fatalf("packets: got=%d, want=%d", got, want)
	}
	for i, pkt := range packets {
		if got, want := len(pkt), 11*wire.WordLen; got != want {
			t.Fatalf("packet[%d] length: got=%d, want=%d", i, got, want)
		}
	}
}
