// Package framer reconstructs variable-length packets from an
// unaligned byte stream of 8-byte words, across datagram boundaries.
//
// The reassembly buffer maintains one invariant at every quiescent
// point between calls to Pass: it either is empty, or its first word
// is a fresh packet header (start == 0xFF). Feed only ever appends at
// the tail, so it can never violate that invariant on its own; Pass
// only ever cuts the buffer at a word it has just classified as the
// start of the next packet (or the word right after a consumed EOF
// terminator, which the device protocol guarantees is itself a
// header), so it restores the invariant on every cut.
package framer // import "github.com/mstrader/MkidDigitalReadout/framer"

import "github.com/mstrader/MkidDigitalReadout/wire"

// Framer holds the reassembly buffer for one byte stream.
type Framer struct {
	buf []byte
}

// Feed appends freshly-received bytes to the reassembly buffer. p must
// hold a whole number of 8-byte words (guaranteed by the Ingestor,
// which never splits a UDP payload).
func (f *Framer) Feed(p []byte) {
	f.buf = append(f.buf, p...)
}

// Len reports the number of unparsed bytes currently buffered.
func (f *Framer) Len() int { return len(f.buf) }

// Pass scans the buffer for complete packets and returns them in
// arrival order, along with a count of packets whose length in words,
// header included, exceeds wire.MaxDataWords (still returned, never
// dropped). A packet is
// "complete" once either a fresh header or an EOF terminator is found
// following it; an incomplete tail is left in the buffer for the next
// Feed/Pass cycle.
func (f *Framer) Pass() (packets [][]byte, oversize int) {
	for {
		const minPacket = 2 * wire.WordLen // one header + at least one trailing word
		if len(f.buf) < minPacket {
			return packets, oversize
		}

		nwords := len(f.buf) / wire.WordLen
		boundary := -1
		eof := false
		for i := 1; i < nwords; i++ {
			off := i * wire.WordLen
			start, roach := wire.PeekMarker(f.buf[off : off+wire.WordLen])
			switch {
			case start == wire.StartHeader:
				boundary = i
			case start == wire.StartEOF && roach == wire.RoachEOF:
				boundary = i
				eof = true
			default:
				continue
			}
			break
		}

		if boundary < 0 {
			// no boundary yet: current packet is still incomplete.
			return packets, oversize
		}

		pktLen := boundary * wire.WordLen
		pkt := make([]byte, pktLen)
		copy(pkt, f.buf[:pktLen])
		packets = append(packets, pkt)

		if boundary > wire.MaxDataWords {
			oversize++
		}

		if eof {
			f.buf = f.buf[pktLen+wire.WordLen:] // drop the terminator word too
		} else {
			f.buf = f.buf[pktLen:]
		}
	}
}
