// Package wire decodes the 8-byte big-endian words emitted by the
// detector boards: header words and photon data words.
//
// Every word on the wire is big-endian; decoding a word is a two-step
// process — load it as a big-endian uint64, then peel off bit-fields
// MSB to LSB. No packed-struct overlay is used, for portability across
// hosts (spec note: packed bit-field layouts must not rely on
// compiler-specific struct packing).
package wire // import "github.com/mstrader/MkidDigitalReadout/wire"

import "encoding/binary"

const (
	// WordLen is the size, in bytes, of a header or data word.
	WordLen = 8

	// NRoach is the number of readout boards in the array.
	NRoach = 10

	// XPix and YPix bound the photon-count image.
	XPix = 80
	YPix = 125

	// MaxDataWords is the largest number of data words a single
	// packet may carry (1 header + up to 103 data words = 104 words).
	MaxDataWords = 103
)

const (
	// StartHeader marks the first word of a fresh packet.
	StartHeader uint8 = 0xFF
	// StartEOF, together with RoachEOF, marks a short-packet
	// terminator word that is consumed and discarded by the parser.
	StartEOF uint8 = 0x7F
	RoachEOF uint8 = 0xFF
)

// Header is the decoded form of a header word.
type Header struct {
	Start     uint8
	Roach     uint8
	Frame     uint16 // 12 bits
	Timestamp uint64 // 36 bits
}

// IsHeader reports whether the header word opens a new packet.
func (h Header) IsHeader() bool { return h.Start == StartHeader }

// IsEOF reports whether the header word is a short-packet terminator.
func (h Header) IsEOF() bool { return h.Start == StartEOF && h.Roach == RoachEOF }

// Data is the decoded form of a photon data word.
type Data struct {
	XCoord    uint16 // 10 bits
	YCoord    uint16 // 10 bits
	Timestamp uint16 // 9 bits
	Wvl       uint32 // 18 bits
	Baseline  uint32 // 17 bits
}

// DecodeHeader decodes an 8-byte big-endian header word.
func DecodeHeader(buf []byte) Header {
	w := binary.BigEndian.Uint64(buf[:WordLen])
	return Header{
		Start:     uint8(w >> 56),
		Roach:     uint8(w >> 48),
		Frame:     uint16(w>>36) & 0xFFF,
		Timestamp: w & 0xFFFFFFFFF, // 36 bits
	}
}

// DecodeData decodes an 8-byte big-endian photon data word.
func DecodeData(buf []byte) Data {
	w := binary.BigEndian.Uint64(buf[:WordLen])
	return Data{
		XCoord:    uint16(w>>54) & 0x3FF,
		YCoord:    uint16(w>>44) & 0x3FF,
		Timestamp: uint16(w>>35) & 0x1FF,
		Wvl:       uint32(w>>17) & 0x3FFFF,
		Baseline:  uint32(w) & 0x1FFFF,
	}
}

// PeekMarker decodes just the start/roach bits of a word, the minimum
// needed to classify it as a new header, an EOF terminator, or a data
// word continuing the current packet. It is cheaper than DecodeHeader
// for the boundary scan in the parse pass.
func PeekMarker(buf []byte) (start, roach uint8) {
	w := binary.BigEndian.Uint64(buf[:WordLen])
	return uint8(w >> 56), uint8(w >> 48)
}
