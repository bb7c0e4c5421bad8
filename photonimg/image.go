// Package photonimg holds the photon-count image accumulated by the
// Aggregator over one wall-clock second.
package photonimg // import "github.com/mstrader/MkidDigitalReadout/photonimg"

import (
	"encoding/binary"
	"io"

	"github.com/mstrader/MkidDigitalReadout/wire"
)

// Image is a dense XPix x YPix grid of photon counts, column-major
// (cell[x][y]), saturating at 65535.
type Image struct {
	cells    [wire.XPix][wire.YPix]uint16
	overflow uint64 // number of Add calls that hit the saturation ceiling
}

// Add increments the cell at (x, y), reducing both coordinates modulo
// their extent first (spec: coordinates are taken modulo XPix/YPix).
// It saturates at 65535 rather than wrapping.
func (img *Image) Add(x, y uint16) {
	cx := int(x) % wire.XPix
	cy := int(y) % wire.YPix
	if img.cells[cx][cy] == 65535 {
		img.overflow++
		return
	}
	img.cells[cx][cy]++
}

// At returns the count at (x, y) without any reduction.
func (img *Image) At(x, y int) uint16 { return img.cells[x][y] }

// Sum returns the sum of all cells, used by tests to check the image
// conservation invariant.
func (img *Image) Sum() uint64 {
	var sum uint64
	for x := 0; x < wire.XPix; x++ {
		for y := 0; y < wire.YPix; y++ {
			sum += uint64(img.cells[x][y])
		}
	}
	return sum
}

// Overflow returns the number of saturating increments observed since
// the last Reset.
func (img *Image) Overflow() uint64 { return img.overflow }

// Reset zeroes every cell and the overflow counter, ready for the next
// one-second accumulation window.
func (img *Image) Reset() {
	for x := range img.cells {
		for y := range img.cells[x] {
			img.cells[x][y] = 0
		}
	}
	img.overflow = 0
}

// WriteTo writes the grid as raw little-endian 16-bit cells in
// column-major order, the `.img` file format from spec §6: exactly
// XPix*YPix*2 bytes.
func (img *Image) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, wire.XPix*wire.YPix*2)
	i := 0
	for x := 0; x < wire.XPix; x++ {
		for y := 0; y < wire.YPix; y++ {
			binary.LittleEndian.PutUint16(buf[i:i+2], img.cells[x][y])
			i += 2
		}
	}
	n, err := w.Write(buf)
	return int64(n), err
}
