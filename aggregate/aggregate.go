// Package aggregate implements the Aggregator: it drains the
// detector's byte stream, reframes and parses packets (package
// framer, package wire), accumulates a photon-count image (package
// photonimg), and flushes it once per wall-clock second.
package aggregate // import "github.com/mstrader/MkidDigitalReadout/aggregate"

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/mstrader/MkidDigitalReadout/framer"
	"github.com/mstrader/MkidDigitalReadout/photonimg"
	"github.com/mstrader/MkidDigitalReadout/wire"
)

// FrameTable tracks the expected next frame number for every board.
// A mismatch is diagnostic only: the counter always advances from its
// old value, it never resyncs to the frame actually received (observed
// source behavior, kept on purpose — see DESIGN.md).
type FrameTable struct {
	expected [wire.NRoach]uint16
}

// Observe records a received header's (roach, frame) pair and reports
// true when it did not match expectation.
func (t *FrameTable) Observe(roach uint8, frame uint16) (mismatch bool) {
	if int(roach) >= wire.NRoach {
		return true
	}
	mismatch = t.expected[roach] != frame
	t.expected[roach] = (t.expected[roach] + 1) % 4096
	return mismatch
}

// Expected returns the current expected frame number for roach.
func (t *FrameTable) Expected(roach uint8) uint16 {
	if int(roach) >= wire.NRoach {
		return 0
	}
	return t.expected[roach]
}

// Offset is a per-board pixel-calibration offset, applied before the
// mod-reduction already performed by photonimg.Image.Add.
type Offset struct {
	X, Y int
}

// ParsePacket decodes one complete packet (header + data words, as
// returned by framer.Framer.Pass) into img and frames. offsets may be
// nil, in which case every board is treated as having a zero offset.
// It returns true when the header's frame number did not match
// expectation.
func ParsePacket(img *photonimg.Image, pkt []byte, frames *FrameTable, offsets map[uint8]Offset) bool {
	hdr := wire.DecodeHeader(pkt[:wire.WordLen])
	mismatch := frames.Observe(hdr.Roach, hdr.Frame)

	off := offsets[hdr.Roach]
	for i := wire.WordLen; i+wire.WordLen <= len(pkt); i += wire.WordLen {
		d := wire.DecodeData(pkt[i : i+wire.WordLen])
		x := wrapMod(int(d.XCoord)+off.X, wire.XPix)
		y := wrapMod(int(d.YCoord)+off.Y, wire.YPix)
		img.Add(uint16(x), uint16(y))
	}
	return mismatch
}

func wrapMod(v, m int) int {
	v %= m
	if v < 0 {
		v += m
	}
	return v
}

// Aggregator runs the one-second accumulate/flush/parse loop described
// in spec §4.3.
type Aggregator struct {
	msg *log.Logger

	outDir   string // where <second>.img files are written
	renderer string // path to the image-to-PNG renderer, "" disables it

	img     photonimg.Image
	frames  FrameTable
	offsets map[uint8]Offset
	framer  framer.Framer

	second    int64
	rate      rateHistory
	pktCount  uint64
	oversize  uint64
	mismatch  uint64
	rotations uint64
}

// New creates an Aggregator writing to outDir and invoking renderer
// (if non-empty) once per flushed second.
func New(msg *log.Logger, outDir, renderer string, offsets map[uint8]Offset) *Aggregator {
	return &Aggregator{
		msg:      msg,
		outDir:   outDir,
		renderer: renderer,
		offsets:  offsets,
		second:   nowSeconds(),
	}
}

func nowSeconds() int64 { return time.Now().Unix() }

// Feed appends freshly-read bytes from the byte stream to the
// reassembly buffer. p must hold a whole number of 8-byte words.
func (a *Aggregator) Feed(p []byte) {
	a.framer.Feed(p)
}

// ParsePass runs one parse pass over the reassembly buffer, updating
// the image and frame table for every completed packet.
func (a *Aggregator) ParsePass() {
	packets, oversize := a.framer.Pass()
	a.oversize += uint64(oversize)
	if oversize > 0 {
		a.msg.Printf("oversize packet(s) detected: %d this pass", oversize)
	}
	for _, pkt := range packets {
		mismatch := ParsePacket(&a.img, pkt, &a.frames, a.offsets)
		a.pktCount++
		if mismatch {
			a.mismatch++
		}
	}
}

// MaybeRollover checks the wall clock and, if a new second has begun,
// flushes the current image to <outDir>/<second>.img, resets it, and
// triggers the renderer. It returns true if a rollover happened.
func (a *Aggregator) MaybeRollover() (bool, error) {
	now := nowSeconds()
	if now <= a.second {
		return false, nil
	}

	flushed := a.second
	path := filepath.Join(a.outDir, fmt.Sprintf("%d.img", flushed))
	f, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("aggregate: could not create %q: %w", path, err)
	}
	_, werr := a.img.WriteTo(f)
	cerr := f.Close()
	if werr != nil {
		return false, fmt.Errorf("aggregate: could not write %q: %w", path, werr)
	}
	if cerr != nil {
		return false, fmt.Errorf("aggregate: could not close %q: %w", path, cerr)
	}

	a.rate.push(a.pktCount)
	a.msg.Printf(
		"flushed %q: sum=%d overflow=%d parse-rate=%d pkts/sec buffer-depth=%d bytes (rolling-mean=%0.1f)",
		path, a.img.Sum(), a.img.Overflow(), a.pktCount, a.framer.Len(), a.rate.mean(),
	)

	a.rotations++
	if a.rotations%60 == 0 {
		a.msg.Printf("parse-rate last minute: mean=%0.1f max=%d pkts/sec", a.rate.mean(), a.rate.max())
	}

	a.img.Reset()
	a.pktCount = 0
	a.second = now

	a.render(path, flushed)
	return true, nil
}

// render invokes the external Bin2PNG-style renderer asynchronously.
// A failure to spawn it is recoverable (spec §7): it is logged, not
// propagated.
func (a *Aggregator) render(imgPath string, second int64) {
	if a.renderer == "" {
		return
	}
	pngPath := filepath.Join(a.outDir, fmt.Sprintf("%d.png", second))
	cmd := exec.Command(a.renderer, imgPath, pngPath)
	if err := cmd.Start(); err != nil {
		a.msg.Printf("could not start renderer %q: %+v", a.renderer, err)
		return
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			a.msg.Printf("renderer %q exited with error: %+v", a.renderer, err)
		}
	}()
}

// Stats returns the packet count since the last rollover and the running
// oversize and frame-mismatch totals, for diagnostics and tests.
func (a *Aggregator) Stats() (packets, oversize, mismatches uint64) {
	return a.pktCount, a.oversize, a.mismatch
}

// Image exposes the in-flight accumulation image for tests.
func (a *Aggregator) Image() *photonimg.Image { return &a.img }
