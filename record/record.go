// Package record implements the Recorder: it drains one byte stream to
// timestamped files, rotating every wall-clock second, gated by a
// filesystem control plane (START/STOP/QUIT).
package record // import "github.com/mstrader/MkidDigitalReadout/record"

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mstrader/MkidDigitalReadout/internal/crc16"
	"github.com/mstrader/MkidDigitalReadout/internal/fifo"
	"github.com/mstrader/MkidDigitalReadout/watchdog"
)

// State is one of the Recorder's four states.
type State int

const (
	Idle State = iota
	Opening
	Active
	Quit
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Opening:
		return "opening"
	case Active:
		return "active"
	case Quit:
		return "quit"
	default:
		return "unknown"
	}
}

// Recorder is the bulk-capture state machine described by the four
// states above. It is driven by repeated calls to Poll and Feed; it
// performs no I/O of its own beyond what those calls trigger, so it is straightforward to
// drive from a test without a real FIFO or filesystem watcher.
type Recorder struct {
	msg *log.Logger
	dog *watchdog.Watchdog

	startPath string
	stopPath  string
	quitPath  string

	state   State
	dir     string // destination directory, read from START
	cur     *os.File
	curPath string
	crc     crc16.Hash16
	nbytes  int64
	second  int64
}

// New creates a Recorder polling the given control-file paths.
func New(msg *log.Logger, startPath, stopPath, quitPath string) *Recorder {
	return &Recorder{
		msg:       msg,
		dog:       watchdog.New(msg, "daq-record"),
		startPath: startPath,
		stopPath:  stopPath,
		quitPath:  quitPath,
		state:     Idle,
		crc:       crc16.New(nil),
	}
}

// State reports the Recorder's current state.
func (r *Recorder) State() State { return r.state }

// Poll checks for QUIT, then for the state's own control file, advancing
// the state machine. It must be called once per loop iteration, before
// Feed.
func (r *Recorder) Poll() error {
	if exists(r.quitPath) {
		return r.doQuit()
	}

	switch r.state {
	case Idle:
		if exists(r.startPath) {
			return r.doOpen()
		}
	case Active:
		if exists(r.stopPath) {
			return r.doStop()
		}
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (r *Recorder) doOpen() error {
	dir, err := readControlFile(r.startPath)
	if err != nil {
		return fmt.Errorf("record: could not read START: %w", err)
	}
	_ = os.Remove(r.startPath)

	r.dir = dir
	r.second = nowSeconds()
	if err := r.openCurrent(); err != nil {
		return err
	}
	r.state = Active
	r.msg.Printf("recording started: dir=%q", r.dir)
	return nil
}

func (r *Recorder) openCurrent() error {
	r.curPath = filepath.Join(r.dir, fmt.Sprintf("%d.bin", r.second))
	f, err := os.OpenFile(r.curPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("record: could not open %q: %w", r.curPath, err)
	}
	r.cur = f
	r.nbytes = 0
	r.crc.Reset()
	return nil
}

// Feed is called once per non-blocking read of stream A. It appends p
// to the current file while Active, and rotates the file once a new
// wall-clock second has begun.
func (r *Recorder) Feed(p []byte) error {
	if r.state != Active {
		return nil
	}

	if len(p) > 0 {
		if _, err := r.cur.Write(p); err != nil {
			return fmt.Errorf("record: could not write %q: %w", r.curPath, err)
		}
		r.crc.Write(p)
		r.nbytes += int64(len(p))
	}

	now := nowSeconds()
	if now > r.second {
		if err := r.rotate(now); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) rotate(now int64) error {
	prevPath, prevBytes, prevCRC := r.curPath, r.nbytes, r.crc.Sum16()
	if err := r.closeCurrent(); err != nil {
		return err
	}

	r.msg.Printf("rotated %q: bytes=%d rate=%d bytes/sec crc16=0x%04x",
		prevPath, prevBytes, prevBytes, prevCRC)
	r.dog.Sample(prevPath, prevBytes)

	r.second = now
	if err := r.openCurrent(); err != nil {
		return err
	}
	r.state = Active
	return nil
}

func (r *Recorder) closeCurrent() error {
	if r.cur == nil {
		return nil
	}
	err := r.cur.Close()
	r.cur = nil
	if err != nil {
		return fmt.Errorf("record: could not close %q: %w", r.curPath, err)
	}
	return nil
}

func (r *Recorder) doStop() error {
	if err := r.closeCurrent(); err != nil {
		return err
	}
	_ = os.Remove(r.stopPath)
	r.state = Idle
	r.msg.Printf("recording stopped")
	return nil
}

func (r *Recorder) doQuit() error {
	err := r.closeCurrent()
	_ = os.Remove(r.startPath)
	_ = os.Remove(r.stopPath)
	_ = os.Remove(r.quitPath)
	r.state = Quit
	if err != nil {
		return err
	}
	return nil
}

func readControlFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func nowSeconds() int64 { return time.Now().Unix() }

// Run drives the Recorder against a non-blocking FIFO reader until Quit
// is reached. It is the loop cmd/daq-record runs; exposed at package
// level so it can be exercised without a real process.
func Run(r *Recorder, f *os.File, pollEvery time.Duration) error {
	buf := make([]byte, 1024) // spec §4.3 action 2: reads are up to 1024 bytes
	for {
		if err := r.Poll(); err != nil {
			return err
		}
		if r.State() == Quit {
			return nil
		}

		n, err := fifo.Read(f, buf)
		if err != nil {
			return fmt.Errorf("record: could not read stream: %w", err)
		}
		if n > 0 {
			if err := r.Feed(buf[:n]); err != nil {
				return err
			}
			continue
		}

		if err := r.Feed(nil); err != nil {
			return err
		}
		time.Sleep(pollEvery)
	}
}
