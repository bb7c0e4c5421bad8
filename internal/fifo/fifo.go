// Package fifo wraps the named-pipe plumbing used as the two
// single-producer/single-consumer byte streams between the Ingestor
// and its two sinks (spec §6): CuberPipe.pip and WriterPipe.pip.
package fifo // import "github.com/mstrader/MkidDigitalReadout/internal/fifo"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Create removes any stale FIFO at path and creates a fresh one, mode
// 0666 (world-readable/writable, matching the ramdisk rendezvous
// convention).
func Create(path string) error {
	_ = os.Remove(path)
	if err := unix.Mkfifo(path, 0666); err != nil {
		return fmt.Errorf("fifo: could not create %q: %w", path, err)
	}
	// mkfifo applies the process umask; set the mode explicitly.
	if err := os.Chmod(path, 0666); err != nil {
		return fmt.Errorf("fifo: could not chmod %q: %w", path, err)
	}
	return nil
}

// OpenReader opens path for non-blocking read. A non-blocking read
// that finds no data returns (0, nil), never an error (spec §5:
// "would-block is not an error").
func OpenReader(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("fifo: could not open %q for reading: %w", path, err)
	}
	return f, nil
}

// OpenWriter opens path for non-blocking write.
func OpenWriter(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("fifo: could not open %q for writing: %w", path, err)
	}
	return f, nil
}

// OpenWriterRetry opens path for non-blocking write, retrying while the
// kernel reports ENXIO (no reader has opened the other end yet). It
// gives up once timeout has elapsed.
func OpenWriterRetry(path string, timeout time.Duration) (*os.File, error) {
	deadline := time.Now().Add(timeout)
	for {
		f, err := OpenWriter(path)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, syscall.ENXIO) || time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Read performs one read from f that waits at most about a millisecond
// for data. "No data available", including no writer having the other
// end open, is reported as (0, nil) rather than an error.
func Read(f *os.File, buf []byte) (int, error) {
	// the runtime poller parks a FIFO read until data arrives; a short
	// deadline bounds that wait.
	if err := f.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return 0, err
	}
	n, err := f.Read(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, io.EOF) ||
			errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			return 0, nil
		}
		return n, err
	}
	return n, nil
}
