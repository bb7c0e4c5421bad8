// Package ingest implements the Ingestor: it receives UDP datagrams
// from the detector array and fans each one out, verbatim, to the two
// downstream byte streams (Recorder and Aggregator).
package ingest // import "github.com/mstrader/MkidDigitalReadout/ingest"

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"time"
)

const (
	// MaxDatagram is generous headroom over the largest packet the
	// wire protocol can produce (one header word plus 103 data
	// words).
	MaxDatagram = 1500

	readBufSize = 32 << 20
	readTimeout = 3 * time.Second
)

// Ingestor owns the UDP socket and the two downstream sinks.
type Ingestor struct {
	msg  *log.Logger
	conn *net.UDPConn
	a, b *os.File // stream A (Recorder), stream B (Aggregator)
}

// Listen binds addr (e.g. ":50000") and hints a 32 MiB receive buffer to
// the kernel. A failure to set the buffer size is fatal (spec: the
// Ingestor cannot safely run undersized against a kHz-rate source).
func Listen(msg *log.Logger, addr string, a, b *os.File) (*Ingestor, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("ingest: could not resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("ingest: could not listen on %q: %w", addr, err)
	}
	if err := conn.SetReadBuffer(readBufSize); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ingest: could not set read buffer: %w", err)
	}
	return &Ingestor{msg: msg, conn: conn, a: a, b: b}, nil
}

// Close releases the UDP socket.
func (ing *Ingestor) Close() error { return ing.conn.Close() }

// Run receives datagrams until quit reports true, fanning each one out
// to both sinks. Both writes are always attempted even if one fails;
// neither is retried, matching the streaming channel's no-retry
// contract.
func (ing *Ingestor) Run(quit func() bool) error {
	buf := make([]byte, MaxDatagram)
	for {
		if quit() {
			return nil
		}

		if err := ing.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return fmt.Errorf("ingest: could not set read deadline: %w", err)
		}
		n, _, err := ing.conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			return fmt.Errorf("ingest: could not receive datagram: %w", err)
		}

		ing.fanOut(buf[:n])
	}
}

func (ing *Ingestor) fanOut(p []byte) {
	if n, err := ing.a.Write(p); err != nil || n != len(p) {
		ing.msg.Printf("short/failed write to stream A: n=%d err=%+v", n, err)
	}
	if n, err := ing.b.Write(p); err != nil || n != len(p) {
		ing.msg.Printf("short/failed write to stream B: n=%d err=%+v", n, err)
	}
}
