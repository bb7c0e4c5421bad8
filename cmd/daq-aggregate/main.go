// Command daq-aggregate runs the Aggregator: it drains the
// CuberPipe.pip byte stream, reassembles packets, accumulates a
// photon-count image, and flushes it once per wall-clock second.
package main // import "github.com/mstrader/MkidDigitalReadout/cmd/daq-aggregate"

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mstrader/MkidDigitalReadout/aggregate"
	"github.com/mstrader/MkidDigitalReadout/boarddb"
	"github.com/mstrader/MkidDigitalReadout/internal/fifo"
)

func main() {
	var (
		ramdisk  = flag.String("ramdisk", "/dev/shm/daq", "ramdisk directory holding FIFOs and control files")
		outDir   = flag.String("out", "/dev/shm/daq/img", "directory to write <second>.img files to")
		renderer = flag.String("renderer", "", "path to an external .img-to-PNG renderer; empty disables rendering")
		dbname   = flag.String("db", "", "board condition database name; empty disables the lookup")
		poll     = flag.Duration("poll", 1*time.Millisecond, "busy-poll interval when the stream is empty")
	)
	flag.Parse()

	log.SetPrefix("daq-aggregate: ")
	log.SetFlags(0)

	if err := run(*ramdisk, *outDir, *renderer, *dbname, *poll); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(ramdisk, outDir, renderer, dbname string, poll time.Duration) error {
	msg := log.New(log.Writer(), log.Prefix(), log.Flags())

	offsets := loadOffsets(msg, dbname)

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	pipePath := filepath.Join(ramdisk, "CuberPipe.pip")
	f, err := fifo.OpenReader(pipePath)
	if err != nil {
		return err
	}
	defer f.Close()

	quitPath := filepath.Join(ramdisk, "QUIT")
	agg := aggregate.New(msg, outDir, renderer, offsets)

	log.Printf("running, reading %q...", pipePath)

	buf := make([]byte, 1024) // spec §4.3 action 2: reads are up to 1024 bytes
	for {
		if exists(quitPath) {
			log.Printf("QUIT detected, exiting")
			return nil
		}

		if _, err := agg.MaybeRollover(); err != nil {
			msg.Printf("could not roll over image: %+v", err)
		}

		n, err := fifo.Read(f, buf)
		if err != nil {
			return err
		}
		if n > 0 {
			agg.Feed(buf[:n])
			agg.ParsePass()
		}

		if n == 0 {
			time.Sleep(poll)
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// loadOffsets consults the board condition registry for per-board
// pixel offsets. A lookup failure is recoverable: every board falls
// back to a zero offset.
func loadOffsets(msg *log.Logger, dbname string) map[uint8]aggregate.Offset {
	if dbname == "" {
		return nil
	}

	db, err := boarddb.Open(dbname)
	if err != nil {
		msg.Printf("could not open board condition database: %+v", err)
		return nil
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	boards, err := db.AllBoards(ctx)
	if err != nil {
		msg.Printf("could not load board offsets: %+v", err)
		return nil
	}

	offsets := make(map[uint8]aggregate.Offset, len(boards))
	for roach, info := range boards {
		offsets[roach] = aggregate.Offset{X: info.XOffset, Y: info.YOffset}
	}
	return offsets
}
