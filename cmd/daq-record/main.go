// Command daq-record runs the Recorder: it drains the WriterPipe.pip
// byte stream into timestamped bulk capture files under operator
// control (START/STOP/QUIT).
package main // import "github.com/mstrader/MkidDigitalReadout/cmd/daq-record"

import (
	"flag"
	"log"
	"path/filepath"
	"time"

	"github.com/mstrader/MkidDigitalReadout/internal/fifo"
	"github.com/mstrader/MkidDigitalReadout/record"
)

func main() {
	var (
		ramdisk = flag.String("ramdisk", "/dev/shm/daq", "ramdisk directory holding FIFOs and control files")
		poll    = flag.Duration("poll", 1*time.Millisecond, "busy-poll interval when the stream is empty")
	)
	flag.Parse()

	log.SetPrefix("daq-record: ")
	log.SetFlags(0)

	if err := run(*ramdisk, *poll); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(ramdisk string, poll time.Duration) error {
	pipePath := filepath.Join(ramdisk, "WriterPipe.pip")
	f, err := fifo.OpenReader(pipePath)
	if err != nil {
		return err
	}
	defer f.Close()

	r := record.New(
		log.New(log.Writer(), log.Prefix(), log.Flags()),
		filepath.Join(ramdisk, "START"),
		filepath.Join(ramdisk, "STOP"),
		filepath.Join(ramdisk, "QUIT"),
	)

	log.Printf("running, reading %q...", pipePath)
	return record.Run(r, f, poll)
}
