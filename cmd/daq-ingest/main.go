// Command daq-ingest is the Supervisor: it sets up the ramdisk rendezvous
// (FIFOs and control files), execs the Recorder and Aggregator as
// subprocesses, and runs the Ingestor's UDP receive loop in-process.
package main // import "github.com/mstrader/MkidDigitalReadout/cmd/daq-ingest"

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"

	"github.com/mstrader/MkidDigitalReadout/ingest"
	"github.com/mstrader/MkidDigitalReadout/internal/fifo"
)

func main() {
	var (
		ramdisk   = flag.String("ramdisk", "/dev/shm/daq", "ramdisk directory for FIFOs and control files")
		addr      = flag.String("addr", ":50000", "UDP address to receive detector packets on")
		recordBin = flag.String("record-bin", "daq-record", "path to the Recorder binary")
		aggBin    = flag.String("aggregate-bin", "daq-aggregate", "path to the Aggregator binary")
		doMon     = flag.Bool("pmon", false, "enable pmon CPU/RSS monitoring of the children")
		monFreq   = flag.Duration("pmon-freq", 1*time.Second, "pmon sampling frequency")
	)
	flag.Parse()

	log.SetPrefix("daq-ingest: ")
	log.SetFlags(0)

	if err := run(*ramdisk, *addr, *recordBin, *aggBin, *doMon, *monFreq); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(ramdisk, addr, recordBin, aggBin string, doMon bool, monFreq time.Duration) error {
	if err := os.MkdirAll(ramdisk, 0755); err != nil {
		return fmt.Errorf("could not create ramdisk dir %q: %w", ramdisk, err)
	}

	cuberPath := filepath.Join(ramdisk, "CuberPipe.pip")
	writerPath := filepath.Join(ramdisk, "WriterPipe.pip")

	// steps 1-2: stale FIFOs removed and recreated by fifo.Create.
	if err := fifo.Create(cuberPath); err != nil {
		return err
	}
	if err := fifo.Create(writerPath); err != nil {
		return err
	}

	// step 3: stale control files removed.
	for _, name := range []string{"START", "STOP", "QUIT"} {
		_ = os.Remove(filepath.Join(ramdisk, name))
	}

	var grp errgroup.Group

	// steps 4-5: exec Recorder and Aggregator.
	recordCmd := exec.Command(recordBin, "-ramdisk", ramdisk)
	aggCmd := exec.Command(aggBin, "-ramdisk", ramdisk)
	for _, cmd := range []*exec.Cmd{recordCmd, aggCmd} {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := startChild(recordCmd); err != nil {
		return err
	}
	if err := startChild(aggCmd); err != nil {
		return err
	}

	if doMon {
		monitor(recordCmd.Process.Pid, "daq-record", ramdisk, monFreq)
		monitor(aggCmd.Process.Pid, "daq-aggregate", ramdisk, monFreq)
	}

	// step 7: drain exit status so no zombies accumulate, without
	// blocking the Supervisor on either child individually.
	grp.Go(func() error { return waitChild(recordCmd) })
	grp.Go(func() error { return waitChild(aggCmd) })

	// step 6: run the Ingestor in-process. It opens the writer ends
	// of both FIFOs, retrying past ENXIO until the children have
	// opened their reader ends.
	a, err := fifo.OpenWriterRetry(writerPath, 10*time.Second)
	if err != nil {
		return fmt.Errorf("could not open %q for writing: %w", writerPath, err)
	}
	defer a.Close()

	b, err := fifo.OpenWriterRetry(cuberPath, 10*time.Second)
	if err != nil {
		return fmt.Errorf("could not open %q for writing: %w", cuberPath, err)
	}
	defer b.Close()

	msg := log.New(log.Writer(), log.Prefix(), log.Flags())
	ing, err := ingest.Listen(msg, addr, a, b)
	if err != nil {
		return err
	}
	defer ing.Close()

	quitPath := filepath.Join(ramdisk, "QUIT")
	log.Printf("ingesting on %q...", addr)
	if err := ing.Run(func() bool { return exists(quitPath) }); err != nil {
		return err
	}

	// step 8: wait for both children with a bounded timeout.
	done := make(chan error, 1)
	go func() { done <- grp.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timed out waiting for children to exit")
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func startChild(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("could not start %q: %w", cmd.Path, err)
	}
	log.Printf("started %q (pid=%d)", filepath.Base(cmd.Path), cmd.Process.Pid)
	return nil
}

func waitChild(cmd *exec.Cmd) error {
	err := cmd.Wait()
	if err != nil {
		return fmt.Errorf("%q exited: %w", filepath.Base(cmd.Path), err)
	}
	log.Printf("%q exited cleanly", filepath.Base(cmd.Path))
	return nil
}

func monitor(pid int, name, ramdisk string, freq time.Duration) {
	p, err := pmon.Monitor(pid)
	if err != nil {
		log.Printf("could not start monitoring %q (pid=%d): %+v", name, pid, err)
		return
	}
	f, err := os.Create(filepath.Join(ramdisk, name+"-pmon.log"))
	if err != nil {
		log.Printf("could not create pmon log file for %q: %+v", name, err)
		return
	}
	p.W = f
	p.Freq = freq

	go func() {
		defer f.Close()
		if err := p.Run(); err != nil {
			log.Printf("could not run pmon for %q: %+v", name, err)
		}
	}()
}
