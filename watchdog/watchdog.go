// Package watchdog mails an alert when a monitored file stops growing.
// It is the Recorder's stall detector, adapted from this lineage's
// eda-ctl file-growth monitor to a single in-process file rather than a
// glob over a run directory.
package watchdog // import "github.com/mstrader/MkidDigitalReadout/watchdog"

import (
	"crypto/tls"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	mail "gopkg.in/gomail.v2"
)

var (
	mailUsr  = os.Getenv("MAIL_USERNAME")
	mailPwd  = os.Getenv("MAIL_PASSWORD")
	mailSrv  = os.Getenv("MAIL_SERVER")
	mailPort = atoi(os.Getenv("MAIL_PORT"))
	mailTgts = splitNonEmpty(os.Getenv("MAIL_TGTS"))
)

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Watchdog tracks the size of one file across successive samples and
// alerts by e-mail when two consecutive samples report the same size.
type Watchdog struct {
	msg      *log.Logger
	name     string // label used in the alert subject, e.g. the recorder's program name
	last     int64
	haveLast bool
	alerts   int
}

// New creates a Watchdog labelled name, used for logging and alert
// subjects only.
func New(msg *log.Logger, name string) *Watchdog {
	return &Watchdog{msg: msg, name: name}
}

// Sample records the size of the file just rotated out and compares it
// against the previous sample, firing an alert on a tie. The Recorder
// calls it once per rotation with the byte count of the one-second file
// it has just closed, so an alert fires whenever two consecutive
// one-second files hold the same number of bytes: two empty seconds in
// a row, but also two non-empty seconds of equal size.
func (w *Watchdog) Sample(path string, size int64) {
	defer func() {
		w.last = size
		w.haveLast = true
	}()

	if !w.haveLast {
		return
	}
	if size != w.last {
		w.alerts = 0
		return
	}

	w.msg.Printf("file %q did not grow (size=%d bytes)", path, size)

	const maxAlerts = 5
	if w.alerts < maxAlerts {
		w.alertMail(path, size)
	}
	w.alerts++
}

func (w *Watchdog) alertMail(path string, size int64) {
	if mailUsr == "" || mailPwd == "" || mailSrv == "" || mailPort == 0 || len(mailTgts) == 0 {
		w.msg.Printf("could not send mail alert: missing MAIL_* credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", mailUsr)
	msg.SetHeader("Bcc", mailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[%s] stall alert: %q", w.name, path))
	msg.SetBody("text/plain", fmt.Sprintf("file: %q\nsize: %d bytes\n", path, size))

	dial := mail.NewDialer(mailSrv, mailPort, mailUsr, mailPwd)
	dial.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	if err := dial.DialAndSend(msg); err != nil {
		w.msg.Printf("could not send mail alert: %+v", err)
	}
}
