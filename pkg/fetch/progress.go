package fetch

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Reporter prints an in-place, single-line status during a transfer. Each
// status overwrites the previous one with a carriage return and enough
// padding to erase leftover characters; no newline is emitted until Finish.
type Reporter struct {
	out     io.Writer
	lastLen int
}

// NewReporter creates a progress reporter. A nil writer selects stdout.
func NewReporter(out io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{out: out}
}

// Progress reports bytes transferred so far against the expected total as
// "<bytes>  [<percent>%]". An unknown total (<= 0) drops the percentage.
func (r *Reporter) Progress(bytesSoFar, total int64) {
	if total > 0 {
		r.Status(fmt.Sprintf("%d  [%.2f%%]", bytesSoFar, float64(bytesSoFar)*100/float64(total)))
		return
	}
	r.Status(fmt.Sprintf("%d bytes", bytesSoFar))
}

// Status overwrites the currently displayed line with msg.
func (r *Reporter) Status(msg string) {
	padding := ""
	if pad := r.lastLen - len(msg); pad > 0 {
		padding = strings.Repeat(" ", pad)
	}
	fmt.Fprintf(r.out, "\r%s%s", msg, padding)
	r.lastLen = len(msg)
}

// Finish terminates the status line with a newline, if one was in progress.
func (r *Reporter) Finish() {
	if r.lastLen > 0 {
		fmt.Fprintln(r.out)
		r.lastLen = 0
	}
}
