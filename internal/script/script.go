// Package script drives a line-oriented provisioning script through the
// exchange protocol: comments and blanks are skipped, macros are expanded,
// and each remaining line becomes one command/response exchange.
package script

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mcci-catena/catenaprov/internal/macro"
	"github.com/mcci-catena/catenaprov/internal/protocol"
	"github.com/mcci-catena/catenaprov/internal/runctx"
)

// StdinName is the sentinel source name that reads the script from stdin.
const StdinName = "-"

// Runner executes scripts against one exchanger.
type Runner struct {
	ex     *protocol.Exchanger
	rc     *runctx.Context
	stdout io.Writer
	stdin  io.Reader
}

// NewRunner builds a script runner. stdout receives echoed lines when echo
// mode is on; stdin backs the "-" source.
func NewRunner(ex *protocol.Exchanger, rc *runctx.Context, stdout io.Writer, stdin io.Reader) *Runner {
	return &Runner{ex: ex, rc: rc, stdout: stdout, stdin: stdin}
}

// Run executes the named script (or stdin for "-"). It reports whether the
// whole script completed without a failed exchange or I/O error; the first
// failure stops the script, and the error return is non-nil only for the
// fatal macro-suffix case, which must abort the entire run.
func (r *Runner) Run(source string) (bool, error) {
	r.rc.Debugf("DoScript: %s", source)

	reader, name, closer, err := r.open(source)
	if err != nil {
		r.rc.Errorf("Can't open file: %v", err)
		return false, nil
	}
	if closer != nil {
		defer closer()
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		expanded, err := macro.Expand(line, r.rc.Vars(), r.rc)
		if err != nil {
			return false, fmt.Errorf("%s:%d: %w", name, lineNo, err)
		}
		if strings.TrimSpace(expanded) == "" {
			continue
		}
		r.rc.Verbosef("Expansion of %q: %q", line, expanded)

		if r.rc.Flags().Echo {
			fmt.Fprintln(r.stdout, expanded)
		}
		if !r.rc.Flags().WriteEnable {
			r.rc.Debugf("%s:%d: write disabled, skipping send", name, lineNo)
			continue
		}

		if out := r.ex.Send(expanded); !out.OK {
			r.rc.Errorf("%s:%d: %q failed: %s", name, lineNo, line, out)
			return false, nil
		}
	}
	if err := scanner.Err(); err != nil {
		r.rc.Errorf("Error reading %s: %v", name, err)
		return false, nil
	}
	if lineNo == 0 {
		r.rc.Errorf("Empty file: %s", name)
		return false, nil
	}
	return true, nil
}

func (r *Runner) open(source string) (io.Reader, string, func(), error) {
	if source == StdinName {
		in := r.stdin
		if in == nil {
			in = os.Stdin
		}
		return in, "<stdin>", nil, nil
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, source, nil, err
	}
	return f, source, func() { f.Close() }, nil
}
