// Package protocol frames one command/response exchange with the device:
// send a command line, read the reply until the line goes idle, and parse the
// status-terminated response grammar into an outcome.
package protocol

import (
	"strings"
)

const (
	// SuccessToken is the status line the device sends on success.
	SuccessToken = "OK"
	// MaxResponseBytes caps one response read.
	MaxResponseBytes = 1024
)

// Failure codes produced by the exchange itself, as opposed to status tokens
// parsed from the device reply.
const (
	CodeTimedOut   = "timed out"
	CodeWriteError = "write-error"
	CodeReadError  = "read-error"
)

// Conn is the transport surface one exchange needs.
type Conn interface {
	Write(p []byte) error
	ReadUntilIdle(max int) ([]byte, error)
	Purge() error
}

// Tracer receives request/response debug traces.
type Tracer interface {
	Debugf(format string, args ...any)
}

// Outcome is the verdict of one exchange. Either OK with a payload, or a
// failure code with optional detail (devices typically echo a diagnostic
// message before the status token).
type Outcome struct {
	OK      bool
	Payload string
	Code    string
	Detail  string
}

// Success builds a successful outcome.
func Success(payload string) Outcome {
	return Outcome{OK: true, Payload: payload}
}

// Failure builds a failed outcome.
func Failure(code, detail string) Outcome {
	return Outcome{Code: code, Detail: detail}
}

func (o Outcome) String() string {
	if o.OK {
		return "OK"
	}
	if o.Detail == "" {
		return o.Code
	}
	return o.Code + ": " + strings.TrimSpace(o.Detail)
}

// Exchanger runs exchanges over one connection.
type Exchanger struct {
	conn  Conn
	trace Tracer
}

// NewExchanger wraps conn. trace may be nil.
func NewExchanger(conn Conn, trace Tracer) *Exchanger {
	return &Exchanger{conn: conn, trace: trace}
}

// Send writes command plus a newline, reads the response until idle, and
// parses it. A write failure purges the transport queues best-effort so the
// next exchange starts clean.
func (e *Exchanger) Send(command string) Outcome {
	e.debugf(">>> %s", command)

	if err := e.conn.Write([]byte(command + "\n")); err != nil {
		_ = e.conn.Purge()
		return Failure(CodeWriteError, err.Error())
	}

	raw, err := e.conn.ReadUntilIdle(MaxResponseBytes)
	if err != nil {
		return Failure(CodeReadError, err.Error())
	}

	text := NormalizeEOL(string(raw))
	e.debugf("<<< %s", text)

	body, token, ok := splitStatus(text)
	if !ok {
		return Failure(CodeTimedOut, "")
	}
	if token == SuccessToken {
		return Success(body)
	}
	return Failure(token, body)
}

func (e *Exchanger) debugf(format string, args ...any) {
	if e.trace != nil {
		e.trace.Debugf(format, args...)
	}
}

// NormalizeEOL collapses \r\n, \n\r and bare \r line endings to \n.
// Normalizing an already-\n-only text is a no-op.
func NormalizeEOL(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			out.WriteByte('\n')
		case '\n':
			if i+1 < len(s) && s[i+1] == '\r' {
				i++
			}
			out.WriteByte('\n')
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

// splitStatus parses the normalized response grammar: body '\n' status '\n',
// where status is the final non-empty line and matches [-A-Za-z0-9_?]*. An
// explicit scan, not a regex, so the match semantics are exact.
func splitStatus(s string) (body, token string, ok bool) {
	if !strings.HasSuffix(s, "\n") {
		return "", "", false
	}
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")

	last := len(lines) - 1
	for last >= 0 && lines[last] == "" {
		last--
	}
	if last < 0 {
		return "", "", false
	}

	token = lines[last]
	if !validStatusToken(token) {
		return "", "", false
	}
	return strings.Join(lines[:last], "\n"), token, true
}

func validStatusToken(tok string) bool {
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '?':
		default:
			return false
		}
	}
	return true
}
