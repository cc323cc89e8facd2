package transport

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestOpenRejectsLowBaudRate(t *testing.T) {
	_, err := Open("/dev/null", Options{BaudRate: 4800})
	if err == nil {
		t.Fatal("expected error for baud rate below minimum")
	}
	if !strings.Contains(err.Error(), "baud rate too small") {
		t.Fatalf("error = %v", err)
	}
}

func TestOpenRejectsNegativeCharDelay(t *testing.T) {
	_, err := Open("/dev/null", Options{CharDelay: -time.Millisecond})
	if err == nil {
		t.Fatal("expected error for negative character delay")
	}
}

type chunkReader struct {
	chunks  [][]byte
	windows []time.Duration
	setErr  error
	readErr error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.readErr != nil {
		return 0, r.readErr
	}
	if len(r.chunks) == 0 {
		return 0, nil // timeout: no data in window
	}
	chunk := r.chunks[0]
	r.chunks = r.chunks[1:]
	n := copy(p, chunk)
	return n, nil
}

func (r *chunkReader) SetReadTimeout(d time.Duration) error {
	r.windows = append(r.windows, d)
	return r.setErr
}

func TestReadUntilIdleStopsOnIdle(t *testing.T) {
	r := &chunkReader{chunks: [][]byte{[]byte("hel"), []byte("lo\nOK\n")}}

	got, err := readUntilIdle(r, 1024)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "hello\nOK\n" {
		t.Fatalf("read = %q", got)
	}

	// First window is the total timeout, the rest are inter-byte windows.
	if len(r.windows) != 3 {
		t.Fatalf("windows = %v", r.windows)
	}
	if r.windows[0] != ReadTotal {
		t.Fatalf("first window = %s, want %s", r.windows[0], ReadTotal)
	}
	for _, w := range r.windows[1:] {
		if w != ReadInterval {
			t.Fatalf("inter-byte window = %s, want %s", w, ReadInterval)
		}
	}
}

func TestReadUntilIdleRespectsMax(t *testing.T) {
	r := &chunkReader{chunks: [][]byte{[]byte("abcdef")}}

	got, err := readUntilIdle(r, 4)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "abcd" {
		t.Fatalf("read = %q, want %q", got, "abcd")
	}
}

func TestReadUntilIdleNoData(t *testing.T) {
	r := &chunkReader{}

	got, err := readUntilIdle(r, 1024)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("read = %q, want empty", got)
	}
}

func TestReadUntilIdleReturnsPartialOnError(t *testing.T) {
	r := &chunkReader{readErr: errors.New("port gone")}

	_, err := readUntilIdle(r, 1024)
	if err == nil {
		t.Fatal("expected read error")
	}
}

type recordingWriter struct {
	writes [][]byte
	err    error
	slow   time.Duration
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if w.slow > 0 {
		time.Sleep(w.slow)
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	w.writes = append(w.writes, buf)
	return len(p), nil
}

func TestWritePacedOneByteAtATime(t *testing.T) {
	w := &recordingWriter{}

	if err := writePaced(w, []byte("abc"), time.Microsecond, time.Second); err != nil {
		t.Fatalf("paced write: %v", err)
	}

	if len(w.writes) != 3 {
		t.Fatalf("writes = %d, want 3", len(w.writes))
	}
	var got []byte
	for _, chunk := range w.writes {
		if len(chunk) != 1 {
			t.Fatalf("chunk size = %d, want 1", len(chunk))
		}
		got = append(got, chunk...)
	}
	if string(got) != "abc" {
		t.Fatalf("wrote %q", got)
	}
}

func TestWritePacedPropagatesWriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("nope")}

	err := writePaced(w, []byte("ab"), time.Microsecond, time.Second)
	if err == nil {
		t.Fatal("expected write error")
	}
}

func TestWritePacedBudgetExceeded(t *testing.T) {
	w := &recordingWriter{slow: 5 * time.Millisecond}

	err := writePaced(w, []byte("abcdefgh"), 0, 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected budget timeout")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("error = %v", err)
	}
}
