package teller

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"
)

// MaxLineLength caps one line of client input. Bytes past the cap are
// discarded up to the end of the line.
const MaxLineLength = 1024

// ErrDisconnected is returned once the client has gone away: a read or
// write failed, the peer closed, or the idle deadline passed.
var ErrDisconnected = errors.New("client disconnected")

// Wire is the line protocol spoken with telnet-style clients.
//
// Output is buffered and flushed whenever the server waits for input, so a
// prompt and the text before it reach the client together. Input lines end
// at '\n'; '\r' bytes are dropped anywhere in the line.
//
// A Wire is used by one goroutine.
type Wire struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
	idle time.Duration
}

// NewWire wraps conn. idle > 0 arms a read deadline before every line.
func NewWire(conn net.Conn, idle time.Duration) *Wire {
	return &Wire{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
		idle: idle,
	}
}

// Write buffers p. Write errors surface on the next Flush.
func (w *Wire) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

// WriteLine buffers s followed by a newline.
func (w *Wire) WriteLine(s string) {
	_, _ = w.w.WriteString(s)
	_ = w.w.WriteByte('\n')
}

// Printf buffers a formatted line.
func (w *Wire) Printf(format string, args ...any) {
	w.WriteLine(fmt.Sprintf(format, args...))
}

// Flush sends buffered output.
func (w *Wire) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return nil
}

// ReadLine flushes pending output and reads one line of input.
func (w *Wire) ReadLine() (string, error) {
	if err := w.Flush(); err != nil {
		return "", err
	}
	if w.idle > 0 {
		if err := w.conn.SetReadDeadline(time.Now().Add(w.idle)); err != nil {
			return "", fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
	}

	line := make([]byte, 0, 64)
	for {
		b, err := w.r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
		switch b {
		case '\n':
			return string(line), nil
		case '\r':
			continue
		}
		if len(line) < MaxLineLength {
			line = append(line, b)
		}
	}
}

// Ask writes prompt without a newline and reads the answer.
func (w *Wire) Ask(prompt string) (string, error) {
	_, _ = w.w.WriteString(prompt)
	return w.ReadLine()
}

// AskInt asks for a number. Input that is not a number reads as 0, which
// every menu treats as an invalid choice or a cancel.
func (w *Wire) AskInt(prompt string) (int, error) {
	s, err := w.Ask(prompt)
	if err != nil {
		return 0, err
	}
	return atoi(s), nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// toID narrows a typed number to a record id. Numbers outside
// 1..math.MaxInt32 give 0, which matches no record.
func toID(n int) int32 {
	if n < 1 || n > math.MaxInt32 {
		return 0
	}
	return int32(n)
}
