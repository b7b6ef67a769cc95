package teller

import (
	"math"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeWire(t *testing.T, idle time.Duration) (*Wire, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return NewWire(server, idle), client
}

func TestReadLineStripsCarriageReturns(t *testing.T) {
	w, client := pipeWire(t, 0)
	go func() { _, _ = client.Write([]byte("SB\r100\r01\r\nnext\n")) }()

	line, err := w.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "SB10001", line)

	line, err = w.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "next", line)
}

func TestReadLineCapsLength(t *testing.T) {
	w, client := pipeWire(t, 0)
	long := strings.Repeat("x", MaxLineLength+500)
	go func() { _, _ = client.Write([]byte(long + "\nok\n")) }()

	line, err := w.ReadLine()
	require.NoError(t, err)
	assert.Len(t, line, MaxLineLength)

	line, err = w.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "ok", line)
}

func TestReadLineReportsDisconnect(t *testing.T) {
	w, client := pipeWire(t, 0)
	go func() {
		_, _ = client.Write([]byte("partial"))
		_ = client.Close()
	}()

	_, err := w.ReadLine()
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestReadLineIdleTimeout(t *testing.T) {
	w, _ := pipeWire(t, 20*time.Millisecond)

	_, err := w.ReadLine()
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestAskFlushesPrompt(t *testing.T) {
	w, client := pipeWire(t, 0)

	got := make(chan string, 1)
	go func() {
		buf := make([]byte, len("Enter amount: "))
		n, _ := client.Read(buf)
		got <- string(buf[:n])
		_, _ = client.Write([]byte("42\n"))
	}()

	n, err := w.AskInt("Enter amount: ")
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	assert.Equal(t, "Enter amount: ", <-got)
}

func TestToID(t *testing.T) {
	assert.Equal(t, int32(7), toID(7))
	assert.Equal(t, int32(math.MaxInt32), toID(math.MaxInt32))
	assert.Zero(t, toID(0))
	assert.Zero(t, toID(-3))
	assert.Zero(t, toID(math.MaxInt32+1))
	assert.Zero(t, toID(1<<32+2))
}
