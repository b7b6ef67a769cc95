package commands

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/bankd/internal/cli/prompt"
	"github.com/marmos91/bankd/pkg/config"
	"github.com/spf13/cobra"
)

var (
	clientHost string
	clientPort int
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Connect to a bankd server interactively",
	Long: `Open an interactive teller session with a bankd server.

Server output is printed as it arrives and every line typed is sent back.
Password prompts are read without echo when stdin is a terminal.

Examples:
  # Connect to the local server on the configured port
  bankd client

  # Connect to a remote server
  bankd client --host bank.internal --port 8080`,
	RunE: runClient,
}

func init() {
	clientCmd.Flags().StringVar(&clientHost, "host", "localhost", "Server host")
	clientCmd.Flags().IntVar(&clientPort, "port", 0, "Server port (default: server.port from config)")
}

func runClient(cmd *cobra.Command, args []string) error {
	port := clientPort
	if port == 0 {
		cfg, err := config.Load(GetConfigFile())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		port = cfg.Server.Port
	}

	addr := net.JoinHostPort(clientHost, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()

	return runSession(conn, os.Stdin, os.Stdout, isTerminal(os.Stdin))
}

// runSession relays between conn and the local terminal until the server
// closes the connection or in reaches EOF.
func runSession(conn net.Conn, in io.Reader, out io.Writer, interactive bool) error {
	tracker := newPromptTracker()
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.MultiWriter(out, tracker), conn)
		tracker.close()
		done <- err
	}()

	reader := bufio.NewReader(in)
	for {
		open := tracker.wait(300 * time.Millisecond)
		if !open {
			break
		}

		var line string
		if interactive && tracker.wantsSecret() {
			_, _ = fmt.Fprint(out, "\r\033[K")
			pw, err := prompt.Password(strings.TrimSuffix(strings.TrimSpace(tracker.tailText()), ":"))
			if err != nil {
				if prompt.IsAborted(err) {
					break
				}
				return err
			}
			line = pw
		} else {
			s, err := reader.ReadString('\n')
			if err != nil && (s == "" || !errors.Is(err, io.EOF)) {
				break
			}
			line = strings.TrimRight(s, "\r\n")
		}

		tracker.consume()
		if _, err := io.WriteString(conn, line+"\n"); err != nil {
			break
		}
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	} else {
		_ = conn.Close()
	}

	err := <-done
	if err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
		return err
	}
	return nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// promptTracker watches server output for the text after the last newline,
// which is the prompt the server is waiting on.
type promptTracker struct {
	mu     sync.Mutex
	tail   []byte
	ready  chan struct{}
	closed bool
}

const maxTail = 256

func newPromptTracker() *promptTracker {
	return &promptTracker{ready: make(chan struct{}, 1)}
}

func (t *promptTracker) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i := bytes.LastIndexByte(p, '\n'); i >= 0 {
		t.tail = append(t.tail[:0], p[i+1:]...)
	} else {
		t.tail = append(t.tail, p...)
	}
	if len(t.tail) > maxTail {
		t.tail = t.tail[len(t.tail)-maxTail:]
	}
	if len(bytes.TrimSpace(t.tail)) > 0 {
		select {
		case t.ready <- struct{}{}:
		default:
		}
	}
	return len(p), nil
}

// wait blocks until a prompt arrives, the connection closes or timeout
// passes. It returns false once the server has closed the connection.
func (t *promptTracker) wait(timeout time.Duration) bool {
	select {
	case <-t.ready:
	case <-time.After(timeout):
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// consume forgets the answered prompt.
func (t *promptTracker) consume() {
	t.mu.Lock()
	t.tail = t.tail[:0]
	t.mu.Unlock()
	select {
	case <-t.ready:
	default:
	}
}

func (t *promptTracker) close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	select {
	case t.ready <- struct{}{}:
	default:
	}
}

func (t *promptTracker) tailText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.tail)
}

func (t *promptTracker) wantsSecret() bool {
	return strings.Contains(strings.ToLower(t.tailText()), "password")
}
