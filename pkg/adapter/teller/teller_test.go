package teller

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/bankd/pkg/banking"
	"github.com/marmos91/bankd/pkg/events"
	"github.com/marmos91/bankd/pkg/models"
	"github.com/marmos91/bankd/pkg/repository"
	"github.com/marmos91/bankd/pkg/session"
	storeerrors "github.com/marmos91/bankd/pkg/store/errors"
	"github.com/marmos91/bankd/pkg/store/journal"
)

const ioTimeout = 5 * time.Second

type harness struct {
	t        *testing.T
	svc      *banking.Service
	sessions *session.Registry
	adapter  *Adapter
}

func newHarness(t *testing.T, capacity int, opts ...banking.Option) *harness {
	t.Helper()
	dir := t.TempDir()
	store, err := repository.Open(dir, nil)
	require.NoError(t, err)

	p, err := journal.NewFilePersister(dir)
	require.NoError(t, err)
	j := journal.New(p, store.RawTables()...)
	t.Cleanup(func() { _ = j.Close() })

	svc := banking.New(store, j, append([]banking.Option{banking.WithBcryptCost(bcrypt.MinCost)}, opts...)...)
	_, err = svc.Seed(context.Background())
	require.NoError(t, err)

	sessions := session.NewRegistry(capacity, nil)
	return &harness{
		t:        t,
		svc:      svc,
		sessions: sessions,
		adapter:  New(DefaultConfig(), svc, sessions),
	}
}

// client drives one connection served in the background.
type client struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
	done chan struct{}
}

func (h *harness) dial() *client {
	h.t.Helper()
	server, conn := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer server.Close()
		h.adapter.NewConnection(server, "test-conn").Serve(context.Background())
	}()
	c := &client{t: h.t, conn: conn, r: bufio.NewReader(conn), done: done}
	h.t.Cleanup(func() {
		_ = conn.Close()
		<-done
	})
	return c
}

// dialTCP connects to a listening adapter.
func (h *harness) dialTCP(addr string) *client {
	h.t.Helper()
	conn, err := net.DialTimeout("tcp", addr, ioTimeout)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { _ = conn.Close() })
	return &client{t: h.t, conn: conn, r: bufio.NewReader(conn)}
}

// expect reads until the output ends with s and returns everything read.
func (c *client) expect(s string) string {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	var buf strings.Builder
	for !strings.HasSuffix(buf.String(), s) {
		b, err := c.r.ReadByte()
		require.NoError(c.t, err, "waiting for %q, got %q", s, buf.String())
		buf.WriteByte(b)
	}
	return buf.String()
}

func (c *client) send(line string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(ioTimeout)))
	_, err := c.conn.Write([]byte(line + "\r\n"))
	require.NoError(c.t, err)
}

// rest reads until the server closes the connection.
func (c *client) rest() string {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	out, err := io.ReadAll(c.r)
	require.NoError(c.t, err)
	return string(out)
}

func (c *client) wait() {
	c.t.Helper()
	select {
	case <-c.done:
	case <-time.After(ioTimeout):
		c.t.Fatal("connection did not finish")
	}
}

func (c *client) login(role, id, password string) {
	c.t.Helper()
	c.expect("Enter choice (1-4): ")
	c.send(role)
	c.expect("Enter User ID: ")
	c.send(id)
	c.expect("Enter Password: ")
	c.send(password)
}

func TestRoleSelectionRepromptsOnInvalidChoice(t *testing.T) {
	h := newHarness(t, 0)
	c := h.dial()

	out := c.expect("Enter choice (1-4): ")
	assert.Contains(t, out, "Welcome to the Bank!")
	assert.Contains(t, out, " 1. Administrator\n 2. Manager\n 3. Employee\n 4. Customer")

	c.send("7")
	out = c.expect("Enter choice (1-4): ")
	assert.Contains(t, out, "Invalid choice. Please try again.")

	c.send("abc")
	out = c.expect("Enter choice (1-4): ")
	assert.Contains(t, out, "Invalid choice. Please try again.")
}

func TestRejectedLoginsCloseTheConnection(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		id       string
		password string
		want     string
	}{
		{"wrong password", "4", "2", "nope", "Login failed: Invalid User ID or Password."},
		{"unknown user", "4", "42", "cust123", "Login failed: Invalid User ID or Password."},
		{"non numeric id", "4", "ravi", "cust123", "Login failed: Invalid User ID or Password."},
		{"id past int32", "4", "4294967298", "cust123", "Login failed: Invalid User ID or Password."},
		{"id wrapping negative", "4", "-4294967294", "cust123", "Login failed: Invalid User ID or Password."},
		{"role mismatch", "2", "2", "cust123", "Login failed: Your User ID does not match the selected role."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 0)
			c := h.dial()
			c.login(tt.role, tt.id, tt.password)
			assert.Contains(t, c.rest(), tt.want)
			c.wait()
			assert.Zero(t, h.sessions.Len())
		})
	}
}

func TestDeactivatedUserIsRejected(t *testing.T) {
	h := newHarness(t, 0)
	manager, err := h.svc.User(context.Background(), 4)
	require.NoError(t, err)
	_, err = h.svc.SetUserStatus(context.Background(), manager, 2, false)
	require.NoError(t, err)

	c := h.dial()
	c.login("4", "2", "cust123")
	assert.Contains(t, c.rest(), "Login failed: Your account is deactivated. Contact support.")
}

func TestAlreadyLoggedInKeepsTheOtherSession(t *testing.T) {
	h := newHarness(t, 0)
	require.Equal(t, session.Granted, h.sessions.TryAcquire(2, models.RoleCustomer, "elsewhere"))

	c := h.dial()
	c.login("4", "2", "cust123")
	assert.Contains(t, c.rest(), "ERROR: This user is already logged in elsewhere.")
	c.wait()

	assert.True(t, h.sessions.IsActive(2), "a refused login must not release the existing session")
}

func TestServerFull(t *testing.T) {
	h := newHarness(t, 1)
	require.Equal(t, session.Granted, h.sessions.TryAcquire(3, models.RoleEmployee, "elsewhere"))

	c := h.dial()
	c.login("4", "2", "cust123")
	assert.Contains(t, c.rest(), "ERROR: Server is currently full. Please try again later.")
	c.wait()

	assert.False(t, h.sessions.IsActive(2))
	assert.Equal(t, 1, h.sessions.Len())
}

func TestCustomerDepositAndLogout(t *testing.T) {
	h := newHarness(t, 0)
	c := h.dial()
	c.login("4", "2", "cust123")

	out := c.expect("Enter your choice: ")
	assert.Contains(t, out, "Login Successful!")
	assert.Contains(t, out, "--- Welcome, Ravi. Please Select an Account ---")
	assert.Contains(t, out, "1. SB10001 (Balance: ₹5000.00)")
	assert.Contains(t, out, "2. SB10002 (Balance: ₹25000.00)")
	assert.Contains(t, out, "3. Logout")
	assert.True(t, h.sessions.IsActive(2))

	c.send("1")
	out = c.expect("Enter your choice: ")
	assert.Contains(t, out, "--- Customer Menu (Account: SB10001) ---")
	assert.Contains(t, out, "12. Switch Account / Logout")

	c.send("2")
	c.expect("Enter amount to deposit: ")
	c.send("1500.50")
	out = c.expect("Enter your choice: ")
	assert.Contains(t, out, "Deposit successful. New balance: ₹6500.50")

	c.send("3")
	c.expect("Enter amount to withdraw: ")
	c.send("100000")
	out = c.expect("Enter your choice: ")
	assert.Contains(t, out, "Insufficient funds.")

	c.send("2")
	c.expect("Enter amount to deposit: ")
	c.send("-5")
	out = c.expect("Enter your choice: ")
	assert.Contains(t, out, "Invalid amount.")

	c.send("5")
	out = c.expect("Enter your choice: ")
	assert.Contains(t, out, "--- Transaction History (SB10001) ---")
	assert.Contains(t, out, "CREDITED")
	assert.Contains(t, out, "---")

	c.send("12")
	c.expect("Enter your choice: ")
	c.send("3")
	assert.Contains(t, c.rest(), "Logging out. Goodbye!")
	c.wait()

	assert.False(t, h.sessions.IsActive(2))
}

func TestCustomerTransfer(t *testing.T) {
	h := newHarness(t, 0)
	c := h.dial()
	c.login("4", "2", "cust123")
	c.expect("Enter your choice: ")
	c.send("1")
	c.expect("Enter your choice: ")

	c.send("4")
	c.expect("Enter Account Number to transfer : ")
	c.send("SB10001")
	c.expect("Enter amount to transfer: ")
	c.send("10")
	assert.Contains(t, c.expect("Enter your choice: "), "Cannot transfer funds to the same account.")

	c.send("4")
	c.expect("Enter Account Number to transfer : ")
	c.send("SB99999")
	c.expect("Enter amount to transfer: ")
	c.send("10")
	assert.Contains(t, c.expect("Enter your choice: "), "Invalid sender or receiver account number.")

	c.send("4")
	c.expect("Enter Account Number to transfer : ")
	c.send("SB10002")
	c.expect("Enter amount to transfer: ")
	c.send("1000")
	assert.Contains(t, c.expect("Enter your choice: "), "Transfer successful.")

	c.send("1")
	assert.Contains(t, c.expect("Enter your choice: "), "Balance for account SB10001: ₹4000.00")
}

func TestDisconnectReleasesSession(t *testing.T) {
	h := newHarness(t, 0)
	c := h.dial()
	c.login("4", "2", "cust123")
	c.expect("Enter your choice: ")
	require.True(t, h.sessions.IsActive(2))

	require.NoError(t, c.conn.Close())
	c.wait()

	assert.False(t, h.sessions.IsActive(2))
	assert.Zero(t, h.sessions.Len())
}

type panickingPublisher struct{}

func (panickingPublisher) Publish(context.Context, events.Event) error { panic("publisher failed") }
func (panickingPublisher) Close() error { return nil }

func TestPanicInMenuReleasesSessionAndServerKeepsAccepting(t *testing.T) {
	h := newHarness(t, 0, banking.WithPublisher(panickingPublisher{}))
	cfg := DefaultConfig()
	cfg.BindAddress = "127.0.0.1"
	cfg.Port = 0
	cfg.ShutdownTimeout = ioTimeout
	a := New(cfg, h.svc, h.sessions)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- a.Serve(ctx) }()
	addr := a.GetListenerAddr()

	// The deposit publishes an event, which panics inside the menu option.
	c := h.dialTCP(addr)
	c.login("4", "2", "cust123")
	c.expect("Enter your choice: ")
	c.send("1")
	c.expect("Enter your choice: ")
	c.send("2")
	c.expect("Enter amount to deposit: ")
	c.send("10")
	c.rest()

	assert.Eventually(t, func() bool { return a.GetActiveConnections() == 0 }, ioTimeout, 10*time.Millisecond)
	assert.False(t, h.sessions.IsActive(2))
	assert.Zero(t, h.sessions.Len())

	again := h.dialTCP(addr)
	again.login("4", "2", "cust123")
	assert.Contains(t, again.expect("Enter your choice: "), "Login Successful!")
	assert.True(t, h.sessions.IsActive(2))
	again.send("3")
	assert.Contains(t, again.rest(), "Logging out. Goodbye!")

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(ioTimeout):
		t.Fatal("server did not stop")
	}
}

func TestOutOfRangeIDIsTreatedAsCancel(t *testing.T) {
	h := newHarness(t, 0)
	c := h.dial()
	c.login("3", "3", "emp123")
	c.expect("Enter your choice: ")

	c.send("2")
	c.expect("Enter Customer User ID to add account to (or '0' to cancel): ")
	c.send("4294967298")
	out := c.expect("Enter your choice: ")
	assert.NotContains(t, out, "created successfully")

	customer, err := h.svc.User(context.Background(), 2)
	require.NoError(t, err)
	accounts, err := h.svc.CustomerAccounts(context.Background(), customer)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestEmployeeAddsCustomerWithReprompt(t *testing.T) {
	h := newHarness(t, 0)
	c := h.dial()
	c.login("3", "3", "emp123")

	out := c.expect("Enter your choice: ")
	assert.Contains(t, out, "--- Employee Menu (User: Priya Sharma) ---")

	c.send("1")
	c.expect("Enter '0' to cancel : ")
	c.send("y")
	c.expect("Enter new user's password: ")
	c.send("secret1")
	c.expect("Enter user's First Name: ")
	c.send("Asha")
	c.expect("Enter user's Last Name: ")
	c.send("Rao")
	c.expect("Enter user's Phone (10 digits): ")
	c.send("12345")
	out = c.expect("Enter user's Phone (10 digits): ")
	assert.Contains(t, out, "Invalid phone number (must be 10 digits). Please try again.")
	c.send("9123456780")
	c.expect("Enter user's Email: ")
	c.send("asha@example.com")
	c.expect("Enter user's Address: ")
	c.send("12 Lake View, Pune")

	out = c.expect("Enter your choice: ")
	assert.Contains(t, out, "User created. New ID: 5, New Account: SB10003")

	c.send("1")
	c.expect("Enter '0' to cancel : ")
	c.send("y")
	for _, answer := range []string{"secret2", "Dup", "Phone", "8888888888", "dup@example.com", "Somewhere"} {
		c.expect(": ")
		c.send(answer)
	}
	assert.Contains(t, c.expect("Enter your choice: "), "Error: This phone number is already in use. Aborting.")

	c.send("3")
	c.expect("Enter User ID to modify (or '0' to cancel): ")
	c.send("4")
	assert.Contains(t, c.expect("Enter your choice: "), "Permission denied. Employees can only modify customers.")

	c.send("9")
	assert.Contains(t, c.rest(), "Logging out. Goodbye!")
}

func TestManagerSetsCustomerStatus(t *testing.T) {
	h := newHarness(t, 0)
	c := h.dial()
	c.login("2", "4", "man123")
	c.expect("Enter your choice: ")

	c.send("1")
	c.expect("Enter User ID to modify status (or '0' to cancel): ")
	c.send("3")
	c.expect("Enter status (1=Active, 0=Deactivated) (or 'back' to cancel): ")
	c.send("0")
	assert.Contains(t, c.expect("Enter your choice: "), "Permission denied. Managers can only modify customers.")

	c.send("1")
	c.expect("Enter User ID to modify status (or '0' to cancel): ")
	c.send("2")
	c.expect("Enter status (1=Active, 0=Deactivated) (or 'back' to cancel): ")
	c.send("0")
	out := c.expect("Enter your choice: ")
	assert.Contains(t, out, "User status updated successfully.")
	assert.Contains(t, out, "Successfully updated status for 2 account(s).")

	u, err := h.svc.User(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, u.Active)
}

func TestMapError(t *testing.T) {
	h := newHarness(t, 0)

	perr := h.adapter.MapError(banking.ErrInsufficientFunds)
	assert.Equal(t, "Insufficient funds.", perr.Message())
	assert.False(t, perr.Fatal())
	assert.ErrorIs(t, perr, banking.ErrInsufficientFunds)

	perr = h.adapter.MapError(&banking.ValidationError{Field: "email", Err: assert.AnError})
	assert.True(t, strings.HasSuffix(perr.Message(), "."))

	assert.True(t, h.adapter.MapError(ErrDisconnected).Fatal())
	assert.Equal(t, internalErrorMessage, h.adapter.MapError(io.ErrUnexpectedEOF).Message())

	perr = h.adapter.MapError(storeerrors.NewPartialFailureError("transfer", assert.AnError))
	assert.Contains(t, perr.Message(), "Please contact the bank.")
	assert.False(t, perr.Fatal())
}
