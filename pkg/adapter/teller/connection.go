package teller

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/internal/telemetry"
	"github.com/marmos91/bankd/pkg/models"
	"github.com/marmos91/bankd/pkg/session"
)

// State is the position of a connection in the login flow.
type State int

const (
	StateRoleSelection State = iota
	StateCredentials
	StateAuthenticated
	StateMenu
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateRoleSelection:
		return "role_selection"
	case StateCredentials:
		return "credentials"
	case StateAuthenticated:
		return "authenticated"
	case StateMenu:
		return "menu"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// roleChoices maps the login menu numbers to roles.
var roleChoices = map[int]models.Role{
	1: models.RoleAdministrator,
	2: models.RoleManager,
	3: models.RoleEmployee,
	4: models.RoleCustomer,
}

// Connection serves one client.
type Connection struct {
	adapter *Adapter
	conn    net.Conn
	connID  string
	wire    *Wire

	state State
	user  models.User
}

func newConnection(a *Adapter, conn net.Conn, connID string) *Connection {
	return &Connection{
		adapter: a,
		conn:    conn,
		connID:  connID,
		wire:    NewWire(conn, a.Config.IdleTimeout),
	}
}

// State returns the current login state.
func (c *Connection) State() State {
	return c.state
}

// Serve runs the login flow and the role menu. It returns when the user
// logs out, the login is rejected, the client disconnects or ctx ends.
func (c *Connection) Serve(ctx context.Context) {
	clientAddr := c.conn.RemoteAddr().String()
	ctx, span := telemetry.StartSessionSpan(ctx, c.connID, clientAddr)
	defer span.End()

	lc := logger.NewLogContext(c.connID, clientIP(clientAddr))
	lc = lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	err := c.run(ctx)
	_ = c.wire.Flush()
	c.state = StateClosed

	switch {
	case err == nil:
		logger.DebugCtx(ctx, "Session ended")
	case errors.Is(err, ErrDisconnected), ctx.Err() != nil:
		logger.DebugCtx(ctx, "Client left", logger.KeyError, err)
	default:
		logger.WarnCtx(ctx, "Session aborted", logger.KeyError, err)
		telemetry.RecordError(ctx, err)
	}
}

func (c *Connection) run(ctx context.Context) error {
	c.state = StateRoleSelection
	c.wire.WriteLine("Welcome to the Bank!")
	role, err := c.selectRole()
	if err != nil {
		return err
	}

	c.state = StateCredentials
	user, ok, err := c.authenticate(ctx, role)
	if err != nil || !ok {
		return err
	}

	switch c.adapter.sessions.TryAcquire(user.ID, user.Role, c.conn.RemoteAddr().String()) {
	case session.Granted:
	case session.AlreadyActive:
		logger.InfoCtx(ctx, "Login refused: already logged in", logger.KeyUserID, user.ID)
		c.wire.WriteLine("ERROR: This user is already logged in elsewhere.")
		return nil
	default:
		logger.InfoCtx(ctx, "Login refused: session limit reached", logger.KeyUserID, user.ID)
		c.wire.WriteLine("ERROR: Server is currently full. Please try again later.")
		return nil
	}
	defer c.adapter.sessions.Release(user.ID)

	c.state = StateAuthenticated
	c.user = user
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithUser(user.ID, user.Role.String()))
	telemetry.SetAttributes(ctx, telemetry.UserID(user.ID), telemetry.Role(user.Role.String()))
	logger.InfoCtx(ctx, "User logged in")
	c.wire.WriteLine("Login Successful!")

	c.state = StateMenu
	switch user.Role {
	case models.RoleCustomer:
		return c.customerSession(ctx)
	case models.RoleEmployee:
		return c.runMenu(ctx, &employeeMenu{c: c})
	case models.RoleManager:
		return c.runMenu(ctx, &managerMenu{c: c})
	case models.RoleAdministrator:
		return c.runMenu(ctx, &adminMenu{c: c})
	}
	return fmt.Errorf("no menu for role %s", user.Role)
}

func (c *Connection) selectRole() (models.Role, error) {
	for {
		c.wire.WriteLine("Please select your role to log in:")
		c.wire.WriteLine(" 1. Administrator\n 2. Manager\n 3. Employee\n 4. Customer")
		choice, err := c.wire.AskInt("Enter choice (1-4): ")
		if err != nil {
			return 0, err
		}
		if role, ok := roleChoices[choice]; ok {
			return role, nil
		}
		c.wire.WriteLine("Invalid choice. Please try again.")
	}
}

// authenticate asks for credentials. ok is false when the login was
// rejected and the reason has been sent.
func (c *Connection) authenticate(ctx context.Context, role models.Role) (models.User, bool, error) {
	id, err := c.wire.AskInt("Enter User ID: ")
	if err != nil {
		return models.User{}, false, err
	}
	password, err := c.wire.Ask("Enter Password: ")
	if err != nil {
		return models.User{}, false, err
	}

	user, err := c.adapter.auth.Login(ctx, toID(id), password, role)
	if err != nil {
		logger.InfoCtx(ctx, "Login rejected", logger.KeyUserID, id, logger.KeyRole, role.String(), logger.KeyError, err)
		if rerr := c.report(ctx, err); rerr != nil {
			return models.User{}, false, rerr
		}
		return models.User{}, false, nil
	}
	return user, true, nil
}

// report sends the reply for err. It returns a non-nil error only when the
// session cannot continue.
func (c *Connection) report(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	perr := c.adapter.MapError(err)
	if perr.Fatal() {
		return err
	}
	if perr.Message() == internalErrorMessage {
		logger.ErrorCtx(ctx, "Operation failed", logger.KeyError, err)
	}
	c.wire.WriteLine(perr.Message())
	return nil
}

func clientIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
