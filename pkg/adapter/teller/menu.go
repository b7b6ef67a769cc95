package teller

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/marmos91/bankd/internal/cli/output"
	"github.com/marmos91/bankd/pkg/models"
)

// MenuOption is one numbered entry of a menu.
type MenuOption struct {
	Label string

	// Run serves the option. A non-nil error ends the session.
	Run func(ctx context.Context) error

	// Leave ends the menu after Run (if any) returns.
	Leave bool
}

// Menu is the option list shown to an authenticated user. Title and
// Options are called before every prompt so they reflect current data.
type Menu interface {
	Title() string
	Options() []MenuOption
}

// runMenu prints m and dispatches choices until an option leaves.
func (c *Connection) runMenu(ctx context.Context, m Menu) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		opts := m.Options()

		c.wire.WriteLine("\n" + m.Title())
		for i, opt := range opts {
			c.wire.Printf("%d. %s", i+1, opt.Label)
		}
		choice, err := c.wire.AskInt("Enter your choice: ")
		if err != nil {
			return err
		}
		if choice < 1 || choice > len(opts) {
			c.wire.WriteLine("Invalid choice.")
			continue
		}

		opt := opts[choice-1]
		if opt.Run != nil {
			if err := opt.Run(ctx); err != nil {
				return err
			}
		}
		if opt.Leave {
			return nil
		}
	}
}

// goodbye is the Run of every Logout option.
func (c *Connection) goodbye(context.Context) error {
	c.wire.WriteLine("Logging out. Goodbye!")
	return nil
}

// askID asks for an id. ok is false when the user typed the cancel
// word or an id that is not a positive number.
func (c *Connection) askID(prompt string) (id int32, ok bool, err error) {
	s, err := c.wire.Ask(prompt)
	if err != nil {
		return 0, false, err
	}
	id = toID(atoi(s))
	if id == 0 {
		return 0, false, nil
	}
	return id, true, nil
}

// askValid re-prompts until validate accepts the answer.
func (c *Connection) askValid(prompt string, validate func(string) error) (string, error) {
	for {
		s, err := c.wire.Ask(prompt)
		if err != nil {
			return "", err
		}
		verr := validate(s)
		if verr == nil {
			return s, nil
		}
		c.wire.WriteLine(sentence(verr.Error()) + " Please try again.")
	}
}

// askSkippable returns nil when the user types "skip".
func (c *Connection) askSkippable(prompt string) (*string, error) {
	s, err := c.wire.Ask(prompt)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(strings.TrimSpace(s), "skip") {
		return nil, nil
	}
	return &s, nil
}

// showDetails prints the user's own profile.
func (c *Connection) showDetails(ctx context.Context) error {
	u, err := c.adapter.svc.User(ctx, c.user.ID)
	if err != nil {
		return c.report(ctx, err)
	}
	c.user = u
	c.wire.WriteLine("\n--- Your Personal Details ---")
	c.wire.Printf("User ID: %d", u.ID)
	c.wire.Printf("Name: %s %s", u.FirstName, u.LastName)
	c.wire.Printf("Phone: %s", u.Phone)
	c.wire.Printf("Email: %s", u.Email)
	c.wire.Printf("Address: %s", u.Address)
	c.wire.WriteLine("------------------------------")
	return nil
}

func (c *Connection) changePassword(ctx context.Context) error {
	pw, err := c.wire.Ask("Enter new password: ")
	if err != nil {
		return err
	}
	if err := c.adapter.svc.ChangePassword(ctx, c.user, pw); err != nil {
		return c.report(ctx, err)
	}
	c.wire.WriteLine("Password changed successfully.")
	return nil
}

// showTransactions prints the statement of accountID.
func (c *Connection) showTransactions(ctx context.Context, account models.Account) error {
	txns, err := c.adapter.svc.Transactions(ctx, c.user, account.ID)
	if err != nil {
		return c.report(ctx, err)
	}
	c.wire.Printf("\n--- Transaction History (%s) ---", account.Number)
	if len(txns) == 0 {
		c.wire.WriteLine("No transactions found for this account.")
		return nil
	}

	table := output.NewTableData("TXN ID", "TYPE", "RECEIVER ACC", "AMOUNT", "BALANCE", "DATE & TIME")
	for _, t := range txns {
		table.AddRow(
			strconv.Itoa(int(t.ID)),
			t.Type.Direction(),
			counterparty(t.Counterparty),
			t.Amount.String(),
			t.NewBalance.String(),
			t.Timestamp.Local().Format("2006-01-02 15:04:05"),
		)
	}
	return output.PrintTable(c.wire, table)
}

// counterparty hides the placeholder of deposits and withdrawals.
func counterparty(s string) string {
	if s == "" || s == models.CounterpartySelf {
		return "---"
	}
	return s
}

// preview cuts s to n bytes for one-line listings.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
