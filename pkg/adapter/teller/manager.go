package teller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marmos91/bankd/pkg/banking"
	"github.com/marmos91/bankd/pkg/models"
)

type managerMenu struct {
	c *Connection
}

func (m *managerMenu) Title() string {
	return fmt.Sprintf("--- Manager Menu (User: %s %s) ---", m.c.user.FirstName, m.c.user.LastName)
}

func (m *managerMenu) Options() []MenuOption {
	c := m.c
	return []MenuOption{
		{Label: "Activate/Deactivate Customer & Accounts", Run: c.setStatus},
		{Label: "Assign Loan to Employee", Run: m.assignLoan},
		{Label: "Review Customer Feedback", Run: m.reviewFeedback},
		{Label: "View My Personal Details", Run: c.showDetails},
		{Label: "Change My Password", Run: c.changePassword},
		{Label: "Logout", Run: c.goodbye, Leave: true},
	}
}

// askOrBack asks for an id. ok is false when the user typed "back".
func (c *Connection) askOrBack(prompt string) (id int32, ok bool, err error) {
	s, err := c.wire.Ask(prompt)
	if err != nil {
		return 0, false, err
	}
	if strings.EqualFold(strings.TrimSpace(s), "back") {
		return 0, false, nil
	}
	return toID(atoi(s)), true, nil
}

func (m *managerMenu) assignLoan(ctx context.Context) error {
	loans, err := m.c.adapter.svc.UnassignedLoans(ctx, m.c.user)
	if err != nil {
		return m.c.report(ctx, err)
	}
	m.c.wire.WriteLine("\n--- Unassigned Loans (Status: PENDING) ---")
	if len(loans) == 0 {
		m.c.wire.WriteLine("No unassigned loans found.")
		return nil
	}
	for _, l := range loans {
		m.c.wire.Printf("Loan ID: %d | Customer ID: %d | Amount: %s", l.ID, l.UserID, l.Amount)
	}

	loanID, ok, err := m.c.askOrBack("Enter Loan ID to assign (or 'back' to cancel): ")
	if err != nil || !ok {
		return err
	}
	employeeID, ok, err := m.c.askOrBack("Enter Employee ID to assign to (or 'back' to cancel): ")
	if err != nil || !ok {
		return err
	}
	if _, err := m.c.adapter.svc.AssignLoan(ctx, m.c.user, loanID, employeeID); err != nil {
		return m.c.report(ctx, err)
	}
	m.c.wire.WriteLine("Loan assigned successfully.")
	return nil
}

func (m *managerMenu) reviewFeedback(ctx context.Context) error {
	items, err := m.c.adapter.svc.UnreviewedFeedback(ctx, m.c.user)
	if err != nil {
		return m.c.report(ctx, err)
	}
	m.c.wire.WriteLine("\n--- Unreviewed Feedback ---")
	if len(items) == 0 {
		m.c.wire.WriteLine("No unreviewed feedback.")
		return nil
	}
	for _, f := range items {
		m.c.wire.Printf("ID: %d | User: %d | Feedback: %s", f.ID, f.UserID, preview(f.Text, 100))
	}

	id, ok, err := m.c.askID("Enter Feedback ID to mark as reviewed (or '0' to cancel): ")
	if err != nil || !ok {
		return err
	}
	if _, err := m.c.adapter.svc.ReviewFeedback(ctx, m.c.user, id); err != nil {
		return m.c.report(ctx, err)
	}
	m.c.wire.WriteLine("Feedback marked as reviewed.")
	return nil
}

// setStatus activates or deactivates a user together with their accounts.
func (c *Connection) setStatus(ctx context.Context) error {
	id, ok, err := c.askID("Enter User ID to modify status (or '0' to cancel): ")
	if err != nil || !ok {
		return err
	}
	s, err := c.wire.Ask("Enter status (1=Active, 0=Deactivated) (or 'back' to cancel): ")
	if err != nil {
		return err
	}
	var active bool
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "back":
		return nil
	case "1":
		active = true
	case "0":
		active = false
	default:
		c.wire.WriteLine("Invalid status.")
		return nil
	}

	res, err := c.adapter.svc.SetUserStatus(ctx, c.user, id, active)
	if err != nil {
		if errors.Is(err, banking.ErrPermissionDenied) && c.user.Role == models.RoleManager {
			c.wire.WriteLine("Permission denied. Managers can only modify customers.")
			return nil
		}
		return c.report(ctx, err)
	}

	c.wire.WriteLine("User status updated successfully.")
	switch {
	case res.Failed > 0:
		c.wire.Printf("Updated %d account(s) with %d errors.", res.Updated, res.Failed)
	case res.Updated > 0:
		c.wire.Printf("Successfully updated status for %d account(s).", res.Updated)
	default:
		c.wire.WriteLine("No account statuses needed updating.")
	}
	return nil
}
