package teller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/marmos91/bankd/pkg/banking"
	"github.com/marmos91/bankd/pkg/models"
)

type employeeMenu struct {
	c *Connection
}

func (m *employeeMenu) Title() string {
	return fmt.Sprintf("--- Employee Menu (User: %s %s) ---", m.c.user.FirstName, m.c.user.LastName)
}

func (m *employeeMenu) Options() []MenuOption {
	c := m.c
	return []MenuOption{
		{Label: "Add New Customer", Run: func(ctx context.Context) error { return c.addUser(ctx, models.RoleCustomer) }},
		{Label: "Add New Account for Existing Customer", Run: m.openAccount},
		{Label: "Modify Customer Details", Run: c.modifyUser},
		{Label: "View Customer Transactions", Run: m.customerTransactions},
		{Label: "View Assigned Loans", Run: m.assignedLoans},
		{Label: "Process Loan Application", Run: m.processLoan},
		{Label: "View My Personal Details", Run: c.showDetails},
		{Label: "Change My Password", Run: c.changePassword},
		{Label: "Logout", Run: c.goodbye, Leave: true},
	}
}

func (m *employeeMenu) openAccount(ctx context.Context) error {
	id, ok, err := m.c.askID("Enter Customer User ID to add account to (or '0' to cancel): ")
	if err != nil || !ok {
		return err
	}
	acc, err := m.c.adapter.svc.OpenAccount(ctx, m.c.user, id)
	if err != nil {
		return m.c.report(ctx, err)
	}
	m.c.wire.Printf("New account %s created successfully for User ID %d.", acc.Number, id)
	return nil
}

func (m *employeeMenu) customerTransactions(ctx context.Context) error {
	number, err := m.c.wire.Ask("Enter Customer Account Number (or '0' to cancel): ")
	if err != nil {
		return err
	}
	if strings.TrimSpace(number) == "0" {
		return nil
	}
	acc, err := m.c.adapter.svc.AccountByNumber(ctx, m.c.user, number)
	if err != nil {
		return m.c.report(ctx, err)
	}
	return m.c.showTransactions(ctx, acc)
}

func (m *employeeMenu) assignedLoans(ctx context.Context) error {
	loans, err := m.c.adapter.svc.AssignedLoans(ctx, m.c.user)
	if err != nil {
		return m.c.report(ctx, err)
	}
	m.c.wire.WriteLine("\n--- Your Assigned Loans ---")
	if len(loans) == 0 {
		m.c.wire.WriteLine("No assigned loans found.")
		return nil
	}
	for _, l := range loans {
		m.c.wire.Printf("Loan ID: %d | Customer ID: %d | Amount: %s | Status: %s", l.ID, l.UserID, l.Amount, l.Status)
	}
	return nil
}

func (m *employeeMenu) processLoan(ctx context.Context) error {
	id, ok, err := m.c.askID("Enter Loan ID to process (or '0' to cancel): ")
	if err != nil || !ok {
		return err
	}
	action, err := m.c.wire.AskInt("Choose action: 1 = Approve, 2 = Reject: ")
	if err != nil {
		return err
	}
	if action != 1 && action != 2 {
		m.c.wire.WriteLine("Invalid choice. No action taken.")
		return nil
	}

	approve := action == 1
	if _, err := m.c.adapter.svc.ProcessLoan(ctx, m.c.user, id, approve); err != nil {
		return m.c.report(ctx, err)
	}
	if approve {
		m.c.wire.WriteLine("Loan approved. Amount credited to customer account.")
	} else {
		m.c.wire.WriteLine("Loan rejected.")
	}
	return nil
}

// addUser collects a new user's profile, re-prompting on invalid fields,
// and creates the user. Customers get their first account.
func (c *Connection) addUser(ctx context.Context, role models.Role) error {
	s, err := c.wire.Ask("Enter '0' to cancel : ")
	if err != nil || strings.TrimSpace(s) == "0" {
		return err
	}

	nu := banking.NewUser{Role: role}
	fields := []struct {
		prompt   string
		dst      *string
		validate func(string) error
	}{
		{"Enter new user's password: ", &nu.Password, models.ValidatePassword},
		{"Enter user's First Name: ", &nu.FirstName, models.ValidateName},
		{"Enter user's Last Name: ", &nu.LastName, models.ValidateName},
		{"Enter user's Phone (10 digits): ", &nu.Phone, validatePhone},
		{"Enter user's Email: ", &nu.Email, validateEmail},
		{"Enter user's Address: ", &nu.Address, models.ValidateAddress},
	}
	for _, f := range fields {
		v, err := c.askValid(f.prompt, f.validate)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	u, acc, err := c.adapter.svc.CreateUser(ctx, c.user, nu)
	if err != nil {
		return c.report(ctx, err)
	}
	if acc != nil {
		c.wire.Printf("User created. New ID: %d, New Account: %s", u.ID, acc.Number)
	} else {
		c.wire.Printf("User created successfully. New User ID: %d", u.ID)
	}
	return nil
}

// modifyUser edits a user's profile. Administrators may also change the
// role; employees only reach customers.
func (c *Connection) modifyUser(ctx context.Context) error {
	id, ok, err := c.askID("Enter User ID to modify (or '0' to cancel): ")
	if err != nil || !ok {
		return err
	}
	target, err := c.adapter.svc.User(ctx, id)
	if err != nil {
		return c.report(ctx, err)
	}
	admin := c.user.Role == models.RoleAdministrator
	if !admin && target.Role != models.RoleCustomer {
		c.wire.WriteLine("Permission denied. Employees can only modify customers.")
		return nil
	}

	var changes banking.UserChanges
	fields := []struct {
		prompt string
		dst    **string
	}{
		{"Enter new password (or 'skip'): ", &changes.Password},
		{"Enter new First Name (or 'skip'): ", &changes.FirstName},
		{"Enter new Last Name (or 'skip'): ", &changes.LastName},
		{"Enter new Phone (or 'skip'): ", &changes.Phone},
		{"Enter new Email (or 'skip'): ", &changes.Email},
		{"Enter new Address (or 'skip'): ", &changes.Address},
	}
	for _, f := range fields {
		v, err := c.askSkippable(f.prompt)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	if admin {
		v, err := c.askSkippable("Enter new role (0=CUST, 1=EMP, 2=MAN, 3=ADMIN) (or 'skip'): ")
		if err != nil {
			return err
		}
		if v != nil {
			n, perr := strconv.Atoi(strings.TrimSpace(*v))
			if perr == nil && n >= 0 && n <= int(models.RoleAdministrator) {
				role := models.Role(n)
				changes.Role = &role
			} else {
				c.wire.WriteLine("Invalid role value skipped.")
			}
		}
	}

	if changes.Empty() {
		c.wire.WriteLine("No changes made.")
		return nil
	}
	if _, err := c.adapter.svc.UpdateUser(ctx, c.user, id, changes); err != nil {
		if errors.Is(err, banking.ErrPermissionDenied) && !admin {
			c.wire.WriteLine("Permission denied. Employees can only modify customers.")
			return nil
		}
		return c.report(ctx, err)
	}
	c.wire.WriteLine("User details modified successfully.")
	return nil
}

func validatePhone(s string) error {
	if !models.IsValidPhone(s) {
		return errors.New("invalid phone number (must be 10 digits)")
	}
	return nil
}

func validateEmail(s string) error {
	if !models.IsValidEmail(s) {
		return errors.New("invalid email format (or too long)")
	}
	return nil
}
