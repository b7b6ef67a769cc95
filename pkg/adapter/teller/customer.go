package teller

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/bankd/pkg/banking"
	"github.com/marmos91/bankd/pkg/models"
)

// customerSession lets the customer pick one of their active accounts and
// runs the account menu for it, until they log out.
func (c *Connection) customerSession(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		accounts, err := c.adapter.svc.CustomerAccounts(ctx, c.user)
		if err != nil {
			return c.report(ctx, err)
		}
		if len(accounts) == 0 {
			c.wire.WriteLine("You have no active accounts. Please contact your bank.")
			return nil
		}

		c.wire.Printf("\n--- Welcome, %s. Please Select an Account ---", c.user.FirstName)
		for i, a := range accounts {
			c.wire.Printf("%d. %s (Balance: %s)", i+1, a.Number, a.Balance)
		}
		logout := len(accounts) + 1
		c.wire.Printf("%d. Logout", logout)

		choice, err := c.wire.AskInt("Enter your choice: ")
		if err != nil {
			return err
		}
		switch {
		case choice == logout:
			return c.goodbye(ctx)
		case choice < 1 || choice > len(accounts):
			c.wire.WriteLine("Invalid choice.")
			continue
		}

		if err := c.runMenu(ctx, &customerMenu{c: c, account: accounts[choice-1]}); err != nil {
			return err
		}
	}
}

// customerMenu serves one selected account.
type customerMenu struct {
	c       *Connection
	account models.Account
}

func (m *customerMenu) Title() string {
	return fmt.Sprintf("--- Customer Menu (Account: %s) ---", m.account.Number)
}

func (m *customerMenu) Options() []MenuOption {
	c := m.c
	return []MenuOption{
		{Label: "View Balance", Run: m.balance},
		{Label: "Deposit Money", Run: m.deposit},
		{Label: "Withdraw Money", Run: m.withdraw},
		{Label: "Transfer Funds", Run: m.transfer},
		{Label: "View Transaction History", Run: m.history},
		{Label: "Apply for Loan", Run: m.applyLoan},
		{Label: "View Loan Status", Run: m.loanStatus},
		{Label: "View My Personal Details", Run: c.showDetails},
		{Label: "Add Feedback", Run: m.addFeedback},
		{Label: "View Feedback Status", Run: m.feedbackStatus},
		{Label: "Change Password", Run: c.changePassword},
		{Label: "Switch Account / Logout", Leave: true},
	}
}

func (m *customerMenu) balance(ctx context.Context) error {
	acc, err := m.c.adapter.svc.Account(ctx, m.c.user, m.account.ID)
	if err != nil {
		return m.c.report(ctx, err)
	}
	m.c.wire.Printf("Balance for account %s: %s", acc.Number, acc.Balance)
	return nil
}

func (m *customerMenu) deposit(ctx context.Context) error {
	s, err := m.c.wire.Ask("Enter amount to deposit: ")
	if err != nil {
		return err
	}
	acc, err := m.c.adapter.svc.Deposit(ctx, m.c.user, m.account.ID, models.ParseAmount(s))
	if err != nil {
		return m.c.report(ctx, err)
	}
	m.c.wire.Printf("Deposit successful. New balance: %s", acc.Balance)
	return nil
}

func (m *customerMenu) withdraw(ctx context.Context) error {
	s, err := m.c.wire.Ask("Enter amount to withdraw: ")
	if err != nil {
		return err
	}
	acc, err := m.c.adapter.svc.Withdraw(ctx, m.c.user, m.account.ID, models.ParseAmount(s))
	if err != nil {
		return m.c.report(ctx, err)
	}
	m.c.wire.Printf("Withdrawal successful. New balance: %s", acc.Balance)
	return nil
}

func (m *customerMenu) transfer(ctx context.Context) error {
	to, err := m.c.wire.Ask("Enter Account Number to transfer : ")
	if err != nil {
		return err
	}
	s, err := m.c.wire.Ask("Enter amount to transfer: ")
	if err != nil {
		return err
	}
	_, err = m.c.adapter.svc.Transfer(ctx, m.c.user, m.account.ID, to, models.ParseAmount(s))
	switch {
	case errors.Is(err, banking.ErrAccountInactive):
		m.c.wire.WriteLine("Cannot transfer funds account is inactive.")
		return nil
	case err != nil:
		return m.c.report(ctx, err)
	}
	m.c.wire.WriteLine("Transfer successful.")
	return nil
}

func (m *customerMenu) history(ctx context.Context) error {
	acc, err := m.c.adapter.svc.Account(ctx, m.c.user, m.account.ID)
	if err != nil {
		return m.c.report(ctx, err)
	}
	return m.c.showTransactions(ctx, acc)
}

func (m *customerMenu) applyLoan(ctx context.Context) error {
	s, err := m.c.wire.Ask("Enter loan amount (e.g., 50000): ")
	if err != nil {
		return err
	}
	number, err := m.c.wire.Ask("Enter Account Number to deposit to (e.g., SB10001): ")
	if err != nil {
		return err
	}
	loan, err := m.c.adapter.svc.ApplyLoan(ctx, m.c.user, models.ParseAmount(s), number)
	if err != nil {
		return m.c.report(ctx, err)
	}
	m.c.wire.Printf("Loan application submitted successfully. Status: %s", loan.Status)
	return nil
}

func (m *customerMenu) loanStatus(ctx context.Context) error {
	loans, err := m.c.adapter.svc.Loans(ctx, m.c.user)
	if err != nil {
		return m.c.report(ctx, err)
	}
	m.c.wire.WriteLine("\n--- Your Loan Applications ---")
	if len(loans) == 0 {
		m.c.wire.WriteLine("No loan applications found.")
		return nil
	}
	for _, l := range loans {
		m.c.wire.Printf("Loan ID: %d | Amount: %s | Status: %s", l.ID, l.Amount, l.Status)
	}
	return nil
}

func (m *customerMenu) addFeedback(ctx context.Context) error {
	text, err := m.c.wire.Ask("Enter your feedback: ")
	if err != nil {
		return err
	}
	if _, err := m.c.adapter.svc.SubmitFeedback(ctx, m.c.user, text); err != nil {
		return m.c.report(ctx, err)
	}
	m.c.wire.WriteLine("Feedback submitted successfully. Thank you!")
	return nil
}

func (m *customerMenu) feedbackStatus(ctx context.Context) error {
	items, err := m.c.adapter.svc.FeedbackOf(ctx, m.c.user)
	if err != nil {
		return m.c.report(ctx, err)
	}
	m.c.wire.WriteLine("\n--- Your Feedback History ---")
	if len(items) == 0 {
		m.c.wire.WriteLine("No feedback history found.")
		return nil
	}
	for _, f := range items {
		status := "Pending Review"
		if f.Reviewed {
			status = "Reviewed"
		}
		m.c.wire.Printf("ID: %d | Status: %s | Feedback: %s", f.ID, status, preview(f.Text, 50))
	}
	return nil
}
