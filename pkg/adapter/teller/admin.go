package teller

import (
	"context"
	"fmt"

	"github.com/marmos91/bankd/pkg/models"
)

type adminMenu struct {
	c *Connection
}

func (m *adminMenu) Title() string {
	return fmt.Sprintf("--- Admin Menu (User: %s %s) ---", m.c.user.FirstName, m.c.user.LastName)
}

func (m *adminMenu) Options() []MenuOption {
	c := m.c
	return []MenuOption{
		{Label: "Add User (Customer/Employee/Manager)", Run: m.addUser},
		{Label: "Modify User Details (Password/Role/KYC)", Run: c.modifyUser},
		{Label: "Activate/Deactivate Any User & Accounts", Run: c.setStatus},
		{Label: "View My Personal Details", Run: c.showDetails},
		{Label: "Change My Password", Run: c.changePassword},
		{Label: "Logout", Run: c.goodbye, Leave: true},
	}
}

func (m *adminMenu) addUser(ctx context.Context) error {
	n, err := m.c.wire.AskInt("Enter role (0=CUST, 1=EMP, 2=MAN): ")
	if err != nil {
		return err
	}
	if n < int(models.RoleCustomer) || n > int(models.RoleManager) {
		m.c.wire.WriteLine("Invalid role.")
		return nil
	}
	return m.c.addUser(ctx, models.Role(n))
}
