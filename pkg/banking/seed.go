package banking

import (
	"context"
	"fmt"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/pkg/models"
)

// SeedUser is one of the initial users created by Seed.
type SeedUser struct {
	User     models.User
	Password string
}

// SeedReport lists what Seed created.
type SeedReport struct {
	Users    []SeedUser
	Accounts []models.Account
}

var seedUsers = []SeedUser{
	{Password: "admin123", User: models.User{Role: models.RoleAdministrator, FirstName: "Admin", LastName: "User",
		Phone: "9876543210", Email: "admin@bank.com", Address: "1 Bank Road, Bangalore"}},
	{Password: "cust123", User: models.User{Role: models.RoleCustomer, FirstName: "Ravi", LastName: "Kumar",
		Phone: "8888888888", Email: "ravi@gmail.com", Address: "123 MG Road, Bangalore"}},
	{Password: "emp123", User: models.User{Role: models.RoleEmployee, FirstName: "Priya", LastName: "Sharma",
		Phone: "7777777777", Email: "priya@bank.com", Address: "456 Indiranagar, Bangalore"}},
	{Password: "man123", User: models.User{Role: models.RoleManager, FirstName: "Vikram", LastName: "Singh",
		Phone: "6666666666", Email: "vikram@bank.com", Address: "789 Koramangala, Bangalore"}},
}

// seedBalances are the opening balances of the customer's two accounts.
var seedBalances = []models.Money{models.Rupees(5000), models.Rupees(25000)}

// Seed creates the initial administrator, customer, employee and manager
// (ids 1 to 4) and the customer's accounts SB10001 and SB10002. It does
// nothing and returns a nil report when users already exist.
func (s *Service) Seed(ctx context.Context) (*SeedReport, error) {
	empty, err := s.store.Empty(ctx)
	if err != nil {
		return nil, err
	}
	if !empty {
		logger.InfoCtx(ctx, "Store already has users, skipping seed")
		return nil, nil
	}

	report := &SeedReport{}
	var customer models.User
	for _, su := range seedUsers {
		u := su.User
		u.Active = true
		if u.PasswordHash, err = models.HashPasswordWithCost(su.Password, s.bcryptCost); err != nil {
			return nil, err
		}
		u, err = s.store.Users.Add(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", su.User.Role, err)
		}
		if u.Role == models.RoleCustomer {
			customer = u
		}
		report.Users = append(report.Users, SeedUser{User: u, Password: su.Password})
		logger.InfoCtx(ctx, "Seeded user", logger.KeyUserID, u.ID, logger.KeyRole, u.Role.String())
	}

	for _, balance := range seedBalances {
		a, err := s.store.Accounts.Open(ctx, customer.ID, balance)
		if err != nil {
			return nil, fmt.Errorf("seed account: %w", err)
		}
		report.Accounts = append(report.Accounts, a)
		logger.InfoCtx(ctx, "Seeded account", logger.KeyAccount, a.Number, logger.KeyBalance, a.Balance.Plain())
	}
	return report, nil
}
