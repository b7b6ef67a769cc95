package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/bankd/pkg/store/record"
)

// Role is the role of a user. The numeric values are stored on disk.
type Role uint8

const (
	RoleCustomer Role = iota
	RoleEmployee
	RoleManager
	RoleAdministrator
)

// IsValid checks if the role is a known Role.
func (r Role) IsValid() bool {
	return r <= RoleAdministrator
}

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleEmployee:
		return "employee"
	case RoleManager:
		return "manager"
	case RoleAdministrator:
		return "administrator"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// ParseRole converts a role name to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "customer", "cust":
		return RoleCustomer, nil
	case "employee", "emp":
		return RoleEmployee, nil
	case "manager", "man":
		return RoleManager, nil
	case "administrator", "admin":
		return RoleAdministrator, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// Field widths of the users table.
const (
	PasswordHashWidth = 64
	NameWidth         = 50
	PhoneWidth        = 15
	EmailWidth        = 100
	AddressWidth      = 256
)

// User is a bank user of any role.
type User struct {
	ID           int32
	PasswordHash string
	Role         Role
	Active       bool
	FirstName    string
	LastName     string
	Phone        string
	Email        string
	Address      string
	CreatedAt    time.Time
}

// FullName returns "First Last".
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// SetPassword replaces the stored hash with a hash of password.
func (u *User) SetPassword(password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return VerifyPassword(password, u.PasswordHash)
}

// Validate checks field formats and widths.
func (u *User) Validate() error {
	if !u.Role.IsValid() {
		return fmt.Errorf("invalid role %d", u.Role)
	}
	if u.PasswordHash == "" {
		return fmt.Errorf("password is required")
	}
	if err := ValidateName(u.FirstName); err != nil {
		return fmt.Errorf("first name: %w", err)
	}
	if err := ValidateName(u.LastName); err != nil {
		return fmt.Errorf("last name: %w", err)
	}
	if !IsValidPhone(u.Phone) {
		return fmt.Errorf("invalid phone number (must be 10 digits)")
	}
	if !IsValidEmail(u.Email) {
		return fmt.Errorf("invalid email format (or too long)")
	}
	if err := ValidateAddress(u.Address); err != nil {
		return err
	}
	return nil
}

// ValidateName checks a first or last name.
func ValidateName(s string) error {
	if len(s) == 0 || len(s) >= NameWidth {
		return fmt.Errorf("invalid name (empty or too long)")
	}
	return nil
}

// ValidateAddress checks a postal address.
func ValidateAddress(s string) error {
	if len(s) == 0 || len(s) >= AddressWidth {
		return fmt.Errorf("invalid address (empty or too long)")
	}
	return nil
}

// IsValidPhone reports whether s is exactly ten digits.
func IsValidPhone(s string) bool {
	return len(s) == 10 && isDigits(s)
}

// IsValidEmail performs the minimal "contains @ and ." check.
func IsValidEmail(s string) bool {
	if len(s) == 0 || len(s) >= EmailWidth {
		return false
	}
	return strings.Contains(s, "@") && strings.Contains(s, ".")
}

// UserCodec is the on-disk layout of users.dat.
type UserCodec struct{}

var _ record.Codec[User] = UserCodec{}

func (UserCodec) Size() int {
	return 4 + PasswordHashWidth + 1 + 1 + NameWidth*2 + PhoneWidth + EmailWidth + AddressWidth + 8
}

func (UserCodec) Encode(u *User, buf []byte) error {
	if len(u.PasswordHash) > PasswordHashWidth {
		return fmt.Errorf("password hash longer than %d bytes", PasswordHashWidth)
	}
	e := record.NewEncoder(buf)
	e.Int32(u.ID)
	e.String(u.PasswordHash, PasswordHashWidth)
	e.Uint8(uint8(u.Role))
	e.Bool(u.Active)
	e.String(u.FirstName, NameWidth)
	e.String(u.LastName, NameWidth)
	e.String(u.Phone, PhoneWidth)
	e.String(u.Email, EmailWidth)
	e.String(u.Address, AddressWidth)
	e.Time(u.CreatedAt)
	return nil
}

func (UserCodec) Decode(buf []byte, u *User) error {
	d := record.NewDecoder(buf)
	u.ID = d.Int32()
	u.PasswordHash = d.String(PasswordHashWidth)
	u.Role = Role(d.Uint8())
	u.Active = d.Bool()
	u.FirstName = d.String(NameWidth)
	u.LastName = d.String(NameWidth)
	u.Phone = d.String(PhoneWidth)
	u.Email = d.String(EmailWidth)
	u.Address = d.String(AddressWidth)
	u.CreatedAt = d.Time()
	if !u.Role.IsValid() {
		return fmt.Errorf("user %d: invalid role %d", u.ID, u.Role)
	}
	return nil
}

func (UserCodec) ID(u *User) int32 { return u.ID }
