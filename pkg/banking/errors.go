package banking

import "errors"

// Rejection is a business rule violation. Rejections are reported to the
// client and are not failures of the service.
type Rejection struct {
	msg string
}

func (e *Rejection) Error() string { return e.msg }

func reject(msg string) *Rejection { return &Rejection{msg: msg} }

// IsRejection reports whether err is (or wraps) a Rejection.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

// Authentication.
var (
	ErrInvalidCredentials = reject("invalid user id or password")
	ErrUserInactive       = reject("user is deactivated")
	ErrRoleMismatch       = reject("user does not have the selected role")
)

// Money movements.
var (
	ErrInvalidAmount     = reject("invalid amount")
	ErrInsufficientFunds = reject("insufficient funds")
	ErrAccountInactive   = reject("account is inactive")
	ErrAccountNotFound   = reject("account not found")
	ErrInvalidAccount    = reject("invalid sender or receiver account")
	ErrSameAccount       = reject("cannot transfer to the same account")
	ErrNotOwner          = reject("account does not belong to the user")
	ErrBalanceOverflow   = reject("balance limit exceeded")
)

// User administration.
var (
	ErrPermissionDenied = reject("permission denied")
	ErrUserNotFound     = reject("user not found")
	ErrNotCustomer      = reject("user is not a customer")
	ErrPhoneInUse       = reject("phone number already in use")
	ErrEmailInUse       = reject("email address already in use")
	ErrInvalidRole      = reject("invalid role")
)

// Loans and feedback.
var (
	ErrLoanNotFound      = reject("loan not found")
	ErrLoanNotAssigned   = reject("loan is not assigned to this employee")
	ErrLoanProcessed     = reject("loan has already been processed")
	ErrLoanNotAssignable = reject("loan is already assigned or processed")
	ErrInvalidEmployee   = reject("invalid employee id")
	ErrFeedbackNotFound  = reject("feedback not found")
	ErrFeedbackReviewed  = reject("feedback already reviewed")
)

var errEmpty = errors.New("must not be empty")

// ValidationError reports a malformed field of a user record.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
