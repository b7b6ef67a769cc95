package teller

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/marmos91/bankd/pkg/adapter"
	"github.com/marmos91/bankd/pkg/banking"
	storeerrors "github.com/marmos91/bankd/pkg/store/errors"
)

const internalErrorMessage = "Internal error. Please try again later."

// replies holds the line shown for each business rejection.
var replies = []struct {
	err error
	msg string
}{
	{banking.ErrInvalidCredentials, "Login failed: Invalid User ID or Password."},
	{banking.ErrUserInactive, "Login failed: Your account is deactivated. Contact support."},
	{banking.ErrRoleMismatch, "Login failed: Your User ID does not match the selected role."},

	{banking.ErrInvalidAmount, "Invalid amount."},
	{banking.ErrInsufficientFunds, "Insufficient funds."},
	{banking.ErrAccountInactive, "This account is inactive."},
	{banking.ErrAccountNotFound, "Account not found."},
	{banking.ErrInvalidAccount, "Invalid sender or receiver account number."},
	{banking.ErrSameAccount, "Cannot transfer funds to the same account."},
	{banking.ErrNotOwner, "That account does not belong to you."},
	{banking.ErrBalanceOverflow, "Amount exceeds the account balance limit."},

	{banking.ErrPermissionDenied, "Permission denied."},
	{banking.ErrUserNotFound, "User not found."},
	{banking.ErrNotCustomer, "User is not a customer."},
	{banking.ErrPhoneInUse, "Error: This phone number is already in use. Aborting."},
	{banking.ErrEmailInUse, "Error: This email address is already in use. Aborting."},
	{banking.ErrInvalidRole, "Invalid role."},

	{banking.ErrLoanNotFound, "Loan ID not found."},
	{banking.ErrLoanNotAssigned, "This loan is not assigned to you."},
	{banking.ErrLoanProcessed, "This loan has already been processed."},
	{banking.ErrLoanNotAssignable, "Loan cannot be assigned (already assigned or processed)."},
	{banking.ErrInvalidEmployee, "Invalid Employee ID (must be an active employee)."},
	{banking.ErrFeedbackNotFound, "Feedback ID not found."},
	{banking.ErrFeedbackReviewed, "Feedback already marked as reviewed."},
}

// MapError translates err into the line sent to the client.
//
// Rejections and validation errors keep the session going. A rolled back
// operation is reported as such. Cancellation and disconnects are fatal;
// other failures print a generic message.
func (a *Adapter) MapError(err error) adapter.ProtocolError {
	for _, r := range replies {
		if errors.Is(err, r.err) {
			return adapter.NewProtocolError(r.msg, false, err)
		}
	}

	var verr *banking.ValidationError
	if errors.As(err, &verr) {
		return adapter.NewProtocolError(sentence(verr.Err.Error()), false, err)
	}

	switch {
	case errors.Is(err, ErrDisconnected), errors.Is(err, context.Canceled):
		return adapter.NewProtocolError("", true, err)
	case storeerrors.CodeOf(err) == storeerrors.ErrPartialFailure:
		return adapter.NewProtocolError("Operation failed part way and could not be fully undone. Please contact the bank.", false, err)
	}
	return adapter.NewProtocolError(internalErrorMessage, false, err)
}

// sentence upper-cases the first letter of msg and ends it with a period.
func sentence(msg string) string {
	if msg == "" {
		return msg
	}
	r := []rune(msg)
	r[0] = unicode.ToUpper(r[0])
	msg = string(r)
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	return msg
}
