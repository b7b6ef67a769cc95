// Package events publishes committed banking operations to external
// consumers.
//
// Events are emitted only after the journal operation that produced them
// has committed, so a consumer never sees money that recovery could take
// back. Delivery is best effort: a publish failure is logged and never
// fails the banking operation.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/bankd/pkg/models"
)

// Type names the kind of event.
type Type string

const (
	TypeDeposit      Type = "deposit"
	TypeWithdrawal   Type = "withdrawal"
	TypeTransfer     Type = "transfer"
	TypeLoanApproved Type = "loan_approved"
	TypeLoanRejected Type = "loan_rejected"
	TypeUserStatus   Type = "user_status"
)

// Event is the JSON payload written to the topic.
type Event struct {
	ID           string       `json:"id"`
	Type         Type         `json:"type"`
	OpID         string       `json:"op_id,omitempty"`
	UserID       int32        `json:"user_id"`
	Account      string       `json:"account,omitempty"`
	Counterparty string       `json:"counterparty,omitempty"`
	Amount       models.Money `json:"amount_paise"`
	NewBalance   models.Money `json:"new_balance_paise"`
	OccurredAt   time.Time    `json:"occurred_at"`
}

// New returns an event of type t with a fresh id and the current time.
func New(t Type, userID int32) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

// Key is the partition key: events of one account stay ordered.
func (e Event) Key() []byte {
	if e.Account != "" {
		return []byte(e.Account)
	}
	return []byte(e.Type)
}

// Marshal encodes the event as JSON.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
