package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrClientAddr   = "client.address"
	AttrConnectionID = "bank.connection_id"
	AttrUserID       = "bank.user_id"
	AttrRole         = "bank.role"

	AttrOperation    = "bank.operation"
	AttrAccount      = "bank.account"
	AttrCounterparty = "bank.counterparty"
	AttrAmount       = "bank.amount_paise"
	AttrLoanID       = "bank.loan_id"
	AttrOpID         = "bank.journal_op"

	AttrBucket = "storage.bucket"
)

// ClientAddr returns an attribute for the client address (ip:port).
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// ConnectionID returns an attribute for the connection id.
func ConnectionID(id string) attribute.KeyValue {
	return attribute.String(AttrConnectionID, id)
}

// UserID returns an attribute for the authenticated user.
func UserID(id int32) attribute.KeyValue {
	return attribute.Int(AttrUserID, int(id))
}

// Role returns an attribute for the user's role.
func Role(role string) attribute.KeyValue {
	return attribute.String(AttrRole, role)
}

// Account returns an attribute for an account number.
func Account(number string) attribute.KeyValue {
	return attribute.String(AttrAccount, number)
}

// Counterparty returns an attribute for the other account of a transfer.
func Counterparty(number string) attribute.KeyValue {
	return attribute.String(AttrCounterparty, number)
}

// Amount returns an attribute for an amount in paise.
func Amount(paise int64) attribute.KeyValue {
	return attribute.Int64(AttrAmount, paise)
}

// LoanID returns an attribute for a loan id.
func LoanID(id int32) attribute.KeyValue {
	return attribute.Int(AttrLoanID, int(id))
}

// OpID returns an attribute for a journal operation id.
func OpID(id string) attribute.KeyValue {
	return attribute.String(AttrOpID, id)
}

// Bucket returns an attribute for a storage bucket.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StartBankSpan starts a span for a banking operation.
func StartBankSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		attribute.String(AttrOperation, operation),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "bank."+operation, trace.WithAttributes(allAttrs...))
}

// StartSessionSpan starts a span covering one client connection.
func StartSessionSpan(ctx context.Context, connID, clientAddr string) (context.Context, trace.Span) {
	return StartSpan(ctx, "teller.session", trace.WithAttributes(
		ConnectionID(connID),
		ClientAddr(clientAddr),
	))
}

// StartStorageSpan starts a span for a backup or export operation.
func StartStorageSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "storage."+operation, trace.WithAttributes(attrs...))
}
