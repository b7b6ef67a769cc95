package logger

// Field keys. Use these rather than literals so that log queries keep working.
const (
	KeyTraceID      = "trace_id"
	KeySpanID       = "span_id"
	KeyConnectionID = "connection_id"
	KeyClientIP     = "client_ip"
	KeyUserID       = "user_id"
	KeyRole         = "role"
	KeyOperation    = "operation" // deposit, transfer, ...
	KeyActive       = "active"    // live sessions or connections

	KeyAccount      = "account" // account number
	KeyCounterparty = "counterparty"
	KeyAmount       = "amount"
	KeyBalance      = "balance"
	KeyLoanID       = "loan_id"

	KeyTable    = "table"
	KeyPath     = "path"
	KeyPosition = "position" // 0-based record position
	KeyOpID     = "op_id"    // journal operation

	KeyError     = "error"
	KeyErrorCode = "error_code"
	KeyBucket    = "bucket"
	KeyKey       = "key" // backup object key
)
