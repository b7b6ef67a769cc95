package adapter

// ProtocolError is a domain error translated for the wire.
//
// Adapters implement MapError to turn banking rejections and store errors
// into the line sent to the client. ProtocolError supports errors.Is()
// through Unwrap, so callers can still match the underlying sentinel.
type ProtocolError interface {
	error

	// Message is the text sent to the client.
	Message() string

	// Fatal reports whether the connection must end after the message.
	Fatal() bool

	// Unwrap returns the underlying domain error.
	Unwrap() error
}

// replyError is the ProtocolError used by the adapters in this module.
type replyError struct {
	msg   string
	fatal bool
	err   error
}

// NewProtocolError wraps err with the message shown to the client.
func NewProtocolError(msg string, fatal bool, err error) ProtocolError {
	return &replyError{msg: msg, fatal: fatal, err: err}
}

func (e *replyError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *replyError) Message() string { return e.msg }
func (e *replyError) Fatal() bool     { return e.fatal }
func (e *replyError) Unwrap() error   { return e.err }
