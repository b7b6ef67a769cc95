package logger

import "context"

type contextKey struct{}

// LogContext identifies the connection a log line belongs to.
type LogContext struct {
	ConnID   string
	ClientIP string
	UserID   int32  // 0 before login
	Role     string // empty before login
	TraceID  string
	SpanID   string
}

// NewLogContext starts the context of a freshly accepted connection.
func NewLogContext(connID, clientIP string) *LogContext {
	return &LogContext{ConnID: connID, ClientIP: clientIP}
}

// WithContext attaches lc to ctx.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, contextKey{}, lc)
}

// FromContext returns the LogContext of ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(contextKey{}).(*LogContext)
	return lc
}

// WithUser returns a copy bound to an authenticated user. Nil stays nil.
func (lc *LogContext) WithUser(userID int32, role string) *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	clone.UserID, clone.Role = userID, role
	return &clone
}

// WithTrace returns a copy carrying the ids of the active span. Nil stays nil.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	clone.TraceID, clone.SpanID = traceID, spanID
	return &clone
}

// attrs lists the non-empty fields as slog key/value pairs.
func (lc *LogContext) attrs() []any {
	args := make([]any, 0, 12)
	if lc.TraceID != "" {
		args = append(args, KeyTraceID, lc.TraceID)
	}
	if lc.SpanID != "" {
		args = append(args, KeySpanID, lc.SpanID)
	}
	if lc.ConnID != "" {
		args = append(args, KeyConnectionID, lc.ConnID)
	}
	if lc.ClientIP != "" {
		args = append(args, KeyClientIP, lc.ClientIP)
	}
	if lc.UserID != 0 {
		args = append(args, KeyUserID, lc.UserID)
	}
	if lc.Role != "" {
		args = append(args, KeyRole, lc.Role)
	}
	return args
}
