package journal

import (
	"errors"
)

// Persister errors
var (
	// ErrPersisterClosed is returned when operations are attempted on a closed persister.
	ErrPersisterClosed = errors.New("persister is closed")

	// ErrCorrupted is returned when the journal file is corrupted.
	ErrCorrupted = errors.New("journal corrupted")

	// ErrVersionMismatch is returned when the journal file version doesn't match.
	ErrVersionMismatch = errors.New("journal version mismatch")
)

// Persister stores journal entries durably.
//
// Thread Safety:
// Implementations must be safe for concurrent use from multiple goroutines.
type Persister interface {
	// Append stores entry. It returns only once the entry is durable.
	Append(entry *Entry) error

	// Entries returns every stored entry in append order. A torn final
	// entry left by a crash is ignored.
	Entries() ([]Entry, error)

	// Reset discards every entry.
	Reset() error

	// Close releases resources held by the persister.
	Close() error

	// IsEnabled returns true if persistence is enabled.
	IsEnabled() bool
}

// NullPersister is a no-op implementation for when journaling is disabled.
type NullPersister struct{}

// NewNullPersister creates a new no-op persister.
func NewNullPersister() *NullPersister {
	return &NullPersister{}
}

// Append is a no-op.
func (p *NullPersister) Append(*Entry) error { return nil }

// Entries returns nothing.
func (p *NullPersister) Entries() ([]Entry, error) { return nil, nil }

// Reset is a no-op.
func (p *NullPersister) Reset() error { return nil }

// Close is a no-op.
func (p *NullPersister) Close() error { return nil }

// IsEnabled returns false (persistence disabled).
func (p *NullPersister) IsEnabled() bool { return false }

// Ensure NullPersister implements Persister.
var _ Persister = (*NullPersister)(nil)
