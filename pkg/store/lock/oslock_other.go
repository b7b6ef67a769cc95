//go:build !linux

package lock

// NewOFDLocker returns nil on platforms without open file description locks.
// The in-process manager still serializes goroutines of this process.
func NewOFDLocker() OSLocker {
	return nil
}
