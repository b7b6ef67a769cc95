//go:build linux

package lock

import (
	"golang.org/x/sys/unix"
)

// OFDLocker locks table ranges with Linux open file description locks.
//
// OFD locks belong to the open file, not the process, so every record store
// operation opens its own handle and two goroutines never share one.
type OFDLocker struct{}

// NewOFDLocker returns the operating system lock layer for this platform.
func NewOFDLocker() OSLocker {
	return OFDLocker{}
}

// Lock blocks with F_OFD_SETLKW until the range is granted.
func (OFDLocker) Lock(h Handle, offset, length uint64, exclusive bool) error {
	lockType := int16(unix.F_RDLCK)
	if exclusive {
		lockType = unix.F_WRLCK
	}
	return setlk(h, unix.F_OFD_SETLKW, lockType, offset, length)
}

// Unlock releases the range.
func (OFDLocker) Unlock(h Handle, offset, length uint64) error {
	return setlk(h, unix.F_OFD_SETLK, unix.F_UNLCK, offset, length)
}

func setlk(h Handle, cmd int, lockType int16, offset, length uint64) error {
	flock := unix.Flock_t{
		Type:   lockType,
		Whence: 0, // SEEK_SET
		Start:  int64(offset),
		Len:    int64(length),
	}
	for {
		err := unix.FcntlFlock(h.Fd(), cmd, &flock)
		if err != unix.EINTR {
			return err
		}
	}
}
