// Package record implements fixed-size record tables on flat files.
//
// A table is a gap-free sequence of equally sized records in append order.
// A record's position (0-based index) is the unit of locking and of update.
// Every access goes through the lock manager:
//
//   - scans, appends, NextID and Len take a whole-file lock
//   - ReadAt and UpdateAt take a lock on the one record's byte range
//
// Each operation opens its own file handle and uses a fresh lock owner, so
// concurrent goroutines and other processes obey the same protocol.
package record

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/pkg/store/errors"
	"github.com/marmos91/bankd/pkg/store/lock"
)

// NotFound is the position returned alongside a NotFound error.
const NotFound int64 = -1

// Table is a fixed-size record file of T.
type Table[T any] struct {
	name  string
	path  string
	codec Codec[T]
	size  int64
	locks *lock.Manager
}

// Open returns the table stored at path. The file itself is created on the
// first write. A trailing partial record left by an interrupted append is
// truncated away.
func Open[T any](name, path string, codec Codec[T], locks *lock.Manager) (*Table[T], error) {
	if codec.Size() <= 0 {
		return nil, errors.NewInvalidArgumentError("record size must be positive")
	}
	if locks == nil {
		locks = lock.NewManager()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.NewIOError(path, "resolve path", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0700); err != nil {
		return nil, errors.NewIOError(abs, "create data directory", err)
	}

	t := &Table[T]{
		name:  name,
		path:  abs,
		codec: codec,
		size:  int64(codec.Size()),
		locks: locks,
	}
	if err := t.repairTail(context.Background()); err != nil {
		return nil, err
	}
	return t, nil
}

// Name returns the table name.
func (t *Table[T]) Name() string { return t.name }

// Path returns the absolute file path.
func (t *Table[T]) Path() string { return t.path }

// RecordSize returns the encoded record size in bytes.
func (t *Table[T]) RecordSize() int { return int(t.size) }

// ============================================================================
// Read operations
// ============================================================================

// NextID returns the id of the last record + 1, or 1 when the table is empty
// or absent. Append computes ids itself inside its write lock; NextID is for
// display and diagnostics only.
func (t *Table[T]) NextID(ctx context.Context) (int32, error) {
	f, err := t.openRead()
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 1, nil
	}
	defer func() { _ = f.Close() }()

	owner := lock.NewOwner()
	if err := t.locks.LockWholeFile(ctx, f, owner, lock.Read); err != nil {
		return 0, err
	}
	defer t.unlockWhole(f, owner)

	last, err := t.readLast(f)
	if err != nil {
		return 0, err
	}
	if last == nil {
		return 1, nil
	}
	return t.codec.ID(last) + 1, nil
}

// FindPosition scans the table under a whole-file read lock and returns the
// position of the first record matching pred.
func (t *Table[T]) FindPosition(ctx context.Context, pred func(*T) bool) (int64, error) {
	pos, _, err := t.Find(ctx, pred)
	return pos, err
}

// Find is FindPosition that also returns the matching record.
func (t *Table[T]) Find(ctx context.Context, pred func(*T) bool) (int64, T, error) {
	var (
		found    T
		foundPos = NotFound
	)
	err := t.Scan(ctx, func(pos int64, rec *T) bool {
		if pred(rec) {
			found = *rec
			foundPos = pos
			return false
		}
		return true
	})
	if err != nil {
		return NotFound, found, err
	}
	if foundPos == NotFound {
		return NotFound, found, errors.NewNotFoundError(t.path, t.name+" record")
	}
	return foundPos, found, nil
}

// Scan visits every record in order under a whole-file read lock. fn returns
// false to stop early. An absent table has no records.
func (t *Table[T]) Scan(ctx context.Context, fn func(pos int64, rec *T) bool) error {
	f, err := t.openRead()
	if err != nil {
		return err
	}
	if f == nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	owner := lock.NewOwner()
	if err := t.locks.LockWholeFile(ctx, f, owner, lock.Read); err != nil {
		return err
	}
	defer t.unlockWhole(f, owner)

	buf := make([]byte, t.size)
	for pos := int64(0); ; pos++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return t.ioError("scan", err)
		}
		var rec T
		if err := t.codec.Decode(buf, &rec); err != nil {
			return errors.NewCorruptedError(t.path, fmt.Sprintf("decode record %d: %v", pos, err))
		}
		if !fn(pos, &rec) {
			return nil
		}
	}
}

// ReadAt reads the record at pos under a read lock on its byte range.
func (t *Table[T]) ReadAt(ctx context.Context, pos int64) (T, error) {
	var rec T
	raw, err := t.ReadRawAt(ctx, pos)
	if err != nil {
		return rec, err
	}
	if err := t.codec.Decode(raw, &rec); err != nil {
		return rec, errors.NewCorruptedError(t.path, fmt.Sprintf("decode record %d: %v", pos, err))
	}
	return rec, nil
}

// ReadRawAt returns the encoded bytes of the record at pos.
func (t *Table[T]) ReadRawAt(ctx context.Context, pos int64) ([]byte, error) {
	if pos < 0 {
		return nil, errors.NewInvalidArgumentError("negative record position")
	}
	f, err := t.openRead()
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errors.NewNotFoundError(t.path, t.name+" record")
	}
	defer func() { _ = f.Close() }()

	owner := lock.NewOwner()
	if err := t.locks.LockRange(ctx, f, owner, pos, t.size, lock.Read); err != nil {
		return nil, err
	}
	defer t.unlockRange(f, owner, pos)

	return t.readRaw(f, pos)
}

// Len returns the number of complete records.
func (t *Table[T]) Len(ctx context.Context) (int64, error) {
	f, err := t.openRead()
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, nil
	}
	defer func() { _ = f.Close() }()

	owner := lock.NewOwner()
	if err := t.locks.LockWholeFile(ctx, f, owner, lock.Read); err != nil {
		return 0, err
	}
	defer t.unlockWhole(f, owner)

	return t.count(f)
}

// Snapshot copies the table's complete records to w under a whole-file read
// lock and returns the number of bytes written.
func (t *Table[T]) Snapshot(ctx context.Context, w io.Writer) (int64, error) {
	f, err := t.openRead()
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, nil
	}
	defer func() { _ = f.Close() }()

	owner := lock.NewOwner()
	if err := t.locks.LockWholeFile(ctx, f, owner, lock.Read); err != nil {
		return 0, err
	}
	defer t.unlockWhole(f, owner)

	n, err := t.count(f)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(w, io.NewSectionReader(f, 0, n*t.size))
	if err != nil {
		return written, t.ioError("snapshot", err)
	}
	return written, nil
}

// ============================================================================
// Write operations
// ============================================================================

// Append adds a record at the end of the table.
//
// build receives the next id (last id + 1, or 1) and the current last record
// (nil when empty) and returns the record to store. It runs while the
// whole-file write lock is held, so ids and any other keys derived from the
// last record are unique even under concurrent appends. The write is synced
// to disk before the lock is released.
func (t *Table[T]) Append(ctx context.Context, build func(nextID int32, last *T) (T, error)) (T, int64, error) {
	return t.AppendHooked(ctx, build, nil)
}

// WriteOutcome is what a hooked write left in the file.
type WriteOutcome uint8

const (
	// WriteApplied means the file holds the new record.
	WriteApplied WriteOutcome = iota + 1
	// WriteDiscarded means the write failed and the previous content was
	// put back.
	WriteDiscarded
	// WriteUnknown means the write failed and the previous content could
	// not be restored.
	WriteUnknown
)

// WriteHook runs inside the write lock after the new record is encoded and
// before it reaches the file. pre is nil for appends. An error aborts the
// write. The returned func, when not nil, receives the outcome of the write
// before the lock is released.
type WriteHook func(pos int64, pre, post []byte) (func(WriteOutcome), error)

// AppendHooked is Append with a WriteHook, used to journal the new record
// before it is written.
func (t *Table[T]) AppendHooked(ctx context.Context, build func(nextID int32, last *T) (T, error), hook WriteHook) (T, int64, error) {
	var zero T
	recs, pos, err := t.AppendAllHooked(ctx, hook, build)
	if err != nil {
		return zero, NotFound, err
	}
	return recs[0], pos, nil
}

// AppendAllHooked appends one record per build under a single whole-file
// write lock and returns them with the position of the first. Each build
// sees the record appended before it as last. Either every record is
// written or the table is cut back to its previous length.
func (t *Table[T]) AppendAllHooked(ctx context.Context, hook WriteHook, builds ...func(nextID int32, last *T) (T, error)) ([]T, int64, error) {
	if len(builds) == 0 {
		return nil, NotFound, errors.NewInvalidArgumentError("nothing to append")
	}

	f, err := t.openWrite()
	if err != nil {
		return nil, NotFound, err
	}
	defer func() { _ = f.Close() }()

	owner := lock.NewOwner()
	if err := t.locks.LockWholeFile(ctx, f, owner, lock.Write); err != nil {
		return nil, NotFound, err
	}
	defer t.unlockWhole(f, owner)

	start, err := t.count(f)
	if err != nil {
		return nil, NotFound, err
	}
	last, err := t.readLast(f)
	if err != nil {
		return nil, NotFound, err
	}

	recs := make([]T, 0, len(builds))
	var dones []func(WriteOutcome)
	err = func() error {
		for i, build := range builds {
			next := int32(1)
			if last != nil {
				next = t.codec.ID(last) + 1
			}
			rec, err := build(next, last)
			if err != nil {
				return err
			}
			buf, err := t.Encode(rec)
			if err != nil {
				return err
			}
			pos := start + int64(i)
			if hook != nil {
				done, err := hook(pos, nil, buf)
				if err != nil {
					return err
				}
				if done != nil {
					dones = append(dones, done)
				}
			}
			if err := t.writeRaw(f, pos, buf); err != nil {
				return err
			}
			recs = append(recs, rec)
			last = &recs[len(recs)-1]
		}
		return nil
	}()

	outcome := WriteApplied
	if err != nil {
		outcome = WriteDiscarded
		if terr := t.truncate(f, start); terr != nil {
			logger.Error("Failed to cut back table after failed append",
				logger.KeyTable, t.name, logger.KeyPosition, start, logger.KeyError, terr)
			outcome = WriteUnknown
		}
	}
	for _, done := range dones {
		done(outcome)
	}
	if err != nil {
		return nil, NotFound, err
	}
	return recs, start, nil
}

// ModifyAt reads the record at pos, lets fn change it and writes it back,
// all under one write lock on the record's byte range. When fn returns an
// error nothing is written. hook, when set, sees the pre and post images
// before the write.
func (t *Table[T]) ModifyAt(ctx context.Context, pos int64, fn func(rec *T) error, hook WriteHook) (T, error) {
	var zero T
	if pos < 0 {
		return zero, errors.NewInvalidArgumentError("negative record position")
	}

	f, err := os.OpenFile(t.path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, errors.NewNotFoundError(t.path, t.name+" record")
		}
		return zero, t.ioError("open", err)
	}
	defer func() { _ = f.Close() }()

	owner := lock.NewOwner()
	if err := t.locks.LockRange(ctx, f, owner, pos, t.size, lock.Write); err != nil {
		return zero, err
	}
	defer t.unlockRange(f, owner, pos)

	pre, err := t.readRaw(f, pos)
	if err != nil {
		return zero, err
	}

	var rec T
	if err := t.codec.Decode(pre, &rec); err != nil {
		return zero, errors.NewCorruptedError(t.path, fmt.Sprintf("decode record %d: %v", pos, err))
	}
	if err := fn(&rec); err != nil {
		return zero, err
	}

	post, err := t.Encode(rec)
	if err != nil {
		return zero, err
	}
	if bytes.Equal(pre, post) {
		return rec, nil
	}

	var done func(WriteOutcome)
	if hook != nil {
		if done, err = hook(pos, pre, post); err != nil {
			return zero, err
		}
	}
	if err := t.writeRaw(f, pos, post); err != nil {
		outcome := WriteDiscarded
		if rerr := t.writeRaw(f, pos, pre); rerr != nil {
			logger.Error("Failed to restore record after failed write",
				logger.KeyTable, t.name, logger.KeyPosition, pos, logger.KeyError, rerr)
			outcome = WriteUnknown
		}
		if done != nil {
			done(outcome)
		}
		return zero, err
	}
	if done != nil {
		done(WriteApplied)
	}
	return rec, nil
}

// AppendRaw appends rec unchanged.
func (t *Table[T]) AppendRaw(ctx context.Context, rec T) (int64, error) {
	_, pos, err := t.Append(ctx, func(int32, *T) (T, error) { return rec, nil })
	return pos, err
}

// UpdateAt overwrites the record at pos under a write lock on its byte range
// and syncs before unlocking. Writing the same record twice leaves the file
// byte-identical.
func (t *Table[T]) UpdateAt(ctx context.Context, pos int64, rec T) error {
	buf := make([]byte, t.size)
	if err := t.codec.Encode(&rec, buf); err != nil {
		return errors.NewInvalidArgumentError(fmt.Sprintf("encode %s record: %v", t.name, err))
	}
	return t.WriteRawAt(ctx, pos, buf)
}

// WriteRawAt overwrites the record at pos with already encoded bytes.
func (t *Table[T]) WriteRawAt(ctx context.Context, pos int64, raw []byte) error {
	if int64(len(raw)) != t.size {
		return errors.NewInvalidArgumentError(fmt.Sprintf("%s record must be %d bytes, got %d", t.name, t.size, len(raw)))
	}
	_, err := t.rewrite(ctx, pos, func([]byte) ([]byte, error) { return raw, nil })
	return err
}

// TruncateTo drops every record at position n and beyond.
func (t *Table[T]) TruncateTo(ctx context.Context, n int64) error {
	f, err := t.openWrite()
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	owner := lock.NewOwner()
	if err := t.locks.LockWholeFile(ctx, f, owner, lock.Write); err != nil {
		return err
	}
	defer t.unlockWhole(f, owner)

	return t.truncate(f, n)
}

// ============================================================================
// Undo operations
// ============================================================================

// RevertAt undoes a write that replaced pre with post at pos. It runs under
// the record's write lock and reports whether the record changed.
//
// When the codec implements Reverter the change is undone on the record as
// it is now, so writes that landed after post survive. Otherwise it behaves
// like RestoreAt.
func (t *Table[T]) RevertAt(ctx context.Context, pos int64, pre, post []byte) (bool, error) {
	rv, ok := t.codec.(Reverter[T])
	if !ok {
		return t.RestoreAt(ctx, pos, pre, post)
	}
	if err := t.checkImages(pre, post); err != nil {
		return false, err
	}

	var before, after T
	if err := t.codec.Decode(pre, &before); err != nil {
		return false, errors.NewCorruptedError(t.path, fmt.Sprintf("decode pre-image: %v", err))
	}
	if err := t.codec.Decode(post, &after); err != nil {
		return false, errors.NewCorruptedError(t.path, fmt.Sprintf("decode post-image: %v", err))
	}

	return t.rewrite(ctx, pos, func(cur []byte) ([]byte, error) {
		var rec T
		if err := t.codec.Decode(cur, &rec); err != nil {
			return nil, errors.NewCorruptedError(t.path, fmt.Sprintf("decode record %d: %v", pos, err))
		}
		if err := rv.Revert(&rec, &before, &after); err != nil {
			return nil, errors.NewConflictError(t.path, fmt.Sprintf("revert %s record %d: %v", t.name, pos, err))
		}
		return t.Encode(rec)
	})
}

// RestoreAt puts pre back at pos while the record still holds post. A
// record that already holds pre is left alone. Anything else is a Conflict.
func (t *Table[T]) RestoreAt(ctx context.Context, pos int64, pre, post []byte) (bool, error) {
	if err := t.checkImages(pre, post); err != nil {
		return false, err
	}
	return t.rewrite(ctx, pos, func(cur []byte) ([]byte, error) {
		switch {
		case bytes.Equal(cur, post):
			return pre, nil
		case bytes.Equal(cur, pre):
			return cur, nil
		default:
			return nil, errors.NewConflictError(t.path,
				fmt.Sprintf("%s record %d changed after the write being undone", t.name, pos))
		}
	})
}

// RemoveAppended drops the record that an append wrote at pos with content
// post. It must still be the last record of the table.
//
// With applied set the append is known to have landed, so a different
// record at pos is a Conflict. Without it a missing or different record
// means the append never reached the file and nothing is done.
func (t *Table[T]) RemoveAppended(ctx context.Context, pos int64, post []byte, applied bool) (bool, error) {
	if pos < 0 {
		return false, errors.NewInvalidArgumentError("negative record position")
	}

	if _, err := os.Stat(t.path); os.IsNotExist(err) {
		return false, nil
	}

	f, err := t.openWrite()
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	owner := lock.NewOwner()
	if err := t.locks.LockWholeFile(ctx, f, owner, lock.Write); err != nil {
		return false, err
	}
	defer t.unlockWhole(f, owner)

	n, err := t.count(f)
	if err != nil {
		return false, err
	}
	if pos >= n {
		return false, nil
	}
	cur, err := t.readRaw(f, pos)
	if err != nil {
		return false, err
	}
	if !bytes.Equal(cur, post) {
		if !applied {
			return false, nil
		}
		return false, errors.NewConflictError(t.path,
			fmt.Sprintf("appended %s record %d was overwritten", t.name, pos))
	}
	if pos != n-1 {
		return false, errors.NewConflictError(t.path,
			fmt.Sprintf("appended %s record %d is followed by %d newer records", t.name, pos, n-1-pos))
	}
	if err := t.truncate(f, pos); err != nil {
		return false, err
	}
	return true, nil
}

// rewrite replaces the record at pos with fn's result under one write lock
// on its byte range. It reports whether the bytes changed.
func (t *Table[T]) rewrite(ctx context.Context, pos int64, fn func(cur []byte) ([]byte, error)) (bool, error) {
	if pos < 0 {
		return false, errors.NewInvalidArgumentError("negative record position")
	}

	f, err := os.OpenFile(t.path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return false, errors.NewNotFoundError(t.path, t.name+" record")
		}
		return false, t.ioError("open", err)
	}
	defer func() { _ = f.Close() }()

	owner := lock.NewOwner()
	if err := t.locks.LockRange(ctx, f, owner, pos, t.size, lock.Write); err != nil {
		return false, err
	}
	defer t.unlockRange(f, owner, pos)

	cur, err := t.readRaw(f, pos)
	if err != nil {
		return false, err
	}
	next, err := fn(cur)
	if err != nil {
		return false, err
	}
	if bytes.Equal(cur, next) {
		return false, nil
	}
	if err := t.writeRaw(f, pos, next); err != nil {
		return false, err
	}
	return true, nil
}

func (t *Table[T]) checkImages(pre, post []byte) error {
	if int64(len(pre)) != t.size || int64(len(post)) != t.size {
		return errors.NewInvalidArgumentError(fmt.Sprintf("%s images must be %d bytes", t.name, t.size))
	}
	return nil
}

// Encode returns the on-disk bytes of rec.
func (t *Table[T]) Encode(rec T) ([]byte, error) {
	buf := make([]byte, t.size)
	if err := t.codec.Encode(&rec, buf); err != nil {
		return nil, errors.NewInvalidArgumentError(fmt.Sprintf("encode %s record: %v", t.name, err))
	}
	return buf, nil
}

// Equal reports whether the record at pos currently holds exactly raw.
func (t *Table[T]) Equal(ctx context.Context, pos int64, raw []byte) (bool, error) {
	cur, err := t.ReadRawAt(ctx, pos)
	if err != nil {
		return false, err
	}
	return bytes.Equal(cur, raw), nil
}

// ============================================================================
// Helpers
// ============================================================================

// openRead opens the table read-only. A missing file yields (nil, nil).
func (t *Table[T]) openRead() (*os.File, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, t.ioError("open", err)
	}
	return f, nil
}

func (t *Table[T]) openWrite() (*os.File, error) {
	f, err := os.OpenFile(t.path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, t.ioError("open", err)
	}
	return f, nil
}

// count returns the number of complete records. Caller holds a lock.
func (t *Table[T]) count(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, t.ioError("stat", err)
	}
	return info.Size() / t.size, nil
}

// readLast decodes the last complete record, or returns nil when empty.
// Caller holds a whole-file lock.
func (t *Table[T]) readLast(f *os.File) (*T, error) {
	n, err := t.count(f)
	if err != nil || n == 0 {
		return nil, err
	}
	buf := make([]byte, t.size)
	if _, err := f.ReadAt(buf, (n-1)*t.size); err != nil {
		return nil, t.ioError("read last record", err)
	}
	var rec T
	if err := t.codec.Decode(buf, &rec); err != nil {
		return nil, errors.NewCorruptedError(t.path, fmt.Sprintf("decode last record: %v", err))
	}
	return &rec, nil
}

// readRaw reads the record at pos. Caller holds a lock covering it.
func (t *Table[T]) readRaw(f *os.File, pos int64) ([]byte, error) {
	buf := make([]byte, t.size)
	n, err := f.ReadAt(buf, pos*t.size)
	if int64(n) < t.size {
		if err == nil || err == io.EOF {
			return nil, errors.NewNotFoundError(t.path, t.name+" record")
		}
		return nil, t.ioError("read record", err)
	}
	return buf, nil
}

// truncate cuts the table to n records and syncs. Caller holds a whole-file
// write lock.
func (t *Table[T]) truncate(f *os.File, n int64) error {
	if err := f.Truncate(n * t.size); err != nil {
		return t.ioError("truncate", err)
	}
	if err := f.Sync(); err != nil {
		return t.ioError("sync", err)
	}
	return nil
}

// writeRaw writes an encoded record at pos and syncs. Caller holds a write
// lock.
func (t *Table[T]) writeRaw(f *os.File, pos int64, buf []byte) error {
	n, err := f.WriteAt(buf, pos*t.size)
	if err != nil {
		return t.ioError("write record", err)
	}
	if int64(n) != t.size {
		return t.ioError("write record", io.ErrShortWrite)
	}
	if err := f.Sync(); err != nil {
		return t.ioError("sync", err)
	}
	return nil
}

// repairTail truncates a trailing partial record.
func (t *Table[T]) repairTail(ctx context.Context) error {
	info, err := os.Stat(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return t.ioError("stat", err)
	}
	if info.Size()%t.size == 0 {
		return nil
	}

	aligned := info.Size() / t.size
	logger.Warn("Truncating partial record at end of table",
		logger.KeyTable, t.name, logger.KeyPath, t.path,
		"size", info.Size(), "record_size", t.size)
	return t.TruncateTo(ctx, aligned)
}

func (t *Table[T]) unlockWhole(f *os.File, owner lock.Owner) {
	if err := t.locks.LockWholeFile(context.Background(), f, owner, lock.Unlock); err != nil {
		logger.Warn("Failed to release table lock", logger.KeyTable, t.name, logger.KeyError, err)
	}
}

func (t *Table[T]) unlockRange(f *os.File, owner lock.Owner, pos int64) {
	if err := t.locks.LockRange(context.Background(), f, owner, pos, t.size, lock.Unlock); err != nil {
		logger.Warn("Failed to release record lock",
			logger.KeyTable, t.name, logger.KeyPosition, pos, logger.KeyError, err)
	}
}

func (t *Table[T]) ioError(op string, err error) error {
	logger.Warn("Table I/O failure", logger.KeyTable, t.name, logger.KeyOperation, op, logger.KeyError, err)
	return errors.NewIOError(t.path, op, err)
}
