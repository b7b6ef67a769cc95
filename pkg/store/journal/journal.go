// Package journal is a write-ahead journal for operations that write more
// than one record.
//
// An operation writes a begin entry, then one image entry per record write
// (pre-image and post-image, durable before the record itself is written),
// then a commit entry. A failed operation is rolled back at runtime; every
// reverted image gets an undo entry. On startup Recover rolls back what is
// left of every operation that has a begin but no commit, so a crash in the
// middle of a transfer never leaves money debited on one side only.
//
// Writes are undone under the record lock against the record as it is now,
// not by copying the pre-image back: another connection may have written
// the same record in between. A write that can no longer be undone makes
// Rollback fail with a PartialFailure error and is reported by Recover.
package journal

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/pkg/store/errors"
	"github.com/marmos91/bankd/pkg/store/record"
)

// RawTable is the byte-level view of a record table that rollback needs.
// *record.Table implements it.
type RawTable interface {
	Name() string

	// RevertAt undoes a write known to have landed.
	RevertAt(ctx context.Context, pos int64, pre, post []byte) (bool, error)

	// RestoreAt puts pre back only while the record still holds post.
	RestoreAt(ctx context.Context, pos int64, pre, post []byte) (bool, error)

	// RemoveAppended drops an appended record that is still the table tail.
	RemoveAppended(ctx context.Context, pos int64, post []byte, applied bool) (bool, error)
}

// Journal coordinates operations over a Persister.
type Journal struct {
	mu       sync.Mutex
	p        Persister
	tables   map[string]RawTable
	inflight int
}

// New returns a journal over p that can roll back writes to tables.
func New(p Persister, tables ...RawTable) *Journal {
	if p == nil {
		p = NewNullPersister()
	}
	j := &Journal{
		p:      p,
		tables: make(map[string]RawTable, len(tables)),
	}
	for _, t := range tables {
		j.tables[t.Name()] = t
	}
	return j
}

// Enabled reports whether entries are persisted.
func (j *Journal) Enabled() bool {
	return j.p.IsEnabled()
}

// Close closes the persister.
func (j *Journal) Close() error {
	return j.p.Close()
}

// imageState tracks what became of one journaled record write.
type imageState uint8

const (
	imagePending   imageState = iota // journaled, outcome not reported
	imageApplied                     // the table holds post
	imageUnknown                     // the write failed half way
	imageUndone                      // reverted, or never written
)

type image struct {
	Entry
	state imageState
}

// Op is one in-flight journaled operation.
type Op struct {
	j         *Journal
	id        string
	operation string
	seq       uint32
	images    []image
	done      bool
	mu        sync.Mutex
}

// Begin opens an operation named operation (e.g. "transfer").
func (j *Journal) Begin(ctx context.Context, operation string) (*Op, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	op := &Op{j: j, id: uuid.NewString(), operation: operation}

	j.mu.Lock()
	j.inflight++
	j.mu.Unlock()

	if err := op.append(&Entry{Kind: KindBegin, Operation: operation}); err != nil {
		j.finish()
		return nil, err
	}
	return op, nil
}

// ID returns the operation id.
func (op *Op) ID() string {
	return op.id
}

// Record journals one record write. It must return before the record is
// written to its table. pre is nil for appended records.
func (op *Op) Record(table string, pos int64, pre, post []byte) error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.done {
		return fmt.Errorf("journal op %s already finished", op.id)
	}
	e := Entry{
		Kind:     KindImage,
		Table:    table,
		Position: pos,
		Pre:      append([]byte(nil), pre...),
		Post:     append([]byte(nil), post...),
	}
	if err := op.appendLocked(&e); err != nil {
		return err
	}
	op.images = append(op.images, image{Entry: e})
	return nil
}

// Written reports the outcome of the write last journaled for table and
// pos. It is called while the table still holds the record lock, so a
// discarded write is marked undone before anyone else can touch the record.
func (op *Op) Written(table string, pos int64, outcome record.WriteOutcome) {
	op.mu.Lock()
	defer op.mu.Unlock()

	for i := len(op.images) - 1; i >= 0; i-- {
		im := &op.images[i]
		if im.state != imagePending || im.Table != table || im.Position != pos {
			continue
		}
		switch outcome {
		case record.WriteApplied:
			im.state = imageApplied
		case record.WriteDiscarded:
			if err := op.markUndone(im); err != nil {
				logger.Warn("Failed to journal discarded write",
					logger.KeyOpID, op.id, logger.KeyTable, table, logger.KeyPosition, pos, logger.KeyError, err)
			}
		default:
			im.state = imageUnknown
		}
		return
	}
}

// Commit closes the operation.
func (op *Op) Commit() error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.done {
		return nil
	}
	if err := op.appendLocked(&Entry{Kind: KindCommit}); err != nil {
		return err
	}
	op.done = true
	op.j.finish()
	return nil
}

// Rollback undoes every recorded write of the operation, newest first, and
// then closes it. It is used when a later step of the operation fails.
//
// When a write cannot be undone, because the record changed in a way that
// makes the undo unsafe or the table failed, Rollback returns a
// PartialFailure error. The operation then stays open: calling Rollback
// again, or Recover after a restart, retries only what is left.
func (op *Op) Rollback(ctx context.Context) error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.done {
		return nil
	}

	var failed []error
	for i := len(op.images) - 1; i >= 0; i-- {
		im := &op.images[i]
		if im.state == imageUndone {
			continue
		}
		if _, err := op.j.revert(ctx, &im.Entry, im.state == imageApplied); err != nil {
			logger.Error("Failed to undo record write",
				logger.KeyOpID, op.id, logger.KeyOperation, op.operation,
				logger.KeyTable, im.Table, logger.KeyPosition, im.Position, logger.KeyError, err)
			failed = append(failed, err)
			continue
		}
		if err := op.markUndone(im); err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return errors.NewPartialFailureError(op.operation, stderrors.Join(failed...))
	}

	if err := op.appendLocked(&Entry{Kind: KindCommit}); err != nil {
		return err
	}
	op.done = true
	op.j.finish()
	return nil
}

// markUndone records that im needs no further undo. The in-memory state is
// updated even when the undo entry cannot be stored.
func (op *Op) markUndone(im *image) error {
	im.state = imageUndone
	return op.appendLocked(&Entry{Kind: KindUndo, Table: im.Table, Position: im.Position, Undoes: im.Seq})
}

func (op *Op) append(e *Entry) error {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.appendLocked(e)
}

func (op *Op) appendLocked(e *Entry) error {
	e.OpID = op.id
	e.Seq = op.seq
	e.Timestamp = time.Now()
	op.seq++
	if err := op.j.p.Append(e); err != nil {
		logger.Error("Journal append failed", logger.KeyOpID, op.id, logger.KeyError, err)
		return errors.NewIOError("journal", "append", err)
	}
	return nil
}

// finish marks one operation as ended and clears the journal once nothing
// is in flight.
func (j *Journal) finish() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.inflight--
	if j.inflight > 0 {
		return
	}
	if err := j.p.Reset(); err != nil {
		logger.Warn("Failed to clear journal", logger.KeyError, err)
	}
}

// Clear truncates the journal. It fails when an operation is in flight.
func (j *Journal) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.inflight > 0 {
		return fmt.Errorf("cannot clear journal with %d operations in flight", j.inflight)
	}
	return j.p.Reset()
}

// RecoveryReport summarizes a recovery pass.
type RecoveryReport struct {
	Committed  int
	RolledBack int
	Images     int
	Skipped    int

	// Conflicts counts writes that could not be undone. Each one is logged
	// at error level with its table and position.
	Conflicts int
}

type recordKey struct {
	table string
	pos   int64
}

// Recover rolls back every operation without a commit entry and then
// clears the journal. It must run before the tables are served.
//
// A record write that is followed in the journal by a later image of the
// same record certainly landed: the later writer only got the record lock
// after it. Such writes are reverted against the record as it is now.
// For the newest write of a record the content decides: the pre-image is
// put back only while the record still holds the post-image.
func (j *Journal) Recover(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.inflight > 0 {
		return report, fmt.Errorf("cannot recover with %d operations in flight", j.inflight)
	}

	entries, err := j.p.Entries()
	if err != nil {
		return report, fmt.Errorf("read journal: %w", err)
	}
	if len(entries) == 0 {
		return report, nil
	}

	type opState struct {
		operation string
		images    []int
		undone    map[uint32]bool
		committed bool
	}
	var order []string
	ops := make(map[string]*opState)
	newest := make(map[recordKey]int)
	for i, e := range entries {
		st, ok := ops[e.OpID]
		if !ok {
			st = &opState{undone: make(map[uint32]bool)}
			ops[e.OpID] = st
			order = append(order, e.OpID)
		}
		switch e.Kind {
		case KindBegin:
			st.operation = e.Operation
		case KindImage:
			st.images = append(st.images, i)
			newest[recordKey{e.Table, e.Position}] = i
		case KindUndo:
			st.undone[e.Undoes] = true
		case KindCommit:
			st.committed = true
		}
	}

	// Newest operation first, newest image first.
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		st := ops[id]
		if st.committed {
			report.Committed++
			continue
		}

		logger.Warn("Rolling back unfinished operation",
			logger.KeyOpID, id, logger.KeyOperation, st.operation, "images", len(st.images))
		for k := len(st.images) - 1; k >= 0; k-- {
			idx := st.images[k]
			e := &entries[idx]
			if st.undone[e.Seq] {
				report.Skipped++
				continue
			}

			applied := !e.IsAppend() && newest[recordKey{e.Table, e.Position}] > idx
			reverted, err := j.revert(ctx, e, applied)
			switch {
			case errors.IsConflictError(err):
				logger.Error("Cannot undo write of unfinished operation",
					logger.KeyOpID, id, logger.KeyOperation, st.operation,
					logger.KeyTable, e.Table, logger.KeyPosition, e.Position, logger.KeyError, err)
				report.Conflicts++
			case err != nil:
				return report, fmt.Errorf("roll back op %s: %w", id, err)
			case reverted:
				report.Images++
			default:
				report.Skipped++
			}
		}
		report.RolledBack++
	}

	if err := j.p.Reset(); err != nil {
		return report, fmt.Errorf("clear journal: %w", err)
	}

	logger.Info("Journal recovery complete",
		"committed", report.Committed, "rolled_back", report.RolledBack,
		"images", report.Images, "skipped", report.Skipped, "conflicts", report.Conflicts)
	return report, nil
}

// revert undoes one image. applied tells whether the write is known to have
// reached the table. A record that an unapplied write never reached needs
// nothing.
func (j *Journal) revert(ctx context.Context, e *Entry, applied bool) (bool, error) {
	t, ok := j.tables[e.Table]
	if !ok {
		return false, fmt.Errorf("journal references unknown table %q", e.Table)
	}

	var (
		reverted bool
		err      error
	)
	switch {
	case e.IsAppend():
		reverted, err = t.RemoveAppended(ctx, e.Position, e.Post, applied)
	case applied:
		reverted, err = t.RevertAt(ctx, e.Position, e.Pre, e.Post)
	default:
		reverted, err = t.RestoreAt(ctx, e.Position, e.Pre, e.Post)
	}
	if err != nil && !applied && errors.IsNotFoundError(err) {
		return false, nil
	}
	return reverted, err
}
