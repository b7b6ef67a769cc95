package journal

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/bankd/pkg/store/errors"
	"github.com/marmos91/bankd/pkg/store/lock"
	"github.com/marmos91/bankd/pkg/store/record"
)

type counter struct {
	ID    int32
	Value int64
}

type counterCodec struct{}

func (counterCodec) Size() int { return 12 }
func (counterCodec) Encode(c *counter, buf []byte) error {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(c.ID))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(c.Value))
	return nil
}
func (counterCodec) Decode(buf []byte, c *counter) error {
	c.ID = int32(binary.LittleEndian.Uint32(buf[0:4]))
	c.Value = int64(binary.LittleEndian.Uint64(buf[4:12]))
	return nil
}
func (counterCodec) ID(c *counter) int32 { return c.ID }

// balanceCodec reverts a write by moving Value back by the amount the write
// changed it.
type balanceCodec struct{ counterCodec }

func (balanceCodec) Revert(cur, pre, post *counter) error {
	if cur.ID != pre.ID {
		return fmt.Errorf("record %d now holds %d", pre.ID, cur.ID)
	}
	v := cur.Value + pre.Value - post.Value
	if v < 0 {
		return fmt.Errorf("balance would drop to %d", v)
	}
	cur.Value = v
	return nil
}

func newCounters(t *testing.T, dir string) *record.Table[counter] {
	t.Helper()
	tbl, err := record.Open[counter]("counters", filepath.Join(dir, "counters.dat"), counterCodec{}, lock.NewManager())
	require.NoError(t, err)
	return tbl
}

func newBalances(t *testing.T, dir string) *record.Table[counter] {
	t.Helper()
	tbl, err := record.Open[counter]("balances", filepath.Join(dir, "balances.dat"), balanceCodec{}, lock.NewManager())
	require.NoError(t, err)
	return tbl
}

func hookFor(op *Op, table string) record.WriteHook {
	return func(pos int64, pre, post []byte) (func(record.WriteOutcome), error) {
		if err := op.Record(table, pos, pre, post); err != nil {
			return nil, err
		}
		return func(outcome record.WriteOutcome) { op.Written(table, pos, outcome) }, nil
	}
}

func add(delta int64) func(*counter) error {
	return func(c *counter) error { c.Value += delta; return nil }
}

func seedCounters(t *testing.T, tbl *record.Table[counter], values ...int64) {
	t.Helper()
	for _, v := range values {
		_, _, err := tbl.Append(context.Background(), func(next int32, _ *counter) (counter, error) {
			return counter{ID: next, Value: v}, nil
		})
		require.NoError(t, err)
	}
}

func values(t *testing.T, tbl *record.Table[counter]) []int64 {
	t.Helper()
	var out []int64
	require.NoError(t, tbl.Scan(context.Background(), func(_ int64, c *counter) bool {
		out = append(out, c.Value)
		return true
	}))
	return out
}

func TestEntry_MarshalRoundTrip(t *testing.T) {
	e := Entry{Kind: KindImage, OpID: "op", Seq: 3, Table: "accounts", Position: 9, Pre: []byte{1, 2}, Post: []byte{3}}
	data, err := e.MarshalBinary()
	require.NoError(t, err)

	var got Entry
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, e.Pre, got.Pre)
	assert.Equal(t, e.Post, got.Post)
	assert.Equal(t, e.Position, got.Position)
	assert.Equal(t, e.Table, got.Table)

	assert.ErrorIs(t, got.UnmarshalBinary(data[:len(data)-1]), ErrCorrupted)
}

func TestFilePersister_AppendEntriesReset(t *testing.T) {
	dir := t.TempDir()
	p, err := NewFilePersister(dir)
	require.NoError(t, err)

	require.NoError(t, p.Append(&Entry{Kind: KindBegin, OpID: "a", Operation: "transfer"}))
	require.NoError(t, p.Append(&Entry{Kind: KindCommit, OpID: "a"}))
	require.NoError(t, p.Close())

	p, err = NewFilePersister(dir)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	entries, err := p.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "transfer", entries[0].Operation)
	assert.Equal(t, KindCommit, entries[1].Kind)

	require.NoError(t, p.Reset())
	entries, err = p.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFilePersister_IgnoresTornTail(t *testing.T) {
	dir := t.TempDir()
	p, err := NewFilePersister(dir)
	require.NoError(t, err)
	require.NoError(t, p.Append(&Entry{Kind: KindBegin, OpID: "a"}))
	require.NoError(t, p.Close())

	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte{200, 0, 0, 0, 1, 2})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	p, err = NewFilePersister(dir)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	entries, err := p.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFilePersister_RejectsForeignFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("definitely not a journal"), 0600))

	_, err := NewFilePersister(dir)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestBadgerPersister_AppendEntriesReset(t *testing.T) {
	dir := t.TempDir()
	p, err := NewBadgerPersister(dir)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Append(&Entry{Kind: KindImage, OpID: "a", Seq: uint32(i), Table: "t"}))
	}
	require.NoError(t, p.Close())

	p, err = NewBadgerPersister(dir)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	require.NoError(t, p.Append(&Entry{Kind: KindCommit, OpID: "a", Seq: 3}))

	entries, err := p.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, e := range entries {
		assert.Equal(t, uint32(i), e.Seq)
	}

	require.NoError(t, p.Reset())
	entries, err = p.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJournal_CommitClearsJournal(t *testing.T) {
	dir := t.TempDir()
	tbl := newCounters(t, dir)
	seedCounters(t, tbl, 100)

	p, err := NewFilePersister(dir)
	require.NoError(t, err)
	j := New(p, tbl)
	defer func() { _ = j.Close() }()
	ctx := context.Background()

	op, err := j.Begin(ctx, "deposit")
	require.NoError(t, err)
	_, err = tbl.ModifyAt(ctx, 0, func(c *counter) error { c.Value += 50; return nil }, hookFor(op, tbl.Name()))
	require.NoError(t, err)
	require.NoError(t, op.Commit())

	entries, err := p.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, []int64{150}, values(t, tbl))
}

func TestJournal_RecoverRollsBackUnfinished(t *testing.T) {
	dir := t.TempDir()
	tbl := newCounters(t, dir)
	seedCounters(t, tbl, 1000, 200)
	ctx := context.Background()

	p, err := NewFilePersister(dir)
	require.NoError(t, err)
	j := New(p, tbl)

	// A transfer that crashes after the debit and the credit but before
	// its ledger row is committed.
	op, err := j.Begin(ctx, "transfer")
	require.NoError(t, err)
	hook := hookFor(op, tbl.Name())
	_, err = tbl.ModifyAt(ctx, 0, func(c *counter) error { c.Value -= 300; return nil }, hook)
	require.NoError(t, err)
	_, err = tbl.ModifyAt(ctx, 1, func(c *counter) error { c.Value += 300; return nil }, hook)
	require.NoError(t, err)
	_, _, err = tbl.AppendHooked(ctx, func(next int32, _ *counter) (counter, error) {
		return counter{ID: next, Value: 300}, nil
	}, hook)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	assert.Equal(t, []int64{700, 500, 300}, values(t, tbl))

	// Restart.
	p, err = NewFilePersister(dir)
	require.NoError(t, err)
	j = New(p, tbl)
	defer func() { _ = j.Close() }()

	report, err := j.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RolledBack)
	assert.Equal(t, 3, report.Images)
	assert.Equal(t, []int64{1000, 200}, values(t, tbl))

	entries, err := p.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJournal_RecoverIgnoresCommitted(t *testing.T) {
	dir := t.TempDir()
	tbl := newCounters(t, dir)
	seedCounters(t, tbl, 10)
	ctx := context.Background()

	p, err := NewFilePersister(dir)
	require.NoError(t, err)

	// Write a committed op by hand so the journal is not auto-cleared.
	require.NoError(t, p.Append(&Entry{Kind: KindBegin, OpID: "done"}))
	require.NoError(t, p.Append(&Entry{Kind: KindImage, OpID: "done", Table: "counters", Position: 0,
		Pre: []byte{1, 0, 0, 0, 5, 0, 0, 0, 0, 0, 0, 0}, Post: []byte{1, 0, 0, 0, 10, 0, 0, 0, 0, 0, 0, 0}}))
	require.NoError(t, p.Append(&Entry{Kind: KindCommit, OpID: "done"}))

	j := New(p, tbl)
	defer func() { _ = j.Close() }()

	report, err := j.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Committed)
	assert.Zero(t, report.RolledBack)
	assert.Equal(t, []int64{10}, values(t, tbl))
}

func TestJournal_RecoverLeavesLaterWrites(t *testing.T) {
	dir := t.TempDir()
	tbl := newCounters(t, dir)
	seedCounters(t, tbl, 10)
	ctx := context.Background()

	p, err := NewFilePersister(dir)
	require.NoError(t, err)
	j := New(p, tbl)

	op, err := j.Begin(ctx, "withdraw")
	require.NoError(t, err)
	_, err = tbl.ModifyAt(ctx, 0, func(c *counter) error { c.Value = 5; return nil }, hookFor(op, tbl.Name()))
	require.NoError(t, err)

	// An unjournaled write lands on the same record afterwards.
	require.NoError(t, tbl.UpdateAt(ctx, 0, counter{ID: 1, Value: 42}))

	report, err := New(p, tbl).Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Conflicts)
	assert.Zero(t, report.Images)
	assert.Equal(t, []int64{42}, values(t, tbl))
	_ = p.Close()
}

func TestJournal_RecoverRevertsOverwrittenImage(t *testing.T) {
	dir := t.TempDir()
	tbl := newBalances(t, dir)
	seedCounters(t, tbl, 1000)
	ctx := context.Background()

	p, err := NewFilePersister(dir)
	require.NoError(t, err)
	j := New(p, tbl)

	// A debit that never commits, followed by a committed deposit to the
	// same record.
	debit, err := j.Begin(ctx, "transfer")
	require.NoError(t, err)
	_, err = tbl.ModifyAt(ctx, 0, add(-300), hookFor(debit, tbl.Name()))
	require.NoError(t, err)

	deposit, err := j.Begin(ctx, "deposit")
	require.NoError(t, err)
	_, err = tbl.ModifyAt(ctx, 0, add(50), hookFor(deposit, tbl.Name()))
	require.NoError(t, err)
	require.NoError(t, deposit.Commit())
	require.NoError(t, p.Close())

	p, err = NewFilePersister(dir)
	require.NoError(t, err)
	j = New(p, tbl)
	defer func() { _ = j.Close() }()

	report, err := j.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Committed)
	assert.Equal(t, 1, report.RolledBack)
	assert.Equal(t, 1, report.Images)
	assert.Zero(t, report.Conflicts)
	assert.Equal(t, []int64{1050}, values(t, tbl))
}

func TestJournal_RecoverSkipsUndoneImages(t *testing.T) {
	dir := t.TempDir()
	tbl := newCounters(t, dir)
	seedCounters(t, tbl, 10)
	ctx := context.Background()

	p, err := NewFilePersister(dir)
	require.NoError(t, err)

	pre := []byte{1, 0, 0, 0, 10, 0, 0, 0, 0, 0, 0, 0}
	post := []byte{1, 0, 0, 0, 5, 0, 0, 0, 0, 0, 0, 0}
	require.NoError(t, p.Append(&Entry{Kind: KindBegin, OpID: "a", Seq: 0}))
	require.NoError(t, p.Append(&Entry{Kind: KindImage, OpID: "a", Seq: 1, Table: "counters", Pre: pre, Post: post}))
	require.NoError(t, p.Append(&Entry{Kind: KindUndo, OpID: "a", Seq: 2, Table: "counters", Undoes: 1}))

	// The record was written again after the undo; recovery must not touch it.
	require.NoError(t, tbl.UpdateAt(ctx, 0, counter{ID: 1, Value: 7}))

	j := New(p, tbl)
	defer func() { _ = j.Close() }()

	report, err := j.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RolledBack)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Conflicts)
	assert.Equal(t, []int64{7}, values(t, tbl))
}

func TestJournal_RollbackAtRuntime(t *testing.T) {
	dir := t.TempDir()
	tbl := newCounters(t, dir)
	seedCounters(t, tbl, 100)
	ctx := context.Background()

	j := New(NewNullPersister(), tbl)

	op, err := j.Begin(ctx, "transfer")
	require.NoError(t, err)
	_, err = tbl.ModifyAt(ctx, 0, func(c *counter) error { c.Value = 0; return nil }, hookFor(op, tbl.Name()))
	require.NoError(t, err)

	require.NoError(t, op.Rollback(ctx))
	assert.Equal(t, []int64{100}, values(t, tbl))

	// Finished operations ignore further calls.
	require.NoError(t, op.Commit())
	assert.Error(t, op.Record("counters", 0, nil, nil))
}

func TestJournal_RollbackKeepsConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	tbl := newBalances(t, dir)
	seedCounters(t, tbl, 5000, 0)
	ctx := context.Background()

	p, err := NewFilePersister(dir)
	require.NoError(t, err)
	j := New(p, tbl)
	defer func() { _ = j.Close() }()

	op, err := j.Begin(ctx, "transfer")
	require.NoError(t, err)
	hook := hookFor(op, tbl.Name())
	_, err = tbl.ModifyAt(ctx, 0, add(-300), hook)
	require.NoError(t, err)

	// Another writer deposits into the debited record before the
	// operation fails.
	_, err = tbl.ModifyAt(ctx, 0, add(100), nil)
	require.NoError(t, err)

	_, err = tbl.ModifyAt(ctx, 1, add(300), hook)
	require.NoError(t, err)

	require.NoError(t, op.Rollback(ctx))
	assert.Equal(t, []int64{5100, 0}, values(t, tbl))

	entries, err := p.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJournal_RollbackReportsPartialFailure(t *testing.T) {
	dir := t.TempDir()
	tbl := newBalances(t, dir)
	seedCounters(t, tbl, 500)
	ctx := context.Background()

	p, err := NewFilePersister(dir)
	require.NoError(t, err)
	j := New(p, tbl)
	defer func() { _ = j.Close() }()

	op, err := j.Begin(ctx, "loan")
	require.NoError(t, err)
	_, err = tbl.ModifyAt(ctx, 0, add(1000), hookFor(op, tbl.Name()))
	require.NoError(t, err)

	// The credited money is spent before the operation fails, so taking
	// the credit back would go below zero.
	_, err = tbl.ModifyAt(ctx, 0, add(-1200), nil)
	require.NoError(t, err)

	err = op.Rollback(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsPartialFailureError(err))
	assert.Equal(t, []int64{300}, values(t, tbl))

	entries, err := p.Entries()
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "an unfinished rollback stays in the journal")

	// Once the balance allows it, a second Rollback finishes the job.
	_, err = tbl.ModifyAt(ctx, 0, add(800), nil)
	require.NoError(t, err)
	require.NoError(t, op.Rollback(ctx))
	assert.Equal(t, []int64{100}, values(t, tbl))
}

func TestJournal_RollbackRemovesAppendedPair(t *testing.T) {
	dir := t.TempDir()
	tbl := newCounters(t, dir)
	seedCounters(t, tbl, 1)
	ctx := context.Background()

	j := New(NewNullPersister(), tbl)
	op, err := j.Begin(ctx, "transfer")
	require.NoError(t, err)

	build := func(v int64) func(int32, *counter) (counter, error) {
		return func(next int32, _ *counter) (counter, error) { return counter{ID: next, Value: v}, nil }
	}
	recs, pos, err := tbl.AppendAllHooked(ctx, hookFor(op, tbl.Name()), build(-300), build(300))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(1), pos)
	assert.Equal(t, int32(3), recs[1].ID)

	require.NoError(t, op.Rollback(ctx))
	assert.Equal(t, []int64{1}, values(t, tbl))
}

func TestJournal_ClearRefusesInflight(t *testing.T) {
	j := New(nil)
	op, err := j.Begin(context.Background(), "x")
	require.NoError(t, err)

	assert.Error(t, j.Clear())
	require.NoError(t, op.Commit())
	assert.NoError(t, j.Clear())
	assert.False(t, j.Enabled())
}
