// Package repository provides the bank's entity repositories on top of the
// record store.
//
// Repositories never touch table files directly: every read and write goes
// through record.Table and therefore through the lock manager. Ids (and the
// account number of a new account) are assigned inside the table's append
// lock, so concurrent adds never hand out the same key.
//
// A repository bound to a Recorder with Journaled reports every record
// write to it before the write happens. banking uses this to make
// multi-record operations recoverable.
package repository

import (
	"context"

	"github.com/marmos91/bankd/pkg/store/errors"
	"github.com/marmos91/bankd/pkg/store/record"
)

// Recorder receives the pre and post image of every record write before
// the write, and its outcome after. *journal.Op implements it.
type Recorder interface {
	Record(table string, pos int64, pre, post []byte) error
	Written(table string, pos int64, outcome record.WriteOutcome)
}

// table is the shared generic part of every repository.
type table[T any] struct {
	t     *record.Table[T]
	id    func(*T) int32
	rec   Recorder
	label string
}

func newTable[T any](t *record.Table[T], id func(*T) int32, label string) table[T] {
	return table[T]{t: t, id: id, label: label}
}

func (b table[T]) journaled(r Recorder) table[T] {
	b.rec = r
	return b
}

func (b table[T]) hook() record.WriteHook {
	if b.rec == nil {
		return nil
	}
	name := b.t.Name()
	return func(pos int64, pre, post []byte) (func(record.WriteOutcome), error) {
		if err := b.rec.Record(name, pos, pre, post); err != nil {
			return nil, err
		}
		return func(outcome record.WriteOutcome) { b.rec.Written(name, pos, outcome) }, nil
	}
}

func (b table[T]) notFound() error {
	return errors.NewNotFoundError(b.t.Path(), b.label)
}

// getByID returns the record with id and its position.
func (b table[T]) getByID(ctx context.Context, id int32) (T, int64, error) {
	if id <= 0 {
		var zero T
		return zero, record.NotFound, b.notFound()
	}
	pos, rec, err := b.t.Find(ctx, func(r *T) bool { return b.id(r) == id })
	if err != nil {
		if errors.IsNotFoundError(err) {
			return rec, record.NotFound, b.notFound()
		}
		return rec, record.NotFound, err
	}
	return rec, pos, nil
}

// findOne returns the first record matching pred.
func (b table[T]) findOne(ctx context.Context, pred func(*T) bool) (T, error) {
	_, rec, err := b.t.Find(ctx, pred)
	if err != nil && errors.IsNotFoundError(err) {
		return rec, b.notFound()
	}
	return rec, err
}

// add appends the record built by build inside the append lock.
func (b table[T]) add(ctx context.Context, build func(next int32, last *T) (T, error)) (T, error) {
	rec, _, err := b.t.AppendHooked(ctx, build, b.hook())
	return rec, err
}

// addAll appends one record per build under a single append lock, all or
// nothing.
func (b table[T]) addAll(ctx context.Context, builds ...func(next int32, last *T) (T, error)) ([]T, error) {
	recs, _, err := b.t.AppendAllHooked(ctx, b.hook(), builds...)
	return recs, err
}

// update overwrites the record carrying rec's id.
func (b table[T]) update(ctx context.Context, rec T) error {
	_, err := b.modify(ctx, b.id(&rec), func(cur *T) error {
		*cur = rec
		return nil
	})
	return err
}

// modify locates the record by id and applies fn to it under the record's
// write lock.
func (b table[T]) modify(ctx context.Context, id int32, fn func(*T) error) (T, error) {
	_, pos, err := b.getByID(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return b.t.ModifyAt(ctx, pos, fn, b.hook())
}

// filter returns records matching pred in table order. limit <= 0 means no
// limit; with a limit, further matches are silently dropped.
func (b table[T]) filter(ctx context.Context, pred func(*T) bool, limit int) ([]T, error) {
	var out []T
	err := b.t.Scan(ctx, func(_ int64, r *T) bool {
		if pred == nil || pred(r) {
			out = append(out, *r)
			if limit > 0 && len(out) >= limit {
				return false
			}
		}
		return true
	})
	return out, err
}

func (b table[T]) count(ctx context.Context) (int64, error) {
	return b.t.Len(ctx)
}
