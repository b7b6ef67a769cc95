package journal

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
)

// Key prefixes for journal storage
const (
	prefixEntry = "jentry:" // jentry:{seq big-endian u64} -> Entry
)

// BadgerPersister implements Persister using BadgerDB.
//
// Storage Model:
//   - jentry:{seq} -> Entry.MarshalBinary()
//
// The sequence is big-endian so that prefix iteration returns entries in
// append order. Writes use SyncWrites so Append is durable on return.
type BadgerPersister struct {
	mu     sync.Mutex
	db     *badgerdb.DB
	next   uint64
	closed bool
}

// NewBadgerPersister opens a BadgerDB journal in dir.
func NewBadgerPersister(dir string) (*BadgerPersister, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	opts := badgerdb.DefaultOptions(dir).
		WithSyncWrites(true).
		WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger journal: %w", err)
	}

	p := &BadgerPersister{db: db}
	if err := p.loadNext(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// loadNext finds the sequence after the last stored entry.
func (p *BadgerPersister) loadNext() error {
	return p.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration needs a seek key past every entry.
		seekKey := append([]byte(prefixEntry), 0xFF)
		it.Seek(seekKey)
		if it.ValidForPrefix([]byte(prefixEntry)) {
			key := it.Item().Key()
			p.next = binary.BigEndian.Uint64(key[len(prefixEntry):]) + 1
		}
		return nil
	})
}

func entryKey(seq uint64) []byte {
	key := make([]byte, len(prefixEntry)+8)
	copy(key, prefixEntry)
	binary.BigEndian.PutUint64(key[len(prefixEntry):], seq)
	return key
}

// Append stores entry under the next sequence number.
func (p *BadgerPersister) Append(entry *Entry) error {
	data, err := entry.MarshalBinary()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersisterClosed
	}

	key := entryKey(p.next)
	if err := p.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key, data)
	}); err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	p.next++
	return nil
}

// Entries returns every stored entry in sequence order.
func (p *BadgerPersister) Entries() ([]Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPersisterClosed
	}

	var entries []Entry
	err := p.db.View(func(txn *badgerdb.Txn) error {
		prefix := []byte(prefixEntry)
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return e.UnmarshalBinary(val)
			}); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Reset drops every entry.
func (p *BadgerPersister) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersisterClosed
	}
	if err := p.db.DropPrefix([]byte(prefixEntry)); err != nil {
		return fmt.Errorf("reset badger journal: %w", err)
	}
	p.next = 0
	return nil
}

// Close closes the database.
func (p *BadgerPersister) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}

// IsEnabled returns true.
func (p *BadgerPersister) IsEnabled() bool { return true }

var _ Persister = (*BadgerPersister)(nil)
