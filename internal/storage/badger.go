package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/addrindex/internal/log"
)

// BadgerOptions tunes how the index database is opened.
type BadgerOptions struct {
	// ReadOnly opens the database without taking the write lock, so an
	// external indexer process can own the writes.
	ReadOnly bool
}

// BadgerDB implements DB using Badger.
type BadgerDB struct {
	db       *badger.DB
	readOnly bool
}

// NewBadger opens a read-write Badger database at the given path.
func NewBadger(path string) (*BadgerDB, error) {
	return OpenBadger(path, BadgerOptions{})
}

// OpenBadger opens a Badger database at path with the given options.
func OpenBadger(path string, o BadgerOptions) (*BadgerDB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = badgerLogger{l: klog.Storage}
	opts.ReadOnly = o.ReadOnly

	db, err := badger.Open(opts)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Cannot acquire directory lock") ||
			strings.Contains(errMsg, "resource temporarily unavailable") {
			return nil, fmt.Errorf("index at %s is locked by another process (open it with index.readonly = true): %w", path, err)
		}
		return nil, fmt.Errorf("open index at %s: %w", path, err)
	}
	return &BadgerDB{db: db, readOnly: o.ReadOnly}, nil
}

// badgerLogger routes badger's own messages to the storage logger. Badger
// is chatty at info level, so its info lines are logged at debug.
type badgerLogger struct {
	l zerolog.Logger
}

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error().Msgf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Trace().Msgf(strings.TrimSpace(format), args...)
}

// Get retrieves a value by key. Returns ErrNotFound if the key does not exist.
func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return val, nil
}

// Put stores a key-value pair.
func (b *BadgerDB) Put(key, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

// Delete removes a key.
func (b *BadgerDB) Delete(key []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// Has checks if a key exists.
func (b *BadgerDB) Has(key []byte) (bool, error) {
	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("badger has: %w", err)
	}
	return exists, nil
}

// ForEach iterates over all keys with the given prefix.
func (b *BadgerDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, val); err != nil {
				return err
			}
		}
		return nil
	})
}

// NewBatch returns a batch backed by a single read-write transaction.
func (b *BadgerDB) NewBatch() Batch {
	return &badgerBatch{txn: b.db.NewTransaction(true)}
}

// Close closes the database.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}

type badgerBatch struct {
	txn *badger.Txn
}

func (bb *badgerBatch) Put(key, value []byte) error {
	return bb.txn.Set(key, value)
}

func (bb *badgerBatch) Delete(key []byte) error {
	return bb.txn.Delete(key)
}

func (bb *badgerBatch) Commit() error {
	if err := bb.txn.Commit(); err != nil {
		return fmt.Errorf("badger commit: %w", err)
	}
	return nil
}
