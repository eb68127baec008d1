// Package storage provides the key-value abstraction behind the address index.
package storage

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in ascending
	// byte order. The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch collects writes that are applied together on Commit.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by databases that can commit writes atomically.
type Batcher interface {
	NewBatch() Batch
}

// NewBatch returns an atomic batch when db supports one, otherwise a batch
// that applies its writes in order on Commit.
func NewBatch(db DB) Batch {
	if b, ok := db.(Batcher); ok {
		return b.NewBatch()
	}
	return &directBatch{db: db}
}

// directBatch buffers writes and applies them one by one on Commit.
type directBatch struct {
	db  DB
	ops []memoryOp
}

func (db *directBatch) Put(key, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	db.ops = append(db.ops, memoryOp{key: append([]byte(nil), key...), value: v})
	return nil
}

func (db *directBatch) Delete(key []byte) error {
	db.ops = append(db.ops, memoryOp{key: append([]byte(nil), key...)})
	return nil
}

func (db *directBatch) Commit() error {
	for _, op := range db.ops {
		var err error
		if op.value == nil {
			err = db.db.Delete(op.key)
		} else {
			err = db.db.Put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	db.ops = nil
	return nil
}
