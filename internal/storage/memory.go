package storage

import (
	"sort"
	"strings"
	"sync"
)

// MemoryDB implements DB using an in-memory map. Iteration is sorted so it
// behaves like Badger for ordered index scans.
type MemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates a new in-memory database.
func NewMemory() *MemoryDB {
	return &MemoryDB{
		data: make(map[string][]byte),
	}
}

// Get retrieves a value by key.
func (m *MemoryDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put stores a key-value pair.
func (m *MemoryDB) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(key, value)
	return nil
}

func (m *MemoryDB) putLocked(key, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	m.data[string(key)] = v
}

// Delete removes a key.
func (m *MemoryDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

// Has checks if a key exists.
func (m *MemoryDB) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

// ForEach iterates over all keys with the given prefix in sorted order.
// The lock is released before fn runs so callbacks may read the DB.
func (m *MemoryDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	p := string(prefix)

	m.mu.RLock()
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		v := m.data[k]
		values[i] = make([]byte, len(v))
		copy(values[i], v)
	}
	m.mu.RUnlock()

	for i, k := range keys {
		if err := fn([]byte(k), values[i]); err != nil {
			return err
		}
	}
	return nil
}

// NewBatch returns a batch that applies all writes under one lock.
func (m *MemoryDB) NewBatch() Batch {
	return &memoryBatch{db: m}
}

// Close closes the database.
func (m *MemoryDB) Close() error {
	return nil
}

type memoryOp struct {
	key   []byte
	value []byte // nil means delete
}

type memoryBatch struct {
	db  *MemoryDB
	ops []memoryOp
}

func (mb *memoryBatch) Put(key, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	mb.ops = append(mb.ops, memoryOp{key: append([]byte(nil), key...), value: v})
	return nil
}

func (mb *memoryBatch) Delete(key []byte) error {
	mb.ops = append(mb.ops, memoryOp{key: append([]byte(nil), key...)})
	return nil
}

func (mb *memoryBatch) Commit() error {
	mb.db.mu.Lock()
	defer mb.db.mu.Unlock()
	for _, op := range mb.ops {
		if op.value == nil {
			delete(mb.db.data, string(op.key))
			continue
		}
		mb.db.putLocked(op.key, op.value)
	}
	mb.ops = nil
	return nil
}
