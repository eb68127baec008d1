package storage

// PrefixDB is a namespace inside another DB: every key it reads or writes
// is the namespace prefix followed by the caller's key.
type PrefixDB struct {
	inner  DB
	prefix []byte
}

// NewPrefixDB returns the namespace prefix of inner.
func NewPrefixDB(inner DB, prefix []byte) *PrefixDB {
	return &PrefixDB{inner: inner, prefix: append([]byte(nil), prefix...)}
}

// Key returns the key as stored in the parent DB. Writes that span several
// namespaces go through one batch on the parent using these keys.
func (p *PrefixDB) Key(key []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(key))
	out = append(out, p.prefix...)
	return append(out, key...)
}

func (p *PrefixDB) Get(key []byte) ([]byte, error) {
	return p.inner.Get(p.Key(key))
}

func (p *PrefixDB) Put(key, value []byte) error {
	return p.inner.Put(p.Key(key), value)
}

func (p *PrefixDB) Delete(key []byte) error {
	return p.inner.Delete(p.Key(key))
}

func (p *PrefixDB) Has(key []byte) (bool, error) {
	return p.inner.Has(p.Key(key))
}

// ForEach walks the keys of the namespace that start with prefix. fn sees
// keys relative to the namespace.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	n := len(p.prefix)
	return p.inner.ForEach(p.Key(prefix), func(key, value []byte) error {
		return fn(key[n:], value)
	})
}

// NewBatch returns a batch scoped to the namespace, atomic whenever the
// parent's batches are.
func (p *PrefixDB) NewBatch() Batch {
	return &prefixBatch{inner: NewBatch(p.inner), ns: p}
}

// Close leaves the parent open.
func (p *PrefixDB) Close() error {
	return nil
}

type prefixBatch struct {
	inner Batch
	ns    *PrefixDB
}

func (b *prefixBatch) Put(key, value []byte) error {
	return b.inner.Put(b.ns.Key(key), value)
}

func (b *prefixBatch) Delete(key []byte) error {
	return b.inner.Delete(b.ns.Key(key))
}

func (b *prefixBatch) Commit() error {
	return b.inner.Commit()
}
