// Package index is the confirmed-chain address index: unspent outputs and
// transaction history keyed by LookupKey.
package index

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/addrindex/internal/log"
	"github.com/Klingon-tech/addrindex/internal/storage"
	"github.com/Klingon-tech/addrindex/pkg/types"
)

// Namespaces of the index inside its database.
var (
	nsUTXO    = []byte("u/") // u/<txid><index> -> Record JSON
	nsAddr    = []byte("a/") // a/<key><txid><index> -> empty (unspent by key)
	nsHistory = []byte("h/") // h/<key><height><txid> -> empty
	nsMeta    = []byte("t/") // t/tip -> height
	keyTip    = []byte("tip")
)

// ErrNotFound is returned when an outpoint is not in the unspent set.
var ErrNotFound = errors.New("utxo not found")

// Record is the stored form of an unspent output.
type Record struct {
	Key    types.LookupKey `json:"key"`
	Height int64           `json:"height"`
	Value  types.Amount    `json:"value"`
}

// Store implements the address index on a storage.DB.
type Store struct {
	db      storage.DB
	utxos   *storage.PrefixDB
	owners  *storage.PrefixDB
	history *storage.PrefixDB
	meta    *storage.PrefixDB
	logger  zerolog.Logger
}

// NewStore creates a new index backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{
		db:      db,
		utxos:   storage.NewPrefixDB(db, nsUTXO),
		owners:  storage.NewPrefixDB(db, nsAddr),
		history: storage.NewPrefixDB(db, nsHistory),
		meta:    storage.NewPrefixDB(db, nsMeta),
		logger:  klog.Index,
	}
}

// ownerKey builds key(32) + txid(32) + index(4).
func ownerKey(key types.LookupKey, op types.Outpoint) []byte {
	k := make([]byte, 0, types.LookupKeySize+types.OutpointSize)
	k = append(k, key[:]...)
	return append(k, op.Key()...)
}

// historyKey builds key(32) + height(8) + txid(32). Heights sort ascending
// under big-endian encoding.
func historyKey(key types.LookupKey, height int64, txid types.Hash) []byte {
	k := make([]byte, 0, types.LookupKeySize+8+types.HashSize)
	k = append(k, key[:]...)
	k = binary.BigEndian.AppendUint64(k, uint64(height))
	return append(k, txid[:]...)
}

// GetUTXO retrieves an unspent output by outpoint.
func (s *Store) GetUTXO(op types.Outpoint) (*Record, error) {
	data, err := s.utxos.Get(op.Key())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, op)
		}
		return nil, fmt.Errorf("utxo get: %w", err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("utxo unmarshal: %w", err)
	}
	return &r, nil
}

// PutUTXO stores an unspent output owned by key and updates the key index.
func (s *Store) PutUTXO(key types.LookupKey, u types.Utxo) error {
	data, err := json.Marshal(Record{Key: key, Height: u.Height, Value: u.Value})
	if err != nil {
		return fmt.Errorf("utxo marshal: %w", err)
	}
	op := u.Outpoint()
	b := storage.NewBatch(s.db)
	if err := b.Put(s.utxos.Key(op.Key()), data); err != nil {
		return fmt.Errorf("utxo put: %w", err)
	}
	if err := b.Put(s.owners.Key(ownerKey(key, op)), []byte{}); err != nil {
		return fmt.Errorf("utxo index put: %w", err)
	}
	return b.Commit()
}

// SpendUTXO removes an unspent output and its key index entry, returning
// the removed record.
func (s *Store) SpendUTXO(op types.Outpoint) (*Record, error) {
	r, err := s.GetUTXO(op)
	if err != nil {
		return nil, err
	}
	b := storage.NewBatch(s.db)
	if err := b.Delete(s.utxos.Key(op.Key())); err != nil {
		return nil, fmt.Errorf("utxo delete: %w", err)
	}
	if err := b.Delete(s.owners.Key(ownerKey(r.Key, op))); err != nil {
		return nil, fmt.Errorf("utxo index delete: %w", err)
	}
	if err := b.Commit(); err != nil {
		return nil, fmt.Errorf("utxo spend: %w", err)
	}
	return r, nil
}

// AddHistory records that txid, confirmed at height, touches key.
func (s *Store) AddHistory(key types.LookupKey, txid types.Hash, height int64) error {
	if err := s.history.Put(historyKey(key, height, txid), []byte{}); err != nil {
		return fmt.Errorf("history put: %w", err)
	}
	return nil
}

// AllUTXOs returns every unspent output owned by key, in txid order.
func (s *Store) AllUTXOs(ctx context.Context, key types.LookupKey) ([]types.Utxo, error) {
	var utxos []types.Utxo
	off := types.LookupKeySize
	err := s.owners.ForEach(key[:], func(k, _ []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		op, err := types.OutpointFromKey(k[off:])
		if err != nil {
			return fmt.Errorf("address index key: %w", err)
		}
		r, err := s.GetUTXO(op)
		if err != nil {
			return err
		}
		utxos = append(utxos, types.Utxo{TxID: op.TxID, Index: op.Index, Height: r.Height, Value: r.Value})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan address index: %w", err)
	}
	return utxos, nil
}

// History returns the confirmed transactions touching key in ascending
// height order.
func (s *Store) History(ctx context.Context, key types.LookupKey) ([]types.HistoryEntry, error) {
	var out []types.HistoryEntry
	off := types.LookupKeySize
	err := s.history.ForEach(key[:], func(k, _ []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(k) != off+8+types.HashSize {
			return fmt.Errorf("malformed history key of %d bytes", len(k))
		}
		var e types.HistoryEntry
		e.Height = int64(binary.BigEndian.Uint64(k[off:]))
		copy(e.TxID[:], k[off+8:])
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return out, nil
}

// SetTip records the height the index has been built to.
func (s *Store) SetTip(height int64) error {
	return s.meta.Put(keyTip, binary.BigEndian.AppendUint64(nil, uint64(height)))
}

// Tip returns the indexed height, or -1 for an empty index.
func (s *Store) Tip() (int64, error) {
	data, err := s.meta.Get(keyTip)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return -1, nil
		}
		return 0, fmt.Errorf("tip get: %w", err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("malformed tip of %d bytes", len(data))
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}
