// Package mempool mirrors the daemon's pending transactions, indexed by
// lookup key.
package mempool

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/Klingon-tech/addrindex/pkg/types"
)

// Prevout is a resolved input: the output it spends and its owner.
type Prevout struct {
	Outpoint types.Outpoint
	Key      types.LookupKey
	Value    types.Amount
	// Resolved is false when the spent output could not be found in the
	// pool or the index; Key and Value are then zero.
	Resolved bool
}

// Output is a spendable output created by a pending transaction.
type Output struct {
	Index uint32
	Key   types.LookupKey
	Value types.Amount
}

// Tx is a pending transaction with its inputs resolved.
type Tx struct {
	TxID    types.Hash
	Time    int64
	Fee     types.Amount
	Inputs  []Prevout
	Outputs []Output
}

// keys returns every lookup key the transaction touches.
func (t *Tx) keys() map[types.LookupKey]struct{} {
	ks := make(map[types.LookupKey]struct{}, len(t.Inputs)+len(t.Outputs))
	for _, in := range t.Inputs {
		if in.Resolved {
			ks[in.Key] = struct{}{}
		}
	}
	for _, out := range t.Outputs {
		ks[out.Key] = struct{}{}
	}
	return ks
}

// Pool holds pending transactions. Readers take the read lock for the
// duration of one query; the refresher is the only writer.
type Pool struct {
	mu    sync.RWMutex
	txs   map[types.Hash]*Tx                          // txid -> tx
	byKey map[types.LookupKey]map[types.Hash]struct{} // key -> txids touching it
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{
		txs:   make(map[types.Hash]*Tx),
		byKey: make(map[types.LookupKey]map[types.Hash]struct{}),
	}
}

// Add inserts transactions, replacing any with the same txid.
func (p *Pool) Add(txs ...*Tx) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range txs {
		p.removeLocked(t.TxID)
		p.txs[t.TxID] = t
		for k := range t.keys() {
			set, ok := p.byKey[k]
			if !ok {
				set = make(map[types.Hash]struct{})
				p.byKey[k] = set
			}
			set[t.TxID] = struct{}{}
		}
	}
}

// Remove drops transactions that left the daemon's mempool.
func (p *Pool) Remove(ids ...types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		p.removeLocked(id)
	}
}

func (p *Pool) removeLocked(id types.Hash) {
	t, ok := p.txs[id]
	if !ok {
		return
	}
	for k := range t.keys() {
		set := p.byKey[k]
		delete(set, id)
		if len(set) == 0 {
			delete(p.byKey, k)
		}
	}
	delete(p.txs, id)
}

// Has reports whether txid is pending.
func (p *Pool) Has(id types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.txs[id]
	return ok
}

// Count returns the number of pending transactions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// Hashes returns the txids of all pending transactions.
func (p *Pool) Hashes() []types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	hashes := make([]types.Hash, 0, len(p.txs))
	for h := range p.txs {
		hashes = append(hashes, h)
	}
	return hashes
}

// TotalFees returns the sum of fees of all pending transactions.
func (p *Pool) TotalFees() types.Amount {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var total types.Amount
	for _, t := range p.txs {
		total += t.Fee
	}
	return total
}

// Output returns the pending output at op, if any.
func (p *Pool) Output(op types.Outpoint) (Output, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.txs[op.TxID]
	if !ok {
		return Output{}, false
	}
	for _, out := range t.Outputs {
		if out.Index == op.Index {
			return out, true
		}
	}
	return Output{}, false
}

// Lookup returns the snapshot entry for a pending transaction.
func (p *Pool) Lookup(id types.Hash) (types.MempoolEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.txs[id]
	if !ok {
		return types.MempoolEntry{}, false
	}
	return types.MempoolEntry{TxID: t.TxID, Time: t.Time, Fee: t.Fee}, true
}

// touchingLocked returns the transactions touching key ordered by arrival
// time, then txid.
func (p *Pool) touchingLocked(key types.LookupKey) []*Tx {
	set := p.byKey[key]
	txs := make([]*Tx, 0, len(set))
	for id := range set {
		txs = append(txs, p.txs[id])
	}
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Time != txs[j].Time {
			return txs[i].Time < txs[j].Time
		}
		return bytes.Compare(txs[i].TxID[:], txs[j].TxID[:]) < 0
	})
	return txs
}

// TransactionSummaries returns the pending transactions touching key.
func (p *Pool) TransactionSummaries(ctx context.Context, key types.LookupKey) ([]types.MempoolSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	txs := p.touchingLocked(key)
	out := make([]types.MempoolSummary, 0, len(txs))
	for _, t := range txs {
		s := types.MempoolSummary{TxID: t.TxID, Fee: t.Fee}
		for _, in := range t.Inputs {
			if _, ok := p.txs[in.Outpoint.TxID]; ok {
				s.HasUnconfirmedInputs = true
				break
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// UnorderedUTXOs returns the outputs paying key created by pending
// transactions, including those already spent by other pending
// transactions.
func (p *Pool) UnorderedUTXOs(ctx context.Context, key types.LookupKey) ([]types.Utxo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	var utxos []types.Utxo
	for _, t := range p.touchingLocked(key) {
		for _, out := range t.Outputs {
			if out.Key == key {
				utxos = append(utxos, types.Utxo{TxID: t.TxID, Index: out.Index, Value: out.Value})
			}
		}
	}
	return utxos, nil
}

// PotentialSpends returns every outpoint spent by a pending transaction
// that touches key.
func (p *Pool) PotentialSpends(ctx context.Context, key types.LookupKey) (map[types.Outpoint]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	spends := make(map[types.Outpoint]struct{})
	for id := range p.byKey[key] {
		for _, in := range p.txs[id].Inputs {
			spends[in.Outpoint] = struct{}{}
		}
	}
	return spends, nil
}

// BalanceDelta returns the net effect of pending transactions on key's
// balance.
func (p *Pool) BalanceDelta(ctx context.Context, key types.LookupKey) (types.Amount, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	var delta types.Amount
	for id := range p.byKey[key] {
		t := p.txs[id]
		for _, out := range t.Outputs {
			if out.Key == key {
				delta += out.Value
			}
		}
		for _, in := range t.Inputs {
			if in.Resolved && in.Key == key {
				delta -= in.Value
			}
		}
	}
	return delta, nil
}
