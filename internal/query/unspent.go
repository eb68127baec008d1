package query

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/Klingon-tech/addrindex/internal/fanout"
	"github.com/Klingon-tech/addrindex/pkg/types"
)

// UnspentEntry is an unspent output enriched with its owning transaction.
type UnspentEntry struct {
	Address       string        `json:"address"`
	TxID          types.Hash    `json:"txid"`
	Vout          uint32        `json:"vout"`
	ScriptPubKey  string        `json:"scriptPubKey"`
	Amount        types.Decimal `json:"amount"`
	Satoshis      types.Amount  `json:"satoshis"`
	Height        int64         `json:"height"`
	Confirmations uint64        `json:"confirmations"`
}

// ListUnspent returns the spendable outputs of key: confirmed ones ordered
// by height, txid and index, then pending ones, minus everything a pending
// transaction spends.
func (e *Engine) ListUnspent(ctx context.Context, key types.LookupKey) ([]types.Utxo, error) {
	stored, pending, spends, err := fanout.Join3(ctx,
		func(ctx context.Context) ([]types.Utxo, error) {
			u, err := e.index.AllUTXOs(ctx, key)
			return u, upstream("index", err)
		},
		func(ctx context.Context) ([]types.Utxo, error) {
			u, err := e.mempool.UnorderedUTXOs(ctx, key)
			return u, upstream("mempool", err)
		},
		func(ctx context.Context) (map[types.Outpoint]struct{}, error) {
			s, err := e.mempool.PotentialSpends(ctx, key)
			return s, upstream("mempool", err)
		},
	)
	if err != nil {
		return nil, err
	}

	all := make([]types.Utxo, 0, len(stored)+len(pending))
	all = append(all, stored...)
	sort.Slice(all, func(i, j int) bool { return all[i].Less(all[j]) })
	all = append(all, pending...)

	return slices.DeleteFunc(all, func(u types.Utxo) bool {
		_, spent := spends[u.Outpoint()]
		return spent
	}), nil
}

// WalletUnspent matches utxo against the outputs of its transaction.
//
// The output whose index equals the utxo's is taken. Only when the daemon
// reported no output indexes at all is the output picked by address, or by
// position when no output carries addresses either.
func (e *Engine) WalletUnspent(address string, utxo types.Utxo, detail *types.TransactionDetail) (*UnspentEntry, error) {
	if detail == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingTransactionDetail, utxo.TxID)
	}
	out, ok := matchOutput(address, utxo.Index, detail.Outputs)
	if !ok {
		return nil, fmt.Errorf("%w: cannot get the transaction's list of outputs from address:%s (%s:%d)",
			ErrMissingOutputReference, address, utxo.TxID, utxo.Index)
	}
	return &UnspentEntry{
		Address:       address,
		TxID:          detail.TxID,
		Vout:          utxo.Index,
		ScriptPubKey:  out.ScriptHex,
		Amount:        e.precision.Decimal(out.Value),
		Satoshis:      utxo.Value,
		Height:        utxo.Height,
		Confirmations: detail.ConfirmationCount(),
	}, nil
}

func matchOutput(address string, vout uint32, outputs []types.TxOutput) (types.TxOutput, bool) {
	indexed, withAddr := false, false
	for _, o := range outputs {
		if o.HasIndex {
			indexed = true
			if o.Index == vout {
				return o, true
			}
		}
		if len(o.Addresses) > 0 {
			withAddr = true
		}
	}
	if indexed {
		return types.TxOutput{}, false
	}
	if withAddr {
		for _, o := range outputs {
			if slices.Contains(o.Addresses, address) {
				return o, true
			}
		}
		return types.TxOutput{}, false
	}
	if int(vout) < len(outputs) {
		return outputs[vout], true
	}
	return types.TxOutput{}, false
}

// Unspent lists the enriched unspent outputs of every address, flattened
// in request order.
func (e *Engine) Unspent(ctx context.Context, addresses []string) (_ []*UnspentEntry, err error) {
	defer func(start time.Time) { e.observe("unspent", start, err) }(time.Now())

	addrs, keys, err := e.resolveAll(addresses)
	if err != nil {
		return nil, err
	}
	perAddr, err := fanout.All(ctx, indexes(len(addrs)), func(ctx context.Context, i int) ([]*UnspentEntry, error) {
		return e.addressUnspent(ctx, addrs[i], keys[i])
	})
	if err != nil {
		return nil, err
	}

	var out []*UnspentEntry
	for _, entries := range perAddr {
		out = append(out, entries...)
	}
	if out == nil {
		out = []*UnspentEntry{}
	}
	return out, nil
}

func (e *Engine) addressUnspent(ctx context.Context, address string, key types.LookupKey) ([]*UnspentEntry, error) {
	utxos, err := e.ListUnspent(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(utxos) == 0 {
		return nil, nil
	}

	ids := make([]types.Hash, len(utxos))
	for i, u := range utxos {
		ids[i] = u.TxID
	}
	details, err := e.fetchDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]*UnspentEntry, len(utxos))
	for i, u := range utxos {
		if entries[i], err = e.WalletUnspent(address, u, details[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// indexes returns 0..n-1.
func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
