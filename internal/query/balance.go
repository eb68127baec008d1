package query

import (
	"context"
	"time"

	"github.com/Klingon-tech/addrindex/internal/fanout"
	"github.com/Klingon-tech/addrindex/pkg/types"
)

// Balance is the value held by a key, in minor units. Unconfirmed is the
// signed mempool delta.
type Balance struct {
	Confirmed   types.Amount
	Unconfirmed types.Amount
}

// Balance sums the confirmed unspent outputs of key and reads its pending
// delta.
func (e *Engine) Balance(ctx context.Context, key types.LookupKey) (*Balance, error) {
	utxos, delta, err := fanout.Join2(ctx,
		func(ctx context.Context) ([]types.Utxo, error) {
			u, err := e.index.AllUTXOs(ctx, key)
			return u, upstream("index", err)
		},
		func(ctx context.Context) (types.Amount, error) {
			d, err := e.mempool.BalanceDelta(ctx, key)
			return d, upstream("mempool", err)
		},
	)
	if err != nil {
		return nil, err
	}

	b := &Balance{Unconfirmed: delta}
	for _, u := range utxos {
		b.Confirmed += u.Value
	}
	return b, nil
}

// AddressBalance resolves address and returns its balance.
func (e *Engine) AddressBalance(ctx context.Context, address string) (_ *Balance, err error) {
	defer func(start time.Time) { e.observe("balance", start, err) }(time.Now())

	key, err := e.ResolveAddress(address)
	if err != nil {
		return nil, err
	}
	return e.Balance(ctx, key)
}
