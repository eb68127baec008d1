package query

import (
	"context"
	"sort"
	"time"

	"github.com/Klingon-tech/addrindex/internal/fanout"
	"github.com/Klingon-tech/addrindex/pkg/types"
)

// AddressHistory is one page of an address history.
type AddressHistory struct {
	Address string `json:"address"`
	// TotalItems counts every pending and confirmed transaction, not just
	// this page.
	TotalItems   int              `json:"totalItems"`
	From         int              `json:"from"`
	To           int              `json:"to"`
	Transactions []*HistoryRecord `json:"transactions"`
}

// History returns the page [from, to) of each address's history, newest
// first. Addresses are deduplicated in order. Every address and the window
// are validated before any lookup, and one failing record fails the whole
// request.
func (e *Engine) History(ctx context.Context, addresses []string, from, to int) (_ []*AddressHistory, err error) {
	defer func(start time.Time) { e.observe("history", start, err) }(time.Now())

	from, to, err = Clamp(from, to, e.maxWindow)
	if err != nil {
		return nil, err
	}
	addrs, keys, err := e.resolveAll(addresses)
	if err != nil {
		return nil, err
	}

	return fanout.All(ctx, indexes(len(addrs)), func(ctx context.Context, i int) (*AddressHistory, error) {
		return e.addressHistory(ctx, addrs[i], keys[i], from, to)
	})
}

func (e *Engine) addressHistory(ctx context.Context, address string, key types.LookupKey, from, to int) (*AddressHistory, error) {
	items, err := e.CollectTxIDs(ctx, key)
	if err != nil {
		return nil, err
	}
	lo, hi := window(from, to, len(items))
	page := items[lo:hi]

	ids := make([]types.Hash, len(page))
	for i, it := range page {
		ids[i] = it.TxID
	}
	details, err := e.fetchDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	records, err := fanout.All(ctx, indexes(len(page)), func(ctx context.Context, i int) (*HistoryRecord, error) {
		return e.BuildRecord(ctx, details[i], page[i].Height)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Time > records[j].Time
	})

	return &AddressHistory{
		Address:      address,
		TotalItems:   len(items),
		From:         from,
		To:           to,
		Transactions: records,
	}, nil
}
