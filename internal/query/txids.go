package query

import (
	"context"
	"sort"

	"github.com/Klingon-tech/addrindex/internal/fanout"
	"github.com/Klingon-tech/addrindex/pkg/types"
)

// HistoryItem is one transaction id in an address history. Pending
// transactions have height 0, or -1 when they spend unconfirmed outputs.
type HistoryItem struct {
	TxID   types.Hash `json:"tx_hash"`
	Height int64      `json:"height"`
}

// Pending reports whether the item is not yet in a block.
func (h HistoryItem) Pending() bool { return h.Height <= 0 }

// CollectTxIDs returns the transactions touching key: pending ones first,
// in mempool order, then confirmed ones from the highest block down.
func (e *Engine) CollectTxIDs(ctx context.Context, key types.LookupKey) ([]HistoryItem, error) {
	pending, confirmed, err := fanout.Join2(ctx,
		func(ctx context.Context) ([]types.MempoolSummary, error) {
			s, err := e.mempool.TransactionSummaries(ctx, key)
			return s, upstream("mempool", err)
		},
		func(ctx context.Context) ([]types.HistoryEntry, error) {
			h, err := e.index.History(ctx, key)
			return h, upstream("index", err)
		},
	)
	if err != nil {
		return nil, err
	}

	items := make([]HistoryItem, 0, len(pending)+len(confirmed))
	for _, s := range pending {
		item := HistoryItem{TxID: s.TxID}
		if s.HasUnconfirmedInputs {
			item.Height = -1
		}
		items = append(items, item)
	}

	sorted := append([]types.HistoryEntry(nil), confirmed...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Height > sorted[j].Height
	})
	for _, h := range sorted {
		items = append(items, HistoryItem{TxID: h.TxID, Height: h.Height})
	}
	return items, nil
}
