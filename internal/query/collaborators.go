package query

import (
	"context"

	"github.com/Klingon-tech/addrindex/pkg/types"
)

// Daemon is the coin daemon as seen by the engine. Batch methods return
// results in request order and fail as a whole.
type Daemon interface {
	GetRawTransactions(ctx context.Context, ids []types.Hash) ([][]byte, error)
	GetDetailedTransactions(ctx context.Context, ids []types.Hash) ([]*types.TransactionDetail, error)
	DecodeScripts(ctx context.Context, scripts []string) ([]types.ScriptDecodeResult, error)
	EstimateFee(ctx context.Context, blocks int) (types.Amount, error)
	SendRawTransaction(ctx context.Context, rawHex string) (types.Hash, error)
}

// Index is the confirmed-chain address index.
type Index interface {
	// AllUTXOs returns the unspent outputs of key in no particular order.
	AllUTXOs(ctx context.Context, key types.LookupKey) ([]types.Utxo, error)
	// History returns the confirmed transactions touching key.
	History(ctx context.Context, key types.LookupKey) ([]types.HistoryEntry, error)
}

// Mempool exposes the pending transactions touching a key.
type Mempool interface {
	TransactionSummaries(ctx context.Context, key types.LookupKey) ([]types.MempoolSummary, error)
	UnorderedUTXOs(ctx context.Context, key types.LookupKey) ([]types.Utxo, error)
	PotentialSpends(ctx context.Context, key types.LookupKey) (map[types.Outpoint]struct{}, error)
	BalanceDelta(ctx context.Context, key types.LookupKey) (types.Amount, error)
}

// Snapshot is the periodically refreshed view of the daemon mempool.
// Lookup must not block on I/O.
type Snapshot interface {
	Lookup(txid types.Hash) (types.MempoolEntry, bool)
}
