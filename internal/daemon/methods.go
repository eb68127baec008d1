package daemon

import (
	"context"
	"encoding/hex"
	stdjson "encoding/json"
	"fmt"

	"github.com/jellydator/ttlcache/v3"

	"github.com/Klingon-tech/addrindex/internal/metrics"
	"github.com/Klingon-tech/addrindex/pkg/types"
)

// GetRawTransactions returns the serialized transactions for ids, in order.
func (c *Client) GetRawTransactions(ctx context.Context, ids []types.Hash) ([][]byte, error) {
	out := make([][]byte, len(ids))
	var (
		calls   []call
		missing []int
	)
	for i, id := range ids {
		if raw, ok := c.cachedRaw(id); ok {
			out[i] = raw
			continue
		}
		missing = append(missing, i)
		calls = append(calls, call{method: "getrawtransaction", params: []any{id.String(), false}})
	}
	if len(calls) == 0 {
		return out, nil
	}

	results, err := c.batch(ctx, calls)
	if err != nil {
		return nil, err
	}
	for j, res := range results {
		var s string
		if err := json.Unmarshal(res, &s); err != nil {
			return nil, fmt.Errorf("getrawtransaction %s: %w", ids[missing[j]], err)
		}
		raw, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("getrawtransaction %s: invalid hex: %w", ids[missing[j]], err)
		}
		out[missing[j]] = raw
		c.storeRaw(ids[missing[j]], raw)
	}
	return out, nil
}

func (c *Client) cachedRaw(id types.Hash) ([]byte, bool) {
	if c.rawCache == nil {
		return nil, false
	}
	if item := c.rawCache.Get(id); item != nil {
		metrics.DaemonCacheHits.Inc()
		return item.Value(), true
	}
	metrics.DaemonCacheMisses.Inc()
	return nil, false
}

func (c *Client) storeRaw(id types.Hash, raw []byte) {
	if c.rawCache != nil {
		c.rawCache.Set(id, raw, ttlcache.DefaultTTL)
	}
}

// GetDetailedTransactions returns the verbose form of each transaction, in
// order.
func (c *Client) GetDetailedTransactions(ctx context.Context, ids []types.Hash) ([]*types.TransactionDetail, error) {
	calls := make([]call, len(ids))
	for i, id := range ids {
		calls[i] = call{method: "getrawtransaction", params: []any{id.String(), true}}
	}
	results, err := c.batch(ctx, calls)
	if err != nil {
		return nil, err
	}

	out := make([]*types.TransactionDetail, len(results))
	for i, res := range results {
		var v verboseTx
		if err := json.Unmarshal(res, &v); err != nil {
			return nil, fmt.Errorf("getrawtransaction %s: %w", ids[i], err)
		}
		d, err := v.detail(c.precision)
		if err != nil {
			return nil, fmt.Errorf("getrawtransaction %s: %w", ids[i], err)
		}
		out[i] = d
	}
	return out, nil
}

// DecodeScripts classifies each hex script, in order.
func (c *Client) DecodeScripts(ctx context.Context, scripts []string) ([]types.ScriptDecodeResult, error) {
	calls := make([]call, len(scripts))
	for i, s := range scripts {
		calls[i] = call{method: "decodescript", params: []any{s}}
	}
	results, err := c.batch(ctx, calls)
	if err != nil {
		return nil, err
	}

	out := make([]types.ScriptDecodeResult, len(results))
	for i, res := range results {
		var d decodedScript
		if err := json.Unmarshal(res, &d); err != nil {
			return nil, fmt.Errorf("decodescript %s: %w", scripts[i], err)
		}
		out[i] = d.classify()
	}
	return out, nil
}

// FeeUnavailable is returned by EstimateFee when the daemon has no estimate,
// mirroring the legacy estimatefee result of -1.
const FeeUnavailable = -1

// EstimateFee returns the fee rate per kilobyte (in minor units) for
// confirmation within blocks. When the daemon has no estimate the result is
// FeeUnavailable whole coins.
func (c *Client) EstimateFee(ctx context.Context, blocks int) (types.Amount, error) {
	var res struct {
		FeeRate *stdjson.Number `json:"feerate"`
		Errors  []string        `json:"errors"`
	}
	if err := c.Call(ctx, "estimatesmartfee", []any{blocks}, &res); err != nil {
		return 0, err
	}
	if res.FeeRate == nil {
		if len(res.Errors) > 0 {
			c.logger.Debug().Strs("errors", res.Errors).Int("blocks", blocks).Msg("no fee estimate")
		}
		return types.Amount(FeeUnavailable * c.precision.PerUnit), nil
	}
	return c.precision.Parse(res.FeeRate.String())
}

// SendRawTransaction broadcasts a serialized transaction.
func (c *Client) SendRawTransaction(ctx context.Context, rawHex string) (types.Hash, error) {
	var txid string
	if err := c.Call(ctx, "sendrawtransaction", []any{rawHex}, &txid); err != nil {
		return types.Hash{}, err
	}
	return types.HexToHash(txid)
}

// MempoolTx is one entry of the verbose mempool listing.
type MempoolTx struct {
	TxID    types.Hash
	Time    int64
	Fee     types.Amount
	Depends []types.Hash
}

// RawMempool returns the verbose mempool.
func (c *Client) RawMempool(ctx context.Context) ([]MempoolTx, error) {
	var raw map[string]mempoolEntry
	if err := c.Call(ctx, "getrawmempool", []any{true}, &raw); err != nil {
		return nil, err
	}
	out := make([]MempoolTx, 0, len(raw))
	for id, e := range raw {
		txid, err := types.HexToHash(id)
		if err != nil {
			return nil, fmt.Errorf("getrawmempool: %w", err)
		}
		fee, err := e.fee(c.precision)
		if err != nil {
			return nil, fmt.Errorf("getrawmempool %s: %w", id, err)
		}
		tx := MempoolTx{TxID: txid, Time: e.Time, Fee: fee}
		for _, d := range e.Depends {
			dep, err := types.HexToHash(d)
			if err != nil {
				return nil, fmt.Errorf("getrawmempool %s depends: %w", id, err)
			}
			tx.Depends = append(tx.Depends, dep)
		}
		out = append(out, tx)
	}
	return out, nil
}

// GetBlockCount returns the height of the daemon's best chain.
func (c *Client) GetBlockCount(ctx context.Context) (int64, error) {
	var n int64
	if err := c.Call(ctx, "getblockcount", nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}
