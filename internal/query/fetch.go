package query

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/Klingon-tech/addrindex/pkg/types"
)

// ParseTxIDs validates transaction ids given as 64 hex characters.
func ParseTxIDs(ids []string) ([]types.Hash, error) {
	out := make([]types.Hash, len(ids))
	for i, s := range ids {
		h, err := types.HexToHash(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s should be a transaction hash", ErrInvalidTxID, s)
		}
		out[i] = h
	}
	return out, nil
}

// FetchDetails returns the verbose transactions for ids, in order. One
// invalid id fails the whole batch before the daemon is asked.
func (e *Engine) FetchDetails(ctx context.Context, ids []string) ([]*types.TransactionDetail, error) {
	hashes, err := ParseTxIDs(ids)
	if err != nil {
		return nil, err
	}
	return e.fetchDetails(ctx, hashes)
}

func (e *Engine) fetchDetails(ctx context.Context, ids []types.Hash) ([]*types.TransactionDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	details, err := e.daemon.GetDetailedTransactions(ctx, ids)
	if err != nil {
		return nil, upstream("daemon", err)
	}
	if len(details) != len(ids) {
		return nil, fmt.Errorf("%w: asked for %d transactions, got %d", ErrMissingTransactionDetail, len(ids), len(details))
	}
	for i, d := range details {
		if d == nil || d.TxID != ids[i] {
			return nil, fmt.Errorf("%w: %s", ErrMissingTransactionDetail, ids[i])
		}
	}
	return details, nil
}

// fetchRaw returns the serialized transactions for ids, in order.
func (e *Engine) fetchRaw(ctx context.Context, ids []types.Hash) ([][]byte, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raws, err := e.daemon.GetRawTransactions(ctx, ids)
	if err != nil {
		return nil, upstream("daemon", err)
	}
	if len(raws) != len(ids) {
		return nil, fmt.Errorf("%w: asked for %d raw transactions, got %d", ErrMissingTransactionDetail, len(ids), len(raws))
	}
	return raws, nil
}

// DecodeScripts resolves output scripts (hex) to destination addresses,
// in order. One invalid script fails the whole batch before the daemon is
// asked.
func (e *Engine) DecodeScripts(ctx context.Context, scripts []string) ([]types.ScriptDecodeResult, error) {
	for _, s := range scripts {
		if _, err := hex.DecodeString(s); err != nil {
			return nil, fmt.Errorf("%w: %q is not hex", ErrInvalidScript, s)
		}
	}
	if len(scripts) == 0 {
		return nil, nil
	}
	res, err := e.daemon.DecodeScripts(ctx, scripts)
	if err != nil {
		return nil, upstream("daemon", err)
	}
	if len(res) != len(scripts) {
		return nil, upstream("daemon", fmt.Errorf("decodescript returned %d results for %d scripts", len(res), len(scripts)))
	}
	return res, nil
}

// decodeDistinct decodes each distinct script once and returns the
// destinations per script.
func (e *Engine) decodeDistinct(ctx context.Context, scripts []string) (map[string][]string, error) {
	seen := make(map[string]struct{}, len(scripts))
	uniq := make([]string, 0, len(scripts))
	for _, s := range scripts {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		uniq = append(uniq, s)
	}
	res, err := e.DecodeScripts(ctx, uniq)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(uniq))
	for i, s := range uniq {
		out[s] = res[i].Destinations()
	}
	return out, nil
}
