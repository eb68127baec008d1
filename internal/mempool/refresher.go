package mempool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/addrindex/internal/daemon"
	"github.com/Klingon-tech/addrindex/internal/fanout"
	"github.com/Klingon-tech/addrindex/internal/index"
	klog "github.com/Klingon-tech/addrindex/internal/log"
	"github.com/Klingon-tech/addrindex/internal/metrics"
	"github.com/Klingon-tech/addrindex/pkg/types"
)

// fetchParallel bounds single-transaction fetches after a failed batch.
const fetchParallel = 8

// Source is the daemon view the refresher polls.
type Source interface {
	RawMempool(ctx context.Context) ([]daemon.MempoolTx, error)
	GetRawTransactions(ctx context.Context, ids []types.Hash) ([][]byte, error)
}

// Prevouts resolves confirmed outputs spent by pending transactions.
type Prevouts interface {
	GetUTXO(op types.Outpoint) (*index.Record, error)
}

// Refresher keeps a Pool in step with the daemon's mempool.
type Refresher struct {
	pool     *Pool
	source   Source
	prevouts Prevouts
	logger   zerolog.Logger
}

// NewRefresher creates a refresher writing into pool.
func NewRefresher(pool *Pool, source Source, prevouts Prevouts) *Refresher {
	metrics.Init()
	return &Refresher{
		pool:     pool,
		source:   source,
		prevouts: prevouts,
		logger:   klog.Mempool,
	}
}

// Run refreshes immediately and then every interval until ctx is done.
// Failed refreshes are logged and retried on the next tick.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn().Err(err).Msg("Mempool refresh failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Refresh performs one synchronisation pass: transactions that left the
// daemon's mempool are dropped and new ones are fetched and added.
func (r *Refresher) Refresh(ctx context.Context) (err error) {
	start := time.Now()
	defer klog.BenchmarkWith(r.logger, "mempool refresh")()
	defer func() {
		if err != nil {
			metrics.MempoolRefreshErrors.Inc()
			return
		}
		metrics.MempoolRefreshDuration.Observe(time.Since(start).Seconds())
		metrics.MempoolTransactions.Set(float64(r.pool.Count()))
	}()

	listing, err := r.source.RawMempool(ctx)
	if err != nil {
		return fmt.Errorf("list mempool: %w", err)
	}

	live := make(map[types.Hash]daemon.MempoolTx, len(listing))
	var fresh []types.Hash
	for _, e := range listing {
		live[e.TxID] = e
		if !r.pool.Has(e.TxID) {
			fresh = append(fresh, e.TxID)
		}
	}

	var gone []types.Hash
	for _, id := range r.pool.Hashes() {
		if _, ok := live[id]; !ok {
			gone = append(gone, id)
		}
	}
	r.pool.Remove(gone...)

	if len(fresh) == 0 {
		r.logger.Trace().Int("removed", len(gone)).Msg("Mempool refreshed")
		return nil
	}

	raws, err := r.fetch(ctx, fresh)
	if err != nil {
		return err
	}

	parsed := make(map[types.Hash]*wire.MsgTx, len(fresh))
	for i, id := range fresh {
		if raws[i] == nil {
			continue
		}
		var msg wire.MsgTx
		if err := msg.Deserialize(bytes.NewReader(raws[i])); err != nil {
			return fmt.Errorf("decode mempool tx %s: %w", id, err)
		}
		if got := types.FromChainHash(msg.TxHash()); got != id {
			return fmt.Errorf("mempool tx %s: daemon returned %s", id, got)
		}
		parsed[id] = &msg
	}

	added := make([]*Tx, 0, len(parsed))
	for id, msg := range parsed {
		e := live[id]
		t := &Tx{TxID: id, Time: e.Time, Fee: e.Fee, Outputs: outputsOf(msg)}
		for _, in := range msg.TxIn {
			if index.IsCoinbaseInput(in) {
				continue
			}
			prev, err := r.resolve(in.PreviousOutPoint, parsed)
			if err != nil {
				return fmt.Errorf("mempool tx %s: %w", id, err)
			}
			t.Inputs = append(t.Inputs, prev)
		}
		added = append(added, t)
	}
	r.pool.Add(added...)

	r.logger.Debug().
		Int("added", len(added)).
		Int("removed", len(gone)).
		Int("size", r.pool.Count()).
		Msg("Mempool refreshed")
	return nil
}

// fetch returns raw transactions for ids. A transaction that left the
// mempool between listing and fetching fails the whole batch; in that case
// each id is fetched on its own and vanished ones come back nil.
func (r *Refresher) fetch(ctx context.Context, ids []types.Hash) ([][]byte, error) {
	raws, err := r.source.GetRawTransactions(ctx, ids)
	if err == nil {
		return raws, nil
	}
	if !isMissingTx(err) {
		return nil, fmt.Errorf("fetch mempool txs: %w", err)
	}

	return fanout.AllLimit(ctx, fetchParallel, ids, func(ctx context.Context, id types.Hash) ([]byte, error) {
		one, err := r.source.GetRawTransactions(ctx, []types.Hash{id})
		if err != nil {
			if isMissingTx(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("fetch mempool tx %s: %w", id, err)
		}
		return one[0], nil
	})
}

func isMissingTx(err error) bool {
	var rpcErr *daemon.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == daemon.ErrCodeInvalidAddressOrKey
}

// resolve finds the owner and value of the output spent by an input,
// looking at pending transactions first and then the confirmed index.
func (r *Refresher) resolve(op wire.OutPoint, batch map[types.Hash]*wire.MsgTx) (Prevout, error) {
	ref := types.Outpoint{TxID: types.FromChainHash(op.Hash), Index: op.Index}

	if parent, ok := batch[ref.TxID]; ok {
		if int(op.Index) >= len(parent.TxOut) {
			return Prevout{}, fmt.Errorf("input %s: parent has %d outputs", ref, len(parent.TxOut))
		}
		out := parent.TxOut[op.Index]
		return Prevout{Outpoint: ref, Key: types.LookupKeyFromScript(out.PkScript), Value: types.Amount(out.Value), Resolved: true}, nil
	}
	if out, ok := r.pool.Output(ref); ok {
		return Prevout{Outpoint: ref, Key: out.Key, Value: out.Value, Resolved: true}, nil
	}

	rec, err := r.prevouts.GetUTXO(ref)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			// Confirmed after the index tip, or spent by a conflicting
			// transaction.
			r.logger.Debug().Str("outpoint", ref.String()).Msg("Unresolved mempool input")
			return Prevout{Outpoint: ref}, nil
		}
		return Prevout{}, fmt.Errorf("input %s: %w", ref, err)
	}
	return Prevout{Outpoint: ref, Key: rec.Key, Value: rec.Value, Resolved: true}, nil
}

func outputsOf(msg *wire.MsgTx) []Output {
	outs := make([]Output, 0, len(msg.TxOut))
	for i, out := range msg.TxOut {
		if txscript.IsUnspendable(out.PkScript) {
			continue
		}
		outs = append(outs, Output{
			Index: uint32(i),
			Key:   types.LookupKeyFromScript(out.PkScript),
			Value: types.Amount(out.Value),
		})
	}
	return outs
}
