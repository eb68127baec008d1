package query

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/addrindex/pkg/types"
)

const (
	addrP2PKH  = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	addrP2WPKH = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
	addrP2SH   = "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy"

	scriptP2PKH  = "76a91462e907b15cbf27d5425399ebf6f0fb50ebb88f1888ac"
	scriptP2WPKH = "0014751e76e8199196d454941c45d1b3a323f1433bd6"
	scriptOpRet  = "6a0568656c6c6f"
)

var errBoom = errors.New("boom")

type fakeDaemon struct {
	mu      sync.Mutex
	raw     map[types.Hash][]byte
	details map[types.Hash]*types.TransactionDetail
	decoded map[string]types.ScriptDecodeResult
	// failScripts makes any decode batch containing one of these fail.
	failScripts map[string]bool
	fee         types.Amount
	feeTarget   int
	sendErr     error
	sent        []string

	calls atomic.Int64
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{
		raw:     make(map[types.Hash][]byte),
		details: make(map[types.Hash]*types.TransactionDetail),
		decoded: map[string]types.ScriptDecodeResult{
			scriptP2PKH:  types.Standard(addrP2PKH),
			scriptP2WPKH: types.Standard(addrP2WPKH),
			scriptOpRet:  types.Unresolved(),
		},
		failScripts: make(map[string]bool),
	}
}

func (d *fakeDaemon) GetRawTransactions(_ context.Context, ids []types.Hash) ([][]byte, error) {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(ids))
	for i, id := range ids {
		raw, ok := d.raw[id]
		if !ok {
			return nil, fmt.Errorf("getrawtransaction %s: no such transaction", id)
		}
		out[i] = raw
	}
	return out, nil
}

func (d *fakeDaemon) GetDetailedTransactions(_ context.Context, ids []types.Hash) ([]*types.TransactionDetail, error) {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*types.TransactionDetail, len(ids))
	for i, id := range ids {
		det, ok := d.details[id]
		if !ok {
			return nil, fmt.Errorf("getrawtransaction %s: no such transaction", id)
		}
		out[i] = det
	}
	return out, nil
}

func (d *fakeDaemon) DecodeScripts(_ context.Context, scripts []string) ([]types.ScriptDecodeResult, error) {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]types.ScriptDecodeResult, len(scripts))
	for i, s := range scripts {
		if d.failScripts[s] {
			return nil, fmt.Errorf("decodescript %s: %w", s, errBoom)
		}
		if r, ok := d.decoded[s]; ok {
			out[i] = r
		} else {
			out[i] = types.Unresolved()
		}
	}
	return out, nil
}

func (d *fakeDaemon) EstimateFee(_ context.Context, blocks int) (types.Amount, error) {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.feeTarget = blocks
	return d.fee, nil
}

func (d *fakeDaemon) SendRawTransaction(_ context.Context, rawHex string) (types.Hash, error) {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sendErr != nil {
		return types.Hash{}, d.sendErr
	}
	d.sent = append(d.sent, rawHex)
	return types.Hash{0xee}, nil
}

// addParent registers a serialized transaction paying value to each
// script and returns its id.
func (d *fakeDaemon) addParent(t *testing.T, tag byte, outs ...parentOut) types.Hash {
	t.Helper()
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex},
		SignatureScript:  []byte{0x01, tag},
	})
	for _, o := range outs {
		script, err := hex.DecodeString(o.script)
		require.NoError(t, err)
		tx.AddTxOut(wire.NewTxOut(o.value, script))
	}
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	id := types.FromChainHash(tx.TxHash())

	d.mu.Lock()
	d.raw[id] = buf.Bytes()
	d.mu.Unlock()
	return id
}

func (d *fakeDaemon) addDetail(det *types.TransactionDetail) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.details[det.TxID] = det
}

type parentOut struct {
	value  int64
	script string
}

type fakeIndex struct {
	utxos   map[types.LookupKey][]types.Utxo
	history map[types.LookupKey][]types.HistoryEntry
	err     error
	calls   atomic.Int64
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		utxos:   make(map[types.LookupKey][]types.Utxo),
		history: make(map[types.LookupKey][]types.HistoryEntry),
	}
}

func (f *fakeIndex) AllUTXOs(_ context.Context, key types.LookupKey) ([]types.Utxo, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return append([]types.Utxo(nil), f.utxos[key]...), nil
}

func (f *fakeIndex) History(_ context.Context, key types.LookupKey) ([]types.HistoryEntry, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return append([]types.HistoryEntry(nil), f.history[key]...), nil
}

type fakeMempool struct {
	summaries map[types.LookupKey][]types.MempoolSummary
	utxos     map[types.LookupKey][]types.Utxo
	spends    map[types.LookupKey]map[types.Outpoint]struct{}
	delta     map[types.LookupKey]types.Amount
	entries   map[types.Hash]types.MempoolEntry
	err       error
	calls     atomic.Int64
}

func newFakeMempool() *fakeMempool {
	return &fakeMempool{
		summaries: make(map[types.LookupKey][]types.MempoolSummary),
		utxos:     make(map[types.LookupKey][]types.Utxo),
		spends:    make(map[types.LookupKey]map[types.Outpoint]struct{}),
		delta:     make(map[types.LookupKey]types.Amount),
		entries:   make(map[types.Hash]types.MempoolEntry),
	}
}

func (f *fakeMempool) TransactionSummaries(_ context.Context, key types.LookupKey) ([]types.MempoolSummary, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.summaries[key], nil
}

func (f *fakeMempool) UnorderedUTXOs(_ context.Context, key types.LookupKey) ([]types.Utxo, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return append([]types.Utxo(nil), f.utxos[key]...), nil
}

func (f *fakeMempool) PotentialSpends(_ context.Context, key types.LookupKey) (map[types.Outpoint]struct{}, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.spends[key], nil
}

func (f *fakeMempool) BalanceDelta(_ context.Context, key types.LookupKey) (types.Amount, error) {
	f.calls.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	return f.delta[key], nil
}

func (f *fakeMempool) Lookup(id types.Hash) (types.MempoolEntry, bool) {
	e, ok := f.entries[id]
	return e, ok
}

type harness struct {
	daemon  *fakeDaemon
	index   *fakeIndex
	mempool *fakeMempool
	engine  *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{daemon: newFakeDaemon(), index: newFakeIndex(), mempool: newFakeMempool()}
	h.engine = NewEngine(Config{Params: &chaincfg.MainNetParams, Precision: types.DefaultPrecision},
		h.daemon, h.index, h.mempool, h.mempool)
	return h
}

func (h *harness) ioCalls() int64 {
	return h.daemon.calls.Load() + h.index.calls.Load() + h.mempool.calls.Load()
}

func mustKey(t *testing.T, address string) types.LookupKey {
	t.Helper()
	key, err := ResolveAddress(&chaincfg.MainNetParams, address)
	require.NoError(t, err)
	return key
}

func confirmations(n uint64) *uint64 { return &n }

func blockTime(ts int64) *int64 { return &ts }

// spendDetail builds the detail of a transaction spending parent:vout.
func spendDetail(id types.Hash, parent types.Hash, vout uint32, outs ...types.TxOutput) *types.TransactionDetail {
	return &types.TransactionDetail{
		TxID:    id,
		Inputs:  []types.TxInput{{PrevTxID: parent, PrevIndex: vout}},
		Outputs: outs,
	}
}

func out(n uint32, value types.Amount, script string) types.TxOutput {
	return types.TxOutput{Index: n, HasIndex: true, Value: value, ScriptHex: script}
}
