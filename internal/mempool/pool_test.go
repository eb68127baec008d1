package mempool

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/addrindex/internal/daemon"
	"github.com/Klingon-tech/addrindex/internal/index"
	"github.com/Klingon-tech/addrindex/internal/storage"
	"github.com/Klingon-tech/addrindex/pkg/types"
)

func p2wpkh(b byte) []byte {
	s := make([]byte, 22)
	s[0], s[1] = 0x00, 0x14
	for i := 2; i < 22; i++ {
		s[i] = b
	}
	return s
}

var (
	scriptA = p2wpkh(0xaa)
	scriptB = p2wpkh(0xbb)
	keyA    = types.LookupKeyFromScript(scriptA)
	keyB    = types.LookupKeyFromScript(scriptB)
)

// fakeSource serves a fixed mempool listing and raw transactions.
type fakeSource struct {
	mu      sync.Mutex
	listing []daemon.MempoolTx
	raw     map[types.Hash][]byte
	// vanished ids are listed but fail to fetch.
	vanished map[types.Hash]bool
	batches  int
}

func newFakeSource() *fakeSource {
	return &fakeSource{raw: make(map[types.Hash][]byte), vanished: make(map[types.Hash]bool)}
}

func (f *fakeSource) add(t *testing.T, tx *wire.MsgTx, time int64, fee types.Amount) types.Hash {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	id := types.FromChainHash(tx.TxHash())
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw[id] = buf.Bytes()
	f.listing = append(f.listing, daemon.MempoolTx{TxID: id, Time: time, Fee: fee})
	return id
}

func (f *fakeSource) drop(id types.Hash) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.listing {
		if e.TxID == id {
			f.listing = append(f.listing[:i], f.listing[i+1:]...)
			return
		}
	}
}

func (f *fakeSource) RawMempool(context.Context) ([]daemon.MempoolTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]daemon.MempoolTx(nil), f.listing...), nil
}

func (f *fakeSource) GetRawTransactions(_ context.Context, ids []types.Hash) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	out := make([][]byte, len(ids))
	for i, id := range ids {
		if f.vanished[id] {
			return nil, fmt.Errorf("getrawtransaction: %w", &daemon.RPCError{Code: daemon.ErrCodeInvalidAddressOrKey, Message: "No such mempool transaction"})
		}
		out[i] = f.raw[id]
	}
	return out, nil
}

func fundingTx(value int64, script []byte, tag byte) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex},
		SignatureScript:  []byte{0x01, tag},
	})
	tx.AddTxOut(wire.NewTxOut(value, script))
	return tx
}

func spend(parent *wire.MsgTx, index uint32, outs ...*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	h := parent.TxHash()
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&h, index), nil, nil))
	for _, o := range outs {
		tx.AddTxOut(o)
	}
	return tx
}

type fixture struct {
	store  *index.Store
	source *fakeSource
	pool   *Pool
	ref    *Refresher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := index.NewStore(storage.NewMemory())
	source := newFakeSource()
	pool := New()
	return &fixture{store: store, source: source, pool: pool, ref: NewRefresher(pool, source, store)}
}

func TestRefresh_ConfirmedParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	confirmed := fundingTx(10_000, scriptA, 1)
	require.NoError(t, f.store.ApplyTx(confirmed, 100))

	pay := spend(confirmed, 0, wire.NewTxOut(6_000, scriptB), wire.NewTxOut(3_000, scriptA))
	payID := f.source.add(t, pay, 1_700_000_000, 1_000)

	require.NoError(t, f.ref.Refresh(ctx))
	assert.Equal(t, 1, f.pool.Count())

	sums, err := f.pool.TransactionSummaries(ctx, keyA)
	require.NoError(t, err)
	assert.Equal(t, []types.MempoolSummary{{TxID: payID, Fee: 1_000}}, sums)

	deltaA, err := f.pool.BalanceDelta(ctx, keyA)
	require.NoError(t, err)
	assert.EqualValues(t, -7_000, deltaA)

	deltaB, err := f.pool.BalanceDelta(ctx, keyB)
	require.NoError(t, err)
	assert.EqualValues(t, 6_000, deltaB)

	utxos, err := f.pool.UnorderedUTXOs(ctx, keyA)
	require.NoError(t, err)
	assert.Equal(t, []types.Utxo{{TxID: payID, Index: 1, Height: 0, Value: 3_000}}, utxos)

	spends, err := f.pool.PotentialSpends(ctx, keyA)
	require.NoError(t, err)
	_, ok := spends[types.Outpoint{TxID: types.FromChainHash(confirmed.TxHash()), Index: 0}]
	assert.True(t, ok)

	entry, ok := f.pool.Lookup(payID)
	require.True(t, ok)
	assert.EqualValues(t, 1_700_000_000, entry.Time)
	assert.EqualValues(t, 1_000, entry.Fee)
}

func TestRefresh_ChainedPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	confirmed := fundingTx(10_000, scriptA, 1)
	require.NoError(t, f.store.ApplyTx(confirmed, 100))

	parent := spend(confirmed, 0, wire.NewTxOut(9_000, scriptB))
	child := spend(parent, 0, wire.NewTxOut(8_000, scriptA))
	// Child listed first: resolution must not depend on listing order.
	childID := f.source.add(t, child, 20, 1_000)
	parentID := f.source.add(t, parent, 10, 1_000)

	require.NoError(t, f.ref.Refresh(ctx))

	sums, err := f.pool.TransactionSummaries(ctx, keyB)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, parentID, sums[0].TxID)
	assert.False(t, sums[0].HasUnconfirmedInputs)
	assert.Equal(t, childID, sums[1].TxID)
	assert.True(t, sums[1].HasUnconfirmedInputs)

	deltaB, err := f.pool.BalanceDelta(ctx, keyB)
	require.NoError(t, err)
	assert.EqualValues(t, 0, deltaB)

	// The parent's output is listed and reported as potentially spent.
	utxos, err := f.pool.UnorderedUTXOs(ctx, keyB)
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	spends, err := f.pool.PotentialSpends(ctx, keyB)
	require.NoError(t, err)
	_, ok := spends[utxos[0].Outpoint()]
	assert.True(t, ok)
}

func TestRefresh_RemovesConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	confirmed := fundingTx(10_000, scriptA, 1)
	require.NoError(t, f.store.ApplyTx(confirmed, 100))
	id := f.source.add(t, spend(confirmed, 0, wire.NewTxOut(9_000, scriptB)), 1, 1_000)

	require.NoError(t, f.ref.Refresh(ctx))
	require.True(t, f.pool.Has(id))

	f.source.drop(id)
	require.NoError(t, f.ref.Refresh(ctx))
	assert.False(t, f.pool.Has(id))
	assert.Zero(t, f.pool.Count())

	sums, err := f.pool.TransactionSummaries(ctx, keyB)
	require.NoError(t, err)
	assert.Empty(t, sums)
}

func TestRefresh_OnlyFetchesNew(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.source.add(t, spend(fundingTx(5, scriptA, 1), 0, wire.NewTxOut(4, scriptB)), 1, 1)

	require.NoError(t, f.ref.Refresh(ctx))
	require.NoError(t, f.ref.Refresh(ctx))
	assert.Equal(t, 1, f.source.batches)
}

func TestRefresh_VanishedTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	keep := f.source.add(t, spend(fundingTx(5, scriptA, 1), 0, wire.NewTxOut(4, scriptB)), 1, 1)
	gone := f.source.add(t, spend(fundingTx(5, scriptA, 2), 0, wire.NewTxOut(4, scriptB)), 2, 1)
	f.source.vanished[gone] = true

	require.NoError(t, f.ref.Refresh(ctx))
	assert.True(t, f.pool.Has(keep))
	assert.False(t, f.pool.Has(gone))
}

func TestRefresh_UnresolvedInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var unknown chainhash.Hash
	unknown[0] = 0x42
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&unknown, 3), nil, nil))
	tx.AddTxOut(wire.NewTxOut(700, scriptA))
	f.source.add(t, tx, 1, 100)

	require.NoError(t, f.ref.Refresh(ctx))
	delta, err := f.pool.BalanceDelta(ctx, keyA)
	require.NoError(t, err)
	assert.EqualValues(t, 700, delta)
}

func TestPool_Queries_CancelledContext(t *testing.T) {
	p := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.TransactionSummaries(ctx, keyA)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = p.UnorderedUTXOs(ctx, keyA)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = p.PotentialSpends(ctx, keyA)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = p.BalanceDelta(ctx, keyA)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_AddReplaceAndTotals(t *testing.T) {
	p := New()
	id := types.Hash{1}
	p.Add(&Tx{TxID: id, Fee: 10, Outputs: []Output{{Index: 0, Key: keyA, Value: 5}}})
	p.Add(&Tx{TxID: id, Fee: 20, Outputs: []Output{{Index: 0, Key: keyB, Value: 5}}})

	assert.Equal(t, 1, p.Count())
	assert.EqualValues(t, 20, p.TotalFees())

	sums, err := p.TransactionSummaries(context.Background(), keyA)
	require.NoError(t, err)
	assert.Empty(t, sums)

	out, ok := p.Output(types.Outpoint{TxID: id, Index: 0})
	require.True(t, ok)
	assert.Equal(t, keyB, out.Key)

	_, ok = p.Lookup(types.Hash{2})
	assert.False(t, ok)
}
