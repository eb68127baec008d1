package daemon

import (
	"context"
	"encoding/hex"
	stdjson "encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/addrindex/pkg/types"
)

type handlerFunc func(params []stdjson.RawMessage) (any, *RPCError)

// fakeDaemon is a minimal bitcoind JSON-RPC endpoint.
type fakeDaemon struct {
	t        *testing.T
	methods  map[string]handlerFunc
	requests atomic.Int32
	reverse  bool // answer batches in reverse order
}

type fakeReq struct {
	ID     uint64               `json:"id"`
	Method string               `json:"method"`
	Params []stdjson.RawMessage `json:"params"`
}

type fakeResp struct {
	Result any       `json:"result"`
	Error  *RPCError `json:"error"`
	ID     uint64    `json:"id"`
}

func (f *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	user, pass, ok := r.BasicAuth()
	if !ok || user != "user" || pass != "pass" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	body, _ := io.ReadAll(r.Body)

	answer := func(req fakeReq) fakeResp {
		h, ok := f.methods[req.Method]
		if !ok {
			return fakeResp{ID: req.ID, Error: &RPCError{Code: -32601, Message: "Method not found"}}
		}
		res, rpcErr := h(req.Params)
		return fakeResp{ID: req.ID, Result: res, Error: rpcErr}
	}

	if strings.HasPrefix(strings.TrimSpace(string(body)), "[") {
		var reqs []fakeReq
		require.NoError(f.t, stdjson.Unmarshal(body, &reqs))
		out := make([]fakeResp, len(reqs))
		for i, req := range reqs {
			out[i] = answer(req)
		}
		if f.reverse {
			for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
				out[i], out[j] = out[j], out[i]
			}
		}
		_ = stdjson.NewEncoder(w).Encode(out)
		return
	}

	var req fakeReq
	require.NoError(f.t, stdjson.Unmarshal(body, &req))
	resp := answer(req)
	if resp.Error != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
	_ = stdjson.NewEncoder(w).Encode(resp)
}

func newFake(t *testing.T, methods map[string]handlerFunc) (*fakeDaemon, *Client) {
	t.Helper()
	f := &fakeDaemon{t: t, methods: methods}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c := New(Config{
		URL:       srv.URL,
		User:      "user",
		Password:  "pass",
		Timeout:   5 * time.Second,
		CacheSize: 100,
		CacheTTL:  time.Minute,
	}, types.DefaultPrecision)
	t.Cleanup(c.Close)
	return f, c
}

func strParam(t *testing.T, raw stdjson.RawMessage) string {
	var s string
	require.NoError(t, stdjson.Unmarshal(raw, &s))
	return s
}

func hashOf(b byte) types.Hash {
	var h types.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func TestCall_Unauthorized(t *testing.T) {
	_, c := newFake(t, nil)
	c.password = "wrong"
	_, err := c.GetBlockCount(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCall_RPCError(t *testing.T) {
	_, c := newFake(t, map[string]handlerFunc{
		"sendrawtransaction": func([]stdjson.RawMessage) (any, *RPCError) {
			return nil, &RPCError{Code: ErrCodeVerifyRejected, Message: "bad-txns-inputs-missingorspent"}
		},
	})
	_, err := c.SendRawTransaction(context.Background(), "00")
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, ErrCodeVerifyRejected, rpcErr.Code)
	assert.Contains(t, err.Error(), "missingorspent")
}

func TestGetRawTransactions_OrderAndCache(t *testing.T) {
	f, c := newFake(t, map[string]handlerFunc{
		"getrawtransaction": func(p []stdjson.RawMessage) (any, *RPCError) {
			id := strParam(t, p[0])
			// Serialized "transaction" is the first txid byte repeated.
			return strings.Repeat(id[:2], 4), nil
		},
	})
	f.reverse = true

	ids := []types.Hash{hashOf(0x01), hashOf(0x02), hashOf(0x03)}
	raws, err := c.GetRawTransactions(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, raws, 3)
	for i, id := range ids {
		assert.Equal(t, hex.EncodeToString([]byte{id[0], id[0], id[0], id[0]}), hex.EncodeToString(raws[i]))
	}
	assert.EqualValues(t, 1, f.requests.Load())

	// Second lookup is served from the cache.
	raws, err = c.GetRawTransactions(context.Background(), ids[:2])
	require.NoError(t, err)
	assert.Len(t, raws, 2)
	assert.EqualValues(t, 1, f.requests.Load())
}

func TestGetRawTransactions_BatchFailsAsWhole(t *testing.T) {
	_, c := newFake(t, map[string]handlerFunc{
		"getrawtransaction": func(p []stdjson.RawMessage) (any, *RPCError) {
			if strParam(t, p[0]) == hashOf(0x02).String() {
				return nil, &RPCError{Code: ErrCodeInvalidAddressOrKey, Message: "No such mempool or blockchain transaction"}
			}
			return "00", nil
		},
	})
	_, err := c.GetRawTransactions(context.Background(), []types.Hash{hashOf(1), hashOf(2)})
	require.Error(t, err)
	var rpcErr *RPCError
	assert.True(t, errors.As(err, &rpcErr))
}

func TestGetDetailedTransactions(t *testing.T) {
	confirmed := hashOf(0xaa).String()
	pending := hashOf(0xbb).String()
	coinbase := hashOf(0xcc).String()

	_, c := newFake(t, map[string]handlerFunc{
		"getrawtransaction": func(p []stdjson.RawMessage) (any, *RPCError) {
			switch strParam(t, p[0]) {
			case confirmed:
				return stdjson.RawMessage(`{
					"txid": "` + confirmed + `",
					"vin": [{"txid": "` + pending + `", "vout": 1}],
					"vout": [
						{"value": 0.99990000, "n": 0, "scriptPubKey": {"hex": "0014aa", "address": "bc1qaa", "type": "witness_v0_keyhash"}},
						{"value": 0.00000000, "n": 1, "scriptPubKey": {"hex": "6a00", "type": "nulldata"}}
					],
					"confirmations": 12,
					"time": 1700000000,
					"blocktime": 1700000001
				}`), nil
			case pending:
				return stdjson.RawMessage(`{
					"txid": "` + pending + `",
					"vin": [{"txid": "` + confirmed + `", "vout": 0}],
					"vout": [{"value": 1.5, "scriptPubKey": {"hex": "76a9", "addresses": ["1A", "1B"]}}],
					"confirmations": 0
				}`), nil
			default:
				return stdjson.RawMessage(`{
					"txid": "` + coinbase + `",
					"vin": [{"coinbase": "03a0bb0d", "sequence": 4294967295}],
					"vout": [{"value": 6.25, "n": 0, "scriptPubKey": {"hex": "51"}}],
					"confirmations": 1,
					"time": 1700000100
				}`), nil
			}
		},
	})

	ids := []types.Hash{hashOf(0xaa), hashOf(0xbb), hashOf(0xcc)}
	details, err := c.GetDetailedTransactions(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, details, 3)

	d := details[0]
	assert.Equal(t, ids[0], d.TxID)
	require.True(t, d.Confirmed())
	assert.EqualValues(t, 12, d.ConfirmationCount())
	require.NotNil(t, d.BlockTime)
	assert.EqualValues(t, 1700000001, *d.BlockTime)
	require.Len(t, d.Inputs, 1)
	assert.Equal(t, ids[1], d.Inputs[0].PrevTxID)
	assert.EqualValues(t, 1, d.Inputs[0].PrevIndex)
	require.Len(t, d.Outputs, 2)
	assert.Equal(t, types.Amount(99_990_000), d.Outputs[0].Value)
	assert.Equal(t, []string{"bc1qaa"}, d.Outputs[0].Addresses)
	assert.True(t, d.Outputs[1].HasIndex)
	assert.Nil(t, d.Outputs[1].Addresses)

	p := details[1]
	assert.False(t, p.Confirmed(), "confirmations: 0 means unconfirmed")
	assert.Nil(t, p.BlockTime)
	assert.False(t, p.Outputs[0].HasIndex)
	assert.Equal(t, []string{"1A", "1B"}, p.Outputs[0].Addresses)
	assert.Equal(t, types.Amount(150_000_000), p.Outputs[0].Value)

	cb := details[2]
	assert.True(t, cb.IsCoinbase())
	require.NotNil(t, cb.BlockTime)
	assert.EqualValues(t, 1700000100, *cb.BlockTime)
}

func TestDecodeScripts_Classification(t *testing.T) {
	replies := map[string]string{
		"a1": `{"type": "pubkeyhash", "address": "1Std", "segwit": {"address": "bc1qignored"}}`,
		"a2": `{"type": "nonstandard", "segwit": {"type": "witness_v0_scripthash", "address": "bc1qsegwit"}}`,
		"a3": `{"type": "nonstandard"}`,
		"a4": `{"type": "nulldata"}`,
		"a5": `{"type": "multisig", "addresses": ["1M1", "1M2"]}`,
		"a6": `{"type": "nonstandard", "segwit": {"addresses": []}}`,
	}
	_, c := newFake(t, map[string]handlerFunc{
		"decodescript": func(p []stdjson.RawMessage) (any, *RPCError) {
			return stdjson.RawMessage(replies[strParam(t, p[0])]), nil
		},
	})

	res, err := c.DecodeScripts(context.Background(), []string{"a1", "a2", "a3", "a4", "a5", "a6"})
	require.NoError(t, err)
	require.Len(t, res, 6)

	assert.Equal(t, types.ScriptStandard, res[0].Kind)
	assert.Equal(t, []string{"1Std"}, res[0].Destinations())

	assert.Equal(t, types.ScriptSegwitNonStandard, res[1].Kind)
	assert.Equal(t, []string{"bc1qsegwit"}, res[1].Destinations())

	assert.Equal(t, types.ScriptUnresolved, res[2].Kind)
	assert.Equal(t, types.ScriptUnresolved, res[3].Kind)

	assert.Equal(t, []string{"1M1", "1M2"}, res[4].Destinations())
	assert.Equal(t, types.ScriptUnresolved, res[5].Kind)
}

func TestEstimateFee(t *testing.T) {
	_, c := newFake(t, map[string]handlerFunc{
		"estimatesmartfee": func(p []stdjson.RawMessage) (any, *RPCError) {
			var blocks int
			require.NoError(t, stdjson.Unmarshal(p[0], &blocks))
			if blocks > 100 {
				return stdjson.RawMessage(`{"errors": ["Insufficient data or no feerate found"], "blocks": 0}`), nil
			}
			return stdjson.RawMessage(`{"feerate": 0.00012345, "blocks": 2}`), nil
		},
	})

	fee, err := c.EstimateFee(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(12_345), fee)

	fee, err = c.EstimateFee(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(-100_000_000), fee)
}

func TestSendRawTransaction(t *testing.T) {
	want := hashOf(0x42)
	_, c := newFake(t, map[string]handlerFunc{
		"sendrawtransaction": func(p []stdjson.RawMessage) (any, *RPCError) {
			assert.Equal(t, "0100", strParam(t, p[0]))
			return want.String(), nil
		},
	})
	got, err := c.SendRawTransaction(context.Background(), "0100")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRawMempool(t *testing.T) {
	a, b := hashOf(0x0a).String(), hashOf(0x0b).String()
	_, c := newFake(t, map[string]handlerFunc{
		"getrawmempool": func([]stdjson.RawMessage) (any, *RPCError) {
			return stdjson.RawMessage(`{
				"` + a + `": {"time": 1700000000, "fees": {"base": 0.00001000}, "depends": []},
				"` + b + `": {"time": 1700000050, "fee": 0.00000500, "depends": ["` + a + `"]}
			}`), nil
		},
	})
	txs, err := c.RawMempool(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 2)

	byID := map[types.Hash]MempoolTx{}
	for _, tx := range txs {
		byID[tx.TxID] = tx
	}
	assert.Equal(t, types.Amount(1000), byID[hashOf(0x0a)].Fee)
	assert.EqualValues(t, 1700000000, byID[hashOf(0x0a)].Time)
	assert.Equal(t, types.Amount(500), byID[hashOf(0x0b)].Fee)
	assert.Equal(t, []types.Hash{hashOf(0x0a)}, byID[hashOf(0x0b)].Depends)
}

func TestContextCancelled(t *testing.T) {
	_, c := newFake(t, map[string]handlerFunc{
		"getblockcount": func([]stdjson.RawMessage) (any, *RPCError) { return 1, nil },
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetBlockCount(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
