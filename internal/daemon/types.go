package daemon

import (
	stdjson "encoding/json"
	"fmt"

	"github.com/Klingon-tech/addrindex/pkg/types"
)

// verboseTx is getrawtransaction's verbose reply.
type verboseTx struct {
	TxID string       `json:"txid"`
	Vin  []verboseIn  `json:"vin"`
	Vout []verboseOut `json:"vout"`
	// Absent for mempool transactions.
	Confirmations *uint64 `json:"confirmations"`
	BlockTime     *int64  `json:"blocktime"`
	Time          *int64  `json:"time"`
}

type verboseIn struct {
	TxID     string  `json:"txid"`
	Vout     *uint32 `json:"vout"`
	Coinbase string  `json:"coinbase"`
}

type verboseOut struct {
	Value        stdjson.Number `json:"value"`
	N            *uint32        `json:"n"`
	ScriptPubKey scriptPubKey   `json:"scriptPubKey"`
}

type scriptPubKey struct {
	Hex       string   `json:"hex"`
	Type      string   `json:"type"`
	Address   string   `json:"address"`
	Addresses []string `json:"addresses"`
}

func (v *verboseTx) detail(p types.Precision) (*types.TransactionDetail, error) {
	txid, err := types.HexToHash(v.TxID)
	if err != nil {
		return nil, fmt.Errorf("txid: %w", err)
	}
	d := &types.TransactionDetail{
		TxID:    txid,
		Inputs:  make([]types.TxInput, 0, len(v.Vin)),
		Outputs: make([]types.TxOutput, 0, len(v.Vout)),
	}

	for i, in := range v.Vin {
		if in.Coinbase != "" || in.TxID == "" {
			d.Inputs = append(d.Inputs, types.TxInput{Coinbase: true})
			continue
		}
		prev, err := types.HexToHash(in.TxID)
		if err != nil {
			return nil, fmt.Errorf("vin %d: %w", i, err)
		}
		if in.Vout == nil {
			return nil, fmt.Errorf("vin %d: missing vout", i)
		}
		d.Inputs = append(d.Inputs, types.TxInput{PrevTxID: prev, PrevIndex: *in.Vout})
	}

	for i, out := range v.Vout {
		value, err := p.Parse(out.Value.String())
		if err != nil {
			return nil, fmt.Errorf("vout %d value: %w", i, err)
		}
		o := types.TxOutput{
			Value:     value,
			ScriptHex: out.ScriptPubKey.Hex,
			Addresses: addressList(out.ScriptPubKey.Address, out.ScriptPubKey.Addresses),
		}
		if out.N != nil {
			o.Index, o.HasIndex = *out.N, true
		}
		d.Outputs = append(d.Outputs, o)
	}

	// Some daemons report confirmations: 0 for mempool transactions.
	if v.Confirmations != nil && *v.Confirmations > 0 {
		n := *v.Confirmations
		d.Confirmations = &n
		switch {
		case v.BlockTime != nil:
			t := *v.BlockTime
			d.BlockTime = &t
		case v.Time != nil:
			t := *v.Time
			d.BlockTime = &t
		}
	}
	return d, nil
}

// decodedScript is decodescript's reply.
type decodedScript struct {
	Type      string   `json:"type"`
	Address   string   `json:"address"`
	Addresses []string `json:"addresses"`
	Segwit    *struct {
		Type      string   `json:"type"`
		Address   string   `json:"address"`
		Addresses []string `json:"addresses"`
	} `json:"segwit"`
}

func (d decodedScript) classify() types.ScriptDecodeResult {
	if d.Type == "nonstandard" && d.Segwit != nil {
		if addrs := addressList(d.Segwit.Address, d.Segwit.Addresses); len(addrs) > 0 {
			return types.SegwitNonStandard(addrs...)
		}
	}
	if addrs := addressList(d.Address, d.Addresses); len(addrs) > 0 {
		return types.Standard(addrs...)
	}
	return types.Unresolved()
}

// addressList merges the legacy "addresses" array with the newer single
// "address" field.
func addressList(single string, list []string) []string {
	if len(list) > 0 {
		return list
	}
	if single != "" {
		return []string{single}
	}
	return nil
}

// mempoolEntry is one value of getrawmempool's verbose reply.
type mempoolEntry struct {
	Time int64           `json:"time"`
	Fee  *stdjson.Number `json:"fee"`
	Fees *struct {
		Base stdjson.Number `json:"base"`
	} `json:"fees"`
	Depends []string `json:"depends"`
}

func (e mempoolEntry) fee(p types.Precision) (types.Amount, error) {
	switch {
	case e.Fees != nil && e.Fees.Base != "":
		return p.Parse(e.Fees.Base.String())
	case e.Fee != nil:
		return p.Parse(e.Fee.String())
	default:
		return 0, nil
	}
}
