package query

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/Klingon-tech/addrindex/internal/fanout"
	"github.com/Klingon-tech/addrindex/pkg/types"
)

// RecordInput is an input whose spent output resolved to addresses.
type RecordInput struct {
	TxID      types.Hash    `json:"txid"`
	Vout      uint32        `json:"vout"`
	Addresses []string      `json:"addresses"`
	ValueSat  types.Amount  `json:"valueSat"`
	Value     types.Decimal `json:"value"`
}

// RecordOutput is an output that resolved to addresses.
type RecordOutput struct {
	N         uint32        `json:"n"`
	Addresses []string      `json:"addresses"`
	ValueSat  types.Amount  `json:"valueSat"`
	Value     types.Decimal `json:"value"`
}

// HistoryRecord is one transaction of an address history.
type HistoryRecord struct {
	TxID          types.Hash     `json:"txid"`
	BlockHeight   int64          `json:"blockheight"`
	Vin           []RecordInput  `json:"vin"`
	Vout          []RecordOutput `json:"vout"`
	ValueIn       types.Decimal  `json:"valueIn"`
	ValueOut      types.Decimal  `json:"valueOut"`
	Fees          types.Decimal  `json:"fees"`
	Confirmations uint64         `json:"confirmations"`
	Time          int64          `json:"time"`
}

// spentOutput is the parent output an input consumes.
type spentOutput struct {
	input  types.TxInput
	value  types.Amount
	script string
}

// BuildRecord resolves the inputs, outputs and timestamp of one
// transaction. height is the position reported by the history listing.
// Any failure aborts the record.
func (e *Engine) BuildRecord(ctx context.Context, detail *types.TransactionDetail, height int64) (*HistoryRecord, error) {
	if detail == nil {
		return nil, ErrMissingTransactionDetail
	}
	ts, err := e.timestamp(detail)
	if err != nil {
		return nil, err
	}

	vin, vout, err := fanout.Join2(ctx,
		func(ctx context.Context) ([]RecordInput, error) {
			return e.resolveInputs(ctx, detail)
		},
		func(ctx context.Context) ([]RecordOutput, error) {
			return e.resolveOutputs(ctx, detail)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("tx %s: %w", detail.TxID, err)
	}

	var valueIn, valueOut types.Amount
	for _, in := range vin {
		valueIn += in.ValueSat
	}
	for _, out := range vout {
		valueOut += out.ValueSat
	}
	// Only coinbase zeroes the fee. Inputs without a decodable address are
	// left out of valueIn, so the fee may be negative and is reported as is.
	var fee types.Amount
	if !detail.IsCoinbase() {
		fee = valueIn - valueOut
	}

	return &HistoryRecord{
		TxID:          detail.TxID,
		BlockHeight:   height,
		Vin:           vin,
		Vout:          vout,
		ValueIn:       e.precision.Decimal(valueIn),
		ValueOut:      e.precision.Decimal(valueOut),
		Fees:          e.precision.Decimal(fee),
		Confirmations: detail.ConfirmationCount(),
		Time:          ts,
	}, nil
}

// timestamp is the block time for confirmed transactions and the mempool
// arrival time otherwise.
func (e *Engine) timestamp(detail *types.TransactionDetail) (int64, error) {
	if detail.Confirmed() {
		if detail.BlockTime == nil {
			return 0, fmt.Errorf("%w: confirmed tx %s carries no block time", ErrMissingTimestamp, detail.TxID)
		}
		return *detail.BlockTime, nil
	}
	entry, ok := e.snapshot.Lookup(detail.TxID)
	if !ok {
		return 0, fmt.Errorf("%w: %s is neither confirmed nor in the mempool", ErrMissingTimestamp, detail.TxID)
	}
	return entry.Time, nil
}

func (e *Engine) resolveInputs(ctx context.Context, detail *types.TransactionDetail) ([]RecordInput, error) {
	spent, err := e.spentOutputs(ctx, detail.Inputs)
	if err != nil {
		return nil, err
	}
	scripts := make([]string, len(spent))
	for i, s := range spent {
		scripts[i] = s.script
	}
	dest, err := e.decodeDistinct(ctx, scripts)
	if err != nil {
		return nil, err
	}

	vin := make([]RecordInput, 0, len(spent))
	for _, s := range spent {
		addrs := dest[s.script]
		if len(addrs) == 0 {
			continue
		}
		vin = append(vin, RecordInput{
			TxID:      s.input.PrevTxID,
			Vout:      s.input.PrevIndex,
			Addresses: addrs,
			ValueSat:  s.value,
			Value:     e.precision.Decimal(s.value),
		})
	}
	return vin, nil
}

// spentOutputs fetches each distinct parent once and picks the outputs the
// inputs consume. Block reward inputs have no parent and are skipped.
func (e *Engine) spentOutputs(ctx context.Context, inputs []types.TxInput) ([]spentOutput, error) {
	var (
		parents []types.Hash
		pos     = make(map[types.Hash]int)
	)
	for _, in := range inputs {
		if in.Coinbase {
			continue
		}
		if _, ok := pos[in.PrevTxID]; !ok {
			pos[in.PrevTxID] = len(parents)
			parents = append(parents, in.PrevTxID)
		}
	}
	if len(parents) == 0 {
		return nil, nil
	}

	raws, err := e.fetchRaw(ctx, parents)
	if err != nil {
		return nil, err
	}
	msgs := make([]*wire.MsgTx, len(raws))
	for i, raw := range raws {
		var msg wire.MsgTx
		if err := msg.Deserialize(bytes.NewReader(raw)); err != nil {
			return nil, upstream("daemon", fmt.Errorf("decode parent %s: %w", parents[i], err))
		}
		msgs[i] = &msg
	}

	spent := make([]spentOutput, 0, len(inputs))
	for _, in := range inputs {
		if in.Coinbase {
			continue
		}
		parent := msgs[pos[in.PrevTxID]]
		if int(in.PrevIndex) >= len(parent.TxOut) {
			return nil, fmt.Errorf("%w: %s:%d, parent has %d outputs",
				ErrMissingOutputReference, in.PrevTxID, in.PrevIndex, len(parent.TxOut))
		}
		out := parent.TxOut[in.PrevIndex]
		spent = append(spent, spentOutput{
			input:  in,
			value:  types.Amount(out.Value),
			script: hex.EncodeToString(out.PkScript),
		})
	}
	return spent, nil
}

func (e *Engine) resolveOutputs(ctx context.Context, detail *types.TransactionDetail) ([]RecordOutput, error) {
	scripts := make([]string, len(detail.Outputs))
	for i, out := range detail.Outputs {
		scripts[i] = out.ScriptHex
	}
	dest, err := e.decodeDistinct(ctx, scripts)
	if err != nil {
		return nil, err
	}

	vout := make([]RecordOutput, 0, len(detail.Outputs))
	for i, out := range detail.Outputs {
		addrs := dest[out.ScriptHex]
		if len(addrs) == 0 {
			continue
		}
		n := uint32(i)
		if out.HasIndex {
			n = out.Index
		}
		vout = append(vout, RecordOutput{
			N:         n,
			Addresses: addrs,
			ValueSat:  out.Value,
			Value:     e.precision.Decimal(out.Value),
		})
	}
	return vout, nil
}
