package index

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Klingon-tech/addrindex/pkg/types"
)

// IsCoinbaseInput reports whether in is a block reward input.
func IsCoinbaseInput(in *wire.TxIn) bool {
	return in.PreviousOutPoint.Index == wire.MaxPrevOutIndex &&
		in.PreviousOutPoint.Hash == chainhash.Hash{}
}

// ApplyTx records a transaction confirmed at height: its inputs spend
// indexed outputs, its spendable outputs become unspent entries, and every
// key it touches gains a history entry.
func (s *Store) ApplyTx(tx *wire.MsgTx, height int64) error {
	txid := types.FromChainHash(tx.TxHash())
	touched := make(map[types.LookupKey]struct{})

	for i, in := range tx.TxIn {
		if IsCoinbaseInput(in) {
			continue
		}
		op := types.Outpoint{
			TxID:  types.FromChainHash(in.PreviousOutPoint.Hash),
			Index: in.PreviousOutPoint.Index,
		}
		r, err := s.SpendUTXO(op)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Parent predates the index.
				continue
			}
			return fmt.Errorf("tx %s input %d: %w", txid, i, err)
		}
		touched[r.Key] = struct{}{}
	}

	for i, out := range tx.TxOut {
		if txscript.IsUnspendable(out.PkScript) {
			continue
		}
		key := types.LookupKeyFromScript(out.PkScript)
		u := types.Utxo{TxID: txid, Index: uint32(i), Height: height, Value: types.Amount(out.Value)}
		if err := s.PutUTXO(key, u); err != nil {
			return fmt.Errorf("tx %s output %d: %w", txid, i, err)
		}
		touched[key] = struct{}{}
	}

	for key := range touched {
		if err := s.AddHistory(key, txid, height); err != nil {
			return err
		}
	}
	return nil
}

// ApplyBlock applies every transaction of block at height and advances the
// tip.
//
// The service never calls this itself: the index is filled by an external
// indexer process sharing the database, and the service opens it for
// reading. ApplyBlock is that indexer's write path.
func (s *Store) ApplyBlock(block *wire.MsgBlock, height int64) error {
	for _, tx := range block.Transactions {
		if err := s.ApplyTx(tx, height); err != nil {
			return err
		}
	}
	if err := s.SetTip(height); err != nil {
		return err
	}
	s.logger.Debug().
		Int64("height", height).
		Int("txs", len(block.Transactions)).
		Msg("block indexed")
	return nil
}
