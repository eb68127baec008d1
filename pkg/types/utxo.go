package types

import "bytes"

// Utxo is an unspent output owned by a lookup key. Height is 0 for outputs
// created by mempool transactions.
type Utxo struct {
	TxID   Hash   `json:"tx_hash"`
	Index  uint32 `json:"tx_pos"`
	Height int64  `json:"height"`
	Value  Amount `json:"value"`
}

// Outpoint returns the output reference.
func (u Utxo) Outpoint() Outpoint {
	return Outpoint{TxID: u.TxID, Index: u.Index}
}

// Less orders utxos by height, then txid, then index.
func (u Utxo) Less(o Utxo) bool {
	if u.Height != o.Height {
		return u.Height < o.Height
	}
	if c := bytes.Compare(u.TxID[:], o.TxID[:]); c != 0 {
		return c < 0
	}
	return u.Index < o.Index
}

// HistoryEntry is a confirmed transaction touching a lookup key.
type HistoryEntry struct {
	TxID   Hash
	Height int64
}

// MempoolSummary describes a pending transaction touching a lookup key.
type MempoolSummary struct {
	TxID                 Hash
	Fee                  Amount
	HasUnconfirmedInputs bool
}

// MempoolEntry is the snapshot view of a pending transaction.
type MempoolEntry struct {
	TxID Hash
	// Time is the unix time the transaction entered the daemon's mempool.
	Time int64
	Fee  Amount
}
