package types

// TxInput is a spend reference inside a TransactionDetail.
type TxInput struct {
	PrevTxID  Hash
	PrevIndex uint32
	// Coinbase is set for block reward inputs, which have no parent.
	Coinbase bool
}

// TxOutput is one output of a TransactionDetail as reported by the daemon.
type TxOutput struct {
	// Index is the output position ("n"). HasIndex is false when the daemon
	// omitted it.
	Index     uint32
	HasIndex  bool
	Value     Amount
	ScriptHex string
	// Addresses holds the daemon's own address list for the script, if any.
	Addresses []string
}

// TransactionDetail is the verbose form of a transaction.
type TransactionDetail struct {
	TxID    Hash
	Inputs  []TxInput
	Outputs []TxOutput
	// Confirmations is nil for transactions not yet in a block.
	Confirmations *uint64
	// BlockTime is the block timestamp, present for confirmed transactions.
	BlockTime *int64
}

// Confirmed reports whether the daemon returned a confirmation count.
func (d *TransactionDetail) Confirmed() bool {
	return d.Confirmations != nil
}

// ConfirmationCount returns the confirmation count, or 0 when absent.
func (d *TransactionDetail) ConfirmationCount() uint64 {
	if d.Confirmations == nil {
		return 0
	}
	return *d.Confirmations
}

// IsCoinbase reports whether every input is a block reward input.
func (d *TransactionDetail) IsCoinbase() bool {
	if len(d.Inputs) == 0 {
		return false
	}
	for _, in := range d.Inputs {
		if !in.Coinbase {
			return false
		}
	}
	return true
}
