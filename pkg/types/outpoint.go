package types

import (
	"encoding/binary"
	"fmt"
)

// OutpointSize is the encoded length of an outpoint: txid(32) + index(4).
const OutpointSize = HashSize + 4

// Outpoint references a specific output in a transaction.
type Outpoint struct {
	TxID  Hash   `json:"txid"`
	Index uint32 `json:"index"`
}

// String returns "txid:index" in hex.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Index)
}

// Key encodes the outpoint as txid(32) + big-endian index(4), which sorts
// by txid then index.
func (o Outpoint) Key() []byte {
	key := make([]byte, OutpointSize)
	copy(key, o.TxID[:])
	binary.BigEndian.PutUint32(key[HashSize:], o.Index)
	return key
}

// OutpointFromKey decodes an outpoint produced by Key.
func OutpointFromKey(b []byte) (Outpoint, error) {
	if len(b) != OutpointSize {
		return Outpoint{}, fmt.Errorf("outpoint key must be %d bytes, got %d", OutpointSize, len(b))
	}
	var op Outpoint
	copy(op.TxID[:], b[:HashSize])
	op.Index = binary.BigEndian.Uint32(b[HashSize:])
	return op, nil
}
