// Package types defines the primitive values shared by the index, the
// mempool mirror and the query engine.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// HashSize is the length of a hash in bytes.
const HashSize = 32

// Hash is a transaction id in display byte order, i.e. the order of its
// 64-character hex form as printed by the daemon.
type Hash [HashSize]byte

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the hex-encoded hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into a hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	parsed, err := HexToHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// HexToHash converts a hex string to a Hash.
// Returns an error if the string is not exactly 64 hex characters.
func HexToHash(s string) (Hash, error) {
	if len(s) != 2*HashSize {
		return Hash{}, fmt.Errorf("hash must be %d hex characters, got %d", 2*HashSize, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// FromChainHash converts a btcd hash (internal little-endian order) to
// display order.
func FromChainHash(ch chainhash.Hash) Hash {
	var h Hash
	for i := 0; i < HashSize; i++ {
		h[i] = ch[HashSize-1-i]
	}
	return h
}

// ChainHash converts back to btcd's internal byte order.
func (h Hash) ChainHash() chainhash.Hash {
	var ch chainhash.Hash
	for i := 0; i < HashSize; i++ {
		ch[i] = h[HashSize-1-i]
	}
	return ch
}
