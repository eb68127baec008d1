package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// LookupKeySize is the length of a LookupKey in bytes.
const LookupKeySize = sha256.Size

// LookupKey identifies an address in the index and the mempool mirror. It is
// the SHA-256 of the address's output script (the Electrum "scripthash").
type LookupKey [LookupKeySize]byte

// LookupKeyFromScript derives the key for an output script.
func LookupKeyFromScript(pkScript []byte) LookupKey {
	return LookupKey(sha256.Sum256(pkScript))
}

// String returns the key in Electrum display form (byte-reversed hex).
func (k LookupKey) String() string {
	var rev LookupKey
	for i := range k {
		rev[i] = k[LookupKeySize-1-i]
	}
	return hex.EncodeToString(rev[:])
}

// LookupKeyFromString parses the display form produced by String.
func LookupKeyFromString(s string) (LookupKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return LookupKey{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != LookupKeySize {
		return LookupKey{}, fmt.Errorf("lookup key must be %d bytes, got %d", LookupKeySize, len(b))
	}
	var k LookupKey
	for i := range k {
		k[i] = b[LookupKeySize-1-i]
	}
	return k, nil
}

// MarshalJSON encodes the key in display form.
func (k LookupKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a key in display form.
func (k *LookupKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := LookupKeyFromString(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
