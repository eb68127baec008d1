package query

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/Klingon-tech/addrindex/pkg/types"
)

// ResolveAddress maps an address to the lookup key of its output script.
func ResolveAddress(params *chaincfg.Params, address string) (types.LookupKey, error) {
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return types.LookupKey{}, fmt.Errorf("%w: %s is not a valid address", ErrInvalidAddress, address)
	}
	if !addr.IsForNet(params) {
		return types.LookupKey{}, fmt.Errorf("%w: %s is not a %s address", ErrInvalidAddress, address, params.Name)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return types.LookupKey{}, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, address, err)
	}
	return types.LookupKeyFromScript(script), nil
}

// ResolveAddress resolves against the engine's network.
func (e *Engine) ResolveAddress(address string) (types.LookupKey, error) {
	return ResolveAddress(e.params, address)
}

// resolveAll deduplicates addresses, keeping first occurrences, and
// resolves every one of them.
func (e *Engine) resolveAll(addresses []string) ([]string, []types.LookupKey, error) {
	seen := make(map[string]struct{}, len(addresses))
	uniq := make([]string, 0, len(addresses))
	keys := make([]types.LookupKey, 0, len(addresses))
	for _, a := range addresses {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		key, err := e.ResolveAddress(a)
		if err != nil {
			return nil, nil, err
		}
		uniq = append(uniq, a)
		keys = append(keys, key)
	}
	return uniq, keys, nil
}
