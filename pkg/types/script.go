package types

// ScriptKind classifies how a destination script was decoded.
type ScriptKind uint8

// Script decode kinds.
const (
	// ScriptUnresolved has no recoverable destination (data carriers,
	// bare multisig without addresses, unknown templates).
	ScriptUnresolved ScriptKind = iota
	// ScriptStandard decoded to one or more addresses.
	ScriptStandard
	// ScriptSegwitNonStandard was classified "nonstandard" but carries a
	// segwit-derived address list.
	ScriptSegwitNonStandard
)

// String returns the kind name.
func (k ScriptKind) String() string {
	switch k {
	case ScriptStandard:
		return "standard"
	case ScriptSegwitNonStandard:
		return "segwit-nonstandard"
	default:
		return "unresolved"
	}
}

// ScriptDecodeResult is the decoded form of one destination script.
type ScriptDecodeResult struct {
	Kind      ScriptKind
	addresses []string
}

// Standard builds a result for a script with ordinary destinations.
func Standard(addresses ...string) ScriptDecodeResult {
	if len(addresses) == 0 {
		return Unresolved()
	}
	return ScriptDecodeResult{Kind: ScriptStandard, addresses: addresses}
}

// SegwitNonStandard builds a result for a non-standard script that still
// exposes segwit addresses.
func SegwitNonStandard(addresses ...string) ScriptDecodeResult {
	if len(addresses) == 0 {
		return Unresolved()
	}
	return ScriptDecodeResult{Kind: ScriptSegwitNonStandard, addresses: addresses}
}

// Unresolved builds a result with no destination.
func Unresolved() ScriptDecodeResult {
	return ScriptDecodeResult{Kind: ScriptUnresolved}
}

// Destinations returns the owning addresses, or nil when unresolved.
func (r ScriptDecodeResult) Destinations() []string {
	if r.Kind == ScriptUnresolved {
		return nil
	}
	out := make([]string, len(r.addresses))
	copy(out, r.addresses)
	return out
}

// Resolved reports whether the script has at least one destination.
func (r ScriptDecodeResult) Resolved() bool {
	return r.Kind != ScriptUnresolved && len(r.addresses) > 0
}
