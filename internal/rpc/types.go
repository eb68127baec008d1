package rpc

import (
	"github.com/Klingon-tech/addrindex/pkg/types"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeUpstream       = -32001
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// HistoryParam is used by address_getHistory. Missing bounds default to
// the first page.
type HistoryParam struct {
	Addresses []string `json:"addresses"`
	From      *int     `json:"from,omitempty"`
	To        *int     `json:"to,omitempty"`
}

// AddressParam is used by address_getBalance.
type AddressParam struct {
	Address string `json:"address"`
}

// AddressesParam is used by address_listUnspent.
type AddressesParam struct {
	Addresses []string `json:"addresses"`
}

// FeeParam is used by fee_estimate.
type FeeParam struct {
	Blocks int `json:"blocks"`
}

// BroadcastParam is used by tx_broadcast.
type BroadcastParam struct {
	RawTx string `json:"raw_tx"`
}

// ── Result types ────────────────────────────────────────────────────────

// BalanceResult is returned by address_getBalance.
type BalanceResult struct {
	Address               string        `json:"addrStr"`
	Balance               types.Decimal `json:"balance"`
	BalanceSat            types.Amount  `json:"balanceSat"`
	UnconfirmedBalance    types.Decimal `json:"unconfirmedBalance"`
	UnconfirmedBalanceSat types.Amount  `json:"unconfirmedBalanceSat"`
}

// BroadcastResult is returned by tx_broadcast.
type BroadcastResult struct {
	TxID string `json:"txid"`
}

// MempoolInfoResult is returned by mempool_getInfo.
type MempoolInfoResult struct {
	Count     int           `json:"count"`
	TotalFees types.Decimal `json:"total_fees"`
}
