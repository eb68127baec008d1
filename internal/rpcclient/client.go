// Package rpcclient provides a JSON-RPC 2.0 client for addrindexd.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Klingon-tech/addrindex/internal/query"
	"github.com/Klingon-tech/addrindex/internal/rpc"
)

// Client is a JSON-RPC 2.0 HTTP client.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Int64
}

// New creates a new RPC client targeting the given endpoint URL.
func New(endpoint string) *Client {
	return NewWithTimeout(endpoint, 30*time.Second)
}

// NewWithTimeout creates a new RPC client with a custom HTTP timeout.
func NewWithTimeout(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// request is a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int64       `json:"id"`
}

// response is a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

// rpcError is a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is returned when the server responds with an error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call invokes a JSON-RPC method and unmarshals the result into the provided pointer.
// If result is nil, the response result is discarded.
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) error {
	req := request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}

	return nil
}

// History fetches the page [from, to) of each address's history. Nil
// bounds use the server defaults.
func (c *Client) History(ctx context.Context, addresses []string, from, to *int) ([]*query.AddressHistory, error) {
	var res []*query.AddressHistory
	err := c.Call(ctx, "address_getHistory", rpc.HistoryParam{Addresses: addresses, From: from, To: to}, &res)
	return res, err
}

// Balance fetches the confirmed and pending balance of address.
func (c *Client) Balance(ctx context.Context, address string) (*rpc.BalanceResult, error) {
	var res rpc.BalanceResult
	if err := c.Call(ctx, "address_getBalance", rpc.AddressParam{Address: address}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Unspent lists the spendable outputs of addresses.
func (c *Client) Unspent(ctx context.Context, addresses []string) ([]*query.UnspentEntry, error) {
	var res []*query.UnspentEntry
	err := c.Call(ctx, "address_listUnspent", rpc.AddressesParam{Addresses: addresses}, &res)
	return res, err
}

// EstimateFee returns the fee rate keyed by block target. A non-positive
// target uses the server default.
func (c *Client) EstimateFee(ctx context.Context, blocks int) (map[string]string, error) {
	var params interface{}
	if blocks > 0 {
		params = rpc.FeeParam{Blocks: blocks}
	}
	var res map[string]string
	err := c.Call(ctx, "fee_estimate", params, &res)
	return res, err
}

// Broadcast submits a hex encoded transaction and returns its id.
func (c *Client) Broadcast(ctx context.Context, rawHex string) (string, error) {
	var res rpc.BroadcastResult
	if err := c.Call(ctx, "tx_broadcast", rpc.BroadcastParam{RawTx: rawHex}, &res); err != nil {
		return "", err
	}
	return res.TxID, nil
}

// MempoolInfo reports the size of the server's mempool mirror.
func (c *Client) MempoolInfo(ctx context.Context) (*rpc.MempoolInfoResult, error) {
	var res rpc.MempoolInfoResult
	if err := c.Call(ctx, "mempool_getInfo", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
