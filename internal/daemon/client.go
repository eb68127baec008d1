// Package daemon is a JSON-RPC client for a bitcoind-compatible coin daemon.
package daemon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/addrindex/internal/log"
	"github.com/Klingon-tech/addrindex/internal/metrics"
	"github.com/Klingon-tech/addrindex/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBatch bounds the number of calls sent in one HTTP request.
const maxBatch = 500

// Config holds the connection settings.
type Config struct {
	URL      string
	User     string
	Password string
	Timeout  time.Duration
	// CacheSize is the number of raw transactions kept in memory; zero
	// disables the cache.
	CacheSize int
	CacheTTL  time.Duration
}

// Client talks to the daemon over HTTP. It is safe for concurrent use.
type Client struct {
	endpoint  string
	user      string
	password  string
	http      *http.Client
	precision types.Precision
	rawCache  *ttlcache.Cache[types.Hash, []byte]
	nextID    atomic.Uint64
	logger    zerolog.Logger
}

// New creates a client. Amounts reported by the daemon are converted to
// minor units at the given precision.
func New(cfg Config, precision types.Precision) *Client {
	metrics.Init()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		endpoint:  cfg.URL,
		user:      cfg.User,
		password:  cfg.Password,
		http:      &http.Client{Timeout: timeout},
		precision: precision,
		logger:    klog.Daemon,
	}
	if cfg.CacheSize > 0 {
		ttl := cfg.CacheTTL
		if ttl <= 0 {
			ttl = ttlcache.NoTTL
		}
		c.rawCache = ttlcache.New[types.Hash, []byte](
			ttlcache.WithTTL[types.Hash, []byte](ttl),
			ttlcache.WithCapacity[types.Hash, []byte](uint64(cfg.CacheSize)),
		)
		go c.rawCache.Start()
	}
	return c
}

// Close stops the cache janitor.
func (c *Client) Close() {
	if c.rawCache != nil {
		c.rawCache.Stop()
	}
}

// RPCError is an error object returned by the daemon.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("daemon error %d: %s", e.Code, e.Message)
}

// Daemon error codes used by callers.
const (
	ErrCodeInvalidAddressOrKey = -5
	ErrCodeVerify              = -25
	ErrCodeVerifyRejected      = -26
	ErrCodeVerifyAlreadyInPool = -27
)

// ErrUnauthorized is returned when the daemon rejects the credentials.
var ErrUnauthorized = errors.New("daemon rejected rpc credentials")

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	Result jsoniter.RawMessage `json:"result"`
	Error  *RPCError           `json:"error"`
	ID     uint64              `json:"id"`
}

// call is one method invocation inside a batch.
type call struct {
	method string
	params []any
}

// Call invokes a single method and decodes its result into result.
// If result is nil the result is discarded.
func (c *Client) Call(ctx context.Context, method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}
	req := request{JSONRPC: "1.0", ID: c.nextID.Add(1), Method: method, Params: params}

	var resp response
	if err := c.post(ctx, method, req, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// batch sends the calls in as few HTTP requests as possible and returns the
// raw results in call order. Any item error fails the whole batch.
func (c *Client) batch(ctx context.Context, calls []call) ([]jsoniter.RawMessage, error) {
	results := make([]jsoniter.RawMessage, 0, len(calls))
	for start := 0; start < len(calls); start += maxBatch {
		end := min(start+maxBatch, len(calls))
		chunk, err := c.batchChunk(ctx, calls[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, chunk...)
	}
	return results, nil
}

func (c *Client) batchChunk(ctx context.Context, calls []call) ([]jsoniter.RawMessage, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	reqs := make([]request, len(calls))
	order := make(map[uint64]int, len(calls))
	for i, cl := range calls {
		params := cl.params
		if params == nil {
			params = []any{}
		}
		id := c.nextID.Add(1)
		reqs[i] = request{JSONRPC: "1.0", ID: id, Method: cl.method, Params: params}
		order[id] = i
	}

	var resps []response
	if err := c.post(ctx, calls[0].method, reqs, &resps); err != nil {
		return nil, err
	}
	if len(resps) != len(calls) {
		return nil, fmt.Errorf("daemon batch: sent %d calls, got %d replies", len(calls), len(resps))
	}

	// Replies may come back in any order.
	sort.Slice(resps, func(i, j int) bool { return order[resps[i].ID] < order[resps[j].ID] })
	out := make([]jsoniter.RawMessage, len(calls))
	for i, r := range resps {
		idx, ok := order[r.ID]
		if !ok || idx != i {
			return nil, fmt.Errorf("daemon batch: unexpected reply id %d", r.ID)
		}
		if r.Error != nil {
			return nil, fmt.Errorf("%s: %w", calls[i].method, r.Error)
		}
		out[i] = r.Result
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, method string, payload, into any) (err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.DaemonRequests.WithLabelValues(method, status).Inc()
		metrics.DaemonDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.user != "" || c.password != "" {
		httpReq.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	// bitcoind answers RPC errors with a non-200 status and a JSON body.
	if err := json.Unmarshal(data, into); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("daemon http %d: %s", resp.StatusCode, bytes.TrimSpace(data))
		}
		return fmt.Errorf("decode response: %w", err)
	}

	c.logger.Trace().Str("method", method).Dur("took", time.Since(start)).Msg("daemon call")
	return nil
}
