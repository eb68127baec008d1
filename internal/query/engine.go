// Package query builds address history, balance and unspent listings from
// the daemon, the confirmed index and the mirrored mempool.
package query

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/addrindex/internal/log"
	"github.com/Klingon-tech/addrindex/internal/metrics"
	"github.com/Klingon-tech/addrindex/pkg/types"
)

// DefaultMaxWindow is the largest history page served per address.
const DefaultMaxWindow = 50

// DefaultFeeTarget is the confirmation target used when none is given.
const DefaultFeeTarget = 2

// Config holds engine settings.
type Config struct {
	Params    *chaincfg.Params
	Precision types.Precision
	MaxWindow int
}

// Engine answers address queries. It holds no per-request state and is
// safe for concurrent use.
type Engine struct {
	params    *chaincfg.Params
	precision types.Precision
	maxWindow int

	daemon   Daemon
	index    Index
	mempool  Mempool
	snapshot Snapshot

	logger zerolog.Logger
}

// NewEngine creates an engine over the given collaborators.
func NewEngine(cfg Config, daemon Daemon, index Index, mempool Mempool, snapshot Snapshot) *Engine {
	metrics.Init()

	params := cfg.Params
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	precision := cfg.Precision
	if precision.PerUnit == 0 {
		precision = types.DefaultPrecision
	}
	maxWindow := cfg.MaxWindow
	if maxWindow <= 0 {
		maxWindow = DefaultMaxWindow
	}
	return &Engine{
		params:    params,
		precision: precision,
		maxWindow: maxWindow,
		daemon:    daemon,
		index:     index,
		mempool:   mempool,
		snapshot:  snapshot,
		logger:    klog.Query,
	}
}

// Precision returns the coin precision amounts are rendered at.
func (e *Engine) Precision() types.Precision { return e.precision }

// MaxWindow returns the page size limit.
func (e *Engine) MaxWindow() int { return e.maxWindow }

// observe records the outcome of a top-level operation.
func (e *Engine) observe(op string, start time.Time, err error) {
	took := time.Since(start)
	metrics.QueryDuration.WithLabelValues(op).Observe(took.Seconds())
	if err != nil {
		class := Class(err)
		metrics.QueryErrors.WithLabelValues(op, class).Inc()
		ev := e.logger.Debug()
		if class == "internal" || class == "upstream" {
			ev = e.logger.Warn()
		}
		ev.Str("op", op).Str("class", class).Err(err).Dur("took", took).Msg("Query failed")
		return
	}
	e.logger.Trace().Str("op", op).Dur("took", took).Msg("Query served")
}
