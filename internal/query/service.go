package query

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Klingon-tech/addrindex/internal/daemon"
	"github.com/Klingon-tech/addrindex/pkg/types"
)

// FeeEstimate is the fee rate, per 1000 virtual bytes, for confirmation
// within Blocks blocks. Rate is negative when the daemon has no estimate.
type FeeEstimate struct {
	Blocks int
	Rate   types.Amount
}

// EstimateFee asks the daemon for a fee rate. A non-positive target means
// DefaultFeeTarget.
func (e *Engine) EstimateFee(ctx context.Context, blocks int) (_ *FeeEstimate, err error) {
	defer func(start time.Time) { e.observe("estimatefee", start, err) }(time.Now())

	if blocks <= 0 {
		blocks = DefaultFeeTarget
	}
	rate, err := e.daemon.EstimateFee(ctx, blocks)
	if err != nil {
		return nil, upstream("daemon", err)
	}
	return &FeeEstimate{Blocks: blocks, Rate: rate}, nil
}

// Broadcast submits a raw transaction and returns its id. A daemon
// rejection is reported as ErrTxRejected carrying the daemon's reason.
func (e *Engine) Broadcast(ctx context.Context, rawHex string) (_ types.Hash, err error) {
	defer func(start time.Time) { e.observe("broadcast", start, err) }(time.Now())

	rawHex = strings.TrimSpace(rawHex)
	if rawHex == "" {
		return types.Hash{}, fmt.Errorf("%w: empty", ErrInvalidTransaction)
	}
	if _, err := hex.DecodeString(rawHex); err != nil {
		return types.Hash{}, fmt.Errorf("%w: not hex", ErrInvalidTransaction)
	}

	txid, err := e.daemon.SendRawTransaction(ctx, rawHex)
	if err != nil {
		var rpcErr *daemon.RPCError
		if errors.As(err, &rpcErr) {
			return types.Hash{}, fmt.Errorf("%w: %s", ErrTxRejected, rpcErr.Message)
		}
		return types.Hash{}, upstream("daemon", err)
	}
	e.logger.Info().Str("txid", txid.String()).Msg("Transaction broadcast")
	return txid, nil
}
