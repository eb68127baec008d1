package rpc

import (
	"context"
	"strconv"
)

// ── Address endpoints ───────────────────────────────────────────────────

func (s *Server) handleAddressGetHistory(ctx context.Context, req *Request) (interface{}, *Error) {
	var params HistoryParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if len(params.Addresses) == 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "addresses is required"}
	}

	from, to := 0, s.svc.MaxWindow()
	if params.From != nil {
		from = *params.From
	}
	if params.To != nil {
		to = *params.To
	}

	res, err := s.svc.History(ctx, params.Addresses, from, to)
	if err != nil {
		return nil, queryError(err)
	}
	return res, nil
}

func (s *Server) handleAddressGetBalance(ctx context.Context, req *Request) (interface{}, *Error) {
	var params AddressParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Address == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "address is required"}
	}

	b, err := s.svc.AddressBalance(ctx, params.Address)
	if err != nil {
		return nil, queryError(err)
	}
	p := s.svc.Precision()
	return &BalanceResult{
		Address:               params.Address,
		Balance:               p.Decimal(b.Confirmed),
		BalanceSat:            b.Confirmed,
		UnconfirmedBalance:    p.Decimal(b.Unconfirmed),
		UnconfirmedBalanceSat: b.Unconfirmed,
	}, nil
}

func (s *Server) handleAddressListUnspent(ctx context.Context, req *Request) (interface{}, *Error) {
	var params AddressesParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if len(params.Addresses) == 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "addresses is required"}
	}

	res, err := s.svc.Unspent(ctx, params.Addresses)
	if err != nil {
		return nil, queryError(err)
	}
	return res, nil
}

// ── Fee / transaction endpoints ─────────────────────────────────────────

func (s *Server) handleFeeEstimate(ctx context.Context, req *Request) (interface{}, *Error) {
	var params FeeParam
	if req.Params != nil {
		if err := parseParams(req, &params); err != nil {
			return nil, err
		}
	}

	est, err := s.svc.EstimateFee(ctx, params.Blocks)
	if err != nil {
		return nil, queryError(err)
	}
	return map[string]string{
		strconv.Itoa(est.Blocks): s.svc.Precision().Format(est.Rate),
	}, nil
}

func (s *Server) handleTxBroadcast(ctx context.Context, req *Request) (interface{}, *Error) {
	var params BroadcastParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	txid, err := s.svc.Broadcast(ctx, params.RawTx)
	if err != nil {
		return nil, queryError(err)
	}
	return &BroadcastResult{TxID: txid.String()}, nil
}

// ── Mempool endpoints ───────────────────────────────────────────────────

func (s *Server) handleMempoolGetInfo(_ *Request) (interface{}, *Error) {
	if s.pool == nil {
		return nil, &Error{Code: CodeNotFound, Message: "mempool not available"}
	}
	return &MempoolInfoResult{
		Count:     s.pool.Count(),
		TotalFees: s.svc.Precision().Decimal(s.pool.TotalFees()),
	}, nil
}
