package rest

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// splitAddrs splits a comma separated path segment, dropping empty parts.
func splitAddrs(raw string) []string {
	var out []string
	for _, a := range strings.Split(raw, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// intParam reads a query parameter, falling back to def when it is absent
// or not an integer.
func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	addrs := splitAddrs(mux.Vars(r)["addrs"])
	if len(addrs) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	from := intParam(r, "from", 0)
	to := intParam(r, "to", s.svc.MaxWindow())

	res, err := s.svc.History(r.Context(), addrs, from, to)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, res)
}

type addressResponse struct {
	Address               string      `json:"addrStr"`
	Balance               interface{} `json:"balance"`
	BalanceSat            int64       `json:"balanceSat"`
	UnconfirmedBalance    interface{} `json:"unconfirmedBalance"`
	UnconfirmedBalanceSat int64       `json:"unconfirmedBalanceSat"`
}

func (s *Server) handleAddress(w http.ResponseWriter, r *http.Request) {
	addr := strings.TrimSpace(mux.Vars(r)["addr"])
	if addr == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	b, err := s.svc.AddressBalance(r.Context(), addr)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	p := s.svc.Precision()
	writeJSON(w, addressResponse{
		Address:               addr,
		Balance:               p.Decimal(b.Confirmed),
		BalanceSat:            int64(b.Confirmed),
		UnconfirmedBalance:    p.Decimal(b.Unconfirmed),
		UnconfirmedBalanceSat: int64(b.Unconfirmed),
	})
}

func (s *Server) handleUnspent(w http.ResponseWriter, r *http.Request) {
	addrs := splitAddrs(mux.Vars(r)["addrs"])
	if len(addrs) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	res, err := s.svc.Unspent(r.Context(), addrs)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleEstimateFee(w http.ResponseWriter, r *http.Request) {
	est, err := s.svc.EstimateFee(r.Context(), intParam(r, "nbBlocks", 0))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, map[string]string{
		strconv.Itoa(est.Blocks): s.svc.Precision().Format(est.Rate),
	})
}

type sendTxRequest struct {
	RawTx string `json:"rawtx"`
}

func (s *Server) handleSendTx(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeText(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxBodySize {
		writeText(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	var req sendTxRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeText(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	txid, err := s.svc.Broadcast(r.Context(), req.RawTx)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, map[string]string{"txid": txid.String()})
}
