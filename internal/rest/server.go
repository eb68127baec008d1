// Package rest serves the address queries over plain HTTP paths.
package rest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/addrindex/internal/log"
	"github.com/Klingon-tech/addrindex/internal/metrics"
	"github.com/Klingon-tech/addrindex/internal/query"
	"github.com/Klingon-tech/addrindex/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodySize caps POST bodies; raw transactions are hex so this allows
// about 512 kB of serialized transaction.
const maxBodySize = 1 << 20

// Service is the query surface served over REST. *query.Engine implements it.
type Service interface {
	History(ctx context.Context, addresses []string, from, to int) ([]*query.AddressHistory, error)
	AddressBalance(ctx context.Context, address string) (*query.Balance, error)
	Unspent(ctx context.Context, addresses []string) ([]*query.UnspentEntry, error)
	EstimateFee(ctx context.Context, blocks int) (*query.FeeEstimate, error)
	Broadcast(ctx context.Context, rawHex string) (types.Hash, error)
	Precision() types.Precision
	MaxWindow() int
}

// Server is the REST HTTP server.
type Server struct {
	addr   string
	svc    Service
	router *mux.Router
	server *http.Server
	logger zerolog.Logger
	ln     net.Listener
}

// New creates a REST server. When withMetrics is set the Prometheus
// registry is served on /metrics.
func New(addr string, svc Service, withMetrics bool) *Server {
	metrics.Init()

	s := &Server{
		addr:   addr,
		svc:    svc,
		router: mux.NewRouter(),
		logger: klog.REST,
	}

	s.router.HandleFunc("/history/{addrs}", s.handleHistory).Methods(http.MethodGet)
	s.router.HandleFunc("/address/{addr}", s.handleAddress).Methods(http.MethodGet)
	s.router.HandleFunc("/utxo/{addrs}", s.handleUnspent).Methods(http.MethodGet)
	s.router.HandleFunc("/estimatefee", s.handleEstimateFee).Methods(http.MethodGet)
	s.router.HandleFunc("/sendtx", s.handleSendTx).Methods(http.MethodPost)
	if withMetrics {
		s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}
	s.router.Use(s.logRequests)

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rest listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("REST server error")
		}
	}()
	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequests.WithLabelValues("rest", route, strconv.Itoa(rec.status)).Inc()
		s.logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("REST request")
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

// writeText replies with a plain-text error body.
func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, msg)
}

// writeQueryError maps an engine error onto an HTTP status.
func writeQueryError(w http.ResponseWriter, err error) {
	switch query.Class(err) {
	case "client":
		writeText(w, http.StatusBadRequest, err.Error())
	case "upstream":
		writeText(w, http.StatusBadGateway, err.Error())
	case "canceled":
		writeText(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeText(w, http.StatusInternalServerError, err.Error())
	}
}
