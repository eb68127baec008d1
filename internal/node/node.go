// Package node wires the query service together so it can be embedded in
// any binary.
package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/addrindex/config"
	"github.com/Klingon-tech/addrindex/internal/daemon"
	"github.com/Klingon-tech/addrindex/internal/index"
	klog "github.com/Klingon-tech/addrindex/internal/log"
	"github.com/Klingon-tech/addrindex/internal/mempool"
	"github.com/Klingon-tech/addrindex/internal/metrics"
	"github.com/Klingon-tech/addrindex/internal/query"
	"github.com/Klingon-tech/addrindex/internal/rest"
	"github.com/Klingon-tech/addrindex/internal/rpc"
	"github.com/Klingon-tech/addrindex/internal/storage"
)

// Node is a fully-initialized query service.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Core
	db        storage.DB
	index     *index.Store
	daemon    *daemon.Client
	pool      *mempool.Pool
	refresher *mempool.Refresher
	engine    *query.Engine

	// Servers
	rpcServer  *rpc.Server
	restServer *rest.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and initializes a new Node. It opens the index, builds the
// daemon client and the engine, and binds the configured listeners, but
// does NOT start the mempool refresher. Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := expandHome(cfg.Log.File)
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "addrindex.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithNetwork(klog.Node, string(cfg.Network))
	metrics.Init()

	logger.Info().
		Str("daemon", cfg.Daemon.URL).
		Msg("Starting address index service")

	// ── 2. Open the index ───────────────────────────────────────────
	db, err := openIndex(cfg)
	if err != nil {
		return nil, err
	}
	idx := index.NewStore(db)
	logger.Info().
		Str("path", expandHome(cfg.IndexDir())).
		Bool("read_only", cfg.Index.ReadOnly).
		Msg("Index opened")

	// ── 3. Daemon client ────────────────────────────────────────────
	precision := cfg.Precision()
	dc := daemon.New(daemon.Config{
		URL:       cfg.Daemon.URL,
		User:      cfg.Daemon.User,
		Password:  cfg.Daemon.Password,
		Timeout:   cfg.Daemon.Timeout,
		CacheSize: cfg.Daemon.CacheSize,
		CacheTTL:  cfg.Daemon.CacheTTL,
	}, precision)

	// ── 4. Mempool mirror ───────────────────────────────────────────
	pool := mempool.New()
	refresher := mempool.NewRefresher(pool, dc, idx)

	// ── 5. Query engine ─────────────────────────────────────────────
	engine := query.NewEngine(query.Config{
		Params:    cfg.ChainParams(),
		Precision: precision,
		MaxWindow: cfg.Query.MaxWindow,
	}, dc, idx, pool, pool)

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		index:     idx,
		daemon:    dc,
		pool:      pool,
		refresher: refresher,
		engine:    engine,
		ctx:       ctx,
		cancel:    cancel,
	}

	// ── 6. RPC server ───────────────────────────────────────────────
	if cfg.RPC.Enabled {
		addr := listenAddr(cfg.RPC.Addr, cfg.RPC.Port)
		n.rpcServer = rpc.New(addr, engine, pool, cfg.RPC)
		if err := n.rpcServer.Start(); err != nil {
			n.Stop()
			return nil, fmt.Errorf("start rpc server: %w", err)
		}
		logger.Info().Str("addr", n.rpcServer.Addr()).Msg("RPC server listening")
	} else {
		logger.Warn().Msg("RPC disabled by config")
	}

	// ── 7. REST server ──────────────────────────────────────────────
	if cfg.REST.Enabled {
		addr := listenAddr(cfg.REST.Addr, cfg.REST.Port)
		n.restServer = rest.New(addr, engine, cfg.Metrics.Enabled)
		if err := n.restServer.Start(); err != nil {
			n.Stop()
			return nil, fmt.Errorf("start rest server: %w", err)
		}
		logger.Info().
			Str("addr", n.restServer.Addr()).
			Bool("metrics", cfg.Metrics.Enabled).
			Msg("REST server listening")
	}

	return n, nil
}

func openIndex(cfg *config.Config) (storage.DB, error) {
	path := expandHome(cfg.IndexDir())
	if !cfg.Index.ReadOnly {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("creating index dir: %w", err)
		}
	}
	db, err := storage.OpenBadger(path, storage.BadgerOptions{ReadOnly: cfg.Index.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("open index at %s: %w", path, err)
	}
	return db, nil
}

// Start checks the daemon and launches the mempool refresher.
func (n *Node) Start() error {
	ctx, cancel := context.WithTimeout(n.ctx, 10*time.Second)
	height, err := n.daemon.GetBlockCount(ctx)
	cancel()
	if err != nil {
		// The daemon may still be starting; queries fail with upstream
		// errors until it answers.
		n.logger.Warn().Err(err).Msg("Daemon not reachable")
	}

	tip, err := n.index.Tip()
	if err != nil {
		return fmt.Errorf("read index tip: %w", err)
	}
	if tip >= 0 && height > 0 && tip < height {
		n.logger.Warn().
			Int64("index_tip", tip).
			Int64("daemon_height", height).
			Msg("Index is behind the daemon")
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.refresher.Run(n.ctx, n.cfg.Mempool.Refresh)
	}()

	n.logger.Info().
		Int64("daemon_height", height).
		Int64("index_tip", tip).
		Dur("mempool_refresh", n.cfg.Mempool.Refresh).
		Msg("Node started successfully")
	return nil
}

// Stop performs graceful shutdown in reverse order.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()

	if n.restServer != nil {
		n.restServer.Stop()
	}
	if n.rpcServer != nil {
		n.rpcServer.Stop()
	}
	if n.daemon != nil {
		n.daemon.Close()
	}
	if n.db != nil {
		n.db.Close()
	}

	n.logger.Info().Msg("Goodbye!")
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// RESTAddr returns the address the REST server is listening on.
func (n *Node) RESTAddr() string {
	if n.restServer == nil {
		return ""
	}
	return n.restServer.Addr()
}

// Engine exposes the query engine.
func (n *Node) Engine() *query.Engine {
	return n.engine
}

// Index exposes the address index. The node only reads it: blocks are
// written by an external indexer (index.Store.ApplyBlock) sharing the
// database, or by an embedding binary through this accessor.
func (n *Node) Index() *index.Store {
	return n.index
}
