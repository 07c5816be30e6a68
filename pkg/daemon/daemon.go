package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/threefoldtech/stabilitypool/modules"
	"github.com/threefoldtech/stabilitypool/modules/stabilitypool"
	"github.com/threefoldtech/stabilitypool/persist"
	"github.com/threefoldtech/stabilitypool/pkg/api"
	"github.com/threefoldtech/stabilitypool/types"
)

// Daemon owns one guardian's engine, oracle prefetcher, and HTTP server,
// grounded on the teacher's pkg/daemon.Server plus the single-module
// subset of pkg/daemon.daemon's module construction order (gateway ->
// consensus -> ... here collapses to just: store -> oracle -> engine ->
// API, since this module has no peer-to-peer layer of its own).
type Daemon struct {
	engine *stabilitypool.Engine
	logger *persist.Logger

	httpServer *http.Server
	listener   net.Listener

	prefetcherDone chan struct{}
	cancelPrefetch context.CancelFunc
}

// New constructs and starts a Daemon from a finalized Config: it opens the
// persistent store, builds the selected Oracle implementation, constructs
// the engine, starts the background oracle prefetcher, and binds the HTTP
// API listener. The caller must call Close to shut everything down in
// reverse order.
func New(cfg Config) (*Daemon, error) {
	persistDir := filepath.Join(cfg.RootPersistentDir, modules.StabilityPoolDir)
	if err := os.MkdirAll(persistDir, 0750); err != nil {
		return nil, fmt.Errorf("daemon: create persistent directory: %w", err)
	}

	var logger *persist.Logger
	var err error
	if cfg.VerboseLogging {
		logger, err = persist.NewFileLogger(filepath.Join(persistDir, "stabilitypool.log"))
	} else {
		logger = persist.NewNopLogger()
	}
	if err != nil {
		return nil, fmt.Errorf("daemon: open logger: %w", err)
	}

	oracle, err := buildOracle(cfg)
	if err != nil {
		return nil, fmt.Errorf("daemon: build oracle: %w", err)
	}

	dbPath := filepath.Join(persistDir, "consensus.db")
	engine, err := stabilitypool.NewEngine(dbPath, oracle, cfg.Module, logger)
	if err != nil {
		return nil, fmt.Errorf("daemon: construct engine: %w", err)
	}

	prefetchCtx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		engine:         engine,
		logger:         logger,
		prefetcherDone: make(chan struct{}),
		cancelPrefetch: cancel,
	}
	go func() {
		defer close(d.prefetcherDone)
		engine.RunOraclePrefetcher(prefetchCtx)
	}()

	listener, err := net.Listen("tcp", cfg.APIAddr)
	if err != nil {
		cancel()
		engine.Close()
		return nil, fmt.Errorf("daemon: listen on %s: %w", cfg.APIAddr, err)
	}
	router := api.NewServeMux()
	api.RegisterStabilityPoolRoutes(router, engine)
	d.listener = listener
	d.httpServer = &http.Server{Handler: router}
	go d.httpServer.Serve(listener)

	return d, nil
}

// Close stops the oracle prefetcher, shuts down the HTTP listener, and
// closes the underlying persistent store, in that order.
func (d *Daemon) Close() error {
	d.cancelPrefetch()
	<-d.prefetcherDone

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = d.httpServer.Shutdown(ctx)

	return d.engine.Close()
}

// Engine returns the underlying engine, for callers (e.g. the surrounding
// federation's transaction applier) that need direct access to
// modules.StabilityPoolServer rather than going over HTTP.
func (d *Daemon) Engine() *stabilitypool.Engine { return d.engine }

func buildOracle(cfg Config) (modules.Oracle, error) {
	switch cfg.OracleMode {
	case OracleModeAggregate:
		return stabilitypool.NewAggregateOracleFromURLs(cfg.AggregateOracleSources), nil
	case OracleModeMock:
		return stabilitypool.NewFixedMockOracle(types.FiatAmount(cfg.MockOraclePriceFiat)), nil
	default:
		return nil, fmt.Errorf("unrecognized oracle-config %q", cfg.OracleMode)
	}
}
