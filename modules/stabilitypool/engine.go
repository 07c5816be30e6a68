package stabilitypool

import (
	"fmt"

	bolt "github.com/rivine/bbolt"

	"github.com/threefoldtech/stabilitypool/modules"
	"github.com/threefoldtech/stabilitypool/persist"
)

// dbMetadataHeader/Version identify this module's bolt database, the way
// every rivine persist.Metadata does for its own file format.
const (
	dbMetadataHeader  = "Stability Pool Consensus Module Database"
	dbMetadataVersion = "1.0.0"
)

// Engine is the concrete modules.StabilityPoolServer implementation: a
// bolt-backed store, an Oracle, and the engine Config. It owns no
// goroutines of its own beyond what the caller starts for the oracle
// prefetcher (see RunOraclePrefetcher).
type Engine struct {
	db     *persist.BoltDatabase
	oracle modules.Oracle
	cfg    Config
	log    *persist.Logger

	// cachedPrice is the single-writer/many-reader cell of spec §5,
	// written only by the oracle prefetcher loop.
	cachedPrice *priceCell

	// proposer holds this guardian's own last-proposed item (spec §4.4).
	proposer proposerState
}

// NewEngine opens (or creates) the module's database at dbPath and
// returns a ready-to-use Engine.
func NewEngine(dbPath string, oracle modules.Oracle, cfg Config, log *persist.Logger) (*Engine, error) {
	if log == nil {
		log = persist.NewNopLogger()
	}
	db, err := persist.OpenDatabase(persist.Metadata{Header: dbMetadataHeader, Version: dbMetadataVersion}, dbPath)
	if err != nil {
		return nil, fmt.Errorf("stabilitypool: open database: %w", err)
	}
	if err := db.Update(createBuckets); err != nil {
		db.Close()
		return nil, fmt.Errorf("stabilitypool: create buckets: %w", err)
	}
	return &Engine{
		db:          db,
		oracle:      oracle,
		cfg:         cfg,
		log:         log,
		cachedPrice: newPriceCell(),
	}, nil
}

// Close releases the underlying database handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

// view and update are thin wrappers around the bolt transaction methods,
// kept as a single choke point so every engine method logs consistently
// on DB error, matching the teacher's habit of never swallowing a
// *bolt.Tx error silently (consensusdb.go, wallet.go).
func (e *Engine) view(fn func(tx *bolt.Tx) error) error {
	if err := e.db.View(fn); err != nil {
		return fmt.Errorf("stabilitypool: view: %w", err)
	}
	return nil
}

func (e *Engine) update(fn func(tx *bolt.Tx) error) error {
	if err := e.db.Update(fn); err != nil {
		return fmt.Errorf("stabilitypool: update: %w", err)
	}
	return nil
}
