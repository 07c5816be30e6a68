package stabilitypool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/threefoldtech/stabilitypool/modules"
	"github.com/threefoldtech/stabilitypool/types"
)

// priceSource is one upstream HTTP price feed the AggregateOracle polls.
// The response is expected to be a JSON object {"price": <fiat integer>}
// in the module's configured fiat base unit (spec §4.2: "Price values
// MUST be expressed in the same fiat base-unit the module was
// configured with").
type priceSource struct {
	Name string
	URL  string
}

// sourceHealth tracks consecutive failures for one source (spec
// SUPPLEMENT 2, recovered from the original aggregate oracle): after
// maxConsecutiveFailures the source is excluded from the median for
// cooldown, then retried.
type sourceHealth struct {
	consecutiveFailures int
	excludedUntil       time.Time
}

const (
	maxConsecutiveFailures = 3
	sourceCooldown         = 2 * time.Minute
)

// AggregateOracle fans out to N HTTP price sources concurrently and
// reduces via median (spec §4.2, "aggregate of multiple sources with
// median reduction"). Concurrency uses golang.org/x/sync/errgroup, the
// fan-out/collect primitive the wider example corpus's Ethereum-family
// clients depend on for exactly this shape of "many independent fallible
// calls, combine results".
type AggregateOracle struct {
	client  *http.Client
	sources []priceSource

	mu     sync.Mutex
	health map[string]*sourceHealth
}

// NewAggregateOracle builds an oracle over the given sources, each
// queried with the given per-request timeout.
func NewAggregateOracle(sources []priceSource, timeout time.Duration) *AggregateOracle {
	return &AggregateOracle{
		client:  &http.Client{Timeout: timeout},
		sources: sources,
		health:  make(map[string]*sourceHealth, len(sources)),
	}
}

// defaultSourceTimeout is the per-request timeout NewAggregateOracleFromURLs
// applies to every source, matching the teacher's modules/gateway dial
// timeout used for analogous peer-health-tracked fan-out.
const defaultSourceTimeout = 10 * time.Second

// NewAggregateOracleFromURLs builds an AggregateOracle over a plain list of
// source URLs (the name and URL are the same string), for callers outside
// this package — e.g. the daemon wiring layer — that only have config
// strings and no reason to depend on the unexported priceSource shape.
func NewAggregateOracleFromURLs(urls []string) *AggregateOracle {
	sources := make([]priceSource, len(urls))
	for i, u := range urls {
		sources[i] = priceSource{Name: u, URL: u}
	}
	return NewAggregateOracle(sources, defaultSourceTimeout)
}

type sourceResult struct {
	name  string
	price types.FiatAmount
	err   error
}

// GetPrice implements modules.Oracle.
func (a *AggregateOracle) GetPrice(ctx context.Context) (modules.PriceObservation, error) {
	active := a.activeSources()
	if len(active) == 0 {
		return modules.PriceObservation{}, fmt.Errorf("aggregate oracle: no sources available (all in cooldown)")
	}

	results := make([]sourceResult, len(active))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range active {
		i, src := i, src
		g.Go(func() error {
			price, err := a.fetchOne(gctx, src)
			results[i] = sourceResult{name: src.Name, price: price, err: err}
			return nil
		})
	}
	// Errors from individual fetches are per-source and do not abort the
	// group: every goroutine returns nil, so a fetch cut short by a canceled
	// context is recorded as that source's error and Wait reports none.
	if err := g.Wait(); err != nil {
		return modules.PriceObservation{}, err
	}

	var prices []types.FiatAmount
	for _, r := range results {
		a.recordResult(r)
		if r.err == nil {
			prices = append(prices, r.price)
		}
	}
	if len(prices) == 0 {
		return modules.PriceObservation{}, fmt.Errorf("aggregate oracle: every source failed")
	}
	return modules.PriceObservation{Time: time.Now().UTC(), Price: medianFiat(prices)}, nil
}

func (a *AggregateOracle) fetchOne(ctx context.Context, src priceSource) (types.FiatAmount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("aggregate oracle: source %s: status %d", src.Name, resp.StatusCode)
	}
	var body struct {
		Price uint64 `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("aggregate oracle: source %s: decode: %w", src.Name, err)
	}
	return types.FiatAmount(body.Price), nil
}

// activeSources returns every source not currently in cooldown.
func (a *AggregateOracle) activeSources() []priceSource {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	active := make([]priceSource, 0, len(a.sources))
	for _, src := range a.sources {
		h := a.health[src.Name]
		if h != nil && now.Before(h.excludedUntil) {
			continue
		}
		active = append(active, src)
	}
	return active
}

// recordResult updates a source's consecutive-failure count, excluding it
// for sourceCooldown once it crosses maxConsecutiveFailures.
func (a *AggregateOracle) recordResult(r sourceResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := a.health[r.name]
	if h == nil {
		h = &sourceHealth{}
		a.health[r.name] = h
	}
	if r.err == nil {
		h.consecutiveFailures = 0
		return
	}
	h.consecutiveFailures++
	if h.consecutiveFailures >= maxConsecutiveFailures {
		h.excludedUntil = time.Now().Add(sourceCooldown)
	}
}

// medianFiat returns the median of a non-empty slice, matching the
// guardian-vote median reduction of spec §4.4 (odd count: middle value;
// even count: lower of the two middle values, floor-biased like every
// other division in this module).
func medianFiat(prices []types.FiatAmount) types.FiatAmount {
	sorted := append([]types.FiatAmount(nil), prices...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1]
}
