package stabilitypool

import (
	"context"
	"sync"
	"time"

	"github.com/threefoldtech/stabilitypool/modules"
	"github.com/threefoldtech/stabilitypool/types"
)

// MockOracle returns a configured fixed or scripted price sequence,
// grounded on the teacher's parallel-file convention of shipping a
// deterministic stand-in for an external dependency (crypto/signatures
// vs. a hypothetical signatures_mock). Used by tests and by
// oracle_config = "Mock" (spec §6).
type MockOracle struct {
	mu       sync.Mutex
	prices   []types.FiatAmount
	index    int
	fixed    bool
	fail     bool
}

// NewFixedMockOracle returns an oracle that always reports price.
func NewFixedMockOracle(price types.FiatAmount) *MockOracle {
	return &MockOracle{prices: []types.FiatAmount{price}, fixed: true}
}

// NewScriptedMockOracle returns an oracle that reports each price in
// sequence, repeating the last one once exhausted.
func NewScriptedMockOracle(prices ...types.FiatAmount) *MockOracle {
	return &MockOracle{prices: prices}
}

// SetFailing makes every subsequent GetPrice call return an error,
// simulating an oracle outage for proposer-abstention tests (spec §8,
// "Consensus proposal before oracle first-success: no proposal emitted").
func (m *MockOracle) SetFailing(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

// GetPrice implements modules.Oracle.
func (m *MockOracle) GetPrice(ctx context.Context) (modules.PriceObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return modules.PriceObservation{}, errMockOracleFailing
	}
	if len(m.prices) == 0 {
		return modules.PriceObservation{}, errMockOracleFailing
	}
	price := m.prices[m.index]
	if !m.fixed && m.index < len(m.prices)-1 {
		m.index++
	}
	return modules.PriceObservation{Time: time.Now().UTC(), Price: price}, nil
}

var errMockOracleFailing = mockOracleError("mock oracle: configured to fail")

type mockOracleError string

func (e mockOracleError) Error() string { return string(e) }
