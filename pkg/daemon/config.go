// Package daemon assembles a guardian's persistent-dir, API bind address,
// and module configuration from command-line flags, grounded on the
// teacher's pkg/daemon/config.go.
package daemon

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/threefoldtech/stabilitypool/modules/stabilitypool"
	"github.com/threefoldtech/stabilitypool/types"
)

// OracleMode selects which modules/stabilitypool.Oracle implementation the
// daemon wires up, per spec §6's `oracle_config` option. It implements
// pflag.Value so it can be registered directly as a flag destination.
type OracleMode string

const (
	OracleModeMock      OracleMode = "Mock"
	OracleModeAggregate OracleMode = "Aggregate"
)

func (m *OracleMode) String() string { return string(*m) }
func (m *OracleMode) Type() string   { return "oracleMode" }
func (m *OracleMode) Set(s string) error {
	switch OracleMode(s) {
	case OracleModeMock, OracleModeAggregate:
		*m = OracleMode(s)
		return nil
	default:
		return fmt.Errorf("unrecognized oracle-config %q: must be %q or %q", s, OracleModeMock, OracleModeAggregate)
	}
}

// Config holds every daemon-level option: the ambient options every
// teacher-style daemon carries (persistent directory, API bind address,
// API auth toggle, verbose logging) plus the module Config from spec §6's
// configuration table.
type Config struct {
	// RootPersistentDir is the parent directory under which
	// modules.StabilityPoolDir is created, matching the teacher's
	// RootPersistentDir convention.
	RootPersistentDir string
	// APIAddr is the host:port the read-only HTTP API listens on.
	APIAddr string
	// AllowAPIBind permits a non-loopback APIAddr; mirrors the teacher's
	// --disable-api-security / AuthenticateAPI pairing. AuthenticateAPI is
	// only read by verifyAPISecurity: the HTTP server does not check a
	// password, and no flag sets APIPassword.
	AllowAPIBind    bool
	AuthenticateAPI bool
	APIPassword     string

	VerboseLogging bool

	OracleMode OracleMode
	// AggregateOracleSources is the list of HTTP price source URLs used
	// when OracleMode == OracleModeAggregate.
	AggregateOracleSources []string
	// MockOraclePriceFiat is the fixed price (in the configured fiat
	// base-unit) used when OracleMode == OracleModeMock.
	MockOraclePriceFiat uint64

	Module stabilitypool.Config
}

// DefaultConfig returns the configuration used for a fresh guardian: a 60s
// cycle, 1:1 collateral, permissive minimums, Mock oracle — the same
// defaults modules/stabilitypool.DefaultConfig() uses for its module-level
// half, with the ambient daemon options layered around it.
func DefaultConfig() Config {
	return Config{
		RootPersistentDir: "",
		APIAddr:           "localhost:23110",
		AllowAPIBind:      false,
		AuthenticateAPI:   false,

		VerboseLogging: false,

		OracleMode:          OracleModeMock,
		MockOraclePriceFiat: 50_000_00, // 50,000.00 in a 2-decimal fiat base-unit

		Module: stabilitypool.DefaultConfig(),
	}
}

// RegisterAsFlags registers every Config field — for which it makes sense —
// as a pflag, matching the teacher's Config.RegisterAsFlags shape.
func (cfg *Config) RegisterAsFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&cfg.RootPersistentDir, "persistent-directory", "d", cfg.RootPersistentDir,
		"location of the root directory used to store this guardian's persistent data")
	flagSet.StringVarP(&cfg.APIAddr, "api-addr", "", cfg.APIAddr, "which host:port the read-only API server listens on")
	flagSet.BoolVarP(&cfg.AllowAPIBind, "disable-api-security", "", cfg.AllowAPIBind, "allow the API to listen on a non-localhost address (DANGEROUS)")
	flagSet.BoolVarP(&cfg.AuthenticateAPI, "authenticate-api", "", cfg.AuthenticateAPI, "required by --disable-api-security; the API server itself does not check a password")
	flagSet.BoolVarP(&cfg.VerboseLogging, "verboselogging", "v", cfg.VerboseLogging, "enable debug-level logging")

	flagSet.VarP(&cfg.OracleMode, "oracle-config", "", "oracle implementation to use: Mock or Aggregate")
	flagSet.StringSliceVarP(&cfg.AggregateOracleSources, "oracle-sources", "", cfg.AggregateOracleSources, "HTTP price source URLs, used when oracle-config=Aggregate")
	flagSet.Uint64VarP(&cfg.MockOraclePriceFiat, "oracle-mock-price", "", cfg.MockOraclePriceFiat, "fixed price returned by the Mock oracle, in fiat base-units")

	flagSet.DurationVarP(&cfg.Module.CycleDuration, "cycle-duration", "", cfg.Module.CycleDuration, "time between cycle turnovers")
	flagSet.Uint64VarP(&cfg.Module.Collateral.Provider, "collateral-provider", "", cfg.Module.Collateral.Provider, "provider side of the collateral ratio")
	flagSet.Uint64VarP(&cfg.Module.Collateral.Seeker, "collateral-seeker", "", cfg.Module.Collateral.Seeker, "seeker side of the collateral ratio")
	flagSet.Uint64VarP((*uint64)(&cfg.Module.MinAllowedSeek), "min-allowed-seek", "", uint64(cfg.Module.MinAllowedSeek), "lower bound on a single seek deposit, in msat")
	flagSet.Uint64VarP((*uint64)(&cfg.Module.MinAllowedProvide), "min-allowed-provide", "", uint64(cfg.Module.MinAllowedProvide), "lower bound on a single provide deposit, in msat")
	flagSet.Uint64VarP((*uint64)(&cfg.Module.MaxAllowedProvideFeeRatePPB), "max-allowed-provide-fee-rate-ppb", "", uint64(cfg.Module.MaxAllowedProvideFeeRatePPB), "upper bound on a provider's requested minimum fee rate, in parts per billion")
	flagSet.IntVarP(&cfg.Module.ConsensusThreshold, "consensus-threshold", "", cfg.Module.ConsensusThreshold, "distinct-peer votes required to finalize a cycle turnover")
	flagSet.Uint16VarP(&cfg.Module.MinAllowedCancellationBPS, "min-allowed-cancellation-bps", "", cfg.Module.MinAllowedCancellationBPS, "lower bound on the legacy cancel-renewal basis points; 0 disables the legacy path")
}

// Finalize normalizes the API address and validates the fully-populated
// Config, matching the teacher's ProcessConfig + VerifyAPISecurity two-step.
func (cfg *Config) Finalize() error {
	cfg.APIAddr = processNetAddr(cfg.APIAddr)

	if cfg.OracleMode == OracleModeAggregate && len(cfg.AggregateOracleSources) == 0 {
		return errors.New("oracle-config=Aggregate requires at least one --oracle-sources URL")
	}
	if cfg.Module.CycleDuration <= 0 {
		return errors.New("cycle-duration must be positive")
	}
	if cfg.Module.ConsensusThreshold <= 0 {
		return errors.New("consensus-threshold must be positive")
	}
	return verifyAPISecurity(*cfg)
}

// verifyAPISecurity mirrors the teacher's VerifyAPISecurity: a non-loopback
// APIAddr requires --disable-api-security, which in turn requires
// --authenticate-api.
func verifyAPISecurity(cfg Config) error {
	if !cfg.AllowAPIBind {
		if !isLoopback(cfg.APIAddr) {
			return fmt.Errorf("you must pass --disable-api-security to bind the API to a non-localhost address (%s)", cfg.APIAddr)
		}
		return nil
	}
	if !cfg.AuthenticateAPI {
		return errors.New("cannot use --disable-api-security without also setting --authenticate-api")
	}
	return nil
}

func isLoopback(addr string) bool {
	host := addr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
	}
	return host == "" || host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// processNetAddr adds a leading ':' to a bare port number, matching the
// teacher's processNetAddr.
func processNetAddr(addr string) string {
	if _, err := strconv.Atoi(addr); err == nil {
		return ":" + addr
	}
	return addr
}

// CollateralRatio re-exports the module's collateral ratio type for callers
// that only import pkg/daemon.
type CollateralRatio = stabilitypool.CollateralRatio

// FeeRatePPB re-exports the module's fee-rate type for flag-adjacent code.
type FeeRatePPB = types.FeeRatePPB
