// Package config loads the service configuration from the environment
// once at startup. A .env file in the working directory seeds missing
// variables; real environment variables always win. Validation failures
// are returned, not logged, so the binary decides how fatal they are.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"bitr-backend/internal/chain"
)

// Config is the full service configuration.
type Config struct {
	// Chain access
	RPCURLs   []string
	ChainID   int64
	Addresses chain.Addresses

	// Signing keys. ReputationUpdaterKey may equal OracleKey; the two
	// subsystems then share one nonce-managed sender.
	OracleKey            string
	ReputationUpdaterKey string

	// Storage
	DatabaseURL   string
	ClickHouseDSN string

	// Providers
	SportmonksToken    string
	SportmonksBaseURL  string
	CoinpaprikaBaseURL string

	// Indexer
	ReorgDepth uint64

	// Oracle
	InferMissingHalf  bool
	ArbitrationBuffer time.Duration

	// Job cadence
	MirrorSyncInterval     time.Duration
	ResolverInterval       time.Duration
	ReputationSyncInterval time.Duration

	// HTTP
	ListenAddr string
}

// contractEnv maps registry contract names to their address variables.
var contractEnv = map[string]string{
	chain.ContractPoolCore:         "POOL_CORE_ADDRESS",
	chain.ContractBoostSystem:      "BOOST_SYSTEM_ADDRESS",
	chain.ContractComboPools:       "COMBO_POOLS_ADDRESS",
	chain.ContractGuidedOracle:     "GUIDED_ORACLE_ADDRESS",
	chain.ContractOddyssey:         "ODDYSSEY_ADDRESS",
	chain.ContractReputationSystem: "REPUTATION_SYSTEM_ADDRESS",
	chain.ContractBITRToken:        "BITR_TOKEN_ADDRESS",
	chain.ContractFaucet:           "FAUCET_ADDRESS",
	chain.ContractStaking:          "STAKING_ADDRESS",
}

// requiredContracts must have addresses; the rest are optional and the
// indexer simply skips contracts with a zero address.
var requiredContracts = []string{
	chain.ContractPoolCore,
	chain.ContractGuidedOracle,
	chain.ContractReputationSystem,
}

// Load reads configuration from the environment, seeding from .env
// first. It returns an error listing every missing mandatory variable.
func Load() (*Config, error) {
	loadEnvFile(".env")

	cfg := &Config{
		RPCURLs:              splitList(os.Getenv("RPC_URLS")),
		OracleKey:            strings.TrimPrefix(os.Getenv("ORACLE_PRIVATE_KEY"), "0x"),
		ReputationUpdaterKey: strings.TrimPrefix(os.Getenv("REPUTATION_UPDATER_PRIVATE_KEY"), "0x"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		ClickHouseDSN:        os.Getenv("CLICKHOUSE_DSN"),
		SportmonksToken:      os.Getenv("SPORTMONKS_API_TOKEN"),
		SportmonksBaseURL:    envOr("SPORTMONKS_BASE_URL", "https://api.sportmonks.com/v3/football"),
		CoinpaprikaBaseURL:   envOr("COINPAPRIKA_BASE_URL", "https://api.coinpaprika.com/v1"),
		ListenAddr:           envOr("LISTEN_ADDR", ":8080"),
		Addresses:            make(chain.Addresses),
	}

	var missing []string
	if len(cfg.RPCURLs) == 0 {
		missing = append(missing, "RPC_URLS")
	}
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.OracleKey == "" {
		missing = append(missing, "ORACLE_PRIVATE_KEY")
	}
	if cfg.ReputationUpdaterKey == "" {
		cfg.ReputationUpdaterKey = cfg.OracleKey
	}

	var err error
	if cfg.ChainID, err = envInt64("CHAIN_ID", 0); err != nil {
		return nil, err
	}
	if cfg.ChainID == 0 {
		missing = append(missing, "CHAIN_ID")
	}

	for contract, key := range contractEnv {
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("config: %s is not a hex address: %q", key, raw)
		}
		cfg.Addresses[contract] = common.HexToAddress(raw)
	}
	for _, contract := range requiredContracts {
		if _, ok := cfg.Addresses[contract]; !ok {
			missing = append(missing, contractEnv[contract])
		}
	}

	reorg, err := envInt64("INDEXER_REORG_DEPTH", 0)
	if err != nil {
		return nil, err
	}
	if reorg < 0 {
		return nil, fmt.Errorf("config: INDEXER_REORG_DEPTH must be >= 0")
	}
	cfg.ReorgDepth = uint64(reorg)

	cfg.InferMissingHalf = envBool("ORACLE_INFER_MISSING_HALF")

	if cfg.ArbitrationBuffer, err = envDuration("ORACLE_ARBITRATION_BUFFER", time.Hour); err != nil {
		return nil, err
	}
	if cfg.MirrorSyncInterval, err = envDuration("MIRROR_SYNC_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ResolverInterval, err = envDuration("RESOLVER_INTERVAL", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReputationSyncInterval, err = envDuration("REPUTATION_SYNC_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("config: missing required variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func envInt64(key string, fallback int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s is not an integer: %q", key, raw)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s is not a duration: %q", key, raw)
	}
	return d, nil
}

// splitList splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile seeds os environ from a KEY=VALUE file. Existing
// variables are never overridden.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
