// Package main runs the full off-chain backbone in one process:
// - Indexer (continuous): adaptive log polling, strategic event archive
// - Mirror (event-driven + scheduled): pool/bet projections
// - Oracle (scheduled): football/crypto resolution, settlement
// - Reputation (event-driven + scheduled): ledger, decay, on-chain sync
// - Analytics (scheduled): ClickHouse rollups
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitr-backend/internal/airdrop"
	"bitr-backend/internal/analytics"
	"bitr-backend/internal/chain"
	"bitr-backend/internal/config"
	"bitr-backend/internal/indexer"
	"bitr-backend/internal/mirror"
	"bitr-backend/internal/observability"
	"bitr-backend/internal/oracle"
	"bitr-backend/internal/providers/coinpaprika"
	"bitr-backend/internal/providers/sportmonks"
	"bitr-backend/internal/reputation"
	"bitr-backend/internal/scheduler"
	chstore "bitr-backend/internal/storage/clickhouse"
	pgstore "bitr-backend/internal/storage/postgres"
)

func main() {
	logger := log.New(os.Stdout, "[backend] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Configuration error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cancel, cfg, logger); err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *log.Logger) error {
	// Chain access
	client, err := chain.Dial(ctx, cfg.RPCURLs, chain.WithLogger(log.New(os.Stdout, "[chain] ", log.LstdFlags)))
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	registry, err := chain.NewRegistry()
	if err != nil {
		return fmt.Errorf("build abi registry: %w", err)
	}
	contracts := chain.NewContracts(client, registry, cfg.Addresses)

	oracleSender, err := chain.NewTxSender(client, cfg.OracleKey, cfg.ChainID, log.New(os.Stdout, "[txsender] ", log.LstdFlags))
	if err != nil {
		return fmt.Errorf("build oracle sender: %w", err)
	}
	reputationSender := oracleSender
	if cfg.ReputationUpdaterKey != cfg.OracleKey {
		reputationSender, err = chain.NewTxSender(client, cfg.ReputationUpdaterKey, cfg.ChainID, log.New(os.Stdout, "[txsender] ", log.LstdFlags))
		if err != nil {
			return fmt.Errorf("build reputation sender: %w", err)
		}
	}

	// Stores
	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	poolStore := pgstore.NewPoolStore(pool)
	betStore := pgstore.NewBetStore(pool)
	liquidityStore := pgstore.NewLiquidityStore(pool)
	fixtureStore := pgstore.NewFixtureStore(pool)
	resultStore := pgstore.NewResultStore(pool)
	cryptoStore := pgstore.NewCryptoStore(pool)
	slipStore := pgstore.NewSlipStore(pool)
	userStore := pgstore.NewUserStore(pool)
	eventStore := pgstore.NewEventStore(pool)
	submissionStore := pgstore.NewSubmissionStore(pool)
	airdropStore := pgstore.NewAirdropStore(pool)
	statsStore := pgstore.NewStatsStore(pool)

	metrics := observability.NewMetrics("")

	// Providers
	var fixtureSource *sportmonks.Client
	if cfg.SportmonksToken != "" {
		fixtureSource, err = sportmonks.NewClient(sportmonks.Options{
			BaseURL:  cfg.SportmonksBaseURL,
			APIToken: cfg.SportmonksToken,
			Logger:   log.New(os.Stdout, "[sportmonks] ", log.LstdFlags),
		})
		if err != nil {
			return fmt.Errorf("build sportmonks client: %w", err)
		}
	} else {
		logger.Println("SPORTMONKS_API_TOKEN not set, football resolution disabled")
	}
	priceSource := coinpaprika.NewClient(coinpaprika.Options{
		BaseURL: cfg.CoinpaprikaBaseURL,
		Logger:  log.New(os.Stdout, "[coinpaprika] ", log.LstdFlags),
	})

	// Handlers
	stateMirror, err := mirror.New(mirror.Options{
		Contracts: contracts,
		Pools:     poolStore,
		Bets:      betStore,
		Liquidity: liquidityStore,
		Logger:    log.New(os.Stdout, "[mirror] ", log.LstdFlags),
		Metrics:   metrics,
	})
	if err != nil {
		return err
	}
	repTracker, err := reputation.NewTracker(reputation.TrackerOptions{
		Users:  userStore,
		Slips:  slipStore,
		Logger: log.New(os.Stdout, "[reputation] ", log.LstdFlags),
	})
	if err != nil {
		return err
	}
	airdropTracker, err := airdrop.New(airdrop.Options{
		Store:  airdropStore,
		Logger: log.New(os.Stdout, "[airdrop] ", log.LstdFlags),
	})
	if err != nil {
		return err
	}

	// Indexer
	ix, err := indexer.New(indexer.Options{
		Config:    indexer.Config{ReorgDepth: cfg.ReorgDepth},
		Client:    client,
		Registry:  registry,
		Addresses: cfg.Addresses,
		Events:    eventStore,
		Logger:    log.New(os.Stdout, "[indexer] ", log.LstdFlags),
		Metrics:   metrics,
	})
	if err != nil {
		return err
	}
	for _, name := range []string{"PoolCreated", "BetPlaced", "LiquidityAdded", "PoolSettled", "PoolRefunded"} {
		ix.On(name, stateMirror)
	}
	for _, name := range []string{"PoolCreated", "BetPlaced", "SlipPlaced", "SlipEvaluated", "PrizeClaimed"} {
		ix.On(name, repTracker)
	}
	for _, name := range []string{"FaucetClaimed", "Transfer", "Staked", "Unstaked", "RewardsClaimed"} {
		ix.On(name, airdropTracker)
	}

	// Oracle jobs
	submitter, err := oracle.NewSubmitter(oracle.SubmitterOptions{
		Contracts:   contracts,
		Sender:      oracleSender,
		Submissions: submissionStore,
		Logs:        cryptoStore,
		Logger:      log.New(os.Stdout, "[oracle] ", log.LstdFlags),
	})
	if err != nil {
		return err
	}
	cryptoResolver, err := oracle.NewCryptoResolver(oracle.CryptoOptions{
		Markets:   cryptoStore,
		Pools:     poolStore,
		Prices:    priceSource,
		Submitter: submitter,
		Logger:    log.New(os.Stdout, "[oracle] ", log.LstdFlags),
	})
	if err != nil {
		return err
	}
	settler, err := oracle.NewSettler(oracle.SettlerOptions{
		Pools:             poolStore,
		Contracts:         contracts,
		Sender:            oracleSender,
		ArbitrationBuffer: cfg.ArbitrationBuffer,
		Logger:            log.New(os.Stdout, "[oracle] ", log.LstdFlags),
	})
	if err != nil {
		return err
	}
	sweeper, err := oracle.NewSnapshotSweeper(oracle.SweeperOptions{
		Source:  priceSource,
		Markets: cryptoStore,
		Logger:  log.New(os.Stdout, "[oracle] ", log.LstdFlags),
	})
	if err != nil {
		return err
	}

	// Reputation jobs
	syncer, err := reputation.NewSyncer(reputation.SyncerOptions{
		Users:     userStore,
		Contracts: contracts,
		Sender:    reputationSender,
		Logger:    log.New(os.Stdout, "[reputation] ", log.LstdFlags),
	})
	if err != nil {
		return err
	}
	decayer, err := reputation.NewDecayer(reputation.DecayerOptions{
		Users:  userStore,
		Logger: log.New(os.Stdout, "[reputation] ", log.LstdFlags),
	})
	if err != nil {
		return err
	}

	// Scheduler
	sched := scheduler.New(log.New(os.Stdout, "[scheduler] ", log.LstdFlags))
	sched.Observer = metrics.ObserveJob

	register := func(name, spec string, fn scheduler.JobFunc) error {
		if err := sched.Register(name, spec, fn); err != nil {
			return fmt.Errorf("register job %s: %w", name, err)
		}
		return nil
	}
	jobs := []struct {
		name string
		spec string
		fn   scheduler.JobFunc
	}{
		{"mirror-sync", "@every " + cfg.MirrorSyncInterval.String(), stateMirror.Sync},
		{"crypto-resolver", "@every " + cfg.ResolverInterval.String(), cryptoResolver.Resolve},
		{"settlement", "@every " + cfg.ResolverInterval.String(), settler.Run},
		{"price-snapshots", "@every 10m", sweeper.Run},
		{"reputation-sync", "@every " + cfg.ReputationSyncInterval.String(), syncer.Run},
		{"reputation-decay", "0 3 * * *", decayer.Run},
	}
	for _, j := range jobs {
		if err := register(j.name, j.spec, j.fn); err != nil {
			return err
		}
	}
	if fixtureSource != nil {
		footballResolver, err := oracle.NewFootballResolver(oracle.FootballOptions{
			Pools:            poolStore,
			Results:          resultStore,
			Fixtures:         fixtureSource,
			Submitter:        submitter,
			InferMissingHalf: cfg.InferMissingHalf,
			Logger:           log.New(os.Stdout, "[oracle] ", log.LstdFlags),
		})
		if err != nil {
			return err
		}
		refresher, err := oracle.NewFixtureRefresher(oracle.RefresherOptions{
			Source:   fixtureSource,
			Fixtures: fixtureStore,
			Logger:   log.New(os.Stdout, "[oracle] ", log.LstdFlags),
		})
		if err != nil {
			return err
		}
		if err := register("football-resolver", "@every "+cfg.ResolverInterval.String(), footballResolver.Resolve); err != nil {
			return err
		}
		if err := register("fixture-refresh", "@every 6h", refresher.Run); err != nil {
			return err
		}
	}

	// Analytics rollups need ClickHouse; skip cleanly when unconfigured.
	if cfg.ClickHouseDSN != "" {
		chConn, err := chstore.NewConn(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		defer chConn.Close()
		rollup, err := analytics.NewRollup(analytics.RollupOptions{
			Source: statsStore,
			Sink:   chstore.NewAnalyticsStore(chConn),
			Logger: log.New(os.Stdout, "[analytics] ", log.LstdFlags),
		})
		if err != nil {
			return err
		}
		if err := register("analytics-rollup", "@every 1h", rollup.Run); err != nil {
			return err
		}
	} else {
		logger.Println("CLICKHOUSE_DSN not set, analytics rollups disabled")
	}

	// Shutdown handling: second signal or 30s grace forces exit.
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go serveHTTP(cfg.ListenAddr, ix, sched, logger)

	ix.Start(ctx)
	sched.Start()
	sched.RunNow("mirror-sync")
	logger.Println("Backend running")

	<-ctx.Done()

	ix.Stop()
	sched.Stop()
	close(done)
	return ctx.Err()
}

// serveHTTP exposes health, metrics and component status.
func serveHTTP(addr string, ix *indexer.Indexer, sched *scheduler.Scheduler, logger *log.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"indexer": ix.Status(),
			"jobs":    sched.Status(),
		})
	})

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}
