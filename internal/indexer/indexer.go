// Package indexer drives the system forward in chain-block time. One
// long-running loop scans logs for every watched contract, decodes them,
// archives the retained events, and dispatches typed events to the
// subsystem handlers. Delivery is at-least-once; everything downstream
// is idempotent.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"bitr-backend/internal/chain"
	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// markerCategory is the indexed_blocks category for the main scan loop.
const markerCategory = "main"

// Mode is the loop's current operating mode.
type Mode string

const (
	ModeInitializing Mode = "initializing"
	ModeEfficient    Mode = "efficient"
	ModeActive       Mode = "active"
	ModeCatchup      Mode = "catchup"
	ModeStopped      Mode = "stopped"
)

// forcedRealtime names events whose mere presence switches the loop to
// active polling regardless of volume.
var forcedRealtime = map[string]bool{
	"PrizeClaimed":   true,
	"MarketResolved": true,
	"SystemAlert":    true,
}

// defaultCriticalEvents is the retained-and-dispatched set. It is
// configuration, not code: operators tighten it without a deploy.
var defaultCriticalEvents = []string{
	"PoolCreated", "BetPlaced", "LiquidityAdded", "PoolSettled", "PoolRefunded",
	"BoostActivated", "SlipPlaced", "SlipEvaluated", "PrizeClaimed",
	"UserStatsUpdated", "ReputationUpdated", "ReputationActionOccurred",
	"MarketResolved", "SystemAlert", "FaucetClaimed", "Transfer",
	"Staked", "Unstaked", "RewardsClaimed",
}

// Config tunes the loop. Zero values take defaults.
type Config struct {
	BasePollInterval   time.Duration // default 45s
	ActivePollInterval time.Duration // default 10s
	MaxLag             uint64        // default 20 blocks
	CatchUpBatchSize   uint64        // default 25 blocks
	CatchUpDelay       time.Duration // default 100ms between batches
	CatchUpBusyDelay   time.Duration // default 200ms when activity is high
	ActivityThreshold  float64       // default 3 events/minute
	ActivityWindow     time.Duration // default 2m

	// ReorgDepth is the maximum walk-back on a block-hash mismatch.
	// 0 disables reorg detection, the right choice on fast-finality
	// chains.
	ReorgDepth uint64

	// SkipEvents are discarded before anything else; an event in both
	// sets is skipped. CriticalEvents is the retained set; nil means the
	// default set.
	SkipEvents     []string
	CriticalEvents []string
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BasePollInterval <= 0 {
		out.BasePollInterval = 45 * time.Second
	}
	if out.ActivePollInterval <= 0 {
		out.ActivePollInterval = 10 * time.Second
	}
	if out.MaxLag == 0 {
		out.MaxLag = 20
	}
	if out.CatchUpBatchSize == 0 {
		out.CatchUpBatchSize = 25
	}
	if out.CatchUpDelay <= 0 {
		out.CatchUpDelay = 100 * time.Millisecond
	}
	if out.CatchUpBusyDelay <= 0 {
		out.CatchUpBusyDelay = 200 * time.Millisecond
	}
	if out.ActivityThreshold <= 0 {
		out.ActivityThreshold = 3
	}
	if out.ActivityWindow <= 0 {
		out.ActivityWindow = 2 * time.Minute
	}
	if out.CriticalEvents == nil {
		out.CriticalEvents = defaultCriticalEvents
	}
	return out
}

// Handler receives one decoded event. Handlers must be idempotent:
// catch-up replays ranges after failures.
type Handler interface {
	HandleEvent(ctx context.Context, ev domain.ChainEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev domain.ChainEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, ev domain.ChainEvent) error {
	return f(ctx, ev)
}

// Status is the loop's observable state.
type Status struct {
	Mode               Mode   `json:"mode"`
	CurrentBlock       uint64 `json:"current_block"`
	LastProcessedBlock uint64 `json:"last_processed_block"`
	BlocksBehind       uint64 `json:"blocks_behind"`
	EventsProcessed    uint64 `json:"events_processed"`
	EventsSkipped      uint64 `json:"events_skipped"`
	Errors             uint64 `json:"errors"`
}

// Metrics is the counter surface the indexer reports into. Implemented
// by observability.Metrics; nil disables reporting.
type Metrics interface {
	EventIndexed(contract, event string)
	IndexerLag(blocks uint64)
	IndexerError()
}

// Indexer is the scan loop.
type Indexer struct {
	cfg       Config
	client    *chain.Client
	registry  *chain.Registry
	addresses chain.Addresses
	events    storage.EventStore
	logger    *log.Logger
	metrics   Metrics

	handlersMu sync.RWMutex
	handlers   map[string][]Handler

	skip     map[string]bool
	critical map[string]bool

	mode            atomic.Value // Mode
	currentBlock    atomic.Uint64
	lastProcessed   atomic.Uint64
	eventsProcessed atomic.Uint64
	eventsSkipped   atomic.Uint64
	errorCount      atomic.Uint64

	activityMu   sync.Mutex
	activity     []activitySample
	lastRealtime atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	now func() time.Time
}

type activitySample struct {
	at    time.Time
	count int
}

// Options collects the indexer's dependencies.
type Options struct {
	Config    Config
	Client    *chain.Client
	Registry  *chain.Registry
	Addresses chain.Addresses
	Events    storage.EventStore
	Logger    *log.Logger
	Metrics   Metrics
}

// New builds a stopped indexer.
func New(opts Options) (*Indexer, error) {
	if opts.Client == nil || opts.Registry == nil || opts.Events == nil {
		return nil, fmt.Errorf("indexer: client, registry and event store are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	cfg := opts.Config.withDefaults()

	ix := &Indexer{
		cfg:       cfg,
		client:    opts.Client,
		registry:  opts.Registry,
		addresses: opts.Addresses,
		events:    opts.Events,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		handlers:  make(map[string][]Handler),
		skip:      toSet(cfg.SkipEvents),
		critical:  toSet(cfg.CriticalEvents),
		done:      make(chan struct{}),
		now:       time.Now,
	}
	ix.mode.Store(ModeInitializing)
	return ix, nil
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// On registers a handler for one event name. Registration must finish
// before Start.
func (ix *Indexer) On(eventName string, h Handler) {
	ix.handlersMu.Lock()
	ix.handlers[eventName] = append(ix.handlers[eventName], h)
	ix.handlersMu.Unlock()
}

// Start launches the loop. Calling it again is a no-op.
func (ix *Indexer) Start(ctx context.Context) {
	ix.startOnce.Do(func() {
		ctx, ix.cancel = context.WithCancel(ctx)
		go ix.loop(ctx)
	})
}

// Stop shuts the loop down and waits for the in-flight range to commit.
func (ix *Indexer) Stop() {
	ix.stopOnce.Do(func() {
		if ix.cancel != nil {
			ix.cancel()
		}
		<-ix.done
		ix.mode.Store(ModeStopped)
	})
}

// Status reports the loop's current state.
func (ix *Indexer) Status() Status {
	head := ix.currentBlock.Load()
	last := ix.lastProcessed.Load()
	var behind uint64
	if head > last {
		behind = head - last
	}
	return Status{
		Mode:               ix.mode.Load().(Mode),
		CurrentBlock:       head,
		LastProcessedBlock: last,
		BlocksBehind:       behind,
		EventsProcessed:    ix.eventsProcessed.Load(),
		EventsSkipped:      ix.eventsSkipped.Load(),
		Errors:             ix.errorCount.Load(),
	}
}

func (ix *Indexer) loop(ctx context.Context) {
	defer close(ix.done)

	if err := ix.bootstrap(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		ix.logger.Printf("indexer: bootstrap failed: %v", err)
	}

	for {
		interval := ix.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// bootstrap seeds last_processed_block: the highest committed marker, or
// the current head on a fresh database.
func (ix *Indexer) bootstrap(ctx context.Context) error {
	marker, ok, err := ix.events.LastIndexed(ctx)
	if err != nil {
		return err
	}
	if ok {
		ix.lastProcessed.Store(marker.BlockNumber)
		ix.logger.Printf("indexer: resuming from block %d", marker.BlockNumber)
		return nil
	}
	head, err := ix.client.BlockNumber(ctx)
	if err != nil {
		return err
	}
	ix.lastProcessed.Store(head)
	ix.logger.Printf("indexer: fresh start at head %d", head)
	return nil
}

// tick runs one iteration and returns how long to sleep before the next.
func (ix *Indexer) tick(ctx context.Context) time.Duration {
	head, err := ix.client.BlockNumber(ctx)
	if err != nil {
		ix.fail("fetch head", err)
		return 2 * ix.pollInterval()
	}
	ix.currentBlock.Store(head)

	if ix.cfg.ReorgDepth > 0 {
		if err := ix.checkReorg(ctx); err != nil {
			ix.fail("reorg check", err)
			return 2 * ix.pollInterval()
		}
	}

	last := ix.lastProcessed.Load()
	if ix.metrics != nil && head > last {
		ix.metrics.IndexerLag(head - last)
	}

	switch {
	case head > last && head-last > ix.cfg.MaxLag:
		ix.mode.Store(ModeCatchup)
		if err := ix.catchUp(ctx, last+1, head); err != nil {
			ix.fail("catch-up", err)
			return 2 * ix.pollInterval()
		}
	case head > last:
		if err := ix.processRange(ctx, last+1, head); err != nil {
			ix.fail("process range", err)
			return 2 * ix.pollInterval()
		}
	}

	ix.adjustMode()
	return ix.pollInterval()
}

func (ix *Indexer) fail(op string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	ix.errorCount.Add(1)
	if ix.metrics != nil {
		ix.metrics.IndexerError()
	}
	ix.logger.Printf("indexer: %s: %v", op, err)
}

// catchUp processes [from, to] in bounded batches with inter-batch
// pauses so the RPC endpoints are not saturated.
func (ix *Indexer) catchUp(ctx context.Context, from, to uint64) error {
	for start := from; start <= to; start += ix.cfg.CatchUpBatchSize {
		end := start + ix.cfg.CatchUpBatchSize - 1
		if end > to {
			end = to
		}
		if err := ix.processRange(ctx, start, end); err != nil {
			return err
		}
		if end < to {
			delay := ix.cfg.CatchUpDelay
			if ix.eventsPerMinute() >= ix.cfg.ActivityThreshold {
				delay = ix.cfg.CatchUpBusyDelay
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil
}

// processRange scans one block range across all watched contracts,
// archives retained events, dispatches handlers, and commits the marker
// in the same transaction as the archive rows.
func (ix *Indexer) processRange(ctx context.Context, from, to uint64) error {
	var (
		archive  []*domain.StrategicEvent
		decoded  []*chain.Decoded
		realtime bool
		retained int
	)

	for _, contract := range chain.ScanOrder {
		addr, ok := ix.addresses[contract]
		if !ok {
			continue
		}
		logs, err := ix.client.FilterLogs(ctx, addr, from, to)
		if err != nil {
			return fmt.Errorf("filter %s logs: %w", contract, err)
		}
		for _, lg := range logs {
			if lg.Removed {
				continue
			}
			dec, ok, err := ix.registry.DecodeLog(contract, lg)
			if err != nil {
				// malformed payload for a known topic: skip the log,
				// never the batch
				ix.logger.Printf("indexer: decode %s log %s/%d: %v",
					contract, lg.TxHash.Hex(), lg.Index, err)
				continue
			}
			if !ok {
				continue
			}

			name := dec.Event.Meta().EventName
			if ix.skip[name] {
				ix.eventsSkipped.Add(1)
				continue
			}
			if !ix.critical[name] {
				continue
			}

			row, err := ix.archiveRow(dec)
			if err != nil {
				ix.logger.Printf("indexer: render %s args: %v", name, err)
				continue
			}
			archive = append(archive, row)
			decoded = append(decoded, dec)
			retained++
			if forcedRealtime[name] {
				realtime = true
			}
			if ix.metrics != nil {
				ix.metrics.EventIndexed(contract, name)
			}
		}
	}

	// Handlers run before the commit. dispatch logs and swallows
	// handler errors so one failing handler cannot stall the range,
	// and a failed CommitRange below re-delivers the same events on
	// the next tick, so every handler write must be idempotent.
	for _, dec := range decoded {
		ix.dispatch(ctx, dec.Event)
	}

	marker := &domain.IndexedBlock{
		Category:    markerCategory,
		BlockNumber: to,
		IndexedAt:   ix.now().Unix(),
	}
	if ix.cfg.ReorgDepth > 0 {
		header, err := ix.client.HeaderByNumber(ctx, to)
		if err != nil {
			return fmt.Errorf("fetch header %d: %w", to, err)
		}
		marker.BlockHash = header.Hash().Hex()
	}
	if err := ix.events.CommitRange(ctx, archive, marker); err != nil {
		return fmt.Errorf("commit range [%d,%d]: %w", from, to, err)
	}

	ix.lastProcessed.Store(to)
	ix.eventsProcessed.Add(uint64(retained))
	ix.recordActivity(retained, realtime)
	return nil
}

func (ix *Indexer) archiveRow(dec *chain.Decoded) (*domain.StrategicEvent, error) {
	argsJSON, err := json.Marshal(dec.Args)
	if err != nil {
		return nil, err
	}
	meta := dec.Event.Meta()
	return &domain.StrategicEvent{
		TxHash:      meta.TxHash,
		LogIndex:    meta.LogIndex,
		EventName:   meta.EventName,
		Contract:    meta.Contract,
		BlockNumber: meta.BlockNumber,
		ArgsJSON:    argsJSON,
		RecordedAt:  ix.now().Unix(),
	}, nil
}

// dispatch fans one event out to its registered handlers. Handler
// errors are logged and swallowed; the periodic mirror sync is the
// reconciliation backstop.
func (ix *Indexer) dispatch(ctx context.Context, ev domain.ChainEvent) {
	name := ev.Meta().EventName
	ix.handlersMu.RLock()
	handlers := ix.handlers[name]
	ix.handlersMu.RUnlock()
	for _, h := range handlers {
		if err := h.HandleEvent(ctx, ev); err != nil {
			ix.errorCount.Add(1)
			if ix.metrics != nil {
				ix.metrics.IndexerError()
			}
			ix.logger.Printf("indexer: handler for %s (tx %s): %v", name, ev.Meta().TxHash, err)
		}
	}
}

// checkReorg compares the stored marker hash with the chain's view of
// that block. On mismatch it rewinds ReorgDepth blocks: archive rows
// above the ancestor are deleted and the marker reset.
func (ix *Indexer) checkReorg(ctx context.Context) error {
	marker, err := ix.events.GetMarker(ctx, markerCategory)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if marker.BlockHash == "" {
		return nil // bootstrap: nothing recorded yet
	}

	header, err := ix.client.HeaderByNumber(ctx, marker.BlockNumber)
	if err != nil {
		return err
	}
	if header.Hash().Hex() == marker.BlockHash {
		return nil
	}

	ancestor := uint64(0)
	if marker.BlockNumber > ix.cfg.ReorgDepth {
		ancestor = marker.BlockNumber - ix.cfg.ReorgDepth
	}
	ancestorHeader, err := ix.client.HeaderByNumber(ctx, ancestor)
	if err != nil {
		return err
	}
	ix.logger.Printf("indexer: reorg at block %d detected, rewinding to %d", marker.BlockNumber, ancestor)
	if err := ix.events.RewindTo(ctx, markerCategory, ancestor, ancestorHeader.Hash().Hex()); err != nil {
		return err
	}
	ix.lastProcessed.Store(ancestor)
	return nil
}

// recordActivity feeds the sliding window behind adaptive polling.
func (ix *Indexer) recordActivity(count int, realtime bool) {
	now := ix.now()
	ix.activityMu.Lock()
	defer ix.activityMu.Unlock()

	ix.activity = append(ix.activity, activitySample{at: now, count: count})
	cutoff := now.Add(-ix.cfg.ActivityWindow)
	for len(ix.activity) > 0 && ix.activity[0].at.Before(cutoff) {
		ix.activity = ix.activity[1:]
	}
	ix.lastRealtime.Store(realtime)
}

func (ix *Indexer) eventsPerMinute() float64 {
	ix.activityMu.Lock()
	defer ix.activityMu.Unlock()
	total := 0
	for _, s := range ix.activity {
		total += s.count
	}
	return float64(total) / ix.cfg.ActivityWindow.Minutes()
}

// adjustMode settles the loop into active or efficient polling: active
// when the window is busy or the last batch carried a forced-realtime
// event, efficient otherwise.
func (ix *Indexer) adjustMode() {
	if ix.lastRealtime.Load() || ix.eventsPerMinute() >= ix.cfg.ActivityThreshold {
		ix.mode.Store(ModeActive)
	} else {
		ix.mode.Store(ModeEfficient)
	}
}

func (ix *Indexer) pollInterval() time.Duration {
	if ix.mode.Load().(Mode) == ModeActive {
		return ix.cfg.ActivePollInterval
	}
	return ix.cfg.BasePollInterval
}
