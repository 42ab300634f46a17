package mirror

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitr-backend/internal/chain"
	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// fakePoolStore mimics the Postgres pool store's last-writer-wins and
// settled-never-reverts semantics.
type fakePoolStore struct {
	mu    sync.Mutex
	pools map[uint64]*domain.Pool
}

func newFakePoolStore() *fakePoolStore {
	return &fakePoolStore{pools: make(map[uint64]*domain.Pool)}
}

func (f *fakePoolStore) Upsert(ctx context.Context, p *domain.Pool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.pools[p.PoolID]
	if ok {
		if p.ReadAt < cur.ReadAt {
			return nil
		}
		if (cur.Status == domain.PoolSettled || cur.Status == domain.PoolRefunded) && p.Status == domain.PoolActive {
			return nil
		}
	}
	cp := *p
	f.pools[p.PoolID] = &cp
	return nil
}

func (f *fakePoolStore) GetByID(ctx context.Context, poolID uint64) (*domain.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pools[poolID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakePoolStore) MaxPoolID(ctx context.Context) (uint64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var max uint64
	found := false
	for id := range f.pools {
		if !found || id > max {
			max = id
			found = true
		}
	}
	return max, found, nil
}

func (f *fakePoolStore) ActiveIDs(ctx context.Context) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uint64
	for id, p := range f.pools {
		if p.Status == domain.PoolActive {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakePoolStore) GuidedDue(ctx context.Context, category string, now int64) ([]*domain.Pool, error) {
	return nil, nil
}

func (f *fakePoolStore) UnsettledPast(ctx context.Context, now, bufferSeconds int64) ([]*domain.Pool, error) {
	return nil, nil
}

func (f *fakePoolStore) MarkSettled(ctx context.Context, poolID uint64, result string, settledAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pools[poolID]
	if !ok {
		return storage.ErrNotFound
	}
	p.Status = domain.PoolSettled
	p.Result = result
	p.ResultTimestamp = settledAt
	return nil
}

func (f *fakePoolStore) MarkRefunded(ctx context.Context, poolID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pools[poolID]
	if !ok {
		return storage.ErrNotFound
	}
	p.Status = domain.PoolRefunded
	return nil
}

func (f *fakePoolStore) AddBettorStake(ctx context.Context, poolID uint64, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pools[poolID]
	if !ok {
		return nil // bet arrived before its pool; sync reconciles
	}
	if p.Status != domain.PoolActive {
		return nil
	}
	p.TotalBettorStake = new(big.Int).Add(p.TotalBettorStake, amount)
	return nil
}

func (f *fakePoolStore) AddCreatorSideStake(ctx context.Context, poolID uint64, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pools[poolID]; ok {
		p.TotalCreatorSideStake = new(big.Int).Add(p.TotalCreatorSideStake, amount)
	}
	return nil
}

type fakeBetStore struct {
	mu   sync.Mutex
	bets map[string]*domain.Bet
}

func newFakeBetStore() *fakeBetStore { return &fakeBetStore{bets: make(map[string]*domain.Bet)} }

func (f *fakeBetStore) Upsert(ctx context.Context, b *domain.Bet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := b.TxHash + string(b.Bettor)
	if _, dup := f.bets[key]; !dup {
		cp := *b
		f.bets[key] = &cp
	}
	return nil
}

func (f *fakeBetStore) GetByPool(ctx context.Context, poolID uint64) ([]*domain.Bet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Bet
	for _, b := range f.bets {
		if b.PoolID == poolID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBetStore) SumByPool(ctx context.Context, poolID uint64) (*big.Int, error) {
	bets, _ := f.GetByPool(ctx, poolID)
	sum := new(big.Int)
	for _, b := range bets {
		sum.Add(sum, b.Amount)
	}
	return sum, nil
}

type fakeLiquidityStore struct {
	mu   sync.Mutex
	rows []*domain.LiquidityProvision
}

func (f *fakeLiquidityStore) Upsert(ctx context.Context, lp *domain.LiquidityProvision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.TxHash == lp.TxHash && r.Provider == lp.Provider {
			return nil
		}
	}
	cp := *lp
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeLiquidityStore) GetByPool(ctx context.Context, poolID uint64) ([]*domain.LiquidityProvision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.LiquidityProvision
	for _, r := range f.rows {
		if r.PoolID == poolID {
			out = append(out, r)
		}
	}
	return out, nil
}

// poolBackend answers poolCount() and getPool(id) from a scripted map.
type poolBackend struct {
	abi   abi.ABI
	mu    sync.Mutex
	pools map[uint64]chainPool
	calls int
}

// chainPool matches the getPool tuple layout.
type chainPool struct {
	Creator               common.Address
	PredictedOutcome      [32]byte
	Odds                  *big.Int
	CreatorStake          *big.Int
	TotalCreatorSideStake *big.Int
	TotalBettorStake      *big.Int
	MaxBettorStake        *big.Int
	MaxBetPerUser         *big.Int
	EventStartTime        *big.Int
	EventEndTime          *big.Int
	BettingEndTime        *big.Int
	ResultTimestamp       *big.Int
	League                [32]byte
	Category              [32]byte
	Region                [32]byte
	HomeTeam              [32]byte
	AwayTeam              [32]byte
	Title                 [32]byte
	Result                [32]byte
	MarketId              string
	OracleType            uint8
	MarketType            uint8
	Status                uint8
	Flags                 uint8
}

func simplePool(creator string, bettorStake int64) chainPool {
	stake := big.NewInt(1_000_000)
	return chainPool{
		Creator:               common.HexToAddress(creator),
		Odds:                  big.NewInt(1500),
		CreatorStake:          stake,
		TotalCreatorSideStake: stake,
		TotalBettorStake:      big.NewInt(bettorStake),
		MaxBettorStake:        big.NewInt(10_000_000),
		MaxBetPerUser:         big.NewInt(0),
		EventStartTime:        big.NewInt(1_725_000_000),
		EventEndTime:          big.NewInt(1_725_007_200),
		BettingEndTime:        big.NewInt(1_724_999_000),
		ResultTimestamp:       big.NewInt(0),
		MarketId:              "fixture_1001",
	}
}

func (b *poolBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++

	countMethod := b.abi.Methods["poolCount"]
	getMethod := b.abi.Methods["getPool"]
	switch {
	case bytes.Equal(call.Data[:4], countMethod.ID):
		var max uint64
		for id := range b.pools {
			if id >= max {
				max = id + 1
			}
		}
		return countMethod.Outputs.Pack(new(big.Int).SetUint64(max))
	case bytes.Equal(call.Data[:4], getMethod.ID):
		args, err := getMethod.Inputs.Unpack(call.Data[4:])
		if err != nil {
			return nil, err
		}
		id := args[0].(*big.Int).Uint64()
		pool, ok := b.pools[id]
		if !ok {
			return nil, errors.New("execution reverted")
		}
		return getMethod.Outputs.Pack(pool)
	}
	return nil, errors.New("unknown selector")
}

func (b *poolBackend) BlockNumber(ctx context.Context) (uint64, error) { return 0, nil }
func (b *poolBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return nil, errors.New("not scripted")
}
func (b *poolBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}
func (b *poolBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, errors.New("not scripted")
}
func (b *poolBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, errors.New("not scripted")
}
func (b *poolBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 0, errors.New("not scripted")
}
func (b *poolBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return errors.New("not scripted")
}

type harness struct {
	mirror    *Mirror
	pools     *fakePoolStore
	bets      *fakeBetStore
	liquidity *fakeLiquidityStore
	backend   *poolBackend
}

func newHarness(t *testing.T, chainPools map[uint64]chainPool) *harness {
	t.Helper()
	registry, err := chain.NewRegistry()
	require.NoError(t, err)
	poolABI, err := registry.ABI(chain.ContractPoolCore)
	require.NoError(t, err)

	backend := &poolBackend{abi: poolABI, pools: chainPools}
	client := chain.NewClientWithBackends(map[string]chain.Backend{"stub": backend},
		chain.WithMaxRetries(0), chain.WithLogger(log.New(testWriter{t}, "", 0)))
	contracts := chain.NewContracts(client, registry, chain.Addresses{
		chain.ContractPoolCore: common.HexToAddress("0x0000000000000000000000000000000000000A01"),
	})

	pools := newFakePoolStore()
	bets := newFakeBetStore()
	liquidity := &fakeLiquidityStore{}
	m, err := New(Options{
		Contracts: contracts,
		Pools:     pools,
		Bets:      bets,
		Liquidity: liquidity,
		Logger:    log.New(testWriter{t}, "", 0),
	})
	require.NoError(t, err)
	return &harness{mirror: m, pools: pools, bets: bets, liquidity: liquidity, backend: backend}
}

func meta(tx string, block uint64) domain.EventMeta {
	return domain.EventMeta{Contract: chain.ContractPoolCore, TxHash: tx, BlockNumber: block}
}

func TestPoolCreatedReadsBackFullStruct(t *testing.T) {
	h := newHarness(t, map[uint64]chainPool{
		3: simplePool("0x00000000000000000000000000000000000000c1", 0),
	})

	ev := &domain.PoolCreatedEvent{EventMeta: meta("0xaa", 100), PoolID: 3}
	ev.EventMeta.EventName = "PoolCreated"
	require.NoError(t, h.mirror.HandleEvent(context.Background(), ev))

	stored, err := h.pools.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, domain.Address("0x00000000000000000000000000000000000000c1"), stored.Creator)
	assert.Equal(t, "fixture_1001", stored.MarketID)
	assert.Equal(t, int64(1500), stored.Odds)
	assert.Equal(t, domain.PoolActive, stored.Status)
	assert.Positive(t, stored.ReadAt)
}

func TestBetPlacedUpsertsAndBumpsAggregate(t *testing.T) {
	h := newHarness(t, map[uint64]chainPool{
		3: simplePool("0x00000000000000000000000000000000000000c1", 0),
	})
	ctx := context.Background()
	require.NoError(t, h.mirror.refreshPool(ctx, 3))

	bet := &domain.BetPlacedEvent{
		EventMeta:    meta("0xbb", 101),
		PoolID:       3,
		Bettor:       "0x0000000000000000000000000000000000000b0b",
		Amount:       big.NewInt(500_000),
		IsForOutcome: true,
	}
	require.NoError(t, h.mirror.HandleEvent(ctx, bet))
	// replay of the same event is a no-op on the bet row
	require.NoError(t, h.bets.Upsert(ctx, &domain.Bet{
		PoolID: 3, Bettor: bet.Bettor, TxHash: "0xbb", Amount: big.NewInt(500_000),
	}))

	stored, err := h.pools.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, big.NewInt(500_000).Cmp(stored.TotalBettorStake))

	sum, err := h.bets.SumByPool(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, sum.Cmp(stored.TotalBettorStake), "bet sum matches pool aggregate")
}

func TestPoolSettledAndRefunded(t *testing.T) {
	h := newHarness(t, map[uint64]chainPool{
		1: simplePool("0x00000000000000000000000000000000000000c1", 0),
		2: simplePool("0x00000000000000000000000000000000000000c2", 0),
	})
	ctx := context.Background()
	require.NoError(t, h.mirror.refreshPool(ctx, 1))
	require.NoError(t, h.mirror.refreshPool(ctx, 2))

	require.NoError(t, h.mirror.HandleEvent(ctx, &domain.PoolSettledEvent{
		EventMeta: meta("0xcc", 102), PoolID: 1, Outcome: "Home", SettledAt: 1_725_010_000,
	}))
	require.NoError(t, h.mirror.HandleEvent(ctx, &domain.PoolRefundedEvent{
		EventMeta: meta("0xdd", 103), PoolID: 2,
	}))

	settled, _ := h.pools.GetByID(ctx, 1)
	assert.Equal(t, domain.PoolSettled, settled.Status)
	assert.Equal(t, "Home", settled.Result)

	refunded, _ := h.pools.GetByID(ctx, 2)
	assert.Equal(t, domain.PoolRefunded, refunded.Status)
}

func TestSyncBackfillsMissingPools(t *testing.T) {
	chainPools := make(map[uint64]chainPool)
	for id := uint64(0); id < 45; id++ {
		chainPools[id] = simplePool("0x00000000000000000000000000000000000000c1", int64(id))
	}
	h := newHarness(t, chainPools)
	ctx := context.Background()

	// store already has pool 0 only
	require.NoError(t, h.mirror.refreshPool(ctx, 0))
	require.NoError(t, h.mirror.Sync(ctx))

	for id := uint64(0); id < 45; id++ {
		stored, err := h.pools.GetByID(ctx, id)
		require.NoError(t, err, "pool %d must be backfilled", id)
		assert.Zero(t, big.NewInt(int64(id)).Cmp(stored.TotalBettorStake))
	}
}

func TestSyncReconcilesDriftedAggregate(t *testing.T) {
	h := newHarness(t, map[uint64]chainPool{
		0: simplePool("0x00000000000000000000000000000000000000c1", 750_000),
	})
	ctx := context.Background()

	// mirror a stale view with zero bettor stake, then let sync converge
	require.NoError(t, h.mirror.refreshPool(ctx, 0))
	h.pools.mu.Lock()
	h.pools.pools[0].TotalBettorStake = big.NewInt(0)
	h.pools.pools[0].ReadAt = 0
	h.pools.mu.Unlock()

	require.NoError(t, h.mirror.Sync(ctx))

	stored, err := h.pools.GetByID(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, big.NewInt(750_000).Cmp(stored.TotalBettorStake))

	ok, err := h.mirror.Verify(ctx, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSyncSkipsBadPool(t *testing.T) {
	chainPools := map[uint64]chainPool{
		0: simplePool("0x00000000000000000000000000000000000000c1", 0),
		// id 1 missing on chain: getPool(1) reverts, sync must continue
		2: simplePool("0x00000000000000000000000000000000000000c2", 0),
	}
	h := newHarness(t, chainPools)
	ctx := context.Background()

	require.NoError(t, h.mirror.Sync(ctx))

	_, err := h.pools.GetByID(ctx, 0)
	require.NoError(t, err)
	_, err = h.pools.GetByID(ctx, 2)
	require.NoError(t, err)
	_, err = h.pools.GetByID(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
