package reputation

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"bitr-backend/internal/chain"
	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// DefaultSyncBatchLimit caps one outbound sync cycle.
const DefaultSyncBatchLimit = 50

// Syncer is the outbound side: it pushes dirty reputation scores to the
// reputation contract in batches. Runs every 5 minutes.
type Syncer struct {
	users     storage.UserStore
	contracts *chain.Contracts
	sender    *chain.TxSender
	limit     int
	logger    *log.Logger
	now       func() time.Time
}

// SyncerOptions collects the syncer's dependencies.
type SyncerOptions struct {
	Users     storage.UserStore
	Contracts *chain.Contracts
	// Sender signs reputation updates. May be the same TxSender as the
	// oracle submitter (shared wallet, mutex-serialized nonces) or a
	// separate one per wallet; configuration decides.
	Sender     *chain.TxSender
	BatchLimit int
	Logger     *log.Logger
}

func NewSyncer(opts SyncerOptions) (*Syncer, error) {
	if opts.Users == nil || opts.Contracts == nil || opts.Sender == nil {
		return nil, fmt.Errorf("reputation: users, contracts and sender are required")
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = DefaultSyncBatchLimit
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Syncer{
		users:     opts.Users,
		contracts: opts.Contracts,
		sender:    opts.Sender,
		limit:     opts.BatchLimit,
		logger:    opts.Logger,
		now:       time.Now,
	}, nil
}

// Run pushes one batch of dirty users. last_synced_at only advances on
// a confirmed receipt, so a revert means the same users are retried
// next cycle.
func (s *Syncer) Run(ctx context.Context) error {
	dirty, err := s.users.DirtyUsers(ctx, s.limit)
	if err != nil {
		return fmt.Errorf("list dirty users: %w", err)
	}
	if len(dirty) == 0 {
		return nil
	}

	authorized, err := s.contracts.IsAuthorizedUpdater(ctx, s.sender.From())
	if err != nil {
		return fmt.Errorf("check updater authorization: %w", err)
	}
	if !authorized {
		s.logger.Printf("reputation: WARNING wallet %s is not an authorized updater, skipping sync cycle",
			s.sender.From().Hex())
		return nil
	}

	addrs := make([]common.Address, len(dirty))
	scores := make([]*big.Int, len(dirty))
	marked := make([]domain.Address, len(dirty))
	for i, u := range dirty {
		addrs[i] = common.HexToAddress(string(u.Address))
		scores[i] = big.NewInt(int64(u.Reputation))
		marked[i] = u.Address
	}

	if _, err := s.contracts.BatchUpdateReputation(ctx, s.sender, addrs, scores); err != nil {
		return fmt.Errorf("push reputation batch of %d: %w", len(dirty), err)
	}

	if err := s.users.MarkSynced(ctx, marked, s.now().Unix()); err != nil {
		return fmt.Errorf("mark %d users synced: %w", len(marked), err)
	}
	s.logger.Printf("reputation: synced %d users on-chain", len(dirty))
	return nil
}

// SyncUser pushes a single user immediately, used before actions that
// read reputation on-chain (e.g. guided pool creation). Same gating as
// the batch path.
func (s *Syncer) SyncUser(ctx context.Context, addr domain.Address) error {
	u, err := s.users.GetByAddress(ctx, addr)
	if err != nil {
		return fmt.Errorf("load user %s: %w", addr, err)
	}
	if !u.Dirty() {
		return nil
	}

	authorized, err := s.contracts.IsAuthorizedUpdater(ctx, s.sender.From())
	if err != nil {
		return fmt.Errorf("check updater authorization: %w", err)
	}
	if !authorized {
		return fmt.Errorf("wallet %s is not an authorized updater", s.sender.From().Hex())
	}

	_, err = s.contracts.BatchUpdateReputation(ctx, s.sender,
		[]common.Address{common.HexToAddress(string(addr))},
		[]*big.Int{big.NewInt(int64(u.Reputation))})
	if err != nil {
		return fmt.Errorf("push reputation for %s: %w", addr, err)
	}
	return s.users.MarkSynced(ctx, []domain.Address{addr}, s.now().Unix())
}
