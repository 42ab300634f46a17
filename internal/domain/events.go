package domain

import "math/big"

// EventMeta locates a decoded log on the chain.
type EventMeta struct {
	Contract    string // registry name: "PoolCore", "Oddyssey", ...
	EventName   string
	BlockNumber uint64
	BlockHash   string
	TxHash      string
	LogIndex    uint
	Timestamp   int64 // block timestamp, unix seconds, 0 if not fetched
}

// ChainEvent is implemented by every typed event variant.
type ChainEvent interface {
	Meta() EventMeta
}

// Meta implements ChainEvent for all embedders.
func (m EventMeta) Meta() EventMeta { return m }

// PoolCreatedEvent mirrors PoolCore.PoolCreated.
type PoolCreatedEvent struct {
	EventMeta
	PoolID         uint64
	Creator        Address
	EventStartTime int64
	EventEndTime   int64
	OracleType     OracleType
	MarketID       string
	MarketType     MarketType
	League         string
	Category       string
}

// BetPlacedEvent mirrors PoolCore.BetPlaced.
type BetPlacedEvent struct {
	EventMeta
	PoolID       uint64
	Bettor       Address
	Amount       *big.Int
	IsForOutcome bool
}

// LiquidityAddedEvent mirrors PoolCore.LiquidityAdded.
type LiquidityAddedEvent struct {
	EventMeta
	PoolID   uint64
	Provider Address
	Amount   *big.Int
}

// PoolSettledEvent mirrors PoolCore.PoolSettled.
type PoolSettledEvent struct {
	EventMeta
	PoolID         uint64
	Outcome        string
	CreatorSideWon bool
	SettledAt      int64
}

// PoolRefundedEvent mirrors PoolCore.PoolRefunded.
type PoolRefundedEvent struct {
	EventMeta
	PoolID uint64
}

// BoostActivatedEvent mirrors BoostSystem.BoostActivated.
type BoostActivatedEvent struct {
	EventMeta
	PoolID uint64
	Tier   uint8
	Expiry int64
}

// SlipPlacedEvent mirrors Oddyssey.SlipPlaced.
type SlipPlacedEvent struct {
	EventMeta
	Player  Address
	SlipID  uint64
	CycleID uint64
}

// SlipEvaluatedEvent mirrors Oddyssey.SlipEvaluated.
type SlipEvaluatedEvent struct {
	EventMeta
	SlipID  uint64
	Score   int
	CycleID uint64
}

// PrizeClaimedEvent mirrors Oddyssey.PrizeClaimed.
type PrizeClaimedEvent struct {
	EventMeta
	Player Address
	SlipID uint64
	Amount *big.Int
}

// ReputationUpdatedEvent mirrors ReputationSystem.ReputationUpdated.
type ReputationUpdatedEvent struct {
	EventMeta
	User     Address
	NewScore int
}

// MarketResolvedEvent mirrors GuidedOracle.MarketResolved.
type MarketResolvedEvent struct {
	EventMeta
	MarketHash string
	Outcome    []byte
}

// TransferEvent mirrors the ERC-20 Transfer event on the BITR token.
type TransferEvent struct {
	EventMeta
	From  Address
	To    Address
	Value *big.Int
}

// FaucetClaimedEvent mirrors Faucet.FaucetClaimed.
type FaucetClaimedEvent struct {
	EventMeta
	User      Address
	Amount    *big.Int
	ClaimedAt int64
}

// StakedEvent mirrors Staking.Staked.
type StakedEvent struct {
	EventMeta
	User     Address
	Amount   *big.Int
	Tier     uint8
	Duration int64
}

// UnstakedEvent mirrors Staking.Unstaked.
type UnstakedEvent struct {
	EventMeta
	User      Address
	Amount    *big.Int
	Timestamp int64
}

// RewardsClaimedEvent mirrors Staking.RewardsClaimed.
type RewardsClaimedEvent struct {
	EventMeta
	User      Address
	Amount    *big.Int
	Timestamp int64
}

// GenericEvent carries a decoded event with no dedicated variant.
// It still flows into the strategic archive when the filter retains it.
type GenericEvent struct {
	EventMeta
	Args map[string]any
}

// StrategicEvent is the durable at-least-once archive row for one chain
// event, unique on (tx_hash, log_index, event_name).
type StrategicEvent struct {
	TxHash      string
	LogIndex    uint
	EventName   string
	Contract    string
	BlockNumber uint64
	ArgsJSON    []byte
	RecordedAt  int64
}

// IndexedBlock marks the highest fully processed block for a scan category.
// BlockHash enables reorg detection; empty on bootstrap.
type IndexedBlock struct {
	Category    string
	BlockNumber uint64
	BlockHash   string
	IndexedAt   int64
}
