package domain

import "math/big"

// OracleType distinguishes how a pool's outcome is settled.
type OracleType string

const (
	OracleGuided     OracleType = "guided"
	OracleOptimistic OracleType = "optimistic"
)

// MarketType mirrors the on-chain market type enum.
type MarketType int

const (
	MarketMoneyline MarketType = iota
	MarketOverUnder
	MarketBothTeamsScore
	MarketHalfTime
	MarketDoubleChance
	MarketCorrectScore
	MarketFirstGoal
	MarketCustom
)

// String returns the canonical label stored in the database.
func (m MarketType) String() string {
	switch m {
	case MarketMoneyline:
		return "MONEYLINE"
	case MarketOverUnder:
		return "OVER_UNDER"
	case MarketBothTeamsScore:
		return "BTTS"
	case MarketHalfTime:
		return "HALF_TIME"
	case MarketDoubleChance:
		return "DOUBLE_CHANCE"
	case MarketCorrectScore:
		return "CORRECT_SCORE"
	case MarketFirstGoal:
		return "FIRST_GOAL"
	default:
		return "CUSTOM"
	}
}

// PoolStatus is the lifecycle state of a pool row.
type PoolStatus string

const (
	PoolActive    PoolStatus = "active"
	PoolSettled   PoolStatus = "settled"
	PoolRefunded  PoolStatus = "refunded"
	PoolCancelled PoolStatus = "cancelled"
)

// Pool flag bits.
const (
	PoolFlagPrivate    = 1 << 0
	PoolFlagUsesNative = 1 << 1
)

// Pool is the database projection of an on-chain prediction pool.
// The chain is authoritative; on divergence the row is overwritten.
// All stake fields are 256-bit unsigned integers (NUMERIC(78,0) in storage).
type Pool struct {
	PoolID                uint64
	Creator               Address
	PredictedOutcome      string // decoded from a bytes32 tag
	Odds                  int64  // basis 1000: 1500 = 1.5x
	CreatorStake          *big.Int
	TotalCreatorSideStake *big.Int
	TotalBettorStake      *big.Int
	MaxBettorStake        *big.Int
	MaxBetPerUser         *big.Int
	EventStartTime        int64 // unix seconds
	EventEndTime          int64
	BettingEndTime        int64
	League                string
	Category              string
	Region                string
	HomeTeam              string
	AwayTeam              string
	Title                 string
	MarketID              string
	OracleType            OracleType
	MarketType            MarketType
	Status                PoolStatus
	Result                string // on-chain result tag once settled
	ResultTimestamp       int64
	Flags                 uint8
	ReadAt                int64 // unix seconds of the contract read that produced this snapshot
}

// IsPrivate reports bit 0 of the flags field.
func (p *Pool) IsPrivate() bool { return p.Flags&PoolFlagPrivate != 0 }

// UsesNative reports bit 1 of the flags field.
func (p *Pool) UsesNative() bool { return p.Flags&PoolFlagUsesNative != 0 }

// Bet is a single bettor-side position, identified by (pool_id, bettor, tx_hash).
type Bet struct {
	PoolID       uint64
	Bettor       Address
	Amount       *big.Int
	IsForOutcome bool
	BlockNumber  uint64
	TxHash       string
	CreatedAt    int64
}

// LiquidityProvision is a creator-side stake addition.
type LiquidityProvision struct {
	PoolID      uint64
	Provider    Address
	Amount      *big.Int
	BlockNumber uint64
	TxHash      string
	CreatedAt   int64
}

// OracleSubmission records one outcome pushed to the guided oracle.
// Its presence is the store-side dedupe for submissions; the contract's
// getOutcome is the chain-side dedupe.
type OracleSubmission struct {
	MarketID    string
	Outcome     string
	OracleType  OracleType
	SubmittedAt int64
	TxHash      string
}
