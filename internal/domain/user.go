package domain

// Reputation bounds. DefaultReputation is assigned on first contact.
const (
	DefaultReputation = 40
	MinReputation     = 20
	MaxReputation     = 150
)

// User is one platform account keyed by normalized address.
type User struct {
	Address      Address
	Reputation   int
	TotalBets    int
	TotalPools   int
	PoolsWon     int
	LastActive   int64 // unix seconds
	LastSyncedAt int64 // 0 = never pushed on-chain
	CreatedAt    int64
}

// Dirty reports whether the user's reputation needs an on-chain push.
func (u *User) Dirty() bool {
	return u.Reputation > 0 && (u.LastSyncedAt == 0 || u.LastActive > u.LastSyncedAt)
}

// ReputationActionType names one reputation-affecting action.
type ReputationActionType string

const (
	ActionPoolCreated            ReputationActionType = "POOL_CREATED"
	ActionBetPlaced              ReputationActionType = "BET_PLACED"
	ActionOddysseyParticipation  ReputationActionType = "ODDYSSEY_PARTICIPATION"
	ActionOddysseyQualifying     ReputationActionType = "ODDYSSEY_QUALIFYING"
	ActionOddysseyExcellent      ReputationActionType = "ODDYSSEY_EXCELLENT"
	ActionOddysseyOutstanding    ReputationActionType = "ODDYSSEY_OUTSTANDING"
	ActionOddysseyPerfect        ReputationActionType = "ODDYSSEY_PERFECT"
	ActionReputationDecay        ReputationActionType = "DECAY"
)

// ReputationAction is one append-only ledger entry. The user's current
// reputation is the capped running sum of these deltas.
type ReputationAction struct {
	Address     Address
	Action      ReputationActionType
	Delta       int
	PoolID      *uint64
	SlipID      *uint64
	BlockNumber uint64
	TxHash      string
	OccurredAt  int64
}
