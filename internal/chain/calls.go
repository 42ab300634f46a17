package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"bitr-backend/internal/domain"
)

// Addresses holds the deployed contract addresses, keyed by registry name.
type Addresses map[string]common.Address

// Contracts exposes the typed read and write surface of the deployment.
// Reads go through the failover client's eth_call path; writes go through
// the sender bound to the calling subsystem's key.
type Contracts struct {
	client    *Client
	registry  *Registry
	addresses Addresses
	now       func() time.Time
}

// NewContracts wires the typed call surface. All named contracts must
// have an address; missing ones fail the first call against them.
func NewContracts(client *Client, registry *Registry, addresses Addresses) *Contracts {
	return &Contracts{
		client:    client,
		registry:  registry,
		addresses: addresses,
		now:       time.Now,
	}
}

// Address returns the deployed address for a registry contract name.
func (c *Contracts) Address(contract string) (common.Address, error) {
	addr, ok := c.addresses[contract]
	if !ok || addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no address configured for %s", contract)
	}
	return addr, nil
}

func (c *Contracts) call(ctx context.Context, contract, method string, args ...any) ([]any, error) {
	addr, err := c.Address(contract)
	if err != nil {
		return nil, err
	}
	data, err := c.registry.Pack(contract, method, args...)
	if err != nil {
		return nil, err
	}
	raw, err := c.client.CallContract(ctx, addr, data)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", contract, method, err)
	}
	return c.registry.Unpack(contract, method, raw)
}

// PoolCount reads the total number of pools ever created.
func (c *Contracts) PoolCount(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, ContractPoolCore, "poolCount")
	if err != nil {
		return 0, err
	}
	return out[0].(*big.Int).Uint64(), nil
}

// rawPool matches the getPool tuple layout.
type rawPool struct {
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

// GetPool reads the full pool struct and converts it to the database
// projection. ReadAt is stamped from the wall clock at call time; the
// mirror's last-writer-wins upsert depends on it.
func (c *Contracts) GetPool(ctx context.Context, poolID uint64) (*domain.Pool, error) {
	out, err := c.call(ctx, ContractPoolCore, "getPool", new(big.Int).SetUint64(poolID))
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new(rawPool)).(*rawPool)

	return &domain.Pool{
		PoolID:                poolID,
		Creator:               domain.NormalizeAddress(raw.Creator.Hex()),
		PredictedOutcome:      DecodeBytes32(raw.PredictedOutcome),
		Odds:                  raw.Odds.Int64(),
		CreatorStake:          raw.CreatorStake,
		TotalCreatorSideStake: raw.TotalCreatorSideStake,
		TotalBettorStake:      raw.TotalBettorStake,
		MaxBettorStake:        raw.MaxBettorStake,
		MaxBetPerUser:         raw.MaxBetPerUser,
		EventStartTime:        raw.EventStartTime.Int64(),
		EventEndTime:          raw.EventEndTime.Int64(),
		BettingEndTime:        raw.BettingEndTime.Int64(),
		League:                DecodeBytes32(raw.League),
		Category:              DecodeBytes32(raw.Category),
		Region:                DecodeBytes32(raw.Region),
		HomeTeam:              DecodeBytes32(raw.HomeTeam),
		AwayTeam:              DecodeBytes32(raw.AwayTeam),
		Title:                 DecodeBytes32(raw.Title),
		Result:                DecodeBytes32(raw.Result),
		MarketID:              raw.MarketId,
		OracleType:            oracleTypeFromCode(raw.OracleType),
		MarketType:            domain.MarketType(raw.MarketType),
		Status:                poolStatusFromCode(raw.Status),
		ResultTimestamp:       raw.ResultTimestamp.Int64(),
		Flags:                 raw.Flags,
		ReadAt:                c.now().Unix(),
	}, nil
}

func poolStatusFromCode(code uint8) domain.PoolStatus {
	switch code {
	case 1:
		return domain.PoolSettled
	case 2:
		return domain.PoolRefunded
	case 3:
		return domain.PoolCancelled
	default:
		return domain.PoolActive
	}
}

// IsPoolSettled reads the settlement flag for one pool.
func (c *Contracts) IsPoolSettled(ctx context.Context, poolID uint64) (bool, error) {
	out, err := c.call(ctx, ContractPoolCore, "isPoolSettled", new(big.Int).SetUint64(poolID))
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// GetOutcome reads the guided oracle's stored result for a market id.
// isSet=false means no outcome has been pushed yet.
func (c *Contracts) GetOutcome(ctx context.Context, marketID string) (bool, []byte, error) {
	out, err := c.call(ctx, ContractGuidedOracle, "getOutcome", MarketHash(marketID))
	if err != nil {
		return false, nil, err
	}
	return out[0].(bool), out[1].([]byte), nil
}

// OracleBot reads the account authorized to submit guided outcomes.
func (c *Contracts) OracleBot(ctx context.Context) (common.Address, error) {
	out, err := c.call(ctx, ContractGuidedOracle, "oracleBot")
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// IsAuthorizedUpdater reports whether an account may push reputation
// scores on the reputation contract.
func (c *Contracts) IsAuthorizedUpdater(ctx context.Context, updater common.Address) (bool, error) {
	out, err := c.call(ctx, ContractReputationSystem, "authorizedUpdaters", updater)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// GetUserReputation reads a user's on-chain reputation score.
func (c *Contracts) GetUserReputation(ctx context.Context, user common.Address) (uint64, error) {
	out, err := c.call(ctx, ContractReputationSystem, "getUserReputation", user)
	if err != nil {
		return 0, err
	}
	return out[0].(*big.Int).Uint64(), nil
}

// BalanceOf reads a BITR token balance.
func (c *Contracts) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	out, err := c.call(ctx, ContractBITRToken, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

func (c *Contracts) send(ctx context.Context, sender *TxSender, contract, method string, args ...any) (*types.Receipt, error) {
	addr, err := c.Address(contract)
	if err != nil {
		return nil, err
	}
	data, err := c.registry.Pack(contract, method, args...)
	if err != nil {
		return nil, err
	}
	return sender.Send(ctx, addr, data)
}

// SubmitOutcome pushes a resolved outcome to the guided oracle. The
// market id is keyed by its keccak256 hash; the outcome label travels
// as raw bytes.
func (c *Contracts) SubmitOutcome(ctx context.Context, sender *TxSender, marketID, outcome string) (*types.Receipt, error) {
	return c.send(ctx, sender, ContractGuidedOracle, "submitOutcome",
		MarketHash(marketID), []byte(outcome))
}

// SettlePoolAutomatically asks the pool contract to settle from the
// oracle's stored outcome.
func (c *Contracts) SettlePoolAutomatically(ctx context.Context, sender *TxSender, poolID uint64) (*types.Receipt, error) {
	return c.send(ctx, sender, ContractPoolCore, "settlePoolAutomatically",
		new(big.Int).SetUint64(poolID))
}

// SettlePool settles a pool with an explicit outcome tag. Fallback path
// when automatic settlement reverts.
func (c *Contracts) SettlePool(ctx context.Context, sender *TxSender, poolID uint64, outcome string) (*types.Receipt, error) {
	return c.send(ctx, sender, ContractPoolCore, "settlePool",
		new(big.Int).SetUint64(poolID), encodeBytes32(outcome))
}

// BatchUpdateReputation pushes absolute scores for a batch of users.
func (c *Contracts) BatchUpdateReputation(ctx context.Context, sender *TxSender, users []common.Address, scores []*big.Int) (*types.Receipt, error) {
	if len(users) != len(scores) {
		return nil, fmt.Errorf("batch mismatch: %d users, %d scores", len(users), len(scores))
	}
	return c.send(ctx, sender, ContractReputationSystem, "batchUpdateReputation", users, scores)
}

// encodeBytes32 right-pads a short ASCII tag into a bytes32 value.
// Tags longer than 32 bytes are truncated; on-chain tags never are.
func encodeBytes32(s string) [32]byte {
	var out [32]byte
	copy(out[:], s)
	return out
}
