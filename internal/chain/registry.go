package chain

import (
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"

	"bitr-backend/internal/domain"
)

// Registry parses the contract ABIs once and decodes raw logs into typed
// domain events. Heterogeneous deployments emit foreign events; those are
// remembered in a negative cache and skipped without error.
type Registry struct {
	abis         map[string]abi.ABI
	unknownTopic *lru.Cache[common.Hash, struct{}]
}

// NewRegistry parses all contract ABIs. A malformed ABI is a programming
// error and fails startup.
func NewRegistry() (*Registry, error) {
	abis := make(map[string]abi.ABI, len(contractABIs))
	for name, raw := range contractABIs {
		parsed, err := abi.JSON(strings.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse %s abi: %w", name, err)
		}
		abis[name] = parsed
	}

	cache, err := lru.New[common.Hash, struct{}](1024)
	if err != nil {
		return nil, fmt.Errorf("create topic cache: %w", err)
	}

	return &Registry{abis: abis, unknownTopic: cache}, nil
}

// ABI returns the parsed ABI for a registered contract.
func (r *Registry) ABI(contract string) (abi.ABI, error) {
	parsed, ok := r.abis[contract]
	if !ok {
		return abi.ABI{}, fmt.Errorf("unknown contract %q", contract)
	}
	return parsed, nil
}

// Pack encodes a function call for a registered contract.
func (r *Registry) Pack(contract, method string, args ...any) ([]byte, error) {
	parsed, err := r.ABI(contract)
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s.%s: %w", contract, method, err)
	}
	return data, nil
}

// Unpack decodes a function return for a registered contract.
func (r *Registry) Unpack(contract, method string, data []byte) ([]any, error) {
	parsed, err := r.ABI(contract)
	if err != nil {
		return nil, err
	}
	out, err := parsed.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s.%s: %w", contract, method, err)
	}
	return out, nil
}

// Decoded pairs a typed event with a JSON-safe rendering of its raw
// arguments for the strategic archive (big integers as decimal strings,
// bytes as hex).
type Decoded struct {
	Event domain.ChainEvent
	Args  map[string]any
}

// DecodeLog decodes one raw log against a contract's ABI. ok=false means
// the log is foreign to the contract (unknown topic); that is not an error.
func (r *Registry) DecodeLog(contract string, lg types.Log) (*Decoded, bool, error) {
	if len(lg.Topics) == 0 {
		return nil, false, nil
	}
	if _, skip := r.unknownTopic.Get(lg.Topics[0]); skip {
		return nil, false, nil
	}

	parsed, err := r.ABI(contract)
	if err != nil {
		return nil, false, err
	}

	event, err := parsed.EventByID(lg.Topics[0])
	if err != nil {
		r.unknownTopic.Add(lg.Topics[0], struct{}{})
		return nil, false, nil
	}

	args := make(map[string]any)
	if err := parsed.UnpackIntoMap(args, event.Name, lg.Data); err != nil {
		return nil, false, fmt.Errorf("unpack %s.%s data: %w", contract, event.Name, err)
	}

	var indexed abi.Arguments
	for _, in := range event.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	if err := abi.ParseTopicsIntoMap(args, indexed, lg.Topics[1:]); err != nil {
		return nil, false, fmt.Errorf("parse %s.%s topics: %w", contract, event.Name, err)
	}

	meta := domain.EventMeta{
		Contract:    contract,
		EventName:   event.Name,
		BlockNumber: lg.BlockNumber,
		BlockHash:   lg.BlockHash.Hex(),
		TxHash:      lg.TxHash.Hex(),
		LogIndex:    lg.Index,
	}

	safe := jsonSafeArgs(args)
	typed, err := toTypedEvent(contract, event.Name, meta, args, safe)
	if err != nil {
		return nil, false, err
	}
	return &Decoded{Event: typed, Args: safe}, true, nil
}

// toTypedEvent maps a decoded argument set onto its event variant.
// Unlisted events fall back to GenericEvent so the archive still sees them.
func toTypedEvent(contract, name string, meta domain.EventMeta, args, safe map[string]any) (domain.ChainEvent, error) {
	switch contract + "." + name {
	case "PoolCore.PoolCreated":
		return &domain.PoolCreatedEvent{
			EventMeta:      meta,
			PoolID:         argUint64(args, "poolId"),
			Creator:        argAddress(args, "creator"),
			EventStartTime: argInt64(args, "eventStartTime"),
			EventEndTime:   argInt64(args, "eventEndTime"),
			OracleType:     oracleTypeFromCode(argUint8(args, "oracleType")),
			MarketID:       argString(args, "marketId"),
			MarketType:     domain.MarketType(argUint8(args, "marketType")),
			League:         argBytes32String(args, "league"),
			Category:       argBytes32String(args, "category"),
		}, nil
	case "PoolCore.BetPlaced":
		return &domain.BetPlacedEvent{
			EventMeta:    meta,
			PoolID:       argUint64(args, "poolId"),
			Bettor:       argAddress(args, "bettor"),
			Amount:       argBig(args, "amount"),
			IsForOutcome: argBool(args, "isForOutcome"),
		}, nil
	case "PoolCore.LiquidityAdded":
		return &domain.LiquidityAddedEvent{
			EventMeta: meta,
			PoolID:    argUint64(args, "poolId"),
			Provider:  argAddress(args, "provider"),
			Amount:    argBig(args, "amount"),
		}, nil
	case "PoolCore.PoolSettled":
		return &domain.PoolSettledEvent{
			EventMeta:      meta,
			PoolID:         argUint64(args, "poolId"),
			Outcome:        argBytes32String(args, "outcome"),
			CreatorSideWon: argBool(args, "creatorSideWon"),
			SettledAt:      argInt64(args, "timestamp"),
		}, nil
	case "PoolCore.PoolRefunded":
		return &domain.PoolRefundedEvent{
			EventMeta: meta,
			PoolID:    argUint64(args, "poolId"),
		}, nil
	case "BoostSystem.BoostActivated":
		return &domain.BoostActivatedEvent{
			EventMeta: meta,
			PoolID:    argUint64(args, "poolId"),
			Tier:      argUint8(args, "tier"),
			Expiry:    argInt64(args, "expiry"),
		}, nil
	case "Oddyssey.SlipPlaced":
		return &domain.SlipPlacedEvent{
			EventMeta: meta,
			Player:    argAddress(args, "player"),
			SlipID:    argUint64(args, "slipId"),
			CycleID:   argUint64(args, "cycleId"),
		}, nil
	case "Oddyssey.SlipEvaluated":
		return &domain.SlipEvaluatedEvent{
			EventMeta: meta,
			SlipID:    argUint64(args, "slipId"),
			Score:     int(argUint8(args, "score")),
			CycleID:   argUint64(args, "cycleId"),
		}, nil
	case "Oddyssey.PrizeClaimed":
		return &domain.PrizeClaimedEvent{
			EventMeta: meta,
			Player:    argAddress(args, "player"),
			SlipID:    argUint64(args, "slipId"),
			Amount:    argBig(args, "amount"),
		}, nil
	case "ReputationSystem.ReputationUpdated":
		return &domain.ReputationUpdatedEvent{
			EventMeta: meta,
			User:      argAddress(args, "user"),
			NewScore:  int(argUint64(args, "newScore")),
		}, nil
	case "GuidedOracle.MarketResolved":
		return &domain.MarketResolvedEvent{
			EventMeta:  meta,
			MarketHash: argHashHex(args, "marketHash"),
			Outcome:    argBytes(args, "outcome"),
		}, nil
	case "BITRToken.Transfer":
		return &domain.TransferEvent{
			EventMeta: meta,
			From:      argAddress(args, "from"),
			To:        argAddress(args, "to"),
			Value:     argBig(args, "value"),
		}, nil
	case "Faucet.FaucetClaimed":
		return &domain.FaucetClaimedEvent{
			EventMeta: meta,
			User:      argAddress(args, "user"),
			Amount:    argBig(args, "amount"),
			ClaimedAt: argInt64(args, "timestamp"),
		}, nil
	case "Staking.Staked":
		return &domain.StakedEvent{
			EventMeta: meta,
			User:      argAddress(args, "user"),
			Amount:    argBig(args, "amount"),
			Tier:      argUint8(args, "tier"),
			Duration:  argInt64(args, "duration"),
		}, nil
	case "Staking.Unstaked":
		return &domain.UnstakedEvent{
			EventMeta: meta,
			User:      argAddress(args, "user"),
			Amount:    argBig(args, "amount"),
			Timestamp: argInt64(args, "timestamp"),
		}, nil
	case "Staking.RewardsClaimed":
		return &domain.RewardsClaimedEvent{
			EventMeta: meta,
			User:      argAddress(args, "user"),
			Amount:    argBig(args, "amount"),
			Timestamp: argInt64(args, "timestamp"),
		}, nil
	default:
		return &domain.GenericEvent{EventMeta: meta, Args: safe}, nil
	}
}

// MarketHash computes the guided oracle key: keccak256 of the ASCII
// market id.
func MarketHash(marketID string) common.Hash {
	return crypto.Keccak256Hash([]byte(marketID))
}

// DecodeBytes32 interprets an on-chain bytes32 tag as right-padded UTF-8.
// All-zero values become the empty string; trailing NULs are trimmed; a
// non-UTF-8 value is kept as 0x-hex rather than corrupted.
func DecodeBytes32(b [32]byte) string {
	allZero := true
	for _, c := range b {
		if c != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return ""
	}

	trimmed := strings.TrimRight(string(b[:]), "\x00")
	if !utf8.ValidString(trimmed) {
		return "0x" + common.Bytes2Hex(b[:])
	}
	return trimmed
}

// oracleTypeFromCode maps the on-chain enum to the domain type.
func oracleTypeFromCode(code uint8) domain.OracleType {
	if code == 1 {
		return domain.OracleOptimistic
	}
	return domain.OracleGuided
}

// Argument extraction helpers. Decoded values come out of the ABI layer
// as *big.Int, common.Address, bool, string, [32]byte, or []byte.

func argBig(args map[string]any, key string) *big.Int {
	if v, ok := args[key].(*big.Int); ok {
		return v
	}
	return new(big.Int)
}

func argUint64(args map[string]any, key string) uint64 {
	return argBig(args, key).Uint64()
}

func argInt64(args map[string]any, key string) int64 {
	return argBig(args, key).Int64()
}

func argUint8(args map[string]any, key string) uint8 {
	if v, ok := args[key].(uint8); ok {
		return v
	}
	return uint8(argUint64(args, key))
}

func argBool(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argAddress(args map[string]any, key string) domain.Address {
	if v, ok := args[key].(common.Address); ok {
		return domain.NormalizeAddress(v.Hex())
	}
	return ""
}

func argBytes32String(args map[string]any, key string) string {
	if v, ok := args[key].([32]byte); ok {
		return DecodeBytes32(v)
	}
	return ""
}

func argHashHex(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case common.Hash:
		return v.Hex()
	case [32]byte:
		return common.Hash(v).Hex()
	}
	return ""
}

func argBytes(args map[string]any, key string) []byte {
	v, _ := args[key].([]byte)
	return v
}

// jsonSafeArgs renders decoded arguments for the strategic archive:
// big integers become decimal strings (never JSON numbers), byte slices
// and hashes become hex.
func jsonSafeArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		switch tv := v.(type) {
		case *big.Int:
			out[k] = tv.String()
		case common.Address:
			out[k] = strings.ToLower(tv.Hex())
		case common.Hash:
			out[k] = tv.Hex()
		case [32]byte:
			out[k] = DecodeBytes32(tv)
		case []byte:
			out[k] = "0x" + common.Bytes2Hex(tv)
		default:
			out[k] = tv
		}
	}
	return out
}
