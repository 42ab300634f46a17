package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitr-backend/internal/domain"
)

func tag32(s string) [32]byte {
	var out [32]byte
	copy(out[:], s)
	return out
}

func TestDecodeBytes32(t *testing.T) {
	assert.Equal(t, "", DecodeBytes32([32]byte{}))
	assert.Equal(t, "Premier League", DecodeBytes32(tag32("Premier League")))

	// Non-UTF-8 payloads survive as hex instead of mojibake.
	raw := [32]byte{0xff, 0xfe, 0x01}
	got := DecodeBytes32(raw)
	require.Len(t, got, 66)
	assert.Equal(t, "0xfffe01", got[:8])
}

func TestMarketHashDeterministic(t *testing.T) {
	a := MarketHash("19441654")
	b := MarketHash("19441654")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, MarketHash("19441655"))
}

func makeLog(t *testing.T, r *Registry, contract, event string, topics []common.Hash, nonIndexed ...any) types.Log {
	t.Helper()
	parsed, err := r.ABI(contract)
	require.NoError(t, err)
	ev, ok := parsed.Events[event]
	require.True(t, ok, "event %s not in %s abi", event, contract)

	data, err := ev.Inputs.NonIndexed().Pack(nonIndexed...)
	require.NoError(t, err)

	return types.Log{
		Address:     common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Topics:      append([]common.Hash{ev.ID}, topics...),
		Data:        data,
		BlockNumber: 4242,
		BlockHash:   common.HexToHash("0x11"),
		TxHash:      common.HexToHash("0x22"),
		Index:       7,
	}
}

func TestDecodePoolCreated(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	creator := common.HexToAddress("0xAbCd00000000000000000000000000000000EF01")
	lg := makeLog(t, r, ContractPoolCore, "PoolCreated",
		[]common.Hash{
			common.BigToHash(big.NewInt(17)),
			common.BytesToHash(common.LeftPadBytes(creator.Bytes(), 32)),
		},
		big.NewInt(1_700_000_000), // eventStartTime
		big.NewInt(1_700_007_200), // eventEndTime
		uint8(0),                  // oracleType
		"19441654",                // marketId
		uint8(1),                  // marketType
		tag32("Premier League"),
		tag32("football"),
	)

	decoded, ok, err := r.DecodeLog(ContractPoolCore, lg)
	require.NoError(t, err)
	require.True(t, ok)

	created, isCreated := decoded.Event.(*domain.PoolCreatedEvent)
	require.True(t, isCreated)
	assert.Equal(t, uint64(17), created.PoolID)
	assert.Equal(t, domain.NormalizeAddress(creator.Hex()), created.Creator)
	assert.Equal(t, domain.OracleGuided, created.OracleType)
	assert.Equal(t, "19441654", created.MarketID)
	assert.Equal(t, domain.MarketOverUnder, created.MarketType)
	assert.Equal(t, "Premier League", created.League)
	assert.Equal(t, "football", created.Category)
	assert.Equal(t, uint64(4242), created.Meta().BlockNumber)
	assert.Equal(t, uint(7), created.Meta().LogIndex)
}

func TestDecodeBetPlacedAmountPrecision(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	// Amount near 2^255 must round-trip without float truncation.
	amount, _ := new(big.Int).SetString(
		"57896044618658097711785492504343953926634992332820282019728792003956564819967", 10)

	bettor := common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	lg := makeLog(t, r, ContractPoolCore, "BetPlaced",
		[]common.Hash{
			common.BigToHash(big.NewInt(3)),
			common.BytesToHash(common.LeftPadBytes(bettor.Bytes(), 32)),
		},
		amount,
		true,
	)

	decoded, ok, err := r.DecodeLog(ContractPoolCore, lg)
	require.NoError(t, err)
	require.True(t, ok)

	bet := decoded.Event.(*domain.BetPlacedEvent)
	assert.Zero(t, amount.Cmp(bet.Amount))
	assert.True(t, bet.IsForOutcome)

	// the archive rendering keeps the full integer as a decimal string
	assert.Equal(t, amount.String(), decoded.Args["amount"])
}

func TestDecodeMarketResolved(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	hash := MarketHash("BTC-above-100000")
	lg := makeLog(t, r, ContractGuidedOracle, "MarketResolved",
		[]common.Hash{hash},
		[]byte("yes"),
	)

	decoded, ok, err := r.DecodeLog(ContractGuidedOracle, lg)
	require.NoError(t, err)
	require.True(t, ok)

	resolved := decoded.Event.(*domain.MarketResolvedEvent)
	assert.Equal(t, hash.Hex(), resolved.MarketHash)
	assert.Equal(t, []byte("yes"), resolved.Outcome)
}

func TestDecodeUnknownTopicSkipsAndCaches(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	lg := types.Log{Topics: []common.Hash{common.HexToHash("0xdeadbeef")}}
	for i := 0; i < 2; i++ {
		decoded, ok, err := r.DecodeLog(ContractPoolCore, lg)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, decoded)
	}
	_, cached := r.unknownTopic.Get(lg.Topics[0])
	assert.True(t, cached)
}

func TestDecodeSystemAlertFallsBackToGeneric(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	lg := makeLog(t, r, ContractGuidedOracle, "SystemAlert", nil,
		"critical", "oracle bot key rotated")

	decoded, ok, err := r.DecodeLog(ContractGuidedOracle, lg)
	require.NoError(t, err)
	require.True(t, ok)

	generic := decoded.Event.(*domain.GenericEvent)
	assert.Equal(t, "SystemAlert", generic.Meta().EventName)
	assert.Equal(t, "critical", generic.Args["severity"])
	assert.Equal(t, "oracle bot key rotated", generic.Args["message"])
}
