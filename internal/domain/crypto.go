package domain

// PriceDirection is the side of a crypto threshold market.
type PriceDirection string

const (
	DirectionAbove PriceDirection = "above"
	DirectionBelow PriceDirection = "below"
)

// CryptoTimeframe is the horizon of a crypto prediction market.
type CryptoTimeframe string

const (
	Timeframe1H  CryptoTimeframe = "1h"
	Timeframe24H CryptoTimeframe = "24h"
	Timeframe7D  CryptoTimeframe = "7d"
	Timeframe30D CryptoTimeframe = "30d"
)

// CryptoMarket is a price-threshold prediction market. It resolves YES
// iff the reference spot price at/after EndTime satisfies Direction
// relative to TargetPrice. Rows are never mutated after resolution.
type CryptoMarket struct {
	MarketID    string
	CoinID      string
	Symbol      string
	TargetPrice float64
	Direction   PriceDirection
	Timeframe   CryptoTimeframe
	StartPrice  float64
	StartTime   int64
	EndTime     int64
	Resolved    bool
	FinalPrice  float64
	Result      string // "YES" | "NO" once resolved
}

// Satisfied reports whether price meets the market's threshold.
// An exact hit on the target counts for the "above" side.
func (m *CryptoMarket) Satisfied(price float64) bool {
	if m.Direction == DirectionAbove {
		return price >= m.TargetPrice
	}
	return price < m.TargetPrice
}

// PriceSnapshot is one periodic ticker observation.
type PriceSnapshot struct {
	CoinID           string
	Symbol           string
	PriceUSD         float64
	MarketCap        float64
	Volume24H        float64
	PercentChange1H  float64
	PercentChange24H float64
	PercentChange7D  float64
	RecordedAt       int64
}

// ResolutionLog captures one resolver attempt (success or failure) for audit.
type ResolutionLog struct {
	MarketID    string
	Domain      string // "crypto" | "football"
	Outcome     string
	Success     bool
	ErrorText   string
	AttemptedAt int64
}
