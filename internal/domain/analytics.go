package domain

import "time"

// DailyStat is one day's platform-wide rollup.
type DailyStat struct {
	Day           time.Time
	PoolsCreated  uint64
	BetsPlaced    uint64
	BetVolume     float64
	UniqueBettors uint64
	ComputedAt    time.Time
}

// CategoryStat is one day's rollup for a single pool category.
type CategoryStat struct {
	Day          time.Time
	Category     string
	PoolsCreated uint64
	BetsPlaced   uint64
	BetVolume    float64
	ComputedAt   time.Time
}

// HourlyActivity is one hour's event-level activity rollup.
type HourlyActivity struct {
	Hour          time.Time
	EventsIndexed uint64
	BetsPlaced    uint64
	SlipsPlaced   uint64
	ComputedAt    time.Time
}
