package domain

// OddysseySlip is one daily parlay of ten predictions.
type OddysseySlip struct {
	SlipID          uint64
	Player          Address
	CycleID         uint64
	PlacedAt        int64
	PredictionsJSON []byte // raw predictions payload, kept opaque for audit
	IsEvaluated     bool
	CorrectCount    int
	FinalScore      float64
	LeaderboardRank int
	PrizeClaimed    bool
}

// OddysseyCycle is one daily round of the parlay game.
type OddysseyCycle struct {
	CycleID   uint64
	StartTime int64
	EndTime   int64
	SlipCount int
	Resolved  bool
}
