package domain

// FixtureStatus is the normalized match state from the sports data provider.
type FixtureStatus string

const (
	StatusNotStarted FixtureStatus = "NS"
	StatusLive       FixtureStatus = "LIVE"
	StatusHalfTime   FixtureStatus = "HT"
	StatusFullTime   FixtureStatus = "FT"
	StatusExtraTime  FixtureStatus = "AET"
	StatusPenalties  FixtureStatus = "PEN"
	StatusFTPen      FixtureStatus = "FT_PEN"
	StatusOther      FixtureStatus = "OTHER"
)

// Finished reports whether the fixture has a final result.
func (s FixtureStatus) Finished() bool {
	switch s {
	case StatusFullTime, StatusExtraTime, StatusPenalties, StatusFTPen:
		return true
	}
	return false
}

// WentToExtraTime reports whether the fixture's CURRENT score includes
// goals beyond regulation time. Pools settle on the 90-minute score, so
// these statuses must never use the CURRENT score directly.
func (s FixtureStatus) WentToExtraTime() bool {
	switch s {
	case StatusExtraTime, StatusPenalties, StatusFTPen:
		return true
	}
	return false
}

// Fixture is one scheduled match from the sports data provider.
type Fixture struct {
	FixtureID    string // opaque provider id, shared with on-chain market_id
	HomeTeamID   string
	AwayTeamID   string
	HomeTeam     string
	AwayTeam     string
	League       string
	LeagueID     string
	Country      string
	KickoffTime  int64 // unix seconds
	Status       FixtureStatus
	Venue        string
	Referee      string
	HomeImageURL string
	AwayImageURL string
	LeagueImage  string
	UpdatedAt    int64
}

// OddsRow is one decimal price from one bookmaker for one market selection.
// Total distinguishes over/under lines sharing a market id (e.g. O/U 2.5).
type OddsRow struct {
	FixtureID   string
	MarketID    int // provider market code: 1=1X2, 80=FT O/U, 14=BTTS, ...
	BookmakerID int
	Label       string
	Total       string // "" for markets without a line
	Price       float64
	UpdatedAt   int64
}

// ScoreLabel identifies which period a score snapshot belongs to.
type ScoreLabel string

const (
	ScoreCurrent        ScoreLabel = "CURRENT"
	ScoreFirstHalf      ScoreLabel = "1ST_HALF"
	ScoreSecondHalf     ScoreLabel = "2ND_HALF"
	ScoreSecondHalfOnly ScoreLabel = "2ND_HALF_ONLY"
	ScoreFullTime       ScoreLabel = "FT"
	ScoreExtraTime      ScoreLabel = "ET"
	ScorePenalties      ScoreLabel = "PENALTIES"
)

// ScorePair is one (home, away) goal tally.
type ScorePair struct {
	Home int
	Away int
}

// Total returns home+away goals.
func (s ScorePair) Total() int { return s.Home + s.Away }

// ScoreSet is the raw labeled scores attached to a provider result payload.
// Labels that were absent from the payload are simply missing from the map.
type ScoreSet map[ScoreLabel]ScorePair

// FixtureResult is the settled result row for a finished fixture.
// HomeScore/AwayScore always hold the 90-minute score: for AET/PEN
// fixtures they are the sum of the two regulation halves, never the
// after-extra-time tally.
type FixtureResult struct {
	FixtureID     string
	Status        FixtureStatus
	HomeScore     int
	AwayScore     int
	HTHomeScore   int
	HTAwayScore   int
	FullScore     string // "H-A"
	Outcome1X2    string // "Home" | "Draw" | "Away"
	OutcomeOU05   string
	OutcomeOU15   string
	OutcomeOU25   string
	OutcomeOU35   string
	OutcomeOU45   string
	OutcomeBTTS   string // "Yes" | "No"
	OutcomeHT1X2  string
	OutcomeHTOU15 string
	OutcomeDC1X   string
	OutcomeDC12   string
	OutcomeDCX2   string
	CorrectScore  string
	ExactTotal    int
	AsianHandicap string
	ResolvedAt    int64
}

// MatchEvent is a single in-game event (goal, card, substitution).
type MatchEvent struct {
	FixtureID string
	EventID   string
	Minute    int
	Type      string
	Team      string
	Player    string
	Detail    string
}
