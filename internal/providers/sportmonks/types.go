package sportmonks

import (
	"encoding/json"

	"bitr-backend/internal/domain"
)

// FixtureDetail is one mapped fixture plus everything that rode along on
// the includes: odds rows, labeled scores, and in-game events.
type FixtureDetail struct {
	Fixture domain.Fixture
	Odds    []domain.OddsRow
	Scores  domain.ScoreSet
	Events  []domain.MatchEvent
}

// apiEnvelope is the common { data, pagination } wrapper.
type apiEnvelope struct {
	Data       json.RawMessage `json:"data"`
	Pagination *apiPagination  `json:"pagination"`
}

type apiPagination struct {
	CurrentPage int  `json:"current_page"`
	HasMore     bool `json:"has_more"`
}

type apiFixture struct {
	ID                  int64            `json:"id"`
	Name                string           `json:"name"`
	StartingAtTimestamp int64            `json:"starting_at_timestamp"`
	League              *apiLeague       `json:"league"`
	Participants        []apiParticipant `json:"participants"`
	State               *apiState        `json:"state"`
	Venue               *apiVenue        `json:"venue"`
	Referees            []apiReferee     `json:"referees"`
	Scores              []apiScore       `json:"scores"`
	Odds                []apiOdd         `json:"odds"`
	Events              []apiEvent       `json:"events"`
}

type apiLeague struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ImagePath string `json:"image_path"`
	Country   *struct {
		Name string `json:"name"`
	} `json:"country"`
}

type apiParticipant struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ImagePath string `json:"image_path"`
	Meta      struct {
		Location string `json:"location"` // "home" | "away"
	} `json:"meta"`
}

type apiState struct {
	ID        int64  `json:"id"`
	State     string `json:"state"`
	ShortName string `json:"short_name"`
}

type apiVenue struct {
	Name string `json:"name"`
}

type apiReferee struct {
	Name string `json:"common_name"`
}

// apiScore carries one labeled (participant, goals) pair. The API emits
// two rows per label, one per side.
type apiScore struct {
	Description string `json:"description"`
	Score       struct {
		Goals       int    `json:"goals"`
		Participant string `json:"participant"` // "home" | "away"
	} `json:"score"`
}

type apiOdd struct {
	MarketID    int    `json:"market_id"`
	BookmakerID int    `json:"bookmaker_id"`
	Label       string `json:"label"`
	Total       string `json:"total"`
	Value       string `json:"value"` // decimal price as a string
	UpdatedAt   string `json:"latest_bookmaker_update"`
}

type apiEvent struct {
	ID            int64  `json:"id"`
	Minute        int    `json:"minute"`
	ParticipantID int64  `json:"participant_id"`
	PlayerName    string `json:"player_name"`
	Result        string `json:"result"`
	Type          *struct {
		Name string `json:"name"`
	} `json:"type"`
}
