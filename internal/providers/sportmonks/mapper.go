package sportmonks

import (
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"bitr-backend/internal/domain"
)

// Market codes consumed by the platform. Everything else in the payload
// is dropped at the mapping boundary.
const (
	MarketFullTime1X2     = 1
	MarketDoubleChance    = 2
	MarketCorrectScore    = 5
	MarketTotalGoalsExact = 9
	MarketBTTS            = 14
	MarketHTGoalsOU       = 28
	MarketHT1X2           = 31
	MarketFTGoalsOU       = 80
	MarketFirstToScore    = 247
)

var interestingMarkets = map[int]bool{
	MarketFullTime1X2:     true,
	MarketDoubleChance:    true,
	MarketCorrectScore:    true,
	MarketTotalGoalsExact: true,
	MarketBTTS:            true,
	MarketHTGoalsOU:       true,
	MarketHT1X2:           true,
	MarketFTGoalsOU:       true,
	MarketFirstToScore:    true,
}

// excludedKeywords filters youth, reserve and women's competitions out of
// the fixture feed. Matching is case-insensitive substring.
var excludedKeywords = []string{
	"u17", "u18", "u19", "u21", "u23",
	"youth", "junior", "reserve", "b team",
	"women", "female", "ladies",
}

func isExcluded(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range excludedKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// mapStatus normalizes the provider's state vocabulary.
func mapStatus(state *apiState) domain.FixtureStatus {
	if state == nil {
		return domain.StatusOther
	}
	switch strings.ToUpper(state.ShortName) {
	case "NS", "TBA":
		return domain.StatusNotStarted
	case "INPLAY", "LIVE", "1H", "2H", "ET":
		return domain.StatusLive
	case "HT":
		return domain.StatusHalfTime
	case "FT":
		return domain.StatusFullTime
	case "AET":
		return domain.StatusExtraTime
	case "PEN", "PEN_LIVE":
		return domain.StatusPenalties
	case "FT_PEN":
		return domain.StatusFTPen
	default:
		return domain.StatusOther
	}
}

// mapScoreLabel normalizes the provider's score descriptions onto the
// labels the resolver's 90-minute rule understands.
func mapScoreLabel(description string) (domain.ScoreLabel, bool) {
	switch strings.ToUpper(strings.ReplaceAll(description, " ", "_")) {
	case "CURRENT":
		return domain.ScoreCurrent, true
	case "1ST_HALF", "HT":
		return domain.ScoreFirstHalf, true
	case "2ND_HALF":
		return domain.ScoreSecondHalf, true
	case "2ND_HALF_ONLY":
		return domain.ScoreSecondHalfOnly, true
	case "FT", "FULL_TIME":
		return domain.ScoreFullTime, true
	case "ET", "EXTRA_TIME":
		return domain.ScoreExtraTime, true
	case "PENALTIES", "PENALTY_SHOOTOUT":
		return domain.ScorePenalties, true
	}
	return "", false
}

// mapFixture converts one provider payload into the domain detail.
func mapFixture(fx apiFixture, bookmakers []int, logger *log.Logger) FixtureDetail {
	fixtureID := strconv.FormatInt(fx.ID, 10)

	fixture := domain.Fixture{
		FixtureID:   fixtureID,
		KickoffTime: fx.StartingAtTimestamp,
		Status:      mapStatus(fx.State),
		UpdatedAt:   time.Now().Unix(),
	}
	if fx.League != nil {
		fixture.League = fx.League.Name
		fixture.LeagueID = strconv.FormatInt(fx.League.ID, 10)
		fixture.LeagueImage = fx.League.ImagePath
		if fx.League.Country != nil {
			fixture.Country = fx.League.Country.Name
		}
	}
	if fx.Venue != nil {
		fixture.Venue = fx.Venue.Name
	}
	if len(fx.Referees) > 0 {
		fixture.Referee = fx.Referees[0].Name
	}
	for _, p := range fx.Participants {
		switch strings.ToLower(p.Meta.Location) {
		case "home":
			fixture.HomeTeamID = strconv.FormatInt(p.ID, 10)
			fixture.HomeTeam = p.Name
			fixture.HomeImageURL = p.ImagePath
		case "away":
			fixture.AwayTeamID = strconv.FormatInt(p.ID, 10)
			fixture.AwayTeam = p.Name
			fixture.AwayImageURL = p.ImagePath
		}
	}

	return FixtureDetail{
		Fixture: fixture,
		Odds:    mapOdds(fixtureID, fx.Odds, bookmakers, logger),
		Scores:  mapScores(fx.Scores),
		Events:  mapEvents(fixtureID, fx.Events),
	}
}

// mapScores folds the per-side score rows into (home, away) pairs keyed
// by normalized label.
func mapScores(scores []apiScore) domain.ScoreSet {
	if len(scores) == 0 {
		return nil
	}
	set := make(domain.ScoreSet)
	for _, s := range scores {
		label, ok := mapScoreLabel(s.Description)
		if !ok {
			continue
		}
		pair := set[label]
		switch strings.ToLower(s.Score.Participant) {
		case "home":
			pair.Home = s.Score.Goals
		case "away":
			pair.Away = s.Score.Goals
		default:
			continue
		}
		set[label] = pair
	}
	return set
}

// mapOdds keeps interesting markets only and applies the bookmaker
// preference: for each market, rows come from the first preferred
// bookmaker that has any. Prices in scientific notation are a
// data-quality defect and are skipped with a warning.
func mapOdds(fixtureID string, odds []apiOdd, bookmakers []int, logger *log.Logger) []domain.OddsRow {
	byMarket := make(map[int]map[int][]domain.OddsRow)
	now := time.Now().Unix()

	for _, o := range odds {
		if !interestingMarkets[o.MarketID] {
			continue
		}
		if strings.ContainsAny(o.Value, "eE") {
			if logger != nil {
				logger.Printf("sportmonks: fixture %s market %d: odds %q in scientific notation, skipped",
					fixtureID, o.MarketID, o.Value)
			}
			continue
		}
		price, err := strconv.ParseFloat(o.Value, 64)
		if err != nil || price <= 1.0 {
			continue
		}
		row := domain.OddsRow{
			FixtureID:   fixtureID,
			MarketID:    o.MarketID,
			BookmakerID: o.BookmakerID,
			Label:       o.Label,
			Total:       o.Total,
			Price:       price,
			UpdatedAt:   now,
		}
		if byMarket[o.MarketID] == nil {
			byMarket[o.MarketID] = make(map[int][]domain.OddsRow)
		}
		byMarket[o.MarketID][o.BookmakerID] = append(byMarket[o.MarketID][o.BookmakerID], row)
	}

	var out []domain.OddsRow
	for _, byBookmaker := range byMarket {
		out = append(out, pickBookmaker(byBookmaker, bookmakers)...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MarketID != out[j].MarketID {
			return out[i].MarketID < out[j].MarketID
		}
		if out[i].Total != out[j].Total {
			return out[i].Total < out[j].Total
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// pickBookmaker returns the rows of the first preferred bookmaker with
// any rows, falling back to the lowest bookmaker id present.
func pickBookmaker(byBookmaker map[int][]domain.OddsRow, prefs []int) []domain.OddsRow {
	for _, id := range prefs {
		if rows, ok := byBookmaker[id]; ok {
			return rows
		}
	}
	ids := make([]int, 0, len(byBookmaker))
	for id := range byBookmaker {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Ints(ids)
	return byBookmaker[ids[0]]
}

func mapEvents(fixtureID string, events []apiEvent) []domain.MatchEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]domain.MatchEvent, 0, len(events))
	for _, e := range events {
		me := domain.MatchEvent{
			FixtureID: fixtureID,
			EventID:   strconv.FormatInt(e.ID, 10),
			Minute:    e.Minute,
			Team:      strconv.FormatInt(e.ParticipantID, 10),
			Player:    e.PlayerName,
			Detail:    e.Result,
		}
		if e.Type != nil {
			me.Type = e.Type.Name
		}
		out = append(out, me)
	}
	return out
}
