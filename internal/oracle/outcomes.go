package oracle

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"bitr-backend/internal/domain"
)

// Canonical outcome labels. These are the exact strings written to the
// guided oracle, so pools must be created with the same vocabulary.
const (
	OutcomeHome  = "Home"
	OutcomeDraw  = "Draw"
	OutcomeAway  = "Away"
	OutcomeOver  = "Over"
	OutcomeUnder = "Under"
	OutcomePush  = "Push"
	OutcomeYes   = "Yes"
	OutcomeNo    = "No"
)

// Double-chance selections in canonical order.
var doubleChanceOrder = []string{"1X", "12", "X2"}

// BuildResult derives the stored result row for a finished fixture:
// the 90-minute score, the half-time score, and every market outcome
// the platform offers.
func BuildResult(fixtureID string, status domain.FixtureStatus, scores domain.ScoreSet, infer bool, now int64, logger *log.Logger) (*domain.FixtureResult, error) {
	if !status.Finished() {
		return nil, fmt.Errorf("fixture %s not finished (status %s)", fixtureID, status)
	}
	ninety, err := regulationScore(status, scores, infer, logger)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", fixtureID, err)
	}
	ht, _ := halfTimeScore(scores)

	r := &domain.FixtureResult{
		FixtureID:     fixtureID,
		Status:        status,
		HomeScore:     ninety.Home,
		AwayScore:     ninety.Away,
		HTHomeScore:   ht.Home,
		HTAwayScore:   ht.Away,
		FullScore:     fmt.Sprintf("%d-%d", ninety.Home, ninety.Away),
		Outcome1X2:    outcome1X2(ninety),
		OutcomeOU05:   outcomeOverUnder(ninety, 0.5),
		OutcomeOU15:   outcomeOverUnder(ninety, 1.5),
		OutcomeOU25:   outcomeOverUnder(ninety, 2.5),
		OutcomeOU35:   outcomeOverUnder(ninety, 3.5),
		OutcomeOU45:   outcomeOverUnder(ninety, 4.5),
		OutcomeBTTS:   outcomeBTTS(ninety),
		OutcomeHT1X2:  outcome1X2(ht),
		OutcomeHTOU15: outcomeOverUnder(ht, 1.5),
		OutcomeDC1X:   dcOutcome("1X", ninety.Home >= ninety.Away),
		OutcomeDC12:   dcOutcome("12", ninety.Home != ninety.Away),
		OutcomeDCX2:   dcOutcome("X2", ninety.Away >= ninety.Home),
		CorrectScore:  fmt.Sprintf("%d-%d", ninety.Home, ninety.Away),
		ExactTotal:    ninety.Total(),
		AsianHandicap: fmt.Sprintf("%+d", ninety.Home-ninety.Away),
		ResolvedAt:    now,
	}
	return r, nil
}

func outcome1X2(s domain.ScorePair) string {
	switch {
	case s.Home > s.Away:
		return OutcomeHome
	case s.Home < s.Away:
		return OutcomeAway
	}
	return OutcomeDraw
}

func outcomeOverUnder(s domain.ScorePair, line float64) string {
	total := float64(s.Total())
	switch {
	case total > line:
		return OutcomeOver
	case total < line:
		return OutcomeUnder
	}
	return OutcomePush
}

func outcomeBTTS(s domain.ScorePair) string {
	return yesNo(s.Home > 0 && s.Away > 0)
}

func yesNo(b bool) string {
	if b {
		return OutcomeYes
	}
	return OutcomeNo
}

// dcOutcome stores the literal market label when the double-chance
// selection covers the result, empty when it misses.
func dcOutcome(sel string, covered bool) string {
	if covered {
		return sel
	}
	return ""
}

// OutcomeForPool derives the label to submit for a pool from the
// fixture result, matching the vocabulary of the pool's prediction.
// The guided oracle stores one result per market key, and the contract
// settles by comparing it byte-for-byte with the pool's prediction, so
// the label must come from the same set the pool was created with.
func OutcomeForPool(pool *domain.Pool, r *domain.FixtureResult) (string, error) {
	ninety := domain.ScorePair{Home: r.HomeScore, Away: r.AwayScore}
	ht := domain.ScorePair{Home: r.HTHomeScore, Away: r.HTAwayScore}

	switch pool.MarketType {
	case domain.MarketMoneyline:
		return r.Outcome1X2, nil

	case domain.MarketOverUnder:
		line, ok := trailingLine(pool.PredictedOutcome)
		if !ok {
			return "", fmt.Errorf("pool %d: no O/U line in prediction %q", pool.PoolID, pool.PredictedOutcome)
		}
		return ouLabel(ninety, line), nil

	case domain.MarketBothTeamsScore:
		return r.OutcomeBTTS, nil

	case domain.MarketHalfTime:
		if line, ok := trailingLine(pool.PredictedOutcome); ok {
			return ouLabel(ht, line), nil
		}
		return r.OutcomeHT1X2, nil

	case domain.MarketDoubleChance:
		return doubleChanceLabel(pool.PredictedOutcome, ninety), nil

	case domain.MarketCorrectScore:
		return r.CorrectScore, nil

	case domain.MarketCustom:
		// exact-total predictions are plain integers
		if _, err := strconv.Atoi(strings.TrimSpace(pool.PredictedOutcome)); err == nil {
			return strconv.Itoa(r.ExactTotal), nil
		}
		if label, ok := asianHandicapLabel(pool.PredictedOutcome, ninety); ok {
			return label, nil
		}
		return "", fmt.Errorf("pool %d: unsupported custom prediction %q", pool.PoolID, pool.PredictedOutcome)
	}
	return "", fmt.Errorf("pool %d: unsupported market type %s", pool.PoolID, pool.MarketType)
}

// ouLabel renders an over/under outcome with its line, e.g. "Over 2.5".
func ouLabel(s domain.ScorePair, line float64) string {
	return fmt.Sprintf("%s %s", outcomeOverUnder(s, line), formatLine(line))
}

// trailingLine extracts the numeric line from predictions like
// "Over 2.5" or "Under 1.5".
func trailingLine(prediction string) (float64, bool) {
	fields := strings.Fields(prediction)
	if len(fields) == 0 {
		return 0, false
	}
	line, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return 0, false
	}
	return line, true
}

func formatLine(line float64) string {
	return strconv.FormatFloat(line, 'f', -1, 64)
}

// doubleChanceLabel returns the predicted selection when it covers the
// result, otherwise the first covering selection in canonical order.
// Two selections always cover any result; returning a covering label
// different from a losing prediction is what makes the pool settle
// against the creator.
func doubleChanceLabel(prediction string, s domain.ScorePair) string {
	covered := map[string]bool{
		"1X": s.Home >= s.Away,
		"12": s.Home != s.Away,
		"X2": s.Away >= s.Home,
	}
	if covered[strings.TrimSpace(prediction)] {
		return strings.TrimSpace(prediction)
	}
	for _, sel := range doubleChanceOrder {
		if covered[sel] {
			return sel
		}
	}
	return "" // unreachable: at least two selections cover any score
}

// asianHandicapLabel resolves predictions like "Home -1.5" or
// "Away +0.5". The prediction wins when the handicapped margin clears
// the line; otherwise the opposite side's label is returned.
func asianHandicapLabel(prediction string, s domain.ScorePair) (string, bool) {
	fields := strings.Fields(prediction)
	if len(fields) != 2 {
		return "", false
	}
	side := fields[0]
	line, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return "", false
	}

	var won bool
	switch side {
	case OutcomeHome:
		won = float64(s.Home-s.Away)+line > 0
	case OutcomeAway:
		won = float64(s.Away-s.Home)+line > 0
	default:
		return "", false
	}
	if won {
		return prediction, true
	}
	opposite := OutcomeHome
	if side == OutcomeHome {
		opposite = OutcomeAway
	}
	return fmt.Sprintf("%s %s", opposite, flipSign(fields[1])), true
}

func flipSign(line string) string {
	switch {
	case strings.HasPrefix(line, "-"):
		return "+" + line[1:]
	case strings.HasPrefix(line, "+"):
		return "-" + line[1:]
	}
	return "-" + line
}
