// Package oracle computes canonical outcomes for guided pools from
// external data and submits them on-chain. Football pools resolve on
// the 90-minute score, crypto pools on price thresholds. Submission is
// deduplicated twice: the oracle_submissions table is the store-side
// record, the contract's getOutcome read is the chain-side one.
package oracle

import (
	"fmt"
	"log"

	"bitr-backend/internal/domain"
)

// errNoScores aborts a fixture whose payload carries no usable score.
// The resolver skips it and retries next tick; it never guesses.
var errNoScores = fmt.Errorf("no usable score labels in result payload")

// regulationScore derives the 90-minute score from the labeled score
// set of a finished fixture.
//
// For a plain FT fixture the CURRENT score is the regulation score and
// is used directly. For fixtures that went to extra time (AET, PEN,
// FT_PEN) CURRENT includes extra-time goals, so the two regulation
// halves are summed instead. When the preferred labels are absent the
// fallback order is: 1ST_HALF + 2ND_HALF_ONLY, then FT, then CURRENT,
// then whatever single label is available. Each fallback for an
// extra-time fixture is logged because it may over-count.
func regulationScore(status domain.FixtureStatus, scores domain.ScoreSet, infer bool, logger *log.Logger) (domain.ScorePair, error) {
	if len(scores) == 0 {
		return domain.ScorePair{}, errNoScores
	}

	if !status.WentToExtraTime() {
		if s, ok := scores[domain.ScoreCurrent]; ok {
			return s, nil
		}
		if s, ok := scores[domain.ScoreFullTime]; ok {
			return s, nil
		}
	}

	if s, ok := sumHalves(scores, domain.ScoreFirstHalf, domain.ScoreSecondHalf); ok {
		return s, nil
	}
	if s, ok := sumHalves(scores, domain.ScoreFirstHalf, domain.ScoreSecondHalfOnly); ok {
		return s, nil
	}

	if infer {
		if s, ok := inferMissingHalf(scores, logger); ok {
			return s, nil
		}
	}

	if s, ok := scores[domain.ScoreFullTime]; ok {
		if status.WentToExtraTime() {
			logger.Printf("oracle: status %s has no half scores, falling back to FT label", status)
		}
		return s, nil
	}
	if s, ok := scores[domain.ScoreCurrent]; ok {
		if status.WentToExtraTime() {
			logger.Printf("oracle: CRITICAL status %s falling back to CURRENT score, may include extra time", status)
		}
		return s, nil
	}

	// last available label of any kind
	for _, label := range []domain.ScoreLabel{domain.ScoreSecondHalf, domain.ScoreSecondHalfOnly, domain.ScoreFirstHalf} {
		if s, ok := scores[label]; ok {
			logger.Printf("oracle: CRITICAL only partial score label %s available", label)
			return s, nil
		}
	}
	return domain.ScorePair{}, errNoScores
}

func sumHalves(scores domain.ScoreSet, first, second domain.ScoreLabel) (domain.ScorePair, bool) {
	h1, ok1 := scores[first]
	h2, ok2 := scores[second]
	if !ok1 || !ok2 {
		return domain.ScorePair{}, false
	}
	return domain.ScorePair{Home: h1.Home + h2.Home, Away: h1.Away + h2.Away}, true
}

// inferMissingHalf estimates the missing half when exactly one is
// present, capping the inferred half at one goal fewer than the known
// one. Opt-in last resort; the default resolver never takes this path.
func inferMissingHalf(scores domain.ScoreSet, logger *log.Logger) (domain.ScorePair, bool) {
	h1, ok1 := scores[domain.ScoreFirstHalf]
	h2, ok2 := scores[domain.ScoreSecondHalf]
	if !ok2 {
		h2, ok2 = scores[domain.ScoreSecondHalfOnly]
	}
	if ok1 == ok2 {
		return domain.ScorePair{}, false
	}

	known := h1
	if ok2 {
		known = h2
	}
	inferred := domain.ScorePair{
		Home: maxInt(0, known.Home-1),
		Away: maxInt(0, known.Away-1),
	}
	logger.Printf("oracle: WARNING inferring missing half %+v from known half %+v", inferred, known)
	return domain.ScorePair{Home: known.Home + inferred.Home, Away: known.Away + inferred.Away}, true
}

// halfTimeScore returns the first-half score, zero when absent.
func halfTimeScore(scores domain.ScoreSet) (domain.ScorePair, bool) {
	s, ok := scores[domain.ScoreFirstHalf]
	return s, ok
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
