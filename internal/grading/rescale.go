package grading

import "fmt"

// MaxScoreLimit bounds editable item max scores.
const MaxScoreLimit = 1000

// ValidateMaxScore rejects max scores outside [0, MaxScoreLimit].
func ValidateMaxScore(maxScore float64) error {
	if maxScore < 0 || maxScore > MaxScoreLimit {
		return fmt.Errorf("max score must be within 0-%d", MaxScoreLimit)
	}
	return nil
}

// NeedsRescale reports whether changing the max from current to next must
// touch recorded scores. A zero current max carries no ratio to apply.
func NeedsRescale(current, next float64) bool {
	return current != next && current != 0
}

// RescaleScore maps a score recorded against oldMax onto newMax. Zero stays
// zero, a perfect score becomes exactly newMax, anything else is scaled
// proportionally, rounded to one decimal and clamped to newMax.
func RescaleScore(score, oldMax, newMax float64) float64 {
	if score == 0 || !NeedsRescale(oldMax, newMax) {
		return score
	}
	if score == oldMax {
		return newMax
	}
	scaled := round1(score * newMax / oldMax)
	if scaled > newMax {
		return newMax
	}
	return scaled
}
