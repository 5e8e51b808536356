package domain

import (
	"math/bits"
	"time"
)

// Award computes the points for an answer: floor(max_score * (1 - taken/window))
// for a correct answer, clamped to [0, max_score]. Wrong answers award nothing.
// The product is taken in 128 bits so large scores over long windows keep the
// floor exact.
func Award(q Question, chosenKey string, taken, window time.Duration) (bool, int) {
	correct := chosenKey == q.CorrectKey
	if !correct || window <= 0 || q.MaxScore <= 0 {
		return correct, 0
	}
	if taken < 0 {
		taken = 0
	}
	left := window - taken
	if left <= 0 {
		return true, 0
	}
	// left <= window, so the quotient never exceeds MaxScore.
	hi, lo := bits.Mul64(uint64(q.MaxScore), uint64(left))
	points, _ := bits.Div64(hi, lo, uint64(window))
	if points > uint64(q.MaxScore) {
		points = uint64(q.MaxScore)
	}
	return true, int(points)
}
