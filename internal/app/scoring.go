package app

import (
	"math"
	"time"
)

// Score computes the points for one answer. Correct answers earn 1000 for an
// instantaneous response, degrading linearly to a floor of 500 at the time
// limit. Incorrect answers earn nothing. Both the websocket and HTTP answer
// paths go through this one function.
func Score(correct bool, responseTime, timeLimit time.Duration) int {
	if !correct || timeLimit <= 0 {
		return 0
	}
	speedMultiplier := 1 - (responseTime.Seconds()/timeLimit.Seconds())*0.5
	if speedMultiplier < 0.5 {
		speedMultiplier = 0.5
	}
	return int(math.Round(1000 * speedMultiplier))
}
