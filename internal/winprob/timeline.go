package winprob

// Step is the game state at the start of one play.
type Step struct {
	// Margin is home score minus away score.
	Margin         float64
	SecondsElapsed int

	// ExpectedPointsShift is the expected points of the situation, signed
	// toward the home team.
	ExpectedPointsShift float64

	// PassThrough marks rows such as timeouts that take no part in the
	// timeline. They get zero WPA and report the probability of the next play.
	PassThrough bool
}

// Point is the home win probability before a play and the swing it caused.
type Point struct {
	HomeWinProbability      float64
	HomeWinProbabilityAdded float64
}

// Timeline computes the home win probability and WPA of every step of one
// game. The first real play starts from the pregame probability and the last
// real play ends at final, so the WPA of a game sums to
// final - InitialWinProbability(pointSpread).
func Timeline(pointSpread float64, steps []Step, final float64) []Point {
	out := make([]Point, len(steps))

	plays := make([]int, 0, len(steps))
	for i, s := range steps {
		if !s.PassThrough {
			plays = append(plays, i)
		}
	}

	before := make([]float64, len(plays))
	for k, i := range plays {
		if k == 0 {
			before[k] = InitialWinProbability(pointSpread)
			continue
		}
		s := steps[i]
		before[k] = WinProbability(pointSpread, s.Margin, s.SecondsElapsed, s.ExpectedPointsShift)
	}

	for k, i := range plays {
		after := final
		if k+1 < len(before) {
			after = before[k+1]
		}
		out[i] = Point{HomeWinProbability: before[k], HomeWinProbabilityAdded: after - before[k]}
	}

	// Pass-through rows show the state of the next real play.
	next := final
	if len(plays) == 0 {
		next = InitialWinProbability(pointSpread)
	}
	for i := len(steps) - 1; i >= 0; i-- {
		if !steps[i].PassThrough {
			next = out[i].HomeWinProbability
			continue
		}
		out[i] = Point{HomeWinProbability: next}
	}
	return out
}
