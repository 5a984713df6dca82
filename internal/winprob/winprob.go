// Package winprob is a closed-form home-team win probability estimate built on
// a Normal model of the final score margin.
package winprob

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// PregameStdDev is the spread of final margins around the point spread.
	PregameStdDev = 13.86
	// InGameStdDev is the full-game spread used once play has started.
	InGameStdDev = 13.46

	gameMinutes = 60.0
	// overtimeMinutes is the period appended after regulation.
	overtimeMinutes = 15.0
	epsilon         = 1e-7
)

// InitialWinProbability is the home team's pregame chance of winning, in
// percent, for a home-relative point spread (negative when home is favored).
// A tie counts as half a win.
func InitialWinProbability(pointSpread float64) float64 {
	return winOrHalfTie(distuv.Normal{Mu: -pointSpread, Sigma: PregameStdDev})
}

// WinProbability is the home team's chance of winning, in percent, given the
// current margin (home minus away), the seconds elapsed, and the expected
// points the current situation is worth to the home team.
func WinProbability(pointSpread, margin float64, secondsElapsed int, expectedPointsShift float64) float64 {
	remaining := minutesRemaining(secondsElapsed) + epsilon
	mean := -pointSpread * remaining / gameMinutes
	sd := InGameStdDev / math.Sqrt(gameMinutes/remaining)
	return winOrHalfTie(distuv.Normal{Mu: margin + expectedPointsShift + mean, Sigma: sd})
}

// FinalWinProbability is the home result as a probability: 100, 0 or 50.
func FinalWinProbability(homeScore, awayScore int) float64 {
	switch {
	case homeScore > awayScore:
		return 100
	case homeScore < awayScore:
		return 0
	default:
		return 50
	}
}

// minutesRemaining counts down regulation, then restarts for overtime so an
// overtime play is priced against the time left in its own period.
func minutesRemaining(secondsElapsed int) float64 {
	elapsed := float64(secondsElapsed) / 60
	if elapsed > gameMinutes {
		return math.Max(overtimeMinutes-(elapsed-gameMinutes), 0)
	}
	return math.Max(gameMinutes-elapsed, 0)
}

func winOrHalfTie(margin distuv.Normal) float64 {
	upper := margin.CDF(0.5)
	lower := margin.CDF(-0.5)
	return 100 * ((1 - upper) + 0.5*(upper-lower))
}
