package pbp

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type column struct {
	name  string
	value func(r *PlayRecord) string
}

func boolean(b bool) string { return strconv.FormatBool(b) }

func integer(n int) string { return strconv.Itoa(n) }

func optInteger(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func optFloatString(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func float(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

// columns is the flat table layout of a PlayRecord. Variant fields are empty
// on plays of other categories.
var columns = []column{
	{"boxscore_id", func(r *PlayRecord) string { return r.BoxscoreID }},
	{"play_index", func(r *PlayRecord) string { return integer(r.Index) }},
	{"quarter", func(r *PlayRecord) string { return integer(r.Quarter) }},
	{"clock_remaining", func(r *PlayRecord) string { return integer(r.ClockRemaining) }},
	{"elapsed_seconds", func(r *PlayRecord) string { return integer(r.ElapsedSeconds) }},
	{"down", func(r *PlayRecord) string { return optInteger(r.Down) }},
	{"yards_to_go", func(r *PlayRecord) string { return optInteger(r.YardsToGo) }},
	{"field_side_team", func(r *PlayRecord) string { return r.FieldSideTeam }},
	{"yard_line", func(r *PlayRecord) string { return optInteger(r.YardLine) }},
	{"field_side", func(r *PlayRecord) string { return string(r.FieldSide) }},
	{"away_score", func(r *PlayRecord) string { return integer(r.AwayScore) }},
	{"home_score", func(r *PlayRecord) string { return integer(r.HomeScore) }},
	{"offense", func(r *PlayRecord) string { return r.Possession.Offense }},
	{"defense", func(r *PlayRecord) string { return r.Possession.Defense }},
	{"category", func(r *PlayRecord) string { return string(r.Category) }},
	{"detail", func(r *PlayRecord) string { return r.Detail }},
	{"is_error", func(r *PlayRecord) string { return boolean(r.IsError) }},
	{"is_turnover", func(r *PlayRecord) string { return boolean(r.IsTurnover) }},
	{"is_penalty", func(r *PlayRecord) string { return boolean(r.IsPenalty) }},
	{"is_no_play", func(r *PlayRecord) string { return boolean(r.IsNoPlay) }},
	{"is_touchdown", func(r *PlayRecord) string { return boolean(r.IsTouchdown) }},
	{"is_safety", func(r *PlayRecord) string { return boolean(r.IsSafety) }},
	{"is_lateral", func(r *PlayRecord) string { return boolean(r.IsLateral) }},
	{"is_possession_exempt", func(r *PlayRecord) string { return boolean(r.IsPossessionExempt) }},

	{"ko_kicker", func(r *PlayRecord) string {
		if r.Kickoff == nil {
			return ""
		}
		return r.Kickoff.Kicker
	}},
	{"ko_yards", func(r *PlayRecord) string {
		if r.Kickoff == nil {
			return ""
		}
		return integer(r.Kickoff.Yards)
	}},
	{"ko_returner", func(r *PlayRecord) string {
		if r.Kickoff == nil {
			return ""
		}
		return r.Kickoff.Returner
	}},
	{"ko_return_yards", func(r *PlayRecord) string {
		if r.Kickoff == nil {
			return ""
		}
		return optInteger(r.Kickoff.ReturnYards)
	}},
	{"ko_onside", func(r *PlayRecord) string {
		if r.Kickoff == nil {
			return ""
		}
		return boolean(r.Kickoff.IsOnside)
	}},
	{"ko_touchback", func(r *PlayRecord) string {
		if r.Kickoff == nil {
			return ""
		}
		return boolean(r.Kickoff.IsTouchback)
	}},
	{"timeout_number", func(r *PlayRecord) string {
		if r.Timeout == nil {
			return ""
		}
		return integer(r.Timeout.Number)
	}},
	{"timeout_team", func(r *PlayRecord) string {
		if r.Timeout == nil {
			return ""
		}
		return r.Timeout.TeamID
	}},
	{"fg_kicker", func(r *PlayRecord) string {
		if r.FieldGoal == nil {
			return ""
		}
		return r.FieldGoal.Kicker
	}},
	{"fg_distance", func(r *PlayRecord) string {
		if r.FieldGoal == nil {
			return ""
		}
		return integer(r.FieldGoal.Distance)
	}},
	{"fg_good", func(r *PlayRecord) string {
		if r.FieldGoal == nil {
			return ""
		}
		return boolean(r.FieldGoal.IsGood)
	}},
	{"punter", func(r *PlayRecord) string {
		if r.Punt == nil {
			return ""
		}
		return r.Punt.Punter
	}},
	{"punt_yards", func(r *PlayRecord) string {
		if r.Punt == nil {
			return ""
		}
		return optInteger(r.Punt.Yards)
	}},
	{"punt_returner", func(r *PlayRecord) string {
		if r.Punt == nil {
			return ""
		}
		return r.Punt.Returner
	}},
	{"punt_return_yards", func(r *PlayRecord) string {
		if r.Punt == nil {
			return ""
		}
		return optInteger(r.Punt.ReturnYards)
	}},
	{"punt_blocked", func(r *PlayRecord) string {
		if r.Punt == nil {
			return ""
		}
		return boolean(r.Punt.IsBlocked)
	}},
	{"kneel_qb", func(r *PlayRecord) string {
		if r.Kneel == nil {
			return ""
		}
		return r.Kneel.QB
	}},
	{"kneel_yards", func(r *PlayRecord) string {
		if r.Kneel == nil {
			return ""
		}
		return integer(r.Kneel.Yards)
	}},
	{"spike_qb", func(r *PlayRecord) string {
		if r.Spike == nil {
			return ""
		}
		return r.Spike.QB
	}},
	{"xp_kicker", func(r *PlayRecord) string {
		if r.ExtraPoint == nil {
			return ""
		}
		return r.ExtraPoint.Kicker
	}},
	{"xp_good", func(r *PlayRecord) string {
		if r.ExtraPoint == nil {
			return ""
		}
		return boolean(r.ExtraPoint.IsGood)
	}},
	{"two_point_success", func(r *PlayRecord) string {
		if r.TwoPoint == nil {
			return ""
		}
		return boolean(r.TwoPoint.IsSuccess)
	}},
	{"two_point_play_type", func(r *PlayRecord) string {
		if r.TwoPoint == nil {
			return ""
		}
		return string(r.TwoPoint.PlayType)
	}},
	{"passer", func(r *PlayRecord) string {
		if r.Pass == nil {
			return ""
		}
		return r.Pass.Passer
	}},
	{"pass_target", func(r *PlayRecord) string {
		if r.Pass == nil {
			return ""
		}
		return r.Pass.Target
	}},
	{"is_complete", func(r *PlayRecord) string {
		if r.Pass == nil {
			return ""
		}
		return boolean(r.Pass.IsComplete)
	}},
	{"pass_location", func(r *PlayRecord) string {
		if r.Pass == nil {
			return ""
		}
		return r.Pass.Location
	}},
	{"pass_yards", func(r *PlayRecord) string {
		if r.Pass == nil {
			return ""
		}
		return integer(r.Pass.Yards)
	}},
	{"is_sack", func(r *PlayRecord) string {
		if r.Pass == nil {
			return ""
		}
		return boolean(r.Pass.IsSack)
	}},
	{"sackers", func(r *PlayRecord) string {
		if r.Pass == nil {
			return ""
		}
		return strings.Join(r.Pass.Sackers, ";")
	}},
	{"is_interception", func(r *PlayRecord) string {
		if r.Pass == nil {
			return ""
		}
		return boolean(r.Pass.IsInterception)
	}},
	{"interceptor", func(r *PlayRecord) string {
		if r.Pass == nil {
			return ""
		}
		return r.Pass.Interceptor
	}},
	{"rusher", func(r *PlayRecord) string {
		if r.Run == nil {
			return ""
		}
		return r.Run.Rusher
	}},
	{"rush_direction", func(r *PlayRecord) string {
		if r.Run == nil {
			return ""
		}
		return r.Run.Direction
	}},
	{"rush_yards", func(r *PlayRecord) string {
		if r.Run == nil {
			return ""
		}
		return integer(r.Run.Yards)
	}},
	{"penalty_on", func(r *PlayRecord) string {
		if r.Penalty == nil {
			return ""
		}
		return r.Penalty.On
	}},
	{"penalty_type", func(r *PlayRecord) string {
		if r.Penalty == nil {
			return ""
		}
		return r.Penalty.Type
	}},
	{"penalty_yards", func(r *PlayRecord) string {
		if r.Penalty == nil {
			return ""
		}
		return optInteger(r.Penalty.Yards)
	}},
	{"penalty_declined", func(r *PlayRecord) string {
		if r.Penalty == nil {
			return ""
		}
		return boolean(r.Penalty.IsDeclined)
	}},
	{"penalty_offsetting", func(r *PlayRecord) string {
		if r.Penalty == nil {
			return ""
		}
		return boolean(r.Penalty.IsOffsetting)
	}},
	{"fumbler", func(r *PlayRecord) string {
		if r.Fumble == nil {
			return ""
		}
		return r.Fumble.Fumbler
	}},
	{"fumble_recoverer", func(r *PlayRecord) string {
		if r.Fumble == nil {
			return ""
		}
		return r.Fumble.Recoverer
	}},
	{"fumble_lost", func(r *PlayRecord) string {
		if r.Fumble == nil {
			return ""
		}
		return boolean(r.Fumble.IsLost)
	}},
	{"tacklers", func(r *PlayRecord) string { return strings.Join(r.Tacklers, ";") }},
	{"is_challenge", func(r *PlayRecord) string { return boolean(r.Challenge != nil) }},
	{"challenger", func(r *PlayRecord) string {
		if r.Challenge == nil {
			return ""
		}
		return r.Challenge.Challenger
	}},
	{"challenge_upheld", func(r *PlayRecord) string {
		if r.Challenge == nil {
			return ""
		}
		return boolean(r.Challenge.IsUpheld)
	}},

	{"exp_pts_before", func(r *PlayRecord) string { return optFloatString(r.ExpPtsBefore) }},
	{"exp_pts_after", func(r *PlayRecord) string { return optFloatString(r.ExpPtsAfter) }},
	{"home_wp", func(r *PlayRecord) string { return float(r.HomeWinProbability) }},
	{"home_wpa", func(r *PlayRecord) string { return float(r.HomeWinProbabilityAdded) }},
	{"distance_to_goal", func(r *PlayRecord) string { return optInteger(r.DistanceToGoal) }},
	{"team_wp", func(r *PlayRecord) string {
		if r.TeamWinProbability == nil {
			return ""
		}
		return float(*r.TeamWinProbability)
	}},
	{"opp_wp", func(r *PlayRecord) string {
		if r.OpponentWinProbability == nil {
			return ""
		}
		return float(*r.OpponentWinProbability)
	}},
	{"team_score", func(r *PlayRecord) string { return optInteger(r.TeamScore) }},
	{"opp_score", func(r *PlayRecord) string { return optInteger(r.OpponentScore) }},
}

// Columns returns the CSV header.
func Columns() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// Row flattens a record into the cells of Columns.
func (r *PlayRecord) Row() []string {
	row := make([]string, len(columns))
	for i, c := range columns {
		row[i] = c.value(r)
	}
	return row
}

// WriteCSV writes a header and one row per record.
func WriteCSV(w io.Writer, records []PlayRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns()); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i := range records {
		if err := cw.Write(records[i].Row()); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
