package store

import (
	"database/sql"
	"time"
)

// Game is one row of the games table: the metadata and build report of the
// last feature set built for a box score.
type Game struct {
	BoxscoreID        string          `json:"boxscore_id" db:"boxscore_id"`
	Season            int             `json:"season" db:"season"`
	HomeTeamID        string          `json:"home_team_id" db:"home_team_id"`
	AwayTeamID        string          `json:"away_team_id" db:"away_team_id"`
	PointSpread       float64         `json:"point_spread" db:"point_spread"`
	FinalHomeScore    int             `json:"final_home_score" db:"final_home_score"`
	FinalAwayScore    int             `json:"final_away_score" db:"final_away_score"`
	PlayCount         int             `json:"play_count" db:"play_count"`
	Unrecognized      int             `json:"unrecognized" db:"unrecognized"`
	PossessionExempt  int             `json:"possession_exempt" db:"possession_exempt"`
	UnknownPossession int             `json:"unknown_possession" db:"unknown_possession"`
	SkippedRows       int             `json:"skipped_rows" db:"skipped_rows"`
	UnrecognizedRate  sql.NullFloat64 `json:"unrecognized_rate,omitempty" db:"unrecognized_rate"`
	TeamLookupMissed  bool            `json:"team_lookup_missed" db:"team_lookup_missed"`
	BuiltAt           time.Time       `json:"built_at" db:"built_at"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// Play is one row of the plays table. Record holds the full play record as
// JSON; the other columns are the ones worth querying on.
type Play struct {
	BoxscoreID     string          `db:"boxscore_id"`
	PlayIndex      int             `db:"play_index"`
	Quarter        int             `db:"quarter"`
	ElapsedSeconds int             `db:"elapsed_seconds"`
	Category       string          `db:"category"`
	Offense        sql.NullString  `db:"offense"`
	Defense        sql.NullString  `db:"defense"`
	Down           sql.NullInt32   `db:"down"`
	YardsToGo      sql.NullInt32   `db:"yards_to_go"`
	DistanceToGoal sql.NullInt32   `db:"distance_to_goal"`
	HomeScore      int             `db:"home_score"`
	AwayScore      int             `db:"away_score"`
	HomeWP         float64         `db:"home_wp"`
	HomeWPA        float64         `db:"home_wpa"`
	ExpPtsBefore   sql.NullFloat64 `db:"exp_pts_before"`
	IsTurnover     bool            `db:"is_turnover"`
	IsError        bool            `db:"is_error"`
	Record         []byte          `db:"record"`
}
