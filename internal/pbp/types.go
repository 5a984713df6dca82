package pbp

import (
	"errors"
	"fmt"
)

// Category is the play type tag assigned by the classifier.
type Category string

const (
	CategoryKickoff        Category = "kickoff"
	CategoryTimeout        Category = "timeout"
	CategoryFieldGoal      Category = "field_goal"
	CategoryPunt           Category = "punt"
	CategoryKneel          Category = "kneel"
	CategorySpike          Category = "spike"
	CategoryExtraPoint     Category = "extra_point"
	CategoryTwoPoint       Category = "two_point_conversion"
	CategoryPresnapPenalty Category = "presnap_penalty"
	CategoryPass           Category = "pass"
	CategoryRun            Category = "run"
	CategoryUnrecognized   Category = "unrecognized"
)

// ErrStructuralRow marks a table row whose shape is neither a section header
// nor a full play row.
var ErrStructuralRow = errors.New("structural row error")

// RowError reports a single unusable row of a play-by-play table.
type RowError struct {
	BoxscoreID string
	RowIndex   int
	Cells      int
	Reason     string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("boxscore %s row %d (%d cells): %s", e.BoxscoreID, e.RowIndex, e.Cells, e.Reason)
}

func (e *RowError) Unwrap() error {
	return ErrStructuralRow
}

// RawPlay is one row of a box score's play-by-play table, as extracted.
// All values are left as the source text; Normalize converts them.
type RawPlay struct {
	BoxscoreID     string `json:"boxscore_id"`
	Description    string `json:"description"`
	QuarterDisplay string `json:"quarter_display"`
	ClockRemaining string `json:"clock_remaining"`
	// IsHomeTeamRow is the row's section class. The source toggles it at
	// every possession divider, so a change between consecutive rows means
	// the ball changed hands.
	IsHomeTeamRow bool   `json:"is_home_team_row"`
	Down          string `json:"down,omitempty"`
	YardsToGo     string `json:"yards_to_go,omitempty"`
	Location      string `json:"location,omitempty"`
	AwayScore     string `json:"away_score,omitempty"`
	HomeScore     string `json:"home_score,omitempty"`
	ExpPtsBefore  string `json:"exp_pts_before,omitempty"`
	ExpPtsAfter   string `json:"exp_pts_after,omitempty"`
}

// PlayTable is the extracted play-by-play table of one game.
type PlayTable struct {
	Plays     []RawPlay
	RowErrors []error
}

// Fields holds the named captures of the pattern that classified a play.
type Fields map[string]string

// Get returns the captured value for key, or "" if absent.
func (f Fields) Get(key string) string {
	if f == nil {
		return ""
	}
	return f[key]
}

// Has reports whether key was captured with a non-empty value.
func (f Fields) Has(key string) bool {
	return f.Get(key) != ""
}

// ParsedPlay is the classifier's output: exactly one category tag and the
// raw field set extracted for that category.
type ParsedPlay struct {
	Category Category `json:"category"`
	Detail   string   `json:"detail"`
	Fields   Fields   `json:"fields,omitempty"`
	IsError  bool     `json:"is_error"`
}

// FieldSide says whose half of the field the ball is on, relative to the offense.
type FieldSide string

const (
	FieldSideUnknown  FieldSide = ""
	FieldSideOwn      FieldSide = "own"
	FieldSideOpponent FieldSide = "opponent"
)

// Possession is the offense/defense pair for one play. The zero value is Unknown.
type Possession struct {
	Offense string `json:"offense,omitempty"`
	Defense string `json:"defense,omitempty"`
}

// Known reports whether both teams are set.
func (p Possession) Known() bool {
	return p.Offense != "" && p.Defense != ""
}

// Swap returns the possession with offense and defense exchanged.
func (p Possession) Swap() Possession {
	return Possession{Offense: p.Defense, Defense: p.Offense}
}

type KickoffFields struct {
	Kicker        string `json:"kicker"`
	Yards         int    `json:"yards"`
	Returner      string `json:"returner,omitempty"`
	ReturnYards   *int   `json:"return_yards,omitempty"`
	Recoverer     string `json:"recoverer,omitempty"`
	FairCatcher   string `json:"fair_catcher,omitempty"`
	IsOnside      bool   `json:"is_onside"`
	IsTouchback   bool   `json:"is_touchback"`
	IsOutOfBounds bool   `json:"is_out_of_bounds"`
}

type TimeoutFields struct {
	Number   int    `json:"number"`
	TeamName string `json:"team_name"`
	// TeamID is empty when the name could not be resolved for the season.
	TeamID string `json:"team_id,omitempty"`
}

type FieldGoalFields struct {
	Kicker   string `json:"kicker"`
	Distance int    `json:"distance"`
	IsGood   bool   `json:"is_good"`
	Blocker  string `json:"blocker,omitempty"`
}

type PuntFields struct {
	Punter        string `json:"punter"`
	Yards         *int   `json:"yards,omitempty"`
	Returner      string `json:"returner,omitempty"`
	ReturnYards   *int   `json:"return_yards,omitempty"`
	FairCatcher   string `json:"fair_catcher,omitempty"`
	Blocker       string `json:"blocker,omitempty"`
	IsBlocked     bool   `json:"is_blocked"`
	IsTouchback   bool   `json:"is_touchback"`
	IsOutOfBounds bool   `json:"is_out_of_bounds"`
	IsDowned      bool   `json:"is_downed"`
}

type KneelFields struct {
	QB    string `json:"qb"`
	Yards int    `json:"yards"`
}

type SpikeFields struct {
	QB string `json:"qb"`
}

type ExtraPointFields struct {
	Kicker  string `json:"kicker"`
	IsGood  bool   `json:"is_good"`
	Blocker string `json:"blocker,omitempty"`
}

type TwoPointFields struct {
	IsSuccess bool     `json:"is_success"`
	PlayType  Category `json:"play_type"`
}

type PassFields struct {
	Passer         string   `json:"passer"`
	Target         string   `json:"target,omitempty"`
	IsComplete     bool     `json:"is_complete"`
	Length         string   `json:"length,omitempty"`
	Direction      string   `json:"direction,omitempty"`
	Location       string   `json:"location,omitempty"`
	Yards          int      `json:"yards"`
	IsSack         bool     `json:"is_sack"`
	Sackers        []string `json:"sackers,omitempty"`
	IsInterception bool     `json:"is_interception"`
	Interceptor    string   `json:"interceptor,omitempty"`
	IntReturnYards *int     `json:"int_return_yards,omitempty"`
}

type RunFields struct {
	Rusher    string `json:"rusher"`
	Direction string `json:"direction,omitempty"`
	Yards     int    `json:"yards"`
}

type PenaltyFields struct {
	On           string `json:"on"`
	Type         string `json:"type"`
	Yards        *int   `json:"yards,omitempty"`
	IsDeclined   bool   `json:"is_declined"`
	IsOffsetting bool   `json:"is_offsetting"`
}

type FumbleFields struct {
	Fumbler     string `json:"fumbler"`
	Forcer      string `json:"forcer,omitempty"`
	Recoverer   string `json:"recoverer,omitempty"`
	ReturnYards *int   `json:"return_yards,omitempty"`
	// IsLost is resolved once possession is known.
	IsLost bool `json:"is_lost"`
}

type ChallengeFields struct {
	Challenger string `json:"challenger"`
	IsUpheld   bool   `json:"is_upheld"`
}

// NormalizedPlay is a ParsedPlay with typed fields and the universal derived
// fields. Only the possession tracker and feature assembly touch it after
// Normalize returns.
type NormalizedPlay struct {
	BoxscoreID string   `json:"boxscore_id"`
	Category   Category `json:"category"`
	Detail     string   `json:"detail"`
	IsError    bool     `json:"is_error"`

	Quarter        int      `json:"quarter"`
	ClockRemaining int      `json:"clock_remaining_seconds"`
	ElapsedSeconds int      `json:"elapsed_seconds"`
	Down           *int     `json:"down,omitempty"`
	YardsToGo      *int     `json:"yards_to_go,omitempty"`
	IsHomeTeamRow  bool     `json:"is_home_team_row"`
	AwayScore      int      `json:"away_score"`
	HomeScore      int      `json:"home_score"`
	ExpPtsBefore   *float64 `json:"exp_pts_before,omitempty"`
	ExpPtsAfter    *float64 `json:"exp_pts_after,omitempty"`

	FieldSideTeam string    `json:"field_side_team,omitempty"`
	YardLine      *int      `json:"yard_line,omitempty"`
	FieldSide     FieldSide `json:"field_side"`

	IsTurnover         bool `json:"is_turnover"`
	IsPenalty          bool `json:"is_penalty"`
	IsNoPlay           bool `json:"is_no_play"`
	IsTouchdown        bool `json:"is_touchdown"`
	IsSafety           bool `json:"is_safety"`
	IsLateral          bool `json:"is_lateral"`
	IsPossessionExempt bool `json:"is_possession_exempt"`

	Kickoff    *KickoffFields    `json:"kickoff,omitempty"`
	Timeout    *TimeoutFields    `json:"timeout,omitempty"`
	FieldGoal  *FieldGoalFields  `json:"field_goal,omitempty"`
	Punt       *PuntFields       `json:"punt,omitempty"`
	Kneel      *KneelFields      `json:"kneel,omitempty"`
	Spike      *SpikeFields      `json:"spike,omitempty"`
	ExtraPoint *ExtraPointFields `json:"extra_point,omitempty"`
	TwoPoint   *TwoPointFields   `json:"two_point,omitempty"`
	Pass       *PassFields       `json:"pass,omitempty"`
	Run        *RunFields        `json:"run,omitempty"`

	Penalty   *PenaltyFields   `json:"penalty,omitempty"`
	Fumble    *FumbleFields    `json:"fumble,omitempty"`
	Challenge *ChallengeFields `json:"challenge,omitempty"`
	Tacklers  []string         `json:"tacklers,omitempty"`

	Possession Possession `json:"possession"`
}

// GameMetadata is what the box score page says about the game as a whole.
// PointSpread is home-relative: negative when the home team is favored.
type GameMetadata struct {
	BoxscoreID     string  `json:"boxscore_id"`
	HomeTeamID     string  `json:"home_team_id"`
	AwayTeamID     string  `json:"away_team_id"`
	Season         int     `json:"season"`
	PointSpread    float64 `json:"point_spread"`
	FinalHomeScore int     `json:"final_home_score"`
	FinalAwayScore int     `json:"final_away_score"`
}

// Roster maps player IDs to the team they played for in one game.
type Roster map[string]string

// TeamDirectory maps team IDs to full team names for one season.
type TeamDirectory map[string]string

// PlayRecord is the fully annotated output row for one play.
type PlayRecord struct {
	NormalizedPlay

	Index      int    `json:"index"`
	HomeTeamID string `json:"home_team_id"`
	AwayTeamID string `json:"away_team_id"`

	HomeWinProbability      float64  `json:"home_wp"`
	HomeWinProbabilityAdded float64  `json:"home_wpa"`
	DistanceToGoal          *int     `json:"distance_to_goal,omitempty"`
	TeamWinProbability      *float64 `json:"team_wp,omitempty"`
	OpponentWinProbability  *float64 `json:"opp_wp,omitempty"`
	TeamScore               *int     `json:"team_score,omitempty"`
	OpponentScore           *int     `json:"opp_score,omitempty"`
}

// BuildReport summarizes the degraded rows of one game build.
type BuildReport struct {
	BoxscoreID        string  `json:"boxscore_id"`
	Plays             int     `json:"plays"`
	Unrecognized      int     `json:"unrecognized"`
	PossessionExempt  int     `json:"possession_exempt"`
	UnknownPossession int     `json:"unknown_possession"`
	SkippedRows       int     `json:"skipped_rows"`
	TeamLookupMissed  bool    `json:"team_lookup_missed"`
	UnrecognizedRate  float64 `json:"unrecognized_rate"`
}

// GameFeatureSet is the complete output for one box score.
type GameFeatureSet struct {
	Game   GameMetadata `json:"game"`
	Plays  []PlayRecord `json:"plays"`
	Report BuildReport  `json:"report"`
}
