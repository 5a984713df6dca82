package pbp

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	secondsPerQuarter = 900
	overtimeQuarter   = 5
)

// NormalizeContext is the game context a single play needs.
type NormalizeContext struct {
	BoxscoreID string
	Season     int
	// Teams resolves full team names in timeout rows. A nil directory leaves
	// timeout team IDs empty.
	Teams TeamDirectory
}

var locationPattern = regexp.MustCompile(`^(?:([A-Za-z]{2,3})\s*)?(\d{1,2})?$`)

// Normalize converts a classified play and its table row into typed fields
// and derives the per-play fields that need no neighbouring plays.
func Normalize(raw RawPlay, parsed ParsedPlay, ctx NormalizeContext) NormalizedPlay {
	boxscoreID := ctx.BoxscoreID
	if boxscoreID == "" {
		boxscoreID = raw.BoxscoreID
	}

	np := NormalizedPlay{
		BoxscoreID:    boxscoreID,
		Category:      parsed.Category,
		Detail:        parsed.Detail,
		IsError:       parsed.IsError,
		Quarter:       parseQuarter(raw.QuarterDisplay),
		IsHomeTeamRow: raw.IsHomeTeamRow,
		Down:          optInt(raw.Down),
		YardsToGo:     optInt(raw.YardsToGo),
		AwayScore:     intOrZero(raw.AwayScore),
		HomeScore:     intOrZero(raw.HomeScore),
		ExpPtsBefore:  optFloat(raw.ExpPtsBefore),
		ExpPtsAfter:   optFloat(raw.ExpPtsAfter),
	}
	np.ClockRemaining = parseClock(raw.ClockRemaining)
	np.ElapsedSeconds = ElapsedSeconds(np.Quarter, np.ClockRemaining)
	np.FieldSideTeam, np.YardLine = parseLocation(raw.Location)
	np.IsPossessionExempt = IsPossessionExempt(parsed.Detail)

	f := parsed.Fields
	np.IsTouchdown = f.Has("touchdown")
	np.IsSafety = f.Has("safety")
	np.IsLateral = f.Has("lateral")
	np.IsNoPlay = f.Has("no_play") && !f.Has("enforced_end_zone")

	switch parsed.Category {
	case CategoryKickoff:
		np.Kickoff = kickoffFields(f)
	case CategoryTimeout:
		np.Timeout = &TimeoutFields{
			Number:   intOrZero(f.Get("timeout_number")),
			TeamName: strings.TrimSpace(f.Get("timeout_team")),
		}
		np.Timeout.TeamID = ctx.Teams.IDForName(np.Timeout.TeamName)
	case CategoryFieldGoal:
		np.FieldGoal = &FieldGoalFields{
			Kicker:   f.Get("kicker"),
			Distance: intOrZero(f.Get("fg_distance")),
			IsGood:   successToken(f.Get("fg_result")),
			Blocker:  f.Get("fg_blocker"),
		}
	case CategoryPunt:
		np.Punt = puntFields(f)
	case CategoryKneel:
		yards, _ := yardsField(f, "kneel_yards")
		np.Kneel = &KneelFields{QB: f.Get("kneel_qb"), Yards: yards}
	case CategorySpike:
		np.Spike = &SpikeFields{QB: f.Get("spike_qb")}
	case CategoryExtraPoint:
		np.ExtraPoint = &ExtraPointFields{
			Kicker:  f.Get("kicker"),
			IsGood:  successToken(f.Get("xp_result")),
			Blocker: f.Get("xp_blocker"),
		}
	case CategoryTwoPoint:
		inner := Category(f.Get("two_point_play_type"))
		np.TwoPoint = &TwoPointFields{
			IsSuccess: successToken(f.Get("two_point_result")),
			PlayType:  inner,
		}
		switch inner {
		case CategoryPass:
			np.Pass = passFields(f)
		case CategoryRun:
			np.Run = runFields(f)
		}
	case CategoryPass:
		np.Pass = passFields(f)
	case CategoryRun:
		np.Run = runFields(f)
	}

	np.Penalty = penaltyFields(f)
	np.IsPenalty = np.Penalty != nil || parsed.Category == CategoryPresnapPenalty
	np.Fumble = fumbleFields(f)
	if f.Has("tackler1") {
		np.Tacklers = append(np.Tacklers, f.Get("tackler1"))
		if f.Has("tackler2") {
			np.Tacklers = append(np.Tacklers, f.Get("tackler2"))
		}
	}
	if f.Has("challenger") {
		np.Challenge = &ChallengeFields{
			Challenger: f.Get("challenger"),
			IsUpheld:   f.Get("challenge_upheld") == "true",
		}
	}

	// Fumbles lost are settled once possession is known.
	np.IsTurnover = np.Pass != nil && np.Pass.IsInterception && !np.IsNoPlay

	return np
}

// ElapsedSeconds is the game time elapsed at a clock reading. Overtime is a
// fifth 15-minute period appended after regulation.
func ElapsedSeconds(quarter, remaining int) int {
	if quarter < 1 {
		return 0
	}
	if quarter > overtimeQuarter {
		quarter = overtimeQuarter
	}
	elapsed := secondsPerQuarter*quarter - remaining
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func kickoffFields(f Fields) *KickoffFields {
	k := &KickoffFields{
		Kicker:        f.Get("kicker"),
		Yards:         intOrZero(f.Get("ko_yards")),
		Returner:      f.Get("ko_returner"),
		Recoverer:     f.Get("ko_recoverer"),
		FairCatcher:   f.Get("ko_fair_catcher"),
		IsOnside:      f.Has("ko_onside"),
		IsTouchback:   f.Has("ko_touchback"),
		IsOutOfBounds: f.Has("ko_oob"),
	}
	if yards, ok := yardsField(f, "ko_return_yards"); ok {
		k.ReturnYards = &yards
	}
	return k
}

func puntFields(f Fields) *PuntFields {
	p := &PuntFields{
		Punter:        f.Get("punter"),
		Returner:      f.Get("punt_returner"),
		FairCatcher:   f.Get("punt_fair_catcher"),
		Blocker:       f.Get("punt_blocker"),
		IsBlocked:     f.Has("punt_blocked"),
		IsTouchback:   f.Has("punt_touchback"),
		IsOutOfBounds: f.Has("punt_oob"),
		IsDowned:      f.Has("punt_downed"),
	}
	p.Yards = optInt(f.Get("punt_yards"))
	if yards, ok := yardsField(f, "punt_return_yards"); ok {
		p.ReturnYards = &yards
	}
	return p
}

func passFields(f Fields) *PassFields {
	p := &PassFields{
		Passer:         f.Get("passer"),
		Target:         f.Get("target"),
		Length:         f.Get("pass_length"),
		Direction:      f.Get("pass_direction"),
		Interceptor:    f.Get("interceptor"),
		IsInterception: f.Has("interceptor"),
	}
	p.Location = passLocation(p.Length, p.Direction)

	if yards, ok := yardsField(f, "sack_yards"); ok {
		p.IsSack = true
		p.Yards = yards
		for _, k := range []string{"sacker1", "sacker2"} {
			if f.Has(k) {
				p.Sackers = append(p.Sackers, f.Get(k))
			}
		}
		return p
	}

	switch f.Get("pass_result") {
	case "complete":
		p.IsComplete = true
	case "incomplete":
	default:
		p.IsComplete = f.Get("pass_to") == "to" && !p.IsInterception
	}
	p.Yards, _ = yardsField(f, "pass_yards")
	if yards, ok := yardsField(f, "int_return_yards"); ok {
		p.IntReturnYards = &yards
	}
	return p
}

func passLocation(length, direction string) string {
	var b strings.Builder
	if length != "" {
		b.WriteString(strings.ToUpper(length[:1]))
	}
	if direction != "" {
		b.WriteString(strings.ToUpper(direction[:1]))
	}
	return b.String()
}

var runDirections = map[string]string{
	"left end":      "LE",
	"left tackle":   "LT",
	"left guard":    "LG",
	"up the middle": "M",
	"middle":        "M",
	"right guard":   "RG",
	"right tackle":  "RT",
	"right end":     "RE",
	"left":          "L",
	"right":         "R",
}

func runFields(f Fields) *RunFields {
	yards, _ := yardsField(f, "rush_yards")
	return &RunFields{
		Rusher:    f.Get("rusher"),
		Direction: runDirections[f.Get("rush_direction")],
		Yards:     yards,
	}
}

func penaltyFields(f Fields) *PenaltyFields {
	if !f.Has("penalty_on") {
		return nil
	}
	decision := strings.ToLower(f.Get("penalty_decision"))
	return &PenaltyFields{
		On:           f.Get("penalty_on"),
		Type:         f.Get("penalty_type"),
		Yards:        optInt(f.Get("penalty_yards")),
		IsDeclined:   decision == "declined",
		IsOffsetting: decision == "offsetting",
	}
}

func fumbleFields(f Fields) *FumbleFields {
	if !f.Has("fumbler") {
		return nil
	}
	fb := &FumbleFields{
		Fumbler:   f.Get("fumbler"),
		Forcer:    f.Get("fumble_forcer"),
		Recoverer: f.Get("fumble_recoverer"),
	}
	if yards, ok := yardsField(f, "fumble_return_yards"); ok {
		fb.ReturnYards = &yards
	}
	return fb
}

// successToken maps the success/failure words used across categories to a bool.
func successToken(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "good", "complete", "makes", "succeeds":
		return true
	default:
		return false
	}
}

// yardsField reads a {Y:key} capture. "no gain" is a real zero.
func yardsField(f Fields, key string) (int, bool) {
	if f.Has(key) {
		n, err := strconv.Atoi(f.Get(key))
		if err == nil {
			return n, true
		}
	}
	if f.Has(key + "_nogain") {
		return 0, true
	}
	return 0, false
}

func parseQuarter(display string) int {
	display = strings.TrimSpace(display)
	if strings.EqualFold(display, "OT") {
		return overtimeQuarter
	}
	q, err := strconv.Atoi(display)
	if err != nil || q < 1 {
		return 0
	}
	if q > overtimeQuarter {
		return overtimeQuarter
	}
	return q
}

func parseClock(clock string) int {
	minutes, seconds, ok := strings.Cut(strings.TrimSpace(clock), ":")
	if !ok {
		return 0
	}
	m, err := strconv.Atoi(minutes)
	if err != nil {
		return 0
	}
	s, err := strconv.Atoi(seconds)
	if err != nil {
		return 0
	}
	return m*60 + s
}

func parseLocation(loc string) (string, *int) {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return "", nil
	}
	m := locationPattern.FindStringSubmatch(loc)
	if m == nil {
		return "", nil
	}
	return strings.ToUpper(m[1]), optInt(m[2])
}

func optInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func optFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func intOrZero(s string) int {
	if n := optInt(s); n != nil {
		return *n
	}
	return 0
}

// IDForName finds the team ID for a full team name. It returns "" when the
// name is not in the directory.
func (d TeamDirectory) IDForName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	for id, full := range d {
		if strings.EqualFold(full, name) {
			return id
		}
	}
	return ""
}
