package pbp

import (
	"regexp"
)

// Pattern templates use two placeholders:
//
//	{P:name}  a player token, optionally preceded by a first initial ("J.Smith99"),
//	          or a 2-3 letter team ID. Only the ID is captured.
//	{Y:name}  a signed yardage ("12 yards", "-1 yard") or "no gain", captured
//	          as name and name_nogain respectively.
var (
	playerPlaceholder = regexp.MustCompile(`\{P:(\w+)\}`)
	yardsPlaceholder  = regexp.MustCompile(`\{Y:(\w+)\}`)
)

const (
	playerExpr = `(?:[A-Z]\.)?(?P<${1}>[A-Z][A-Za-z'\-]*\d{2}|[A-Z]{2,3})`
	yardsExpr  = `(?:(?P<${1}>-?\d+) yards?|(?P<${1}_nogain>no gain))`
	spotExpr   = `(?: at (?:[A-Z]{2,3}[- ]?)?\d{1,2})?`
)

func compilePattern(tmpl string) *regexp.Regexp {
	expr := playerPlaceholder.ReplaceAllString(tmpl, playerExpr)
	expr = yardsPlaceholder.ReplaceAllString(expr, yardsExpr)
	return regexp.MustCompile(expr)
}

// Category body patterns. All are anchored at the start of the description.
var (
	kickoffPattern = compilePattern(`^{P:kicker} kicks (?P<ko_onside>onside )?(?:off )?(?P<ko_yards>-?\d+) yards?` +
		`(?:, (?P<ko_touchback>touchback)` +
		`|, (?P<ko_oob>out of bounds)` +
		`|, fair catch by {P:ko_fair_catcher}` +
		`|, recovered by {P:ko_recoverer}` +
		`|, returned by {P:ko_returner} for {Y:ko_return_yards})?`)

	timeoutPattern = regexp.MustCompile(`^Timeout #(?P<timeout_number>\d+) by (?P<timeout_team>.+?)(?: at \d{1,2}:\d{2})?\s*\.?\s*$`)

	fieldGoalPattern = compilePattern(`^{P:kicker} (?P<fg_distance>\d+) yard field goal (?P<fg_result>good|no good)` +
		`(?:,? blocked by {P:fg_blocker})?`)

	puntPattern = compilePattern(`^{P:punter} punts(?: (?P<punt_yards>-?\d+) yards?)?` +
		`(?:,? (?P<punt_blocked>blocked)(?: by {P:punt_blocker})?)?` +
		`(?:, (?P<punt_touchback>touchback)` +
		`|, (?P<punt_oob>out of bounds)` +
		`|, (?P<punt_downed>downed)(?: by {P:punt_downer})?` +
		`|, fair catch by {P:punt_fair_catcher}` +
		`|, returned by {P:punt_returner} for {Y:punt_return_yards})?`)

	kneelPattern = compilePattern(`^{P:kneel_qb} kneels for {Y:kneel_yards}`)

	spikePattern = compilePattern(`^{P:spike_qb} spiked the ball`)

	extraPointPattern = compilePattern(`^{P:kicker} (?:kicks )?extra point (?P<xp_result>good|no good|makes|misses)` +
		`(?:,? blocked by {P:xp_blocker})?`)

	twoPointPattern = regexp.MustCompile(`^Two Point Attempt: (?P<two_point_play>.+?),? [Cc]onversion (?P<two_point_result>succeeds|fails)`)

	sackPattern = compilePattern(`^{P:passer} sacked(?: by {P:sacker1}(?: and {P:sacker2})?)? for {Y:sack_yards}`)

	passPattern = compilePattern(`^{P:passer} pass` +
		`(?: (?P<pass_result>complete|incomplete))?` +
		`(?: (?P<pass_length>short|deep))?` +
		`(?: (?P<pass_direction>left|middle|right))?` +
		`(?: (?P<pass_to>to|intended for) {P:target})?` +
		`(?: for {Y:pass_yards})?`)

	runPattern = compilePattern(`^{P:rusher}(?: (?P<rush_scramble>scrambles))?` +
		`(?: (?P<rush_direction>up the middle|left end|left tackle|left guard|right guard|right tackle|right end|middle|left|right))?` +
		` for {Y:rush_yards}`)

	// Two-point rushes are usually charted without a yardage clause.
	twoPointRunPattern = compilePattern(`^{P:rusher}(?: (?P<rush_scramble>scrambles))?` +
		` (?P<rush_direction>up the middle|left end|left tackle|left guard|right guard|right tackle|right end|middle|left|right)` +
		`(?: for {Y:rush_yards})?$`)

	presnapPenaltyPattern = regexp.MustCompile(`^Penalty on `)
)

// Clause patterns that may attach to any category.
var (
	penaltyPattern = compilePattern(`Penalty on {P:penalty_on}: (?P<penalty_type>[^,(]+)` +
		`(?:, (?P<penalty_yards>\d+) yards?)?` +
		`(?:\s*\((?P<penalty_decision>(?i:accepted|declined|offsetting))\))?`)

	tacklePattern = compilePattern(`\((?:tackle by )?{P:tackler1}(?:(?:,| and) {P:tackler2})?\)`)

	fumblePattern = compilePattern(`{P:fumbler} fumbles(?: \(forced by {P:fumble_forcer}\))?` +
		`(?:,? recovered by {P:fumble_recoverer}` + spotExpr +
		`(?: and returned for {Y:fumble_return_yards})?)?`)

	interceptionPattern = compilePattern(`is intercepted by {P:interceptor}` + spotExpr +
		`(?: and returned for {Y:int_return_yards})?`)

	challengePattern = regexp.MustCompile(`^(?:(?P<before>.*?)\.\s+)?(?P<challenger>[^.]+?) challenged [^.]*?(?P<outcome>(?i:upheld|overturned))\.\s*(?P<after>.*)$`)

	touchdownPattern = regexp.MustCompile(`(?i)\btouchdown\b`)
	safetyPattern    = regexp.MustCompile(`(?i)\bsafety\b`)
	lateralPattern   = regexp.MustCompile(`(?i)\blateral`)
	noPlayPattern    = regexp.MustCompile(`(?i)\bno play\b`)
	endZonePattern   = regexp.MustCompile(`(?i)enforced in end zone`)

	exemptPattern = regexp.MustCompile(`(?i)\b(?:coin toss|won the toss|end of (?:the )?(?:\d\w* )?(?:quarter|half|regulation|game|overtime)|start of overtime)\b`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// namedMatch returns the non-empty named captures of re against text.
func namedMatch(re *regexp.Regexp, text string) (Fields, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return captures(re, m), true
}

func captures(re *regexp.Regexp, m []string) Fields {
	f := make(Fields)
	for i, name := range re.SubexpNames() {
		if name == "" || i >= len(m) || m[i] == "" {
			continue
		}
		f[name] = m[i]
	}
	return f
}

// IsPossessionExempt reports whether a row describes a game event that no team
// has the ball for, such as the coin toss or the end of a period.
func IsPossessionExempt(description string) bool {
	return exemptPattern.MatchString(description)
}
