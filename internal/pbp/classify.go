package pbp

import (
	"fmt"
	"regexp"
	"strings"
)

type rule struct {
	category Category
	priority int
	patterns []*regexp.Regexp
}

// cascade is tried in order and the first matching pattern wins. A two-point
// conversion wraps another play, and a presnap penalty is only a penalty
// clause with no body, so both must come after the categories they contain.
var cascade = []rule{
	{CategoryKickoff, 10, []*regexp.Regexp{kickoffPattern}},
	{CategoryTimeout, 20, []*regexp.Regexp{timeoutPattern}},
	{CategoryFieldGoal, 30, []*regexp.Regexp{fieldGoalPattern}},
	{CategoryPunt, 40, []*regexp.Regexp{puntPattern}},
	{CategoryKneel, 50, []*regexp.Regexp{kneelPattern}},
	{CategorySpike, 60, []*regexp.Regexp{spikePattern}},
	{CategoryExtraPoint, 70, []*regexp.Regexp{extraPointPattern}},
	{CategoryTwoPoint, 80, []*regexp.Regexp{twoPointPattern}},
	{CategoryPass, 90, []*regexp.Regexp{sackPattern, passPattern}},
	{CategoryRun, 100, []*regexp.Regexp{runPattern}},
	{CategoryPresnapPenalty, 110, []*regexp.Regexp{presnapPenaltyPattern}},
}

func init() {
	if err := validateCascade(cascade); err != nil {
		panic(err)
	}
}

// validateCascade rejects two rules sharing a priority, since their relative
// order would then be undefined.
func validateCascade(rules []rule) error {
	seen := make(map[int]Category, len(rules))
	prev := -1
	for _, r := range rules {
		if other, ok := seen[r.priority]; ok {
			return fmt.Errorf("pbp: categories %s and %s share priority %d", other, r.category, r.priority)
		}
		if r.priority < prev {
			return fmt.Errorf("pbp: category %s (priority %d) is out of order", r.category, r.priority)
		}
		seen[r.priority] = r.category
		prev = r.priority
	}
	return nil
}

// Classify assigns a description to exactly one play category and extracts
// that category's fields. It never fails: text no pattern accepts comes back
// as CategoryUnrecognized with IsError set.
func Classify(description string) ParsedPlay {
	detail := strings.TrimSpace(description)
	unrecognized := ParsedPlay{Category: CategoryUnrecognized, Detail: detail, IsError: true}

	text := whitespacePattern.ReplaceAllString(detail, " ")
	if text == "" {
		return unrecognized
	}

	text, challenge := stripChallenge(text)

	category, fields, ok := matchCascade(text)
	if !ok {
		return unrecognized
	}

	if category == CategoryTwoPoint {
		inner := classifyTwoPointPlay(fields.Get("two_point_play"))
		if !inner.IsError {
			for k, v := range inner.Fields {
				if _, exists := fields[k]; !exists {
					fields[k] = v
				}
			}
			fields["two_point_play_type"] = string(inner.Category)
		}
	}

	attachClauses(text, category, fields)
	for k, v := range challenge {
		fields[k] = v
	}

	return ParsedPlay{Category: category, Detail: detail, Fields: fields}
}

func classifyTwoPointPlay(text string) ParsedPlay {
	inner := Classify(text)
	if !inner.IsError {
		return inner
	}
	if f, ok := namedMatch(twoPointRunPattern, strings.TrimSpace(text)); ok {
		return ParsedPlay{Category: CategoryRun, Detail: text, Fields: f}
	}
	return inner
}

func matchCascade(text string) (Category, Fields, bool) {
	for _, r := range cascade {
		for _, re := range r.patterns {
			if f, ok := namedMatch(re, text); ok {
				return r.category, f, true
			}
		}
	}
	return CategoryUnrecognized, nil, false
}

// stripChallenge removes a replay-review clause. An upheld ruling keeps the
// original play; an overturned one keeps only the corrected play that follows.
func stripChallenge(text string) (string, Fields) {
	m := challengePattern.FindStringSubmatch(text)
	if m == nil {
		return text, nil
	}
	f := captures(challengePattern, m)
	upheld := strings.EqualFold(f.Get("outcome"), "upheld")

	result := Fields{"challenger": strings.TrimSpace(f.Get("challenger"))}
	if upheld {
		result["challenge_upheld"] = "true"
	} else {
		result["challenge_upheld"] = "false"
	}

	remainder := f.Get("after")
	if upheld && f.Has("before") {
		remainder = f.Get("before")
	}
	if remainder == "" {
		return text, result
	}
	return remainder, result
}

// attachClauses extracts the clauses that can follow any play body.
func attachClauses(text string, category Category, f Fields) {
	if m := penaltyPattern.FindStringSubmatch(text); m != nil {
		for k, v := range captures(penaltyPattern, m) {
			f[k] = v
		}
		f["penalty_type"] = strings.TrimRight(strings.TrimSpace(f["penalty_type"]), ".")
	}

	if m := tacklePattern.FindStringSubmatch(text); m != nil {
		for k, v := range captures(tacklePattern, m) {
			f[k] = v
		}
	}

	// Only the first fumbler and the last recovery are kept.
	if all := fumblePattern.FindAllStringSubmatch(text, -1); len(all) > 0 {
		first := captures(fumblePattern, all[0])
		f["fumbler"] = first.Get("fumbler")
		if first.Has("fumble_forcer") {
			f["fumble_forcer"] = first.Get("fumble_forcer")
		}
		for i := len(all) - 1; i >= 0; i-- {
			last := captures(fumblePattern, all[i])
			if !last.Has("fumble_recoverer") {
				continue
			}
			for _, k := range []string{"fumble_recoverer", "fumble_return_yards", "fumble_return_yards_nogain"} {
				if last.Has(k) {
					f[k] = last.Get(k)
				}
			}
			break
		}
	}

	if category == CategoryPass {
		if m := interceptionPattern.FindStringSubmatch(text); m != nil {
			for k, v := range captures(interceptionPattern, m) {
				f[k] = v
			}
		}
	}

	flag := func(key string, re *regexp.Regexp) {
		if re.MatchString(text) {
			f[key] = "true"
		}
	}
	flag("touchdown", touchdownPattern)
	flag("safety", safetyPattern)
	flag("lateral", lateralPattern)
	flag("no_play", noPlayPattern)
	flag("enforced_end_zone", endZonePattern)
}
