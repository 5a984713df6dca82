package pbp

// GameTeams is the home/away pair of one game.
type GameTeams struct {
	Home string
	Away string
}

// Opponent returns the other team of the game, or "" for a team not playing.
func (t GameTeams) Opponent(team string) string {
	switch team {
	case t.Home:
		return t.Away
	case t.Away:
		return t.Home
	default:
		return ""
	}
}

func (t GameTeams) offense(team string) Possession {
	opp := t.Opponent(team)
	if team == "" || opp == "" {
		return Possession{}
	}
	return Possession{Offense: team, Defense: opp}
}

// teamOf resolves an actor token to a team in this game. Team IDs resolve to
// themselves.
func (t GameTeams) teamOf(actor string, roster Roster) string {
	if actor == "" {
		return ""
	}
	if actor == t.Home || actor == t.Away {
		return actor
	}
	if team, ok := roster[actor]; ok && (team == t.Home || team == t.Away) {
		return team
	}
	return ""
}

type possessionState struct {
	current     Possession
	prevKickoff bool
	prevHomeRow bool
	started     bool
}

// TrackPossession folds over a game's plays in order and returns the
// possession for each. Possession-exempt rows stay Unknown and are invisible
// to their neighbours. Other rows left Unknown take the first known state if
// they precede it, and the nearest earlier known state otherwise.
func TrackPossession(plays []NormalizedPlay, teams GameTeams, roster Roster) []Possession {
	out := make([]Possession, len(plays))

	var st possessionState
	for i := range plays {
		p := &plays[i]
		if p.IsPossessionExempt {
			continue
		}

		var cur Possession
		switch {
		case p.Category == CategoryKickoff || st.prevKickoff:
			cur = possessionFromActor(p, teams, roster)
		case st.current.Known():
			cur = st.current
			if st.started && p.IsHomeTeamRow != st.prevHomeRow {
				cur = cur.Swap()
			}
		default:
			cur = possessionFromActor(p, teams, roster)
		}

		out[i] = cur
		st.current = cur
		st.prevKickoff = p.Category == CategoryKickoff
		st.prevHomeRow = p.IsHomeTeamRow
		st.started = true
	}

	fillPossession(plays, out)
	return out
}

// possessionFromActor derives possession from the player acting in the play.
// On a kickoff the receiving team has the ball.
func possessionFromActor(p *NormalizedPlay, teams GameTeams, roster Roster) Possession {
	if k := p.Kickoff; k != nil {
		if kicking := teams.teamOf(k.Kicker, roster); kicking != "" {
			return teams.offense(teams.Opponent(kicking))
		}
		return teams.offense(teams.teamOf(k.Returner, roster))
	}
	return teams.offense(teams.teamOf(actor(p), roster))
}

func actor(p *NormalizedPlay) string {
	switch {
	case p.Pass != nil:
		return p.Pass.Passer
	case p.Run != nil:
		return p.Run.Rusher
	case p.FieldGoal != nil:
		return p.FieldGoal.Kicker
	case p.Punt != nil:
		return p.Punt.Punter
	case p.ExtraPoint != nil:
		return p.ExtraPoint.Kicker
	case p.Kneel != nil:
		return p.Kneel.QB
	case p.Spike != nil:
		return p.Spike.QB
	default:
		return ""
	}
}

func fillPossession(plays []NormalizedPlay, out []Possession) {
	first := -1
	for i := range out {
		if out[i].Known() {
			first = i
			break
		}
	}
	if first < 0 {
		return
	}

	for i := 0; i < first; i++ {
		if !plays[i].IsPossessionExempt {
			out[i] = out[first]
		}
	}

	last := out[first]
	for i := first + 1; i < len(out); i++ {
		if plays[i].IsPossessionExempt {
			continue
		}
		if out[i].Known() {
			last = out[i]
			continue
		}
		out[i] = last
	}
}

// resolveFieldSide places the ball relative to the offense.
func resolveFieldSide(p *NormalizedPlay) FieldSide {
	if !p.Possession.Known() || p.FieldSideTeam == "" {
		return FieldSideUnknown
	}
	switch p.FieldSideTeam {
	case p.Possession.Offense:
		return FieldSideOwn
	case p.Possession.Defense:
		return FieldSideOpponent
	default:
		return FieldSideUnknown
	}
}

// fumbleLost reports whether the ball changed hands on a fumble. The
// fumbler's team decides it; when he is not on the roster the play's
// possession stands in, with the punting team as the side that kept the
// ball on punts.
func fumbleLost(p *NormalizedPlay, teams GameTeams, roster Roster) bool {
	if p.Fumble == nil || p.Fumble.Recoverer == "" {
		return false
	}
	recovering := teams.teamOf(p.Fumble.Recoverer, roster)
	if recovering == "" {
		return false
	}
	if fumbling := teams.teamOf(p.Fumble.Fumbler, roster); fumbling != "" {
		return fumbling != recovering
	}
	if !p.Possession.Known() {
		return false
	}
	if p.Category == CategoryPunt {
		return recovering == p.Possession.Offense
	}
	return recovering == p.Possession.Defense
}
