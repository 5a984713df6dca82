package pfr

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/gridiron/internal/pbp"
)

// Many of the site's tables are shipped inside HTML comments and only
// revealed by script, so comments are stripped before parsing.
var uncomment = strings.NewReplacer("<!--", "", "-->", "")

// ParseHTML converts raw HTML to a goquery Document for parsing
func ParseHTML(htmlContent string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(uncomment.Replace(htmlContent)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

var (
	boxscoreIDPattern = regexp.MustCompile(`^\d{9}[a-z]{3}$`)
	playerHrefPattern = regexp.MustCompile(`/players/[A-Z]/([A-Za-z0-9.'\-]+)\.htm`)
	teamHrefPattern   = regexp.MustCompile(`/teams/([a-z]{3})/(\d{4})\.htm`)
	boxscoreHref      = regexp.MustCompile(`/boxscores/(\d{9}[a-z]{3})\.htm`)
	vegasLinePattern  = regexp.MustCompile(`^(.+?)\s+(-?\d+(?:\.\d+)?)$`)
)

// ValidBoxscoreID reports whether id looks like "202309070kan".
func ValidBoxscoreID(id string) bool {
	return boxscoreIDPattern.MatchString(id)
}

// playRowStats are the cells a play row cannot do without.
var playRowStats = []string{"quarter", "qtr_time_remain", "location", "pbp_score_aw", "pbp_score_hm", "detail"}

// ExtractPlayRows reads the play-by-play table of a box score. Section
// headers are skipped. Rows of any other unexpected shape are returned as
// *pbp.RowError values alongside the good rows.
func ExtractPlayRows(doc *goquery.Document, boxscoreID string) pbp.PlayTable {
	var table pbp.PlayTable
	homeSection := false

	doc.Find("table#pbp tbody tr").Each(func(i int, row *goquery.Selection) {
		if row.HasClass("thead") {
			return
		}
		cells := row.Children().Filter("th, td")
		if cells.Length() <= 1 {
			return
		}

		// The site draws a divider every time the ball changes hands.
		if row.HasClass("divider") {
			homeSection = !homeSection
		}

		values := make(map[string]string, cells.Length())
		cells.Each(func(_ int, cell *goquery.Selection) {
			stat, ok := cell.Attr("data-stat")
			if !ok {
				return
			}
			if stat == "detail" {
				values[stat] = cellTextWithIDs(cell)
				return
			}
			values[stat] = strings.TrimSpace(cell.Text())
		})

		for _, stat := range playRowStats {
			if _, ok := values[stat]; !ok {
				table.RowErrors = append(table.RowErrors, &pbp.RowError{
					BoxscoreID: boxscoreID,
					RowIndex:   i,
					Cells:      cells.Length(),
					Reason:     "missing " + stat + " cell",
				})
				return
			}
		}

		table.Plays = append(table.Plays, pbp.RawPlay{
			BoxscoreID:     boxscoreID,
			Description:    values["detail"],
			QuarterDisplay: values["quarter"],
			ClockRemaining: values["qtr_time_remain"],
			IsHomeTeamRow:  homeSection,
			Down:           values["down"],
			YardsToGo:      values["yds_to_go"],
			Location:       values["location"],
			AwayScore:      values["pbp_score_aw"],
			HomeScore:      values["pbp_score_hm"],
			ExpPtsBefore:   values["exp_pts_before"],
			ExpPtsAfter:    values["exp_pts_after"],
		})
	})

	return table
}

// cellTextWithIDs renders a cell's text with every player or team link
// replaced by that entity's ID.
func cellTextWithIDs(cell *goquery.Selection) string {
	var b strings.Builder
	var walk func(s *goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, node *goquery.Selection) {
			switch goquery.NodeName(node) {
			case "#text":
				b.WriteString(node.Text())
			case "a":
				href, _ := node.Attr("href")
				if id := entityID(href); id != "" {
					b.WriteString(id)
					return
				}
				b.WriteString(node.Text())
			default:
				walk(node)
			}
		})
	}
	walk(cell)
	return strings.Join(strings.Fields(b.String()), " ")
}

func entityID(href string) string {
	if m := playerHrefPattern.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	if m := teamHrefPattern.FindStringSubmatch(href); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

type scoreboxTeam struct {
	id     string
	name   string
	season int
	score  int
}

// ParseGameMetadata reads teams, final score, season and the Vegas line from
// a box score page. The scorebox lists the away team first.
func ParseGameMetadata(doc *goquery.Document, boxscoreID string) (pbp.GameMetadata, error) {
	var teams []scoreboxTeam
	doc.Find("div.scorebox > div").Each(func(_ int, s *goquery.Selection) {
		link := s.Find("strong a[href*='/teams/']").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		m := teamHrefPattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		season, _ := strconv.Atoi(m[2])
		score, _ := strconv.Atoi(strings.TrimSpace(s.Find("div.scores div.score").First().Text()))
		teams = append(teams, scoreboxTeam{
			id:     strings.ToUpper(m[1]),
			name:   strings.TrimSpace(link.Text()),
			season: season,
			score:  score,
		})
	})
	if len(teams) < 2 {
		return pbp.GameMetadata{}, fmt.Errorf("boxscore %s: scorebox has %d teams", boxscoreID, len(teams))
	}
	away, home := teams[0], teams[1]

	meta := pbp.GameMetadata{
		BoxscoreID:     boxscoreID,
		HomeTeamID:     home.id,
		AwayTeamID:     away.id,
		Season:         home.season,
		FinalHomeScore: home.score,
		FinalAwayScore: away.score,
	}

	doc.Find("table#game_info tr").Each(func(_ int, row *goquery.Selection) {
		if strings.TrimSpace(row.Find("th").First().Text()) != "Vegas Line" {
			return
		}
		meta.PointSpread = parseVegasLine(strings.TrimSpace(row.Find("td").First().Text()), home, away)
	})

	return meta, nil
}

// parseVegasLine turns "Kansas City Chiefs -6.5" into a home-relative spread.
func parseVegasLine(line string, home, away scoreboxTeam) float64 {
	if line == "" || strings.EqualFold(line, "Pick") {
		return 0
	}
	m := vegasLinePattern.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	points, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0
	}
	points = math.Abs(points)

	switch favorite := strings.TrimSpace(m[1]); {
	case strings.EqualFold(favorite, home.name):
		return -points
	case strings.EqualFold(favorite, away.name):
		return points
	default:
		return 0
	}
}

// ParseRoster maps every player listed in the box score's player tables to
// their team.
func ParseRoster(doc *goquery.Document) pbp.Roster {
	roster := make(pbp.Roster)
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		href, ok := row.Find("[data-stat='player'] a").First().Attr("href")
		if !ok {
			return
		}
		m := playerHrefPattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		team := strings.ToUpper(strings.TrimSpace(row.Find("td[data-stat='team']").First().Text()))
		if team == "" {
			return
		}
		if _, seen := roster[m[1]]; !seen {
			roster[m[1]] = team
		}
	})
	return roster
}

// ParseTeamNames reads the conference standings of a season page.
func ParseTeamNames(doc *goquery.Document) pbp.TeamDirectory {
	directory := make(pbp.TeamDirectory)
	doc.Find("table#AFC tbody tr, table#NFC tbody tr").Each(func(_ int, row *goquery.Selection) {
		link := row.Find("[data-stat='team'] a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		m := teamHrefPattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		directory[strings.ToUpper(m[1])] = strings.TrimSpace(link.Text())
	})
	return directory
}

// ParseSeasonBoxscoreIDs lists the box scores linked from a season's games page,
// in page order.
func ParseSeasonBoxscoreIDs(doc *goquery.Document) []string {
	var ids []string
	seen := make(map[string]bool)
	doc.Find("td[data-stat='boxscore_word'] a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := boxscoreHref.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			return
		}
		seen[m[1]] = true
		ids = append(ids, m[1])
	})
	return ids
}
