package pfr

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/gridiron/internal/pbp"
)

const BaseURL = "https://www.pro-football-reference.com"

// Client reads box scores and season pages. It satisfies pbp.GameSource and
// pbp.TeamNameResolver.
type Client struct {
	baseURL string
	fetcher Fetcher
	log     *logrus.Entry
}

// New creates a client with a custom base URL
func New(baseURL string, fetcher Fetcher, logger *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		log:     logger.WithField("component", "pfr-client"),
	}
}

func (c *Client) BoxscoreURL(boxscoreID string) string {
	return fmt.Sprintf("%s/boxscores/%s.htm", c.baseURL, boxscoreID)
}

func (c *Client) SeasonURL(season int) string {
	return fmt.Sprintf("%s/years/%d/", c.baseURL, season)
}

func (c *Client) ScheduleURL(season int) string {
	return fmt.Sprintf("%s/years/%d/games.htm", c.baseURL, season)
}

func (c *Client) document(ctx context.Context, url string) (*goquery.Document, error) {
	html, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParseHTML(html)
}

func (c *Client) boxscore(ctx context.Context, boxscoreID string) (*goquery.Document, error) {
	if !ValidBoxscoreID(boxscoreID) {
		return nil, fmt.Errorf("invalid boxscore id %q", boxscoreID)
	}
	return c.document(ctx, c.BoxscoreURL(boxscoreID))
}

func (c *Client) GameMetadata(ctx context.Context, boxscoreID string) (pbp.GameMetadata, error) {
	doc, err := c.boxscore(ctx, boxscoreID)
	if err != nil {
		return pbp.GameMetadata{}, err
	}
	return ParseGameMetadata(doc, boxscoreID)
}

func (c *Client) PlayTable(ctx context.Context, boxscoreID string) (pbp.PlayTable, error) {
	doc, err := c.boxscore(ctx, boxscoreID)
	if err != nil {
		return pbp.PlayTable{}, err
	}

	table := ExtractPlayRows(doc, boxscoreID)
	for _, rowErr := range table.RowErrors {
		c.log.WithError(rowErr).WithField("boxscore_id", boxscoreID).Warn("skipping malformed play row")
	}
	if len(table.Plays) == 0 {
		return table, fmt.Errorf("boxscore %s has no play-by-play rows", boxscoreID)
	}
	return table, nil
}

func (c *Client) Roster(ctx context.Context, boxscoreID string) (pbp.Roster, error) {
	doc, err := c.boxscore(ctx, boxscoreID)
	if err != nil {
		return nil, err
	}
	return ParseRoster(doc), nil
}

// TeamNames fetches the team directory of a season. Callers should go
// through a cache; this always hits the fetcher.
func (c *Client) TeamNames(ctx context.Context, season int) (pbp.TeamDirectory, error) {
	doc, err := c.document(ctx, c.SeasonURL(season))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %d season page: %w", season, err)
	}
	directory := ParseTeamNames(doc)
	if len(directory) == 0 {
		return nil, fmt.Errorf("no teams found for %d season", season)
	}
	return directory, nil
}

// SeasonBoxscoreIDs lists every box score of a season that has been played.
func (c *Client) SeasonBoxscoreIDs(ctx context.Context, season int) ([]string, error) {
	doc, err := c.document(ctx, c.ScheduleURL(season))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %d schedule: %w", season, err)
	}
	ids := ParseSeasonBoxscoreIDs(doc)
	c.log.WithFields(logrus.Fields{"season": season, "games": len(ids)}).Info("listed season box scores")
	return ids, nil
}
