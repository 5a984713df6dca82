package pfr

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DocumentCache stores raw pages by URL.
type DocumentCache interface {
	GetDocument(ctx context.Context, key string) (string, bool, error)
	SetDocument(ctx context.Context, key, body string, ttl time.Duration) error
}

// CachedFetcher serves pages from a DocumentCache and falls through to the
// wrapped Fetcher on a miss. Cache errors are logged and never fail a fetch.
type CachedFetcher struct {
	next  Fetcher
	cache DocumentCache
	ttl   time.Duration
	log   *logrus.Entry
}

func NewCachedFetcher(next Fetcher, cache DocumentCache, ttl time.Duration, logger *logrus.Logger) *CachedFetcher {
	return &CachedFetcher{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   logger.WithField("component", "pfr-cache"),
	}
}

func (c *CachedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	body, ok, err := c.cache.GetDocument(ctx, url)
	if err != nil {
		c.log.WithError(err).WithField("url", url).Warn("document cache read failed")
	}
	if ok {
		return body, nil
	}

	body, err = c.next.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	if err := c.cache.SetDocument(ctx, url, body, c.ttl); err != nil {
		c.log.WithError(err).WithField("url", url).Warn("document cache write failed")
	}
	return body, nil
}
