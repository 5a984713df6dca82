package pfr

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// BrowserFetcher renders pages in headless Chrome. Use it when the plain
// HTTP client is being served a challenge page instead of the box score.
type BrowserFetcher struct {
	log      *logrus.Entry
	timeout  time.Duration
	throttle *throttle

	allocCtx context.Context
	cancel   context.CancelFunc
}

func NewBrowserFetcher(timeout, minInterval time.Duration, logger *logrus.Logger) *BrowserFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if minInterval == 0 {
		minInterval = MinRequestInterval
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(UserAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &BrowserFetcher{
		log:      logger.WithField("component", "pfr-browser"),
		timeout:  timeout,
		throttle: &throttle{interval: minInterval},
		allocCtx: allocCtx,
		cancel:   cancel,
	}
}

// Close shuts down the browser allocator.
func (b *BrowserFetcher) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := b.throttle.wait(ctx); err != nil {
		return "", err
	}

	browserCtx, cancel := chromedp.NewContext(b.allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, b.timeout)
	defer cancel()

	// Stop the tab when the caller gives up.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp fetch of %s failed: %w", url, err)
	}
	if html == "" {
		return "", fmt.Errorf("empty document from %s", url)
	}

	b.log.WithFields(logrus.Fields{"url": url, "bytes": len(html)}).Debug("rendered page")
	return html, nil
}
