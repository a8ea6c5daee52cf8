// Package feed fetches the configured feed and normalizes its newest item
// into one canonical post, regardless of whether the upstream document is an
// RSS item list or an Atom entry list.
package feed

import (
	"context"
	"net/http"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/mattsayar/postnotify/config"
	"github.com/mattsayar/postnotify/lib/models"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

type Normalizer struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
	parser    *gofeed.Parser
}

func NewNormalizer(log *zap.Logger, cfg *config.Config, transport http.RoundTripper) *Normalizer {
	return &Normalizer{log, cfg, transport, gofeed.NewParser()}
}

// LatestPost fetches the feed and returns the item with the newest
// publication timestamp. Ties keep the first item encountered.
func (n *Normalizer) LatestPost(ctx context.Context) (*models.Post, error) {
	var body string
	err := requests.URL(n.cfg.Feed.URL).
		Transport(n.transport).
		ToString(&body).
		Fetch(ctx)
	if err != nil {
		return nil, &models.FeedUnavailableError{URL: n.cfg.Feed.URL, Err: err}
	}

	parsed, err := n.parser.ParseString(body)
	if err != nil {
		return nil, &models.FeedFormatError{Reason: "unsupported feed format", Err: err}
	}
	if len(parsed.Items) == 0 {
		return nil, &models.FeedFormatError{Reason: "no items found in feed"}
	}
	n.log.Sugar().Infof("Parsed %s feed with %d items", parsed.FeedType, len(parsed.Items))

	item := newestItem(parsed.Items)
	post := &models.Post{
		ID:           identityOf(item),
		Title:        item.Title,
		Link:         n.linkOf(item),
		PublishedAt:  publishedAt(item),
		PreviewImage: previewImage(item),
	}
	n.log.Sugar().Infof("Latest post: %s (%s)", post.Title, post.PublishedAt)
	return post, nil
}

func newestItem(items []*gofeed.Item) *gofeed.Item {
	newest := items[0]
	for _, item := range items[1:] {
		if publishedAt(item).After(publishedAt(newest)) {
			newest = item
		}
	}
	return newest
}

// publishedAt prefers the publication date and falls back to the update
// date, which is all some Atom entry lists carry.
func publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return time.Time{}
}

func identityOf(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link
}

// linkOf falls back to the configured site URL rather than failing: a post
// without a usable link is still worth announcing.
func (n *Normalizer) linkOf(item *gofeed.Item) string {
	if item.Link != "" {
		return item.Link
	}
	for _, link := range item.Links {
		if link != "" {
			return link
		}
	}
	n.log.Sugar().Warnf("Could not extract a link from the latest post, using fallback URL %s", n.cfg.Feed.FallbackLink)
	return n.cfg.Feed.FallbackLink
}
