package datasource

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/kstock/pkg/models"
	"github.com/seenimoa/kstock/pkg/utils"
)

// DefaultNewsURL is the Google News search feed, Korean edition.
// The placeholder takes the query-escaped search term.
const DefaultNewsURL = "https://news.google.com/rss/search?q=%s&hl=ko&gl=KR&ceid=KR:ko"

// DefaultNewsLimit is the number of headlines returned when no limit is given.
const DefaultNewsLimit = 5

// News searches an RSS feed for headlines about a security.
type News struct {
	fetcher *Fetcher
	feedURL string
	parser  *gofeed.Parser
	log     *logrus.Entry
}

// NewNews creates a headline source. An empty feedURL selects DefaultNewsURL.
func NewNews(f *Fetcher, feedURL string, log *logrus.Entry) *News {
	if feedURL == "" {
		feedURL = DefaultNewsURL
	}
	if log == nil {
		log = f.log
	}
	return &News{fetcher: f, feedURL: feedURL, parser: gofeed.NewParser(), log: log}
}

// Name returns the data source name.
func (n *News) Name() string { return "Google News" }

// Headlines returns up to limit headlines for query, newest first.
func (n *News) Headlines(ctx context.Context, query string, limit int) ([]models.Headline, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultNewsLimit
	}

	body, err := n.fetcher.Fetch(ctx, DocNews, fmt.Sprintf(n.feedURL, url.QueryEscape(query)))
	if err != nil {
		return nil, fmt.Errorf("headlines for %q: %w", query, err)
	}
	feed, err := n.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse headline feed: %w", err)
	}

	headlines := make([]models.Headline, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || strings.TrimSpace(item.Title) == "" {
			continue
		}
		headlines = append(headlines, toHeadline(item))
	}
	sort.SliceStable(headlines, func(i, j int) bool {
		return headlines[i].Published.After(headlines[j].Published)
	})
	if len(headlines) > limit {
		headlines = headlines[:limit]
	}

	n.log.WithFields(logrus.Fields{"query": query, "headlines": len(headlines)}).Debug("headlines parsed")
	return headlines, nil
}

// toHeadline maps a feed item. Search feeds append the publisher to the
// title ("제목 - 매체"); it is split off when the item names no author.
func toHeadline(item *gofeed.Item) models.Headline {
	h := models.Headline{
		Title: utils.CleanText(item.Title),
		Link:  strings.TrimSpace(item.Link),
	}
	if item.PublishedParsed != nil {
		h.Published = item.PublishedParsed.In(utils.KST)
	}

	switch {
	case item.Author != nil && item.Author.Name != "":
		h.Source = item.Author.Name
	case len(item.Authors) > 0 && item.Authors[0] != nil:
		h.Source = item.Authors[0].Name
	}
	if i := strings.LastIndex(h.Title, " - "); i > 0 {
		if h.Source == "" {
			h.Source = strings.TrimSpace(h.Title[i+3:])
		}
		if strings.TrimSpace(h.Title[i+3:]) == h.Source {
			h.Title = strings.TrimSpace(h.Title[:i])
		}
	}
	return h
}
