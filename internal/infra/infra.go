// Package infra wires the shared components every entry point needs: the
// logger, fetch metrics, the rate-limited fetcher and the data sources built
// on top of it.
package infra

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/kstock/internal/config"
	"github.com/seenimoa/kstock/internal/datasource"
	"github.com/seenimoa/kstock/internal/logging"
	"github.com/seenimoa/kstock/internal/metrics"
)

// Stack holds one process's shared components.
type Stack struct {
	Config     *config.Config
	Logger     *logrus.Logger
	Metrics    *metrics.Metrics
	Fetcher    *datasource.Fetcher
	KRX        *datasource.KRX
	Naver      *datasource.Naver
	News       *datasource.News
	Aggregator *datasource.Aggregator
}

// New builds the stack from configuration. Logs go to logOut (stderr when nil).
func New(cfg *config.Config, logOut io.Writer) *Stack {
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, logOut)
	m := metrics.New()

	f := datasource.NewFetcher(
		datasource.WithUserAgent(cfg.HTTP.UserAgent),
		datasource.WithTimeout(cfg.HTTP.Timeout),
		datasource.WithRateLimit(cfg.HTTP.RateLimit),
		datasource.WithMetrics(m),
		datasource.WithLogger(logging.Component(logger, "fetcher")),
	)

	krx := datasource.NewKRX(f, cfg.Sources.ListingURL, logging.Component(logger, "krx"))
	naver := datasource.NewNaver(f, datasource.NaverURLs{
		DetailURL:  cfg.Sources.DetailURL,
		DailyURL:   cfg.Sources.DailyURL,
		PopularURL: cfg.Sources.PopularURL,
	}, logging.Component(logger, "naver"))
	news := datasource.NewNews(f, cfg.Sources.NewsURL, logging.Component(logger, "news"))

	agg := datasource.NewAggregator(krx, naver, news, datasource.AggregatorOptions{
		Depth:     PageDepth(cfg.Series),
		NewsLimit: cfg.News.Limit,
	}, logging.Component(logger, "aggregator"))

	return &Stack{
		Config:     cfg,
		Logger:     logger,
		Metrics:    m,
		Fetcher:    f,
		KRX:        krx,
		Naver:      naver,
		News:       news,
		Aggregator: agg,
	}
}

// PageDepth maps the series settings onto the fetcher's page depth.
func PageDepth(s config.SeriesConfig) datasource.PageDepth {
	return datasource.PageDepth{Day: s.DayPages, Week: s.WeekPages, Month: s.MonthPages}
}
