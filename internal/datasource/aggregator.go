package datasource

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/kstock/internal/series"
	"github.com/seenimoa/kstock/pkg/models"
	"github.com/seenimoa/kstock/pkg/utils"
)

// Lookup part names, used as keys of models.Lookup.Errors.
const (
	PartSnapshot  = "snapshot"
	PartSeries    = "series"
	PartHeadlines = "headlines"
)

// Aggregator runs the lookup pipeline: resolve a name, then fetch the quote,
// the price history and optionally headlines for it concurrently.
type Aggregator struct {
	krx   *KRX
	naver *Naver
	news  *News
	depth PageDepth
	nNews int
	log   *logrus.Entry
}

// AggregatorOptions tunes the pipeline. Zero values take the defaults.
type AggregatorOptions struct {
	Depth     PageDepth
	NewsLimit int
}

// NewAggregator wires the sources together. news may be nil, in which case
// headline requests are ignored.
func NewAggregator(krx *KRX, naver *Naver, news *News, opts AggregatorOptions, log *logrus.Entry) *Aggregator {
	if log == nil {
		log = naver.log
	}
	return &Aggregator{
		krx:   krx,
		naver: naver,
		news:  news,
		depth: opts.Depth,
		nNews: opts.NewsLimit,
		log:   log,
	}
}

// KRX returns the resolver for direct access.
func (a *Aggregator) KRX() *KRX { return a.krx }

// Naver returns the Naver Finance source for direct access.
func (a *Aggregator) Naver() *Naver { return a.naver }

// Depth returns the configured history depth.
func (a *Aggregator) Depth() PageDepth { return a.depth }

// Lookup resolves query and gathers everything known about the security.
// Only resolution errors (ErrTickerNotFound) fail the call; a part that
// cannot be fetched is left empty and described in the result's Errors.
func (a *Aggregator) Lookup(ctx context.Context, query string, period models.Period, withNews bool) (*models.Lookup, error) {
	sec, err := a.krx.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if period == "" {
		period = models.PeriodDay
	}

	out := &models.Lookup{
		Query:     query,
		Security:  sec,
		Period:    period,
		Series:    models.PriceSeries{},
		FetchedAt: utils.NowKST(),
	}
	log := a.log.WithFields(logrus.Fields{"code": sec.Code, "period": period})

	var mu sync.Mutex
	fail := func(part string, err error) {
		log.WithError(err).WithField("part", part).Warn("lookup part failed")
		mu.Lock()
		out.SetError(part, Describe(err))
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		snap, err := a.naver.GetSnapshot(gctx, sec.Code)
		if err != nil {
			fail(PartSnapshot, err)
			return nil // non-fatal
		}
		if snap.Name == "" {
			snap.Name = sec.Name
		}
		mu.Lock()
		out.Snapshot = snap
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		s, err := a.naver.GetSeries(gctx, sec.Code, a.depth.PagesFor(period))
		if err != nil {
			fail(PartSeries, err)
			return nil
		}
		s = series.Resample(s, period)
		mu.Lock()
		out.Series = s
		mu.Unlock()
		return nil
	})

	if withNews && a.news != nil {
		g.Go(func() error {
			h, err := a.news.Headlines(gctx, sec.Name, a.nNews)
			if err != nil {
				fail(PartHeadlines, err)
				return nil
			}
			mu.Lock()
			out.Headlines = h
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// Compare runs one lookup per query concurrently. Results keep the order of
// queries; a query that cannot be resolved yields a nil entry and its error
// at the same index.
func (a *Aggregator) Compare(ctx context.Context, queries []string, period models.Period) ([]*models.Lookup, []error) {
	results := make([]*models.Lookup, len(queries))
	errs := make([]error, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			results[i], errs[i] = a.Lookup(gctx, q, period, false)
			return nil
		})
	}
	_ = g.Wait()
	return results, errs
}

// Popular returns the popular-search ranking.
func (a *Aggregator) Popular(ctx context.Context, limit int) ([]models.PopularityRow, error) {
	return a.naver.GetPopular(ctx, limit)
}
