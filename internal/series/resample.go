// Package series reshapes daily price series into coarser periods.
package series

import (
	"sort"
	"time"

	"github.com/seenimoa/kstock/pkg/models"
	"github.com/seenimoa/kstock/pkg/utils"
)

// Resample aggregates a daily series into period buckets. Weeks run Monday
// to Sunday and months follow the calendar; each bucket bar is dated on the
// bucket's last calendar day. Within a bucket open is the first open, close
// the last close, high the maximum, low the minimum and volume the sum.
// Buckets without bars do not appear.
//
// PeriodDay returns the input unchanged.
func Resample(s models.PriceSeries, period models.Period) models.PriceSeries {
	if period == models.PeriodDay || period == "" || len(s) == 0 {
		return s
	}

	bucketOf := bucketFunc(period)
	if bucketOf == nil {
		return s
	}

	bars := make(models.PriceSeries, len(s))
	copy(bars, s)
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	var out models.PriceSeries
	for _, bar := range bars {
		key := bucketOf(bar.Date)
		if n := len(out); n > 0 && out[n-1].Date.Equal(key) {
			merge(&out[n-1], bar)
			continue
		}
		bar.Date = key
		out = append(out, bar)
	}
	return out
}

func bucketFunc(period models.Period) func(time.Time) time.Time {
	switch period {
	case models.PeriodWeek:
		return utils.WeekEnd
	case models.PeriodMonth:
		return utils.MonthEnd
	}
	return nil
}

// merge folds a later bar into its bucket.
func merge(bucket *models.PriceBar, bar models.PriceBar) {
	if bar.High.GreaterThan(bucket.High) {
		bucket.High = bar.High
	}
	if bar.Low.LessThan(bucket.Low) {
		bucket.Low = bar.Low
	}
	bucket.Close = bar.Close
	bucket.Volume += bar.Volume
}
