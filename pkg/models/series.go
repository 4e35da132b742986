package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar is one OHLCV record for a single period.
// Date is a calendar date at midnight KST.
type PriceBar struct {
	Date   time.Time       `json:"date"   yaml:"date"`
	Open   decimal.Decimal `json:"open"   yaml:"open"`
	High   decimal.Decimal `json:"high"   yaml:"high"`
	Low    decimal.Decimal `json:"low"    yaml:"low"`
	Close  decimal.Decimal `json:"close"  yaml:"close"`
	Volume int64           `json:"volume" yaml:"volume"`
}

// PriceSeries is a run of bars in ascending date order with unique dates.
type PriceSeries []PriceBar

// IsEmpty reports whether the series has no bars.
func (s PriceSeries) IsEmpty() bool { return len(s) == 0 }

// First returns the oldest bar.
func (s PriceSeries) First() (PriceBar, bool) {
	if len(s) == 0 {
		return PriceBar{}, false
	}
	return s[0], true
}

// Last returns the most recent bar.
func (s PriceSeries) Last() (PriceBar, bool) {
	if len(s) == 0 {
		return PriceBar{}, false
	}
	return s[len(s)-1], true
}

// Period is the periodicity of a series.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Periods lists the supported periodicities, finest first.
var Periods = []Period{PeriodDay, PeriodWeek, PeriodMonth}

// ParsePeriod accepts day/week/month and their common spellings.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "d", "day", "daily", "일봉":
		return PeriodDay, nil
	case "w", "week", "weekly", "주봉":
		return PeriodWeek, nil
	case "m", "month", "monthly", "월봉":
		return PeriodMonth, nil
	}
	return "", fmt.Errorf("unknown period %q (want day, week or month)", s)
}
