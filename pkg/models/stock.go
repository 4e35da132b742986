// Package models defines the core data structures used throughout kstock.
package models

import (
	"fmt"
	"time"
)

// SecurityIdentity is one row of the exchange listing.
type SecurityIdentity struct {
	Name string `json:"name" yaml:"name"` // e.g., "삼성전자"
	Code string `json:"code" yaml:"code"` // e.g., "005930"
}

func (s SecurityIdentity) String() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.Code)
}

// PopularityRow is one entry of the ranked popular-search table.
type PopularityRow struct {
	Rank          int         `json:"rank"           yaml:"rank"`
	Name          string      `json:"name"           yaml:"name"`
	Code          string      `json:"code,omitempty" yaml:"code,omitempty"`
	CurrentPrice  MetricValue `json:"current_price"  yaml:"current_price"`
	PriorDayDelta MetricValue `json:"prior_day_delta" yaml:"prior_day_delta"`
	PercentChange MetricValue `json:"percent_change" yaml:"percent_change"`
}

// Headline is a news item related to a security.
type Headline struct {
	Title     string    `json:"title"               yaml:"title"`
	Link      string    `json:"link"                yaml:"link"`
	Source    string    `json:"source,omitempty"    yaml:"source,omitempty"`
	Published time.Time `json:"published,omitempty" yaml:"published,omitempty"`
}

// Lookup is everything a single search produces for one security.
// Parts that could not be fetched are absent and described in Errors,
// keyed by part name ("snapshot", "series", "headlines").
type Lookup struct {
	Query     string            `json:"query"               yaml:"query"`
	Security  SecurityIdentity  `json:"security"            yaml:"security"`
	Period    Period            `json:"period"              yaml:"period"`
	Snapshot  *QuoteSnapshot    `json:"snapshot,omitempty"  yaml:"snapshot,omitempty"`
	Series    PriceSeries       `json:"series"              yaml:"series"`
	Headlines []Headline        `json:"headlines,omitempty" yaml:"headlines,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"    yaml:"errors,omitempty"`
	FetchedAt time.Time         `json:"fetched_at"          yaml:"fetched_at"`
}

// SetError records a failed part of the lookup.
func (l *Lookup) SetError(part, msg string) {
	if l.Errors == nil {
		l.Errors = make(map[string]string)
	}
	l.Errors[part] = msg
}
