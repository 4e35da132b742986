package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// SettingSource represents where an effective setting comes from.
type SettingSource string

const (
	SourceEnv     SettingSource = "env"
	SourceConfig  SettingSource = "config"
	SourceDefault SettingSource = "default"
)

// SettingStatus describes one effective setting.
type SettingStatus struct {
	Key    string        `json:"key"    yaml:"key"`
	Value  string        `json:"value"  yaml:"value"`
	Source SettingSource `json:"source" yaml:"source"`
	EnvVar string        `json:"env"    yaml:"env"`
}

// Settings returns the effective value and origin of every key, sorted by
// key. Used by the status command to explain where a value came from.
func Settings(cfg *Config) []SettingStatus {
	values := cfg.flatten()
	defaults := Defaults()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]SettingStatus, 0, len(keys))
	for _, k := range keys {
		out = append(out, checkSetting(k, values[k], display(defaults[k])))
	}
	return out
}

// EnvVar returns the environment variable that overrides a dotted key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// checkSetting works out where a value came from.
func checkSetting(key, value, def string) SettingStatus {
	status := SettingStatus{Key: key, Value: value, EnvVar: EnvVar(key)}
	switch {
	case os.Getenv(status.EnvVar) != "":
		status.Source = SourceEnv
	case value != def:
		status.Source = SourceConfig
	default:
		status.Source = SourceDefault
	}
	return status
}

func (c *Config) flatten() map[string]string {
	return map[string]string{
		"sources.listing_url": c.Sources.ListingURL,
		"sources.detail_url":  c.Sources.DetailURL,
		"sources.daily_url":   c.Sources.DailyURL,
		"sources.popular_url": c.Sources.PopularURL,
		"sources.news_url":    c.Sources.NewsURL,
		"http.user_agent":     c.HTTP.UserAgent,
		"http.timeout":        display(c.HTTP.Timeout),
		"http.rate_limit":     display(c.HTTP.RateLimit),
		"series.day_pages":    display(c.Series.DayPages),
		"series.week_pages":   display(c.Series.WeekPages),
		"series.month_pages":  display(c.Series.MonthPages),
		"popular.limit":       display(c.Popular.Limit),
		"news.limit":          display(c.News.Limit),
		"api.host":            c.API.Host,
		"api.port":            display(c.API.Port),
		"api.cors_origins":    display(c.API.CORSOrigins),
		"logging.level":       c.Logging.Level,
		"logging.format":      c.Logging.Format,
	}
}

func display(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, ",")
	default:
		return fmt.Sprint(t)
	}
}
