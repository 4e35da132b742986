// Package config handles configuration loading for kstock.
// It supports YAML config files, a .env file and environment variable
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. KSTOCK_HTTP_USER_AGENT.
const EnvPrefix = "KSTOCK"

// Config represents the complete application configuration.
type Config struct {
	Sources SourcesConfig `mapstructure:"sources" yaml:"sources"`
	HTTP    HTTPConfig    `mapstructure:"http"    yaml:"http"`
	Series  SeriesConfig  `mapstructure:"series"  yaml:"series"`
	Popular PopularConfig `mapstructure:"popular" yaml:"popular"`
	News    NewsConfig    `mapstructure:"news"    yaml:"news"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// SourcesConfig holds the origin page templates.
type SourcesConfig struct {
	ListingURL string `mapstructure:"listing_url" yaml:"listing_url"`
	DetailURL  string `mapstructure:"detail_url"  yaml:"detail_url"`  // %s = code
	DailyURL   string `mapstructure:"daily_url"   yaml:"daily_url"`   // %s = code, %d = page
	PopularURL string `mapstructure:"popular_url" yaml:"popular_url"`
	NewsURL    string `mapstructure:"news_url"    yaml:"news_url"`    // %s = escaped query
}

// HTTPConfig holds outbound request settings.
type HTTPConfig struct {
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"    yaml:"timeout"`
	RateLimit int           `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second, 0 = unlimited
}

// SeriesConfig holds how many daily pages are read per periodicity.
type SeriesConfig struct {
	DayPages   int `mapstructure:"day_pages"   yaml:"day_pages"`
	WeekPages  int `mapstructure:"week_pages"  yaml:"week_pages"`
	MonthPages int `mapstructure:"month_pages" yaml:"month_pages"`
}

// PopularConfig holds popular-list settings.
type PopularConfig struct {
	Limit int `mapstructure:"limit" yaml:"limit"`
}

// NewsConfig holds headline settings.
type NewsConfig struct {
	Limit int `mapstructure:"limit" yaml:"limit"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Addr returns the listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.kstock/config.yaml (home directory)
//  3. /etc/kstock/config.yaml (system)
//
// A .env file in the working directory is loaded first; variables already
// set in the environment win over it. Environment variables override config
// file values. Format: KSTOCK_<SECTION>_<KEY>, e.g., KSTOCK_API_PORT
func Load() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".kstock"))
	v.AddConfigPath("/etc/kstock")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	if err := LoadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return unmarshal(v)
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("error loading %s: %w", p, err)
		}
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later in obscure ways.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Timeout < 0 {
		errs = append(errs, fmt.Errorf("http.timeout must not be negative, got %s", c.HTTP.Timeout))
	}
	if c.HTTP.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("http.rate_limit must not be negative, got %d", c.HTTP.RateLimit))
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port out of range: %d", c.API.Port))
	}
	if strings.Count(c.Sources.DailyURL, "%") < 2 {
		errs = append(errs, fmt.Errorf("sources.daily_url needs code and page placeholders: %q", c.Sources.DailyURL))
	}
	for name, u := range map[string]string{"sources.detail_url": c.Sources.DetailURL, "sources.news_url": c.Sources.NewsURL} {
		if !strings.Contains(u, "%s") {
			errs = append(errs, fmt.Errorf("%s needs a %%s placeholder: %q", name, u))
		}
	}
	return errors.Join(errs...)
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	for key, val := range Defaults() {
		v.SetDefault(key, val)
	}
}

// Defaults returns the default value of every key, by dotted key name.
func Defaults() map[string]any {
	return map[string]any{
		// Origins
		"sources.listing_url": "https://kind.krx.co.kr/corpgeneral/corpList.do?method=download&searchType=13",
		"sources.detail_url":  "https://finance.naver.com/item/main.naver?code=%s",
		"sources.daily_url":   "https://finance.naver.com/item/sise_day.naver?code=%s&page=%d",
		"sources.popular_url": "https://finance.naver.com/sise/lastsearch2.naver",
		"sources.news_url":    "https://news.google.com/rss/search?q=%s&hl=ko&gl=KR&ceid=KR:ko",

		// Outbound HTTP
		"http.user_agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		"http.timeout":    time.Duration(0),
		"http.rate_limit": 5,

		// History depth, 10 rows per page
		"series.day_pages":   10,
		"series.week_pages":  30,
		"series.month_pages": 60,

		"popular.limit": 30,
		"news.limit":    5,

		// API
		"api.host":         "0.0.0.0",
		"api.port":         8080,
		"api.cors_origins": []string{"http://localhost:3000"},

		// Logging
		"logging.level":  "info",
		"logging.format": "text",
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
