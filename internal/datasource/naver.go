package datasource

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/kstock/pkg/models"
	"github.com/seenimoa/kstock/pkg/utils"
)

// Naver Finance page templates.
const (
	DefaultDetailURL  = "https://finance.naver.com/item/main.naver?code=%s"
	DefaultDailyURL   = "https://finance.naver.com/item/sise_day.naver?code=%s&page=%d"
	DefaultPopularURL = "https://finance.naver.com/sise/lastsearch2.naver"
)

// NaverURLs holds the page templates; empty fields take the defaults.
// DetailURL takes the code, DailyURL the code and the page number.
type NaverURLs struct {
	DetailURL  string
	DailyURL   string
	PopularURL string
}

func (u NaverURLs) withDefaults() NaverURLs {
	if u.DetailURL == "" {
		u.DetailURL = DefaultDetailURL
	}
	if u.DailyURL == "" {
		u.DailyURL = DefaultDailyURL
	}
	if u.PopularURL == "" {
		u.PopularURL = DefaultPopularURL
	}
	return u
}

// Naver scrapes quotes, daily prices and the popular-search ranking from
// Naver Finance.
type Naver struct {
	fetcher *Fetcher
	urls    NaverURLs
	log     *logrus.Entry
}

// NewNaver creates a Naver Finance source.
func NewNaver(f *Fetcher, urls NaverURLs, log *logrus.Entry) *Naver {
	if log == nil {
		log = f.log
	}
	return &Naver{fetcher: f, urls: urls.withDefaults(), log: log}
}

// Name returns the data source name.
func (n *Naver) Name() string { return "Naver Finance" }

// --- Text helpers shared by the Naver parsers ---

// direction is the sign of a price move as shown on the page.
type direction int

const (
	dirUnknown direction = iota
	dirUp
	dirDown
	dirFlat
)

// arrow is the marker prepended to signed won amounts.
func (d direction) arrow() string {
	switch d {
	case dirUp:
		return "▲"
	case dirDown:
		return "▼"
	}
	return ""
}

// sign is the marker prepended to signed rates.
func (d direction) sign() string {
	switch d {
	case dirUp:
		return "+"
	case dirDown:
		return "-"
	}
	return ""
}

var (
	upWords   = []string{"상승", "상한"}
	downWords = []string{"하락", "하한"}
	upClass   = map[string]bool{"no_up": true, "up": true, "bu_pup": true, "bu_pup2": true, "plus": true, "red01": true, "red02": true}
	downClass = map[string]bool{"no_down": true, "down": true, "bu_pdown": true, "bu_pdown2": true, "minus": true, "nv01": true}
)

// directionOf reads the move direction from a cell. Hidden words and icon
// text are tried first ("상승", "하락", "+", "-"), then image alt text, then
// the class names Naver uses for colouring.
func directionOf(sel *goquery.Selection) direction {
	var words []string
	sel.Find(".blind, .ico, em, span").Each(func(_ int, s *goquery.Selection) {
		words = append(words, utils.CleanText(s.Text()))
	})
	sel.Find("img").Each(func(_ int, s *goquery.Selection) {
		words = append(words, s.AttrOr("alt", ""))
	})
	for _, w := range words {
		switch {
		case containsAny(w, upWords) || w == "+":
			return dirUp
		case containsAny(w, downWords) || w == "-":
			return dirDown
		case strings.Contains(w, "보합"):
			return dirFlat
		}
	}

	var dir direction
	sel.AddSelection(sel.Find("*")).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, c := range strings.Fields(s.AttrOr("class", "")) {
			switch {
			case upClass[c]:
				dir = dirUp
				return false
			case downClass[c]:
				dir = dirDown
				return false
			}
		}
		return true
	})
	return dir
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// visibleText returns a cell's text without the hidden direction words and
// icons that sit next to the number.
func visibleText(sel *goquery.Selection) string {
	clone := sel.Clone()
	clone.Find(".blind, .ico, img").Remove()
	return utils.CleanText(clone.Text())
}

// cleanValue normalizes raw page text for a unit: whitespace is collapsed,
// NBSPs dropped, and a unit already present in the text is removed so that
// it can be appended exactly once. Placeholders count as absent.
func cleanValue(raw, unit string) (string, bool) {
	s := stripUnit(utils.CleanText(raw), unit)
	switch s {
	case "", "-", "N/A", "n/a":
		return "", false
	}
	return s, true
}

// stripUnit removes the unit from s, including a leading part of it left at
// the end ("6,135억" for 억원).
func stripUnit(s, unit string) string {
	if unit == "" {
		return s
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, unit, ""))
	ru := []rune(unit)
	for n := len(ru) - 1; n > 0; n-- {
		if part := string(ru[:n]); strings.HasSuffix(s, part) {
			return strings.TrimSpace(strings.TrimSuffix(s, part))
		}
	}
	return s
}

// formatMetric builds the display value for a label from cleaned text.
// marker is prepended as-is; signed rates keep a sign already in the text.
// dir only signs the magnitude, so callers pass dirUnknown for labels that
// carry no direction.
func formatMetric(spec models.MetricSpec, text, marker string, dir direction) models.MetricValue {
	mv := models.MetricValue{Label: spec.Label}

	if strings.HasPrefix(text, "+") || strings.HasPrefix(text, "-") {
		marker = ""
	}
	mv.Text = marker + text + spec.Unit

	var (
		v  float64
		ok bool
	)
	if spec.Label == models.LabelMarketCap {
		v, ok = utils.ParseEokAmount(text)
	} else {
		v, ok = utils.ParseNumber(text)
	}
	if ok {
		if dir == dirDown && v > 0 {
			v = -v
		}
		mv.Magnitude = &v
	}
	return mv
}
