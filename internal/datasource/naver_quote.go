package datasource

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/kstock/pkg/models"
	"github.com/seenimoa/kstock/pkg/utils"
)

// reading is the raw text found for a label plus any move direction next to it.
type reading struct {
	text string
	dir  direction
}

// strategy looks for one label in one place on the page.
type strategy func(doc *goquery.Document) (reading, bool)

// metricRule lists where a label may be found, most specific layout first.
type metricRule struct {
	marker func(direction) string // nil for labels without a direction
	tries  []strategy
}

// rateInfoScopes are the price panels seen on detail pages: the regular
// chart-area panel, the per-venue panel, and any other rate_info block.
var rateInfoScopes = []string{"#chart_area .rate_info", "#rate_info_krx", ".rate_info"}

// snapshotRules maps every schema label to its strategies.
var snapshotRules = map[string]metricRule{
	models.LabelPrice: {
		tries: append(inRatePanels(func(scope string) strategy { return blindAt(scope+" p.no_today", 0) }),
			summaryPrice),
	},
	models.LabelChange: {
		marker: direction.arrow,
		tries: append(inRatePanels(func(scope string) strategy { return blindAt(scope+" p.no_exday", 0) }),
			summaryChange),
	},
	models.LabelChangeRate: {
		marker: direction.sign,
		tries: append(inRatePanels(func(scope string) strategy { return blindAt(scope+" p.no_exday", 1) }),
			summaryRate),
	},
	models.LabelOpen: {
		tries: append(inRatePanels(func(scope string) strategy { return noInfoCell(scope, "시가") }),
			summaryField("시가")),
	},
	models.LabelHigh: {
		tries: append(inRatePanels(func(scope string) strategy { return noInfoCell(scope, "고가") }),
			summaryField("고가")),
	},
	models.LabelLow: {
		tries: append(inRatePanels(func(scope string) strategy { return noInfoCell(scope, "저가") }),
			summaryField("저가")),
	},
	models.LabelPrevClose: {
		tries: append(inRatePanels(func(scope string) strategy { return noInfoCell(scope, "전일") }),
			summaryField("전일가")),
	},
	models.LabelVolume: {
		tries: append(inRatePanels(func(scope string) strategy { return noInfoCell(scope, "거래량") }),
			summaryField("거래량")),
	},
	models.LabelTurnover: {
		tries: append(inRatePanels(func(scope string) strategy { return noInfoCell(scope, "거래대금") }),
			summaryField("거래대금")),
	},
	models.LabelMarketCap: {
		tries: []strategy{textOf("em#_market_sum"), labelledRow("시가총액", 0)},
	},
	models.LabelPER: {
		tries: []strategy{textOf("em#_per"), labelledRow("PER", 0)},
	},
	models.LabelEPS: {
		tries: []strategy{textOf("em#_eps"), labelledRow("PER", 1)},
	},
	models.LabelEstPER: {
		tries: []strategy{textOf("em#_cns_per"), labelledRow("추정PER", 0)},
	},
	models.LabelEstEPS: {
		tries: []strategy{textOf("em#_cns_eps"), labelledRow("추정PER", 1)},
	},
	models.LabelPBR: {
		tries: []strategy{textOf("em#_pbr"), labelledRow("PBR", 0)},
	},
	models.LabelBPS: {
		tries: []strategy{bpsNextToPBR, labelledRow("PBR", 1)},
	},
	models.LabelDividendYield: {
		tries: []strategy{textOf("em#_dvr"), labelledRow("배당수익률", 0)},
	},
	models.LabelForeignRatio: {
		tries: []strategy{labelledRow("외국인소진율", 0)},
	},
	models.LabelIndustryPER: {
		tries: []strategy{textOf(`table[summary="동일업종 PER 정보"] em`), labelledRow("동일업종PER", 0)},
	},
}

// GetSnapshot fetches a security's detail page and extracts every schema
// metric. Labels that cannot be found are "N/A"; the call itself fails with
// ErrExtractionFailed only when the page cannot be fetched or carries no
// quote area at all.
func (n *Naver) GetSnapshot(ctx context.Context, code string) (*models.QuoteSnapshot, error) {
	code = utils.NormalizeCode(code)

	doc, err := n.fetcher.Document(ctx, DocDetail, fmt.Sprintf(n.urls.DetailURL, code))
	if err != nil {
		return nil, fmt.Errorf("%w: detail page %s: %w", ErrExtractionFailed, code, err)
	}
	if !hasQuoteArea(doc) {
		return nil, fmt.Errorf("%w: detail page %s has no quote area", ErrExtractionFailed, code)
	}

	snap := extractSnapshot(doc, code, n.log)
	if missing := snap.Missing(); len(missing) > 0 {
		n.log.WithFields(logrus.Fields{"code": code, "missing": missing}).Debug("snapshot has gaps")
	}
	return snap, nil
}

// hasQuoteArea reports whether the document looks like a detail page.
func hasQuoteArea(doc *goquery.Document) bool {
	return doc.Find("#chart_area, .rate_info, dl.blind, .aside_invest_info, #tab_con1").Length() > 0
}

// extractSnapshot runs every rule against the document in schema order.
func extractSnapshot(doc *goquery.Document, code string, log *logrus.Entry) *models.QuoteSnapshot {
	snap := &models.QuoteSnapshot{
		Code:      code,
		Name:      companyName(doc),
		Metrics:   make([]models.MetricValue, 0, len(models.SnapshotSchema)),
		FetchedAt: utils.NowKST(),
	}
	for _, spec := range models.SnapshotSchema {
		snap.Metrics = append(snap.Metrics, extractMetric(doc, spec, log))
	}
	return snap
}

// extractMetric tries the label's strategies in order. A strategy that
// panics on odd markup only loses its own label.
func extractMetric(doc *goquery.Document, spec models.MetricSpec, log *logrus.Entry) (mv models.MetricValue) {
	mv = models.NA(spec.Label)
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{"label": spec.Label, "panic": r}).Warn("metric extraction aborted")
			mv = models.NA(spec.Label)
		}
	}()

	rule, ok := snapshotRules[spec.Label]
	if !ok {
		return mv
	}
	for _, try := range rule.tries {
		r, found := try(doc)
		if !found {
			continue
		}
		text, ok := cleanValue(r.text, spec.Unit)
		if !ok {
			continue
		}
		if rule.marker == nil {
			return formatMetric(spec, text, "", dirUnknown)
		}
		return formatMetric(spec, text, rule.marker(r.dir), r.dir)
	}
	return mv
}

func companyName(doc *goquery.Document) string {
	if name := utils.CleanText(doc.Find(".wrap_company h2").First().Text()); name != "" {
		return name
	}
	if r, ok := summaryField("종목명")(doc); ok {
		return r.text
	}
	return ""
}

// --- Strategies ---

func inRatePanels(build func(scope string) strategy) []strategy {
	tries := make([]strategy, 0, len(rateInfoScopes))
	for _, scope := range rateInfoScopes {
		tries = append(tries, build(scope))
	}
	return tries
}

// blindAt reads the idx-th <em> under container: the hidden .blind text
// carries the plain number, the em itself the direction.
func blindAt(container string, idx int) strategy {
	return func(doc *goquery.Document) (reading, bool) {
		em := doc.Find(container).First().Find("em").Eq(idx)
		if em.Length() == 0 {
			return reading{}, false
		}
		return reading{text: numberIn(em), dir: directionOf(em)}, true
	}
}

// noInfoCell reads a cell of the quote grid whose caption equals label.
func noInfoCell(scope, label string) strategy {
	return func(doc *goquery.Document) (reading, bool) {
		var out reading
		found := false
		doc.Find(scope + " table.no_info td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
			if utils.CleanText(td.Find(".sptxt").First().Text()) != label {
				return true
			}
			em := td.Find("em").First()
			if em.Length() == 0 {
				return true
			}
			out = reading{text: numberIn(em), dir: directionOf(em)}
			found = true
			return false
		})
		return out, found
	}
}

// numberIn prefers the hidden .blind text, which holds the number without
// the digit-sprite markup around it.
func numberIn(sel *goquery.Selection) string {
	if blind := sel.Find(".blind"); blind.Length() > 0 {
		for i := range blind.Nodes {
			t := utils.CleanText(blind.Eq(i).Text())
			if _, ok := utils.ParseNumber(t); ok {
				return t
			}
		}
	}
	return visibleText(sel)
}

func textOf(selector string) strategy {
	return func(doc *goquery.Document) (reading, bool) {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			return reading{}, false
		}
		return reading{text: sel.Text()}, true
	}
}

func bpsNextToPBR(doc *goquery.Document) (reading, bool) {
	em := doc.Find("em#_pbr").First().Parent().Find("em").Eq(1)
	if em.Length() == 0 {
		return reading{}, false
	}
	return reading{text: em.Text()}, true
}

// labelledRow finds a table row whose header starts with label and reads
// the idx-th <em> of its data cell. Headers are compared with whitespace
// removed, so "PER l EPS(2024.12)" matches "PER" and "추정PER" does not.
func labelledRow(label string, idx int) strategy {
	return func(doc *goquery.Document) (reading, bool) {
		var out reading
		found := false
		doc.Find("th").EachWithBreak(func(_ int, th *goquery.Selection) bool {
			if !headerMatches(th.Text(), label) {
				return true
			}
			td := th.SiblingsFiltered("td").First()
			if td.Length() == 0 {
				return true
			}
			cell := td.Find("em")
			if cell.Length() == 0 && idx == 0 {
				cell = td
			}
			cell = cell.Eq(idx)
			if cell.Length() == 0 {
				return true
			}
			out = reading{text: cell.Text()}
			found = true
			return false
		})
		return out, found
	}
}

func headerMatches(header, label string) bool {
	h := strings.Join(strings.Fields(header), "")
	if !strings.HasPrefix(h, label) {
		return false
	}
	rest := h[len(label):]
	return rest == "" || strings.HasPrefix(rest, "l") || strings.HasPrefix(rest, "(") || strings.HasPrefix(rest, "|")
}

// --- Hidden summary list (dl.blind) ---
//
// Detail pages repeat the quote as plain sentences for screen readers:
//   현재가 72,300 전일대비 상승 1,200 플러스 1.69 퍼센트
//   전일가 71,100
// These are the fallback when the visual panel is missing or restyled.

func summaryTokens(doc *goquery.Document, first string) []string {
	var tokens []string
	doc.Find("dl.blind dd").EachWithBreak(func(_ int, dd *goquery.Selection) bool {
		f := strings.Fields(utils.CleanText(dd.Text()))
		if len(f) > 0 && f[0] == first {
			tokens = f
			return false
		}
		return true
	})
	return tokens
}

func summaryField(prefix string) strategy {
	return func(doc *goquery.Document) (reading, bool) {
		tokens := summaryTokens(doc, prefix)
		if len(tokens) < 2 {
			return reading{}, false
		}
		return reading{text: strings.Join(tokens[1:], " ")}, true
	}
}

func summaryPrice(doc *goquery.Document) (reading, bool) {
	tokens := summaryTokens(doc, "현재가")
	if len(tokens) < 2 {
		return reading{}, false
	}
	return reading{text: tokens[1]}, true
}

func summaryChange(doc *goquery.Document) (reading, bool) {
	tokens := summaryTokens(doc, "현재가")
	for i, t := range tokens {
		if t != "전일대비" || i+2 >= len(tokens) {
			continue
		}
		return reading{text: tokens[i+2], dir: wordDirection(tokens[i+1])}, true
	}
	return reading{}, false
}

func summaryRate(doc *goquery.Document) (reading, bool) {
	tokens := summaryTokens(doc, "현재가")
	for i, t := range tokens {
		if t != "퍼센트" || i < 1 {
			continue
		}
		r := reading{text: tokens[i-1], dir: dirFlat}
		if i >= 2 {
			switch tokens[i-2] {
			case "플러스":
				r.dir = dirUp
			case "마이너스":
				r.dir = dirDown
			}
		}
		return r, true
	}
	return reading{}, false
}

func wordDirection(w string) direction {
	switch {
	case containsAny(w, upWords):
		return dirUp
	case containsAny(w, downWords):
		return dirDown
	case strings.Contains(w, "보합"):
		return dirFlat
	}
	return dirUnknown
}
