package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/kstock/pkg/models"
	"github.com/seenimoa/kstock/pkg/utils"
)

// DefaultPopularLimit is the number of rows returned when no limit is given.
const DefaultPopularLimit = 30

// Popular table header names and the positions used when the header row
// is missing.
var popularColumns = map[string]int{
	"순위":  0,
	"종목명": 1,
	"현재가": 3,
	"전일비": 4,
	"등락률": 5,
}

var (
	popularPriceSpec = models.MetricSpec{Label: models.LabelPrice, Unit: "원"}
	popularDeltaSpec = models.MetricSpec{Label: models.LabelChange, Unit: "원"}
	popularRateSpec  = models.MetricSpec{Label: models.LabelChangeRate, Unit: "%"}
)

// GetPopular returns up to limit rows of the search-popularity ranking, in
// page order. Header, spacer and short rows are skipped; only a failed fetch
// is an error. limit <= 0 selects DefaultPopularLimit.
func (n *Naver) GetPopular(ctx context.Context, limit int) ([]models.PopularityRow, error) {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	doc, err := n.fetcher.Document(ctx, DocPopular, n.urls.PopularURL)
	if err != nil {
		return nil, fmt.Errorf("popular list: %w", err)
	}
	rows := parsePopular(doc, limit)
	n.log.WithField("rows", len(rows)).Debug("popular list parsed")
	return rows, nil
}

func parsePopular(doc *goquery.Document, limit int) []models.PopularityRow {
	table := doc.Find("table.type_5, table.type5").First()
	if table.Length() == 0 {
		table = doc.Find("table").First()
	}

	cols := make(map[string]int, len(popularColumns))
	for k, v := range popularColumns {
		cols[k] = v
	}
	table.Find("tr").First().Find("th").Each(func(i int, th *goquery.Selection) {
		name := utils.CleanText(th.Text())
		if _, ok := cols[name]; ok {
			cols[name] = i
		}
	})
	need := 0
	for _, i := range cols {
		if i+1 > need {
			need = i + 1
		}
	}

	var rows []models.PopularityRow
	table.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		cells := tr.Find("td")
		if cells.Length() < need {
			return true
		}
		row, ok := parsePopularRow(cells, cols, len(rows)+1)
		if !ok {
			return true
		}
		rows = append(rows, row)
		return len(rows) < limit
	})
	return rows
}

func parsePopularRow(cells *goquery.Selection, cols map[string]int, nextRank int) (models.PopularityRow, bool) {
	nameCell := cells.Eq(cols["종목명"])
	name := utils.CleanText(nameCell.Text())
	if name == "" {
		return models.PopularityRow{}, false
	}

	row := models.PopularityRow{
		Rank: nextRank,
		Name: name,
		Code: codeFromLink(nameCell.Find("a").AttrOr("href", "")),
	}
	if rank, ok := utils.ParseInt(cells.Eq(cols["순위"]).Text()); ok && rank > 0 {
		row.Rank = int(rank)
	}

	row.CurrentPrice = popularMetric(popularPriceSpec, cells.Eq(cols["현재가"]), nil)
	row.PriorDayDelta = popularMetric(popularDeltaSpec, cells.Eq(cols["전일비"]), direction.arrow)
	row.PercentChange = popularMetric(popularRateSpec, cells.Eq(cols["등락률"]), direction.sign)
	return row, true
}

func popularMetric(spec models.MetricSpec, cell *goquery.Selection, marker func(direction) string) models.MetricValue {
	text, ok := cleanValue(visibleText(cell), spec.Unit)
	if !ok {
		return models.NA(spec.Label)
	}
	if marker == nil {
		return formatMetric(spec, text, "", dirUnknown)
	}
	dir := directionOf(cell)
	return formatMetric(spec, text, marker(dir), dir)
}

// codeFromLink extracts the code query parameter from an item link such as
// "/item/main.naver?code=005930".
func codeFromLink(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	code := strings.TrimSpace(u.Query().Get("code"))
	if code == "" {
		return ""
	}
	return utils.NormalizeCode(code)
}
