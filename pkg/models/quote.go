package models

import "time"

// Unavailable is the text of any metric that could not be extracted.
const Unavailable = "N/A"

// Snapshot metric labels, as shown on the detail page.
const (
	LabelPrice         = "현재가"
	LabelChange        = "전일대비"
	LabelChangeRate    = "등락률"
	LabelOpen          = "시가"
	LabelHigh          = "고가"
	LabelLow           = "저가"
	LabelPrevClose     = "전일"
	LabelVolume        = "거래량"
	LabelTurnover      = "거래대금"
	LabelMarketCap     = "시가총액"
	LabelPER           = "PER"
	LabelEPS           = "EPS"
	LabelEstPER        = "추정 PER"
	LabelEstEPS        = "추정 EPS"
	LabelPBR           = "PBR"
	LabelBPS           = "BPS"
	LabelDividendYield = "배당수익률"
	LabelForeignRatio  = "외국인소진율"
	LabelIndustryPER   = "동일업종 PER"
)

// MetricSpec pairs a snapshot label with the unit appended to its text.
type MetricSpec struct {
	Label string
	Unit  string
}

// SnapshotSchema is the fixed, ordered set of metrics every snapshot carries.
var SnapshotSchema = []MetricSpec{
	{LabelPrice, "원"},
	{LabelChange, "원"},
	{LabelChangeRate, "%"},
	{LabelOpen, "원"},
	{LabelHigh, "원"},
	{LabelLow, "원"},
	{LabelPrevClose, "원"},
	{LabelVolume, "주"},
	{LabelTurnover, "백만"},
	{LabelMarketCap, "억원"},
	{LabelPER, "배"},
	{LabelEPS, "원"},
	{LabelEstPER, "배"},
	{LabelEstEPS, "원"},
	{LabelPBR, "배"},
	{LabelBPS, "원"},
	{LabelDividendYield, "%"},
	{LabelForeignRatio, "%"},
	{LabelIndustryPER, "배"},
}

// MetricValue is one labelled, display-ready datum.
// Text always carries the unit (and direction marker where relevant) or is
// exactly Unavailable. Magnitude is set when the number could be parsed.
type MetricValue struct {
	Label     string   `json:"label"               yaml:"label"`
	Text      string   `json:"text"                yaml:"text"`
	Magnitude *float64 `json:"magnitude,omitempty" yaml:"magnitude,omitempty"`
}

// NA returns the unavailable value for a label.
func NA(label string) MetricValue {
	return MetricValue{Label: label, Text: Unavailable}
}

// Available reports whether the metric holds a value.
func (m MetricValue) Available() bool {
	return m.Text != "" && m.Text != Unavailable
}

// QuoteSnapshot is a point-in-time set of metrics for one security,
// ordered as SnapshotSchema.
type QuoteSnapshot struct {
	Code      string        `json:"code"           yaml:"code"`
	Name      string        `json:"name,omitempty" yaml:"name,omitempty"`
	Metrics   []MetricValue `json:"metrics"        yaml:"metrics"`
	FetchedAt time.Time     `json:"fetched_at"     yaml:"fetched_at"`
}

// Get returns the metric with the given label.
func (q *QuoteSnapshot) Get(label string) (MetricValue, bool) {
	for _, m := range q.Metrics {
		if m.Label == label {
			return m, true
		}
	}
	return MetricValue{}, false
}

// Map flattens the snapshot into label → text.
func (q *QuoteSnapshot) Map() map[string]string {
	out := make(map[string]string, len(q.Metrics))
	for _, m := range q.Metrics {
		out[m.Label] = m.Text
	}
	return out
}

// Missing lists the labels whose value is unavailable, in schema order.
func (q *QuoteSnapshot) Missing() []string {
	var labels []string
	for _, m := range q.Metrics {
		if !m.Available() {
			labels = append(labels, m.Label)
		}
	}
	return labels
}
