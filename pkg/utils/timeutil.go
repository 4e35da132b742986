package utils

import (
	"strings"
	"time"
)

// KST is the Korea Standard Time location (UTC+9).
var KST *time.Location

func init() {
	var err error
	KST, err = time.LoadLocation("Asia/Seoul")
	if err != nil {
		// Fallback: create fixed zone if tz database is not available
		KST = time.FixedZone("KST", 9*60*60)
	}
}

// NowKST returns the current time in KST.
func NowKST() time.Time {
	return time.Now().In(KST)
}

// DateOf truncates t to midnight of its KST calendar day.
func DateOf(t time.Time) time.Time {
	t = t.In(KST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, KST)
}

// dateLayouts are the date spellings seen in KRX and Naver tables.
var dateLayouts = []string{"2006.01.02", "2006-01-02", "2006/01/02", "20060102"}

// ParseDate parses a calendar date such as "2024.01.02" into midnight KST.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, s, KST); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// FormatDate formats a time.Time to "2006-01-02" in KST.
func FormatDate(t time.Time) string {
	return t.In(KST).Format("2006-01-02")
}

// FormatDateTimeKST formats a time.Time to "2006-01-02 15:04:05 KST".
func FormatDateTimeKST(t time.Time) string {
	return t.In(KST).Format("2006-01-02 15:04:05 KST")
}

// WeekEnd returns the Sunday closing the ISO week that contains t.
func WeekEnd(t time.Time) time.Time {
	d := DateOf(t)
	offset := (7 - int(d.Weekday())) % 7
	return d.AddDate(0, 0, offset)
}

// MonthEnd returns the last calendar day of the month that contains t.
func MonthEnd(t time.Time) time.Time {
	d := DateOf(t)
	return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, KST)
}

// MarketStatus returns the KRX regular session status at the given time.
// Public holidays are not taken into account.
func MarketStatus(now time.Time) string {
	now = now.In(KST)
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return "CLOSED (Weekend)"
	}

	open := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, KST)
	close := time.Date(now.Year(), now.Month(), now.Day(), 15, 30, 0, 0, KST)
	preOpen := time.Date(now.Year(), now.Month(), now.Day(), 8, 30, 0, 0, KST)

	switch {
	case now.Before(preOpen):
		return "PRE-MARKET"
	case now.Before(open):
		return "PRE-OPEN SESSION"
	case !now.After(close):
		return "OPEN"
	default:
		return "CLOSED"
	}
}
