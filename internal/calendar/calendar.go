// Package calendar provides month arithmetic, holiday classification and
// canonical date formatting for the planning grid. Months are addressed by
// their French display token (JANVIER..DECEMBRE) as stored in the UI and in
// planning dates.
package calendar

import (
	"fmt"
	"time"
)

// Months lists the twelve month tokens in calendar order. The position of a
// token in this slice is the zero-based month index used for date formatting.
var Months = []string{
	"JANVIER", "FEVRIER", "MARS", "AVRIL", "MAI", "JUIN",
	"JUILLET", "AOÛT", "SEPTEMBRE", "OCTOBRE", "NOVEMBRE", "DECEMBRE",
}

// frenchWeekdays maps time.Weekday to the short French weekday label.
var frenchWeekdays = [7]string{"dim.", "lun.", "mar.", "mer.", "jeu.", "ven.", "sam."}

// DayInfo describes the classification of a single calendar day.
type DayInfo struct {
	Weekday time.Weekday
	Weekend bool
	Holiday bool
}

// MonthIndex returns the zero-based index of a month token, or -1 when the
// token is not one of the twelve known months.
func MonthIndex(month string) int {
	for i, m := range Months {
		if m == month {
			return i
		}
	}
	return -1
}

// DaysInMonth returns the number of days in the given month and year,
// leap years included. Unknown month tokens yield 0.
func DaysInMonth(month string, year int) int {
	idx := MonthIndex(month)
	if idx < 0 {
		return 0
	}
	// Day 0 of the following month normalizes to the last day of this one.
	return time.Date(year, time.Month(idx+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// Classify reports weekday, weekend and holiday status for a day of the given
// month. Day numbers outside the month are not rejected; callers iterate
// 1..DaysInMonth and keep bounds themselves.
func Classify(day int, month string, year int) DayInfo {
	idx := MonthIndex(month)
	if idx < 0 {
		return DayInfo{}
	}
	wd := time.Date(year, time.Month(idx+1), day, 0, 0, 0, 0, time.UTC).Weekday()
	info := DayInfo{
		Weekday: wd,
		Weekend: wd == time.Saturday || wd == time.Sunday,
	}
	for _, d := range holidaysFor(year)[month] {
		if d == day {
			info.Holiday = true
			break
		}
	}
	return info
}

// FormatDate renders a (day, month, year) triple as an ISO YYYY-MM-DD string.
func FormatDate(day int, month string, year int) string {
	idx := MonthIndex(month)
	return fmt.Sprintf("%04d-%02d-%02d", year, idx+1, day)
}

// WeekdayShort returns the abbreviated French weekday name for a date.
func WeekdayShort(day int, month string, year int) string {
	idx := MonthIndex(month)
	if idx < 0 {
		return ""
	}
	wd := time.Date(year, time.Month(idx+1), day, 0, 0, 0, 0, time.UTC).Weekday()
	return frenchWeekdays[wd]
}

// DayOfMonth extracts the day number from an ISO YYYY-MM-DD date string.
func DayOfMonth(date string) (int, error) {
	var y, m, d int
	if _, err := fmt.Sscanf(date, "%d-%d-%d", &y, &m, &d); err != nil {
		return 0, fmt.Errorf("calendar: parse date %q: %w", date, err)
	}
	return d, nil
}
