package core

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var isoDatePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// IsISODate reports whether s has the YYYY-MM-DD shape with a month in
// range. The day is not range-checked here; historical records carry
// out-of-range days and are tolerated by clamping on parse.
func IsISODate(s string) bool {
	_, _, _, ok := ParseISODate(s)
	return ok
}

// ParseISODate parses YYYY-MM-DD, clamping the day into the month's
// actual length. Returns ok=false for anything malformed.
func ParseISODate(s string) (year, month, day int, ok bool) {
	m := isoDatePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, 0, false
	}
	year, _ = strconv.Atoi(m[1])
	month, _ = strconv.Atoi(m[2])
	rawDay, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 {
		return 0, 0, 0, false
	}
	return year, month, ClampDay(year, month, rawDay), true
}

// DaysInMonth returns the day count of a calendar month.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay truncates day into [1, DaysInMonth(year, month)].
func ClampDay(year, month, day int) int {
	if day < 1 {
		return 1
	}
	if max := DaysInMonth(year, month); day > max {
		return max
	}
	return day
}

// FormatDate renders year/month/day as YYYY-MM-DD, clamping the day.
func FormatDate(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, ClampDay(year, month, day))
}

// FormatMonth renders year/month as a YYYY-MM month key.
func FormatMonth(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// MonthKey derives the YYYY-MM key from an ISO date, or "" when the
// date is malformed.
func MonthKey(isoDate string) string {
	year, month, _, ok := ParseISODate(isoDate)
	if !ok {
		return ""
	}
	return FormatMonth(year, month)
}

// ShiftMonth moves a year/month pair by delta calendar months.
func ShiftMonth(year, month, delta int) (int, int) {
	moved := time.Date(year, time.Month(month+delta), 1, 0, 0, 0, 0, time.UTC)
	return moved.Year(), int(moved.Month())
}

// AddMonths shifts an ISO date by n calendar months, clamping the day
// to the target month's length (Jan 31 + 1 month = Feb 28/29). Returns
// "" for malformed input.
func AddMonths(isoDate string, n int) string {
	year, month, day, ok := ParseISODate(isoDate)
	if !ok {
		return ""
	}
	year, month = ShiftMonth(year, month, n)
	return FormatDate(year, month, day)
}

// TodayISO returns the current date as YYYY-MM-DD.
func TodayISO() string {
	return time.Now().Format("2006-01-02")
}

// DaysUntil returns the signed day distance from today to target;
// negative means overdue. ok=false when either date is malformed.
func DaysUntil(todayISO, targetISO string) (int, bool) {
	ty, tm, td, ok := ParseISODate(todayISO)
	if !ok {
		return 0, false
	}
	gy, gm, gd, ok := ParseISODate(targetISO)
	if !ok {
		return 0, false
	}
	from := time.Date(ty, time.Month(tm), td, 0, 0, 0, 0, time.UTC)
	to := time.Date(gy, time.Month(gm), gd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24), true
}
