// Package market_hours provides trading calendar helpers.
//
// The B3 exchange trades Monday through Friday, so weekend dates collapse
// to the previous Friday when deciding which session is the most recent one.
package market_hours

import "time"

// LastTradingDay returns the most recent weekday on or before the given date.
// Saturday collapses to Friday (minus one day), Sunday to Friday (minus two).
// Exchange holidays are not modelled; a holiday simply makes the cache look
// one session staler than it is, which at worst triggers a redundant fetch.
func LastTradingDay(today time.Time) time.Time {
	day := DateOnly(today)
	switch day.Weekday() {
	case time.Saturday:
		return day.AddDate(0, 0, -1)
	case time.Sunday:
		return day.AddDate(0, 0, -2)
	default:
		return day
	}
}

// DateOnly truncates a time to midnight UTC so date comparisons ignore the
// time-of-day component.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
