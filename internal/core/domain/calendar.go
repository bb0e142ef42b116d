package domain

import (
	"fmt"
	"time"
)

// DateLayout is the ISO date form used for due dates and meeting dates.
const DateLayout = "2006-01-02"

// AddBusinessDays advances one calendar day at a time from start and counts only
// Monday through Friday until n such days have been counted. The result has no time
// component. Holidays are not modeled.
func AddBusinessDays(start time.Time, n int) time.Time {
	date := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for added := 0; added < n; {
		date = date.AddDate(0, 0, 1)
		if wd := date.Weekday(); wd != time.Saturday && wd != time.Sunday {
			added++
		}
	}
	return date
}

// BusinessDaysAfter is AddBusinessDays over ISO date strings.
func BusinessDaysAfter(isoDate string, n int) (string, error) {
	start, err := time.Parse(DateLayout, isoDate)
	if err != nil {
		return "", WrapError(ErrInvalidInput, "business days after", fmt.Errorf("parse date %q: %w", isoDate, err))
	}
	return AddBusinessDays(start, n).Format(DateLayout), nil
}
