package service

import (
	"fmt"
	"time"
)

// parseDateRange parses two YYYY-MM-DD dates and requires start < end.
func parseDateRange(start, end string) (time.Time, time.Time, error) {
	startDate, err := time.Parse("2006-01-02", start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse start date: %w", err)
	}
	endDate, err := time.Parse("2006-01-02", end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse end date: %w", err)
	}
	if !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("start date %s is not before end date %s", start, end)
	}
	return startDate, endDate, nil
}

// validTimeRange reports whether both values are HH:MM clock times with
// start strictly before end.
func validTimeRange(start, end string) bool {
	startTime, err := time.Parse("15:04", start)
	if err != nil {
		return false
	}
	endTime, err := time.Parse("15:04", end)
	if err != nil {
		return false
	}
	return startTime.Before(endTime)
}
