package appointment

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"clinic-portal-server/internal/apperrors"
)

const dateLayout = "2006-01-02"

// timeLayouts accepts "02:00 PM" and the compact "02:00PM".
var timeLayouts = []string{"3:04 PM", "3:04PM"}

// CombineDateTime merges a calendar date and a 12-hour clock time into a single
// timestamp in loc. dateStr is "YYYY-MM-DD" (an RFC3339 timestamp is accepted and
// only its date part is used); timeStr is "hh:mm AM" or "hh:mm PM". Seconds and
// sub-seconds are always zero.
func CombineDateTime(dateStr, timeStr string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	dateStr = strings.TrimSpace(dateStr)
	if len(dateStr) > len(dateLayout) {
		if ts, err := time.Parse(time.RFC3339, dateStr); err == nil {
			dateStr = ts.Format(dateLayout)
		}
	}
	day, err := time.ParseInLocation(dateLayout, dateStr, loc)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", dateStr))
	}

	clock, err := parseClock(timeStr)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError(fmt.Sprintf("invalid time %q, expected hh:mm AM/PM", timeStr))
	}

	// time.Parse already maps 12 AM to hour 0 and adds 12 to PM hours other than 12 PM.
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc), nil
}

func parseClock(timeStr string) (time.Time, error) {
	value := strings.ToUpper(strings.TrimSpace(timeStr))

	// time.Parse takes "00" for the 12-hour field.
	hourStr, _, found := strings.Cut(value, ":")
	if !found {
		return time.Time{}, fmt.Errorf("missing minutes in %q", value)
	}
	hour, err := strconv.Atoi(hourStr)
	if err != nil || hour < 1 || hour > 12 {
		return time.Time{}, fmt.Errorf("hour %q out of range 1-12", hourStr)
	}

	for _, layout := range timeLayouts {
		var clock time.Time
		if clock, err = time.Parse(layout, value); err == nil {
			return clock, nil
		}
	}
	return time.Time{}, err
}
