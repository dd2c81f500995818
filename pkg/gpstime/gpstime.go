// Package gpstime converts GPS week/seconds-of-week pairs to UTC calendar time.
package gpstime

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// LeapSeconds is the GPS-UTC offset in effect since 2017-01-01.
	LeapSeconds = 18

	// SecondsPerWeek is the length of one GPS week.
	SecondsPerWeek = 7 * 24 * 60 * 60

	// ExifLayout is the timestamp layout used by EXIF date fields.
	ExifLayout = "2006:01:02 15:04:05"
)

// Epoch is the start of GPS week 0.
var Epoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// ErrInvalidTime is returned for negative or non-finite inputs.
var ErrInvalidTime = errors.New("invalid gps time")

// Time returns the UTC instant for a GPS week and seconds-of-week.
// Fractional seconds are truncated.
func Time(week int, sow float64) (time.Time, error) {
	if week < 0 {
		return time.Time{}, fmt.Errorf("%w: week %d", ErrInvalidTime, week)
	}
	if sow < 0 || math.IsNaN(sow) || math.IsInf(sow, 0) {
		return time.Time{}, fmt.Errorf("%w: seconds %v", ErrInvalidTime, sow)
	}

	secs := int64(week)*SecondsPerWeek + int64(sow) - LeapSeconds
	return Epoch.Add(time.Duration(secs) * time.Second), nil
}

// ToCalendarTimestamp formats a GPS week and seconds-of-week as an EXIF timestamp in UTC.
func ToCalendarTimestamp(week int, sow float64) (string, error) {
	t, err := Time(week, sow)
	if err != nil {
		return "", err
	}
	return t.Format(ExifLayout), nil
}

// FromTime converts a UTC instant to GPS week and seconds-of-week.
func FromTime(t time.Time) (int, float64) {
	d := t.UTC().Sub(Epoch) + LeapSeconds*time.Second
	week := int(d / (SecondsPerWeek * time.Second))
	rem := d - time.Duration(week)*SecondsPerWeek*time.Second
	return week, rem.Seconds()
}
