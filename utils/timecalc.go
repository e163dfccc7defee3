package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MinuteQuantum is the billing increment; RoundingFloor is the smallest
	// duration that is billed at all.
	MinuteQuantum = 15
	RoundingFloor = 5
)

var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseISO parses an ISO-8601 timestamp. A trailing Z means UTC; timestamps
// without an offset are read in loc.
func ParseISO(ts string, loc *time.Location) (time.Time, error) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, ts, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 timestamp %q", ts)
}

// ComputeMinutes returns whole minutes between start and end, never negative.
// Either side missing yields 0.
func ComputeMinutes(startIso string, endIso string, loc *time.Location) (int, error) {
	if strings.TrimSpace(startIso) == "" || strings.TrimSpace(endIso) == "" {
		return 0, nil
	}
	start, err := ParseISO(startIso, loc)
	if err != nil {
		return 0, err
	}
	end, err := ParseISO(endIso, loc)
	if err != nil {
		return 0, err
	}
	if end.Before(start) {
		return 0, nil
	}
	return int(end.Sub(start) / time.Minute), nil
}

// RoundMinutes applies the billing rule: under five minutes is free,
// anything else rounds up to the next quarter hour.
func RoundMinutes(mins int) int {
	if mins < RoundingFloor {
		return 0
	}
	return ((mins + MinuteQuantum - 1) / MinuteQuantum) * MinuteQuantum
}

// HoursString renders minutes as hours with two decimals, e.g. 90 -> "1.50".
func HoursString(mins int) string {
	return decimal.NewFromInt(int64(mins)).Div(decimal.NewFromInt(60)).StringFixed(2)
}
