package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	// Bundled zone database so timezone validation does not depend on the host.
	_ "time/tzdata"
)

var (
	ErrEmptyTime   = errors.New("empty time")
	ErrInvalidTime = errors.New("invalid time of day")
	ErrInvalidDay  = errors.New("invalid weekday")
)

// ParseTimeOfDay parses a 24h "HH:MM" string into minutes since midnight.
func ParseTimeOfDay(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmptyTime
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: expected HH:MM", ErrInvalidTime)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: invalid hour", ErrInvalidTime)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: invalid minute", ErrInvalidTime)
	}
	return h*60 + m, nil
}

// NormalizeTimeOfDay parses s and returns it in canonical "HH:MM" form.
func NormalizeTimeOfDay(s string) (string, error) {
	mins, err := ParseTimeOfDay(s)
	if err != nil {
		return "", err
	}
	return FormatMinutes(mins), nil
}

// ValidTimeOfDay reports whether s is a canonical "HH:MM" value.
func ValidTimeOfDay(s string) bool {
	n, err := NormalizeTimeOfDay(s)
	return err == nil && n == s
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (string, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return "", errors.New("empty timezone")
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}

// ValidTimezone reports whether tz names a loadable IANA zone.
func ValidTimezone(tz string) bool {
	if tz == "" || strings.EqualFold(tz, "local") {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// FormatMinutes returns HH:MM for minutes since midnight (00:00..23:59).
func FormatMinutes(mins int) string {
	if mins < 0 {
		mins = 0
	}
	h := mins / 60 % 24
	m := mins % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}

// LocalizeTime formats t in the given timezone as "Mon 02 Jan 15:04".
func LocalizeTime(t time.Time, tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format("Mon 02 Jan 15:04"), nil
}

// Weekday numbering follows the backend: 0 = Monday .. 6 = Sunday.
var weekdays = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// WeekdayName returns the English name for a 0..6 day.
func WeekdayName(d int) string {
	if d < 0 || d > 6 {
		return "—"
	}
	return weekdays[d].String()
}

// WeekdayIndex maps a time.Weekday onto the backend numbering.
func WeekdayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// ParseWeekday accepts "0".."6" or an English day name or prefix ("mon", "Tuesday").
func ParseWeekday(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, ErrInvalidDay
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidDay, n)
		}
		return n, nil
	}
	if len(s) >= 3 {
		for i, d := range weekdays {
			if strings.HasPrefix(strings.ToLower(d.String()), s) {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrInvalidDay, s)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses backend ISO timestamps. Values without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// FormatAgo renders t relative to now: "Just now", "5m ago", "3h ago", "2d ago",
// or the date for anything older than a week.
func FormatAgo(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
	return t.Format("Jan 2, 2006")
}
