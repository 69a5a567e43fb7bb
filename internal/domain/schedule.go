package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Frequency controls how notifications of a category are batched.
type Frequency string

const (
	FrequencyInstant Frequency = "instant"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
)

// Frequencies lists the recognized values in display order.
func Frequencies() []Frequency {
	return []Frequency{FrequencyInstant, FrequencyDaily, FrequencyWeekly}
}

// Valid reports whether f is a recognized frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyInstant, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

func (f Frequency) Label() string {
	switch f {
	case FrequencyInstant:
		return "Instant"
	case FrequencyDaily:
		return "Daily digest"
	case FrequencyWeekly:
		return "Weekly digest"
	}
	return "Default"
}

// ParseFrequency accepts the wire name of a frequency.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown frequency %q", s)
	}
	return f, nil
}

// WeekdayUnset marks a schedule without a weekly day.
const WeekdayUnset = -1

// Schedule is a digest schedule. WeeklyDay counts from Monday (0) to Sunday (6).
// Empty strings and WeekdayUnset mean the field was absent.
type Schedule struct {
	Frequency Frequency
	TimeOfDay string
	Timezone  string
	WeeklyDay int
}

// Fallback schedule used when no layer provides one.
const (
	DefaultTimeOfDay = "09:00"
	DefaultTimezone  = "UTC"
	DefaultWeeklyDay = 1 // the backend's stored default, read as Tuesday
)

// DefaultSchedule returns the hard default: instant, 09:00 UTC, weekly day 1.
func DefaultSchedule() Schedule {
	return Schedule{
		Frequency: FrequencyInstant,
		TimeOfDay: DefaultTimeOfDay,
		Timezone:  DefaultTimezone,
		WeeklyDay: DefaultWeeklyDay,
	}
}

// EmptySchedule is a schedule with every field absent. Sent to the backend
// it clears a stored override.
func EmptySchedule() Schedule {
	return Schedule{WeeklyDay: WeekdayUnset}
}

// Usable reports whether s can stand in for a whole layer.
func (s *Schedule) Usable() bool {
	return s != nil && s.Frequency.Valid()
}

// Describe renders s for humans, e.g. "Weekly on Monday at 09:00 (UTC)".
func (s Schedule) Describe() string {
	switch s.Frequency {
	case FrequencyInstant:
		return "Instant"
	case FrequencyDaily:
		return fmt.Sprintf("Daily at %s (%s)", orDash(s.TimeOfDay), orDash(s.Timezone))
	case FrequencyWeekly:
		return fmt.Sprintf("Weekly on %s at %s (%s)", WeekdayName(s.WeeklyDay), orDash(s.TimeOfDay), orDash(s.Timezone))
	}
	return "Default"
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

type scheduleWire struct {
	Frequency *string `json:"frequency"`
	TimeOfDay *string `json:"time_of_day"`
	Timezone  *string `json:"timezone"`
	WeeklyDay *int    `json:"weekly_day"`
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// MarshalJSON writes absent fields as null.
func (s Schedule) MarshalJSON() ([]byte, error) {
	w := scheduleWire{
		Frequency: optString(string(s.Frequency)),
		TimeOfDay: optString(s.TimeOfDay),
		Timezone:  optString(s.Timezone),
	}
	if s.WeeklyDay != WeekdayUnset {
		d := s.WeeklyDay
		w.WeeklyDay = &d
	}
	return json.Marshal(w)
}

// UnmarshalJSON is lenient: fields of the wrong type decode as absent and a
// non-object decodes as an empty schedule.
func (s *Schedule) UnmarshalJSON(b []byte) error {
	*s = EmptySchedule()
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	s.Frequency = Frequency(rawString(raw["frequency"]))
	s.TimeOfDay = rawString(raw["time_of_day"])
	s.Timezone = rawString(raw["timezone"])
	s.WeeklyDay = rawInt(raw["weekly_day"], WeekdayUnset)
	return nil
}

func rawString(m json.RawMessage) string {
	var s string
	if len(m) == 0 || json.Unmarshal(m, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func rawInt(m json.RawMessage, def int) int {
	m = bytes.TrimSpace(m)
	if len(m) == 0 {
		return def
	}
	var f float64
	if err := json.Unmarshal(m, &f); err == nil {
		if f != math.Trunc(f) {
			return def
		}
		return int(f)
	}
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
	}
	return def
}

// NextDelivery returns when a digest following s would next go out after now.
// Instant schedules deliver immediately; invalid zones fall back to UTC.
func NextDelivery(now time.Time, s Schedule) time.Time {
	if s.Frequency != FrequencyDaily && s.Frequency != FrequencyWeekly {
		return now
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil || s.Timezone == "" {
		loc = time.UTC
	}
	mins, err := ParseTimeOfDay(s.TimeOfDay)
	if err != nil {
		mins, _ = ParseTimeOfDay(DefaultTimeOfDay)
	}

	local := now.In(loc)
	at := func(base time.Time) time.Time {
		return time.Date(base.Year(), base.Month(), base.Day(), mins/60, mins%60, 0, 0, loc)
	}

	next := at(local)
	if s.Frequency == FrequencyDaily {
		if !next.After(local) {
			next = at(local.AddDate(0, 0, 1))
		}
		return next.UTC()
	}

	day := s.WeeklyDay
	if day < 0 || day > 6 {
		day = DefaultWeeklyDay
	}
	ahead := (day - WeekdayIndex(local.Weekday()) + 7) % 7
	next = at(local.AddDate(0, 0, ahead))
	if !next.After(local) {
		next = at(local.AddDate(0, 0, ahead+7))
	}
	return next.UTC()
}
