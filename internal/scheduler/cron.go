package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/partsform/syncengine/internal/entity"
)

// validEveryNHours enumerates the only divisors of 24 the translation table
// accepts (spec.md §4.6).
var validEveryNHours = map[int]bool{2: true, 3: true, 4: true, 6: true, 8: true, 12: true}

var weekdayCron = map[time.Weekday]string{
	time.Sunday:    "0",
	time.Monday:    "1",
	time.Tuesday:   "2",
	time.Wednesday: "3",
	time.Thursday:  "4",
	time.Friday:    "5",
	time.Saturday:  "6",
}

// translateCron converts an Integration's Schedule into a robfig/cron/v3
// standard (5-field) expression, per spec.md §4.6's frequency table.
// Weekly defaults to Monday, monthly defaults to day 1. A non-UTC
// Timezone is emitted as a leading `CRON_TZ=<zone>` directive, which
// robfig/cron's standard parser resolves to a per-entry *time.Location
// (spec.md §4.6/§8.6 cron must fire in the schedule's own timezone, not
// the server's).
func translateCron(s entity.Schedule) (string, error) {
	expr, err := translateCronFields(s)
	if err != nil {
		return "", err
	}

	tz := strings.TrimSpace(s.Timezone)
	if tz == "" || tz == "UTC" {
		return expr, nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "", fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return fmt.Sprintf("CRON_TZ=%s %s", tz, expr), nil
}

// translateCronFields builds the bare 5-field expression, before any
// CRON_TZ= prefix is applied.
func translateCronFields(s entity.Schedule) (string, error) {
	switch s.Frequency {
	case entity.FrequencyHourly:
		return "0 * * * *", nil

	case entity.FrequencyEveryNHours:
		if !validEveryNHours[s.EveryNHours] {
			return "", fmt.Errorf("everyNhours must be one of 2,3,4,6,8,12, got %d", s.EveryNHours)
		}
		return fmt.Sprintf("0 */%d * * *", s.EveryNHours), nil

	case entity.FrequencyDaily:
		hour, minute, err := parseTimeOfDay(s.TimeOfDay)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d * * *", minute, hour), nil

	case entity.FrequencyWeekly:
		hour, minute, err := parseTimeOfDay(s.TimeOfDay)
		if err != nil {
			return "", err
		}
		days := s.DaysOfWeek
		if len(days) == 0 {
			days = []time.Weekday{time.Monday}
		}
		fields := make([]string, len(days))
		for i, d := range days {
			cronDay, ok := weekdayCron[d]
			if !ok {
				return "", fmt.Errorf("invalid weekday %v", d)
			}
			fields[i] = cronDay
		}
		return fmt.Sprintf("%d %d * * %s", minute, hour, strings.Join(fields, ",")), nil

	case entity.FrequencyMonthly:
		hour, minute, err := parseTimeOfDay(s.TimeOfDay)
		if err != nil {
			return "", err
		}
		dayOfMonth := s.DayOfMonth
		if dayOfMonth == 0 {
			dayOfMonth = 1
		}
		if dayOfMonth < 1 || dayOfMonth > 31 {
			return "", fmt.Errorf("dayOfMonth must be 1..31, got %d", dayOfMonth)
		}
		return fmt.Sprintf("%d %d %d * *", minute, hour, dayOfMonth), nil

	default:
		return "", fmt.Errorf("unknown schedule frequency %q", s.Frequency)
	}
}

// ValidateSchedule reports whether s translates to a valid cron
// expression, without registering anything. Used by the control-plane
// API to validate a create/update request before it ever reaches
// Schedule.
func ValidateSchedule(s entity.Schedule) error {
	_, err := translateCron(s)
	return err
}

// parseTimeOfDay parses "HH:MM" (24-hour), defaulting to midnight when empty.
func parseTimeOfDay(raw string) (hour, minute int, err error) {
	if raw == "" {
		return 0, 0, nil
	}
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("timeOfDay must be HH:MM, got %q", raw)
	}
	if _, err := fmt.Sscanf(parts[0], "%d", &hour); err != nil {
		return 0, 0, fmt.Errorf("timeOfDay hour invalid: %w", err)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &minute); err != nil {
		return 0, 0, fmt.Errorf("timeOfDay minute invalid: %w", err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("timeOfDay out of range: %q", raw)
	}
	return hour, minute, nil
}
