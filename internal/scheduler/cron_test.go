package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsform/syncengine/internal/entity"
)

func TestTranslateCronHourly(t *testing.T) {
	expr, err := translateCron(entity.Schedule{Frequency: entity.FrequencyHourly})
	require.NoError(t, err)
	assert.Equal(t, "0 * * * *", expr)
}

func TestTranslateCronEveryNHours(t *testing.T) {
	expr, err := translateCron(entity.Schedule{Frequency: entity.FrequencyEveryNHours, EveryNHours: 6})
	require.NoError(t, err)
	assert.Equal(t, "0 */6 * * *", expr)

	_, err = translateCron(entity.Schedule{Frequency: entity.FrequencyEveryNHours, EveryNHours: 5})
	assert.Error(t, err)
}

func TestTranslateCronDaily(t *testing.T) {
	expr, err := translateCron(entity.Schedule{Frequency: entity.FrequencyDaily, TimeOfDay: "14:30"})
	require.NoError(t, err)
	assert.Equal(t, "30 14 * * *", expr)

	expr, err = translateCron(entity.Schedule{Frequency: entity.FrequencyDaily})
	require.NoError(t, err)
	assert.Equal(t, "0 0 * * *", expr)

	_, err = translateCron(entity.Schedule{Frequency: entity.FrequencyDaily, TimeOfDay: "bad"})
	assert.Error(t, err)
}

func TestTranslateCronWeeklyDefaultsToMonday(t *testing.T) {
	expr, err := translateCron(entity.Schedule{Frequency: entity.FrequencyWeekly, TimeOfDay: "09:00"})
	require.NoError(t, err)
	assert.Equal(t, "0 9 * * 1", expr)
}

func TestTranslateCronWeeklyMultipleDays(t *testing.T) {
	expr, err := translateCron(entity.Schedule{
		Frequency:  entity.FrequencyWeekly,
		TimeOfDay:  "09:00",
		DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
	})
	require.NoError(t, err)
	assert.Equal(t, "0 9 * * 1,3,5", expr)
}

func TestTranslateCronMonthlyDefaultsToFirst(t *testing.T) {
	expr, err := translateCron(entity.Schedule{Frequency: entity.FrequencyMonthly, TimeOfDay: "00:15"})
	require.NoError(t, err)
	assert.Equal(t, "15 0 1 * *", expr)

	_, err = translateCron(entity.Schedule{Frequency: entity.FrequencyMonthly, DayOfMonth: 32})
	assert.Error(t, err)
}

func TestTranslateCronUnknownFrequency(t *testing.T) {
	_, err := translateCron(entity.Schedule{Frequency: entity.Frequency("never")})
	assert.Error(t, err)
}

func TestTranslateCronAppliesTimezonePrefix(t *testing.T) {
	expr, err := translateCron(entity.Schedule{Frequency: entity.FrequencyHourly, Timezone: "America/Chicago"})
	require.NoError(t, err)
	assert.Equal(t, "CRON_TZ=America/Chicago 0 * * * *", expr)
}

func TestTranslateCronUTCTimezoneOmitsPrefix(t *testing.T) {
	expr, err := translateCron(entity.Schedule{Frequency: entity.FrequencyHourly, Timezone: "UTC"})
	require.NoError(t, err)
	assert.Equal(t, "0 * * * *", expr)
}

func TestTranslateCronRejectsUnknownTimezone(t *testing.T) {
	_, err := translateCron(entity.Schedule{Frequency: entity.FrequencyHourly, Timezone: "Not/AZone"})
	assert.Error(t, err)
}

func TestValidateScheduleMirrorsTranslateCron(t *testing.T) {
	assert.NoError(t, ValidateSchedule(entity.Schedule{Frequency: entity.FrequencyHourly}))
	assert.Error(t, ValidateSchedule(entity.Schedule{Frequency: entity.FrequencyEveryNHours, EveryNHours: 1}))
}
