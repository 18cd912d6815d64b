package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)

	assert.Equal(t, "Asia/Kolkata", cfg.Booking.Timezone)
	assert.Equal(t, 14, cfg.Booking.CutoffHour)
	assert.Equal(t, 0, cfg.Booking.CutoffMinute)
	assert.Equal(t, 3, cfg.Booking.SlotParallelCap)
	assert.Equal(t, 2, cfg.Booking.DefaultDailyCap)
	assert.Equal(t, 60, cfg.Booking.MaxAdvanceDays)

	assert.True(t, cfg.Notify.Enabled)
	assert.Equal(t, 4, cfg.Notify.Workers)
	assert.Equal(t, 1, cfg.Notify.MaxRetries)
	assert.Equal(t, 8*time.Second, cfg.Notify.SendTimeout)
	assert.Equal(t, "console", cfg.Notify.Provider)

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BOOKING_CUTOFF_HOUR", "15")
	t.Setenv("SLOT_PARALLEL_CAP", "5")
	t.Setenv("TEACHER_DAILY_CAPS", "Megha=1,Vivek Sir=3")
	t.Setenv("TEACHER_EMAILS", "MEGHA=megha@example.com")
	t.Setenv("EMAIL_PROVIDER", "sendgrid")
	t.Setenv("BOOKING_CACHE_TTL", "2m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Booking.CutoffHour)
	assert.Equal(t, 5, cfg.Booking.SlotParallelCap)
	assert.Equal(t, map[string]int{"Megha": 1, "Vivek Sir": 3}, cfg.Booking.DailyCapOverrides)
	assert.Equal(t, map[string]string{"MEGHA": "megha@example.com"}, cfg.Notify.TeacherEmails)
	assert.Equal(t, "sendgrid", cfg.Notify.Provider)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 8*time.Second, parseDuration("", 8*time.Second))
	assert.Equal(t, 8*time.Second, parseDuration("not-a-duration", 8*time.Second))
	assert.Equal(t, 90*time.Second, parseDuration("90s", 8*time.Second))
}

func TestParsePairs(t *testing.T) {
	assert.Nil(t, parsePairs(""))
	assert.Nil(t, parsePairs(" , ,"))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, parsePairs("a=1, b=2"))
	assert.Equal(t, map[string]string{"a": "1"}, parsePairs("a=1,broken"))
}

func TestParseIntPairs(t *testing.T) {
	assert.Nil(t, parseIntPairs("a=x,b=0,c=-1"))
	assert.Equal(t, map[string]int{"Megha": 1}, parseIntPairs("Megha=1,bad=x"))
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a , b ,"))
}
