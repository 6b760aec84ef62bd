package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestParseVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		raw    string
		kind   Kind
		preset Preset
	}{
		{name: "daily", raw: "daily", kind: KindPreset, preset: PresetDaily},
		{name: "weekly upper", raw: "Weekly", kind: KindPreset, preset: PresetWeekly},
		{name: "monthly", raw: "monthly", kind: KindPreset, preset: PresetMonthly},
		{name: "asap", raw: "asap", kind: KindPreset, preset: PresetASAP},
		{name: "next-heartbeat", raw: "next-heartbeat", kind: KindPreset, preset: PresetNextHeartbeat},
		{name: "cron wildcard", raw: "* * * * *", kind: KindCron},
		{name: "cron business hours", raw: "0 9 * * 1-5", kind: KindCron},
		{name: "cron step", raw: "*/15 * * * *", kind: KindCron},
		{name: "cron list", raw: "0,30 8,18 * * *", kind: KindCron},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind())
			assert.Equal(t, tt.preset, got.Preset())
			assert.True(t, got.Valid())
		})
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "whitespace", raw: "   "},
		{name: "random word", raw: "soonish"},
		{name: "four fields", raw: "* * * *"},
		{name: "six fields", raw: "* * * * * *"},
		{name: "minute out of range", raw: "60 * * * *"},
		{name: "hour out of range", raw: "0 24 * * *"},
		{name: "dom zero", raw: "0 0 0 * *"},
		{name: "month out of range", raw: "0 0 * 13 *"},
		{name: "dow seven", raw: "0 0 * * 7"},
		{name: "descending range", raw: "30-10 * * * *"},
		{name: "zero step", raw: "*/0 * * * *"},
		{name: "garbage value", raw: "a * * * *"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestNextPresets(t *testing.T) {
	t.Parallel()
	utc := time.UTC

	t.Run("daily is next utc midnight", func(t *testing.T) {
		t.Parallel()
		s, err := Parse("daily")
		require.NoError(t, err)
		now := time.Date(2024, 3, 14, 10, 0, 0, 0, utc)
		next, ok := s.Next(now, utc)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, utc), next)
	})

	t.Run("daily respects timezone", func(t *testing.T) {
		t.Parallel()
		jkt := mustLoc(t, "Asia/Jakarta")
		s, err := Parse("daily")
		require.NoError(t, err)
		// 2024-03-14 20:00 UTC is already 2024-03-15 03:00 in Jakarta.
		now := time.Date(2024, 3, 14, 20, 0, 0, 0, time.UTC)
		next, ok := s.Next(now, jkt)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, jkt), next.In(jkt))
	})

	t.Run("weekly adds seven days", func(t *testing.T) {
		t.Parallel()
		s, err := Parse("weekly")
		require.NoError(t, err)
		now := time.Date(2024, 3, 14, 10, 0, 0, 0, utc)
		next, ok := s.Next(now, utc)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 3, 21, 0, 0, 0, 0, utc), next)
	})

	t.Run("monthly lands on the first", func(t *testing.T) {
		t.Parallel()
		s, err := Parse("monthly")
		require.NoError(t, err)
		now := time.Date(2024, 1, 31, 23, 30, 0, 0, utc)
		next, ok := s.Next(now, utc)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, utc), next)
	})

	t.Run("monthly rolls the year", func(t *testing.T) {
		t.Parallel()
		s, err := Parse("monthly")
		require.NoError(t, err)
		now := time.Date(2024, 12, 15, 12, 0, 0, 0, utc)
		next, ok := s.Next(now, utc)
		require.True(t, ok)
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, utc), next)
	})

	t.Run("asap returns now", func(t *testing.T) {
		t.Parallel()
		s, err := Parse("asap")
		require.NoError(t, err)
		now := time.Date(2024, 3, 14, 10, 0, 0, 0, utc)
		next, ok := s.Next(now, utc)
		require.True(t, ok)
		assert.Equal(t, now, next)
		assert.True(t, s.Immediate())
	})
}

func TestNextCron(t *testing.T) {
	t.Parallel()
	utc := time.UTC

	t.Run("weekday morning skips to friday", func(t *testing.T) {
		t.Parallel()
		s, err := Parse("0 9 * * 1-5")
		require.NoError(t, err)
		// 2024-03-14 is a Thursday; 10:00 is past today's 09:00.
		now := time.Date(2024, 3, 14, 10, 0, 0, 0, utc)
		next, ok := s.Next(now, utc)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 3, 15, 9, 0, 0, 0, utc), next)
	})

	t.Run("weekday morning skips the weekend", func(t *testing.T) {
		t.Parallel()
		s, err := Parse("0 9 * * 1-5")
		require.NoError(t, err)
		// 2024-03-15 is Friday; after 09:00 the next run is Monday.
		now := time.Date(2024, 3, 15, 9, 30, 0, 0, utc)
		next, ok := s.Next(now, utc)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 3, 18, 9, 0, 0, 0, utc), next)
	})

	t.Run("quarter hour step", func(t *testing.T) {
		t.Parallel()
		s, err := Parse("*/15 * * * *")
		require.NoError(t, err)
		now := time.Date(2024, 3, 14, 0, 7, 0, 0, utc)
		next, ok := s.Next(now, utc)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 3, 14, 0, 15, 0, 0, utc), next)
	})

	t.Run("exact boundary is strictly after", func(t *testing.T) {
		t.Parallel()
		s, err := Parse("*/15 * * * *")
		require.NoError(t, err)
		now := time.Date(2024, 3, 14, 0, 15, 0, 0, utc)
		next, ok := s.Next(now, utc)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 3, 14, 0, 30, 0, 0, utc), next)
	})

	t.Run("dom and dow both constrain", func(t *testing.T) {
		t.Parallel()
		// Midnight on a 13th that is also a Friday.
		s, err := Parse("0 0 13 * 5")
		require.NoError(t, err)
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, utc)
		next, ok := s.Next(now, utc)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 9, 13, 0, 0, 0, 0, utc), next)
		assert.Equal(t, time.Friday, next.Weekday())
	})

	t.Run("unreachable date exhausts the scan", func(t *testing.T) {
		t.Parallel()
		// Feb 30 never exists.
		s, err := Parse("0 0 30 2 *")
		require.NoError(t, err)
		_, ok := s.Next(time.Date(2024, 1, 1, 0, 0, 0, 0, utc), utc)
		assert.False(t, ok)
	})

	t.Run("cron evaluates in location wall clock", func(t *testing.T) {
		t.Parallel()
		jkt := mustLoc(t, "Asia/Jakarta")
		s, err := Parse("0 9 * * *")
		require.NoError(t, err)
		now := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
		next, ok := s.Next(now, jkt)
		require.True(t, ok)
		// 09:00 Jakarta is 02:00 UTC.
		assert.Equal(t, time.Date(2024, 3, 14, 2, 0, 0, 0, time.UTC), next.UTC())
	})
}

func TestSpecTextRoundTrip(t *testing.T) {
	t.Parallel()

	type doc struct {
		Schedule *Spec `json:"schedule"`
	}

	t.Run("round trip preserves raw", func(t *testing.T) {
		t.Parallel()
		s, err := Parse("*/15 * * * *")
		require.NoError(t, err)
		b, err := json.Marshal(doc{Schedule: s})
		require.NoError(t, err)
		assert.JSONEq(t, `{"schedule":"*/15 * * * *"}`, string(b))

		var got doc
		require.NoError(t, json.Unmarshal(b, &got))
		require.NotNil(t, got.Schedule)
		assert.Equal(t, KindCron, got.Schedule.Kind())
		assert.Equal(t, "*/15 * * * *", got.Schedule.String())
	})

	t.Run("unparseable stored schedule loads as invalid", func(t *testing.T) {
		t.Parallel()
		var got doc
		require.NoError(t, json.Unmarshal([]byte(`{"schedule":"every fortnight"}`), &got))
		require.NotNil(t, got.Schedule)
		assert.Equal(t, KindInvalid, got.Schedule.Kind())
		assert.False(t, got.Schedule.Valid())
		assert.Equal(t, "every fortnight", got.Schedule.String())

		_, ok := got.Schedule.Next(time.Now(), time.UTC)
		assert.False(t, ok)
	})
}
