package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinuteOfDay(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "midnight", input: "00:00", want: 0},
		{name: "single digit hour", input: "9:30", want: 570},
		{name: "padded", input: " 17:45 ", want: 1065},
		{name: "end of day", input: "24:00", want: 1440},
		{name: "past end of day", input: "24:01", wantErr: true},
		{name: "bad minutes", input: "10:60", wantErr: true},
		{name: "bad hour", input: "25:00", wantErr: true},
		{name: "no colon", input: "1000", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MinuteOfDay(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want, mustRoundTrip(t, got))
		})
	}
}

func mustRoundTrip(t *testing.T, minute int) int {
	t.Helper()
	back, err := MinuteOfDay(FormatMinute(minute))
	require.NoError(t, err)
	return back
}

func TestWeekday(t *testing.T) {
	testCases := []struct {
		input   string
		want    time.Weekday
		wantErr bool
	}{
		{input: "Tuesday", want: time.Tuesday},
		{input: "sat", want: time.Saturday},
		{input: "0", want: time.Sunday},
		{input: "6", want: time.Saturday},
		{input: "7", wantErr: true},
		{input: "someday", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := Weekday(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWindow(t *testing.T) {
	start, end, err := Window("2026-10-06T10:00:00+02:00", "2026-10-06T09:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 6, 8, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.UTC, start.Location())
	assert.Equal(t, time.Date(2026, 10, 6, 9, 0, 0, 0, time.UTC), end)

	_, _, err = Window("2026-10-06", "2026-10-06T09:00:00Z")
	assert.Error(t, err)
	_, _, err = Window("2026-10-06T09:00:00Z", "tomorrow")
	assert.Error(t, err)
}

func TestID(t *testing.T) {
	id, err := ID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"0", "-1", "abc", ""} {
		_, err := ID(bad)
		assert.Error(t, err, bad)
	}
}
