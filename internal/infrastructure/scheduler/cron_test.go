package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCron_Invalid(t *testing.T) {
	for _, expr := range []string{
		"",
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
	} {
		_, err := ParseCron(expr)
		assert.Error(t, err, expr)
	}
}

func TestCronSchedule_Next(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 7, 30, 0, time.UTC) // Friday

	cases := []struct {
		expr string
		want time.Time
	}{
		{"*/15 * * * *", time.Date(2024, 3, 1, 12, 15, 0, 0, time.UTC)},
		{"30 3 * * *", time.Date(2024, 3, 2, 3, 30, 0, 0, time.UTC)},
		{"0 0 * * 1", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"0,30 9-17 * * *", time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)},
		{"0 0 1 1 *", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		s, err := ParseCron(tc.expr)
		require.NoError(t, err, tc.expr)
		assert.Equal(t, tc.want, s.Next(at), tc.expr)
		assert.Equal(t, tc.expr, s.String())
	}
}

func TestCronSchedule_NextIsStrictlyAfter(t *testing.T) {
	s := MustParseCron("* * * * *")
	at := time.Date(2024, 3, 1, 12, 7, 0, 0, time.UTC)
	assert.Equal(t, at.Add(time.Minute), s.Next(at))
}

func TestCronSchedule_NeverMatches(t *testing.T) {
	s := MustParseCron("0 0 31 2 *")
	assert.True(t, s.Next(time.Now()).IsZero())
}

func TestMustParseCron_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParseCron("bad") })
}
