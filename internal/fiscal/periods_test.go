package fiscal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picocompta/internal/core"
)

func assertPartition(t *testing.T, year int, periods []core.Period) {
	t.Helper()
	require.NotEmpty(t, periods)
	assert.True(t, periods[0].Start.Equal(core.NewDate(year, 1, 1)), "first period starts on Jan 1")
	assert.True(t, periods[len(periods)-1].End.Equal(core.NewDate(year, 12, 31)), "last period ends on Dec 31")
	for i := 1; i < len(periods); i++ {
		assert.True(t, periods[i-1].End.AddDays(1).Equal(periods[i].Start),
			"gap or overlap between %s and %s", periods[i-1].Label, periods[i].Label)
	}
}

func TestGeneratePeriodsPartitionsYear(t *testing.T) {
	for year := 2020; year <= 2031; year++ {
		q := GeneratePeriods(year, core.Quarterly)
		require.Len(t, q, 4)
		assertPartition(t, year, q)

		m := GeneratePeriods(year, core.Monthly)
		require.Len(t, m, 12)
		assertPartition(t, year, m)

		febDays := 28
		if year%4 == 0 {
			febDays = 29
		}
		assert.Equal(t, febDays, m[1].End.Day(), "february length in %d", year)
	}
}

func TestGeneratePeriodsYearBounds(t *testing.T) {
	for _, year := range []int{MinYear, 1904, 2000, 2096, MaxYear} {
		m := GeneratePeriods(year, core.Monthly)
		require.Len(t, m, 12, "year %d", year)
		assertPartition(t, year, m)
		assert.Equal(t, 2, int(m[1].End.Month()), "february of %d ends in february", year)
		assertPartition(t, year, GeneratePeriods(year, core.Quarterly))
	}

	for _, year := range []int{1900, 2100, 2200} {
		assert.Nil(t, GeneratePeriods(year, core.Monthly), "year %d", year)
		assert.Nil(t, GeneratePeriods(year, core.Quarterly), "year %d", year)
		_, ok := PeriodContaining(core.NewDate(year, 3, 1), core.Monthly)
		assert.False(t, ok, "year %d", year)
	}
}

func TestGeneratePeriodsLabels(t *testing.T) {
	q := GeneratePeriods(2024, core.Quarterly)
	assert.Equal(t, "1er Trimestre", q[0].Label)
	assert.Equal(t, "2ème Trimestre", q[1].Label)
	assert.Equal(t, "4ème Trimestre", q[3].Label)
	assert.True(t, q[1].Start.Equal(core.NewDate(2024, 4, 1)))
	assert.True(t, q[1].End.Equal(core.NewDate(2024, 6, 30)))

	m := GeneratePeriods(2024, core.Monthly)
	assert.Equal(t, "Janvier", m[0].Label)
	assert.Equal(t, "Août", m[7].Label)
	assert.Equal(t, "Décembre", m[11].Label)

	assert.Nil(t, GeneratePeriods(2024, core.Frequency(2)))
}

func TestPeriodHelpers(t *testing.T) {
	tests := []struct {
		name      string
		today     core.Date
		freq      core.Frequency
		contains  string
		lastEnded string
		reminder  string
	}{
		{"quarterly mid-year", core.NewDate(2024, 5, 10), core.Quarterly, "2ème Trimestre", "1er Trimestre", "2ème Trimestre"},
		{"monthly", core.NewDate(2024, 5, 10), core.Monthly, "Mai", "Avril", "Avril"},
		{"monthly january", core.NewDate(2024, 1, 3), core.Monthly, "Janvier", "Décembre", "Décembre"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := PeriodContaining(tt.today, tt.freq)
			require.True(t, ok)
			assert.Equal(t, tt.contains, p.Label)

			last, ok := LastEndedPeriod(tt.today, tt.freq)
			require.True(t, ok)
			assert.Equal(t, tt.lastEnded, last.Label)
			assert.True(t, last.Ended(tt.today))

			rem, ok := ReminderPeriod(tt.today, tt.freq)
			require.True(t, ok)
			assert.Equal(t, tt.reminder, rem.Label)
		})
	}

	last, _ := LastEndedPeriod(core.NewDate(2024, 1, 3), core.Monthly)
	assert.Equal(t, 2023, last.Start.Year())
}
