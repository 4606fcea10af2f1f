// Package fiscal computes declaration periods, URSSAF and TVA summaries,
// period states and the VAT liability threshold ratchet.
package fiscal

import "picocompta/internal/core"

var quarterLabels = [4]string{
	"1er Trimestre",
	"2ème Trimestre",
	"3ème Trimestre",
	"4ème Trimestre",
}

var monthLabels = [12]string{
	"Janvier", "Février", "Mars", "Avril", "Mai", "Juin",
	"Juillet", "Août", "Septembre", "Octobre", "Novembre", "Décembre",
}

// Years outside [MinYear, MaxYear] are rejected: within that range the
// year%4 leap rule matches the Gregorian calendar.
const (
	MinYear = 1901
	MaxYear = 2099
)

// SupportedYear reports whether periods can be generated for year.
func SupportedYear(year int) bool {
	return year >= MinYear && year <= MaxYear
}

// monthLength uses the year%4 leap rule: stored periods were generated with
// it and must keep matching.
func monthLength(year, month int) int {
	switch month {
	case 2:
		if year%4 == 0 {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	}
	return 31
}

// GeneratePeriods returns the ordered declaration periods of year. It returns
// nil for an unsupported frequency or a year outside [MinYear, MaxYear].
func GeneratePeriods(year int, f core.Frequency) []core.Period {
	if !SupportedYear(year) {
		return nil
	}
	switch f {
	case core.Quarterly:
		out := make([]core.Period, 0, 4)
		for q := 0; q < 4; q++ {
			first, last := q*3+1, q*3+3
			out = append(out, core.Period{
				Label: quarterLabels[q],
				Start: core.NewDate(year, first, 1),
				End:   core.NewDate(year, last, monthLength(year, last)),
			})
		}
		return out
	case core.Monthly:
		out := make([]core.Period, 0, 12)
		for m := 1; m <= 12; m++ {
			out = append(out, core.Period{
				Label: monthLabels[m-1],
				Start: core.NewDate(year, m, 1),
				End:   core.NewDate(year, m, monthLength(year, m)),
			})
		}
		return out
	}
	return nil
}

// PeriodContaining returns the period of frequency f that contains day.
func PeriodContaining(day core.Date, f core.Frequency) (core.Period, bool) {
	for _, p := range GeneratePeriods(day.Year(), f) {
		if p.Contains(day) {
			return p, true
		}
	}
	return core.Period{}, false
}

// LastEndedPeriod returns the most recent period that ended strictly before today.
func LastEndedPeriod(today core.Date, f core.Frequency) (core.Period, bool) {
	current, ok := PeriodContaining(today, f)
	if !ok {
		return core.Period{}, false
	}
	return PeriodContaining(current.Start.AddDays(-1), f)
}

// ReminderPeriod is the period checked for pending declarations on the home
// screen: the current quarter for quarterly filers, the previous month for
// monthly filers.
func ReminderPeriod(today core.Date, f core.Frequency) (core.Period, bool) {
	if f == core.Monthly {
		return LastEndedPeriod(today, f)
	}
	return PeriodContaining(today, f)
}
