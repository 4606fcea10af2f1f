package fiscal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picocompta/internal/core"
)

func TestResolveState(t *testing.T) {
	q2 := core.Period{Label: "2ème Trimestre", Start: core.NewDate(2024, 4, 1), End: core.NewDate(2024, 6, 30)}
	start := dateRef(2024, 1, 1)

	tests := []struct {
		name string
		in   StateInput
		want core.PeriodState
	}{
		{
			name: "tva not liable beats everything",
			in:   StateInput{Kind: core.KindTVA, Period: q2, Today: core.NewDate(2024, 5, 1), StartDate: start, AllDeclared: true},
			want: core.StateInactive,
		},
		{
			name: "tva not liable on a past undeclared period",
			in:   StateInput{Kind: core.KindTVA, Period: q2, Today: core.NewDate(2024, 9, 1), StartDate: start},
			want: core.StateInactive,
		},
		{
			name: "current period",
			in:   StateInput{Kind: core.KindURSSAF, Period: q2, Today: core.NewDate(2024, 6, 30), StartDate: start},
			want: core.StateCurrent,
		},
		{
			name: "current wins over missing start date",
			in:   StateInput{Kind: core.KindURSSAF, Period: q2, Today: core.NewDate(2024, 4, 1)},
			want: core.StateCurrent,
		},
		{
			name: "no start date",
			in:   StateInput{Kind: core.KindURSSAF, Period: q2, Today: core.NewDate(2024, 9, 1), AllDeclared: true},
			want: core.StateInactive,
		},
		{
			name: "period before activity start",
			in:   StateInput{Kind: core.KindURSSAF, Period: q2, Today: core.NewDate(2024, 9, 1), StartDate: dateRef(2024, 4, 2)},
			want: core.StateInactive,
		},
		{
			name: "period starting on activity start",
			in:   StateInput{Kind: core.KindURSSAF, Period: q2, Today: core.NewDate(2024, 9, 1), StartDate: dateRef(2024, 4, 1)},
			want: core.StateUndeclared,
		},
		{
			name: "future period",
			in:   StateInput{Kind: core.KindURSSAF, Period: q2, Today: core.NewDate(2024, 2, 1), StartDate: start},
			want: core.StateInactive,
		},
		{
			name: "declared",
			in:   StateInput{Kind: core.KindURSSAF, Period: q2, Today: core.NewDate(2024, 9, 1), StartDate: start, AllDeclared: true},
			want: core.StateDeclared,
		},
		{
			name: "tva liable declared",
			in:   StateInput{Kind: core.KindTVA, Period: q2, Today: core.NewDate(2024, 9, 1), VATLiable: true, StartDate: start, AllDeclared: true},
			want: core.StateDeclared,
		},
		{
			name: "tva liable undeclared",
			in:   StateInput{Kind: core.KindTVA, Period: q2, Today: core.NewDate(2024, 9, 1), VATLiable: true, StartDate: start},
			want: core.StateUndeclared,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveState(tt.in); got != tt.want {
				t.Errorf("ResolveState() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolverUsesStoredData(t *testing.T) {
	ctx := context.Background()
	pi := quarterlyProfile()
	pi.VATLiable = true
	pi.VATLiabilityStartDate = dateRef(2024, 4, 1)
	f := newFixture(t, pi)
	r := NewResolver(f.store)
	today := core.NewDate(2024, 8, 15)

	// Q1 URSSAF: no invoice, no zero declaration.
	state, err := r.Resolve(ctx, core.KindURSSAF, firstQuarter2024, today)
	require.NoError(t, err)
	assert.Equal(t, core.StateUndeclared, state)

	// Q1 TVA: before the liability start.
	state, err = r.Resolve(ctx, core.KindTVA, firstQuarter2024, today)
	require.NoError(t, err)
	assert.Equal(t, core.StateInactive, state)

	// Q2 TVA: empty period counts as declared.
	q2 := GeneratePeriods(2024, core.Quarterly)[1]
	state, err = r.Resolve(ctx, core.KindTVA, q2, today)
	require.NoError(t, err)
	assert.Equal(t, core.StateDeclared, state)

	f.invoice(core.ActivityService, core.EUR(100), core.NewDate(2024, 5, 2), paid(), withVAT(20))
	state, err = r.Resolve(ctx, core.KindTVA, q2, today)
	require.NoError(t, err)
	assert.Equal(t, core.StateUndeclared, state)

	q3 := GeneratePeriods(2024, core.Quarterly)[2]
	state, err = r.Resolve(ctx, core.KindURSSAF, q3, today)
	require.NoError(t, err)
	assert.Equal(t, core.StateCurrent, state)
}
