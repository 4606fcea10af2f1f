package fiscal

import (
	"context"
	"fmt"

	"picocompta/internal/core"
)

// StateInput carries everything needed to derive the state of one period.
type StateInput struct {
	Kind        core.DeclarationKind
	Period      core.Period
	Today       core.Date
	VATLiable   bool
	StartDate   *core.Date // activity start for URSSAF, VAT liability start for TVA
	AllDeclared bool
}

// ResolveState applies the state precedence; the first matching rule wins.
func ResolveState(in StateInput) core.PeriodState {
	if in.Kind == core.KindTVA && !in.VATLiable {
		return core.StateInactive
	}
	if in.Period.Contains(in.Today) {
		return core.StateCurrent
	}
	if in.StartDate == nil || in.StartDate.IsZero() ||
		in.Period.Start.Before(*in.StartDate) ||
		in.Period.Start.After(in.Today) {
		return core.StateInactive
	}
	if in.AllDeclared {
		return core.StateDeclared
	}
	return core.StateUndeclared
}

// needsSummary reports whether the state depends on the declaration summary.
func needsSummary(in StateInput) bool {
	in.AllDeclared = false
	return ResolveState(in) == core.StateUndeclared
}

// Resolver derives period states from stored data.
type Resolver struct {
	store Reader
	agg   *Aggregator
}

func NewResolver(r Reader) *Resolver {
	return &Resolver{store: r, agg: NewAggregator(r)}
}

// Resolve returns the state of period p for kind as of today.
func (r *Resolver) Resolve(ctx context.Context, kind core.DeclarationKind, p core.Period, today core.Date) (core.PeriodState, error) {
	if !kind.IsValid() {
		return core.StateInactive, fmt.Errorf("resolve state: %w", core.ErrInvalidKind)
	}
	pi, err := r.store.LoadPersonalInfo(ctx)
	if err != nil {
		return core.StateInactive, fmt.Errorf("resolve state: %w", err)
	}
	in := stateInput(pi, kind, p, today)
	if !needsSummary(in) {
		return ResolveState(in), nil
	}
	sum, err := r.agg.Summarize(ctx, p)
	if err != nil {
		return core.StateInactive, err
	}
	return r.StateOf(pi, kind, sum, today), nil
}

// StateOf resolves the state of kind for an already computed summary.
func (r *Resolver) StateOf(pi core.PersonalInfo, kind core.DeclarationKind, sum PeriodSummary, today core.Date) core.PeriodState {
	in := stateInput(pi, kind, sum.Period, today)
	in.AllDeclared = sum.AllDeclared(kind)
	return ResolveState(in)
}

func stateInput(pi core.PersonalInfo, kind core.DeclarationKind, p core.Period, today core.Date) StateInput {
	return StateInput{
		Kind:      kind,
		Period:    p,
		Today:     today,
		VATLiable: pi.VATLiable,
		StartDate: pi.StartDateFor(kind),
	}
}
