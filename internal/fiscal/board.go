package fiscal

import (
	"context"
	"fmt"

	"picocompta/internal/core"
)

// Cell is the state of one declaration kind for one period.
type Cell struct {
	Kind      core.DeclarationKind `json:"kind"`
	State     core.PeriodState     `json:"state"`
	Available Availability         `json:"available"`
	Urssaf    *core.UrssafSummary  `json:"urssaf,omitempty"`
	Tva       *core.TvaSummary     `json:"tva,omitempty"`
}

type Row struct {
	Period core.Period `json:"-"`
	Label  string      `json:"label"`
	Start  core.Date   `json:"start"`
	End    core.Date   `json:"end"`
	Urssaf Cell        `json:"urssaf"`
	Tva    Cell        `json:"tva"`
}

// Board is the yearly declaration table.
type Board struct {
	Year      int            `json:"year"`
	Frequency core.Frequency `json:"frequency"`
	VATLiable bool           `json:"vat_liable"`
	Today     core.Date      `json:"today"`
	Rows      []Row          `json:"rows"`
}

// Cell returns the cell of kind in row.
func (r Row) Cell(kind core.DeclarationKind) Cell {
	if kind == core.KindTVA {
		return r.Tva
	}
	return r.Urssaf
}

type BoardBuilder struct {
	store    Reader
	agg      *Aggregator
	resolver *Resolver
}

func NewBoardBuilder(r Reader) *BoardBuilder {
	res := NewResolver(r)
	return &BoardBuilder{store: r, agg: res.agg, resolver: res}
}

// Build computes summaries and states of every period of year. Commands are
// only offered on cells that are not inactive.
func (b *BoardBuilder) Build(ctx context.Context, year int, today core.Date) (Board, error) {
	pi, err := b.store.LoadPersonalInfo(ctx)
	if err != nil {
		return Board{}, fmt.Errorf("build board: %w", err)
	}
	board := Board{
		Year:      year,
		Frequency: pi.DeclarationFrequency,
		VATLiable: pi.VATLiable,
		Today:     today,
	}
	for _, p := range GeneratePeriods(year, pi.DeclarationFrequency) {
		sum, err := b.agg.Summarize(ctx, p)
		if err != nil {
			return Board{}, fmt.Errorf("build board: %w", err)
		}
		gate := Gate(p, today, sum.Count)

		row := Row{Period: p, Label: p.Label, Start: p.Start, End: p.End}
		row.Urssaf = b.cell(pi, core.KindURSSAF, sum, today, gate)
		row.Urssaf.Urssaf = &sum.Urssaf
		row.Tva = b.cell(pi, core.KindTVA, sum, today, gate)
		row.Tva.Tva = &sum.Tva
		board.Rows = append(board.Rows, row)
	}
	return board, nil
}

func (b *BoardBuilder) cell(pi core.PersonalInfo, kind core.DeclarationKind, sum PeriodSummary, today core.Date, gate Availability) Cell {
	state := b.resolver.StateOf(pi, kind, sum, today)
	if state == core.StateInactive {
		gate.Declare, gate.DeclareZero = false, false
	}
	return Cell{Kind: kind, State: state, Available: gate}
}

// FindPeriod returns the generated period of the profile frequency that
// exactly matches start and end.
func (b *BoardBuilder) FindPeriod(ctx context.Context, start, end core.Date) (core.Period, error) {
	pi, err := b.store.LoadPersonalInfo(ctx)
	if err != nil {
		return core.Period{}, fmt.Errorf("find period: %w", err)
	}
	for _, p := range GeneratePeriods(start.Year(), pi.DeclarationFrequency) {
		if p.Start.Equal(start) && p.End.Equal(end) {
			return p, nil
		}
	}
	return core.Period{}, core.NewValidationError("period", fmt.Sprintf("%s → %s is not a %s declaration period", start.ISO(), end.ISO(), pi.DeclarationFrequency))
}
