package http

import (
	"html/template"

	"picocompta/internal/core"
	"picocompta/internal/fiscal"
)

var templateFuncs = template.FuncMap{
	"euros": func(m core.Money) string { return m.String() },
}

type boardPage struct {
	Year       int
	PrevYear   int
	NextYear   int
	Today      string
	Onboarding bool
	Owner      string
	Frequency  string
	VATLiable  bool
	Liability  fiscal.LiabilityResult
	Rows       []boardRow
	Flash      string
	FlashError bool
}

type boardRow struct {
	Label  string
	Start  string
	End    string
	Urssaf boardCell
	Tva    boardCell
}

type boardCell struct {
	Kind        string
	Start       string
	End         string
	State       string
	Color       string
	TotalHT     core.Money
	Amount      core.Money // URSSAF charge or VAT due
	Count       int
	Declare     bool
	DeclareZero bool
}

func newBoardRow(r fiscal.Row) boardRow {
	row := boardRow{
		Label:  r.Label,
		Start:  r.Start.ISO(),
		End:    r.End.ISO(),
		Urssaf: newBoardCell(r.Urssaf, r),
		Tva:    newBoardCell(r.Tva, r),
	}
	if s := r.Urssaf.Urssaf; s != nil {
		row.Urssaf.TotalHT, row.Urssaf.Amount, row.Urssaf.Count = s.TotalHT, s.Charge, s.Count
	}
	if s := r.Tva.Tva; s != nil {
		row.Tva.TotalHT, row.Tva.Amount, row.Tva.Count = s.TotalHT, s.TotalVAT, s.Count
	}
	return row
}

func newBoardCell(c fiscal.Cell, r fiscal.Row) boardCell {
	return boardCell{
		Kind:        c.Kind.String(),
		Start:       r.Start.ISO(),
		End:         r.End.ISO(),
		State:       c.State.String(),
		Color:       StateColor(c.State),
		Declare:     c.Available.Declare,
		DeclareZero: c.Available.DeclareZero,
	}
}

func newBoardPage(resp boardResponse, pi core.PersonalInfo) boardPage {
	b := resp.Board
	page := boardPage{
		Year:      b.Year,
		PrevYear:  b.Year - 1,
		NextYear:  b.Year + 1,
		Today:     b.Today.French(),
		Owner:     pi.FullName(),
		Frequency: b.Frequency.String(),
		VATLiable: b.VATLiable,
		Liability: resp.Liability,
	}
	for _, r := range b.Rows {
		page.Rows = append(page.Rows, newBoardRow(r))
	}
	return page
}
