package invoicepdf

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	pdfcore "github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// Renderer turns a Document into PDF bytes.
type Renderer interface {
	Render(d Document) ([]byte, error)
}

// MarotoRenderer renders A4 invoices with maroto.
type MarotoRenderer struct{}

func NewRenderer() *MarotoRenderer {
	return &MarotoRenderer{}
}

var (
	normal  = props.Text{Size: 10}
	bold    = props.Text{Size: 10, Style: fontstyle.Bold}
	right   = props.Text{Size: 10, Align: align.Right}
	heading = props.Text{Size: 16, Style: fontstyle.Bold}
	title   = props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Center}
	center  = props.Text{Size: 10, Align: align.Center}
)

func (MarotoRenderer) Render(d Document) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(20).
		WithRightMargin(20).
		WithTopMargin(20).
		Build()
	m := maroto.New(cfg)

	m.AddRows(textRow(10, d.IssuerName, heading))
	m.AddRows(textRow(5, d.IssuerAddress, normal))
	for _, c := range d.IssuerContact {
		m.AddRows(textRow(5, c, normal))
	}
	for _, f := range d.IssuerIDs {
		m.AddRows(fieldRow(f))
	}

	m.AddRows(row.New(30))
	m.AddRows(textRow(10, d.Title, title))
	m.AddRows(textRow(6, d.Date, center))
	m.AddRows(row.New(6))

	m.AddRows(textRow(5, "FACTURER À :", props.Text{Size: 9}))
	m.AddRows(textRow(5, d.ClientName, bold))
	for _, l := range d.ClientLines {
		m.AddRows(textRow(5, l, normal))
	}
	m.AddRows(row.New(6))

	m.AddRows(textRow(7, "Objet :", props.Text{Size: 12, Style: fontstyle.Bold}))
	m.AddRows(textRow(5, d.Object, normal))
	m.AddRows(row.New(10))

	for i, a := range d.Amounts {
		if i == len(d.Amounts)-1 {
			m.AddRows(row.New(2).Add(line.NewCol(8)))
		}
		labelStyle, valueStyle := normal, right
		if a.Bold {
			labelStyle = bold
			valueStyle = props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}
		}
		m.AddRows(row.New(7).Add(
			text.NewCol(5, a.Label, labelStyle),
			text.NewCol(3, a.Value, valueStyle),
		))
	}
	if d.VATMention != "" {
		m.AddRows(row.New(4))
		m.AddRows(textRow(5, d.VATMention, normal))
	}

	m.AddRows(row.New(12))
	m.AddRows(textRow(6, "Paiement à réception :", bold))
	for _, f := range d.Payment {
		m.AddRows(textRow(5, fmt.Sprintf("%s : %s", f.Label, f.Value), normal))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func textRow(height float64, value string, p props.Text) pdfcore.Row {
	return row.New(height).Add(text.NewCol(12, value, p))
}

func fieldRow(f Field) pdfcore.Row {
	return row.New(5).Add(
		text.NewCol(2, f.Label+" :", bold),
		text.NewCol(10, f.Value, normal),
	)
}
