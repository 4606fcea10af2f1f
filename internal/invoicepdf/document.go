// Package invoicepdf builds and renders French invoices.
package invoicepdf

import (
	"fmt"
	"strings"

	"picocompta/internal/core"
)

// VATNumberFallback is printed when VAT applies but no number was assigned yet.
const VATNumberFallback = "en cours d'attribution"

// VATExemptionMention is required on invoices issued under the VAT franchise.
const VATExemptionMention = "TVA non applicable, article 293B du CGI"

type Field struct {
	Label string
	Value string
}

type Amount struct {
	Label string
	Value string
	Bold  bool
}

// Document is everything printed on an invoice, already formatted.
type Document struct {
	FileName string

	IssuerName    string
	IssuerAddress string
	IssuerContact []string
	IssuerIDs     []Field

	Title string
	Date  string

	ClientName  string
	ClientLines []string

	Object     string
	Amounts    []Amount
	VATMention string

	Payment []Field
}

// BuildDocument lays out invoice inv for client c, issued by pi.
func BuildDocument(inv core.Invoice, c core.Client, pi core.PersonalInfo) Document {
	d := Document{
		FileName:      FileName(inv.Number, c.Name),
		IssuerName:    pi.FullName(),
		IssuerAddress: joinNonEmpty(", ", pi.Address, joinNonEmpty(" ", pi.PostalCode, pi.Country)),
		IssuerContact: nonEmpty(pi.Email, pi.Phone),
		Title:         fmt.Sprintf("FACTURE N° %d", inv.Number),
		Date:          inv.IssueDate.French(),
		ClientName:    c.Name,
		ClientLines:   nonEmpty(c.Address, c.PostalCode, c.Country),
		Object:        inv.Object,
	}

	d.IssuerIDs = []Field{{"SIRET", pi.Siret}, {"APE", pi.APECode}}
	if pi.SocialSecurityNumber != "" {
		d.IssuerIDs = append(d.IssuerIDs, Field{"N° S.S.", pi.SocialSecurityNumber})
	}
	if vatApplies(inv) {
		vat := VATNumberFallback
		if pi.VATNumber != nil && strings.TrimSpace(*pi.VATNumber) != "" && *pi.VATNumber != core.VATNumberPending {
			vat = *pi.VATNumber
		}
		d.IssuerIDs = append(d.IssuerIDs, Field{"N°TVA", vat})
	}

	if c.Siret != nil && *c.Siret != "" {
		d.ClientLines = append(d.ClientLines, "SIRET : "+*c.Siret)
	}
	if c.VATNumber != nil && *c.VATNumber != "" {
		d.ClientLines = append(d.ClientLines, "TVA : "+*c.VATNumber)
	}

	d.Amounts = []Amount{
		{Label: "Montant HT", Value: inv.TotalHT.String()},
		{Label: fmt.Sprintf("TVA (%.2f%%)", inv.VATRate), Value: inv.VATAmount.String()},
		{Label: "TOTAL TTC", Value: inv.TotalTTC.String(), Bold: true},
	}
	if !vatApplies(inv) {
		d.VATMention = VATExemptionMention
	}

	for _, f := range []Field{{"RIB", pi.RIB}, {"IBAN", pi.IBAN}, {"BIC", pi.BIC}} {
		if f.Value != "" {
			d.Payment = append(d.Payment, f)
		}
	}
	return d
}

func vatApplies(inv core.Invoice) bool {
	return !inv.VATAmount.IsZero()
}

// FileName is facture_{number}_{client}.pdf with spaces in the client name
// replaced by underscores.
func FileName(number int64, clientName string) string {
	name := strings.Join(strings.Fields(clientName), "_")
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	return fmt.Sprintf("facture_%d_%s.pdf", number, name)
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func joinNonEmpty(sep string, values ...string) string {
	return strings.Join(nonEmpty(values...), sep)
}
