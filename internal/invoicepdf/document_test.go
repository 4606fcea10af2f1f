package invoicepdf

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picocompta/internal/core"
	"picocompta/internal/store/memory"
)

func strPtr(s string) *string { return &s }

func profile() core.PersonalInfo {
	return core.PersonalInfo{
		LastName:   "Lefèvre",
		FirstName:  "Jeanne",
		Address:    "12 rue des Lilas",
		PostalCode: "69003",
		Country:    "France",
		Email:      "jeanne@example.fr",
		Phone:      "0612345678",
		Siret:      "12345678900012",
		APECode:    "6201Z",
		IBAN:       "FR7630006000011234567890189",
		BIC:        "AGRIFRPP",
	}
}

func invoice(vat bool) core.Invoice {
	inv := core.Invoice{
		ID:           3,
		Number:       42,
		IssueDate:    core.NewDate(2024, 3, 7),
		Object:       "Refonte du site",
		ActivityType: core.ActivityService,
		VATRate:      20,
	}
	inv.SetAmount(core.EUR(1500))
	inv.ComputeTotals(vat)
	return inv
}

func TestBuildDocumentFranchise(t *testing.T) {
	client := core.Client{Name: "Boulangerie Petit", Address: "3 place du Marché", PostalCode: "75011", Country: "France"}
	d := BuildDocument(invoice(false), client, profile())

	assert.Equal(t, "facture_42_Boulangerie_Petit.pdf", d.FileName)
	assert.Equal(t, "Jeanne Lefèvre", d.IssuerName)
	assert.Equal(t, "12 rue des Lilas, 69003 France", d.IssuerAddress)
	assert.Equal(t, "FACTURE N° 42", d.Title)
	assert.Equal(t, "07/03/2024", d.Date)
	assert.Equal(t, []Field{{"SIRET", "12345678900012"}, {"APE", "6201Z"}}, d.IssuerIDs)
	assert.Equal(t, VATExemptionMention, d.VATMention)
	require.Len(t, d.Amounts, 3)
	assert.Equal(t, "TVA (20.00%)", d.Amounts[1].Label)
	assert.Equal(t, "0.00 €", d.Amounts[1].Value)
	assert.Equal(t, "1500.00 €", d.Amounts[2].Value)
	assert.True(t, d.Amounts[2].Bold)
	assert.Equal(t, []Field{{"IBAN", "FR7630006000011234567890189"}, {"BIC", "AGRIFRPP"}}, d.Payment)
}

func TestBuildDocumentWithVAT(t *testing.T) {
	pi := profile()
	pi.SocialSecurityNumber = "2 84 05 69 123 456 78"
	pi.VATNumber = strPtr(core.VATNumberPending)
	client := core.Client{Name: "Atelier Roux", Siret: strPtr("98765432100019"), VATNumber: strPtr("FR32123456789")}

	d := BuildDocument(invoice(true), client, pi)
	assert.Empty(t, d.VATMention)
	assert.Contains(t, d.IssuerIDs, Field{"N° S.S.", "2 84 05 69 123 456 78"})
	assert.Contains(t, d.IssuerIDs, Field{"N°TVA", VATNumberFallback})
	assert.Equal(t, []string{"SIRET : 98765432100019", "TVA : FR32123456789"}, d.ClientLines)
	assert.Equal(t, "300.00 €", d.Amounts[1].Value)
	assert.Equal(t, "1800.00 €", d.Amounts[2].Value)

	pi.VATNumber = strPtr("FR40123456824")
	d = BuildDocument(invoice(true), client, pi)
	assert.Contains(t, d.IssuerIDs, Field{"N°TVA", "FR40123456824"})
}

func TestFileName(t *testing.T) {
	tests := []struct {
		number int64
		client string
		want   string
	}{
		{1, "ACME", "facture_1_ACME.pdf"},
		{12, "  SARL  Les  Pins ", "facture_12_SARL_Les_Pins.pdf"},
		{3, "A/B", "facture_3_A_B.pdf"},
	}
	for _, tt := range tests {
		if got := FileName(tt.number, tt.client); got != tt.want {
			t.Errorf("FileName(%d, %q) = %q, want %q", tt.number, tt.client, got, tt.want)
		}
	}
}

type countingRenderer struct{ calls atomic.Int32 }

func (r *countingRenderer) Render(d Document) ([]byte, error) {
	r.calls.Add(1)
	return []byte("%PDF-" + d.Title), nil
}

func TestGeneratorCachesPerRevision(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.SavePersonalInfo(ctx, profile()))
	cid, err := s.CreateClient(ctx, core.Client{Name: "ACME"})
	require.NoError(t, err)
	inv := invoice(false)
	inv.ClientID = cid
	id, err := s.CreateInvoice(ctx, inv)
	require.NoError(t, err)

	r := &countingRenderer{}
	dir := t.TempDir()
	g := NewGenerator(s, r, GeneratorConfig{OutputDir: dir})

	out, err := g.Generate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "facture_42_ACME.pdf", out.FileName)
	_, err = g.Generate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int32(1), r.calls.Load())

	stored, err := s.GetInvoice(ctx, id)
	require.NoError(t, err)
	stored.LedgerVersion++
	require.NoError(t, s.UpdateInvoice(ctx, stored))
	_, err = g.Generate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int32(1), r.calls.Load(), "bookkeeping fields do not change the document")

	stored.Object = "Refonte du site et maintenance"
	require.NoError(t, s.UpdateInvoice(ctx, stored))
	_, err = g.Generate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int32(2), r.calls.Load())

	pi := profile()
	pi.IBAN = "FR7612345000019876543210123"
	require.NoError(t, s.SavePersonalInfo(ctx, pi))
	_, err = g.Generate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int32(3), r.calls.Load(), "profile edit re-renders")

	client, err := s.GetClient(ctx, cid)
	require.NoError(t, err)
	client.Address = "8 quai Saint-Vincent"
	require.NoError(t, s.UpdateClient(ctx, client))
	_, err = g.Generate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int32(4), r.calls.Load(), "client edit re-renders")
	assert.Equal(t, 1, g.Cache().Size(), "older renders of the invoice are dropped")

	path, err := g.Save(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "facture_42_ACME.pdf"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-FACTURE N° 42", string(data))

	_, err = g.Generate(ctx, 999)
	assert.ErrorIs(t, err, core.ErrNotFound)

	path, err = NewGenerator(s, r, GeneratorConfig{}).Save(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, path, "saving is off without an output directory")
}

func TestMarotoRendererProducesPDF(t *testing.T) {
	client := core.Client{Name: "ACME", Address: "1 rue", PostalCode: "75001", Country: "France"}
	data, err := NewRenderer().Render(BuildDocument(invoice(false), client, profile()))
	require.NoError(t, err)
	require.Greater(t, len(data), 4)
	assert.Equal(t, "%PDF", string(data[:4]))
}
