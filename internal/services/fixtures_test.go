package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"picocompta/internal/core"
	"picocompta/internal/store/memory"
)

func fixedDay(y, m, d int) func() core.Date {
	return func() core.Date { return core.NewDate(y, m, d) }
}

func strPtr(s string) *string { return &s }

func validProfile() ProfileInput {
	return ProfileInput{
		LastName:             "Lefèvre",
		FirstName:            "Jeanne",
		Address:              "12 rue des Lilas",
		PostalCode:           "69003",
		Country:              "France",
		Email:                "jeanne@example.fr",
		Phone:                "0612345678",
		Siret:                "12345678900012",
		APECode:              "6201z",
		IBAN:                 "FR76 3000 6000 0112 3456 7890 189",
		BIC:                  "agrifrpp",
		DeclarationFrequency: core.Quarterly,
		MainActivity:         "BIC service",
	}
}

func validClient() ClientInput {
	return ClientInput{
		Name:       "Boulangerie Petit",
		Address:    "3 place du Marché",
		PostalCode: "75011",
		Country:    "France",
		Email:      "contact@petit.fr",
	}
}

type env struct {
	store    *memory.Store
	profiles *ProfileService
	clients  *ClientService
	invoices *InvoiceService
	client   core.Client
}

// newEnv registers a profile and one client, with "today" fixed to
// 2024-05-15.
func newEnv(t *testing.T, mutate ...func(*ProfileInput)) *env {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	e := &env{
		store:    s,
		profiles: NewProfileService(s),
		clients:  NewClientService(s),
		invoices: NewInvoiceService(s, nil),
	}
	e.profiles.today = fixedDay(2024, 5, 15)
	e.invoices.today = fixedDay(2024, 5, 15)

	in := validProfile()
	for _, m := range mutate {
		m(&in)
	}
	_, err := e.profiles.Register(ctx, in)
	require.NoError(t, err)

	cin := validClient()
	cin.VATNumber = strPtr("FR32123456789")
	e.client, err = e.clients.Create(ctx, cin)
	require.NoError(t, err)
	return e
}

func (e *env) draft(activity string, euros int64) InvoiceDraft {
	return InvoiceDraft{
		ClientID:     e.client.ID,
		Object:       "Prestation",
		ActivityType: activity,
		AmountHT:     core.EUR(euros),
	}
}

type recordingPublisher struct {
	calls [][2]int64
	err   error
}

func (p *recordingPublisher) PublishLedgerSync(_ context.Context, id, version int64) error {
	p.calls = append(p.calls, [2]int64{id, version})
	return p.err
}
