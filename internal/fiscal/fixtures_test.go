package fiscal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"picocompta/internal/core"
	"picocompta/internal/store/memory"
)

type fixture struct {
	t        *testing.T
	store    *memory.Store
	clientID int64
	number   int64
}

func newFixture(t *testing.T, pi core.PersonalInfo) *fixture {
	t.Helper()
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.SavePersonalInfo(ctx, pi))
	cid, err := s.CreateClient(ctx, core.Client{Name: "Boulangerie Petit", Country: "France"})
	require.NoError(t, err)
	return &fixture{t: t, store: s, clientID: cid}
}

func dateRef(y, m, d int) *core.Date {
	v := core.NewDate(y, m, d)
	return &v
}

func quarterlyProfile() core.PersonalInfo {
	return core.PersonalInfo{
		LastName:             "Lefèvre",
		FirstName:            "Jeanne",
		DeclarationFrequency: core.Quarterly,
		ActivityStartDate:    dateRef(2023, 1, 1),
		MainActivity:         core.ActivityService,
		DefaultVATRate:       core.DefaultVATRate,
	}
}

type invoiceOpt func(*core.Invoice)

func paid() invoiceOpt {
	return func(inv *core.Invoice) {
		inv.Paid = true
		d := inv.IssueDate
		inv.PaidDate = &d
	}
}

func withRate(r float64) invoiceOpt {
	return func(inv *core.Invoice) { inv.UrssafRate = r }
}

func withVAT(pct float64) invoiceOpt {
	return func(inv *core.Invoice) {
		inv.VATRate = pct
		inv.ComputeTotals(true)
	}
}

func urssafDeclared() invoiceOpt {
	return func(inv *core.Invoice) { inv.UrssafDeclared = true }
}

func vatDeclared() invoiceOpt {
	return func(inv *core.Invoice) { inv.VATDeclared = true }
}

func (f *fixture) invoice(activity core.ActivityType, ht core.Money, issued core.Date, opts ...invoiceOpt) core.Invoice {
	f.t.Helper()
	f.number++
	inv := core.Invoice{
		Number:       f.number,
		ClientID:     f.clientID,
		IssueDate:    issued,
		ActivityType: activity,
	}
	inv.SetAmount(ht)
	inv.ComputeTotals(false)
	for _, o := range opts {
		o(&inv)
	}
	id, err := f.store.CreateInvoice(context.Background(), inv)
	require.NoError(f.t, err)
	inv.ID = id
	return inv
}
