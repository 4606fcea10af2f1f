package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picocompta/internal/core"
	"picocompta/internal/store"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "picocompta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func createTestInvoice(t *testing.T, repo *SQLiteRepository, clientID, number int64, issued core.Date, paid bool) int64 {
	t.Helper()
	inv := core.Invoice{
		Number:       number,
		ClientID:     clientID,
		IssueDate:    issued,
		Object:       "Développement",
		ActivityType: core.ActivityLiberal,
		VATRate:      20,
		UrssafRate:   0.246,
		Paid:         paid,
	}
	if paid {
		d := issued.AddDays(10)
		inv.PaidDate = &d
	}
	inv.SetAmount(core.EUR(500))
	inv.ComputeTotals(false)
	id, err := repo.CreateInvoice(context.Background(), inv)
	require.NoError(t, err)
	return id
}

func TestPersonalInfoRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.LoadPersonalInfo(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)

	start := core.NewDate(2023, 9, 1)
	vat := core.VATNumberPending
	pi := core.PersonalInfo{
		LastName:             "Durand",
		FirstName:            "Claire",
		Address:              "3 rue des Lilas",
		PostalCode:           "69003",
		Country:              "France",
		Siret:                "12345678900012",
		APECode:              "6201Z",
		IBAN:                 "FR7612345678901234567890123",
		BIC:                  "AGRIFRPP",
		VATNumber:            &vat,
		DeclarationFrequency: core.Monthly,
		ActivityStartDate:    &start,
		DefaultVATRate:       20,
		MainActivity:         core.ActivityLiberal,
		LastInvoiceNumber:    7,
		CarryoverSalesRevenue: core.EUR(1200),
	}
	require.NoError(t, repo.SavePersonalInfo(ctx, pi))

	pi.LastInvoiceNumber = 8
	require.NoError(t, repo.SavePersonalInfo(ctx, pi))

	got, err := repo.LoadPersonalInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Durand", got.LastName)
	assert.Equal(t, int64(8), got.LastInvoiceNumber)
	assert.Equal(t, core.Monthly, got.DeclarationFrequency)
	require.NotNil(t, got.ActivityStartDate)
	assert.True(t, got.ActivityStartDate.Equal(start))
	assert.Nil(t, got.VATLiabilityStartDate)
	require.NotNil(t, got.VATNumber)
	assert.Equal(t, core.VATNumberPending, *got.VATNumber)
	assert.Equal(t, int64(120000), got.CarryoverSalesRevenue.Cents)
}

func TestInvoiceQueriesAndDeclaration(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	siret := "98765432100019"
	cid, err := repo.CreateClient(ctx, core.Client{Name: "Atelier Nord", Country: "France", Siret: &siret})
	require.NoError(t, err)

	createTestInvoice(t, repo, cid, 1, core.NewDate(2024, 1, 1), true)
	createTestInvoice(t, repo, cid, 2, core.NewDate(2024, 3, 31), true)
	createTestInvoice(t, repo, cid, 3, core.NewDate(2024, 2, 15), false)
	createTestInvoice(t, repo, cid, 4, core.NewDate(2024, 4, 1), true)

	q1 := core.Period{Label: "1er Trimestre", Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 3, 31)}
	paid, err := repo.QueryInvoices(ctx, store.PaidIn(q1))
	require.NoError(t, err)
	require.Len(t, paid, 2)
	assert.Equal(t, int64(1), paid[0].Number)
	assert.Equal(t, int64(2), paid[1].Number)
	assert.Equal(t, core.ActivityLiberal, paid[0].ActivityType)
	assert.Equal(t, int64(50000), paid[0].LiberalAmount.Cents)
	require.NotNil(t, paid[0].PaidDate)

	all, err := repo.QueryInvoices(ctx, store.IssuedIn(2024))
	require.NoError(t, err)
	assert.Len(t, all, 4)

	byClient, err := repo.QueryInvoices(ctx, store.InvoiceFilter{ClientID: cid, Paid: store.Bool(false)})
	require.NoError(t, err)
	require.Len(t, byClient, 1)
	assert.Equal(t, int64(3), byClient[0].Number)

	n, err := repo.MarkDeclared(ctx, core.KindTVA, q1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Idempotent.
	n, err = repo.MarkDeclared(ctx, core.KindTVA, q1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	paid, err = repo.QueryInvoices(ctx, store.PaidIn(q1))
	require.NoError(t, err)
	for _, inv := range paid {
		assert.True(t, inv.VATDeclared)
		assert.False(t, inv.UrssafDeclared)
	}
}

func TestInvoiceNumberIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	cid, err := repo.CreateClient(ctx, core.Client{Name: "Solo"})
	require.NoError(t, err)

	createTestInvoice(t, repo, cid, 1, core.NewDate(2024, 5, 1), false)

	inv := core.Invoice{Number: 1, ClientID: cid, IssueDate: core.NewDate(2024, 5, 2), ActivityType: core.ActivitySales}
	inv.SetAmount(core.EUR(10))
	inv.ComputeTotals(false)
	_, err = repo.CreateInvoice(ctx, inv)
	require.ErrorIs(t, err, core.ErrStorage)
}

func TestZeroDeclarations(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	p := core.Period{Label: "Février", Start: core.NewDate(2024, 2, 1), End: core.NewDate(2024, 2, 29)}

	ok, err := repo.ZeroDeclarationExists(ctx, core.KindURSSAF, p)
	require.NoError(t, err)
	assert.False(t, ok)

	z := core.ZeroDeclaration{Kind: core.KindURSSAF, PeriodStart: p.Start, PeriodEnd: p.End, Comment: core.ZeroDeclarationComment}
	inserted, err := repo.InsertZeroDeclaration(ctx, z)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertZeroDeclaration(ctx, z)
	require.NoError(t, err)
	assert.False(t, inserted, "same kind and period must be deduplicated")

	ok, err = repo.ZeroDeclarationExists(ctx, core.KindURSSAF, p)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := repo.ListZeroDeclarations(ctx, core.KindURSSAF, 2024)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, core.ZeroDeclarationComment, list[0].Comment)
	assert.False(t, list[0].DeclaredAt.IsZero())
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	boom := errors.New("boom")

	err := repo.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.CreateClient(ctx, core.Client{Name: "Ghost"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	clients, err := repo.ListClients(ctx)
	require.NoError(t, err)
	assert.Empty(t, clients)

	err = repo.InTx(ctx, func(tx store.Store) error {
		_, err := tx.CreateClient(ctx, core.Client{Name: "Kept"})
		return err
	})
	require.NoError(t, err)
	clients, err = repo.ListClients(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 1)
}

func TestLedgerPending(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	cid, err := repo.CreateClient(ctx, core.Client{Name: "Ledger"})
	require.NoError(t, err)
	id := createTestInvoice(t, repo, cid, 1, core.NewDate(2024, 6, 1), true)

	inv, err := repo.GetInvoice(ctx, id)
	require.NoError(t, err)
	inv.LedgerVersion = 2
	require.NoError(t, repo.UpdateInvoice(ctx, inv))

	pending, err := repo.PendingLedger(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, repo.MarkLedgerSyncFailed(ctx, id))
	require.NoError(t, repo.MarkLedgerSynced(ctx, id, 2))

	pending, err = repo.PendingLedger(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = repo.GetInvoice(ctx, 999)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picocompta.db")

	v, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))

	v, err = SchemaVersion(path)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
}
