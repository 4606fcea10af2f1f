package storage

import (
	"database/sql"
	"time"

	"picocompta/internal/core"
)

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullDate(d *core.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.ISO(), Valid: true}
}

func datePtr(ns sql.NullString) *core.Date {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	d := parseDate(ns.String)
	if d.IsZero() {
		return nil
	}
	return &d
}

// parseDate reads the ISO dates the repository writes; anything else becomes the zero date.
func parseDate(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func personalInfoFromRow(row PersonalInfo) core.PersonalInfo {
	return core.PersonalInfo{
		LastName:                row.LastName,
		FirstName:               row.FirstName,
		Address:                 row.Address,
		PostalCode:              row.PostalCode,
		Country:                 row.Country,
		Email:                   row.Email,
		Phone:                   row.Phone,
		Siret:                   row.Siret,
		APECode:                 row.ApeCode,
		SocialSecurityNumber:    row.SocialSecurityNumber,
		RIB:                     row.Rib,
		IBAN:                    row.Iban,
		BIC:                     row.Bic,
		VATNumber:               stringPtr(row.VatNumber),
		DeclarationFrequency:    core.Frequency(row.DeclarationFrequency),
		ActivityStartDate:       datePtr(row.ActivityStartDate),
		VATLiable:               row.VatLiable,
		VATLiabilityStartDate:   datePtr(row.VatLiabilityStartDate),
		DefaultVATRate:          row.DefaultVatRate,
		MainActivity:            core.ActivityType(row.MainActivity),
		ACRE:                    row.Acre,
		LastInvoiceNumber:       row.LastInvoiceNumber,
		CarryoverSalesRevenue:   core.Money{Cents: row.CarryoverSalesCents},
		CarryoverServiceRevenue: core.Money{Cents: row.CarryoverServiceCents},
		UpdatedAt:               parseTimestamp(row.UpdatedAt),
	}
}

func clientFromRow(row Client) core.Client {
	return core.Client{
		ID:         row.ID,
		Name:       row.Name,
		Address:    row.Address,
		PostalCode: row.PostalCode,
		Country:    row.Country,
		Email:      row.Email,
		VATNumber:  stringPtr(row.VatNumber),
		Siret:      stringPtr(row.Siret),
		CreatedAt:  parseTimestamp(row.CreatedAt),
	}
}

func invoiceParams(inv core.Invoice) CreateInvoiceParams {
	return CreateInvoiceParams{
		Number:              inv.Number,
		ClientID:            inv.ClientID,
		IssueDate:           inv.IssueDate.ISO(),
		DueDate:             nullDate(inv.DueDate),
		Object:              inv.Object,
		ActivityType:        string(inv.ActivityType),
		SalesCents:          inv.SalesAmount.Cents,
		ServiceCents:        inv.ServiceAmount.Cents,
		LiberalCents:        inv.LiberalAmount.Cents,
		TotalHtCents:        inv.TotalHT.Cents,
		VatRate:             inv.VATRate,
		VatCents:            inv.VATAmount.Cents,
		TotalTtcCents:       inv.TotalTTC.Cents,
		UrssafRate:          inv.UrssafRate,
		Paid:                inv.Paid,
		PaidDate:            nullDate(inv.PaidDate),
		UrssafDeclared:      inv.UrssafDeclared,
		VatDeclared:         inv.VATDeclared,
		LedgerVersion:       inv.LedgerVersion,
		LedgerSyncedVersion: inv.LedgerSyncedVersion,
		LedgerSyncAttempts:  int64(inv.LedgerSyncAttempts),
	}
}

func invoiceFromRow(row Invoice) core.Invoice {
	return core.Invoice{
		ID:                  row.ID,
		Number:              row.Number,
		ClientID:            row.ClientID,
		IssueDate:           parseDate(row.IssueDate),
		DueDate:             datePtr(row.DueDate),
		Object:              row.Object,
		ActivityType:        core.ActivityType(row.ActivityType),
		SalesAmount:         core.Money{Cents: row.SalesCents},
		ServiceAmount:       core.Money{Cents: row.ServiceCents},
		LiberalAmount:       core.Money{Cents: row.LiberalCents},
		TotalHT:             core.Money{Cents: row.TotalHtCents},
		VATRate:             row.VatRate,
		VATAmount:           core.Money{Cents: row.VatCents},
		TotalTTC:            core.Money{Cents: row.TotalTtcCents},
		UrssafRate:          row.UrssafRate,
		Paid:                row.Paid,
		PaidDate:            datePtr(row.PaidDate),
		UrssafDeclared:      row.UrssafDeclared,
		VATDeclared:         row.VatDeclared,
		LedgerVersion:       row.LedgerVersion,
		LedgerSyncedVersion: row.LedgerSyncedVersion,
		LedgerSyncAttempts:  int(row.LedgerSyncAttempts),
		CreatedAt:           parseTimestamp(row.CreatedAt),
		UpdatedAt:           parseTimestamp(row.UpdatedAt),
	}
}

func invoicesFromRows(rows []Invoice) []core.Invoice {
	out := make([]core.Invoice, len(rows))
	for i, row := range rows {
		out[i] = invoiceFromRow(row)
	}
	return out
}
