package storage

import (
	"context"
	"database/sql"
)

const getPersonalInfo = `-- name: GetPersonalInfo :one
SELECT id, last_name, first_name, address, postal_code, country, email, phone, siret, ape_code,
       social_security_number, rib, iban, bic, vat_number, declaration_frequency, activity_start_date,
       vat_liable, vat_liability_start_date, default_vat_rate, main_activity, acre, last_invoice_number,
       carryover_sales_cents, carryover_service_cents, updated_at
FROM personal_info
WHERE id = 1
`

func (q *Queries) GetPersonalInfo(ctx context.Context) (PersonalInfo, error) {
	row := q.db.QueryRowContext(ctx, getPersonalInfo)
	var i PersonalInfo
	err := row.Scan(
		&i.ID,
		&i.LastName,
		&i.FirstName,
		&i.Address,
		&i.PostalCode,
		&i.Country,
		&i.Email,
		&i.Phone,
		&i.Siret,
		&i.ApeCode,
		&i.SocialSecurityNumber,
		&i.Rib,
		&i.Iban,
		&i.Bic,
		&i.VatNumber,
		&i.DeclarationFrequency,
		&i.ActivityStartDate,
		&i.VatLiable,
		&i.VatLiabilityStartDate,
		&i.DefaultVatRate,
		&i.MainActivity,
		&i.Acre,
		&i.LastInvoiceNumber,
		&i.CarryoverSalesCents,
		&i.CarryoverServiceCents,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertPersonalInfo = `-- name: UpsertPersonalInfo :exec
INSERT INTO personal_info (
    id, last_name, first_name, address, postal_code, country, email, phone, siret, ape_code,
    social_security_number, rib, iban, bic, vat_number, declaration_frequency, activity_start_date,
    vat_liable, vat_liability_start_date, default_vat_rate, main_activity, acre, last_invoice_number,
    carryover_sales_cents, carryover_service_cents, updated_at
) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    last_name = excluded.last_name,
    first_name = excluded.first_name,
    address = excluded.address,
    postal_code = excluded.postal_code,
    country = excluded.country,
    email = excluded.email,
    phone = excluded.phone,
    siret = excluded.siret,
    ape_code = excluded.ape_code,
    social_security_number = excluded.social_security_number,
    rib = excluded.rib,
    iban = excluded.iban,
    bic = excluded.bic,
    vat_number = excluded.vat_number,
    declaration_frequency = excluded.declaration_frequency,
    activity_start_date = excluded.activity_start_date,
    vat_liable = excluded.vat_liable,
    vat_liability_start_date = excluded.vat_liability_start_date,
    default_vat_rate = excluded.default_vat_rate,
    main_activity = excluded.main_activity,
    acre = excluded.acre,
    last_invoice_number = excluded.last_invoice_number,
    carryover_sales_cents = excluded.carryover_sales_cents,
    carryover_service_cents = excluded.carryover_service_cents,
    updated_at = excluded.updated_at
`

type UpsertPersonalInfoParams struct {
	LastName              string
	FirstName             string
	Address               string
	PostalCode            string
	Country               string
	Email                 string
	Phone                 string
	Siret                 string
	ApeCode               string
	SocialSecurityNumber  string
	Rib                   string
	Iban                  string
	Bic                   string
	VatNumber             sql.NullString
	DeclarationFrequency  int64
	ActivityStartDate     sql.NullString
	VatLiable             bool
	VatLiabilityStartDate sql.NullString
	DefaultVatRate        float64
	MainActivity          string
	Acre                  bool
	LastInvoiceNumber     int64
	CarryoverSalesCents   int64
	CarryoverServiceCents int64
	UpdatedAt             string
}

func (q *Queries) UpsertPersonalInfo(ctx context.Context, arg UpsertPersonalInfoParams) error {
	_, err := q.db.ExecContext(ctx, upsertPersonalInfo,
		arg.LastName,
		arg.FirstName,
		arg.Address,
		arg.PostalCode,
		arg.Country,
		arg.Email,
		arg.Phone,
		arg.Siret,
		arg.ApeCode,
		arg.SocialSecurityNumber,
		arg.Rib,
		arg.Iban,
		arg.Bic,
		arg.VatNumber,
		arg.DeclarationFrequency,
		arg.ActivityStartDate,
		arg.VatLiable,
		arg.VatLiabilityStartDate,
		arg.DefaultVatRate,
		arg.MainActivity,
		arg.Acre,
		arg.LastInvoiceNumber,
		arg.CarryoverSalesCents,
		arg.CarryoverServiceCents,
		arg.UpdatedAt,
	)
	return err
}
