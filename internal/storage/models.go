package storage

import "database/sql"

type PersonalInfo struct {
	ID                    int64
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

type Client struct {
	ID         int64
	Name       string
	Address    string
	PostalCode string
	Country    string
	Email      string
	VatNumber  sql.NullString
	Siret      sql.NullString
	CreatedAt  string
}

type Invoice struct {
	ID                  int64
	Number              int64
	ClientID            int64
	IssueDate           string
	DueDate             sql.NullString
	Object              string
	ActivityType        string
	SalesCents          int64
	ServiceCents        int64
	LiberalCents        int64
	TotalHtCents        int64
	VatRate             float64
	VatCents            int64
	TotalTtcCents       int64
	UrssafRate          float64
	Paid                bool
	PaidDate            sql.NullString
	UrssafDeclared      bool
	VatDeclared         bool
	LedgerVersion       int64
	LedgerSyncedVersion int64
	LedgerSyncAttempts  int64
	CreatedAt           string
	UpdatedAt           string
}

type ZeroDeclaration struct {
	ID          int64
	Kind        string
	PeriodStart string
	PeriodEnd   string
	DeclaredAt  string
	Comment     string
}
