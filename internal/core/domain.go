package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	ActivitySales   ActivityType = "BIC marchandise"
	ActivityService ActivityType = "BIC service"
	ActivityLiberal ActivityType = "BNC"
)

const (
	KindURSSAF DeclarationKind = "URSSAF"
	KindTVA    DeclarationKind = "TVA"
)

const (
	Monthly   Frequency = 1
	Quarterly Frequency = 3
)

const (
	StateInactive PeriodState = iota
	StateCurrent
	StateDeclared
	StateUndeclared
)

// VATNumberPending is the placeholder stored while the tax office has not yet
// assigned an intra-community VAT number.
const VATNumberPending = "en cours d'acquisition"

// ZeroDeclarationComment is the default comment attached to zero declarations.
const ZeroDeclarationComment = "Déclaration à zéro"

// DefaultVATRate is the standard French VAT rate, in percent.
const DefaultVATRate = 20.0

type (
	ActivityType    string
	DeclarationKind string
	Frequency       int
	PeriodState     int

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Period is a closed date range [Start, End] with a display label.
	Period struct {
		Label string `json:"label"`
		Start Date   `json:"start"`
		End   Date   `json:"end"`
	}

	// PersonalInfo is the single business profile of the entrepreneur.
	PersonalInfo struct {
		LastName             string  `json:"last_name"`
		FirstName            string  `json:"first_name"`
		Address              string  `json:"address"`
		PostalCode           string  `json:"postal_code"`
		Country              string  `json:"country"`
		Email                string  `json:"email"`
		Phone                string  `json:"phone"`
		Siret                string  `json:"siret"`
		APECode              string  `json:"ape_code"`
		SocialSecurityNumber string  `json:"social_security_number"`
		RIB                  string  `json:"rib"`
		IBAN                 string  `json:"iban"`
		BIC                  string  `json:"bic"`
		VATNumber            *string `json:"vat_number,omitempty"`

		DeclarationFrequency  Frequency    `json:"declaration_frequency"`
		ActivityStartDate     *Date        `json:"activity_start_date,omitempty"`
		VATLiable             bool         `json:"vat_liable"`
		VATLiabilityStartDate *Date        `json:"vat_liability_start_date,omitempty"`
		DefaultVATRate        float64      `json:"default_vat_rate"`
		MainActivity          ActivityType `json:"main_activity"`
		ACRE                  bool         `json:"acre"`

		LastInvoiceNumber       int64 `json:"last_invoice_number"`
		CarryoverSalesRevenue   Money `json:"carryover_sales_revenue"`
		CarryoverServiceRevenue Money `json:"carryover_service_revenue"`

		UpdatedAt time.Time `json:"updated_at"`
	}

	Client struct {
		ID         int64     `json:"id"`
		Name       string    `json:"name"`
		Address    string    `json:"address"`
		PostalCode string    `json:"postal_code"`
		Country    string    `json:"country"`
		Email      string    `json:"email"`
		VATNumber  *string   `json:"vat_number,omitempty"`
		Siret      *string   `json:"siret,omitempty"`
		CreatedAt  time.Time `json:"created_at"`
	}

	Invoice struct {
		ID           int64        `json:"id"`
		Number       int64        `json:"number"`
		ClientID     int64        `json:"client_id"`
		IssueDate    Date         `json:"issue_date"`
		DueDate      *Date        `json:"due_date,omitempty"`
		Object       string       `json:"object"`
		ActivityType ActivityType `json:"activity_type"`

		SalesAmount   Money   `json:"sales_amount"`
		ServiceAmount Money   `json:"service_amount"`
		LiberalAmount Money   `json:"liberal_amount"`
		TotalHT       Money   `json:"total_ht"`
		VATRate       float64 `json:"vat_rate"` // percent
		VATAmount     Money   `json:"vat_amount"`
		TotalTTC      Money   `json:"total_ttc"`
		UrssafRate    float64 `json:"urssaf_rate"` // fraction of HT

		Paid           bool  `json:"paid"`
		PaidDate       *Date `json:"paid_date,omitempty"`
		UrssafDeclared bool  `json:"urssaf_declared"`
		VATDeclared    bool  `json:"vat_declared"`

		LedgerVersion       int64 `json:"ledger_version"`
		LedgerSyncedVersion int64 `json:"ledger_synced_version"`
		LedgerSyncAttempts  int   `json:"ledger_sync_attempts"`

		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	ZeroDeclaration struct {
		ID          int64           `json:"id"`
		Kind        DeclarationKind `json:"kind"`
		PeriodStart Date            `json:"period_start"`
		PeriodEnd   Date            `json:"period_end"`
		DeclaredAt  time.Time       `json:"declared_at"`
		Comment     string          `json:"comment"`
	}

	// LedgerEntry is one line of the receipts register. Reversal lines carry
	// negative amounts and cancel a previously recorded receipt.
	LedgerEntry struct {
		InvoiceID     int64        `json:"invoice_id"`
		InvoiceNumber int64        `json:"invoice_number"`
		Version       int64        `json:"version"`
		ReceiptDate   Date         `json:"receipt_date"`
		ClientName    string       `json:"client_name"`
		Object        string       `json:"object"`
		ActivityType  ActivityType `json:"activity_type"`
		AmountHT      Money        `json:"amount_ht"`
		AmountTTC     Money        `json:"amount_ttc"`
		Reversal      bool         `json:"reversal"`
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidActivity  = errors.New("invalid activity type")
	ErrInvalidKind      = errors.New("invalid declaration kind")
	ErrInvalidFrequency = errors.New("invalid declaration frequency")
	ErrInvalidDate      = errors.New("invalid date")
)

// ActivityTypes lists the supported activity types in display order.
var ActivityTypes = []ActivityType{ActivitySales, ActivityService, ActivityLiberal}

func (a ActivityType) IsValid() bool {
	switch a {
	case ActivitySales, ActivityService, ActivityLiberal:
		return true
	}
	return false
}

func (a ActivityType) String() string { return string(a) }

// ParseActivityType accepts the French labels and a few short aliases.
func ParseActivityType(s string) (ActivityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bic marchandise", "bic_marchandise", "sales", "marchandise":
		return ActivitySales, nil
	case "bic service", "bic_service", "service", "services":
		return ActivityService, nil
	case "bnc", "liberal":
		return ActivityLiberal, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidActivity, s)
}

func (k DeclarationKind) IsValid() bool {
	return k == KindURSSAF || k == KindTVA
}

func (k DeclarationKind) String() string { return string(k) }

func ParseDeclarationKind(s string) (DeclarationKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "URSSAF":
		return KindURSSAF, nil
	case "TVA", "VAT":
		return KindTVA, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (f Frequency) IsValid() bool {
	return f == Monthly || f == Quarterly
}

func (f Frequency) String() string {
	switch f {
	case Monthly:
		return "monthly"
	case Quarterly:
		return "quarterly"
	}
	return fmt.Sprintf("Frequency(%d)", int(f))
}

// ParseFrequency accepts the stored month counts ("1", "3") and their names.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "monthly", "mensuelle":
		return Monthly, nil
	case "3", "quarterly", "trimestrielle":
		return Quarterly, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
}

func (s PeriodState) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateCurrent:
		return "current"
	case StateDeclared:
		return "declared"
	case StateUndeclared:
		return "undeclared"
	}
	return fmt.Sprintf("PeriodState(%d)", int(s))
}

func (s PeriodState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t, keeping its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate accepts ISO (2006-01-02) and French (02/01/2006) layouts.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ISO formats the date as 2006-01-02.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// French formats the date as 02/01/2006.
func (d Date) French() string {
	return d.Format("02/01/2006")
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysUntil counts the calendar days from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.Time.Sub(d.Time).Hours() / 24)
}

// IsEmpty returns true if the date is zero (for backward compatibility with optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.ISO() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Contains reports whether day falls inside the period, bounds included.
func (p Period) Contains(day Date) bool {
	return !day.Before(p.Start) && !day.After(p.End)
}

// Ended reports whether the period is strictly in the past relative to today.
func (p Period) Ended(today Date) bool {
	return today.After(p.End)
}

func (p Period) String() string {
	return fmt.Sprintf("%s (%s → %s)", p.Label, p.Start.ISO(), p.End.ISO())
}

// StartDateFor returns the date from which declarations of kind are due.
func (pi PersonalInfo) StartDateFor(kind DeclarationKind) *Date {
	if kind == KindTVA {
		return pi.VATLiabilityStartDate
	}
	return pi.ActivityStartDate
}

// MissingVATNumber reports a VAT-liable profile without a usable VAT number.
func (pi PersonalInfo) MissingVATNumber() bool {
	if !pi.VATLiable {
		return false
	}
	return pi.VATNumber == nil || strings.TrimSpace(*pi.VATNumber) == "" || *pi.VATNumber == VATNumberPending
}

func (pi PersonalInfo) FullName() string {
	return strings.TrimSpace(pi.FirstName + " " + pi.LastName)
}

// AmountFor returns the HT amount recorded for activity a.
func (inv Invoice) AmountFor(a ActivityType) Money {
	switch a {
	case ActivitySales:
		return inv.SalesAmount
	case ActivityService:
		return inv.ServiceAmount
	case ActivityLiberal:
		return inv.LiberalAmount
	}
	return Money{}
}

// TotalTTCFor returns the TTC amount of the invoice when it belongs to activity a.
func (inv Invoice) TotalTTCFor(a ActivityType) Money {
	if inv.ActivityType != a {
		return Money{}
	}
	return inv.TotalTTC
}

// SetAmount stores ht in the field matching the invoice activity and clears the others.
func (inv *Invoice) SetAmount(ht Money) {
	inv.SalesAmount, inv.ServiceAmount, inv.LiberalAmount = Money{}, Money{}, Money{}
	switch inv.ActivityType {
	case ActivitySales:
		inv.SalesAmount = ht
	case ActivityService:
		inv.ServiceAmount = ht
	case ActivityLiberal:
		inv.LiberalAmount = ht
	}
}

// ComputeTotals derives HT, VAT and TTC from the per-activity amounts.
// VAT is only charged when vatApplies is true.
func (inv *Invoice) ComputeTotals(vatApplies bool) {
	inv.TotalHT = inv.SalesAmount.Add(inv.ServiceAmount).Add(inv.LiberalAmount)
	inv.VATAmount = Money{}
	if vatApplies {
		inv.VATAmount = inv.TotalHT.Percent(inv.VATRate)
	}
	inv.TotalTTC = inv.TotalHT.Add(inv.VATAmount)
}

// Declared reports the declaration flag of the invoice for kind.
func (inv Invoice) Declared(kind DeclarationKind) bool {
	if kind == KindTVA {
		return inv.VATDeclared
	}
	return inv.UrssafDeclared
}

// Locked reports whether the invoice was already part of a declaration.
func (inv Invoice) Locked() bool {
	return inv.UrssafDeclared || inv.VATDeclared
}

func (inv Invoice) Validate() error {
	if err := inv.IssueDate.Validate(); err != nil {
		return err
	}
	if !inv.ActivityType.IsValid() {
		return ErrInvalidActivity
	}
	nonZero := 0
	for _, m := range []Money{inv.SalesAmount, inv.ServiceAmount, inv.LiberalAmount} {
		if !m.IsZero() {
			nonZero++
		}
	}
	if nonZero != 1 || inv.AmountFor(inv.ActivityType).IsZero() {
		return errors.New("exactly one activity amount must be set")
	}
	return inv.TotalHT.Validate()
}
