package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"picocompta/internal/core"
	"picocompta/internal/store"
)

// ProfileInput is the onboarding and edit form of the business profile.
type ProfileInput struct {
	LastName             string  `json:"last_name" validate:"required,max=100"`
	FirstName            string  `json:"first_name" validate:"required,max=100"`
	Address              string  `json:"address" validate:"required,max=200"`
	PostalCode           string  `json:"postal_code" validate:"required,max=10"`
	Country              string  `json:"country" validate:"required,max=60"`
	Email                string  `json:"email" validate:"required,email"`
	Phone                string  `json:"phone" validate:"required,max=20"`
	Siret                string  `json:"siret" validate:"required,len=14,numeric"`
	APECode              string  `json:"ape_code" validate:"required,max=6"`
	SocialSecurityNumber string  `json:"social_security_number" validate:"omitempty,max=21"`
	RIB                  string  `json:"rib" validate:"omitempty,max=40"`
	IBAN                 string  `json:"iban" validate:"required,max=34"`
	BIC                  string  `json:"bic" validate:"required,max=11"`
	VATNumber            *string `json:"vat_number,omitempty" validate:"omitempty,max=30"`

	DeclarationFrequency core.Frequency `json:"declaration_frequency" validate:"frequency"`
	ActivityStartDate    *core.Date     `json:"activity_start_date,omitempty"`
	MainActivity         string         `json:"main_activity" validate:"required,activity"`
	ACRE                 bool           `json:"acre"`
	DefaultVATRate       float64        `json:"default_vat_rate" validate:"gte=0,lte=100"`

	CarryoverSalesRevenue   core.Money `json:"carryover_sales_revenue"`
	CarryoverServiceRevenue core.Money `json:"carryover_service_revenue"`

	// VATLiable switches VAT liability on by hand. Liability is never
	// switched off once set.
	VATLiable             *bool      `json:"vat_liable,omitempty"`
	VATLiabilityStartDate *core.Date `json:"vat_liability_start_date,omitempty"`
}

func (in ProfileInput) validate() error {
	verr := &core.ValidationError{}
	if err := validateStruct(in); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}
	if in.CarryoverSalesRevenue.Cents < 0 {
		verr.Add("carryover_sales_revenue", "must not be negative")
	}
	if in.CarryoverServiceRevenue.Cents < 0 {
		verr.Add("carryover_service_revenue", "must not be negative")
	}
	return verr.Err()
}

// ProfileService manages the single business profile.
type ProfileService struct {
	store store.Store
	today func() core.Date
}

func NewProfileService(s store.Store) *ProfileService {
	return &ProfileService{store: s, today: Today}
}

// Today returns the current calendar day.
func Today() core.Date {
	return core.DateOf(time.Now())
}

func (s *ProfileService) Get(ctx context.Context) (core.PersonalInfo, error) {
	return s.store.LoadPersonalInfo(ctx)
}

// Register creates the profile. It fails with a state conflict when the
// profile already exists.
func (s *ProfileService) Register(ctx context.Context, in ProfileInput) (core.PersonalInfo, error) {
	if err := in.validate(); err != nil {
		return core.PersonalInfo{}, err
	}

	var pi core.PersonalInfo
	err := s.store.InTx(ctx, func(tx store.Store) error {
		_, err := tx.LoadPersonalInfo(ctx)
		switch {
		case err == nil:
			return core.NewStateConflict("register profile", "profile already exists")
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		pi = core.PersonalInfo{}
		s.apply(&pi, in)
		if pi.ActivityStartDate == nil {
			today := s.today()
			pi.ActivityStartDate = &today
		}
		if pi.DefaultVATRate == 0 {
			pi.DefaultVATRate = core.DefaultVATRate
		}
		if in.VATLiable != nil && *in.VATLiable {
			s.switchLiabilityOn(&pi, in.VATLiabilityStartDate)
		}
		return tx.SavePersonalInfo(ctx, pi)
	})
	if err != nil {
		return core.PersonalInfo{}, fmt.Errorf("register profile: %w", err)
	}

	slog.InfoContext(ctx, "Profile registered",
		"siret", pi.Siret,
		"activity", pi.MainActivity,
		"frequency", pi.DeclarationFrequency.String())
	return pi, nil
}

// Update edits the profile in place, keeping the invoice counter and the
// VAT liability state unless the input switches liability on.
func (s *ProfileService) Update(ctx context.Context, in ProfileInput) (core.PersonalInfo, error) {
	if err := in.validate(); err != nil {
		return core.PersonalInfo{}, err
	}

	var pi core.PersonalInfo
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		pi, err = tx.LoadPersonalInfo(ctx)
		if err != nil {
			return err
		}
		if in.VATLiable != nil && !*in.VATLiable && pi.VATLiable {
			return core.NewStateConflict("update profile", "VAT liability cannot be revoked")
		}

		s.apply(&pi, in)
		if pi.DefaultVATRate == 0 {
			pi.DefaultVATRate = core.DefaultVATRate
		}
		if in.VATLiable != nil && *in.VATLiable {
			s.switchLiabilityOn(&pi, in.VATLiabilityStartDate)
		}
		return tx.SavePersonalInfo(ctx, pi)
	})
	if err != nil {
		return core.PersonalInfo{}, fmt.Errorf("update profile: %w", err)
	}

	slog.InfoContext(ctx, "Profile updated", "vat_liable", pi.VATLiable)
	return pi, nil
}

// apply copies the editable fields of in onto pi.
func (s *ProfileService) apply(pi *core.PersonalInfo, in ProfileInput) {
	activity, _ := core.ParseActivityType(in.MainActivity)

	pi.LastName = strings.TrimSpace(in.LastName)
	pi.FirstName = strings.TrimSpace(in.FirstName)
	pi.Address = strings.TrimSpace(in.Address)
	pi.PostalCode = strings.TrimSpace(in.PostalCode)
	pi.Country = strings.TrimSpace(in.Country)
	pi.Email = strings.TrimSpace(in.Email)
	pi.Phone = strings.TrimSpace(in.Phone)
	pi.Siret = in.Siret
	pi.APECode = strings.ToUpper(strings.TrimSpace(in.APECode))
	pi.SocialSecurityNumber = strings.TrimSpace(in.SocialSecurityNumber)
	pi.RIB = strings.TrimSpace(in.RIB)
	pi.IBAN = strings.ReplaceAll(strings.ToUpper(in.IBAN), " ", "")
	pi.BIC = strings.ToUpper(strings.TrimSpace(in.BIC))
	pi.VATNumber = trimmedOrNil(in.VATNumber)
	pi.DeclarationFrequency = in.DeclarationFrequency
	if in.ActivityStartDate != nil {
		d := *in.ActivityStartDate
		pi.ActivityStartDate = &d
	}
	pi.MainActivity = activity
	pi.ACRE = in.ACRE
	pi.DefaultVATRate = in.DefaultVATRate
	pi.CarryoverSalesRevenue = in.CarryoverSalesRevenue
	pi.CarryoverServiceRevenue = in.CarryoverServiceRevenue
}

func (s *ProfileService) switchLiabilityOn(pi *core.PersonalInfo, start *core.Date) {
	pi.VATLiable = true
	switch {
	case start != nil:
		d := *start
		pi.VATLiabilityStartDate = &d
	case pi.VATLiabilityStartDate == nil:
		today := s.today()
		pi.VATLiabilityStartDate = &today
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
