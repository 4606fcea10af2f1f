package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"picocompta/internal/core"
	applog "picocompta/internal/log"
	"picocompta/internal/services"
)

var invoiceSorts = map[string]bool{"": true, "number": true, "date": true, "amount": true, "client": true}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := services.InvoiceQuery{Sort: strings.ToLower(strings.TrimSpace(q.Get("sort")))}

	v := &core.ValidationError{}
	var err error
	if query.ClientID, err = parseInt64Param(q, "client_id"); err != nil {
		v.Add("client_id", "must be a positive integer")
	}
	if query.Paid, err = parseBoolParam(q, "paid"); err != nil {
		v.Add("paid", "must be true or false")
	}
	if q.Get("year") != "" {
		if query.Year, err = parseYear(q, s.today()); err != nil {
			v.Add("year", "must be a four digit year")
		}
	}
	if !invoiceSorts[query.Sort] {
		v.Add("sort", "must be one of number, date, amount, client")
	}
	if desc, err := parseBoolParam(q, "desc"); err != nil {
		v.Add("desc", "must be true or false")
	} else if desc != nil {
		query.Desc = *desc
	}
	if err := v.Err(); err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}

	rows, err := s.svc.Invoices.List(r.Context(), query)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, "get_invoice", err)
		return
	}
	inv, err := s.svc.Invoices.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, "get_invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var d services.InvoiceDraft
	if err := decodeJSON(w, r, &d); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	inv, err := s.svc.Invoices.Create(r.Context(), d)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	s.savePDF(r.Context(), inv)
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", fmt.Sprintf("/api/invoices/%d", inv.ID)).
		JSON(inv).
		Write(w)
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	var d services.InvoiceDraft
	if err := decodeJSON(w, r, &d); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	inv, err := s.svc.Invoices.Update(r.Context(), id, d)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	s.savePDF(r.Context(), inv)
	writeJSON(w, http.StatusOK, inv)
}

// savePDF writes the invoice PDF to the output directory. The invoice is
// already stored, so a failure is only logged.
func (s *Server) savePDF(ctx context.Context, inv core.Invoice) {
	if s.svc.PDF == nil {
		return
	}
	path, err := s.svc.PDF.Save(ctx, inv.ID)
	if err != nil {
		s.events.LogError(ctx, "Failed to save invoice PDF", err, applog.ErrorTypeInternal, applog.ComponentPDF, applog.OpRender)
		return
	}
	if path != "" {
		s.logger.InfoContext(ctx, "Invoice PDF saved", "invoice_id", inv.ID, "number", inv.Number, "path", path)
	}
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	s.setPaid(w, r, true)
}

func (s *Server) handleMarkUnpaid(w http.ResponseWriter, r *http.Request) {
	s.setPaid(w, r, false)
}

func (s *Server) setPaid(w http.ResponseWriter, r *http.Request, paid bool) {
	op := applog.OpMarkPaid
	if !paid {
		op = applog.OpMarkUnpaid
	}
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}

	var inv core.Invoice
	if paid {
		inv, err = s.svc.Invoices.MarkPaid(r.Context(), id, s.today())
	} else {
		inv, err = s.svc.Invoices.MarkUnpaid(r.Context(), id)
	}
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	s.events.LogPayment(r.Context(), op, inv.ID, inv.Number, inv.TotalHT.Cents)
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleInvoicePDF(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, applog.OpRender, err)
		return
	}
	if s.svc.PDF == nil {
		s.fail(w, r, applog.OpRender, fmt.Errorf("pdf generator not configured"))
		return
	}
	doc, err := s.svc.PDF.Generate(r.Context(), id)
	if err != nil {
		s.fail(w, r, applog.OpRender, err)
		return
	}
	NewResponse().
		Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.FileName)).
		Header("Cache-Control", "private, no-cache").
		Body("application/pdf", doc.Data).
		Write(w)
}
