package http

import (
	"context"
	"net/http"
	"strings"

	"picocompta/internal/core"
	"picocompta/internal/fiscal"
	applog "picocompta/internal/log"
)

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := parseYear(q, s.today())
	if err != nil {
		s.fail(w, r, "periods", err)
		return
	}

	var freq core.Frequency
	if v := strings.TrimSpace(q.Get("frequency")); v != "" {
		if freq, err = core.ParseFrequency(v); err != nil {
			s.fail(w, r, "periods", core.NewValidationError("frequency", "must be monthly (1) or quarterly (3)"))
			return
		}
	} else {
		pi, err := s.svc.Profile.Get(r.Context())
		if err != nil {
			s.fail(w, r, "periods", err)
			return
		}
		freq = pi.DeclarationFrequency
	}
	writeJSON(w, http.StatusOK, fiscal.GeneratePeriods(year, freq))
}

type boardResponse struct {
	Board     fiscal.Board           `json:"board"`
	Liability fiscal.LiabilityResult `json:"liability"`
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r.URL.Query(), s.today())
	if err != nil {
		s.fail(w, r, "board", err)
		return
	}
	resp, err := s.buildBoard(r.Context(), year)
	if err != nil {
		s.fail(w, r, "board", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// buildBoard keeps the liability status current before computing the states
// that depend on it.
func (s *Server) buildBoard(ctx context.Context, year int) (boardResponse, error) {
	today := s.today()
	liability, err := s.svc.Liability.Evaluate(ctx, today)
	if err != nil {
		return boardResponse{}, err
	}
	board, err := s.svc.Board.Build(ctx, year, today)
	if err != nil {
		return boardResponse{}, err
	}
	return boardResponse{Board: board, Liability: liability}, nil
}

type declarationResponse struct {
	Result fiscal.CommitResult `json:"result"`
	Board  fiscal.Board        `json:"board"`
}

func (s *Server) handleDeclaration(w http.ResponseWriter, r *http.Request) {
	var req declarationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpDeclare, err)
		return
	}
	res, board, err := s.declare(r.Context(), req)
	if err != nil {
		s.fail(w, r, applog.OpDeclare, err)
		return
	}
	writeJSON(w, http.StatusOK, declarationResponse{Result: res, Board: board})
}

// declare executes the command then re-reads the board of the period's year.
func (s *Server) declare(ctx context.Context, req declarationRequest) (fiscal.CommitResult, fiscal.Board, error) {
	cmd, err := req.command(func(start, end core.Date) (core.Period, error) {
		return s.svc.Board.FindPeriod(ctx, start, end)
	})
	if err != nil {
		return fiscal.CommitResult{}, fiscal.Board{}, err
	}
	res, err := s.svc.Committer.Execute(ctx, cmd, s.today())
	if err != nil {
		return fiscal.CommitResult{}, fiscal.Board{}, err
	}

	op := applog.OpDeclare
	affected := res.Affected
	if cmd.Action == fiscal.ActionDeclareZero {
		op = applog.OpDeclareZero
		if res.Inserted {
			affected = 1
		}
	}
	s.events.LogDeclaration(ctx, op, cmd.Kind.String(), cmd.Period.Start.ISO(), cmd.Period.End.ISO(), affected)

	board, err := s.svc.Board.Build(ctx, cmd.Period.Start.Year(), s.today())
	if err != nil {
		return res, fiscal.Board{}, err
	}
	return res, board, nil
}

type declarationStateResponse struct {
	Kind      core.DeclarationKind `json:"kind"`
	Period    string               `json:"period"`
	Start     core.Date            `json:"start"`
	End       core.Date            `json:"end"`
	State     core.PeriodState     `json:"state"`
	Available fiscal.Availability  `json:"available"`
}

// handleDeclarationState resolves one cell of the board:
// GET /api/declarations/state?kind=URSSAF&start=2024-01-01&end=2024-03-31.
func (s *Server) handleDeclarationState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := declarationFromForm(r.URL.Query())
	if err != nil {
		s.fail(w, r, "declaration_state", err)
		return
	}
	kind, err := core.ParseDeclarationKind(req.Kind)
	if err != nil {
		s.fail(w, r, "declaration_state", core.NewValidationError("kind", "must be URSSAF or TVA"))
		return
	}
	p, err := s.svc.Board.FindPeriod(ctx, req.Start, req.End)
	if err != nil {
		s.fail(w, r, "declaration_state", err)
		return
	}

	today := s.today()
	state, err := s.svc.Resolver.Resolve(ctx, kind, p, today)
	if err != nil {
		s.fail(w, r, "declaration_state", err)
		return
	}
	avail, err := s.svc.Committer.Availability(ctx, p, today)
	if err != nil {
		s.fail(w, r, "declaration_state", err)
		return
	}
	if state == core.StateInactive {
		avail.Declare, avail.DeclareZero = false, false
	}
	writeJSON(w, http.StatusOK, declarationStateResponse{
		Kind:      kind,
		Period:    p.Label,
		Start:     p.Start,
		End:       p.End,
		State:     state,
		Available: avail,
	})
}

func (s *Server) handleEvaluateLiability(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Liability.Evaluate(r.Context(), s.today())
	if err != nil {
		s.fail(w, r, applog.OpEvaluate, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleInsightsHome(w http.ResponseWriter, r *http.Request) {
	home, err := s.svc.Insights.Home(r.Context(), s.today())
	if err != nil {
		s.fail(w, r, "insights_home", err)
		return
	}
	writeJSON(w, http.StatusOK, home)
}

func (s *Server) handleInsightsCeilings(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Insights.Ceilings(r.Context(), s.today())
	if err != nil {
		s.fail(w, r, "insights_ceilings", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleInsightsClients(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Insights.ClientStats(r.Context(), s.today())
	if err != nil {
		s.fail(w, r, "insights_clients", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
