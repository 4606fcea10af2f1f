package fiscal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"picocompta/internal/core"
	"picocompta/internal/store"
)

type Action string

const (
	ActionDeclare     Action = "declare"
	ActionDeclareZero Action = "declare_zero"
)

func (a Action) IsValid() bool {
	return a == ActionDeclare || a == ActionDeclareZero
}

// Command is a user request to file a declaration for one kind and period.
type Command struct {
	Action Action
	Kind   core.DeclarationKind
	Period core.Period
}

func (c Command) Validate() error {
	v := &core.ValidationError{}
	if !c.Action.IsValid() {
		v.Add("action", "must be declare or declare_zero")
	}
	if !c.Kind.IsValid() {
		v.Add("kind", "must be URSSAF or TVA")
	}
	if c.Period.Start.IsZero() || c.Period.End.IsZero() {
		v.Add("period", "start and end are required")
	} else if c.Period.End.Before(c.Period.Start) {
		v.Add("period", "end is before start")
	}
	return v.Err()
}

// Availability tells which commands may be submitted for a period.
type Availability struct {
	Declare     bool `json:"declare"`
	DeclareZero bool `json:"declare_zero"`
	Count       int  `json:"count"`
}

// Gate computes the availability of both commands. A period can only be
// declared once it has ended; a zero declaration requires no paid invoice.
func Gate(p core.Period, today core.Date, count int) Availability {
	ended := p.Ended(today)
	return Availability{
		Declare:     ended && count > 0,
		DeclareZero: ended && count == 0,
		Count:       count,
	}
}

func (a Availability) Allows(action Action) bool {
	switch action {
	case ActionDeclare:
		return a.Declare
	case ActionDeclareZero:
		return a.DeclareZero
	}
	return false
}

type CommitResult struct {
	Command  Command `json:"-"`
	Affected int64   `json:"affected"`
	Inserted bool    `json:"inserted"`
}

// Committer executes declaration commands, each in its own transaction.
type Committer struct {
	store store.Store
	now   func() time.Time
}

func NewCommitter(s store.Store) *Committer {
	return &Committer{store: s, now: time.Now}
}

// Availability counts the paid invoices of p and gates both commands.
func (c *Committer) Availability(ctx context.Context, p core.Period, today core.Date) (Availability, error) {
	return availability(ctx, c.store, p, today)
}

func availability(ctx context.Context, s store.Store, p core.Period, today core.Date) (Availability, error) {
	invoices, err := s.QueryInvoices(ctx, store.PaidIn(p))
	if err != nil {
		return Availability{}, core.NewStorageError("declaration availability", err)
	}
	return Gate(p, today, len(invoices)), nil
}

// Execute re-checks the gate and applies cmd atomically. A command that the
// gate disables is refused with a state conflict.
func (c *Committer) Execute(ctx context.Context, cmd Command, today core.Date) (CommitResult, error) {
	if err := cmd.Validate(); err != nil {
		return CommitResult{}, err
	}
	res := CommitResult{Command: cmd}
	err := c.store.InTx(ctx, func(tx store.Store) error {
		avail, err := availability(ctx, tx, cmd.Period, today)
		if err != nil {
			return err
		}
		if !avail.Allows(cmd.Action) {
			return core.NewStateConflict(string(cmd.Action), conflictReason(cmd, avail, today))
		}
		switch cmd.Action {
		case ActionDeclare:
			res.Affected, err = tx.MarkDeclared(ctx, cmd.Kind, cmd.Period)
		case ActionDeclareZero:
			res.Inserted, err = tx.InsertZeroDeclaration(ctx, core.ZeroDeclaration{
				Kind:        cmd.Kind,
				PeriodStart: cmd.Period.Start,
				PeriodEnd:   cmd.Period.End,
				DeclaredAt:  c.now(),
				Comment:     core.ZeroDeclarationComment,
			})
		}
		return err
	})
	if err != nil {
		slog.WarnContext(ctx, "Declaration command failed",
			"action", string(cmd.Action),
			"kind", string(cmd.Kind),
			"period", cmd.Period.Label,
			"error", err)
		return CommitResult{}, err
	}
	slog.InfoContext(ctx, "Declaration committed",
		"action", string(cmd.Action),
		"kind", string(cmd.Kind),
		"period_start", cmd.Period.Start.ISO(),
		"period_end", cmd.Period.End.ISO(),
		"affected", res.Affected,
		"inserted", res.Inserted)
	return res, nil
}

// CommitDeclaration marks every paid invoice of p as declared for kind.
func (c *Committer) CommitDeclaration(ctx context.Context, kind core.DeclarationKind, p core.Period, today core.Date) (CommitResult, error) {
	return c.Execute(ctx, Command{Action: ActionDeclare, Kind: kind, Period: p}, today)
}

// CommitZeroDeclaration records that nothing was invoiced during p.
func (c *Committer) CommitZeroDeclaration(ctx context.Context, kind core.DeclarationKind, p core.Period, today core.Date) (CommitResult, error) {
	return c.Execute(ctx, Command{Action: ActionDeclareZero, Kind: kind, Period: p}, today)
}

func conflictReason(cmd Command, avail Availability, today core.Date) string {
	if !cmd.Period.Ended(today) {
		return fmt.Sprintf("period %s has not ended yet", cmd.Period.Label)
	}
	if cmd.Action == ActionDeclare {
		return fmt.Sprintf("no paid invoice in period %s, use a zero declaration", cmd.Period.Label)
	}
	return fmt.Sprintf("period %s has %d paid invoice(s), a zero declaration is not allowed", cmd.Period.Label, avail.Count)
}
