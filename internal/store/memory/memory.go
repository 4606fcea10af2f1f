// Package memory is an in-process implementation of store.Store used by the
// "memory" data backend and by tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"picocompta/internal/core"
	"picocompta/internal/store"
)

type state struct {
	info       *core.PersonalInfo
	clients    map[int64]core.Client
	invoices   map[int64]core.Invoice
	zeros      []core.ZeroDeclaration
	nextClient int64
	nextInv    int64
	nextZero   int64
}

func (st state) clone() state {
	out := st
	if st.info != nil {
		cp := *st.info
		out.info = &cp
	}
	out.clients = make(map[int64]core.Client, len(st.clients))
	for k, v := range st.clients {
		out.clients[k] = v
	}
	out.invoices = make(map[int64]core.Invoice, len(st.invoices))
	for k, v := range st.invoices {
		out.invoices[k] = v
	}
	out.zeros = append([]core.ZeroDeclaration(nil), st.zeros...)
	return out
}

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state
	fail error
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		st: state{
			clients:  map[int64]core.Client{},
			invoices: map[int64]core.Invoice{},
		},
		now: time.Now,
	}
}

// FailWith makes every subsequent call return err wrapped as a storage
// error. Passing nil restores normal behaviour.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *Store) check(op string) error {
	if s.fail != nil {
		return core.NewStorageError(op, s.fail)
	}
	return nil
}

func (s *Store) LoadPersonalInfo(_ context.Context) (core.PersonalInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("load personal info"); err != nil {
		return core.PersonalInfo{}, err
	}
	if s.st.info == nil {
		return core.PersonalInfo{}, store.ErrNotFound
	}
	return *s.st.info, nil
}

func (s *Store) SavePersonalInfo(_ context.Context, pi core.PersonalInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("save personal info"); err != nil {
		return err
	}
	pi.UpdatedAt = s.now()
	s.st.info = &pi
	return nil
}

func (s *Store) CreateClient(_ context.Context, c core.Client) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("create client"); err != nil {
		return 0, err
	}
	s.st.nextClient++
	c.ID = s.st.nextClient
	c.CreatedAt = s.now()
	s.st.clients[c.ID] = c
	return c.ID, nil
}

func (s *Store) UpdateClient(_ context.Context, c core.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("update client"); err != nil {
		return err
	}
	old, ok := s.st.clients[c.ID]
	if !ok {
		return fmt.Errorf("client %d: %w", c.ID, store.ErrNotFound)
	}
	c.CreatedAt = old.CreatedAt
	s.st.clients[c.ID] = c
	return nil
}

func (s *Store) GetClient(_ context.Context, id int64) (core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("get client"); err != nil {
		return core.Client{}, err
	}
	c, ok := s.st.clients[id]
	if !ok {
		return core.Client{}, fmt.Errorf("client %d: %w", id, store.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListClients(_ context.Context) ([]core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list clients"); err != nil {
		return nil, err
	}
	out := make([]core.Client, 0, len(s.st.clients))
	for _, c := range s.st.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateInvoice(_ context.Context, inv core.Invoice) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("create invoice"); err != nil {
		return 0, err
	}
	if _, ok := s.st.clients[inv.ClientID]; !ok {
		return 0, core.NewStorageError("create invoice", errors.New("FOREIGN KEY constraint failed"))
	}
	for _, existing := range s.st.invoices {
		if existing.Number == inv.Number {
			return 0, core.NewStorageError("create invoice", errors.New("UNIQUE constraint failed: invoices.number"))
		}
	}
	s.st.nextInv++
	inv.ID = s.st.nextInv
	inv.CreatedAt = s.now()
	inv.UpdatedAt = inv.CreatedAt
	s.st.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (s *Store) UpdateInvoice(_ context.Context, inv core.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("update invoice"); err != nil {
		return err
	}
	old, ok := s.st.invoices[inv.ID]
	if !ok {
		return fmt.Errorf("invoice %d: %w", inv.ID, store.ErrNotFound)
	}
	inv.CreatedAt = old.CreatedAt
	inv.UpdatedAt = s.now()
	s.st.invoices[inv.ID] = inv
	return nil
}

func (s *Store) GetInvoice(_ context.Context, id int64) (core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("get invoice"); err != nil {
		return core.Invoice{}, err
	}
	inv, ok := s.st.invoices[id]
	if !ok {
		return core.Invoice{}, fmt.Errorf("invoice %d: %w", id, store.ErrNotFound)
	}
	return inv, nil
}

func (s *Store) QueryInvoices(_ context.Context, f store.InvoiceFilter) ([]core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("query invoices"); err != nil {
		return nil, err
	}
	var out []core.Invoice
	for _, inv := range s.st.invoices {
		if f.Match(inv) {
			out = append(out, inv)
		}
	}
	sortInvoices(out)
	return out, nil
}

func (s *Store) MarkDeclared(_ context.Context, kind core.DeclarationKind, p core.Period) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("mark declared"); err != nil {
		return 0, err
	}
	var n int64
	f := store.PaidIn(p)
	for id, inv := range s.st.invoices {
		if !f.Match(inv) {
			continue
		}
		if kind == core.KindTVA {
			inv.VATDeclared = true
		} else {
			inv.UrssafDeclared = true
		}
		inv.UpdatedAt = s.now()
		s.st.invoices[id] = inv
		n++
	}
	return n, nil
}

func (s *Store) PendingLedger(_ context.Context, limit, maxAttempts int) ([]core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("pending ledger"); err != nil {
		return nil, err
	}
	var out []core.Invoice
	for _, inv := range s.st.invoices {
		if inv.LedgerVersion > inv.LedgerSyncedVersion && inv.LedgerSyncAttempts < maxAttempts {
			out = append(out, inv)
		}
	}
	sortInvoices(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkLedgerSynced(_ context.Context, id, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("mark ledger synced"); err != nil {
		return err
	}
	inv, ok := s.st.invoices[id]
	if !ok {
		return fmt.Errorf("invoice %d: %w", id, store.ErrNotFound)
	}
	if version > inv.LedgerSyncedVersion {
		inv.LedgerSyncedVersion = version
	}
	inv.LedgerSyncAttempts = 0
	s.st.invoices[id] = inv
	return nil
}

func (s *Store) MarkLedgerSyncFailed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("mark ledger sync failed"); err != nil {
		return err
	}
	inv, ok := s.st.invoices[id]
	if !ok {
		return fmt.Errorf("invoice %d: %w", id, store.ErrNotFound)
	}
	inv.LedgerSyncAttempts++
	s.st.invoices[id] = inv
	return nil
}

func (s *Store) ZeroDeclarationExists(_ context.Context, kind core.DeclarationKind, p core.Period) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("query zero declaration"); err != nil {
		return false, err
	}
	return s.findZero(kind, p.Start, p.End) >= 0, nil
}

func (s *Store) InsertZeroDeclaration(_ context.Context, z core.ZeroDeclaration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("insert zero declaration"); err != nil {
		return false, err
	}
	if s.findZero(z.Kind, z.PeriodStart, z.PeriodEnd) >= 0 {
		return false, nil
	}
	s.st.nextZero++
	z.ID = s.st.nextZero
	if z.DeclaredAt.IsZero() {
		z.DeclaredAt = s.now()
	}
	s.st.zeros = append(s.st.zeros, z)
	return true, nil
}

func (s *Store) ListZeroDeclarations(_ context.Context, kind core.DeclarationKind, year int) ([]core.ZeroDeclaration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list zero declarations"); err != nil {
		return nil, err
	}
	var out []core.ZeroDeclaration
	for _, z := range s.st.zeros {
		if z.Kind == kind && z.PeriodStart.Year() == year {
			out = append(out, z)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	return out, nil
}

func (s *Store) findZero(kind core.DeclarationKind, start, end core.Date) int {
	for i, z := range s.st.zeros {
		if z.Kind == kind && z.PeriodStart.Equal(start) && z.PeriodEnd.Equal(end) {
			return i
		}
	}
	return -1
}

// InTx serialises transactions and restores a snapshot when fn fails.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check("ping")
}

func (s *Store) Close() error { return nil }

func sortInvoices(in []core.Invoice) {
	sort.Slice(in, func(i, j int) bool {
		if !in[i].IssueDate.Equal(in[j].IssueDate) {
			return in[i].IssueDate.Before(in[j].IssueDate)
		}
		return in[i].Number < in[j].Number
	})
}
