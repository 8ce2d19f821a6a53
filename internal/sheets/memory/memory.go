package memory

import (
	"context"
	"fmt"
	"sync"

	"ledger/internal/sheets"
)

// Store is an in-memory TransactionExporter used by tests and by the export
// worker when no spreadsheet is configured.
type Store struct {
	mu   sync.Mutex
	rows []sheets.Row
}

var _ sheets.TransactionExporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Upsert replaces the row with the same transaction ID or appends a new one,
// returning a synthetic row reference.
func (s *Store) Upsert(_ context.Context, r sheets.Row) (string, error) {
	if r.TransactionID == "" {
		return "", fmt.Errorf("row without transaction id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].TransactionID == r.TransactionID {
			s.rows[i] = r
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	s.rows = append(s.rows, r)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Delete removes the row for transactionID. Missing rows are not an error.
func (s *Store) Delete(_ context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].TransactionID == transactionID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// Rows returns a copy of the stored rows in insertion order.
func (s *Store) Rows() []sheets.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.Row(nil), s.rows...)
}
