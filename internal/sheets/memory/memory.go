package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ledger/internal/sheets"
)

var _ sheets.TablePublisher = (*Store)(nil)

// Store keeps published tables in memory, keyed by name.
type Store struct {
	mu     sync.Mutex
	tables map[string]sheets.Table
	writes int
}

func New() *Store {
	return &Store{tables: make(map[string]sheets.Table)}
}

// PublishTable replaces the stored copy of t and returns a synthetic
// reference.
func (s *Store) PublishTable(_ context.Context, t sheets.Table) (string, error) {
	if t.Name == "" {
		return "", fmt.Errorf("table name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.Name] = clone(t)
	s.writes++
	return fmt.Sprintf("mem:%s:%d", t.Name, len(t.Rows)+1), nil
}

// Table returns a copy of the named table.
func (s *Store) Table(name string) (sheets.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return sheets.Table{}, false
	}
	return clone(t), true
}

// Names lists the stored tables in sorted order.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tables))
	for name := range s.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Writes counts PublishTable calls that succeeded.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func clone(t sheets.Table) sheets.Table {
	out := sheets.Table{Name: t.Name, Header: append([]string(nil), t.Header...)}
	for _, r := range t.Rows {
		out.Rows = append(out.Rows, append([]any(nil), r...))
	}
	return out
}
