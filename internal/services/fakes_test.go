package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
)

// memTemplateStore applies the same gate and compare-and-swap rules as the
// SQLite repository.
type memTemplateStore struct {
	mu          sync.Mutex
	templates   map[string]*core.RecurringTemplate
	txns        []core.Transaction
	listErr     error
	listCalls   int
	listGate    chan struct{}
	appendErr   map[string]error
	appendCalls map[string]int
	// beforeAppend runs inside AppendOccurrence before the watermark check.
	beforeAppend func(s *memTemplateStore, id string)
}

func newMemTemplateStore(tpls ...core.RecurringTemplate) *memTemplateStore {
	s := &memTemplateStore{
		templates:   map[string]*core.RecurringTemplate{},
		appendErr:   map[string]error{},
		appendCalls: map[string]int{},
	}
	for i := range tpls {
		tpl := tpls[i]
		s.templates[tpl.ID] = &tpl
	}
	return s
}

func (s *memTemplateStore) ListDueTemplates(ctx context.Context, asOf core.Date, userID string) ([]core.RecurringTemplate, error) {
	s.mu.Lock()
	s.listCalls++
	gate := s.listGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []core.RecurringTemplate
	for _, tpl := range s.templates {
		if userID != "" && tpl.UserID != userID {
			continue
		}
		due, err := IsDue(*tpl, asOf)
		if err != nil || due {
			out = append(out, *tpl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memTemplateStore) AppendOccurrence(_ context.Context, tpl core.RecurringTemplate, on core.Date) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendCalls[tpl.ID]++
	if err := s.appendErr[tpl.ID]; err != nil {
		return core.Transaction{}, err
	}
	if s.beforeAppend != nil {
		s.beforeAppend(s, tpl.ID)
	}
	stored := s.templates[tpl.ID]
	if stored == nil || !stored.IsActive || !stored.LastGeneratedDate.Equal(tpl.LastGeneratedDate) {
		return core.Transaction{}, fmt.Errorf("template %s: %w", tpl.ID, core.ErrWatermarkMoved)
	}
	stored.LastGeneratedDate = on
	t := tpl.Occurrence(on)
	t.ID = fmt.Sprintf("txn-%d", len(s.txns)+1)
	s.txns = append(s.txns, t)
	return t, nil
}

func (s *memTemplateStore) template(id string) core.RecurringTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.templates[id]
}

func (s *memTemplateStore) transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.txns...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e *amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

func at(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 12, 0, 0, 0, time.UTC)
}

var errBoom = errors.New("boom")
