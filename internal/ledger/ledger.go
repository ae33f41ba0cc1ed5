package ledger

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"simplepos/internal/domain"
)

var (
	ErrIndexOutOfRange      = errors.New("sale line index out of range")
	ErrConfirmationRequired = errors.New("clearing all sale lines requires confirmation")
)

// Ledger is the ordered list of completed, not yet submitted sale lines.
type Ledger struct {
	mu    sync.RWMutex
	lines []domain.SaleLine
}

func New() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Append(line domain.SaleLine) {
	l.mu.Lock()
	l.lines = append(l.lines, line)
	l.mu.Unlock()
}

// RemoveAt deletes one line. Later lines shift down by one, so callers must
// re-read indices after every removal.
func (l *Ledger) RemoveAt(index int) (domain.SaleLine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.lines) {
		return domain.SaleLine{}, ErrIndexOutOfRange
	}
	removed := l.lines[index]
	l.lines = append(l.lines[:index:index], l.lines[index+1:]...)
	return removed, nil
}

func (l *Ledger) Clear(confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	l.mu.Lock()
	l.lines = nil
	l.mu.Unlock()
	return nil
}

// RemoveIDs drops the lines with the given ids and reports how many were
// found.
func (l *Ledger) RemoveIDs(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	kept := make([]domain.SaleLine, 0, len(l.lines))
	for _, line := range l.lines {
		if _, ok := drop[line.ID]; ok {
			continue
		}
		kept = append(kept, line)
	}
	removed := len(l.lines) - len(kept)
	l.lines = kept
	return removed
}

func (l *Ledger) Lines() []domain.SaleLine {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.SaleLine, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.lines)
}

func (l *Ledger) GrandTotal() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := decimal.Zero
	for _, line := range l.lines {
		total = total.Add(line.Total)
	}
	return total
}
