package adjustment

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"simplepos/internal/amount"
	"simplepos/internal/domain"
	"simplepos/internal/submitqueue"
)

var (
	ErrNameRequired         = errors.New("please enter a product name")
	ErrProductNotFound      = errors.New("product not found")
	ErrDuplicate            = errors.New("item already in adjustment list")
	ErrIndexOutOfRange      = errors.New("adjustment index out of range")
	ErrUnknownField         = errors.New("unknown adjustment field")
	ErrInvalidUnit          = errors.New("invalid unit")
	ErrInvalidType          = errors.New("invalid adjustment type")
	ErrInvalidQuantity      = errors.New("please set valid quantities for all items (0 or greater)")
	ErrEmpty                = errors.New("no items to adjust")
	ErrConfirmationRequired = errors.New("clearing all adjustments requires confirmation")
)

const (
	FieldUnit     = "unit"
	FieldType     = "type"
	FieldQuantity = "quantity"
)

type Lookup interface {
	Find(name string) (domain.Product, bool)
}

// Staging is the list of pending stock adjustments, at most one per
// product.
type Staging struct {
	mu    sync.RWMutex
	items []domain.AdjustmentItem
	gate  submitqueue.Gate
}

func New() *Staging {
	return &Staging{}
}

// Add stages a product by name with unit pc, type add and a blank quantity.
func (s *Staging) Add(catalog Lookup, name string) (domain.AdjustmentItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.AdjustmentItem{}, ErrNameRequired
	}
	product, ok := catalog.Find(name)
	if !ok {
		return domain.AdjustmentItem{}, ErrProductNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.Name == product.Name {
			return domain.AdjustmentItem{}, ErrDuplicate
		}
	}

	item := domain.AdjustmentItem{
		Name:     product.Name,
		Unit:     domain.UnitPiece,
		Type:     domain.AdjustmentAdd,
		Quantity: decimal.Zero,
		Blank:    true,
	}
	s.items = append(s.items, item)
	return item, nil
}

// Edit changes one field of the item at index in place.
func (s *Staging) Edit(index int, field string, value string) (domain.AdjustmentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.items) {
		return domain.AdjustmentItem{}, ErrIndexOutOfRange
	}
	item := &s.items[index]

	switch strings.ToLower(strings.TrimSpace(field)) {
	case FieldUnit:
		unit, ok := domain.ParseUnit(value)
		if !ok {
			return domain.AdjustmentItem{}, ErrInvalidUnit
		}
		item.Unit = unit
	case FieldType:
		kind, ok := domain.ParseAdjustmentType(value)
		if !ok {
			return domain.AdjustmentItem{}, ErrInvalidType
		}
		item.Type = kind
	case FieldQuantity:
		clean := SanitizeQuantity(value)
		if clean == "" {
			item.Quantity = decimal.Zero
			item.Blank = true
		} else {
			item.Quantity = amount.Parse(clean)
			item.Blank = false
		}
	default:
		return domain.AdjustmentItem{}, ErrUnknownField
	}

	return *item, nil
}

func (s *Staging) Remove(index int) (domain.AdjustmentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.items) {
		return domain.AdjustmentItem{}, ErrIndexOutOfRange
	}
	removed := s.items[index]
	s.items = append(s.items[:index:index], s.items[index+1:]...)
	return removed, nil
}

func (s *Staging) Clear(confirmed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return ErrEmpty
	}
	if !confirmed {
		return ErrConfirmationRequired
	}
	s.items = nil
	return nil
}

func (s *Staging) Items() []domain.AdjustmentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AdjustmentItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Staging) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

type SubmitResult struct {
	submitqueue.Result
	Removed int
}

// SubmitAll validates every staged item, then drains them through queue.
// Nothing is sent when any quantity is negative. After the drain the
// submitted items leave the list if at least one succeeded; under
// RemoveSucceeded only the successful ones do.
func (s *Staging) SubmitAll(ctx context.Context, queue *submitqueue.Queue[domain.AdjustmentItem], policy submitqueue.RemovalPolicy) (SubmitResult, error) {
	if err := s.gate.Enter(); err != nil {
		return SubmitResult{}, err
	}
	defer s.gate.Leave()

	items := s.Items()
	if len(items) == 0 {
		return SubmitResult{}, ErrEmpty
	}
	for _, item := range items {
		if item.Quantity.IsNegative() {
			return SubmitResult{}, ErrInvalidQuantity
		}
	}

	res := queue.Drain(ctx, items, nil)
	out := SubmitResult{Result: res}
	if res.SuccessCount() == 0 {
		return out, nil
	}

	var names []string
	if policy == submitqueue.RemoveSucceeded {
		for _, idx := range res.Succeeded {
			names = append(names, items[idx].Name)
		}
	} else {
		for _, item := range items {
			names = append(names, item.Name)
		}
	}
	out.Removed = s.removeNames(names)
	return out, nil
}

func (s *Staging) removeNames(names []string) int {
	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		drop[name] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]domain.AdjustmentItem, 0, len(s.items))
	for _, item := range s.items {
		if _, ok := drop[item.Name]; ok {
			continue
		}
		kept = append(kept, item)
	}
	removed := len(s.items) - len(kept)
	s.items = kept
	return removed
}

// SanitizeQuantity keeps digits and the first decimal point only.
func SanitizeQuantity(raw string) string {
	var b strings.Builder
	seenDot := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !seenDot:
			seenDot = true
			b.WriteRune(r)
		}
	}
	return b.String()
}
