package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"

	"simplepos/internal/domain"
)

// ErrSuperseded is returned when a load finished after a newer load had
// already been dispatched; its result is dropped.
var ErrSuperseded = errors.New("catalog load superseded by a newer request")

type Source interface {
	Load(ctx context.Context, slot domain.StockSlot) ([]domain.Product, error)
}

// Catalog is the in-memory product list of one session. It is only ever
// replaced as a whole.
type Catalog struct {
	mu         sync.RWMutex
	dispatched uint64
	products   []domain.Product
	byName     map[string]int
}

func New() *Catalog {
	return &Catalog{products: []domain.Product{}, byName: map[string]int{}}
}

// Reload loads a fresh product list and installs it unless a newer reload
// was started meanwhile. A failed load installs an empty catalog and
// returns the load error.
func (c *Catalog) Reload(ctx context.Context, src Source, slot domain.StockSlot) (int, error) {
	seq := c.dispatch()
	products, loadErr := src.Load(ctx, slot)
	if products == nil {
		products = []domain.Product{}
	}
	if !c.apply(seq, products) {
		return 0, ErrSuperseded
	}
	return len(products), loadErr
}

// Replace installs products directly, fencing out any reload in flight.
func (c *Catalog) Replace(products []domain.Product) {
	c.apply(c.dispatch(), products)
}

func (c *Catalog) dispatch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatched++
	return c.dispatched
}

func (c *Catalog) apply(seq uint64, products []domain.Product) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.dispatched {
		return false
	}

	byName := make(map[string]int, len(products))
	for i, p := range products {
		key := foldName(p.Name)
		if _, exists := byName[key]; !exists {
			byName[key] = i
		}
	}
	c.products = products
	c.byName = byName
	return true
}

// Find matches name exactly, ignoring case. With duplicate names the first
// row of the feed wins.
func (c *Catalog) Find(name string) (domain.Product, bool) {
	key := foldName(name)
	if key == "" {
		return domain.Product{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.byName[key]
	if !ok {
		return domain.Product{}, false
	}
	return c.products[idx], true
}

func (c *Catalog) Products() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

// Search returns products whose name contains term, ignoring case, in feed
// order. An empty term matches everything; limit <= 0 means no limit.
func (c *Catalog) Search(term string, limit int) []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Filter(c.products, term, limit)
}

func Filter(products []domain.Product, term string, limit int) []domain.Product {
	needle := foldName(term)
	out := make([]domain.Product, 0)
	for _, p := range products {
		if limit > 0 && len(out) >= limit {
			break
		}
		if needle == "" || strings.Contains(foldName(p.Name), needle) {
			out = append(out, p)
		}
	}
	return out
}
