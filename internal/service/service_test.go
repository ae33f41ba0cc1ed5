package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simplepos/internal/adjustment"
	"simplepos/internal/catalog"
	"simplepos/internal/domain"
	"simplepos/internal/intake"
	"simplepos/internal/ledger"
	"simplepos/internal/stockstatus"
	"simplepos/internal/submitqueue"
)

const testFeed = "Product Name,Ct,Dz,Pc,Store 1,Store 2\n" +
	"Rice 5kg,300,170,15,0,5\n" +
	"Soap,120,60,5.5,0,0 pc\n" +
	"Sugar,200,100,9,3,7\n"

var testStore = domain.Store{ID: "store1", Name: "One Stop", StockSlot: domain.StockSlotStore1}

type recordingSink struct {
	mu    sync.Mutex
	forms []intake.Form
	fail  map[string]bool
}

func (r *recordingSink) Submit(_ context.Context, form intake.Form) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range form.Fields {
		if r.fail[f.Value] {
			return errors.New("transport down")
		}
	}
	r.forms = append(r.forms, form)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.forms)
}

type fixture struct {
	svc   *Service
	sales *recordingSink
	adj   *recordingSink
	ctx   context.Context
	feed  *httptest.Server
}

func newFixture(t *testing.T, policy submitqueue.RemovalPolicy) *fixture {
	t.Helper()
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testFeed))
	}))
	t.Cleanup(feed.Close)

	f := &fixture{
		sales: &recordingSink{fail: map[string]bool{}},
		adj:   &recordingSink{fail: map[string]bool{}},
		feed:  feed,
	}
	f.svc = New(Options{
		Catalog:           catalog.NewLoader(feed.URL, time.Second),
		SaleSink:          f.sales,
		AdjustmentSink:    f.adj,
		SaleFormURL:       "https://forms.example/sale",
		AdjustmentFormURL: "https://forms.example/adjust",
		RemovalPolicy:     policy,
		Log:               zerolog.Nop(),
	})
	f.svc.now = func() time.Time { return time.Date(2026, 5, 1, 14, 5, 9, 0, time.Local) }

	sess, loaded := f.svc.OpenSession(context.Background(), testStore, "Cashier", time.Now().Add(time.Hour))
	require.Equal(t, 3, loaded.Count)
	require.Empty(t, loaded.Warning)
	f.ctx = WithActor(context.Background(), domain.Actor{Username: "Cashier", StoreID: testStore.ID, SessionID: sess.ID})
	return f
}

func TestRequiresSession(t *testing.T) {
	f := newFixture(t, submitqueue.RemovePrefix)

	_, err := f.svc.ListSales(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)

	stale := WithActor(context.Background(), domain.Actor{SessionID: "gone"})
	_, err = f.svc.ListSales(stale)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, f.svc.CloseSession(f.ctx))
	_, err = f.svc.ListSales(f.ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, f.svc.CloseSession(f.ctx), ErrUnauthorized)
}

func TestOpenSessionWithUnreachableFeedStartsEmpty(t *testing.T) {
	f := newFixture(t, submitqueue.RemovePrefix)
	f.feed.Close()

	sess, loaded := f.svc.OpenSession(context.Background(), testStore, "Cashier", time.Now().Add(time.Hour))
	assert.Equal(t, 0, loaded.Count)
	assert.NotEmpty(t, loaded.Warning)
	assert.Equal(t, 0, sess.Catalog.Len())
}

func TestPriceAndTotal(t *testing.T) {
	f := newFixture(t, submitqueue.RemovePrefix)

	price, err := f.svc.Price(f.ctx, "rice 5KG", "dz")
	require.NoError(t, err)
	assert.True(t, price.Found)
	assert.Equal(t, "170.00", price.Price)

	missing, err := f.svc.Price(f.ctx, "Flour", "")
	require.NoError(t, err)
	assert.False(t, missing.Found)
	assert.Equal(t, "", missing.Price)
	assert.Equal(t, domain.UnitPiece, missing.Unit)

	_, err = f.svc.Price(f.ctx, "Rice 5kg", "box")
	assert.ErrorIs(t, err, ErrInvalidUnit)

	total := f.svc.Total(domain.TotalRequest{Quantity: "2", Price: "15", Discount: "3", Extra: "1"})
	assert.Equal(t, "28.00", total.Total)
	assert.Equal(t, "0.00", f.svc.Total(domain.TotalRequest{Quantity: "abc", Price: "15"}).Total)
}

func TestSearchCatalog(t *testing.T) {
	f := newFixture(t, submitqueue.RemovePrefix)

	resp, err := f.svc.SearchCatalog(f.ctx, "s", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)

	empty, err := f.svc.SuggestAdjustments(f.ctx, "  ")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Count)
}

func TestAddSaleAppliesDefaults(t *testing.T) {
	f := newFixture(t, submitqueue.RemovePrefix)

	_, err := f.svc.AddSale(f.ctx, domain.SaleRequest{Item: "  "})
	assert.ErrorIs(t, err, ErrItemRequired)

	line, err := f.svc.AddSale(f.ctx, domain.SaleRequest{Item: "Rice 5kg", Quantity: "2", Discount: "3", Extra: "1"})
	require.NoError(t, err)
	assert.Equal(t, domain.UnitPiece, line.Unit)
	assert.Equal(t, "15.00", line.Price)
	assert.Equal(t, "28.00", line.Total)
	assert.Equal(t, "Cash", line.PaymentMethod)
	assert.Equal(t, "14:05:09", line.Timestamp)
	assert.Equal(t, "store1", line.Store)
	assert.NotEmpty(t, line.ID)

	unknown, err := f.svc.AddSale(f.ctx, domain.SaleRequest{Item: "Mystery", Quantity: "1", PaymentMethod: "Card"})
	require.NoError(t, err)
	assert.Equal(t, "0.00", unknown.Total)
	assert.Equal(t, "Card", unknown.PaymentMethod)

	list, err := f.svc.ListSales(f.ctx)
	require.NoError(t, err)
	assert.Len(t, list.Lines, 2)
	assert.Equal(t, "28.00", list.GrandTotal)
}

func TestAddSaleRejectsNegativeQuantity(t *testing.T) {
	f := newFixture(t, submitqueue.RemovePrefix)

	_, err := f.svc.AddSale(f.ctx, domain.SaleRequest{Item: "Rice 5kg", Quantity: "-4"})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	list, err := f.svc.ListSales(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, list.Lines)
	assert.Equal(t, "0.00", list.GrandTotal)
}

type mapFeedCache struct {
	mu     sync.Mutex
	bodies map[string]string
}

func (m *mapFeedCache) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.bodies[key]
	return body, ok, nil
}

func (m *mapFeedCache) Set(_ context.Context, key string, body string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies[key] = body
	return nil
}

func TestReloadCatalogSeesChangedFeedDespiteCache(t *testing.T) {
	var mu sync.Mutex
	body := testFeed
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(feed.Close)

	loader := catalog.NewLoader(feed.URL, time.Second,
		catalog.WithFeedCache(&mapFeedCache{bodies: map[string]string{}}, time.Minute))
	svc := New(Options{Catalog: loader, Log: zerolog.Nop()})
	sess, loaded := svc.OpenSession(context.Background(), testStore, "Cashier", time.Now().Add(time.Hour))
	require.Equal(t, 3, loaded.Count)
	ctx := WithActor(context.Background(), domain.Actor{Username: "Cashier", StoreID: testStore.ID, SessionID: sess.ID})

	mu.Lock()
	body = testFeed + "Tea,50,20,2,1,1\n"
	mu.Unlock()

	reloaded, err := svc.ReloadCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, reloaded.Count)

	price, err := svc.Price(ctx, "Tea", "pc")
	require.NoError(t, err)
	assert.True(t, price.Found)
	assert.Equal(t, "2.00", price.Price)

	report, _, err := svc.StockLevels(ctx, "tea", true)
	require.NoError(t, err)
	assert.Len(t, report.Rows, 1)
}

func TestRemoveAndClearSales(t *testing.T) {
	f := newFixture(t, submitqueue.RemovePrefix)
	for _, qty := range []string{"1", "2", "3"} {
		_, err := f.svc.AddSale(f.ctx, domain.SaleRequest{Item: "Sugar", Quantity: qty})
		require.NoError(t, err)
	}

	list, err := f.svc.RemoveSale(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, list.Lines, 2)
	assert.Equal(t, "1", list.Lines[0].Quantity)
	assert.Equal(t, "3", list.Lines[1].Quantity)
	assert.Equal(t, "36.00", list.GrandTotal)

	_, err = f.svc.RemoveSale(f.ctx, 5)
	assert.ErrorIs(t, err, ledger.ErrIndexOutOfRange)

	_, err = f.svc.ClearSales(f.ctx, false)
	assert.ErrorIs(t, err, ledger.ErrConfirmationRequired)

	list, err = f.svc.ClearSales(f.ctx, true)
	require.NoError(t, err)
	assert.Empty(t, list.Lines)
}

func TestSubmitSalesRemovesPrefixOfSuccessCount(t *testing.T) {
	f := newFixture(t, submitqueue.RemovePrefix)
	for _, item := range []string{"Rice 5kg", "Soap", "Sugar"} {
		_, err := f.svc.AddSale(f.ctx, domain.SaleRequest{Item: item, Quantity: "1"})
		require.NoError(t, err)
	}
	f.sales.fail["Soap"] = true

	resp, err := f.svc.SubmitSales(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Submitted)
	assert.Equal(t, 2, resp.Removed)
	assert.Equal(t, 1, resp.Remaining)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 1, resp.Errors[0].Index)

	list, err := f.svc.ListSales(f.ctx)
	require.NoError(t, err)
	require.Len(t, list.Lines, 1)
	assert.Equal(t, "Sugar", list.Lines[0].Item)

	require.Equal(t, 2, f.sales.count())
	first := f.sales.forms[0].Values()
	assert.Equal(t, "Rice 5kg", first.Get("entry.1617444836"))
	assert.Equal(t, "One Stop", first.Get("entry.106245113"))
}

func TestSubmitSalesSucceededPolicyKeepsFailures(t *testing.T) {
	f := newFixture(t, submitqueue.RemoveSucceeded)
	for _, item := range []string{"Rice 5kg", "Soap", "Sugar"} {
		_, err := f.svc.AddSale(f.ctx, domain.SaleRequest{Item: item, Quantity: "1"})
		require.NoError(t, err)
	}
	f.sales.fail["Soap"] = true

	resp, err := f.svc.SubmitSales(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Removed)

	list, err := f.svc.ListSales(f.ctx)
	require.NoError(t, err)
	require.Len(t, list.Lines, 1)
	assert.Equal(t, "Soap", list.Lines[0].Item)
}

func TestSubmitSalesEmptyAndAllFailed(t *testing.T) {
	f := newFixture(t, submitqueue.RemovePrefix)

	_, err := f.svc.SubmitSales(f.ctx)
	assert.ErrorIs(t, err, ErrNothingToSubmit)

	_, err = f.svc.AddSale(f.ctx, domain.SaleRequest{Item: "Soap", Quantity: "1"})
	require.NoError(t, err)
	f.sales.fail["Soap"] = true

	resp, err := f.svc.SubmitSales(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Submitted)
	assert.Equal(t, 1, resp.Remaining)
}

func TestStockLevels(t *testing.T) {
	f := newFixture(t, submitqueue.RemovePrefix)

	report, warning, err := f.svc.StockLevels(f.ctx, "", false)
	require.NoError(t, err)
	assert.Empty(t, warning)
	assert.Equal(t, stockstatus.Summary{TotalProducts: 3, OutOfStock: 1, LowStock: 1}, report.Summary)

	filtered, _, err := f.svc.StockLevels(f.ctx, "SUG", false)
	require.NoError(t, err)
	require.Len(t, filtered.Rows, 1)
	assert.Equal(t, stockstatus.InStock, filtered.Rows[0].Status)

	f.feed.Close()
	failed, warning, err := f.svc.StockLevels(f.ctx, "", true)
	require.NoError(t, err)
	assert.NotEmpty(t, warning)
	assert.Empty(t, failed.Rows)
}

func TestAdjustmentFlow(t *testing.T) {
	f := newFixture(t, submitqueue.RemovePrefix)

	list, err := f.svc.AddAdjustment(f.ctx, "soap")
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Soap", list.Items[0].Name)
	assert.Equal(t, "", list.Items[0].Quantity)
	assert.Equal(t, "One Stop", list.StoreName)

	_, err = f.svc.AddAdjustment(f.ctx, "SOAP")
	assert.ErrorIs(t, err, adjustment.ErrDuplicate)
	_, err = f.svc.AddAdjustment(f.ctx, "Flour")
	assert.ErrorIs(t, err, adjustment.ErrProductNotFound)

	list, err = f.svc.EditAdjustment(f.ctx, 0, domain.AdjustmentEditRequest{Field: "quantity", Value: "4"})
	require.NoError(t, err)
	assert.Equal(t, "4", list.Items[0].Quantity)
	_, err = f.svc.EditAdjustment(f.ctx, 0, domain.AdjustmentEditRequest{Field: "type", Value: "set"})
	require.NoError(t, err)

	_, err = f.svc.AddAdjustment(f.ctx, "Sugar")
	require.NoError(t, err)
	list, err = f.svc.RemoveAdjustment(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)

	resp, err := f.svc.SubmitAdjustments(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Submitted)
	assert.Equal(t, 0, resp.Remaining)

	require.Equal(t, 1, f.adj.count())
	values := f.adj.forms[0].Values()
	assert.Equal(t, "Soap", values.Get("entry.1351663693"))
	assert.Equal(t, "4", values.Get("entry.1838734272"))
	assert.Equal(t, "Set", values.Get("entry.1785029976"))

	_, err = f.svc.SubmitAdjustments(f.ctx)
	assert.ErrorIs(t, err, adjustment.ErrEmpty)
	_, err = f.svc.ClearAdjustments(f.ctx, true)
	assert.ErrorIs(t, err, adjustment.ErrEmpty)
}
