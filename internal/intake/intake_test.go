package intake

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simplepos/internal/domain"
	"simplepos/internal/store/memory"
)

var oneStop = domain.Store{ID: "store1", Name: "One Stop", StockSlot: domain.StockSlotStore1}

func TestSaleFormFields(t *testing.T) {
	line := domain.SaleLine{
		Item:          "Rice 5kg",
		Unit:          domain.UnitDozen,
		Quantity:      decimal.NewFromInt(2),
		Price:         decimal.NewFromFloat(15),
		Discount:      decimal.NewFromFloat(3),
		Extra:         decimal.NewFromFloat(1),
		Total:         decimal.NewFromFloat(28),
		PaymentMethod: "Cash",
	}

	values := SaleForm("https://forms.example/sale", line, oneStop).Values()
	assert.Equal(t, "Rice 5kg", values.Get("entry.1617444836"))
	assert.Equal(t, "dz", values.Get("entry.591095593"))
	assert.Equal(t, "2", values.Get("entry.268864996"))
	assert.Equal(t, "15", values.Get("entry.53788851"))
	assert.Equal(t, "3", values.Get("entry.411866054"))
	assert.Equal(t, "1", values.Get("entry.511901350"))
	assert.Equal(t, "28", values.Get("entry.1094112162"))
	assert.Equal(t, "Cash", values.Get("entry.970001475"))
	assert.Equal(t, "One Stop", values.Get("entry.106245113"))

	unnamed := SaleForm("x", line, domain.Store{ID: "store9"}).Values()
	assert.Equal(t, "store9", unnamed.Get("entry.106245113"))
}

func TestAdjustmentFormMapsTypeAndBlankQuantity(t *testing.T) {
	item := domain.AdjustmentItem{Name: "Soap", Unit: domain.UnitPiece, Type: domain.AdjustmentRemove, Blank: true}
	values := AdjustmentForm("x", item, oneStop).Values()
	assert.Equal(t, "Soap", values.Get("entry.1351663693"))
	assert.Equal(t, "pc", values.Get("entry.2099316372"))
	assert.Equal(t, "0", values.Get("entry.1838734272"))
	assert.Equal(t, "Remove", values.Get("entry.1785029976"))
	assert.Equal(t, "One Stop", values.Get("entry.1678851527"))

	item = domain.AdjustmentItem{Name: "Soap", Unit: "box", Type: domain.AdjustmentSet, Quantity: decimal.RequireFromString("2.5")}
	values = AdjustmentForm("x", item, domain.Store{ID: "s"}).Values()
	assert.Equal(t, "box", values.Get("entry.2099316372"))
	assert.Equal(t, "2.5", values.Get("entry.1838734272"))
	assert.Equal(t, "Set", values.Get("entry.1785029976"))
	assert.Equal(t, "", values.Get("entry.1678851527"))
}

func TestEncodeKeepsFieldOrder(t *testing.T) {
	form := Form{Fields: []Field{{Name: "b", Value: "x y"}, {Name: "a", Value: "&"}}}
	assert.Equal(t, "b=x+y&a=%26", form.Encode())
}

func TestHTTPSinkPostsURLEncodedBody(t *testing.T) {
	var got url.Values
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		got, _ = url.ParseQuery(string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewHTTPSink(time.Second, zerolog.Nop())
	form := Form{Name: "sale", Action: srv.URL, Fields: []Field{{Name: "entry.1", Value: "Rice"}}}
	require.NoError(t, sink.Submit(context.Background(), form))
	assert.Equal(t, "application/x-www-form-urlencoded", contentType)
	assert.Equal(t, "Rice", got.Get("entry.1"))
}

func TestHTTPSinkTreatsAnyResponseAsDelivered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	sink := NewHTTPSink(time.Second, zerolog.Nop())
	assert.NoError(t, sink.Submit(context.Background(), Form{Name: "sale", Action: srv.URL}))
}

func TestHTTPSinkFailsOnTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	action := srv.URL
	srv.Close()

	sink := NewHTTPSink(time.Second, zerolog.Nop())
	assert.Error(t, sink.Submit(context.Background(), Form{Name: "sale", Action: action}))
	assert.ErrorIs(t, sink.Submit(context.Background(), Form{Name: "sale"}), ErrNoAction)
}

func TestFallbackSink(t *testing.T) {
	primaryErr := errors.New("offline")
	var fallbackCalls int
	fallback := SinkFunc(func(context.Context, Form) error {
		fallbackCalls++
		return nil
	})

	ok := NewFallbackSink(SinkFunc(func(context.Context, Form) error { return nil }), fallback, zerolog.Nop())
	require.NoError(t, ok.Submit(context.Background(), Form{}))
	assert.Equal(t, 0, fallbackCalls)

	failing := NewFallbackSink(SinkFunc(func(context.Context, Form) error { return primaryErr }), fallback, zerolog.Nop())
	require.NoError(t, failing.Submit(context.Background(), Form{}))
	assert.Equal(t, 1, fallbackCalls)

	noFallback := NewFallbackSink(SinkFunc(func(context.Context, Form) error { return primaryErr }), nil, zerolog.Nop())
	assert.ErrorIs(t, noFallback.Submit(context.Background(), Form{}), primaryErr)
}

func TestDetachedSinkReportsSuccessAndDeliversInBackground(t *testing.T) {
	var delivered atomic.Int32
	release := make(chan struct{})
	inner := SinkFunc(func(ctx context.Context, _ Form) error {
		<-release
		delivered.Add(1)
		return errors.New("ignored")
	})

	sink := NewDetachedSink(inner, time.Second, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sink.Submit(ctx, Form{Name: "adjustment"}))
	cancel()
	assert.Equal(t, int32(0), delivered.Load())

	close(release)
	sink.Wait()
	assert.Equal(t, int32(1), delivered.Load())
}

func TestRecordSinkStoresSubmission(t *testing.T) {
	repo := memory.New()
	sink := NewRecordSink(repo)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sink.Submit(context.Background(), Form{Name: SaleFormName, Action: "x", Fields: []Field{{Name: "k", Value: "v"}}})
		}()
	}
	wg.Wait()

	subs, err := repo.ListSubmissions(context.Background(), SaleFormName, 0)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, "v", subs[0].Fields["k"])
	assert.NotEmpty(t, subs[0].ID)
}
