package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"simplepos/internal/amount"
	"simplepos/internal/catalog"
	"simplepos/internal/domain"
	"simplepos/internal/intake"
	"simplepos/internal/pricing"
	"simplepos/internal/session"
	"simplepos/internal/stockstatus"
	"simplepos/internal/submitqueue"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrItemRequired    = errors.New("please select an item")
	ErrInvalidUnit     = errors.New("invalid unit")
	ErrNothingToSubmit = errors.New("no items to submit")
	ErrInvalidQuantity = errors.New("quantity must not be negative")
)

const (
	DefaultSearchLimit   = 30
	defaultPaymentMethod = "Cash"
	saleTimestampLayout  = "15:04:05"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Catalog           catalog.Source
	SaleSink          intake.Sink
	AdjustmentSink    intake.Sink
	SaleFormURL       string
	AdjustmentFormURL string
	RemovalPolicy     submitqueue.RemovalPolicy
	Log               zerolog.Logger
}

type Service struct {
	sessions          *session.Manager
	source            catalog.Source
	saleSink          intake.Sink
	adjustmentSink    intake.Sink
	saleFormURL       string
	adjustmentFormURL string
	policy            submitqueue.RemovalPolicy
	log               zerolog.Logger
	now               func() time.Time
}

func New(opts Options) *Service {
	policy := opts.RemovalPolicy
	if policy == "" {
		policy = submitqueue.RemovePrefix
	}
	return &Service{
		sessions:          session.NewManager(),
		source:            opts.Catalog,
		saleSink:          opts.SaleSink,
		adjustmentSink:    opts.AdjustmentSink,
		saleFormURL:       opts.SaleFormURL,
		adjustmentFormURL: opts.AdjustmentFormURL,
		policy:            policy,
		log:               opts.Log.With().Str("component", "service").Logger(),
		now:               time.Now,
	}
}

func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

// OpenSession creates the working state for a cashier who just logged in
// and loads the store's catalog. A failed load does not fail the login; the
// session starts with an empty catalog and a warning.
func (s *Service) OpenSession(ctx context.Context, store domain.Store, username string, expiresAt time.Time) (*session.Session, domain.CatalogResponse) {
	sess := session.New(uuid.NewString(), store, username, expiresAt)
	sess.SaleQueue = submitqueue.New(
		func(line domain.SaleLine) string { return line.ID },
		func(ctx context.Context, line domain.SaleLine) error {
			return s.saleSink.Submit(ctx, intake.SaleForm(s.saleFormURL, line, store))
		},
		s.log.With().Str("session", sess.ID).Str("queue", "sales").Logger(),
	)
	sess.AdjustmentQueue = submitqueue.New(
		func(item domain.AdjustmentItem) string { return item.Name },
		func(ctx context.Context, item domain.AdjustmentItem) error {
			return s.adjustmentSink.Submit(ctx, intake.AdjustmentForm(s.adjustmentFormURL, item, store))
		},
		s.log.With().Str("session", sess.ID).Str("queue", "adjustments").Logger(),
	)
	s.sessions.Put(sess)

	s.log.Info().Str("session", sess.ID).Str("store", store.ID).Str("username", username).Msg("session opened")
	return sess, s.reload(ctx, sess)
}

func (s *Service) CloseSession(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || !s.sessions.Delete(actor.SessionID) {
		return ErrUnauthorized
	}
	s.log.Info().Str("session", actor.SessionID).Msg("session closed")
	return nil
}

func (s *Service) session(ctx context.Context) (*session.Session, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.SessionID == "" {
		return nil, ErrUnauthorized
	}
	sess, err := s.sessions.Get(actor.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return sess, nil
}

func (s *Service) ReloadCatalog(ctx context.Context) (domain.CatalogResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return domain.CatalogResponse{}, err
	}
	return s.reload(ctx, sess), nil
}

func (s *Service) reload(ctx context.Context, sess *session.Session) domain.CatalogResponse {
	count, err := sess.Catalog.Reload(catalog.ForceRefresh(ctx), s.source, sess.Store.StockSlot)
	resp := domain.CatalogResponse{Count: count}
	switch {
	case errors.Is(err, catalog.ErrSuperseded):
		resp.Count = sess.Catalog.Len()
	case err != nil:
		s.log.Warn().Err(err).Str("session", sess.ID).Msg("catalog load failed")
		resp.Warning = "could not load products; the catalog is empty until the next reload"
	}
	return resp
}

func (s *Service) SearchCatalog(ctx context.Context, term string, limit int) (domain.CatalogResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return domain.CatalogResponse{}, err
	}
	if limit < 1 {
		limit = DefaultSearchLimit
	}
	products := sess.Catalog.Search(term, limit)
	return domain.CatalogResponse{Products: products, Count: len(products)}, nil
}

func (s *Service) Price(ctx context.Context, item string, unit string) (domain.PriceResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return domain.PriceResponse{}, err
	}
	u, ok := domain.ParseUnit(defaultString(unit, string(domain.UnitPiece)))
	if !ok {
		return domain.PriceResponse{}, ErrInvalidUnit
	}

	resp := domain.PriceResponse{Item: strings.TrimSpace(item), Unit: u}
	price, found := pricing.PriceFor(sess.Catalog, resp.Item, u)
	resp.Found = found
	if found {
		resp.Price = amount.Format(price)
	}
	return resp, nil
}

func (s *Service) Total(req domain.TotalRequest) domain.TotalResponse {
	total := pricing.TotalFromInput(req.Quantity, req.Price, req.Discount, req.Extra)
	return domain.TotalResponse{Total: amount.Format(total)}
}

// AddSale appends a line to the session ledger. A blank price is filled
// from the catalog the way the entry form auto-fills it.
func (s *Service) AddSale(ctx context.Context, req domain.SaleRequest) (domain.SaleLineView, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return domain.SaleLineView{}, err
	}

	item := strings.TrimSpace(req.Item)
	if item == "" {
		return domain.SaleLineView{}, ErrItemRequired
	}
	unit, ok := domain.ParseUnit(defaultString(req.Unit, string(domain.UnitPiece)))
	if !ok {
		return domain.SaleLineView{}, ErrInvalidUnit
	}

	quantity := amount.Parse(req.Quantity)
	if quantity.IsNegative() {
		return domain.SaleLineView{}, ErrInvalidQuantity
	}

	price := amount.Parse(req.Price)
	if strings.TrimSpace(req.Price) == "" {
		if found, ok := pricing.PriceFor(sess.Catalog, item, unit); ok {
			price = found
		}
	}

	line := domain.SaleLine{
		ID:            uuid.NewString(),
		Item:          item,
		Unit:          unit,
		Quantity:      quantity,
		Price:         price,
		Discount:      amount.Parse(req.Discount),
		Extra:         amount.Parse(req.Extra),
		PaymentMethod: defaultString(req.PaymentMethod, defaultPaymentMethod),
		Timestamp:     s.now().Format(saleTimestampLayout),
		Store:         sess.Store.ID,
	}
	line.Total = pricing.Total(line.Quantity, line.Price, line.Discount, line.Extra)

	sess.Ledger.Append(line)
	return toSaleLineView(sess.Ledger.Len()-1, line), nil
}

func (s *Service) ListSales(ctx context.Context) (domain.LedgerResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return domain.LedgerResponse{}, err
	}
	return ledgerResponse(sess), nil
}

func (s *Service) RemoveSale(ctx context.Context, index int) (domain.LedgerResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return domain.LedgerResponse{}, err
	}
	if _, err := sess.Ledger.RemoveAt(index); err != nil {
		return domain.LedgerResponse{}, err
	}
	return ledgerResponse(sess), nil
}

func (s *Service) ClearSales(ctx context.Context, confirmed bool) (domain.LedgerResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return domain.LedgerResponse{}, err
	}
	if err := sess.Ledger.Clear(confirmed); err != nil {
		return domain.LedgerResponse{}, err
	}
	return ledgerResponse(sess), nil
}

// SubmitSales drains a snapshot of the ledger in order. Lines appended while
// the drain runs are untouched; submitted lines are removed by id according
// to the removal policy.
func (s *Service) SubmitSales(ctx context.Context) (domain.SubmitResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return domain.SubmitResponse{}, err
	}
	if err := sess.SalesGate.Enter(); err != nil {
		return domain.SubmitResponse{}, err
	}
	defer sess.SalesGate.Leave()

	lines := sess.Ledger.Lines()
	if len(lines) == 0 {
		return domain.SubmitResponse{}, ErrNothingToSubmit
	}

	res := sess.SaleQueue.Drain(ctx, lines, nil)
	removed := 0
	if res.SuccessCount() > 0 {
		ids := make([]string, 0, res.SuccessCount())
		for _, idx := range res.Removable(s.policy) {
			ids = append(ids, lines[idx].ID)
		}
		removed = sess.Ledger.RemoveIDs(ids)
	}

	return submitResponse(res, removed, sess.Ledger.Len()), nil
}

// StockLevels classifies the cross-store stock view. The view is fetched
// on first use and whenever reload is set; otherwise the last fetched view
// is filtered.
func (s *Service) StockLevels(ctx context.Context, term string, reload bool) (stockstatus.Report, string, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return stockstatus.Report{}, "", err
	}

	var warning string
	if reload || sess.StockView.Len() == 0 {
		loadCtx := ctx
		if reload {
			loadCtx = catalog.ForceRefresh(ctx)
		}
		if _, err := sess.StockView.Reload(loadCtx, s.source, domain.StockSlotNone); err != nil && !errors.Is(err, catalog.ErrSuperseded) {
			s.log.Warn().Err(err).Str("session", sess.ID).Msg("stock view load failed")
			warning = "could not load stock levels"
		}
	}
	return stockstatus.Build(sess.StockView.Products(), term), warning, nil
}

func (s *Service) ListAdjustments(ctx context.Context) (domain.AdjustmentListResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return domain.AdjustmentListResponse{}, err
	}
	return adjustmentList(sess), nil
}

func (s *Service) AddAdjustment(ctx context.Context, name string) (domain.AdjustmentListResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return domain.AdjustmentListResponse{}, err
	}
	if _, err := sess.Staging.Add(sess.Catalog, name); err != nil {
		return domain.AdjustmentListResponse{}, err
	}
	return adjustmentList(sess), nil
}

func (s *Service) SuggestAdjustments(ctx context.Context, term string) (domain.CatalogResponse, error) {
	if strings.TrimSpace(term) == "" {
		return domain.CatalogResponse{Products: []domain.Product{}}, nil
	}
	return s.SearchCatalog(ctx, term, DefaultSearchLimit)
}

func (s *Service) EditAdjustment(ctx context.Context, index int, req domain.AdjustmentEditRequest) (domain.AdjustmentListResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return domain.AdjustmentListResponse{}, err
	}
	if _, err := sess.Staging.Edit(index, req.Field, req.Value); err != nil {
		return domain.AdjustmentListResponse{}, err
	}
	return adjustmentList(sess), nil
}

func (s *Service) RemoveAdjustment(ctx context.Context, index int) (domain.AdjustmentListResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return domain.AdjustmentListResponse{}, err
	}
	if _, err := sess.Staging.Remove(index); err != nil {
		return domain.AdjustmentListResponse{}, err
	}
	return adjustmentList(sess), nil
}

func (s *Service) ClearAdjustments(ctx context.Context, confirmed bool) (domain.AdjustmentListResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return domain.AdjustmentListResponse{}, err
	}
	if err := sess.Staging.Clear(confirmed); err != nil {
		return domain.AdjustmentListResponse{}, err
	}
	return adjustmentList(sess), nil
}

func (s *Service) SubmitAdjustments(ctx context.Context) (domain.SubmitResponse, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return domain.SubmitResponse{}, err
	}
	res, err := sess.Staging.SubmitAll(ctx, sess.AdjustmentQueue, s.policy)
	if err != nil {
		return domain.SubmitResponse{}, err
	}
	return submitResponse(res.Result, res.Removed, sess.Staging.Len()), nil
}

func ledgerResponse(sess *session.Session) domain.LedgerResponse {
	lines := sess.Ledger.Lines()
	views := make([]domain.SaleLineView, 0, len(lines))
	for i, line := range lines {
		views = append(views, toSaleLineView(i, line))
	}
	return domain.LedgerResponse{
		Lines:      views,
		GrandTotal: amount.Format(sess.Ledger.GrandTotal()),
	}
}

func toSaleLineView(index int, line domain.SaleLine) domain.SaleLineView {
	return domain.SaleLineView{
		Index:         index,
		ID:            line.ID,
		Item:          line.Item,
		Unit:          line.Unit,
		Quantity:      line.Quantity.String(),
		Price:         amount.Format(line.Price),
		Discount:      amount.Format(line.Discount),
		Extra:         amount.Format(line.Extra),
		Total:         amount.Format(line.Total),
		PaymentMethod: line.PaymentMethod,
		Timestamp:     line.Timestamp,
		Store:         line.Store,
	}
}

func adjustmentList(sess *session.Session) domain.AdjustmentListResponse {
	items := sess.Staging.Items()
	views := make([]domain.AdjustmentItemView, 0, len(items))
	for i, item := range items {
		views = append(views, domain.AdjustmentItemView{
			Index:    i,
			Name:     item.Name,
			Unit:     item.Unit,
			Type:     item.Type,
			Quantity: item.DisplayQuantity(),
		})
	}
	return domain.AdjustmentListResponse{
		StoreName: sess.Store.DisplayName(),
		Items:     views,
		Count:     len(views),
	}
}

func submitResponse(res submitqueue.Result, removed int, remaining int) domain.SubmitResponse {
	resp := domain.SubmitResponse{
		Total:     res.Total,
		Submitted: res.SuccessCount(),
		Removed:   removed,
		Remaining: remaining,
	}
	for _, failure := range res.Errors {
		resp.Errors = append(resp.Errors, domain.SubmissionError{
			Index: failure.Index,
			Key:   failure.Key,
			Error: failure.Err.Error(),
		})
	}
	return resp
}

func defaultString(value string, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
