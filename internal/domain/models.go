package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Unit string

const (
	UnitCarton Unit = "ct"
	UnitDozen  Unit = "dz"
	UnitPiece  Unit = "pc"
)

var Units = []Unit{UnitCarton, UnitDozen, UnitPiece}

func ParseUnit(raw string) (Unit, bool) {
	unit := Unit(strings.ToLower(strings.TrimSpace(raw)))
	switch unit {
	case UnitCarton, UnitDozen, UnitPiece:
		return unit, true
	}
	return "", false
}

type AdjustmentType string

const (
	AdjustmentAdd    AdjustmentType = "add"
	AdjustmentRemove AdjustmentType = "remove"
	AdjustmentSet    AdjustmentType = "set"
)

func ParseAdjustmentType(raw string) (AdjustmentType, bool) {
	kind := AdjustmentType(strings.ToLower(strings.TrimSpace(raw)))
	switch kind {
	case AdjustmentAdd, AdjustmentRemove, AdjustmentSet:
		return kind, true
	}
	return "", false
}

// StockSlot selects which per-store stock column of the catalog feed is the
// working stock for a store.
type StockSlot int

const (
	StockSlotNone StockSlot = iota
	StockSlotStore1
	StockSlotStore2
)

type Store struct {
	ID        string            `json:"id" yaml:"id"`
	Name      string            `json:"name" yaml:"name"`
	StockSlot StockSlot         `json:"stock_slot" yaml:"stock_slot"`
	Users     map[string]string `json:"-" yaml:"users"`
}

// DisplayName is the label attached to outbound submissions.
func (s Store) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

type Product struct {
	Name        string                   `json:"name"`
	Prices      map[Unit]decimal.Decimal `json:"prices"`
	Stock       decimal.Decimal          `json:"stock"`
	StockStore1 string                   `json:"stock_store1"`
	StockStore2 string                   `json:"stock_store2"`
}

func (p Product) PriceFor(unit Unit) (decimal.Decimal, bool) {
	price, ok := p.Prices[unit]
	return price, ok
}

type SaleLine struct {
	ID            string          `json:"id"`
	Item          string          `json:"item"`
	Unit          Unit            `json:"unit"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Discount      decimal.Decimal `json:"discount"`
	Extra         decimal.Decimal `json:"extra"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	Timestamp     string          `json:"timestamp"`
	Store         string          `json:"store"`
}

type AdjustmentItem struct {
	Name     string          `json:"name"`
	Unit     Unit            `json:"unit"`
	Type     AdjustmentType  `json:"type"`
	Quantity decimal.Decimal `json:"quantity"`
	Blank    bool            `json:"blank"`
}

// DisplayQuantity is what the quantity control shows: empty until the
// cashier has typed a value.
func (a AdjustmentItem) DisplayQuantity() string {
	if a.Blank {
		return ""
	}
	return a.Quantity.String()
}

type Actor struct {
	Username  string
	StoreID   string
	SessionID string
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken    string `json:"access_token"`
	StoreID        string `json:"store_id"`
	StoreName      string `json:"store_name"`
	ExpiresAt      string `json:"expires_at"`
	CatalogSize    int    `json:"catalog_size"`
	CatalogWarning string `json:"catalog_warning,omitempty"`
}

type CatalogResponse struct {
	Products []Product `json:"products"`
	Count    int       `json:"count"`
	Warning  string    `json:"warning,omitempty"`
}

type PriceResponse struct {
	Item  string `json:"item"`
	Unit  Unit   `json:"unit"`
	Found bool   `json:"found"`
	Price string `json:"price"`
}

type TotalRequest struct {
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
	Discount string `json:"discount"`
	Extra    string `json:"extra"`
}

type TotalResponse struct {
	Total string `json:"total"`
}

// SaleRequest carries the raw form fields of the sale entry form. Numeric
// fields stay strings so that blank or garbage input can default to zero.
type SaleRequest struct {
	Item          string `json:"item" validate:"required"`
	Unit          string `json:"unit"`
	Quantity      string `json:"quantity"`
	Price         string `json:"price"`
	Discount      string `json:"discount"`
	Extra         string `json:"extra"`
	PaymentMethod string `json:"payment_method"`
}

type SaleLineView struct {
	Index         int    `json:"index"`
	ID            string `json:"id"`
	Item          string `json:"item"`
	Unit          Unit   `json:"unit"`
	Quantity      string `json:"quantity"`
	Price         string `json:"price"`
	Discount      string `json:"discount"`
	Extra         string `json:"extra"`
	Total         string `json:"total"`
	PaymentMethod string `json:"payment_method"`
	Timestamp     string `json:"timestamp"`
	Store         string `json:"store"`
}

type LedgerResponse struct {
	Lines      []SaleLineView `json:"lines"`
	GrandTotal string         `json:"grand_total"`
}

type ConfirmRequest struct {
	Confirm bool `json:"confirm"`
}

type SubmissionError struct {
	Index int    `json:"index"`
	Key   string `json:"key"`
	Error string `json:"error"`
}

type SubmitResponse struct {
	Total     int               `json:"total"`
	Submitted int               `json:"submitted"`
	Removed   int               `json:"removed"`
	Errors    []SubmissionError `json:"errors,omitempty"`
	Remaining int               `json:"remaining"`
}

type AdjustmentAddRequest struct {
	Name string `json:"name" validate:"required"`
}

type AdjustmentEditRequest struct {
	Field string `json:"field" validate:"required,oneof=unit type quantity"`
	Value string `json:"value"`
}

type AdjustmentItemView struct {
	Index    int            `json:"index"`
	Name     string         `json:"name"`
	Unit     Unit           `json:"unit"`
	Type     AdjustmentType `json:"type"`
	Quantity string         `json:"quantity"`
}

type AdjustmentListResponse struct {
	StoreName string               `json:"store_name"`
	Items     []AdjustmentItemView `json:"items"`
	Count     int                  `json:"count"`
}

// FormSubmission is a delivered form payload as recorded by an intake
// repository.
type FormSubmission struct {
	ID        string            `json:"id"`
	Form      string            `json:"form"`
	Action    string            `json:"action"`
	Fields    map[string]string `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
}
