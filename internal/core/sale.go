package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SaleRecord is one logged sale. Revenue is fixed at creation time and never recomputed.
type SaleRecord struct {
	Product    string
	Quantity   int
	Price      decimal.Decimal
	Revenue    decimal.Decimal
	RecordedAt time.Time
}

var (
	ErrEmptyProduct    = errors.New("empty product name")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidPrice    = errors.New("invalid price")
	ErrRevenueMismatch = errors.New("revenue does not match quantity times price")
)

// NormalizeProduct strips control characters and surrounding whitespace.
func NormalizeProduct(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s))
}

// NewSaleRecord builds a validated record. The product name is normalized and
// the price is rounded to hundredths before revenue is computed.
func NewSaleRecord(product string, quantity int, price decimal.Decimal, at time.Time) (SaleRecord, error) {
	price = price.Round(2)
	rec := SaleRecord{
		Product:    NormalizeProduct(product),
		Quantity:   quantity,
		Price:      price,
		Revenue:    Revenue(quantity, price),
		RecordedAt: at,
	}
	if err := rec.Validate(); err != nil {
		return SaleRecord{}, err
	}
	return rec, nil
}

// Revenue returns quantity × price.
func Revenue(quantity int, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

func (s SaleRecord) Validate() error {
	if strings.TrimSpace(s.Product) == "" {
		return ErrEmptyProduct
	}
	if s.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if s.Price.IsNegative() {
		return ErrInvalidPrice
	}
	if !s.Revenue.Equal(Revenue(s.Quantity, s.Price)) {
		return ErrRevenueMismatch
	}
	return nil
}
