// Package http provides HTTP server and handler implementations.
//
// This file turns the sale form into validated values.

package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"dailysales/internal/core"
)

// maxProductLength bounds product names accepted from the form.
const maxProductLength = 120

var errProductTooLong = errors.New("product name too long")

// User facing validation messages.
const (
	MsgInvalidProduct  = "⚠️ Please enter a valid product name."
	MsgInvalidQuantity = "Quantity must be a whole number of at least 1."
	MsgInvalidPrice    = "Price must be a number of at least 0."
	MsgProductTooLong  = "Product name is too long."
	MsgBadRequest      = "Invalid request format."
)

// SaleForm is the parsed, not yet recorded, sale from POST /sales.
type SaleForm struct {
	Product  string
	Quantity int
	Price    decimal.Decimal
}

// FormError carries the message shown to the user next to the sentinel it maps to.
type FormError struct {
	Field   string
	Message string
	Err     error
}

func (e *FormError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FormError) Unwrap() error { return e.Err }

// ParseSaleForm reads product, quantity and price from the request body.
// Product is checked first so an empty name always yields the product warning.
func ParseSaleForm(r *http.Request) (SaleForm, error) {
	if err := r.ParseForm(); err != nil {
		return SaleForm{}, &FormError{Field: "form", Message: MsgBadRequest, Err: err}
	}
	return parseSaleValues(r.PostForm)
}

func parseSaleValues(form url.Values) (SaleForm, error) {
	product := sanitizeInput(form.Get("product"))
	if product == "" {
		return SaleForm{}, &FormError{Field: "product", Message: MsgInvalidProduct, Err: core.ErrEmptyProduct}
	}
	if utf8.RuneCountInString(product) > maxProductLength {
		return SaleForm{}, &FormError{Field: "product", Message: MsgProductTooLong, Err: errProductTooLong}
	}

	quantity, err := core.ParseQuantity(form.Get("quantity"))
	if err != nil {
		return SaleForm{}, &FormError{Field: "quantity", Message: MsgInvalidQuantity, Err: err}
	}

	price, err := core.ParsePrice(form.Get("price"))
	if err != nil {
		return SaleForm{}, &FormError{Field: "price", Message: MsgInvalidPrice, Err: err}
	}

	return SaleForm{Product: product, Quantity: quantity, Price: price}, nil
}

// formMessage maps a validation error to its user facing text.
func formMessage(err error) string {
	var fe *FormError
	if errors.As(err, &fe) {
		return fe.Message
	}
	switch {
	case errors.Is(err, core.ErrEmptyProduct):
		return MsgInvalidProduct
	case errors.Is(err, core.ErrInvalidQuantity):
		return MsgInvalidQuantity
	case errors.Is(err, core.ErrInvalidPrice):
		return MsgInvalidPrice
	}
	return MsgBadRequest
}

// isValidationError reports whether err came from user input rather than the store.
func isValidationError(err error) bool {
	var fe *FormError
	return errors.As(err, &fe) ||
		errors.Is(err, core.ErrEmptyProduct) ||
		errors.Is(err, core.ErrInvalidQuantity) ||
		errors.Is(err, core.ErrInvalidPrice)
}

// isProductWarning reports whether err is the empty product case, which is
// shown as a warning rather than an error.
func isProductWarning(err error) bool {
	return errors.Is(err, core.ErrEmptyProduct)
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("HX-Request"), "true")
}
