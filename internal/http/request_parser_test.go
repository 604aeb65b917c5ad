package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailysales/internal/core"
)

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestParseSaleForm(t *testing.T) {
	form, err := ParseSaleForm(postForm(url.Values{
		"product":  {"  Milk\x00 "},
		"quantity": {"2"},
		"price":    {"49,999"},
	}))
	require.NoError(t, err)
	assert.Equal(t, "Milk", form.Product)
	assert.Equal(t, 2, form.Quantity)
	assert.Equal(t, "50.00", form.Price.StringFixed(2))
}

func TestParseSaleFormErrors(t *testing.T) {
	tests := []struct {
		name    string
		values  url.Values
		wantErr error
		wantMsg string
		warning bool
	}{
		{
			name:    "missing product wins over bad numbers",
			values:  url.Values{"product": {""}, "quantity": {"x"}, "price": {"y"}},
			wantErr: core.ErrEmptyProduct,
			wantMsg: MsgInvalidProduct,
			warning: true,
		},
		{
			name:    "control characters only",
			values:  url.Values{"product": {"\x01\x02"}, "quantity": {"1"}, "price": {"1"}},
			wantErr: core.ErrEmptyProduct,
			wantMsg: MsgInvalidProduct,
			warning: true,
		},
		{
			name:    "quantity missing",
			values:  url.Values{"product": {"Tea"}, "price": {"1"}},
			wantErr: core.ErrInvalidQuantity,
			wantMsg: MsgInvalidQuantity,
		},
		{
			name:    "price with sign",
			values:  url.Values{"product": {"Tea"}, "quantity": {"1"}, "price": {"+3"}},
			wantErr: core.ErrInvalidPrice,
			wantMsg: MsgInvalidPrice,
		},
		{
			name:    "product too long",
			values:  url.Values{"product": {strings.Repeat("a", maxProductLength+1)}, "quantity": {"1"}, "price": {"1"}},
			wantErr: errProductTooLong,
			wantMsg: MsgProductTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSaleForm(postForm(tt.values))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, isValidationError(err))
			assert.Equal(t, tt.warning, isProductWarning(err))
			assert.Equal(t, tt.wantMsg, formMessage(err))
		})
	}
}

func TestFormMessageForLedgerErrors(t *testing.T) {
	assert.Equal(t, MsgInvalidQuantity, formMessage(core.ErrInvalidQuantity))
	assert.Equal(t, MsgBadRequest, formMessage(assert.AnError))
	assert.False(t, isValidationError(assert.AnError))
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "Dal Makhani", sanitizeInput("\tDal Makhani\r\n"))
	assert.Equal(t, "ab", sanitizeInput("a\x7fb"))
	assert.Equal(t, "", sanitizeInput(" \x1b "))
}

func TestIsHTMX(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/sales", nil)
	assert.False(t, isHTMX(req))
	req.Header.Set("HX-Request", "true")
	assert.True(t, isHTMX(req))
}
