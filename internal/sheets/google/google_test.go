package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"dailysales/internal/core"
)

func newTestExporter(t *testing.T, handler http.HandlerFunc) *Exporter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithoutAuthentication(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	exp := NewWithService(svc, "sheet-id", "", nil)
	exp.now = func() time.Time { return time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC) }
	return exp
}

func TestExportAppendsRows(t *testing.T) {
	var gotPath, gotQuery string
	var body gsheet.ValueRange

	exp := newTestExporter(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"'Daily Sales'!A2:F3","updatedRows":2}}`))
	})

	rec1, _ := core.NewSaleRecord("Milk", 2, decimal.NewFromInt(50), time.Now())
	rec2, _ := core.NewSaleRecord("Bread", 1, decimal.RequireFromString("22.5"), time.Now())

	ref, err := exp.Export(context.Background(), "sid", []core.SaleRecord{rec1, rec2})
	require.NoError(t, err)
	assert.Equal(t, "'Daily Sales'!A2:F3", ref)

	assert.True(t, strings.HasPrefix(gotPath, "/v4/spreadsheets/sheet-id/values/"), gotPath)
	assert.True(t, strings.HasSuffix(gotPath, ":append"), gotPath)
	assert.Contains(t, gotQuery, "valueInputOption=USER_ENTERED")

	require.Len(t, body.Values, 2)
	assert.Equal(t, []any{"2025-03-01T18:00:00Z", "sid", "Milk", float64(2), "50.00", "100.00"}, body.Values[0])
	assert.Equal(t, "22.50", body.Values[1][4])
}

func TestExportRejectsEmptyLedger(t *testing.T) {
	exp := newTestExporter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s", r.URL)
	})
	_, err := exp.Export(context.Background(), "sid", nil)
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestExportSurfacesAPIErrors(t *testing.T) {
	exp := newTestExporter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	})
	rec, _ := core.NewSaleRecord("Milk", 1, decimal.NewFromInt(1), time.Now())
	_, err := exp.Export(context.Background(), "sid", []core.SaleRecord{rec})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append to sheet Daily Sales")
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{SpreadsheetID: "x"}.Enabled())
	assert.True(t, Config{SpreadsheetID: "x", ServiceAccountJSON: "{}"}.Enabled())
	assert.True(t, Config{SpreadsheetID: "x", ServiceAccountFile: "/tmp/sa.json"}.Enabled())
}

func TestQuoteSheetName(t *testing.T) {
	assert.Equal(t, "Sales", quoteSheetName("Sales"))
	assert.Equal(t, "'Daily Sales'", quoteSheetName("Daily Sales"))
	assert.Equal(t, "'Bob''s'", quoteSheetName("Bob's"))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}
