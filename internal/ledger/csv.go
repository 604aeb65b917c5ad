package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"dailysales/internal/core"
)

// CSVFilename is the download name offered to the browser.
const CSVFilename = "daily_sales.csv"

// CSVHeader is the first row of every export.
var CSVHeader = []string{"Product", "Quantity", "Price", "Revenue"}

var ErrBadCSV = errors.New("malformed sales csv")

// WriteCSV writes the header and one row per record. Amounts use two decimals.
func WriteCSV(w io.Writer, records []core.SaleRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Product,
			strconv.Itoa(r.Quantity),
			r.Price.StringFixed(2),
			r.Revenue.StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses an export produced by WriteCSV. RecordedAt is left zero.
func ReadCSV(r io.Reader) ([]core.SaleRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header", ErrBadCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCSV, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i, name := range CSVHeader {
		if strings.TrimSpace(header[i]) != name {
			return nil, fmt.Errorf("%w: unexpected header %q", ErrBadCSV, strings.Join(header, ","))
		}
	}

	var out []core.SaleRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadCSV, err)
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrBadCSV, line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRow(row []string) (core.SaleRecord, error) {
	qty, err := strconv.Atoi(strings.TrimSpace(row[1]))
	if err != nil {
		return core.SaleRecord{}, core.ErrInvalidQuantity
	}
	price, err := decimal.NewFromString(strings.TrimSpace(row[2]))
	if err != nil {
		return core.SaleRecord{}, core.ErrInvalidPrice
	}
	revenue, err := decimal.NewFromString(strings.TrimSpace(row[3]))
	if err != nil {
		return core.SaleRecord{}, fmt.Errorf("revenue %q: %w", row[3], err)
	}
	rec := core.SaleRecord{
		Product:  row[0],
		Quantity: qty,
		Price:    price,
		Revenue:  revenue,
	}
	if err := rec.Validate(); err != nil {
		return core.SaleRecord{}, err
	}
	return rec, nil
}
