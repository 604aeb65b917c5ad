package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"dailysales/internal/core"
	"dailysales/internal/log"
	"dailysales/internal/session"
)

type saleRowView struct {
	Product  string
	Quantity int
	Price    string
	Revenue  string
}

type panelView struct {
	Rows          []saleRowView
	Total         string
	Empty         bool
	SheetsEnabled bool
	// Version changes whenever the ledger grows so the chart iframe reloads.
	Version int
}

type formView struct {
	Product  string
	Quantity string
	Price    string
}

type resultView struct {
	Class   string
	Message string
}

type pageView struct {
	Title  string
	Form   formView
	Result *resultView
	Panel  panelView
}

func defaultForm() formView {
	return formView{Quantity: "1", Price: "0.00"}
}

// buildPanel snapshots the session ledger into display values.
func (s *Server) buildPanel(ctx context.Context, sess *session.Session) (panelView, error) {
	records, err := sess.Ledger.Records(ctx)
	if err != nil {
		return panelView{}, fmt.Errorf("load sales: %w", err)
	}

	rows := make([]saleRowView, 0, len(records))
	for _, rec := range records {
		rows = append(rows, saleRowView{
			Product:  rec.Product,
			Quantity: rec.Quantity,
			Price:    core.FormatCurrency(rec.Price),
			Revenue:  core.FormatCurrency(rec.Revenue),
		})
	}

	return panelView{
		Rows:          rows,
		Total:         core.FormatCurrency(core.TotalRevenue(records)),
		Empty:         len(records) == 0,
		SheetsEnabled: s.exporter != nil,
		Version:       len(records),
	}, nil
}

// render executes a named template into a buffer first so a failure never
// leaves a half written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template render failed",
			"template", name,
			log.FieldError, err,
			log.FieldOperation, log.OpRender,
			log.FieldErrorType, log.ErrorTypeInternal)
		InternalServerError("Something went wrong while rendering the page.").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, sess *session.Session, form formView, result *resultView) {
	panel, err := s.buildPanel(r.Context(), sess)
	if err != nil {
		s.storeFailure(w, r, "Failed to load sales", err, log.OpList)
		return
	}
	s.render(w, r, status, "index", pageView{
		Title:  PageTitle,
		Form:   form,
		Result: result,
		Panel:  panel,
	})
}

// storeFailure logs a ledger error and answers with a generic 500 fragment.
func (s *Server) storeFailure(w http.ResponseWriter, r *http.Request, msg string, err error, op string) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), msg,
		log.FieldError, err,
		log.FieldOperation, op,
		log.FieldErrorType, log.ErrorTypeDatabase)
	InternalServerError("Could not access today's sales. Please try again.").Write(w)
}
