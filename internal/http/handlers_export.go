package http

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"dailysales/internal/ledger"
	"dailysales/internal/log"
)

const exportTimeout = 20 * time.Second

// handleDownloadCSV streams the session ledger as daily_sales.csv. An empty
// ledger yields the header row only.
func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := sess.Ledger.WriteCSV(r.Context(), &buf); err != nil {
		s.storeFailure(w, r, "Failed to export CSV", err, log.OpExport)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/csv; charset=utf-8")
	h.Set("Content-Disposition", `attachment; filename="`+ledger.CSVFilename+`"`)
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleExportSheets appends the session's rows to the configured spreadsheet.
func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		NotFoundError("Google Sheets export is not configured.").Write(w)
		return
	}
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx)

	records, err := sess.Ledger.Records(ctx)
	if err != nil {
		s.storeFailure(w, r, "Failed to load sales for export", err, log.OpExport)
		return
	}
	if len(records) == 0 {
		UnprocessableEntityError("Nothing to export yet.").Write(w)
		return
	}

	exportCtx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	ref, err := s.exporter.Export(exportCtx, sess.ID, records)
	if err != nil {
		s.appMetrics.exportFailures.Add(1)
		logger.ErrorContext(ctx, "Google Sheets export failed",
			log.FieldError, err,
			log.FieldOperation, log.OpExport,
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldRecords, len(records))
		ErrorResponse(http.StatusBadGateway, "Export to Google Sheets failed. Please try again later.").
			TriggerErrorNotification("Export failed").
			Write(w)
		return
	}

	s.appMetrics.exports.Add(1)
	logger.InfoContext(ctx, "Sales exported to Google Sheets",
		"range", ref,
		log.FieldRecords, len(records),
		log.FieldOperation, log.OpExport)
	SuccessResponse("Exported " + pluralRows(len(records)) + " to Google Sheets.").Write(w)
}

func pluralRows(n int) string {
	if n == 1 {
		return "1 row"
	}
	return strconv.Itoa(n) + " rows"
}
