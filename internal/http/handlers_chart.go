package http

import (
	"bytes"
	"net/http"

	"dailysales/internal/chart"
	"dailysales/internal/log"
	"dailysales/internal/middleware/security"
)

// handleChart serves the go-echarts page embedded by the sales panel.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}

	groups, err := sess.Ledger.GroupedRevenueByProduct(r.Context())
	if err != nil {
		s.storeFailure(w, r, "Failed to group revenue", err, log.OpList)
		return
	}

	var buf bytes.Buffer
	if err := chart.Render(&buf, groups, s.chartOpts); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Chart render failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRender)
		InternalServerError("Could not draw the chart.").Write(w)
		return
	}

	host := s.chartOpts.AssetsHost
	if host == "" {
		host = chart.DefaultHost
	}
	h := w.Header()
	h.Set("Content-Security-Policy", security.ChartCSP(host))
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
