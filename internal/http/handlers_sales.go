package http

import (
	"errors"
	"fmt"
	"net/http"

	"dailysales/internal/core"
	"dailysales/internal/ledger"
	"dailysales/internal/log"
	"dailysales/internal/session"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}
	s.renderPage(w, r, http.StatusOK, sess, defaultForm(), nil)
}

func (s *Server) handleSalesPanel(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}
	panel, err := s.buildPanel(r.Context(), sess)
	if err != nil {
		s.storeFailure(w, r, "Failed to load sales", err, log.OpList)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	s.render(w, r, http.StatusOK, "sales_panel", panel)
}

// handleCreateSale records one sale. htmx callers get a fragment plus
// HX-Trigger events; plain form posts get the whole page back.
func (s *Server) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	sess, ok := requestSession(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx)

	form, err := ParseSaleForm(r)
	if err == nil {
		var rec core.SaleRecord
		rec, err = sess.Ledger.AddSale(ctx, form.Product, form.Quantity, form.Price)
		if err == nil {
			s.appMetrics.salesRecorded.Add(1)
			s.saleCreated(w, r, sess, rec)
			return
		}
	}

	if !isValidationError(err) {
		if errors.Is(err, ledger.ErrClosed) {
			logger.WarnContext(ctx, "Sale submitted to an ended session", log.FieldError, err)
		}
		s.storeFailure(w, r, "Failed to record sale", err, log.OpAppend)
		return
	}

	s.appMetrics.salesRejected.Add(1)
	msg := formMessage(err)
	logger.InfoContext(ctx, "Sale rejected",
		log.FieldError, err,
		log.FieldOperation, log.OpValidate,
		log.FieldErrorType, log.ErrorTypeValidation)

	if !isHTMX(r) {
		class := "error"
		if isProductWarning(err) {
			class = "warning"
		}
		s.renderPage(w, r, http.StatusUnprocessableEntity, sess, formView{
			Product:  r.PostForm.Get("product"),
			Quantity: r.PostForm.Get("quantity"),
			Price:    r.PostForm.Get("price"),
		}, &resultView{Class: class, Message: msg})
		return
	}

	if isProductWarning(err) {
		WarningResponse(msg).Write(w)
		return
	}
	UnprocessableEntityError(msg).TriggerErrorNotification(msg).Write(w)
}

func (s *Server) saleCreated(w http.ResponseWriter, r *http.Request, sess *session.Session, rec core.SaleRecord) {
	msg := fmt.Sprintf("✅ Added %s - Revenue: %s", rec.Product, core.FormatCurrency(rec.Revenue))

	if !isHTMX(r) {
		s.renderPage(w, r, http.StatusOK, sess, defaultForm(), &resultView{Class: "success", Message: msg})
		return
	}

	count, err := sess.Ledger.Len(r.Context())
	if err != nil {
		// The sale is stored; only the trigger payload is affected.
		count = -1
	}
	SuccessResponse(msg).
		TriggerFormReset().
		TriggerSalesChanged(count).
		Write(w)
}
