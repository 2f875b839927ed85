// File: internal/infra/web/webhooks.go
package web

import (
	"encoding/json"
	"math"
	"net/http"

	"purchase-entitlement-service/internal/domain/model"
	"purchase-entitlement-service/internal/domain/ports/adapter"
	"purchase-entitlement-service/internal/infra/logging"
	"purchase-entitlement-service/internal/infra/metrics"
)

// MercadoPagoDeps carries what the pull-style handler needs beyond the shared
// pipeline: the gateway used to fetch full payment detail.
type MercadoPagoDeps struct {
	Gateway adapter.ProcessorGateway
}

// mercadoPagoEvent is the thin notification body; everything else is fetched.
type mercadoPagoEvent struct {
	Type string `json:"type"`
	Data struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

func (s *Server) handleMercadoPagoWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithProcessor(r.Context(), "mercadopago")

	var evt mercadoPagoEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook body")
		return
	}

	// Entry event filter: only payment events proceed. Pings and unrelated
	// event types still get a success response so the processor stops resending.
	if evt.Type != "payment" || evt.Data.ID.String() == "" {
		metrics.ObserveIgnoredEvent("mercadopago", evt.Type)
		logging.With(ctx, s.log).Info().Str("step", "webhook_filter").Str("type", evt.Type).Msg("event ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	ctx = logging.WithPaymentID(ctx, evt.Data.ID.String())
	log := logging.With(ctx, s.log)

	notice, err := s.mercadopago.Gateway.FetchPayment(ctx, evt.Data.ID.String())
	if err != nil {
		log.Error().Err(err).Str("step", "webhook_fetch").Msg("payment detail fetch failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	outcome, err := s.pipeline.Apply(ctx, notice)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": outcome.Status})
}

// caktoEvent is push-style: the full order rides in the webhook body.
type caktoEvent struct {
	Event  string `json:"event"`
	Secret string `json:"secret"`
	Data   struct {
		ID       string `json:"id"`
		Customer struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"customer"`
		Product struct {
			ID string `json:"id"`
		} `json:"product"`
		Amount    float64 `json:"amount"`
		CreatedAt string  `json:"created_at"`
	} `json:"data"`
}

func (s *Server) handleCaktoWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithProcessor(r.Context(), "cakto")

	var evt caktoEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook body")
		return
	}

	if s.caktoSecret != "" && evt.Secret != s.caktoSecret {
		writeError(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	if evt.Event != "order.paid" && evt.Event != "order.approved" {
		metrics.ObserveIgnoredEvent("cakto", evt.Event)
		logging.With(ctx, s.log).Info().Str("step", "webhook_filter").Str("event", evt.Event).Msg("event ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if evt.Data.ID == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}
	ctx = logging.WithPaymentID(ctx, evt.Data.ID)

	// Cakto carries no correlation token; the product id at least pins the
	// plan for intents created without one.
	notice := &adapter.PaymentNotice{
		Processor:  "cakto",
		PaymentID:  evt.Data.ID,
		Status:     "approved", // both accepted event types mean a settled order
		PayerEmail: evt.Data.Customer.Email,
		Amount:     int64(math.Round(evt.Data.Amount * 100)),
		Currency:   "BRL",
		PlanHint:   string(s.planForProduct(evt.Data.Product.ID)),
	}

	outcome, err := s.pipeline.Apply(ctx, notice)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": outcome.Status})
}

func (s *Server) planForProduct(productID string) model.PlanType {
	if p, ok := s.caktoPlans[productID]; ok {
		return model.PlanType(p)
	}
	return model.PlanMonthly
}
