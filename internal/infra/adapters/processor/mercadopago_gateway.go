// File: internal/infra/adapters/processor/mercadopago_gateway.go
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"purchase-entitlement-service/internal/domain"
	"purchase-entitlement-service/internal/domain/ports/adapter"
)

var _ adapter.ProcessorGateway = (*MercadoPagoGateway)(nil)

// MercadoPagoGateway fetches full payment detail for pull-style notifications:
// the webhook body carries only {type, data.id} and everything else comes from
// GET /v1/payments/{id}.
type MercadoPagoGateway struct {
	accessToken string
	baseURL     string
	client      *http.Client
}

func NewMercadoPagoGateway(accessToken, baseURL string) (*MercadoPagoGateway, error) {
	if accessToken == "" {
		return nil, errors.New("mercadopago access token empty")
	}
	if baseURL == "" {
		baseURL = "https://api.mercadopago.com"
	}
	return &MercadoPagoGateway{
		accessToken: accessToken,
		baseURL:     baseURL,
		client:      &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *MercadoPagoGateway) Name() string { return "mercadopago" }

func (g *MercadoPagoGateway) FetchPayment(ctx context.Context, paymentID string) (*adapter.PaymentNotice, error) {
	if paymentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	url := fmt.Sprintf("%s/v1/payments/%s", g.baseURL, paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mercadopago fetch payment: %w", errors.Join(domain.ErrUpstream, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mercadopago fetch payment: status %d: %w", resp.StatusCode, domain.ErrUpstream)
	}

	var out struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
		Payer  struct {
			Email string `json:"email"`
		} `json:"payer"`
		PreferenceID      string `json:"preference_id"`
		ExternalReference string `json:"external_reference"`
		TransactionAmount float64 `json:"transaction_amount"`
		CurrencyID        string  `json:"currency_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("mercadopago decode payment: %w", errors.Join(domain.ErrUpstream, err))
	}

	return &adapter.PaymentNotice{
		Processor:            g.Name(),
		PaymentID:            out.ID.String(),
		Status:               normalizeStatus(out.Status),
		PayerEmail:           out.Payer.Email,
		ProcessorReferenceID: out.PreferenceID,
		ExternalReference:    out.ExternalReference,
		Amount:               int64(math.Round(out.TransactionAmount * 100)),
		Currency:             out.CurrencyID,
	}, nil
}

// normalizeStatus maps MercadoPago payment states onto our lifecycle.
// in_process/authorized stay pending.
func normalizeStatus(s string) string {
	switch s {
	case "approved":
		return "approved"
	case "rejected":
		return "rejected"
	case "cancelled", "refunded", "charged_back":
		return "cancelled"
	default:
		return "pending"
	}
}
