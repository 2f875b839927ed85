package adapter

import "context"

// PaymentNotice is the normalized, processor-agnostic form of one payment
// notification after parsing/fetching. Fields the processor did not supply
// stay empty; the matcher copes with missing identifiers.
type PaymentNotice struct {
	Processor            string
	PaymentID            string // processor's payment/transaction id
	Status               string // normalized: "approved" | "rejected" | "cancelled" | "pending"
	PayerEmail           string // may be empty or a masked placeholder
	ProcessorReferenceID string // processor preference/checkout id
	ExternalReference    string // our round-tripped correlation token, if any
	Amount               int64
	Currency             string
	PlanHint             string // processor-side product mapping, used when the intent has no plan
}

// ProcessorGateway is the hex port for pull-style processors: the inbound
// notification carries only a payment id and the full detail is fetched from
// the processor's API.
type ProcessorGateway interface {
	Name() string
	FetchPayment(ctx context.Context, paymentID string) (*PaymentNotice, error)
}
