package model

import (
	"strings"
	"time"

	"purchase-entitlement-service/internal/domain"

	"github.com/google/uuid"
)

type IntentStatus string

const (
	IntentStatusPending   IntentStatus = "pending"   // created at checkout initiation, awaiting processor outcome
	IntentStatusApproved  IntentStatus = "approved"  // processor confirmed the payment
	IntentStatusRejected  IntentStatus = "rejected"  // processor rejected the payment
	IntentStatusCancelled IntentStatus = "cancelled" // payer or processor cancelled the checkout
)

// ExternalReferencePrefix marks correlation tokens minted by our own checkout
// flow. A reference without this prefix is treated as foreign and never used
// for tier-1 matching.
const ExternalReferencePrefix = "checkout-"

// PurchaseIntent records one checkout attempt. It is an append/update-only
// audit trail: rows are never deleted, and status only moves forward.
type PurchaseIntent struct {
	ID                   string // UUID
	Email                *string
	ProcessorReferenceID *string // processor's preference/checkout id
	ProcessorPaymentID   *string // processor payment id, set on first matched notification
	ExternalReference    *string // caller-chosen correlation token ("checkout-...")
	Processor            string  // which processor the checkout went through
	Amount               int64   // minor units
	Currency             string
	PlanType             PlanType
	Status               IntentStatus
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func NewPurchaseIntent(id, processor string, amount int64, currency string, plan PlanType) (*PurchaseIntent, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if amount <= 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &PurchaseIntent{
		ID:        id,
		Processor: processor,
		Amount:    amount,
		Currency:  currency,
		PlanType:  plan,
		Status:    IntentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsTerminal reports whether the intent reached a final state.
func (p *PurchaseIntent) IsTerminal() bool {
	return p.Status == IntentStatusApproved || p.Status == IntentStatusRejected || p.Status == IntentStatusCancelled
}

// CanTransitionTo enforces the forward-only lifecycle: only a pending intent
// may move, and it may only move to a terminal state.
func (p *PurchaseIntent) CanTransitionTo(next IntentStatus) bool {
	if p.Status == next {
		return true // redelivery of the same outcome is a no-op, not a violation
	}
	return p.Status == IntentStatusPending && next != IntentStatusPending
}

// KnownEmail returns the stored payer email if it is real (present and not a
// processor-masked placeholder).
func (p *PurchaseIntent) KnownEmail() string {
	if p.Email == nil {
		return ""
	}
	if IsMaskedEmail(*p.Email) {
		return ""
	}
	return *p.Email
}

// ShouldOverwriteEmail reports whether an incoming payer email should replace
// the stored one: the incoming address must be real, and the stored value
// empty or masked.
func (p *PurchaseIntent) ShouldOverwriteEmail(incoming string) bool {
	if incoming == "" || IsMaskedEmail(incoming) {
		return false
	}
	return p.KnownEmail() == ""
}

// IsMaskedEmail detects the redacted payer addresses some processors return
// for privacy-protected payment methods ("x***@host" or "XXXXXXXX" runs).
func IsMaskedEmail(s string) bool {
	if s == "" {
		return false
	}
	if strings.ContainsRune(s, '*') {
		return true
	}
	return strings.HasPrefix(strings.ToLower(s), "xxxx")
}

// HasWellFormedReference reports whether ref carries our correlation prefix.
func HasWellFormedReference(ref string) bool {
	return strings.HasPrefix(ref, ExternalReferencePrefix)
}
