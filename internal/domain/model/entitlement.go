// File: internal/domain/model/entitlement.go
package model

import (
	"math"
	"time"

	"purchase-entitlement-service/internal/domain"
)

type PlanType string

const (
	PlanMonthly  PlanType = "monthly"
	PlanYearly   PlanType = "yearly"
	PlanLifetime PlanType = "lifetime"
)

// Interval returns the entitlement duration granted by one approved payment.
// Lifetime plans have no interval (ok == false).
func (p PlanType) Interval() (d time.Duration, ok bool) {
	switch p {
	case PlanMonthly:
		return 30 * 24 * time.Hour, true
	case PlanYearly:
		return 365 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

type EntitlementStatus string

const (
	EntitlementStatusTrial     EntitlementStatus = "trial"
	EntitlementStatusActive    EntitlementStatus = "active"
	EntitlementStatusExpired   EntitlementStatus = "expired"
	EntitlementStatusCancelled EntitlementStatus = "cancelled"
)

// EntitlementProfile is the derived, mutable "current truth" for one account.
// Invariant: IsPremium implies SubscriptionStatus != trial.
type EntitlementProfile struct {
	AccountID           string
	IsPremium           bool
	SubscriptionStatus  EntitlementStatus
	TrialEndDate        *time.Time
	OnboardingCompleted bool
	UpdatedAt           time.Time
}

func NewPremiumProfile(accountID string) (*EntitlementProfile, error) {
	if accountID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &EntitlementProfile{
		AccountID:          accountID,
		IsPremium:          true,
		SubscriptionStatus: EntitlementStatusActive,
		UpdatedAt:          time.Now(),
	}, nil
}

// UpgradeToPremium flips the profile to premium/active in place. It is a
// monotone upgrade: an already-premium profile is left premium, and trial
// bookkeeping fields are preserved untouched.
func (p *EntitlementProfile) UpgradeToPremium() {
	p.IsPremium = true
	p.SubscriptionStatus = EntitlementStatusActive
	p.UpdatedAt = time.Now()
}

type RecordStatus string

const (
	RecordStatusPending  RecordStatus = "pending"
	RecordStatusApproved RecordStatus = "approved"
)

// SubscriptionRecord is one append-only row per confirmed payment or renewal.
// The most recently created approved record is authoritative; older rows are
// history.
type SubscriptionRecord struct {
	ID        string // ULID, so creation order is the lexical order
	AccountID string
	PlanType  PlanType
	Amount    int64
	Currency  string
	Status    RecordStatus
	ExpiresAt *time.Time // nil means lifetime
	CreatedAt time.Time
}

// AccessView is the normalized read model the client consumes.
// SubscriptionDaysLeft is omitted for lifetime entitlements, which have no
// days-left ceiling; zero always means expired.
type AccessView struct {
	IsPremium            bool              `json:"isPremium"`
	SubscriptionStatus   EntitlementStatus `json:"subscriptionStatus"`
	TrialEndDate         *time.Time        `json:"trialEndDate"`
	SubscriptionEndDate  *time.Time        `json:"subscriptionEndDate"`
	TrialDaysLeft        int               `json:"trialDaysLeft"`
	SubscriptionDaysLeft *int              `json:"subscriptionDaysLeft,omitempty"`
	IsTrialActive        bool              `json:"isTrialActive"`
	HasAccess            bool              `json:"hasAccess"`
	PlanType             PlanType          `json:"planType"`
}

// DaysLeft returns ceil((date-now)/24h), floored at zero.
func DaysLeft(date time.Time, now time.Time) int {
	remaining := date.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}

// ComputeAccessView derives the client-facing entitlement view from the
// profile and the latest approved subscription record (latest may be nil).
//
// Access is premium-only: trial dates are still surfaced for the UI, but a
// live trial does not set HasAccess and is never reported as an
// access-granting status.
func ComputeAccessView(profile *EntitlementProfile, latest *SubscriptionRecord, now time.Time) AccessView {
	view := AccessView{
		IsPremium:          profile.IsPremium,
		SubscriptionStatus: EntitlementStatusExpired,
		TrialEndDate:       profile.TrialEndDate,
		HasAccess:          profile.IsPremium,
	}
	if profile.IsPremium {
		view.SubscriptionStatus = EntitlementStatusActive
	}
	if profile.TrialEndDate != nil {
		view.TrialDaysLeft = DaysLeft(*profile.TrialEndDate, now)
		view.IsTrialActive = now.Before(*profile.TrialEndDate)
	}
	if latest != nil && latest.Status == RecordStatusApproved {
		view.PlanType = latest.PlanType
		view.SubscriptionEndDate = latest.ExpiresAt
		if latest.ExpiresAt != nil {
			days := DaysLeft(*latest.ExpiresAt, now)
			view.SubscriptionDaysLeft = &days
		}
	}
	return view
}
