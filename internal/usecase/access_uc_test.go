//go:build !integration

// File: internal/usecase/access_uc_test.go
package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"purchase-entitlement-service/internal/domain"
	"purchase-entitlement-service/internal/domain/model"
	"purchase-entitlement-service/internal/usecase"
)

func TestAccessVerifier_Verify(t *testing.T) {
	ctx := context.Background()

	newVerifier := func(intents *MockIntentRepo, identity *MockIdentity, profiles *MockProfileRepo, records *MockRecordRepo) usecase.AccessVerifier {
		log := newTestLogger()
		provisioner := usecase.NewAccountProvisioner(identity, profiles, records, log)
		return usecase.NewAccessVerifier(intents, provisioner, &MockSessions{}, log)
	}

	t.Run("no approved payment yields denial without side effects", func(t *testing.T) {
		intents := NewMockIntentRepo()
		seedIntent(t, intents, func(p *model.PurchaseIntent) {
			p.Email = strPtr("buyer@example.com") // still pending
		})
		identity := NewMockIdentity()

		v := newVerifier(intents, identity, NewMockProfileRepo(), NewMockRecordRepo())
		grant, err := v.Verify(ctx, "buyer@example.com")
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if grant.HasValidPayment {
			t.Error("granted access without an approved payment")
		}
		if grant.AccessToken != "" || grant.RefreshToken != "" {
			t.Error("tokens issued on denial")
		}
		if identity.Count() != 0 {
			t.Errorf("accounts = %d, want 0 (denial must be side-effect free)", identity.Count())
		}
	})

	t.Run("recent approved payment grants access and provisions", func(t *testing.T) {
		intents := NewMockIntentRepo()
		seedIntent(t, intents, func(p *model.PurchaseIntent) {
			p.Email = strPtr("buyer@example.com")
			p.Status = model.IntentStatusApproved
		})
		identity := NewMockIdentity()
		profiles := NewMockProfileRepo()
		records := NewMockRecordRepo()

		v := newVerifier(intents, identity, profiles, records)
		grant, err := v.Verify(ctx, "buyer@example.com")
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if !grant.HasValidPayment {
			t.Fatal("approved payment not recognized")
		}
		if grant.AccessToken == "" || grant.RefreshToken == "" {
			t.Error("session tokens missing")
		}
		if grant.AccountID == "" {
			t.Error("account id missing from grant")
		}
		if identity.Count() != 1 {
			t.Errorf("accounts = %d, want 1", identity.Count())
		}
		if profiles.Count() != 1 {
			t.Errorf("profiles = %d, want 1", profiles.Count())
		}
	})

	t.Run("lookup widens past the recency window", func(t *testing.T) {
		intents := NewMockIntentRepo()
		seedIntent(t, intents, func(p *model.PurchaseIntent) {
			p.Email = strPtr("old@example.com")
			p.Status = model.IntentStatusApproved
			p.UpdatedAt = time.Now().Add(-72 * time.Hour)
		})

		v := newVerifier(intents, NewMockIdentity(), NewMockProfileRepo(), NewMockRecordRepo())
		grant, err := v.Verify(ctx, "old@example.com")
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if !grant.HasValidPayment {
			t.Error("old approved payment not found by widened lookup")
		}
	})

	t.Run("verify after webhook provisioning stays idempotent", func(t *testing.T) {
		intents := NewMockIntentRepo()
		seedIntent(t, intents, func(p *model.PurchaseIntent) {
			p.Email = strPtr("buyer@example.com")
			p.Status = model.IntentStatusApproved
		})
		identity := NewMockIdentity()
		profiles := NewMockProfileRepo()
		records := NewMockRecordRepo()

		// Webhook path already confirmed this purchase.
		provisioner := usecase.NewAccountProvisioner(identity, profiles, records, newTestLogger())
		if _, err := provisioner.ConfirmPurchase(ctx, "buyer@example.com", model.PlanMonthly, 1990, "BRL"); err != nil {
			t.Fatalf("ConfirmPurchase: %v", err)
		}

		v := newVerifier(intents, identity, profiles, records)
		grant, err := v.Verify(ctx, "buyer@example.com")
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if !grant.HasValidPayment {
			t.Fatal("verification denied a provisioned purchase")
		}
		if identity.Count() != 1 {
			t.Errorf("accounts = %d, want 1 (no duplicate account)", identity.Count())
		}
	})

	t.Run("empty email rejected", func(t *testing.T) {
		v := newVerifier(NewMockIntentRepo(), NewMockIdentity(), NewMockProfileRepo(), NewMockRecordRepo())
		if _, err := v.Verify(ctx, ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("err = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("session failure surfaces as upstream error", func(t *testing.T) {
		intents := NewMockIntentRepo()
		seedIntent(t, intents, func(p *model.PurchaseIntent) {
			p.Email = strPtr("buyer@example.com")
			p.Status = model.IntentStatusApproved
		})
		log := newTestLogger()
		provisioner := usecase.NewAccountProvisioner(NewMockIdentity(), NewMockProfileRepo(), NewMockRecordRepo(), log)
		v := usecase.NewAccessVerifier(intents, provisioner, &MockSessions{Err: errors.New("signer down")}, log)

		if _, err := v.Verify(ctx, "buyer@example.com"); !errors.Is(err, domain.ErrUpstream) {
			t.Errorf("err = %v, want ErrUpstream", err)
		}
	})
}

func TestProfileViewer_AccessView(t *testing.T) {
	ctx := context.Background()

	t.Run("premium profile with record", func(t *testing.T) {
		profiles := NewMockProfileRepo()
		records := NewMockRecordRepo()
		profile, _ := model.NewPremiumProfile("acc-1")
		if err := profiles.Upsert(ctx, nil, profile); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		exp := time.Now().Add(10 * 24 * time.Hour)
		if err := records.Append(ctx, nil, &model.SubscriptionRecord{
			ID: "01ARZ", AccountID: "acc-1", PlanType: model.PlanMonthly,
			Status: model.RecordStatusApproved, ExpiresAt: &exp, CreatedAt: time.Now(),
		}); err != nil {
			t.Fatalf("Append: %v", err)
		}

		view, err := usecase.NewProfileViewer(profiles, records).AccessView(ctx, "acc-1")
		if err != nil {
			t.Fatalf("AccessView: %v", err)
		}
		if !view.HasAccess || !view.IsPremium {
			t.Errorf("view = %+v, want premium access", view)
		}
		if view.PlanType != model.PlanMonthly {
			t.Errorf("plan = %s, want monthly", view.PlanType)
		}
		if view.SubscriptionDaysLeft == nil || *view.SubscriptionDaysLeft != 10 {
			t.Errorf("SubscriptionDaysLeft = %v, want 10", view.SubscriptionDaysLeft)
		}
	})

	t.Run("profile without records still renders", func(t *testing.T) {
		profiles := NewMockProfileRepo()
		profile, _ := model.NewPremiumProfile("acc-2")
		if err := profiles.Upsert(ctx, nil, profile); err != nil {
			t.Fatalf("Upsert: %v", err)
		}

		view, err := usecase.NewProfileViewer(profiles, NewMockRecordRepo()).AccessView(ctx, "acc-2")
		if err != nil {
			t.Fatalf("AccessView: %v", err)
		}
		if !view.HasAccess {
			t.Error("premium profile should grant access even without record history")
		}
		if view.SubscriptionEndDate != nil {
			t.Errorf("SubscriptionEndDate = %v, want nil", view.SubscriptionEndDate)
		}
	})

	t.Run("unknown account reports not found", func(t *testing.T) {
		viewer := usecase.NewProfileViewer(NewMockProfileRepo(), NewMockRecordRepo())
		if _, err := viewer.AccessView(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}
