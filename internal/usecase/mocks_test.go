//go:build !integration

// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"purchase-entitlement-service/internal/domain"
	"purchase-entitlement-service/internal/domain/model"
	"purchase-entitlement-service/internal/domain/ports/adapter"
	"purchase-entitlement-service/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func strPtr(s string) *string { return &s }

// --- In-memory purchase intent repo ---

type MockIntentRepo struct {
	repository.PurchaseIntentRepository
	mu      sync.Mutex
	intents map[string]*model.PurchaseIntent

	SaveErr       error
	TransitionErr error
}

func NewMockIntentRepo() *MockIntentRepo {
	return &MockIntentRepo{intents: make(map[string]*model.PurchaseIntent)}
}

func (m *MockIntentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PurchaseIntent) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.intents[p.ID] = &cp
	return nil
}

func (m *MockIntentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PurchaseIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.intents[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockIntentRepo) FindByExternalReference(ctx context.Context, tx repository.Tx, ref string) (*model.PurchaseIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.intents {
		if p.ExternalReference != nil && *p.ExternalReference == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockIntentRepo) ListByExternalReferenceFragment(ctx context.Context, tx repository.Tx, fragment string) ([]*model.PurchaseIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PurchaseIntent
	for _, p := range m.intents {
		if p.ExternalReference != nil && contains(*p.ExternalReference, fragment) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MockIntentRepo) FindByProcessorReference(ctx context.Context, tx repository.Tx, processorRef string) (*model.PurchaseIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.intents {
		if p.ProcessorReferenceID != nil && *p.ProcessorReferenceID == processorRef {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockIntentRepo) FindLatestPending(ctx context.Context, tx repository.Tx) (*model.PurchaseIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.PurchaseIntent
	for _, p := range m.intents {
		if p.Status != model.IntentStatusPending {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MockIntentRepo) TransitionIfPending(ctx context.Context, tx repository.Tx, id string, next model.IntentStatus, email, paymentID *string) (bool, error) {
	if m.TransitionErr != nil {
		return false, m.TransitionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.intents[id]
	if !ok || p.Status != model.IntentStatusPending {
		return false, nil
	}
	p.Status = next
	if email != nil {
		p.Email = email
	}
	if paymentID != nil {
		p.ProcessorPaymentID = paymentID
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockIntentRepo) Touch(ctx context.Context, tx repository.Tx, id string, status model.IntentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.intents[id]; ok {
		p.Status = status
		p.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MockIntentRepo) ListApprovedByEmailSince(ctx context.Context, tx repository.Tx, email string, since time.Time) ([]*model.PurchaseIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PurchaseIntent
	for _, p := range m.intents {
		if p.Status == model.IntentStatusApproved && p.Email != nil && *p.Email == email && !p.UpdatedAt.Before(since) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MockIntentRepo) ListApprovedByEmail(ctx context.Context, tx repository.Tx, email string) ([]*model.PurchaseIntent, error) {
	return m.ListApprovedByEmailSince(ctx, tx, email, time.Time{})
}

func (m *MockIntentRepo) ListStalePendingWithPaymentID(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PurchaseIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PurchaseIntent
	for _, p := range m.intents {
		if p.Status == model.IntentStatusPending && p.ProcessorPaymentID != nil && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func contains(s, sub string) bool {
	return len(sub) > 0 && len(s) >= len(sub) && indexOf(s, sub) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func sortNewestFirst(out []*model.PurchaseIntent) {
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
}

// --- In-memory entitlement profile repo ---

type MockProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*model.EntitlementProfile

	UpsertErr error
}

func NewMockProfileRepo() *MockProfileRepo {
	return &MockProfileRepo{profiles: make(map[string]*model.EntitlementProfile)}
}

func (m *MockProfileRepo) FindByAccountID(ctx context.Context, tx repository.Tx, accountID string) (*model.EntitlementProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[accountID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockProfileRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.EntitlementProfile) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profiles[p.AccountID] = &cp
	return nil
}

func (m *MockProfileRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.profiles)
}

// --- In-memory subscription record repo ---

type MockRecordRepo struct {
	mu      sync.Mutex
	records []*model.SubscriptionRecord

	AppendErr error
}

func NewMockRecordRepo() *MockRecordRepo { return &MockRecordRepo{} }

func (m *MockRecordRepo) Append(ctx context.Context, tx repository.Tx, rec *model.SubscriptionRecord) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records = append(m.records, &cp)
	return nil
}

func (m *MockRecordRepo) FindLatestApproved(ctx context.Context, tx repository.Tx, accountID string) (*model.SubscriptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.SubscriptionRecord
	for _, r := range m.records {
		if r.AccountID != accountID || r.Status != model.RecordStatusApproved {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MockRecordRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.SubscriptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SubscriptionRecord
	for _, r := range m.records {
		if r.AccountID == accountID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockRecordRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// --- Transaction manager ---

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

// WithTx runs the callback with a nil Tx by default, which exercises the
// non-transactional repository path. Assign WithTxFunc for transactional
// behavior in specific tests.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// --- Dedupe ---

type MockDedupe struct {
	mu   sync.Mutex
	seen map[string]bool
	Err  error
}

func NewMockDedupe() *MockDedupe { return &MockDedupe{seen: make(map[string]bool)} }

func (m *MockDedupe) MarkIfFirst(ctx context.Context, processor, paymentID string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := processor + ":" + paymentID
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *MockDedupe) Forget(ctx context.Context, processor, paymentID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, processor+":"+paymentID)
	return nil
}

// --- Identity provider ---

type MockIdentity struct {
	mu       sync.Mutex
	accounts map[string]*model.Account

	CreateCalls int
	FindErr     error
	CreateErr   error
}

func NewMockIdentity() *MockIdentity {
	return &MockIdentity{accounts: make(map[string]*model.Account)}
}

func (m *MockIdentity) FindAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[email]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockIdentity) CreateAccount(ctx context.Context, email, credential string) (*model.Account, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	a := &model.Account{ID: uuid.NewString(), Email: email, CreatedAt: time.Now()}
	m.accounts[email] = a
	cp := *a
	return &cp, nil
}

func (m *MockIdentity) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

// --- Fulfillment notifier ---

type MockNotifier struct {
	mu    sync.Mutex
	Sent  []string
	Err   error
	Ready chan struct{} // closed-ish signal: one token per send
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{Ready: make(chan struct{}, 16)}
}

func (m *MockNotifier) SendPurchaseConfirmation(ctx context.Context, email string, plan string) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, email)
	m.mu.Unlock()
	m.Ready <- struct{}{}
	return m.Err
}

func (m *MockNotifier) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// --- Session issuer ---

type MockSessions struct {
	Err error
}

func (m *MockSessions) IssueSession(ctx context.Context, accountID, email string) (string, string, error) {
	if m.Err != nil {
		return "", "", m.Err
	}
	return "access-" + accountID, "refresh-" + accountID, nil
}

var _ repository.TransactionManager = (*MockTxManager)(nil)
var _ adapter.IdentityProvider = (*MockIdentity)(nil)
var _ adapter.FulfillmentNotifier = (*MockNotifier)(nil)
var _ adapter.SessionIssuer = (*MockSessions)(nil)
var _ repository.DeliveryDedupe = (*MockDedupe)(nil)
