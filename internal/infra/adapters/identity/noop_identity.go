package identity

import (
	"context"
	"sync"
	"time"

	"purchase-entitlement-service/internal/domain"
	"purchase-entitlement-service/internal/domain/model"
	"purchase-entitlement-service/internal/domain/ports/adapter"

	"github.com/google/uuid"
)

var _ adapter.IdentityProvider = (*NoopIdentityProvider)(nil)

// NoopIdentityProvider keeps accounts in memory for dev mode.
type NoopIdentityProvider struct {
	mu      sync.Mutex
	byEmail map[string]*model.Account
}

func NewNoopIdentityProvider() *NoopIdentityProvider {
	return &NoopIdentityProvider{byEmail: make(map[string]*model.Account)}
}

func (p *NoopIdentityProvider) FindAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.byEmail[email]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (p *NoopIdentityProvider) CreateAccount(ctx context.Context, email, credential string) (*model.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.byEmail[email]; ok {
		cp := *a
		return &cp, nil
	}
	a := &model.Account{ID: uuid.NewString(), Email: email, CreatedAt: time.Now()}
	p.byEmail[email] = a
	cp := *a
	return &cp, nil
}
