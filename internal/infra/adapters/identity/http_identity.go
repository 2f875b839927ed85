// File: internal/infra/adapters/identity/http_identity.go
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"purchase-entitlement-service/internal/domain"
	"purchase-entitlement-service/internal/domain/model"
	"purchase-entitlement-service/internal/domain/ports/adapter"
)

var _ adapter.IdentityProvider = (*HTTPIdentityProvider)(nil)

// HTTPIdentityProvider talks to the identity provider's admin API with a
// service key. Lookup is an exact-match query on email; the provider owns
// matching semantics beyond that.
type HTTPIdentityProvider struct {
	baseURL    string
	serviceKey string
	client     *http.Client
}

func NewHTTPIdentityProvider(baseURL, serviceKey string) (*HTTPIdentityProvider, error) {
	if baseURL == "" {
		return nil, errors.New("identity base url empty")
	}
	if serviceKey == "" {
		return nil, errors.New("identity service key empty")
	}
	return &HTTPIdentityProvider{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type accountPayload struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *HTTPIdentityProvider) FindAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	u := fmt.Sprintf("%s/admin/users?email=%s", p.baseURL, url.QueryEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Join(domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity lookup: status %d: %w", resp.StatusCode, domain.ErrUpstream)
	}

	var out struct {
		Users []accountPayload `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Join(domain.ErrUpstream, err)
	}
	for _, u := range out.Users {
		if u.Email == email { // provider may fuzzy-match; we require exact
			return &model.Account{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (p *HTTPIdentityProvider) CreateAccount(ctx context.Context, email, credential string) (*model.Account, error) {
	body, _ := json.Marshal(map[string]any{
		"email":         email,
		"password":      credential,
		"email_confirm": true,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/admin/users", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Join(domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		// Lost a create race; the account exists now, so read it back.
		return p.FindAccountByEmail(ctx, email)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("identity create: status %d: %w", resp.StatusCode, domain.ErrUpstream)
	}

	var out accountPayload
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Join(domain.ErrUpstream, err)
	}
	return &model.Account{ID: out.ID, Email: out.Email, CreatedAt: out.CreatedAt}, nil
}

func (p *HTTPIdentityProvider) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.serviceKey)
	req.Header.Set("apikey", p.serviceKey)
}
