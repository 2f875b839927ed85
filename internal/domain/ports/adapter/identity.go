package adapter

import (
	"context"

	"purchase-entitlement-service/internal/domain/model"
)

// IdentityProvider is the hex port for the external account store. Lookup is
// case-sensitive exact-match on email, delegated to the provider.
type IdentityProvider interface {
	FindAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	// CreateAccount registers a new account with a generated opaque credential.
	// The credential is never transmitted to the customer; sessions are minted
	// separately.
	CreateAccount(ctx context.Context, email, credential string) (*model.Account, error)
}

// SessionIssuer mints a fresh session credential pair for an account.
type SessionIssuer interface {
	IssueSession(ctx context.Context, accountID, email string) (accessToken, refreshToken string, err error)
}
