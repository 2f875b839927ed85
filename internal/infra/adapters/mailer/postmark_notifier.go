// File: internal/infra/adapters/mailer/postmark_notifier.go
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"

	"purchase-entitlement-service/internal/domain"
	"purchase-entitlement-service/internal/domain/ports/adapter"
)

var _ adapter.FulfillmentNotifier = (*PostmarkNotifier)(nil)

// PostmarkNotifier delivers the post-purchase confirmation email. Rendering
// stays minimal on purpose; the real template lives with the email provider.
type PostmarkNotifier struct {
	client *postmark.Client
	from   string
}

func NewPostmarkNotifier(serverToken, from string) (*PostmarkNotifier, error) {
	if serverToken == "" || from == "" {
		return nil, errors.New("postmark token and from address are required")
	}
	return &PostmarkNotifier{
		client: postmark.NewClient(serverToken, ""),
		from:   from,
	}, nil
}

func (n *PostmarkNotifier) SendPurchaseConfirmation(ctx context.Context, email string, plan string) error {
	_, err := n.client.SendEmail(ctx, postmark.Email{
		From:     n.from,
		To:       email,
		Subject:  "Your purchase is confirmed",
		TextBody: fmt.Sprintf("Your %s plan is now active. Open the app and sign in with this email address to get started.", plan),
		Tag:      "purchase-confirmation",
	})
	if err != nil {
		return errors.Join(domain.ErrUpstream, err)
	}
	return nil
}
