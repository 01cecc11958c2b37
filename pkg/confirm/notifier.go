package confirm

import (
	"context"
	"fmt"
	"strings"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
	"github.com/dtool-infra/dtool-config-generator/pkg/mail"
	"github.com/dtool-infra/dtool-config-generator/pkg/models"
)

// NotifierConfig holds settings for confirmation notifications.
type NotifierConfig struct {
	// ExternalURL is the externally reachable base URL of this
	// service, used to build the confirmation link.
	ExternalURL string

	// Sender and Recipient of the notification. The recipient is the
	// administrative mailbox, not the user.
	Sender    string
	Recipient string
}

// Notifier mails confirmation links to the administrative mailbox.
type Notifier struct {
	cfg    NotifierConfig
	tokens *TokenService
	sender mail.Sender
}

// NewNotifier creates a notifier.
func NewNotifier(cfg NotifierConfig, tokens *TokenService, sender mail.Sender) *Notifier {
	return &Notifier{
		cfg:    cfg,
		tokens: tokens,
		sender: sender,
	}
}

// RequireConfirmation issues a confirmation token for the user and
// mails the confirmation link to the admin mailbox.
func (n *Notifier) RequireConfirmation(ctx context.Context, user *models.User) error {
	token, err := n.tokens.Issue(user)
	if err != nil {
		return fmt.Errorf("failed to issue confirmation token: %w", err)
	}

	confirmURL := strings.TrimRight(n.cfg.ExternalURL, "/") + "/auth/confirm/" + token

	msg := &mail.Message{
		From:    n.cfg.Sender,
		To:      n.cfg.Recipient,
		Subject: fmt.Sprintf("Confirm new user %s", user.Username),
		Body: fmt.Sprintf(
			"A new user signed in for the first time and awaits confirmation.\n"+
				"\n"+
				"  Username: %s\n"+
				"  Name:     %s\n"+
				"  Email:    %s\n"+
				"\n"+
				"Confirm the account by following this link (valid for %s):\n"+
				"\n"+
				"  %s\n",
			user.Username, user.GetDisplayName(), user.Email,
			n.tokens.Validity(), confirmURL),
	}

	logger.Debug("sending confirmation mail", "username", user.Username, "recipient", n.cfg.Recipient)
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send confirmation mail: %w", err)
	}
	return nil
}
