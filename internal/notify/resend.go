package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"todoapp/internal/domain/errors"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog/log"
)

const defaultFrom = "To-Do App <onboarding@resend.dev>"

// ResendNotifier sends mail through the Resend HTTP API.
type ResendNotifier struct {
	client   *resend.Client
	from     string
	renderer Renderer
}

func NewResendNotifier(cfg *Config, httpClient *http.Client) *ResendNotifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	from := cfg.From
	if from == "" {
		from = defaultFrom
	}
	return &ResendNotifier{
		client:   resend.NewCustomClient(httpClient, cfg.APIKey),
		from:     from,
		renderer: NewRenderer(cfg.SiteURL),
	}
}

func (n *ResendNotifier) Notify(ctx context.Context, to Recipient, kind Kind, params Params) error {
	msg, err := n.renderer.Render(to, kind, params)
	if err != nil {
		return err
	}

	sent, err := n.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{to.Email},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Tags:    []resend.Tag{{Name: "kind", Value: string(kind)}},
	})
	if err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Str("to", to.Email).Msg("email delivery failed")
		return fmt.Errorf("%w: %w", errors.ErrNotificationFailed, err)
	}

	log.Info().Str("kind", string(kind)).Str("to", to.Email).Str("id", sent.Id).Msg("email sent")
	return nil
}
