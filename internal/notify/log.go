package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogNotifier writes messages to the log instead of sending them. It is used
// when no mail API key is configured.
type LogNotifier struct {
	renderer Renderer
}

func NewLogNotifier(cfg *Config) *LogNotifier {
	return &LogNotifier{renderer: NewRenderer(cfg.SiteURL)}
}

func (n *LogNotifier) Notify(_ context.Context, to Recipient, kind Kind, params Params) error {
	msg, err := n.renderer.Render(to, kind, params)
	if err != nil {
		return err
	}
	log.Info().
		Str("kind", string(kind)).
		Str("to", to.Email).
		Str("subject", msg.Subject).
		Str("link", n.renderer.Link(kind, params)).
		Msg("email not sent, no mail API key configured")
	return nil
}
