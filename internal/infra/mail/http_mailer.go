// Package mail delivers templated messages through an HTTP mail relay.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"academy/config"
	"academy/internal/domain/service"

	"github.com/pkg/errors"
)

// relayPayload is the wire shape accepted by the relay service.
type relayPayload struct {
	Recipient string         `json:"recipient"`
	Template  string         `json:"template"`
	Data      map[string]any `json:"data,omitempty"`
}

// httpMailer implements service.Mailer by POSTing render requests to a relay
// endpoint. Rendering and SMTP delivery live in the relay, not here.
type httpMailer struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// noopMailer drops messages when no relay is configured. Alerts are advisory,
// so a missing relay degrades to logging instead of failing startup.
type noopMailer struct {
	logger *slog.Logger
}

// NewMailer builds a Mailer from configuration, falling back to a no-op
// implementation when no relay endpoint is set.
func NewMailer(cfg *config.Config, logger *slog.Logger) service.Mailer {
	if cfg.Mail.RelayEndpoint == "" {
		logger.Info("Mail relay not configured, using no-op mailer")

		return &noopMailer{logger: logger}
	}

	return &httpMailer{
		endpoint: cfg.Mail.RelayEndpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Send posts one templated message to the relay.
func (m *httpMailer) Send(ctx context.Context, recipient string, kind service.TemplateKind, data map[string]any) error {
	body, err := json.Marshal(relayPayload{
		Recipient: recipient,
		Template:  string(kind),
		Data:      data,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("mail relay returned non-success status: %d", resp.StatusCode)
	}

	m.logger.Info("Successfully dispatched mail",
		slog.String("template", string(kind)),
	)

	return nil
}

func (m *noopMailer) Send(ctx context.Context, recipient string, kind service.TemplateKind, data map[string]any) error {
	m.logger.Debug("[NoopMailer] Mail delivery disabled, skipping",
		slog.String("template", string(kind)),
	)

	return nil
}
