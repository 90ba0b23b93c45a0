package twilio

import (
	"context"
	"fmt"
	"log/slog"

	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"basegraph.app/textrelay/internal/domain"
)

const providerName = "twilio"

// messageCreator is the part of the REST API the messenger needs.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Messenger sends messages through the Programmable Messaging REST API.
type Messenger struct {
	api    messageCreator
	logger *slog.Logger
}

type MessengerConfig struct {
	AccountSID string
	AuthToken  string
}

func NewMessenger(cfg MessengerConfig, logger *slog.Logger) (*Messenger, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("twilio account sid and auth token are required")
	}

	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return newMessenger(rest.Api, logger), nil
}

func newMessenger(api messageCreator, logger *slog.Logger) *Messenger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Messenger{
		api:    api,
		logger: logger.With("provider", providerName),
	}
}

// Send creates one outbound message and returns its provider id.
// The REST client takes no context; ctx is only checked before the call.
func (m *Messenger) Send(ctx context.Context, d domain.Delivery) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("sending message: %w", err)
	}
	if d.To == "" {
		return "", fmt.Errorf("sending message: destination is required")
	}
	if d.From == "" {
		return "", fmt.Errorf("sending message: sending address is required")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(d.To)
	params.SetFrom(d.From)
	params.SetBody(d.Body)

	m.logger.DebugContext(ctx, "sending message", "to", d.To, "body_len", len(d.Body))

	resp, err := m.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("creating twilio message: %w", err)
	}

	var sid string
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	return sid, nil
}

func (m *Messenger) Name() string {
	return providerName
}
