package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"basegraph.app/textrelay/common/id"
	"basegraph.app/textrelay/common/logger"
	"basegraph.app/textrelay/internal/dedupe"
	"basegraph.app/textrelay/internal/domain"
	"basegraph.app/textrelay/internal/provider/twilio"
	"basegraph.app/textrelay/internal/reply"
	"basegraph.app/textrelay/internal/twiml"
)

// SignatureVerifier checks a webhook signature against the URL the provider
// called and the posted form.
type SignatureVerifier interface {
	Verify(publicURL string, form url.Values, signature string) bool
}

// Replier produces the reply for one inbound message.
type Replier interface {
	Handle(ctx context.Context, msg domain.InboundMessage) reply.Outcome
}

type TwilioWebhookConfig struct {
	// PublicBaseURL is the externally visible origin, e.g. "https://relay.example.com".
	// When empty the URL is rebuilt from the request and X-Forwarded-* headers.
	PublicBaseURL string
	// Echo answers "Echo: <body>" instead of calling the replier.
	Echo bool
}

type TwilioWebhookHandler struct {
	verifier SignatureVerifier
	replier  Replier
	guard    dedupe.Guard
	cfg      TwilioWebhookConfig
}

func NewTwilioWebhookHandler(verifier SignatureVerifier, replier Replier, guard dedupe.Guard, cfg TwilioWebhookConfig) *TwilioWebhookHandler {
	if guard == nil {
		guard = dedupe.NewNoopGuard()
	}
	return &TwilioWebhookHandler{
		verifier: verifier,
		replier:  replier,
		guard:    guard,
		cfg:      cfg,
	}
}

func (h *TwilioWebhookHandler) HandleMessage(c *gin.Context) {
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{Component: "textrelay.webhook"})

	if err := c.Request.ParseForm(); err != nil {
		slog.WarnContext(ctx, "failed to parse webhook form", "error", err)
		c.String(http.StatusBadRequest, "invalid form")
		return
	}
	form := c.Request.PostForm

	publicURL := h.publicURL(c.Request)
	if !h.verifier.Verify(publicURL, form, c.GetHeader(twilio.SignatureHeader)) {
		slog.WarnContext(ctx, "twilio signature check failed", "url", publicURL)
		c.String(http.StatusForbidden, "Invalid signature")
		return
	}

	msg := domain.InboundMessage{
		ID:         id.New(),
		MessageSID: form.Get("MessageSid"),
		From:       form.Get("From"),
		Body:       form.Get("Body"),
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID:  logger.Ptr(msg.ID),
		MessageSID: logger.Ptr(msg.MessageSID),
		Sender:     logger.Ptr(msg.From),
	})

	slog.DebugContext(ctx, "inbound message received",
		"url", publicURL,
		"body", logger.Truncate(msg.Body, 200),
		"body_len", len(msg.Body))

	first, err := h.guard.Claim(ctx, msg.MessageSID)
	if err != nil {
		slog.WarnContext(ctx, "duplicate check failed, processing anyway", "error", err)
		first = true
	}
	if !first {
		h.writeEmpty(ctx, c)
		return
	}

	var text string
	if h.cfg.Echo {
		text = "Echo: " + msg.Body
	} else {
		outcome := h.replier.Handle(ctx, msg)
		text = outcome.Text
	}

	h.writeMessage(ctx, c, text)
}

func (h *TwilioWebhookHandler) writeMessage(ctx context.Context, c *gin.Context, text string) {
	doc, err := twiml.Render(text)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render reply markup", "error", err)
		c.String(http.StatusInternalServerError, "failed to render reply")
		return
	}
	c.Data(http.StatusOK, twiml.ContentType, []byte(doc))
}

func (h *TwilioWebhookHandler) writeEmpty(ctx context.Context, c *gin.Context) {
	doc, err := twiml.RenderEmpty()
	if err != nil {
		slog.ErrorContext(ctx, "failed to render empty reply markup", "error", err)
		c.String(http.StatusInternalServerError, "failed to render reply")
		return
	}
	c.Data(http.StatusOK, twiml.ContentType, []byte(doc))
}

// publicURL is the URL the provider signed. Behind a proxy or load balancer
// the server sees a different scheme and host than the provider called.
func (h *TwilioWebhookHandler) publicURL(r *http.Request) string {
	if h.cfg.PublicBaseURL != "" {
		return strings.TrimRight(h.cfg.PublicBaseURL, "/") + r.URL.RequestURI()
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := firstHeaderValue(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		scheme = proto
	}

	host := r.Host
	if fwd := firstHeaderValue(r.Header.Get("X-Forwarded-Host")); fwd != "" {
		host = fwd
	}

	return scheme + "://" + host + r.URL.RequestURI()
}

func firstHeaderValue(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}
