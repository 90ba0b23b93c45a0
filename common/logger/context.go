package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, so the orchestrator and the deferred
// delivery log with the same message_id as the webhook that started them.
type LogFields struct {
	MessageID  *int64  // Relay-assigned snowflake id of the inbound message
	MessageSID *string // Provider message id (Twilio MessageSid)
	Sender     *string // Sender address, e.g. "whatsapp:+15551234567"
	Outcome    *string // Reply outcome ("immediate", "deferred")
	Component  string  // Component name (OTel semantic convention style, e.g., "textrelay.reply")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.MessageSID != nil {
		result.MessageSID = new.MessageSID
	}
	if new.Sender != nil {
		result.Sender = new.Sender
	}
	if new.Outcome != nil {
		result.Outcome = new.Outcome
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{MessageID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
// Message bodies are user input of any length; log a prefix only.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
