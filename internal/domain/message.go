package domain

// InboundMessage is one user message received on the webhook.
type InboundMessage struct {
	ID         int64  // relay-assigned snowflake id, for log correlation only
	MessageSID string // provider message id (Twilio MessageSid), may be empty
	From       string // sender address, e.g. "+15551234567" or "whatsapp:+15551234567"
	Body       string // message text; empty when the provider sent none
}

// Delivery is an out-of-band message send. There is no retry state: a
// delivery is attempted once.
type Delivery struct {
	To   string // destination, the inbound sender
	From string // configured sending address
	Body string
}
