// Package twiml renders the reply markup the messaging provider expects from a
// webhook: a Response document with at most one Message.
package twiml

import (
	"fmt"

	"github.com/twilio/twilio-go/twiml"
)

const ContentType = "application/xml"

// Render wraps text in <Response><Message>…</Message></Response>. The text is
// user- and model-controlled; reserved XML characters are escaped by the
// encoder, never interpolated.
func Render(text string) (string, error) {
	doc, err := twiml.Messages([]twiml.Element{
		&twiml.MessagingMessage{Body: text},
	})
	if err != nil {
		return "", fmt.Errorf("rendering twiml message: %w", err)
	}
	return doc, nil
}

// RenderEmpty renders a Response with no Message, which tells the provider not
// to reply at all.
func RenderEmpty() (string, error) {
	doc, err := twiml.Messages(nil)
	if err != nil {
		return "", fmt.Errorf("rendering empty twiml: %w", err)
	}
	return doc, nil
}
