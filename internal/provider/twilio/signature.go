package twilio

import (
	"net/url"

	"github.com/twilio/twilio-go/client"
)

// SignatureHeader carries the provider's request signature.
const SignatureHeader = "X-Twilio-Signature"

// SignatureVerifier checks that a webhook request was signed with the account
// auth token. It is a pure predicate: the same inputs always give the same answer.
type SignatureVerifier struct {
	validator client.RequestValidator
	enabled   bool
}

func NewSignatureVerifier(authToken string) *SignatureVerifier {
	return &SignatureVerifier{
		validator: client.NewRequestValidator(authToken),
		enabled:   authToken != "",
	}
}

// Verify reports whether signature matches the public URL the provider called
// and the posted form fields. Missing token or signature never verifies.
func (v *SignatureVerifier) Verify(publicURL string, form url.Values, signature string) bool {
	if !v.enabled || signature == "" {
		return false
	}
	return v.validator.Validate(publicURL, flattenForm(form), signature)
}

// flattenForm keeps the first value of every field. Messaging webhooks never
// repeat a field.
func flattenForm(form url.Values) map[string]string {
	params := make(map[string]string, len(form))
	for key, values := range form {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}
