package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// sign implements the documented webhook signature: HMAC-SHA1 over the URL
// followed by every POST field name and value in key order, base64 encoded.
func sign(token, rawURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	payload := rawURL
	for _, k := range keys {
		payload += k + form.Get(k)
	}

	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

var _ = Describe("SignatureVerifier", func() {
	const (
		token   = "12345"
		hookURL = "https://relay.example.com/webhook"
	)

	var (
		verifier *SignatureVerifier
		form     url.Values
	)

	BeforeEach(func() {
		verifier = NewSignatureVerifier(token)
		form = url.Values{
			"From":       {"+15551234567"},
			"Body":       {"hello"},
			"MessageSid": {"SM0001"},
		}
	})

	It("accepts a correctly signed request", func() {
		Expect(verifier.Verify(hookURL, form, sign(token, hookURL, form))).To(BeTrue())
	})

	It("is idempotent", func() {
		sig := sign(token, hookURL, form)
		first := verifier.Verify(hookURL, form, sig)
		second := verifier.Verify(hookURL, form, sig)
		Expect(first).To(Equal(second))

		Expect(verifier.Verify(hookURL, form, "bogus")).To(Equal(verifier.Verify(hookURL, form, "bogus")))
	})

	DescribeTable("rejects",
		func(mutate func() (string, url.Values, string)) {
			u, f, sig := mutate()
			Expect(verifier.Verify(u, f, sig)).To(BeFalse())
		},
		Entry("a missing signature", func() (string, url.Values, string) {
			return hookURL, form, ""
		}),
		Entry("a tampered body", func() (string, url.Values, string) {
			sig := sign(token, hookURL, form)
			tampered := url.Values{"From": {"+15551234567"}, "Body": {"goodbye"}, "MessageSid": {"SM0001"}}
			return hookURL, tampered, sig
		}),
		Entry("a different URL", func() (string, url.Values, string) {
			return "https://other.example.com/webhook", form, sign(token, hookURL, form)
		}),
		Entry("a signature made with another token", func() (string, url.Values, string) {
			return hookURL, form, sign("other", hookURL, form)
		}),
	)

	It("never verifies without an auth token", func() {
		unconfigured := NewSignatureVerifier("")
		Expect(unconfigured.Verify(hookURL, form, sign("", hookURL, form))).To(BeFalse())
	})
})
