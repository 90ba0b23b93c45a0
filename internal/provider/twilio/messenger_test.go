package twilio

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"basegraph.app/textrelay/internal/domain"
)

type fakeMessageAPI struct {
	params []*openapi.CreateMessageParams
	sid    string
	err    error
}

func (f *fakeMessageAPI) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := f.sid
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

var _ = Describe("Messenger", func() {
	var (
		api       *fakeMessageAPI
		messenger *Messenger
		delivery  domain.Delivery
	)

	BeforeEach(func() {
		api = &fakeMessageAPI{sid: "SM42"}
		messenger = newMessenger(api, nil)
		delivery = domain.Delivery{To: "+15551234567", From: "+15550000000", Body: "Hi there"}
	})

	It("creates one message with the delivery fields", func() {
		sid, err := messenger.Send(context.Background(), delivery)

		Expect(err).NotTo(HaveOccurred())
		Expect(sid).To(Equal("SM42"))
		Expect(api.params).To(HaveLen(1))
		Expect(*api.params[0].To).To(Equal("+15551234567"))
		Expect(*api.params[0].From).To(Equal("+15550000000"))
		Expect(*api.params[0].Body).To(Equal("Hi there"))
	})

	It("wraps API errors", func() {
		api.err = errors.New("21211 invalid to number")
		_, err := messenger.Send(context.Background(), delivery)
		Expect(err).To(MatchError(ContainSubstring("21211")))
	})

	It("does not call the API for a cancelled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := messenger.Send(ctx, delivery)
		Expect(err).To(MatchError(context.Canceled))
		Expect(api.params).To(BeEmpty())
	})

	It("requires both addresses", func() {
		delivery.From = ""
		_, err := messenger.Send(context.Background(), delivery)
		Expect(err).To(HaveOccurred())
		Expect(api.params).To(BeEmpty())
	})

	It("refuses to build without credentials", func() {
		_, err := NewMessenger(MessengerConfig{AccountSID: "AC1"}, nil)
		Expect(err).To(HaveOccurred())
	})

	It("reports its provider name", func() {
		Expect(messenger.Name()).To(Equal("twilio"))
	})
})
