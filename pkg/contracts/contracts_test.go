package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobber/pkg/messaging"
)

func TestDecodeRejectsMalformedEnvelopes(t *testing.T) {
	bodies := map[string]string{
		"not json":         `not-json`,
		"array":            `[{"type":"auth"}]`,
		"null":             `null`,
		"missing type":     `{"email":"ada@x.io"}`,
		"numeric type":     `{"type":7}`,
		"empty type":       `{"type":"  "}`,
		"truncated":        `{"type":"auth","email":`,
		"empty body":       ``,
		"string literal":   `"auth"`,
		"type is object":   `{"type":{"name":"auth"}}`,
		"type is null":     `{"type":null}`,
		"wrong field type": `{"type":"auth","email":42,"username":"ada"}`,
	}

	decoders := map[string]func([]byte) error{
		"buyer":   func(b []byte) error { _, err := DecodeBuyerMessage(b); return err },
		"seller":  func(b []byte) error { _, err := DecodeSellerMessage(b); return err },
		"review":  func(b []byte) error { _, err := DecodeReviewMessage(b); return err },
		"gigseed": func(b []byte) error { _, err := DecodeGigSeedMessage(b); return err },
	}

	for dname, dec := range decoders {
		for bname, body := range bodies {
			if bname == "wrong field type" && dname != "buyer" {
				continue
			}
			t.Run(dname+"/"+bname, func(t *testing.T) {
				err := dec([]byte(body))
				assert.ErrorIs(t, err, messaging.ErrMalformedMessage)
			})
		}
	}
}

func TestDecodeUnknownType(t *testing.T) {
	body := []byte(`{"type":"does-not-exist","sellerId":"S1"}`)

	_, err := DecodeBuyerMessage(body)
	assert.ErrorIs(t, err, messaging.ErrUnknownMessageType)
	_, err = DecodeSellerMessage(body)
	assert.ErrorIs(t, err, messaging.ErrUnknownMessageType)
	_, err = DecodeReviewMessage(body)
	assert.ErrorIs(t, err, messaging.ErrUnknownMessageType)
	_, err = DecodeGigSeedMessage(body)
	assert.ErrorIs(t, err, messaging.ErrUnknownMessageType)

	assert.NotErrorIs(t, err, messaging.ErrMalformedMessage)
	assert.Contains(t, err.Error(), "does-not-exist")
}

func TestDecodeBuyerMessage(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		body string
		want BuyerMessage
	}{
		{
			name: "auth",
			body: `{"type":"auth","username":"Ada","email":"ada@x.io","profilePicture":"p.png","country":"UK","createdAt":"2024-03-01T12:00:00Z"}`,
			want: &BuyerCreated{
				Type:           TypeAuth,
				Username:       "Ada",
				Email:          "ada@x.io",
				ProfilePicture: "p.png",
				Country:        "UK",
				CreatedAt:      &created,
			},
		},
		{
			name: "auth without createdAt",
			body: `{"type":"auth","username":"Ada","email":"ada@x.io"}`,
			want: &BuyerCreated{Type: TypeAuth, Username: "Ada", Email: "ada@x.io"},
		},
		{
			name: "purchased gig",
			body: `{"type":"update-purchased-gigs","buyerId":"B1","purchasedGigId":"G1","action":"purchased"}`,
			want: &PurchasedGigsUpdate{Type: TypeUpdatePurchasedGigs, BuyerID: "B1", PurchasedGigID: "G1", Action: ActionPurchased},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBuyerMessage([]byte(tt.body))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeBuyerMessage() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeBuyerMessageRequiresIdentity(t *testing.T) {
	for _, body := range []string{
		`{"type":"auth","username":"Ada"}`,
		`{"type":"auth","email":"ada@x.io"}`,
		`{"type":"update-purchased-gigs","purchasedGigId":"G1","action":"purchased"}`,
		`{"type":"update-purchased-gigs","buyerId":"B1","action":"purchased"}`,
		`{"type":"update-purchased-gigs","buyerId":"B1","purchasedGigId":"G1"}`,
		`{"type":"update-purchased-gigs","buyerId":"B1","purchasedGigId":"G1","action":"refunded"}`,
	} {
		_, err := DecodeBuyerMessage([]byte(body))
		assert.ErrorIs(t, err, messaging.ErrMalformedMessage, body)
	}
}

func TestDecodeSellerMessage(t *testing.T) {
	delivered := time.Date(2024, 5, 20, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		body string
		want SellerMessage
	}{
		{
			body: `{"type":"create-order","sellerId":"S1","ongoingJobs":1}`,
			want: &OrderCreated{Type: TypeCreateOrder, SellerID: "S1", OngoingJobs: 1},
		},
		{
			body: `{"type":"update-gig-count","gigSellerId":"S1","count":-1}`,
			want: &GigCountUpdate{Type: TypeUpdateGigCount, GigSellerID: "S1", Count: -1},
		},
		{
			body: `{"type":"approve-order","sellerId":"S1","ongoingJobs":-1,"completedJobs":1,"totalEarnings":42.5,"recentDelivery":"2024-05-20T08:30:00Z"}`,
			want: &OrderApproved{
				Type:           TypeApproveOrder,
				SellerID:       "S1",
				OngoingJobs:    -1,
				CompletedJobs:  1,
				TotalEarnings:  42.5,
				RecentDelivery: &delivered,
			},
		},
		{
			body: `{"type":"cancel-order","sellerId":"S1"}`,
			want: &OrderCancelled{Type: TypeCancelOrder, SellerID: "S1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.want.MessageType(), func(t *testing.T) {
			got, err := DecodeSellerMessage([]byte(tt.body))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeSellerMessage() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	_, err := DecodeSellerMessage([]byte(`{"type":"update-gig-count","sellerId":"S1","count":1}`))
	assert.ErrorIs(t, err, messaging.ErrMalformedMessage, "update-gig-count is keyed by gigSellerId")
}

func TestDecodeReviewMessageKeepsRawBody(t *testing.T) {
	body := `{"type":"buyer-review","rating":5,"sellerId":"S1","gigId":"G1","reviewerId":"B1","review":"great","extra":{"kept":true}}`

	msg, err := DecodeReviewMessage([]byte(body))
	require.NoError(t, err)

	want := &BuyerReview{
		Type:       TypeBuyerReview,
		GigID:      "G1",
		SellerID:   "S1",
		ReviewerID: "B1",
		Review:     "great",
		Rating:     5,
	}
	if diff := cmp.Diff(want, msg, cmpopts.IgnoreFields(BuyerReview{}, "Raw")); diff != "" {
		t.Errorf("DecodeReviewMessage() mismatch (-want +got):\n%s", diff)
	}

	update, err := json.Marshal(NewGigReviewUpdate(msg.(*BuyerReview)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"update-gig","gigReview":`+body+`}`, string(update))
}

func TestDecodeGigSeedMessage(t *testing.T) {
	msg, err := DecodeGigSeedMessage([]byte(`{"type":"get-sellers","count":"3"}`))
	assert.ErrorIs(t, err, messaging.ErrMalformedMessage)
	assert.Nil(t, msg)

	_, err = DecodeGigSeedMessage([]byte(`{"type":"get-sellers","count":0}`))
	assert.ErrorIs(t, err, messaging.ErrMalformedMessage)

	msg, err = DecodeGigSeedMessage([]byte(`{"type":"get-sellers","count":3}`))
	require.NoError(t, err)
	assert.Equal(t, &GetSellers{Type: TypeGetSellers, Count: 3}, msg)

	reply, err := json.Marshal(NewReceiveSellers([]string{"S1", "S2"}, 2))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"receiveSellers","sellers":["S1","S2"],"count":2}`, string(reply))
}

func TestDecodeEmailMessage(t *testing.T) {
	body := `{"receiverEmail":"bob@x.io","template":"orderPlaced","username":"bob","amount":25,"deliveryDays":"3","total":27.5,"orderId":"O1","type":"direct"}`

	got, err := DecodeEmailMessage([]byte(body))
	require.NoError(t, err)

	want := &EmailMessage{
		ReceiverEmail: "bob@x.io",
		Template:      TemplateOrderPlaced,
		EmailLocals: EmailLocals{
			Username:     "bob",
			Amount:       "25",
			DeliveryDays: "3",
			Total:        "27.5",
			OrderID:      "O1",
			Type:         "direct",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DecodeEmailMessage() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, TemplateOrderPlaced, got.MessageType())
}

func TestDecodeEmailMessageRequiresTemplateAndReceiver(t *testing.T) {
	for _, body := range []string{
		`{"receiverEmail":"bob@x.io"}`,
		`{"receiverEmail":"bob@x.io","template":""}`,
		`{"template":"verifyEmail","username":"bob"}`,
		`{"template":"verifyEmail","receiverEmail":"bob@x.io","amount":true}`,
		`not-json`,
	} {
		_, err := DecodeEmailMessage([]byte(body))
		assert.ErrorIs(t, err, messaging.ErrMalformedMessage, body)
	}
}

func TestNewVerifyEmailRoundTrips(t *testing.T) {
	raw, err := json.Marshal(NewVerifyEmail("ada@x.io", "Ada", "http://localhost:3000/confirm_email?v_token=abc"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"receiverEmail":"ada@x.io","template":"verifyEmail","username":"Ada","verifyLink":"http://localhost:3000/confirm_email?v_token=abc"}`, string(raw))
}
