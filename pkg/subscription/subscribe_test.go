package subscription

import (
	"encoding/json"
	"testing"

	"github.com/ringrelay/ringrelay/internal/target"
)

func TestCreateSubscriptionFansOutByEventType(t *testing.T) {
	Init()

	sub := &Subscription{
		OwnerId: "owner-1",
		Target: &target.Target{
			Type: target.TargetHTTP,
			HTTPDetails: &target.HTTPDetails{
				URL:    "http://localhost:9092/hook",
				Method: target.POSTMethod,
			},
		},
	}
	if err := sub.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if err := CreateSubscription("webhook.created", sub); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	found := GetSubscriptionsByEventType("webhook.created")
	if len(found) != 1 || found[0].OwnerId != "owner-1" {
		t.Fatalf("unexpected subscriptions for event type: %+v", found)
	}

	byOwner := GetSubscriptionsByOwner("owner-1")
	if len(byOwner) != 1 {
		t.Fatalf("expected one subscription by owner, got %d", len(byOwner))
	}

	if len(GetSubscriptionsByEventType("webhook.other")) != 0 {
		t.Fatal("expected no subscriptions for an unrelated event type")
	}
}

func TestSubscriptionUnmarshalJSONDerivesID(t *testing.T) {
	raw := []byte(`{"owner_id":"owner-2","target":{"type":"http","http_details":{"url":"http://localhost:9092/hook","method":"POST"}}}`)

	var sub Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if sub.OwnerId != "owner-2" {
		t.Fatalf("expected owner_id to round-trip, got %q", sub.OwnerId)
	}
	if sub.ID == "" {
		t.Fatal("expected UnmarshalJSON to derive an ID from the target")
	}
}
