package subscription

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/ringrelay/ringrelay/internal/app"
	"github.com/ringrelay/ringrelay/internal/database"
	"github.com/ringrelay/ringrelay/internal/metrics"
	"github.com/ringrelay/ringrelay/internal/target"
	"github.com/gin-gonic/gin"
)

var m *metrics.Metrics

type Subscription struct {
	router   *gin.Engine
	db       database.Database
	isLegacy bool
}

type SubscriptionHandler interface {
	FindSubscribers(eventType, ownerID string, isLegacy bool) ([]Subscriber, error)
}

// NewSubscription wires the subscription service off f. legacyMode
// selects whether lookups consult the pre-migration legacy table
// SubscriptionModel understands instead of the current schema, per the
// server command's --legacy-mode flag.
func NewSubscription(f *app.HookRelayApp, legacyMode bool) (*Subscription, error) {
	return &Subscription{db: f.SubscriptionDb, router: f.Router, isLegacy: legacyMode}, nil
}

// FindSubscriptionsByEventTypeAndOwner delegates to the subscription
// model backing this service, so listener code only ever depends on
// the Subscription/SubscriptionHandler seam and never touches the
// storage layer directly.
func (s *Subscription) FindSubscriptionsByEventTypeAndOwner(eventType, ownerID string) ([]Subscriber, error) {
	model := NewSubscriptionModel(s.db)
	return model.FindSubscriptionsByEventTypeAndOwner(eventType, ownerID, s.isLegacy)
}

type Subscriber struct {
	ID         string
	OwnerId    string          `json:"owner_id" binding:"required" db:"owner_id"`
	Target     *target.Target  `json:"target"`
	EventTypes []string        `json:"event_types"`
	Filters    json.RawMessage `json:"filters,omitempty" db:"filters"`
	Tags       []string        `json:"tags"`
	Status     int             `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"created_at"`

	db database.Database
}

type ReadSubscriber struct {
	Target *target.HTTPDetails `json:"target" binding:"required"`
	*Subscriber
}

func genSHA(str string) (string, error) {
	h := sha1.New()
	if _, err := h.Write([]byte(str)); err != nil {
		return "", err
	}
	sha1_hash := hex.EncodeToString(h.Sum(nil))
	return sha1_hash, nil
}

func (s *ReadSubscriber) UnmarshalJSON(data []byte) error {
	type Alias ReadSubscriber

	temp := &struct {
		*Alias
	}{
		Alias: (*Alias)(s),
	}

	if err := json.Unmarshal(data, temp); err != nil {
		return err
	}

	if temp.OwnerId == "" {
		return errors.New("owner_id is required")
	}

	iid, err := genSHA(temp.OwnerId + ":" + temp.Target.URL)
	if err != nil {
		slog.Error("failed to get target id", "err", err)
		return err
	}
	temp.ID = iid
	if len(temp.EventTypes) == 0 {
		temp.EventTypes = []string{"*"} // subscribe to all events
	}
	temp.CreatedAt = time.Now()
	return nil
}

// func CreateSubscriber(app *cli.App, cs *Subscriber) error {
// 	model := NewSubscriptionModel(app.DB)
// 	if err := model.CreateSubscriber(cs); err != nil {
// 		return err
// 	}
// 	return nil
// }
