package push

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"memories/events"
	"memories/models"

	"github.com/SherClockHolmes/webpush-go"
)

// SubscriptionStore is the part of the subscription repository the notifier
// needs.
type SubscriptionStore interface {
	ForUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	Delete(ctx context.Context, userID, endpoint string) error
}

// SendFunc delivers one push message. webpush.SendNotification matches it.
type SendFunc func(message []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)

type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
	TTL             int
}

type Payload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Notifier tells post creators when somebody else likes or comments on their
// post. Delivery happens off the request path.
type Notifier struct {
	subs    SubscriptionStore
	cfg     Config
	send    SendFunc
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewNotifier(subs SubscriptionStore, cfg Config) *Notifier {
	if cfg.TTL == 0 {
		cfg.TTL = 30
	}
	return &Notifier{
		subs:    subs,
		cfg:     cfg,
		send:    webpush.SendNotification,
		timeout: 10 * time.Second,
	}
}

var _ events.Publisher = (*Notifier)(nil)

func (n *Notifier) Publish(ev events.Event) {
	payload, ok := payloadFor(ev)
	if !ok {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Push] panic in push notification: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		n.notify(ctx, ev.CreatorID, payload)
	}()
}

// Wait blocks until in-flight deliveries are done.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func payloadFor(ev events.Event) (Payload, bool) {
	if ev.CreatorID == "" || ev.ActorID == "" || ev.ActorID == ev.CreatorID {
		return Payload{}, false
	}

	title := "your post"
	if ev.Post != nil && ev.Post.Title != "" {
		title = `"` + ev.Post.Title + `"`
	}
	data := map[string]any{
		"url":       "/posts/" + ev.PostID,
		"postId":    ev.PostID,
		"timestamp": ev.Timestamp,
	}

	switch ev.Type {
	case events.PostLiked:
		return Payload{Title: "New like", Body: "Someone liked " + title, Data: data}, true
	case events.PostCommented:
		body := ev.Comment
		if len(body) > 100 {
			body = body[:100] + "..."
		}
		return Payload{Title: "New comment on " + title, Body: body, Data: data}, true
	default:
		return Payload{}, false
	}
}

func (n *Notifier) notify(ctx context.Context, userID string, payload Payload) {
	subs, err := n.subs.ForUser(ctx, userID)
	if err != nil {
		log.Printf("[Push] failed to find subscriptions for user %s: %v", userID, err)
		return
	}
	if len(subs) == 0 {
		return
	}

	message, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Push] failed to marshal push payload: %v", err)
		return
	}

	for i := range subs {
		sub := subs[i].Sub
		resp, err := n.send(message, &sub, &webpush.Options{
			Subscriber:      n.cfg.Subject,
			VAPIDPublicKey:  n.cfg.VAPIDPublicKey,
			VAPIDPrivateKey: n.cfg.VAPIDPrivateKey,
			TTL:             n.cfg.TTL,
		})
		if resp != nil {
			resp.Body.Close()
		}
		if err != nil {
			log.Printf("[Push] failed to send push notification to user %s: %v", userID, err)
			continue
		}

		if resp != nil && (resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound) {
			log.Printf("[Push] subscription expired for user %s, deleting", userID)
			if err := n.subs.Delete(ctx, userID, sub.Endpoint); err != nil {
				log.Printf("[Push] failed to delete expired subscription: %v", err)
			}
		}
	}
}
