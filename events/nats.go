package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes each event as JSON on a subject named after its
// type, e.g. "post.created".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

func ConnectNATS(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("memories-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[NATS] disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("[NATS] reconnected to %s", c.ConnectedUrl())
		}),
	)
}

// NewNATSPublisher uses prefix (may be empty) in front of every subject.
func NewNATSPublisher(conn *nats.Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

func (p *NATSPublisher) Subject(ev Event) string {
	if p.prefix == "" {
		return ev.Type
	}
	return p.prefix + "." + ev.Type
}

func (p *NATSPublisher) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[NATS] failed to marshal %s event: %v", ev.Type, err)
		return
	}
	if err := p.conn.Publish(p.Subject(ev), data); err != nil {
		log.Printf("[NATS] failed to publish %s for post %s: %v", ev.Type, ev.PostID, err)
	}
}
