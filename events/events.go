package events

import (
	"time"

	"memories/models"
)

const (
	PostCreated   = "post.created"
	PostUpdated   = "post.updated"
	PostDeleted   = "post.deleted"
	PostLiked     = "post.liked"
	PostUnliked   = "post.unliked"
	PostCommented = "post.commented"
)

// Event describes a committed change to a post.
type Event struct {
	Type      string       `json:"type"`
	PostID    string       `json:"postId"`
	ActorID   string       `json:"actorId,omitempty"`
	CreatorID string       `json:"creatorId,omitempty"`
	Comment   string       `json:"comment,omitempty"`
	Post      *models.Post `json:"post,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// New builds an event for post. A nil post is allowed for deletions.
func New(eventType, postID, actorID string, post *models.Post) Event {
	ev := Event{
		Type:      eventType,
		PostID:    postID,
		ActorID:   actorID,
		Post:      post,
		Timestamp: time.Now().Unix(),
	}
	if post != nil {
		ev.CreatorID = post.Creator
	}
	return ev
}

// Publisher must not block the caller for longer than it takes to hand the
// event off.
type Publisher interface {
	Publish(ev Event)
}

type PublisherFunc func(ev Event)

func (f PublisherFunc) Publish(ev Event) { f(ev) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(Event) {})

// Fanout delivers each event to every publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ev Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ev)
		}
	}
}
