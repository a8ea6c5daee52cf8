package models

import (
	"time"
)

// Post is the canonical representation of one feed item, produced fresh on
// every fetch. ID is whatever stable identity the feed provides (guid, link
// or atom id).
type Post struct {
	ID           string
	Title        string
	Link         string
	PublishedAt  time.Time
	PreviewImage string // empty when no image could be extracted
}

type Subscriber struct {
	Email            string    `json:"email"`
	SubscribedAt     time.Time `json:"subscribedAt"`
	UnsubscribeToken string    `json:"unsubscribeToken"`
}

// LastPost marks the most recently processed post, whether or not an email
// was actually sent for it.
type LastPost struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"publishedAt"`
	NotifiedAt  time.Time `json:"notifiedAt"`
}

type Stats struct {
	// TotalEmailsSent counts dispatch attempts, not confirmed deliveries.
	TotalEmailsSent       int       `json:"totalEmailsSent"`
	LastRunAt             time.Time `json:"lastRunAt"`
	LastHealthCheckPassed time.Time `json:"lastHealthCheckPassed"`
}

// State is the single unit of durability. Every storage operation loads and
// persists the whole structure.
type State struct {
	Subscribers []Subscriber `json:"subscribers"`
	LastPost    *LastPost    `json:"lastPost"`
	Stats       Stats        `json:"stats"`
}

func (s *State) FindSubscriber(email string) *Subscriber {
	for i := range s.Subscribers {
		if s.Subscribers[i].Email == email {
			return &s.Subscribers[i]
		}
	}
	return nil
}
