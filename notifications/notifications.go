// Package notifications mirrors the in-app notification feed.
package notifications

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/agrimandi/agrimandi-go/apiclient"
	"github.com/agrimandi/agrimandi-go/session"
	"github.com/agrimandi/agrimandi-go/stores"
)

// Notification is one entry in the feed.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Kind      string    `json:"kind"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Store caches the notification feed.
type Store struct {
	*stores.Collection[Notification]
	api *apiclient.Client
}

func NewStore(api *apiclient.Client, sess *session.Store) *Store {
	s := &Store{api: api}
	s.Collection = stores.NewCollection("notifications", s.fetchAll, func(n Notification) string { return n.ID })
	sess.OnLogout(s.Reset)
	return s
}

func (s *Store) fetchAll(ctx context.Context) ([]Notification, error) {
	resp, err := s.api.Get(ctx, apiclient.EndpointNotifications)
	if err != nil {
		return nil, err
	}
	return apiclient.DecodeList[Notification](resp.Body)
}

// UnreadCount reports how many cached notifications are unread.
func (s *Store) UnreadCount() int {
	count := 0
	for _, n := range s.Items() {
		if !n.Read {
			count++
		}
	}
	return count
}

// MarkRead flags a notification read on the backend and mirrors the
// change locally, rolling back if the write fails.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	n, ok := s.Get(id)
	if !ok {
		return errors.Errorf("[notifications.MarkRead] unknown notification %q", id)
	}
	if n.Read {
		return nil
	}

	updated := n
	updated.Read = true
	tag, err := s.StageUpdate(updated)
	if err != nil {
		return errors.Wrap(err, "[notifications.MarkRead] stage")
	}

	if _, err := s.api.Patch(ctx, apiclient.EndpointNotifications+"/"+id, map[string]bool{"read": true}); err != nil {
		_ = s.Rollback(tag)
		return errors.Wrap(err, "[notifications.MarkRead] request")
	}
	_ = s.Confirm(tag)
	return nil
}
