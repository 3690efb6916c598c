// Package learning mirrors the training course catalogue.
package learning

import (
	"context"

	"github.com/agrimandi/agrimandi-go/apiclient"
	"github.com/agrimandi/agrimandi-go/session"
	"github.com/agrimandi/agrimandi-go/stores"
)

// Course is a training course offered on the platform.
type Course struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Language    string `json:"language"`
	Description string `json:"description"`
	DurationMin int    `json:"duration_minutes"`
	VideoURL    string `json:"video_url"`
	Topic       string `json:"topic"`
}

// Store caches the course catalogue.
type Store struct {
	*stores.Collection[Course]
	api *apiclient.Client
}

func NewStore(api *apiclient.Client, sess *session.Store) *Store {
	s := &Store{api: api}
	s.Collection = stores.NewCollection("learning", s.fetchAll, func(c Course) string { return c.ID })
	sess.OnLogout(s.Reset)
	return s
}

func (s *Store) fetchAll(ctx context.Context) ([]Course, error) {
	resp, err := s.api.Get(ctx, apiclient.EndpointLearningCourses)
	if err != nil {
		return nil, err
	}
	return apiclient.DecodeList[Course](resp.Body)
}
