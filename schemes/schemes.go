// Package schemes mirrors the government scheme catalogue.
package schemes

import (
	"context"
	"time"

	"github.com/agrimandi/agrimandi-go/apiclient"
	"github.com/agrimandi/agrimandi-go/session"
	"github.com/agrimandi/agrimandi-go/stores"
)

// Scheme is a government support scheme relevant to oilseed farmers.
type Scheme struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Agency      string    `json:"agency"`
	Description string    `json:"description"`
	Eligibility string    `json:"eligibility"`
	BenefitNote string    `json:"benefit_note"`
	ApplyURL    string    `json:"apply_url"`
	OpensAt     time.Time `json:"opens_at"`
	ClosesAt    time.Time `json:"closes_at"`
}

// Store caches the scheme catalogue.
type Store struct {
	*stores.Collection[Scheme]
	api *apiclient.Client
}

func NewStore(api *apiclient.Client, sess *session.Store) *Store {
	s := &Store{api: api}
	s.Collection = stores.NewCollection("schemes", s.fetchAll, func(sc Scheme) string { return sc.ID })
	sess.OnLogout(s.Reset)
	return s
}

func (s *Store) fetchAll(ctx context.Context) ([]Scheme, error) {
	resp, err := s.api.Get(ctx, apiclient.EndpointSchemes)
	if err != nil {
		return nil, err
	}
	return apiclient.DecodeList[Scheme](resp.Body)
}
