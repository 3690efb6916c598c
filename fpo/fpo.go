// Package fpo mirrors farmer producer organisation records.
package fpo

import (
	"context"
	"time"

	"github.com/agrimandi/agrimandi-go/apiclient"
	"github.com/agrimandi/agrimandi-go/session"
	"github.com/agrimandi/agrimandi-go/stores"
)

// FPO is a farmer producer organisation the user can join or trade
// through.
type FPO struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	District     string    `json:"district"`
	State        string    `json:"state"`
	MemberCount  int       `json:"member_count"`
	Commodities  []string  `json:"commodities"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Store caches the FPO directory.
type Store struct {
	*stores.Collection[FPO]
	api *apiclient.Client
}

func NewStore(api *apiclient.Client, sess *session.Store) *Store {
	s := &Store{api: api}
	s.Collection = stores.NewCollection("fpo", s.fetchAll, func(f FPO) string { return f.ID })
	sess.OnLogout(s.Reset)
	return s
}

func (s *Store) fetchAll(ctx context.Context) ([]FPO, error) {
	resp, err := s.api.Get(ctx, apiclient.EndpointFPO)
	if err != nil {
		return nil, err
	}
	return apiclient.DecodeList[FPO](resp.Body)
}
