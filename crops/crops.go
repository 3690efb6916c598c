// Package crops mirrors the farmer's registered oilseed crops.
package crops

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/agrimandi/agrimandi-go/apiclient"
	"github.com/agrimandi/agrimandi-go/session"
	"github.com/agrimandi/agrimandi-go/stores"
)

// Status tracks a crop through its season.
type Status string

const (
	StatusSown       Status = "sown"
	StatusGrowing    Status = "growing"
	StatusHarvested  Status = "harvested"
	StatusListedSale Status = "listed_for_sale"
)

// Crop is a registered crop record, owned by the backend.
type Crop struct {
	ID            string    `json:"id"`
	FarmerID      string    `json:"farmer_id"`
	Name          string    `json:"name"`
	Variety       string    `json:"variety"`
	Season        string    `json:"season"`
	AreaAcres     float64   `json:"area_acres"`
	ExpectedYield float64   `json:"expected_yield_quintals"`
	Status        Status    `json:"status"`
	SownAt        time.Time `json:"sown_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store caches the crop collection.
type Store struct {
	*stores.Collection[Crop]
	api *apiclient.Client
}

// NewStore creates the crop store and registers its reset with the
// session's logout broadcast.
func NewStore(api *apiclient.Client, sess *session.Store) *Store {
	s := &Store{api: api}
	s.Collection = stores.NewCollection("crops", s.fetchAll, func(c Crop) string { return c.ID })
	sess.OnLogout(s.Reset)
	return s
}

func (s *Store) fetchAll(ctx context.Context) ([]Crop, error) {
	resp, err := s.api.Get(ctx, apiclient.EndpointCrops)
	if err != nil {
		return nil, err
	}
	return apiclient.DecodeList[Crop](resp.Body)
}

// Create registers a new crop with the backend and folds the confirmed
// record into the local cache.
func (s *Store) Create(ctx context.Context, draft Crop) (Crop, error) {
	resp, err := s.api.Post(ctx, apiclient.EndpointCrops, draft)
	if err != nil {
		return Crop{}, errors.Wrap(err, "[crops.Create] request")
	}
	created, err := apiclient.DecodeOne[Crop](resp.Body)
	if err != nil {
		return Crop{}, errors.Wrap(err, "[crops.Create] decode")
	}
	tag := s.StageAdd(created)
	_ = s.Confirm(tag)
	return created, nil
}
