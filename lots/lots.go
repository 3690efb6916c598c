// Package lots mirrors marketplace sale lots.
package lots

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/agrimandi/agrimandi-go/apiclient"
	"github.com/agrimandi/agrimandi-go/session"
	"github.com/agrimandi/agrimandi-go/stores"
)

// Status is the lot lifecycle: listed, open for bidding, sold, settled.
type Status string

const (
	StatusListed    Status = "listed"
	StatusBidding   Status = "bidding"
	StatusSold      Status = "sold"
	StatusSettled   Status = "settled"
	StatusWithdrawn Status = "withdrawn"
)

// Lot is a quantity of harvested oilseed offered for sale.
type Lot struct {
	ID               string    `json:"id"`
	FarmerID         string    `json:"farmer_id"`
	CropID           string    `json:"crop_id"`
	Commodity        string    `json:"commodity"`
	Grade            string    `json:"grade"`
	QuantityQuintals float64   `json:"quantity_quintals"`
	AskPricePerQtl   float64   `json:"ask_price_per_quintal"`
	Status           Status    `json:"status"`
	ListedAt         time.Time `json:"listed_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Store caches the lot collection.
type Store struct {
	*stores.Collection[Lot]
	api *apiclient.Client
}

func NewStore(api *apiclient.Client, sess *session.Store) *Store {
	s := &Store{api: api}
	s.Collection = stores.NewCollection("lots", s.fetchAll, func(l Lot) string { return l.ID })
	sess.OnLogout(s.Reset)
	return s
}

func (s *Store) fetchAll(ctx context.Context) ([]Lot, error) {
	resp, err := s.api.Get(ctx, apiclient.EndpointLots)
	if err != nil {
		return nil, err
	}
	return apiclient.DecodeList[Lot](resp.Body)
}

// List offers a lot for sale and folds the confirmed record into the
// local cache.
func (s *Store) List(ctx context.Context, draft Lot) (Lot, error) {
	resp, err := s.api.Post(ctx, apiclient.EndpointLots, draft)
	if err != nil {
		return Lot{}, errors.Wrap(err, "[lots.List] request")
	}
	listed, err := apiclient.DecodeOne[Lot](resp.Body)
	if err != nil {
		return Lot{}, errors.Wrap(err, "[lots.List] decode")
	}
	tag := s.StageAdd(listed)
	_ = s.Confirm(tag)
	return listed, nil
}
