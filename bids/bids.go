// Package bids mirrors the buyer's bids on marketplace lots. PlaceBid is
// the one fully optimistic path in the client: the bid appears locally
// before the backend confirms, and is rolled back as an explicit
// transition if the write fails.
package bids

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/agrimandi/agrimandi-go/apiclient"
	"github.com/agrimandi/agrimandi-go/session"
	"github.com/agrimandi/agrimandi-go/stores"
)

// Status is the bid lifecycle.
type Status string

const (
	StatusPlaced    Status = "placed"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
)

// Bid is an offer on a sale lot.
type Bid struct {
	ID          string    `json:"id"`
	LotID       string    `json:"lot_id"`
	BuyerID     string    `json:"buyer_id"`
	PricePerQtl float64   `json:"price_per_quintal"`
	QuantityQtl float64   `json:"quantity_quintals"`
	Status      Status    `json:"status"`
	ValidUntil  time.Time `json:"valid_until"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store caches the bid collection.
type Store struct {
	*stores.Collection[Bid]
	api *apiclient.Client
}

func NewStore(api *apiclient.Client, sess *session.Store) *Store {
	s := &Store{api: api}
	s.Collection = stores.NewCollection("bids", s.fetchAll, func(b Bid) string { return b.ID })
	sess.OnLogout(s.Reset)
	return s
}

func (s *Store) fetchAll(ctx context.Context) ([]Bid, error) {
	resp, err := s.api.Get(ctx, apiclient.EndpointBids)
	if err != nil {
		return nil, err
	}
	return apiclient.DecodeList[Bid](resp.Body)
}

// PlaceBid stages the bid locally for immediate UI feedback, submits it,
// and reconciles: the staged placeholder (with its client-invented id) is
// always removed, replaced by the server's record on success.
func (s *Store) PlaceBid(ctx context.Context, draft Bid) (Bid, error) {
	placeholder := draft
	placeholder.ID = "pending-" + uuid.New().String()
	placeholder.Status = StatusPlaced
	placeholder.CreatedAt = time.Now()
	tag := s.StageAdd(placeholder)

	resp, err := s.api.Post(ctx, apiclient.EndpointBids, draft)
	if err != nil {
		_ = s.Rollback(tag)
		return Bid{}, errors.Wrap(err, "[bids.PlaceBid] request")
	}

	placed, err := apiclient.DecodeOne[Bid](resp.Body)
	if err != nil {
		_ = s.Rollback(tag)
		return Bid{}, errors.Wrap(err, "[bids.PlaceBid] decode")
	}

	_ = s.Rollback(tag)
	confirmed := s.StageAdd(placed)
	_ = s.Confirm(confirmed)
	return placed, nil
}

// Withdraw marks a bid withdrawn after the backend accepted the change.
func (s *Store) Withdraw(ctx context.Context, bidID string) error {
	bid, ok := s.Get(bidID)
	if !ok {
		return errors.Errorf("[bids.Withdraw] unknown bid %q", bidID)
	}

	updated := bid
	updated.Status = StatusWithdrawn
	tag, err := s.StageUpdate(updated)
	if err != nil {
		return errors.Wrap(err, "[bids.Withdraw] stage")
	}

	if _, err := s.api.Patch(ctx, apiclient.EndpointBids+"/"+bidID, map[string]string{"status": string(StatusWithdrawn)}); err != nil {
		_ = s.Rollback(tag)
		return errors.Wrap(err, "[bids.Withdraw] request")
	}
	_ = s.Confirm(tag)
	return nil
}
