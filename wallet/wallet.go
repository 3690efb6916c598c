// Package wallet mirrors the user's wallet balance and transaction feed.
package wallet

import (
	"context"
	"time"

	"github.com/agrimandi/agrimandi-go/apiclient"
	"github.com/agrimandi/agrimandi-go/session"
	"github.com/agrimandi/agrimandi-go/stores"
)

// TransactionKind distinguishes credits from debits.
type TransactionKind string

const (
	KindCredit TransactionKind = "credit"
	KindDebit  TransactionKind = "debit"
)

// TransactionStatus is the settlement state of a wallet transaction.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
)

// Balance is the wallet summary record.
type Balance struct {
	UserID    string    `json:"user_id"`
	Available float64   `json:"available"`
	OnHold    float64   `json:"on_hold"`
	Currency  string    `json:"currency"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is one entry in the wallet ledger.
type Transaction struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Kind      TransactionKind   `json:"kind"`
	Amount    float64           `json:"amount"`
	Status    TransactionStatus `json:"status"`
	Reference string            `json:"reference"`
	Note      string            `json:"note"`
	CreatedAt time.Time         `json:"created_at"`
}

// Store caches the balance and the transaction feed.
type Store struct {
	Balance      *stores.Single[Balance]
	Transactions *stores.Collection[Transaction]
	api          *apiclient.Client
}

func NewStore(api *apiclient.Client, sess *session.Store) *Store {
	s := &Store{api: api}
	s.Balance = stores.NewSingle("wallet.balance", s.fetchBalance)
	s.Transactions = stores.NewCollection("wallet.transactions", s.fetchTransactions, func(t Transaction) string { return t.ID })
	sess.OnLogout(s.Reset)
	return s
}

func (s *Store) fetchBalance(ctx context.Context) (Balance, error) {
	resp, err := s.api.Get(ctx, apiclient.EndpointWalletBalance)
	if err != nil {
		return Balance{}, err
	}
	return apiclient.DecodeOne[Balance](resp.Body)
}

func (s *Store) fetchTransactions(ctx context.Context) ([]Transaction, error) {
	resp, err := s.api.Get(ctx, apiclient.EndpointWalletTransactions)
	if err != nil {
		return nil, err
	}
	return apiclient.DecodeList[Transaction](resp.Body)
}

// Fetch refreshes balance and transactions together.
func (s *Store) Fetch(ctx context.Context) error {
	if err := s.Balance.Fetch(ctx); err != nil {
		return err
	}
	return s.Transactions.Fetch(ctx)
}

// Reset clears both caches.
func (s *Store) Reset() {
	s.Balance.Reset()
	s.Transactions.Reset()
}
