package stores_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/agrimandi/agrimandi-go/stores"
)

type balance struct {
	Amount int
}

func TestSingleFetchAndGet(t *testing.T) {
	s := stores.NewSingle("balance", func(ctx context.Context) (balance, error) {
		return balance{Amount: 500}, nil
	})

	_, present := s.Get()
	require.False(t, present)

	require.NoError(t, s.Fetch(context.Background()))
	got, present := s.Get()
	require.True(t, present)
	require.Equal(t, 500, got.Amount)
	require.False(t, s.Loading())
}

func TestSingleFetchFailureKeepsCachedValue(t *testing.T) {
	calls := 0
	s := stores.NewSingle("balance", func(ctx context.Context) (balance, error) {
		calls++
		if calls > 1 {
			return balance{}, errors.New("backend down")
		}
		return balance{Amount: 500}, nil
	})

	require.NoError(t, s.Fetch(context.Background()))
	require.Error(t, s.Fetch(context.Background()))

	got, present := s.Get()
	require.True(t, present)
	require.Equal(t, 500, got.Amount)
	require.Equal(t, "backend down", s.Error())
}

func TestSingleSetAfterConfirmedWrite(t *testing.T) {
	s := stores.NewSingle[balance]("balance", nil)

	s.Set(balance{Amount: 750})
	got, present := s.Get()
	require.True(t, present)
	require.Equal(t, 750, got.Amount)
}

func TestSingleReset(t *testing.T) {
	s := stores.NewSingle[balance]("balance", nil)
	s.Set(balance{Amount: 750})

	s.Reset()
	got, present := s.Get()
	require.False(t, present)
	require.Zero(t, got.Amount)
}
