package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sce-api/pkg/errors"
)

func TestAllocateNumberReturnsFreeNumber(t *testing.T) {
	taken := map[int]bool{1: true, 2: true, 4: true, 5: true}
	n, err := allocateNumber(context.Background(), 1, 5, func(_ context.Context, candidate int) (bool, error) {
		return taken[candidate], nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestAllocateNumberExhausted(t *testing.T) {
	_, err := allocateNumber(context.Background(), 1, 5, func(_ context.Context, _ int) (bool, error) {
		return true, nil
	})
	require.ErrorIs(t, err, appErrors.ErrNumbersExhausted)
}

func TestAllocateNumberWithinRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		n, err := allocateNumber(context.Background(), 10, 20, func(_ context.Context, _ int) (bool, error) {
			return false, nil
		})
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 10)
		require.LessOrEqual(t, n, 20)
	}
}

func TestAllocateNumberPropagatesLookupError(t *testing.T) {
	boom := errors.New("db down")
	_, err := allocateNumber(context.Background(), 1, 5, func(_ context.Context, _ int) (bool, error) {
		return false, boom
	})
	require.ErrorIs(t, err, boom)
}
