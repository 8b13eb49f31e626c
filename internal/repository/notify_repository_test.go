package repository_test

import (
	"testing"

	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/kvstore"
	"github.com/nikolayk812/storefront-cart/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyRequests(t *testing.T) {
	ctx := t.Context()
	store := kvstore.NewMemory().Session()
	requests := repository.NewNotifyRequests(store)

	added, err := requests.Add(ctx, "42")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = requests.Add(ctx, "042")
	require.NoError(t, err)
	assert.False(t, added, "equivalent id is already recorded")

	added, err = requests.Add(ctx, "7")
	require.NoError(t, err)
	assert.True(t, added)

	has, err := requests.Has(ctx, "42")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = requests.Has(ctx, "8")
	require.NoError(t, err)
	assert.False(t, has)

	raw, _, err := store.Get(ctx, repository.KeyNotifyRequests)
	require.NoError(t, err)
	assert.JSONEq(t, `["42","7"]`, raw)

	_, err = requests.Add(ctx, "")
	require.ErrorIs(t, err, domain.ErrMissingProductID)
}

func TestNotifyRequestsLegacyValues(t *testing.T) {
	ctx := t.Context()
	store := kvstore.NewMemory().Session()
	require.NoError(t, store.Set(ctx, repository.KeyNotifyRequests, `[42, "7", null]`))

	ids, err := repository.NewNotifyRequests(store).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ProductID{"42", "7"}, ids)

	require.NoError(t, store.Set(ctx, repository.KeyNotifyRequests, `not json`))
	ids, err = repository.NewNotifyRequests(store).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
