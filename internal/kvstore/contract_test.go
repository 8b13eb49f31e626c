package kvstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/nikolayk812/storefront-cart/internal/kvstore"
	"github.com/nikolayk812/storefront-cart/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const changeTimeout = 5 * time.Second

// testStoreContract checks the behaviour every backend must share.
func testStoreContract(t *testing.T, backend kvstore.Backend) {
	t.Run("get missing key: not found", func(t *testing.T) {
		s := backend.Session()
		_, ok, err := s.Get(t.Context(), "missing:"+gofakeit.UUID())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set then get: ok", func(t *testing.T) {
		s := backend.Session()
		key := "cart:" + gofakeit.UUID()

		require.NoError(t, s.Set(t.Context(), key, `[{"key":"7||"}]`))

		v, ok, err := s.Get(t.Context(), key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `[{"key":"7||"}]`, v)
	})

	t.Run("set many writes every key: ok", func(t *testing.T) {
		s := backend.Session()
		a, b := "a:"+gofakeit.UUID(), "b:"+gofakeit.UUID()

		require.NoError(t, s.SetMany(t.Context(), map[string]string{a: "1", b: "2"}))

		va, _, err := s.Get(t.Context(), a)
		require.NoError(t, err)
		vb, _, err := s.Get(t.Context(), b)
		require.NoError(t, err)
		assert.Equal(t, "1", va)
		assert.Equal(t, "2", vb)
	})

	t.Run("delete existing and missing: ok", func(t *testing.T) {
		s := backend.Session()
		key := "d:" + gofakeit.UUID()
		require.NoError(t, s.Set(t.Context(), key, "x"))

		require.NoError(t, s.Delete(t.Context(), key))
		require.NoError(t, s.Delete(t.Context(), key))

		_, ok, err := s.Get(t.Context(), key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("keys by prefix: ok", func(t *testing.T) {
		s := backend.Session()
		prefix := "availability_override_" + gofakeit.LetterN(8) + ":"
		require.NoError(t, s.SetMany(t.Context(), map[string]string{
			prefix + "1":  "true",
			prefix + "42": "false",
			"unrelated":   "x",
		}))

		keys, err := s.Keys(t.Context(), prefix)
		require.NoError(t, err)
		assert.Equal(t, []string{prefix + "1", prefix + "42"}, keys)
	})

	t.Run("changes reach other sessions only: ok", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		writer, reader := backend.Session(), backend.Session()
		writerChanges, err := writer.Changes(ctx)
		require.NoError(t, err)
		readerChanges, err := reader.Changes(ctx)
		require.NoError(t, err)

		key := "cart:" + gofakeit.UUID()
		require.NoError(t, writer.Set(ctx, key, "[]"))

		waitForChange(t, readerChanges, key)
		assertNoChange(t, writerChanges, key)
	})
}

func waitForChange(t *testing.T, ch <-chan port.StoreChange, key string) {
	t.Helper()
	deadline := time.After(changeTimeout)
	for {
		select {
		case c, ok := <-ch:
			require.True(t, ok, "changes channel closed")
			if c.Key == key {
				return
			}
		case <-deadline:
			t.Fatalf("no change for key %s", key)
		}
	}
}

func assertNoChange(t *testing.T, ch <-chan port.StoreChange, key string) {
	t.Helper()
	deadline := time.After(200 * time.Millisecond)
	for {
		select {
		case c := <-ch:
			assert.NotEqual(t, key, c.Key, "writer saw its own change")
		case <-deadline:
			return
		}
	}
}
