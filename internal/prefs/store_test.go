package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopedStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	provider := NewProvider(NewMemoryBackend())
	store := provider.Open("visitor-1")

	require.NoError(t, store.Set(ctx, KeyDarkMode, json.RawMessage(`true`)))

	raw, ok, err := store.Get(ctx, KeyDarkMode)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `true`, string(raw))

	_, ok, err = provider.Open("visitor-2").Get(ctx, KeyDarkMode)
	require.NoError(t, err)
	assert.False(t, ok, "visitor keys must not leak across visitors")
}

func TestSharedKeysResolveToSiteScope(t *testing.T) {
	ctx := context.Background()
	provider := NewProvider(NewMemoryBackend())

	require.NoError(t, SetJSON(ctx, provider.Site(), KeyPackagePricing, map[string]string{"mini": "250"}))

	var pricing map[string]string
	found, err := GetJSON(ctx, provider.Open("anyone"), KeyPackagePricing, &pricing)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "250", pricing["mini"])
}

func TestSetRejectsInvalidJSON(t *testing.T) {
	store := NewProvider(NewMemoryBackend()).Open("v")
	err := store.Set(context.Background(), KeyAppState, json.RawMessage(`{broken`))

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "set", se.Op)
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestQuotaExceeded(t *testing.T) {
	backend := NewMemoryBackend()
	backend.MaxBytes = 8
	store := NewProvider(backend).Open("v")

	require.NoError(t, store.Set(context.Background(), KeyDarkMode, json.RawMessage(`true`)))
	err := store.Set(context.Background(), KeyAppState, json.RawMessage(`{"currentBooking":null}`))
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.True(t, IsStorageError(err))
}

func TestDisabledBackend(t *testing.T) {
	backend := NewMemoryBackend()
	backend.Disable()
	store := NewProvider(backend).Open("v")

	_, _, err := store.Get(context.Background(), KeyAgreement)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, store.Set(context.Background(), KeyAgreement, json.RawMessage(`true`)), ErrUnavailable)
}

func TestGetJSONDecodeFailure(t *testing.T) {
	backend := NewMemoryBackend()
	backend.Put("visitor:v", KeyNotifications, []byte(`{"not":"a list"}`))
	store := NewProvider(backend).Open("v")

	var list []string
	found, err := GetJSON(context.Background(), store, KeyNotifications, &list)
	assert.False(t, found)

	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "decode", se.Op)
	assert.Equal(t, KeyNotifications, se.Key)
}

func TestAllKeysCoversSharedKeys(t *testing.T) {
	keys := map[string]bool{}
	for _, k := range AllKeys() {
		keys[k] = true
	}
	for k := range sharedKeys {
		assert.True(t, keys[k], "shared key %s missing from AllKeys", k)
	}
	assert.Len(t, keys, 8)
}
