package pebble

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"componentfinder/internal/adapters/storetest"
	"componentfinder/internal/ports"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.ComponentStore {
		s, err := Open(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := storetest.Resistor()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.UpsertComponent(ctx, c))
	require.NoError(t, s.UpsertVendorListing(ctx, c.ID, storetest.Listing("electrokit", "1.95", c.LastUpdated)))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	got, found, err := s.GetComponent(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, got.Vendors, 1)
}

func TestPrefixBounds(t *testing.T) {
	b := prefixBounds("listing/abc/")
	assert.Equal(t, "listing/abc/", string(b.LowerBound))
	assert.Equal(t, "listing/abc0", string(b.UpperBound))
}
