package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"componentfinder/internal/adapters/storetest"
	"componentfinder/internal/ports"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) ports.ComponentStore { return NewStore() })
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	c := storetest.Resistor()
	require.NoError(t, s.UpsertComponent(ctx, c))

	got, _, err := s.GetComponent(ctx, c.ID)
	require.NoError(t, err)
	got.Specifications["Resistans"] = 1.0

	again, _, err := s.GetComponent(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, again.Specifications["Resistans"])
}

func TestClaims(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := NewClaims(clock)

	ok, err := c.Claim(ctx, "refresh:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = c.Claim(ctx, "refresh:1", time.Minute)
	assert.False(t, ok, "held")

	ok, _ = c.Claim(ctx, "refresh:2", time.Minute)
	assert.True(t, ok, "other keys are independent")

	clock.Advance(2 * time.Minute)
	ok, _ = c.Claim(ctx, "refresh:1", time.Minute)
	assert.True(t, ok, "expired claims can be retaken")

	require.NoError(t, c.Release(ctx, "refresh:1"))
	ok, _ = c.Claim(ctx, "refresh:1", time.Minute)
	assert.True(t, ok)
}
