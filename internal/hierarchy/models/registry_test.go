package models

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "lineage/pkg/domain"
	dErrors "lineage/pkg/domain-errors"
)

func TestNewRegistry(t *testing.T) {
	authority := id.WalletID(uuid.New())
	now := time.Now().UTC()

	r := NewRegistry(authority, now)

	assert.Equal(t, id.RegistryAddress(), r.Address)
	assert.Equal(t, authority, r.Authority)
	assert.Zero(t, r.TotalAgents)
	assert.Zero(t, r.TotalEarnings)
	assert.Zero(t, r.TotalSpawns)
	assert.Equal(t, now, r.CreatedAt)
}

func TestRegistry_IsAuthority(t *testing.T) {
	authority := id.WalletID(uuid.New())
	r := NewRegistry(authority, time.Now())

	assert.True(t, r.IsAuthority(authority))
	assert.False(t, r.IsAuthority(id.WalletID(uuid.New())))
}

func TestRegistry_Counters(t *testing.T) {
	t.Run("root registration counts one agent", func(t *testing.T) {
		r := NewRegistry(id.WalletID(uuid.New()), time.Now())

		require.NoError(t, r.ApplyAgentRegistered())

		assert.Equal(t, uint64(1), r.TotalAgents)
		assert.Zero(t, r.TotalSpawns)
	})

	t.Run("spawn counts one agent and one spawn", func(t *testing.T) {
		r := NewRegistry(id.WalletID(uuid.New()), time.Now())
		require.NoError(t, r.ApplyAgentRegistered())

		require.NoError(t, r.ApplySpawn())
		require.NoError(t, r.ApplySpawn())

		assert.Equal(t, uint64(3), r.TotalAgents)
		assert.Equal(t, uint64(2), r.TotalSpawns)
	})

	t.Run("total agents equals root count plus spawns", func(t *testing.T) {
		r := NewRegistry(id.WalletID(uuid.New()), time.Now())
		require.NoError(t, r.ApplyAgentRegistered())
		for range 5 {
			require.NoError(t, r.ApplySpawn())
		}

		assert.Equal(t, uint64(1)+r.TotalSpawns, r.TotalAgents)
	})

	t.Run("earnings accumulate", func(t *testing.T) {
		r := NewRegistry(id.WalletID(uuid.New()), time.Now())

		require.NoError(t, r.ApplyEarning(1000))
		require.NoError(t, r.ApplyEarning(250))

		assert.Equal(t, uint64(1250), r.TotalEarnings)
	})

	t.Run("earning overflow aborts without mutation", func(t *testing.T) {
		r := NewRegistry(id.WalletID(uuid.New()), time.Now())
		require.NoError(t, r.ApplyEarning(math.MaxUint64))

		err := r.ApplyEarning(1)

		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeOverflow))
		assert.Equal(t, uint64(math.MaxUint64), r.TotalEarnings)
	})

	t.Run("spawn overflow leaves both counters untouched", func(t *testing.T) {
		r := NewRegistry(id.WalletID(uuid.New()), time.Now())
		r.TotalAgents = math.MaxUint64

		err := r.ApplySpawn()

		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeOverflow))
		assert.Equal(t, uint64(math.MaxUint64), r.TotalAgents)
		assert.Zero(t, r.TotalSpawns)
	})
}
