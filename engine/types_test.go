package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/visit-engine/engine"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want engine.Role
	}{
		{"promoter", engine.RolePromoter},
		{"Manager", engine.RoleManager},
		{" analyst ", engine.RoleAnalyst},
		{"1", engine.RolePromoter},
		{"2", engine.RoleAnalyst},
		{"3", engine.RoleManager},
	}
	for _, tt := range tests {
		got, err := engine.ParseRole(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "admin", "0", "4"} {
		_, err := engine.ParseRole(bad)
		assert.ErrorIs(t, err, engine.ErrUnknownRole, bad)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want engine.Status
	}{
		{"pending", engine.StatusPending},
		{"in-progress", engine.StatusInProgress},
		{"IN_PROGRESS", engine.StatusInProgress},
		{"completed", engine.StatusCompleted},
		{"1", engine.StatusPending},
		{"3", engine.StatusCompleted},
		{"4", engine.StatusCancelled},
	}
	for _, tt := range tests {
		got, err := engine.ParseStatus(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := engine.ParseStatus("done")
	assert.ErrorIs(t, err, engine.ErrInvalidStatus)
	assert.True(t, engine.IsClientError(err))

	_, err = engine.ParseStatus("9")
	assert.ErrorIs(t, err, engine.ErrInvalidStatus)
}

func TestStatusCounts(t *testing.T) {
	assert.True(t, engine.StatusPending.Counts())
	assert.True(t, engine.StatusInProgress.Counts())
	assert.True(t, engine.StatusCompleted.Counts())
	assert.False(t, engine.StatusCancelled.Counts())
}

func TestPairKeyString(t *testing.T) {
	assert.Equal(t, "store=10 brand=100", engine.PairKey{StoreID: 10, BrandID: 100}.String())
}
