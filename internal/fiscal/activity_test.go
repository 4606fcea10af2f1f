package fiscal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picocompta/internal/core"
)

func TestSnapshotRate(t *testing.T) {
	tests := []struct {
		activity core.ActivityType
		issued   core.Date
		want     float64
	}{
		{core.ActivitySales, core.NewDate(2024, 6, 1), 0.124},
		{core.ActivityService, core.NewDate(2024, 6, 1), 0.215},
		{core.ActivityLiberal, core.NewDate(2024, 12, 31), 0.248},
		{core.ActivityLiberal, core.NewDate(2025, 1, 1), 0.248},
		{core.ActivityLiberal, core.NewDate(2025, 1, 2), 0.264},
	}
	for _, tt := range tests {
		got, err := SnapshotRate(tt.activity, tt.issued)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s on %s", tt.activity, tt.issued.ISO())
	}

	_, err := SnapshotRate(core.ActivityType("artisan"), core.NewDate(2024, 1, 1))
	assert.ErrorIs(t, err, core.ErrInvalidActivity)
}

func TestEffectiveRate(t *testing.T) {
	assert.Equal(t, 0.2, EffectiveRate(core.Invoice{ActivityType: core.ActivityService, UrssafRate: 0.2}))
	assert.Equal(t, 0.245, EffectiveRate(core.Invoice{ActivityType: core.ActivityService}))
	assert.Equal(t, 0.13, EffectiveRate(core.Invoice{ActivityType: core.ActivitySales}))
	assert.Equal(t, 0.22, EffectiveRate(core.Invoice{ActivityType: core.ActivityLiberal}))
	assert.Zero(t, EffectiveRate(core.Invoice{ActivityType: core.ActivityType("artisan")}))
}
