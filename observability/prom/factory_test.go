package prom

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortunelabs/entitled/observability"
)

func TestFactoryCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	ext := observability.NewMetricsExtension(New(reg))

	ctx := context.Background()
	require.NoError(t, ext.OnProfileCreated(ctx, nil))
	require.NoError(t, ext.OnQuotaDenied(ctx, "user_1", "prediction", 3, 3))
	require.NoError(t, ext.OnQuotaDenied(ctx, "user_1", "prediction", 3, 3))

	created, err := testutil.GatherAndCount(reg, "entitled_profile_created_total")
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	denied := testutil.ToFloat64(ext.EntitlementDenied.(prometheus.Counter))
	assert.Equal(t, float64(2), denied)
}

func TestFactoryDedupesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := New(reg)

	// A second request for the same name must not panic on re-registration.
	c1 := f.Counter("entitled.test.counter")
	c2 := f.Counter("entitled.test.counter")
	assert.Equal(t, c1, c2)

	h1 := f.Histogram("entitled.test.histogram")
	h2 := f.Histogram("entitled.test.histogram")
	assert.Equal(t, h1, h2)
}
