package server

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/anilistx/internal/cache"
	"github.com/desertthunder/anilistx/internal/services"
	tu "github.com/desertthunder/anilistx/internal/testing"
)

func TestMetricsRecorder(t *testing.T) {
	m := NewMetrics()

	m.UpstreamRequest("anime", 200, 20*time.Millisecond)
	m.UpstreamRequest("anime", 0, time.Second)
	m.UpstreamRetry("anime")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("anime", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("anime", "0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamRetries.WithLabelValues("anime")))

	t.Run("Cache Results From CachedCatalog", func(t *testing.T) {
		catalog := services.NewCachedCatalog(
			tu.NewMockCatalog(tu.NewAnime(1, "Cowboy Bebop", 26)),
			cache.NewMemoryStore(10, time.Minute),
			time.Minute,
			services.WithCacheRecorder(m),
		)
		ctx := context.Background()
		for range 3 {
			_, err := catalog.GetAnimeByID(ctx, 1)
			require.NoError(t, err)
		}

		assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheResults.WithLabelValues("anime", "miss")))
		assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheResults.WithLabelValues("anime", "hit")))
	})
}
