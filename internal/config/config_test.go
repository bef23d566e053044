package config

import (
	"sverigekartan/internal/boundary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"BOUNDARY_LAYERS", "GEOCODE_ENABLED", "GEOCODE_CONCURRENCY", "BOUNDS_LAT_MIN", "REDIS_HOST", "GEOCODE_CACHE_TTL_S"} {
		t.Setenv(k, "")
	}
	c, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, boundary.DefaultLayers(), c.Layers)
	assert.Equal(t, 55.0, c.Bounds.LatMin)
	assert.Equal(t, 1, c.GeocodeConcurrency)
	assert.False(t, c.GeocodeEnabled)
	assert.Equal(t, 24*time.Hour, c.CacheTTL)
	assert.Empty(t, c.RedisHost)
	assert.NoError(t, c.Validate())
	assert.False(t, c.NeedsPostgres())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("BOUNDARY_LAYERS", "lan:lan:https://example.org/lan.geojson, socken:sockenstadnamn:pg:gis.socken")
	t.Setenv("GEOCODE_ENABLED", "true")
	t.Setenv("GEOCODE_CONCURRENCY", "4")
	t.Setenv("BOUNDS_LAT_MIN", "50")
	c, err := LoadFromEnv()
	require.NoError(t, err)
	require.Len(t, c.Layers, 2)
	assert.Equal(t, "https://example.org/lan.geojson", c.Layers[0].Source)
	assert.Equal(t, boundary.Layer{Kind: "socken", AttributeKey: "sockenstadnamn", Source: "pg:gis.socken"}, c.Layers[1])
	assert.True(t, c.GeocodeEnabled)
	assert.Equal(t, 4, c.GeocodeConcurrency)
	assert.Equal(t, 50.0, c.Bounds.LatMin)
	assert.True(t, c.NeedsPostgres())
}

func TestParseLayersErrors(t *testing.T) {
	for _, bad := range []string{"lan", "lan:lan", ":lan:x", " , "} {
		_, err := ParseLayers(bad)
		assert.ErrorIs(t, err, ErrBadLayer, bad)
	}
}

func TestValidate(t *testing.T) {
	c, err := LoadFromEnv()
	require.NoError(t, err)

	dup := c
	dup.Layers = []boundary.Layer{{Kind: "lan", AttributeKey: "lan", Source: "a"}, {Kind: "lan", AttributeKey: "lan", Source: "b"}}
	assert.ErrorIs(t, dup.Validate(), ErrBadLayer)

	inv := c
	inv.Bounds.LatMin, inv.Bounds.LatMax = 70, 55
	assert.ErrorIs(t, inv.Validate(), ErrBadBounds)

	conc := c
	conc.GeocodeConcurrency = 0
	assert.Error(t, conc.Validate())
}
