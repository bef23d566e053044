package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(url string) *Client {
	c := NewClient(url, "sverigekartan-test/1.0", 0)
	c.Backoff = time.Millisecond
	return c
}

func TestReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "59.329300", r.URL.Query().Get("lat"))
		assert.Equal(t, "18.068600", r.URL.Query().Get("lon"))
		assert.Equal(t, "sverigekartan-test/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"display_name":"Stadshuset, Stockholm, Sverige","address":{"country":"Sverige","country_code":"se","county":"Stockholms län","city":"Stockholm"}}`))
	}))
	defer srv.Close()

	a, err := testClient(srv.URL).Reverse(context.Background(), 59.3293, 18.0686)
	require.NoError(t, err)
	assert.Equal(t, "Sverige", a.Country)
	assert.Equal(t, "se", a.CountryCode)
	assert.Contains(t, a.DisplayName, "Stockholm")
	assert.Equal(t, "Stockholms län", a.County)
	assert.Equal(t, "Stockholm", a.Municipality)
}

func TestReverseNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()
	_, err := testClient(srv.URL).Reverse(context.Background(), 0, 0)
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestRetryOnServerError(t *testing.T) {
	var n int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"display_name":"Uppsala","address":{"country":"Sverige","country_code":"se"}}`))
	}))
	defer srv.Close()
	a, err := testClient(srv.URL).Reverse(context.Background(), 59.86, 17.64)
	require.NoError(t, err)
	assert.Equal(t, "Uppsala", a.DisplayName)
	assert.Equal(t, int32(3), atomic.LoadInt32(&n))
}

func TestNoRetryOnClientError(t *testing.T) {
	var n int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&n, 1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()
	_, err := testClient(srv.URL).Reverse(context.Background(), 59, 18)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&n))
}

func TestRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	_, err := testClient(srv.URL).Reverse(context.Background(), 59, 18)
	assert.ErrorIs(t, err, errRetryable)
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Uppsala domkyrka", r.URL.Query().Get("q"))
		assert.Equal(t, "se", r.URL.Query().Get("countrycodes"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[{"display_name":"Uppsala domkyrka","lat":"59.8581","lon":"17.6339","type":"cathedral"},{"display_name":"trasig","lat":"x","lon":"y"}]`))
	}))
	defer srv.Close()
	ps, err := testClient(srv.URL).Search(context.Background(), "Uppsala domkyrka", "SE", 2)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.InDelta(t, 59.8581, ps[0].Lat, 1e-9)
	assert.InDelta(t, 17.6339, ps[0].Lon, 1e-9)
}

func TestSearchEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	_, err := testClient(srv.URL).Search(context.Background(), "ingenstans", "", 1)
	assert.ErrorIs(t, err, ErrNoResult)
	_, err = testClient(srv.URL).Search(context.Background(), "  ", "", 1)
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestLRU(t *testing.T) {
	c := NewLRU[Address](2, time.Minute)
	c.Set("a", Address{DisplayName: "A"})
	c.Set("b", Address{DisplayName: "B"})
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("c", Address{DisplayName: "C"})
	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry evicted")
	a, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", a.DisplayName)
	assert.Equal(t, 2, c.Len())
}

func TestLRUExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewLRU[string](4, time.Minute)
	c.now = func() time.Time { return now }
	c.Set("x", "gammal")
	now = now.Add(30 * time.Second)
	c.Set("y", "ny")
	v, ok := c.Get("x")
	require.True(t, ok)
	assert.Equal(t, "gammal", v)

	now = now.Add(45 * time.Second)
	_, ok = c.Get("x")
	assert.False(t, ok, "expired on read")
	assert.Equal(t, 1, c.Len())

	now = now.Add(time.Minute)
	c.Set("z", "senast")
	assert.Equal(t, 1, c.Len(), "expired tail cleared on write")
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "u6sce", cacheKey(59.3293, 18.0686, 5))
	assert.Len(t, cacheKey(59.3293, 18.0686, DefaultPrecision), DefaultPrecision)
	assert.NotEqual(t, cacheKey(59.3293, 18.0686, 9), cacheKey(59.3303, 18.0686, 9))
	assert.Equal(t, cacheKey(59.3293, 18.0686, 9)[:5], cacheKey(59.3293, 18.0686, 5))
}

type countingReverser struct {
	n   int32
	err error
}

func (c *countingReverser) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	atomic.AddInt32(&c.n, 1)
	if c.err != nil {
		return Address{}, c.err
	}
	return Address{DisplayName: "Stockholm", Country: "Sverige"}, nil
}

func TestCachedReverserUsesLRU(t *testing.T) {
	up := &countingReverser{}
	c := &CachedReverser{Next: up, LRU: NewLRU[Address](16, time.Minute)}
	for i := 0; i < 3; i++ {
		a, err := c.Reverse(context.Background(), 59.3293, 18.0686)
		require.NoError(t, err)
		assert.Equal(t, "Stockholm", a.DisplayName)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&up.n))
}

func TestCachedReverserDoesNotCacheFailures(t *testing.T) {
	up := &countingReverser{err: errors.New("down")}
	c := &CachedReverser{Next: up, LRU: NewLRU[Address](16, time.Minute)}
	_, err := c.Reverse(context.Background(), 59.3293, 18.0686)
	require.Error(t, err)
	_, err = c.Reverse(context.Background(), 59.3293, 18.0686)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&up.n))
}

func TestCachedReverserSurvivesRedisOutage(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	up := &countingReverser{}
	c := &CachedReverser{Next: up, Redis: NewRedisCache(rdb, time.Minute)}
	a, err := c.Reverse(context.Background(), 59.3293, 18.0686)
	require.NoError(t, err)
	assert.Equal(t, "Stockholm", a.DisplayName)
}

func TestCountryScope(t *testing.T) {
	s, err := OpenCountryScope("", "SE")
	require.NoError(t, err)
	assert.Equal(t, "no", s.Country("NO", "1.2.3.4"))
	assert.Equal(t, "se", s.Country("", "1.2.3.4"))
	assert.NoError(t, s.Close())

	_, err = OpenCountryScope("/does/not/exist.mmdb", "se")
	assert.Error(t, err)

	var nilScope *CountryScope
	assert.Equal(t, "", nilScope.Country("", "1.2.3.4"))
}
