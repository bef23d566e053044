package resolver

import (
	"context"
	"errors"
	"sverigekartan/internal/boundary"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x0, y0, x1, y1 float64) orb.Ring {
	return orb.Ring{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}
}

func feature(g orb.Geometry, key, val string) boundary.Feature {
	return boundary.Feature{Geometry: g, Attributes: map[string]string{key: val}}
}

func lanDataset() *boundary.Dataset {
	return boundary.NewDataset(boundary.Layer{Kind: "lan", AttributeKey: "lan"}, []boundary.Feature{
		feature(orb.Polygon{square(17.0, 58.5, 19.5, 60.2)}, "lan", "Stockholm"),
		feature(orb.Polygon{square(16.5, 59.5, 18.5, 60.8)}, "lan", "Uppsala"),
		feature(orb.MultiPolygon{{square(18.0, 56.9, 19.4, 58.0)}}, "lan", "Gotland"),
	})
}

func TestResolveStockholm(t *testing.T) {
	v, ok := Resolve(orb.Point{18.0686, 59.3293}, lanDataset(), "lan")
	assert.True(t, ok)
	assert.Equal(t, "Stockholm", v)
}

func TestResolveMultiPolygon(t *testing.T) {
	v, ok := Resolve(orb.Point{18.3, 57.6}, lanDataset(), "lan")
	assert.True(t, ok)
	assert.Equal(t, "Gotland", v)
}

func TestResolveOverlapFirstWins(t *testing.T) {
	// (18, 60) lies in both Stockholm and Uppsala squares
	v, ok := Resolve(orb.Point{18.0, 60.0}, lanDataset(), "lan")
	require.True(t, ok)
	assert.Equal(t, "Stockholm", v)
}

func TestResolveHoleIsOutside(t *testing.T) {
	ds := boundary.NewDataset(boundary.Layer{Kind: "kommun", AttributeKey: "kommun"}, []boundary.Feature{
		feature(orb.Polygon{square(0, 0, 10, 10), square(4, 4, 6, 6)}, "kommun", "Ring"),
	})
	_, ok := Resolve(orb.Point{5, 5}, ds, "kommun")
	assert.False(t, ok)
	v, ok := Resolve(orb.Point{2, 2}, ds, "kommun")
	assert.True(t, ok)
	assert.Equal(t, "Ring", v)
}

func TestResolveEmptyAndNilDataset(t *testing.T) {
	pts := []orb.Point{{18.0686, 59.3293}, {0, 0}, {-74, 40.7}}
	empty := boundary.NewDataset(boundary.Layer{Kind: "lan", AttributeKey: "lan"}, nil)
	for _, p := range pts {
		v, ok := Resolve(p, empty, "lan")
		assert.False(t, ok)
		assert.Empty(t, v)
		v, ok = Resolve(p, nil, "lan")
		assert.False(t, ok)
		assert.Empty(t, v)
	}
}

func TestResolveNullGeometryNeverMatches(t *testing.T) {
	ds := boundary.NewDataset(boundary.Layer{Kind: "socken", AttributeKey: "sockenstadnamn"}, []boundary.Feature{
		{Geometry: nil, Attributes: map[string]string{"sockenstadnamn": "Tom"}},
		feature(orb.Point{18, 59}, "sockenstadnamn", "Punkt"),
		feature(orb.Polygon{square(17, 58, 19, 60)}, "sockenstadnamn", "Solna"),
	})
	v, ok := Resolve(orb.Point{18, 59}, ds, "sockenstadnamn")
	assert.True(t, ok)
	assert.Equal(t, "Solna", v)
}

func TestResolveAllMarksMissButKeepsOthers(t *testing.T) {
	kommun := boundary.NewDataset(boundary.Layer{Kind: "kommun", AttributeKey: "kommun"}, []boundary.Feature{
		feature(orb.Polygon{square(30, 30, 31, 31)}, "kommun", "Långt bort"),
	})
	r := New(boundary.NewCatalog(lanDataset(), kommun))
	rec, err := r.ResolveAll(orb.Point{18.0686, 59.3293})
	require.NoError(t, err)
	require.Len(t, rec.Fields, 2)
	assert.Equal(t, "Stockholm", rec.Value("lan"))
	assert.True(t, rec.Found("lan"))
	assert.False(t, rec.Found("kommun"))
	assert.Equal(t, ReasonNoMatch, rec.ManualReview)
}

func TestResolveAllFullMatch(t *testing.T) {
	r := New(boundary.NewCatalog(lanDataset()))
	rec, err := r.ResolveAll(orb.Point{18.0686, 59.3293})
	require.NoError(t, err)
	assert.Empty(t, rec.ManualReview)
}

func TestResolveScopedOnlyActiveLayers(t *testing.T) {
	kommun := boundary.NewDataset(boundary.Layer{Kind: "kommun", AttributeKey: "kommun"}, nil)
	r := New(boundary.NewCatalog(lanDataset(), kommun))
	rec, err := r.ResolveScoped(orb.Point{18.0686, 59.3293}, []string{"lan", "okänd"})
	require.NoError(t, err)
	require.Len(t, rec.Fields, 1)
	assert.Equal(t, "lan", rec.Fields[0].Kind)
	assert.Empty(t, rec.ManualReview)
	assert.Empty(t, rec.Value("kommun"))
}

func TestResolveScopedWithoutActiveLayers(t *testing.T) {
	r := New(boundary.NewCatalog(lanDataset()))
	for _, kinds := range [][]string{nil, {"okänd"}} {
		rec, err := r.ResolveScoped(orb.Point{18.0686, 59.3293}, kinds)
		require.NoError(t, err)
		assert.Empty(t, rec.Fields)
		assert.Equal(t, ReasonNoActiveLayers, rec.ManualReview)
	}
}

type failingFetcher struct {
	fail  string
	block chan struct{}
}

func (f failingFetcher) Fetch(ctx context.Context, l boundary.Layer) ([]boundary.Feature, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.Kind == f.fail {
		return nil, errors.New("disk gone")
	}
	return []boundary.Feature{feature(orb.Polygon{square(10, 55, 25, 70)}, l.AttributeKey, "Överallt")}, nil
}

func TestResolveReportsUnavailableCatalog(t *testing.T) {
	cat := boundary.LoadCatalog(context.Background(), boundary.DefaultLayers(), failingFetcher{fail: "socken"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.ErrorIs(t, cat.Wait(ctx), boundary.ErrDatasetUnavailable)

	r := New(cat)
	rec, err := r.ResolveAll(orb.Point{18.0686, 59.3293})
	assert.ErrorIs(t, err, boundary.ErrDatasetUnavailable)
	assert.Empty(t, rec.Fields)
	assert.NotEqual(t, ReasonNoMatch, rec.ManualReview)

	_, err = r.ResolveScoped(orb.Point{18.0686, 59.3293}, []string{"lan"})
	assert.ErrorIs(t, err, boundary.ErrDatasetUnavailable)
}

func TestResolveReportsLoadingCatalog(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	r := New(boundary.LoadCatalog(context.Background(), boundary.DefaultLayers(), failingFetcher{block: block}))
	_, err := r.ResolveAll(orb.Point{18.0686, 59.3293})
	assert.ErrorIs(t, err, boundary.ErrNotReady)
}

// scanIndex：不做包围盒过滤，按序号升序给出全部要素
type scanIndex struct {
	n     int
	calls int
}

func (s *scanIndex) Candidates(pt orb.Point, fn func(i int) bool) {
	s.calls++
	for i := 0; i < s.n; i++ {
		if !fn(i) {
			return
		}
	}
}

func TestReplacementIndexKeepsFirstMatch(t *testing.T) {
	base := lanDataset()
	ix := &scanIndex{n: base.Len()}
	ds := base.WithIndex(ix)
	require.Equal(t, base.Len(), ds.Len())

	// Stockholm 与 Uppsala 的外框在此点重叠，插入顺序靠前的 Stockholm 生效
	v, ok := Resolve(orb.Point{18.0, 59.8}, ds, "lan")
	assert.True(t, ok)
	assert.Equal(t, "Stockholm", v)
	assert.Equal(t, 1, ix.calls)

	want, _ := Resolve(orb.Point{18.5, 57.5}, base, "lan")
	got, _ := Resolve(orb.Point{18.5, 57.5}, ds, "lan")
	assert.Equal(t, want, got)
}
