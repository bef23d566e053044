package boundary

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lanFC = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"lan": "Stockholm", "kod": 1},
     "geometry": {"type": "Polygon", "coordinates": [[[17,59],[19,59],[19,60],[17,60],[17,59]]]}},
    {"type": "Feature", "properties": {"lan": "Saknas"}, "geometry": null},
    {"type": "Feature", "properties": {"lan": "Gotland"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[18,57],[19,57],[19,58],[18,58],[18,57]]]]}}
  ]
}`

func TestParseFeatureCollectionKeepsOrderAndNullGeometry(t *testing.T) {
	fs, err := ParseFeatureCollection([]byte(lanFC))
	require.NoError(t, err)
	require.Len(t, fs, 3)
	v, ok := fs[0].Attr("lan")
	assert.True(t, ok)
	assert.Equal(t, "Stockholm", v)
	kod, _ := fs[0].Attr("kod")
	assert.Equal(t, "1", kod)
	assert.Nil(t, fs[1].Geometry)
	_, ok = fs[2].Geometry.(orb.MultiPolygon)
	assert.True(t, ok)
}

func TestParseFeatureCollectionRejectsGarbage(t *testing.T) {
	_, err := ParseFeatureCollection([]byte(`{"type":"Feature"`))
	assert.Error(t, err)
}

func TestCandidatesSkipNullGeometryAndKeepOrder(t *testing.T) {
	fs, err := ParseFeatureCollection([]byte(lanFC))
	require.NoError(t, err)
	fs = append(fs, fs[0])
	d := NewDataset(Layer{Kind: "lan", AttributeKey: "lan"}, fs)
	var got []int
	d.Candidates(orb.Point{18, 59.5}, func(i int) bool {
		got = append(got, i)
		return true
	})
	assert.Equal(t, []int{0, 3}, got)
}

func TestNilDatasetIsEmpty(t *testing.T) {
	var d *Dataset
	assert.Equal(t, 0, d.Len())
	assert.Nil(t, d.Feature(0))
	called := false
	d.Candidates(orb.Point{18, 59}, func(int) bool { called = true; return true })
	assert.False(t, called)
}

func TestLoaderFileSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lan.geojson"), []byte(lanFC), 0o644))
	l := &Loader{Dir: dir}
	fs, err := l.Fetch(context.Background(), Layer{Kind: "lan", AttributeKey: "lan", Source: "lan.geojson"})
	require.NoError(t, err)
	assert.Len(t, fs, 3)

	_, err = l.Fetch(context.Background(), Layer{Kind: "kommun", Source: "saknas.geojson"})
	assert.Error(t, err)
}

func TestLoaderHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lan.geojson" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(lanFC))
	}))
	defer srv.Close()
	l := &Loader{Client: srv.Client()}
	fs, err := l.Fetch(context.Background(), Layer{Kind: "lan", Source: srv.URL + "/lan.geojson"})
	require.NoError(t, err)
	assert.Len(t, fs, 3)

	_, err = l.Fetch(context.Background(), Layer{Kind: "lan", Source: srv.URL + "/x.geojson"})
	assert.ErrorContains(t, err, "http 404")
}

func TestLoaderPGSource(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ST_AsGeoJSON(geom), props::text FROM "public"."socken" ORDER BY id`)).
		WillReturnRows(sqlmock.NewRows([]string{"geom", "props"}).
			AddRow(`{"type":"Polygon","coordinates":[[[17,59],[19,59],[19,60],[17,60],[17,59]]]}`, `{"sockenstadnamn":"Solna"}`).
			AddRow(nil, `{"sockenstadnamn":"Tom"}`))

	l := &Loader{DB: db}
	fs, err := l.Fetch(context.Background(), Layer{Kind: "socken", AttributeKey: "sockenstadnamn", Source: "pg:public.socken"})
	require.NoError(t, err)
	require.Len(t, fs, 2)
	v, _ := fs[0].Attr("sockenstadnamn")
	assert.Equal(t, "Solna", v)
	assert.NotNil(t, fs[0].Geometry)
	assert.Nil(t, fs[1].Geometry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoaderPGRejectsInjection(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	l := &Loader{DB: db}
	_, err = l.Fetch(context.Background(), Layer{Kind: "lan", Source: "pg:lan; DROP TABLE x"})
	assert.ErrorContains(t, err, "bad table name")
}

type stubFetcher struct {
	features map[string][]Feature
	fail     map[string]error
	block    chan struct{}
}

func (s *stubFetcher) Fetch(ctx context.Context, layer Layer) ([]Feature, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := s.fail[layer.Kind]; err != nil {
		return nil, err
	}
	return s.features[layer.Kind], nil
}

func TestLoadCatalogReady(t *testing.T) {
	fs, err := ParseFeatureCollection([]byte(lanFC))
	require.NoError(t, err)
	f := &stubFetcher{features: map[string][]Feature{"lan": fs, "kommun": nil}}
	c := LoadCatalog(context.Background(), []Layer{{Kind: "lan", AttributeKey: "lan"}, {Kind: "kommun", AttributeKey: "kommun"}}, f)
	require.NoError(t, c.Wait(context.Background()))
	d, ok := c.Dataset("lan")
	require.True(t, ok)
	assert.Equal(t, 3, d.Len())
	k, ok := c.Dataset("kommun")
	require.True(t, ok)
	assert.Equal(t, 0, k.Len())
	assert.False(t, c.LoadedAt().IsZero())
}

func TestLoadCatalogFailureIsSurfaced(t *testing.T) {
	f := &stubFetcher{fail: map[string]error{"kommun": errors.New("boom")}}
	c := LoadCatalog(context.Background(), []Layer{{Kind: "lan"}, {Kind: "kommun"}}, f)
	err := c.Wait(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDatasetUnavailable)
	assert.ErrorIs(t, c.Status(), ErrDatasetUnavailable)
}

func TestCatalogNotReadyBeforeLoad(t *testing.T) {
	f := &stubFetcher{block: make(chan struct{})}
	c := LoadCatalog(context.Background(), []Layer{{Kind: "lan"}}, f)
	assert.ErrorIs(t, c.Status(), ErrNotReady)
	_, ok := c.Dataset("lan")
	assert.False(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Wait(ctx), ErrNotReady)

	close(f.block)
	require.NoError(t, c.Wait(context.Background()))
}

func TestNewCatalogIsReady(t *testing.T) {
	c := NewCatalog(NewDataset(Layer{Kind: "lan", AttributeKey: "lan"}, nil), nil)
	assert.NoError(t, c.Status())
	assert.Len(t, c.Layers(), 1)
}
