package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestResolver wires a resolver to srv with a frozen clock and a sleep
// spy, so pacing is observable without real waiting.
func newTestResolver(srv *httptest.Server) (*Resolver, *[]time.Duration) {
	r := New(srv.URL, 1500*time.Millisecond, zap.NewNop())
	r.client = srv.Client()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	slept := &[]time.Duration{}
	r.now = func() time.Time { return base }
	r.sleep = func(d time.Duration) { *slept = append(*slept, d) }
	return r, slept
}

func TestLookupSuccessPassthrough(t *testing.T) {
	var gotPath, gotFields string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		gotFields = req.URL.Query().Get("fields")
		w.Write([]byte(`{
			"status": "success", "country": "Germany", "countryCode": "DE",
			"region": "BE", "regionName": "Berlin", "city": "Berlin",
			"zip": "10115", "lat": 52.53, "lon": 13.38,
			"isp": "Example ISP", "org": "Example Org",
			"as": "AS64496 Example", "query": "203.0.113.9"
		}`))
	}))
	defer srv.Close()

	r, _ := newTestResolver(srv)
	info := r.Lookup(context.Background(), "203.0.113.9")

	require.NotNil(t, info)
	assert.Equal(t, "/203.0.113.9", gotPath)
	assert.Equal(t, fieldList, gotFields)
	assert.Equal(t, "success", info.Status)
	assert.Equal(t, "Germany", info.Country)
	assert.Equal(t, "Berlin", info.City)
	assert.Equal(t, 52.53, info.Lat)
	assert.Equal(t, "AS64496 Example", info.AS)
}

func TestLookupCachesPerAddress(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		w.Write([]byte(`{"status":"success","country":"Germany"}`))
	}))
	defer srv.Close()

	r, slept := newTestResolver(srv)
	first := r.Lookup(context.Background(), "203.0.113.9")
	second := r.Lookup(context.Background(), "203.0.113.9")

	assert.Equal(t, 1, calls, "one outbound call per distinct address")
	assert.Same(t, first, second)
	assert.Empty(t, *slept, "cache hit must not re-enter the pacing gate")
}

func TestLookupPacesDistinctAddresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	r, slept := newTestResolver(srv)
	r.Lookup(context.Background(), "203.0.113.9")
	r.Lookup(context.Background(), "198.51.100.7")

	// The clock is frozen, so the full interval must be slept before the
	// second call; the first call never waits.
	require.Len(t, *slept, 1)
	assert.Equal(t, 1500*time.Millisecond, (*slept)[0])
}

func TestLookupServiceReportedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"status":"fail","message":"private range","query":"10.0.0.5"}`))
	}))
	defer srv.Close()

	r, _ := newTestResolver(srv)
	info := r.Lookup(context.Background(), "10.0.0.5")

	assert.Equal(t, "fail", info.Status)
	assert.Equal(t, "private range", info.Message)
}

func TestLookupTransportFailureSynthesizedAndCached(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	r, _ := newTestResolver(srv)
	first := r.Lookup(context.Background(), "203.0.113.9")

	require.NotNil(t, first)
	assert.Equal(t, "fail", first.Status)
	assert.NotEmpty(t, first.Message)

	second := r.Lookup(context.Background(), "203.0.113.9")
	assert.Equal(t, 1, calls, "failures are cached for the rest of the run")
	assert.Same(t, first, second)
}

func TestLookupConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {}))
	r, _ := newTestResolver(srv)
	srv.Close()

	info := r.Lookup(context.Background(), "203.0.113.9")
	assert.Equal(t, "fail", info.Status)
	assert.NotEmpty(t, info.Message)
}
