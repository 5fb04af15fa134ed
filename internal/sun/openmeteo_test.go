package sun

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSunTimes(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "sunrise,sunset", q.Get("daily"))
		assert.Equal(t, "2025-06-01", q.Get("start_date"))
		w.Write([]byte(`{"daily":{"time":["2025-06-01"],"sunrise":["2025-06-01T04:53"],"sunset":["2025-06-01T20:41"]}}`))
	}))
	defer srv.Close()

	loc := time.FixedZone("CEST", 2*3600)
	client := NewOpenMeteoClient(srv.URL, 48.1486, 17.1077, loc)
	day := time.Date(2025, 6, 1, 12, 0, 0, 0, loc)

	sunrise, sunset, err := client.SunTimes(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, "04:53", sunrise.In(loc).Format("15:04"))
	assert.Equal(t, "20:41", sunset.In(loc).Format("15:04"))

	// second call is served from the cache
	_, _, err = client.SunTimes(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSunTimesEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"daily":{"time":[],"sunrise":[],"sunset":[]}}`))
	}))
	defer srv.Close()

	client := NewOpenMeteoClient(srv.URL, 0, 0, time.UTC)
	_, _, err := client.SunTimes(context.Background(), time.Now())
	assert.ErrorContains(t, err, "no sun times")
}
