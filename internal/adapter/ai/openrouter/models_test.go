package openrouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/reelmatch/internal/domain"
)

const modelsBody = `{"data":[
 {"id":"free-model-1","name":"Free 1","pricing":{"prompt":"0","completion":"0"}},
 {"id":"paid-model-1","name":"Paid 1","pricing":{"prompt":"0.001","completion":"0.002"}},
 {"id":"openrouter/auto","name":"Auto","pricing":{"prompt":"0","completion":"0"}},
 {"id":"free-model-2","name":"Free 2","pricing":{"prompt":"","completion":"0.0"}}
]}`

func TestFreeModels_FiltersAndCaches(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(modelsBody))
	}))
	defer ts.Close()

	fm := NewFreeModels("test-key", ts.URL, time.Hour, ts.Client())
	ids, err := fm.IDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"free-model-1", "free-model-2"}, ids)

	_, err = fm.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	require.NoError(t, fm.Refresh(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFreeModels_FallsBackToCachedList(t *testing.T) {
	var fail atomic.Bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(modelsBody))
	}))
	defer ts.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fm := NewFreeModels("", ts.URL, time.Minute, ts.Client())
	fm.now = func() time.Time { return now }

	_, err := fm.List(context.Background())
	require.NoError(t, err)

	fail.Store(true)
	now = now.Add(2 * time.Minute)
	models, err := fm.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, models, 2)
}

func TestFreeModels_Errors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := NewFreeModels("k", ts.URL, time.Hour, ts.Client()).IDs(context.Background())
	assert.ErrorIs(t, err, domain.ErrUpstreamRateLimit)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer empty.Close()

	_, err = NewFreeModels("k", empty.URL, time.Hour, empty.Client()).IDs(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPriceIsFree(t *testing.T) {
	for _, v := range []string{"", "0", "0.0", " 0 "} {
		assert.True(t, priceIsFree(v), v)
	}
	for _, v := range []string{"0.0001", "1"} {
		assert.False(t, priceIsFree(v), v)
	}
}
