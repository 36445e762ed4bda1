package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promo-scheduler/internal/counter"
	"promo-scheduler/internal/fetcher"
	"promo-scheduler/internal/promotion"
	"promo-scheduler/internal/scheduler"
)

type mockRefresher struct {
	reset bool
	err   error
	calls int
}

func (m *mockRefresher) Refresh(context.Context) (bool, error) {
	m.calls++
	return m.reset, m.err
}

func newTestServer(t *testing.T, ps []promotion.Promotion, r Refresher) (*httptest.Server, *scheduler.Scheduler) {
	t.Helper()
	s := scheduler.New(counter.NewMemory(), counter.NewMemory())
	if ps != nil {
		s.Configure(promotion.Configuration{SchemaVersion: "0.1.0", Promotions: ps})
	}
	ts := httptest.NewServer(Router(NewPromotionHandler(s, r)))
	t.Cleanup(ts.Close)
	return ts, s
}

func TestNext_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		promotions []promotion.Promotion
		query      string
		wantStatus int
		wantID     string
	}{
		{"empty catalog", nil, "", http.StatusNoContent, ""},
		{
			name:       "no match",
			promotions: []promotion.Promotion{{ID: "1", Target: &promotion.Target{Platforms: []string{"android"}}}},
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "match via query context",
			promotions: []promotion.Promotion{{ID: "1", Target: &promotion.Target{Platforms: []string{"android"}}}},
			query:      "?platform=android",
			wantStatus: http.StatusOK,
			wantID:     "1",
		},
		{
			name: "single match",
			promotions: []promotion.Promotion{
				{ID: "fr-only", Target: &promotion.Target{Languages: []string{"fr"}}},
				{ID: "any", Title: "Spotify"},
			},
			wantStatus: http.StatusOK,
			wantID:     "any",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _ := newTestServer(t, tt.promotions, nil)

			resp, err := http.Get(ts.URL + "/v1/promotions/next" + tt.query)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus == http.StatusOK {
				var p promotion.Promotion
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
				assert.Equal(t, tt.wantID, p.ID)
			}
		})
	}
}

func TestStatsAfterSelections(t *testing.T) {
	ts, _ := newTestServer(t, []promotion.Promotion{{ID: "A"}, {ID: "B"}}, nil)

	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/v1/promotions/next")
		require.NoError(t, err)
		resp.Body.Close()
	}

	for _, path := range []string{"/v1/stats", "/v1/stats/balancing"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		var body map[string]promotion.Stats
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()
		assert.Equal(t, promotion.Stats{"A": 2, "B": 1}, body["promotions"], path)
	}
}

func TestNext_QueryContextIsPerRequest(t *testing.T) {
	ts, s := newTestServer(t, []promotion.Promotion{
		{ID: "android", Target: &promotion.Target{Platforms: []string{"android"}}},
		{ID: "ios", Target: &promotion.Target{Platforms: []string{"ios"}}},
	}, nil)

	resp, err := http.Get(ts.URL + "/v1/promotions/next?platform=android&lang=fr")
	require.NoError(t, err)
	var p promotion.Promotion
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	resp.Body.Close()
	assert.Equal(t, "android", p.ID)

	assert.Equal(t, "ios", s.Platform())
	assert.Equal(t, "en", s.Language())

	resp, err = http.Get(ts.URL + "/v1/promotions/next")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	resp.Body.Close()
	assert.Equal(t, "ios", p.ID)
}

func TestStats_Campaigns(t *testing.T) {
	ts, s := newTestServer(t, nil, nil)
	s.Configure(promotion.Configuration{Campaigns: []promotion.Campaign{
		{ID: "c1", Weight: 1, Promotions: []promotion.Promotion{{ID: "p1"}, {ID: "p2"}}},
		{ID: "c2", Weight: 1, Promotions: []promotion.Promotion{{ID: "p3"}}},
	}})
	for i := 0; i < 3; i++ {
		s.NextPromotion()
	}

	resp, err := http.Get(ts.URL + "/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]promotion.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, promotion.Stats{"c1": 2, "c2": 1}, body["campaigns"])
	assert.Equal(t, promotion.Stats{"p1": 1, "p2": 1, "p3": 1}, body["promotions"])
}

func TestContext(t *testing.T) {
	ts, s := newTestServer(t, nil, nil)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/v1/context", strings.NewReader(`{"language":"fr"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "fr", s.Language())
	assert.Equal(t, "ios", s.Platform())

	req, _ = http.NewRequest(http.MethodPut, ts.URL+"/v1/context", strings.NewReader(`{`))
	bad, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestRefreshEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		refresher  Refresher
		wantStatus int
	}{
		{"not configured", nil, http.StatusNotImplemented},
		{"ok", &mockRefresher{reset: true}, http.StatusOK},
		{"fetch failure", &mockRefresher{err: &fetcher.NetworkError{Err: errors.New("offline")}}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _ := newTestServer(t, nil, tt.refresher)
			resp, err := http.Post(ts.URL+"/v1/refresh", "application/json", nil)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t, nil, nil)
	for _, path := range []string{"/healthz", "/metrics", "/v1/promotions"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
