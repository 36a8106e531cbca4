package ingredientdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mommyshops/backend/internal/domain"
)

func TestRemoteSource_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/ingredients/sodium lauryl sulfate":
			w.Write([]byte(`{"name": "sodium lauryl sulfate", "eco_score": "40", "risk": "medium risk", "risks_detailed": "Irritante"}`))
		case "/ingredients/glycerin":
			w.Write([]byte(`{"eco_score": 88, "risk_level": "seguro", "sources": "EWG"}`))
		case "/ingredients/broken":
			w.Write([]byte(`{oops`))
		case "/ingredients/down":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	src := NewRemoteSource(RemoteConfig{BaseURL: server.URL, APIKey: "secret", Timeout: time.Second}, nil)
	ctx := context.Background()

	sls, err := src.Lookup(ctx, "sodium lauryl sulfate")
	require.NoError(t, err)
	assert.Equal(t, "sodium lauryl sulfate", sls.Name)
	assert.Equal(t, 40.0, *sls.EcoScore)
	assert.Equal(t, domain.RiskMedium, sls.RiskLevel)
	assert.Equal(t, "Irritante", sls.RisksDetailed)
	assert.Equal(t, "ingredient_api", sls.Sources)

	glycerin, err := src.Lookup(ctx, "glycerin")
	require.NoError(t, err)
	assert.Equal(t, "glycerin", glycerin.Name)
	assert.Equal(t, 88.0, *glycerin.EcoScore)
	assert.Equal(t, domain.RiskSafe, glycerin.RiskLevel)
	assert.Equal(t, "EWG", glycerin.Sources)

	_, err = src.Lookup(ctx, "nothing")
	assert.ErrorIs(t, err, domain.ErrIngredientNotFound)

	_, err = src.Lookup(ctx, "broken")
	assert.ErrorIs(t, err, domain.ErrIngredientLookupFailure)

	_, err = src.Lookup(ctx, "down")
	assert.ErrorIs(t, err, domain.ErrIngredientLookupFailure)
}

func TestRemoteSource_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	src := NewRemoteSource(RemoteConfig{BaseURL: server.URL, Timeout: 20 * time.Millisecond}, nil)

	_, err := src.Lookup(context.Background(), "water")
	assert.ErrorIs(t, err, domain.ErrIngredientLookupFailure)
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{`72`, 72, true},
		{`"55.5"`, 55.5, true},
		{`null`, 0, false},
		{`"high"`, 0, false},
		{``, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseScore([]byte(tt.raw))
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("parseScore(%s) = %v, %v, want %v, %v", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
