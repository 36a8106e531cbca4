package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mommyshops/backend/internal/domain"
)

func TestClient_Scrape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/scrape", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req scrapeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://shop.test/p/1", req.URL)

		w.Write([]byte(`{
			"success": true,
			"data": {
				"markdown": "# Calm Lotion\n\n**Ingredients:** Aqua, Glycerin, Aloe Barbadensis Leaf Juice.\n\nHow to use",
				"metadata": {"category": "Body lotion"}
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "key"}, nil)

	result, err := client.Scrape(context.Background(), "https://shop.test/p/1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Aqua", "Glycerin", "Aloe Barbadensis Leaf Juice"}, result.Ingredients)
	assert.Equal(t, "Body lotion", result.Category)
}

func TestClient_ScrapeErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusPaymentRequired)
			},
		},
		{
			name: "unsuccessful scrape",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"success": false, "error": "blocked"}`))
			},
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`<html>`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewClient(Config{BaseURL: server.URL, APIKey: "key"}, nil).Scrape(context.Background(), "https://shop.test")
			assert.ErrorIs(t, err, domain.ErrScrapeFailure)
		})
	}
}

func TestExtractIngredients(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "spanish label",
			text: "Descripción\n\nIngredientes: agua; glicerina; manteca de karité\n\nModo de uso",
			want: []string{"agua", "glicerina", "manteca de karité"},
		},
		{
			name: "inci label wraps lines",
			text: "INCI: Aqua, Sodium Laurate,\nGlycerin",
			want: []string{"Aqua", "Sodium Laurate", "Glycerin"},
		},
		{
			name: "no label",
			text: "Just a nice product page.",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractIngredients(tt.text)
			assert.Equal(t, tt.want, got)
		})
	}
}
