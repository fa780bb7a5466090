package tools

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchWeb(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "straw man", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("count"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"query":{"original":"straw man"},"web":{"results":[
			{"title":"Straw man","url":"https://example.com/straw","description":"A fallacy.","age":"2 days"}]}}`))
	}))
	defer srv.Close()

	h := SearchWeb(SearchConfig{APIKey: "secret", Endpoint: srv.URL, Count: 3})
	s := invokeStatus(t, h, `{"query":"straw man"}`)

	assert.True(t, s.Success)
	assert.Contains(t, s.Message, "Web search results for: straw man")
	assert.Contains(t, s.Message, "1. Straw man")
	assert.Contains(t, s.Message, "URL: https://example.com/straw")
	assert.Contains(t, s.Message, "Age: 2 days")
}

func TestSearchWebAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := invokeStatus(t, SearchWeb(SearchConfig{APIKey: "k", Endpoint: srv.URL}), `{"query":"q"}`)
	assert.False(t, s.Success)
	assert.Contains(t, s.Message, "status 429")
}

func TestSearchWebUnconfigured(t *testing.T) {
	s := invokeStatus(t, SearchWeb(SearchConfig{}), `{"query":"q"}`)
	assert.False(t, s.Success)
	assert.Equal(t, "search is not configured", s.Message)
}
