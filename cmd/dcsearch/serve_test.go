package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sternrassler/donorschoose-client/internal/config"
	"github.com/Sternrassler/donorschoose-client/internal/testutil"
	"github.com/Sternrassler/donorschoose-client/pkg/client"
	"github.com/Sternrassler/donorschoose-client/pkg/pagination"
	"github.com/Sternrassler/donorschoose-client/pkg/query"
	"github.com/Sternrassler/donorschoose-client/pkg/results"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, search searchFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	newRouter(search).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(t, nil, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSearchEndpoint_PassesOptions(t *testing.T) {
	var gotKeywords string
	var gotOpts queryOptions
	search := func(ctx context.Context, keywords string, opts queryOptions) (*results.Accumulator, error) {
		gotKeywords, gotOpts = keywords, opts
		return results.NewAccumulator(), nil
	}

	rec := serve(t, search, "/search?keywords=canoga+park&filter=state%3DCA&filter=highLevelPoverty%3Dtrue&bbox=1,2,3,4&concise=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	assert.Equal(t, "canoga park", gotKeywords)
	assert.Equal(t, query.Filters{
		{Name: query.FilterState, Value: "CA"},
		{Name: query.FilterHighLevelPoverty, Value: "true"},
	}, gotOpts.Filters)
	assert.Equal(t, []float64{1, 2, 3, 4}, gotOpts.BoundingBox)
	assert.True(t, gotOpts.Concise)

	var view map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "empty", view["state"])
}

func TestSearchEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		status int
	}{
		{name: "missing keywords", target: "/search", status: http.StatusBadRequest},
		{name: "unknown filter", target: "/search?keywords=x&filter=bogus%3D1", status: http.StatusBadRequest},
		{
			name:   "invalid parameter from search",
			target: "/search?keywords=x",
			err:    &query.ParameterError{Param: "bounding_box", Reason: "need 4 coordinates"},
			status: http.StatusBadRequest,
		},
		{
			name:   "transport failure",
			target: "/search?keywords=x",
			err:    &client.APIError{StatusCode: 500, ErrorClass: client.ErrorClassServer, Message: "boom"},
			status: http.StatusBadGateway,
		},
		{name: "page limit", target: "/search?keywords=x", err: pagination.ErrMaxPages, status: http.StatusBadGateway},
		{name: "deadline", target: "/search?keywords=x", err: context.DeadlineExceeded, status: http.StatusGatewayTimeout},
		{name: "other", target: "/search?keywords=x", err: errors.New("unexpected"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			search := func(ctx context.Context, keywords string, opts queryOptions) (*results.Accumulator, error) {
				called = true
				return nil, tt.err
			}

			rec := serve(t, search, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, errorBody(t, rec))
			if tt.err == nil {
				assert.False(t, called, "request validation failed before searching")
			}
		})
	}
}

func TestSearchEndpoint_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search?keywords=x", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := middleware.RequestID(loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodGet, "/search?keywords=x", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"request_id":"abc-123"`)
	assert.Contains(t, out, `"status":204`)
	assert.Contains(t, out, `"path":"/search"`)
}

func TestRouter_NotFound(t *testing.T) {
	rec := serve(t, nil, "/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchEndpoint_MockListing(t *testing.T) {
	mock := testutil.NewMockListing(75)
	defer mock.Close()

	a := &app{cfg: config.Config{
		APIKey:    "DONORSCHOOSE",
		BaseURL:   mock.URL(),
		UserAgent: "dcsearch-test/1.0",
		Timeout:   5 * time.Second,
	}}
	s, err := a.newSearcher(context.Background())
	require.NoError(t, err)
	defer s.Close()

	rec := serve(t, s.Search, "/search?keywords=books")
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 75, view.Count)
	assert.Equal(t, 3, mock.GetRequestCount())
	assert.Equal(t, "dcsearch-test/1.0", mock.LastHeader().Get("User-Agent"))
}

func TestSearchEndpoint_NetworkErrorHidesAPIKey(t *testing.T) {
	mock := testutil.NewMockListing(1)
	base := mock.URL()
	mock.Close()

	a := &app{cfg: config.Config{
		APIKey:    "SECRET-KEY-123",
		BaseURL:   base,
		UserAgent: "dcsearch-test/1.0",
		Timeout:   5 * time.Second,
	}}
	s, err := a.newSearcher(context.Background())
	require.NoError(t, err)
	defer s.Close()

	rec := serve(t, s.Search, "/search?keywords=hawaii")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	msg := errorBody(t, rec)
	assert.NotContains(t, msg, "SECRET-KEY-123")
	assert.Contains(t, msg, "APIKey=REDACTED")
}

func TestStatusFor(t *testing.T) {
	wrapped := errors.Join(errors.New("fetch page 1"), &client.APIError{ErrorClass: client.ErrorClassNetwork})
	assert.Equal(t, http.StatusBadGateway, statusFor(wrapped))
	assert.Equal(t, http.StatusBadRequest, statusFor(query.ErrInvalidParameter))
}
