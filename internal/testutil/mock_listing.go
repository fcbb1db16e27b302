// Package testutil provides testing utilities for the listing API client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// FeedPath is the path the mock serves listing pages on.
const FeedPath = "/common/json_feed.html"

// MockResponse defines a canned response for one request number.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockListing is a configurable mock of the DonorsChoose listing API.
// By default it pages through Proposals using the index and max query
// parameters, returning numbers as strings the way the real API does.
type MockListing struct {
	server *httptest.Server
	mu     sync.RWMutex

	proposals   []map[string]string
	searchTerms string
	overrides   map[int]MockResponse

	// Tracking
	requestCount int
	queries      []url.Values
	lastHeader   http.Header
}

// NewMockListing creates a mock serving n generated proposals.
func NewMockListing(n int) *MockListing {
	mock := &MockListing{
		proposals: GenerateProposals(n),
		overrides: make(map[int]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		number := mock.requestCount
		mock.queries = append(mock.queries, r.URL.Query())
		mock.lastHeader = r.Header.Clone()
		override, exists := mock.overrides[number]
		mock.mu.Unlock()

		if exists {
			writeOverride(w, override)
			return
		}
		if r.URL.Path != FeedPath {
			http.NotFound(w, r)
			return
		}

		mock.feedHandler(w, r)
	}))

	return mock
}

// URL returns the mock feed URL, usable as a query base URL.
func (m *MockListing) URL() string {
	return m.server.URL + FeedPath
}

// Close shuts down the mock server.
func (m *MockListing) Close() {
	m.server.Close()
}

// SetSearchTerms sets the searchTerms echoed in every response.
func (m *MockListing) SetSearchTerms(terms string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchTerms = terms
}

// SetResponse replaces the response for the given 1-based request number.
func (m *MockListing) SetResponse(requestNumber int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[requestNumber] = resp
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockListing) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// Queries returns the query parameters of every request, in order.
func (m *MockListing) Queries() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]url.Values, len(m.queries))
	copy(out, m.queries)
	return out
}

// LastHeader returns the headers of the most recent request.
func (m *MockListing) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

func (m *MockListing) feedHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	index, err := strconv.Atoi(q.Get("index"))
	if err != nil || index < 0 {
		http.Error(w, `{"error":"bad index"}`, http.StatusBadRequest)
		return
	}
	max, err := strconv.Atoi(q.Get("max"))
	if err != nil || max < 1 || max > 50 {
		http.Error(w, `{"error":"bad max"}`, http.StatusBadRequest)
		return
	}

	m.mu.RLock()
	total := len(m.proposals)
	start := index
	if start > total {
		start = total
	}
	end := start + max
	if end > total {
		end = total
	}
	page := m.proposals[start:end]
	terms := m.searchTerms
	m.mu.RUnlock()

	body := map[string]any{
		"searchTerms":    terms,
		"searchURL":      "https://www.donorschoose.org/donors/search.html?keywords=" + url.QueryEscape(terms),
		"totalProposals": strconv.Itoa(total),
		"index":          strconv.Itoa(index),
		"max":            strconv.Itoa(max),
		"breadcrumb":     [][]string{{"keywords", terms}},
		"proposals":      page,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOverride(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// GenerateProposals builds n listing records shaped like the real feed.
func GenerateProposals(n int) []map[string]string {
	out := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		id := strconv.Itoa(2000000 + i)
		status := "needs funding"
		if i%3 == 0 {
			status = "funded"
		}
		out = append(out, map[string]string{
			"id":             id,
			"proposalURL":    "https://www.donorschoose.org/project/" + id,
			"title":          fmt.Sprintf("Classroom Project %d", i+1),
			"fundingStatus":  status,
			"schoolName":     "Mock Elementary",
			"city":           "Canoga Park",
			"state":          "CA",
			"costToComplete": fmt.Sprintf("%d.00", 100+i),
		})
	}
	return out
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewForbiddenResponse creates a 403 response as sent for a bad API key.
func NewForbiddenResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"error": "invalid APIKey"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewMalformedResponse creates a 200 response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>maintenance</html>`,
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}
