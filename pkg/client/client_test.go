package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/donorschoose-client/internal/testutil"
	"github.com/Sternrassler/donorschoose-client/pkg/query"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(DefaultConfig("dcsearch-test/1.0"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func buildRequest(t *testing.T, base string, start int) *query.Request {
	t.Helper()
	req, err := query.Build(query.Params{
		Keywords: "canoga park",
		Start:    start,
		PageSize: query.MaxPageSize,
		BaseURL:  base,
	})
	if err != nil {
		t.Fatalf("query.Build() error = %v", err)
	}
	return req
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			config: DefaultConfig("dcsearch/0.1"),
		},
		{
			name:        "empty user agent",
			config:      Config{Timeout: time.Second},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name:        "negative timeout",
			config:      Config{UserAgent: "dcsearch/0.1", Timeout: -time.Second},
			expectError: true,
			errorMsg:    "timeout must not be negative (got -1s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error but got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c == nil {
				t.Fatal("New() returned nil client")
			}
		})
	}
}

func TestFetchPage_Success(t *testing.T) {
	mock := testutil.NewMockListing(13)
	defer mock.Close()
	mock.SetSearchTerms(`"canoga park"`)

	c := newTestClient(t)
	page, err := c.FetchPage(context.Background(), buildRequest(t, mock.URL(), 0))
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	if len(page.Proposals) != 13 {
		t.Errorf("len(Proposals) = %d, want 13", len(page.Proposals))
	}
	if page.TotalProposals != 13 {
		t.Errorf("TotalProposals = %d, want 13", page.TotalProposals)
	}
	if page.Max != 50 {
		t.Errorf("Max = %d, want 50", page.Max)
	}
	if page.SearchTerms != `"canoga park"` {
		t.Errorf("SearchTerms = %q", page.SearchTerms)
	}
	if page.Proposals[0].ID != "2000000" {
		t.Errorf("first ID = %q, want 2000000", page.Proposals[0].ID)
	}

	header := mock.LastHeader()
	if got := header.Get("User-Agent"); got != "dcsearch-test/1.0" {
		t.Errorf("User-Agent = %q", got)
	}
	if got := header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}

	q := mock.Queries()[0]
	if q.Get("keywords") != `"canoga park"` || q.Get("index") != "0" || q.Get("max") != "50" {
		t.Errorf("server saw query %v", q)
	}
}

func TestFetchPage_EmptyPage(t *testing.T) {
	mock := testutil.NewMockListing(13)
	defer mock.Close()

	c := newTestClient(t)
	page, err := c.FetchPage(context.Background(), buildRequest(t, mock.URL(), 50))
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if !page.Empty() {
		t.Errorf("page past the end should be empty, got %d proposals", len(page.Proposals))
	}
	if page.Proposals == nil {
		t.Error("empty page should still carry a non-nil proposals slice")
	}
}

func TestFetchPage_Errors(t *testing.T) {
	tests := []struct {
		name       string
		response   testutil.MockResponse
		wantClass  ErrorClass
		wantStatus int
	}{
		{
			name:       "server error",
			response:   testutil.NewServerErrorResponse(),
			wantClass:  ErrorClassServer,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "forbidden",
			response:   testutil.NewForbiddenResponse(),
			wantClass:  ErrorClassClient,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "malformed body",
			response:   testutil.NewMalformedResponse(),
			wantClass:  ErrorClassDecode,
			wantStatus: http.StatusOK,
		},
		{
			name: "missing proposals member",
			response: testutil.MockResponse{
				StatusCode: http.StatusOK,
				Body:       `{"totalProposals": "0", "max": "50"}`,
			},
			wantClass:  ErrorClassDecode,
			wantStatus: http.StatusOK,
		},
		{
			name: "bad number",
			response: testutil.MockResponse{
				StatusCode: http.StatusOK,
				Body:       `{"totalProposals": "many", "proposals": []}`,
			},
			wantClass:  ErrorClassDecode,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockListing(13)
			defer mock.Close()
			mock.SetResponse(1, tt.response)

			c := newTestClient(t)
			page, err := c.FetchPage(context.Background(), buildRequest(t, mock.URL(), 0))
			if page != nil {
				t.Errorf("FetchPage() returned a page alongside error")
			}
			if !errors.Is(err, ErrTransport) {
				t.Fatalf("FetchPage() error = %v, want ErrTransport", err)
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error %T is not *APIError", err)
			}
			if apiErr.ErrorClass != tt.wantClass {
				t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, tt.wantClass)
			}
			if apiErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestFetchPage_NetworkError(t *testing.T) {
	mock := testutil.NewMockListing(1)
	base := mock.URL()
	mock.Close()

	c := newTestClient(t)
	_, err := c.FetchPage(context.Background(), buildRequest(t, base, 0))

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("FetchPage() error = %v, want *APIError", err)
	}
	if apiErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, ErrorClassNetwork)
	}
}

func TestFetchPage_NetworkErrorHidesAPIKey(t *testing.T) {
	mock := testutil.NewMockListing(1)
	base := mock.URL()
	mock.Close()

	req, err := query.Build(query.Params{
		Keywords: "hawaii",
		PageSize: query.MaxPageSize,
		APIKey:   "SECRET-KEY-123",
		BaseURL:  base,
	})
	if err != nil {
		t.Fatalf("query.Build() error = %v", err)
	}

	c := newTestClient(t)
	_, err = c.FetchPage(context.Background(), req)
	if err == nil {
		t.Fatal("FetchPage() should fail against a closed server")
	}
	if strings.Contains(err.Error(), "SECRET-KEY-123") {
		t.Errorf("error exposes the API key: %v", err)
	}
	if !strings.Contains(err.Error(), "APIKey=REDACTED") {
		t.Errorf("error = %v, want redacted request URL", err)
	}

	var ue *url.Error
	if !errors.As(err, &ue) {
		t.Fatalf("error %T does not wrap *url.Error", err)
	}
	if strings.Contains(ue.URL, "SECRET-KEY-123") {
		t.Errorf("url.Error.URL = %q, want key redacted", ue.URL)
	}
}

func TestFetchPage_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockListing(1)
	defer mock.Close()
	mock.SetResponse(1, testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"proposals":[]}`, Delay: 500 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := newTestClient(t)
	_, err := c.FetchPage(ctx, buildRequest(t, mock.URL(), 0))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("FetchPage() error = %v, want context.DeadlineExceeded", err)
	}
	if !errors.Is(err, ErrTransport) {
		t.Errorf("FetchPage() error = %v, want ErrTransport", err)
	}
}

func TestFetchPage_NilRequest(t *testing.T) {
	c := newTestClient(t)
	if _, err := c.FetchPage(context.Background(), nil); err == nil {
		t.Error("FetchPage(nil) should fail")
	}
}

func TestRedactURL(t *testing.T) {
	u, _ := url.Parse("https://api.donorschoose.org/common/json_feed.html?APIKey=secret&max=50")
	got := redactURL(u)
	if want := "https://api.donorschoose.org/common/json_feed.html?APIKey=REDACTED&max=50"; got != want {
		t.Errorf("redactURL() = %q, want %q", got, want)
	}
	if u.RawQuery != "APIKey=secret&max=50" {
		t.Error("redactURL() modified its input")
	}

	ordered, _ := url.Parse("https://api.donorschoose.org/common/json_feed.html?keywords=hawaii&max=50&index=0&APIKey=secret&concise=true")
	if got, want := redactURL(ordered), "https://api.donorschoose.org/common/json_feed.html?keywords=hawaii&max=50&index=0&APIKey=REDACTED&concise=true"; got != want {
		t.Errorf("redactURL() = %q, want %q", got, want)
	}

	plain, _ := url.Parse("https://example.com/x?a=1")
	if got := redactURL(plain); got != "https://example.com/x?a=1" {
		t.Errorf("redactURL() = %q", got)
	}
	if got := redactURL(nil); got != "" {
		t.Errorf("redactURL(nil) = %q", got)
	}
}
