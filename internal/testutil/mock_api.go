// Package testutil provides a configurable mock Threat Stack API server.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
)

// MockResponse defines the behavior for one mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockAPI is a configurable mock Threat Stack server for testing. It
// records every request's query parameters so tests can assert the
// window-versus-token asymmetry of paginated calls.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	requestCount int
	queries      []url.Values
	authHeaders  []string
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.queries = append(mock.queries, r.URL.Query())
		mock.authHeaders = append(mock.authHeaders, r.Header.Get("Authorization"))
		handler := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if handler != nil {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":["not found"]}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking state.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.queries = nil
	m.authHeaders = nil
}

// SetHandler sets a custom handler for a path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetPagedResponses scripts a token-paginated endpoint: each request is
// answered with the next body in sequence, keyed off the token parameter's
// position in the script. recordKey is the record array's JSON key ("recs"
// or "agents"), tokens[i] is the token returned with page i (empty string
// on the final page).
func (m *MockAPI) SetPagedResponses(path, recordKey string, pages [][]string, tokens []string) {
	served := 0
	var mu sync.Mutex

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		i := served
		if i >= len(pages) {
			i = len(pages) - 1
		}
		served++
		mu.Unlock()

		records := make([]json.RawMessage, len(pages[i]))
		for j, rec := range pages[i] {
			records[j] = json.RawMessage(rec)
		}

		body, _ := json.Marshal(map[string]any{
			recordKey: records,
			"token":   tokens[i],
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})
}

// RequestCount returns the number of requests made to the server.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// Queries returns each request's query parameters in arrival order.
func (m *MockAPI) Queries() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]url.Values, len(m.queries))
	copy(out, m.queries)
	return out
}

// AuthHeaders returns each request's Authorization header in arrival order.
func (m *MockAPI) AuthHeaders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.authHeaders))
	copy(out, m.authHeaders)
	return out
}
