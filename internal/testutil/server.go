package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// JSONServer is an httptest server with per-path handlers that records the
// requests it serves.
type JSONServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]int
	requests []*http.Request
}

// NewJSONServer starts a server closed at test cleanup. Unrouted paths get 404.
func NewJSONServer(t testing.TB) *JSONServer {
	t.Helper()
	s := &JSONServer{handlers: map[string]http.HandlerFunc{}, hits: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *JSONServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	h, ok := s.handlers[r.URL.Path]
	s.hits[r.URL.Path]++
	s.requests = append(s.requests, r.Clone(r.Context()))
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

// Handle routes path to h.
func (s *JSONServer) Handle(path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[path] = h
}

// JSON routes path to a handler replying with v.
func (s *JSONServer) JSON(path string, v any) {
	s.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, v)
	})
}

// Status routes path to a handler replying with an empty body and code.
func (s *JSONServer) Status(path string, code int) {
	s.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	})
}

// Hits returns how many requests path received.
func (s *JSONServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// Requests returns the recorded requests.
func (s *JSONServer) Requests() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*http.Request(nil), s.requests...)
}

// WriteJSON encodes v with code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
