// Package exchangetest provides a fake Binance REST server for tests.
package exchangetest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const tickerPath = "/api/v3/ticker/price"

// Server fake exchange; every route is keyed by URL path.
// Signed routes answer 401 when the signature or API key header is missing.
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  map[string]int
}

// New starts a fake exchange that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		routes: make(map[string]http.HandlerFunc),
		calls:  make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle answers path with a fixed status and JSON body.
func (s *Server) Handle(path string, status int, body string) {
	s.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, body)
	})
}

// HandleFunc answers path with fn.
func (s *Server) HandleFunc(path string, fn http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = fn
}

// Calls number of requests received on path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls[r.URL.Path]++
	fn, ok := s.routes[r.URL.Path]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path != tickerPath {
		if r.URL.Query().Get("signature") == "" || r.URL.Query().Get("timestamp") == "" || r.Header.Get("X-MBX-APIKEY") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = fmt.Fprint(w, `{"code":-2014,"msg":"API-key format invalid."}`)
			return
		}
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprintf(w, `{"code":-1,"msg":"no route for %s"}`, r.URL.Path)
		return
	}
	fn(w, r)
}
