package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// CSV bodies in the shape FRED's graph endpoint returns
const (
	JOLTSCSV = "observation_date,JTSJOL\n" +
		"2019-12-01,6552\n" +
		"2020-01-01,7140\n" +
		"2020-02-01,7004\n" +
		"2020-03-01,.\n" +
		"2020-04-01,4996\n"

	AtlantaWageCSV = "observation_date,FRBATLWGT3MMAUMHWGO\n" +
		"2018-12-01,3.7\n" +
		"2019-01-01,3.8\n" +
		"2019-02-01,4.36\n"
)

// FREDServer is a fake fredgraph.csv endpoint keyed by the id query parameter
type FREDServer struct {
	*httptest.Server

	mu       sync.Mutex
	bodies   map[string]string
	statuses map[string]int
	hits     map[string]int
}

// NewFREDServer starts a fake FRED server that is closed when the test ends
func NewFREDServer(t *testing.T) *FREDServer {
	t.Helper()
	s := &FREDServer{
		bodies:   make(map[string]string),
		statuses: make(map[string]int),
		hits:     make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *FREDServer) handle(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")

	s.mu.Lock()
	s.hits[id]++
	body, ok := s.bodies[id]
	status := s.statuses[id]
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, "upstream unavailable", status)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	_, _ = w.Write([]byte(body))
}

// Serve makes id return body
func (s *FREDServer) Serve(id, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[id] = body
	delete(s.statuses, id)
}

// Fail makes id return status
func (s *FREDServer) Fail(id string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = status
}

// SeriesURL returns the graph URL of id on this server
func (s *FREDServer) SeriesURL(id string) string {
	return s.URL + "/graph/fredgraph.csv?id=" + id
}

// Hits returns how many requests id received
func (s *FREDServer) Hits(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[id]
}
