package builtin

import (
	"context"
	"testing"
)

type stubSearcher struct {
	lastQuery string
	lastMax   int
	results   []SearchResult
	err       error
}

func (s *stubSearcher) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	s.lastQuery = query
	s.lastMax = maxResults
	return s.results, s.err
}

func TestWebSearchPassesQuery(t *testing.T) {
	searcher := &stubSearcher{
		results: []SearchResult{{Title: "Weather Paris", Content: "15°C cloudy"}},
	}
	tool := NewWebSearchTool(searcher)

	result, err := tool.Execute(context.Background(), map[string]any{
		"query":       "weather in Paris",
		"max_results": 3,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if searcher.lastQuery != "weather in Paris" || searcher.lastMax != 3 {
		t.Errorf("searcher called with (%q, %d)", searcher.lastQuery, searcher.lastMax)
	}
	results := result.([]SearchResult)
	if len(results) != 1 || results[0].Title != "Weather Paris" {
		t.Errorf("results = %+v", results)
	}
}

func TestWebSearchClampsMaxResults(t *testing.T) {
	searcher := &stubSearcher{}
	tool := NewWebSearchTool(searcher)

	if _, err := tool.Execute(context.Background(), map[string]any{
		"query":       "anything",
		"max_results": 100,
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if searcher.lastMax != 20 {
		t.Errorf("max_results = %d, want clamped to 20", searcher.lastMax)
	}
}

func TestWebSearchRejectsEmptyQuery(t *testing.T) {
	tool := NewWebSearchTool(&stubSearcher{})
	if _, err := tool.Execute(context.Background(), map[string]any{"query": ""}); err == nil {
		t.Error("empty query must be rejected")
	}
}
