package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/attunelabs/attune/internal/tools"
)

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Searcher performs the actual web query. Tests substitute a stub.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// SearchConfig configures the HTTP search backend.
type SearchConfig struct {
	// SearXNGURL points at a SearXNG instance. When empty, the DuckDuckGo
	// instant-answer API is used instead.
	SearXNGURL string `yaml:"searxng_url"`

	// Timeout bounds one search request.
	Timeout time.Duration `yaml:"timeout"`
}

// HTTPSearcher queries SearXNG when configured, falling back to the
// DuckDuckGo instant-answer API.
type HTTPSearcher struct {
	config SearchConfig
	client *http.Client
}

// NewHTTPSearcher creates a searcher with the given configuration.
func NewHTTPSearcher(config SearchConfig) *HTTPSearcher {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &HTTPSearcher{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Search runs one query and returns up to maxResults hits.
func (s *HTTPSearcher) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if s.config.SearXNGURL != "" {
		results, err := s.searchSearXNG(ctx, query, maxResults)
		if err == nil {
			return results, nil
		}
		// Fall through to DuckDuckGo on backend failure.
	}
	return s.searchDuckDuckGo(ctx, query, maxResults)
}

func (s *HTTPSearcher) searchSearXNG(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	base, err := url.Parse(s.config.SearXNGURL)
	if err != nil {
		return nil, fmt.Errorf("invalid SearXNG URL: %w", err)
	}
	base.Path = "/search"
	values := url.Values{}
	values.Set("q", query)
	values.Set("format", "json")
	values.Set("categories", "general")
	base.RawQuery = values.Encode()

	body, err := s.get(ctx, base.String(), nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse SearXNG response: %w", err)
	}

	results := make([]SearchResult, 0, maxResults)
	for _, r := range parsed.Results {
		if len(results) >= maxResults {
			break
		}
		results = append(results, SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}

func (s *HTTPSearcher) searchDuckDuckGo(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	endpoint := fmt.Sprintf("https://api.duckduckgo.com/?q=%s&format=json&no_html=1", url.QueryEscape(query))
	body, err := s.get(ctx, endpoint, map[string]string{
		"User-Agent": "Mozilla/5.0 (compatible; AttuneBot/1.0)",
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Heading       string `json:"Heading"`
		AbstractText  string `json:"AbstractText"`
		AbstractURL   string `json:"AbstractURL"`
		RelatedTopics []struct {
			FirstURL string `json:"FirstURL"`
			Text     string `json:"Text"`
		} `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse DuckDuckGo response: %w", err)
	}

	results := make([]SearchResult, 0, maxResults)
	if parsed.AbstractText != "" && parsed.AbstractURL != "" {
		results = append(results, SearchResult{
			Title:   parsed.Heading,
			URL:     parsed.AbstractURL,
			Content: parsed.AbstractText,
		})
	}
	for _, topic := range parsed.RelatedTopics {
		if len(results) >= maxResults {
			break
		}
		if topic.FirstURL == "" || topic.Text == "" {
			continue
		}
		title := topic.Text
		if len(title) > 100 {
			title = title[:100]
		}
		results = append(results, SearchResult{
			Title:   title,
			URL:     topic.FirstURL,
			Content: topic.Text,
		})
	}
	return results, nil
}

func (s *HTTPSearcher) get(ctx context.Context, endpoint string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search backend returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// WebSearchTool exposes web search to the agent.
type WebSearchTool struct {
	searcher Searcher
}

// NewWebSearchTool creates the tool around a searcher.
func NewWebSearchTool(searcher Searcher) *WebSearchTool {
	return &WebSearchTool{searcher: searcher}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for current information such as weather, news, and facts. Returns a ranked list of results with titles and content snippets."
}

func (t *WebSearchTool) Schema() tools.Schema {
	return tools.Schema{
		"query": {
			Type:        tools.TypeString,
			Required:    true,
			Description: "The search query",
		},
		"max_results": {
			Type:        tools.TypeInteger,
			Description: "Maximum number of results to return",
			Default:     5,
		},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	query := stringArg(args, "query")
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	maxResults := intArg(args, "max_results", 5)
	if maxResults < 1 {
		maxResults = 1
	} else if maxResults > 20 {
		maxResults = 20
	}

	results, err := t.searcher.Search(ctx, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return results, nil
}
