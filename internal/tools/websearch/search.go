// Package websearch provides the web_search tool backed by the Serper
// Google search API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/internal/cache"
	"github.com/haasonsaas/toolchat/pkg/models"
)

const (
	ToolName = "web_search"

	// DefaultEndpoint is the Serper search endpoint.
	DefaultEndpoint = "https://google.serper.dev/search"

	// Source tags every response produced by this tool.
	Source = "google_serper"

	defaultOrganic  = 5
	maxOrganic      = 10
	relatedLimit    = 2
	maxCacheSize    = 1000
	maxResponseBody = 2 << 20
)

// Result types.
const (
	TypeKnowledgeGraph  = "knowledge_graph"
	TypeOrganic         = "organic"
	TypeRelatedQuestion = "related_question"
)

// Config holds the Serper credentials and request defaults.
type Config struct {
	APIKey   string        `yaml:"api_key"`
	Endpoint string        `yaml:"endpoint"`
	Country  string        `yaml:"country"`
	Language string        `yaml:"language"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Input is the argument shape of web_search.
type Input struct {
	Query string `json:"query" jsonschema:"minLength=1,description=The search query"`
	Num   int    `json:"num,omitempty" jsonschema:"minimum=1,maximum=10,description=Number of organic results (default 5)"`
}

// SearchResult is one entry in a response.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Type    string `json:"type"`
}

// SearchResponse is the data payload of a successful search.
type SearchResponse struct {
	Query        string         `json:"query"`
	ResultsCount int            `json:"resultsCount"`
	Results      []SearchResult `json:"results"`
	Source       string         `json:"source"`
}

type serperRequest struct {
	Q  string `json:"q"`
	GL string `json:"gl,omitempty"`
	HL string `json:"hl,omitempty"`
}

type serperResponse struct {
	KnowledgeGraph *struct {
		Title       string `json:"title"`
		Website     string `json:"website"`
		Description string `json:"description"`
	} `json:"knowledgeGraph"`
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
	PeopleAlsoAsk []struct {
		Question string `json:"question"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
	} `json:"peopleAlsoAsk"`
}

// Searcher runs Serper queries and caches the normalized responses.
type Searcher struct {
	config     Config
	httpClient *http.Client
	cache      *cache.TTL[*SearchResponse]
}

// NewSearcher applies defaults to config. client may be nil.
func NewSearcher(config Config, client *http.Client) *Searcher {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Country == "" {
		config.Country = "il"
	}
	if config.Language == "" {
		config.Language = "he"
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &Searcher{
		config:     config,
		httpClient: client,
		cache:      cache.New[*SearchResponse](cache.Options{TTL: config.CacheTTL, MaxSize: maxCacheSize}),
	}
}

// New returns the web_search tool. It does not require authentication.
func New(s *Searcher) *agent.TypedTool[Input] {
	return agent.NewTypedTool[Input](ToolName, "Search the internet using Google (via Serper API)", false, s.execute)
}

// Cache exposes the response cache so maintenance can sweep it.
func (s *Searcher) Cache() *cache.TTL[*SearchResponse] { return s.cache }

func (s *Searcher) execute(ctx context.Context, _ *agent.ExecutionContext, in Input) (models.ToolResult, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return models.ToolFailure("query is required"), nil
	}
	if s.config.APIKey == "" {
		return models.ToolFailure("Missing Serper API key"), nil
	}
	resp, err := s.Search(ctx, query, in.Num)
	if err != nil {
		return models.ToolFailure(err.Error()), nil
	}
	return models.ToolSuccess(resp), nil
}

// Search returns up to num organic results plus the knowledge graph and
// related questions. Responses are cached per query and num.
func (s *Searcher) Search(ctx context.Context, query string, num int) (*SearchResponse, error) {
	if num <= 0 {
		num = defaultOrganic
	} else if num > maxOrganic {
		num = maxOrganic
	}

	key := fmt.Sprintf("%d:%s", num, strings.ToLower(query))
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	raw, err := s.fetch(ctx, query)
	if err != nil {
		return nil, err
	}
	resp := normalize(query, raw, num)
	s.cache.Set(key, resp)
	return resp, nil
}

func (s *Searcher) fetch(ctx context.Context, query string) (*serperResponse, error) {
	body, err := json.Marshal(serperRequest{Q: query, GL: s.config.Country, HL: s.config.Language})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Serper API error: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var out serperResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}

func normalize(query string, raw *serperResponse, num int) *SearchResponse {
	results := make([]SearchResult, 0, 1+num+relatedLimit)

	if kg := raw.KnowledgeGraph; kg != nil {
		title := kg.Title
		if title == "" {
			title = "Knowledge Graph"
		}
		results = append(results, SearchResult{
			Title:   title,
			URL:     kg.Website,
			Snippet: kg.Description,
			Type:    TypeKnowledgeGraph,
		})
	}
	for i, item := range raw.Organic {
		if i >= num {
			break
		}
		results = append(results, SearchResult{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
			Type:    TypeOrganic,
		})
	}
	for i, item := range raw.PeopleAlsoAsk {
		if i >= relatedLimit {
			break
		}
		results = append(results, SearchResult{
			Title:   item.Question,
			URL:     item.Link,
			Snippet: item.Snippet,
			Type:    TypeRelatedQuestion,
		})
	}

	return &SearchResponse{
		Query:        query,
		ResultsCount: len(results),
		Results:      results,
		Source:       Source,
	}
}
