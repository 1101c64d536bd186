package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/user/leadscope/pkg/config"
)

const defaultSerpAPIEndpoint = "https://serpapi.com/search.json"

// SerpAPI queries serpapi.com: the google engine for web results and the
// google_maps engine for places.
type SerpAPI struct {
	APIKey     string
	Endpoint   string
	Results    int
	HTTPClient *http.Client
}

func NewSerpAPI(apiKey, endpoint string, results int) *SerpAPI {
	if endpoint == "" {
		endpoint = defaultSerpAPIEndpoint
	}
	if results <= 0 {
		results = 10
	}
	return &SerpAPI{
		APIKey:     apiKey,
		Endpoint:   endpoint,
		Results:    results,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewProvider builds the configured search provider.
func NewProvider(cfg config.SearchConfig) (SearchProvider, error) {
	switch cfg.Provider {
	case "", "serpapi":
		return NewSerpAPI(cfg.APIKey, cfg.Endpoint, cfg.Results), nil
	default:
		return nil, fmt.Errorf("unknown search provider: %s", cfg.Provider)
	}
}

type serpResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	} `json:"organic_results"`
	LocalResults []struct {
		Title   string `json:"title"`
		Website string `json:"website"`
		Address string `json:"address"`
	} `json:"local_results"`
}

func (s *SerpAPI) Web(ctx context.Context, query string) ([]SearchResult, error) {
	resp, err := s.search(ctx, url.Values{
		"engine": {"google"},
		"q":      {query},
		"num":    {strconv.Itoa(s.Results)},
	})
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(resp.OrganicResults))
	for _, r := range resp.OrganicResults {
		results = append(results, SearchResult{Title: r.Title, Link: r.Link})
	}
	return results, nil
}

func (s *SerpAPI) Places(ctx context.Context, query string) ([]SearchResult, error) {
	resp, err := s.search(ctx, url.Values{
		"engine": {"google_maps"},
		"type":   {"search"},
		"q":      {query},
	})
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(resp.LocalResults))
	for _, r := range resp.LocalResults {
		results = append(results, SearchResult{Title: r.Title, Link: r.Website, Address: r.Address})
	}
	return results, nil
}

func (s *SerpAPI) search(ctx context.Context, params url.Values) (*serpResponse, error) {
	if s.APIKey == "" {
		return nil, providerError("no API key configured")
	}
	params.Set("api_key", s.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, providerError("build request: %v", err)
	}
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	var out serpResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, providerError("serpapi returned %s", resp.Status)
		}
		return nil, providerError("decode response: %v", err)
	}
	if out.Error != "" {
		// an empty result page is reported as an error by the API
		if strings.Contains(out.Error, "hasn't returned any results") {
			return &serpResponse{}, nil
		}
		return nil, providerError("serpapi: %s", out.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, providerError("serpapi returned %s", resp.Status)
	}
	return &out, nil
}
