package tools

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

	"github.com/soyeahso/vyrtuous/internal/version"
)

// DefaultSearchEndpoint is the Brave web search API.
const DefaultSearchEndpoint = "https://api.search.brave.com/res/v1/web/search"

// SearchConfig configures the search_web tool.
type SearchConfig struct {
	APIKey   string
	Endpoint string
	Count    int
	Client   *http.Client
}

// SearchInput is the argument shape of search_web.
type SearchInput struct {
	Query   string `json:"query"`
	Count   int    `json:"count,omitempty"`
	Country string `json:"country,omitempty"`
}

type braveResponse struct {
	Query struct {
		Original string `json:"original"`
	} `json:"query"`
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Age         string `json:"age,omitempty"`
		} `json:"results"`
	} `json:"web"`
}

const searchSchema = `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Search query"},
    "count": {"type": "integer", "description": "Number of results (1-20)"},
    "country": {"type": "string", "description": "Country code, default us"}
  },
  "required": ["query"]
}`

// SearchWeb queries Brave Search and formats the top results.
func SearchWeb(cfg SearchConfig) Handler {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSearchEndpoint
	}
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}

	return New("search_web", "Searches the web and returns titles, URLs and snippets.", searchSchema,
		func(ctx context.Context, in SearchInput) (any, error) {
			if strings.TrimSpace(in.Query) == "" {
				return Failed("query is required"), nil
			}
			if cfg.APIKey == "" {
				return Failed("search is not configured"), nil
			}
			count := cfg.Count
			if in.Count >= 1 && in.Count <= 20 {
				count = in.Count
			}
			country := in.Country
			if country == "" {
				country = "us"
			}

			params := url.Values{}
			params.Set("q", in.Query)
			params.Set("count", strconv.Itoa(count))
			params.Set("country", country)

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Endpoint+"?"+params.Encode(), nil)
			if err != nil {
				return nil, fmt.Errorf("creating request: %w", err)
			}
			req.Header.Set("Accept", "application/json")
			req.Header.Set("User-Agent", version.UserAgent())
			req.Header.Set("X-Subscription-Token", cfg.APIKey)

			resp, err := cfg.Client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("search request: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("reading response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return Failed(fmt.Sprintf("search API error (status %d): %s", resp.StatusCode, string(body))), nil
			}

			var parsed braveResponse
			if err := json.Unmarshal(body, &parsed); err != nil {
				return nil, fmt.Errorf("parsing response: %w", err)
			}
			return Succeeded(formatSearchResults(parsed)), nil
		})
}

func formatSearchResults(resp braveResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Web search results for: %s\n\n", resp.Query.Original)
	if len(resp.Web.Results) == 0 {
		sb.WriteString("No web results found.\n")
		return sb.String()
	}
	for i, r := range resp.Web.Results {
		fmt.Fprintf(&sb, "%d. %s\n   URL: %s\n", i+1, r.Title, r.URL)
		if r.Age != "" {
			fmt.Fprintf(&sb, "   Age: %s\n", r.Age)
		}
		fmt.Fprintf(&sb, "   %s\n\n", r.Description)
	}
	return sb.String()
}
