package semanticscholar

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

	"github.com/deepscience/research-graph-service/internal/domain"
	"github.com/deepscience/research-graph-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit for unauthenticated requests (100 req/5 min).
	// With an API key, this can be increased.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum number of results per search.
	DefaultMaxResults = 100

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// paperFields is the list of fields to request from the API.
	paperFields = "paperId,externalIds,title,abstract,year,publicationDate,authors,fieldsOfStudy,citationCount"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL is the base URL for the API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the optional API key for authenticated requests.
	// Authenticated requests have higher rate limits.
	APIKey string

	// Timeout is the HTTP request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit if zero.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// MaxResults is the maximum number of results to return per search.
	// Defaults to DefaultMaxResults if zero.
	MaxResults int

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

// Client implements the papersources.PaperSource interface for Semantic Scholar.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
}

// Compile-time checks for the interfaces this client satisfies.
var (
	_ papersources.PaperSource      = (*Client)(nil)
	_ papersources.AbstractProvider = (*Client)(nil)
)

// NewClient creates a new Semantic Scholar client with the given configuration.
// If httpClient is nil, a new one will be created with the configuration settings.
func NewClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	// Apply defaults
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = DefaultMaxResults
	}

	// Create HTTP client if not provided
	if httpClient == nil {
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			BurstSize:    cfg.BurstSize,
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
	}
}

// Search queries Semantic Scholar for papers matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	start := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	papers := c.convertToPapers(searchResp.Data)

	// The API only filters by year, so narrow exact date bounds client-side.
	if params.DateFrom != nil || params.DateTo != nil {
		papers = filterByYear(papers, params.DateFrom, params.DateTo)
	}

	hasMore := searchResp.Next > 0

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   searchResp.Total,
		HasMore:        hasMore,
		NextOffset:     searchResp.Next,
		Source:         domain.SourceTypeSemanticScholar,
		SearchDuration: time.Since(start),
	}, nil
}

// GetByID retrieves a specific paper by its Semantic Scholar ID or other identifier.
// Canonical IDs produced by this service ("s2:" and "doi:" prefixes) are accepted
// alongside raw Semantic Scholar IDs and DOIs.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.Paper, error) {
	result, err := c.fetchPaper(ctx, id)
	if err != nil {
		return nil, err
	}

	paper := c.convertToPaper(*result)
	if paper == nil {
		return nil, domain.NewNotFoundError("paper", id)
	}
	return paper, nil
}

// FetchAbstract retrieves the abstract for a paper identified by a canonical ID
// or, failing that, by a title lookup. An empty string with a nil error means
// the paper was found but has no abstract on record.
func (c *Client) FetchAbstract(ctx context.Context, titleOrID string) (string, error) {
	if titleOrID == "" {
		return "", domain.NewValidationError("titleOrID", "must not be empty")
	}

	if looksLikeIdentifier(titleOrID) {
		result, err := c.fetchPaper(ctx, titleOrID)
		if err != nil {
			return "", err
		}
		return result.Abstract, nil
	}

	// Title lookup: a single-result search against the exact title.
	result, err := c.Search(ctx, papersources.SearchParams{
		Query:      titleOrID,
		MaxResults: 1,
	})
	if err != nil {
		return "", err
	}
	if len(result.Papers) == 0 {
		return "", domain.NewNotFoundError("paper", titleOrID)
	}
	return result.Papers[0].Abstract, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// fetchPaper retrieves a single paper record by identifier.
func (c *Client) fetchPaper(ctx context.Context, id string) (*PaperResult, error) {
	paperURL := fmt.Sprintf("%s/paper/%s?fields=%s", c.config.BaseURL, url.PathEscape(apiPaperID(id)), paperFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, paperURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewNotFoundError("paper", id)
	}

	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var result PaperResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &result, nil
}

// buildSearchURL constructs the search API URL with query parameters.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	searchURL := baseURL.JoinPath("paper", "search")

	q := searchURL.Query()

	// The API has no affiliation filter, so fold the institution into the
	// query text where the relevance ranking can use it.
	queryText := params.Query
	if params.Institution != "" {
		queryText = queryText + " " + params.Institution
	}
	q.Set("query", strings.TrimSpace(queryText))
	q.Set("fields", paperFields)

	limit := params.MaxResults
	if limit <= 0 || limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}
	q.Set("limit", strconv.Itoa(limit))

	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}

	// Year range filtering (Semantic Scholar uses year-based filtering)
	if params.DateFrom != nil {
		q.Set("year", fmt.Sprintf("%d-", params.DateFrom.Year()))
	}
	if params.DateTo != nil {
		existingYear := q.Get("year")
		if existingYear != "" {
			q.Set("year", fmt.Sprintf("%s%d", existingYear, params.DateTo.Year()))
		} else {
			q.Set("year", fmt.Sprintf("-%d", params.DateTo.Year()))
		}
	}

	searchURL.RawQuery = q.Encode()
	return searchURL.String(), nil
}

// handleErrorResponse checks for API errors and returns appropriate error types.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Read the error body (limit to 1MB to prevent resource exhaustion)
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, "failed to read error response", err)
	}

	// Try to parse as JSON error
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		message := errResp.Error
		if message == "" {
			message = errResp.Message
		}
		if message == "" {
			message = string(body)
		}
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, message, nil)
	}

	// Return raw body as error message
	return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
}

// convertToPapers converts a slice of API paper results to domain papers.
// Untitled results are dropped because they cannot be fingerprinted.
func (c *Client) convertToPapers(results []PaperResult) []*domain.Paper {
	papers := make([]*domain.Paper, 0, len(results))
	for _, result := range results {
		if paper := c.convertToPaper(result); paper != nil {
			papers = append(papers, paper)
		}
	}
	return papers
}

// convertToPaper converts a single API paper result to a domain paper.
func (c *Client) convertToPaper(result PaperResult) *domain.Paper {
	if result.Title == "" {
		return nil
	}

	ids := domain.PaperIdentifiers{
		SemanticScholarID: result.PaperID,
	}
	if result.ExternalIDs != nil {
		ids.DOI = result.ExternalIDs.DOI
	}

	authors := make([]domain.Author, 0, len(result.Authors))
	for _, a := range result.Authors {
		if a.Name == "" {
			continue
		}
		author := domain.Author{Name: a.Name}
		for _, affiliation := range a.Affiliations {
			if affiliation != "" {
				author.Institutions = append(author.Institutions, affiliation)
			}
		}
		authors = append(authors, author)
	}

	var topics []string
	for _, field := range result.FieldsOfStudy {
		if field != "" {
			topics = append(topics, field)
		}
	}

	return &domain.Paper{
		ID:        domain.FingerprintPaper(ids, result.Title, result.Year),
		Title:     result.Title,
		Year:      result.Year,
		Abstract:  result.Abstract,
		Authors:   authors,
		Topics:    topics,
		Citations: result.CitationCount,
	}
}

// apiPaperID translates canonical service identifiers into the forms the
// Semantic Scholar API accepts in the /paper/{id} path.
func apiPaperID(id string) string {
	switch {
	case strings.HasPrefix(id, "s2:"):
		return strings.TrimPrefix(id, "s2:")
	case strings.HasPrefix(id, "doi:"):
		return "DOI:" + strings.TrimPrefix(id, "doi:")
	case strings.HasPrefix(id, "10."):
		return "DOI:" + id
	default:
		return id
	}
}

// looksLikeIdentifier reports whether the input is a paper identifier rather
// than a title. Identifiers are canonical service IDs, DOIs, or the 40-char
// hex hashes Semantic Scholar assigns.
func looksLikeIdentifier(s string) bool {
	if strings.HasPrefix(s, "s2:") || strings.HasPrefix(s, "doi:") || strings.HasPrefix(s, "10.") {
		return true
	}
	if len(s) != 40 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// filterByYear filters papers by publication year bounds.
// This is needed because Semantic Scholar only supports year-based filtering via the API.
func filterByYear(papers []*domain.Paper, dateFrom, dateTo *time.Time) []*domain.Paper {
	if dateFrom == nil && dateTo == nil {
		return papers
	}

	filtered := make([]*domain.Paper, 0, len(papers))
	for _, paper := range papers {
		// No year information, include the paper
		if paper.Year == 0 {
			filtered = append(filtered, paper)
			continue
		}

		if dateFrom != nil && paper.Year < dateFrom.Year() {
			continue
		}
		if dateTo != nil && paper.Year > dateTo.Year() {
			continue
		}

		filtered = append(filtered, paper)
	}

	return filtered
}

// BuildSearchQuery is a helper to construct boolean search queries.
// Semantic Scholar supports standard boolean operators: AND, OR, NOT.
func BuildSearchQuery(terms []string, operator string) string {
	if len(terms) == 0 {
		return ""
	}
	if len(terms) == 1 {
		return terms[0]
	}

	op := strings.ToUpper(operator)
	if op != "AND" && op != "OR" {
		op = "AND"
	}

	return strings.Join(terms, " "+op+" ")
}
