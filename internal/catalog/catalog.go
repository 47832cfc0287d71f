// Package catalog queries the remote problem catalog.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/verte-zerg/leetgulag/internal/model"
)

// DefaultEndpoint is the public GraphQL endpoint of the practice site.
const DefaultEndpoint = model.PracticeSiteURL + "/graphql"

// ErrTransport marks failures reaching or decoding the catalog.
var ErrTransport = errors.New("catalog transport failure")

const questionListQuery = `query problemsetQuestionList($categorySlug: String, $limit: Int, $skip: Int, $filters: QuestionListFilterInput) {
  problemsetQuestionList: questionList(categorySlug: $categorySlug, limit: $limit, skip: $skip, filters: $filters) {
    questions: data {
      acRate
      difficulty
      frontendQuestionId: questionFrontendId
      paidOnly: isPaidOnly
      title
      titleSlug
    }
  }
}`

// Question is one catalog entry.
type Question struct {
	Title      string  `json:"title"`
	TitleSlug  string  `json:"titleSlug"`
	Difficulty string  `json:"difficulty"`
	PaidOnly   bool    `json:"paidOnly"`
	AcRate     float64 `json:"acRate"`
	FrontendID string  `json:"frontendQuestionId"`
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data struct {
		ProblemsetQuestionList struct {
			Questions []Question `json:"questions"`
		} `json:"problemsetQuestionList"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Client queries the catalog endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithRate limits outbound queries to rps with a burst of one.
func WithRate(rps float64) Option {
	return func(cl *Client) { cl.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// New returns a Client for endpoint.
func New(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Questions returns the catalog filtered by difficulty and an optional list id.
func (c *Client) Questions(ctx context.Context, difficulty model.Difficulty, listID string) ([]Question, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	filters := map[string]any{}
	if f := difficulty.CatalogFilter(); f != "" {
		filters["difficulty"] = f
	}
	if listID != "" {
		filters["listId"] = listID
	}
	body, err := json.Marshal(graphqlRequest{
		Query: questionListQuery,
		Variables: map[string]any{
			"categorySlug": "",
			"limit":        -1,
			"skip":         0,
			"filters":      filters,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrTransport, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected catalog status: %s", ErrTransport, resp.Status)
	}
	var payload graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode catalog response: %v", ErrTransport, err)
	}
	if len(payload.Errors) > 0 {
		return nil, fmt.Errorf("%w: catalog error: %s", ErrTransport, payload.Errors[0].Message)
	}
	return payload.Data.ProblemsetQuestionList.Questions, nil
}
