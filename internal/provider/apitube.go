package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"bitcoinnews/internal/domain/entity"
	"bitcoinnews/internal/resilience/circuitbreaker"
	"bitcoinnews/internal/resilience/retry"
)

// apiTubeArticle mirrors the subset of APITube's /news/everything response
// this service needs. Unlike NewsData, APITube reports a sentiment score,
// so normalization can skip Phase 0 entirely.
type apiTubeArticle struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Link        string `json:"href"`
	Description string `json:"description"`
	PublishedAt string `json:"published_at"`
	ImageURL    string `json:"image"`
	Source      struct {
		Domain string `json:"domain"`
	} `json:"source"`
	Sentiment struct {
		Overall struct {
			Score float64 `json:"score"`
		} `json:"overall"`
	} `json:"sentiment"`
}

type apiTubeResponse struct {
	Status  string           `json:"status"`
	Count   int              `json:"count"`
	Next    string           `json:"next_page"`
	Results []apiTubeArticle `json:"results"`
}

// APITubeConfig configures the APITube provider.
type APITubeConfig struct {
	APIKey    string
	BaseURL   string // defaults to https://api.apitube.io/v1 when empty
	Category  string
	Threshold float64 // sentiment magnitude below which the label is "neutral"
}

// APITubeProvider implements Provider against APITube's JSON REST API.
type APITubeProvider struct {
	cfg            APITubeConfig
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewAPITubeProvider constructs an APITubeProvider.
func NewAPITubeProvider(cfg APITubeConfig, client *http.Client) *APITubeProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.apitube.io/v1"
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.1
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &APITubeProvider{
		cfg:            cfg,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.ProviderFetchConfig()),
		retryConfig:    retry.ProviderFetchConfig(),
	}
}

func (p *APITubeProvider) Name() string { return "apitube" }

func (p *APITubeProvider) FetchPage(ctx context.Context, pageToken string) ([]RawArticle, string, error) {
	var page apiTubeResponse

	retryErr := retry.WithBackoff(ctx, p.retryConfig, func() error {
		cbResult, err := p.circuitBreaker.Execute(func() (interface{}, error) {
			return p.doFetch(ctx, pageToken)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("apitube circuit breaker open, request rejected",
					slog.String("state", p.circuitBreaker.State().String()))
			}
			return err
		}
		page = cbResult.(apiTubeResponse)
		return nil
	})
	if retryErr != nil {
		return nil, "", retryErr
	}

	raws := make([]RawArticle, 0, len(page.Results))
	for _, a := range page.Results {
		raws = append(raws, a)
	}
	return raws, page.Next, nil
}

func (p *APITubeProvider) doFetch(ctx context.Context, pageToken string) (apiTubeResponse, error) {
	q := url.Values{}
	q.Set("api_key", p.cfg.APIKey)
	if p.cfg.Category != "" {
		q.Set("category.id", p.cfg.Category)
	}
	if pageToken != "" {
		q.Set("page", pageToken)
	}

	reqURL := p.cfg.BaseURL + "/news/everything?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return apiTubeResponse{}, fmt.Errorf("build apitube request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return apiTubeResponse{}, fmt.Errorf("apitube request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return apiTubeResponse{}, fmt.Errorf("read apitube response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return apiTubeResponse{}, &retry.HTTPError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var page apiTubeResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return apiTubeResponse{}, fmt.Errorf("decode apitube response: %w", err)
	}
	if page.Status != "ok" {
		return apiTubeResponse{}, fmt.Errorf("apitube returned status %q", page.Status)
	}
	return page, nil
}

func (p *APITubeProvider) Normalize(raw RawArticle) (*entity.CanonicalArticle, error) {
	a, ok := raw.(apiTubeArticle)
	if !ok {
		return nil, fmt.Errorf("apitube normalize: unexpected raw type %T", raw)
	}

	pubDate := time.Now().UTC()
	if a.PublishedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			pubDate = parsed
		}
	}

	now := time.Now().UTC()
	return &entity.CanonicalArticle{
		ID:             a.ID,
		Title:          a.Title,
		Description:    a.Description,
		Link:           a.Link,
		PubDate:        pubDate,
		Source:         a.Source.Domain,
		ImageURL:       a.ImageURL,
		Sentiment:      p.classify(a.Sentiment.Overall.Score),
		NeedsSentiment: false,
		NeedsSummary:   true,
		QueuedAt:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// classify maps APITube's continuous sentiment score onto the three-way
// label, treating anything within Threshold of zero as neutral.
func (p *APITubeProvider) classify(score float64) entity.Sentiment {
	if math.Abs(score) < p.cfg.Threshold {
		return entity.SentimentNeutral
	}
	if score > 0 {
		return entity.SentimentPositive
	}
	return entity.SentimentNegative
}

func (p *APITubeProvider) ID(raw RawArticle) string {
	a, ok := raw.(apiTubeArticle)
	if !ok {
		return ""
	}
	return a.ID
}

var _ Provider = (*APITubeProvider)(nil)
