package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"bitcoinnews/internal/domain/entity"
	"bitcoinnews/internal/resilience/circuitbreaker"
	"bitcoinnews/internal/resilience/retry"
)

// newsDataArticle mirrors the subset of NewsData.io's /news response this
// service needs. NewsData does not report sentiment, so normalization
// always leaves NeedsSentiment true.
type newsDataArticle struct {
	ArticleID   string `json:"article_id"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	PubDate     string `json:"pubDate"`
	SourceName  string `json:"source_name"`
	ImageURL    string `json:"image_url"`
}

type newsDataResponse struct {
	Status       string            `json:"status"`
	TotalResults int               `json:"totalResults"`
	Results      []newsDataArticle `json:"results"`
	NextPage     string            `json:"nextPage"`
}

// NewsDataConfig configures the NewsData provider.
type NewsDataConfig struct {
	APIKey  string
	BaseURL string // defaults to https://newsdata.io/api/1 when empty
	Query   string // search query, e.g. "bitcoin"
}

// NewsDataProvider implements Provider against NewsData.io's JSON REST API.
type NewsDataProvider struct {
	cfg            NewsDataConfig
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewNewsDataProvider constructs a NewsDataProvider with the base service's
// resilience wrapping (circuit breaker + retry) around every page fetch.
func NewNewsDataProvider(cfg NewsDataConfig, client *http.Client) *NewsDataProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://newsdata.io/api/1"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &NewsDataProvider{
		cfg:            cfg,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.ProviderFetchConfig()),
		retryConfig:    retry.ProviderFetchConfig(),
	}
}

func (p *NewsDataProvider) Name() string { return "newsdata" }

func (p *NewsDataProvider) FetchPage(ctx context.Context, pageToken string) ([]RawArticle, string, error) {
	var page newsDataResponse

	retryErr := retry.WithBackoff(ctx, p.retryConfig, func() error {
		cbResult, err := p.circuitBreaker.Execute(func() (interface{}, error) {
			return p.doFetch(ctx, pageToken)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("newsdata circuit breaker open, request rejected",
					slog.String("state", p.circuitBreaker.State().String()))
			}
			return err
		}
		page = cbResult.(newsDataResponse)
		return nil
	})
	if retryErr != nil {
		return nil, "", retryErr
	}

	raws := make([]RawArticle, 0, len(page.Results))
	for _, a := range page.Results {
		raws = append(raws, a)
	}
	return raws, page.NextPage, nil
}

func (p *NewsDataProvider) doFetch(ctx context.Context, pageToken string) (newsDataResponse, error) {
	q := url.Values{}
	q.Set("apikey", p.cfg.APIKey)
	if p.cfg.Query != "" {
		q.Set("q", p.cfg.Query)
	}
	if pageToken != "" {
		q.Set("page", pageToken)
	}

	reqURL := p.cfg.BaseURL + "/news?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return newsDataResponse{}, fmt.Errorf("build newsdata request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return newsDataResponse{}, fmt.Errorf("newsdata request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return newsDataResponse{}, fmt.Errorf("read newsdata response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return newsDataResponse{}, &retry.HTTPError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var page newsDataResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return newsDataResponse{}, fmt.Errorf("decode newsdata response: %w", err)
	}
	if page.Status != "success" {
		return newsDataResponse{}, fmt.Errorf("newsdata returned status %q", page.Status)
	}
	return page, nil
}

func (p *NewsDataProvider) Normalize(raw RawArticle) (*entity.CanonicalArticle, error) {
	a, ok := raw.(newsDataArticle)
	if !ok {
		return nil, fmt.Errorf("newsdata normalize: unexpected raw type %T", raw)
	}

	pubDate := time.Now().UTC()
	if a.PubDate != "" {
		if parsed, err := time.Parse("2006-01-02 15:04:05", a.PubDate); err == nil {
			pubDate = parsed
		}
	}

	now := time.Now().UTC()
	return &entity.CanonicalArticle{
		ID:             a.ArticleID,
		Title:          a.Title,
		Description:    a.Description,
		Link:           a.Link,
		PubDate:        pubDate,
		Source:         a.SourceName,
		ImageURL:       a.ImageURL,
		Sentiment:      entity.SentimentUnknown,
		NeedsSentiment: true,
		NeedsSummary:   true,
		QueuedAt:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (p *NewsDataProvider) ID(raw RawArticle) string {
	a, ok := raw.(newsDataArticle)
	if !ok {
		return ""
	}
	return a.ArticleID
}

var _ Provider = (*NewsDataProvider)(nil)
