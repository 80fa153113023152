package config

import (
	"fmt"
	"os"

	"bitcoinnews/internal/infra/adapter/cache/rediskv"
	"bitcoinnews/internal/infra/inference"
	"bitcoinnews/internal/provider"
)

// LoadProviderConfig loads the NewsData/APITube provider configuration from
// the environment. Unlike AIConfig's fail-open tunables, this is fail-closed
// (spec §9): NEWS_PROVIDER and its matching API key gate the Producer's
// only article source, so a missing or unrecognized value must stop the
// process rather than run with no provider at all. provider.Factory
// performs the final validation; this loader only assembles the Config it
// needs from the environment.
func LoadProviderConfig() (provider.Config, error) {
	active := os.Getenv("NEWS_PROVIDER")
	if active == "" {
		return provider.Config{}, fmt.Errorf("NEWS_PROVIDER must be set (\"newsdata\" or \"apitube\")")
	}

	threshold := getEnvFloat("APITUBE_SENTIMENT_THRESHOLD", 0.1)

	return provider.Config{
		Active: active,
		NewsData: provider.NewsDataConfig{
			APIKey:  os.Getenv("NEWSDATA_API_KEY"),
			BaseURL: getEnvOrDefault("NEWSDATA_BASE_URL", ""),
			Query:   getEnvOrDefault("NEWSDATA_QUERY", "bitcoin"),
		},
		APITube: provider.APITubeConfig{
			APIKey:    os.Getenv("APITUBE_API_KEY"),
			BaseURL:   getEnvOrDefault("APITUBE_BASE_URL", ""),
			Category:  getEnvOrDefault("APITUBE_CATEGORY", "cryptocurrency"),
			Threshold: threshold,
		},
	}, nil
}

// LoadInferenceConfig loads the Claude/OpenAI summarizer configuration.
// Fail-closed for the same reason as LoadProviderConfig: inference.NewRunner
// cannot produce a Runner at all without a key for the selected backend.
func LoadInferenceConfig() (inference.Config, error) {
	provider := os.Getenv("SUMMARIZER_PROVIDER")
	if provider == "" {
		return inference.Config{}, fmt.Errorf("SUMMARIZER_PROVIDER must be set (\"anthropic\" or \"openai\")")
	}

	return inference.Config{
		Provider:        provider,
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  getEnvOrDefault("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
	}, nil
}

// LoadRedisConfig loads the ARTICLE_KV connection settings. Fail-open: an
// unset REDIS_ADDR falls back to the conventional local default rather than
// refusing to start, since the cache is a performance optimization (spec
// §4.4) and every cache miss already falls through to ARTICLE_DB.
func LoadRedisConfig() rediskv.Config {
	return rediskv.Config{
		Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}
