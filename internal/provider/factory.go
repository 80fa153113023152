package provider

import (
	"fmt"
	"net/http"
)

// Config is the union of every provider's settings, loaded once at process
// start and narrowed by Factory to whichever provider NEWS_PROVIDER names.
type Config struct {
	Active  string // "newsdata" | "apitube"
	NewsData NewsDataConfig
	APITube  APITubeConfig
}

// Factory selects and constructs the configured Provider. It fails closed:
// an unset or unrecognized NEWS_PROVIDER value is a startup error, since
// the Producer has no article source without one.
func Factory(cfg Config, client *http.Client) (Provider, error) {
	switch cfg.Active {
	case "newsdata":
		if cfg.NewsData.APIKey == "" {
			return nil, fmt.Errorf("%w: NEWSDATA_API_KEY is required for provider %q", ErrUnknownProvider, cfg.Active)
		}
		return NewNewsDataProvider(cfg.NewsData, client), nil
	case "apitube":
		if cfg.APITube.APIKey == "" {
			return nil, fmt.Errorf("%w: APITUBE_API_KEY is required for provider %q", ErrUnknownProvider, cfg.Active)
		}
		return NewAPITubeProvider(cfg.APITube, client), nil
	default:
		return nil, fmt.Errorf("%w: %q (expected \"newsdata\" or \"apitube\")", ErrUnknownProvider, cfg.Active)
	}
}
