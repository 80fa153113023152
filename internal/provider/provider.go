// Package provider implements the Provider Adapter pattern (spec §4.1): a
// polymorphic source of raw news articles, each variant responsible for
// paginated fetching and for normalizing its wire format into a
// entity.CanonicalArticle.
package provider

import (
	"context"
	"errors"

	"bitcoinnews/internal/domain/entity"
)

// ErrUnknownProvider is returned by Factory when NEWS_PROVIDER names a
// provider this build does not know how to construct.
var ErrUnknownProvider = errors.New("unknown news provider")

// RawArticle is the provider-specific, not-yet-normalized payload returned
// by FetchPage. Concrete providers type-assert it back to their own wire
// struct inside Normalize/ID.
type RawArticle any

// Provider is implemented once per upstream news API.
type Provider interface {
	// Name identifies the provider for logging/metrics.
	Name() string

	// FetchPage retrieves one page of raw articles starting at pageToken
	// (empty string for the first page). It returns the page's articles,
	// an opaque token for the next page (empty string when there is no
	// next page), and any transport error.
	FetchPage(ctx context.Context, pageToken string) (articles []RawArticle, nextToken string, err error)

	// Normalize converts one raw article into the canonical shape. It
	// never makes network calls.
	Normalize(raw RawArticle) (*entity.CanonicalArticle, error)

	// ID extracts the provider-native identifier from a raw article,
	// used for ingestion-time dedup before normalization.
	ID(raw RawArticle) string
}
