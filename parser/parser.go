package parser

import (
	"context"
	"net/http"
	"time"

	"dealtrack/config"
	"dealtrack/extraction"
	"dealtrack/models"
)

// Result is the outcome of one parse attempt. Price is nil when no price
// could be extracted; Status uses the exported status vocabulary or "" when
// unknown. Trace carries the extraction diagnostics for scraper-backed
// sources.
type Result struct {
	Price        *float64                `json:"price"`
	Currency     string                  `json:"currency"`
	Status       string                  `json:"status"`
	ShippingInfo string                  `json:"shipping_info"`
	Trace        []extraction.TraceEntry `json:"trace,omitempty"`
}

// Parser is the contract every upstream variant implements. Variants never
// panic past this boundary; every failure mode comes back as a typed error
// alongside whatever partial result is useful for diagnostics.
type Parser interface {
	Parse(ctx context.Context, source *models.TrackedSource) (*Result, error)
}

// Deps bundles the collaborators injected into parser variants.
type Deps struct {
	Client  *http.Client
	Pacer   Pacer
	Amazon  *config.AmazonConfig
	Fetcher *Fetcher
}

// New selects the variant for a tracked source's configured kind. Dispatch
// is closed: an unknown kind is a configuration error, not a lookup.
func New(kind string, scraper *models.Scraper, deps Deps) (Parser, error) {
	client := deps.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	switch kind {
	case models.ParserKindAmazon:
		return &AmazonParser{
			cfg:    deps.Amazon,
			client: client,
			pacer:  deps.Pacer,
		}, nil
	case models.ParserKindShopify:
		return &ShopifyParser{
			client: client,
		}, nil
	case models.ParserKindScraper:
		return &PageScraper{
			scraper: scraper,
			fetcher: deps.Fetcher,
		}, nil
	default:
		return nil, &ConfigurationError{Msg: "unknown parser kind " + kind}
	}
}
