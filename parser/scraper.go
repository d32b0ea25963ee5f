package parser

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"dealtrack/extraction"
	"dealtrack/models"
)

// PageScraper runs the extraction pipeline over fetched page content using
// the owning scraper's active rules, with an optional structured-metadata
// fallback when rules leave the price null.
type PageScraper struct {
	scraper *models.Scraper
	fetcher *Fetcher
}

// Parse fetches the source URL and extracts price, status and shipping.
func (p *PageScraper) Parse(ctx context.Context, source *models.TrackedSource) (*Result, error) {
	if p.scraper == nil {
		return nil, &ConfigurationError{Msg: "source has no scraper attached"}
	}
	if !p.scraper.IsActive {
		return nil, &ConfigurationError{Msg: fmt.Sprintf("scraper %d is disabled", p.scraper.ID)}
	}

	parsed, err := url.Parse(source.Identifier)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, &ValidationError{Msg: fmt.Sprintf("malformed page URL %q", source.Identifier)}
	}

	content, err := p.fetcher.Fetch(ctx, source.Identifier, p.scraper.FetchMode)
	if err != nil {
		return nil, err
	}

	pipeline, err := extraction.NewPipeline(content)
	if err != nil {
		return nil, &UpstreamError{Msg: fmt.Sprintf("unparseable page content: %v", err)}
	}

	result := &Result{Currency: p.scraper.DefaultCurrency}

	priceText, priceTrace := pipeline.ExtractField(models.FieldPrice, p.scraper.ActiveRulesForField(models.FieldPrice))
	statusText, statusTrace := pipeline.ExtractField(models.FieldStatus, p.scraper.ActiveRulesForField(models.FieldStatus))
	shippingText, shippingTrace := pipeline.ExtractField(models.FieldShipping, p.scraper.ActiveRulesForField(models.FieldShipping))

	result.Trace = append(result.Trace, priceTrace...)
	result.Trace = append(result.Trace, statusTrace...)
	result.Trace = append(result.Trace, shippingTrace...)
	result.Status = statusText
	result.ShippingInfo = shippingText

	if priceText == "" && p.scraper.UseMetadataFallback {
		meta := ExtractMetadata(content)
		if meta.Price != "" {
			priceText = meta.Price
		}
		if meta.Currency != "" {
			result.Currency = meta.Currency
		}
		if result.Status == "" && meta.Status != "" {
			result.Status = meta.Status
		}
	}

	if priceText == "" {
		return result, ErrNoMatch
	}

	price, err := strconv.ParseFloat(priceText, 64)
	if err != nil || price <= 0 {
		return result, ErrNoMatch
	}

	result.Price = &price
	return result, nil
}
