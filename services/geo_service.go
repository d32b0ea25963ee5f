package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"dealtrack/config"
	"dealtrack/models"
)

// SourceStore is the slice of the source repository the query services use.
type SourceStore interface {
	GetSourcesByProduct(productID int) ([]models.TrackedSource, error)
}

// ScraperStore is the slice of the scraper repository the query services use.
type ScraperStore interface {
	GetScraperByID(id int) (*models.Scraper, error)
}

// Placeholders recognized in scraper link templates
const (
	placeholderURL    = "{{URL}}"
	placeholderURLEnc = "{{URL_ENC}}"
)

// GeoService answers region-scoped link resolution queries over persisted
// tracked sources. Results are cached; the service never triggers a scrape.
type GeoService struct {
	sources       SourceStore
	scrapers      ScraperStore
	cache         *TwoTierCache
	defaultRegion string
	partnerTag    string
	linkTTL       time.Duration
	regionTTL     time.Duration
}

func NewGeoService(sources SourceStore, scrapers ScraperStore, cache *TwoTierCache, cfg *config.AppConfig, amazonCfg *config.AmazonConfig) *GeoService {
	g := &GeoService{
		sources:       sources,
		scrapers:      scrapers,
		cache:         cache,
		defaultRegion: cfg.DefaultRegion,
		partnerTag:    amazonCfg.PartnerTag,
		linkTTL:       cfg.LinkCacheTTL,
		regionTTL:     cfg.RegionCacheTTL,
	}
	if g.linkTTL <= 0 {
		g.linkTTL = LinkCacheTTL
	}
	if g.regionTTL <= 0 {
		g.regionTTL = RegionCacheTTL
	}
	return g
}

// RegionForClient resolves the effective region for a request that did not
// name one. An edge-provided country header is remembered per client IP so
// later requests from the same client resolve consistently without the
// header.
func (g *GeoService) RegionForClient(ctx context.Context, clientIP, headerRegion string) string {
	key := "dealtrack:region:" + clientIP
	if region := strings.ToUpper(strings.TrimSpace(headerRegion)); region != "" {
		if g.cache != nil && clientIP != "" {
			g.cache.Set(ctx, key, region, g.regionTTL)
		}
		return region
	}
	if g.cache != nil && clientIP != "" {
		var cached string
		if g.cache.Get(ctx, key, &cached) && cached != "" {
			return cached
		}
	}
	return g.defaultRegion
}

// ResolveLinks selects the active sources applicable to the requested region
// and assembles an outbound link for each. When no source matches the
// requested region exactly, sources scoped to the default region are returned
// instead with a human-readable fallback notice. Zero matches either way
// yields an empty link list and no message.
func (g *GeoService) ResolveLinks(ctx context.Context, productID int, region string) (*models.ResolveResult, error) {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = g.defaultRegion
	}

	key := CacheKey("links", productID, region)
	var cached models.ResolveResult
	if g.cache != nil && g.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	sources, err := g.sources.GetSourcesByProduct(productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources for product %d: %v", productID, err)
	}

	scraperByID := make(map[int64]*models.Scraper)
	lookup := func(id int64) *models.Scraper {
		if s, ok := scraperByID[id]; ok {
			return s
		}
		s, err := g.scrapers.GetScraperByID(int(id))
		if err != nil {
			log.Printf("Failed to load scraper %d during link resolution: %v", id, err)
			s = nil
		}
		scraperByID[id] = s
		return s
	}

	matched := g.matchRegion(sources, region, lookup)
	result := &models.ResolveResult{ResolvedRegion: region}
	if len(matched) == 0 && !strings.EqualFold(region, g.defaultRegion) {
		matched = g.matchRegion(sources, g.defaultRegion, lookup)
		if len(matched) > 0 {
			result.ResolvedRegion = g.defaultRegion
			result.FallbackMessage = fmt.Sprintf("No sources available for region %s; showing %s prices instead.", region, g.defaultRegion)
		}
	}

	result.Links = make([]models.ResolvedLink, 0, len(matched))
	for _, src := range matched {
		var scraper *models.Scraper
		if src.IsScraperBacked() {
			scraper = lookup(src.ScraperID.Int64)
		}
		link := models.ResolvedLink{
			SourceID:   src.ID,
			ProductID:  src.ProductID,
			ParserKind: src.ParserKind,
			URL:        g.buildLink(&src, scraper, result.ResolvedRegion),
			Region:     result.ResolvedRegion,
		}
		if !src.IsScraperBacked() {
			link.Region = src.RegionScope
		}
		if src.CurrentPrice.Valid {
			p := src.CurrentPrice.Float64
			link.Price = &p
		}
		if src.CurrentCurrency.Valid {
			c := src.CurrentCurrency.String
			link.Currency = &c
		}
		result.Links = append(result.Links, link)
	}

	if g.cache != nil {
		g.cache.Set(ctx, key, result, g.linkTTL)
	}
	return result, nil
}

// matchRegion applies the region test for one candidate region. API-backed
// sources carry a single region scope; scraper-backed sources match through
// the owning scraper's region allow-list.
func (g *GeoService) matchRegion(sources []models.TrackedSource, region string, lookup func(int64) *models.Scraper) []models.TrackedSource {
	var matched []models.TrackedSource
	for _, src := range sources {
		if !src.IsActive {
			continue
		}
		if src.IsScraperBacked() {
			scraper := lookup(src.ScraperID.Int64)
			if scraper != nil && scraper.IsActive && scraper.ServesRegion(region) {
				matched = append(matched, src)
			}
			continue
		}
		if strings.EqualFold(src.RegionScope, region) {
			matched = append(matched, src)
		}
	}
	return matched
}

// buildLink assembles the outbound URL for one matched source. A well-formed
// operator override always wins; otherwise the link is constructed per source
// kind, falling back to passing the identifier through unchanged.
func (g *GeoService) buildLink(src *models.TrackedSource, scraper *models.Scraper, region string) string {
	if src.AffiliateOverride.Valid && isWellFormedURL(src.AffiliateOverride.String) {
		return src.AffiliateOverride.String
	}

	switch src.ParserKind {
	case models.ParserKindAmazon:
		domain := config.MarketplaceForRegion(region)
		if g.partnerTag != "" {
			return fmt.Sprintf("https://%s/dp/%s?tag=%s", domain, src.Identifier, url.QueryEscape(g.partnerTag))
		}
		return fmt.Sprintf("https://%s/dp/%s", domain, src.Identifier)
	case models.ParserKindShopify:
		if src.StoreDomain.Valid && src.StoreDomain.String != "" {
			return fmt.Sprintf("https://%s/products/%s", src.StoreDomain.String, src.Identifier)
		}
	case models.ParserKindScraper:
		if scraper != nil && scraper.LinkTemplate.Valid && scraper.LinkTemplate.String != "" {
			link := strings.ReplaceAll(scraper.LinkTemplate.String, placeholderURLEnc, url.QueryEscape(src.Identifier))
			return strings.ReplaceAll(link, placeholderURL, src.Identifier)
		}
	}
	return src.Identifier
}

func isWellFormedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
