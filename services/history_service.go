package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"dealtrack/models"
)

// HistoryService answers price-history queries over persisted snapshots.
type HistoryService struct {
	sources  SourceStore
	scrapers ScraperStore
	history  HistoryStore
	cache    *TwoTierCache
	chartTTL time.Duration
}

// HistoryStore is the slice of the history repository the query services use.
type HistoryStore interface {
	GetHistoryBySource(sourceID int, limit int) ([]models.PriceHistory, error)
	GetSummaryBySource(sourceID int) (*models.PriceSummary, error)
}

func NewHistoryService(sources SourceStore, scrapers ScraperStore, history HistoryStore, cache *TwoTierCache, chartTTL time.Duration) *HistoryService {
	if chartTTL <= 0 {
		chartTTL = ChartCacheTTL
	}
	return &HistoryService{
		sources:  sources,
		scrapers: scrapers,
		history:  history,
		cache:    cache,
		chartTTL: chartTTL,
	}
}

// GetPriceHistory returns the per-source snapshot series and summaries for a
// product, plus a combined summary across all of its sources.
func (h *HistoryService) GetPriceHistory(productID int) (*models.ProductHistory, error) {
	sources, err := h.sources.GetSourcesByProduct(productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources for product %d: %v", productID, err)
	}

	result := &models.ProductHistory{
		ProductID: productID,
		Sources:   make([]models.SourceHistory, 0, len(sources)),
	}

	var overallSum float64
	for _, src := range sources {
		entries, err := h.history.GetHistoryBySource(src.ID, 0)
		if err != nil {
			return nil, err
		}
		summary, err := h.history.GetSummaryBySource(src.ID)
		if err != nil {
			return nil, err
		}

		result.Sources = append(result.Sources, models.SourceHistory{
			SourceID:   src.ID,
			ParserKind: src.ParserKind,
			Region:     src.RegionScope,
			Entries:    entries,
			Summary:    *summary,
		})

		if summary.Count == 0 {
			continue
		}
		if result.Overall.Count == 0 || summary.Min < result.Overall.Min {
			result.Overall.Min = summary.Min
		}
		if summary.Max > result.Overall.Max {
			result.Overall.Max = summary.Max
		}
		overallSum += summary.Avg * float64(summary.Count)
		result.Overall.Count += summary.Count
	}
	if result.Overall.Count > 0 {
		result.Overall.Avg = overallSum / float64(result.Overall.Count)
	}

	return result, nil
}

// GetPriceHistoryChart returns region-filtered per-source time series for a
// product, points in ascending time order. Only sources applicable to the
// requested region are included; there is no fallback pass here.
func (h *HistoryService) GetPriceHistoryChart(ctx context.Context, productID int, region string) ([]models.ChartSeries, error) {
	region = strings.ToUpper(strings.TrimSpace(region))

	key := CacheKey("chart", productID, region)
	var cached []models.ChartSeries
	if h.cache != nil && h.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	sources, err := h.sources.GetSourcesByProduct(productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources for product %d: %v", productID, err)
	}

	series := make([]models.ChartSeries, 0, len(sources))
	for _, src := range sources {
		if !h.servesRegion(&src, region) {
			continue
		}
		entries, err := h.history.GetHistoryBySource(src.ID, 0)
		if err != nil {
			return nil, err
		}

		points := make([]models.ChartPoint, 0, len(entries))
		for i := len(entries) - 1; i >= 0; i-- {
			points = append(points, models.ChartPoint{Time: entries[i].CheckedAt, Price: entries[i].Price})
		}
		series = append(series, models.ChartSeries{
			SourceID:   src.ID,
			ParserKind: src.ParserKind,
			Points:     points,
		})
	}

	if h.cache != nil {
		h.cache.Set(ctx, key, series, h.chartTTL)
	}
	return series, nil
}

func (h *HistoryService) servesRegion(src *models.TrackedSource, region string) bool {
	if src.IsScraperBacked() {
		scraper, err := h.scrapers.GetScraperByID(int(src.ScraperID.Int64))
		if err != nil {
			log.Printf("Failed to load scraper %d for chart filter: %v", src.ScraperID.Int64, err)
			return false
		}
		return scraper.ServesRegion(region)
	}
	return strings.EqualFold(src.RegionScope, region)
}
