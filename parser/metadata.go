package parser

import (
	"encoding/json"
	"strings"

	"dealtrack/extraction"
	"dealtrack/models"

	"github.com/PuerkitoBio/goquery"
)

// Metadata is what the structured-metadata fallback can recover from a page
// when no extraction rule matched: linked-data product blocks first, then
// microdata item properties.
type Metadata struct {
	Price    string
	Currency string
	Status   string
}

// schema.org availability URLs onto the status vocabulary
var availabilityMap = map[string]string{
	"instock":             models.StatusInStock,
	"outofstock":          models.StatusOutOfStock,
	"preorder":            models.StatusPreOrder,
	"backorder":           models.StatusBackorder,
	"limitedavailability": models.StatusInStock,
	"soldout":             models.StatusOutOfStock,
	"discontinued":        models.StatusOutOfStock,
}

// ExtractMetadata scans embedded ld+json blocks and microdata attributes for
// product price information.
func ExtractMetadata(content string) *Metadata {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return &Metadata{}
	}

	meta := &Metadata{}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var decoded interface{}
		if err := json.Unmarshal([]byte(sel.Text()), &decoded); err != nil {
			return true
		}
		if product := findProductNode(decoded); product != nil {
			fillFromProduct(meta, product)
		}
		return meta.Price == ""
	})

	if meta.Price == "" {
		fillFromMicrodata(meta, doc)
	}

	if meta.Price != "" {
		meta.Price = extraction.NormalizePrice(meta.Price, nil)
	}
	if meta.Currency != "" {
		meta.Currency = extraction.NormalizeCurrency(meta.Currency)
	}
	return meta
}

// findProductNode walks a decoded ld+json value looking for a Product node,
// descending into arrays and @graph containers.
func findProductNode(v interface{}) map[string]interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		if t, _ := node["@type"].(string); strings.EqualFold(t, "Product") {
			return node
		}
		if graph, ok := node["@graph"]; ok {
			return findProductNode(graph)
		}
	case []interface{}:
		for _, item := range node {
			if found := findProductNode(item); found != nil {
				return found
			}
		}
	}
	return nil
}

func fillFromProduct(meta *Metadata, product map[string]interface{}) {
	offers := product["offers"]
	if list, ok := offers.([]interface{}); ok && len(list) > 0 {
		offers = list[0]
	}
	offer, ok := offers.(map[string]interface{})
	if !ok {
		return
	}

	if meta.Price == "" {
		if price := extraction.WalkPath(offer, "price"); price != "" {
			meta.Price = price
		} else if low := extraction.WalkPath(offer, "lowPrice"); low != "" {
			meta.Price = low
		}
	}
	if meta.Currency == "" {
		meta.Currency = extraction.WalkPath(offer, "priceCurrency")
	}
	if meta.Status == "" {
		if avail, ok := offer["availability"].(string); ok {
			meta.Status = mapAvailabilityURL(avail)
		}
	}
}

func fillFromMicrodata(meta *Metadata, doc *goquery.Document) {
	if meta.Price == "" {
		sel := doc.Find(`[itemprop="price"]`).First()
		if content, ok := sel.Attr("content"); ok && content != "" {
			meta.Price = content
		} else {
			meta.Price = strings.TrimSpace(sel.Text())
		}
	}
	if meta.Currency == "" {
		sel := doc.Find(`[itemprop="priceCurrency"]`).First()
		if content, ok := sel.Attr("content"); ok && content != "" {
			meta.Currency = content
		} else {
			meta.Currency = strings.TrimSpace(sel.Text())
		}
	}
	if meta.Status == "" {
		sel := doc.Find(`[itemprop="availability"]`).First()
		if href, ok := sel.Attr("href"); ok {
			meta.Status = mapAvailabilityURL(href)
		} else if content, ok := sel.Attr("content"); ok {
			meta.Status = mapAvailabilityURL(content)
		}
	}
}

// mapAvailabilityURL maps "https://schema.org/InStock" style values
func mapAvailabilityURL(value string) string {
	v := strings.ToLower(value)
	if idx := strings.LastIndex(v, "/"); idx >= 0 {
		v = v[idx+1:]
	}
	if status, ok := availabilityMap[v]; ok {
		return status
	}
	return ""
}
