package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"dealtrack/models"
)

const storefrontAPIVersion = "2024-01"

var handleRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ShopifyParser reads one product by handle from a store's GraphQL
// storefront API. Transport failure, non-success HTTP status, a GraphQL
// error list and a missing product are distinct, non-retried failures.
type ShopifyParser struct {
	client *http.Client

	// endpoint overrides the derived storefront URL; tests only
	endpoint string
}

// Amounts come over the wire as decimal strings.
type storefrontMoney struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type storefrontResponse struct {
	Data struct {
		Product *struct {
			Title    string `json:"title"`
			Variants struct {
				Edges []struct {
					Node struct {
						AvailableForSale bool            `json:"availableForSale"`
						Price            storefrontMoney `json:"price"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"variants"`
			PriceRange struct {
				MinVariantPrice storefrontMoney `json:"minVariantPrice"`
			} `json:"priceRange"`
		} `json:"product"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Parse queries the storefront for the source's product handle, carrying an
// @inContext directive for the target region when one is known.
func (p *ShopifyParser) Parse(ctx context.Context, source *models.TrackedSource) (*Result, error) {
	if !source.StoreDomain.Valid || source.StoreDomain.String == "" {
		return nil, &ConfigurationError{Msg: "storefront domain is not configured"}
	}
	if !source.StoreToken.Valid || source.StoreToken.String == "" {
		return nil, &ConfigurationError{Msg: "storefront access token is not configured"}
	}

	handle := strings.TrimSpace(source.Identifier)
	if !handleRe.MatchString(handle) {
		return nil, &ValidationError{Msg: fmt.Sprintf("malformed product handle %q", source.Identifier)}
	}

	query, variables := buildStorefrontQuery(handle, source.RegionScope)
	payload, _ := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})

	endpoint := p.endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s/api/%s/graphql.json", source.StoreDomain.String, storefrontAPIVersion)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &ConfigurationError{Msg: fmt.Sprintf("bad storefront endpoint: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Storefront-Access-Token", source.StoreToken.String)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &TransientError{Msg: fmt.Sprintf("storefront request failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransientError{Msg: fmt.Sprintf("storefront read failed: %v", err), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Msg: "storefront query failed", StatusCode: resp.StatusCode, Body: truncateBody(body)}
	}

	var decoded storefrontResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &UpstreamError{Msg: fmt.Sprintf("undecodable storefront response: %v", err), Body: truncateBody(body)}
	}
	if len(decoded.Errors) > 0 {
		msgs := make([]string, 0, len(decoded.Errors))
		for _, e := range decoded.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, &UpstreamError{Msg: "storefront errors: " + strings.Join(msgs, "; "), Body: truncateBody(body)}
	}
	if decoded.Data.Product == nil {
		return nil, &UpstreamError{Msg: "product not found: " + handle, Body: truncateBody(body)}
	}

	product := decoded.Data.Product
	result := &Result{}

	if len(product.Variants.Edges) > 0 {
		node := product.Variants.Edges[0].Node
		result.Currency = node.Price.CurrencyCode
		if amount := parseAmount(node.Price.Amount); amount > 0 {
			result.Price = &amount
		}
		if node.AvailableForSale {
			result.Status = models.StatusInStock
		} else {
			result.Status = models.StatusOutOfStock
		}
	} else {
		// no variant present; fall back to the product's minimum variant price
		min := product.PriceRange.MinVariantPrice
		result.Currency = min.CurrencyCode
		if amount := parseAmount(min.Amount); amount > 0 {
			result.Price = &amount
		}
	}

	if result.Price == nil {
		result.Status = models.StatusPriceUnavailable
		return result, ErrNoMatch
	}
	return result, nil
}

// buildStorefrontQuery assembles the product query, adding the country
// context directive only when the region is known.
func buildStorefrontQuery(handle, region string) (string, map[string]interface{}) {
	variables := map[string]interface{}{"handle": handle}

	const fields = `product(handle: $handle) {
		title
		variants(first: 1) { edges { node { availableForSale price { amount currencyCode } } } }
		priceRange { minVariantPrice { amount currencyCode } }
	}`

	if region != "" {
		variables["country"] = strings.ToUpper(region)
		return `query ProductByHandle($handle: String!, $country: CountryCode!) @inContext(country: $country) { ` + fields + ` }`, variables
	}
	return `query ProductByHandle($handle: String!) { ` + fields + ` }`, variables
}

func parseAmount(amount string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil {
		return 0
	}
	return v
}
