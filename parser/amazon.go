package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"dealtrack/config"
	"dealtrack/models"
)

var asinRe = regexp.MustCompile(`^[A-Z0-9]{10}$`)

// Availability phrasing checked across the marketplaces we track. Substring
// matching, lowercased input.
var (
	preOrderPhrases = []string{
		"pre-order", "preorder", "pre order",
		"précommande", "vorbestell", "pre-venta", "preordine", "pré-venda",
	}
	outOfStockPhrases = []string{
		"out of stock", "currently unavailable", "temporarily out of stock",
		"nicht auf lager", "derzeit nicht verfügbar",
		"actuellement indisponible", "indisponible",
		"no disponible", "non disponibile", "agotado", "esaurito",
	}
	backorderPhrases = []string{
		"backorder", "back-order", "back order", "nachbestellung",
	}
)

// AmazonParser talks to the first-party catalog API. Lookups are scoped to
// the marketplace derived from the source's region.
type AmazonParser struct {
	cfg    *config.AmazonConfig
	client *http.Client
	pacer  Pacer

	// endpoint overrides the derived catalog URL; tests only
	endpoint string
}

type catalogListing struct {
	IsBuyBoxWinner bool   `json:"is_buybox_winner"`
	Condition      string `json:"condition"`
	Availability   string `json:"availability"`
	FulfilledByUs  bool   `json:"fulfilled_by_retailer"`
	Price          struct {
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	} `json:"price"`
	Merchant struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"merchant"`
}

type catalogResponse struct {
	Items []struct {
		ASIN     string           `json:"asin"`
		Listings []catalogListing `json:"listings"`
	} `json:"items"`
}

// Parse looks one ASIN up in the region's marketplace and maps the winning
// listing onto the result vocabulary.
func (p *AmazonParser) Parse(ctx context.Context, source *models.TrackedSource) (*Result, error) {
	if p.cfg == nil || !p.cfg.IsValid() {
		return nil, &ConfigurationError{Msg: "catalog API credentials are not configured"}
	}

	asin := strings.ToUpper(strings.TrimSpace(source.Identifier))
	if !asinRe.MatchString(asin) {
		return nil, &ValidationError{Msg: fmt.Sprintf("malformed ASIN %q", source.Identifier)}
	}

	marketplace := config.MarketplaceForRegion(source.RegionScope)

	body, err := p.lookup(ctx, marketplace, asin)
	if err != nil {
		return nil, err
	}

	var decoded catalogResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &UpstreamError{Msg: fmt.Sprintf("undecodable catalog response: %v", err), Body: truncateBody(body)}
	}
	if len(decoded.Items) == 0 {
		return nil, &UpstreamError{Msg: "item not found: " + asin, Body: truncateBody(body)}
	}

	listing := pickListing(decoded.Items[0].Listings)
	if listing == nil {
		return nil, &UpstreamError{Msg: "no usable listing for " + asin, Body: truncateBody(body)}
	}

	result := &Result{
		Currency:     strings.ToUpper(listing.Price.Currency),
		Status:       availabilityStatus(listing),
		ShippingInfo: shippingInfo(listing),
	}
	if listing.Price.Amount > 0 {
		price := listing.Price.Amount
		result.Price = &price
	}
	if result.Price == nil {
		return result, ErrNoMatch
	}
	return result, nil
}

// lookup performs one catalog call, retrying 429s with backoff and refreshing
// credentials once on a reported token expiry. Every attempt is paced, retries
// and the post-refresh call included.
func (p *AmazonParser) lookup(ctx context.Context, marketplace, asin string) ([]byte, error) {
	body, status, err := p.doLookup(ctx, marketplace, asin)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && isTokenExpired(body) {
		stale := p.cfg.Token()
		if err := p.cfg.Refresh(stale, func(refreshToken string) (string, error) {
			return p.exchangeToken(ctx, refreshToken)
		}); err != nil {
			return nil, err
		}
		body, status, err = p.doLookup(ctx, marketplace, asin)
		if err != nil {
			return nil, err
		}
	}

	if status != http.StatusOK {
		return nil, &UpstreamError{Msg: "catalog lookup failed", StatusCode: status, Body: truncateBody(body)}
	}
	return body, nil
}

func (p *AmazonParser) doLookup(ctx context.Context, marketplace, asin string) ([]byte, int, error) {
	payload, _ := json.Marshal(map[string]interface{}{
		"marketplace": marketplace,
		"item_ids":    []string{asin},
		"partner_tag": p.cfg.PartnerTag,
		"resources":   []string{"listings.price", "listings.availability", "listings.merchant"},
	})

	endpoint := p.endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s/catalog/v1/items", apiHost(marketplace))
	}

	resp, err := DoWithBackoff(ctx, nil, func() (*http.Response, error) {
		if err := p.pacer.Wait(ctx, p.cfg.PartnerTag); err != nil {
			return nil, fmt.Errorf("pacing interrupted: %v", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.cfg.Token())
		return p.client.Do(req)
	})
	if err != nil {
		return nil, 0, &TransientError{Msg: fmt.Sprintf("catalog request failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, 0, &TransientError{Msg: fmt.Sprintf("catalog read failed: %v", err), Err: err}
	}
	return body, resp.StatusCode, nil
}

// exchangeToken trades the refresh token for a new access token. Runs under
// the shared credential lock via config.AmazonConfig.Refresh, at most once
// per parse attempt.
func (p *AmazonParser) exchangeToken(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", &ConfigurationError{Msg: "access token expired and no refresh token is configured"}
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &ConfigurationError{Msg: fmt.Sprintf("bad token URL: %v", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &TransientError{Msg: fmt.Sprintf("token refresh failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{Msg: "token refresh rejected", StatusCode: resp.StatusCode, Body: truncateBody(body)}
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &token); err != nil || token.AccessToken == "" {
		return "", &UpstreamError{Msg: "token refresh returned no access token", Body: truncateBody(body)}
	}
	return token.AccessToken, nil
}

func isTokenExpired(body []byte) bool {
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "token") && strings.Contains(lower, "expired")
}

// apiHost maps a storefront domain to its API host
func apiHost(marketplace string) string {
	return strings.Replace(marketplace, "www.", "webservices.", 1)
}

// pickListing prefers the featured/buy-box winner, else the lowest-priced
// listing in new condition.
func pickListing(listings []catalogListing) *catalogListing {
	var best *catalogListing
	for i := range listings {
		l := &listings[i]
		if l.IsBuyBoxWinner {
			return l
		}
		if !strings.EqualFold(l.Condition, "new") {
			continue
		}
		if l.Price.Amount <= 0 {
			continue
		}
		if best == nil || l.Price.Amount < best.Price.Amount {
			best = l
		}
	}
	if best == nil && len(listings) > 0 {
		return &listings[0]
	}
	return best
}

// availabilityStatus maps the listing's free-text availability onto the
// status vocabulary, overriding the has-price-means-in-stock default.
func availabilityStatus(l *catalogListing) string {
	text := strings.ToLower(l.Availability)
	for _, phrase := range preOrderPhrases {
		if strings.Contains(text, phrase) {
			return models.StatusPreOrder
		}
	}
	for _, phrase := range backorderPhrases {
		if strings.Contains(text, phrase) {
			return models.StatusBackorder
		}
	}
	for _, phrase := range outOfStockPhrases {
		if strings.Contains(text, phrase) {
			return models.StatusOutOfStock
		}
	}
	if l.Price.Amount > 0 {
		return models.StatusInStock
	}
	return models.StatusPriceUnavailable
}

// shippingInfo derives shipping eligibility heuristically from merchant
// identity and availability text.
func shippingInfo(l *catalogListing) string {
	if l.FulfilledByUs {
		return "Free Shipping"
	}
	if strings.Contains(strings.ToLower(l.Merchant.Name), "amazon") {
		return "Free Shipping"
	}
	if strings.Contains(strings.ToLower(l.Availability), "free shipping") {
		return "Free Shipping"
	}
	return ""
}
