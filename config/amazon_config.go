package config

import (
	"os"
	"sync"
)

// AmazonConfig holds catalog API configuration. One instance is shared by
// every parser built over it; after startup the access token is read and
// replaced through Token, SetToken and Refresh only.
type AmazonConfig struct {
	AccessToken  string
	RefreshToken string
	TokenURL     string
	PartnerTag   string
	Enabled      bool

	mu sync.Mutex // guards AccessToken
}

// Token returns the current access token.
func (c *AmazonConfig) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.AccessToken
}

// SetToken replaces the access token.
func (c *AmazonConfig) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AccessToken = token
}

// Refresh runs exchange under the credential lock so concurrent refreshes
// collapse into one. exchange receives the refresh token and returns the
// replacement access token. When another caller already replaced the token
// the caller observed as stale, the exchange is skipped.
func (c *AmazonConfig) Refresh(stale string, exchange func(refreshToken string) (string, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.AccessToken != stale {
		return nil
	}
	token, err := exchange(c.RefreshToken)
	if err != nil {
		return err
	}
	c.AccessToken = token
	return nil
}

// Marketplace domains by region code. Lookups are scoped to the marketplace
// derived from the target region; assembled product links use the same map.
var AmazonMarketplaces = map[string]string{
	"US": "www.amazon.com",
	"CA": "www.amazon.ca",
	"GB": "www.amazon.co.uk",
	"UK": "www.amazon.co.uk",
	"DE": "www.amazon.de",
	"FR": "www.amazon.fr",
	"IT": "www.amazon.it",
	"ES": "www.amazon.es",
	"NL": "www.amazon.nl",
	"SE": "www.amazon.se",
	"JP": "www.amazon.co.jp",
	"AU": "www.amazon.com.au",
}

// LoadAmazonConfig loads catalog API configuration from environment variables
func LoadAmazonConfig() *AmazonConfig {
	return &AmazonConfig{
		AccessToken:  os.Getenv("AMAZON_ACCESS_TOKEN"),
		RefreshToken: os.Getenv("AMAZON_REFRESH_TOKEN"),
		TokenURL:     getEnv("AMAZON_TOKEN_URL", "https://api.amazon.com/auth/o2/token"),
		PartnerTag:   getEnv("AMAZON_PARTNER_TAG", "dealtrack-20"),
		Enabled:      getEnv("AMAZON_API_ENABLED", "true") == "true",
	}
}

// IsValid checks if the catalog API configuration is usable
func (c *AmazonConfig) IsValid() bool {
	if !c.Enabled {
		return false
	}
	return c.Token() != "" && c.PartnerTag != ""
}

// MarketplaceForRegion returns the marketplace domain for a region code,
// falling back to the US marketplace for unknown regions.
func MarketplaceForRegion(region string) string {
	if domain, ok := AmazonMarketplaces[region]; ok {
		return domain
	}
	return AmazonMarketplaces["US"]
}
