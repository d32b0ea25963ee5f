package config

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmazonConfigTokenAccessors(t *testing.T) {
	cfg := &AmazonConfig{AccessToken: "first", PartnerTag: "tag", Enabled: true}

	assert.Equal(t, "first", cfg.Token())
	assert.True(t, cfg.IsValid())

	cfg.SetToken("second")
	assert.Equal(t, "second", cfg.Token())

	cfg.SetToken("")
	assert.False(t, cfg.IsValid())
}

func TestAmazonConfigRefreshCollapsesConcurrentCallers(t *testing.T) {
	cfg := &AmazonConfig{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		PartnerTag:   "tag",
		Enabled:      true,
	}

	var exchanges int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := cfg.Refresh("stale", func(refreshToken string) (string, error) {
				atomic.AddInt32(&exchanges, 1)
				assert.Equal(t, "refresh", refreshToken)
				return "fresh", nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// only the first caller exchanges; the rest see the replaced token
	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))
	assert.Equal(t, "fresh", cfg.Token())
}

func TestAmazonConfigRefreshSkipsWhenTokenAlreadyReplaced(t *testing.T) {
	cfg := &AmazonConfig{AccessToken: "current", RefreshToken: "refresh"}

	err := cfg.Refresh("older", func(string) (string, error) {
		t.Fatal("exchange must not run for a token that already changed")
		return "", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "current", cfg.Token())
}
