package uaparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_GmailProxyNormalized(t *testing.T) {
	// Gmail fetches images through its proxy; the claimed Firefox is
	// not the reader's device.
	ua := "Mozilla/5.0 (Windows NT 5.1; rv:11.0) Gecko Firefox/11.0 (via ggpht.com GoogleImageProxy)"

	got := Parse(ua)
	assert.Equal(t, "Gmail Image Proxy", got.Device)
	assert.True(t, got.IsBot)
	assert.Empty(t, got.Browser)
}

func TestParse_ProxyDetectionCaseInsensitive(t *testing.T) {
	got := Parse("something VIA GGPHT.COM googleimageproxy")
	assert.Equal(t, "Gmail Image Proxy", got.Device)
	assert.True(t, got.IsBot)
}

func TestParse_Desktop(t *testing.T) {
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	got := Parse(ua)
	assert.Equal(t, "Desktop", got.Device)
	assert.Equal(t, "Chrome", got.Browser)
	assert.False(t, got.IsBot)
	assert.NotEmpty(t, got.OS)
}

func TestParse_Mobile(t *testing.T) {
	ua := "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

	got := Parse(ua)
	assert.Equal(t, "Mobile", got.Device)
}

func TestParse_Bot(t *testing.T) {
	got := Parse("Googlebot/2.1 (+http://www.google.com/bot.html)")
	assert.True(t, got.IsBot)
}

func TestParse_EmptyFallsBack(t *testing.T) {
	got := Parse("")
	assert.Equal(t, "Unknown Device", got.RawLabel)
	assert.Equal(t, "Unknown Device", got.Label())
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name    string
		summary DeviceSummary
		want    string
	}{
		{"full", DeviceSummary{Device: "Desktop", OS: "Windows 10", Browser: "Chrome"}, "Desktop / Windows 10 / Chrome"},
		{"proxy", DeviceSummary{Device: "Gmail Image Proxy", IsBot: true}, "Gmail Image Proxy"},
		{"raw fallback", DeviceSummary{RawLabel: "weird/1.0"}, "weird/1.0"},
		{"empty", DeviceSummary{}, "Unknown Device"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.summary.Label())
		})
	}
}
