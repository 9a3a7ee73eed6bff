// Package uaparse reduces a raw User-Agent header to the summary the
// recorder stores alongside an open event.
package uaparse

import (
	"strings"

	"github.com/mssola/useragent"
)

// DeviceSummary is the parsed shape persisted with each open event.
// Legacy rows that predate structured parsing are represented with only
// RawLabel set.
type DeviceSummary struct {
	Device   string `json:"device,omitempty"`
	OS       string `json:"os,omitempty"`
	Browser  string `json:"browser,omitempty"`
	IsBot    bool   `json:"is_bot,omitempty"`
	RawLabel string `json:"raw_label,omitempty"`
}

// Mail providers that proxy image fetches. Their requests say nothing
// about the reader's real device, so they get a stable pseudo-device
// label instead of whatever the proxy claims to be.
var proxySignatures = map[string]string{
	"googleimageproxy":      "Gmail Image Proxy",
	"ggpht.com":             "Gmail Image Proxy",
	"yahoocachesystem":      "Yahoo Image Proxy",
	"front-end.images.mail": "Outlook Image Proxy",
}

// Parse never fails; an unrecognizable header falls back to a raw label.
func Parse(rawUA string) DeviceSummary {
	if rawUA == "" {
		return DeviceSummary{RawLabel: "Unknown Device"}
	}

	lower := strings.ToLower(rawUA)
	for sig, label := range proxySignatures {
		if strings.Contains(lower, strings.ToLower(sig)) {
			return DeviceSummary{Device: label, IsBot: true}
		}
	}

	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()

	summary := DeviceSummary{
		OS:      ua.OS(),
		Browser: browser,
		IsBot:   ua.Bot(),
	}
	switch {
	case ua.Mobile():
		summary.Device = "Mobile"
	case ua.Bot():
		summary.Device = "Bot"
	default:
		summary.Device = "Desktop"
	}

	if summary.OS == "" && summary.Browser == "" && !summary.IsBot {
		return DeviceSummary{RawLabel: rawUA}
	}
	return summary
}

// Label renders the one-line form used by list projections.
func (d DeviceSummary) Label() string {
	if d.RawLabel != "" {
		return d.RawLabel
	}
	parts := make([]string, 0, 3)
	if d.Device != "" {
		parts = append(parts, d.Device)
	}
	if d.OS != "" {
		parts = append(parts, d.OS)
	}
	if d.Browser != "" {
		parts = append(parts, d.Browser)
	}
	if len(parts) == 0 {
		return "Unknown Device"
	}
	return strings.Join(parts, " / ")
}
