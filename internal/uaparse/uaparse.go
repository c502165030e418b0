// Package uaparse extracts denormalized client metadata (OS, browser,
// device brand, mobile flag) from a raw User-Agent header for inclusion in
// the verdict payload.
package uaparse

import "github.com/mileusna/useragent"

// Info is the subset of parsed user-agent fields the verdict payload
// denormalizes.
type Info struct {
	OS       string `json:"os"`
	Browser  string `json:"browser"`
	Brand    string `json:"brand,omitempty"`
	IsMobile bool   `json:"is_mobile"`
}

// Parse interprets raw (a User-Agent header value) and returns its
// denormalized fields. An empty or unrecognized string yields a zero Info
// rather than an error — UA parsing is advisory metadata, never a gate.
func Parse(raw string) Info {
	ua := useragent.Parse(raw)
	return Info{
		OS:       ua.OS,
		Browser:  ua.Name,
		Brand:    ua.Device,
		IsMobile: ua.Mobile,
	}
}
