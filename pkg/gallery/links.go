package gallery

import "strings"

// DefaultLIFFBaseURL is the LINE front door for LIFF apps.
const DefaultLIFFBaseURL = "https://liff.line.me"

// Links builds the deep links users are sent to view their images.
type Links struct {
	BaseURL string
	LIFFID  string
}

// Slideshow returns the slideshow URL for an image HashID.
func (l Links) Slideshow(hashID string) string {
	base := strings.TrimRight(l.BaseURL, "/")
	if base == "" {
		base = DefaultLIFFBaseURL
	}
	return base + "/" + l.LIFFID + "/" + hashID
}
