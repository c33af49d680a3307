package content

import (
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/purell"
)

var (
	ErrEmptyURL         = errors.New("url is empty")
	ErrUnsupportedURL   = errors.New("url scheme is not allowed")
	ErrUnsupportedVideo = errors.New("unsupported video url")
)

var (
	linkSchemes       = map[string]bool{"http": true, "https": true, "mailto": true, "tel": true}
	mediaSchemes      = map[string]bool{"http": true, "https": true}
	youtubeEmbedHosts = map[string]bool{"youtube.com": true, "m.youtube.com": true, "youtube-nocookie.com": true}

	buttonNormalizeFlags = purell.FlagsSafe | purell.FlagRemoveDotSegments | purell.FlagRemoveDuplicateSlashes
)

func isPathRelative(raw string) bool {
	return strings.HasPrefix(raw, "/")
}

func schemeOf(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme), true
}

// IsSafeLinkURL accepts path-relative, fragment and http/https/mailto/tel hrefs.
func IsSafeLinkURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	if isPathRelative(raw) || strings.HasPrefix(raw, "#") {
		return true
	}
	scheme, ok := schemeOf(raw)
	return ok && linkSchemes[scheme]
}

// IsSafeMediaURL accepts path-relative and absolute http/https sources.
func IsSafeMediaURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	if isPathRelative(raw) {
		return true
	}
	scheme, ok := schemeOf(raw)
	return ok && mediaSchemes[scheme]
}

// IsAllowedIframeSrc reports whether src points at a YouTube embed path.
func IsAllowedIframeSrc(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return youtubeEmbedHosts[host] && strings.Contains(u.Path, "/embed/")
}

// IsDataURL reports whether raw is an inline data: URL.
func IsDataURL(raw string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "data:")
}

// NormalizeLinkURL validates a button target and returns its canonical
// form. Bare hosts such as "example.com/agenda" are promoted to https.
func NormalizeLinkURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyURL
	}
	if strings.HasPrefix(trimmed, "#") {
		return trimmed, nil
	}
	if isPathRelative(trimmed) {
		if strings.HasPrefix(trimmed, "//") {
			return "", ErrUnsupportedURL
		}
		return trimmed, nil
	}

	scheme, ok := schemeOf(trimmed)
	if !ok || strings.Contains(scheme, ".") {
		trimmed = "https://" + trimmed
		scheme = "https"
	}
	switch scheme {
	case "mailto", "tel":
		return trimmed, nil
	case "http", "https":
	default:
		// "localhost:8080/agenda" parses as scheme "localhost"
		rest := trimmed[len(scheme)+1:]
		if rest != "" && rest[0] >= '0' && rest[0] <= '9' {
			return NormalizeLinkURL("https://" + trimmed)
		}
		return "", ErrUnsupportedURL
	}

	normalized, err := purell.NormalizeURLString(trimmed, buttonNormalizeFlags)
	if err != nil {
		return "", ErrUnsupportedURL
	}
	u, err := url.Parse(normalized)
	if err != nil || u.Host == "" {
		return "", ErrUnsupportedURL
	}
	return normalized, nil
}
