package content

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// NormalizeYoutubeURL converts watch, short-link, shorts, live and embed
// links into the canonical https://www.youtube.com/embed/{id} form.
func NormalizeYoutubeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimSuffix(strings.TrimPrefix(trimmed, "<"), ">")
	lower := strings.ToLower(trimmed)
	for _, prefix := range []string{"youtube.com/", "www.youtube.com/", "m.youtube.com/", "youtu.be/", "youtube-nocookie.com/", "www.youtube-nocookie.com/"} {
		if strings.HasPrefix(lower, prefix) {
			trimmed = "https://" + trimmed
			break
		}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed == nil {
		return "", ErrUnsupportedVideo
	}
	if scheme := strings.ToLower(parsed.Scheme); scheme != "http" && scheme != "https" {
		return "", ErrUnsupportedVideo
	}

	host := strings.ToLower(parsed.Hostname())
	var videoID string
	switch {
	case host == "youtu.be":
		videoID = firstSegment(strings.Trim(parsed.Path, "/"))
	case isHostOrSubdomain(host, "youtube.com"), isHostOrSubdomain(host, "youtube-nocookie.com"):
		path := strings.Trim(parsed.Path, "/")
		switch {
		case path == "watch":
			videoID = parsed.Query().Get("v")
		case strings.HasPrefix(path, "shorts/"):
			videoID = firstSegment(strings.TrimPrefix(path, "shorts/"))
		case strings.HasPrefix(path, "embed/"):
			videoID = firstSegment(strings.TrimPrefix(path, "embed/"))
		case strings.HasPrefix(path, "live/"):
			videoID = firstSegment(strings.TrimPrefix(path, "live/"))
		}
	default:
		return "", ErrUnsupportedVideo
	}

	if !youtubeIDPattern.MatchString(videoID) {
		return "", ErrUnsupportedVideo
	}
	return fmt.Sprintf("https://www.youtube.com/embed/%s", videoID), nil
}

func firstSegment(path string) string {
	if idx := strings.Index(path, "/"); idx >= 0 {
		return path[:idx]
	}
	return path
}

func isHostOrSubdomain(host, domain string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	domain = strings.ToLower(strings.TrimSpace(domain))
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
