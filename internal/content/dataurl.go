package content

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

var ErrMalformedDataURL = errors.New("malformed data url")

// DecodeDataURL splits a data: URL into its declared mime type and payload.
// Both base64 and percent-encoded payloads are accepted.
func DecodeDataURL(raw string) (string, []byte, error) {
	trimmed := strings.TrimSpace(raw)
	if !IsDataURL(trimmed) {
		return "", nil, ErrMalformedDataURL
	}
	comma := strings.IndexByte(trimmed, ',')
	if comma < 0 {
		return "", nil, ErrMalformedDataURL
	}

	meta := trimmed[len("data:"):comma]
	payload := trimmed[comma+1:]

	isBase64 := false
	mimeType := ""
	for i, part := range strings.Split(meta, ";") {
		part = strings.TrimSpace(part)
		switch {
		case i == 0:
			mimeType = strings.ToLower(part)
		case strings.EqualFold(part, "base64"):
			isBase64 = true
		}
	}
	if mimeType == "" {
		mimeType = "text/plain"
	}

	if isBase64 {
		cleaned := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		data, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "="))
			if err != nil {
				return "", nil, ErrMalformedDataURL
			}
		}
		return mimeType, data, nil
	}

	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, ErrMalformedDataURL
	}
	return mimeType, []byte(decoded), nil
}

// InlineMedia is one data: source found inside rich content.
type InlineMedia struct {
	Index int
	Tag   string
	Src   string
}

// RewriteInlineMedia calls replace for every img/video/source whose src is a
// data: URL, in document order, and swaps in the returned URL. The input is
// returned untouched when it holds no inline media. The first replace error
// aborts the rewrite.
func RewriteInlineMedia(src string, replace func(InlineMedia) (string, error)) (string, int, error) {
	if !strings.Contains(strings.ToLower(src), "data:") {
		return src, 0, nil
	}
	body, err := parseBody(src)
	if err != nil {
		return src, 0, err
	}

	count := 0
	for _, n := range collect(body, byTag("img", "video", "source")) {
		value, ok := getAttr(n, "src")
		if !ok || !IsDataURL(value) {
			continue
		}
		replacement, err := replace(InlineMedia{Index: count, Tag: n.Data, Src: value})
		if err != nil {
			return src, count, err
		}
		setAttr(n, "src", replacement)
		count++
	}
	if count == 0 {
		return src, 0, nil
	}
	return renderChildren(body), count, nil
}

// HasInlineMedia reports whether src still embeds any data: media.
func HasInlineMedia(src string) bool {
	if !strings.Contains(strings.ToLower(src), "data:") {
		return false
	}
	body, err := parseBody(src)
	if err != nil {
		return false
	}
	return len(collect(body, func(n *html.Node) bool {
		if n.Data != "img" && n.Data != "video" && n.Data != "source" {
			return false
		}
		value, _ := getAttr(n, "src")
		return IsDataURL(value)
	})) > 0
}
