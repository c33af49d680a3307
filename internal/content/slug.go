package content

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugInvalidPattern    = regexp.MustCompile(`[^a-z0-9]+`)
	headingInvalidPattern = regexp.MustCompile(`[^a-z0-9\s-]`)
	headingSpacePattern   = regexp.MustCompile(`\s+`)
)

// foldDiacritics decomposes, drops combining marks and recomposes, so
// "Café" becomes "Cafe".
func foldDiacritics(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return folded
}

// Slugify produces a lowercase ASCII slug: diacritics folded, every run of
// characters outside [a-z0-9] collapsed to a single dash.
func Slugify(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(foldDiacritics(value)))
	return strings.Trim(slugInvalidPattern.ReplaceAllString(lowered, "-"), "-")
}

// BuildPostSlugID joins the post slug (or the slugified title) with its id.
func BuildPostSlugID(title, id, slug string) string {
	base := strings.TrimSpace(slug)
	if base == "" {
		base = Slugify(title)
	}
	if base == "" {
		return id
	}
	return base + "-" + id
}

// ExtractIDFromSlugID returns the segment after the last dash. Ids never
// contain dashes.
func ExtractIDFromSlugID(slugID string) string {
	trimmed := strings.TrimSpace(slugID)
	if idx := strings.LastIndex(trimmed, "-"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// HeadingSlug builds an anchor id from heading text. Unlike Slugify it keeps
// existing dashes and only collapses whitespace.
func HeadingSlug(text string) string {
	lowered := strings.ToLower(foldDiacritics(text))
	stripped := strings.TrimSpace(headingInvalidPattern.ReplaceAllString(lowered, ""))
	return headingSpacePattern.ReplaceAllString(stripped, "-")
}
