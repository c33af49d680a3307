package content

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

const (
	iframeLoading        = "lazy"
	iframeReferrerPolicy = "strict-origin-when-cross-origin"
	blankRel             = "noopener noreferrer"
)

var (
	iframeSrcPattern = regexp.MustCompile(`(?i)^https?://(?:www\.)?(?:m\.)?(?:youtube\.com|youtube-nocookie\.com)/\S*embed/`)
	richPolicy       = buildRichPolicy()
)

// buildRichPolicy 构造富文本白名单：UGC 基础之上放开 figure/iframe/video 与编辑器自定义块的属性。
func buildRichPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(false)
	policy.AllowURLSchemes("http", "https", "mailto", "tel")
	policy.AllowElements("figure", "figcaption", "iframe", "video", "source")
	policy.AllowNoAttrs().OnElements("a", "figure", "figcaption", "video")
	policy.AllowAttrs("class", "role", "title", "data-caption", "data-source", "data-alt", "data-spacer").Globally()
	policy.AllowAttrs("href", "target", "rel").OnElements("a")
	policy.AllowAttrs("src", "alt", "width", "height", "loading", "decoding").OnElements("img")
	policy.AllowAttrs("src", "controls", "poster", "preload", "playsinline", "muted", "loop", "width", "height").OnElements("video")
	policy.AllowAttrs("src", "type").OnElements("source")
	policy.AllowAttrs("src").Matching(iframeSrcPattern).OnElements("iframe")
	policy.AllowAttrs("allow", "allowfullscreen", "frameborder", "loading", "referrerpolicy", "width", "height").OnElements("iframe")
	return policy
}

// Sanitize reduces arbitrary HTML to the safe rich-text surface. It is
// idempotent: Sanitize(Sanitize(h)) == Sanitize(h).
func Sanitize(src string) string {
	if src == "" {
		return ""
	}

	body, err := parseBody(src)
	if err != nil {
		return ""
	}
	dropUnsafeMedia(body)

	cleaned := richPolicy.Sanitize(renderChildren(body))

	body, err = parseBody(cleaned)
	if err != nil {
		return ""
	}
	dropUnsafeMedia(body)
	enforceLinkRules(body)
	enforceFrameRules(body)
	return renderChildren(body)
}

// dropUnsafeMedia removes media elements whose source would render broken
// or execute; removing only the attribute would leave an empty frame behind.
func dropUnsafeMedia(root *html.Node) {
	for _, n := range collect(root, byTag("img", "video", "source", "iframe")) {
		src, ok := getAttr(n, "src")
		switch n.Data {
		case "iframe":
			if !ok || !IsAllowedIframeSrc(src) {
				detach(n)
			}
		case "video":
			// <video><source src=...></video> carries no src of its own
			if ok && !IsSafeMediaURL(src) {
				detach(n)
			}
		default:
			if !ok || !IsSafeMediaURL(src) {
				detach(n)
			}
		}
	}
}

func enforceLinkRules(root *html.Node) {
	for _, a := range collect(root, byTag("a")) {
		if href, ok := getAttr(a, "href"); ok {
			if IsSafeLinkURL(href) {
				setAttr(a, "href", strings.TrimSpace(href))
			} else {
				removeAttr(a, "href")
			}
		}

		if target, _ := getAttr(a, "target"); target == "_blank" {
			setAttr(a, "rel", blankRel)
			continue
		}
		removeAttr(a, "target")
		removeAttr(a, "rel")
	}
}

func enforceFrameRules(root *html.Node) {
	for _, frame := range collect(root, byTag("iframe")) {
		setAttr(frame, "loading", iframeLoading)
		setAttr(frame, "allowfullscreen", "true")
		setAttr(frame, "referrerpolicy", iframeReferrerPolicy)
	}
}
