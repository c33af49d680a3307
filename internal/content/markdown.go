package content

import (
	"bytes"
	htmlstd "html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	// tables are left out: the editor has no table format and would flatten them
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	videoLinePattern = regexp.MustCompile(`^\s*<?((?:https?://)?[^\s]+)>?\s*$`)
)

// VideoFrameHTML is the stored markup of an embedded YouTube player.
func VideoFrameHTML(embedURL string) string {
	return `<iframe class="ql-video" src="` + htmlstd.EscapeString(embedURL) + `" frameborder="0" allowfullscreen="true"></iframe>`
}

// FromMarkdown converts a markdown document into stored rich content. Lines
// holding nothing but a YouTube link become video embeds. The result has
// been cleaned and sanitized.
func FromMarkdown(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(applyVideoEmbeds(markdown)), &buf); err != nil {
		return "", err
	}
	return Sanitize(CleanupHTML(buf.String())), nil
}

func applyVideoEmbeds(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return markdown
	}

	lines := strings.Split(markdown, "\n")
	fenceMarker := ""
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if marker := detectFenceMarker(trimmed); marker != "" {
			switch {
			case fenceMarker == "":
				fenceMarker = marker
			case strings.HasPrefix(trimmed, fenceMarker):
				fenceMarker = ""
			}
			continue
		}
		if fenceMarker != "" || trimmed == "" || strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") {
			continue
		}

		match := videoLinePattern.FindStringSubmatch(trimmed)
		if match == nil {
			continue
		}
		embedURL, err := NormalizeYoutubeURL(match[1])
		if err != nil {
			continue
		}
		lines[i] = "\n" + VideoFrameHTML(embedURL) + "\n"
	}
	return strings.Join(lines, "\n")
}

func detectFenceMarker(line string) string {
	if strings.HasPrefix(line, "```") {
		return "```"
	}
	if strings.HasPrefix(line, "~~~") {
		return "~~~"
	}
	return ""
}
