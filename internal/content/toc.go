package content

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

const headingFallbackID = "secao"

// TOCItem is one entry of a post's table of contents.
type TOCItem struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// AnnotateHeadings assigns stable anchor ids to h2-h4 headings and returns
// the table of contents in document order. Repeated titles get -1, -2 ...
func AnnotateHeadings(src string) (string, []TOCItem) {
	if strings.TrimSpace(src) == "" {
		return src, nil
	}
	body, err := parseBody(src)
	if err != nil {
		return src, nil
	}

	seen := make(map[string]int)
	var items []TOCItem
	for _, h := range collect(body, byTag("h2", "h3", "h4")) {
		text := strings.Join(strings.Fields(textContent(h)), " ")
		if text == "" {
			continue
		}
		base := HeadingSlug(text)
		if base == "" {
			base = headingFallbackID
		}
		id := base
		if n := seen[base]; n > 0 {
			id = base + "-" + strconv.Itoa(n)
		}
		seen[base]++

		setAttr(h, "id", id)
		level, _ := strconv.Atoi(strings.TrimPrefix(h.Data, "h"))
		items = append(items, TOCItem{ID: id, Text: text, Level: level})
	}
	return renderChildren(body), items
}

// PlainText flattens rich content to whitespace-collapsed text.
func PlainText(src string) string {
	body, err := parseBody(src)
	if err != nil {
		return ""
	}
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(body)
	return strings.Join(strings.Fields(buf.String()), " ")
}
