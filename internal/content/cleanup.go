package content

import (
	"strings"

	"golang.org/x/net/html"
)

const (
	SpacerClass = "ql-spacer"
	SpacerAttr  = "data-spacer"
	nbsp        = "\u00a0"
)

// SpacerHTML is the canonical intentional blank line.
const SpacerHTML = `<p class="ql-spacer" data-spacer="true"><br/></p>`

var mediaTags = map[string]bool{
	"img": true, "video": true, "iframe": true, "source": true, "audio": true,
	"picture": true, "svg": true, "hr": true, "figure": true, "embed": true, "object": true,
}

var headingTags = map[string]bool{"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true}

type paragraphShape struct {
	text   string
	nbsp   bool
	media  int
	breaks int
}

func (s paragraphShape) empty() bool {
	return s.text == "" && s.media == 0
}

func inspectParagraph(p *html.Node) paragraphShape {
	var shape paragraphShape
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				if strings.Contains(c.Data, nbsp) {
					shape.nbsp = true
				}
				buf.WriteString(c.Data)
			case html.ElementNode:
				switch {
				case c.Data == "br":
					shape.breaks++
				case mediaTags[c.Data]:
					shape.media++
				default:
					walk(c)
				}
			}
		}
	}
	walk(p)
	// unicode.IsSpace treats U+00A0 as space, so the sentinel is tracked separately
	shape.text = strings.TrimSpace(buf.String())
	return shape
}

// IsSpacer reports whether n carries the intentional blank line marker.
func IsSpacer(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || n.Data != "p" {
		return false
	}
	if _, ok := getAttr(n, SpacerAttr); ok {
		return true
	}
	return hasClass(n, SpacerClass)
}

func markSpacer(p *html.Node) {
	for c := p.FirstChild; c != nil; {
		next := c.NextSibling
		p.RemoveChild(c)
		c = next
	}
	p.AppendChild(&html.Node{Type: html.ElementNode, Data: "br"})
	addClass(p, SpacerClass)
	setAttr(p, SpacerAttr, "true")
}

func unmarkSpacer(p *html.Node) {
	removeClass(p, SpacerClass)
	removeAttr(p, SpacerAttr)
}

// CleanupHTML normalizes editor output: line-break-only paragraphs become
// spacers, stray empty paragraphs are dropped (unless they hold a
// non-breaking space), and blank paragraphs directly above a heading are
// removed. The pass is idempotent.
func CleanupHTML(src string) string {
	if strings.TrimSpace(src) == "" {
		return src
	}
	body, err := parseBody(src)
	if err != nil {
		return src
	}

	for _, p := range collect(body, byTag("p")) {
		shape := inspectParagraph(p)
		switch {
		case shape.empty() && shape.breaks > 0 && !shape.nbsp:
			markSpacer(p)
		case IsSpacer(p) && shape.empty() && !shape.nbsp:
			markSpacer(p)
		case IsSpacer(p):
			unmarkSpacer(p)
		case shape.empty() && !shape.nbsp:
			detach(p)
		}
	}

	for _, heading := range collect(body, func(n *html.Node) bool { return headingTags[n.Data] }) {
		trimBlankBefore(heading)
	}
	return renderChildren(body)
}

// trimBlankBefore removes the run of blank, non-spacer paragraphs sitting
// directly above heading.
func trimBlankBefore(heading *html.Node) {
	prev := heading.PrevSibling
	for prev != nil {
		switch {
		case prev.Type == html.TextNode && strings.TrimSpace(prev.Data) == "":
			prev = prev.PrevSibling
		case prev.Type == html.ElementNode && prev.Data == "p" && !IsSpacer(prev) && isBlankParagraph(prev):
			victim := prev
			prev = prev.PrevSibling
			detach(victim)
		default:
			return
		}
	}
}

func isBlankParagraph(p *html.Node) bool {
	return inspectParagraph(p).empty()
}
