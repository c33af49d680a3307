package editor

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/clinicblog/internal/content"
)

// ParseDocument loads stored HTML into the linear document model.
func ParseDocument(src string) (*Document, error) {
	doc := &Document{}
	if strings.TrimSpace(src) == "" {
		return doc, nil
	}

	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), context)
	if err != nil {
		return nil, err
	}

	p := &docParser{doc: doc}
	for _, n := range nodes {
		p.block(n, Block{})
	}
	p.endLine(Block{})
	doc.compact()
	return doc, nil
}

type docParser struct {
	doc     *Document
	pending bool
}

func (p *docParser) text(value string, marks Marks) {
	value = strings.ReplaceAll(value, "\n", " ")
	if value == "" {
		return
	}
	p.doc.ops = append(p.doc.ops, Op{Text: value, Marks: marks})
	p.pending = true
}

func (p *docParser) embed(e Embed) {
	p.endLine(Block{})
	p.doc.ops = append(p.doc.ops, Op{Embed: e})
}

// endLine terminates loose inline content collected so far.
func (p *docParser) endLine(block Block) {
	if p.pending {
		p.newline(block)
	}
}

func (p *docParser) newline(block Block) {
	p.doc.ops = append(p.doc.ops, Op{Text: "\n", Block: block})
	p.pending = false
}

// closeBlock ends a block element. A block that only held an embed needs no
// line of its own; a block with nothing at all stays an empty line.
func (p *docParser) closeBlock(start int, block Block) {
	if p.pending || len(p.doc.ops) == start {
		p.newline(block)
	}
}

func (p *docParser) block(n *html.Node, block Block) {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) != "" {
			p.text(n.Data, Marks{})
		}
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.Data {
	case "p":
		p.endLine(Block{})
		if isSpacerNode(n) {
			p.embed(Spacer{})
			return
		}
		start := len(p.doc.ops)
		p.inlineChildren(n, Marks{})
		p.closeBlock(start, block)
	case "h1", "h2", "h3", "h4", "h5", "h6":
		p.endLine(Block{})
		level, _ := strconv.Atoi(n.Data[1:])
		start := len(p.doc.ops)
		p.inlineChildren(n, Marks{})
		p.closeBlock(start, Block{Header: level})
	case "blockquote":
		p.endLine(Block{})
		quote := Block{Quote: true}
		if hasBlockChildren(n) {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				p.block(c, quote)
			}
			p.endLine(quote)
			return
		}
		start := len(p.doc.ops)
		p.inlineChildren(n, Marks{})
		p.closeBlock(start, quote)
	case "ul", "ol":
		p.endLine(Block{})
		p.list(n, 0)
	case "pre":
		p.endLine(Block{})
		p.codeBlock(n)
	case "hr":
		p.embed(Divider{})
	case "div", "section", "article", "header", "footer", "main":
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			p.block(c, block)
		}
		p.endLine(block)
	case "br":
		if p.pending {
			p.newline(Block{})
		} else {
			p.embed(Spacer{})
		}
	default:
		if e, ok := embedFromNode(n); ok {
			p.embed(e)
			return
		}
		if isMediaTag(n.Data) {
			return
		}
		p.inline(n, Marks{})
	}
}

// list walks one list level. Nested lists become lines with a deeper indent.
func (p *docParser) list(n *html.Node, indent int) {
	kind := "bullet"
	if n.Data == "ol" {
		kind = "ordered"
	}
	block := Block{List: kind, Indent: indent}
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		start := len(p.doc.ops)
		nested := false
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol"):
				if !nested {
					p.trimTrailingSpace()
					p.closeBlock(start, block)
				} else {
					p.endLine(block)
				}
				p.list(c, indent+1)
				nested = true
			case c.Type == html.TextNode && !p.pending && strings.TrimSpace(c.Data) == "":
			case c.Type == html.ElementNode && c.Data == "p":
				p.inlineChildren(c, Marks{})
			default:
				p.inline(c, Marks{})
			}
		}
		if nested {
			p.trimTrailingSpace()
			p.endLine(block)
			continue
		}
		p.trimTrailingSpace()
		p.closeBlock(start, block)
	}
}

// codeBlock keeps the text of a <pre> line by line.
func (p *docParser) codeBlock(n *html.Node) {
	block := Block{Code: "plain"}
	if code := firstChild(n, "code"); code != nil {
		for _, class := range strings.Fields(attr(code, "class")) {
			if lang, ok := strings.CutPrefix(class, "language-"); ok && lang != "" {
				block.Code = lang
			}
		}
	}
	text := strings.TrimSuffix(textOf(n), "\n")
	for _, line := range strings.Split(text, "\n") {
		if line != "" {
			p.doc.ops = append(p.doc.ops, Op{Text: line})
		}
		p.newline(block)
	}
}

// trimTrailingSpace drops the whitespace markup indentation leaves at the end
// of a line.
func (p *docParser) trimTrailingSpace() {
	for n := len(p.doc.ops); n > 0; n = len(p.doc.ops) {
		last := &p.doc.ops[n-1]
		if last.Embed != nil || last.isNewline() {
			return
		}
		last.Text = strings.TrimRight(last.Text, " ")
		if last.Text != "" {
			return
		}
		p.doc.ops = p.doc.ops[:n-1]
	}
}

func (p *docParser) inlineChildren(n *html.Node, marks Marks) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.inline(c, marks)
	}
}

func (p *docParser) inline(n *html.Node, marks Marks) {
	switch n.Type {
	case html.TextNode:
		p.text(n.Data, marks)
		return
	case html.ElementNode:
	default:
		return
	}

	if e, ok := embedFromNode(n); ok {
		if fig, isFig := e.(FigureImage); isFig && fig.Link == "" && marks.Link != "" {
			fig.Link = marks.Link
			e = fig
		}
		p.embed(e)
		return
	}

	switch n.Data {
	case "code":
		marks.Code = true
	case "strong", "b":
		marks.Bold = true
	case "em", "i":
		marks.Italic = true
	case "u":
		marks.Underline = true
	case "s", "strike", "del":
		marks.Strike = true
	case "a":
		href := attr(n, "href")
		if hasClass(n, "ql-button") {
			marks.Button = href
		} else if href != "" {
			marks.Link = href
			marks.Target = ""
			if attr(n, "target") == "_blank" {
				marks.Target = "_blank"
			}
		}
	case "br":
		if p.pending {
			p.newline(Block{})
		}
		return
	case "img", "video", "iframe", "source", "figure", "script", "style":
		return
	}
	p.inlineChildren(n, marks)
}

// embedFromNode recognises the block embeds in stored markup.
func embedFromNode(n *html.Node) (Embed, bool) {
	switch n.Data {
	case "figure":
		img := firstChild(n, "img")
		if img == nil || attr(img, "src") == "" {
			return nil, false
		}
		alt := attr(n, "data-alt")
		if alt == "" {
			alt = attr(img, "alt")
		}
		fig := FigureImage{
			Src:     attr(img, "src"),
			Alt:     alt,
			Caption: attr(n, "data-caption"),
			Source:  attr(n, "data-source"),
		}
		if a := img.Parent; a != nil && a.Type == html.ElementNode && a.Data == "a" {
			fig.Link = attr(a, "href")
		}
		return fig, true
	case "img":
		if src := attr(n, "src"); src != "" {
			return FigureImage{Src: src, Alt: attr(n, "alt")}, true
		}
	case "iframe":
		if src := attr(n, "src"); src != "" {
			return Video{Src: src}, true
		}
	case "video":
		src := attr(n, "src")
		if src == "" {
			if source := firstChild(n, "source"); source != nil {
				src = attr(source, "src")
			}
		}
		if src != "" {
			return Video{Src: src}, true
		}
	case "p":
		if isSpacerNode(n) {
			return Spacer{}, true
		}
	}
	return nil, false
}

func isSpacerNode(n *html.Node) bool {
	if n.Data != "p" {
		return false
	}
	if _, ok := lookupAttr(n, content.SpacerAttr); ok {
		return true
	}
	return hasClass(n, content.SpacerClass)
}

func isMediaTag(tag string) bool {
	switch tag {
	case "img", "video", "iframe", "source", "figure", "script", "style":
		return true
	}
	return false
}

func hasBlockChildren(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			switch c.Data {
			case "p", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "figure", "div", "pre", "hr":
				return true
			}
		}
	}
	return false
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textOf(c))
	}
	return b.String()
}

func firstChild(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := firstChild(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attr(n *html.Node, key string) string {
	val, _ := lookupAttr(n, key)
	return strings.TrimSpace(val)
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
