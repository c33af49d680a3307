package editor

import (
	htmlstd "html"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Marks are inline formats carried by a text run.
type Marks struct {
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty"`
	Strike    bool   `json:"strike,omitempty"`
	Code      bool   `json:"code,omitempty"`
	Link      string `json:"link,omitempty"`
	// Target is the anchor target of a link; only "_blank" is kept.
	Target string `json:"target,omitempty"`
	// Button holds the href of a button-link run.
	Button string `json:"button,omitempty"`
}

// Block is the line format attached to a "\n" op.
type Block struct {
	Header int    `json:"header,omitempty"`
	List   string `json:"list,omitempty"`
	Indent int    `json:"indent,omitempty"`
	Quote  bool   `json:"blockquote,omitempty"`
	// Code is the language of a code-block line, "plain" when unknown.
	Code string `json:"code-block,omitempty"`
}

// Op is one run of the linear document. Exactly one of Text or Embed is set;
// a newline is always its own op.
type Op struct {
	Text  string `json:"insert,omitempty"`
	Marks Marks  `json:"attributes"`
	Block Block  `json:"block"`
	Embed Embed  `json:"-"`
}

func (o Op) Len() int {
	if o.Embed != nil {
		return 1
	}
	return utf8.RuneCountInString(o.Text)
}

func (o Op) isNewline() bool {
	return o.Embed == nil && o.Text == "\n"
}

// Document is a linear sequence of text runs and embeds. Positions count
// runes; every embed has length 1.
type Document struct {
	ops []Op
}

func (d *Document) Ops() []Op {
	return slices.Clone(d.ops)
}

func (d *Document) Length() int {
	total := 0
	for _, op := range d.ops {
		total += op.Len()
	}
	return total
}

func (d *Document) clone() *Document {
	return &Document{ops: slices.Clone(d.ops)}
}

// splitAt makes index fall on an op boundary and returns that op position.
func (d *Document) splitAt(index int) int {
	if index <= 0 {
		return 0
	}
	pos := 0
	for i, op := range d.ops {
		if index == pos {
			return i
		}
		l := op.Len()
		if index < pos+l {
			runes := []rune(op.Text)
			left, right := op, op
			left.Text = string(runes[:index-pos])
			right.Text = string(runes[index-pos:])
			d.ops = slices.Insert(slices.Delete(d.ops, i, i+1), i, left, right)
			return i + 1
		}
		pos += l
	}
	return len(d.ops)
}

// InsertText inserts text at index with marks and returns its length.
// Newlines inside text start plain paragraphs.
func (d *Document) InsertText(index int, text string, marks Marks) int {
	if text == "" {
		return 0
	}
	var ops []Op
	for i, part := range strings.Split(text, "\n") {
		if i > 0 {
			ops = append(ops, Op{Text: "\n"})
		}
		if part != "" {
			ops = append(ops, Op{Text: part, Marks: marks})
		}
	}
	pos := d.splitAt(clamp(index, 0, d.Length()))
	d.ops = slices.Insert(d.ops, pos, ops...)
	d.compact()
	return utf8.RuneCountInString(text)
}

// InsertEmbed inserts embed at index. Embeds always have length 1.
func (d *Document) InsertEmbed(index int, embed Embed) int {
	pos := d.splitAt(clamp(index, 0, d.Length()))
	d.ops = slices.Insert(d.ops, pos, Op{Embed: embed})
	return 1
}

// compact merges adjacent text runs with identical marks and drops empty ones.
func (d *Document) compact() {
	out := d.ops[:0]
	for _, op := range d.ops {
		if op.Embed == nil && op.Text == "" {
			continue
		}
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.Embed == nil && op.Embed == nil && !last.isNewline() && !op.isNewline() && last.Marks == op.Marks {
				last.Text += op.Text
				continue
			}
		}
		out = append(out, op)
	}
	d.ops = out
}

// Embeds returns the embeds in document order.
func (d *Document) Embeds() []Embed {
	var out []Embed
	for _, op := range d.ops {
		if op.Embed != nil {
			out = append(out, op.Embed)
		}
	}
	return out
}

// HTML renders the document to editor markup. List lines with an indent
// become nested lists; consecutive code lines share one <pre>.
func (d *Document) HTML() string {
	var b strings.Builder
	var line []Op
	var lists []string
	openCode := ""

	closeLists := func(depth int) {
		for len(lists) > depth {
			b.WriteString("</li></" + lists[len(lists)-1] + ">")
			lists = lists[:len(lists)-1]
		}
	}
	closeCode := func() {
		if openCode != "" {
			b.WriteString("</code></pre>")
			openCode = ""
		}
	}
	writeListItem := func(tag string, indent int, inner string) {
		closeLists(indent + 1)
		if len(lists) == indent+1 && lists[indent] != tag {
			closeLists(indent)
		}
		if len(lists) == indent+1 {
			b.WriteString("</li>")
		}
		for len(lists) < indent+1 {
			level := tag
			if len(lists) < indent {
				level = "ul"
			}
			b.WriteString("<" + level + ">")
			lists = append(lists, level)
			if len(lists) < indent+1 {
				b.WriteString("<li>")
			}
		}
		b.WriteString("<li>" + inner)
	}
	writeLine := func(block Block) {
		inner := renderInline(line)
		line = nil

		if block.Code != "" {
			closeLists(0)
			if openCode != block.Code {
				closeCode()
				if block.Code == "plain" {
					b.WriteString("<pre><code>")
				} else {
					b.WriteString(`<pre><code class="language-` + htmlstd.EscapeString(block.Code) + `">`)
				}
				openCode = block.Code
			}
			b.WriteString(inner + "\n")
			return
		}
		closeCode()

		if inner == "" {
			inner = "<br>"
		}
		if block.List != "" {
			tag := "ul"
			if block.List == "ordered" {
				tag = "ol"
			}
			writeListItem(tag, max(block.Indent, 0), inner)
			return
		}
		closeLists(0)

		switch {
		case block.Header > 0 && block.Header <= 6:
			tag := "h" + strconv.Itoa(block.Header)
			b.WriteString("<" + tag + ">" + inner + "</" + tag + ">")
		case block.Quote:
			b.WriteString("<blockquote>" + inner + "</blockquote>")
		default:
			b.WriteString("<p>" + inner + "</p>")
		}
	}

	for _, op := range d.ops {
		switch {
		case op.Embed != nil:
			if len(line) > 0 {
				writeLine(Block{})
			}
			closeLists(0)
			closeCode()
			b.WriteString(op.Embed.HTML())
		case op.isNewline():
			writeLine(op.Block)
		default:
			line = append(line, op)
		}
	}
	if len(line) > 0 {
		writeLine(Block{})
	}
	closeLists(0)
	closeCode()
	return b.String()
}

func renderInline(ops []Op) string {
	var b strings.Builder
	for _, op := range ops {
		text := htmlstd.EscapeString(op.Text)
		m := op.Marks
		if m.Code {
			text = "<code>" + text + "</code>"
		}
		if m.Strike {
			text = "<s>" + text + "</s>"
		}
		if m.Underline {
			text = "<u>" + text + "</u>"
		}
		if m.Italic {
			text = "<em>" + text + "</em>"
		}
		if m.Bold {
			text = "<strong>" + text + "</strong>"
		}
		switch {
		case m.Button != "":
			text = `<a class="ql-button" role="button" href="` + htmlstd.EscapeString(m.Button) + `">` + text + `</a>`
		case m.Link != "" && m.Target == "_blank":
			text = `<a href="` + htmlstd.EscapeString(m.Link) + `" target="_blank" rel="noopener noreferrer">` + text + `</a>`
		case m.Link != "":
			text = `<a href="` + htmlstd.EscapeString(m.Link) + `">` + text + `</a>`
		}
		b.WriteString(text)
	}
	return b.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
