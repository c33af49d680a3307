package editor

import (
	htmlstd "html"
	"strings"

	"github.com/clinicblog/internal/content"
)

// Embed is a block item of length 1 inside a Document.
type Embed interface {
	Format() string
	HTML() string
}

// FigureImage is an image with optional caption and source credit.
type FigureImage struct {
	Src     string `json:"src"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
	Source  string `json:"source,omitempty"`
	// Link wraps the image in an anchor.
	Link string `json:"link,omitempty"`
}

func (FigureImage) Format() string { return FormatFigureImage }

// Figcaption returns the caption line, empty when there is nothing to credit.
func (f FigureImage) Figcaption() string {
	caption := strings.TrimSpace(f.Caption)
	source := strings.TrimSpace(f.Source)
	switch {
	case caption != "" && source != "":
		return "Legenda: " + caption + " - Fonte: " + source
	case caption != "":
		return "Legenda: " + caption
	case source != "":
		return "Fonte: " + source
	default:
		return ""
	}
}

func (f FigureImage) HTML() string {
	var b strings.Builder
	b.WriteString(`<figure class="ql-figure-image"`)
	writeAttr(&b, "data-caption", f.Caption)
	writeAttr(&b, "data-source", f.Source)
	writeAttr(&b, "data-alt", f.Alt)
	b.WriteString(">")
	if f.Link != "" {
		b.WriteString(`<a href="` + htmlstd.EscapeString(f.Link) + `">`)
	}
	b.WriteString(`<img src="`)
	b.WriteString(htmlstd.EscapeString(f.Src))
	b.WriteString(`" alt="`)
	b.WriteString(htmlstd.EscapeString(f.Alt))
	b.WriteString(`">`)
	if f.Link != "" {
		b.WriteString("</a>")
	}
	if caption := f.Figcaption(); caption != "" {
		b.WriteString("<figcaption>")
		b.WriteString(htmlstd.EscapeString(caption))
		b.WriteString("</figcaption>")
	}
	b.WriteString("</figure>")
	return b.String()
}

// ButtonLink is a call-to-action anchor. It is an inline format over the
// label text rather than an embed.
type ButtonLink struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

func (b ButtonLink) HTML() string {
	return `<a class="ql-button" role="button" href="` + htmlstd.EscapeString(b.Href) + `">` + htmlstd.EscapeString(b.Text) + `</a>`
}

// Spacer marks an intentional blank line.
type Spacer struct{}

func (Spacer) Format() string { return FormatSpacer }

func (Spacer) HTML() string {
	return `<p class="ql-spacer" data-spacer="true"><br></p>`
}

// Divider is a horizontal rule.
type Divider struct{}

func (Divider) Format() string { return FormatDivider }

func (Divider) HTML() string { return "<hr>" }

// Video is a YouTube embed or, before upload, an inline data: video.
type Video struct {
	Src string `json:"src"`
}

func (Video) Format() string { return FormatVideo }

func (v Video) HTML() string {
	if content.IsDataURL(v.Src) {
		return `<video controls src="` + htmlstd.EscapeString(v.Src) + `"></video>`
	}
	return content.VideoFrameHTML(v.Src)
}

func writeAttr(b *strings.Builder, key, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	b.WriteString(" ")
	b.WriteString(key)
	b.WriteString(`="`)
	b.WriteString(htmlstd.EscapeString(value))
	b.WriteString(`"`)
}
