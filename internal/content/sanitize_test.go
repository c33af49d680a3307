package content

import (
	"strings"
	"testing"
)

func TestSanitizeStripsUnsafeLinks(t *testing.T) {
	out := Sanitize(`<p><a href="javascript:alert(1)">clique</a></p>`)
	if strings.Contains(out, "href") {
		t.Fatalf("expected href to be stripped, got %s", out)
	}
	if !strings.Contains(out, "clique</a>") {
		t.Fatalf("expected anchor text to survive, got %s", out)
	}
}

func TestSanitizeLinkRules(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
		absent   []string
	}{
		{
			name:     "path relative",
			input:    `<a href="/contato">contato</a>`,
			contains: []string{`href="/contato"`},
		},
		{
			name:     "fragment",
			input:    `<a href="#agenda">agenda</a>`,
			contains: []string{`href="#agenda"`},
		},
		{
			name:     "tel",
			input:    `<a href="tel:+5511999999999">ligar</a>`,
			contains: []string{`href="tel:+5511999999999"`},
		},
		{
			name:   "bare relative",
			input:  `<a href="pagina.html">x</a>`,
			absent: []string{"href"},
		},
		{
			name:     "blank target gets rel",
			input:    `<a href="https://example.com" target="_blank" rel="opener">x</a>`,
			contains: []string{`target="_blank"`, `rel="noopener noreferrer"`},
		},
		{
			name:   "other targets dropped",
			input:  `<a href="https://example.com" target="_self" rel="nofollow">x</a>`,
			absent: []string{"target", "rel="},
		},
		{
			name:   "inline style and handlers",
			input:  `<p style="color:red" onclick="alert(1)">texto</p>`,
			absent: []string{"style", "onclick"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Sanitize(tt.input)
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Fatalf("expected %q in %s", want, out)
				}
			}
			for _, unwanted := range tt.absent {
				if strings.Contains(out, unwanted) {
					t.Fatalf("did not expect %q in %s", unwanted, out)
				}
			}
		})
	}
}

func TestSanitizeRemovesUnsafeMedia(t *testing.T) {
	tests := []struct {
		name  string
		input string
		tag   string
	}{
		{name: "javascript image", input: `<p>a<img src="javascript:alert(1)">b</p>`, tag: "<img"},
		{name: "data image", input: `<p><img src="data:image/png;base64,AAAA"></p>`, tag: "<img"},
		{name: "image without src", input: `<p><img alt="x"></p>`, tag: "<img"},
		{name: "foreign iframe", input: `<iframe src="https://evil.example/x"></iframe>`, tag: "<iframe"},
		{name: "youtube non embed", input: `<iframe src="https://www.youtube.com/watch?v=abc"></iframe>`, tag: "<iframe"},
		{name: "ftp video", input: `<video src="ftp://example.com/a.mp4"></video>`, tag: "<video"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Sanitize(tt.input)
			if strings.Contains(out, tt.tag) {
				t.Fatalf("expected %s to be removed, got %s", tt.tag, out)
			}
		})
	}
}

func TestSanitizeForcesIframeAttributes(t *testing.T) {
	out := Sanitize(`<iframe src="https://www.youtube-nocookie.com/embed/abc123" referrerpolicy="unsafe-url"></iframe>`)
	for _, want := range []string{
		`src="https://www.youtube-nocookie.com/embed/abc123"`,
		`loading="lazy"`,
		`allowfullscreen="true"`,
		`referrerpolicy="strict-origin-when-cross-origin"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %s", want, out)
		}
	}
}

func TestSanitizeKeepsEditorEmbeds(t *testing.T) {
	input := `<figure class="ql-figure-image" data-caption="Consultório" data-source="Clínica" data-alt="sala">` +
		`<img src="https://cdn.example.com/blog/sala.jpg" alt="sala"><figcaption>Legenda: Consultório - Fonte: Clínica</figcaption></figure>` +
		`<p><a class="ql-button" role="button" href="https://wa.me/5500000000000">Agende</a></p>` +
		SpacerHTML

	out := Sanitize(input)
	for _, want := range []string{
		`class="ql-figure-image"`,
		`data-caption="Consultório"`,
		`data-source="Clínica"`,
		`<figcaption>`,
		`class="ql-button"`,
		`role="button"`,
		`data-spacer="true"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %s", want, out)
		}
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"texto solto",
		`<p>Olá <strong>mundo</strong> &amp; cia</p>`,
		`<p><a href="javascript:alert(1)" target="_blank">x</a><img src="/a.png" onerror="x()"></p>`,
		`<h2 id="intro" style="x">Intro</h2><ul><li>um</li><li>dois</li></ul>`,
		`<iframe src="https://youtube.com/embed/abc?rel=0&amp;start=3"></iframe><p><br></p>`,
		`<video controls src="https://cdn.example.com/v.mp4"></video>`,
		`<p><figure><img src="https://cdn.example.com/a.jpg"></figure></p>`,
		`<table><tr><td>a</td></tr></table><script>alert(1)</script>`,
		`<a href="mailto:contato@example.com">mail</a><a href=" /espaco ">x</a>`,
		SpacerHTML,
	}

	for _, input := range inputs {
		once := Sanitize(input)
		twice := Sanitize(once)
		if once != twice {
			t.Fatalf("sanitize not idempotent for %q:\nonce:  %s\ntwice: %s", input, once, twice)
		}
	}
}
