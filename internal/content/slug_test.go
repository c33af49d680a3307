package content

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "Café com Leite!", want: "cafe-com-leite"},
		{input: "  Saúde   da   Mulher  ", want: "saude-da-mulher"},
		{input: "Pré-natal: o que esperar?", want: "pre-natal-o-que-esperar"},
		{input: "!!!", want: ""},
		{input: "", want: ""},
	}

	for _, tt := range tests {
		if got := Slugify(tt.input); got != tt.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBuildPostSlugID(t *testing.T) {
	if got := BuildPostSlugID("Café com Leite!", "abc123", ""); got != "cafe-com-leite-abc123" {
		t.Fatalf("unexpected slug id %q", got)
	}
	if got := BuildPostSlugID("Ignorado", "abc123", "meu-slug"); got != "meu-slug-abc123" {
		t.Fatalf("expected explicit slug to win, got %q", got)
	}
	if got := BuildPostSlugID("???", "abc123", ""); got != "abc123" {
		t.Fatalf("expected bare id for empty slug, got %q", got)
	}
}

func TestExtractIDFromSlugID(t *testing.T) {
	tests := map[string]string{
		"cafe-com-leite-abc123": "abc123",
		"abc123":                "abc123",
		"meu-slug-":             "",
	}
	for input, want := range tests {
		if got := ExtractIDFromSlugID(input); got != want {
			t.Fatalf("ExtractIDFromSlugID(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestHeadingSlug(t *testing.T) {
	if got := HeadingSlug("Introdução ao Pré-natal"); got != "introducao-ao-pre-natal" {
		t.Fatalf("unexpected heading slug %q", got)
	}
}
