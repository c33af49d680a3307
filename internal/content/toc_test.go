package content

import (
	"strings"
	"testing"
)

func TestAnnotateHeadings(t *testing.T) {
	out, toc := AnnotateHeadings(`<h2>Introdução</h2><p>a</p><h3>Introdução</h3><h4> </h4><h2>!!!</h2><h5>ignorado</h5>`)

	if len(toc) != 3 {
		t.Fatalf("expected 3 toc items, got %+v", toc)
	}
	wantIDs := []string{"introducao", "introducao-1", "secao"}
	for i, id := range wantIDs {
		if toc[i].ID != id {
			t.Fatalf("item %d: expected id %q, got %q", i, id, toc[i].ID)
		}
		if !strings.Contains(out, `id="`+id+`"`) {
			t.Fatalf("expected id %q in %s", id, out)
		}
	}
	if toc[1].Level != 3 || toc[0].Text != "Introdução" {
		t.Fatalf("unexpected toc %+v", toc)
	}
}

func TestPlainText(t *testing.T) {
	if got := PlainText(`<p>Olá <b>mundo</b></p><p>  fim </p>`); got != "Olá mundo fim" {
		t.Fatalf("unexpected plain text %q", got)
	}
}
