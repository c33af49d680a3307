package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clinicblog/internal/db"
	"github.com/clinicblog/internal/editor"
	"github.com/clinicblog/internal/logging"
	"github.com/clinicblog/internal/media"
	"github.com/clinicblog/internal/service"
	"github.com/clinicblog/internal/store/gormstore"
)

const authorID = "author1"

func newTestWorkspace(t *testing.T) (*Workspace, *service.PostService) {
	t.Helper()
	dsn := fmt.Sprintf("file:admin-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	registry := editor.NewRegistry()
	if err := registry.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	gateway := media.NewGateway(media.NewMemoryStorage(), logging.Discard())
	posts := service.NewPostService(gormstore.New(gdb), gateway, logging.Discard())

	ws := NewWorkspace(Options{
		AuthorID:       authorID,
		Posts:          posts,
		Registry:       registry,
		ButtonDefaults: editor.ButtonDefaults{Label: "Agende", URL: "https://wa.me/5500000000000"},
		Logger:         logging.Discard(),
	})
	return ws, posts
}

func savePost(t *testing.T, posts *service.PostService, in service.SaveInput) string {
	t.Helper()
	in.AuthorID = authorID
	result, err := posts.Save(context.Background(), in)
	if err != nil {
		t.Fatalf("save %q: %v", in.Title, err)
	}
	return result.ID
}

func publishedInput(title string) service.SaveInput {
	return service.SaveInput{
		TargetStatus:  db.StatusPublished,
		Title:         title,
		Summary:       "Resumo",
		Content:       "<p>Texto</p>",
		FeaturedImage: "https://cdn.example/capa.jpg",
	}
}

func ptr(s string) *string { return &s }

func TestSaveDraftClearsFormAndSwitchesTab(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	ctx := context.Background()

	if err := ws.NewPost(); err != nil {
		t.Fatalf("new post: %v", err)
	}
	if err := ws.UpdateForm(FormInput{Title: ptr("Pré-natal")}); err != nil {
		t.Fatalf("update form: %v", err)
	}
	result, err := ws.Save(ctx, db.StatusDraft)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	view := ws.Snapshot()
	if view.Form != nil {
		t.Fatalf("expected form to be closed after save")
	}
	if view.Tab != service.TabDrafts {
		t.Fatalf("expected drafts tab, got %s", view.Tab)
	}
	if len(view.Posts) != 1 || view.Posts[0].ID != result.ID {
		t.Fatalf("expected the saved draft in view, got %+v", view.Posts)
	}
	if view.Drafts != 1 || view.Published != 0 {
		t.Fatalf("unexpected counts %d/%d", view.Published, view.Drafts)
	}
	if view.Notice != "Rascunho salvo." {
		t.Fatalf("unexpected notice %q", view.Notice)
	}
	if ws.Snapshot().Notice != "" {
		t.Fatalf("expected notice to be consumed")
	}
}

func TestSaveFailureKeepsForm(t *testing.T) {
	ws, _ := newTestWorkspace(t)

	_ = ws.NewPost()
	_ = ws.UpdateForm(FormInput{Title: ptr("Incompleto"), Content: ptr("<p>Rascunho</p>")})

	_, err := ws.Save(context.Background(), db.StatusPublished)
	var verr *service.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	view := ws.Snapshot()
	if view.Form == nil || view.Form.Title != "Incompleto" {
		t.Fatalf("expected form to be kept, got %+v", view.Form)
	}
	if !strings.Contains(view.Form.Content, "Rascunho") {
		t.Fatalf("expected content to be kept, got %q", view.Form.Content)
	}
	if view.Tab != service.TabPublished {
		t.Fatalf("expected tab to stay on published, got %s", view.Tab)
	}
}

func TestSetTabPrunesSelection(t *testing.T) {
	ws, posts := newTestWorkspace(t)
	ctx := context.Background()

	published := savePost(t, posts, publishedInput("Publicado"))
	savePost(t, posts, service.SaveInput{TargetStatus: db.StatusDraft, Title: "Rascunho"})

	if err := ws.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := ws.SelectAll(true); err != nil {
		t.Fatalf("select all: %v", err)
	}
	if got := ws.Selected(); len(got) != 1 || got[0] != published {
		t.Fatalf("expected only the published post selected, got %v", got)
	}

	if err := ws.SetTab(service.TabDrafts); err != nil {
		t.Fatalf("set tab: %v", err)
	}
	if got := ws.Selected(); len(got) != 0 {
		t.Fatalf("expected selection to be pruned, got %v", got)
	}

	// ids outside the view cannot be selected
	_ = ws.Select([]string{published}, true)
	if got := ws.Selected(); len(got) != 0 {
		t.Fatalf("expected hidden post to stay unselected, got %v", got)
	}
}

type blockingPosts struct {
	PostService
	entered chan struct{}
	release chan struct{}
}

func (b *blockingPosts) List(ctx context.Context, authorID string) ([]db.Post, error) {
	close(b.entered)
	<-b.release
	return nil, nil
}

func TestBusyRejectsConcurrentCalls(t *testing.T) {
	posts := &blockingPosts{entered: make(chan struct{}), release: make(chan struct{})}
	registry := editor.NewRegistry()
	_ = registry.Initialize()
	ws := NewWorkspace(Options{AuthorID: authorID, Posts: posts, Registry: registry, Logger: logging.Discard()})

	done := make(chan error, 1)
	go func() { done <- ws.Refresh(context.Background()) }()
	<-posts.entered

	if !ws.Busy() || !ws.Snapshot().Busy {
		t.Fatalf("expected workspace to report busy")
	}
	if err := ws.NewPost(); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if _, err := ws.BulkDelete(context.Background(), Confirmed(true)); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(posts.release)
	if err := <-done; err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := ws.NewPost(); err != nil {
		t.Fatalf("expected workspace to be free again, got %v", err)
	}
}

func TestDeclinedConfirmationLeavesPosts(t *testing.T) {
	ws, posts := newTestWorkspace(t)
	ctx := context.Background()
	id := savePost(t, posts, publishedInput("Fica"))
	_ = ws.Refresh(ctx)

	var prompts []string
	decline := ConfirmFunc(func(prompt string) bool {
		prompts = append(prompts, prompt)
		return false
	})
	if err := ws.Delete(ctx, id, decline); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	_ = ws.SelectAll(true)
	if _, err := ws.BulkDelete(ctx, decline); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if len(prompts) != 2 || !strings.Contains(prompts[1], "1 post(s)") {
		t.Fatalf("unexpected prompts %v", prompts)
	}
	if _, err := posts.Get(ctx, id); err != nil {
		t.Fatalf("expected post to survive, got %v", err)
	}
}

func TestBulkDeleteWithoutSelection(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	if _, err := ws.BulkDelete(context.Background(), Confirmed(true)); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
}

func TestBulkDeleteClosesEditedPost(t *testing.T) {
	ws, posts := newTestWorkspace(t)
	ctx := context.Background()
	first := savePost(t, posts, publishedInput("Um"))
	savePost(t, posts, publishedInput("Dois"))
	_ = ws.Refresh(ctx)

	if err := ws.EditPost(ctx, first); err != nil {
		t.Fatalf("edit: %v", err)
	}
	_ = ws.SelectAll(true)
	deleted, err := ws.BulkDelete(ctx, Confirmed(true))
	if err != nil || deleted != 2 {
		t.Fatalf("expected 2 deletions, got %d (%v)", deleted, err)
	}

	view := ws.Snapshot()
	if view.Form != nil {
		t.Fatalf("expected form of deleted post to close")
	}
	if len(view.Posts) != 0 || len(view.Selected) != 0 {
		t.Fatalf("expected empty view, got %+v", view)
	}
}

func TestPublishDraftBlockedOpensEditor(t *testing.T) {
	ws, posts := newTestWorkspace(t)
	ctx := context.Background()
	id := savePost(t, posts, service.SaveInput{TargetStatus: db.StatusDraft, Title: "Sem capa", Content: "<p>Texto</p>"})
	_ = ws.Refresh(ctx)

	err := ws.PublishDraft(ctx, id, Confirmed(true))
	var blocked *service.PublishBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected PublishBlockedError, got %v", err)
	}

	view := ws.Snapshot()
	if view.Form == nil || view.Form.EditingID != id {
		t.Fatalf("expected the draft to be opened in the editor, got %+v", view.Form)
	}
	if !strings.Contains(view.Notice, "summary") || !strings.Contains(view.Notice, "featuredImage") {
		t.Fatalf("expected missing fields in notice, got %q", view.Notice)
	}
}

func TestPublishDraftMovesPost(t *testing.T) {
	ws, posts := newTestWorkspace(t)
	ctx := context.Background()
	in := publishedInput("Pronto")
	in.TargetStatus = db.StatusDraft
	id := savePost(t, posts, in)
	_ = ws.Refresh(ctx)

	if err := ws.PublishDraft(ctx, id, Confirmed(true)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	view := ws.Snapshot()
	if view.Published != 1 || view.Drafts != 0 {
		t.Fatalf("expected post to be published, got %d/%d", view.Published, view.Drafts)
	}
}

func TestBulkPublishReportsSkipped(t *testing.T) {
	ws, posts := newTestWorkspace(t)
	ctx := context.Background()
	ready := publishedInput("Pronto")
	ready.TargetStatus = db.StatusDraft
	savePost(t, posts, ready)
	savePost(t, posts, service.SaveInput{TargetStatus: db.StatusDraft, Title: "Incompleto"})

	_ = ws.Refresh(ctx)
	_ = ws.SetTab(service.TabDrafts)
	_ = ws.SelectAll(true)

	result, err := ws.BulkPublish(ctx, Confirmed(true))
	if err != nil {
		t.Fatalf("bulk publish: %v", err)
	}
	if result.Published != 1 || result.SkippedInvalid != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	view := ws.Snapshot()
	if !strings.Contains(view.Notice, "1 rascunho(s) ignorado(s)") {
		t.Fatalf("unexpected notice %q", view.Notice)
	}
	if len(view.Posts) != 1 || len(view.Selected) != 0 {
		t.Fatalf("expected the skipped draft left unselected, got %+v", view)
	}
}

func TestModalInsertsIntoForm(t *testing.T) {
	ws, _ := newTestWorkspace(t)

	if err := ws.OpenModal(editor.KindButton); !errors.Is(err, ErrNoForm) {
		t.Fatalf("expected ErrNoForm, got %v", err)
	}

	_ = ws.NewPost()
	_ = ws.UpdateForm(FormInput{Content: ptr("<p>Olá</p>")})
	if err := ws.SetSelection(3, 0); err != nil {
		t.Fatalf("selection: %v", err)
	}
	if err := ws.OpenModal(editor.KindButton); err != nil {
		t.Fatalf("open modal: %v", err)
	}
	if view := ws.Snapshot(); !view.Modal.Open || view.Modal.Fields[editor.FieldLabel] != "Agende" {
		t.Fatalf("expected button defaults in modal, got %+v", view.Modal)
	}
	if err := ws.FillModal(map[string]string{editor.FieldLabel: "Marque já"}, nil); err != nil {
		t.Fatalf("fill modal: %v", err)
	}
	if err := ws.SubmitModal(); err != nil {
		t.Fatalf("submit modal: %v", err)
	}

	view := ws.Snapshot()
	if view.Modal.Open {
		t.Fatalf("expected modal to close")
	}
	if !strings.Contains(view.Form.Content, `class="ql-button"`) || !strings.Contains(view.Form.Content, "Marque já") {
		t.Fatalf("expected button in content, got %s", view.Form.Content)
	}
}

func TestManagerReusesWorkspace(t *testing.T) {
	registry := editor.NewRegistry()
	_ = registry.Initialize()
	m := NewManager(nil, registry, editor.ButtonDefaults{}, logging.Discard())

	a := m.For("a")
	if m.For("a") != a {
		t.Fatalf("expected the same workspace for the same author")
	}
	if m.For("b") == a {
		t.Fatalf("expected separate workspaces per author")
	}
	m.Forget("a")
	if m.For("a") == a {
		t.Fatalf("expected a fresh workspace after Forget")
	}
}

func TestDraftSaveOfPublishedPostStaysPublished(t *testing.T) {
	ws, posts := newTestWorkspace(t)
	ctx := context.Background()

	id := savePost(t, posts, publishedInput("Publicado"))
	if err := ws.EditPost(ctx, id); err != nil {
		t.Fatalf("edit post: %v", err)
	}
	if err := ws.UpdateForm(FormInput{Title: ptr("Publicado e revisado")}); err != nil {
		t.Fatalf("update form: %v", err)
	}
	result, err := ws.Save(ctx, db.StatusDraft)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if result.Status != db.StatusPublished {
		t.Fatalf("expected post to stay published, got %s", result.Status)
	}
	view := ws.Snapshot()
	if view.Tab != service.TabPublished || view.Published != 1 || view.Drafts != 0 {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestImportedMarkdownSurvivesEditing(t *testing.T) {
	ws, posts := newTestWorkspace(t)
	ctx := context.Background()

	md := "# Guia\n\n" +
		"Texto com `código` e [interno](/contato).\n\n" +
		"```go\nfmt.Println(1)\n\nreturn\n```\n\n" +
		"---\n\n" +
		"1. um\n   - aninhado\n2. dois\n\n" +
		"[![capa](https://cdn.example.com/capa.jpg)](https://example.com/galeria)\n"
	imported, err := posts.ImportMarkdown(ctx, authorID, db.StatusDraft, "Guia", "", md, "")
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	resave := func() string {
		t.Helper()
		if err := ws.EditPost(ctx, imported.ID); err != nil {
			t.Fatalf("edit post: %v", err)
		}
		if _, err := ws.Save(ctx, db.StatusDraft); err != nil {
			t.Fatalf("save: %v", err)
		}
		post, err := posts.Get(ctx, imported.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		return post.Content
	}

	first := resave()
	for _, want := range []string{
		`<pre><code class="language-go">fmt.Println(1)`,
		"<hr",
		"<ol><li>um<ul><li>aninhado</li></ul></li><li>dois</li></ol>",
		`<a href="https://example.com/galeria"><img`,
		"<code>código</code>",
		`<a href="/contato">interno</a>`,
	} {
		if !strings.Contains(first, want) {
			t.Fatalf("expected %q after editing, got %s", want, first)
		}
	}
	if second := resave(); second != first {
		t.Fatalf("expected content to be stable across edits:\nfirst:  %s\nsecond: %s", first, second)
	}
}
