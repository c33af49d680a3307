package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/clinicblog/internal/content"
	"github.com/clinicblog/internal/db"
	"github.com/clinicblog/internal/editor"
	"github.com/clinicblog/internal/media"
	"github.com/clinicblog/internal/service"
)

var (
	ErrBusy         = errors.New("another operation is in progress")
	ErrNotConfirmed = errors.New("action was not confirmed")
	ErrNoForm       = errors.New("no post is open in the editor")
	ErrNoSelection  = errors.New("no posts selected")
)

// Confirmer asks the author to confirm a destructive or bulk action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Confirmed answers every prompt with ok. HTTP handlers use it with the
// confirm flag sent by the client.
func Confirmed(ok bool) Confirmer {
	return ConfirmFunc(func(string) bool { return ok })
}

// PostService is the part of service.PostService the workspace drives.
type PostService interface {
	List(ctx context.Context, authorID string) ([]db.Post, error)
	Get(ctx context.Context, id string) (db.Post, error)
	Save(ctx context.Context, in service.SaveInput) (service.SaveResult, error)
	PublishDraft(ctx context.Context, id string) (db.Post, error)
	BulkPublish(ctx context.Context, ids []string) (service.BulkPublishResult, error)
	Delete(ctx context.Context, id string) error
	BulkDelete(ctx context.Context, ids []string) (int, error)
}

// form is the post being edited. Content lives in the editor.
type form struct {
	editingID     string
	title         string
	summary       string
	featuredImage string
	featuredFile  *media.File
	editor        *editor.Editor
}

// Workspace is one author's admin session: list view, selection, cached
// posts, the edit form with its editor and the media modal. The cache is
// only ever replaced by a fresh fetch after an operation.
type Workspace struct {
	authorID string
	posts    PostService
	registry *editor.Registry
	logger   *slog.Logger

	busy atomic.Bool

	mu       sync.Mutex
	tab      service.Tab
	cache    []db.Post
	selected map[string]bool
	form     *form
	modal    *editor.Modal
	notice   string
}

// Options configures a Workspace.
type Options struct {
	AuthorID       string
	Posts          PostService
	Registry       *editor.Registry
	ButtonDefaults editor.ButtonDefaults
	Logger         *slog.Logger
}

func NewWorkspace(opts Options) *Workspace {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		authorID: opts.AuthorID,
		posts:    opts.Posts,
		registry: opts.Registry,
		logger:   logger.With("component", "workspace", "author", opts.AuthorID),
		tab:      service.TabPublished,
		selected: map[string]bool{},
		modal:    editor.NewModal(opts.ButtonDefaults),
	}
}

// begin claims the workspace for one operation. Controls are disabled while
// an operation runs, so a second caller gets ErrBusy.
func (w *Workspace) begin() (func(), error) {
	if !w.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	return func() { w.busy.Store(false) }, nil
}

// Busy reports whether an operation is in flight.
func (w *Workspace) Busy() bool {
	return w.busy.Load()
}

// Refresh reloads the cached post list from the backend.
func (w *Workspace) Refresh(ctx context.Context) error {
	done, err := w.begin()
	if err != nil {
		return err
	}
	defer done()
	return w.refresh(ctx)
}

func (w *Workspace) refresh(ctx context.Context) error {
	posts, err := w.posts.List(ctx, w.authorID)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cache = posts
	w.pruneSelection()
	return nil
}

// SetTab switches the list view and drops selections outside it.
func (w *Workspace) SetTab(tab service.Tab) error {
	done, err := w.begin()
	if err != nil {
		return err
	}
	defer done()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.tab = tab
	w.pruneSelection()
	return nil
}

// visible must be called with mu held.
func (w *Workspace) visible() []db.Post {
	return service.VisiblePosts(w.cache, w.tab)
}

// pruneSelection must be called with mu held.
func (w *Workspace) pruneSelection() {
	inView := make(map[string]bool)
	for _, post := range w.visible() {
		inView[post.ID] = true
	}
	for id := range w.selected {
		if !inView[id] {
			delete(w.selected, id)
		}
	}
}

// Select toggles ids in the selection. Ids outside the current view are
// ignored.
func (w *Workspace) Select(ids []string, on bool) error {
	done, err := w.begin()
	if err != nil {
		return err
	}
	defer done()

	w.mu.Lock()
	defer w.mu.Unlock()
	inView := make(map[string]bool)
	for _, post := range w.visible() {
		inView[post.ID] = true
	}
	for _, id := range ids {
		if !inView[id] {
			continue
		}
		if on {
			w.selected[id] = true
		} else {
			delete(w.selected, id)
		}
	}
	return nil
}

// SelectAll selects or clears every post of the current view.
func (w *Workspace) SelectAll(on bool) error {
	done, err := w.begin()
	if err != nil {
		return err
	}
	defer done()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.selected = map[string]bool{}
	if on {
		for _, post := range w.visible() {
			w.selected[post.ID] = true
		}
	}
	return nil
}

// Selected returns the selected ids in view order.
func (w *Workspace) Selected() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectedIDs()
}

func (w *Workspace) selectedIDs() []string {
	var ids []string
	for _, post := range w.visible() {
		if w.selected[post.ID] {
			ids = append(ids, post.ID)
		}
	}
	return ids
}

// NewPost opens an empty form.
func (w *Workspace) NewPost() error {
	done, err := w.begin()
	if err != nil {
		return err
	}
	defer done()
	return w.openForm(db.Post{})
}

// EditPost opens a post in the form. The cached copy is used when present.
func (w *Workspace) EditPost(ctx context.Context, id string) error {
	done, err := w.begin()
	if err != nil {
		return err
	}
	defer done()
	return w.editPost(ctx, id)
}

func (w *Workspace) editPost(ctx context.Context, id string) error {
	w.mu.Lock()
	post, ok := w.cached(id)
	w.mu.Unlock()
	if !ok {
		loaded, err := w.posts.Get(ctx, id)
		if err != nil {
			return err
		}
		post = loaded
	}
	return w.openForm(post)
}

func (w *Workspace) cached(id string) (db.Post, bool) {
	for _, post := range w.cache {
		if post.ID == id {
			return post, true
		}
	}
	return db.Post{}, false
}

func (w *Workspace) openForm(post db.Post) error {
	ed, err := w.registry.NewEditor(content.CleanupHTML(post.Content))
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form = &form{
		editingID:     post.ID,
		title:         post.Title,
		summary:       post.Summary,
		featuredImage: post.FeaturedImage,
		editor:        ed,
	}
	w.modal.Cancel()
	return nil
}

// FormInput carries the edited fields; nil fields are left unchanged.
type FormInput struct {
	Title         *string
	Summary       *string
	FeaturedImage *string
	Content       *string
}

// UpdateForm applies field edits. New content replaces the editor document.
func (w *Workspace) UpdateForm(in FormInput) error {
	return w.withForm(func(f *form) error {
		if in.Content != nil {
			if err := f.editor.Load(content.CleanupHTML(*in.Content)); err != nil {
				return err
			}
		}
		if in.Title != nil {
			f.title = *in.Title
		}
		if in.Summary != nil {
			f.summary = *in.Summary
		}
		if in.FeaturedImage != nil {
			f.featuredImage = strings.TrimSpace(*in.FeaturedImage)
			f.featuredFile = nil
		}
		return nil
	})
}

// SetFeaturedFile stages a new featured image; it is uploaded on save.
func (w *Workspace) SetFeaturedFile(file media.File) error {
	return w.withForm(func(f *form) error {
		f.featuredFile = &file
		return nil
	})
}

// ClearFeaturedImage removes both the staged file and the current URL.
func (w *Workspace) ClearFeaturedImage() error {
	return w.withForm(func(f *form) error {
		f.featuredFile = nil
		f.featuredImage = ""
		return nil
	})
}

// CancelForm discards the form.
func (w *Workspace) CancelForm() error {
	done, err := w.begin()
	if err != nil {
		return err
	}
	defer done()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.form = nil
	w.modal.Cancel()
	return nil
}

func (w *Workspace) withForm(fn func(*form) error) error {
	done, err := w.begin()
	if err != nil {
		return err
	}
	defer done()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.form == nil {
		return ErrNoForm
	}
	return fn(w.form)
}

// SetSelection moves the editor caret.
func (w *Workspace) SetSelection(index, length int) error {
	return w.withForm(func(f *form) error {
		f.editor.SetSelection(index, length)
		return nil
	})
}

// OpenModal opens the insertion dialog for kind.
func (w *Workspace) OpenModal(kind editor.Kind) error {
	return w.withForm(func(*form) error { return w.modal.OpenFor(kind) })
}

// SetModalSource switches between URL and file input.
func (w *Workspace) SetModalSource(source editor.SourceType) error {
	return w.withForm(func(*form) error { return w.modal.SetSourceType(source) })
}

// FillModal sets modal fields and, when file is not nil, the chosen file.
func (w *Workspace) FillModal(fields map[string]string, file *media.File) error {
	return w.withForm(func(*form) error {
		if !w.modal.Open {
			return editor.ErrModalClosed
		}
		for key, value := range fields {
			w.modal.SetField(key, value)
		}
		if file != nil {
			w.modal.SetFile(file)
		}
		return nil
	})
}

// SubmitModal inserts the modal content into the editor.
func (w *Workspace) SubmitModal() error {
	return w.withForm(func(f *form) error { return w.modal.Submit(f.editor) })
}

// CancelModal closes the dialog without touching the document.
func (w *Workspace) CancelModal() error {
	return w.withForm(func(*form) error {
		w.modal.Cancel()
		return nil
	})
}

// Save persists the form with status. On success the form is cleared, the
// view follows the resulting status and the cache is refreshed. On failure
// the form is kept as is.
func (w *Workspace) Save(ctx context.Context, status string) (service.SaveResult, error) {
	done, err := w.begin()
	if err != nil {
		return service.SaveResult{}, err
	}
	defer done()

	w.mu.Lock()
	if w.form == nil {
		w.mu.Unlock()
		return service.SaveResult{}, ErrNoForm
	}
	f := w.form
	input := service.SaveInput{
		EditingID:     f.editingID,
		AuthorID:      w.authorID,
		TargetStatus:  status,
		Title:         f.title,
		Summary:       f.summary,
		Content:       f.editor.HTML(),
		FeaturedImage: f.featuredImage,
		FeaturedFile:  f.featuredFile,
	}
	w.mu.Unlock()

	result, err := w.posts.Save(ctx, input)
	if err != nil {
		w.logger.Warn("save failed", "post", input.EditingID, "error", err)
		return service.SaveResult{}, err
	}

	w.mu.Lock()
	if w.form == f {
		w.form = nil
		w.modal.Cancel()
	}
	w.tab = service.TabFor(result.Status)
	if result.Status == db.StatusDraft {
		w.notice = "Rascunho salvo."
	} else {
		w.notice = "Post publicado."
	}
	w.mu.Unlock()

	return result, w.refresh(ctx)
}

// PublishDraft publishes a stored draft. When the draft is incomplete it is
// opened in the editor and the *service.PublishBlockedError is returned.
func (w *Workspace) PublishDraft(ctx context.Context, id string, confirm Confirmer) error {
	done, err := w.begin()
	if err != nil {
		return err
	}
	defer done()

	if !confirm.Confirm("Publicar este rascunho?") {
		return ErrNotConfirmed
	}

	_, err = w.posts.PublishDraft(ctx, id)
	var blocked *service.PublishBlockedError
	if errors.As(err, &blocked) {
		if openErr := w.editPost(ctx, id); openErr != nil {
			return errors.Join(err, openErr)
		}
		w.setNotice(fmt.Sprintf("Complete os campos obrigatórios antes de publicar: %s.", strings.Join(blocked.Missing, ", ")))
		return err
	}
	if err != nil {
		return err
	}
	w.setNotice("Post publicado.")
	return w.refresh(ctx)
}

// BulkPublish publishes the valid selected drafts.
func (w *Workspace) BulkPublish(ctx context.Context, confirm Confirmer) (service.BulkPublishResult, error) {
	done, err := w.begin()
	if err != nil {
		return service.BulkPublishResult{}, err
	}
	defer done()

	ids := w.Selected()
	if len(ids) == 0 {
		return service.BulkPublishResult{}, ErrNoSelection
	}
	if !confirm.Confirm(fmt.Sprintf("Publicar %d post(s) selecionado(s)?", len(ids))) {
		return service.BulkPublishResult{}, ErrNotConfirmed
	}

	result, err := w.posts.BulkPublish(ctx, ids)
	switch {
	case errors.Is(err, service.ErrNothingToPublish):
		w.setNotice("Nenhum rascunho válido para publicar.")
		return result, err
	case err != nil:
		if refreshErr := w.refresh(ctx); refreshErr != nil {
			w.logger.Warn("refresh after failed bulk publish", "error", refreshErr)
		}
		return result, err
	}

	w.mu.Lock()
	w.selected = map[string]bool{}
	w.mu.Unlock()

	notice := fmt.Sprintf("%d post(s) publicado(s).", result.Published)
	if result.SkippedInvalid > 0 {
		notice += fmt.Sprintf(" %d rascunho(s) ignorado(s) por falta de campos obrigatórios.", result.SkippedInvalid)
	}
	w.setNotice(notice)
	return result, w.refresh(ctx)
}

// Delete removes one post after confirmation.
func (w *Workspace) Delete(ctx context.Context, id string, confirm Confirmer) error {
	done, err := w.begin()
	if err != nil {
		return err
	}
	defer done()

	if !confirm.Confirm("Tem certeza que deseja excluir este post?") {
		return ErrNotConfirmed
	}
	if err := w.posts.Delete(ctx, id); err != nil {
		return err
	}
	w.afterDelete([]string{id})
	w.setNotice("Post excluído.")
	return w.refresh(ctx)
}

// BulkDelete removes the selected posts, stopping at the first failure.
func (w *Workspace) BulkDelete(ctx context.Context, confirm Confirmer) (int, error) {
	done, err := w.begin()
	if err != nil {
		return 0, err
	}
	defer done()

	ids := w.Selected()
	if len(ids) == 0 {
		return 0, ErrNoSelection
	}
	if !confirm.Confirm(fmt.Sprintf("Excluir %d post(s) selecionado(s)?", len(ids))) {
		return 0, ErrNotConfirmed
	}

	deleted, err := w.posts.BulkDelete(ctx, ids)
	w.afterDelete(ids[:deleted])
	if refreshErr := w.refresh(ctx); refreshErr != nil && err == nil {
		err = refreshErr
	}
	if err != nil {
		w.setNotice(fmt.Sprintf("%d post(s) excluído(s) antes do erro.", deleted))
		return deleted, err
	}
	w.setNotice(fmt.Sprintf("%d post(s) excluído(s).", deleted))
	return deleted, nil
}

// afterDelete closes the form when it was editing a deleted post.
func (w *Workspace) afterDelete(ids []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range ids {
		delete(w.selected, id)
		if w.form != nil && w.form.editingID == id {
			w.form = nil
			w.modal.Cancel()
		}
	}
}

func (w *Workspace) setNotice(notice string) {
	w.mu.Lock()
	w.notice = notice
	w.mu.Unlock()
}

// PostSummary is one row of the list view.
type PostSummary struct {
	ID            string `json:"id"`
	SlugID        string `json:"slugId"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	FeaturedImage string `json:"featuredImage"`
	Date          int64  `json:"date"`
	Publishable   bool   `json:"publishable"`
	Selected      bool   `json:"selected"`
}

// FormView is the edit form as shown to the author.
type FormView struct {
	EditingID        string            `json:"editingId,omitempty"`
	Title            string            `json:"title"`
	Summary          string            `json:"summary"`
	Content          string            `json:"content"`
	FeaturedImage    string            `json:"featuredImage"`
	FeaturedFileName string            `json:"featuredFileName,omitempty"`
	Length           int               `json:"length"`
	Selection        *editor.Selection `json:"selection,omitempty"`
}

// View is a consistent snapshot of the workspace.
type View struct {
	Tab       service.Tab   `json:"tab"`
	Posts     []PostSummary `json:"posts"`
	Published int           `json:"published"`
	Drafts    int           `json:"drafts"`
	Selected  []string      `json:"selected"`
	Form      *FormView     `json:"form,omitempty"`
	Modal     editor.Modal  `json:"modal"`
	Busy      bool          `json:"busy"`
	Notice    string        `json:"notice,omitempty"`
}

// Snapshot returns the current state. The notice is consumed.
func (w *Workspace) Snapshot() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	visible := w.visible()
	view := View{
		Tab:      w.tab,
		Posts:    make([]PostSummary, 0, len(visible)),
		Selected: w.selectedIDs(),
		Modal:    w.modalCopy(),
		Busy:     w.busy.Load(),
		Notice:   w.notice,
	}
	w.notice = ""

	for _, post := range w.cache {
		if post.IsDraft() {
			view.Drafts++
		} else {
			view.Published++
		}
	}
	for _, post := range visible {
		view.Posts = append(view.Posts, PostSummary{
			ID:            post.ID,
			SlugID:        content.BuildPostSlugID(post.Title, post.ID, post.Slug),
			Title:         post.Title,
			Status:        post.EffectiveStatus(),
			FeaturedImage: post.FeaturedImage,
			Date:          post.SortMillis(),
			Publishable:   service.CanPublish(post),
			Selected:      w.selected[post.ID],
		})
	}

	if f := w.form; f != nil {
		fv := &FormView{
			EditingID:     f.editingID,
			Title:         f.title,
			Summary:       f.summary,
			Content:       f.editor.HTML(),
			FeaturedImage: f.featuredImage,
			Length:        f.editor.Length(),
			Selection:     f.editor.Selection(),
		}
		if f.featuredFile != nil {
			fv.FeaturedFileName = f.featuredFile.Name
		}
		view.Form = fv
	}
	return view
}

func (w *Workspace) modalCopy() editor.Modal {
	m := editor.Modal{
		Open:       w.modal.Open,
		Kind:       w.modal.Kind,
		SourceType: w.modal.SourceType,
		FileName:   w.modal.FileName,
		Fields:     make(map[string]string, len(w.modal.Fields)),
		Errors:     make(map[string]string, len(w.modal.Errors)),
	}
	for k, v := range w.modal.Fields {
		m.Fields[k] = v
	}
	for k, v := range w.modal.Errors {
		m.Errors[k] = v
	}
	return m
}
