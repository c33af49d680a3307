package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clinicblog/internal/admin"
	"github.com/clinicblog/internal/db"
	"github.com/clinicblog/internal/editor"
	"github.com/clinicblog/internal/logging"
	"github.com/clinicblog/internal/media"
	"github.com/clinicblog/internal/service"
	"github.com/clinicblog/internal/store/gormstore"
)

const (
	testEmail    = "dra@clinica.example"
	testPassword = "segredo123"
)

type testServer struct {
	t       *testing.T
	engine  *gin.Engine
	gdb     *gorm.DB
	posts   *service.PostService
	storage *media.MemoryStorage
	userID  string
	cookies []*http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	if _, err := db.EnsureUser(gdb, testEmail, testPassword); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	var user db.User
	if err := gdb.First(&user, "email = ?", testEmail).Error; err != nil {
		t.Fatalf("failed to load user: %v", err)
	}

	registry := editor.NewRegistry()
	if err := registry.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	log := logging.Discard()
	st := gormstore.New(gdb)
	storage := media.NewMemoryStorage()
	gateway := media.NewGateway(storage, log)
	posts := service.NewPostService(st, gateway, log)

	api := NewAPI(Services{
		Posts:      posts,
		Comments:   service.NewCommentService(st, log),
		Render:     service.NewRenderService(st, log),
		Auth:       service.NewAuthService(gdb, gateway, log),
		Workspaces: admin.NewManager(posts, registry, editor.ButtonDefaults{Label: "Agende", URL: "https://wa.me/5500000000000"}, log),
	}, log, nil)

	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	r.POST("/admin/login", api.Login)
	r.POST("/admin/logout", api.Logout)
	r.POST("/admin/password-reset", api.RequestPasswordReset)
	r.POST("/admin/password-reset/confirm", api.ConfirmPasswordReset)
	auth := r.Group("/admin/api", AuthRequired())
	auth.GET("/workspace", api.GetWorkspace)
	auth.POST("/workspace/tab", api.SetTab)
	auth.POST("/workspace/select", api.Select)
	auth.POST("/form/new", api.NewPostForm)
	auth.POST("/form/edit/:id", api.EditPostForm)
	auth.PUT("/form", api.UpdateForm)
	auth.POST("/form/featured", api.SetFeaturedFile)
	auth.POST("/editor/modal/open", api.OpenModal)
	auth.POST("/editor/modal/submit", api.SubmitModal)
	auth.POST("/posts/save", api.SavePost)
	auth.POST("/posts/:id/publish", api.PublishDraft)
	auth.POST("/posts/bulk-delete", api.BulkDelete)
	auth.DELETE("/posts/:id", api.DeletePost)
	auth.POST("/posts/import", api.ImportMarkdown)
	auth.GET("/profile", api.GetProfile)
	auth.PUT("/profile", api.UpdateProfile)
	r.GET("/api/posts", api.ListPosts)
	r.GET("/api/posts/:slugId", api.ShowPost)
	r.GET("/api/posts/:slugId/related", api.RelatedPosts)
	r.GET("/api/posts/:slugId/comments", api.ListComments)
	r.POST("/api/posts/:slugId/comments", api.CreateComment)
	r.GET("/api/posts/:slugId/comments/live", api.LiveComments)

	return &testServer{t: t, engine: r, gdb: gdb, posts: posts, storage: storage, userID: user.ID}
}

func (s *testServer) request(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	s.engine.ServeHTTP(rr, req)
	if cookies := rr.Result().Cookies(); len(cookies) > 0 {
		s.cookies = cookies
	}
	return rr
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.request(req)
}

func (s *testServer) login() {
	s.t.Helper()
	rr := s.do(http.MethodPost, "/admin/login", gin.H{"email": testEmail, "password": testPassword})
	if rr.Code != http.StatusOK {
		s.t.Fatalf("login failed: %d %s", rr.Code, rr.Body.String())
	}
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func workspaceOf(t *testing.T, rr *httptest.ResponseRecorder) admin.View {
	t.Helper()
	var out struct {
		Workspace admin.View `json:"workspace"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode workspace %q: %v", rr.Body.String(), err)
	}
	return out.Workspace
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/admin/login", gin.H{"email": testEmail, "password": "errada"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if got := decode(t, rr)["error"]; got != "Email ou senha inválidos." {
		t.Fatalf("unexpected error message %v", got)
	}
}

func TestAdminAPIRequiresSession(t *testing.T) {
	s := newTestServer(t)

	if rr := s.do(http.MethodGet, "/admin/api/workspace", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rr.Code)
	}

	s.login()
	if rr := s.do(http.MethodGet, "/admin/api/workspace", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with session, got %d: %s", rr.Code, rr.Body.String())
	}

	if rr := s.do(http.MethodPost, "/admin/logout", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on logout, got %d", rr.Code)
	}
	if rr := s.do(http.MethodGet, "/admin/api/workspace", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rr.Code)
	}
}

func TestSaveDraftThroughWorkspace(t *testing.T) {
	s := newTestServer(t)
	s.login()

	if rr := s.do(http.MethodPost, "/admin/api/form/new", nil); rr.Code != http.StatusOK {
		t.Fatalf("new form: %d %s", rr.Code, rr.Body.String())
	}
	rr := s.do(http.MethodPut, "/admin/api/form", gin.H{"title": "Amamentação", "content": "<p>Dicas <script>x</script></p>"})
	if rr.Code != http.StatusOK {
		t.Fatalf("update form: %d %s", rr.Code, rr.Body.String())
	}
	if view := workspaceOf(t, rr); view.Form == nil || view.Form.Title != "Amamentação" {
		t.Fatalf("expected title in form, got %+v", view.Form)
	}

	rr = s.do(http.MethodPost, "/admin/api/posts/save", gin.H{"status": "draft"})
	if rr.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	id, _ := body["id"].(string)
	if id == "" || body["status"] != db.StatusDraft {
		t.Fatalf("unexpected save response %v", body)
	}
	view := workspaceOf(t, rr)
	if view.Form != nil || view.Tab != service.TabDrafts || len(view.Posts) != 1 {
		t.Fatalf("unexpected workspace after save %+v", view)
	}

	post, err := s.posts.Get(t.Context(), id)
	if err != nil {
		t.Fatalf("load post: %v", err)
	}
	if strings.Contains(post.Content, "script") {
		t.Fatalf("expected content to be sanitized, got %q", post.Content)
	}
}

func TestSavePublishedWithoutFieldsKeepsForm(t *testing.T) {
	s := newTestServer(t)
	s.login()
	s.do(http.MethodPost, "/admin/api/form/new", nil)
	s.do(http.MethodPut, "/admin/api/form", gin.H{"title": "Só título"})

	rr := s.do(http.MethodPost, "/admin/api/posts/save", gin.H{"status": "published"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rr.Code, rr.Body.String())
	}
	if field := decode(t, rr)["field"]; field != service.FieldSummary {
		t.Fatalf("expected summary field error, got %v", field)
	}

	rr = s.do(http.MethodGet, "/admin/api/workspace", nil)
	if view := workspaceOf(t, rr); view.Form == nil || view.Form.Title != "Só título" {
		t.Fatalf("expected form to survive the failed save, got %+v", view.Form)
	}
}

func TestSaveWithEmptyFormRejected(t *testing.T) {
	s := newTestServer(t)
	s.login()
	s.do(http.MethodPost, "/admin/api/form/new", nil)

	rr := s.do(http.MethodPost, "/admin/api/posts/save", gin.H{"status": "draft"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestSaveWithoutFormConflicts(t *testing.T) {
	s := newTestServer(t)
	s.login()

	if rr := s.do(http.MethodPost, "/admin/api/posts/save", gin.H{"status": "draft"}); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestFeaturedFileUploadedOnSave(t *testing.T) {
	s := newTestServer(t)
	s.login()
	s.do(http.MethodPost, "/admin/api/form/new", nil)
	s.do(http.MethodPut, "/admin/api/form", gin.H{
		"title":   "Com capa",
		"summary": "Resumo",
		"content": "<p>Texto</p>",
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "capa.png")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write(pngBytes(t))
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/admin/api/form/featured", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := s.request(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("stage featured: %d %s", rr.Code, rr.Body.String())
	}
	if view := workspaceOf(t, rr); view.Form.FeaturedFileName != "capa.png" {
		t.Fatalf("expected staged file name, got %+v", view.Form)
	}

	rr = s.do(http.MethodPost, "/admin/api/posts/save", gin.H{"status": "published"})
	if rr.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rr.Code, rr.Body.String())
	}
	featured, _ := decode(t, rr)["featuredImage"].(string)
	if !strings.HasPrefix(featured, "https://") || len(s.storage.Keys()) != 1 {
		t.Fatalf("expected uploaded featured image, got %q (%v)", featured, s.storage.Keys())
	}
}

func TestModalSubmitValidation(t *testing.T) {
	s := newTestServer(t)
	s.login()
	s.do(http.MethodPost, "/admin/api/form/new", nil)
	s.do(http.MethodPost, "/admin/api/editor/modal/open", gin.H{"kind": "image"})

	rr := s.do(http.MethodPost, "/admin/api/editor/modal/submit", gin.H{"fields": gin.H{"url": "ftp://x"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rr.Code, rr.Body.String())
	}
	errs, _ := decode(t, rr)["errors"].(map[string]any)
	if _, ok := errs[editor.FieldURL]; !ok {
		t.Fatalf("expected url error, got %v", errs)
	}
	if view := workspaceOf(t, rr); !view.Modal.Open {
		t.Fatalf("expected modal to stay open")
	}

	rr = s.do(http.MethodPost, "/admin/api/editor/modal/submit", gin.H{"fields": gin.H{"url": "https://cdn.example/foto.jpg", "alt": "Foto"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rr.Code, rr.Body.String())
	}
	if view := workspaceOf(t, rr); view.Modal.Open || !strings.Contains(view.Form.Content, "https://cdn.example/foto.jpg") {
		t.Fatalf("expected image inserted, got %+v", view)
	}
}

func TestPublishBlockedDraft(t *testing.T) {
	s := newTestServer(t)
	s.login()
	result, err := s.posts.Save(t.Context(), service.SaveInput{AuthorID: s.userID, TargetStatus: db.StatusDraft, Title: "Sem resumo"})
	if err != nil {
		t.Fatalf("seed draft: %v", err)
	}

	rr := s.do(http.MethodPost, "/admin/api/posts/"+result.ID+"/publish", gin.H{"confirm": true})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", rr.Code, rr.Body.String())
	}
	view := workspaceOf(t, rr)
	if view.Form == nil || view.Form.EditingID != result.ID {
		t.Fatalf("expected draft opened in the form, got %+v", view.Form)
	}
}

func TestDestructiveActionsNeedConfirmation(t *testing.T) {
	s := newTestServer(t)
	s.login()
	result, err := s.posts.Save(t.Context(), service.SaveInput{AuthorID: s.userID, TargetStatus: db.StatusDraft, Title: "Apagar"})
	if err != nil {
		t.Fatalf("seed draft: %v", err)
	}

	if rr := s.do(http.MethodDelete, "/admin/api/posts/"+result.ID, nil); rr.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", rr.Code)
	}
	if rr := s.do(http.MethodDelete, "/admin/api/posts/"+result.ID+"?confirm=true", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	if _, err := s.posts.Get(t.Context(), result.ID); !errors.Is(err, service.ErrPostNotFound) {
		t.Fatalf("expected post to be deleted, got %v", err)
	}
}

func TestBulkDeleteSelected(t *testing.T) {
	s := newTestServer(t)
	s.login()
	for _, title := range []string{"A", "B"} {
		if _, err := s.posts.Save(t.Context(), service.SaveInput{AuthorID: s.userID, TargetStatus: db.StatusDraft, Title: title}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	s.do(http.MethodGet, "/admin/api/workspace", nil)
	s.do(http.MethodPost, "/admin/api/workspace/tab", gin.H{"tab": "drafts"})
	rr := s.do(http.MethodPost, "/admin/api/workspace/select", gin.H{"all": true, "selected": true})
	if view := workspaceOf(t, rr); len(view.Selected) != 2 {
		t.Fatalf("expected two selected posts, got %v", view.Selected)
	}

	rr = s.do(http.MethodPost, "/admin/api/posts/bulk-delete", gin.H{"confirm": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("bulk delete: %d %s", rr.Code, rr.Body.String())
	}
	if deleted := decode(t, rr)["deleted"]; deleted != float64(2) {
		t.Fatalf("expected 2 deletions, got %v", deleted)
	}
}

func TestImportMarkdown(t *testing.T) {
	s := newTestServer(t)
	s.login()

	rr := s.do(http.MethodPost, "/admin/api/posts/import", gin.H{
		"title":    "Importado",
		"markdown": "# Olá\n\nTexto **forte**.",
		"status":   "draft",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("import: %d %s", rr.Code, rr.Body.String())
	}
	id, _ := decode(t, rr)["id"].(string)
	post, err := s.posts.Get(t.Context(), id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(post.Content, "<strong>forte</strong>") {
		t.Fatalf("expected converted markdown, got %q", post.Content)
	}
}

func TestProfileUpdate(t *testing.T) {
	s := newTestServer(t)
	s.login()

	rr := s.do(http.MethodPut, "/admin/api/profile", gin.H{"displayName": "Dra. Clínica", "photoURL": "javascript:alert(1)"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad photo url, got %d", rr.Code)
	}
	rr = s.do(http.MethodPut, "/admin/api/profile", gin.H{"displayName": "Dra. Clínica", "photoURL": "https://cdn.example/eu.jpg"})
	if rr.Code != http.StatusOK {
		t.Fatalf("update profile: %d %s", rr.Code, rr.Body.String())
	}
	rr = s.do(http.MethodGet, "/admin/api/profile", nil)
	user, _ := decode(t, rr)["user"].(map[string]any)
	if user["displayName"] != "Dra. Clínica" || user["email"] != testEmail {
		t.Fatalf("unexpected profile %v", user)
	}
	if _, leaked := user["passwordHash"]; leaked {
		t.Fatalf("password hash must not be serialized")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	s := newTestServer(t)

	if rr := s.do(http.MethodPost, "/admin/password-reset", gin.H{"email": "ninguem@example.com"}); rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for unknown email, got %d", rr.Code)
	}
	if rr := s.do(http.MethodPost, "/admin/password-reset", gin.H{"email": testEmail}); rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	var reset db.PasswordReset
	if err := s.gdb.First(&reset).Error; err != nil {
		t.Fatalf("expected reset token: %v", err)
	}

	if rr := s.do(http.MethodPost, "/admin/password-reset/confirm", gin.H{"token": "nope", "password": "novasenha"}); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad token, got %d", rr.Code)
	}
	if rr := s.do(http.MethodPost, "/admin/password-reset/confirm", gin.H{"token": reset.Token, "password": "novasenha"}); rr.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", rr.Code, rr.Body.String())
	}
	if rr := s.do(http.MethodPost, "/admin/login", gin.H{"email": testEmail, "password": "novasenha"}); rr.Code != http.StatusOK {
		t.Fatalf("expected login with new password, got %d", rr.Code)
	}
}
