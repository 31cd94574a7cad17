package post

import (
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage"
	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/config"
	"github.com/peerhive/peerhive/internal/db/models"
	fstorage "github.com/peerhive/peerhive/internal/storage"
	websess "github.com/peerhive/peerhive/internal/web/session"
)

// testViews is a minimal Fiber Views engine writing the template name.
type testViews struct{}

func (testViews) Load() error { return nil }

func (testViews) Render(w io.Writer, name string, _ interface{}, _ ...string) error {
	_, _ = io.WriteString(w, name)

	return nil
}

// testStorage is a minimal in-memory implementation of storage.Storage.
type testStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ storage.Storage = (*testStorage)(nil)

func (s *testStorage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.data[key]
	out := make([]byte, len(v))
	copy(out, v)

	return out, nil
}

func (s *testStorage) Set(key string, val []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(val))
	copy(buf, val)
	s.data[key] = buf

	return nil
}

func (s *testStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)

	return nil
}

func (s *testStorage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string][]byte)

	return nil
}

func (s *testStorage) Close() error { return nil }

func setupHandler(t *testing.T) (*fiber.App, *gorm.DB, *fstorage.Store) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite in-memory db: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Membership{},
		&models.Post{},
		&models.PostAttachment{},
		&models.PostReaction{},
	); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}

	websess.Init(&testStorage{data: make(map[string][]byte)})

	app := fiber.New(fiber.Config{Views: testViews{}})

	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-Test-User"); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				t.Fatalf("bad X-Test-User header: %v", err)
			}

			var u models.User
			if err := db.First(&u, id).Error; err == nil {
				c.Locals("CurrentUser", u)
			}
		}

		return c.Next()
	})

	uploads, err := fstorage.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create uploads store: %v", err)
	}

	cfg := &config.Config{Title: "PeerHive"}

	var s Service
	if err := s.Init(app, cfg, db, uploads); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	return app, db, uploads
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	u := &models.User{
		Username: username,
		Name:     username,
		Email:    username + "@example.com",
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", username, err)
	}

	return u
}

func seedGroup(t *testing.T, db *gorm.DB, owner *models.User, name, slug string) *models.Group {
	t.Helper()

	g := &models.Group{Name: name, Slug: slug, UserID: owner.ID}
	if err := db.Create(g).Error; err != nil {
		t.Fatalf("failed to seed group %s: %v", name, err)
	}

	return g
}

func seedMembership(t *testing.T, db *gorm.DB, user *models.User, g *models.Group, status models.MembershipStatus) {
	t.Helper()

	m := &models.Membership{
		UserID:    user.ID,
		GroupID:   g.ID,
		Status:    status,
		Role:      models.RoleUser,
		CreatedBy: user.ID,
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("failed to seed membership: %v", err)
	}
}

func seedPost(t *testing.T, db *gorm.DB, author *models.User, groupID *uint, body string) *models.Post {
	t.Helper()

	p := &models.Post{UserID: author.ID, GroupID: groupID, Body: body}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to seed post: %v", err)
	}

	return p
}

func doForm(t *testing.T, app *fiber.App, method, target string, form url.Values, userID uint64) *http.Response {
	t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if userID != 0 {
		req.Header.Set("X-Test-User", strconv.FormatUint(userID, 10))
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}

	return resp
}

func TestCreate_HomePost(t *testing.T) {
	app, db, _ := setupHandler(t)
	author := seedUser(t, db, "alice")

	form := url.Values{"body": {"hello world"}}
	resp := doForm(t, app, http.MethodPost, Path, form, author.ID)

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	var p models.Post
	if err := db.Where("user_id = ?", author.ID).First(&p).Error; err != nil {
		t.Fatalf("post was not created: %v", err)
	}

	if p.Body != "hello world" {
		t.Fatalf("expected post body, got %q", p.Body)
	}

	if p.GroupID != nil {
		t.Fatal("home post must not carry a group")
	}
}

func TestCreate_GroupPost_RequiresMembership(t *testing.T) {
	app, db, _ := setupHandler(t)
	owner := seedUser(t, db, "alice")
	outsider := seedUser(t, db, "bob")
	g := seedGroup(t, db, owner, "Hiking Club", "hiking-club")

	form := url.Values{
		"body":     {"group news"},
		"group_id": {strconv.FormatUint(uint64(g.ID), 10)},
	}
	resp := doForm(t, app, http.MethodPost, Path, form, outsider.ID)

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	// an approved member may post
	seedMembership(t, db, outsider, g, models.StatusApproved)

	resp = doForm(t, app, http.MethodPost, Path, form, outsider.ID)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302 for member, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestCreate_EmptyBody_Returns422(t *testing.T) {
	app, db, _ := setupHandler(t)
	author := seedUser(t, db, "alice")

	resp := doForm(t, app, http.MethodPost, Path, url.Values{"body": {""}}, author.ID)

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestView_GroupPost_RestrictedToMembers(t *testing.T) {
	app, db, _ := setupHandler(t)
	owner := seedUser(t, db, "alice")
	outsider := seedUser(t, db, "bob")
	g := seedGroup(t, db, owner, "Hiking Club", "hiking-club")
	seedMembership(t, db, owner, g, models.StatusApproved)
	p := seedPost(t, db, owner, &g.ID, "members only")

	target := Path + "/" + strconv.FormatUint(p.ID, 10)

	resp := doForm(t, app, http.MethodGet, target, nil, outsider.ID)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = doForm(t, app, http.MethodGet, target, nil, owner.ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for member, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestUpdate_NonAuthor_Returns403(t *testing.T) {
	app, db, _ := setupHandler(t)
	author := seedUser(t, db, "alice")
	other := seedUser(t, db, "bob")
	p := seedPost(t, db, author, nil, "original")

	form := url.Values{"body": {"hijacked"}}
	resp := doForm(t, app, http.MethodPut, Path+"/"+strconv.FormatUint(p.ID, 10), form, other.ID)

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	var got models.Post
	if err := db.First(&got, p.ID).Error; err != nil {
		t.Fatalf("failed to reload post: %v", err)
	}

	if got.Body != "original" {
		t.Fatalf("body must be unchanged, got %q", got.Body)
	}
}

func TestUpdate_Author_ChangesBody(t *testing.T) {
	app, db, _ := setupHandler(t)
	author := seedUser(t, db, "alice")
	p := seedPost(t, db, author, nil, "original")

	form := url.Values{"body": {"edited"}}
	resp := doForm(t, app, http.MethodPut, Path+"/"+strconv.FormatUint(p.ID, 10), form, author.ID)

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	var got models.Post
	if err := db.First(&got, p.ID).Error; err != nil {
		t.Fatalf("failed to reload post: %v", err)
	}

	if got.Body != "edited" {
		t.Fatalf("expected edited body, got %q", got.Body)
	}
}

func TestDelete_Author_SoftDeletes(t *testing.T) {
	app, db, _ := setupHandler(t)
	author := seedUser(t, db, "alice")
	p := seedPost(t, db, author, nil, "to delete")

	resp := doForm(t, app, http.MethodDelete, Path+"/"+strconv.FormatUint(p.ID, 10), nil, author.ID)

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	var raw models.Post
	if err := db.Unscoped().First(&raw, p.ID).Error; err != nil {
		t.Fatalf("row must survive a soft delete: %v", err)
	}

	if !raw.DeletedAt.Valid {
		t.Fatal("expected deleted_at to be set")
	}
}

func TestReaction_Toggles(t *testing.T) {
	app, db, _ := setupHandler(t)
	author := seedUser(t, db, "alice")
	viewer := seedUser(t, db, "bob")
	p := seedPost(t, db, author, nil, "react to me")

	target := Path + "/" + strconv.FormatUint(p.ID, 10) + "/reaction"

	resp := doForm(t, app, http.MethodPost, target, url.Values{}, viewer.ID)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	var count int64
	db.Model(&models.PostReaction{}).Where("post_id = ?", p.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected one reaction, got %d", count)
	}

	resp = doForm(t, app, http.MethodPost, target, url.Values{}, viewer.ID)
	_ = resp.Body.Close()

	db.Model(&models.PostReaction{}).Where("post_id = ?", p.ID).Count(&count)
	if count != 0 {
		t.Fatalf("expected reaction removed, got %d", count)
	}
}

func TestDownload_ServesStoredFile(t *testing.T) {
	app, db, uploads := setupHandler(t)
	author := seedUser(t, db, "alice")
	p := seedPost(t, db, author, nil, "with file")

	relPath, size, err := uploads.Save("notes.txt", strings.NewReader("file content"))
	if err != nil {
		t.Fatalf("failed to store file: %v", err)
	}

	a := &models.PostAttachment{
		PostID:    p.ID,
		Name:      "notes.txt",
		Path:      relPath,
		Mime:      "text/plain",
		Size:      size,
		CreatedBy: author.ID,
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("failed to seed attachment: %v", err)
	}

	resp := doForm(t, app, http.MethodGet, Path+"/download/"+strconv.FormatUint(a.ID, 10), nil, author.ID)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
		t.Fatalf("expected text/plain, got %s", ct)
	}

	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "notes.txt") {
		t.Fatalf("expected original name in disposition, got %q", cd)
	}

	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if string(body) != "file content" {
		t.Fatalf("unexpected body %q", string(body))
	}
}

func TestDownload_QuotedName_KeepsDispositionParseable(t *testing.T) {
	app, db, uploads := setupHandler(t)
	author := seedUser(t, db, "alice")
	p := seedPost(t, db, author, nil, "with file")

	name := `he said "hi".txt`

	relPath, size, err := uploads.Save(name, strings.NewReader("quoted"))
	if err != nil {
		t.Fatalf("failed to store file: %v", err)
	}

	a := &models.PostAttachment{
		PostID:    p.ID,
		Name:      name,
		Path:      relPath,
		Mime:      "text/plain",
		Size:      size,
		CreatedBy: author.ID,
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("failed to seed attachment: %v", err)
	}

	resp := doForm(t, app, http.MethodGet, Path+"/download/"+strconv.FormatUint(a.ID, 10), nil, author.ID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cd := resp.Header.Get("Content-Disposition")

	mediaType, params, err := mime.ParseMediaType(cd)
	if err != nil {
		t.Fatalf("disposition %q does not parse: %v", cd, err)
	}

	if mediaType != "attachment" {
		t.Fatalf("expected attachment disposition, got %q", mediaType)
	}

	if params["filename"] != name {
		t.Fatalf("filename round-trip failed: got %q, want %q", params["filename"], name)
	}
}

func TestDownload_UnknownAttachment_Returns404(t *testing.T) {
	app, db, _ := setupHandler(t)
	viewer := seedUser(t, db, "alice")

	resp := doForm(t, app, http.MethodGet, Path+"/download/999", nil, viewer.ID)

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}
