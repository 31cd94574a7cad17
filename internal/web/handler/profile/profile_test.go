package profile

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage"
	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/config"
	"github.com/peerhive/peerhive/internal/db/models"
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

func setupHandler(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite in-memory db: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Post{},
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

	cfg := &config.Config{Title: "PeerHive"}

	var s Service
	if err := s.Init(app, cfg, db); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	return app, db
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

func doGet(t *testing.T, app *fiber.App, target string, userID uint64) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if userID != 0 {
		req.Header.Set("X-Test-User", strconv.FormatUint(userID, 10))
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}

	return resp
}

func TestGet_RendersProfile(t *testing.T) {
	app, db := setupHandler(t)
	viewer := seedUser(t, db, "alice")
	seedUser(t, db, "bob")

	resp := doGet(t, app, Path+"/bob", viewer.ID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != TemplateName {
		t.Fatalf("expected %q rendered, got %q", TemplateName, string(body))
	}
}

func TestGet_UnknownUser_Returns404(t *testing.T) {
	app, db := setupHandler(t)
	viewer := seedUser(t, db, "alice")

	resp := doGet(t, app, Path+"/nobody", viewer.ID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
