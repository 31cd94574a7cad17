package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage"

	"github.com/peerhive/peerhive/internal/db/models"
)

// Store is the global session store instance.
var Store *session.Store

// flashTTL bounds how long an unread flash message survives.
const flashTTL = 5 * time.Minute

// Data represents the session data structure.
type Data struct {
	User models.User
}

// Write writes the session data for the given session ID with an expiration duration.
func (s *Data) Write(sessionID string, exp time.Duration) error {
	out, err := json.Marshal(s)
	if err != nil {
		return err
	}

	return Store.Storage.Set(sessionID, out, exp)
}

// Read reads the session data for the given session ID.
func (s *Data) Read(sessionID string) error {
	byteData, err := Store.Storage.Get(sessionID)
	if err != nil {
		return err
	}

	return json.Unmarshal(byteData, s)
}

// Init initializes the session store with the provided storage backend.
func Init(storage storage.Storage) {
	if storage == nil {
		panic("storage is nil")
	}

	Store = session.New(session.Config{
		Storage: storage,
	})
}

// GenerateSessionID generates a new secure random session ID.
func GenerateSessionID() (string, error) {
	// 32 bytes = 256 bits
	b := make([]byte, 32) //nolint:mnd
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SetFlash stores a one-shot message for the session, shown on the next
// rendered page.
func SetFlash(sessionID, message string) error {
	return Store.Storage.Set("flash:"+sessionID, []byte(message), flashTTL)
}

// PopFlash returns the session's flash message and clears it. Returns the
// empty string when none is set.
func PopFlash(sessionID string) string {
	key := "flash:" + sessionID

	data, err := Store.Storage.Get(key)
	if err != nil || len(data) == 0 {
		return ""
	}

	_ = Store.Storage.Delete(key)

	return string(data)
}
