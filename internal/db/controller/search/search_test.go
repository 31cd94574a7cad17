package search

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/db/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(&models.User{}, &models.Group{})
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func TestUsers(t *testing.T) {
	db := setupTestDB(t)

	for _, u := range []models.User{
		{Username: "alice", Name: "Alice Smith", Email: "alice@example.com"},
		{Username: "bob", Name: "Bob Alison", Email: "bob@example.com"},
		{Username: "carol", Name: "Carol Jones", Email: "carol@example.com"},
	} {
		require.NoError(t, db.Create(&u).Error)
	}

	testCases := []struct {
		name     string
		query    string
		expected []string
	}{
		{name: "matches username and display name", query: "ali", expected: []string{"alice", "bob"}},
		{name: "case insensitive", query: "ALI", expected: []string{"alice", "bob"}},
		{name: "no match", query: "zebra", expected: []string{}},
		{name: "wildcard input is literal", query: "%", expected: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			users, err := Users(db, tc.query, 10)
			require.NoError(t, err)

			usernames := make([]string, 0, len(users))
			for _, u := range users {
				usernames = append(usernames, u.Username)
			}

			assert.Equal(t, tc.expected, usernames)
		})
	}

	_, err := Users(nil, "x", 10)
	assert.ErrorIs(t, err, ErrDBNil)
}

func TestGroups(t *testing.T) {
	db := setupTestDB(t)

	for _, g := range []models.Group{
		{Name: "Hiking Club", Slug: "hiking-club", UserID: 1},
		{Name: "Night Hikers", Slug: "night-hikers", UserID: 1},
		{Name: "Book Club", Slug: "book-club", UserID: 1},
	} {
		require.NoError(t, db.Create(&g).Error)
	}

	groups, err := Groups(db, "hik", 10)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Hiking Club", groups[0].Name)
	assert.Equal(t, "Night Hikers", groups[1].Name)

	t.Run("limit caps results", func(t *testing.T) {
		groups, err := Groups(db, "club", 1)
		require.NoError(t, err)
		assert.Len(t, groups, 1)
	})

	_, err = Groups(nil, "x", 10)
	assert.ErrorIs(t, err, ErrDBNil)
}
