package membership

import (
	"testing"
	"time"

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

	// Migrate the schema
	err = db.AutoMigrate(&models.User{}, &models.Group{}, &models.Membership{})
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	u := &models.User{
		Active:   true,
		Username: username,
		Name:     username,
		Email:    username + "@example.com",
	}
	require.NoError(t, db.Create(u).Error, "failed to seed user")

	return u
}

func seedGroup(t *testing.T, db *gorm.DB, owner *models.User, name string) *models.Group {
	t.Helper()

	g := &models.Group{
		Name:   name,
		Slug:   name,
		UserID: owner.ID,
	}
	require.NoError(t, db.Create(g).Error, "failed to seed group")

	return g
}

func seedMembership(t *testing.T, db *gorm.DB, m *models.Membership) *models.Membership {
	t.Helper()

	require.NoError(t, db.Create(m).Error, "failed to seed membership")

	return m
}

func TestFind(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "alice")
	group := seedGroup(t, db, user, "hiking")

	testCases := []struct {
		name          string
		dbParam       *gorm.DB
		userID        uint64
		groupID       uint
		seed          *models.Membership
		expectedError error
	}{
		{
			name:          "nil database",
			dbParam:       nil,
			userID:        user.ID,
			groupID:       group.ID,
			expectedError: ErrDBNil,
		},
		{
			name:          "no row",
			dbParam:       db,
			userID:        user.ID,
			groupID:       group.ID,
			expectedError: ErrMembershipNotFound,
		},
		{
			name:    "successful find",
			dbParam: db,
			userID:  user.ID,
			groupID: group.ID,
			seed: &models.Membership{
				UserID:  user.ID,
				GroupID: group.ID,
				Status:  models.StatusPending,
				Role:    models.RoleUser,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.dbParam != nil {
				tc.dbParam.Exec("DELETE FROM group_users")
			}

			if tc.seed != nil {
				seedMembership(t, tc.dbParam, tc.seed)
			}

			m, err := Find(tc.dbParam, tc.userID, tc.groupID)

			if tc.expectedError != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tc.expectedError)
				assert.Nil(t, m)
			} else {
				require.NoError(t, err)
				require.NotNil(t, m)
				assert.Equal(t, tc.userID, m.UserID)
				assert.Equal(t, tc.groupID, m.GroupID)
			}
		})
	}
}

func TestFindByToken(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "alice")
	group := seedGroup(t, db, user, "hiking")

	testCases := []struct {
		name          string
		dbParam       *gorm.DB
		token         string
		seed          *models.Membership
		expectedError error
	}{
		{
			name:          "nil database",
			dbParam:       nil,
			token:         "abc",
			expectedError: ErrDBNil,
		},
		{
			name:          "empty token",
			dbParam:       db,
			token:         "",
			expectedError: ErrTokenEmpty,
		},
		{
			name:          "unknown token",
			dbParam:       db,
			token:         "nonexistent",
			expectedError: ErrMembershipNotFound,
		},
		{
			name:    "successful find",
			dbParam: db,
			token:   "valid-token",
			seed: &models.Membership{
				UserID:  user.ID,
				GroupID: group.ID,
				Status:  models.StatusPending,
				Role:    models.RoleUser,
				Token:   "valid-token",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.dbParam != nil {
				tc.dbParam.Exec("DELETE FROM group_users")
			}

			if tc.seed != nil {
				seedMembership(t, tc.dbParam, tc.seed)
			}

			m, err := FindByToken(tc.dbParam, tc.token)

			if tc.expectedError != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tc.expectedError)
				assert.Nil(t, m)
			} else {
				require.NoError(t, err)
				require.NotNil(t, m)
				assert.Equal(t, tc.token, m.Token)

				// associations are preloaded for notification payloads
				assert.Equal(t, user.Username, m.User.Username)
				assert.Equal(t, group.Slug, m.Group.Slug)
			}
		})
	}
}

func TestReplace(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "alice")
	group := seedGroup(t, db, user, "hiking")

	expires := time.Now().Add(time.Hour)
	seedMembership(t, db, &models.Membership{
		UserID:         user.ID,
		GroupID:        group.ID,
		Status:         models.StatusPending,
		Role:           models.RoleUser,
		Token:          "old-token",
		TokenExpiresAt: &expires,
	})

	err := Replace(db, &models.Membership{
		UserID:         user.ID,
		GroupID:        group.ID,
		Status:         models.StatusPending,
		Role:           models.RoleUser,
		Token:          "new-token",
		TokenExpiresAt: &expires,
	})
	require.NoError(t, err)

	// exactly one row survives and it carries the new token
	var rows []models.Membership
	require.NoError(t, db.Where("user_id = ? AND group_id = ?", user.ID, group.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "new-token", rows[0].Token)

	_, err = FindByToken(db, "old-token")
	assert.ErrorIs(t, err, ErrMembershipNotFound)

	assert.ErrorIs(t, Replace(nil, &models.Membership{}), ErrDBNil)
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "alice")
	group := seedGroup(t, db, user, "hiking")

	testCases := []struct {
		name          string
		dbParam       *gorm.DB
		userID        uint64
		groupID       uint
		seed          *models.Membership
		expectedError error
	}{
		{
			name:          "nil database",
			dbParam:       nil,
			userID:        user.ID,
			groupID:       group.ID,
			expectedError: ErrDBNil,
		},
		{
			name:          "no row",
			dbParam:       db,
			userID:        user.ID,
			groupID:       group.ID,
			expectedError: ErrMembershipNotFound,
		},
		{
			name:    "successful delete",
			dbParam: db,
			userID:  user.ID,
			groupID: group.ID,
			seed: &models.Membership{
				UserID:  user.ID,
				GroupID: group.ID,
				Status:  models.StatusApproved,
				Role:    models.RoleUser,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.dbParam != nil {
				tc.dbParam.Exec("DELETE FROM group_users")
			}

			if tc.seed != nil {
				seedMembership(t, tc.dbParam, tc.seed)
			}

			err := Delete(tc.dbParam, tc.userID, tc.groupID)

			if tc.expectedError != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tc.expectedError)
			} else {
				require.NoError(t, err)

				var count int64
				tc.dbParam.Model(&models.Membership{}).
					Where("user_id = ? AND group_id = ?", tc.userID, tc.groupID).Count(&count)
				assert.Zero(t, count)
			}
		})
	}
}

func TestIsAdmin(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "alice")
	admin := seedUser(t, db, "bob")
	member := seedUser(t, db, "carol")
	pendingAdmin := seedUser(t, db, "dave")
	group := seedGroup(t, db, owner, "hiking")

	seedMembership(t, db, &models.Membership{
		UserID: admin.ID, GroupID: group.ID,
		Status: models.StatusApproved, Role: models.RoleAdmin,
	})
	seedMembership(t, db, &models.Membership{
		UserID: member.ID, GroupID: group.ID,
		Status: models.StatusApproved, Role: models.RoleUser,
	})
	// an admin role on a pending row grants nothing
	seedMembership(t, db, &models.Membership{
		UserID: pendingAdmin.ID, GroupID: group.ID,
		Status: models.StatusPending, Role: models.RoleAdmin,
	})

	testCases := []struct {
		name     string
		userID   uint64
		expected bool
	}{
		{name: "owner is implicitly admin", userID: owner.ID, expected: true},
		{name: "approved admin", userID: admin.ID, expected: true},
		{name: "approved regular member", userID: member.ID, expected: false},
		{name: "pending admin", userID: pendingAdmin.ID, expected: false},
		{name: "non-member", userID: 9999, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			isAdmin, err := IsAdmin(db, tc.userID, group)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, isAdmin)
		})
	}

	_, err := IsAdmin(nil, owner.ID, group)
	assert.ErrorIs(t, err, ErrDBNil)
}

func TestHasApprovedUser(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "alice")
	member := seedUser(t, db, "bob")
	pending := seedUser(t, db, "carol")
	group := seedGroup(t, db, owner, "hiking")

	seedMembership(t, db, &models.Membership{
		UserID: member.ID, GroupID: group.ID,
		Status: models.StatusApproved, Role: models.RoleUser,
	})
	seedMembership(t, db, &models.Membership{
		UserID: pending.ID, GroupID: group.ID,
		Status: models.StatusPending, Role: models.RoleUser,
	})

	ok, err := HasApprovedUser(db, member.ID, group.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasApprovedUser(db, pending.ID, group.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = HasApprovedUser(db, 9999, group.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdminsAndMembers(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db, "zoe")
	admin := seedUser(t, db, "adam")
	member := seedUser(t, db, "mike")
	pending := seedUser(t, db, "pat")
	group := seedGroup(t, db, owner, "hiking")

	seedMembership(t, db, &models.Membership{
		UserID: owner.ID, GroupID: group.ID,
		Status: models.StatusApproved, Role: models.RoleAdmin,
	})
	seedMembership(t, db, &models.Membership{
		UserID: admin.ID, GroupID: group.ID,
		Status: models.StatusApproved, Role: models.RoleAdmin,
	})
	seedMembership(t, db, &models.Membership{
		UserID: member.ID, GroupID: group.ID,
		Status: models.StatusApproved, Role: models.RoleUser,
	})
	seedMembership(t, db, &models.Membership{
		UserID: pending.ID, GroupID: group.ID,
		Status: models.StatusPending, Role: models.RoleUser,
	})

	admins, err := Admins(db, group.ID)
	require.NoError(t, err)
	require.Len(t, admins, 2)
	// ordered by name
	assert.Equal(t, "adam", admins[0].Name)
	assert.Equal(t, "zoe", admins[1].Name)

	members, err := Members(db, group.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, "adam", members[0].User.Name)
	assert.Equal(t, "mike", members[1].User.Name)
	assert.Equal(t, "zoe", members[2].User.Name)

	requests, err := PendingRequests(db, group.ID)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "pat", requests[0].User.Name)
	assert.Equal(t, models.StatusPending, requests[0].Status)
}
