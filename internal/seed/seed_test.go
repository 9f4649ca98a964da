package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"urlguard/internal/db/dbtest"
	"urlguard/internal/models"
	"urlguard/internal/permission"
	"urlguard/internal/urlnorm"
)

func TestFirstSetup_Idempotent(t *testing.T) {
	gdb := dbtest.New(t)
	store := permission.NewStore(gdb, urlnorm.New(nil, ""))
	ctx := context.Background()
	opts := Options{AdminEmail: "admin@example.com", AdminPassword: "admin123"}

	require.NoError(t, FirstSetup(ctx, gdb, store, opts))

	grants, err := store.ListGrants(ctx, 0)
	require.NoError(t, err)
	require.Len(t, grants, len(demoGrants))

	// an admin disables a grant; a second run must not re-enable it
	off := false
	_, err = store.UpdateGrant(ctx, grants[0].ID, permission.GrantPatch{IsActive: &off})
	require.NoError(t, err)

	require.NoError(t, FirstSetup(ctx, gdb, store, opts))

	grants, err = store.ListGrants(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, grants, len(demoGrants))
	assert.False(t, grants[0].IsActive)

	var users []models.User
	require.NoError(t, gdb.Find(&users).Error)
	require.Len(t, users, 1)
	assert.True(t, users[0].IsSuperuser)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].PasswordHash), []byte("admin123")))

	var groups int64
	require.NoError(t, gdb.Model(&models.Group{}).Count(&groups).Error)
	assert.Equal(t, int64(2), groups)
}

func TestFirstSetup_RequiresAdmin(t *testing.T) {
	gdb := dbtest.New(t)
	store := permission.NewStore(gdb, urlnorm.New(nil, ""))
	assert.Error(t, FirstSetup(context.Background(), gdb, store, Options{}))
}
