// Package dbtest provides migrated in-memory databases for tests.
package dbtest

import (
	"testing"

	"gorm.io/gorm"

	"urlguard/internal/db"
	"urlguard/internal/models"
)

// New returns a migrated in-memory sqlite database private to t.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect("sqlite", "file::memory:")
	if err != nil {
		t.Fatalf("connect sqlite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// Group inserts a group named name.
func Group(t testing.TB, gdb *gorm.DB, name string) models.Group {
	t.Helper()
	g := models.Group{Name: name}
	if err := gdb.Create(&g).Error; err != nil {
		t.Fatalf("create group %s: %v", name, err)
	}
	return g
}

// User inserts an active user that belongs to groups.
func User(t testing.TB, gdb *gorm.DB, email string, superuser bool, groups ...models.Group) models.User {
	t.Helper()
	u := models.User{Email: email, Name: email, Status: models.UserActive, IsSuperuser: superuser, Groups: groups}
	if err := gdb.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}
