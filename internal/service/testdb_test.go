package service

import (
	"path/filepath"
	"testing"
	"time"

	"asyncops/internal/config"
	"asyncops/internal/model"

	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	db, err := cfg.OpenGormDB()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := model.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func mustCreate(t *testing.T, db *gorm.DB, v any) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

func seedUser(t *testing.T, db *gorm.DB, name, role string) *model.User {
	t.Helper()
	u := &model.User{
		Email:        name + "@example.com",
		PasswordHash: "x",
		FullName:     name,
		Role:         role,
		IsActive:     true,
	}
	mustCreate(t, db, u)
	return u
}

// deactivate flips is_active after insert; gorm omits a false value on create
// because the column defaults to true.
func deactivate(t *testing.T, db *gorm.DB, u *model.User) {
	t.Helper()
	if err := db.Model(u).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	u.IsActive = false
}

func seedStatus(t *testing.T, db *gorm.DB, userID int, title string, at time.Time) *model.StatusUpdate {
	t.Helper()
	su := &model.StatusUpdate{UserID: userID, Title: title, Content: title, Tags: model.Tags(nil), CreatedAt: at, UpdatedAt: at}
	mustCreate(t, db, su)
	return su
}

func seedIncident(t *testing.T, db *gorm.DB, userID int, title, severity, status string, archived bool, at time.Time) *model.Incident {
	t.Helper()
	in := &model.Incident{
		ReportedByID: userID,
		Title:        title,
		Description:  title,
		Severity:     severity,
		Status:       status,
		Archived:     archived,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	mustCreate(t, db, in)
	return in
}

func seedBlocker(t *testing.T, db *gorm.DB, userID int, desc, status string, archived bool, at time.Time) *model.Blocker {
	t.Helper()
	b := &model.Blocker{
		ReportedByID: userID,
		Description:  desc,
		Impact:       "impact",
		Status:       status,
		Archived:     archived,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	mustCreate(t, db, b)
	return b
}

func seedDecision(t *testing.T, db *gorm.DB, userID int, title, date string) *model.Decision {
	t.Helper()
	d, err := model.ParseDate(date)
	if err != nil {
		t.Fatalf("parse %s: %v", date, err)
	}
	dec := &model.Decision{
		CreatedByID:  userID,
		Title:        title,
		Description:  title,
		Context:      "ctx",
		Outcome:      "outcome",
		DecisionDate: d,
		Tags:         model.Tags(nil),
	}
	mustCreate(t, db, dec)
	return dec
}

// countWrites counts create, update and delete statements issued through db.
func countWrites(t *testing.T, db *gorm.DB) *int {
	t.Helper()
	n := new(int)
	inc := func(*gorm.DB) { *n++ }
	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("test:count_create", inc); err != nil {
		t.Fatal(err)
	}
	if err := cb.Update().Before("gorm:update").Register("test:count_update", inc); err != nil {
		t.Fatal(err)
	}
	if err := cb.Delete().Before("gorm:delete").Register("test:count_delete", inc); err != nil {
		t.Fatal(err)
	}
	return n
}
