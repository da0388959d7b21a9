// Package testutil provides shared infrastructure for integration tests.
package testutil

import (
	"context"
	"os"
	"strings"
	"testing"

	"platformBrain/migrations"

	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PGTest opens the database named by POSTGRES_URL, applies the embedded
// migrations and returns a gorm handle plus a cleanup that truncates every
// application table.
//
//	db, cleanup := testutil.PGTest(t)
//	defer cleanup()
//
// If POSTGRES_URL is not set, the test is skipped.
func PGTest(t *testing.T) (*gorm.DB, func()) {
	t.Helper()

	dsn := os.Getenv("POSTGRES_URL")
	if dsn == "" {
		t.Skip("POSTGRES_URL not set, skipping integration test")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("pgtest: open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("pgtest: sql db: %v", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		t.Fatalf("pgtest: goose dialect: %v", err)
	}
	if err := goose.Up(sqlDB, migrations.Dir); err != nil {
		_ = sqlDB.Close()
		t.Fatalf("pgtest: run migrations: %v", err)
	}

	ctx := context.Background()
	cleanup := func() {
		truncateAll(ctx, db)
		_ = sqlDB.Close()
	}
	truncateAll(ctx, db)

	return db, cleanup
}

// truncateAll empties application tables. Goose bookkeeping and the seeded
// flag rows are kept.
func truncateAll(ctx context.Context, db *gorm.DB) {
	var tables []string
	err := db.WithContext(ctx).Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		  AND tablename NOT IN ('goose_db_version', 'brain_feature_flags')
	`).Scan(&tables).Error
	if err != nil || len(tables) == 0 {
		return
	}
	_ = db.WithContext(ctx).Exec("TRUNCATE " + strings.Join(tables, ", ") + " CASCADE").Error
}
