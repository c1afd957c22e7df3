package testutil

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
	"github.com/trezcool/ratiba/storage/database"
)

func init() {
	goose.SetLogger(goose.NopLogger())
}

// TestConfig returns the configuration used by tests: a migrated in-memory SQLite database.
func TestConfig() *core.Config {
	return &core.Config{
		Env:      "TEST",
		TestMode: true,
		AppName:  "Ratiba",
		Server:   core.ServerConfig{DisableReqLogs: true},
		Database: core.DatabaseConfig{Engine: core.EngineSQLite, Path: ":memory:"},
		Timetable: core.TimetableConfig{
			MaxPeriods: 8,
		},
	}
}

// OpenDB opens a fresh, migrated in-memory SQLite database. It is closed when the test ends.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(TestConfig())
	if err != nil {
		t.Fatalf("OpenDB(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("OpenDB(): %v", err)
	}
	return db
}

// CreateEntry stores an entry directly, bypassing conflict detection.
func CreateEntry(t *testing.T, repo timetable.Repository, classID, teacherID, roomID int, day timetable.Day, period int) timetable.Entry {
	t.Helper()
	e, err := repo.InsertEntry(context.Background(), timetable.Entry{
		ClassID:   classID,
		TeacherID: teacherID,
		RoomID:    roomID,
		Day:       day,
		Period:    period,
	})
	if err != nil {
		t.Fatalf("CreateEntry() failed: %v", err)
	}
	return e
}
