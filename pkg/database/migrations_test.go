package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"sql/002_second.sql": {Data: []byte("CREATE TABLE second (id INTEGER)")},
		"sql/001_first.sql":  {Data: []byte("CREATE TABLE first (id INTEGER)")},
		"sql/README.md":      {Data: []byte("ignored")},
	}
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := LoadMigrations(testFS(), "sql")

	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, "second", migrations[1].Name)
}

func TestLoadMigrations_Errors(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"bad filename", fstest.MapFS{"sql/init.sql": {Data: []byte("SELECT 1")}}},
		{"duplicate version", fstest.MapFS{
			"sql/001_a.sql": {Data: []byte("SELECT 1")},
			"sql/001_b.sql": {Data: []byte("SELECT 1")},
		}},
		{"missing dir", fstest.MapFS{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMigrations(tt.fsys, "sql")
			assert.Error(t, err)
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := LoadMigrations(Migrations, MigrationsDir)

	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS leave_requests")
	assert.Contains(t, migrations[0].SQL, "UNIQUE (request_id, seq)")
	assert.Contains(t, migrations[1].SQL, "CREATE TABLE IF NOT EXISTS notification_log")
}

func TestMigrator_RunSkipsApplied(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE second").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(2, "second").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	m := NewMigrator(Wrap(sqlDB, zap.NewNop()), zap.NewNop())
	applied, err := m.Run(context.Background(), testFS(), "sql")

	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_RunRollsBackFailedMigration(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE first").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	m := NewMigrator(Wrap(sqlDB, zap.NewNop()), zap.NewNop())
	applied, err := m.Run(context.Background(), testFS(), "sql")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply migration 1")
	assert.Zero(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_RunAgainstSQLite(t *testing.T) {
	db, err := New(Config{Path: MemoryPath}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrator(db, zap.NewNop())

	applied, err := m.Run(context.Background(), Migrations, MigrationsDir)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	applied, err = m.Run(context.Background(), Migrations, MigrationsDir)
	require.NoError(t, err)
	assert.Zero(t, applied, "second run is a no-op")

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 2, count)
}
