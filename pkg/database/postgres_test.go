package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-routine-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "campus_routine", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=campus_routine sslmode=disable", dsn)

	dsn = DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: `it's a\secret`, Name: "campus_routine", SSLMode: "require"})
	assert.Equal(t, `host=db port=5432 user=u password='it\'s a\\secret' dbname=campus_routine sslmode=require`, dsn)

	assert.Contains(t, DSN(config.DatabaseConfig{Port: 5432}), "password=''")
}

func TestSchemaStatements(t *testing.T) {
	stmts := SchemaStatements()
	require.NotEmpty(t, stmts)
	joined := ""
	for _, s := range stmts {
		assert.NotContains(t, s, ";")
		joined += s + "\n"
	}
	for _, table := range []string{"routines", "rooms", "teachers", "subjects", "teacher_constraints", "audit_logs"} {
		assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}

func TestEnsureSchema(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "sqlmock")

	mock.ExpectBegin()
	for _, stmt := range SchemaStatements() {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()
	require.NoError(t, EnsureSchema(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaRollsBack(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "sqlmock")

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS routines").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()
	err = EnsureSchema(context.Background(), db)
	assert.ErrorContains(t, err, "apply schema statement 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
