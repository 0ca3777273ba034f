package migrations

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	return gdb, mock
}

const columnQuery = `SELECT data_type FROM information_schema.columns WHERE table_name = $1 AND column_name = $2`

func TestPrepareLegacyExceptionTable_RenamesOldLayout(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(columnQuery)).
		WithArgs("exceptions", "service").
		WillReturnRows(sqlmock.NewRows([]string{"data_type"}).AddRow("character varying"))
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE exceptions RENAME TO exceptions_legacy`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, PrepareLegacyExceptionTable(db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrepareLegacyExceptionTable_LeavesCurrentLayout(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(columnQuery)).
		WithArgs("exceptions", "service").
		WillReturnRows(sqlmock.NewRows([]string{"data_type"}))

	require.NoError(t, PrepareLegacyExceptionTable(db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsStringy(t *testing.T) {
	assert.True(t, isStringy("character varying"))
	assert.True(t, isStringy("TEXT"))
	assert.False(t, isStringy("bigint"))
}
