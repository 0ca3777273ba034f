package cleanuppreferences

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wikiguard/src/database"
	"wikiguard/src/repository"
)

func setupDBMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: true}), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)

	return gormDB, mock
}

func newCleanup(t *testing.T, config *Config) (*CleanupPreferences, sqlmock.Sqlmock, *bytes.Buffer) {
	db, mock := setupDBMock(t)
	out := &bytes.Buffer{}
	return &CleanupPreferences{
		Log:    logrus.WithField("cmd", "cleanup-preferences"),
		Out:    out,
		Repo:   repository.NewUserPropertyRepository(db),
		Tx:     database.NewTxManager(db),
		Config: config,
	}, mock, out
}

var columns = []string{"up_user", "up_property", "up_value"}

const hiddenQuery = `SELECT * FROM "user_properties" WHERE up_property = $1 ORDER BY up_user, up_property LIMIT $2`

func TestStart_NoModeSelected(t *testing.T) {
	c, mock, out := newCleanup(t, &Config{BatchSize: 50})

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, "Did not select one of --hidden, --unknown, exiting\n", out.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStart_HiddenDeletesEachRowInItsOwnTransaction(t *testing.T) {
	c, mock, out := newCleanup(t, &Config{HiddenPrefs: []string{"gender"}, BatchSize: 50})
	c.Hidden = true

	mock.ExpectQuery(regexp.QuoteMeta(hiddenQuery)).
		WithArgs("gender", 50).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(1, "gender", "female").AddRow(2, "gender", "male"))
	for _, row := range []struct {
		user  uint
		value string
	}{{1, "female"}, {2, "male"}} {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "user_properties" WHERE up_user = $1 AND up_property = $2 AND up_value = $3`)).
			WithArgs(row.user, "gender", row.value).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}
	mock.ExpectQuery(regexp.QuoteMeta(hiddenQuery)).
		WithArgs("gender", 50).
		WillReturnRows(sqlmock.NewRows(columns))

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, "Dropping hidden preferences...\n"+
		"..doing 2 entries\n"+
		"DONE! (handled 2 entries)\n", out.String())
	assert.Equal(t, 0, c.Tx.Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStart_DryRunPagesThroughWithoutDeleting(t *testing.T) {
	c, mock, out := newCleanup(t, &Config{DefaultUserOptions: []string{"skin"}, BatchSize: 1})
	c.Unknown = true
	c.DryRun = true

	unknownQuery := `SELECT * FROM "user_properties" WHERE up_property NOT LIKE $1 AND up_property NOT IN ($2) ORDER BY up_user, up_property LIMIT $3`
	mock.ExpectQuery(regexp.QuoteMeta(unknownQuery)).
		WithArgs("userjs-%", "skin", 1).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(3, "oldext-pref", "1"))
	mock.ExpectQuery(regexp.QuoteMeta(unknownQuery+` OFFSET $4`)).
		WithArgs("userjs-%", "skin", 1, 1).
		WillReturnRows(sqlmock.NewRows(columns))

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, "Dropping unknown preferences...\n"+
		"..doing 1 entries\n"+
		"    DRY RUN, would drop: [up_user] => '3' [up_property] => 'oldext-pref' [up_value] => '1'\n"+
		"DONE! (handled 1 entries)\n", out.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStart_HiddenWithoutConfiguredPrefs(t *testing.T) {
	c, mock, out := newCleanup(t, &Config{BatchSize: 50})
	c.Hidden = true

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, "No hidden preferences, skipping\n", out.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStart_UnknownRequiresDefaults(t *testing.T) {
	c, _, _ := newCleanup(t, &Config{BatchSize: 50})
	c.Unknown = true

	assert.Error(t, c.Start(context.Background()))
}

func TestStart_DeleteFailureRollsBack(t *testing.T) {
	c, mock, _ := newCleanup(t, &Config{HiddenPrefs: []string{"gender"}, BatchSize: 50})
	c.Hidden = true

	mock.ExpectQuery(regexp.QuoteMeta(hiddenQuery)).
		WithArgs("gender", 50).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(1, "gender", "female"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "user_properties"`)).
		WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `drop preference "gender" of user 1`)
	assert.Equal(t, 0, c.Tx.Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}
