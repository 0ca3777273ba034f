package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikiguard/src/database"
	"wikiguard/src/model"
)

func TestUserPropertyRepository_FindBatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserPropertyRepository(db)

	t.Run("single property", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "user_properties" WHERE up_property = $1 ORDER BY up_user, up_property LIMIT $2`)).
			WithArgs("gender", 50).
			WillReturnRows(sqlmock.NewRows([]string{"up_user", "up_property", "up_value"}).
				AddRow(1, "gender", "female").
				AddRow(2, "gender", "male"))

		rows, err := repo.FindBatch(context.Background(), PropertyFilter{Property: "gender"}, 50, 0)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, model.UserProperty{User: 1, Property: "gender", Value: "female"}, rows[0])
	})

	t.Run("unknown properties with offset", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "user_properties" WHERE up_property NOT LIKE $1 AND up_property NOT IN ($2,$3) ORDER BY up_user, up_property LIMIT $4 OFFSET $5`)).
			WithArgs("userjs-%", "skin", "language", 50, 100).
			WillReturnRows(sqlmock.NewRows([]string{"up_user", "up_property", "up_value"}))

		rows, err := repo.FindBatch(context.Background(), PropertyFilter{
			Exclude:       []string{"skin", "language"},
			ExcludePrefix: "userjs-",
		}, 50, 100)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPropertyRepository_DeleteMarksTransactionDirty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserPropertyRepository(db)
	manager := database.NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "user_properties" WHERE up_user = $1 AND up_property = $2 AND up_value = $3`)).
		WithArgs(uint(4), "gender", "male").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := manager.Begin(context.Background())
	require.NoError(t, err)

	n, err := repo.Delete(tx, model.UserProperty{User: 4, Property: "gender", Value: "male"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	dirty, err := manager.HasUncommittedChanges()
	require.NoError(t, err)
	assert.True(t, dirty)

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
