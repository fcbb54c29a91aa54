package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/student-portal/pkg/errors"
)

func newSQLStoreMock(t *testing.T) (*SQLStore, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	s := NewSQLStore(sqlxDB)
	s.now = func() time.Time { return time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC) }
	return s, mock, func() {
		sqlxDB.Close()
	}
}

func TestSQLStoreFetchAll(t *testing.T) {
	s, mock, cleanup := newSQLStoreMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "fields"}).
		AddRow("c1", `{"name":"Database Design","progress":90}`).
		AddRow("c2", `{"name":"Java"}`)
	mock.ExpectQuery("SELECT id, fields FROM documents").
		WithArgs(CollectionCourses).
		WillReturnRows(rows)

	records, err := s.FetchAll(context.Background(), CollectionCourses)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "c1", records[0].ID)
	assert.Equal(t, float64(90), records[0].Fields["progress"])
	assert.Equal(t, "Java", records[1].Fields["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreFetchAllMalformed(t *testing.T) {
	s, mock, cleanup := newSQLStoreMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, fields FROM documents").
		WithArgs(CollectionGroups).
		WillReturnRows(sqlmock.NewRows([]string{"id", "fields"}).AddRow("g1", `{not json`))

	_, err := s.FetchAll(context.Background(), CollectionGroups)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStoreMalformed))
}

func TestSQLStoreFetchAllUnavailable(t *testing.T) {
	s, mock, cleanup := newSQLStoreMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, fields FROM documents").
		WithArgs(CollectionGroups).
		WillReturnError(errors.New("connection refused"))

	_, err := s.FetchAll(context.Background(), CollectionGroups)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStoreUnavailable))
}

func TestSQLStoreWriteFieldInsertsNewDocument(t *testing.T) {
	s, mock, cleanup := newSQLStoreMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT fields FROM documents").
		WithArgs(CollectionMemberships, "current_user:Chess Club").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(CollectionMemberships).
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))
	mock.ExpectExec("INSERT INTO documents").
		WithArgs(CollectionMemberships, "current_user:Chess Club", int64(3), `{"joined":true}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.WriteField(context.Background(), CollectionMemberships, "current_user:Chess Club", "joined", true)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreWriteFieldMergesExistingDocument(t *testing.T) {
	s, mock, cleanup := newSQLStoreMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT fields FROM documents").
		WithArgs(CollectionStudents, "current_user").
		WillReturnRows(sqlmock.NewRows([]string{"fields"}).AddRow(`{"name":"Ana","preferredLanguage":"English"}`))
	mock.ExpectExec("UPDATE documents SET fields").
		WithArgs(`{"name":"Ana","preferredLanguage":"French"}`, sqlmock.AnyArg(), CollectionStudents, "current_user").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WriteField(context.Background(), CollectionStudents, "current_user", "preferredLanguage", "French")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreWriteFieldRollsBackOnFailure(t *testing.T) {
	s, mock, cleanup := newSQLStoreMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT fields FROM documents").
		WithArgs(CollectionStudents, "current_user").
		WillReturnRows(sqlmock.NewRows([]string{"fields"}).AddRow(`{}`))
	mock.ExpectExec("UPDATE documents SET fields").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.WriteField(context.Background(), CollectionStudents, "current_user", "preferredLanguage", "French")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStoreUnavailable))
	require.NoError(t, mock.ExpectationsWereMet())
}
