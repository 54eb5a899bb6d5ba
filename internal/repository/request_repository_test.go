package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalworks/imagery-api/internal/models"
)

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func emptyRequestRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "full_name", "email", "company", "phone",
		"aoi_kind", "aoi_ring", "aoi_area_km2", "aoi_center_lat", "aoi_center_lng",
		"start_date", "end_date", "filters", "urgency", "additional_requirements",
		"status", "admin_notes", "quote_amount", "quote_currency",
		"reviewed_at", "reviewed_by", "created_at", "updated_at",
	})
}

func TestRequestRepositoryCreateSeedsHistory(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO imagery_requests").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO request_status_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	req := &models.ImageryRequest{
		FullName:   "Jane Analyst",
		Email:      "jane@example.com",
		AOIKind:    models.AOIPolygon,
		AOIRing:    models.GeoRing{{Lat: 20, Lng: 10}, {Lat: 30, Lng: 10}, {Lat: 30, Lng: 20}, {Lat: 20, Lng: 10}},
		AOIAreaKm2: 1043.5,
		Urgency:    models.UrgencyStandard,
	}
	require.NoError(t, repo.Create(context.Background(), req))
	require.NoError(t, mock.ExpectationsWereMet())

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, models.StatusPending, req.Status)
	require.Len(t, req.StatusHistory, 1)
	assert.Equal(t, models.StatusPending, req.StatusHistory[0].Status)
	assert.Equal(t, req.ID, req.StatusHistory[0].RequestID)
}

func TestRequestRepositoryFindByIDScoped(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	id := uuid.NewString()
	mock.ExpectQuery(`(?s)SELECT id, user_id.+FROM imagery_requests WHERE id = \$1 AND user_id = \$2`).
		WithArgs(id, "user-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), id, OwnedBy("user-1"))
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListDefaults(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery(`(?s)SELECT id, user_id.+FROM imagery_requests WHERE 1=1 ORDER BY created_at DESC LIMIT 20 OFFSET 0`).
		WillReturnRows(emptyRequestRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM imagery_requests WHERE 1=1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.RequestFilter{Page: 1, Limit: 20}, ScopeAny)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListClampsLimit(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery(`(?s)SELECT id, user_id.+ORDER BY created_at DESC LIMIT 100 OFFSET 0`).
		WillReturnRows(emptyRequestRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.RequestFilter{Page: 0, Limit: 500}, ScopeAny)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListFallsBackOnUnknownSort(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery(`(?s)SELECT id, user_id.+ORDER BY created_at ASC LIMIT 20 OFFSET 0`).
		WillReturnRows(emptyRequestRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	filter := models.RequestFilter{Page: 1, Limit: 20, SortBy: "1; DROP TABLE imagery_requests", SortOrder: "asc"}
	_, _, err := repo.List(context.Background(), filter, ScopeAny)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListSecondarySort(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery(`(?s)SELECT id, user_id.+ORDER BY status ASC, created_at DESC LIMIT 20 OFFSET 0`).
		WillReturnRows(emptyRequestRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	filter := models.RequestFilter{Page: 1, Limit: 20, SortBy: "status", SortOrder: "asc"}
	_, _, err := repo.List(context.Background(), filter, ScopeAny)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	status := models.StatusPending
	mock.ExpectQuery(`(?s)SELECT id, user_id.+WHERE 1=1 AND user_id = \$1 AND status = \$2 AND LOWER\(email\) LIKE \$3`).
		WithArgs("user-1", "pending", "%jane%").
		WillReturnRows(emptyRequestRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("user-1", "pending", "%jane%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	filter := models.RequestFilter{Page: 1, Limit: 20, Status: &status, Email: "JANE"}
	_, _, err := repo.List(context.Background(), filter, OwnedBy("user-1"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateWithHistory(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE imagery_requests SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO request_status_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	req := &models.ImageryRequest{ID: uuid.NewString(), Status: models.StatusReviewing}
	entry := &models.StatusHistoryEntry{Status: models.StatusReviewing}
	require.NoError(t, repo.UpdateWithHistory(context.Background(), req, entry))
	require.NoError(t, mock.ExpectationsWereMet())

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, req.ID, entry.RequestID)
	assert.False(t, entry.ChangedAt.IsZero())
}

func TestRequestRepositoryListHistory(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	requestID := uuid.NewString()
	rows := sqlmock.NewRows([]string{"id", "request_id", "status", "changed_at", "changed_by", "notes"}).
		AddRow("h1", requestID, "pending", time.Now(), nil, nil).
		AddRow("h2", requestID, "reviewing", time.Now(), "admin-1", "Triaged")
	mock.ExpectQuery("SELECT id, request_id, status, changed_at").
		WithArgs(requestID).
		WillReturnRows(rows)

	history, err := repo.ListHistory(context.Background(), requestID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.StatusPending, history[0].Status)
	assert.Equal(t, models.StatusReviewing, history[1].Status)
	require.NotNil(t, history[1].ChangedBy)
	assert.Equal(t, "admin-1", *history[1].ChangedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("pending", 4).
		AddRow("quoted", 2)
	mock.ExpectQuery("SELECT status, COUNT").WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"pending": 4, "quoted": 2}, counts)
}
