package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"contact-intake-go/internal/model"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return New(db), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `contact_messages`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	msg := &model.ContactMessage{
		Name:      "Jean Dupont",
		Email:     "jean.dupont@example.com",
		Subject:   "Demande de devis",
		Message:   "Bonjour, je souhaiterais obtenir un devis.",
		SpamScore: 0,
		Status:    model.StatusPending,
	}
	require.NoError(t, repo.Create(context.Background(), msg))

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.Nil(t, msg.ProcessedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_RejectsUnknownStatus(t *testing.T) {
	repo, mock := newMockRepository(t)

	err := repo.Create(context.Background(), &model.ContactMessage{Status: "ARCHIVED"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `contact_messages` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), "msg-1", model.StatusSent, time.Now())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_NotPending(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `contact_messages` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), "msg-1", model.StatusFailed, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_RejectsNonTerminalTarget(t *testing.T) {
	repo, mock := newMockRepository(t)

	for _, status := range []model.Status{model.StatusPending, model.StatusSpam, "BOGUS"} {
		err := repo.UpdateStatus(context.Background(), "msg-1", status, time.Now())
		assert.ErrorIs(t, err, ErrInvalidTransition, "status %s", status)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	repo, mock := newMockRepository(t)
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "name", "email", "subject", "message", "spam_score", "status", "created_at"}).
		AddRow("msg-1", "Jean Dupont", "jean.dupont@example.com", "Demande", "Bonjour tout le monde", 0, "SENT", created)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `contact_messages` WHERE id = ?")).
		WillReturnRows(rows)

	msg, err := repo.Get(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "Jean Dupont", msg.Name)
	assert.Equal(t, model.StatusSent, msg.Status)
	assert.Equal(t, created, msg.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `contact_messages` WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `contact_messages` WHERE status = ?")).
		WithArgs("FAILED").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `contact_messages` WHERE status = ? ORDER BY created_at DESC LIMIT")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).
			AddRow("a", "FAILED").
			AddRow("b", "FAILED"))

	msgs, total, err := repo.List(context.Background(), model.ListOptions{Status: model.StatusFailed, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, msgs, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByStatus(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS count FROM `contact_messages` GROUP BY")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("SENT", 7).
			AddRow("SPAM", 2))

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), counts[model.StatusSent])
	assert.Equal(t, int64(2), counts[model.StatusSpam])
	assert.Equal(t, int64(0), counts[model.StatusPending])
	assert.Len(t, counts, len(model.Statuses))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStalePending(t *testing.T) {
	repo, mock := newMockRepository(t)
	cutoff := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `contact_messages` WHERE status = ? AND created_at < ? ORDER BY created_at ASC LIMIT")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("old", "PENDING"))

	msgs, err := repo.ListStalePending(context.Background(), cutoff, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "old", msgs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
