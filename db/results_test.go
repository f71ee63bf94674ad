package db_test

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"evaluations/db"
	"evaluations/internal/evaluation"
	"evaluations/models"
)

var resultColumns = []string{
	"id", "campaign_id", "evaluatee_id", "overall_score", "self_score", "supervisor_score",
	"peer_score", "subordinate_score", "total_evaluators", "completion_rate",
	"is_finalized", "finalized_at", "created_at",
}

var createdAt = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newStorage(t *testing.T) (*db.Storage, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		conn.Close()
	})
	return db.NewStorage(sqlx.NewDb(conn, "sqlmock")), mock
}

// resultRow - строка result в том виде, в каком NUMERIC приходит от драйвера
func resultRow(finalized bool, overall []byte) []driver.Value {
	var finalizedAt driver.Value
	if finalized {
		finalizedAt = createdAt
	}
	return []driver.Value{
		"r1", "c1", "u", overall, nil, []byte("3.00"),
		[]byte("4.14"), nil, int64(3), []byte("75.00"),
		finalized, finalizedAt, createdAt,
	}
}

func TestUpsertResultInserts(t *testing.T) {
	store, mock := newStorage(t)
	overall := decimal.RequireFromString("3.57")

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO result")).
		WithArgs("r1", "c1", "u", overall.String(), nil, sqlmock.AnyArg(),
			sqlmock.AnyArg(), nil, int64(3), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM result WHERE campaign_id=$1 AND evaluatee_id=$2")).
		WithArgs("c1", "u").
		WillReturnRows(sqlmock.NewRows(resultColumns).AddRow(resultRow(false, []byte("3.57"))...))

	saved, created, err := store.UpsertResult(context.Background(), &models.Result{
		ID:              "r1",
		CampaignID:      "c1",
		EvaluateeID:     "u",
		OverallScore:    decimal.NewNullDecimal(overall),
		SupervisorScore: decimal.NewNullDecimal(decimal.RequireFromString("3")),
		PeerScore:       decimal.NewNullDecimal(decimal.RequireFromString("4.14")),
		TotalEvaluators: 3,
		CompletionRate:  decimal.RequireFromString("75"),
	})
	require.NoError(t, err)
	require.True(t, created)

	// NUMERIC(5,2) читается обратно без потерь
	require.True(t, saved.OverallScore.Valid)
	require.True(t, overall.Equal(saved.OverallScore.Decimal))
	require.False(t, saved.SelfScore.Valid)
	require.True(t, decimal.RequireFromString("4.14").Equal(saved.PeerScore.Decimal))
	require.True(t, decimal.RequireFromString("75").Equal(saved.CompletionRate))
	require.Equal(t, 3, saved.TotalEvaluators)
	require.Nil(t, saved.FinalizedAt)
}

func TestUpsertResultUpdatesOpenRow(t *testing.T) {
	store, mock := newStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE result.is_finalized = FALSE")).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM result WHERE campaign_id=$1")).
		WillReturnRows(sqlmock.NewRows(resultColumns).AddRow(resultRow(false, []byte("4.20"))...))

	saved, created, err := store.UpsertResult(context.Background(), &models.Result{ID: "other", CampaignID: "c1", EvaluateeID: "u"})
	require.NoError(t, err)
	require.False(t, created)
	// при конфликте сохраняется прежний id
	require.Equal(t, "r1", saved.ID)
	require.True(t, decimal.RequireFromString("4.2").Equal(saved.OverallScore.Decimal))
}

func TestUpsertResultKeepsFinalizedRow(t *testing.T) {
	store, mock := newStorage(t)

	// условие DO UPDATE не выполнено: RETURNING не вернул строк
	mock.ExpectQuery(regexp.QuoteMeta("WHERE result.is_finalized = FALSE")).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM result WHERE campaign_id=$1")).
		WithArgs("c1", "u").
		WillReturnRows(sqlmock.NewRows(resultColumns).AddRow(resultRow(true, []byte("4.80"))...))

	existing, created, err := store.UpsertResult(context.Background(), &models.Result{
		ID:           "r2",
		CampaignID:   "c1",
		EvaluateeID:  "u",
		OverallScore: decimal.NewNullDecimal(decimal.RequireFromString("1")),
	})
	require.ErrorIs(t, err, evaluation.ErrAlreadyFinalized)
	require.False(t, created)
	require.True(t, existing.IsFinalized)
	require.NotNil(t, existing.FinalizedAt)
	require.True(t, decimal.RequireFromString("4.8").Equal(existing.OverallScore.Decimal))
}

func TestConditionalResultUpdates(t *testing.T) {
	store, mock := newStorage(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE result SET overall_score=$1 WHERE id=$2 AND is_finalized = FALSE")).
		WithArgs("4.8", "r1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err := store.AdjustOverallScore(ctx, "r1", decimal.RequireFromString("4.8"))
	require.NoError(t, err)
	require.False(t, ok)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE result SET is_finalized = TRUE")).
		WithArgs(createdAt, "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err = store.FinalizeResult(ctx, "r1", createdAt)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE result SET is_finalized = FALSE")).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = store.ReopenResult(ctx, "r1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetResultNotFound(t *testing.T) {
	store, mock := newStorage(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM result WHERE id=$1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(resultColumns))

	_, err := store.GetResult(context.Background(), "missing")
	require.ErrorIs(t, err, evaluation.ErrNotFound)
}
