package db_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"evaluations/models"
)

var responseColumns = []string{
	"id", "assignment_id", "question_id", "score", "boolean_answer", "text_answer",
	"comment", "sentiment_score", "sentiment_category", "created_at", "updated_at",
}

func TestUpsertResponseReportsInsert(t *testing.T) {
	store, mock := newStorage(t)
	score := 4

	mock.ExpectQuery(regexp.QuoteMeta("RETURNING id, (xmax = 0) AS inserted")).
		WithArgs("resp1", "a1", "q1", int64(4), nil, nil, "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "inserted"}).AddRow("resp1", true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM response WHERE id=$1")).
		WithArgs("resp1").
		WillReturnRows(sqlmock.NewRows(responseColumns).
			AddRow("resp1", "a1", "q1", int64(4), nil, nil, "", nil, nil, createdAt, createdAt))

	saved, created, err := store.UpsertResponse(context.Background(), &models.Response{
		ID: "resp1", AssignmentID: "a1", QuestionID: "q1", Score: &score,
	})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, 4, *saved.Score)
}

func TestUpsertResponseOverwriteResetsSentiment(t *testing.T) {
	store, mock := newStorage(t)
	text := "Keeps the team informed"

	mock.ExpectQuery(`sentiment_score = NULL,\s+sentiment_category = NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "inserted"}).AddRow("resp1", false))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM response WHERE id=$1")).
		WithArgs("resp1").
		WillReturnRows(sqlmock.NewRows(responseColumns).
			AddRow("resp1", "a1", "q1", nil, nil, text, "", nil, nil, createdAt, createdAt))

	// новый id при конфликте не используется
	saved, created, err := store.UpsertResponse(context.Background(), &models.Response{
		ID: "resp2", AssignmentID: "a1", QuestionID: "q1", TextAnswer: &text,
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "resp1", saved.ID)
	require.Nil(t, saved.SentimentScore)
	require.Nil(t, saved.SentimentCategory)
}
