package evaluation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"evaluations/internal/evaluation"
	"evaluations/internal/evaluation/testutils"
	"evaluations/models"
)

// flakyAnalyzer падает первые fails вызовов
type flakyAnalyzer struct {
	mu       sync.Mutex
	fails    int
	calls    int
	category string
}

func (a *flakyAnalyzer) Analyze(context.Context, string) (float64, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.calls <= a.fails {
		return 0, "", errors.New("analyzer unavailable")
	}
	return 0.8, a.category, nil
}

func (a *flakyAnalyzer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func seedResponse(t *testing.T, store *testutils.MemStore, id string) {
	t.Helper()
	text := "Always helpful"
	_, _, err := store.UpsertResponse(context.Background(), &models.Response{
		ID:           id,
		AssignmentID: "a1",
		QuestionID:   "q1",
		TextAnswer:   &text,
	})
	require.NoError(t, err)
}

func runQueue(t *testing.T, q *evaluation.SentimentQueue) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func TestSentimentQueueRetriesAnalyzer(t *testing.T) {
	store := testutils.NewMemStore()
	seedResponse(t, store, "r1")
	analyzer := &flakyAnalyzer{fails: 2, category: evaluation.SentimentPositive}

	q := evaluation.NewSentimentQueue(analyzer, store, evaluation.SentimentOptions{
		Workers:    1,
		QueueSize:  4,
		MaxRetries: 3,
		Backoff:    time.Millisecond,
	})
	runQueue(t, q)

	require.NoError(t, q.Enqueue(context.Background(), evaluation.ResponseTextSaved{ResponseID: "r1", Text: "Always helpful"}))

	require.Eventually(t, func() bool {
		r, _ := store.Response("r1")
		return r.SentimentCategory != nil
	}, time.Second, 5*time.Millisecond)

	r, _ := store.Response("r1")
	require.Equal(t, evaluation.SentimentPositive, *r.SentimentCategory)
	require.InDelta(t, 0.8, *r.SentimentScore, 1e-9)
	require.Equal(t, 3, analyzer.Calls())
}

func TestSentimentQueueGivesUp(t *testing.T) {
	store := testutils.NewMemStore()
	seedResponse(t, store, "r1")
	analyzer := &flakyAnalyzer{fails: 100, category: evaluation.SentimentNeutral}

	q := evaluation.NewSentimentQueue(analyzer, store, evaluation.SentimentOptions{
		Workers:    2,
		MaxRetries: 3,
		Backoff:    time.Millisecond,
	})
	runQueue(t, q)

	require.NoError(t, q.Enqueue(context.Background(), evaluation.ResponseTextSaved{ResponseID: "r1", Text: "meh"}))

	// первая попытка и три повтора
	require.Eventually(t, func() bool { return analyzer.Calls() == 4 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 4, analyzer.Calls())

	r, _ := store.Response("r1")
	require.Nil(t, r.SentimentCategory)
	require.Nil(t, r.SentimentScore)
}

func TestSentimentQueueRejectsUnknownCategory(t *testing.T) {
	store := testutils.NewMemStore()
	seedResponse(t, store, "r1")
	analyzer := &flakyAnalyzer{category: "ecstatic"}

	q := evaluation.NewSentimentQueue(analyzer, store, evaluation.SentimentOptions{MaxRetries: 3, Backoff: time.Millisecond})
	runQueue(t, q)

	require.NoError(t, q.Enqueue(context.Background(), evaluation.ResponseTextSaved{ResponseID: "r1", Text: "wow"}))
	require.Eventually(t, func() bool { return analyzer.Calls() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	// неизвестная категория не повторяется
	require.Equal(t, 1, analyzer.Calls())
	r, _ := store.Response("r1")
	require.Nil(t, r.SentimentCategory)
}

func TestSentimentEnqueueNeverBlocks(t *testing.T) {
	q := evaluation.NewSentimentQueue(evaluation.NeutralAnalyzer{}, testutils.NewMemStore(), evaluation.SentimentOptions{QueueSize: 1})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			_ = q.Enqueue(context.Background(), evaluation.ResponseTextSaved{ResponseID: "r", Text: "t"})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}
}

func TestRecordedTextGetsSentiment(t *testing.T) {
	f := newFixture(t)
	f.seedTeam()
	c := f.activeCampaign(false)
	text := f.question(f.category(), models.QuestionText, true)
	f.attach(c.ID, text)
	a := f.assign(c.ID, "p1", "u", models.RelationPeer)

	q := evaluation.NewSentimentQueue(evaluation.NeutralAnalyzer{}, f.store, evaluation.SentimentOptions{Backoff: time.Millisecond})
	f.engine.Bus.OnResponseTextSaved(q.Enqueue)
	runQueue(t, q)

	resp, err := f.engine.Recorder.Record(f.ctx, a.ID, text.ID, evaluation.Answer{Text: strPtr("Needs to listen more")})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r, _ := f.store.Response(resp.ID)
		return r.SentimentCategory != nil
	}, time.Second, 5*time.Millisecond)
	r, _ := f.store.Response(resp.ID)
	require.Equal(t, evaluation.SentimentNeutral, *r.SentimentCategory)
}
