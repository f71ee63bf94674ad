package evaluation_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"evaluations/internal/evaluation"
	"evaluations/internal/evaluation/testutils"
	"evaluations/models"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *testutils.MemStore
	engine *evaluation.Engine
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithPolicy(t, evaluation.DefaultPolicy())
}

func newFixtureWithPolicy(t *testing.T, policy evaluation.Policy) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: testutils.NewMemStore(),
		now:   fixedNow,
	}
	e, err := evaluation.NewEngine(f.store, f.store, policy, evaluation.WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.engine = e
	return f
}

// seedTeam: руководитель s и сотрудники u, p1, p2 в отделе dev, x в отделе ops
func (f *fixture) seedTeam() {
	f.store.AddUser(
		testutils.User("s", "dev", ""),
		testutils.User("u", "dev", "s"),
		testutils.User("p1", "dev", "s"),
		testutils.User("p2", "dev", "s"),
		testutils.User("x", "ops", ""),
	)
}

func (f *fixture) campaign(opts evaluation.CampaignOptions) *models.Campaign {
	f.t.Helper()
	c, err := f.engine.Lifecycle.Create(f.ctx, "Q1 review", "quarterly 360",
		fixedNow.AddDate(0, 0, -1), fixedNow.AddDate(0, 0, 30), opts)
	require.NoError(f.t, err)
	return c
}

func (f *fixture) activeCampaign(allowSelf bool) *models.Campaign {
	f.t.Helper()
	c := f.campaign(evaluation.CampaignOptions{AllowSelfEvaluation: allowSelf})
	c, err := f.engine.Lifecycle.Activate(f.ctx, c.ID)
	require.NoError(f.t, err)
	return c
}

func (f *fixture) category() string {
	f.t.Helper()
	cat, err := f.engine.Catalog.CreateCategory(f.ctx, "Leadership", "", 1)
	require.NoError(f.t, err)
	return cat.ID
}

func (f *fixture) question(categoryID, kind string, required bool) *models.Question {
	f.t.Helper()
	q, err := f.engine.Catalog.CreateQuestion(f.ctx, evaluation.QuestionInput{
		CategoryID: categoryID,
		Text:       fmt.Sprintf("%s question", kind),
		Type:       kind,
		IsRequired: required,
	})
	require.NoError(f.t, err)
	return q
}

// scaleQuestions создаёт n обязательных вопросов по шкале и привязывает их к кампании
func (f *fixture) scaleQuestions(campaignID string, n int) []*models.Question {
	f.t.Helper()
	cat := f.category()
	qs := make([]*models.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, f.question(cat, models.QuestionScale, true))
	}
	f.attach(campaignID, qs...)
	return qs
}

func (f *fixture) attach(campaignID string, qs ...*models.Question) {
	f.t.Helper()
	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ID)
	}
	_, err := f.engine.Catalog.AttachQuestions(f.ctx, campaignID, ids)
	require.NoError(f.t, err)
}

func (f *fixture) assign(campaignID, evaluator, evaluatee, relationship string) *models.Assignment {
	f.t.Helper()
	a, err := f.engine.Assigner.AssignOne(f.ctx, campaignID, evaluator, evaluatee, relationship)
	require.NoError(f.t, err)
	return a
}

// score отвечает на вопросы по шкале баллами scores по порядку
func (f *fixture) score(assignmentID string, qs []*models.Question, scores ...int) {
	f.t.Helper()
	require.Len(f.t, scores, len(qs))
	for i, q := range qs {
		_, err := f.engine.Recorder.Record(f.ctx, assignmentID, q.ID, evaluation.Answer{Score: intPtr(scores[i])})
		require.NoError(f.t, err)
	}
}

// complete создаёт назначение, заполняет и отправляет его
func (f *fixture) complete(campaignID, evaluator, evaluatee, relationship string, qs []*models.Question, scores ...int) *models.Assignment {
	f.t.Helper()
	a := f.assign(campaignID, evaluator, evaluatee, relationship)
	f.score(a.ID, qs, scores...)
	done, err := f.engine.Recorder.Submit(f.ctx, a.ID)
	require.NoError(f.t, err)
	return done
}

func (f *fixture) result(campaignID, evaluateeID string) *models.Result {
	f.t.Helper()
	r, err := f.store.GetResultFor(f.ctx, campaignID, evaluateeID)
	require.NoError(f.t, err)
	return r
}

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	w := decimal.RequireFromString(want)
	require.Truef(t, w.Equal(got), "want %s, got %s", w, got)
}

func requireScore(t *testing.T, want string, got decimal.NullDecimal) {
	t.Helper()
	require.True(t, got.Valid, "score is null, want %s", want)
	requireDecimal(t, want, got.Decimal)
}
