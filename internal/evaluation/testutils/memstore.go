package testutils

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"evaluations/internal/evaluation"
	"evaluations/models"
)

type campaignQuestion struct {
	questionID string
	order      int
}

type state struct {
	users       map[string]models.User
	campaigns   map[string]models.Campaign
	categories  map[string]models.QuestionCategory
	questions   map[string]models.Question
	attached    map[string][]campaignQuestion
	assignments map[string]models.Assignment
	responses   map[string]models.Response
	results     map[string]models.Result
	audit       []models.AuditRecord
}

func newState() state {
	return state{
		users:       map[string]models.User{},
		campaigns:   map[string]models.Campaign{},
		categories:  map[string]models.QuestionCategory{},
		questions:   map[string]models.Question{},
		attached:    map[string][]campaignQuestion{},
		assignments: map[string]models.Assignment{},
		responses:   map[string]models.Response{},
		results:     map[string]models.Result{},
	}
}

func copyMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s state) clone() state {
	attached := make(map[string][]campaignQuestion, len(s.attached))
	for k, v := range s.attached {
		attached[k] = append([]campaignQuestion(nil), v...)
	}
	return state{
		users:       copyMap(s.users),
		campaigns:   copyMap(s.campaigns),
		categories:  copyMap(s.categories),
		questions:   copyMap(s.questions),
		attached:    attached,
		assignments: copyMap(s.assignments),
		responses:   copyMap(s.responses),
		results:     copyMap(s.results),
		audit:       append([]models.AuditRecord(nil), s.audit...),
	}
}

// MemStore - хранилище в памяти для тестов ядра и обработчиков.
// Транзакции выполняются строго по одной и откатываются при ошибке.
type MemStore struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	st       state
	seq      int64
	finalize map[string]error
	listErr  error
}

func NewMemStore() *MemStore {
	return &MemStore{st: newState(), finalize: map[string]error{}}
}

var (
	_ evaluation.Store     = (*MemStore)(nil)
	_ evaluation.Directory = (*MemStore)(nil)
)

// txView - хранилище внутри транзакции; вложенный InTx выполняется в ней же
type txView struct {
	*MemStore
}

func (t txView) InTx(_ context.Context, _ string, fn func(tx evaluation.Store) error) error {
	return fn(t)
}

func (m *MemStore) InTx(_ context.Context, _ string, fn func(tx evaluation.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	snapshot := m.st.clone()
	m.mu.RUnlock()

	if err := fn(txView{m}); err != nil {
		m.mu.Lock()
		m.st = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// tick выдаёт строго возрастающее время создания записей; вызывается под mu
func (m *MemStore) tick() time.Time {
	m.seq++
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Second)
}

func notFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, evaluation.ErrNotFound)
}

// FailFinalize заставляет FinalizeResult вернуть err для результата id
func (m *MemStore) FailFinalize(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalize[id] = err
}

// FailListResults заставляет ListResults вернуть err; nil снимает ошибку
func (m *MemStore) FailListResults(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// Directory

// AddUser добавляет пользователя в справочник
func (m *MemStore) AddUser(users ...models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range users {
		m.st.users[u.ID] = u
	}
}

// User собирает активного пользователя; пустые department и supervisor означают их отсутствие
func User(id, department, supervisor string) models.User {
	u := models.User{ID: id, FullName: id, Role: "employee", IsActive: true}
	if department != "" {
		u.DepartmentID = &department
	}
	if supervisor != "" {
		u.SupervisorID = &supervisor
	}
	return u
}

func (m *MemStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.st.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (m *MemStore) listUsers(keep func(models.User) bool) []models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := []models.User{}
	for _, u := range m.st.users {
		if keep(u) {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (m *MemStore) ListDepartmentMembers(_ context.Context, departmentID string) ([]models.User, error) {
	return m.listUsers(func(u models.User) bool {
		return u.DepartmentID != nil && *u.DepartmentID == departmentID
	}), nil
}

func (m *MemStore) ListSubordinates(_ context.Context, supervisorID string) ([]models.User, error) {
	return m.listUsers(func(u models.User) bool {
		return u.SupervisorID != nil && *u.SupervisorID == supervisorID
	}), nil
}

func (m *MemStore) ListActiveUsers(context.Context) ([]models.User, error) {
	return m.listUsers(func(u models.User) bool { return u.IsActive }), nil
}

// Campaign

func (m *MemStore) CreateCampaign(_ context.Context, c *models.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.campaigns[c.ID]; ok {
		return fmt.Errorf("campaign %s already exists", c.ID)
	}
	c.CreatedAt = m.tick()
	c.UpdatedAt = c.CreatedAt
	m.st.campaigns[c.ID] = *c
	return nil
}

func (m *MemStore) GetCampaign(_ context.Context, id string) (*models.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.st.campaigns[id]
	if !ok {
		return nil, notFound("campaign", id)
	}
	return &c, nil
}

func (m *MemStore) UpdateCampaignStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.st.campaigns[id]
	if !ok {
		return notFound("campaign", id)
	}
	c.Status = status
	c.UpdatedAt = m.tick()
	m.st.campaigns[id] = c
	return nil
}

// Catalog

func (m *MemStore) CreateCategory(_ context.Context, c *models.QuestionCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.CreatedAt = m.tick()
	m.st.categories[c.ID] = *c
	return nil
}

func (m *MemStore) CreateQuestion(_ context.Context, q *models.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.categories[q.CategoryID]; !ok {
		return notFound("category", q.CategoryID)
	}
	q.CreatedAt = m.tick()
	m.st.questions[q.ID] = *q
	return nil
}

func (m *MemStore) GetQuestion(_ context.Context, id string) (*models.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.st.questions[id]
	if !ok {
		return nil, notFound("question", id)
	}
	return &q, nil
}

func (m *MemStore) UpdateQuestion(_ context.Context, q *models.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.questions[q.ID]; !ok {
		return notFound("question", q.ID)
	}
	m.st.questions[q.ID] = *q
	return nil
}

func (m *MemStore) QuestionHasResponses(_ context.Context, questionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.st.responses {
		if r.QuestionID == questionID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) AttachQuestion(_ context.Context, campaignID, questionID string, order int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cq := range m.st.attached[campaignID] {
		if cq.questionID == questionID {
			return false, nil
		}
	}
	m.st.attached[campaignID] = append(m.st.attached[campaignID], campaignQuestion{questionID: questionID, order: order})
	return true, nil
}

func (m *MemStore) ListCampaignQuestions(_ context.Context, campaignID string) ([]models.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	attached := append([]campaignQuestion(nil), m.st.attached[campaignID]...)
	sort.SliceStable(attached, func(i, j int) bool { return attached[i].order < attached[j].order })
	questions := make([]models.Question, 0, len(attached))
	for _, cq := range attached {
		questions = append(questions, m.st.questions[cq.questionID])
	}
	return questions, nil
}

// Assignment

func (m *MemStore) CreateAssignment(_ context.Context, a *models.Assignment) (*models.Assignment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if (a.Relationship == models.RelationSelf) != (a.EvaluatorID == a.EvaluateeID) {
		return nil, false, fmt.Errorf("assignment %s violates self relationship check", a.ID)
	}
	for _, existing := range m.st.assignments {
		if existing.CampaignID == a.CampaignID && existing.EvaluatorID == a.EvaluatorID && existing.EvaluateeID == a.EvaluateeID {
			return &existing, false, nil
		}
	}
	a.CreatedAt = m.tick()
	m.st.assignments[a.ID] = *a
	out := *a
	return &out, true, nil
}

func (m *MemStore) GetAssignment(_ context.Context, id string) (*models.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.st.assignments[id]
	if !ok {
		return nil, notFound("assignment", id)
	}
	return &a, nil
}

func (m *MemStore) UpdateAssignmentStatus(_ context.Context, a *models.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.st.assignments[a.ID]
	if !ok {
		return notFound("assignment", a.ID)
	}
	cur.Status = a.Status
	cur.StartedAt = a.StartedAt
	cur.CompletedAt = a.CompletedAt
	m.st.assignments[a.ID] = cur
	return nil
}

func (m *MemStore) filterAssignments(keep func(models.Assignment) bool) []models.Assignment {
	out := []models.Assignment{}
	for _, a := range m.st.assignments {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func (m *MemStore) ListEvaluateeAssignments(_ context.Context, campaignID, evaluateeID string) ([]models.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.filterAssignments(func(a models.Assignment) bool {
		return a.CampaignID == campaignID && a.EvaluateeID == evaluateeID
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Relationship != out[j].Relationship {
			return out[i].Relationship < out[j].Relationship
		}
		return out[i].EvaluatorID < out[j].EvaluatorID
	})
	return out, nil
}

func (m *MemStore) ListEvaluatorAssignments(_ context.Context, evaluatorID string, limit, offset int) ([]models.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.filterAssignments(func(a models.Assignment) bool { return a.EvaluatorID == evaluatorID })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []models.Assignment{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) CountAssignments(_ context.Context, campaignID string) (total, completed int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.st.assignments {
		if a.CampaignID != campaignID {
			continue
		}
		total++
		if a.Status == models.AssignmentCompleted {
			completed++
		}
	}
	return total, completed, nil
}

func (m *MemStore) ExpireAssignments(_ context.Context, campaignID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, a := range m.st.assignments {
		if a.CampaignID != campaignID {
			continue
		}
		if a.Status == models.AssignmentPending || a.Status == models.AssignmentInProgress {
			a.Status = models.AssignmentExpired
			m.st.assignments[id] = a
			n++
		}
	}
	return n, nil
}

// Response

func (m *MemStore) UpsertResponse(_ context.Context, r *models.Response) (*models.Response, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.st.responses {
		if existing.AssignmentID != r.AssignmentID || existing.QuestionID != r.QuestionID {
			continue
		}
		existing.Score = r.Score
		existing.BooleanAnswer = r.BooleanAnswer
		existing.TextAnswer = r.TextAnswer
		existing.Comment = r.Comment
		existing.SentimentScore = nil
		existing.SentimentCategory = nil
		existing.UpdatedAt = m.tick()
		m.st.responses[id] = existing
		return &existing, false, nil
	}
	saved := *r
	saved.CreatedAt = m.tick()
	saved.UpdatedAt = saved.CreatedAt
	m.st.responses[saved.ID] = saved
	return &saved, true, nil
}

func (m *MemStore) ListResponses(_ context.Context, assignmentID string) ([]models.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Response{}
	for _, r := range m.st.responses {
		if r.AssignmentID == assignmentID {
			out = append(out, r)
		}
	}
	// порядок вопросов кампании
	order := map[string]int{}
	for _, cq := range m.st.attached[m.st.assignments[assignmentID].CampaignID] {
		order[cq.questionID] = cq.order
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := order[out[i].QuestionID], order[out[j].QuestionID]
		if oi != oj {
			return oi < oj
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out, nil
}

func (m *MemStore) ListScaleScores(_ context.Context, campaignID, evaluateeID string) ([]models.ScaleScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.ScaleScore{}
	for _, r := range m.st.responses {
		a := m.st.assignments[r.AssignmentID]
		if a.CampaignID != campaignID || a.EvaluateeID != evaluateeID || a.Status != models.AssignmentCompleted {
			continue
		}
		if m.st.questions[r.QuestionID].Type != models.QuestionScale || r.Score == nil {
			continue
		}
		cat := m.st.categories[m.st.questions[r.QuestionID].CategoryID]
		out = append(out, models.ScaleScore{
			AssignmentID:  a.ID,
			Relationship:  a.Relationship,
			Score:         *r.Score,
			CategoryID:    cat.ID,
			CategoryName:  cat.Name,
			CategoryOrder: cat.Order,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignmentID < out[j].AssignmentID })
	return out, nil
}

func (m *MemStore) UpdateSentiment(_ context.Context, responseID string, score float64, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.st.responses[responseID]
	if !ok {
		return notFound("response", responseID)
	}
	r.SentimentScore = &score
	r.SentimentCategory = &category
	m.st.responses[responseID] = r
	return nil
}

// Response возвращает ответ по id (для проверок в тестах)
func (m *MemStore) Response(id string) (models.Response, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.st.responses[id]
	return r, ok
}

// Result

func (m *MemStore) GetResult(_ context.Context, id string) (*models.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.st.results[id]
	if !ok {
		return nil, notFound("result", id)
	}
	return &r, nil
}

func (m *MemStore) resultFor(campaignID, evaluateeID string) (models.Result, bool) {
	for _, r := range m.st.results {
		if r.CampaignID == campaignID && r.EvaluateeID == evaluateeID {
			return r, true
		}
	}
	return models.Result{}, false
}

func (m *MemStore) GetResultFor(_ context.Context, campaignID, evaluateeID string) (*models.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resultFor(campaignID, evaluateeID)
	if !ok {
		return nil, notFound("result for", campaignID+"/"+evaluateeID)
	}
	return &r, nil
}

func (m *MemStore) UpsertResult(_ context.Context, r *models.Result) (*models.Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.resultFor(r.CampaignID, r.EvaluateeID)
	if ok && existing.IsFinalized {
		return &existing, false, evaluation.ErrAlreadyFinalized
	}
	saved := *r
	saved.IsFinalized = false
	saved.FinalizedAt = nil
	if ok {
		saved.ID = existing.ID
		saved.CreatedAt = existing.CreatedAt
	} else {
		saved.CreatedAt = m.tick()
	}
	m.st.results[saved.ID] = saved
	return &saved, !ok, nil
}

func (m *MemStore) AdjustOverallScore(_ context.Context, id string, score decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.st.results[id]
	if !ok || r.IsFinalized {
		return false, nil
	}
	r.OverallScore = decimal.NewNullDecimal(score)
	m.st.results[id] = r
	return true, nil
}

func (m *MemStore) FinalizeResult(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.finalize[id]; err != nil {
		return false, err
	}
	r, ok := m.st.results[id]
	if !ok || r.IsFinalized {
		return false, nil
	}
	r.IsFinalized = true
	r.FinalizedAt = &at
	m.st.results[id] = r
	return true, nil
}

func (m *MemStore) ReopenResult(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.st.results[id]
	if !ok || !r.IsFinalized {
		return false, nil
	}
	r.IsFinalized = false
	r.FinalizedAt = nil
	m.st.results[id] = r
	return true, nil
}

func (m *MemStore) ListResults(_ context.Context, campaignID string, onlyOpen bool) ([]models.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []models.Result{}
	for _, r := range m.st.results {
		if r.CampaignID != campaignID || (onlyOpen && r.IsFinalized) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EvaluateeID < out[j].EvaluateeID })
	return out, nil
}

// Audit

func (m *MemStore) AppendAudit(_ context.Context, rec *models.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = int64(len(m.st.audit) + 1)
	rec.CreatedAt = m.tick()
	m.st.audit = append(m.st.audit, *rec)
	return nil
}

func (m *MemStore) ListAudit(_ context.Context, entity, entityID string) ([]models.AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.AuditRecord{}
	for _, rec := range m.st.audit {
		if rec.Entity == entity && rec.EntityID == entityID {
			out = append(out, rec)
		}
	}
	return out, nil
}
