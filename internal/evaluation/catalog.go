package evaluation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"evaluations/models"
)

const defaultMaxScore = 5

// Catalog управляет категориями и вопросами и их привязкой к кампаниям.
type Catalog struct {
	store Store
	newID func() string
}

func NewCatalog(store Store) *Catalog {
	return &Catalog{store: store, newID: uuid.NewString}
}

// CreateCategory создаёт категорию вопросов
func (c *Catalog) CreateCategory(ctx context.Context, name, description string, order int) (*models.QuestionCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, fmt.Errorf("%w: category name is required and max length 100", ErrInvalidQuestion)
	}
	cat := &models.QuestionCategory{
		ID:          c.newID(),
		Name:        name,
		Description: description,
		Order:       order,
	}
	if err := c.store.CreateCategory(ctx, cat); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return cat, nil
}

// QuestionInput - данные для создания или правки вопроса
type QuestionInput struct {
	CategoryID string
	Text       string
	Type       string
	MaxScore   *int
	IsRequired bool
	Order      int
}

func normalizeQuestion(in QuestionInput) (QuestionInput, error) {
	in.Text = strings.TrimSpace(in.Text)
	if in.CategoryID == "" {
		return in, fmt.Errorf("%w: category is required", ErrInvalidQuestion)
	}
	if in.Text == "" {
		return in, fmt.Errorf("%w: text is required", ErrInvalidQuestion)
	}
	switch in.Type {
	case models.QuestionScale:
		if in.MaxScore == nil {
			max := defaultMaxScore
			in.MaxScore = &max
		}
		if *in.MaxScore < 1 || *in.MaxScore > defaultMaxScore {
			return in, fmt.Errorf("%w: max score must be between 1 and %d", ErrInvalidQuestion, defaultMaxScore)
		}
	case models.QuestionBoolean, models.QuestionText:
		// шкала для них не хранится
		in.MaxScore = nil
	default:
		return in, fmt.Errorf("%w: unknown type %q", ErrInvalidQuestion, in.Type)
	}
	return in, nil
}

// CreateQuestion создаёт вопрос в категории
func (c *Catalog) CreateQuestion(ctx context.Context, in QuestionInput) (*models.Question, error) {
	in, err := normalizeQuestion(in)
	if err != nil {
		return nil, err
	}
	q := &models.Question{
		ID:         c.newID(),
		CategoryID: in.CategoryID,
		Text:       in.Text,
		Type:       in.Type,
		MaxScore:   in.MaxScore,
		IsRequired: in.IsRequired,
		Order:      in.Order,
	}
	if err := c.store.CreateQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// UpdateQuestion правит вопрос, пока на него нет ни одного ответа
func (c *Catalog) UpdateQuestion(ctx context.Context, id string, in QuestionInput) (*models.Question, error) {
	in, err := normalizeQuestion(in)
	if err != nil {
		return nil, err
	}

	var updated *models.Question
	err = c.store.InTx(ctx, "question:"+id, func(tx Store) error {
		q, err := tx.GetQuestion(ctx, id)
		if err != nil {
			return err
		}
		used, err := tx.QuestionHasResponses(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return ErrQuestionInUse
		}

		q.CategoryID = in.CategoryID
		q.Text = in.Text
		q.Type = in.Type
		q.MaxScore = in.MaxScore
		q.IsRequired = in.IsRequired
		q.Order = in.Order
		if err := tx.UpdateQuestion(ctx, q); err != nil {
			return err
		}
		updated = q
		return audit(ctx, tx, auditQuestion, id, "updated", map[string]any{"type": q.Type, "required": q.IsRequired})
	})
	if err != nil {
		return nil, fmt.Errorf("update question %s: %w", id, err)
	}
	return updated, nil
}

// AttachQuestions добавляет вопросы в конец упорядоченного списка кампании.
// Уже привязанные вопросы пропускаются. Возвращает число новых привязок.
func (c *Catalog) AttachQuestions(ctx context.Context, campaignID string, questionIDs []string) (int, error) {
	attached := 0
	err := c.store.InTx(ctx, "campaign:"+campaignID, func(tx Store) error {
		if _, err := tx.GetCampaign(ctx, campaignID); err != nil {
			return err
		}
		existing, err := tx.ListCampaignQuestions(ctx, campaignID)
		if err != nil {
			return err
		}
		for _, qid := range questionIDs {
			if _, err := tx.GetQuestion(ctx, qid); err != nil {
				return fmt.Errorf("question %s: %w", qid, err)
			}
		}
		order := len(existing)
		for _, qid := range questionIDs {
			created, err := tx.AttachQuestion(ctx, campaignID, qid, order+1)
			if err != nil {
				return err
			}
			if created {
				order++
				attached++
			}
		}
		return audit(ctx, tx, auditCampaign, campaignID, "questions_attached", map[string]any{"count": attached})
	})
	if err != nil {
		return 0, fmt.Errorf("attach questions to %s: %w", campaignID, err)
	}
	return attached, nil
}

// CampaignQuestions возвращает вопросы кампании в порядке кампании
func (c *Catalog) CampaignQuestions(ctx context.Context, campaignID string) ([]models.Question, error) {
	return c.store.ListCampaignQuestions(ctx, campaignID)
}
