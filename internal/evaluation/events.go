package evaluation

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"evaluations/internal/logging"
)

// AssignmentCompleted публикуется после успешной отправки назначения.
type AssignmentCompleted struct {
	AssignmentID string
	CampaignID   string
	EvaluatorID  string
	EvaluateeID  string
	CompletedAt  time.Time
}

// ResponseTextSaved публикуется, когда ответ содержит текст для анализа тональности.
type ResponseTextSaved struct {
	ResponseID string
	Text       string
}

// Publisher - куда компоненты отправляют доменные события.
type Publisher interface {
	PublishAssignmentCompleted(ctx context.Context, e AssignmentCompleted)
	PublishResponseTextSaved(ctx context.Context, e ResponseTextSaved)
}

type (
	AssignmentCompletedHandler func(ctx context.Context, e AssignmentCompleted) error
	ResponseTextSavedHandler   func(ctx context.Context, e ResponseTextSaved) error
)

// Bus синхронно доставляет события подписчикам в порядке подписки.
// Ошибки подписчиков логируются и не возвращаются публикующему.
type Bus struct {
	mu        sync.RWMutex
	completed []AssignmentCompletedHandler
	textSaved []ResponseTextSavedHandler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) OnAssignmentCompleted(h AssignmentCompletedHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completed = append(b.completed, h)
}

func (b *Bus) OnResponseTextSaved(h ResponseTextSavedHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.textSaved = append(b.textSaved, h)
}

func (b *Bus) PublishAssignmentCompleted(ctx context.Context, e AssignmentCompleted) {
	b.mu.RLock()
	handlers := append([]AssignmentCompletedHandler(nil), b.completed...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			logging.Log.WithFields(logrus.Fields{
				"campaign":   e.CampaignID,
				"evaluatee":  e.EvaluateeID,
				"assignment": e.AssignmentID,
			}).Errorf("EVENT: assignment completed handler failed: %v", err)
		}
	}
}

func (b *Bus) PublishResponseTextSaved(ctx context.Context, e ResponseTextSaved) {
	b.mu.RLock()
	handlers := append([]ResponseTextSavedHandler(nil), b.textSaved...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			logging.Log.WithField("response", e.ResponseID).
				Errorf("EVENT: response text handler failed: %v", err)
		}
	}
}

// nopPublisher используется, когда события никому не нужны
type nopPublisher struct{}

func (nopPublisher) PublishAssignmentCompleted(context.Context, AssignmentCompleted) {}
func (nopPublisher) PublishResponseTextSaved(context.Context, ResponseTextSaved)     {}
