package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"evaluations/internal/logging"
)

// Категории тональности
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Analyzer - внешний сервис анализа тональности.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (score float64, category string, err error)
}

// SentimentWriter записывает результат анализа обратно в ответ
type SentimentWriter interface {
	UpdateSentiment(ctx context.Context, responseID string, score float64, category string) error
}

// NeutralAnalyzer используется, когда внешний анализатор не подключён.
type NeutralAnalyzer struct{}

func (NeutralAnalyzer) Analyze(context.Context, string) (float64, string, error) {
	return 0, SentimentNeutral, nil
}

type SentimentOptions struct {
	Workers    int
	QueueSize  int
	MaxRetries uint64
	Backoff    time.Duration
}

// SentimentQueue обрабатывает ResponseTextSaved в фоне: доставка at-least-once,
// повтор с экспоненциальной задержкой. Постановка в очередь никогда не блокирует.
type SentimentQueue struct {
	analyzer Analyzer
	writer   SentimentWriter
	opts     SentimentOptions
	jobs     chan ResponseTextSaved
}

func NewSentimentQueue(analyzer Analyzer, writer SentimentWriter, opts SentimentOptions) *SentimentQueue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	return &SentimentQueue{
		analyzer: analyzer,
		writer:   writer,
		opts:     opts,
		jobs:     make(chan ResponseTextSaved, opts.QueueSize),
	}
}

// Enqueue - подписчик на ResponseTextSaved. При переполненной очереди задание отбрасывается.
func (q *SentimentQueue) Enqueue(_ context.Context, e ResponseTextSaved) error {
	select {
	case q.jobs <- e:
	default:
		logging.Log.WithField("response", e.ResponseID).Warn("SENTIMENT: queue is full, job dropped")
	}
	return nil
}

// Run запускает воркеры и блокируется до отмены ctx
func (q *SentimentQueue) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.opts.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case job := <-q.jobs:
					if err := q.process(ctx, job); err != nil {
						logging.Log.WithFields(logrus.Fields{
							"response": job.ResponseID,
							"worker":   i,
						}).Errorf("SENTIMENT: giving up: %v", err)
					}
				}
			}
		})
	}
	return g.Wait()
}

func (q *SentimentQueue) process(ctx context.Context, job ResponseTextSaved) error {
	backoff := retry.WithMaxRetries(q.opts.MaxRetries, retry.NewExponential(q.opts.Backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		score, category, err := q.analyzer.Analyze(ctx, job.Text)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("analyze: %w", err))
		}
		if category != SentimentPositive && category != SentimentNegative && category != SentimentNeutral {
			return errors.New("analyzer returned unknown category " + category)
		}
		// повтор просто перезаписывает те же поля
		if err := q.writer.UpdateSentiment(ctx, job.ResponseID, score, category); err != nil {
			return retry.RetryableError(fmt.Errorf("write sentiment: %w", err))
		}
		return nil
	})
}
