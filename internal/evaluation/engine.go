package evaluation

import "time"

// Engine собирает компоненты кампании и связывает их через Bus:
// завершение назначения явно вызывает пересчёт результата.
type Engine struct {
	Catalog     *Catalog
	Lifecycle   *Lifecycle
	Assigner    *Assigner
	Recorder    *Recorder
	Aggregator  *Aggregator
	Calibration *Calibration
	Bus         *Bus

	store Store
}

// Option настраивает Engine при сборке
type Option func(*Engine)

// WithClock подменяет часы всех компонентов
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.Lifecycle.now = now
		e.Recorder.now = now
		e.Calibration.now = now
	}
}

func NewEngine(store Store, dir Directory, policy Policy, opts ...Option) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	bus := NewBus()
	lifecycle := NewLifecycle(store, dir)
	e := &Engine{
		Catalog:     NewCatalog(store),
		Lifecycle:   lifecycle,
		Assigner:    NewAssigner(store, dir, lifecycle, policy),
		Recorder:    NewRecorder(store, bus),
		Aggregator:  NewAggregator(store, policy),
		Calibration: NewCalibration(store, dir),
		Bus:         bus,
		store:       store,
	}
	for _, opt := range opts {
		opt(e)
	}
	bus.OnAssignmentCompleted(e.Aggregator.HandleAssignmentCompleted)
	return e, nil
}
