package evaluation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"evaluations/models"
)

// Режимы расчёта общего балла
const (
	OverallMean     = "mean"
	OverallWeighted = "weighted"
)

// Weights - веса отношений в процентах, используются в режиме weighted.
type Weights struct {
	Self        decimal.Decimal
	Supervisor  decimal.Decimal
	Peer        decimal.Decimal
	Subordinate decimal.Decimal
}

// For возвращает вес для отношения
func (w Weights) For(relationship string) decimal.Decimal {
	switch relationship {
	case models.RelationSelf:
		return w.Self
	case models.RelationSupervisor:
		return w.Supervisor
	case models.RelationPeer:
		return w.Peer
	case models.RelationSubordinate:
		return w.Subordinate
	}
	return decimal.Zero
}

func (w Weights) Sum() decimal.Decimal {
	return w.Self.Add(w.Supervisor).Add(w.Peer).Add(w.Subordinate)
}

// Policy передаётся в конструктор каждого компонента вместо глобальных настроек.
type Policy struct {
	// PeerCount - сколько коллег по отделу назначать по умолчанию
	PeerCount int
	// SubordinateLimit ограничивает число подчинённых-оценщиков, 0 - без ограничения
	SubordinateLimit int
	OverallMode      string
	Weights          Weights
}

// DefaultPolicy повторяет значения по умолчанию исходной системы
func DefaultPolicy() Policy {
	return Policy{
		PeerCount:   2,
		OverallMode: OverallMean,
		Weights: Weights{
			Self:        decimal.NewFromInt(20),
			Supervisor:  decimal.NewFromInt(50),
			Peer:        decimal.NewFromInt(20),
			Subordinate: decimal.NewFromInt(10),
		},
	}
}

// Validate проверяет политику перед использованием
func (p Policy) Validate() error {
	if p.PeerCount < 0 {
		return fmt.Errorf("%w: peer count must not be negative", ErrInvalidPolicy)
	}
	if p.SubordinateLimit < 0 {
		return fmt.Errorf("%w: subordinate limit must not be negative", ErrInvalidPolicy)
	}
	switch p.OverallMode {
	case OverallMean:
	case OverallWeighted:
		for _, rel := range models.Relationships {
			if p.Weights.For(rel).IsNegative() {
				return fmt.Errorf("%w: negative weight for %s", ErrInvalidPolicy, rel)
			}
		}
		if !p.Weights.Sum().Equal(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: weights must sum to 100, got %s", ErrInvalidPolicy, p.Weights.Sum())
		}
	default:
		return fmt.Errorf("%w: unknown overall mode %q", ErrInvalidPolicy, p.OverallMode)
	}
	return nil
}
