package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"evaluations/internal/evaluation"
	"evaluations/internal/logging"
	"evaluations/models"
)

// queryer - общее подмножество *sqlx.DB и *sqlx.Tx
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Storage реализует evaluation.Store и evaluation.Directory поверх Postgres
type Storage struct {
	db   queryer
	conn *sqlx.DB // nil внутри транзакции
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db, conn: db}
}

var (
	_ evaluation.Store     = (*Storage)(nil)
	_ evaluation.Directory = (*Storage)(nil)
)

// InTx открывает транзакцию и берёт advisory-lock по lockKey до её завершения.
// Вложенный вызов использует уже открытую транзакцию.
func (s *Storage) InTx(ctx context.Context, lockKey string, fn func(tx evaluation.Store) error) error {
	if s.conn == nil {
		if err := s.lock(ctx, lockKey); err != nil {
			return err
		}
		return fn(s)
	}

	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Storage{db: tx}
	if err := txStore.lock(ctx, lockKey); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Log.Errorf("DB: rollback failed: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Storage) lock(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	return nil
}

// notFound переводит sql.ErrNoRows в evaluation.ErrNotFound
func notFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, evaluation.ErrNotFound)
	}
	return err
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// User (Пользователь справочника, только чтение)

const userColumns = `id, full_name, supervisor_id, department_id, role, is_active`

func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	query := `SELECT ` + userColumns + ` FROM app_user WHERE id=$1`
	if err := s.db.GetContext(ctx, u, query, id); err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

func (s *Storage) ListDepartmentMembers(ctx context.Context, departmentID string) ([]models.User, error) {
	users := []models.User{}
	query := `SELECT ` + userColumns + ` FROM app_user WHERE department_id=$1 ORDER BY id`
	err := s.db.SelectContext(ctx, &users, query, departmentID)
	return users, err
}

func (s *Storage) ListSubordinates(ctx context.Context, supervisorID string) ([]models.User, error) {
	users := []models.User{}
	query := `SELECT ` + userColumns + ` FROM app_user WHERE supervisor_id=$1 ORDER BY id`
	err := s.db.SelectContext(ctx, &users, query, supervisorID)
	return users, err
}

func (s *Storage) ListActiveUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	query := `SELECT ` + userColumns + ` FROM app_user WHERE is_active ORDER BY id`
	err := s.db.SelectContext(ctx, &users, query)
	return users, err
}

// AuditRecord (Журнал аудита, только добавление)
func (s *Storage) AppendAudit(ctx context.Context, rec *models.AuditRecord) error {
	query := `
        INSERT INTO audit_record (entity, entity_id, action, details)
        VALUES ($1, $2, $3, $4::jsonb)
        RETURNING id, created_at`
	err := s.db.QueryRowxContext(ctx, query, rec.Entity, rec.EntityID, rec.Action, rec.Details).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		logging.Log.Errorf("AUDIT: append %s/%s failed: %v", rec.Entity, rec.Action, err)
	}
	return err
}

func (s *Storage) ListAudit(ctx context.Context, entity, entityID string) ([]models.AuditRecord, error) {
	records := []models.AuditRecord{}
	query := `
        SELECT id, entity, entity_id, action, details::text AS details, created_at
        FROM audit_record
        WHERE entity=$1 AND entity_id=$2
        ORDER BY id`
	err := s.db.SelectContext(ctx, &records, query, entity, entityID)
	return records, err
}
