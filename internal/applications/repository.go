package applications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository defines the interface for application data access
type Repository interface {
	Create(ctx context.Context, app *Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*Application, error)
	// SaveTransition persists next only if the stored row still matches prev's
	// version and status. Otherwise it returns ErrConcurrentModification.
	SaveTransition(ctx context.Context, prev, next *Application) error
	History(ctx context.Context, id uuid.UUID) ([]StatusHistoryEntry, error)
	List(ctx context.Context, filters *ApplicationFilters) ([]*Application, int, error)
}

const uniqueViolation = "23505"

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, app *Application) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO applications (
			id, job_id, job_seeker_id, resume_id, cover_letter, status, version, created_at, updated_at
		) VALUES (
			:id, :job_id, :job_seeker_id, :resume_id, :cover_letter, :status, :version, :created_at, :updated_at
		)`
	if _, err = tx.NamedExecContext(ctx, query, app); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrAlreadyApplied
		}
		return fmt.Errorf("failed to create application: %w", err)
	}

	if err = insertHistory(ctx, tx, app.StatusHistory); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit application: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Application, error) {
	// row and history must come from one snapshot
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var app Application
	query := `
		SELECT id, job_id, job_seeker_id, resume_id, cover_letter, status, version, created_at, updated_at
		FROM applications
		WHERE id = $1`
	if err := tx.GetContext(ctx, &app, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	history, err := selectHistory(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	app.StatusHistory = history

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit read: %w", err)
	}
	return &app, nil
}

func (r *PostgresRepository) SaveTransition(ctx context.Context, prev, next *Application) (err error) {
	if !extendsHistory(prev, next) {
		return fmt.Errorf("%w: transition does not extend the loaded application", ErrInvalidArgument)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		UPDATE applications
		SET status = $1, version = $2, updated_at = $3
		WHERE id = $4 AND version = $5 AND status = $6`
	res, err := tx.ExecContext(ctx, query, next.Status, next.Version, next.UpdatedAt, prev.ID, prev.Version, prev.Status)
	if err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err = tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM applications WHERE id = $1)`, prev.ID); err != nil {
			return fmt.Errorf("failed to check application: %w", err)
		}
		if !exists {
			return ErrApplicationNotFound
		}
		return concurrentModification(prev, next)
	}

	if err = insertHistory(ctx, tx, next.StatusHistory[len(prev.StatusHistory):]); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return concurrentModification(prev, next)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition: %w", err)
	}
	return nil
}

// extendsHistory reports whether next is prev plus at least one appended
// history entry.
func extendsHistory(prev, next *Application) bool {
	return prev.ID == next.ID && len(next.StatusHistory) > len(prev.StatusHistory)
}

func concurrentModification(prev, next *Application) *TransitionError {
	return &TransitionError{
		Kind:          KindConcurrentModification,
		ApplicationID: prev.ID,
		From:          prev.Status,
		To:            next.Status,
		Reason:        fmt.Sprintf("expected version %d", prev.Version),
	}
}

func (r *PostgresRepository) History(ctx context.Context, id uuid.UUID) ([]StatusHistoryEntry, error) {
	return selectHistory(ctx, r.db, id)
}

func selectHistory(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) ([]StatusHistoryEntry, error) {
	history := []StatusHistoryEntry{}
	query := `
		SELECT application_id, sequence, status, acting_user_id, note, created_at
		FROM application_status_history
		WHERE application_id = $1
		ORDER BY sequence ASC`
	if err := sqlx.SelectContext(ctx, q, &history, query, id); err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	return history, nil
}

func (r *PostgresRepository) List(ctx context.Context, filters *ApplicationFilters) ([]*Application, int, error) {
	where := "WHERE 1=1"
	var args []interface{}
	argCount := 1

	if filters.JobID != nil {
		where += fmt.Sprintf(" AND job_id = $%d", argCount)
		args = append(args, *filters.JobID)
		argCount++
	}
	if filters.JobSeekerID != nil {
		where += fmt.Sprintf(" AND job_seeker_id = $%d", argCount)
		args = append(args, *filters.JobSeekerID)
		argCount++
	}
	if filters.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filters.Status)
		argCount++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM applications "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count applications: %w", err)
	}

	query := `
		SELECT id, job_id, job_seeker_id, resume_id, cover_letter, status, version, created_at, updated_at
		FROM applications ` + where + " ORDER BY created_at DESC"
	if filters.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
		args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)
	}

	apps := []*Application{}
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}
	if len(apps) == 0 {
		return apps, total, nil
	}

	ids := make([]string, len(apps))
	byID := make(map[uuid.UUID]*Application, len(apps))
	for i, app := range apps {
		ids[i] = app.ID.String()
		app.StatusHistory = []StatusHistoryEntry{}
		byID[app.ID] = app
	}

	var history []StatusHistoryEntry
	historyQuery := `
		SELECT application_id, sequence, status, acting_user_id, note, created_at
		FROM application_status_history
		WHERE application_id = ANY($1::uuid[])
		ORDER BY application_id, sequence ASC`
	if err := r.db.SelectContext(ctx, &history, historyQuery, pq.Array(ids)); err != nil {
		return nil, 0, fmt.Errorf("failed to load status histories: %w", err)
	}
	for _, entry := range history {
		if app, ok := byID[entry.ApplicationID]; ok {
			app.StatusHistory = append(app.StatusHistory, entry)
		}
	}

	return apps, total, nil
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, entries []StatusHistoryEntry) error {
	query := `
		INSERT INTO application_status_history (
			application_id, sequence, status, acting_user_id, note, created_at
		) VALUES (
			:application_id, :sequence, :status, :acting_user_id, :note, :created_at
		)`
	for i := range entries {
		if _, err := tx.NamedExecContext(ctx, query, &entries[i]); err != nil {
			return fmt.Errorf("failed to append status history: %w", err)
		}
	}
	return nil
}
