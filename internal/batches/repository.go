package batches

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillbatch/backend/internal/models"
)

// Repository handles batch persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a batches repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new batch.
func (r *Repository) Create(ctx context.Context, b *models.Batch) error {
	const q = `INSERT INTO batches (id, course_name, batch_name, start_date, end_date, sessions_per_week, session_days_of_week, session_start_time, session_duration_minutes, timezone, instructor_id)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, b.CourseName, b.BatchName, b.StartDate, b.EndDate, b.SessionsPerWeek, b.SessionDaysOfWeek, b.SessionStartTime, b.SessionDurationMinutes, b.Timezone, b.InstructorID).
		Scan(&b.ID, &b.CreatedAt)
}

// GetByID returns a batch by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	const q = `SELECT id, course_name, batch_name, start_date, end_date, sessions_per_week, session_days_of_week, session_start_time, session_duration_minutes, timezone, instructor_id, created_at
		FROM batches WHERE id = $1`
	var b models.Batch
	err := r.pool.QueryRow(ctx, q, id).Scan(&b.ID, &b.CourseName, &b.BatchName, &b.StartDate, &b.EndDate, &b.SessionsPerWeek, &b.SessionDaysOfWeek, &b.SessionStartTime, &b.SessionDurationMinutes, &b.Timezone, &b.InstructorID, &b.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// List returns all batches, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Batch, error) {
	const q = `SELECT id, course_name, batch_name, start_date, end_date, sessions_per_week, session_days_of_week, session_start_time, session_duration_minutes, timezone, instructor_id, created_at
		FROM batches ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Batch
	for rows.Next() {
		var b models.Batch
		if err := rows.Scan(&b.ID, &b.CourseName, &b.BatchName, &b.StartDate, &b.EndDate, &b.SessionsPerWeek, &b.SessionDaysOfWeek, &b.SessionStartTime, &b.SessionDurationMinutes, &b.Timezone, &b.InstructorID, &b.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}
