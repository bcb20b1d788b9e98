package sessions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillbatch/backend/internal/models"
)

// Repository handles session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// IsUniqueViolation reports whether err is a unique constraint violation
// (duplicate batch_id + starts_at).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a new session without provider identifiers.
func (r *Repository) Create(ctx context.Context, s *models.Session) error {
	const q = `INSERT INTO sessions (id, batch_id, starts_at, duration_minutes)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, s.BatchID, s.StartsAt, s.DurationMinutes).
		Scan(&s.ID, &s.CreatedAt)
}

// UpdateMeeting records the provider identifiers once the remote meeting was
// created.
func (r *Repository) UpdateMeeting(ctx context.Context, id uuid.UUID, meetingID, meetingUUID, joinURL, topic string) error {
	const q = `UPDATE sessions SET meeting_id = $1, meeting_uuid = $2, join_url = $3, topic = $4 WHERE id = $5`
	_, err := r.pool.Exec(ctx, q, meetingID, meetingUUID, joinURL, topic, id)
	return err
}

const sessionColumns = `id, batch_id, starts_at, duration_minutes, COALESCE(meeting_id,''), COALESCE(meeting_uuid,''), COALESCE(join_url,''), COALESCE(topic,''), created_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.BatchID, &s.StartsAt, &s.DurationMinutes, &s.MeetingID, &s.MeetingUUID, &s.JoinURL, &s.Topic, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID returns a session by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// GetByMeetingID returns the session holding the given provider meeting id,
// or nil when no session matches.
func (r *Repository) GetByMeetingID(ctx context.Context, meetingID string) (*models.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE meeting_id = $1`, meetingID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListByBatch returns all sessions of a batch ordered by start time.
func (r *Repository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE batch_id = $1 ORDER BY starts_at ASC`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// ListOrphanedByBatch returns the batch's sessions that never got a provider
// meeting (backfill candidates).
func (r *Repository) ListOrphanedByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE batch_id = $1 AND meeting_id IS NULL ORDER BY starts_at ASC`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}
