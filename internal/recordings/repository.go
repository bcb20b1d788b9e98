package recordings

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillbatch/backend/internal/models"
)

// Repository handles recording persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new recording.
func (r *Repository) Create(ctx context.Context, rec *models.Recording) error {
	const q = `INSERT INTO recordings (id, session_id, provider_file_id, file_type, file_size, duration, s3_key, s3_url, status, recorded_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, rec.SessionID, rec.ProviderFileID, rec.FileType, rec.FileSize, rec.Duration, rec.S3Key, rec.S3URL, rec.Status, rec.RecordedAt).
		Scan(&rec.ID, &rec.CreatedAt)
}

const recordingColumns = `id, session_id, COALESCE(provider_file_id,''), COALESCE(file_type,''), file_size, duration, COALESCE(s3_key,''), COALESCE(s3_url,''), status, recorded_at, created_at`

// ListBySession returns all recordings for one session, oldest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Recording, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Recording
	for rows.Next() {
		var rec models.Recording
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.ProviderFileID, &rec.FileType, &rec.FileSize, &rec.Duration, &rec.S3Key, &rec.S3URL, &rec.Status, &rec.RecordedAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// ListBySessions returns all recordings for the given sessions grouped by
// session id, oldest first within each group.
func (r *Repository) ListBySessions(ctx context.Context, sessionIDs []uuid.UUID) (map[uuid.UUID][]models.Recording, error) {
	bySession := make(map[uuid.UUID][]models.Recording)
	if len(sessionIDs) == 0 {
		return bySession, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE session_id = ANY($1) ORDER BY created_at ASC`, sessionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var rec models.Recording
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.ProviderFileID, &rec.FileType, &rec.FileSize, &rec.Duration, &rec.S3Key, &rec.S3URL, &rec.Status, &rec.RecordedAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		bySession[rec.SessionID] = append(bySession[rec.SessionID], rec)
	}
	return bySession, rows.Err()
}
