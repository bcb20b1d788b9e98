// Package schedule materializes recurring class sessions against the meeting
// provider and persists the resulting batch/session records.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillbatch/backend/internal/models"
	"github.com/skillbatch/backend/internal/sessions"
	"github.com/skillbatch/backend/internal/zoom"
	"github.com/skillbatch/backend/pkg/queue"
)

// ErrMissingFields means a required scheduling field was absent.
var ErrMissingFields = errors.New("missing required fields")

// ErrBatchNotFound means the referenced batch does not exist.
var ErrBatchNotFound = errors.New("batch not found")

// BatchStore is the batch persistence needed by the service.
type BatchStore interface {
	Create(ctx context.Context, b *models.Batch) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	List(ctx context.Context) ([]models.Batch, error)
}

// SessionStore is the session persistence needed by the service.
type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	UpdateMeeting(ctx context.Context, id uuid.UUID, meetingID, meetingUUID, joinURL, topic string) error
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Session, error)
	ListOrphanedByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Session, error)
}

// RecordingStore joins sessions with their archived recordings.
type RecordingStore interface {
	ListBySessions(ctx context.Context, sessionIDs []uuid.UUID) (map[uuid.UUID][]models.Recording, error)
}

// MeetingCreator creates remote meetings.
type MeetingCreator interface {
	CreateMeeting(ctx context.Context, topic string, startTime time.Time, durationMinutes int, timezone string) (*zoom.Meeting, error)
}

// BackfillEnqueuer enqueues meeting backfill jobs.
type BackfillEnqueuer interface {
	EnqueueMeetingBackfill(ctx context.Context, payload queue.MeetingBackfillPayload) error
}

// Defaults fill the optional scheduling fields.
type Defaults struct {
	Timezone        string
	StartTime       string
	DurationMinutes int
}

// ScheduleBatchInput is the validated input of ScheduleBatch.
type ScheduleBatchInput struct {
	CourseName      string
	BatchName       string
	StartDate       time.Time
	EndDate         time.Time
	DaysOfWeek      []int
	StartTime       string
	DurationMinutes int
	Timezone        string
	InstructorID    *string
}

// ScheduleBatchResult is what a scheduling run produced.
type ScheduleBatchResult struct {
	Batch           *models.Batch    `json:"batch"`
	SessionsCreated int              `json:"sessions_created"`
	Sessions        []models.Session `json:"sessions"`
}

// Service orchestrates batch scheduling: date enumeration, session
// persistence and meeting creation, best effort per date.
type Service struct {
	batches    BatchStore
	sessions   SessionStore
	recordings RecordingStore
	meetings   MeetingCreator
	backfill   BackfillEnqueuer
	defaults   Defaults
	logger     *zap.Logger
}

// NewService creates a schedule service.
func NewService(batches BatchStore, sessions SessionStore, recordings RecordingStore, meetings MeetingCreator, backfill BackfillEnqueuer, defaults Defaults, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		batches:    batches,
		sessions:   sessions,
		recordings: recordings,
		meetings:   meetings,
		backfill:   backfill,
		defaults:   defaults,
		logger:     logger,
	}
}

func distinctCount(days []int) int {
	seen := make(map[int]bool, len(days))
	for _, d := range days {
		seen[d] = true
	}
	return len(seen)
}

// MeetingTopic composes the provider meeting topic from batch name, course
// name and the human-readable session date.
func MeetingTopic(b *models.Batch, startsAt time.Time) string {
	return fmt.Sprintf("%s - %s (%s)", b.BatchName, b.CourseName, startsAt.Format("Mon Jan 02 2006"))
}

// ScheduleBatch persists the batch, enumerates its session dates and creates
// one session plus one remote meeting per date. A failed insert skips that
// date; a failed meeting call leaves the session without provider
// identifiers. Neither aborts the run.
func (s *Service) ScheduleBatch(ctx context.Context, in ScheduleBatchInput) (*ScheduleBatchResult, error) {
	if in.CourseName == "" || in.BatchName == "" || in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, ErrMissingFields
	}
	if len(in.DaysOfWeek) == 0 {
		in.DaysOfWeek = []int{1} // Monday
	}
	if in.StartTime == "" {
		in.StartTime = s.defaults.StartTime
	}
	if in.DurationMinutes <= 0 {
		in.DurationMinutes = s.defaults.DurationMinutes
	}
	if in.Timezone == "" {
		in.Timezone = s.defaults.Timezone
	}

	batch := &models.Batch{
		CourseName:             in.CourseName,
		BatchName:              in.BatchName,
		StartDate:              in.StartDate,
		EndDate:                in.EndDate,
		SessionsPerWeek:        distinctCount(in.DaysOfWeek),
		SessionDaysOfWeek:      in.DaysOfWeek,
		SessionStartTime:       in.StartTime,
		SessionDurationMinutes: in.DurationMinutes,
		Timezone:               in.Timezone,
		InstructorID:           in.InstructorID,
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	loc, err := time.LoadLocation(batch.Timezone)
	if err != nil {
		s.logger.Warn("unknown timezone, using UTC", zap.String("timezone", batch.Timezone))
		loc = time.UTC
	}
	dates := SessionDates(batch.StartDate, batch.EndDate, batch.SessionDaysOfWeek, batch.SessionStartTime, loc)

	created := make([]models.Session, 0, len(dates))
	for _, dt := range dates {
		sess := &models.Session{
			BatchID:         batch.ID,
			StartsAt:        dt,
			DurationMinutes: batch.SessionDurationMinutes,
		}
		if err := s.sessions.Create(ctx, sess); err != nil {
			if sessions.IsUniqueViolation(err) {
				s.logger.Info("duplicate session date skipped",
					zap.String("batch_id", batch.ID.String()),
					zap.Time("starts_at", dt))
			} else {
				s.logger.Warn("session create skipped",
					zap.Error(err),
					zap.String("batch_id", batch.ID.String()),
					zap.Time("starts_at", dt))
			}
			continue
		}

		topic := MeetingTopic(batch, dt)
		meeting, err := s.meetings.CreateMeeting(ctx, topic, dt, batch.SessionDurationMinutes, batch.Timezone)
		if err != nil {
			// Session stays orphaned; an operator can backfill it later.
			s.logger.Warn("meeting create failed, session kept without provider ids",
				zap.Error(err),
				zap.String("session_id", sess.ID.String()))
		} else {
			if meeting.Topic != "" {
				topic = meeting.Topic
			}
			meetingID := strconv.FormatInt(meeting.ID, 10)
			if err := s.sessions.UpdateMeeting(ctx, sess.ID, meetingID, meeting.UUID, meeting.JoinURL, topic); err != nil {
				s.logger.Warn("session meeting update failed",
					zap.Error(err),
					zap.String("session_id", sess.ID.String()))
			} else {
				sess.MeetingID = meetingID
				sess.MeetingUUID = meeting.UUID
				sess.JoinURL = meeting.JoinURL
				sess.Topic = topic
			}
		}
		created = append(created, *sess)
	}

	return &ScheduleBatchResult{
		Batch:           batch,
		SessionsCreated: len(created),
		Sessions:        created,
	}, nil
}

// ListBatches returns all batches, newest first.
func (s *Service) ListBatches(ctx context.Context) ([]models.Batch, error) {
	return s.batches.List(ctx)
}

// ListSessionsForBatch returns the batch's sessions ordered by start time,
// each joined with every recording archived for it.
func (s *Service) ListSessionsForBatch(ctx context.Context, batchID uuid.UUID) ([]models.SessionWithRecordings, error) {
	sessionList, err := s.sessions.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(sessionList))
	for _, sess := range sessionList {
		ids = append(ids, sess.ID)
	}
	recs, err := s.recordings.ListBySessions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	out := make([]models.SessionWithRecordings, 0, len(sessionList))
	for _, sess := range sessionList {
		r := recs[sess.ID]
		if r == nil {
			r = []models.Recording{}
		}
		out = append(out, models.SessionWithRecordings{Session: sess, Recordings: r})
	}
	return out, nil
}

// BackfillBatch enqueues one meeting backfill job per session of the batch
// that still has no provider meeting. Returns the number of jobs enqueued.
func (s *Service) BackfillBatch(ctx context.Context, batchID uuid.UUID) (int, error) {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return 0, fmt.Errorf("get batch: %w", err)
	}
	if batch == nil {
		return 0, ErrBatchNotFound
	}
	orphans, err := s.sessions.ListOrphanedByBatch(ctx, batchID)
	if err != nil {
		return 0, fmt.Errorf("list orphaned sessions: %w", err)
	}
	enqueued := 0
	for _, sess := range orphans {
		if err := s.backfill.EnqueueMeetingBackfill(ctx, queue.MeetingBackfillPayload{SessionID: sess.ID}); err != nil {
			s.logger.Warn("backfill enqueue failed", zap.Error(err), zap.String("session_id", sess.ID.String()))
			continue
		}
		enqueued++
	}
	return enqueued, nil
}
