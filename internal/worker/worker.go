package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillbatch/backend/internal/models"
	"github.com/skillbatch/backend/internal/schedule"
	"github.com/skillbatch/backend/internal/zoom"
	"github.com/skillbatch/backend/pkg/queue"
)

// SessionStore is the session persistence needed by the processor.
type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	UpdateMeeting(ctx context.Context, id uuid.UUID, meetingID, meetingUUID, joinURL, topic string) error
}

// BatchStore loads the batch a session belongs to.
type BatchStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Batch, error)
}

// MeetingCreator creates remote meetings.
type MeetingCreator interface {
	CreateMeeting(ctx context.Context, topic string, startTime time.Time, durationMinutes int, timezone string) (*zoom.Meeting, error)
}

// BackfillProcessor processes meeting backfill jobs: create the provider
// meeting for a session that was left orphaned at scheduling time.
type BackfillProcessor struct {
	sessions SessionStore
	batches  BatchStore
	meetings MeetingCreator
	queue    *queue.Queue
	logger   *zap.Logger
}

// NewBackfillProcessor creates a backfill processor.
func NewBackfillProcessor(sessions SessionStore, batches BatchStore, meetings MeetingCreator, q *queue.Queue, logger *zap.Logger) *BackfillProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackfillProcessor{sessions: sessions, batches: batches, meetings: meetings, queue: q, logger: logger}
}

// Process executes one meeting backfill job.
func (p *BackfillProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeMeetingBackfill {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.MeetingBackfillPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	sess, err := p.sessions.GetByID(ctx, payload.SessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		p.logger.Warn("backfill session gone", zap.String("session_id", payload.SessionID.String()))
		return nil
	}
	if sess.HasMeeting() {
		p.logger.Info("session already has a meeting", zap.String("session_id", sess.ID.String()))
		return nil
	}

	batch, err := p.batches.GetByID(ctx, sess.BatchID)
	if err != nil || batch == nil {
		return fmt.Errorf("load batch %s: %w", sess.BatchID, err)
	}

	loc, err := time.LoadLocation(batch.Timezone)
	if err != nil {
		loc = time.UTC
	}
	topic := schedule.MeetingTopic(batch, sess.StartsAt.In(loc))
	meeting, err := p.meetings.CreateMeeting(ctx, topic, sess.StartsAt, sess.DurationMinutes, batch.Timezone)
	if err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	if meeting.Topic != "" {
		topic = meeting.Topic
	}

	meetingID := strconv.FormatInt(meeting.ID, 10)
	if err := p.sessions.UpdateMeeting(ctx, sess.ID, meetingID, meeting.UUID, meeting.JoinURL, topic); err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	p.logger.Info("session backfilled",
		zap.String("session_id", sess.ID.String()),
		zap.String("meeting_id", meetingID))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *BackfillProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("backfill worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
