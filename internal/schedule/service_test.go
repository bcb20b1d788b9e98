package schedule

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillbatch/backend/internal/models"
	"github.com/skillbatch/backend/internal/zoom"
	"github.com/skillbatch/backend/pkg/queue"
)

type fakeBatchStore struct {
	batches []*models.Batch
}

func (f *fakeBatchStore) Create(_ context.Context, b *models.Batch) error {
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	f.batches = append(f.batches, b)
	return nil
}

func (f *fakeBatchStore) GetByID(_ context.Context, id uuid.UUID) (*models.Batch, error) {
	for _, b := range f.batches {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, nil
}

func (f *fakeBatchStore) List(_ context.Context) ([]models.Batch, error) {
	out := make([]models.Batch, 0, len(f.batches))
	for i := len(f.batches) - 1; i >= 0; i-- { // newest first
		out = append(out, *f.batches[i])
	}
	return out, nil
}

func sessionKey(batchID uuid.UUID, startsAt time.Time) string {
	return batchID.String() + "|" + startsAt.UTC().Format(time.RFC3339)
}

type fakeSessionStore struct {
	sessions []*models.Session
	keys     map[string]bool
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{keys: map[string]bool{}}
}

func (f *fakeSessionStore) Create(_ context.Context, s *models.Session) error {
	key := sessionKey(s.BatchID, s.StartsAt)
	if f.keys[key] {
		return &pgconn.PgError{Code: "23505", ConstraintName: "sessions_batch_id_starts_at_key"}
	}
	f.keys[key] = true
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	f.sessions = append(f.sessions, s)
	return nil
}

func (f *fakeSessionStore) UpdateMeeting(_ context.Context, id uuid.UUID, meetingID, meetingUUID, joinURL, topic string) error {
	for _, s := range f.sessions {
		if s.ID == id {
			s.MeetingID = meetingID
			s.MeetingUUID = meetingUUID
			s.JoinURL = joinURL
			s.Topic = topic
			return nil
		}
	}
	return fmt.Errorf("session %s not found", id)
}

func (f *fakeSessionStore) ListByBatch(_ context.Context, batchID uuid.UUID) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.sessions {
		if s.BatchID == batchID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) ListOrphanedByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Session, error) {
	all, _ := f.ListByBatch(ctx, batchID)
	var out []models.Session
	for _, s := range all {
		if !s.HasMeeting() {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeRecordingStore struct {
	bySession map[uuid.UUID][]models.Recording
}

func (f *fakeRecordingStore) ListBySessions(_ context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.Recording, error) {
	out := map[uuid.UUID][]models.Recording{}
	for _, id := range ids {
		if recs, ok := f.bySession[id]; ok {
			out[id] = recs
		}
	}
	return out, nil
}

type fakeMeetings struct {
	nextID int64
	failOn func(startTime time.Time) bool
	calls  int
}

func (f *fakeMeetings) CreateMeeting(_ context.Context, topic string, startTime time.Time, _ int, _ string) (*zoom.Meeting, error) {
	f.calls++
	if f.failOn != nil && f.failOn(startTime) {
		return nil, &zoom.ProviderError{Op: "create meeting", StatusCode: 503, Body: "unavailable"}
	}
	f.nextID++
	return &zoom.Meeting{
		ID:      90000000000 + f.nextID,
		UUID:    fmt.Sprintf("uuid-%d", f.nextID),
		Topic:   topic,
		JoinURL: fmt.Sprintf("https://zoom.example/j/%d", f.nextID),
	}, nil
}

type fakeBackfillQueue struct {
	payloads []queue.MeetingBackfillPayload
	err      error
}

func (f *fakeBackfillQueue) EnqueueMeetingBackfill(_ context.Context, p queue.MeetingBackfillPayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

func testDefaults() Defaults {
	return Defaults{Timezone: "UTC", StartTime: "10:00", DurationMinutes: 60}
}

func newTestService(bs *fakeBatchStore, ss *fakeSessionStore, rs *fakeRecordingStore, m *fakeMeetings, q *fakeBackfillQueue) *Service {
	if rs == nil {
		rs = &fakeRecordingStore{}
	}
	if q == nil {
		q = &fakeBackfillQueue{}
	}
	return NewService(bs, ss, rs, m, q, testDefaults(), nil)
}

func twoMondaysInput() ScheduleBatchInput {
	// 2024-01-01 and 2024-01-08 are Mondays.
	return ScheduleBatchInput{
		CourseName: "Algebra",
		BatchName:  "B1",
		StartDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		DaysOfWeek: []int{1},
		StartTime:  "09:00",
		Timezone:   "UTC",
	}
}

func TestScheduleBatchMissingFields(t *testing.T) {
	svc := newTestService(&fakeBatchStore{}, newFakeSessionStore(), nil, &fakeMeetings{}, nil)
	in := twoMondaysInput()
	in.CourseName = ""
	_, err := svc.ScheduleBatch(context.Background(), in)
	assert.ErrorIs(t, err, ErrMissingFields)

	in = twoMondaysInput()
	in.EndDate = time.Time{}
	_, err = svc.ScheduleBatch(context.Background(), in)
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestScheduleBatchAppliesDefaults(t *testing.T) {
	bs := &fakeBatchStore{}
	ss := newFakeSessionStore()
	svc := newTestService(bs, ss, nil, &fakeMeetings{}, nil)

	in := twoMondaysInput()
	in.DaysOfWeek = nil
	in.StartTime = ""
	in.DurationMinutes = 0
	in.Timezone = ""
	result, err := svc.ScheduleBatch(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, result.Batch.SessionDaysOfWeek)
	assert.Equal(t, "10:00", result.Batch.SessionStartTime)
	assert.Equal(t, 60, result.Batch.SessionDurationMinutes)
	assert.Equal(t, "UTC", result.Batch.Timezone)
	assert.Equal(t, 1, result.Batch.SessionsPerWeek)
	require.Len(t, result.Sessions, 2)
	assert.Equal(t, 10, result.Sessions[0].StartsAt.Hour())
}

func TestScheduleBatchProviderFailureKeepsSiblingSessions(t *testing.T) {
	bs := &fakeBatchStore{}
	ss := newFakeSessionStore()
	secondMonday := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	meetings := &fakeMeetings{failOn: func(ts time.Time) bool { return ts.Equal(secondMonday) }}
	svc := newTestService(bs, ss, nil, meetings, nil)

	result, err := svc.ScheduleBatch(context.Background(), twoMondaysInput())
	require.NoError(t, err)

	assert.Equal(t, 2, result.SessionsCreated)
	require.Len(t, result.Sessions, 2)

	linked := 0
	for _, sess := range result.Sessions {
		if sess.HasMeeting() {
			linked++
			assert.NotEmpty(t, sess.MeetingUUID)
			assert.NotEmpty(t, sess.JoinURL)
		}
	}
	assert.Equal(t, 1, linked)

	orphans, err := ss.ListOrphanedByBatch(context.Background(), result.Batch.ID)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, secondMonday, orphans[0].StartsAt)
}

func TestScheduleBatchDuplicateDateSkippedNotAborted(t *testing.T) {
	ss := newFakeSessionStore()
	// Mark the first Monday's key as taken the moment the batch id exists,
	// so the first session insert collides on (batch_id, starts_at).
	bs := &hookedBatchStore{
		inner: &fakeBatchStore{},
		onCreate: func(b *models.Batch) {
			ss.keys[sessionKey(b.ID, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))] = true
		},
	}
	svc := NewService(bs, ss, &fakeRecordingStore{}, &fakeMeetings{}, &fakeBackfillQueue{}, testDefaults(), nil)

	result, err := svc.ScheduleBatch(context.Background(), twoMondaysInput())
	require.NoError(t, err)
	assert.Equal(t, 1, result.SessionsCreated)
	require.Len(t, result.Sessions, 1)
	assert.Equal(t, time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC), result.Sessions[0].StartsAt)
}

type hookedBatchStore struct {
	inner    *fakeBatchStore
	onCreate func(*models.Batch)
}

func (h *hookedBatchStore) Create(ctx context.Context, b *models.Batch) error {
	if err := h.inner.Create(ctx, b); err != nil {
		return err
	}
	h.onCreate(b)
	return nil
}

func (h *hookedBatchStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	return h.inner.GetByID(ctx, id)
}

func (h *hookedBatchStore) List(ctx context.Context) ([]models.Batch, error) {
	return h.inner.List(ctx)
}

func TestScheduleBatchTopicComposition(t *testing.T) {
	bs := &fakeBatchStore{}
	ss := newFakeSessionStore()
	svc := newTestService(bs, ss, nil, &fakeMeetings{}, nil)

	result, err := svc.ScheduleBatch(context.Background(), twoMondaysInput())
	require.NoError(t, err)
	require.Len(t, result.Sessions, 2)
	assert.Equal(t, "B1 - Algebra (Mon Jan 01 2024)", result.Sessions[0].Topic)
	assert.Equal(t, "B1 - Algebra (Mon Jan 08 2024)", result.Sessions[1].Topic)
}

func TestListSessionsForBatchJoinsAllRecordings(t *testing.T) {
	bs := &fakeBatchStore{}
	ss := newFakeSessionStore()
	rs := &fakeRecordingStore{bySession: map[uuid.UUID][]models.Recording{}}
	svc := newTestService(bs, ss, rs, &fakeMeetings{}, nil)

	result, err := svc.ScheduleBatch(context.Background(), twoMondaysInput())
	require.NoError(t, err)
	require.Len(t, result.Sessions, 2)

	first := result.Sessions[0]
	rs.bySession[first.ID] = []models.Recording{
		{ID: uuid.New(), SessionID: first.ID, S3Key: "zoom-recordings/a/1.mp4"},
		{ID: uuid.New(), SessionID: first.ID, S3Key: "zoom-recordings/a/2.mp4"},
	}

	list, err := svc.ListSessionsForBatch(context.Background(), result.Batch.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Len(t, list[0].Recordings, 2)
	assert.NotNil(t, list[1].Recordings)
	assert.Empty(t, list[1].Recordings)
}

func TestBackfillBatchEnqueuesOrphansOnly(t *testing.T) {
	bs := &fakeBatchStore{}
	ss := newFakeSessionStore()
	q := &fakeBackfillQueue{}
	secondMonday := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	meetings := &fakeMeetings{failOn: func(ts time.Time) bool { return ts.Equal(secondMonday) }}
	svc := newTestService(bs, ss, nil, meetings, q)

	result, err := svc.ScheduleBatch(context.Background(), twoMondaysInput())
	require.NoError(t, err)

	n, err := svc.BackfillBatch(context.Background(), result.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, q.payloads, 1)

	orphans, _ := ss.ListOrphanedByBatch(context.Background(), result.Batch.ID)
	require.Len(t, orphans, 1)
	assert.Equal(t, orphans[0].ID, q.payloads[0].SessionID)
}

func TestBackfillBatchUnknownBatch(t *testing.T) {
	svc := newTestService(&fakeBatchStore{}, newFakeSessionStore(), nil, &fakeMeetings{}, nil)
	_, err := svc.BackfillBatch(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestListBatchesNewestFirst(t *testing.T) {
	bs := &fakeBatchStore{}
	svc := newTestService(bs, newFakeSessionStore(), nil, &fakeMeetings{}, nil)

	in := twoMondaysInput()
	_, err := svc.ScheduleBatch(context.Background(), in)
	require.NoError(t, err)
	in.BatchName = "B2"
	_, err = svc.ScheduleBatch(context.Background(), in)
	require.NoError(t, err)

	list, err := svc.ListBatches(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "B2", list[0].BatchName)
	assert.Equal(t, "B1", list[1].BatchName)
}
