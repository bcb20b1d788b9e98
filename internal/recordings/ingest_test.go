package recordings

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillbatch/backend/internal/models"
	"github.com/skillbatch/backend/internal/zoom"
)

type fakeSessionFinder struct {
	byMeeting map[string]*models.Session
}

func (f *fakeSessionFinder) GetByMeetingID(_ context.Context, meetingID string) (*models.Session, error) {
	return f.byMeeting[meetingID], nil
}

type fakeRecordingCreator struct {
	recs    []*models.Recording
	failAll bool
}

func (f *fakeRecordingCreator) Create(_ context.Context, rec *models.Recording) error {
	if f.failAll {
		return errors.New("insert failed")
	}
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now()
	f.recs = append(f.recs, rec)
	return nil
}

type fakeProvider struct {
	files       []zoom.RecordingFile
	listErr     error
	downloadErr map[string]error
}

func (f *fakeProvider) ListRecordingFiles(_ context.Context, _ string) ([]zoom.RecordingFile, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.files, nil
}

func (f *fakeProvider) Download(_ context.Context, url string) ([]byte, error) {
	if err := f.downloadErr[url]; err != nil {
		return nil, err
	}
	return []byte("bytes-of-" + url), nil
}

type fakeUploader struct {
	uploads  map[string][]byte
	failKeys map[string]bool
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploads: map[string][]byte{}, failKeys: map[string]bool{}}
}

func (f *fakeUploader) Upload(_ context.Context, key string, body []byte, _ string) (string, error) {
	if f.failKeys[key] {
		return "", errors.New("s3 unavailable")
	}
	f.uploads[key] = body
	return "https://bucket.s3.us-east-1.amazonaws.com/" + key, nil
}

func testSession() *models.Session {
	return &models.Session{
		ID:        uuid.New(),
		BatchID:   uuid.New(),
		StartsAt:  time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		MeetingID: "91234567890",
	}
}

func mp4File(id string) zoom.RecordingFile {
	return zoom.RecordingFile{
		ID:             id,
		FileType:       "MP4",
		FileSize:       2048,
		Duration:       55,
		RecordingStart: "2024-01-01T09:00:12Z",
		DownloadURL:    "https://zoom.example/rec/" + id,
	}
}

func TestIngestNoSession(t *testing.T) {
	creator := &fakeRecordingCreator{}
	ing := NewIngestor(&fakeSessionFinder{byMeeting: map[string]*models.Session{}}, creator, &fakeProvider{}, newFakeUploader(), nil)

	result, err := ing.Ingest(context.Background(), "unknown", "uuid")
	require.NoError(t, err)
	assert.True(t, result.NoSession)
	assert.Empty(t, creator.recs)
}

func TestIngestArchivesVideoFilesOnly(t *testing.T) {
	sess := testSession()
	finder := &fakeSessionFinder{byMeeting: map[string]*models.Session{sess.MeetingID: sess}}
	creator := &fakeRecordingCreator{}
	provider := &fakeProvider{files: []zoom.RecordingFile{
		mp4File("file-1"),
		{ID: "audio-1", FileType: "M4A", DownloadURL: "https://zoom.example/rec/audio-1"},
		{ID: "file-2", FileType: "MP4"}, // no download URL
	}}
	uploader := newFakeUploader()
	ing := NewIngestor(finder, creator, provider, uploader, nil)

	result, err := ing.Ingest(context.Background(), sess.MeetingID, "uu-id")
	require.NoError(t, err)
	assert.False(t, result.NoSession)
	assert.Equal(t, 1, result.Archived)
	assert.Equal(t, 0, result.Failed)

	require.Len(t, creator.recs, 1)
	rec := creator.recs[0]
	assert.Equal(t, sess.ID, rec.SessionID)
	assert.Equal(t, "file-1", rec.ProviderFileID)
	assert.Equal(t, "MP4", rec.FileType)
	assert.Equal(t, int64(2048), rec.FileSize)
	assert.Equal(t, 55, rec.Duration)
	assert.Equal(t, models.RecordingStatusUploaded, rec.Status)
	require.NotNil(t, rec.RecordedAt)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 0, 12, 0, time.UTC), rec.RecordedAt.UTC())

	key := fmt.Sprintf("zoom-recordings/%s/file-1.mp4", sess.ID)
	assert.Equal(t, key, rec.S3Key)
	assert.Equal(t, "https://bucket.s3.us-east-1.amazonaws.com/"+key, rec.S3URL)
	assert.Contains(t, uploader.uploads, key)
}

func TestIngestPerFileIsolation(t *testing.T) {
	sess := testSession()
	finder := &fakeSessionFinder{byMeeting: map[string]*models.Session{sess.MeetingID: sess}}
	creator := &fakeRecordingCreator{}
	provider := &fakeProvider{
		files: []zoom.RecordingFile{mp4File("file-1"), mp4File("file-2")},
		downloadErr: map[string]error{
			"https://zoom.example/rec/file-1": errors.New("download timeout"),
		},
	}
	ing := NewIngestor(finder, creator, provider, newFakeUploader(), nil)

	result, err := ing.Ingest(context.Background(), sess.MeetingID, "uu-id")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Archived)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, creator.recs, 1)
	assert.Equal(t, "file-2", creator.recs[0].ProviderFileID)
}

func TestIngestAllFilesFailed(t *testing.T) {
	sess := testSession()
	finder := &fakeSessionFinder{byMeeting: map[string]*models.Session{sess.MeetingID: sess}}
	provider := &fakeProvider{
		files: []zoom.RecordingFile{mp4File("file-1")},
		downloadErr: map[string]error{
			"https://zoom.example/rec/file-1": errors.New("download timeout"),
		},
	}
	ing := NewIngestor(finder, &fakeRecordingCreator{}, provider, newFakeUploader(), nil)

	result, err := ing.Ingest(context.Background(), sess.MeetingID, "uu-id")
	require.Error(t, err)
	assert.Equal(t, 0, result.Archived)
	assert.Equal(t, 1, result.Failed)
}

func TestIngestListFailureAborts(t *testing.T) {
	sess := testSession()
	finder := &fakeSessionFinder{byMeeting: map[string]*models.Session{sess.MeetingID: sess}}
	provider := &fakeProvider{listErr: &zoom.ProviderError{Op: "list recordings", StatusCode: 502}}
	creator := &fakeRecordingCreator{}
	ing := NewIngestor(finder, creator, provider, newFakeUploader(), nil)

	_, err := ing.Ingest(context.Background(), sess.MeetingID, "uu-id")
	require.Error(t, err)
	var provErr *zoom.ProviderError
	assert.ErrorAs(t, err, &provErr)
	assert.Empty(t, creator.recs)
}

func TestIngestFallbackKeyWithoutFileID(t *testing.T) {
	sess := testSession()
	finder := &fakeSessionFinder{byMeeting: map[string]*models.Session{sess.MeetingID: sess}}
	creator := &fakeRecordingCreator{}
	f := mp4File("")
	f.DownloadURL = "https://zoom.example/rec/anon"
	ing := NewIngestor(finder, creator, &fakeProvider{files: []zoom.RecordingFile{f}}, newFakeUploader(), nil)

	result, err := ing.Ingest(context.Background(), sess.MeetingID, "uu-id")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Archived)
	require.Len(t, creator.recs, 1)
	assert.Contains(t, creator.recs[0].S3Key, "zoom-recordings/"+sess.ID.String()+"/")
	assert.NotContains(t, creator.recs[0].S3Key, "//") // timestamp fallback filled the segment
}
