// Package recordings ingests provider recording webhooks: it resolves the
// affected session, pulls the cloud recording files and republishes them into
// S3, persisting one Recording row per archived file.
package recordings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/skillbatch/backend/internal/models"
	"github.com/skillbatch/backend/internal/zoom"
	"github.com/skillbatch/backend/pkg/storage"
)

// videoContentType is the fixed content type for archived recording files.
const videoContentType = "video/mp4"

// SessionFinder resolves sessions by their provider meeting id.
type SessionFinder interface {
	GetByMeetingID(ctx context.Context, meetingID string) (*models.Session, error)
}

// RecordingCreator persists recording rows.
type RecordingCreator interface {
	Create(ctx context.Context, rec *models.Recording) error
}

// ProviderClient fetches recording files from the meeting provider.
type ProviderClient interface {
	ListRecordingFiles(ctx context.Context, meetingUUID string) ([]zoom.RecordingFile, error)
	Download(ctx context.Context, downloadURL string) ([]byte, error)
}

// Uploader writes bytes into object storage and returns the public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// IngestResult summarizes one webhook ingestion run.
type IngestResult struct {
	NoSession bool
	Archived  int
	Failed    int
}

// Ingestor transfers a completed meeting's recording files into S3.
type Ingestor struct {
	sessions   SessionFinder
	recordings RecordingCreator
	provider   ProviderClient
	store      Uploader
	logger     *zap.Logger
}

// NewIngestor creates a recording ingestor.
func NewIngestor(sessions SessionFinder, recordings RecordingCreator, provider ProviderClient, store Uploader, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		sessions:   sessions,
		recordings: recordings,
		provider:   provider,
		store:      store,
		logger:     logger,
	}
}

// keepFile filters to video files that can actually be downloaded. Files
// without a declared type are kept, matching the provider's occasional
// omission of file_type on video files.
func keepFile(f zoom.RecordingFile) bool {
	if f.DownloadURL == "" {
		return false
	}
	return f.FileType == "" || strings.EqualFold(f.FileType, "MP4")
}

// Ingest resolves the session for the meeting, then downloads and archives
// each MP4 recording file. Files fail independently; a file that cannot be
// transferred or recorded is counted and the rest still proceed. An error is
// returned when the file listing fails or every file failed.
func (i *Ingestor) Ingest(ctx context.Context, meetingID, meetingUUID string) (*IngestResult, error) {
	sess, err := i.sessions.GetByMeetingID(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if sess == nil {
		i.logger.Warn("no session match for meeting", zap.String("meeting_id", meetingID))
		return &IngestResult{NoSession: true}, nil
	}

	files, err := i.provider.ListRecordingFiles(ctx, meetingUUID)
	if err != nil {
		return nil, fmt.Errorf("list recording files: %w", err)
	}
	i.logger.Info("recording files found",
		zap.Int("count", len(files)),
		zap.String("meeting_id", meetingID),
		zap.String("session_id", sess.ID.String()))

	result := &IngestResult{}
	for _, f := range files {
		if !keepFile(f) {
			continue
		}
		if err := i.archiveFile(ctx, sess, f); err != nil {
			result.Failed++
			i.logger.Error("recording file failed",
				zap.Error(err),
				zap.String("file_id", f.ID),
				zap.String("session_id", sess.ID.String()))
			continue
		}
		result.Archived++
	}

	if result.Archived == 0 && result.Failed > 0 {
		return result, fmt.Errorf("all %d recording files failed", result.Failed)
	}
	return result, nil
}

func (i *Ingestor) archiveFile(ctx context.Context, sess *models.Session, f zoom.RecordingFile) error {
	data, err := i.provider.Download(ctx, f.DownloadURL)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	key := storage.RecordingKey(sess.ID.String(), f.ID)
	s3URL, err := i.store.Upload(ctx, key, data, videoContentType)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	var recordedAt *time.Time
	if t, err := time.Parse(time.RFC3339, f.RecordingStart); err == nil {
		recordedAt = &t
	}
	rec := &models.Recording{
		SessionID:      sess.ID,
		ProviderFileID: f.ID,
		FileType:       f.FileType,
		FileSize:       f.FileSize,
		Duration:       f.Duration,
		S3Key:          key,
		S3URL:          s3URL,
		Status:         models.RecordingStatusUploaded,
		RecordedAt:     recordedAt,
	}
	if err := i.recordings.Create(ctx, rec); err != nil {
		return fmt.Errorf("persist recording: %w", err)
	}

	i.logger.Info("recording archived",
		zap.String("session_id", sess.ID.String()),
		zap.String("s3_key", key),
		zap.String("s3_url", s3URL))
	return nil
}
