package models

import (
	"time"

	"github.com/google/uuid"
)

// Recording lifecycle states.
const (
	RecordingStatusUploaded   = "uploaded"
	RecordingStatusProcessing = "processing"
	RecordingStatusFailed     = "failed"
)

// Recording is one archived media file for a Session (provider cloud
// recording republished to S3). A session may have zero or more.
type Recording struct {
	ID             uuid.UUID  `json:"id"`
	SessionID      uuid.UUID  `json:"session_id"`
	ProviderFileID string     `json:"provider_file_id,omitempty"`
	FileType       string     `json:"file_type,omitempty"`
	FileSize       int64      `json:"file_size"`
	Duration       int        `json:"duration"`
	S3Key          string     `json:"s3_key,omitempty"`
	S3URL          string     `json:"s3_url,omitempty"`
	Status         string     `json:"status"`
	RecordedAt     *time.Time `json:"recorded_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
