package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is one concrete occurrence of a Batch. (BatchID, StartsAt) is
// unique. Meeting fields stay empty when the provider call failed at
// scheduling time; such sessions are kept and can be backfilled later.
type Session struct {
	ID              uuid.UUID `json:"id"`
	BatchID         uuid.UUID `json:"batch_id"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	MeetingID       string    `json:"meeting_id,omitempty"`
	MeetingUUID     string    `json:"meeting_uuid,omitempty"`
	JoinURL         string    `json:"join_url,omitempty"`
	Topic           string    `json:"topic,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// HasMeeting reports whether the provider meeting was created for this
// session.
func (s *Session) HasMeeting() bool {
	return s.MeetingID != ""
}

// SessionWithRecordings is a session joined with every recording archived
// for it.
type SessionWithRecordings struct {
	Session
	Recordings []Recording `json:"recordings"`
}
