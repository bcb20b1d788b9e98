package models

import (
	"time"

	"github.com/google/uuid"
)

// Batch is a named course offering with a recurrence rule. Immutable once
// scheduled.
type Batch struct {
	ID                     uuid.UUID `json:"id"`
	CourseName             string    `json:"course_name"`
	BatchName              string    `json:"batch_name"`
	StartDate              time.Time `json:"start_date"`
	EndDate                time.Time `json:"end_date"`
	SessionsPerWeek        int       `json:"sessions_per_week"`
	SessionDaysOfWeek      []int     `json:"session_days_of_week"` // 0=Sunday..6=Saturday
	SessionStartTime       string    `json:"session_start_time"`   // "HH:MM"
	SessionDurationMinutes int       `json:"session_duration_minutes"`
	Timezone               string    `json:"timezone"`
	InstructorID           *string   `json:"instructor_id,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}
