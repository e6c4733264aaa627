package classroom

import "time"

// User is a registered platform account. Immutable after creation.
type User struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Credential string `json:"-"`
}

// Subject is static reference data describing a course.
type Subject struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	FacultyName string `json:"faculty_name"`
	Schedule    string `json:"schedule"`
}

// Enrollment grants a user access to a subject's classroom and tracking.
type Enrollment struct {
	ID        int64 `json:"id"`
	UserID    int64 `json:"user_id"`
	SubjectID int64 `json:"subject_id"`
}

// TrackingResult is the durable record of one completed tracking session.
// Created exactly once at session stop, immutable thereafter.
type TrackingResult struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	SubjectID          int64     `json:"subject_id"`
	SessionDate        time.Time `json:"session_date"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	EyeMovementCount   int       `json:"eye_movement_count"`
	EyeBlinkCount      int       `json:"eye_blink_count"`
	PostureChangeCount int       `json:"posture_change_count"`
	AttentivenessScore float64   `json:"attentiveness_score"`
	SessionData        string    `json:"session_data"`
	CreatedAt          time.Time `json:"created_at"`
}

// Duration returns the session length.
func (r TrackingResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
