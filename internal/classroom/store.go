package classroom

import (
	"context"
	"errors"
)

// ErrDuplicate is returned when a create would violate a uniqueness rule
// (username, email, subject code, or an existing enrollment pair).
var ErrDuplicate = errors.New("classroom: duplicate record")

// Store persists classroom data. Lookups that match nothing return
// (nil, nil); callers must handle the absent case explicitly. The store does
// not enforce referential integrity; callers validate referenced ids before
// writing Enrollments and TrackingResults.
type Store interface {
	CreateUser(ctx context.Context, username, email, credential string) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	CreateSubject(ctx context.Context, name, code, facultyName, schedule string) (*Subject, error)
	GetSubject(ctx context.Context, id int64) (*Subject, error)
	GetSubjectByCode(ctx context.Context, code string) (*Subject, error)
	GetAllSubjects(ctx context.Context) ([]Subject, error)

	EnrollUserInSubject(ctx context.Context, userID, subjectID int64) (*Enrollment, error)
	IsUserEnrolledInSubject(ctx context.Context, userID, subjectID int64) (bool, error)
	GetEnrolledSubjectsByUserID(ctx context.Context, userID int64) ([]Subject, error)

	SaveTrackingResult(ctx context.Context, result TrackingResult) (*TrackingResult, error)
	GetTrackingResultsByUserID(ctx context.Context, userID int64) ([]TrackingResult, error)
	GetTrackingResultsByUserAndSubject(ctx context.Context, userID, subjectID int64) ([]TrackingResult, error)
}

// Latest picks the most recent result from a creation-ordered history.
func Latest(results []TrackingResult) *TrackingResult {
	if len(results) == 0 {
		return nil
	}
	return &results[len(results)-1]
}
