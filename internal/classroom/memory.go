package classroom

import (
	"context"
	"sync"
	"time"
)

// Memory is a mutex-guarded in-process Store for dev and tests. IDs are
// monotonically increasing and never reused, matching the Postgres backend.
type Memory struct {
	mu          sync.RWMutex
	users       []User
	subjects    []Subject
	enrollments []Enrollment
	results     []TrackingResult
	nextUser    int64
	nextSubject int64
	nextEnroll  int64
	nextResult  int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{nextUser: 1, nextSubject: 1, nextEnroll: 1, nextResult: 1}
}

// CreateUser inserts a user, rejecting duplicate usernames and emails.
func (m *Memory) CreateUser(_ context.Context, username, email, credential string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username || u.Email == email {
			return nil, ErrDuplicate
		}
	}
	u := User{ID: m.nextUser, Username: username, Email: email, Credential: credential}
	m.nextUser++
	m.users = append(m.users, u)
	return &u, nil
}

// GetUser returns the user with the given id, or nil when absent.
func (m *Memory) GetUser(_ context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ID == id {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

// GetUserByUsername returns the matching user, or nil when absent.
func (m *Memory) GetUserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

// GetUserByEmail returns the matching user, or nil when absent.
func (m *Memory) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

// CreateSubject inserts a subject, rejecting duplicate codes.
func (m *Memory) CreateSubject(_ context.Context, name, code, facultyName, schedule string) (*Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subjects {
		if s.Code == code {
			return nil, ErrDuplicate
		}
	}
	s := Subject{ID: m.nextSubject, Name: name, Code: code, FacultyName: facultyName, Schedule: schedule}
	m.nextSubject++
	m.subjects = append(m.subjects, s)
	return &s, nil
}

// GetSubject returns the subject with the given id, or nil when absent.
func (m *Memory) GetSubject(_ context.Context, id int64) (*Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.subjects {
		if s.ID == id {
			out := s
			return &out, nil
		}
	}
	return nil, nil
}

// GetSubjectByCode returns the matching subject, or nil when absent.
func (m *Memory) GetSubjectByCode(_ context.Context, code string) (*Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.subjects {
		if s.Code == code {
			out := s
			return &out, nil
		}
	}
	return nil, nil
}

// GetAllSubjects returns every subject in insertion order.
func (m *Memory) GetAllSubjects(_ context.Context) ([]Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Subject, len(m.subjects))
	copy(out, m.subjects)
	return out, nil
}

// EnrollUserInSubject records an enrollment, rejecting duplicate pairs.
func (m *Memory) EnrollUserInSubject(_ context.Context, userID, subjectID int64) (*Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.UserID == userID && e.SubjectID == subjectID {
			return nil, ErrDuplicate
		}
	}
	e := Enrollment{ID: m.nextEnroll, UserID: userID, SubjectID: subjectID}
	m.nextEnroll++
	m.enrollments = append(m.enrollments, e)
	return &e, nil
}

// IsUserEnrolledInSubject reports whether an enrollment pair exists.
func (m *Memory) IsUserEnrolledInSubject(_ context.Context, userID, subjectID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.enrollments {
		if e.UserID == userID && e.SubjectID == subjectID {
			return true, nil
		}
	}
	return false, nil
}

// GetEnrolledSubjectsByUserID joins enrollments to subjects for one user.
func (m *Memory) GetEnrolledSubjectsByUserID(_ context.Context, userID int64) ([]Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Subject
	for _, e := range m.enrollments {
		if e.UserID != userID {
			continue
		}
		for _, s := range m.subjects {
			if s.ID == e.SubjectID {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

// SaveTrackingResult appends a completed session record.
func (m *Memory) SaveTrackingResult(_ context.Context, result TrackingResult) (*TrackingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result.ID = m.nextResult
	m.nextResult++
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	m.results = append(m.results, result)
	out := result
	return &out, nil
}

// GetTrackingResultsByUserID returns a user's results in insertion order.
func (m *Memory) GetTrackingResultsByUserID(_ context.Context, userID int64) ([]TrackingResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TrackingResult
	for _, r := range m.results {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetTrackingResultsByUserAndSubject returns all historical sessions for a
// (user, subject) pair in insertion order; callers select the most recent.
func (m *Memory) GetTrackingResultsByUserAndSubject(_ context.Context, userID, subjectID int64) ([]TrackingResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TrackingResult
	for _, r := range m.results {
		if r.UserID == userID && r.SubjectID == subjectID {
			out = append(out, r)
		}
	}
	return out, nil
}
