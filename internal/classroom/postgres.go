package classroom

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// Postgres implements Store on top of database/sql.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func isUniqueViolation(err error) bool {
	// pgx surfaces SQLSTATE 23505 in the error text via database/sql.
	return err != nil && strings.Contains(err.Error(), "23505")
}

// CreateUser inserts a user row.
func (p *Postgres) CreateUser(ctx context.Context, username, email, credential string) (*User, error) {
	u := User{Username: username, Email: email, Credential: credential}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, credential)
		VALUES ($1, $2, $3)
		RETURNING id
	`, username, email, credential).Scan(&u.ID)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser returns the user with the given id, or nil when absent.
func (p *Postgres) GetUser(ctx context.Context, id int64) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx, `
		SELECT id, username, email, credential FROM users WHERE id = $1
	`, id))
}

// GetUserByUsername returns the matching user, or nil when absent.
func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx, `
		SELECT id, username, email, credential FROM users WHERE username = $1
	`, username))
}

// GetUserByEmail returns the matching user, or nil when absent.
func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx, `
		SELECT id, username, email, credential FROM users WHERE email = $1
	`, email))
}

func (p *Postgres) scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Credential); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// CreateSubject inserts a subject row.
func (p *Postgres) CreateSubject(ctx context.Context, name, code, facultyName, schedule string) (*Subject, error) {
	s := Subject{Name: name, Code: code, FacultyName: facultyName, Schedule: schedule}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO subjects (name, code, faculty_name, schedule)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, name, code, facultyName, schedule).Scan(&s.ID)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSubject returns the subject with the given id, or nil when absent.
func (p *Postgres) GetSubject(ctx context.Context, id int64) (*Subject, error) {
	return p.scanSubject(p.db.QueryRowContext(ctx, `
		SELECT id, name, code, faculty_name, schedule FROM subjects WHERE id = $1
	`, id))
}

// GetSubjectByCode returns the matching subject, or nil when absent.
func (p *Postgres) GetSubjectByCode(ctx context.Context, code string) (*Subject, error) {
	return p.scanSubject(p.db.QueryRowContext(ctx, `
		SELECT id, name, code, faculty_name, schedule FROM subjects WHERE code = $1
	`, code))
}

func (p *Postgres) scanSubject(row *sql.Row) (*Subject, error) {
	var s Subject
	if err := row.Scan(&s.ID, &s.Name, &s.Code, &s.FacultyName, &s.Schedule); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// GetAllSubjects returns every subject ordered by id.
func (p *Postgres) GetAllSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, code, faculty_name, schedule FROM subjects ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Subject
	for rows.Next() {
		var s Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.Code, &s.FacultyName, &s.Schedule); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// EnrollUserInSubject records an enrollment pair once.
func (p *Postgres) EnrollUserInSubject(ctx context.Context, userID, subjectID int64) (*Enrollment, error) {
	e := Enrollment{UserID: userID, SubjectID: subjectID}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO enrollments (user_id, subject_id)
		VALUES ($1, $2)
		RETURNING id
	`, userID, subjectID).Scan(&e.ID)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// IsUserEnrolledInSubject reports whether an enrollment pair exists.
func (p *Postgres) IsUserEnrolledInSubject(ctx context.Context, userID, subjectID int64) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enrollments WHERE user_id = $1 AND subject_id = $2
		)
	`, userID, subjectID).Scan(&exists)
	return exists, err
}

// GetEnrolledSubjectsByUserID joins enrollments to subjects for one user.
func (p *Postgres) GetEnrolledSubjectsByUserID(ctx context.Context, userID int64) ([]Subject, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.code, s.faculty_name, s.schedule
		FROM enrollments e
		JOIN subjects s ON s.id = e.subject_id
		WHERE e.user_id = $1
		ORDER BY e.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Subject
	for rows.Next() {
		var s Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.Code, &s.FacultyName, &s.Schedule); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SaveTrackingResult writes a completed session record.
func (p *Postgres) SaveTrackingResult(ctx context.Context, result TrackingResult) (*TrackingResult, error) {
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO tracking_results
			(user_id, subject_id, session_date, start_time, end_time,
			 eye_movement_count, eye_blink_count, posture_change_count,
			 attentiveness_score, session_data)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id, created_at
	`, result.UserID, result.SubjectID, result.SessionDate, result.StartTime, result.EndTime,
		result.EyeMovementCount, result.EyeBlinkCount, result.PostureChangeCount,
		result.AttentivenessScore, result.SessionData).Scan(&result.ID, &result.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTrackingResultsByUserID returns a user's results in insertion order.
func (p *Postgres) GetTrackingResultsByUserID(ctx context.Context, userID int64) ([]TrackingResult, error) {
	return p.queryResults(ctx, `
		SELECT id, user_id, subject_id, session_date, start_time, end_time,
		       eye_movement_count, eye_blink_count, posture_change_count,
		       attentiveness_score, session_data, created_at
		FROM tracking_results WHERE user_id = $1 ORDER BY id
	`, userID)
}

// GetTrackingResultsByUserAndSubject returns the full session history for a
// (user, subject) pair in insertion order.
func (p *Postgres) GetTrackingResultsByUserAndSubject(ctx context.Context, userID, subjectID int64) ([]TrackingResult, error) {
	return p.queryResults(ctx, `
		SELECT id, user_id, subject_id, session_date, start_time, end_time,
		       eye_movement_count, eye_blink_count, posture_change_count,
		       attentiveness_score, session_data, created_at
		FROM tracking_results WHERE user_id = $1 AND subject_id = $2 ORDER BY id
	`, userID, subjectID)
}

func (p *Postgres) queryResults(ctx context.Context, query string, args ...any) ([]TrackingResult, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TrackingResult
	for rows.Next() {
		var r TrackingResult
		if err := rows.Scan(&r.ID, &r.UserID, &r.SubjectID, &r.SessionDate, &r.StartTime, &r.EndTime,
			&r.EyeMovementCount, &r.EyeBlinkCount, &r.PostureChangeCount,
			&r.AttentivenessScore, &r.SessionData, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
