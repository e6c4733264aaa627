package store

import (
	"context"
	"database/sql"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		credential TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subjects (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT NOT NULL UNIQUE,
		faculty_name TEXT NOT NULL DEFAULT '',
		schedule TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		subject_id BIGINT NOT NULL,
		UNIQUE (user_id, subject_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tracking_results (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		subject_id BIGINT NOT NULL,
		session_date TIMESTAMPTZ NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		eye_movement_count INT NOT NULL DEFAULT 0,
		eye_blink_count INT NOT NULL DEFAULT 0,
		posture_change_count INT NOT NULL DEFAULT 0,
		attentiveness_score DOUBLE PRECISION NOT NULL,
		session_data TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tracking_results_user_subject
		ON tracking_results (user_id, subject_id, id)`,
}

// Migrate applies the classroom schema. Statements are idempotent so running
// at every startup is safe.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
