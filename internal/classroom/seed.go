package classroom

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Seed describes startup data for dev and demo environments.
type Seed struct {
	Users []struct {
		Username   string `json:"username"`
		Email      string `json:"email"`
		Credential string `json:"credential"`
	} `json:"users"`
	Subjects []struct {
		Name        string `json:"name"`
		Code        string `json:"code"`
		FacultyName string `json:"faculty_name"`
		Schedule    string `json:"schedule"`
	} `json:"subjects"`
	Enrollments []struct {
		Username    string `json:"username"`
		SubjectCode string `json:"subject_code"`
	} `json:"enrollments"`
}

// LoadSeedFile reads a seed definition from disk.
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// Apply populates the store from a seed, skipping records that already
// exist so re-running against a durable backend is safe.
func (s *Seed) Apply(ctx context.Context, store Store) error {
	for _, u := range s.Users {
		existing, err := store.GetUserByUsername(ctx, u.Username)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if _, err := store.CreateUser(ctx, u.Username, u.Email, u.Credential); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
	}
	for _, sub := range s.Subjects {
		existing, err := store.GetSubjectByCode(ctx, sub.Code)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if _, err := store.CreateSubject(ctx, sub.Name, sub.Code, sub.FacultyName, sub.Schedule); err != nil {
			return fmt.Errorf("seed subject %s: %w", sub.Code, err)
		}
	}
	for _, e := range s.Enrollments {
		user, err := store.GetUserByUsername(ctx, e.Username)
		if err != nil {
			return err
		}
		subject, err := store.GetSubjectByCode(ctx, e.SubjectCode)
		if err != nil {
			return err
		}
		if user == nil || subject == nil {
			return fmt.Errorf("seed enrollment %s/%s: unknown user or subject", e.Username, e.SubjectCode)
		}
		enrolled, err := store.IsUserEnrolledInSubject(ctx, user.ID, subject.ID)
		if err != nil {
			return err
		}
		if enrolled {
			continue
		}
		if _, err := store.EnrollUserInSubject(ctx, user.ID, subject.ID); err != nil {
			return fmt.Errorf("seed enrollment %s/%s: %w", e.Username, e.SubjectCode, err)
		}
	}
	return nil
}
