package classroom

import (
	"context"
	"testing"
	"time"
)

func TestUserLookupsReturnNilWhenAbsent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	user, err := m.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil for missing user, got %+v", user)
	}

	user, err = m.GetUserByUsername(ctx, "ghost")
	if err != nil || user != nil {
		t.Fatalf("expected nil, nil for missing username, got %+v, %v", user, err)
	}
	user, err = m.GetUserByEmail(ctx, "ghost@example.edu")
	if err != nil || user != nil {
		t.Fatalf("expected nil, nil for missing email, got %+v, %v", user, err)
	}
}

func TestCreateUserUniqueness(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, err := m.CreateUser(ctx, "amira", "amira@example.edu", "secret")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first.ID != 1 {
		t.Fatalf("expected first id 1, got %d", first.ID)
	}

	if _, err := m.CreateUser(ctx, "amira", "other@example.edu", "secret"); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate for username, got %v", err)
	}
	if _, err := m.CreateUser(ctx, "other", "amira@example.edu", "secret"); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate for email, got %v", err)
	}

	second, err := m.CreateUser(ctx, "bruno", "bruno@example.edu", "secret")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if second.ID != 2 {
		t.Fatalf("ids must increase monotonically, got %d", second.ID)
	}
}

func TestSubjectLookups(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	created, err := m.CreateSubject(ctx, "Databases", "CS305", "Dr. Lee", "Tue 14:00")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := m.CreateSubject(ctx, "Other", "CS305", "Dr. Lee", ""); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate for code, got %v", err)
	}

	byCode, err := m.GetSubjectByCode(ctx, "CS305")
	if err != nil || byCode == nil || byCode.ID != created.ID {
		t.Fatalf("expected subject by code, got %+v, %v", byCode, err)
	}
	missing, err := m.GetSubject(ctx, 99)
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing subject, got %+v, %v", missing, err)
	}

	all, err := m.GetAllSubjects(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 subject, got %d", len(all))
	}
}

func TestEnrollmentMembership(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	user, _ := m.CreateUser(ctx, "amira", "amira@example.edu", "secret")
	subject, _ := m.CreateSubject(ctx, "Databases", "CS305", "Dr. Lee", "")
	other, _ := m.CreateSubject(ctx, "Networks", "CS310", "Dr. Chen", "")

	if _, err := m.EnrollUserInSubject(ctx, user.ID, subject.ID); err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	if _, err := m.EnrollUserInSubject(ctx, user.ID, subject.ID); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate for repeated enrollment, got %v", err)
	}

	enrolled, err := m.IsUserEnrolledInSubject(ctx, user.ID, subject.ID)
	if err != nil || !enrolled {
		t.Fatalf("expected enrolled pair to report true, got %v, %v", enrolled, err)
	}
	enrolled, err = m.IsUserEnrolledInSubject(ctx, user.ID, other.ID)
	if err != nil || enrolled {
		t.Fatalf("expected un-enrolled pair to report false, got %v, %v", enrolled, err)
	}
	enrolled, _ = m.IsUserEnrolledInSubject(ctx, 99, subject.ID)
	if enrolled {
		t.Fatalf("expected unknown user to report false")
	}

	subjects, err := m.GetEnrolledSubjectsByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if len(subjects) != 1 || subjects[0].Code != "CS305" {
		t.Fatalf("expected the enrolled subject only, got %+v", subjects)
	}
}

func TestTrackingResultHistoryOrderAndLatest(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		_, err := m.SaveTrackingResult(ctx, TrackingResult{
			UserID:             2,
			SubjectID:          3,
			SessionDate:        start,
			StartTime:          start.Add(time.Duration(i) * time.Hour),
			EndTime:            start.Add(time.Duration(i)*time.Hour + 30*time.Minute),
			EyeBlinkCount:      10 + i,
			AttentivenessScore: 80,
			SessionData:        "{}",
		})
		if err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
	}
	// Result for a different pair must not leak into the query.
	if _, err := m.SaveTrackingResult(ctx, TrackingResult{UserID: 2, SubjectID: 9, SessionData: "{}"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	results, err := m.GetTrackingResultsByUserAndSubject(ctx, 2, 3)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both sessions, got %d", len(results))
	}
	if results[0].ID >= results[1].ID {
		t.Fatalf("expected creation order, got ids %d, %d", results[0].ID, results[1].ID)
	}
	if results[0].EyeBlinkCount != 10 || results[1].EyeBlinkCount != 11 {
		t.Fatalf("unexpected ordering: %+v", results)
	}

	latest := Latest(results)
	if latest == nil || latest.EyeBlinkCount != 11 {
		t.Fatalf("latest must pick the second session, got %+v", latest)
	}
	if Latest(nil) != nil {
		t.Fatalf("latest of empty history must be nil")
	}

	byUser, err := m.GetTrackingResultsByUserID(ctx, 2)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(byUser) != 3 {
		t.Fatalf("expected all three results for user, got %d", len(byUser))
	}
}

func TestSeedApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	seed := &Seed{}
	seed.Users = append(seed.Users, struct {
		Username   string `json:"username"`
		Email      string `json:"email"`
		Credential string `json:"credential"`
	}{Username: "amira", Email: "amira@example.edu", Credential: "secret"})
	seed.Subjects = append(seed.Subjects, struct {
		Name        string `json:"name"`
		Code        string `json:"code"`
		FacultyName string `json:"faculty_name"`
		Schedule    string `json:"schedule"`
	}{Name: "Databases", Code: "CS305"})
	seed.Enrollments = append(seed.Enrollments, struct {
		Username    string `json:"username"`
		SubjectCode string `json:"subject_code"`
	}{Username: "amira", SubjectCode: "CS305"})

	if err := seed.Apply(ctx, m); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	if err := seed.Apply(ctx, m); err != nil {
		t.Fatalf("second apply must be a no-op, got %v", err)
	}

	user, _ := m.GetUserByUsername(ctx, "amira")
	subject, _ := m.GetSubjectByCode(ctx, "CS305")
	if user == nil || subject == nil {
		t.Fatalf("seed records missing")
	}
	enrolled, _ := m.IsUserEnrolledInSubject(ctx, user.ID, subject.ID)
	if !enrolled {
		t.Fatalf("seed enrollment missing")
	}
}
