package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/letrus-care/letrus-api/internal/models"
	appErrors "github.com/letrus-care/letrus-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	openMap     map[string]bool
	created     *models.Enrollment
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ExistsOpen(ctx context.Context, studentID, classID, schoolYearID string) (bool, error) {
	if m.openMap == nil {
		return false, nil
	}
	return m.openMap[studentID+classID+schoolYearID], nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "new-enroll"
	}
	m.enrollments[enrollment.ID] = *enrollment
	m.created = enrollment
	return nil
}

type mockStudentReader struct {
	students map[string]*models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockClassReader struct{}

func (m *mockClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if id == "missing" {
		return nil, sql.ErrNoRows
	}
	return &models.Class{ID: id}, nil
}

type mockSchoolYearReader struct{}

func (m *mockSchoolYearReader) FindByID(ctx context.Context, id string) (*models.SchoolYear, error) {
	if id == "missing" {
		return nil, sql.ErrNoRows
	}
	return &models.SchoolYear{ID: id}, nil
}

type mockPlanGenerator struct {
	generated []string
	err       error
}

func (m *mockPlanGenerator) GenerateForEnrollment(ctx context.Context, enrollment *models.Enrollment, schoolYear *models.SchoolYear) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.generated = append(m.generated, enrollment.ID)
	return len(models.MonthLabels), nil
}

func newEnrollmentFixture() (*EnrollmentService, *mockEnrollmentRepo, *mockPlanGenerator) {
	repo := &mockEnrollmentRepo{}
	students := &mockStudentReader{students: map[string]*models.Student{
		"s1": {ID: "s1", FullName: "Ana Costa", Active: true},
		"s2": {ID: "s2", FullName: "Rui Neto", Active: false},
	}}
	plans := &mockPlanGenerator{}
	svc := NewEnrollmentService(repo, students, &mockClassReader{}, &mockSchoolYearReader{}, plans, validator.New(), zap.NewNop())
	return svc, repo, plans
}

func TestEnrollCreatesPendingEnrollmentWithPlan(t *testing.T) {
	svc, repo, plans := newEnrollmentFixture()

	detail, err := svc.Enroll(context.Background(), EnrollStudentRequest{
		StudentID:    "s1",
		ClassID:      "c1",
		SchoolYearID: "sy1",
		CenterID:     "ct1",
	})
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, models.EnrollmentStatusPending, detail.Status)
	require.NotNil(t, repo.created)
	assert.Contains(t, plans.generated, repo.created.ID)
}

func TestEnrollScholarshipStartsEnrolled(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()

	detail, err := svc.Enroll(context.Background(), EnrollStudentRequest{
		StudentID:    "s1",
		ClassID:      "c1",
		SchoolYearID: "sy1",
		CenterID:     "ct1",
		Scholarship:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, detail.Status)
	assert.True(t, repo.created.Scholarship)
}

func TestEnrollRejectsInactiveStudent(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{
		StudentID:    "s2",
		ClassID:      "c1",
		SchoolYearID: "sy1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestEnrollRejectsDuplicate(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()
	repo.openMap = map[string]bool{"s1c1sy1": true}

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{
		StudentID:    "s1",
		ClassID:      "c1",
		SchoolYearID: "sy1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollRejectsMissingReferences(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{
		StudentID:    "unknown",
		ClassID:      "c1",
		SchoolYearID: "sy1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Enroll(context.Background(), EnrollStudentRequest{
		StudentID:    "s1",
		ClassID:      "missing",
		SchoolYearID: "sy1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Enroll(context.Background(), EnrollStudentRequest{
		StudentID:    "s1",
		ClassID:      "c1",
		SchoolYearID: "missing",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRegeneratePlanRecoversAfterFailure(t *testing.T) {
	svc, repo, plans := newEnrollmentFixture()
	plans.err = sql.ErrConnDone

	detail, err := svc.Enroll(context.Background(), EnrollStudentRequest{
		StudentID:    "s1",
		ClassID:      "c1",
		SchoolYearID: "sy1",
	})
	require.NoError(t, err)
	assert.Empty(t, plans.generated)

	plans.err = nil
	created, err := svc.RegeneratePlan(context.Background(), detail.ID)
	require.NoError(t, err)
	assert.Equal(t, len(models.MonthLabels), created)
	assert.Contains(t, plans.generated, repo.created.ID)
}

func TestRegeneratePlanUnknownEnrollment(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.RegeneratePlan(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollSurvivesPlanGenerationFailure(t *testing.T) {
	svc, repo, plans := newEnrollmentFixture()
	plans.err = sql.ErrConnDone

	detail, err := svc.Enroll(context.Background(), EnrollStudentRequest{
		StudentID:    "s1",
		ClassID:      "c1",
		SchoolYearID: "sy1",
	})
	require.NoError(t, err)
	assert.NotNil(t, detail)
	assert.NotNil(t, repo.created)
}
