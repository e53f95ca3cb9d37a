package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/letrus-care/letrus-api/internal/models"
	appErrors "github.com/letrus-care/letrus-api/pkg/errors"
)

type schoolYearRepository interface {
	List(ctx context.Context, centerID string) ([]models.SchoolYear, error)
	FindByID(ctx context.Context, id string) (*models.SchoolYear, error)
	FindCurrent(ctx context.Context, centerID string) (*models.SchoolYear, error)
	Create(ctx context.Context, year *models.SchoolYear) error
	FindCenter(ctx context.Context, id string) (*models.Center, error)
}

// CreateSchoolYearRequest describes a new school year.
type CreateSchoolYearRequest struct {
	Name      string    `json:"name" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	Current   bool      `json:"current"`
	CenterID  string    `json:"-"`
}

// SchoolYearService manages school years and centre info.
type SchoolYearService struct {
	repo      schoolYearRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchoolYearService constructs SchoolYearService.
func NewSchoolYearService(repo schoolYearRepository, validate *validator.Validate, logger *zap.Logger) *SchoolYearService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolYearService{repo: repo, validator: validate, logger: logger}
}

// List returns the school years of a centre, newest first.
func (s *SchoolYearService) List(ctx context.Context, centerID string) ([]models.SchoolYear, error) {
	years, err := s.repo.List(ctx, centerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list school years")
	}
	return years, nil
}

// Current returns the active school year for a centre.
func (s *SchoolYearService) Current(ctx context.Context, centerID string) (*models.SchoolYear, error) {
	year, err := s.repo.FindCurrent(ctx, centerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current school year configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current school year")
	}
	return year, nil
}

// Create registers a new school year; marking it current demotes the previous one.
func (s *SchoolYearService) Create(ctx context.Context, req CreateSchoolYearRequest) (*models.SchoolYear, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school year payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}

	year := &models.SchoolYear{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Current:   req.Current,
		CenterID:  req.CenterID,
	}
	if err := s.repo.Create(ctx, year); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school year")
	}
	return year, nil
}

// Center returns the centre profile printed on receipts.
func (s *SchoolYearService) Center(ctx context.Context, id string) (*models.Center, error) {
	center, err := s.repo.FindCenter(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "center not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load center")
	}
	return center, nil
}
