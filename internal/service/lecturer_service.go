package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/course-cms-api/internal/models"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
)

type lecturerRepository interface {
	FindByID(ctx context.Context, id string) (*models.LecturerDetail, error)
	List(ctx context.Context) ([]models.LecturerDetail, error)
	Create(ctx context.Context, lecturer *models.Lecturer) error
	Update(ctx context.Context, lecturer *models.Lecturer) error
	Deactivate(ctx context.Context, id string) error
}

// CreateLecturerRequest registers a lecturer account and profile.
type CreateLecturerRequest struct {
	Email            string     `json:"email" validate:"required,email"`
	FullName         string     `json:"full_name" validate:"required"`
	Password         string     `json:"password" validate:"required,min=6"`
	ContractStart    time.Time  `json:"contract_start" validate:"required"`
	ContractEnd      *time.Time `json:"contract_end"`
	UniversityDegree string     `json:"university_degree" validate:"required"`
}

// UpdateLecturerRequest carries the editable profile fields.
type UpdateLecturerRequest struct {
	ContractStart    time.Time  `json:"contract_start" validate:"required"`
	ContractEnd      *time.Time `json:"contract_end"`
	UniversityDegree string     `json:"university_degree" validate:"required"`
	Active           *bool      `json:"active"`
}

// LecturerService manages lecturer profiles and their linked accounts.
type LecturerService struct {
	repo      lecturerRepository
	accounts  accountWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLecturerService constructs LecturerService.
func NewLecturerService(repo lecturerRepository, accounts accountWriter, validate *validator.Validate, logger *zap.Logger) *LecturerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LecturerService{repo: repo, accounts: accounts, validator: validate, logger: logger}
}

// List returns all lecturers with account fields.
func (s *LecturerService) List(ctx context.Context) ([]models.LecturerDetail, error) {
	lecturers, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lecturers")
	}
	return lecturers, nil
}

// Get returns a lecturer with account fields.
func (s *LecturerService) Get(ctx context.Context, id string) (*models.LecturerDetail, error) {
	lecturer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer")
	}
	return lecturer, nil
}

// Create registers a lecturer: a LECTURER role account plus the profile row.
func (s *LecturerService) Create(ctx context.Context, req CreateLecturerRequest) (*models.LecturerDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecturer payload")
	}
	if req.ContractEnd != nil && !req.ContractEnd.After(req.ContractStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "contract end must be after contract start")
	}

	if _, err := s.accounts.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(req.Email),
		FullName:     req.FullName,
		Role:         models.RoleLecturer,
		Active:       true,
		PasswordHash: string(passwordHash),
	}
	if err := s.accounts.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lecturer account")
	}

	lecturer := &models.Lecturer{
		UserID:           user.ID,
		ContractStart:    req.ContractStart,
		ContractEnd:      req.ContractEnd,
		UniversityDegree: req.UniversityDegree,
		Active:           true,
	}
	if err := s.repo.Create(ctx, lecturer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lecturer profile")
	}

	s.logger.Info("lecturer registered", zap.String("lecturer_id", lecturer.ID), zap.String("email", user.Email))
	return s.Get(ctx, lecturer.ID)
}

// Update modifies the lecturer profile.
func (s *LecturerService) Update(ctx context.Context, id string, req UpdateLecturerRequest) (*models.LecturerDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecturer payload")
	}
	if req.ContractEnd != nil && !req.ContractEnd.After(req.ContractStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "contract end must be after contract start")
	}

	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer")
	}

	lecturer := detail.Lecturer
	lecturer.ContractStart = req.ContractStart
	lecturer.ContractEnd = req.ContractEnd
	lecturer.UniversityDegree = req.UniversityDegree
	if req.Active != nil {
		lecturer.Active = *req.Active
	}

	if err := s.repo.Update(ctx, &lecturer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lecturer")
	}
	return s.Get(ctx, id)
}

// Delete soft deletes the lecturer and disables the linked account. Group
// history stays intact.
func (s *LecturerService) Delete(ctx context.Context, id string) error {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer")
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate lecturer")
	}
	if err := s.accounts.SetActive(ctx, detail.UserID, false); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to disable deactivated lecturer account", zap.String("user_id", detail.UserID), zap.Error(err))
	}
	return nil
}
