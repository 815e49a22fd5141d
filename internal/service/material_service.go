package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-cms-api/internal/models"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
)

type materialRepository interface {
	FindByID(ctx context.Context, id string) (*models.Material, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.Material, error)
	ListAll(ctx context.Context) ([]models.Material, error)
	Create(ctx context.Context, material *models.Material) error
	Update(ctx context.Context, material *models.Material) error
	Delete(ctx context.Context, id string) error
}

// MaterialRequest carries the material fields for create and update.
type MaterialRequest struct {
	Topic       string `json:"topic" validate:"required"`
	Description string `json:"description"`
	Week        int    `json:"week" validate:"required,min=1"`
	Link        string `json:"link" validate:"omitempty,url"`
}

// MaterialService manages learning materials. Writes are rejected once the
// owning group is finished.
type MaterialService struct {
	repo      materialRepository
	groups    groupReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMaterialService constructs MaterialService.
func NewMaterialService(repo materialRepository, groups groupReader, validate *validator.Validate, logger *zap.Logger) *MaterialService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaterialService{repo: repo, groups: groups, validator: validate, logger: logger}
}

// ListByGroup returns the materials of a group ordered by week.
func (s *MaterialService) ListByGroup(ctx context.Context, groupID string) ([]models.Material, error) {
	if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	materials, err := s.repo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list materials")
	}
	return materials, nil
}

// Get returns a material by ID.
func (s *MaterialService) Get(ctx context.Context, id string) (*models.Material, error) {
	material, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}
	return material, nil
}

// Create adds a material to an ongoing group.
func (s *MaterialService) Create(ctx context.Context, groupID string, req MaterialRequest) (*models.Material, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid material payload")
	}
	if err := s.requireOngoing(ctx, groupID); err != nil {
		return nil, err
	}

	material := &models.Material{
		GroupID:     groupID,
		Topic:       req.Topic,
		Description: req.Description,
		Week:        req.Week,
		Link:        req.Link,
	}
	if err := s.repo.Create(ctx, material); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create material")
	}
	s.logger.Info("material created", zap.String("group_id", groupID), zap.Int("week", material.Week))
	return material, nil
}

// Update modifies a material while its group is still ongoing.
func (s *MaterialService) Update(ctx context.Context, id string, req MaterialRequest) (*models.Material, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid material payload")
	}

	material, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}
	if err := s.requireOngoing(ctx, material.GroupID); err != nil {
		return nil, err
	}

	material.Topic = req.Topic
	material.Description = req.Description
	material.Week = req.Week
	material.Link = req.Link

	if err := s.repo.Update(ctx, material); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update material")
	}
	return material, nil
}

// Delete removes a material while its group is still ongoing.
func (s *MaterialService) Delete(ctx context.Context, id string) error {
	material, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}
	if err := s.requireOngoing(ctx, material.GroupID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete material")
	}
	return nil
}

func (s *MaterialService) requireOngoing(ctx context.Context, groupID string) error {
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if group.Status != models.GroupStatusOngoing {
		return appErrors.Clone(appErrors.ErrFinalized, "materials cannot be changed on a finished group")
	}
	return nil
}
