package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-cms-api/internal/models"
	"github.com/noah-isme/course-cms-api/internal/repository"
	appErrors "github.com/noah-isme/course-cms-api/pkg/errors"
)

type studentCallRepository interface {
	Enroll(ctx context.Context, studentID, callID string) (*models.StudentCall, error)
	Withdraw(ctx context.Context, studentID, callID string) error
	BulkEnroll(ctx context.Context, callID string, studentIDs []string) (*repository.BulkEnrollOutcome, error)
	BulkWithdraw(ctx context.Context, callID string, studentIDs []string) (int, error)
	CountByCall(ctx context.Context, callID string) (int, error)
	Exists(ctx context.Context, studentID, callID string) (bool, error)
	ListStudentsByCall(ctx context.Context, callID string) ([]models.StudentDetail, error)
	ListCallsByStudent(ctx context.Context, studentID string) ([]models.CallDetail, error)
	ListAll(ctx context.Context) ([]models.StudentCallDetail, error)
	Statistics(ctx context.Context) (*models.EnrollmentStats, error)
}

type callReader interface {
	FindByID(ctx context.Context, id string) (*models.Call, error)
}

type enrollmentStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// BulkEnrollRequest carries the candidate students for one call.
type BulkEnrollRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,required"`
}

// BulkWithdrawRequest carries the students to remove from one call.
type BulkWithdrawRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,required"`
}

// EnrollmentService manages call applications under the capacity limit.
type EnrollmentService struct {
	repo        studentCallRepository
	calls       callReader
	students    enrollmentStudentReader
	cache       *CacheService
	capacityTTL time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo studentCallRepository, calls callReader, students enrollmentStudentReader, cache *CacheService, capacityTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, calls: calls, students: students, cache: cache, capacityTTL: capacityTTL, validator: validate, logger: logger}
}

// Enroll registers a student for a call. The write path holds the call row
// lock so the capacity limit survives concurrent requests.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, callID string) (*models.StudentCall, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active || !student.AccountActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student account is inactive")
	}

	call, err := s.calls.FindByID(ctx, callID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "call not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load call")
	}
	if call.ApplicationDeadline != nil && time.Now().UTC().After(*call.ApplicationDeadline) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "application deadline has passed")
	}

	sc, err := s.repo.Enroll(ctx, studentID, callID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyApplied):
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "student is already registered for this call")
		case errors.Is(err, repository.ErrCallFull):
			return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "call has reached its maximum capacity")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "call not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
		}
	}

	s.invalidateCapacity(ctx, callID)
	s.logger.Info("student enrolled", zap.String("student_id", studentID), zap.String("call_id", callID))
	return sc, nil
}

// Withdraw removes a student's application for a call.
func (s *EnrollmentService) Withdraw(ctx context.Context, studentID, callID string) error {
	if err := s.repo.Withdraw(ctx, studentID, callID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student is not registered for this call")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw student")
	}
	s.invalidateCapacity(ctx, callID)
	s.logger.Info("student withdrawn", zap.String("student_id", studentID), zap.String("call_id", callID))
	return nil
}

// BulkEnroll admits as many of the requested students as capacity allows.
// Partial admission is reported per student, not treated as a failure.
func (s *EnrollmentService) BulkEnroll(ctx context.Context, callID string, req BulkEnrollRequest) (*models.BulkEnrollResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk enroll payload")
	}

	outcome, err := s.repo.BulkEnroll(ctx, callID, req.StudentIDs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "call not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk enroll students")
	}

	result := &models.BulkEnrollResult{Accepted: len(outcome.Admitted)}
	for _, id := range outcome.AlreadyEnrolled {
		result.Rejected = append(result.Rejected, models.BulkEnrollRejection{StudentID: id, Reason: "already enrolled"})
	}
	for _, id := range outcome.Unknown {
		result.Rejected = append(result.Rejected, models.BulkEnrollRejection{StudentID: id, Reason: "student not found"})
	}
	for _, id := range outcome.OverCapacity {
		result.Rejected = append(result.Rejected, models.BulkEnrollRejection{StudentID: id, Reason: "capacity reached"})
	}
	result.Message = fmt.Sprintf("%d students enrolled, %d skipped", result.Accepted, len(result.Rejected))

	s.invalidateCapacity(ctx, callID)
	s.logger.Info("bulk enrollment completed",
		zap.String("call_id", callID),
		zap.Int("accepted", result.Accepted),
		zap.Int("rejected", len(result.Rejected)))
	return result, nil
}

// BulkWithdraw removes the given students from a call. Students without an
// application are skipped silently.
func (s *EnrollmentService) BulkWithdraw(ctx context.Context, callID string, req BulkWithdrawRequest) (*models.BulkWithdrawResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk withdraw payload")
	}
	removed, err := s.repo.BulkWithdraw(ctx, callID, req.StudentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk withdraw students")
	}
	s.invalidateCapacity(ctx, callID)
	return &models.BulkWithdrawResult{
		Removed: removed,
		Message: fmt.Sprintf("%d students removed from call", removed),
	}, nil
}

// CapacityInfo returns the occupancy view for a call, served from cache
// when available.
func (s *EnrollmentService) CapacityInfo(ctx context.Context, callID string) (*models.CapacityInfo, error) {
	cacheKey := capacityCacheKey(callID)
	var cached models.CapacityInfo
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	call, err := s.calls.FindByID(ctx, callID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "call not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load call")
	}
	current, err := s.repo.CountByCall(ctx, callID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count applications")
	}

	info := &models.CapacityInfo{
		CallID:    callID,
		Capacity:  call.Capacity,
		Current:   current,
		Available: call.Capacity - current,
		IsFull:    current >= call.Capacity,
	}
	if info.Available < 0 {
		info.Available = 0
	}
	if call.Capacity > 0 {
		pct := float64(current) / float64(call.Capacity) * 100
		info.UtilizationPct = math.Round(pct*100) / 100
	}

	if err := s.cache.Set(ctx, cacheKey, info, s.capacityTTL); err != nil {
		s.logger.Debug("capacity cache write failed", zap.Error(err))
	}
	return info, nil
}

// Exists reports whether a student already applied to a call.
func (s *EnrollmentService) Exists(ctx context.Context, studentID, callID string) (bool, error) {
	exists, err := s.repo.Exists(ctx, studentID, callID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check application")
	}
	return exists, nil
}

// ListStudentsByCall returns all applicants of a call.
func (s *EnrollmentService) ListStudentsByCall(ctx context.Context, callID string) ([]models.StudentDetail, error) {
	if _, err := s.calls.FindByID(ctx, callID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "call not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load call")
	}
	students, err := s.repo.ListStudentsByCall(ctx, callID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list call students")
	}
	return students, nil
}

// ListCallsByStudent returns the calls a student has applied for.
func (s *EnrollmentService) ListCallsByStudent(ctx context.Context, studentID string) ([]models.CallDetail, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	calls, err := s.repo.ListCallsByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student calls")
	}
	return calls, nil
}

// ListAll returns every application with display context.
func (s *EnrollmentService) ListAll(ctx context.Context) ([]models.StudentCallDetail, error) {
	details, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return details, nil
}

// Statistics aggregates enrollment figures across calls and students.
func (s *EnrollmentService) Statistics(ctx context.Context) (*models.EnrollmentStats, error) {
	stats, err := s.repo.Statistics(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute statistics")
	}
	return stats, nil
}

func (s *EnrollmentService) invalidateCapacity(ctx context.Context, callID string) {
	if err := s.cache.Invalidate(ctx, capacityCacheKey(callID)); err != nil {
		s.logger.Debug("capacity cache invalidation failed", zap.String("call_id", callID), zap.Error(err))
	}
}

func capacityCacheKey(callID string) string {
	return fmt.Sprintf("enrollment:capacity:%s", callID)
}
